package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAggregatesWorstStatus(t *testing.T) {
	c := NewChecker()
	c.Register("index", PingCheck(func(context.Context) error { return nil }))
	c.Register("catalog", func(context.Context) ComponentHealth {
		return ComponentHealth{Status: StatusDegraded}
	})

	report := c.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Len(t, report.Components, 2)

	c.Register("kafka", PingCheck(func(context.Context) error { return errors.New("no brokers") }))
	report = c.Run(context.Background())
	assert.Equal(t, StatusDown, report.Status)
	assert.Equal(t, "no brokers", report.Components["kafka"].Message)
	assert.Equal(t, []string{"catalog", "index", "kafka"}, c.Names())
}

func TestFlagCheck(t *testing.T) {
	ready := false
	check := FlagCheck(func() bool { return ready }, "ingestion pending")
	assert.Equal(t, StatusDown, check(context.Background()).Status)
	ready = true
	assert.Equal(t, StatusUp, check(context.Background()).Status)
}

func TestReadyHandler(t *testing.T) {
	ready := false
	c := NewChecker()
	c.Register("engine", FlagCheck(func() bool { return ready }, "not initialized"))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ready = true
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var report Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, StatusUp, report.Components["engine"].Status)
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker().LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}
