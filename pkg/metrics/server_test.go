package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.CatalogMissesTotal.Inc()

	srv := NewServer("127.0.0.1:0", reg)
	srv.Mount("/ready", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	require.NoError(t, srv.Start())
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "ad_catalog_misses_total 1")

	resp, err = http.Get("http://" + srv.Addr() + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestServerBindFailure(t *testing.T) {
	first := NewServer("127.0.0.1:0", prometheus.NewRegistry())
	require.NoError(t, first.Start())
	t.Cleanup(func() { first.Shutdown(context.Background()) })

	second := NewServer(first.Addr(), prometheus.NewRegistry())
	assert.Error(t, second.Start())
}
