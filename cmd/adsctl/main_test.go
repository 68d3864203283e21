package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const memoryConfig = `
index:
  backend: memory
catalog:
  backend: memory
logging:
  level: error
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	return &out, app.Run(append([]string{"adsctl"}, args...))
}

func TestIngestCommand(t *testing.T) {
	cfgPath := writeFile(t, "config.yaml", memoryConfig)
	adsPath := writeFile(t, "ads.json", `[
{"ad_id": [1], "campaign_id": [1], "title": ["Red Shoes"]},
{"ad_id": [2]},
]`)

	out, err := run(t, "--config", cfgPath, "ingest", "--file", adsPath)
	require.NoError(t, err)

	var report struct {
		Accepted int `json:"accepted"`
		Skipped  int `json:"skipped"`
		Postings int `json:"postings"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, 1, report.Accepted)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 2, report.Postings)
}

func TestIngestMissingFile(t *testing.T) {
	cfgPath := writeFile(t, "config.yaml", memoryConfig)
	_, err := run(t, "--config", cfgPath, "ingest", "--file", filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestQueryCommandEmptyStores(t *testing.T) {
	cfgPath := writeFile(t, "config.yaml", memoryConfig)
	out, err := run(t, "--config", cfgPath, "query", "red shoes")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out.String())
}

func TestBudgetCommand(t *testing.T) {
	cfgPath := writeFile(t, "config.yaml", memoryConfig)
	out, err := run(t, "--config", cfgPath, "budget", "--source", "budgets.json")
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"budgets.json"`)
}

func TestBadConfig(t *testing.T) {
	cfgPath := writeFile(t, "config.yaml", "index:\n  backend: cassandra\n")
	_, err := run(t, "--config", cfgPath, "budget")
	assert.ErrorContains(t, err, "unknown index backend")
}
