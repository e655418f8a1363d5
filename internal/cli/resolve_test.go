package cli

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestResolve_Article verifies an article lookup against a local
// endpoint.
func TestResolve_Article(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Douglas Adams", r.URL.Query().Get("titles"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"query":{"pages":[{"title":"Douglas Adams","pageprops":{"wikibase_item":"Q42"}}]}}`))
	}))
	defer srv.Close()

	stdout, _, err := executeCommand(t,
		"resolve", "https://en.wikipedia.org/wiki/Douglas_Adams",
		"--api-base", srv.URL,
		"--format", "json",
	)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "Q42", data["entity"])
	assert.Equal(t, "https://www.wikidata.org/wiki/Q42", data["target"])
	assert.Equal(t, "en", data["site"])
}

// TestResolve_Canonical verifies an already-canonical URI resolves
// without any lookup call.
func TestResolve_Canonical(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	stdout, _, err := executeCommand(t,
		"resolve", "https://www.wikidata.org/wiki/Q42",
		"--api-base", srv.URL,
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "entity: Q42")
	assert.Zero(t, calls)
}

// TestResolve_NotFound verifies the failure exit path and error code.
func TestResolve_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"query":{"pages":[{"title":"Nope","missing":true}]}}`))
	}))
	defer srv.Close()

	stdout, _, err := executeCommand(t,
		"resolve", "https://en.wikipedia.org/wiki/Nope",
		"--api-base", srv.URL,
	)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, ErrCodeResolve)
	assert.Contains(t, stdout, "NOT_FOUND")
}

// TestResolve_InvalidReference verifies a malformed reference fails
// without touching the network.
func TestResolve_InvalidReference(t *testing.T) {
	stdout, _, err := executeCommand(t, "resolve", "ftp://example.com/thing")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "INVALID_REFERENCE")
}
