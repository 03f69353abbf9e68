package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "gophshop", cmd.Use)
	assert.Contains(t, cmd.Long, "one-time password")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"shell", "products", "version"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			require.NotNil(t, sub)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
	assert.Equal(t, "client.json", configFlag.DefValue)

	for _, name := range []string{"server", "ca", "token-file", "payment-key", "insecure", "timeout", "log-level"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Version: dev")
}

func TestProductsCommand(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"products":   []map[string]any{{"_id": "p1", "title": "Teapot", "price": "25.5", "stock": 2}},
			"categories": []string{"Kitchen"},
			"totalPages": 3,
		})
	}))
	defer srv.Close()

	dir := t.TempDir()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{
		"products",
		"--config", filepath.Join(dir, "missing.json"),
		"--token-file", filepath.Join(dir, "session.json"),
		"--server", srv.URL,
		"--search", "tea",
		"--page", "2",
	})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, gotQuery, "search=tea")
	assert.Contains(t, gotQuery, "page=2")
	assert.Contains(t, out.String(), "Page 2/3")
	assert.Contains(t, out.String(), "Teapot")
	assert.Contains(t, out.String(), "25.50")
}

func TestProductsCommand_InvalidSort(t *testing.T) {
	dir := t.TempDir()
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{
		"products",
		"--config", filepath.Join(dir, "missing.json"),
		"--token-file", filepath.Join(dir, "session.json"),
		"--sort", "cheap",
	})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sort must be")
}
