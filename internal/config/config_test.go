package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs_Defaults(t *testing.T) {
	t.Setenv("CONFIG", "")
	t.Setenv("SERVER_ADDRESS", "")
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("PAYMENT_URL", "")

	opts, err := ParseArgs([]string{"-c", filepath.Join(t.TempDir(), "missing.json")})
	require.NoError(t, err)
	assert.Equal(t, "localhost:8443", opts.Port)
	assert.Equal(t, "", opts.DatabaseDSN)
	assert.Equal(t, "certs/server.crt", opts.CertFile)
	assert.Equal(t, "", opts.PaymentURL)
}

func TestParseArgs_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"address":":9000","database_dsn":"file-dsn","payment_url":"https://pay.example"}`), 0600))

	t.Setenv("CONFIG", path)
	t.Setenv("SERVER_ADDRESS", "")
	t.Setenv("DATABASE_DSN", "env-dsn")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("PAYMENT_URL", "")

	opts, err := ParseArgs([]string{"-a", ":1"})
	require.NoError(t, err)
	assert.Equal(t, ":9000", opts.Port, "file overrides flags")
	assert.Equal(t, "env-dsn", opts.DatabaseDSN, "env overrides file")
	assert.Equal(t, "https://pay.example", opts.PaymentURL)
}

func TestParseArgs_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("not-json"), 0600))
	t.Setenv("CONFIG", "")

	_, err := ParseArgs([]string{"-c", path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error while parsing config file")
}

func TestParseArgs_UnknownFlag(t *testing.T) {
	_, err := ParseArgs([]string{"-nope"})
	assert.Error(t, err)
}

func TestLoadClient(t *testing.T) {
	t.Setenv("SHOP_SERVER_URL", "")
	t.Setenv("SHOP_CA_FILE", "")
	t.Setenv("SHOP_TOKEN_FILE", "")
	t.Setenv("SHOP_PAYMENT_KEY", "pk_env")

	path := filepath.Join(t.TempDir(), "client.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server_url":"http://127.0.0.1:8080","allow_insecure":true,"timeout_seconds":3}`), 0600))

	opts, err := LoadClient(path)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080", opts.ServerURL)
	assert.True(t, opts.AllowInsecure)
	assert.Equal(t, 3*time.Second, opts.Timeout)
	assert.Equal(t, "session.json", opts.TokenFile)
	assert.Equal(t, "pk_env", opts.PaymentKey)
}

func TestLoadClient_MissingFile(t *testing.T) {
	t.Setenv("SHOP_SERVER_URL", "")
	opts, err := LoadClient(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultClientOptions().ServerURL, opts.ServerURL)
}

func TestParseArgs_AdminEmail(t *testing.T) {
	t.Setenv("CONFIG", "")
	t.Setenv("ADMIN_EMAIL", "")

	opts, err := ParseArgs([]string{"-c", "", "-admin", "flag@shop.test"})
	require.NoError(t, err)
	assert.Equal(t, "flag@shop.test", opts.AdminEmail)

	t.Setenv("ADMIN_EMAIL", "env@shop.test")
	opts, err = ParseArgs([]string{"-c", "", "-admin", "flag@shop.test"})
	require.NoError(t, err)
	assert.Equal(t, "env@shop.test", opts.AdminEmail)
}
