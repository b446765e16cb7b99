package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestParseArgs_Defaults(t *testing.T) {
	opts, err := ParseArgs(afero.NewMemMapFs(), nil, env(nil))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8000", opts.Addr)
	assert.Equal(t, "./data", opts.DataDir)
	assert.Equal(t, "./config", opts.ConfigDir)
	assert.Equal(t, "info", opts.LogLevel)
	assert.Equal(t, []string{"*"}, opts.CORSOrigins)
	assert.Equal(t, "config/tls/server.crt", opts.CertFile)
	assert.Equal(t, int64(512<<20), opts.MaxUploadBytes())
}

func TestParseArgs_Precedence(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/etc/dloper/panel.yaml", []byte(
		"addr: 127.0.0.1:9000\ndata_dir: /from/file\nlog_level: warn\ncors_origins: [https://a.example]\nmax_upload_mb: 10\n",
	), 0o600))

	t.Run("file over defaults", func(t *testing.T) {
		opts, err := ParseArgs(fsys, []string{"-config", "/etc/dloper"}, env(nil))
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:9000", opts.Addr)
		assert.Equal(t, "/from/file", opts.DataDir)
		assert.Equal(t, "warn", opts.LogLevel)
		assert.Equal(t, []string{"https://a.example"}, opts.CORSOrigins)
		assert.Equal(t, int64(10<<20), opts.MaxUploadBytes())
	})

	t.Run("env over file", func(t *testing.T) {
		opts, err := ParseArgs(fsys, nil, env(map[string]string{
			"DLOPER_CONFIG_DIR": "/etc/dloper",
			"SERVER_ADDRESS":    ":7000",
			"DLOPER_DATA_DIR":   "/from/env",
		}))
		require.NoError(t, err)
		assert.Equal(t, ":7000", opts.Addr)
		assert.Equal(t, "/from/env", opts.DataDir)
		assert.Equal(t, "warn", opts.LogLevel)
	})

	t.Run("flags over env", func(t *testing.T) {
		opts, err := ParseArgs(fsys, []string{"-a", ":6000", "-log-level", "debug", "-cors", "https://x, https://y", "-tls"},
			env(map[string]string{"DLOPER_CONFIG_DIR": "/etc/dloper", "SERVER_ADDRESS": ":7000"}))
		require.NoError(t, err)
		assert.Equal(t, ":6000", opts.Addr)
		assert.Equal(t, "debug", opts.LogLevel)
		assert.Equal(t, []string{"https://x", "https://y"}, opts.CORSOrigins)
		assert.True(t, opts.TLS)
		assert.Equal(t, "/etc/dloper/tls/server.key", opts.KeyFile)
	})
}

func TestParseArgs_Errors(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/bad/panel.yaml", []byte("addr: [unclosed"), 0o600))
	require.NoError(t, afero.WriteFile(fsys, "/neg/panel.yaml", []byte("max_upload_mb: -1\n"), 0o600))

	_, err := ParseArgs(fsys, []string{"-config", "/bad"}, env(nil))
	assert.ErrorContains(t, err, "parse")

	_, err = ParseArgs(fsys, []string{"-config", "/neg"}, env(nil))
	assert.ErrorContains(t, err, "max_upload_mb")

	_, err = ParseArgs(fsys, []string{"-unknown"}, env(nil))
	assert.Error(t, err)
}
