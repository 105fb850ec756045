package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "emojifed.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_FileOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
addr = ":9000"

[federation]
self_url = "https://wiki.example.com"
max_hops = 2
query_timeout = "1500ms"
neighbors = ["http://a.example", "http://b.example"]

[storage]
backend = "memory"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "https://wiki.example.com", cfg.Federation.SelfURL)
	assert.Equal(t, 2, cfg.Federation.MaxHops)
	assert.Equal(t, 1500*time.Millisecond, cfg.Federation.QueryTimeout)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Federation.Neighbors)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)

	// untouched keys keep their defaults
	assert.Equal(t, Default().Federation.Marker, cfg.Federation.Marker)
	assert.Equal(t, Default().Server.ShutdownTimeout, cfg.Server.ShutdownTimeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[federation]
max_hops = 2
`)
	t.Setenv("EMOJIFED_MAX_HOPS", "5")
	t.Setenv("EMOJIFED_NEIGHBORS", "http://x.example, http://y.example,http://x.example")
	t.Setenv("EMOJIFED_QUERY_TIMEOUT", "2s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Federation.MaxHops)
	assert.Equal(t, []string{"http://x.example", "http://y.example"}, cfg.Federation.Neighbors)
	assert.Equal(t, 2*time.Second, cfg.Federation.QueryTimeout)
}

func TestFromEnv_ReadsConfigPath(t *testing.T) {
	path := writeConfig(t, `
[log]
level = "debug"
`)
	t.Setenv(ConfigPathEnv, path)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
		want string
	}{
		{
			name: "unknown key",
			file: "[federation]\nmax_hopz = 2\n",
			want: "unknown keys federation.max_hopz",
		},
		{
			name: "malformed toml",
			file: "[federation\n",
			want: "load config",
		},
		{
			name: "bad duration in env",
			env:  map[string]string{"EMOJIFED_QUERY_TIMEOUT": "soon"},
			want: "EMOJIFED_QUERY_TIMEOUT",
		},
		{
			name: "bad number in env",
			env:  map[string]string{"EMOJIFED_MAX_HOPS": "three"},
			want: "EMOJIFED_MAX_HOPS",
		},
		{
			name: "redis backend without url",
			env:  map[string]string{"EMOJIFED_STORAGE": "redis"},
			want: "redis.url is required",
		},
		{
			name: "unknown backend",
			env:  map[string]string{"EMOJIFED_STORAGE": "s3"},
			want: `storage.backend "s3"`,
		},
		{
			name: "relative self url",
			env:  map[string]string{"EMOJIFED_SELF_URL": "wiki"},
			want: "federation.self_url",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			path := ""
			if tc.file != "" {
				path = writeConfig(t, tc.file)
			}
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Server.Addr = ""
	cfg.Federation.MaxHops = -1
	cfg.Tracing.Exporter = "jaeger"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.addr")
	assert.Contains(t, err.Error(), "max_hops")
	assert.Contains(t, err.Error(), "tracing.exporter")
}
