package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"classgroups-server-go/grouping"
)

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := FromViper(New())

	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, "redis", cfg.Storage.Driver)
	require.Equal(t, 8, cfg.Redis.DB)
	require.Equal(t, 20, cfg.Grouping.MaxSize)
	require.True(t, cfg.Metrics.Enabled)
	require.Equal(t, grouping.Options{GroupSize: 3, Strategy: grouping.AllowSmaller}, cfg.Grouping.DefaultOptions())
}

func TestFromViper_EnvOverrides(t *testing.T) {
	t.Setenv("CLASSGROUPS_STORAGE_DRIVER", "postgres")
	t.Setenv("CLASSGROUPS_GROUPING_DEFAULTSIZE", "4")
	t.Setenv("CLASSGROUPS_GROUPING_DEFAULTSTRATEGY", "distribute")
	t.Setenv("CLASSGROUPS_METRICS_ENABLED", "false")

	cfg, err := FromViper(New())

	require.NoError(t, err)
	require.Equal(t, "postgres", cfg.Storage.Driver)
	require.False(t, cfg.Metrics.Enabled)
	require.Equal(t, grouping.Options{GroupSize: 4, Strategy: grouping.Distribute}, cfg.Grouping.DefaultOptions())
}

func TestFromViper_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown driver", "CLASSGROUPS_STORAGE_DRIVER", "sqlite"},
		{"default size above max", "CLASSGROUPS_GROUPING_DEFAULTSIZE", "21"},
		{"default size zero", "CLASSGROUPS_GROUPING_DEFAULTSIZE", "0"},
		{"unknown strategy", "CLASSGROUPS_GROUPING_DEFAULTSTRATEGY", "pairs"},
		{"bad log level", "CLASSGROUPS_LOG_LEVEL", "loud"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)

			_, err := FromViper(New())

			require.Error(t, err)
		})
	}
}

func TestLoad_DotEnvAndConfigFile(t *testing.T) {
	dir := t.TempDir()
	dotEnv := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(dotEnv, []byte("CLASSGROUPS_REDIS_ADDR=redis.internal:6380\n"), 0o600))
	cfgFile := filepath.Join(dir, "classgroups.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("grouping:\n  maxSize: 10\n"), 0o600))
	t.Setenv("CLASSGROUPS_CONFIG", cfgFile)
	t.Setenv("CLASSGROUPS_REDIS_ADDR", "")
	require.NoError(t, os.Unsetenv("CLASSGROUPS_REDIS_ADDR"))

	cfg, err := Load(dotEnv)

	require.NoError(t, err)
	require.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	require.Equal(t, 10, cfg.Grouping.MaxSize)
}

func TestLoad_MissingDotEnvIsIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
}
