package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// unsetForTest clears key for the duration of the test and restores it
// afterwards, so values loaded from .env files do not leak.
func unsetForTest(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, 20, cfg.Batch.Upsert)
	assert.Equal(t, 1000, cfg.Batch.Cleanup)
	assert.Equal(t, 256, cfg.FieldCacheSize)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel())
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeFile(t, "objstore.yaml", `
backend: mongo
mongo:
  uri: mongodb://localhost:27017
  database: tenants
  collection: records
batch:
  upsert: 50
log:
  level: debug
`)
	cfg, err := Load(LoadOptions{ConfigPath: path})
	require.NoError(t, err)

	assert.Equal(t, BackendMongo, cfg.Backend)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	assert.Equal(t, "tenants", cfg.Mongo.Database)
	assert.Equal(t, "records", cfg.Mongo.Collection)
	assert.Equal(t, "obj_fields", cfg.Mongo.FieldsCollection, "unset keys keep defaults")
	assert.Equal(t, 50, cfg.Batch.Upsert)
	assert.Equal(t, 1000, cfg.Batch.Update)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel())
}

func TestLoad_MetricsTextFile(t *testing.T) {
	path := writeFile(t, "objstore.yaml", "metrics:\n  textFile: /var/lib/node_exporter/objstore.prom\n")
	cfg, err := Load(LoadOptions{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/node_exporter/objstore.prom", cfg.Metrics.TextFile)

	t.Setenv("OBJSTORE_METRICS_TEXTFILE", "from-env.prom")
	cfg, err = Load(LoadOptions{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, "from-env.prom", cfg.Metrics.TextFile)
}

func TestLoad_UnknownYAMLKey(t *testing.T) {
	path := writeFile(t, "objstore.yaml", "backend: sqlite\nbatchSize: 10\n")
	_, err := Load(LoadOptions{ConfigPath: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(LoadOptions{ConfigPath: filepath.Join(t.TempDir(), "absent.yaml")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "objstore.yaml", "sqlite:\n  path: from-file.db\nbatch:\n  delete: 10\n")
	t.Setenv("OBJSTORE_SQLITE_PATH", "from-env.db")
	t.Setenv("OBJSTORE_BATCH_DELETE", "25")
	t.Setenv("OBJSTORE_LOG_LEVEL", "WARN")

	cfg, err := Load(LoadOptions{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.SQLite.Path)
	assert.Equal(t, 25, cfg.Batch.Delete)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel())
}

func TestLoad_EnvFile(t *testing.T) {
	unsetForTest(t, "OBJSTORE_FIELD_CACHE_SIZE")
	unsetForTest(t, "OBJSTORE_MONGO_DATABASE")
	t.Setenv("OBJSTORE_BATCH_CLEANUP", "7")

	envFile := writeFile(t, ".env", "OBJSTORE_FIELD_CACHE_SIZE=64\nOBJSTORE_MONGO_DATABASE=fromdotenv\nOBJSTORE_BATCH_CLEANUP=99\n")
	cfg, err := Load(LoadOptions{EnvFile: envFile})
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.FieldCacheSize)
	assert.Equal(t, "fromdotenv", cfg.Mongo.Database)
	assert.Equal(t, 7, cfg.Batch.Cleanup, "process environment wins over .env")
}

func TestLoad_MissingEnvFileIgnored(t *testing.T) {
	_, err := Load(LoadOptions{EnvFile: filepath.Join(t.TempDir(), ".env")})
	require.NoError(t, err)
}

func TestLoad_InvalidEnvValue(t *testing.T) {
	t.Setenv("OBJSTORE_BATCH_UPSERT", "many")
	_, err := Load(LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse environment")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unknown backend", func(c *Config) { c.Backend = "postgres" }, "Config.Backend"},
		{"zero batch", func(c *Config) { c.Batch.Update = 0 }, "Config.Batch.Update"},
		{"zero cache", func(c *Config) { c.FieldCacheSize = 0 }, "Config.FieldCacheSize"},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "Config.Log.Level"},
		{"empty collection", func(c *Config) { c.Mongo.Collection = "" }, "Config.Mongo.Collection"},
		{"sqlite without path", func(c *Config) { c.SQLite.Path = "" }, "sqlite.path is required"},
		{"mongo without uri", func(c *Config) { c.Backend = BackendMongo }, "mongo.uri is required"},
		{"mongo with uri", func(c *Config) {
			c.Backend = BackendMongo
			c.Mongo.URI = "mongodb://localhost"
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
