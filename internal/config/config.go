// Package config loads Object Store settings.
//
// Settings come from three layers, later layers winning:
//  1. Built-in defaults (Default)
//  2. A YAML file
//  3. Environment variables, optionally seeded from a .env file
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backend names.
const (
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

// Config is the complete settings tree.
type Config struct {
	Backend        string        `yaml:"backend" validate:"oneof=sqlite mongo"`
	SQLite         SQLiteConfig  `yaml:"sqlite"`
	Mongo          MongoConfig   `yaml:"mongo"`
	Batch          BatchConfig   `yaml:"batch"`
	FieldCacheSize int           `yaml:"fieldCacheSize" validate:"gt=0"`
	Log            LogConfig     `yaml:"log"`
	Metrics        MetricsConfig `yaml:"metrics"`
}

// SQLiteConfig configures the relational backend.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// MongoConfig configures the document backend.
type MongoConfig struct {
	URI              string `yaml:"uri"`
	Database         string `yaml:"database" validate:"required"`
	Collection       string `yaml:"collection" validate:"required"`
	FieldsCollection string `yaml:"fieldsCollection" validate:"required"`
}

// BatchConfig holds the default batch size of each bulk operation.
type BatchConfig struct {
	Upsert  int `yaml:"upsert" validate:"gt=0"`
	Update  int `yaml:"update" validate:"gt=0"`
	Delete  int `yaml:"delete" validate:"gt=0"`
	Cleanup int `yaml:"cleanup" validate:"gt=0"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// MetricsConfig configures metrics export.
type MetricsConfig struct {
	// TextFile receives the store metrics in the Prometheus text format
	// when a command finishes. Empty disables the export.
	TextFile string `yaml:"textFile"`
}

// envOverrides lists the variables that override file settings. Unset
// or empty variables leave the file value alone.
type envOverrides struct {
	Backend         string `env:"OBJSTORE_BACKEND"`
	SQLitePath      string `env:"OBJSTORE_SQLITE_PATH"`
	MongoURI        string `env:"OBJSTORE_MONGO_URI"`
	MongoDatabase   string `env:"OBJSTORE_MONGO_DATABASE"`
	MongoCollection string `env:"OBJSTORE_MONGO_COLLECTION"`
	MongoFieldsColl string `env:"OBJSTORE_MONGO_FIELDS_COLLECTION"`
	BatchUpsert     int    `env:"OBJSTORE_BATCH_UPSERT"`
	BatchUpdate     int    `env:"OBJSTORE_BATCH_UPDATE"`
	BatchDelete     int    `env:"OBJSTORE_BATCH_DELETE"`
	BatchCleanup    int    `env:"OBJSTORE_BATCH_CLEANUP"`
	FieldCacheSize  int    `env:"OBJSTORE_FIELD_CACHE_SIZE"`
	LogLevel        string `env:"OBJSTORE_LOG_LEVEL"`
	MetricsTextFile string `env:"OBJSTORE_METRICS_TEXTFILE"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Backend: BackendSQLite,
		SQLite:  SQLiteConfig{Path: "objstore.db"},
		Mongo: MongoConfig{
			Database:         "objstore",
			Collection:       "objs",
			FieldsCollection: "obj_fields",
		},
		Batch: BatchConfig{
			Upsert:  20,
			Update:  1000,
			Delete:  1000,
			Cleanup: 1000,
		},
		FieldCacheSize: 256,
		Log:            LogConfig{Level: "info"},
	}
}

// LoadOptions names the files Load reads. Empty paths are skipped; a
// missing .env file is not an error.
type LoadOptions struct {
	ConfigPath string
	EnvFile    string
}

// Load builds a Config from defaults, the YAML file, and the environment,
// then validates it.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()

	if opts.ConfigPath != "" {
		data, err := os.ReadFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := cfg.decodeYAML(data); err != nil {
			return nil, err
		}
	}

	if opts.EnvFile != "" {
		// godotenv never overrides variables already set.
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.apply(ov)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decodeYAML(data []byte) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) apply(ov envOverrides) {
	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}
	setString(&c.Backend, ov.Backend)
	setString(&c.SQLite.Path, ov.SQLitePath)
	setString(&c.Mongo.URI, ov.MongoURI)
	setString(&c.Mongo.Database, ov.MongoDatabase)
	setString(&c.Mongo.Collection, ov.MongoCollection)
	setString(&c.Mongo.FieldsCollection, ov.MongoFieldsColl)
	setInt(&c.Batch.Upsert, ov.BatchUpsert)
	setInt(&c.Batch.Update, ov.BatchUpdate)
	setInt(&c.Batch.Delete, ov.BatchDelete)
	setInt(&c.Batch.Cleanup, ov.BatchCleanup)
	setInt(&c.FieldCacheSize, ov.FieldCacheSize)
	setString(&c.Log.Level, strings.ToLower(ov.LogLevel))
	setString(&c.Metrics.TextFile, ov.MetricsTextFile)
}

var validate = validator.New()

// Validate checks field ranges and backend-specific requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("invalid config: %s failed %q validation (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Backend == BackendSQLite && c.SQLite.Path == "" {
		return fmt.Errorf("invalid config: sqlite.path is required for the sqlite backend")
	}
	if c.Backend == BackendMongo && c.Mongo.URI == "" {
		return fmt.Errorf("invalid config: mongo.uri is required for the mongo backend")
	}
	return nil
}

// LogLevel returns the configured slog level.
func (c *Config) LogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
