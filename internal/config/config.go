// Package config loads catalogctl settings from an optional TOML file with
// CATALOGCORE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Source drivers.
const (
	SourceFS     = "fs"
	SourceMemory = "memory"
	SourceS3     = "s3"
)

// Journal drivers.
const (
	JournalMemory   = "memory"
	JournalSQLite   = "sqlite"
	JournalPostgres = "postgres"
)

// Config is the full hosting configuration.
type Config struct {
	Source  Source  `toml:"source"`
	Journal Journal `toml:"journal"`
	Schema  Schema  `toml:"schema"`
	Log     Log     `toml:"log"`
	Export  Export  `toml:"export"`
}

// Source selects where documents are read from and exported to.
type Source struct {
	Driver string   `toml:"driver"`
	Root   string   `toml:"root"`
	S3     S3Source `toml:"s3"`
}

// S3Source holds bucket settings for the s3 driver.
type S3Source struct {
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	Endpoint  string `toml:"endpoint"`
	PathStyle bool   `toml:"path_style"`
}

// Journal selects the export journal backend.
type Journal struct {
	Driver      string `toml:"driver"`
	SQLitePath  string `toml:"sqlite_path"`
	PostgresDSN string `toml:"postgres_dsn"`
}

// Schema points at a custom CUE schema. Empty means the embedded one.
type Schema struct {
	File string `toml:"file"`
}

// Log configures the CLI logger.
type Log struct {
	Level string `toml:"level"`
}

// Export configures export naming.
type Export struct {
	Suffix string `toml:"suffix"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Source:  Source{Driver: SourceFS, Root: "."},
		Journal: Journal{Driver: JournalMemory, SQLitePath: "catalogcore-journal.db"},
		Log:     Log{Level: "info"},
		Export:  Export{Suffix: ".edited.json"},
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return Config{}, fmt.Errorf("config %s: unknown keys %s", path, strings.Join(keys, ", "))
		}
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := []struct {
		name string
		dst  *string
	}{
		{"CATALOGCORE_SOURCE_DRIVER", &cfg.Source.Driver},
		{"CATALOGCORE_SOURCE_ROOT", &cfg.Source.Root},
		{"CATALOGCORE_SOURCE_S3_BUCKET", &cfg.Source.S3.Bucket},
		{"CATALOGCORE_SOURCE_S3_REGION", &cfg.Source.S3.Region},
		{"CATALOGCORE_SOURCE_S3_ENDPOINT", &cfg.Source.S3.Endpoint},
		{"CATALOGCORE_JOURNAL_DRIVER", &cfg.Journal.Driver},
		{"CATALOGCORE_JOURNAL_SQLITE_PATH", &cfg.Journal.SQLitePath},
		{"CATALOGCORE_JOURNAL_POSTGRES_DSN", &cfg.Journal.PostgresDSN},
		{"CATALOGCORE_SCHEMA_FILE", &cfg.Schema.File},
		{"CATALOGCORE_LOG_LEVEL", &cfg.Log.Level},
		{"CATALOGCORE_EXPORT_SUFFIX", &cfg.Export.Suffix},
	}
	for _, s := range strs {
		if v, ok := lookup(s.name); ok && v != "" {
			*s.dst = v
		}
	}
	if v, ok := lookup("CATALOGCORE_SOURCE_S3_PATH_STYLE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CATALOGCORE_SOURCE_S3_PATH_STYLE: %w", err)
		}
		cfg.Source.S3.PathStyle = b
	}
	return nil
}

// Validate rejects unknown drivers and incomplete driver settings.
func (c Config) Validate() error {
	var errs []error
	switch c.Source.Driver {
	case SourceFS, SourceMemory:
	case SourceS3:
		if c.Source.S3.Bucket == "" {
			errs = append(errs, errors.New("source.s3.bucket is required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source driver %q", c.Source.Driver))
	}
	switch c.Journal.Driver {
	case JournalMemory:
	case JournalSQLite:
		if c.Journal.SQLitePath == "" {
			errs = append(errs, errors.New("journal.sqlite_path is required for the sqlite driver"))
		}
	case JournalPostgres:
		if c.Journal.PostgresDSN == "" {
			errs = append(errs, errors.New("journal.postgres_dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown journal driver %q", c.Journal.Driver))
	}
	if c.Export.Suffix == "" {
		errs = append(errs, errors.New("export.suffix must not be empty"))
	}
	return errors.Join(errs...)
}
