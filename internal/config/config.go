// Package config loads the phpsema configuration file.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when the configuration fails validation.
var ErrInvalidConfig = errors.New("invalid config")

//go:embed schema.json
var schemaSource []byte

const schemaURL = "phpsema://config.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

type Config struct {
	Project struct {
		Root   string   `yaml:"root" json:"root"`
		Ignore []string `yaml:"ignore" json:"ignore"`
	} `yaml:"project" json:"project"`
	Analysis struct {
		Workers          int  `yaml:"workers" json:"workers"`
		ReportUnresolved bool `yaml:"report_unresolved" json:"report_unresolved"`
		ReportDeprecated bool `yaml:"report_deprecated" json:"report_deprecated"`
	} `yaml:"analysis" json:"analysis"`
	Storage struct {
		DBPath string `yaml:"db_path" json:"db_path"`
	} `yaml:"storage" json:"storage"`
	Log struct {
		Level string `yaml:"level" json:"level"`
	} `yaml:"log" json:"log"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Project.Root = "."
	cfg.Project.Ignore = []string{".git", "vendor", "node_modules"}
	cfg.Analysis.Workers = 4
	cfg.Analysis.ReportUnresolved = true
	cfg.Analysis.ReportDeprecated = true
	cfg.Storage.DBPath = "phpsema.db"
	cfg.Log.Level = "info"
	return &cfg
}

// LoadConfig reads path over the defaults. A missing file is not an error.
// PHPSEMA_* environment variables, including those from a .env file in the
// working directory, override the file.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		file, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(file, cfg); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
			}
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PHPSEMA_ROOT"); v != "" {
		cfg.Project.Root = v
	}
	if v := os.Getenv("PHPSEMA_IGNORE"); v != "" {
		cfg.Project.Ignore = strings.Split(v, ",")
	}
	if v := os.Getenv("PHPSEMA_DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("PHPSEMA_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("PHPSEMA_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PHPSEMA_WORKERS: %v", ErrInvalidConfig, err)
		}
		cfg.Analysis.Workers = n
	}
	return nil
}

// Validate checks cfg against the embedded schema.
func (c *Config) Validate() error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("failed to compile config schema: %w", err)
	}

	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config for validation: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("failed to normalize config for validation: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if schemaErr = compiler.AddResource(schemaURL, bytes.NewReader(schemaSource)); schemaErr != nil {
			return
		}
		schema, schemaErr = compiler.Compile(schemaURL)
	})
	return schema, schemaErr
}
