package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const (
	BackendBbolt    = "bbolt"
	BackendPostgres = "postgres"
)

type Config struct {
	DBFile         string        `yaml:"db_file"`
	AdminAddr      string        `yaml:"admin_addr"`
	APIAddr        string        `yaml:"api_addr"`
	UploadsPath    string        `yaml:"uploads_path"`
	SpoolPath      string        `yaml:"spool_path"`
	IndexBackend   string        `yaml:"index_backend"`
	DatabaseURL    string        `yaml:"database_url"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	LogLevel       string        `yaml:"log_level"`
	CORSOrigins    []string      `yaml:"cors_origins"`
}

// Flags are command line switches that are not part of Config.
type Flags struct {
	ConfigFile string
	Audit      bool
}

func defaults() *Config {
	return &Config{
		DBFile:       "dedupstore.db",
		AdminAddr:    "localhost:8081",
		APIAddr:      ":8080",
		UploadsPath:  "uploads",
		IndexBackend: BackendBbolt,
		CacheTTL:     10 * time.Minute,
		LogLevel:     "info",
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path and then environment variables, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.DBFile = getEnv("STORE_DB", c.DBFile)
	c.AdminAddr = getEnv("ADMIN_ADDR", c.AdminAddr)
	c.APIAddr = getEnv("API_ADDR", c.APIAddr)
	c.UploadsPath = getEnv("UPLOADS_PATH", c.UploadsPath)
	c.SpoolPath = getEnv("SPOOL_PATH", c.SpoolPath)
	c.IndexBackend = getEnv("INDEX_BACKEND", c.IndexBackend)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	if v, ok := os.LookupEnv("CACHE_TTL"); ok {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CACHE_TTL: %w", err)
		}
		c.CacheTTL = ttl
	}
	if v, ok := os.LookupEnv("MAX_UPLOAD_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MAX_UPLOAD_BYTES: %w", err)
		}
		c.MaxUploadBytes = n
	}
	if v, ok := os.LookupEnv("CORS_ORIGINS"); ok {
		c.CORSOrigins = splitList(v)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.UploadsPath == "" {
		return errors.New("UPLOADS_PATH is required")
	}

	switch c.IndexBackend {
	case BackendBbolt:
		if c.DBFile == "" {
			return errors.New("STORE_DB is required for the bbolt index")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres index")
		}
	default:
		return fmt.Errorf("unknown INDEX_BACKEND %q", c.IndexBackend)
	}

	if c.CacheTTL < 0 {
		return errors.New("CACHE_TTL must not be negative")
	}

	if c.MaxUploadBytes < 0 {
		return errors.New("MAX_UPLOAD_BYTES must not be negative")
	}

	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// Parse reads command line arguments, loads the configuration they point at
// and applies flag overrides on top of it.
func Parse(args []string) (*Config, Flags, error) {
	var flags Flags

	fs := pflag.NewFlagSet("dedupstore", pflag.ContinueOnError)
	fs.StringVarP(&flags.ConfigFile, "config", "c", os.Getenv("CONFIG_FILE"), "Path to a YAML config file")
	fs.BoolVar(&flags.Audit, "audit", false, "Ask the running server for a consistency report and exit")
	apiAddr := fs.String("api-addr", "", "Public API listen address")
	adminAddr := fs.String("admin-addr", "", "Admin API listen address")
	uploads := fs.String("uploads", "", "Directory blobs are stored in")
	backend := fs.String("index", "", "Metadata index backend (bbolt or postgres)")

	if err := fs.Parse(args); err != nil {
		return nil, flags, err
	}

	cfg, err := Load(flags.ConfigFile)
	if err != nil {
		return nil, flags, err
	}

	if fs.Changed("api-addr") {
		cfg.APIAddr = *apiAddr
	}
	if fs.Changed("admin-addr") {
		cfg.AdminAddr = *adminAddr
	}
	if fs.Changed("uploads") {
		cfg.UploadsPath = *uploads
	}
	if fs.Changed("index") {
		cfg.IndexBackend = *backend
	}

	if err := cfg.Validate(); err != nil {
		return nil, flags, err
	}
	return cfg, flags, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
