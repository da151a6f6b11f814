package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when no --config flag is given.
const DefaultPath = "taskboard.yml"

type Config struct {
	Server  Server  `yaml:"server" toml:"server" json:"server"`
	Store   Store   `yaml:"store" toml:"store" json:"store"`
	Static  Static  `yaml:"static" toml:"static" json:"static"`
	Logging Logging `yaml:"logging" toml:"logging" json:"logging"`
}

type Server struct {
	Addr string `yaml:"addr" toml:"addr" json:"addr"`
}

type Store struct {
	// Path is the collection file. ":memory:" keeps tasks in memory only.
	Path         string `yaml:"path" toml:"path" json:"path"`
	TemplatePath string `yaml:"template_path" toml:"template_path" json:"template_path"`
}

type Static struct {
	Dir     string `yaml:"dir" toml:"dir" json:"dir"`
	Enabled bool   `yaml:"enabled" toml:"enabled" json:"enabled"`
}

type Logging struct {
	Level      string `yaml:"level" toml:"level" json:"level"`
	Format     string `yaml:"format" toml:"format" json:"format"`
	File       string `yaml:"file" toml:"file" json:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days" json:"max_age_days"`
}

func Default() Config {
	return Config{
		Server: Server{Addr: ":3000"},
		Store: Store{
			Path:         "data/taskboard.json",
			TemplatePath: "data/taskboard.template.json",
		},
		Static: Static{Dir: "public", Enabled: true},
		Logging: Logging{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

func (l *Logging) ApplyDefaults() {
	d := Default().Logging
	if l.Level == "" {
		l.Level = d.Level
	}
	if l.Format == "" {
		l.Format = d.Format
	}
	if l.MaxSizeMB <= 0 {
		l.MaxSizeMB = d.MaxSizeMB
	}
	if l.MaxBackups < 0 {
		l.MaxBackups = d.MaxBackups
	}
	if l.MaxAgeDays < 0 {
		l.MaxAgeDays = d.MaxAgeDays
	}
}

func (c *Config) ApplyDefaults() {
	d := Default()
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Store.Path == "" {
		c.Store.Path = d.Store.Path
	}
	if c.Static.Dir == "" {
		c.Static.Dir = d.Static.Dir
	}
	c.Logging.ApplyDefaults()
}

// Load reads the config file at path over the defaults, then applies
// environment overrides and validates. ${VAR} references in the file are
// expanded before parsing. Files ending in .toml are parsed as TOML, anything
// else as YAML. A missing file at DefaultPath is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(path, expandEnvVars(string(data)), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && path == DefaultPath:
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg.ApplyDefaults()
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func decode(path, data string, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		_, err := toml.Decode(data, cfg)
		return err
	}
	return yaml.Unmarshal([]byte(data), cfg)
}

var envVarRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} with the variable's value, or "" if unset.
func expandEnvVars(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarRe.FindStringSubmatch(match)[1])
	})
}

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"text", "json"}
)

// Validate returns the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server.addr is required")
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return errors.New("store.path is required")
	}
	if !oneOf(c.Logging.Level, validLevels) {
		return fmt.Errorf("logging.level %q must be one of %s", c.Logging.Level, strings.Join(validLevels, ", "))
	}
	if !oneOf(c.Logging.Format, validFormats) {
		return fmt.Errorf("logging.format %q must be one of %s", c.Logging.Format, strings.Join(validFormats, ", "))
	}
	return nil
}

func oneOf(v string, options []string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}
