// Package config loads engine.yaml and applies environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AaronLay10/DiagramEngine/internal/llm"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	defaultPort        = 8080
	defaultSQLitePath  = "diagram.db"
	defaultCacheSize   = 256
	defaultClientID    = "diagram-engine"
	defaultTopicPrefix = "diagram"
	defaultAPIKeyEnv   = "SILICONFLOW_API_KEY"
)

type Config struct {
	Version int `yaml:"version"`
	Service struct {
		Name  string `yaml:"name"`
		Port  int    `yaml:"port"`
		Debug bool   `yaml:"debug"`
	} `yaml:"service"`
	Pipeline struct {
		Mode        string   `yaml:"mode"`
		DelegateSVG bool     `yaml:"delegate_svg"`
		Temperature *float64 `yaml:"temperature"`
	} `yaml:"pipeline"`
	LLM struct {
		Provider  string `yaml:"provider"`
		BaseURL   string `yaml:"base_url"`
		Model     string `yaml:"model"`
		APIKeyEnv string `yaml:"api_key_env"`
		Timeout   string `yaml:"timeout"`
	} `yaml:"llm"`
	Storage struct {
		Driver         string `yaml:"driver"`
		DSN            string `yaml:"dsn"`
		SQLitePath     string `yaml:"sqlite_path"`
		DraftCacheSize int    `yaml:"draft_cache_size"`
	} `yaml:"storage"`
	MQTT struct {
		Enabled     bool   `yaml:"enabled"`
		Broker      string `yaml:"broker"`
		ClientID    string `yaml:"client_id"`
		TopicPrefix string `yaml:"topic_prefix"`
	} `yaml:"mqtt"`
	Alerts struct {
		WebhookURL string `yaml:"webhook_url"`
	} `yaml:"alerts"`
	TLS struct {
		CertFile string `yaml:"cert_file"`
		KeyFile  string `yaml:"key_file"`
	} `yaml:"tls"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{Version: 1}
	cfg.applyDefaults()
	return cfg
}

// Load reads and validates an engine.yaml file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported engine.yaml version: %d", cfg.Version)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromEnv loads the file named by DRAW_CONFIG, or the defaults when it is
// unset, and then applies the environment overrides.
func FromEnv() (*Config, error) {
	return FromFile(os.Getenv("DRAW_CONFIG"))
}

// FromFile is FromEnv with an explicit file path. An empty path means the
// defaults.
func FromFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = "diagram-engine"
	}
	if c.Service.Port == 0 {
		c.Service.Port = defaultPort
	}
	if c.Pipeline.Mode == "" {
		c.Pipeline.Mode = "full"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = llm.ProviderSiliconFlow
	}
	if c.LLM.APIKeyEnv == "" {
		c.LLM.APIKeyEnv = defaultAPIKeyEnv
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverMemory
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = defaultSQLitePath
	}
	if c.Storage.DraftCacheSize == 0 {
		c.Storage.DraftCacheSize = defaultCacheSize
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = defaultClientID
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = defaultTopicPrefix
	}
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("DRAW_STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("DRAW_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DRAW_PORT %q: %w", v, err)
		}
		c.Service.Port = port
	}
	if v := os.Getenv("MQTT_URL"); v != "" {
		c.MQTT.Broker = v
		c.MQTT.Enabled = true
	}
	if v := os.Getenv("DRAW_TLS_CERT"); v != "" {
		c.TLS.CertFile = v
	}
	if v := os.Getenv("DRAW_TLS_KEY"); v != "" {
		c.TLS.KeyFile = v
	}
	if v := os.Getenv("DRAW_ALERT_WEBHOOK_URL"); v != "" {
		c.Alerts.WebhookURL = v
	}
	if v := os.Getenv("SILICONFLOW_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("SILICONFLOW_MODEL"); v != "" {
		c.LLM.Model = v
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case DriverMemory, DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported storage driver: %q", c.Storage.Driver)
	}
	if c.Service.Port <= 0 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid service port: %d", c.Service.Port)
	}
	if c.LLM.Timeout != "" {
		if _, err := time.ParseDuration(c.LLM.Timeout); err != nil {
			return fmt.Errorf("invalid llm.timeout %q: %w", c.LLM.Timeout, err)
		}
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		return fmt.Errorf("tls requires both cert and key")
	}
	return nil
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Service.Port)
}

// TLSEnabled reports whether both certificate files are configured.
func (c *Config) TLSEnabled() bool {
	return c.TLS.CertFile != "" && c.TLS.KeyFile != ""
}

// Temperature returns the code generation temperature.
func (c *Config) Temperature() float64 {
	if c.Pipeline.Temperature == nil {
		return llm.DefaultTemperature
	}
	return *c.Pipeline.Temperature
}

// LLMSettings builds the provider settings. The API key is read from the
// configured variable using the *_FILE convention.
func (c *Config) LLMSettings() (llm.Settings, error) {
	key, err := ResolveSecret(c.LLM.APIKeyEnv)
	if err != nil {
		return llm.Settings{}, err
	}
	s := llm.Settings{
		Provider: c.LLM.Provider,
		BaseURL:  c.LLM.BaseURL,
		APIKey:   key,
		Model:    c.LLM.Model,
	}
	if c.LLM.Timeout != "" {
		s.Timeout, _ = time.ParseDuration(c.LLM.Timeout)
	}
	return s.WithDefaults(), nil
}
