package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Service.Port != 8080 || cfg.Addr() != ":8080" {
		t.Errorf("unexpected port %d", cfg.Service.Port)
	}
	if cfg.Storage.Driver != DriverMemory {
		t.Errorf("expected memory driver, got %s", cfg.Storage.Driver)
	}
	if cfg.Pipeline.Mode != "full" {
		t.Errorf("expected full pipeline, got %s", cfg.Pipeline.Mode)
	}
	if cfg.Temperature() != 0.2 {
		t.Errorf("expected default temperature, got %v", cfg.Temperature())
	}
	if cfg.MQTT.Enabled || cfg.TLSEnabled() {
		t.Error("mqtt and tls must be off by default")
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
version: 1
service:
  port: 9090
pipeline:
  mode: svg-only
  delegate_svg: true
  temperature: 0
llm:
  provider: gemini
  timeout: 30s
storage:
  driver: sqlite
  sqlite_path: /tmp/draw.db
mqtt:
  enabled: true
  topic_prefix: lab
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Service.Port != 9090 || cfg.Pipeline.Mode != "svg-only" || !cfg.Pipeline.DelegateSVG {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.Temperature() != 0 {
		t.Errorf("explicit zero temperature must be kept, got %v", cfg.Temperature())
	}
	if cfg.Storage.Driver != DriverSQLite || cfg.Storage.SQLitePath != "/tmp/draw.db" {
		t.Errorf("unexpected storage: %+v", cfg.Storage)
	}
	if cfg.MQTT.TopicPrefix != "lab" || cfg.MQTT.ClientID != "diagram-engine" {
		t.Errorf("unexpected mqtt: %+v", cfg.MQTT)
	}

	t.Setenv("SILICONFLOW_API_KEY", "sk-test")
	s, err := cfg.LLMSettings()
	if err != nil {
		t.Fatalf("LLMSettings: %v", err)
	}
	if s.Provider != "gemini" || s.Model != "gemini-2.5-flash" || s.Timeout != 30*time.Second || s.APIKey != "sk-test" {
		t.Errorf("unexpected settings: %+v", s)
	}
}

func TestLoad_Rejects(t *testing.T) {
	tests := map[string]string{
		"version":  "version: 2\n",
		"driver":   "version: 1\nstorage:\n  driver: mongo\n",
		"timeout":  "version: 1\nllm:\n  timeout: soon\n",
		"tls half": "version: 1\ntls:\n  cert_file: a.pem\n",
		"yaml":     "version: [1\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("DRAW_CONFIG", writeConfig(t, "version: 1\nstorage:\n  driver: sqlite\n"))
	t.Setenv("DRAW_STORAGE_DRIVER", "postgres")
	t.Setenv("DRAW_PORT", "7000")
	t.Setenv("MQTT_URL", "tcp://broker:1883")
	t.Setenv("DRAW_TLS_CERT", "cert.pem")
	t.Setenv("DRAW_TLS_KEY", "key.pem")
	t.Setenv("DRAW_ALERT_WEBHOOK_URL", "http://hooks.local/x")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Storage.Driver != DriverPostgres || cfg.Service.Port != 7000 {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
	if !cfg.MQTT.Enabled || cfg.MQTT.Broker != "tcp://broker:1883" {
		t.Errorf("MQTT_URL should enable mqtt: %+v", cfg.MQTT)
	}
	if !cfg.TLSEnabled() || cfg.Alerts.WebhookURL != "http://hooks.local/x" {
		t.Errorf("unexpected tls/alerts: %+v %+v", cfg.TLS, cfg.Alerts)
	}
}

func TestFromEnv_BadPort(t *testing.T) {
	t.Setenv("DRAW_CONFIG", "")
	t.Setenv("DRAW_PORT", "http")
	if _, err := FromEnv(); err == nil {
		t.Error("expected error for non-numeric port")
	}
}
