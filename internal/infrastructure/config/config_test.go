package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testSigningKey = "test-signing-key-at-least-32-chars!!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
service:
  id: "test-hearth"
mongo:
  uri: "mongodb://localhost:27017"
  database: "hearth_test"
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8080
security:
  signing_key: "` + testSigningKey + `"
features:
  failure_policy: "abort"
  queue_capacity: 4
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Service.ID != "test-hearth" {
		t.Errorf("Service.ID = %q, want %q", cfg.Service.ID, "test-hearth")
	}
	if cfg.Mongo.Database != "hearth_test" {
		t.Errorf("Mongo.Database = %q, want %q", cfg.Mongo.Database, "hearth_test")
	}
	if cfg.Features.FailurePolicy != "abort" {
		t.Errorf("Features.FailurePolicy = %q, want %q", cfg.Features.FailurePolicy, "abort")
	}
	if cfg.Features.QueueCapacity != 4 {
		t.Errorf("Features.QueueCapacity = %d, want 4", cfg.Features.QueueCapacity)
	}
	// Defaults survive partial config
	if cfg.Features.RequestTimeout != 10 {
		t.Errorf("Features.RequestTimeout = %d, want default 10", cfg.Features.RequestTimeout)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_MissingSigningKey(t *testing.T) {
	content := `
service:
  id: "test-hearth"
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected error for missing signing key, got nil")
	}
	if !strings.Contains(err.Error(), "signing_key") {
		t.Errorf("error = %v, want mention of signing_key", err)
	}
}

func TestLoad_WeakSigningKey(t *testing.T) {
	content := `
security:
  signing_key: "short"
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Error("Load() expected error for weak signing key, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	content := `
mongo:
  uri: "mongodb://file-value:27017"
security:
  signing_key: "` + testSigningKey + `"
`
	t.Setenv("HEARTH_MONGO_URI", "mongodb://env-value:27017")
	t.Setenv("HEARTH_MQTT_HOST", "broker.example.com")

	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Mongo.URI != "mongodb://env-value:27017" {
		t.Errorf("Mongo.URI = %q, want env override", cfg.Mongo.URI)
	}
	if cfg.MQTT.Broker.Host != "broker.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want env override", cfg.MQTT.Broker.Host)
	}
}

func TestValidate_FailurePolicy(t *testing.T) {
	tests := []struct {
		name    string
		policy  string
		wantErr bool
	}{
		{"continue is valid", "continue", false},
		{"abort is valid", "abort", false},
		{"unknown policy rejected", "shrug", true},
		{"empty policy rejected", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Security.SigningKey = testSigningKey
			cfg.Features.FailurePolicy = tt.policy

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetRequestTimeout(t *testing.T) {
	cfg := defaultConfig()
	if got := cfg.GetRequestTimeout().Seconds(); got != 10 {
		t.Errorf("GetRequestTimeout() = %vs, want 10s", got)
	}
}
