package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := Config{
		HTTP:      HTTPConfig{Port: 8080},
		Embedding: EmbeddingConfig{APIKey: "sk-test"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_Drivers(t *testing.T) {
	tests := []struct {
		driver  string
		addrs   []string
		wantErr bool
	}{
		{DriverMemory, nil, false},
		{DriverRedis, []string{"localhost:6379"}, false},
		{DriverValkey, []string{"localhost:6379"}, false},
		{DriverRedis, nil, true},
		{DriverValkey, []string{}, true},
		{"postgres", []string{"localhost:5432"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			cfg := validConfig()
			cfg.Database.Driver = tt.driver
			cfg.Database.Addrs = tt.addrs
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_CacheNeedsRedis(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Cache.Enabled = true

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for cache with memory driver")
	}
	expected := "embedding.cache requires a redis or valkey database"
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_MissingAPIKey(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.APIKey = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestValidate_DefaultKAboveMax(t *testing.T) {
	cfg := validConfig()
	cfg.Search.DefaultK = 10
	cfg.Search.MaxK = 5

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for default_k > max_k")
	}
}

func TestValidate_MaxInputCharsCeiling(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.MaxInputChars = 2000
	if err := cfg.Validate(); err != nil {
		t.Fatalf("2000 must be accepted: %v", err)
	}

	_, err := Parse([]byte(`
http:
  port: 8080
embedding:
  api_key: sk-test
  max_input_chars: 5000
`))
	if err == nil || !strings.Contains(err.Error(), "max_input_chars") {
		t.Fatalf("expected max_input_chars rejection, got %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Database.Driver != DriverMemory {
		t.Errorf("expected Driver=memory, got %q", cfg.Database.Driver)
	}
	if cfg.Embedding.MaxInputChars != 2000 {
		t.Errorf("expected MaxInputChars=2000, got %d", cfg.Embedding.MaxInputChars)
	}
	if cfg.Embedding.Workers != 4 {
		t.Errorf("expected Workers=4, got %d", cfg.Embedding.Workers)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("expected default model, got %q", cfg.Embedding.Model)
	}
	if cfg.Search.DefaultK != 5 {
		t.Errorf("expected DefaultK=5, got %d", cfg.Search.DefaultK)
	}
	if cfg.NHTSA.TimeoutSec != 10 {
		t.Errorf("expected NHTSA TimeoutSec=10, got %d", cfg.NHTSA.TimeoutSec)
	}
	if cfg.Storage.KeyPrefix != "defectscope:" {
		t.Errorf("expected KeyPrefix='defectscope:', got %q", cfg.Storage.KeyPrefix)
	}
	if cfg.SessionTTL() != time.Hour {
		t.Errorf("expected session TTL 1h, got %v", cfg.SessionTTL())
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:      HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Database:  DatabaseConfig{Driver: DriverValkey, ReadinessTimeout: 15},
		Embedding: EmbeddingConfig{MaxInputChars: 500, Workers: 8},
		Search:    SearchConfig{DefaultK: 10},
		Storage:   StorageConfig{KeyPrefix: "custom:"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Database.Driver != DriverValkey || !cfg.UsesRedis() {
		t.Errorf("expected valkey driver, got %q", cfg.Database.Driver)
	}
	if cfg.Embedding.MaxInputChars != 500 || cfg.Embedding.Workers != 8 {
		t.Errorf("embedding overrides lost: %+v", cfg.Embedding)
	}
	if cfg.Search.DefaultK != 10 {
		t.Errorf("expected DefaultK=10, got %d", cfg.Search.DefaultK)
	}
	if cfg.Storage.KeyPrefix != "custom:" {
		t.Errorf("expected KeyPrefix='custom:', got %q", cfg.Storage.KeyPrefix)
	}
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("DS_TEST_KEY", "sk-from-env")

	yaml := `
http:
  port: ${DS_TEST_PORT:-9090}
embedding:
  api_key: ${DS_TEST_KEY}
events:
  nats_url: ${DS_TEST_NATS:-}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("expected port 9090 from default, got %d", cfg.HTTP.Port)
	}
	if cfg.Embedding.APIKey != "sk-from-env" {
		t.Errorf("expected api key from env, got %q", cfg.Embedding.APIKey)
	}
	if cfg.Events.NATSURL != "" {
		t.Errorf("expected empty nats url, got %q", cfg.Events.NATSURL)
	}
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("http:\n  port: 8080\n"))
	if err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Fatalf("expected validation error, got %v", err)
	}
}
