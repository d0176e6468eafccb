package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Automation.TimeoutMS != 120000 {
		t.Errorf("Automation.TimeoutMS = %d, want 120000", cfg.Automation.TimeoutMS)
	}
	if cfg.Storage.Type != "sqlite" {
		t.Errorf("Storage.Type = %q, want sqlite", cfg.Storage.Type)
	}
	if cfg.Storage.SQLite.Path == "" {
		t.Error("Storage.SQLite.Path is empty, want a default path")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SUPPORT_SERVER__PORT", "9191")
	t.Setenv("SUPPORT_AUTOMATION__ENDPOINT", "https://flows.example.com/webhook/support")
	t.Setenv("SUPPORT_AUTOMATION__API_KEY", "secret")
	t.Setenv("SUPPORT_STORAGE__TYPE", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9191 {
		t.Errorf("Server.Port = %d, want 9191", cfg.Server.Port)
	}
	if cfg.Automation.Endpoint != "https://flows.example.com/webhook/support" {
		t.Errorf("Automation.Endpoint = %q, want the env value", cfg.Automation.Endpoint)
	}
	if cfg.Automation.APIKey != "secret" {
		t.Errorf("Automation.APIKey = %q, want secret", cfg.Automation.APIKey)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("Storage.Type = %q, want memory", cfg.Storage.Type)
	}
}
