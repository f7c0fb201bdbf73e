package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoader_LoadDefaults(t *testing.T) {
	os.Setenv("TOPOFILE", "/tmp/net.yaml")
	defer os.Unsetenv("TOPOFILE")

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "topology-svc" {
		t.Errorf("expected app name 'topology-svc', got %s", cfg.App.Name)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected http port 8080, got %d", cfg.HTTP.Port)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Log.Level)
	}
	if cfg.Metrics.Port != 9090 {
		t.Errorf("expected metrics port 9090, got %d", cfg.Metrics.Port)
	}
	if cfg.Graph.DefaultOptimizer != "integer_linear_programming" {
		t.Errorf("expected default optimizer ilp, got %s", cfg.Graph.DefaultOptimizer)
	}
}

func TestLoader_LoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
app:
  name: custom-service
  version: 2.0.0
  environment: staging
http:
  port: 8181
log:
  level: debug
graph:
  topology_file: /etc/topology/net.yaml
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	loader := NewLoader(WithConfigPaths(configPath))
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "custom-service" {
		t.Errorf("expected app name 'custom-service', got %s", cfg.App.Name)
	}
	if cfg.App.Version != "2.0.0" {
		t.Errorf("expected version '2.0.0', got %s", cfg.App.Version)
	}
	if cfg.HTTP.Port != 8181 {
		t.Errorf("expected port 8181, got %d", cfg.HTTP.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Log.Level)
	}
}

func TestLoader_LoadFromEnv(t *testing.T) {
	os.Setenv("TOPOLOGY_APP_NAME", "env-service")
	os.Setenv("TOPOLOGY_HTTP_PORT", "8282")
	os.Setenv("TOPOLOGY_GRAPH_TOPOLOGY_FILE", "/tmp/net.yaml")
	defer func() {
		os.Unsetenv("TOPOLOGY_APP_NAME")
		os.Unsetenv("TOPOLOGY_HTTP_PORT")
		os.Unsetenv("TOPOLOGY_GRAPH_TOPOLOGY_FILE")
	}()

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "env-service" {
		t.Errorf("expected app name 'env-service', got %s", cfg.App.Name)
	}
	if cfg.HTTP.Port != 8282 {
		t.Errorf("expected port 8282, got %d", cfg.HTTP.Port)
	}
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
app:
  name: file-service
http:
  port: 8383
graph:
  topology_file: /tmp/net.yaml
`
	os.WriteFile(configPath, []byte(configContent), 0644)

	os.Setenv("TOPOLOGY_APP_NAME", "env-override")
	defer os.Unsetenv("TOPOLOGY_APP_NAME")

	cfg, err := NewLoader(WithConfigPaths(configPath)).Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "env-override" {
		t.Errorf("expected env override, got %s", cfg.App.Name)
	}
	// Port should come from file since it's not overridden by env.
	if cfg.HTTP.Port != 8383 {
		t.Errorf("expected port from file 8383, got %d", cfg.HTTP.Port)
	}
}

func TestLoader_WithEnvPrefix(t *testing.T) {
	os.Setenv("CUSTOM_APP_NAME", "custom-prefix-service")
	os.Setenv("CUSTOM_GRAPH_TOPOLOGY_FILE", "/tmp/net.yaml")
	defer func() {
		os.Unsetenv("CUSTOM_APP_NAME")
		os.Unsetenv("CUSTOM_GRAPH_TOPOLOGY_FILE")
	}()

	cfg, err := NewLoader(WithEnvPrefix("CUSTOM_")).Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "custom-prefix-service" {
		t.Errorf("expected 'custom-prefix-service', got %s", cfg.App.Name)
	}
}

func TestLoader_TopofileEnvOverridesAll(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	os.WriteFile(configPath, []byte("graph:\n  topology_file: /from/file.yaml\n"), 0644)

	os.Setenv("TOPOFILE", "/from/env.yaml")
	defer os.Unsetenv("TOPOFILE")

	cfg, err := NewLoader(WithConfigPaths(configPath)).Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Graph.TopologyFile != "/from/env.yaml" {
		t.Errorf("expected TOPOFILE to win, got %s", cfg.Graph.TopologyFile)
	}
}

func TestMustLoad_Success(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("MustLoad should not panic with valid config: %v", r)
		}
	}()

	os.Setenv("TOPOFILE", "/tmp/net.yaml")
	defer os.Unsetenv("TOPOFILE")

	cfg := MustLoad()
	if cfg == nil {
		t.Error("expected non-nil config")
	}
}

func TestLoad_Simple(t *testing.T) {
	os.Setenv("TOPOFILE", "/tmp/net.yaml")
	defer os.Unsetenv("TOPOFILE")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg == nil {
		t.Error("expected non-nil config")
	}
}

func TestLoader_ConfigEnvVar(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "custom-config.yaml")

	configContent := `
app:
  name: config-env-var-service
graph:
  topology_file: /tmp/net.yaml
`
	os.WriteFile(configPath, []byte(configContent), 0644)

	os.Setenv("CONFIG_PATH", configPath)
	defer os.Unsetenv("CONFIG_PATH")

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "config-env-var-service" {
		t.Errorf("expected 'config-env-var-service', got %s", cfg.App.Name)
	}
}
