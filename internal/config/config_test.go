package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
volume:
  root: "/srv/volume"
app:
  package: "com.example.worker"
  grants:
    read_media: true
provider:
  listen: "127.0.0.1:9000"
  auth:
    user: "dav"
    pass: "orig-pass"
picker:
  timeout: 30s
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	t.Setenv("VOLUME_ROOT", "/env/volume")
	t.Setenv("PROVIDER_USER", "env-dav")
	t.Setenv("APP_GRANTS", "media_location,manage_external_storage")
	t.Setenv("PICKER_TIMEOUT", "5s")

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Volume.Root != "/env/volume" {
		t.Errorf("Expected Volume.Root to be '/env/volume', got '%s'", cfg.Volume.Root)
	}
	if cfg.Provider.Auth.User != "env-dav" {
		t.Errorf("Expected Provider.Auth.User to be 'env-dav', got '%s'", cfg.Provider.Auth.User)
	}
	if cfg.Picker.Timeout != 5*time.Second {
		t.Errorf("Expected Picker.Timeout to be 5s, got %v", cfg.Picker.Timeout)
	}
	want := Grants{MediaLocation: true, ManageExternalStorage: true}
	if cfg.App.Grants != want {
		t.Errorf("Expected grants %+v, got %+v", want, cfg.App.Grants)
	}

	// Verify non-overridden values remain same
	if cfg.Provider.Auth.Pass != "orig-pass" {
		t.Errorf("Expected Provider.Auth.Pass to be 'orig-pass', got '%s'", cfg.Provider.Auth.Pass)
	}
	if cfg.App.Package != "com.example.worker" {
		t.Errorf("Expected App.Package to remain unchanged, got '%s'", cfg.App.Package)
	}
	if cfg.Provider.Listen != "127.0.0.1:9000" {
		t.Errorf("Expected Provider.Listen to remain unchanged, got '%s'", cfg.Provider.Listen)
	}
}

func TestLoadConfigNoFile(t *testing.T) {
	configPath := "/non/existent/path/config.yaml"

	t.Setenv("VOLUME_ROOT", "/env/volume")

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Volume.Root != "/env/volume" {
		t.Errorf("Expected Volume.Root to be '/env/volume', got '%s'", cfg.Volume.Root)
	}
	if cfg.Catalog.Path != filepath.Join("/env", "catalog.db") {
		t.Errorf("Expected catalog next to the volume, got '%s'", cfg.Catalog.Path)
	}
	if cfg.Picker.Timeout != DefaultPickerTimeout {
		t.Errorf("Expected default picker timeout, got %v", cfg.Picker.Timeout)
	}
}

func TestLoadConfigInvalidEnv(t *testing.T) {
	t.Run("bad timeout", func(t *testing.T) {
		t.Setenv("PICKER_TIMEOUT", "soon")
		if _, err := LoadConfig(""); err == nil {
			t.Fatal("Expected LoadConfig to fail on an unparsable PICKER_TIMEOUT")
		}
	})

	t.Run("bad grant", func(t *testing.T) {
		t.Setenv("APP_GRANTS", "read_media,root")
		if _, err := LoadConfig(""); err == nil {
			t.Fatal("Expected LoadConfig to fail on an unknown grant")
		}
	})
}
