package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Volume   VolumeConfig   `yaml:"volume" json:"volume"`
	App      AppConfig      `yaml:"app" json:"app"`
	Catalog  CatalogConfig  `yaml:"catalog" json:"catalog"`
	Provider ProviderConfig `yaml:"provider" json:"provider"`
	Cloud    CloudConfig    `yaml:"cloud" json:"cloud"`
	Picker   PickerConfig   `yaml:"picker" json:"picker"`
	Report   ReportConfig   `yaml:"report" json:"report"`
	Log      LogConfig      `yaml:"log" json:"log"`
}

// VolumeConfig maps the primary volume (/storage/emulated/0) onto a host
// directory.
type VolumeConfig struct {
	Root string `yaml:"root" json:"root"`
}

// AppConfig is the identity the worker acts as.
type AppConfig struct {
	Package string `yaml:"package" json:"package"`
	Grants  Grants `yaml:"grants" json:"grants"`
}

type Grants struct {
	ReadMedia             bool `yaml:"read_media" json:"read_media"`
	MediaLocation         bool `yaml:"media_location" json:"media_location"`
	ManageExternalStorage bool `yaml:"manage_external_storage" json:"manage_external_storage"`
}

type CatalogConfig struct {
	Path string `yaml:"path" json:"path"`
}

type ProviderConfig struct {
	// Listen is where the built-in document provider serves the volume.
	// Ignored when URL points at an external provider.
	Listen string `yaml:"listen" json:"listen"`
	URL    string `yaml:"url" json:"url"`
	Auth   Auth   `yaml:"auth" json:"auth"`
}

type Auth struct {
	User string `yaml:"user" json:"user"`
	Pass string `yaml:"pass" json:"pass"`
}

// CloudConfig describes the remote document root. It is optional: with no
// endpoint the cloud authority is unavailable.
type CloudConfig struct {
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	Region    string `yaml:"region" json:"region"`
	Bucket    string `yaml:"bucket" json:"bucket"`
	AccessKey string `yaml:"access_key" json:"access_key"`
	SecretKey string `yaml:"secret_key" json:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl" json:"use_ssl"`
}

type PickerConfig struct {
	Listen string `yaml:"listen" json:"listen"`
	// Timeout bounds the wait for a picker grant. Unset means
	// DefaultPickerTimeout; a negative value waits until the invocation is
	// cancelled.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

type ReportConfig struct {
	// Output is a file the report is written to in addition to stdout.
	Output string `yaml:"output" json:"output"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"` // "text" or "json"
}

const (
	DefaultPackage       = "com.abc.storage_verifier"
	DefaultProviderAddr  = "127.0.0.1:0"
	DefaultPickerAddr    = "127.0.0.1:8765"
	DefaultPickerTimeout = 2 * time.Minute
)

func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Always override with environment variables
	if err := processEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Volume.Root == "" {
		cfg.Volume.Root = filepath.Join(os.TempDir(), "storageverifier", "volume")
	}
	if cfg.App.Package == "" {
		cfg.App.Package = DefaultPackage
	}
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = filepath.Join(filepath.Dir(cfg.Volume.Root), "catalog.db")
	}
	if cfg.Provider.Listen == "" {
		cfg.Provider.Listen = DefaultProviderAddr
	}
	if cfg.Picker.Listen == "" {
		cfg.Picker.Listen = DefaultPickerAddr
	}
	switch {
	case cfg.Picker.Timeout == 0:
		cfg.Picker.Timeout = DefaultPickerTimeout
	case cfg.Picker.Timeout < 0:
		cfg.Picker.Timeout = 0
	}
	if cfg.Cloud.Region == "" {
		cfg.Cloud.Region = "us-east-1"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func processEnvOverrides(cfg *Config) error {
	if v := os.Getenv("VOLUME_ROOT"); v != "" {
		cfg.Volume.Root = v
	}
	if v := os.Getenv("APP_PACKAGE"); v != "" {
		cfg.App.Package = v
	}
	if v := os.Getenv("APP_GRANTS"); v != "" {
		grants, err := ParseGrants(v)
		if err != nil {
			return err
		}
		cfg.App.Grants = grants
	}
	if v := os.Getenv("CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}
	if v := os.Getenv("PROVIDER_LISTEN"); v != "" {
		cfg.Provider.Listen = v
	}
	if v := os.Getenv("PROVIDER_URL"); v != "" {
		cfg.Provider.URL = v
	}
	if v := os.Getenv("PROVIDER_USER"); v != "" {
		cfg.Provider.Auth.User = v
	}
	if v := os.Getenv("PROVIDER_PASS"); v != "" {
		cfg.Provider.Auth.Pass = v
	}
	if v := os.Getenv("CLOUD_ENDPOINT"); v != "" {
		cfg.Cloud.Endpoint = v
	}
	if v := os.Getenv("CLOUD_REGION"); v != "" {
		cfg.Cloud.Region = v
	}
	if v := os.Getenv("CLOUD_BUCKET"); v != "" {
		cfg.Cloud.Bucket = v
	}
	if v := os.Getenv("CLOUD_ACCESS_KEY"); v != "" {
		cfg.Cloud.AccessKey = v
	}
	if v := os.Getenv("CLOUD_SECRET_KEY"); v != "" {
		cfg.Cloud.SecretKey = v
	}
	if v := os.Getenv("CLOUD_USE_SSL"); v != "" {
		cfg.Cloud.UseSSL = v == "true" || v == "1"
	}
	if v := os.Getenv("PICKER_LISTEN"); v != "" {
		cfg.Picker.Listen = v
	}
	if v := os.Getenv("PICKER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid PICKER_TIMEOUT %q: %w", v, err)
		}
		cfg.Picker.Timeout = d
	}
	if v := os.Getenv("REPORT_OUTPUT"); v != "" {
		cfg.Report.Output = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	return nil
}

// ParseGrants parses a comma separated grant list such as
// "read_media,media_location".
func ParseGrants(s string) (Grants, error) {
	var g Grants
	for _, part := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "":
		case "read_media":
			g.ReadMedia = true
		case "media_location":
			g.MediaLocation = true
		case "manage_external_storage":
			g.ManageExternalStorage = true
		case "none":
			g = Grants{}
		default:
			return Grants{}, fmt.Errorf("unknown grant %q (supported: read_media, media_location, manage_external_storage)", part)
		}
	}
	return g, nil
}

// HasCloud reports whether a remote document root is configured.
func (c *Config) HasCloud() bool {
	return c.Cloud.Endpoint != "" && c.Cloud.Bucket != ""
}

// SaveConfig saves the configuration struct to the specified file path
func SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
