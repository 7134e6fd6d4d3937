package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Server:    ServerConfig{Host: "0.0.0.0", Port: 3000},
		DeepStack: DeepStackConfig{Host: "localhost", Port: 5000, Timeout: 10},
		Watchers:  []WatcherConfig{{Camera: "front_door"}},
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
deepstack:
  host: deepstack.local
  port: 5001
  api_key: secret
watchers:
  - camera: front_door
    name: Front Door
  - camera: garden
    topic: cameras/garden/image
history:
  enabled: false
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DeepStack.Host != "deepstack.local" {
		t.Errorf("DeepStack.Host = %q, want %q", cfg.DeepStack.Host, "deepstack.local")
	}
	if cfg.DeepStack.APIKey != "secret" {
		t.Errorf("DeepStack.APIKey = %q, want %q", cfg.DeepStack.APIKey, "secret")
	}
	if got := cfg.DeepStack.BaseURL(); got != "http://deepstack.local:5001" {
		t.Errorf("BaseURL() = %q, want %q", got, "http://deepstack.local:5001")
	}
	// Untouched keys keep their defaults.
	if cfg.DeepStack.Timeout != 10 {
		t.Errorf("DeepStack.Timeout = %d, want 10", cfg.DeepStack.Timeout)
	}
	if cfg.DeepStack.DetectOnly {
		t.Error("DeepStack.DetectOnly = true, want false by default")
	}
	if len(cfg.Watchers) != 2 {
		t.Fatalf("len(Watchers) = %d, want 2", len(cfg.Watchers))
	}
	if cfg.Watchers[1].Topic != "cameras/garden/image" {
		t.Errorf("Watchers[1].Topic = %q, want %q", cfg.Watchers[1].Topic, "cameras/garden/image")
	}
	if cfg.MQTT.BaseTopic != "facewatch" {
		t.Errorf("MQTT.BaseTopic = %q, want %q", cfg.MQTT.BaseTopic, "facewatch")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("FACEWATCH_DEEPSTACK_HOST", "10.0.0.9")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "watchers:\n  - camera: door\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DeepStack.Host != "10.0.0.9" {
		t.Errorf("DeepStack.Host = %q, want env override %q", cfg.DeepStack.Host, "10.0.0.9")
	}
}

func TestValidateRejectsBrokenConfigs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"server port out of range", func(c *Config) { c.Server.Port = 0 }},
		{"missing deepstack host", func(c *Config) { c.DeepStack.Host = "" }},
		{"deepstack port out of range", func(c *Config) { c.DeepStack.Port = 70000 }},
		{"zero timeout", func(c *Config) { c.DeepStack.Timeout = 0 }},
		{"no watchers", func(c *Config) { c.Watchers = nil }},
		{"empty camera", func(c *Config) { c.Watchers[0].Camera = "" }},
		{"duplicate camera", func(c *Config) {
			c.Watchers = append(c.Watchers, WatcherConfig{Camera: "front_door"})
		}},
		{"scan interval without snapshot url", func(c *Config) {
			c.Watchers[0].ScanInterval = 10
		}},
		{"save folder does not exist", func(c *Config) {
			c.Save.Folder = filepath.Join(os.TempDir(), "facewatch-no-such-dir")
		}},
		{"mqtt enabled without broker", func(c *Config) { c.MQTT.Enabled = true }},
		{"history enabled without file", func(c *Config) { c.History.Enabled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestValidateAcceptsExistingSaveFolder(t *testing.T) {
	cfg := validConfig()
	cfg.Save.Folder = t.TempDir()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestValidateRejectsSaveFolderThatIsAFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "not-a-dir")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()

	cfg := validConfig()
	cfg.Save.Folder = f.Name()
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil, want error for non-directory folder")
	}
}
