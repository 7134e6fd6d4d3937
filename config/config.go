package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	DeepStack DeepStackConfig `mapstructure:"deepstack"`
	Watchers  []WatcherConfig `mapstructure:"watchers"`
	Save      SaveConfig      `mapstructure:"save"`
	Teach     TeachConfig     `mapstructure:"teach"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	History   HistoryConfig   `mapstructure:"history"`
	UI        UIConfig        `mapstructure:"ui"`
}

// ServerConfig holds the HTTP listener and asset locations.
type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	TemplateDir string `mapstructure:"template_dir"`
	LocalesDir  string `mapstructure:"locales_dir"`
}

// LogConfig holds log level and optional log file.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DeepStackConfig holds the connection settings for the face service.
type DeepStackConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	APIKey     string `mapstructure:"api_key"`
	Timeout    int    `mapstructure:"timeout"`
	DetectOnly bool   `mapstructure:"detect_only"`
}

// BaseURL returns the service root, e.g. http://localhost:5000.
func (d DeepStackConfig) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", d.Host, d.Port)
}

// WatcherConfig describes one camera source.
type WatcherConfig struct {
	Camera       string `mapstructure:"camera"`
	Name         string `mapstructure:"name"`
	Topic        string `mapstructure:"topic"`
	SnapshotURL  string `mapstructure:"snapshot_url"`
	ScanInterval int    `mapstructure:"scan_interval"`
}

// SaveConfig controls snapshot persistence for processed frames.
type SaveConfig struct {
	Folder      string `mapstructure:"folder"`
	Timestamped bool   `mapstructure:"timestamped"`
	Annotate    bool   `mapstructure:"annotate"`
}

// TeachConfig holds the directory allow-list for the teach action.
type TeachConfig struct {
	AllowedPaths []string `mapstructure:"allowed_paths"`
}

// MQTTConfig holds the MQTT client settings.
type MQTTConfig struct {
	Enabled       bool                `mapstructure:"enabled"`
	Broker        string              `mapstructure:"broker"`
	Port          int                 `mapstructure:"port"`
	Username      string              `mapstructure:"username"`
	Password      string              `mapstructure:"password"`
	ClientID      string              `mapstructure:"client_id"`
	BaseTopic     string              `mapstructure:"base_topic"`
	HomeAssistant HomeAssistantConfig `mapstructure:"homeassistant"`
}

// HomeAssistantConfig controls MQTT discovery publishing.
type HomeAssistantConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	DiscoveryPrefix string `mapstructure:"discovery_prefix"`
}

// HistoryConfig controls the detection history store.
type HistoryConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	File          string `mapstructure:"file"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// UIConfig controls the web dashboard.
type UIConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	DefaultLanguage string `mapstructure:"default_language"`
}

// Load reads the configuration from file, environment variables and
// defaults, validates it and prepares required directories.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			log.Warnf("Config file %s does not exist, using defaults", configPath)
		} else {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			log.Infof("Config loaded from %s", configPath)
		}
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("FACEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := ensureDirectories(&cfg); err != nil {
		return nil, fmt.Errorf("failed to create required directories: %w", err)
	}

	return &cfg, nil
}

// Validate rejects configurations that cannot produce a working
// instance. Nothing is created here; bad values abort startup before
// any watcher exists.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.DeepStack.Host == "" {
		return fmt.Errorf("deepstack.host must be set")
	}
	if c.DeepStack.Port < 1 || c.DeepStack.Port > 65535 {
		return fmt.Errorf("deepstack.port %d out of range", c.DeepStack.Port)
	}
	if c.DeepStack.Timeout < 1 {
		return fmt.Errorf("deepstack.timeout must be at least 1 second")
	}
	if len(c.Watchers) == 0 {
		return fmt.Errorf("at least one watcher must be configured")
	}
	seen := make(map[string]bool, len(c.Watchers))
	for i, w := range c.Watchers {
		if w.Camera == "" {
			return fmt.Errorf("watchers[%d]: camera must be set", i)
		}
		if seen[w.Camera] {
			return fmt.Errorf("watchers[%d]: duplicate camera %q", i, w.Camera)
		}
		seen[w.Camera] = true
		if w.ScanInterval > 0 && w.SnapshotURL == "" {
			return fmt.Errorf("watchers[%d]: scan_interval requires snapshot_url", i)
		}
	}
	if c.Save.Folder != "" {
		info, err := os.Stat(c.Save.Folder)
		if err != nil {
			return fmt.Errorf("save.folder %s: %w", c.Save.Folder, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("save.folder %s is not a directory", c.Save.Folder)
		}
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker must be set when mqtt is enabled")
	}
	if c.History.Enabled && c.History.File == "" {
		return fmt.Errorf("history.file must be set when history is enabled")
	}
	return nil
}

// setDefaults registers the default values for all settings.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.template_dir", "web/templates")
	v.SetDefault("server.locales_dir", "web/locales")

	// Log defaults; empty file means stdout only
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	// DeepStack defaults
	v.SetDefault("deepstack.host", "localhost")
	v.SetDefault("deepstack.port", 5000)
	v.SetDefault("deepstack.api_key", "")
	v.SetDefault("deepstack.timeout", 10)
	v.SetDefault("deepstack.detect_only", false)

	// Snapshot saving defaults
	v.SetDefault("save.folder", "")
	v.SetDefault("save.timestamped", false)
	v.SetDefault("save.annotate", false)

	// Teach defaults: nothing is allowed until configured
	v.SetDefault("teach.allowed_paths", []string{})

	// MQTT defaults
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.client_id", "facewatch")
	v.SetDefault("mqtt.base_topic", "facewatch")
	v.SetDefault("mqtt.homeassistant.enabled", true)
	v.SetDefault("mqtt.homeassistant.discovery_prefix", "homeassistant")

	// History defaults
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.file", "data/facewatch.db")
	v.SetDefault("history.retention_days", 30)

	// UI defaults
	v.SetDefault("ui.enabled", true)
	v.SetDefault("ui.default_language", "en")
}

// ensureDirectories creates the directories the instance writes to.
// The snapshot folder is exempt: it must already exist (validated
// above), matching the save semantics.
func ensureDirectories(cfg *Config) error {
	if cfg.Log.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	if cfg.History.Enabled && cfg.History.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.History.File), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	return nil
}
