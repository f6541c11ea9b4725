package app

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/gait-fusion/internal/fault"
	"github.com/roman-kulish/gait-fusion/internal/storage"
)

// Config represents the main application configuration
type Config struct {
	Settings    Settings          `yaml:"settings"`
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Annotations AnnotationsConfig `yaml:"annotations"`
	Auth        AuthConfig        `yaml:"auth"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// Level parses LogLevel, defaulting to info.
func (s Settings) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// ServerConfig represents the HTTP listener settings
type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// StorageConfig represents storage settings
type StorageConfig struct {
	Path   string `yaml:"path"`
	Driver string `yaml:"driver"`
}

// AnnotationsConfig locates the ground truth annotation files.
type AnnotationsConfig struct {
	Directory string `yaml:"directory"`
}

// AuthConfig protects annotation writes. Secret may be left empty and supplied through SecretEnv.
type AuthConfig struct {
	Secret    string        `yaml:"secret"`
	SecretEnv string        `yaml:"secretEnv"`
	TokenTTL  time.Duration `yaml:"tokenTTL"`
}

// DefaultConfig returns a configuration with every optional value set.
func DefaultConfig() *Config {
	return &Config{
		Settings: Settings{LogLevel: "info"},
		Server: ServerConfig{
			Listen:          ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage:     StorageConfig{Driver: storage.DriverCGO},
		Annotations: AnnotationsConfig{Directory: "annotations"},
		Auth:        AuthConfig{TokenTTL: 24 * time.Hour},
	}
}

// LoadConfig reads a YAML configuration over the defaults and validates it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	config := DefaultConfig()
	if err = yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	if config.Auth.Secret == "" && config.Auth.SecretEnv != "" {
		config.Auth.Secret = os.Getenv(config.Auth.SecretEnv)
	}
	if err = config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Settings.LogLevel)); err != nil {
		return fault.NewConfigError("settings.logLevel", fmt.Sprintf("unknown level %q", c.Settings.LogLevel))
	}
	if c.Server.Listen == "" {
		return fault.NewConfigError("server.listen", "is required")
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		return fault.NewConfigError("server", "timeouts cannot be negative")
	}
	if c.Storage.Path == "" {
		return fault.NewConfigError("storage.path", "is required")
	}
	switch c.Storage.Driver {
	case storage.DriverCGO, storage.DriverPure:
	default:
		return fault.NewConfigError("storage.driver", fmt.Sprintf("unknown driver %q", c.Storage.Driver))
	}
	if c.Annotations.Directory == "" {
		return fault.NewConfigError("annotations.directory", "is required")
	}
	if c.Auth.SecretEnv != "" && c.Auth.Secret == "" {
		return fault.NewConfigError("auth.secretEnv", fmt.Sprintf("environment variable %s is empty", c.Auth.SecretEnv))
	}
	if c.Auth.TokenTTL <= 0 {
		return fault.NewConfigError("auth.tokenTTL", "must be positive")
	}
	return nil
}
