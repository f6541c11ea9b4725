package app

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/gait-fusion/internal/artifact"
	"github.com/roman-kulish/gait-fusion/internal/detect"
	"github.com/roman-kulish/gait-fusion/internal/evaluate"
	"github.com/roman-kulish/gait-fusion/internal/fault"
	"github.com/roman-kulish/gait-fusion/internal/segment"
	"github.com/roman-kulish/gait-fusion/internal/sensor"
	"github.com/roman-kulish/gait-fusion/internal/storage"
)

const defaultWorkers = 2

// Config represents the main application configuration
type Config struct {
	Settings   Settings         `yaml:"settings"`
	Input      InputConfig      `yaml:"input"`
	Segment    segment.Options  `yaml:"segment"`
	Detection  DetectionConfig  `yaml:"detection"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Output     OutputConfig     `yaml:"output"`
	Storage    StorageConfig    `yaml:"storage"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
	Workers  int    `yaml:"workers"` // Trials processed concurrently
}

// Level parses LogLevel, defaulting to info.
func (s Settings) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// InputConfig locates the sensor exports of one subject.
type InputConfig struct {
	DataDirectory string        `yaml:"dataDirectory"`
	Subject       string        `yaml:"subject"`
	MinDuration   float64       `yaml:"minDuration"` // Recording length below which quality is downgraded, s
	Trials        []TrialConfig `yaml:"trials"`
}

// TrialConfig names one trial and its experimental condition, e.g. "knee_locked".
type TrialConfig struct {
	Name      string `yaml:"name"`
	Condition string `yaml:"condition"`
}

// DetectionConfig selects the detectors to run and their options.
type DetectionConfig struct {
	Detectors []string      `yaml:"detectors"`
	Options   detect.Config `yaml:"options"`
}

// EvaluationConfig controls how detections are scored against ground truth.
type EvaluationConfig struct {
	Tolerance            float64 `yaml:"tolerance"`            // Matching window, s
	AnnotationsDir       string  `yaml:"annotationsDir"`       // Hand annotations; auto ground truth when empty or absent
	GroundTruthThreshold float64 `yaml:"groundTruthThreshold"` // Auto ground truth crossing level, N
}

// OutputConfig represents the per-trial output files
type OutputConfig struct {
	Directory       string `yaml:"directory"`
	MaxArtifactSize int64  `yaml:"maxArtifactSize"` // Bytes; larger artifacts are logged
	Report          bool   `yaml:"report"`          // Write the markdown accuracy report
}

// StorageConfig represents storage settings. An empty Path disables storage.
type StorageConfig struct {
	Path        string `yaml:"path"`
	Driver      string `yaml:"driver"`
	ReplaceRuns bool   `yaml:"replaceRuns"` // Delete earlier runs of a trial before saving new ones
}

// DefaultConfig returns a configuration with every optional value set.
func DefaultConfig() *Config {
	return &Config{
		Settings: Settings{LogLevel: "info", Workers: defaultWorkers},
		Input:    InputConfig{MinDuration: sensor.DefaultMinDuration},
		Segment:  segment.DefaultOptions(),
		Detection: DetectionConfig{
			Detectors: []string{detect.ThresholdName, detect.RuleFusionName, detect.HeuristicName},
			Options:   detect.DefaultConfig(),
		},
		Evaluation: EvaluationConfig{
			Tolerance:            evaluate.DefaultTolerance,
			GroundTruthThreshold: artifact.GroundTruthThreshold,
		},
		Output: OutputConfig{
			Directory:       "output",
			MaxArtifactSize: artifact.DefaultMaxSize,
			Report:          true,
		},
		Storage: StorageConfig{Driver: storage.DriverCGO},
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
	if c.Settings.Workers < 1 {
		return fault.NewConfigError("settings.workers", "must be at least 1")
	}

	if c.Input.DataDirectory == "" {
		return fault.NewConfigError("input.dataDirectory", "is required")
	}
	if c.Input.Subject == "" {
		return fault.NewConfigError("input.subject", "is required")
	}
	if len(c.Input.Trials) == 0 {
		return fault.NewConfigError("input.trials", "at least one trial is required")
	}
	seen := make(map[string]bool, len(c.Input.Trials))
	for _, t := range c.Input.Trials {
		if t.Name == "" {
			return fault.NewConfigError("input.trials", "trial name is required")
		}
		if seen[t.Name] {
			return fault.NewConfigError("input.trials", fmt.Sprintf("duplicate trial %q", t.Name))
		}
		seen[t.Name] = true
	}

	if err := c.Segment.Validate(); err != nil {
		return err
	}

	if len(c.Detection.Detectors) == 0 {
		return fault.NewConfigError("detection.detectors", "at least one detector is required")
	}
	known := detect.NewRegistry().Names()
	for _, name := range c.Detection.Detectors {
		if !slices.Contains(known, name) {
			return fault.NewConfigError("detection.detectors", fmt.Sprintf("unknown detector %q", name))
		}
	}
	if err := c.Detection.Options.Validate(); err != nil {
		return err
	}

	if c.Evaluation.Tolerance <= 0 {
		return fault.NewConfigError("evaluation.tolerance", "must be positive")
	}
	if c.Evaluation.GroundTruthThreshold <= 0 {
		return fault.NewConfigError("evaluation.groundTruthThreshold", "must be positive")
	}

	if c.Output.Directory == "" {
		return fault.NewConfigError("output.directory", "is required")
	}
	if c.Output.MaxArtifactSize <= 0 {
		return fault.NewConfigError("output.maxArtifactSize", "must be positive")
	}

	switch c.Storage.Driver {
	case storage.DriverCGO, storage.DriverPure:
	default:
		return fault.NewConfigError("storage.driver", fmt.Sprintf("unknown driver %q", c.Storage.Driver))
	}
	return nil
}
