package detect

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"

	"github.com/roman-kulish/gait-fusion/internal/fault"
	"github.com/roman-kulish/gait-fusion/internal/gait"
)

// Detector names.
const (
	ThresholdName  = "threshold"
	RuleFusionName = "rule_fusion"
	HeuristicName  = "heuristic_fusion"
)

const version = "1.0.0"

// ThresholdOptions configures the force-only detector.
type ThresholdOptions struct {
	HeelStrike float64 `yaml:"heelStrike" json:"heelStrike"` // N
	ToeOff     float64 `yaml:"toeOff" json:"toeOff"`         // N
	MinStance  float64 `yaml:"minStance" json:"minStance"`   // s
	MinSwing   float64 `yaml:"minSwing" json:"minSwing"`     // s
	Smoothing  int     `yaml:"smoothing" json:"smoothing"`   // trailing moving average, samples
	MaxForce   float64 `yaml:"maxForce" json:"maxForce"`     // force scoring 1, N
}

// DefaultThresholdOptions returns 50 N / 20 N thresholds with a 10-sample smoothing window.
func DefaultThresholdOptions() ThresholdOptions {
	return ThresholdOptions{
		HeelStrike: 50,
		ToeOff:     20,
		MinStance:  0.3,
		MinSwing:   0.2,
		Smoothing:  10,
		MaxForce:   1000,
	}
}

func (o *ThresholdOptions) Validate() error {
	switch {
	case o.HeelStrike <= 0:
		return fault.NewConfigError("threshold.heelStrike", "must be positive")
	case o.ToeOff <= 0 || o.ToeOff > o.HeelStrike:
		return fault.NewConfigError("threshold.toeOff", "must be positive and not above the heel strike threshold")
	case o.MinStance < 0 || o.MinSwing < 0:
		return fault.NewConfigError("threshold.minStance", "durations cannot be negative")
	case o.Smoothing < 1:
		return fault.NewConfigError("threshold.smoothing", "must be at least 1 sample")
	case o.MaxForce <= o.HeelStrike:
		return fault.NewConfigError("threshold.maxForce", "must exceed the heel strike threshold")
	}
	return nil
}

// RuleFusionOptions configures the force + EMG rule-based detector.
type RuleFusionOptions struct {
	ForceThreshold      float64  `yaml:"forceThreshold" json:"forceThreshold"`           // heel strike threshold, N
	ToeOffRatio         float64  `yaml:"toeOffRatio" json:"toeOffRatio"`                 // toe off threshold as a fraction of the heel strike threshold
	ConstrainedLeg      gait.Leg `yaml:"constrainedLeg" json:"constrainedLeg"`           // leg whose thresholds are reduced
	ConstrainedFactor   float64  `yaml:"constrainedFactor" json:"constrainedFactor"`     // threshold multiplier for the constrained leg
	MinStance           float64  `yaml:"minStance" json:"minStance"`                     // s
	Smoothing           int      `yaml:"smoothing" json:"smoothing"`                     // force moving average, samples
	EMGSmoothing        int      `yaml:"emgSmoothing" json:"emgSmoothing"`               // centered envelope half window, samples
	EMGThreshold        float64  `yaml:"emgThreshold" json:"emgThreshold"`               // activation level, V
	EMGWindow           float64  `yaml:"emgWindow" json:"emgWindow"`                     // confirmation half window, s
	EMGFraction         float64  `yaml:"emgFraction" json:"emgFraction"`                 // share of window samples that must be active
	ToeOffEMGRatio      float64  `yaml:"toeOffEmgRatio" json:"toeOffEmgRatio"`           // hamstring threshold as a fraction of emgThreshold
	MaxForce            float64  `yaml:"maxForce" json:"maxForce"`                       // N
	MaxEMG              float64  `yaml:"maxEmg" json:"maxEmg"`                           // V
	ForceWeight         float64  `yaml:"forceWeight" json:"forceWeight"`                 // blend weight of the force confidence
	EMGWeight           float64  `yaml:"emgWeight" json:"emgWeight"`                     // blend weight of the EMG confidence
	Agreement           float64  `yaml:"agreement" json:"agreement"`                     // both confidences above this boost the score
	Boost               float64  `yaml:"boost" json:"boost"`                             // agreement multiplier
	MinScore            float64  `yaml:"minScore" json:"minScore"`                       // events at or below are dropped
	AlternationOverride float64  `yaml:"alternationOverride" json:"alternationOverride"` // off-turn heel strikes above this are kept
}

// DefaultRuleFusionOptions returns a 30 N threshold reduced by 0.6 on the left leg.
func DefaultRuleFusionOptions() RuleFusionOptions {
	return RuleFusionOptions{
		ForceThreshold:      30,
		ToeOffRatio:         0.4,
		ConstrainedLeg:      gait.Left,
		ConstrainedFactor:   0.6,
		MinStance:           0.2,
		Smoothing:           10,
		EMGSmoothing:        50,
		EMGThreshold:        5e-5,
		EMGWindow:           0.1,
		EMGFraction:         0.3,
		ToeOffEMGRatio:      0.8,
		MaxForce:            1000,
		MaxEMG:              0.001,
		ForceWeight:         0.7,
		EMGWeight:           0.3,
		Agreement:           0.7,
		Boost:               1.2,
		MinScore:            0.2,
		AlternationOverride: 0.8,
	}
}

func (o *RuleFusionOptions) Validate() error {
	switch {
	case o.ForceThreshold <= 0:
		return fault.NewConfigError("ruleFusion.forceThreshold", "must be positive")
	case o.ToeOffRatio <= 0 || o.ToeOffRatio > 1:
		return fault.NewConfigError("ruleFusion.toeOffRatio", "must be in (0, 1]")
	case o.ConstrainedLeg != "" && !o.ConstrainedLeg.Valid():
		return fault.NewConfigError("ruleFusion.constrainedLeg", "must be left, right or empty")
	case o.ConstrainedFactor <= 0 || o.ConstrainedFactor > 1:
		return fault.NewConfigError("ruleFusion.constrainedFactor", "must be in (0, 1]")
	case o.MinStance < 0:
		return fault.NewConfigError("ruleFusion.minStance", "cannot be negative")
	case o.Smoothing < 1 || o.EMGSmoothing < 0:
		return fault.NewConfigError("ruleFusion.smoothing", "invalid smoothing window")
	case o.EMGThreshold <= 0 || o.MaxEMG <= o.EMGThreshold:
		return fault.NewConfigError("ruleFusion.emgThreshold", "must be positive and below maxEmg")
	case o.EMGWindow <= 0:
		return fault.NewConfigError("ruleFusion.emgWindow", "must be positive")
	case o.EMGFraction < 0 || o.EMGFraction >= 1:
		return fault.NewConfigError("ruleFusion.emgFraction", "must be in [0, 1)")
	case o.ToeOffEMGRatio <= 0:
		return fault.NewConfigError("ruleFusion.toeOffEmgRatio", "must be positive")
	case o.MaxForce <= o.ForceThreshold:
		return fault.NewConfigError("ruleFusion.maxForce", "must exceed the force threshold")
	case math.Abs(o.ForceWeight+o.EMGWeight-1) > weightTolerance:
		return fault.NewConfigError("ruleFusion.forceWeight", "force and EMG weights must sum to 1")
	case o.Boost < 1:
		return fault.NewConfigError("ruleFusion.boost", "must be at least 1")
	case o.MinScore < 0 || o.MinScore >= 1:
		return fault.NewConfigError("ruleFusion.minScore", "must be in [0, 1)")
	}
	return nil
}

const weightTolerance = 1e-6

// Weights blends the heuristic feature scores.
type Weights struct {
	Force      float64 `yaml:"force" json:"force"`
	EMG        float64 `yaml:"emg" json:"emg"`
	Kinematics float64 `yaml:"kinematics" json:"kinematics"`
	Asymmetry  float64 `yaml:"asymmetry" json:"asymmetry"`
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	return w.Force + w.EMG + w.Kinematics + w.Asymmetry
}

// HeuristicOptions configures the constraint-aware heuristic fusion detector.
type HeuristicOptions struct {
	HeelStrike     float64 `yaml:"heelStrike" json:"heelStrike"`         // base heel strike threshold, N
	ToeOff         float64 `yaml:"toeOff" json:"toeOff"`                 // base toe off threshold, N
	MinRatio       float64 `yaml:"minRatio" json:"minRatio"`             // lower clamp of the per-leg threshold scale
	MinStance      float64 `yaml:"minStance" json:"minStance"`           // s
	Smoothing      int     `yaml:"smoothing" json:"smoothing"`           // force moving average, samples
	FeatureWindow  float64 `yaml:"featureWindow" json:"featureWindow"`   // feature aggregation window, s
	EMGSmoothing   int     `yaml:"emgSmoothing" json:"emgSmoothing"`     // centered envelope half window, samples
	EMGReference   float64 `yaml:"emgReference" json:"emgReference"`     // envelope quantile that scores 1
	Weights        Weights `yaml:"weights" json:"weights"`               // must sum to 1
	AdaptationGain float64 `yaml:"adaptationGain" json:"adaptationGain"` // confidence boost per unit of adaptation
	MinConfidence  float64 `yaml:"minConfidence" json:"minConfidence"`   // events below are discarded
	MinCycle       float64 `yaml:"minCycle" json:"minCycle"`             // same-leg same-type gap below which the later event is suppressed, s
	MaxCycle       float64 `yaml:"maxCycle" json:"maxCycle"`             // gap above which an event starts a new walking bout, s
}

// DefaultHeuristicOptions returns 50 N / 20 N base thresholds and 0.35/0.25/0.20/0.20 weights.
func DefaultHeuristicOptions() HeuristicOptions {
	return HeuristicOptions{
		HeelStrike:     50,
		ToeOff:         20,
		MinRatio:       0.1,
		MinStance:      0.2,
		Smoothing:      10,
		FeatureWindow:  0.1,
		EMGSmoothing:   50,
		EMGReference:   0.95,
		Weights:        Weights{Force: 0.35, EMG: 0.25, Kinematics: 0.20, Asymmetry: 0.20},
		AdaptationGain: 0.2,
		MinConfidence:  0.7,
		MinCycle:       0.4,
		MaxCycle:       2.5,
	}
}

func (o *HeuristicOptions) Validate() error {
	w := o.Weights
	switch {
	case o.HeelStrike <= 0:
		return fault.NewConfigError("heuristic.heelStrike", "must be positive")
	case o.ToeOff <= 0 || o.ToeOff > o.HeelStrike:
		return fault.NewConfigError("heuristic.toeOff", "must be positive and not above the heel strike threshold")
	case o.MinRatio <= 0 || o.MinRatio > 1:
		return fault.NewConfigError("heuristic.minRatio", "must be in (0, 1]")
	case o.MinStance < 0:
		return fault.NewConfigError("heuristic.minStance", "cannot be negative")
	case o.Smoothing < 1 || o.EMGSmoothing < 0:
		return fault.NewConfigError("heuristic.smoothing", "invalid smoothing window")
	case o.FeatureWindow <= 0:
		return fault.NewConfigError("heuristic.featureWindow", "must be positive")
	case o.EMGReference <= 0 || o.EMGReference > 1:
		return fault.NewConfigError("heuristic.emgReference", "must be in (0, 1]")
	case w.Force < 0 || w.EMG < 0 || w.Kinematics < 0 || w.Asymmetry < 0:
		return fault.NewConfigError("heuristic.weights", "weights cannot be negative")
	case math.Abs(w.Sum()-1) > weightTolerance:
		return fault.NewConfigError("heuristic.weights", "weights must sum to 1")
	case o.AdaptationGain < 0:
		return fault.NewConfigError("heuristic.adaptationGain", "cannot be negative")
	case o.MinConfidence < 0 || o.MinConfidence > 1:
		return fault.NewConfigError("heuristic.minConfidence", "must be in [0, 1]")
	case o.MinCycle < 0 || o.MaxCycle <= o.MinCycle:
		return fault.NewConfigError("heuristic.maxCycle", "must exceed minCycle")
	}
	return nil
}

// Config carries the options of every detector.
type Config struct {
	Threshold  ThresholdOptions  `yaml:"threshold" json:"threshold"`
	RuleFusion RuleFusionOptions `yaml:"ruleFusion" json:"ruleFusion"`
	Heuristic  HeuristicOptions  `yaml:"heuristic" json:"heuristic"`
}

// DefaultConfig returns the defaults of all three detectors.
func DefaultConfig() Config {
	return Config{
		Threshold:  DefaultThresholdOptions(),
		RuleFusion: DefaultRuleFusionOptions(),
		Heuristic:  DefaultHeuristicOptions(),
	}
}

func (c *Config) Validate() error {
	if err := c.Threshold.Validate(); err != nil {
		return err
	}
	if err := c.RuleFusion.Validate(); err != nil {
		return err
	}
	return c.Heuristic.Validate()
}

// fingerprint hashes the canonical JSON of a detector's identity and options. Any option change
// produces a new fingerprint.
func fingerprint(name string, options any) string {
	b, err := json.Marshal(struct {
		Name    string `json:"name"`
		Version string `json:"version"`
		Options any    `json:"options"`
	}{name, version, options})
	if err != nil {
		panic(err) // options are plain structs of numbers and strings
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
