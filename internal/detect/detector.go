// Package detect turns a synchronized frame into heel strike and toe off events. Three detectors
// of increasing sophistication share one per-leg swing/stance state machine and one
// post-processing pass.
package detect

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/roman-kulish/gait-fusion/internal/fault"
	"github.com/roman-kulish/gait-fusion/internal/gait"
)

// Detector finds gait events in a frame. Detect fails only when ctx is done; problems with the
// signal content surface as warnings.
type Detector interface {
	Name() string
	Version() string
	// Fingerprint changes whenever an option changes, invalidating cached results.
	Fingerprint() string
	Detect(ctx context.Context, f *gait.Frame) (fault.Result[[]gait.Event], error)
}

// Factory builds a detector from the shared configuration.
type Factory func(cfg Config) (Detector, error)

// Registry maps detector names to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry holding the three built-in detectors.
func NewRegistry() *Registry {
	r := Registry{factories: make(map[string]Factory)}
	r.Register(ThresholdName, func(cfg Config) (Detector, error) { return NewThreshold(cfg.Threshold) })
	r.Register(RuleFusionName, func(cfg Config) (Detector, error) { return NewRuleFusion(cfg.RuleFusion) })
	r.Register(HeuristicName, func(cfg Config) (Detector, error) { return NewHeuristic(cfg.Heuristic) })
	return &r
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// New builds the named detector.
func (r *Registry) New(name string, cfg Config) (Detector, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("detect: unknown detector %q", name)
	}
	return f(cfg)
}

// Names lists the registered detectors, built-ins first in escalating order.
func (r *Registry) Names() []string {
	builtin := []string{ThresholdName, RuleFusionName, HeuristicName}

	var names, extra []string
	for _, n := range builtin {
		if _, ok := r.factories[n]; ok {
			names = append(names, n)
		}
	}
	for n := range r.factories {
		if !slices.Contains(builtin, n) {
			extra = append(extra, n)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

// noEventWarnings flags legs without any event.
func noEventWarnings(name string, events []gait.Event) []fault.ValidationWarning {
	var warnings []fault.ValidationWarning
	for _, leg := range gait.Legs {
		if !slices.ContainsFunc(events, func(e gait.Event) bool { return e.Leg == leg }) {
			warnings = append(warnings, fault.Warn(fault.NoEvents, name, "no events detected on the %s leg", leg))
		}
	}
	return warnings
}
