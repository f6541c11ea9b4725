package artifact

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/roman-kulish/gait-fusion/internal/fault"
	"github.com/roman-kulish/gait-fusion/internal/gait"
)

// ManualMethod is the detection method given to hand-annotated events.
const ManualMethod = "manual_annotation"

// ErrNoAnnotations is returned by LoadAnnotations when the trial has no annotation file.
var ErrNoAnnotations = errors.New("artifact: no annotations")

// TrialInfo heads an annotation set.
type TrialInfo struct {
	TrialID         string    `json:"trial_id"`
	TotalEvents     int       `json:"total_events"`
	AnnotationDate  time.Time `json:"annotation_date"`
	DurationSeconds float64   `json:"duration_seconds"`
	Annotator       string    `json:"annotator,omitempty"`
	SamplingRate    float64   `json:"sampling_rate,omitempty"`
}

// Annotation is one hand-placed event. Type is either a bare event type with Leg set, or the
// combined "<leg>_<type>" form with Leg empty.
type Annotation struct {
	Time             float64   `json:"time"`
	Type             string    `json:"type"`
	Leg              gait.Leg  `json:"leg,omitempty"`
	AnnotationMethod string    `json:"annotation_method,omitempty"`
	Timestamp        time.Time `json:"timestamp,omitzero"`
}

// Event converts the annotation into a gait event with full confidence.
func (a Annotation) Event() (gait.Event, error) {
	if a.Time < 0 || math.IsNaN(a.Time) || math.IsInf(a.Time, 0) {
		return gait.Event{}, fmt.Errorf("annotation time %v is not a non-negative finite number", a.Time)
	}
	leg, typ := a.Leg, gait.EventType(a.Type)
	if leg == "" {
		l, t, ok := strings.Cut(a.Type, "_")
		if !ok {
			return gait.Event{}, fmt.Errorf("annotation type %q has no leg", a.Type)
		}
		leg, typ = gait.Leg(l), gait.EventType(t)
	}
	if !leg.Valid() || !typ.Valid() {
		return gait.Event{}, fmt.Errorf("unknown annotation %q on leg %q", a.Type, a.Leg)
	}

	method := a.AnnotationMethod
	if method == "" {
		method = ManualMethod
	}
	return gait.Event{Time: a.Time, Type: typ, Leg: leg, Score: 1, Method: method}, nil
}

// AnnotationSet is the document exported by the annotation tool.
type AnnotationSet struct {
	TrialInfo   TrialInfo         `json:"trial_info"`
	Methodology map[string]string `json:"methodology,omitempty"`
	Events      []Annotation      `json:"events"`
}

// NewAnnotationSet builds a set from events, sorted by time.
func NewAnnotationSet(trialID, annotator string, duration float64, events []gait.Event, now time.Time) *AnnotationSet {
	s := &AnnotationSet{
		TrialInfo: TrialInfo{
			TrialID:         trialID,
			TotalEvents:     len(events),
			AnnotationDate:  now.UTC(),
			DurationSeconds: duration,
			Annotator:       annotator,
		},
		Methodology: map[string]string{
			"event_definition": "heel strike at force onset, toe off at force release",
			"review":           "visual inspection of force and EMG traces",
		},
		Events: make([]Annotation, len(events)),
	}
	for i, e := range events {
		s.Events[i] = Annotation{
			Time:             e.Time,
			Type:             string(e.Type),
			Leg:              e.Leg,
			AnnotationMethod: ManualMethod,
			Timestamp:        now.UTC(),
		}
	}
	slices.SortStableFunc(s.Events, func(a, b Annotation) int { return cmp.Compare(a.Time, b.Time) })
	return s
}

// GaitEvents converts every annotation. Entries that cannot be converted are dropped with a warning.
func (s *AnnotationSet) GaitEvents() fault.Result[[]gait.Event] {
	var r fault.Result[[]gait.Event]
	for i, a := range s.Events {
		e, err := a.Event()
		if err != nil {
			r.Add(fault.Warn(fault.InvalidValues, s.TrialInfo.TrialID, "annotation %d: %v", i, err))
			continue
		}
		r.Value = append(r.Value, e)
	}
	slices.SortStableFunc(r.Value, func(a, b gait.Event) int { return cmp.Compare(a.Time, b.Time) })
	return r
}

// Validate rejects sets that cannot belong to trialID.
func (s *AnnotationSet) Validate(trialID string) error {
	if s.TrialInfo.TrialID != "" && s.TrialInfo.TrialID != trialID {
		return fmt.Errorf("annotation set belongs to trial %q, not %q", s.TrialInfo.TrialID, trialID)
	}
	for i, a := range s.Events {
		if _, err := a.Event(); err != nil {
			return fmt.Errorf("annotation %d: %w", i, err)
		}
	}
	return nil
}

// AnnotationPath returns where the annotation set of trialID is kept in dir.
func AnnotationPath(dir, trialID string) string {
	return filepath.Join(dir, trialID+"_ground_truth_events.json")
}

// LoadAnnotations reads the annotation set of trialID from dir.
func LoadAnnotations(dir, trialID string) (*AnnotationSet, error) {
	b, err := os.ReadFile(AnnotationPath(dir, trialID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoAnnotations
	}
	if err != nil {
		return nil, fmt.Errorf("error reading annotations: %w", err)
	}

	var s AnnotationSet
	if err = json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("error decoding annotations of %s: %w", trialID, err)
	}
	return &s, nil
}

// SaveAnnotations writes s for trialID into dir, replacing any previous set.
func SaveAnnotations(dir, trialID string, s *AnnotationSet) error {
	s.TrialInfo.TrialID = trialID
	s.TrialInfo.TotalEvents = len(s.Events)

	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding annotations: %w", err)
	}
	if err = os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating annotation directory: %w", err)
	}

	path := AnnotationPath(dir, trialID)
	tmp := path + ".tmp"
	if err = os.WriteFile(tmp, b, 0644); err != nil {
		return fmt.Errorf("error writing annotations: %w", err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("error replacing annotations: %w", err)
	}
	return nil
}
