package sensor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roman-kulish/gait-fusion/internal/fault"
)

// Trial holds the three recordings of one subject trial.
type Trial struct {
	ID         string
	Subject    string
	Name       string
	Kinetics   *Series
	EMG        *Series
	Kinematics *Series
}

// Paths lists the export files of one trial.
type Paths struct {
	Kinetics   string
	EMG        string
	Kinematics string
}

// TrialID returns the identifier used for caching and storage, e.g. "Sub1_T5".
func TrialID(subject, trial string) string {
	return subject + "_" + trial
}

// TrialPaths resolves the export layout <dir>/<subject>/<Modality>/<subject>_<Modality>_<trial>.csv.
func TrialPaths(dir, subject, trial string) Paths {
	path := func(folder string) string {
		return filepath.Join(dir, subject, folder, fmt.Sprintf("%s_%s_%s.csv", subject, folder, trial))
	}
	return Paths{
		Kinetics:   path("Kinetics"),
		EMG:        path("EMG"),
		Kinematics: path("Kinematics"),
	}
}

// LoadTrial parses all three exports of a trial. Every file must exist before any is parsed, so a
// missing modality fails the whole trial with a *fault.FormatError.
func LoadTrial(ctx context.Context, dir, subject, trial string, options ...func(r *Reader)) (fault.Result[*Trial], error) {
	paths := TrialPaths(dir, subject, trial)
	for _, p := range []string{paths.Kinetics, paths.EMG, paths.Kinematics} {
		if _, err := os.Stat(p); err != nil {
			return fault.Result[*Trial]{}, fault.NewFormatError(p, "missing input file")
		}
	}

	t := Trial{ID: TrialID(subject, trial), Subject: subject, Name: trial}
	var result fault.Result[*Trial]

	steps := []struct {
		path    string
		handler Handler
		dst     **Series
	}{
		{paths.Kinetics, NewKinetics(), &t.Kinetics},
		{paths.EMG, NewEMG(), &t.EMG},
		{paths.Kinematics, NewKinematics(), &t.Kinematics},
	}
	for _, step := range steps {
		r, err := ReadFile(ctx, step.path, step.handler, options...)
		if err != nil {
			return fault.Result[*Trial]{}, fmt.Errorf("error loading trial %s: %w", t.ID, err)
		}
		*step.dst = r.Value
		result.Add(r.Warnings...)
	}

	result.Value = &t
	return result, nil
}
