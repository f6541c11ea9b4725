package fault

import (
	"fmt"
	"log/slog"
)

// Warning categories.
const (
	LengthMismatch   Category = "length_mismatch"
	NonFinite        Category = "non_finite"
	OutOfRange       Category = "out_of_range"
	SkippedRows      Category = "skipped_rows"
	InvalidValues    Category = "invalid_values"
	MissingModality  Category = "missing_modality"
	ShortRecording   Category = "short_recording"
	SegmentQuality   Category = "segment_quality"
	LoadingAsymmetry Category = "loading_asymmetry"
	NoEvents         Category = "no_events"
	RuleRejections   Category = "rule_rejections"
	SilentChannel    Category = "silent_channel"
	Unconfirmed      Category = "unconfirmed_transitions"
)

// Category classifies a ValidationWarning.
type Category string

// ValidationWarning is a non-fatal finding. Processing continues with best-effort data.
type ValidationWarning struct {
	Category Category `json:"category"`
	Source   string   `json:"source"`
	Message  string   `json:"message"`
	Count    int      `json:"count,omitempty"` // Number of affected samples or transitions, when counted
}

func (w ValidationWarning) String() string {
	return fmt.Sprintf("[%s] %s: %s", w.Category, w.Source, w.Message)
}

// Warn builds a ValidationWarning with a formatted message.
func Warn(category Category, source, format string, args ...any) ValidationWarning {
	return ValidationWarning{Category: category, Source: source, Message: fmt.Sprintf(format, args...)}
}

// WarnN builds a ValidationWarning that also records how many items it concerns.
func WarnN(category Category, source string, n int, format string, args ...any) ValidationWarning {
	w := Warn(category, source, format, args...)
	w.Count = n
	return w
}

// Count sums the counts of the warnings of category c.
func Count(warnings []ValidationWarning, c Category) int {
	var n int
	for _, w := range warnings {
		if w.Category == c {
			n += w.Count
		}
	}
	return n
}

// Result carries a stage's output together with its advisory warnings. Fatal conditions are
// returned as a separate error, never inside a Result.
type Result[T any] struct {
	Value    T
	Warnings []ValidationWarning
}

// Ok wraps a value with no warnings.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Add appends warnings to the result.
func (r *Result[T]) Add(w ...ValidationWarning) {
	r.Warnings = append(r.Warnings, w...)
}

// HasWarnings reports whether any warning was recorded.
func (r Result[T]) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Has reports whether a warning of the given category was recorded.
func (r Result[T]) Has(c Category) bool {
	for _, w := range r.Warnings {
		if w.Category == c {
			return true
		}
	}
	return false
}

// Log writes every warning at Warn level.
func (r Result[T]) Log(logger *slog.Logger) {
	for _, w := range r.Warnings {
		logger.Warn(w.Message, slog.String("category", string(w.Category)), slog.String("source", w.Source))
	}
}

// Then carries the warnings of r into a result holding v.
func Then[T, U any](r Result[T], v U) Result[U] {
	return Result[U]{Value: v, Warnings: r.Warnings}
}
