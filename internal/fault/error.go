package fault

import "fmt"

// FormatError is a fatal input error: a header sampling rate mismatch, a missing input file or an
// empty master timeline. It aborts the whole trial-processing run.
type FormatError struct {
	Source string // File or modality that failed
	msg    string
}

func NewFormatError(source, msg string) *FormatError {
	return &FormatError{Source: source, msg: msg}
}

func (e *FormatError) Error() string {
	if e.Source == "" {
		return e.msg
	}
	return fmt.Sprintf("%s: %s", e.Source, e.msg)
}

// ConfigError is a custom error type for parameters rejected at the configuration boundary.
type ConfigError struct {
	Field string
	msg   string
}

func NewConfigError(field, msg string) *ConfigError {
	return &ConfigError{Field: field, msg: msg}
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return e.msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.msg)
}
