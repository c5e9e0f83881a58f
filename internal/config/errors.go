package config

import (
	"errors"
	"fmt"
)

// ErrValidationFailed matches every *ValidationError.
var ErrValidationFailed = errors.New("validation failed")

// ParseError reports a config file that is not valid TOML or names a
// setting partscan does not know. Line and Column are zero when the decoder
// gave no position.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Setting string // dotted key of an unknown setting
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	loc := e.Path
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", loc, e.Line)
		if e.Column > 0 {
			loc = fmt.Sprintf("%s:%d", loc, e.Column)
		}
	}
	return fmt.Sprintf("config %s: %s", loc, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError describes an invalid setting.
type ValidationError struct {
	// Path is the setting path, such as "log.level".
	Path string
	// Message describes the problem.
	Message string
	// Value is the invalid value.
	Value any
	// Source is the file or environment variable the value came from, if
	// known.
	Source string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s: %s (value: %v, from %s)", e.Path, e.Message, e.Value, e.Source)
	}
	return fmt.Sprintf("%s: %s (value: %v)", e.Path, e.Message, e.Value)
}

// Is implements error matching for ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}
