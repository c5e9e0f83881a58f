package rules

import (
	"errors"
	"fmt"
)

// Errors returned by definition loading and scanning.
var (
	// ErrUnsupportedFormat indicates a definition file with an unknown extension.
	ErrUnsupportedFormat = errors.New("unsupported definition format")

	// ErrInvalidDefinition matches every *DefinitionError.
	ErrInvalidDefinition = errors.New("invalid language definition")

	// ErrUnknownLanguage indicates a lookup of a language that is not registered.
	ErrUnknownLanguage = errors.New("unknown language")

	// ErrForeignNode indicates a node whose type the scanner does not produce
	// at its position in the tree.
	ErrForeignNode = errors.New("node not produced by this scanner")
)

// ParseError reports a definition file that could not be decoded. Line is
// zero when the decoder gave no position.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	switch {
	case e.Line > 0 && e.Column > 0:
		return fmt.Sprintf("definition %s:%d:%d: %s", e.Path, e.Line, e.Column, e.Message)
	case e.Line > 0:
		return fmt.Sprintf("definition %s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("definition %s: %s", e.Path, e.Message)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// DefinitionError describes an invalid field of a language definition.
type DefinitionError struct {
	// Language is the definition name.
	Language string
	// Field is the path of the offending field, such as "regions[1].end".
	Field string
	// Message describes the problem.
	Message string
}

// Error implements the error interface.
func (e *DefinitionError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("language %q: %s", e.Language, e.Message)
	}
	return fmt.Sprintf("language %q: %s: %s", e.Language, e.Field, e.Message)
}

// Is implements error matching for DefinitionError.
func (e *DefinitionError) Is(target error) bool {
	return target == ErrInvalidDefinition
}
