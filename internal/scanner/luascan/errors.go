package luascan

import (
	"errors"
	"fmt"
)

// Errors returned by script loading and execution.
var (
	// ErrClosed is returned when using a closed scanner.
	ErrClosed = errors.New("lua scanner is closed")

	// ErrTimeout is returned when a script call exceeds the timeout.
	ErrTimeout = errors.New("lua execution timeout")

	// ErrInvalidScript indicates a script missing a required declaration.
	ErrInvalidScript = errors.New("invalid scanner script")
)

// ScriptError wraps an error raised while running a script.
type ScriptError struct {
	// Script is the chunk name of the script.
	Script string
	// Func is the script function that failed.
	Func string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ScriptError) Error() string {
	if e.Func == "" {
		return fmt.Sprintf("lua script %s: %v", e.Script, e.Err)
	}
	return fmt.Sprintf("lua script %s: %s: %v", e.Script, e.Func, e.Err)
}

// Unwrap returns the underlying error.
func (e *ScriptError) Unwrap() error {
	return e.Err
}
