package partition

import (
	"errors"
	"fmt"
)

// Errors returned by partitioner operations.
var (
	// ErrAlreadyConnected indicates Connect was called on a connected partitioner.
	ErrAlreadyConnected = errors.New("partitioner already connected")

	// ErrNotConnected indicates an operation that needs a buffer was called
	// before Connect or after Disconnect.
	ErrNotConnected = errors.New("partitioner not connected")

	// ErrBusy indicates a re-entrant call made while a scan is running.
	ErrBusy = errors.New("partitioner is scanning")

	// ErrInvalidEdit indicates an edit notification outside the buffer bounds.
	ErrInvalidEdit = errors.New("invalid edit")

	// ErrOffsetOutOfRange indicates a query offset outside the buffer.
	ErrOffsetOutOfRange = errors.New("offset out of range")

	// ErrBreak is returned by Session methods once the scan has reached a
	// point where the remaining tree is known to be valid. Scanners return it
	// unchanged from Execute. It never reaches callers of the Partitioner.
	ErrBreak = errors.New("scan break")

	// ErrScanProtocol matches every *ScanProtocolError.
	ErrScanProtocol = errors.New("scan protocol violation")

	// ErrBufferAccess matches every *BufferAccessError.
	ErrBufferAccess = errors.New("buffer access error")
)

// ScanProtocolError describes a Session call that broke the scan contract,
// such as a non-monotonic add or a node overlapping a live sibling.
type ScanProtocolError struct {
	// Op is the session operation that failed ("add", "expand", "restart").
	Op string
	// Offset is the offset passed to the operation.
	Offset int
	// Reason describes the violation.
	Reason string
}

// Error implements the error interface.
func (e *ScanProtocolError) Error() string {
	return fmt.Sprintf("scan protocol violation in %s at %d: %s", e.Op, e.Offset, e.Reason)
}

// Is implements error matching for ScanProtocolError.
func (e *ScanProtocolError) Is(target error) bool {
	return target == ErrScanProtocol
}

// BufferAccessError describes a failed read of the text buffer during a scan
// or restart computation.
type BufferAccessError struct {
	Offset int
	Length int
	// Err is the error returned by the buffer.
	Err error
}

// Error implements the error interface.
func (e *BufferAccessError) Error() string {
	return fmt.Sprintf("buffer access [%d:%d): %v", e.Offset, e.Offset+e.Length, e.Err)
}

// Is implements error matching for BufferAccessError.
func (e *BufferAccessError) Is(target error) bool {
	return target == ErrBufferAccess
}

// Unwrap returns the underlying buffer error.
func (e *BufferAccessError) Unwrap() error {
	return e.Err
}
