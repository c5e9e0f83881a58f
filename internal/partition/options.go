package partition

import (
	"github.com/sirupsen/logrus"
)

// Option configures a Partitioner.
type Option func(*Partitioner)

// WithLogger sets the logger used for recoveries, validation failures and
// scan summaries. Without it the Partitioner logs nothing.
func WithLogger(log logrus.FieldLogger) Option {
	return func(p *Partitioner) {
		if log != nil {
			p.base = log
		}
	}
}

// WithAutoBreak enables or disables ending incremental scans early once the
// rest of the tree is known to be valid. It is enabled by default.
// Disabling it makes every rescan run to the end of the buffer.
func WithAutoBreak(enabled bool) Option {
	return func(p *Partitioner) {
		p.autoBreak = enabled
	}
}

// WithValidation enables checking the tree invariants after every scan.
// Failures are logged at error level.
func WithValidation(enabled bool) Option {
	return func(p *Partitioner) {
		p.validate = enabled
	}
}
