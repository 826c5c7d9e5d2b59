// Package report defines the fatal diagnostics raised by the code generator.
//
// There is no recoverable error category inside the back end. A contract
// violation found by a pass is an InternalError; a register budget that can
// never admit a coloring is a ConfigError. Passes panic with InternalError
// deep inside recursive walks and convert it back into an error at their
// public entry points with Recover.
package report

import (
	"fmt"
)

// InternalError reports a broken contract between compiler phases.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string {
	return "internal error: " + e.Msg
}

// ConfigError reports a configuration that cannot produce valid output.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Msg
}

// Internal aborts the current pass with an InternalError.
func Internal(format string, args ...interface{}) {
	panic(&InternalError{Msg: fmt.Sprintf(format, args...)})
}

// Config builds a ConfigError.
func Config(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// Recover turns an InternalError or ConfigError panic into *err.
// Other panics are re-raised. Use it as `defer report.Recover(&err)`.
func Recover(err *error) {
	r := recover()
	if r == nil {
		return
	}

	switch e := r.(type) {
	case *InternalError:
		*err = e
	case *ConfigError:
		*err = e
	default:
		panic(r)
	}
}
