package portprobe

import (
	"errors"
	"fmt"
	"log"
)

// ErrorKind identifies the taxonomy of errors a probe task can terminate
// with. Kinds, not Go types, so callers can switch on them without a type
// assertion per error.
type ErrorKind int

const (
	// Cancelled means the outer cancellation token fired.
	Cancelled ErrorKind = iota
	// OpenFailed means a transport could not be opened, after any retries.
	OpenFailed
	// OpenFailedNoDevice is the retried special case of OpenFailed; it
	// escalates to OpenFailed once the retry budget is exhausted.
	OpenFailedNoDevice
	// Timeout means a command did not respond in its window.
	Timeout
	// ParseFailed means a response parser rejected the bytes.
	ParseFailed
	// Unsupported means a classifier actively aborted the probe.
	Unsupported
	// Generic is the fallthrough case, carrying only a message.
	Generic
)

func (k ErrorKind) String() string {
	switch k {
	case Cancelled:
		return "cancelled"
	case OpenFailed:
		return "open_failed"
	case OpenFailedNoDevice:
		return "open_failed_no_device"
	case Timeout:
		return "timeout"
	case ParseFailed:
		return "parse_failed"
	case Unsupported:
		return "unsupported"
	default:
		return "generic"
	}
}

// ProbeError is the structured error surfaced by a probe Task's completion.
type ProbeError struct {
	Kind   ErrorKind
	Reason string
}

func (e *ProbeError) Error() string {
	if e.Reason == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// NewProbeError builds a ProbeError of the given kind with a reason string.
func NewProbeError(kind ErrorKind, reason string) *ProbeError {
	return &ProbeError{Kind: kind, Reason: reason}
}

// KindOf unwraps err to a ErrorKind, defaulting to Generic for plain errors.
func KindOf(err error) ErrorKind {
	var pe *ProbeError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return Generic
}

// HandleMinorError logs a non-fatal error if present, as a single
// chokepoint for "log and move on" errors.
func HandleMinorError(err error) {
	if err != nil {
		log.Println("ERROR:", err)
	}
}

// HandleFatalError logs and terminates the process if err is non-nil. Only
// used for programmer errors at startup (bad config, bad flags), never on
// the probing hot path, where every failure must be recoverable as a typed
// ProbeError instead.
func HandleFatalError(err error) {
	if err != nil {
		log.Fatal("ERROR: ", err)
	}
}
