// Package fault defines the stable, machine-readable error classes every
// lifecycle command reports. Callers match with errors.Is against the
// class variables; the message carries the specific guard that failed.
package fault

import "fmt"

// Fault is a stable error class: the Code is the contract, the Message
// names the occurrence.
type Fault struct {
	Code    string
	Message string
}

func (f *Fault) Error() string {
	if f.Message == "" {
		return f.Code
	}
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

// Is matches on Code so wrapped and re-messaged faults still compare
// equal to their class.
func (f *Fault) Is(target error) bool {
	t, ok := target.(*Fault)
	return ok && f.Code == t.Code
}

// WithMessage returns a new Fault with the same Code but a specific message.
func (f *Fault) WithMessage(msg string) *Fault {
	return &Fault{Code: f.Code, Message: msg}
}

// WithMessagef returns a new Fault with a formatted message.
func (f *Fault) WithMessagef(format string, args ...any) *Fault {
	return &Fault{Code: f.Code, Message: fmt.Sprintf(format, args...)}
}

// The error classes of the lifecycle kernel.
var (
	// ErrNotFound: the session id is unknown to the store.
	ErrNotFound = &Fault{Code: "E_NOT_FOUND"}

	// ErrInvalidInput: the submission or command payload is malformed.
	ErrInvalidInput = &Fault{Code: "E_INVALID_INPUT"}

	// ErrInvalidState: the command is not valid in the session's current
	// stage, or violates approval ordering. State is never mutated when
	// this is returned.
	ErrInvalidState = &Fault{Code: "E_INVALID_STATE"}

	// ErrExtractionFailure: the clause extractor failed during analysis.
	ErrExtractionFailure = &Fault{Code: "E_EXTRACTION_FAILURE"}

	// ErrScoringFailure: the risk scorer failed during analysis.
	ErrScoringFailure = &Fault{Code: "E_SCORING_FAILURE"}
)
