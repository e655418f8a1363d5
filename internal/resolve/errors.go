package resolve

import (
	"errors"
	"fmt"
)

// Code categorizes resolution failures.
//
// All resolution-stage failures are terminal for that attempt: the
// resolver never retries internally. Retry policy belongs to the
// caller, which may re-run the whole conversion (Resolve is idempotent
// against an already-canonical reference).
type Code string

const (
	// CodeInvalidReference indicates the source reference does not
	// have the expected Wikipedia article shape.
	CodeInvalidReference Code = "INVALID_REFERENCE"

	// CodeNotFound indicates the lookup service reports no such page.
	CodeNotFound Code = "NOT_FOUND"

	// CodeNoMapping indicates the page exists but carries no Wikidata
	// cross-reference.
	CodeNoMapping Code = "NO_MAPPING"

	// CodeTransport wraps any HTTP-layer failure of the lookup call.
	CodeTransport Code = "TRANSPORT"
)

// Error is a resolution failure with a machine-readable code.
type Error struct {
	// Code identifies the failure category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Source is the reference being resolved.
	Source string

	// Err is the underlying error, if any (transport failures).
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (source=%s): %v", e.Code, e.Message, e.Source, e.Err)
	}
	return fmt.Sprintf("%s: %s (source=%s)", e.Code, e.Message, e.Source)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf extracts the resolution failure code from an error.
// Returns the empty Code when the error is not a resolve.Error.
func CodeOf(err error) Code {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsInvalidReference returns true for CodeInvalidReference errors.
func IsInvalidReference(err error) bool { return CodeOf(err) == CodeInvalidReference }

// IsNotFound returns true for CodeNotFound errors.
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }

// IsNoMapping returns true for CodeNoMapping errors.
func IsNoMapping(err error) bool { return CodeOf(err) == CodeNoMapping }

// IsTransport returns true for CodeTransport errors.
func IsTransport(err error) bool { return CodeOf(err) == CodeTransport }
