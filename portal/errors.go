package portal

import (
	"errors"
	"fmt"
)

// AuthError means the portal rejected our credentials or showed an error
// banner on login. Never retried; surfaces as exit code 2.
type AuthError struct {
	Portal string
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s auth failed: %s", e.Portal, e.Reason)
}

// TransientError covers timeouts, missing selectors, and navigation
// failures that a fresh attempt may clear.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// ExtractionError means an export completed but failed a completeness
// check. Partial data is never accepted; surfaces as exit code 3.
type ExtractionError struct {
	Report string
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction of %s failed: %s", e.Report, e.Reason)
}

// IsAuth reports whether err is (or wraps) an AuthError
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsTransient reports whether err is (or wraps) a TransientError
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsExtraction reports whether err is (or wraps) an ExtractionError
func IsExtraction(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee)
}
