package openpix

import (
	"errors"
	"fmt"
)

type ErrorCode int

const (
	Unknown ErrorCode = iota
	// ValidationFailure covers malformed or missing input; raised before any
	// store is touched.
	ValidationFailure
	// AuthorizationFailure covers JWT subject mismatches.
	AuthorizationFailure
	// NoConnection signals use of the graph store before Connect; a
	// programming-contract violation.
	NoConnection
	// NoTransactionInProgress signals Commit without a matching Begin; a
	// programming-contract violation.
	NoTransactionInProgress
	// IndexOperationFailed signals a search-index operation that exhausted
	// its retries.
	IndexOperationFailed
	// CompensationFailure signals a failed compensating action after a
	// destructive step; logged distinctly because the stores may now
	// disagree.
	CompensationFailure
)

// Error is the openpix custom error carrying a code for boundary translation.
type Error struct {
	Code     ErrorCode
	Err      error
	UserData any
}

func (e Error) Error() string {
	return fmt.Errorf("error code: %d, user data: %v, details: %w", e.Code, e.UserData, e.Err).Error()
}

func (e Error) Unwrap() error {
	return e.Err
}

// CodeOf extracts the ErrorCode from err, or Unknown when err carries none.
func CodeOf(err error) ErrorCode {
	var e Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Unknown
}
