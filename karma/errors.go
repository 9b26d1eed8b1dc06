/*
errors.go - Centralized error types for the karma engine

ERROR CATEGORIES:
  1. Outcome errors  - ErrDuplicateLike, folded into LikeResult{Granted:false}
  2. Client errors   - ValidationError, not found, username taken
  3. Store errors    - Constraint violations and unexpected failures

USAGE:
  if errors.Is(err, karma.ErrValidation) {
      var verr *karma.ValidationError
      errors.As(err, &verr) // verr.Field names the offending input
  }

SEE ALSO:
  - engine.go: Folds ErrDuplicateLike, wraps storage failures
  - store/sqlite/sqlite.go: Translates driver constraint errors
*/
package karma

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateLike is returned by a store when a like row for the same
	// (user, target) pair already exists. The engine never surfaces it.
	ErrDuplicateLike = errors.New("duplicate like")

	ErrValidation = errors.New("validation failed")

	ErrNotFound        = errors.New("not found")
	ErrPostNotFound    = fmt.Errorf("post %w", ErrNotFound)
	ErrCommentNotFound = fmt.Errorf("comment %w", ErrNotFound)
	ErrUserNotFound    = fmt.Errorf("user %w", ErrNotFound)

	ErrUsernameTaken = errors.New("username already taken")

	// ErrLedgerConstraint is returned when a ledger entry violates a CHECK
	// constraint (amount > 0, exactly one target).
	ErrLedgerConstraint = errors.New("ledger constraint violated")

	ErrOrphanComment = errors.New("comment parent missing from input")

	// ErrStorage marks unexpected store failures.
	ErrStorage = errors.New("storage failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError identifies the rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

const (
	ConstraintAmountPositive   = "karma_ledger_amount_positive"
	ConstraintExactlyOneTarget = "karma_ledger_exactly_one_target"
)

// LedgerConstraintError names the violated ledger constraint.
type LedgerConstraintError struct {
	Constraint string
}

func (e *LedgerConstraintError) Error() string {
	return "ledger constraint violated: " + e.Constraint
}

func (e *LedgerConstraintError) Unwrap() error {
	return ErrLedgerConstraint
}

// OrphanCommentError is returned by BuildTree when a reply references a
// parent that did not appear before it in the input.
type OrphanCommentError struct {
	CommentID CommentID
	ParentID  CommentID
}

func (e *OrphanCommentError) Error() string {
	return fmt.Sprintf("comment %d references parent %d which is not in the input", e.CommentID, e.ParentID)
}

func (e *OrphanCommentError) Unwrap() error {
	return ErrOrphanComment
}

// StorageError wraps an unexpected store failure with the operation name.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorage, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrUsernameTaken)
}
