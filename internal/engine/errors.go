package engine

import (
	"errors"
	"fmt"

	"github.com/dshills/inkwell/internal/engine/node"
)

// Errors returned by engine operations.
var (
	// ErrReadOnlyViolation indicates a mutation with no open transaction.
	ErrReadOnlyViolation = errors.New("mutation outside an open transaction")

	// ErrTransactionAlreadyOpen indicates Begin was called while another
	// transaction is open.
	ErrTransactionAlreadyOpen = errors.New("transaction already open")

	// ErrDetachedNode indicates a node that must be attached to the root
	// is not.
	ErrDetachedNode = errors.New("node is not attached")

	// ErrStructuralInvariant indicates the tree is internally inconsistent.
	// A transaction that hits it aborts instead of committing.
	ErrStructuralInvariant = errors.New("structural invariant violation")

	// ErrInvalidOperation indicates a request the tree cannot satisfy, such
	// as appending a node to itself.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrNodeNotFound indicates a key absent from the version.
	ErrNodeNotFound = errors.New("node not found")

	// ErrVersionNotFound indicates a version is no longer retained.
	ErrVersionNotFound = errors.New("version not found")
)

// OperationError describes a failed node operation.
type OperationError struct {
	Op  string   // Operation name, e.g. "splice"
	Key node.Key // Node the operation was applied to
	Err error    // Underlying error
}

func newOpError(op string, k node.Key, err error) *OperationError {
	return &OperationError{Op: op, Key: k, Err: err}
}

func (e *OperationError) Error() string {
	if e.Key == node.NoKey {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *OperationError) Unwrap() error { return e.Err }

// IsStructural reports whether err is a structural invariant violation.
func IsStructural(err error) bool {
	return errors.Is(err, ErrStructuralInvariant)
}
