package documents

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a document does not exist
var ErrNotFound = errors.New("document not found")

// InvalidTransitionError indicates an attempt to move a document through a
// status transition the state machine does not permit.
type InvalidTransitionError struct {
	DocumentID int64
	Type       Type
	From       Status
	To         Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition for document %d: %s -> %s", e.Type, e.DocumentID, e.From, e.To)
}

// IsInvalidTransitionError checks if an error is an InvalidTransitionError
func IsInvalidTransitionError(err error) bool {
	var te *InvalidTransitionError
	return errors.As(err, &te)
}
