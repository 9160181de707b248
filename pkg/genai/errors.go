package genai

import (
	"errors"
	"fmt"
)

// ErrBackendUnavailable marks transport-level failures reaching the
// generation backend. Not retried at this layer.
var ErrBackendUnavailable = errors.New("generation backend unavailable")

// BackendRejectedError carries a non-success status from the backend
// together with its error payload.
type BackendRejectedError struct {
	Status int
	Body   string
}

func (e *BackendRejectedError) Error() string {
	return fmt.Sprintf("generation backend rejected request: status %d, body: %s", e.Status, e.Body)
}
