package registry

import (
	"errors"
	"fmt"
)

// ErrNotFound marks a registry 404. It is never surfaced as a query error;
// the oracle maps it to StateNotFound.
var ErrNotFound = errors.New("package not found in registry")

// TransportError is any registry failure other than not-found.
type TransportError struct {
	Package string
	// StatusCode is zero when no response was received.
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("registry query for %q: status %d: %v", e.Package, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("registry query for %q: %v", e.Package, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
