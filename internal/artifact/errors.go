package artifact

import (
	"errors"
	"fmt"
)

// ErrArtifactNotFound is wrapped when a source has no artifact for a package.
var ErrArtifactNotFound = errors.New("artifact not found")

// ExtractionError reports a failure to read one artifact. It only concerns
// that artifact; batch callers record it and move on.
type ExtractionError struct {
	Artifact string
	Op       string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("artifact %s: %s: %v", e.Artifact, e.Op, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
