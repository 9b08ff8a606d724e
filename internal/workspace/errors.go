package workspace

import "fmt"

// ConfigurationError reports that workspace metadata could not be obtained.
// Callers building a graph degrade to an empty graph; only an entry point
// that needs the whole workspace treats it as fatal.
type ConfigurationError struct {
	Root string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("workspace metadata unavailable for %q: %v", e.Root, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
