package saveload

import "fmt"

// SerializationError wraps an encoding failure verbatim. Marker and
// Component are set when the failure concerns one entity's component.
type SerializationError struct {
	Marker    uint64
	Component string
	Err       error
}

func (e SerializationError) Error() string {
	if e.Component == "" {
		return fmt.Sprintf("serialization failed: %v", e.Err)
	}
	return fmt.Sprintf("serialization of %q on marker %d failed: %v", e.Component, e.Marker, e.Err)
}

func (e SerializationError) Unwrap() error {
	return e.Err
}
