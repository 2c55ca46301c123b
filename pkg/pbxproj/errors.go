package pbxproj

import "fmt"

// ParseError reports bytes that are not a structurally valid project manifest.
type ParseError struct {
	Location string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Location, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SerializationError reports a manifest that cannot be written back, such as
// a phase member no longer reachable from the group tree.
type SerializationError struct {
	Location string
	Err      error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize %s: %v", e.Location, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }
