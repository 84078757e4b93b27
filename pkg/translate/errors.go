package translate

import (
	"errors"
	"fmt"
)

// Sentinel errors for topic resolution. Both are message-local: the pipeline
// logs them and drops the offending message, they are never fatal.
var (
	// ErrMalformedTopic indicates the topic had fewer than two path segments
	// after prefix removal, so no (node, measurement) pair could be derived.
	ErrMalformedTopic = errors.New("malformed topic: need at least node and measurement segments")

	// ErrPrefixMismatch indicates a prefix was configured but the topic does
	// not start with it.
	ErrPrefixMismatch = errors.New("topic does not start with configured prefix")

	// ErrEmptyPayload indicates the raw payload was empty or whitespace-only.
	// An empty payload decodes to zero fields, which is never a valid point.
	ErrEmptyPayload = errors.New("payload is empty")
)

// UnsupportedValueError reports a structured payload key whose value is a
// nested object or array. Nested values are rejected rather than flattened so
// that no data is silently lost.
type UnsupportedValueError struct {
	Key string
}

func (e *UnsupportedValueError) Error() string {
	return fmt.Sprintf("unsupported nested value for key %q", e.Key)
}
