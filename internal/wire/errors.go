package wire

import (
	"errors"
	"fmt"
)

// ErrMissingRequiredField is returned when a required field is unset at
// encode time or absent from otherwise well-formed encoded data.
var ErrMissingRequiredField = errors.New("wire: missing required field")

// ErrMalformedEncoding is returned when bytes cannot be parsed into the
// declared field layout, including an unrecognized value type ordinal.
var ErrMalformedEncoding = errors.New("wire: malformed encoding")

func missingField(message, field string) error {
	return fmt.Errorf("%s.%s: %w", message, field, ErrMissingRequiredField)
}

func malformed(message string, detail error) error {
	if detail == nil {
		return fmt.Errorf("%s: %w", message, ErrMalformedEncoding)
	}
	return fmt.Errorf("%s: %w: %v", message, ErrMalformedEncoding, detail)
}

func malformedField(message, field, reason string) error {
	return fmt.Errorf("%s.%s: %w: %s", message, field, ErrMalformedEncoding, reason)
}
