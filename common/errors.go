// Package common holds error kinds shared by the template engine packages,
// its configuration and the command line tool.
package common

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports a fragment id, tag or template key path that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidFormat reports a value that does not fully match its fragment pattern.
	ErrInvalidFormat = errors.New("invalid format")
	// ErrOutOfRange reports a tag occurrence index past the last occurrence.
	ErrOutOfRange = errors.New("out of range")
	// ErrUnboundValue reports a fragment referenced by a template without a value.
	ErrUnboundValue = errors.New("unbound value")
)

// InvalidFormatError carries rejected value together with the pattern it had
// to match.
type InvalidFormatError struct {
	ID      string
	Value   string
	Pattern string
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("value %q for fragment %q does not match %q", e.Value, e.ID, e.Pattern)
}

func (e *InvalidFormatError) Is(target error) bool {
	return target == ErrInvalidFormat
}
