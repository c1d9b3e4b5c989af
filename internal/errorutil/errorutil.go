// Package errorutil provides small helpers for attaching context to
// errors as they propagate up.
package errorutil

import "fmt"

// Wrap returns an error that prefixes err with msg. The returned error
// unwraps to err.
func Wrap(err error, msg string) error {
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf is Wrap with a format string for the prefix.
func Wrapf(err error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
