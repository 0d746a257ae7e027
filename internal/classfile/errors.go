package classfile

import "fmt"

// FormatError reports a structural defect in class-file bytes: bad magic,
// truncated stream, unknown constant-pool tag, malformed modified-UTF-8.
// Spec.md §7 requires these to surface as a distinct taxonomy entry
// (ClassFormatError) rather than a bare error string.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("class format error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("class format error: %s", e.Reason)
}

func (e *FormatError) Unwrap() error { return e.Err }

func formatErrorf(reason string, err error) error {
	return &FormatError{Reason: reason, Err: err}
}
