package graph

import (
	"errors"
	"fmt"
)

// ErrNoPath is returned by Path when the target cannot be reached
var ErrNoPath = errors.New("no path between jobs")

// MalformedGraphError reports the first shape violation found in a
// dependency document. No index is built when it is returned.
type MalformedGraphError struct {
	// Key is the offending job name, empty for document-level violations
	Key string

	// Index is the position of the offending entry in Key's list, or -1
	Index int

	// Reason describes the violation
	Reason string
}

func (e *MalformedGraphError) Error() string {
	switch {
	case e.Key == "":
		return "malformed dependency document: " + e.Reason
	case e.Index < 0:
		return fmt.Sprintf("malformed dependency document: job %q: %s", e.Key, e.Reason)
	default:
		return fmt.Sprintf("malformed dependency document: job %q entry %d: %s", e.Key, e.Index, e.Reason)
	}
}

func malformed(format string, args ...any) *MalformedGraphError {
	return &MalformedGraphError{Index: -1, Reason: fmt.Sprintf(format, args...)}
}

func malformedKey(key, format string, args ...any) *MalformedGraphError {
	return &MalformedGraphError{Key: key, Index: -1, Reason: fmt.Sprintf(format, args...)}
}

func malformedEntry(key string, index int, format string, args ...any) *MalformedGraphError {
	return &MalformedGraphError{Key: key, Index: index, Reason: fmt.Sprintf(format, args...)}
}

// UnknownJobError is returned when a query names a job the index has never
// seen, or no job at all. The index stays usable.
type UnknownJobError struct {
	Job string
}

func (e *UnknownJobError) Error() string {
	if e.Job == "" {
		return "job name not provided"
	}
	return fmt.Sprintf("no such job: %q", e.Job)
}

// IsMalformed reports whether err is or wraps a MalformedGraphError
func IsMalformed(err error) bool {
	var target *MalformedGraphError
	return errors.As(err, &target)
}

// IsUnknownJob reports whether err is or wraps an UnknownJobError
func IsUnknownJob(err error) bool {
	var target *UnknownJobError
	return errors.As(err, &target)
}
