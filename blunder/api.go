// Package blunder provides error-handling wrappers used throughout the
// store and overlay packages.
//
// These wrappers allow callers to provide additional information in Go
// errors while still conforming to the Go error interface: every error
// surfaced by this module carries one of the ArchiveError values below,
// recoverable with Errno()/Is(), plus a stack trace captured at the point
// the error was created.
//
// This package is implemented on top of the ansel1/merry package:
//
//	https://github.com/ansel1/merry
package blunder

import (
	"fmt"

	"github.com/ansel1/merry"
	"golang.org/x/sys/unix"

	"objectarchive/logger"
)

// ArchiveError classifies the errors the store and overlay packages can
// surface, per the taxonomy in objectarchive's error handling design:
// I/O failures are the only case actually surfaced to the caller as an
// error value; "not found" is not an error (load returns 0, remove and
// rename are no-ops) and is therefore not represented here.
type ArchiveError int

const (
	// IOError covers open/read/write/seek/rename/remove failures against
	// the backing file.
	IOError ArchiveError = ArchiveError(int(unix.EIO))
	// InvalidArgError covers malformed paths, malformed human-readable
	// buffer-size strings, and tag collisions supplied by the caller.
	InvalidArgError ArchiveError = ArchiveError(int(unix.EINVAL))
	// NotSupportedError is returned when a caller tries to combine a
	// threaded Store with an Overlay, a combination the design
	// deliberately forbids.
	NotSupportedError ArchiveError = ArchiveError(int(unix.ENOTSUP))
)

const (
	successErrno = 0
	failureErrno = -1
)

// Value returns the int value for the specified ArchiveError constant.
func (err ArchiveError) Value() int {
	return int(err)
}

// NewError creates a new merry/blunder.ArchiveError-annotated error using
// the given format string and arguments.
func NewError(errValue ArchiveError, format string, a ...interface{}) error {
	return merry.WrapSkipping(fmt.Errorf(format, a...), 1).WithValue("errno", int(errValue))
}

// AddError adds ArchiveError detail to a Go error.
func AddError(e error, errValue ArchiveError) error {
	if e == nil {
		return merry.New("regular error").WithValue("errno", int(errValue))
	}

	prevValue := Errno(e)
	if prevValue != successErrno && prevValue != failureErrno {
		logger.Warnf("blunder.AddError: replacing error value %v with value %v for error %v", prevValue, int(errValue), e)
	}

	return merry.WrapSkipping(e, 1).WithValue("errno", int(errValue))
}

// Errno extracts the ArchiveError value from e, if it was previously added.
// Returns 0 for a nil error (success) and -1 if e has no recorded value.
func Errno(e error) int {
	if e == nil {
		return successErrno
	}

	errno := failureErrno
	if v := merry.Value(e, "errno"); v != nil {
		errno = v.(int)
	}

	return errno
}

// ErrorString returns e's message plus its recorded error value, if any.
func ErrorString(e error) string {
	if e == nil {
		return ""
	}

	errPlusVal := e.Error()

	if v := merry.Value(e, "errno"); v != nil {
		errPlusVal = fmt.Sprintf("%s. Error Value: %v\n", errPlusVal, v.(int))
	}

	return errPlusVal
}

// Is reports whether e was tagged with theError.
func Is(e error, theError ArchiveError) bool {
	return Errno(e) == theError.Value()
}

// IsNot reports whether e was not tagged with theError.
func IsNot(e error, theError ArchiveError) bool {
	return Errno(e) != theError.Value()
}

// IsSuccess reports whether e represents success (a nil error).
func IsSuccess(e error) bool {
	return Errno(e) == successErrno
}

// IsNotSuccess reports the complement of IsSuccess.
func IsNotSuccess(e error) bool {
	return Errno(e) != successErrno
}

// Location returns the file and line number of the code that generated the
// error. Returns zero values if e has no stacktrace.
func Location(e error) (file string, line int) {
	file, line = merry.Location(e)
	return
}

// SourceLine returns the string representation of Location's result.
// Returns an empty string if e has no stacktrace.
func SourceLine(e error) string {
	return merry.SourceLine(e)
}

// Details wraps merry.Details, returning all error details including the
// stacktrace, as a string.
func Details(e error) string {
	return merry.Details(e)
}

// Stacktrace wraps merry.Stacktrace, returning e's stacktrace (if set) as a
// string.
func Stacktrace(e error) string {
	return merry.Stacktrace(e)
}
