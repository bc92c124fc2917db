//////////////////////////////////////////////////////////////////////////////
//
// Media errors
//
// Copyright 2019 Lanikai Labs LLC. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package media

import "github.com/pkg/errors"

var (
	// The input could not be established: unreachable host, refused
	// connection, bad URL, authentication failure, missing file.
	ErrCouldNotOpen = errors.New("could not open input")

	ErrNotSupported = errors.New("not supported")
	ErrClosed       = errors.New("session closed")
)

// CouldNotOpen wraps err so that IsCouldNotOpen reports true for it.
func CouldNotOpen(err error, format string, args ...interface{}) error {
	return &openError{cause: err, msg: errors.Errorf(format, args...).Error()}
}

// IsCouldNotOpen reports whether err, or any error it wraps, signals that the
// input could not be established.
func IsCouldNotOpen(err error) bool {
	for err != nil {
		if err == ErrCouldNotOpen {
			return true
		}
		if _, ok := err.(*openError); ok {
			return true
		}
		cause, ok := err.(interface{ Cause() error })
		if !ok {
			if u, ok := err.(interface{ Unwrap() error }); ok {
				err = u.Unwrap()
				continue
			}
			return false
		}
		err = cause.Cause()
	}
	return false
}

type openError struct {
	cause error
	msg   string
}

func (e *openError) Error() string {
	if e.cause == nil {
		return ErrCouldNotOpen.Error() + ": " + e.msg
	}
	return ErrCouldNotOpen.Error() + ": " + e.msg + ": " + e.cause.Error()
}

func (e *openError) Cause() error  { return e.cause }
func (e *openError) Unwrap() error { return e.cause }
