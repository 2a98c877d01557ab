package models

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrUnknownID is returned when a download or lookup names a record that was never issued.
	ErrUnknownID = &ClientError{Err: errors.New("file entity not found")}

	// ErrInconsistent means the index points at a blob the store does not have.
	ErrInconsistent = &ServerError{Err: errors.New("file not found in storage")}
)

// ClientError marks failures caused by the request (unknown id, malformed upload).
type ClientError struct {
	Err error
}

func (e *ClientError) Error() string { return e.Err.Error() }
func (e *ClientError) Unwrap() error { return e.Err }

// ServerError marks internal failures: hashing, blob I/O, index I/O, inconsistency.
type ServerError struct {
	Err error
}

func (e *ServerError) Error() string { return e.Err.Error() }
func (e *ServerError) Unwrap() error { return e.Err }

// Client wraps err as a ClientError.
func Client(err error) error {
	if err == nil {
		return nil
	}
	return &ClientError{Err: err}
}

// Server wraps err as a ServerError unless it already carries a kind.
func Server(err error) error {
	if err == nil {
		return nil
	}
	var ce *ClientError
	var se *ServerError
	if errors.As(err, &ce) || errors.As(err, &se) {
		return err
	}
	return &ServerError{Err: err}
}

// IsClientError reports whether err is a request error rather than an internal failure.
func IsClientError(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce)
}
