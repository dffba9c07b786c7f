package client

import "errors"

var (
	ErrConnection   = errors.New("Connection to the server failed")
	ErrClosed       = errors.New("Connection has been shut down")
	ErrIDsExhausted = errors.New("Every request id has been used")
)

// ConnectionError reports a failure to set up, read from or write to the
// connection. It matches ErrConnection and unwraps to the cause.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return "connection: " + e.Op + ": " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnection
}
