package engine

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/dDoc/lib/docstore"
)

var (
	// ErrNotConnected is returned for requests issued before the connection was established or after it was lost
	ErrNotConnected = errors.New("engine: not connected")
	// ErrClosed is reported to every request still pending when the engine is closed
	ErrClosed = errors.New("engine: closed")
	// ErrNoEndpoints is returned by a connect attempt without endpoints
	ErrNoEndpoints = errors.New("engine: no endpoints configured")
	// ErrUnsupportedPlatform is returned where non-blocking sockets are not available
	ErrUnsupportedPlatform = errors.New("engine: platform not supported")
)

// TimeoutError is returned when a deadline expired before the reply arrived
type TimeoutError struct {
	Msg string
}

func (e *TimeoutError) Error() string {
	return "engine: timeout: " + e.Msg
}

// TransportError is returned when a request failed because of the connection
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "engine: transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// --------------------------------------------------------------------------
// Error classes (see future.ErrorClass)
// --------------------------------------------------------------------------

// TimeoutClass builds a *TimeoutError from the description of the expired request
func TimeoutClass(value any) error {
	return &TimeoutError{Msg: fmt.Sprint(value)}
}

// TransportClass builds a *TransportError, errors are wrapped as is
func TransportClass(value any) error {
	err, ok := value.(error)
	if !ok {
		err = errors.New(fmt.Sprint(value))
	}
	return &TransportError{Err: err}
}

// ServerClass passes errors reported by the server through, so that
// errors.Is matches the docstore sentinels. Other values become internal errors.
func ServerClass(value any) error {
	if err, ok := value.(error); ok {
		return err
	}
	return docstore.NewError(docstore.RetCInternalError, fmt.Sprint(value))
}

// NotConnectedClass wraps ErrNotConnected with the state of the engine
func NotConnectedClass(value any) error {
	return fmt.Errorf("%w: %v", ErrNotConnected, value)
}
