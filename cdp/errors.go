package cdp

import (
	"errors"
	"fmt"
)

var (
	// ErrCannotConnect is returned when no session could be established.
	// Usually the browser was not launched with --remote-debugging-port, or
	// none of the resolved endpoints accepted the upgrade handshake.
	ErrCannotConnect = errors.New("cannot connect to browser instance")

	// ErrInvalidTab is returned when connecting to a tab index that does not
	// exist in the target list.
	ErrInvalidTab = errors.New("tab does not exist")

	// ErrNoMessage reports that no frame is currently available, or that a
	// wait exhausted its budget without a match. ReceiveOne is the way to
	// tell the two apart.
	ErrNoMessage = errors.New("no message available")

	// ErrInvalidResponse reports a frame that could not be decoded.
	ErrInvalidResponse = errors.New("malformed message received")
)

// NetworkError reports a transport failure while sending or receiving.
type NetworkError struct {
	Cause error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// RequestRejectedError is returned when the browser understood a request and
// declined it. Frame carries the full response so callers can inspect the
// error payload. Distinct from NetworkError: the channel is still usable.
type RequestRejectedError struct {
	Frame *Message
}

func (e *RequestRejectedError) Error() string {
	if e.Frame != nil && e.Frame.Error != nil {
		return fmt.Sprintf("request %d rejected: %s", e.Frame.ID, e.Frame.Error.Message)
	}
	return "request rejected"
}
