package todoist

import (
	"errors"
	"fmt"
)

// ErrProtocol is matched (errors.Is) by every *ProtocolError.
var ErrProtocol = errors.New("todoist: malformed response")

// RequestError is a non-2xx response from the provider.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("todoist: request failed with status %d: %s", e.Status, e.Message)
}

// ProtocolError is a 2xx response whose body did not have the expected shape.
type ProtocolError struct {
	Op  string // e.g. "fetch tasks"
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("todoist: %s: malformed response: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrProtocol) match any ProtocolError.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}

// IsStatus reports whether err is a RequestError with the given status.
func IsStatus(err error, status int) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.Status == status
}
