package control

import (
	"errors"
	"fmt"

	"github.com/1broseidon/layerctl/internal/ipc"
	"github.com/1broseidon/layerctl/internal/layout"
)

var (
	// ErrFailed covers transport failures, unknown objects and operations on
	// a context that is not ready.
	ErrFailed = errors.New("failed")
	// ErrInvalidArguments is returned before anything is sent.
	ErrInvalidArguments = errors.New("invalid arguments")
)

// Result is the outcome class of an operation.
type Result int

const (
	Success Result = iota
	Failed
	InvalidArguments
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case InvalidArguments:
		return "invalid arguments"
	default:
		return "failed"
	}
}

// ResultOf classifies an error returned by this package.
func ResultOf(err error) Result {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, ErrInvalidArguments):
		return InvalidArguments
	default:
		return Failed
	}
}

func failedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFailed, fmt.Sprintf(format, args...))
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArguments, fmt.Sprintf(format, args...))
}

// ProtocolError is a request the daemon rejected. It arrives asynchronously
// after the call that sent the request has returned.
type ProtocolError struct {
	Kind    layout.Kind
	ID      uint32
	Code    ipc.ErrorCode
	Message string
}

func (e ProtocolError) Error() string {
	if e.ID == layout.InvalidID {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s %d: %s: %s", e.Kind, e.ID, e.Code, e.Message)
}
