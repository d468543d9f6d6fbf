package vehicle

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned when the vehicle does not acknowledge a command in time.
	ErrTimeout = errors.New("command not acknowledged")

	// ErrNotConnected is returned when no vehicle has been discovered on the link.
	ErrNotConnected = errors.New("vehicle not connected")
)

// CommandError reports a command the vehicle rejected.
type CommandError struct {
	Command string
	Result  string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Command, e.Result)
}

// IsRejected reports whether err carries a CommandError.
func IsRejected(err error) bool {
	var ce *CommandError
	return errors.As(err, &ce)
}
