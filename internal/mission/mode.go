package mission

import (
	"fmt"
	"time"

	"github.com/skyops/dronectl/internal/pattern"
)

// State is the coarse control owner of the vehicle.
type State int

const (
	Idle State = iota
	ArmTakeoff
	Landing
	Mission
	Manual
)

// Mode is the current control mode. Pattern is only meaningful in the Mission state.
type Mode struct {
	State   State
	Pattern pattern.Kind
}

func IdleMode() Mode {
	return Mode{State: Idle}
}

func MissionMode(kind pattern.Kind) Mode {
	return Mode{State: Mission, Pattern: kind}
}

// String is the display name of the mode. Idle shows as "None".
func (m Mode) String() string {
	switch m.State {
	case Idle:
		return "None"
	case ArmTakeoff:
		return "Takeoff"
	case Landing:
		return "Landing"
	case Mission:
		return m.Pattern.String()
	case Manual:
		return "Manual"
	default:
		return fmt.Sprintf("State(%d)", int(m.State))
	}
}

// Transition is one change of mode, reported to observers in order.
type Transition struct {
	From   Mode
	To     Mode
	Reason string
	At     time.Time
}
