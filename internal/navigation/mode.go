package navigation

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownMode = errors.New("unknown navigation mode")

// Mode selects when a drag triggers streaming updates.
type Mode int

const (
	// ModeThrottled updates at most once per throttle interval while dragging.
	ModeThrottled Mode = iota
	// ModeSimple updates on every pointer move.
	ModeSimple
)

func (m Mode) String() string {
	switch m {
	case ModeSimple:
		return "simple"
	case ModeThrottled:
		return "throttled"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode maps a settings value to a Mode. The empty string is throttled.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "throttled":
		return ModeThrottled, nil
	case "simple":
		return ModeSimple, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// State is the drag state machine.
type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}
