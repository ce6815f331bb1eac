package capture

import "github.com/AlverezYari/camroll/internal/media"

type State int

const (
	Unbound State = iota
	Idle
	Recording
	// Faulted is entered when a recording request hangs past its timeout.
	// It settles to Idle as soon as recovery finishes.
	Faulted
)

func (s State) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Faulted:
		return "faulted"
	default:
		return "unknown"
	}
}

type EventKind int

const (
	EventStateChanged EventKind = iota
	EventPhotoCaptured
	EventVideoReady
	EventNotice
)

// Event reports something the screen may want to redraw for.
type Event struct {
	Kind  EventKind
	State State
	Item  media.Item
	Video string
	Err   error
}

// Notice is the user-facing text for an EventNotice.
func (e Event) Notice() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}
