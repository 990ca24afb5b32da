package player

import (
	"time"

	"github.com/arlenko/mira/pkg/types"
)

// State is the playback session lifecycle. Transitions:
//
//	Idle -> Loading -> Playing <-> Paused -> Idle  (finish with no next track)
//	Loading -> Error                               (load/play rejected)
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StatePaused
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is the observable playback session state published on the bus.
// It is a value copy; consumers never see intermediate mutation.
type Snapshot struct {
	State    State
	Track    *types.Track
	Position time.Duration
	Duration time.Duration
	Volume   float64
	Shuffle  bool
	Repeat   RepeatMode
	LastErr  string
}

// Progress is the high-frequency position update, published separately from
// Snapshot so state subscribers are not woken a few times per second.
type Progress struct {
	Position time.Duration
	Duration time.Duration
}
