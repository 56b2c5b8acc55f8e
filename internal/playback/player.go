package playback

// PlayerState is the reported state of the underlying media player.
type PlayerState int

const (
	StateUnstarted PlayerState = iota
	StatePlaying
	StatePaused
	StateBuffering
	StateEnded
)

// String returns the log-friendly name of the state.
func (s PlayerState) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateBuffering:
		return "buffering"
	case StateEnded:
		return "ended"
	default:
		return "unstarted"
	}
}

// Player is the capability interface an embeddable media player must satisfy.
// The engine treats it as opaque and tolerates any call failing, e.g. while
// the underlying handle is mid-teardown: a failed call is a no-op for that
// tick and the next tick retries.
//
// Load tears down the current handle and initializes a new one for the given
// video; the implementation must invoke the engine's PlayerReady hook once
// the new handle can accept seeks.
type Player interface {
	Load(videoID string) error
	Play() error
	Pause() error
	Stop() error
	Seek(seconds float64) error
	Position() (float64, error)
	Duration() (float64, error)
	State() (PlayerState, error)
}
