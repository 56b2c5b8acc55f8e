package playback

import (
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	// driftThreshold balances correction frequency against visible playback
	// jitter: tighter causes constant seeking, looser allows visibly
	// desynced peers.
	driftThreshold = 3.0

	// Cold start: the player sits near zero while the room is well into the
	// track, so an immediate seek is issued instead of waiting for drift.
	coldStartActualMax   = 0.1
	coldStartExpectedMin = 0.5

	// tickInterval is the fixed drift re-evaluation cadence while a track is
	// active. Local playback position is unreliable near buffering
	// boundaries, so corrections must be continuous.
	tickInterval = time.Second

	// overrunGrace is how far the projection may pass a known duration
	// before the track is reported as overrun (host closes it out).
	overrunGrace = 2.0

	// durationSlack is the disagreement beyond which a freshly learned
	// player duration is reported upstream.
	durationSlack = 1.0
)

// TrackStatus is the engine's per-track state machine.
type TrackStatus int

const (
	TrackStopped TrackStatus = iota
	TrackLoading
	TrackSynced
)

// Hooks are optional engine callbacks, invoked outside the engine lock.
type Hooks struct {
	// OnEnded fires when the player reports the track ended.
	OnEnded func()
	// OnOverrun fires once per snapshot when the projected position passes
	// the known duration plus grace (player likely torn down locally).
	OnOverrun func()
	// OnDuration fires when the player reports a duration disagreeing with
	// the snapshot by more than a second.
	OnDuration func(seconds float64)
}

// Engine keeps one local media player converged onto periodic authoritative
// snapshots for a single track. It owns the track's correction ticker;
// timers are created idempotently and cancelled on stop or disconnect.
type Engine struct {
	track  string
	player Player
	clock  clockwork.Clock
	hooks  Hooks

	mu             sync.Mutex
	status         TrackStatus
	current        Snapshot
	active         bool
	loadedVideo    string
	overrunFired   bool
	durationSynced bool
	tickStop       chan struct{}
}

// NewEngine builds an engine for one track ("music", "nobar"). The player is
// the externally supplied embed handle.
func NewEngine(track string, player Player, clock clockwork.Clock, hooks Hooks) *Engine {
	return &Engine{
		track:  track,
		player: player,
		clock:  clock,
		hooks:  hooks,
	}
}

// Apply ingests one authoritative snapshot. A snapshot naming a different
// video than the loaded one transitions to Loading and defers
// synchronization until the player reports ready; otherwise a sync step runs
// immediately so the new state takes effect before the next ticker tick.
func (e *Engine) Apply(s Snapshot) {
	if s.VideoID == "" {
		e.Stop()
		return
	}

	e.mu.Lock()
	e.current = s
	e.active = true
	e.overrunFired = false
	e.durationSynced = false
	if !s.IsPlaying && e.loadedVideo == "" {
		// Paused broadcast before anything is loaded: record the state and
		// let the resume broadcast initialize the player.
		e.mu.Unlock()
		return
	}
	reload := e.status == TrackStopped || e.loadedVideo != s.VideoID
	if reload {
		e.status = TrackLoading
		e.loadedVideo = s.VideoID
	}
	e.mu.Unlock()

	e.ensureTicker()

	if reload {
		log.Debug().Str("track", e.track).Str("video_id", s.VideoID).Msg("loading track")
		if err := e.player.Load(s.VideoID); err != nil {
			log.Debug().Err(err).Str("track", e.track).Msg("player load failed, next tick retries")
			// Back to Stopped so the next snapshot retries the load.
			e.mu.Lock()
			e.status = TrackStopped
			e.loadedVideo = ""
			e.mu.Unlock()
		}
		return
	}
	e.syncOnce()
}

// PlayerReady is the hook the player implementation invokes once a freshly
// loaded handle accepts seeks. Synchronization deferred by Apply runs here.
func (e *Engine) PlayerReady() {
	e.mu.Lock()
	if e.status == TrackLoading {
		e.status = TrackSynced
	}
	e.mu.Unlock()
	e.ensureTicker()
	e.syncOnce()
}

// PlayerEnded is the hook for the player's end-of-track event.
func (e *Engine) PlayerEnded() {
	if e.hooks.OnEnded != nil {
		e.hooks.OnEnded()
	}
}

// Stop tears the track down on an explicit stop broadcast: player stopped,
// snapshot cleared, ticker cancelled.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.status = TrackStopped
	e.active = false
	e.current = Snapshot{}
	e.loadedVideo = ""
	e.mu.Unlock()

	e.stopTicker()
	if err := e.player.Stop(); err != nil {
		log.Debug().Err(err).Str("track", e.track).Msg("player stop failed")
	}
	log.Debug().Str("track", e.track).Msg("track stopped")
}

// Suspend pauses the player and cancels the ticker but keeps the snapshot,
// used when the connection drops: a leaked ticker would keep seeking against
// stale state.
func (e *Engine) Suspend() {
	e.stopTicker()
	if err := e.player.Pause(); err != nil {
		log.Debug().Err(err).Str("track", e.track).Msg("player pause failed on suspend")
	}
}

// Status returns the current track status.
func (e *Engine) Status() TrackStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Current returns the latest snapshot and whether a track is active.
func (e *Engine) Current() (Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current, e.active
}

// ensureTicker starts the 1s correction loop if not already running. A start
// call while running is a no-op.
func (e *Engine) ensureTicker() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tickStop != nil {
		return
	}
	stop := make(chan struct{})
	e.tickStop = stop
	ticker := e.clock.NewTicker(tickInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.Chan():
				e.syncOnce()
			}
		}
	}()
}

func (e *Engine) stopTicker() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tickStop != nil {
		close(e.tickStop)
		e.tickStop = nil
	}
}

// syncOnce runs one drift evaluation. Any error reading player state is a
// no-op for this tick; the next tick retries.
func (e *Engine) syncOnce() {
	e.mu.Lock()
	if !e.active || e.status != TrackSynced {
		e.mu.Unlock()
		return
	}
	s := e.current
	e.mu.Unlock()

	e.learnDuration(&s)

	now := e.clock.Now()
	expected := s.ExpectedPosition(now)

	e.checkOverrun(s, now)

	if !s.IsPlaying {
		if err := e.player.Pause(); err != nil {
			log.Debug().Err(err).Str("track", e.track).Msg("pause failed")
		}
		return
	}

	actual, err := e.player.Position()
	if err != nil {
		log.Debug().Err(err).Str("track", e.track).Msg("position read failed, skipping tick")
		return
	}

	// Cold start: player still at zero while the room is mid-track.
	if actual < coldStartActualMax && expected > coldStartExpectedMin {
		e.seek(expected)
		e.play()
		return
	}

	if math.Abs(expected-actual) > driftThreshold {
		log.Debug().
			Str("track", e.track).
			Float64("expected", expected).
			Float64("actual", actual).
			Msg("drift exceeds threshold, seeking")
		e.seek(expected)
		if st, err := e.player.State(); err == nil && st != StatePlaying {
			e.play()
		}
		return
	}

	// In-range: reconcile play state only. Buffering is left alone.
	if st, err := e.player.State(); err == nil && st != StatePlaying && st != StateBuffering {
		e.play()
	}
}

// learnDuration backfills an unknown snapshot duration from the player and
// reports a disagreement upstream at most once per snapshot (the host
// rebroadcasts it as metadata and the echo carries the corrected value).
func (e *Engine) learnDuration(s *Snapshot) {
	d, err := e.player.Duration()
	if err != nil || d <= 0 {
		return
	}
	if math.Abs(s.Duration-d) <= durationSlack {
		return
	}
	e.mu.Lock()
	reported := e.durationSynced
	e.durationSynced = true
	if s.Duration == 0 && e.active && e.current.VideoID == s.VideoID {
		e.current.Duration = d
	}
	e.mu.Unlock()
	if s.Duration == 0 {
		s.Duration = d
	}
	if !reported && e.hooks.OnDuration != nil {
		e.hooks.OnDuration(d)
	}
}

// checkOverrun reports a projection past duration+grace exactly once per
// snapshot.
func (e *Engine) checkOverrun(s Snapshot, now time.Time) {
	if e.hooks.OnOverrun == nil || s.Duration <= 0 || !s.IsPlaying || s.SnapshotTime.IsZero() {
		return
	}
	raw := s.Position + now.Sub(s.SnapshotTime).Seconds()
	if raw <= s.Duration+overrunGrace {
		return
	}
	e.mu.Lock()
	fired := e.overrunFired
	e.overrunFired = true
	e.mu.Unlock()
	if !fired {
		log.Debug().Str("track", e.track).Float64("projected", raw).Msg("track overran duration")
		e.hooks.OnOverrun()
	}
}

func (e *Engine) seek(seconds float64) {
	if err := e.player.Seek(seconds); err != nil {
		log.Debug().Err(err).Str("track", e.track).Msg("seek failed")
	}
}

func (e *Engine) play() {
	if err := e.player.Play(); err != nil {
		log.Debug().Err(err).Str("track", e.track).Msg("play failed")
	}
}
