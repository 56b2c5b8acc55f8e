package main

import (
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/muhmuslimabdulj/goat-chat/internal/playback"
)

// headlessPlayer is a stand-in media player for terminal sessions: it keeps
// a simulated playback position instead of rendering anything, which is
// enough for the sync engine to drive and for the host to report endings.
type headlessPlayer struct {
	track string
	clock clockwork.Clock

	mu       sync.Mutex
	engine   *playback.Engine
	videoID  string
	playing  bool
	position float64
}

func newHeadlessPlayer(track string, clock clockwork.Clock) *headlessPlayer {
	return &headlessPlayer{track: track, clock: clock}
}

// attach wires the engine whose ready hook this player must invoke.
func (p *headlessPlayer) attach(e *playback.Engine) {
	p.mu.Lock()
	p.engine = e
	p.mu.Unlock()
}

func (p *headlessPlayer) Load(videoID string) error {
	p.mu.Lock()
	p.videoID = videoID
	p.position = 0
	p.playing = false
	engine := p.engine
	p.mu.Unlock()
	log.Info().Str("track", p.track).Str("video_id", videoID).Msg("loaded")
	if engine != nil {
		engine.PlayerReady()
	}
	return nil
}

func (p *headlessPlayer) Play() error {
	p.mu.Lock()
	p.playing = true
	p.mu.Unlock()
	return nil
}

func (p *headlessPlayer) Pause() error {
	p.mu.Lock()
	p.playing = false
	p.mu.Unlock()
	return nil
}

func (p *headlessPlayer) Stop() error {
	p.mu.Lock()
	p.playing = false
	p.videoID = ""
	p.position = 0
	p.mu.Unlock()
	return nil
}

func (p *headlessPlayer) Seek(seconds float64) error {
	p.mu.Lock()
	p.position = seconds
	p.mu.Unlock()
	return nil
}

func (p *headlessPlayer) Position() (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position, nil
}

func (p *headlessPlayer) Duration() (float64, error) {
	return 0, nil
}

func (p *headlessPlayer) State() (playback.PlayerState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.videoID == "" {
		return playback.StateUnstarted, nil
	}
	if p.playing {
		return playback.StatePlaying, nil
	}
	return playback.StatePaused, nil
}
