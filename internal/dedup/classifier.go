package dedup

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/muhmuslimabdulj/goat-chat/internal/protocol"
)

const (
	// seenCapacity bounds the dedup set.
	seenCapacity = 500

	// liveWindow is how recent a creation timestamp must be for a message to
	// count as live. Generous on purpose: it must tolerate network latency
	// and clock skew between client and server.
	liveWindow = 30 * time.Second

	// readyFallbackDelay promotes the session to ready even when the join
	// confirmation was never observed (e.g. reconnect without a full join
	// flow).
	readyFallbackDelay = 5 * time.Second
)

// Classifier rejects already-seen message identifiers and classifies each
// surviving message as live (recently produced, side effects allowed) or
// historical (replayed on reconnect or initial sync, state updates only).
type Classifier struct {
	clock clockwork.Clock

	mu       sync.Mutex
	seen     *SeenSet
	ready    bool
	fallback clockwork.Timer
}

// NewClassifier builds a classifier on the given clock.
func NewClassifier(clock clockwork.Clock) *Classifier {
	return &Classifier{
		clock: clock,
		seen:  NewSeenSet(seenCapacity),
	}
}

// ConnectionOpened arms the fallback ready timer. History replay follows a
// (re)connect, so readiness is withheld until the own join confirmation
// arrives or the fallback fires.
func (c *Classifier) ConnectionOpened() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready {
		return
	}
	if c.fallback != nil {
		c.fallback.Stop()
	}
	c.fallback = c.clock.AfterFunc(readyFallbackDelay, func() {
		c.mu.Lock()
		promoted := !c.ready
		c.ready = true
		c.mu.Unlock()
		if promoted {
			log.Debug().Msg("live mode activated via fallback timer")
		}
	})
}

// MarkReady promotes the session to ready immediately (own join observed).
func (c *Classifier) MarkReady() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = true
	if c.fallback != nil {
		c.fallback.Stop()
		c.fallback = nil
	}
}

// Ready reports whether the session reached the ready state.
func (c *Classifier) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Classify decides whether the message dispatches at all and, if so, whether
// it is live. Messages without an identifier always dispatch: they are
// continuous state syncs where re-processing the latest value is idempotent.
func (c *Classifier) Classify(msg protocol.Message) (dispatch, live bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if msg.ID != "" && !c.seen.Observe(msg.ID) {
		log.Debug().Str("id", msg.ID).Str("type", string(msg.Type)).Msg("duplicate message discarded")
		return false, false
	}

	if !c.ready || msg.CreatedAt.IsZero() {
		return true, false
	}
	return true, c.clock.Since(msg.CreatedAt) < liveWindow
}
