package game

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/muhmuslimabdulj/goat-chat/internal/protocol"
)

const (
	// challengeTTL is the move deadline granted to a fresh challenge.
	challengeTTL = 15 * time.Second

	// forceOpponentAfter is how long past expiry the local player submits a
	// random move on behalf of a silent opposite party, so a disconnected
	// opponent cannot stall the game indefinitely.
	forceOpponentAfter = 3 * time.Second

	// teardownAfter is when the per-challenge countdown is torn down
	// unconditionally.
	teardownAfter = 5 * time.Second

	// staleGuard suppresses any timeout action this long past expiry; a
	// timer that late is acting on stale state.
	staleGuard = 10 * time.Second
)

// Sender broadcasts a merged suit payload to the server.
type Sender func(protocol.SuitPayload) error

// Merger keeps per-challenge ephemeral state converged across partial,
// out-of-order updates from either participant. Each pending challenge owns
// exactly one countdown ticker, cancelled on completion or teardown.
type Merger struct {
	clock    clockwork.Clock
	selfID   func() string
	selfName func() string
	send     Sender
	rng      *rand.Rand
	rngMu    sync.Mutex

	mu         sync.Mutex
	challenges map[string]*Challenge
	timers     map[string]chan struct{}

	// OnCompleted fires whenever a challenge reaches its terminal state;
	// live gates side effects upstream.
	OnCompleted func(ch Challenge, live bool)
}

// NewMerger builds a merger. selfID and selfName are providers because the
// local identity can change across reconnects.
func NewMerger(clock clockwork.Clock, selfID, selfName func() string, send Sender) *Merger {
	return &Merger{
		clock:      clock,
		selfID:     selfID,
		selfName:   selfName,
		send:       send,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		challenges: make(map[string]*Challenge),
		timers:     make(map[string]chan struct{}),
	}
}

// Apply merges one partial update. The move map becomes the union of
// existing and incoming moves (a previously recorded move is never dropped)
// and a locally completed record keeps its status and winner regardless of
// what the incoming record claims.
func (m *Merger) Apply(p protocol.SuitPayload, live bool) {
	if p.ID == "" {
		return
	}
	incoming := fromPayload(p)

	m.mu.Lock()
	if existing, ok := m.challenges[p.ID]; ok {
		merged := make(map[string]string, 2)
		for id, move := range existing.Moves {
			merged[id] = move
		}
		for id, move := range incoming.Moves {
			merged[id] = move
		}
		incoming.Moves = merged

		if existing.Status == protocol.SuitStatusCompleted {
			if incoming.Status == protocol.SuitStatusPending {
				// Stale pending echo must not reopen a finished game.
				incoming.Status = protocol.SuitStatusCompleted
				incoming.Winner = existing.Winner
			} else if incoming.Winner != existing.Winner {
				// Two racing resolutions disagree; first observed result
				// stays authoritative locally.
				log.Debug().
					Str("challenge_id", p.ID).
					Str("kept", existing.Winner).
					Str("ignored", incoming.Winner).
					Msg("conflicting completed results, keeping first")
				incoming.Winner = existing.Winner
			}
		}
	}
	m.challenges[p.ID] = incoming
	ch := incoming.clone()
	m.mu.Unlock()

	switch ch.Status {
	case protocol.SuitStatusPending:
		m.ensureTimer(ch.ID, ch.Expiry)
		// Any participant may resolve once both moves are visible; waiting
		// on one designated resolver would leave the game stuck if that
		// side is slow to observe the other's move.
		if len(ch.Moves) >= 2 && ch.IsParticipant(m.selfID()) {
			m.resolve(ch)
		}
	case protocol.SuitStatusCompleted:
		m.cancelTimer(ch.ID)
		if m.OnCompleted != nil {
			m.OnCompleted(ch, live)
		}
	}
}

// Challenge returns a copy of the local record, if known.
func (m *Merger) Challenge(id string) (Challenge, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.challenges[id]
	if !ok {
		return Challenge{}, false
	}
	return ch.clone(), true
}

// HasMoved reports whether the participant already submitted a move.
func (m *Merger) HasMoved(challengeID, participantID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.challenges[challengeID]
	return ok && ch.Moves[participantID] != ""
}

// CreateChallenge broadcasts a fresh pending challenge against the given
// opponent and returns its id.
func (m *Merger) CreateChallenge(opponentID, opponentName string) (string, error) {
	id := uuid.NewString()
	p := protocol.SuitPayload{
		ID:             id,
		ChallengerID:   m.selfID(),
		ChallengerName: m.selfName(),
		OpponentID:     opponentID,
		OpponentName:   opponentName,
		Status:         protocol.SuitStatusPending,
		Expiry:         m.clock.Now().Add(challengeTTL).UnixMilli(),
		Moves:          map[string]string{},
	}
	return id, m.send(p)
}

// SubmitMove broadcasts the local participant's move for the challenge.
func (m *Merger) SubmitMove(challengeID, move string) error {
	m.mu.Lock()
	ch, ok := m.challenges[challengeID]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	snapshot := ch.clone()
	m.mu.Unlock()
	return m.sendMove(snapshot, m.selfID(), move)
}

// Stop cancels every countdown timer (session shutdown).
func (m *Merger) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, stop := range m.timers {
		close(stop)
		delete(m.timers, id)
	}
}

// resolve computes the winner locally and broadcasts the terminal result.
func (m *Merger) resolve(ch Challenge) {
	m1 := ch.Moves[ch.ChallengerID]
	m2 := ch.Moves[ch.OpponentID]
	if m1 == "" || m2 == "" {
		return
	}
	p := ch.toPayload()
	p.Status = protocol.SuitStatusCompleted
	p.Winner = Winner(m1, m2, ch.ChallengerID, ch.OpponentID)
	log.Debug().Str("challenge_id", ch.ID).Str("winner", p.Winner).Msg("resolving challenge")
	if err := m.send(p); err != nil {
		log.Debug().Err(err).Str("challenge_id", ch.ID).Msg("resolution send failed")
	}
}

// sendMove broadcasts the challenge with one additional move recorded for
// playerID. Local state is not mutated; the server echo merges it back.
func (m *Merger) sendMove(ch Challenge, playerID, move string) error {
	p := ch.toPayload()
	p.Moves[playerID] = move
	return m.send(p)
}

func (m *Merger) randomMove() string {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return allMoves[m.rng.Intn(len(allMoves))]
}

// ensureTimer starts the challenge countdown if not already running; a start
// while running is a no-op.
func (m *Merger) ensureTimer(id string, expiry time.Time) {
	m.mu.Lock()
	if _, running := m.timers[id]; running {
		m.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	m.timers[id] = stop
	m.mu.Unlock()

	ticker := m.clock.NewTicker(time.Second)
	go func() {
		defer ticker.Stop()
		var selfFired, forceFired bool
		for {
			select {
			case <-stop:
				return
			case <-ticker.Chan():
				left := expiry.Sub(m.clock.Now())
				if left <= 0 && !selfFired {
					selfFired = true
					m.timeoutSelf(id)
				}
				if left <= -forceOpponentAfter && !forceFired {
					forceFired = true
					m.timeoutForceOpponent(id)
				}
				if left <= -teardownAfter || m.isCompleted(id) {
					m.cancelTimer(id)
					return
				}
			}
		}
	}()
}

func (m *Merger) cancelTimer(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stop, running := m.timers[id]; running {
		close(stop)
		delete(m.timers, id)
	}
}

func (m *Merger) isCompleted(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.challenges[id]
	return ok && ch.Status == protocol.SuitStatusCompleted
}

// timeoutSelf auto-submits a random move for the local player at the
// nominal expiry tick.
func (m *Merger) timeoutSelf(id string) {
	ch, ok := m.timeoutSnapshot(id)
	if !ok {
		return
	}
	self := m.selfID()
	if ch.IsParticipant(self) && ch.Moves[self] == "" {
		log.Debug().Str("challenge_id", id).Msg("expiry reached, auto-submitting own move")
		if err := m.sendMove(ch, self, m.randomMove()); err != nil {
			log.Debug().Err(err).Str("challenge_id", id).Msg("auto move send failed")
		}
	}
}

// timeoutForceOpponent self-service-completes a stalled game: past the grace
// window the local player submits a random move on behalf of the missing
// opposite party.
func (m *Merger) timeoutForceOpponent(id string) {
	ch, ok := m.timeoutSnapshot(id)
	if !ok {
		return
	}
	self := m.selfID()
	var missing string
	switch self {
	case ch.ChallengerID:
		missing = ch.OpponentID
	case ch.OpponentID:
		missing = ch.ChallengerID
	default:
		return
	}
	if missing != "" && ch.Moves[missing] == "" {
		log.Debug().Str("challenge_id", id).Str("for", missing).Msg("forcing move for missing participant")
		if err := m.sendMove(ch, missing, m.randomMove()); err != nil {
			log.Debug().Err(err).Str("challenge_id", id).Msg("forced move send failed")
		}
	}
}

// timeoutSnapshot applies the shared timeout guards: no record, already
// completed, or more than the stale-guard past expiry all make the action a
// no-op.
func (m *Merger) timeoutSnapshot(id string) (Challenge, bool) {
	m.mu.Lock()
	ch, ok := m.challenges[id]
	if !ok || ch.Status == protocol.SuitStatusCompleted {
		m.mu.Unlock()
		return Challenge{}, false
	}
	snapshot := ch.clone()
	m.mu.Unlock()

	// A missing expiry decodes to the zero time, which is always past the
	// guard: a challenge that never carried a deadline must not be
	// force-resolved by the countdown.
	if m.clock.Now().After(snapshot.Expiry.Add(staleGuard)) {
		return Challenge{}, false
	}
	return snapshot, true
}
