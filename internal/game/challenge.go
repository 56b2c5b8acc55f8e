package game

import (
	"time"

	"github.com/muhmuslimabdulj/goat-chat/internal/protocol"
)

// Moves in the fixed 3-cycle. Each move beats the one it precedes:
// paper > rock, scissors > paper, rock > scissors.
const (
	MoveRock     = "rock"
	MovePaper    = "paper"
	MoveScissors = "scissors"
)

var allMoves = []string{MoveRock, MovePaper, MoveScissors}

var moveScore = map[string]int{
	MoveRock:     0,
	MovePaper:    1,
	MoveScissors: 2,
}

// Challenge is the local record of one ephemeral two-player exchange.
// Completed is terminal: once reached, later updates never revert it.
type Challenge struct {
	ID             string
	ChallengerID   string
	ChallengerName string
	OpponentID     string
	OpponentName   string
	Status         string
	Winner         string
	Expiry         time.Time
	Moves          map[string]string
}

func fromPayload(p protocol.SuitPayload) *Challenge {
	ch := &Challenge{
		ID:             p.ID,
		ChallengerID:   p.ChallengerID,
		ChallengerName: p.ChallengerName,
		OpponentID:     p.OpponentID,
		OpponentName:   p.OpponentName,
		Status:         p.Status,
		Winner:         p.Winner,
		Moves:          make(map[string]string, 2),
	}
	if p.Expiry > 0 {
		ch.Expiry = time.UnixMilli(p.Expiry)
	}
	for id, move := range p.Moves {
		ch.Moves[id] = move
	}
	return ch
}

func (c *Challenge) toPayload() protocol.SuitPayload {
	p := protocol.SuitPayload{
		ID:             c.ID,
		ChallengerID:   c.ChallengerID,
		ChallengerName: c.ChallengerName,
		OpponentID:     c.OpponentID,
		OpponentName:   c.OpponentName,
		Status:         c.Status,
		Winner:         c.Winner,
		Moves:          make(map[string]string, len(c.Moves)),
	}
	if !c.Expiry.IsZero() {
		p.Expiry = c.Expiry.UnixMilli()
	}
	for id, move := range c.Moves {
		p.Moves[id] = move
	}
	return p
}

func (c *Challenge) clone() Challenge {
	out := *c
	out.Moves = make(map[string]string, len(c.Moves))
	for id, move := range c.Moves {
		out.Moves[id] = move
	}
	return out
}

// IsParticipant reports whether id is one of the two players.
func (c *Challenge) IsParticipant(id string) bool {
	return id != "" && (id == c.ChallengerID || id == c.OpponentID)
}

// Winner applies the cyclic rule. Equal moves are a draw; an unrecognized
// move loses outright (both unrecognized is a draw).
func Winner(challengerMove, opponentMove, challengerID, opponentID string) string {
	if challengerMove == opponentMove {
		return protocol.SuitWinnerDraw
	}
	v1, ok1 := moveScore[challengerMove]
	v2, ok2 := moveScore[opponentMove]
	switch {
	case !ok1 && !ok2:
		return protocol.SuitWinnerDraw
	case !ok1:
		return opponentID
	case !ok2:
		return challengerID
	case v1 == (v2+1)%3:
		return challengerID
	default:
		return opponentID
	}
}
