package protocol

// Suit challenge statuses. Completed is terminal and sticky: a local record
// never reverts to pending once completed, regardless of arrival order.
const (
	SuitStatusPending   = "pending"
	SuitStatusCompleted = "completed"

	// SuitWinnerDraw marks an equal-move outcome.
	SuitWinnerDraw = "draw"
)

// SuitPayload is one partial or full update of an ephemeral two-player
// rock-paper-scissors challenge. Expiry is milliseconds since the Unix epoch.
// Moves maps participant id to move and holds at most two entries.
type SuitPayload struct {
	ID             string            `json:"id"`
	ChallengerID   string            `json:"challenger_id"`
	ChallengerName string            `json:"challenger_name,omitempty"`
	OpponentID     string            `json:"opponent_id,omitempty"`
	OpponentName   string            `json:"opponent_name,omitempty"`
	Status         string            `json:"status"`
	Winner         string            `json:"winner,omitempty"`
	Expiry         int64             `json:"expiry,omitempty"`
	Moves          map[string]string `json:"moves,omitempty"`
}

// Suit decodes a suit payload.
func (m Message) Suit() SuitPayload {
	var p SuitPayload
	m.decodePayload(&p)
	return p
}
