package playback

import (
	"time"

	"github.com/muhmuslimabdulj/goat-chat/internal/protocol"
)

// Snapshot is one authoritative media state broadcast for a single track.
// Position is the playback offset as of SnapshotTime, never "current";
// consumers project elapsed wall-clock time before comparing to the player.
type Snapshot struct {
	VideoID      string
	Title        string
	IsPlaying    bool
	Position     float64
	SnapshotTime time.Time
	Duration     float64 // 0 when unknown
}

// SnapshotFromPayload maps a wire media payload onto a snapshot with
// defensive defaults for malformed fields.
func SnapshotFromPayload(p protocol.MediaPayload) Snapshot {
	pos := p.CurrentTime
	if pos < 0 {
		pos = 0
	}
	return Snapshot{
		VideoID:      p.VideoID,
		Title:        p.Title,
		IsPlaying:    p.IsPlaying,
		Position:     pos,
		SnapshotTime: p.StartTime,
		Duration:     float64(p.Duration),
	}
}

// ExpectedPosition projects the snapshot forward to now, clamped to
// [0, duration] when the duration is known.
func (s Snapshot) ExpectedPosition(now time.Time) float64 {
	pos := s.Position
	if s.IsPlaying && !s.SnapshotTime.IsZero() {
		pos += now.Sub(s.SnapshotTime).Seconds()
	}
	if pos < 0 {
		pos = 0
	}
	if s.Duration > 0 && pos > s.Duration {
		pos = s.Duration
	}
	return pos
}
