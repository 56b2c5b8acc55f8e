package protocol

import "time"

// Media control actions, shared by the music and nobar channels.
const (
	ActionPlay     = "play"
	ActionPause    = "pause"
	ActionResume   = "resume"
	ActionStop     = "stop"
	ActionSeek     = "seek"
	ActionNext     = "next"
	ActionSkip     = "skip"
	ActionEnded    = "ended"
	ActionApprove  = "approve"
	ActionReject   = "reject"
	ActionView     = "view"
	ActionUnview   = "unview"
	ActionSyncMeta = "sync_meta"

	// ActionRequestSuccess acknowledges a media request; it is transient UI
	// feedback and never mutates queue state.
	ActionRequestSuccess = "request_success"
)

// MediaPayload is the shared shape of music and nobar state broadcasts and
// control requests. CurrentTime is the playback offset as of StartTime;
// consumers must project elapsed wall-clock time before treating it as
// current.
type MediaPayload struct {
	VideoID     string    `json:"video_id,omitempty"`
	Title       string    `json:"title,omitempty"`
	Action      string    `json:"action,omitempty"`
	StartTime   time.Time `json:"start_time,omitempty"`
	CurrentTime float64   `json:"current_time,omitempty"`
	Duration    int       `json:"duration,omitempty"`
	IsPlaying   bool      `json:"is_playing,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
}

// Media decodes a music_sync, nobar_sync, music or nobar payload.
func (m Message) Media() MediaPayload {
	var p MediaPayload
	m.decodePayload(&p)
	return p
}

// QueueItem is one pending or accepted media request.
type QueueItem struct {
	ID              string `json:"id"`
	VideoID         string `json:"video_id"`
	Title           string `json:"title,omitempty"`
	RequestedBy     string `json:"requested_by"`
	RequestedByName string `json:"requested_by_name,omitempty"`
}

// MusicQueueSyncPayload is the full authoritative music queue state.
type MusicQueueSyncPayload struct {
	Queue        []QueueItem   `json:"queue"`
	PendingQueue []QueueItem   `json:"pending_queue"`
	CurrentMusic *MediaPayload `json:"current_music,omitempty"`
}

// MusicQueueSync decodes a music_queue_sync payload.
func (m Message) MusicQueueSync() MusicQueueSyncPayload {
	var p MusicQueueSyncPayload
	m.decodePayload(&p)
	return p
}

// NobarQueueSyncPayload is the full authoritative nobar request/queue state.
type NobarQueueSyncPayload struct {
	Requests []QueueItem `json:"requests"`
	Queue    []QueueItem `json:"queue"`
}

// NobarQueueSync decodes a nobar_queue_sync payload.
func (m Message) NobarQueueSync() NobarQueueSyncPayload {
	var p NobarQueueSyncPayload
	m.decodePayload(&p)
	return p
}

// NobarViewer is one active watch-together viewer.
type NobarViewer struct {
	ID           string `json:"id"`
	PersonaName  string `json:"persona_name"`
	PersonaColor string `json:"persona_color,omitempty"`
}

// NobarViewersPayload lists active viewers.
type NobarViewersPayload struct {
	Viewers []NobarViewer `json:"viewers"`
	Count   int           `json:"count"`
}

// NobarViewers decodes a nobar_viewers_sync payload.
func (m Message) NobarViewers() NobarViewersPayload {
	var p NobarViewersPayload
	m.decodePayload(&p)
	return p
}

// ApprovalPayload carries a host approve/reject decision for a request.
type ApprovalPayload struct {
	RequestID string `json:"request_id"`
}
