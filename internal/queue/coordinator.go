package queue

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/muhmuslimabdulj/goat-chat/internal/protocol"
)

// Sender transmits a control request to the server. Requests are never
// applied optimistically to queue contents.
type Sender interface {
	Send(protocol.Message) error
}

// Coordinator owns the ordered pending-request and play-queue sequences for
// both media tracks. It is purely reactive: every queue broadcast is the
// full authoritative state and replaces the local sequences wholesale; there
// is no local merge and non-host clients never reorder.
type Coordinator struct {
	sender Sender
	isHost func() bool

	mu            sync.RWMutex
	musicQueue    []protocol.QueueItem
	musicPending  []protocol.QueueItem
	nobarQueue    []protocol.QueueItem
	nobarRequests []protocol.QueueItem

	// OnRequestAck surfaces the transient "request sent" acknowledgement; it
	// never touches queue data.
	OnRequestAck func()
}

// NewCoordinator builds a coordinator sending control requests through the
// given sender. isHost gates host-only actions.
func NewCoordinator(sender Sender, isHost func() bool) *Coordinator {
	return &Coordinator{sender: sender, isHost: isHost}
}

// ApplyMusicSync replaces music queue state and returns the piggybacked
// current-track payload, if any, for the playback engine.
func (c *Coordinator) ApplyMusicSync(p protocol.MusicQueueSyncPayload) *protocol.MediaPayload {
	c.mu.Lock()
	c.musicQueue = p.Queue
	c.musicPending = p.PendingQueue
	c.mu.Unlock()
	log.Debug().Int("queue", len(p.Queue)).Int("pending", len(p.PendingQueue)).Msg("music queue replaced")
	return p.CurrentMusic
}

// ApplyNobarSync replaces nobar request and queue state.
func (c *Coordinator) ApplyNobarSync(p protocol.NobarQueueSyncPayload) {
	c.mu.Lock()
	c.nobarRequests = p.Requests
	c.nobarQueue = p.Queue
	c.mu.Unlock()
	log.Debug().Int("queue", len(p.Queue)).Int("requests", len(p.Requests)).Msg("nobar queue replaced")
}

// HandleNobarAck processes a direct nobar control reply.
func (c *Coordinator) HandleNobarAck(p protocol.MediaPayload) {
	if p.Action == protocol.ActionRequestSuccess && c.OnRequestAck != nil {
		c.OnRequestAck()
	}
}

// MusicQueue returns a copy of the accepted music queue.
func (c *Coordinator) MusicQueue() []protocol.QueueItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyItems(c.musicQueue)
}

// PendingMusicRequests returns a copy of requests awaiting host approval.
func (c *Coordinator) PendingMusicRequests() []protocol.QueueItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyItems(c.musicPending)
}

// NobarQueue returns a copy of the accepted nobar queue.
func (c *Coordinator) NobarQueue() []protocol.QueueItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyItems(c.nobarQueue)
}

// NobarRequests returns a copy of nobar requests awaiting host approval.
func (c *Coordinator) NobarRequests() []protocol.QueueItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyItems(c.nobarRequests)
}

func copyItems(items []protocol.QueueItem) []protocol.QueueItem {
	out := make([]protocol.QueueItem, len(items))
	copy(out, items)
	return out
}

// ApproveMusicRequest asks the server to accept a pending song request.
func (c *Coordinator) ApproveMusicRequest(requestID string) error {
	if !c.isHost() {
		return nil
	}
	return c.sender.Send(protocol.NewMusicApprove(requestID))
}

// RejectMusicRequest asks the server to drop a pending song request.
func (c *Coordinator) RejectMusicRequest(requestID string) error {
	if !c.isHost() {
		return nil
	}
	return c.sender.Send(protocol.NewMusicReject(requestID))
}

// NextMusic asks the server to advance the music queue.
func (c *Coordinator) NextMusic() error {
	if !c.isHost() {
		return nil
	}
	return c.sender.Send(protocol.NewMusicControl(protocol.MediaPayload{Action: protocol.ActionNext}))
}

// SeekMusic asks the server to move the music position.
func (c *Coordinator) SeekMusic(seconds float64) error {
	if !c.isHost() {
		return nil
	}
	return c.sender.Send(protocol.NewMusicControl(protocol.MediaPayload{
		Action:      protocol.ActionSeek,
		CurrentTime: seconds,
	}))
}

// ApproveNobarRequest asks the server to accept a pending nobar request.
func (c *Coordinator) ApproveNobarRequest(requestID string) error {
	if !c.isHost() {
		return nil
	}
	return c.sender.Send(protocol.NewNobarControl(protocol.MediaPayload{
		Action:    protocol.ActionApprove,
		RequestID: requestID,
	}))
}

// RejectNobarRequest asks the server to drop a pending nobar request.
func (c *Coordinator) RejectNobarRequest(requestID string) error {
	if !c.isHost() {
		return nil
	}
	return c.sender.Send(protocol.NewNobarControl(protocol.MediaPayload{
		Action:    protocol.ActionReject,
		RequestID: requestID,
	}))
}

// SkipNobar asks the server to advance the nobar queue.
func (c *Coordinator) SkipNobar() error {
	if !c.isHost() {
		return nil
	}
	return c.sender.Send(protocol.NewNobarControl(protocol.MediaPayload{Action: protocol.ActionSkip}))
}
