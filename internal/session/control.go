package session

import (
	"github.com/muhmuslimabdulj/goat-chat/internal/game"
	"github.com/muhmuslimabdulj/goat-chat/internal/playback"
	"github.com/muhmuslimabdulj/goat-chat/internal/protocol"
	"github.com/muhmuslimabdulj/goat-chat/internal/queue"
)

// Control actions. Every method is a request to the server, never an
// optimistic mutation of local state: the authoritative result arrives back
// as a broadcast.

// SendChat sends a chat message.
func (s *Session) SendChat(text string) error {
	return s.send(protocol.NewChat(text))
}

// SetTyping publishes the typing indicator.
func (s *Session) SetTyping(isTyping bool) error {
	return s.send(protocol.NewTyping(isTyping))
}

// SendStatus publishes device metadata for the roster.
func (s *Session) SendStatus(p protocol.StatusUpdatePayload) error {
	return s.send(protocol.NewStatusUpdate(p))
}

// RequestMusic asks the server to play or enqueue a track.
func (s *Session) RequestMusic(videoID, title string) error {
	return s.send(protocol.NewMusicControl(protocol.MediaPayload{
		Action:  protocol.ActionPlay,
		VideoID: videoID,
		Title:   title,
	}))
}

// PauseMusic requests a pause (host only).
func (s *Session) PauseMusic() error {
	if !s.IsHost() {
		return nil
	}
	return s.send(protocol.NewMusicControl(protocol.MediaPayload{Action: protocol.ActionPause}))
}

// ResumeMusic requests a resume (host only).
func (s *Session) ResumeMusic() error {
	if !s.IsHost() {
		return nil
	}
	return s.send(protocol.NewMusicControl(protocol.MediaPayload{Action: protocol.ActionResume}))
}

// StopMusic requests a stop (host only).
func (s *Session) StopMusic() error {
	if !s.IsHost() {
		return nil
	}
	return s.send(protocol.NewMusicControl(protocol.MediaPayload{Action: protocol.ActionStop}))
}

// RequestNobar asks the server to start or enqueue a watch-together video.
func (s *Session) RequestNobar(videoID, title string) error {
	return s.send(protocol.NewNobarControl(protocol.MediaPayload{
		Action:  protocol.ActionPlay,
		VideoID: videoID,
		Title:   title,
	}))
}

// PauseNobar requests a nobar pause (host only).
func (s *Session) PauseNobar() error {
	if !s.IsHost() {
		return nil
	}
	return s.send(protocol.NewNobarControl(protocol.MediaPayload{Action: protocol.ActionPause}))
}

// ResumeNobar requests a nobar resume (host only).
func (s *Session) ResumeNobar() error {
	if !s.IsHost() {
		return nil
	}
	return s.send(protocol.NewNobarControl(protocol.MediaPayload{Action: protocol.ActionResume}))
}

// StopNobar requests a nobar stop (host only).
func (s *Session) StopNobar() error {
	if !s.IsHost() {
		return nil
	}
	return s.send(protocol.NewNobarControl(protocol.MediaPayload{Action: protocol.ActionStop}))
}

// SeekNobar requests a nobar position change (host only).
func (s *Session) SeekNobar(seconds float64) error {
	if !s.IsHost() {
		return nil
	}
	return s.send(protocol.NewNobarControl(protocol.MediaPayload{
		Action:      protocol.ActionSeek,
		CurrentTime: seconds,
	}))
}

// ViewNobar registers the local participant as an active viewer.
func (s *Session) ViewNobar() error {
	return s.send(protocol.NewNobarControl(protocol.MediaPayload{Action: protocol.ActionView}))
}

// UnviewNobar removes the local participant from the viewer list.
func (s *Session) UnviewNobar() error {
	return s.send(protocol.NewNobarControl(protocol.MediaPayload{Action: protocol.ActionUnview}))
}

// ChallengeSuit opens a rock-paper-scissors challenge against a participant.
func (s *Session) ChallengeSuit(opponentID, opponentName string) (string, error) {
	return s.games.CreateChallenge(opponentID, opponentName)
}

// SubmitSuitMove submits the local participant's move.
func (s *Session) SubmitSuitMove(challengeID, move string) error {
	return s.games.SubmitMove(challengeID, move)
}

// --- read-only accessors ---

// Me returns the locally assigned identity.
func (s *Session) Me() (id, name, color string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selfID, s.selfName, s.selfColor
}

// HostID returns the participant currently holding broadcast authority.
func (s *Session) HostID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hostID
}

// IsHost reports whether the local participant is the host.
func (s *Session) IsHost() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selfID != "" && s.selfID == s.hostID
}

// Token returns the session token captured for reconnect URLs.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Users returns a copy of the online roster.
func (s *Session) Users() []protocol.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]protocol.User, len(s.users))
	copy(out, s.users)
	return out
}

// Viewers returns a copy of the active nobar viewer list.
func (s *Session) Viewers() []protocol.NobarViewer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]protocol.NobarViewer, len(s.viewers))
	copy(out, s.viewers)
	return out
}

// Messages returns the retained recent messages, oldest first.
func (s *Session) Messages() []protocol.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recent.All()
}

// Ready reports whether live classification is active.
func (s *Session) Ready() bool {
	return s.classifier.Ready()
}

// Music exposes the music playback engine.
func (s *Session) Music() *playback.Engine { return s.music }

// Nobar exposes the nobar playback engine.
func (s *Session) Nobar() *playback.Engine { return s.nobar }

// Queues exposes the queue coordinator.
func (s *Session) Queues() *queue.Coordinator { return s.queues }

// Games exposes the suit challenge merger.
func (s *Session) Games() *game.Merger { return s.games }
