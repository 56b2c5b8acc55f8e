package protocol

import (
	"encoding/json"
	"time"
)

// MessageType identifies the kind of message on the wire.
type MessageType string

const (
	TypeIdentity       MessageType = "identity"
	TypeSessionToken   MessageType = "session_token"
	TypeUserJoin       MessageType = "user_join"
	TypeUserLeave      MessageType = "user_leave"
	TypeUserSync       MessageType = "user_sync"
	TypeChat           MessageType = "chat"
	TypeSystem         MessageType = "system"
	TypeTyping         MessageType = "typing"
	TypeStatusUpdate   MessageType = "status_update"
	TypeMusic          MessageType = "music"
	TypeMusicSync      MessageType = "music_sync"
	TypeMusicApprove   MessageType = "music_approve"
	TypeMusicReject    MessageType = "music_reject"
	TypeMusicQueueSync MessageType = "music_queue_sync"
	TypeNobar          MessageType = "nobar"
	TypeNobarSync      MessageType = "nobar_sync"
	TypeNobarQueueSync MessageType = "nobar_queue_sync"
	TypeNobarViewers   MessageType = "nobar_viewers_sync"
	TypeSuit           MessageType = "suit"
	TypeHostChange     MessageType = "host_change"
	TypeKick           MessageType = "kick"

	// TypeUnknown is the explicit default for types this engine does not
	// handle. Unknown messages are retained in the message log untouched.
	TypeUnknown MessageType = ""
)

// knownTypes is the closed set of message kinds this engine dispatches on.
var knownTypes = map[MessageType]struct{}{
	TypeIdentity:       {},
	TypeSessionToken:   {},
	TypeUserJoin:       {},
	TypeUserLeave:      {},
	TypeUserSync:       {},
	TypeChat:           {},
	TypeSystem:         {},
	TypeTyping:         {},
	TypeStatusUpdate:   {},
	TypeMusic:          {},
	TypeMusicSync:      {},
	TypeMusicApprove:   {},
	TypeMusicReject:    {},
	TypeMusicQueueSync: {},
	TypeNobar:          {},
	TypeNobarSync:      {},
	TypeNobarQueueSync: {},
	TypeNobarViewers:   {},
	TypeSuit:           {},
	TypeHostChange:     {},
	TypeKick:           {},
}

// Known reports whether t is one of the message kinds this engine handles.
func (t MessageType) Known() bool {
	_, ok := knownTypes[t]
	return ok
}

// Message is one server broadcast or client request on the wire.
//
// ID is globally unique per emitted event when present; messages without an
// ID are continuous state updates and bypass deduplication entirely.
type Message struct {
	ID        string          `json:"id,omitempty"`
	Type      MessageType     `json:"type"`
	FromID    string          `json:"from_id,omitempty"`
	FromName  string          `json:"from_name,omitempty"`
	FromColor string          `json:"from_color,omitempty"`
	ToID      string          `json:"to_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at,omitempty"`
}

// decodePayload unmarshals the payload into v, leaving v zero-valued when the
// payload is absent or malformed. Protocol faults never abort dispatch; the
// handler sees fallback defaults instead.
func (m Message) decodePayload(v any) bool {
	if len(m.Payload) == 0 {
		return false
	}
	return json.Unmarshal(m.Payload, v) == nil
}

// User is one participant as carried in roster sync payloads.
type User struct {
	ID      string `json:"id"`
	Persona string `json:"persona"`
	Color   string `json:"color,omitempty"`
	Battery int    `json:"battery,omitempty"`
}

// UserSyncPayload is the silent roster snapshot.
type UserSyncPayload struct {
	UserCount   int    `json:"user_count"`
	HostID      string `json:"host_id,omitempty"`
	OnlineUsers []User `json:"online_users,omitempty"`
}

// UserSync decodes a user_sync payload with defensive defaults.
func (m Message) UserSync() UserSyncPayload {
	var p UserSyncPayload
	m.decodePayload(&p)
	return p
}

// SessionTokenPayload carries the token used on reconnect URLs.
type SessionTokenPayload struct {
	Token string `json:"token"`
}

// SessionToken decodes a session_token payload.
func (m Message) SessionToken() SessionTokenPayload {
	var p SessionTokenPayload
	m.decodePayload(&p)
	return p
}

// HostChangePayload announces a transfer of broadcast authority.
type HostChangePayload struct {
	HostID   string `json:"host_id"`
	HostName string `json:"host_name,omitempty"`
}

// HostChange decodes a host_change payload.
func (m Message) HostChange() HostChangePayload {
	var p HostChangePayload
	m.decodePayload(&p)
	return p
}

// KickPayload carries the reason a participant was removed.
type KickPayload struct {
	Reason string `json:"reason,omitempty"`
}

// Kick decodes a kick payload.
func (m Message) Kick() KickPayload {
	var p KickPayload
	m.decodePayload(&p)
	return p
}

// StatusUpdatePayload carries device metadata for the roster.
type StatusUpdatePayload struct {
	Battery     int    `json:"battery,omitempty"`
	DeviceModel string `json:"device_model,omitempty"`
}

// StatusUpdate decodes a status_update payload.
func (m Message) StatusUpdate() StatusUpdatePayload {
	var p StatusUpdatePayload
	m.decodePayload(&p)
	return p
}

// ChatPayload is the payload for chat messages.
type ChatPayload struct {
	Text string `json:"text"`
}

// Chat decodes a chat payload.
func (m Message) Chat() ChatPayload {
	var p ChatPayload
	m.decodePayload(&p)
	return p
}

// TypingPayload is the typing indicator payload.
type TypingPayload struct {
	IsTyping bool `json:"is_typing"`
}

// Typing decodes a typing payload.
func (m Message) Typing() TypingPayload {
	var p TypingPayload
	m.decodePayload(&p)
	return p
}
