package protocol

import "encoding/json"

// Outbound constructors. The server fills sender identity and timestamps;
// client requests carry only a type and payload. Marshal errors cannot occur
// for these payload types, so the raw payload is built directly.

func newMessage(t MessageType, payload any) Message {
	raw, _ := json.Marshal(payload)
	return Message{Type: t, Payload: raw}
}

// NewChat builds a chat message request.
func NewChat(text string) Message {
	return newMessage(TypeChat, ChatPayload{Text: text})
}

// NewTyping builds a typing indicator update.
func NewTyping(isTyping bool) Message {
	return newMessage(TypeTyping, TypingPayload{IsTyping: isTyping})
}

// NewStatusUpdate builds a device status update.
func NewStatusUpdate(p StatusUpdatePayload) Message {
	return newMessage(TypeStatusUpdate, p)
}

// NewMusicControl builds a music control request (play, pause, resume, stop,
// seek, next, ended).
func NewMusicControl(p MediaPayload) Message {
	return newMessage(TypeMusic, p)
}

// NewMusicApprove builds a host approval for a pending music request.
func NewMusicApprove(requestID string) Message {
	return newMessage(TypeMusicApprove, ApprovalPayload{RequestID: requestID})
}

// NewMusicReject builds a host rejection for a pending music request.
func NewMusicReject(requestID string) Message {
	return newMessage(TypeMusicReject, ApprovalPayload{RequestID: requestID})
}

// NewNobarControl builds a nobar control request (play, approve, reject,
// skip, seek, view, unview, sync_meta, ended).
func NewNobarControl(p MediaPayload) Message {
	return newMessage(TypeNobar, p)
}

// NewSuit builds a suit update carrying the full merged challenge payload.
func NewSuit(p SuitPayload) Message {
	return newMessage(TypeSuit, p)
}
