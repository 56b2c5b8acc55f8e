package session

import "github.com/muhmuslimabdulj/goat-chat/internal/protocol"

// messageLog is a fixed-size circular buffer holding the recent messages
// kept for display. Oldest entries are overwritten once full.
type messageLog struct {
	data []protocol.Message
	head int
	size int
	cap  int
}

func newMessageLog(capacity int) *messageLog {
	return &messageLog{
		data: make([]protocol.Message, capacity),
		cap:  capacity,
	}
}

func (l *messageLog) Add(msg protocol.Message) {
	l.data[l.head] = msg
	l.head = (l.head + 1) % l.cap
	if l.size < l.cap {
		l.size++
	}
}

// All returns retained messages in chronological order, oldest first.
func (l *messageLog) All() []protocol.Message {
	if l.size == 0 {
		return nil
	}
	result := make([]protocol.Message, l.size)
	if l.size < l.cap {
		copy(result, l.data[:l.size])
	} else {
		copy(result, l.data[l.head:])
		copy(result[l.cap-l.head:], l.data[:l.head])
	}
	return result
}

func (l *messageLog) Len() int {
	return l.size
}
