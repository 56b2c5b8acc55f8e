package session

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muhmuslimabdulj/goat-chat/internal/game"
	"github.com/muhmuslimabdulj/goat-chat/internal/playback"
	"github.com/muhmuslimabdulj/goat-chat/internal/protocol"
)

var sessBase = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

// fakeConn records outbound requests.
type fakeConn struct {
	mu     sync.Mutex
	sent   []protocol.Message
	kicked bool
}

func (f *fakeConn) Send(msg protocol.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeConn) KickedClose() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kicked = true
}

func (f *fakeConn) Connected() bool { return true }

func (f *fakeConn) all() []protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.Message, len(f.sent))
	copy(out, f.sent)
	return out
}

// stubPlayer satisfies playback.Player with inert behavior.
type stubPlayer struct{}

func (stubPlayer) Load(string) error                  { return nil }
func (stubPlayer) Play() error                        { return nil }
func (stubPlayer) Pause() error                       { return nil }
func (stubPlayer) Stop() error                        { return nil }
func (stubPlayer) Seek(float64) error                 { return nil }
func (stubPlayer) Position() (float64, error)         { return 0, nil }
func (stubPlayer) Duration() (float64, error)         { return 0, nil }
func (stubPlayer) State() (playback.PlayerState, error) {
	return playback.StateUnstarted, nil
}

func newTestSession(events Events) (*Session, *fakeConn, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(sessBase)
	s := New(stubPlayer{}, stubPlayer{}, clock, events)
	conn := &fakeConn{}
	s.Bind(conn)
	return s, conn, clock
}

func wireMsg(t *testing.T, typ protocol.MessageType, payload any) protocol.Message {
	t.Helper()
	msg := protocol.Message{Type: typ}
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		msg.Payload = raw
	}
	return msg
}

// goLive assigns the identity and replays the own-join confirmation so the
// classifier treats subsequent fresh messages as live.
func goLive(t *testing.T, s *Session, clock clockwork.Clock, selfID string) {
	t.Helper()
	s.HandleMessage(protocol.Message{Type: protocol.TypeIdentity, FromID: selfID, FromName: "Self"})
	join := wireMsg(t, protocol.TypeUserJoin, nil)
	join.FromID = selfID
	join.CreatedAt = clock.Now()
	s.HandleMessage(join)
	require.True(t, s.Ready())
}

func TestIdentityAssignsSelf(t *testing.T) {
	s, _, _ := newTestSession(Events{})

	s.HandleMessage(protocol.Message{
		Type:      protocol.TypeIdentity,
		FromID:    "u1",
		FromName:  "Goat",
		FromColor: "#fff",
	})

	id, name, color := s.Me()
	assert.Equal(t, "u1", id)
	assert.Equal(t, "Goat", name)
	assert.Equal(t, "#fff", color)
}

func TestOwnJoinMarksReady(t *testing.T) {
	s, _, clock := newTestSession(Events{})
	assert.False(t, s.Ready())

	goLive(t, s, clock, "u1")
	assert.True(t, s.Ready())
}

func TestForeignJoinDoesNotMarkReady(t *testing.T) {
	s, _, clock := newTestSession(Events{})
	s.HandleMessage(protocol.Message{Type: protocol.TypeIdentity, FromID: "u1", FromName: "Self"})

	join := protocol.Message{Type: protocol.TypeUserJoin, FromID: "u2", FromName: "Other", CreatedAt: clock.Now()}
	s.HandleMessage(join)

	assert.False(t, s.Ready())
}

func TestDuplicateChatDispatchedOnce(t *testing.T) {
	chats := 0
	s, _, clock := newTestSession(Events{OnChat: func(protocol.Message) { chats++ }})
	goLive(t, s, clock, "u1")

	chat := wireMsg(t, protocol.TypeChat, protocol.ChatPayload{Text: "hi"})
	chat.ID = "m1"
	chat.FromID = "u2"
	chat.CreatedAt = clock.Now()

	s.HandleMessage(chat)
	s.HandleMessage(chat)

	assert.Equal(t, 1, chats)
	assert.Len(t, s.Messages(), 1)
}

func TestHistoricalChatRetainedButSilent(t *testing.T) {
	chats := 0
	s, _, clock := newTestSession(Events{OnChat: func(protocol.Message) { chats++ }})

	// Replayed history before the own-join confirmation: retained for
	// display, no live side effects.
	chat := wireMsg(t, protocol.TypeChat, protocol.ChatPayload{Text: "old"})
	chat.ID = "m1"
	chat.CreatedAt = clock.Now().Add(-time.Hour)
	s.HandleMessage(chat)

	assert.Zero(t, chats)
	assert.Len(t, s.Messages(), 1)
}

func TestUserSyncUpdatesRoster(t *testing.T) {
	s, _, _ := newTestSession(Events{})

	s.HandleMessage(wireMsg(t, protocol.TypeUserSync, protocol.UserSyncPayload{
		UserCount: 2,
		HostID:    "h1",
		OnlineUsers: []protocol.User{
			{ID: "h1", Persona: "Host"},
			{ID: "u2", Persona: "Guest"},
		},
	}))

	assert.Equal(t, "h1", s.HostID())
	assert.Len(t, s.Users(), 2)

	// A sync omitting the host and roster must not clear them.
	s.HandleMessage(wireMsg(t, protocol.TypeUserSync, protocol.UserSyncPayload{UserCount: 3}))

	assert.Equal(t, "h1", s.HostID())
	assert.Len(t, s.Users(), 2)
}

func TestStatusUpdatePatchesRoster(t *testing.T) {
	s, _, _ := newTestSession(Events{})
	s.HandleMessage(wireMsg(t, protocol.TypeUserSync, protocol.UserSyncPayload{
		OnlineUsers: []protocol.User{{ID: "u2", Persona: "Guest"}},
	}))

	status := wireMsg(t, protocol.TypeStatusUpdate, protocol.StatusUpdatePayload{Battery: 77})
	status.FromID = "u2"
	s.HandleMessage(status)

	users := s.Users()
	require.Len(t, users, 1)
	assert.Equal(t, 77, users[0].Battery)
}

func TestMusicSyncDrivesEngine(t *testing.T) {
	s, _, _ := newTestSession(Events{})

	s.HandleMessage(wireMsg(t, protocol.TypeMusicSync, protocol.MediaPayload{
		VideoID:   "vid1",
		IsPlaying: true,
		StartTime: sessBase,
	}))
	assert.Equal(t, playback.TrackLoading, s.Music().Status())

	s.HandleMessage(wireMsg(t, protocol.TypeMusicSync, protocol.MediaPayload{Action: protocol.ActionStop}))
	assert.Equal(t, playback.TrackStopped, s.Music().Status())
}

func TestMusicQueueSyncAppliesCurrentTrack(t *testing.T) {
	s, _, _ := newTestSession(Events{})

	s.HandleMessage(wireMsg(t, protocol.TypeMusicQueueSync, protocol.MusicQueueSyncPayload{
		Queue:        []protocol.QueueItem{{ID: "q1", VideoID: "vid9"}},
		CurrentMusic: &protocol.MediaPayload{VideoID: "vid9", IsPlaying: true},
	}))

	assert.Equal(t, playback.TrackLoading, s.Music().Status())
	require.Len(t, s.Queues().MusicQueue(), 1)
}

func TestNobarSyncWithoutVideoStops(t *testing.T) {
	s, _, _ := newTestSession(Events{})

	s.HandleMessage(wireMsg(t, protocol.TypeNobarSync, protocol.MediaPayload{
		VideoID:   "vid1",
		IsPlaying: true,
		StartTime: sessBase,
	}))
	assert.Equal(t, playback.TrackLoading, s.Nobar().Status())

	s.HandleMessage(wireMsg(t, protocol.TypeNobarSync, protocol.MediaPayload{}))
	assert.Equal(t, playback.TrackStopped, s.Nobar().Status())
}

func TestNobarViewersTracked(t *testing.T) {
	s, _, _ := newTestSession(Events{})

	s.HandleMessage(wireMsg(t, protocol.TypeNobarViewers, protocol.NobarViewersPayload{
		Viewers: []protocol.NobarViewer{{ID: "u2", PersonaName: "Guest"}},
		Count:   1,
	}))

	viewers := s.Viewers()
	require.Len(t, viewers, 1)
	assert.Equal(t, "u2", viewers[0].ID)
}

func TestSessionTokenCaptured(t *testing.T) {
	s, _, _ := newTestSession(Events{})

	s.HandleMessage(wireMsg(t, protocol.TypeSessionToken, protocol.SessionTokenPayload{Token: "tok-1"}))
	assert.Equal(t, "tok-1", s.Token())

	// An empty token broadcast must not clear the captured one.
	s.HandleMessage(wireMsg(t, protocol.TypeSessionToken, protocol.SessionTokenPayload{}))
	assert.Equal(t, "tok-1", s.Token())
}

func TestHostChangeGrantsAuthorityOnce(t *testing.T) {
	gained := 0
	s, _, clock := newTestSession(Events{OnHostGained: func() { gained++ }})
	goLive(t, s, clock, "u1")
	require.False(t, s.IsHost())

	change := wireMsg(t, protocol.TypeHostChange, protocol.HostChangePayload{HostID: "u1", HostName: "Self"})
	change.CreatedAt = clock.Now()
	s.HandleMessage(change)

	assert.True(t, s.IsHost())
	assert.Equal(t, 1, gained)

	// Re-announcing the same host must not fire again.
	s.HandleMessage(change)
	assert.Equal(t, 1, gained)
}

func TestHistoricalHostChangeIsSilent(t *testing.T) {
	gained := 0
	s, _, clock := newTestSession(Events{OnHostGained: func() { gained++ }})
	goLive(t, s, clock, "u1")

	change := wireMsg(t, protocol.TypeHostChange, protocol.HostChangePayload{HostID: "u1"})
	change.CreatedAt = clock.Now().Add(-time.Hour)
	s.HandleMessage(change)

	// Authority still transfers from replayed history, silently.
	assert.True(t, s.IsHost())
	assert.Zero(t, gained)
}

func TestKickLatchesSession(t *testing.T) {
	var reason string
	chats := 0
	s, conn, clock := newTestSession(Events{
		OnKicked: func(r string) { reason = r },
		OnChat:   func(protocol.Message) { chats++ },
	})
	goLive(t, s, clock, "u1")

	s.HandleMessage(wireMsg(t, protocol.TypeKick, protocol.KickPayload{Reason: "spam"}))

	assert.Equal(t, "spam", reason)
	assert.True(t, conn.kicked)

	// Nothing dispatches after the latch.
	chat := wireMsg(t, protocol.TypeChat, protocol.ChatPayload{Text: "late"})
	chat.CreatedAt = clock.Now()
	s.HandleMessage(chat)
	assert.Zero(t, chats)
	assert.Empty(t, s.Messages())
}

func TestSuitCompletedFiresWhenLive(t *testing.T) {
	var completed []game.Challenge
	s, _, clock := newTestSession(Events{OnSuitCompleted: func(ch game.Challenge) {
		completed = append(completed, ch)
	}})
	goLive(t, s, clock, "u1")

	suit := wireMsg(t, protocol.TypeSuit, protocol.SuitPayload{
		ID:           "c1",
		ChallengerID: "u2",
		OpponentID:   "u3",
		Status:       protocol.SuitStatusCompleted,
		Winner:       "u2",
		Moves:        map[string]string{"u2": "rock", "u3": "scissors"},
	})
	suit.CreatedAt = clock.Now()
	s.HandleMessage(suit)

	require.Len(t, completed, 1)
	assert.Equal(t, "u2", completed[0].Winner)
}

func TestRequestAckSurfaces(t *testing.T) {
	acks := 0
	s, _, _ := newTestSession(Events{OnRequestAck: func() { acks++ }})

	s.HandleMessage(wireMsg(t, protocol.TypeNobar, protocol.MediaPayload{
		Action: protocol.ActionRequestSuccess,
	}))

	assert.Equal(t, 1, acks)
}

func TestUnknownTypeRetained(t *testing.T) {
	s, _, _ := newTestSession(Events{})

	s.HandleMessage(protocol.Message{Type: protocol.MessageType("future_thing")})

	assert.Len(t, s.Messages(), 1)
}

func TestDisconnectStopsNobar(t *testing.T) {
	disconnects := 0
	s, _, _ := newTestSession(Events{OnDisconnected: func() { disconnects++ }})

	s.HandleMessage(wireMsg(t, protocol.TypeNobarSync, protocol.MediaPayload{
		VideoID:   "vid1",
		IsPlaying: true,
		StartTime: sessBase,
	}))
	require.Equal(t, playback.TrackLoading, s.Nobar().Status())

	s.HandleClose()

	assert.Equal(t, 1, disconnects)
	assert.Equal(t, playback.TrackStopped, s.Nobar().Status())
}

func TestHostGatedControls(t *testing.T) {
	s, conn, clock := newTestSession(Events{})
	goLive(t, s, clock, "u1")

	// Not host yet: gated controls are silent no-ops.
	require.NoError(t, s.PauseMusic())
	require.NoError(t, s.StopNobar())
	assert.Empty(t, conn.all())

	s.HandleMessage(wireMsg(t, protocol.TypeUserSync, protocol.UserSyncPayload{HostID: "u1"}))
	require.True(t, s.IsHost())

	require.NoError(t, s.PauseMusic())
	sent := conn.all()
	require.Len(t, sent, 1)
	assert.Equal(t, protocol.TypeMusic, sent[0].Type)
	assert.Equal(t, protocol.ActionPause, sent[0].Media().Action)
}

func TestOpenControlsAlwaysSend(t *testing.T) {
	s, conn, _ := newTestSession(Events{})

	require.NoError(t, s.SendChat("hello"))
	require.NoError(t, s.RequestMusic("vid1", "Song"))
	require.NoError(t, s.ViewNobar())

	sent := conn.all()
	require.Len(t, sent, 3)
	assert.Equal(t, protocol.TypeChat, sent[0].Type)
	assert.Equal(t, "hello", sent[0].Chat().Text)
	assert.Equal(t, protocol.ActionPlay, sent[1].Media().Action)
	assert.Equal(t, protocol.ActionView, sent[2].Media().Action)
}
