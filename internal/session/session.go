package session

import (
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/muhmuslimabdulj/goat-chat/internal/dedup"
	"github.com/muhmuslimabdulj/goat-chat/internal/game"
	"github.com/muhmuslimabdulj/goat-chat/internal/playback"
	"github.com/muhmuslimabdulj/goat-chat/internal/protocol"
	"github.com/muhmuslimabdulj/goat-chat/internal/queue"
)

// recentMessageCap bounds the retained message log.
const recentMessageCap = 100

// Conn is the transport capability the session drives. Sends are
// fire-and-forget requests; the session never holds write authority over
// canonical state.
type Conn interface {
	Send(protocol.Message) error
	KickedClose()
	Connected() bool
}

// Events are the side-effect callbacks consumers (UI layers) subscribe to.
// Live gating already happened: a callback only fires for messages the
// classifier deemed recently produced. All callbacks are optional.
type Events struct {
	OnConnected     func()
	OnDisconnected  func()
	OnChat          func(protocol.Message)
	OnTyping        func(fromID string, isTyping bool)
	OnKicked        func(reason string)
	OnHostGained    func()
	OnSuitCompleted func(ch game.Challenge)
	OnRequestAck    func()
}

// Session is the single dispatch point joining the transport stream, the
// dedup/liveness classifier, both playback engines, the queue coordinator
// and the game merger. All mutation happens on message arrival or timer
// tick; ordering is deterministic because snapshots are applied before the
// next correction tick can observe them.
type Session struct {
	clock      clockwork.Clock
	events     Events
	classifier *dedup.Classifier
	music      *playback.Engine
	nobar      *playback.Engine
	queues     *queue.Coordinator
	games      *game.Merger

	mu        sync.RWMutex
	conn      Conn
	selfID    string
	selfName  string
	selfColor string
	hostID    string
	token     string
	users     []protocol.User
	userCount int
	viewers   []protocol.NobarViewer
	kicked    bool
	recent    *messageLog
}

// New builds a session over the two supplied player handles. Bind must be
// called with the transport before messages flow.
func New(musicPlayer, nobarPlayer playback.Player, clock clockwork.Clock, events Events) *Session {
	s := &Session{
		clock:      clock,
		events:     events,
		classifier: dedup.NewClassifier(clock),
		recent:     newMessageLog(recentMessageCap),
	}

	s.music = playback.NewEngine("music", musicPlayer, clock, playback.Hooks{
		OnEnded: func() { s.reportMusicEnded() },
	})
	s.nobar = playback.NewEngine("nobar", nobarPlayer, clock, playback.Hooks{
		OnEnded:    func() { s.reportNobarEnded() },
		OnOverrun:  func() { s.stopNobarAsHost() },
		OnDuration: func(d float64) { s.reportNobarDuration(d) },
	})
	s.queues = queue.NewCoordinator(connSender{s}, s.IsHost)
	s.queues.OnRequestAck = func() {
		if s.events.OnRequestAck != nil {
			s.events.OnRequestAck()
		}
	}
	s.games = game.NewMerger(clock, s.selfIDProvider, s.selfNameProvider, func(p protocol.SuitPayload) error {
		return s.send(protocol.NewSuit(p))
	})
	s.games.OnCompleted = func(ch game.Challenge, live bool) {
		if live && s.events.OnSuitCompleted != nil {
			s.events.OnSuitCompleted(ch)
		}
	}
	return s
}

// Bind attaches the transport connection.
func (s *Session) Bind(conn Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
}

// connSender adapts the session's send path to the queue coordinator.
type connSender struct{ s *Session }

func (c connSender) Send(msg protocol.Message) error { return c.s.send(msg) }

func (s *Session) send(msg protocol.Message) error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return nil
	}
	return conn.Send(msg)
}

func (s *Session) selfIDProvider() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selfID
}

func (s *Session) selfNameProvider() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selfName
}

// HandleOpen is the transport open hook.
func (s *Session) HandleOpen() {
	s.classifier.ConnectionOpened()
	if s.events.OnConnected != nil {
		s.events.OnConnected()
	}
}

// HandleClose is the transport close hook. Correction timers must not keep
// seeking against stale state while disconnected: music is suspended in
// place, nobar is torn down.
func (s *Session) HandleClose() {
	s.music.Suspend()
	s.nobar.Stop()
	if s.events.OnDisconnected != nil {
		s.events.OnDisconnected()
	}
}

// HandleMessage is the transport message hook. Every handler is isolated:
// a protocol fault degrades that one message, never subsequent dispatch.
func (s *Session) HandleMessage(msg protocol.Message) {
	s.mu.RLock()
	kicked := s.kicked
	s.mu.RUnlock()
	if kicked {
		return
	}

	dispatch, live := s.classifier.Classify(msg)
	if !dispatch {
		return
	}

	switch msg.Type {
	case protocol.TypeIdentity:
		s.onIdentity(msg)
	case protocol.TypeSessionToken:
		s.onSessionToken(msg)
	case protocol.TypeUserJoin:
		s.onUserJoin(msg, live)
	case protocol.TypeUserLeave:
		s.onUserLeave(msg, live)
	case protocol.TypeUserSync:
		s.onUserSync(msg)
	case protocol.TypeChat, protocol.TypeSystem:
		s.onChat(msg, live)
	case protocol.TypeTyping:
		s.onTyping(msg)
	case protocol.TypeStatusUpdate:
		s.onStatusUpdate(msg)
	case protocol.TypeMusicSync:
		s.onMusicSync(msg)
	case protocol.TypeMusicQueueSync:
		s.onMusicQueueSync(msg)
	case protocol.TypeNobar:
		s.queues.HandleNobarAck(msg.Media())
	case protocol.TypeNobarSync:
		s.onNobarSync(msg)
	case protocol.TypeNobarQueueSync:
		s.queues.ApplyNobarSync(msg.NobarQueueSync())
	case protocol.TypeNobarViewers:
		s.onNobarViewers(msg)
	case protocol.TypeSuit:
		s.onSuit(msg, live)
	case protocol.TypeHostChange:
		s.onHostChange(msg, live)
	case protocol.TypeKick:
		s.onKick(msg)
	default:
		log.Debug().Str("type", string(msg.Type)).Msg("unhandled message type")
		s.addRecent(msg)
	}
}

func (s *Session) onIdentity(msg protocol.Message) {
	s.mu.Lock()
	s.selfID = msg.FromID
	s.selfName = msg.FromName
	s.selfColor = msg.FromColor
	s.mu.Unlock()
	log.Info().Str("id", msg.FromID).Str("persona", msg.FromName).Msg("identity assigned")
}

func (s *Session) onSessionToken(msg protocol.Message) {
	if token := msg.SessionToken().Token; token != "" {
		s.mu.Lock()
		s.token = token
		s.mu.Unlock()
	}
}

// isSelf matches by id with a persona-name fallback, because reconnection
// assigns a fresh id while the persona survives.
func (s *Session) isSelf(id, name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id != "" && s.selfID != "" && id == s.selfID {
		return true
	}
	return name != "" && s.selfName != "" && name == s.selfName
}

func (s *Session) onUserJoin(msg protocol.Message, live bool) {
	if s.isSelf(msg.FromID, msg.FromName) {
		// Own join confirmation: history is fully replayed, go live.
		s.classifier.MarkReady()
	}
	if live {
		s.addRecent(msg)
	}
}

func (s *Session) onUserLeave(msg protocol.Message, live bool) {
	if live {
		s.addRecent(msg)
	}
}

func (s *Session) onUserSync(msg protocol.Message) {
	p := msg.UserSync()
	s.mu.Lock()
	if p.UserCount > 0 {
		s.userCount = p.UserCount
	}
	if p.HostID != "" {
		s.hostID = p.HostID
	}
	if p.OnlineUsers != nil {
		s.users = p.OnlineUsers
	}
	s.mu.Unlock()
}

func (s *Session) onChat(msg protocol.Message, live bool) {
	s.addRecent(msg)
	if live && s.events.OnChat != nil {
		s.events.OnChat(msg)
	}
}

func (s *Session) onTyping(msg protocol.Message) {
	if s.events.OnTyping != nil {
		s.events.OnTyping(msg.FromID, msg.Typing().IsTyping)
	}
}

func (s *Session) onStatusUpdate(msg protocol.Message) {
	p := msg.StatusUpdate()
	s.mu.Lock()
	for i := range s.users {
		if s.users[i].ID == msg.FromID {
			s.users[i].Battery = p.Battery
		}
	}
	s.mu.Unlock()
}

func (s *Session) onMusicSync(msg protocol.Message) {
	p := msg.Media()
	if p.Action == protocol.ActionStop {
		s.music.Stop()
		return
	}
	s.music.Apply(playback.SnapshotFromPayload(p))
}

func (s *Session) onMusicQueueSync(msg protocol.Message) {
	if current := s.queues.ApplyMusicSync(msg.MusicQueueSync()); current != nil {
		s.music.Apply(playback.SnapshotFromPayload(*current))
	}
}

func (s *Session) onNobarSync(msg protocol.Message) {
	p := msg.Media()
	if p.VideoID == "" || p.Action == protocol.ActionStop {
		s.nobar.Stop()
		return
	}
	s.nobar.Apply(playback.SnapshotFromPayload(p))
}

func (s *Session) onNobarViewers(msg protocol.Message) {
	p := msg.NobarViewers()
	s.mu.Lock()
	s.viewers = p.Viewers
	s.mu.Unlock()
}

func (s *Session) onSuit(msg protocol.Message, live bool) {
	s.games.Apply(msg.Suit(), live)
	s.addRecent(msg)
}

func (s *Session) onHostChange(msg protocol.Message, live bool) {
	p := msg.HostChange()
	s.mu.Lock()
	wasHost := s.selfID != "" && s.selfID == s.hostID
	s.hostID = p.HostID
	isHost := s.selfID != "" && s.selfID == s.hostID
	s.mu.Unlock()

	log.Info().Str("host_id", p.HostID).Str("host_name", p.HostName).Msg("host changed")
	if live {
		s.addRecent(msg)
		if isHost && !wasHost && s.events.OnHostGained != nil {
			s.events.OnHostGained()
		}
	}
}

func (s *Session) onKick(msg protocol.Message) {
	s.mu.Lock()
	s.kicked = true
	conn := s.conn
	s.mu.Unlock()

	s.music.Stop()
	s.nobar.Stop()
	s.games.Stop()
	if conn != nil {
		conn.KickedClose()
	}
	log.Warn().Str("reason", msg.Kick().Reason).Msg("kicked from session")
	if s.events.OnKicked != nil {
		s.events.OnKicked(msg.Kick().Reason)
	}
}

func (s *Session) addRecent(msg protocol.Message) {
	s.mu.Lock()
	s.recent.Add(msg)
	s.mu.Unlock()
}

// --- host-side playback reports ---

func (s *Session) reportMusicEnded() {
	if !s.IsHost() {
		return
	}
	s.send(protocol.NewMusicControl(protocol.MediaPayload{Action: protocol.ActionEnded}))
}

func (s *Session) reportNobarEnded() {
	if !s.IsHost() {
		return
	}
	s.send(protocol.NewNobarControl(protocol.MediaPayload{Action: protocol.ActionEnded}))
}

func (s *Session) stopNobarAsHost() {
	if !s.IsHost() {
		return
	}
	s.send(protocol.NewNobarControl(protocol.MediaPayload{Action: protocol.ActionStop}))
}

func (s *Session) reportNobarDuration(seconds float64) {
	if !s.IsHost() {
		return
	}
	s.send(protocol.NewNobarControl(protocol.MediaPayload{
		Action:   protocol.ActionSyncMeta,
		Duration: int(seconds),
	}))
}
