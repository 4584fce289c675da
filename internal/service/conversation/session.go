package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/neon-ghost/backend/internal/model/character"
	"github.com/zhouzirui/neon-ghost/backend/internal/model/chat"
)

// Relayer is the slice of the chat relay a session needs.
type Relayer interface {
	Relay(ctx context.Context, history []chat.HistoryEntry, meta character.Descriptor) (chat.RelayResponse, error)
}

// ErrEmptyReply is reported when the relay succeeds with blank content.
var ErrEmptyReply = errors.New("relay returned an empty reply")

// EventType names a session event.
type EventType string

const (
	EventMessage EventType = "message"
	EventTyping  EventType = "typing"
	EventState   EventType = "state"
	EventNotice  EventType = "notice"
	EventClosed  EventType = "closed"
)

// Event is pushed to session subscribers.
type Event struct {
	Type      EventType     `json:"type"`
	SessionID string        `json:"sessionId"`
	Message   *chat.Message `json:"message,omitempty"`
	Typing    bool          `json:"typing,omitempty"`
	State     chat.State    `json:"state,omitempty"`
	Notice    *Notice       `json:"notice,omitempty"`
	Time      time.Time     `json:"time"`
}

// Options tunes a session. Zero values are replaced with defaults.
type Options struct {
	// TypingDelay is the pause between receiving a reply and appending it. Zero disables it.
	TypingDelay time.Duration
	Catalog     *character.Catalog
	Logger      *zap.Logger
	Now         func() time.Time
	NewID       func() string
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// Session is one conversation with one character. It is an explicit state machine:
// Idle -> AwaitingReply on an accepted Submit, back to Idle once the reply or the fallback
// has been appended. All methods are safe for concurrent use.
type Session struct {
	id     string
	relay  Relayer
	opts   Options
	logger *zap.Logger

	mu          sync.Mutex
	character   character.Descriptor
	messages    []chat.Message
	state       chat.State
	generation  uint64
	timer       *time.Timer
	closed      bool
	createdAt   time.Time
	lastActive  time.Time
	subscribers map[int]chan Event
	nextSubID   int
}

// NewSession creates and initializes a session for the character.
func NewSession(id string, relay Relayer, c character.Descriptor, opts Options) *Session {
	opts = opts.withDefaults()
	now := opts.Now()

	s := &Session{
		id:          id,
		relay:       relay,
		opts:        opts,
		logger:      opts.Logger.With(zap.String("session_id", id)),
		createdAt:   now,
		lastActive:  now,
		subscribers: make(map[int]chan Event),
	}
	s.Initialize(c)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Initialize resets the log to a single welcome message for c. Any pending reply is
// abandoned: its result will be discarded when it arrives.
func (s *Session) Initialize(c character.Descriptor) {
	known := s.opts.Catalog != nil && s.opts.Catalog.Knows(c)
	welcome := s.newMessage(chat.RoleAssistant, WelcomeText(c, known))

	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.stopTimerLocked()
	s.character = c
	s.messages = []chat.Message{welcome}
	s.state = chat.StateIdle
	s.lastActive = s.opts.Now()

	s.publishLocked(Event{Type: EventMessage, Message: &welcome})
	s.publishLocked(Event{Type: EventState, State: chat.StateIdle})
}

// Submit appends a user message and starts one relay call. It returns false without side
// effects when text is blank, a reply is pending, or the session is closed.
func (s *Session) Submit(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	s.mu.Lock()
	if s.closed || s.state != chat.StateIdle {
		s.mu.Unlock()
		return false
	}

	userMsg := s.newMessage(chat.RoleUser, text)
	s.messages = append(s.messages, userMsg)
	history := chat.History(s.messages)
	meta := s.character
	generation := s.generation
	s.state = chat.StateAwaitingReply
	s.lastActive = s.opts.Now()

	s.publishLocked(Event{Type: EventMessage, Message: &userMsg})
	s.publishLocked(Event{Type: EventState, State: chat.StateAwaitingReply})
	s.publishLocked(Event{Type: EventTyping, Typing: true})
	s.mu.Unlock()

	go s.await(generation, history, meta)
	return true
}

func (s *Session) await(generation uint64, history []chat.HistoryEntry, meta character.Descriptor) {
	resp, err := s.callRelay(history, meta)
	if err != nil {
		s.fail(generation, err)
		return
	}

	content := resp.Content()
	if strings.TrimSpace(content) == "" {
		s.fail(generation, ErrEmptyReply)
		return
	}
	s.scheduleReply(generation, content)
}

// callRelay converts a panicking relay into an error so in-flight state is always cleared.
// The call is detached from any request context: teardown discards the result instead of
// cancelling the call.
func (s *Session) callRelay(history []chat.HistoryEntry, meta character.Descriptor) (resp chat.RelayResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("relay panicked: %v", r)
		}
	}()
	return s.relay.Relay(context.Background(), history, meta)
}

func (s *Session) scheduleReply(generation uint64, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || generation != s.generation {
		s.logger.Debug("discarding reply for stale session state")
		return
	}

	if s.opts.TypingDelay <= 0 {
		s.appendReplyLocked(content)
		return
	}

	s.timer = time.AfterFunc(s.opts.TypingDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || generation != s.generation {
			return
		}
		s.timer = nil
		s.appendReplyLocked(content)
	})
}

func (s *Session) appendReplyLocked(content string) {
	reply := s.newMessage(chat.RoleAssistant, content)
	s.messages = append(s.messages, reply)
	s.state = chat.StateIdle
	s.lastActive = s.opts.Now()

	s.publishLocked(Event{Type: EventTyping, Typing: false})
	s.publishLocked(Event{Type: EventMessage, Message: &reply})
	s.publishLocked(Event{Type: EventState, State: chat.StateIdle})
}

func (s *Session) fail(generation uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || generation != s.generation {
		return
	}

	if isOperatorFacing(err) {
		s.logger.Error("relay is misconfigured", zap.Error(err))
	} else {
		s.logger.Warn("relay failed, appending fallback", zap.Error(err))
	}

	fallback := s.newMessage(chat.RoleAssistant, FallbackText)
	s.messages = append(s.messages, fallback)
	s.state = chat.StateIdle
	s.lastActive = s.opts.Now()

	notice := connectionNotice
	s.publishLocked(Event{Type: EventNotice, Notice: &notice})
	s.publishLocked(Event{Type: EventTyping, Typing: false})
	s.publishLocked(Event{Type: EventMessage, Message: &fallback})
	s.publishLocked(Event{Type: EventState, State: chat.StateIdle})
}

// Close tears the session down. No typing continuation fires afterwards and late relay
// results are dropped. Subscriber channels are closed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.publishLocked(Event{Type: EventClosed})

	s.closed = true
	s.generation++
	s.stopTimerLocked()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Messages returns a copy of the log, oldest first.
func (s *Session) Messages() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chat.Message(nil), s.messages...)
}

// State returns the current state machine position.
func (s *Session) State() chat.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Character returns the descriptor the session was initialized with.
func (s *Session) Character() character.Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.character
}

// Snapshot returns a serializable view of the session.
func (s *Session) Snapshot() chat.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return chat.Session{
		ID:        s.id,
		Character: s.character,
		State:     s.state,
		Messages:  append([]chat.Message(nil), s.messages...),
		CreatedAt: s.createdAt,
	}
}

// Subscribe registers for session events. Slow subscribers miss events rather than block the
// session. The returned func unsubscribes; the channel is also closed when the session is.
func (s *Session) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.lastActive = s.opts.Now()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subscribers[id]; ok {
			close(sub)
			delete(s.subscribers, id)
		}
	}
}

// idleSince reports the last activity time and whether anyone is watching the session.
func (s *Session) idleSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive, len(s.subscribers) > 0
}

func (s *Session) publishLocked(event Event) {
	event.SessionID = s.id
	event.Time = s.opts.Now()
	for id, ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			s.logger.Debug("dropping event for slow subscriber", zap.Int("subscriber", id), zap.String("event", string(event.Type)))
		}
	}
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// newMessage reads only immutable options and may be called with or without s.mu held.
func (s *Session) newMessage(role chat.Role, content string) chat.Message {
	return chat.Message{
		ID:        s.opts.NewID(),
		Role:      role,
		Content:   content,
		CreatedAt: s.opts.Now(),
	}
}
