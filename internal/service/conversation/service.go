package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/neon-ghost/backend/internal/model/character"
	"github.com/zhouzirui/neon-ghost/backend/internal/service/relay"
)

var (
	ErrCharacterRequired = errors.New("character species is required")
	ErrSessionNotFound   = errors.New("session not found")
	ErrServiceClosed     = errors.New("conversation service is shut down")
)

// Config tunes the session registry.
type Config struct {
	TypingDelay time.Duration
	// IdleTTL closes sessions with no activity and no subscribers. Zero keeps them forever.
	IdleTTL time.Duration
	Logger  *zap.Logger
}

// Service keeps the live sessions of this process in memory.
type Service struct {
	relay   Relayer
	catalog *character.Catalog
	cfg     Config
	logger  *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
}

// NewService wires the registry around a relay. catalog may be nil.
func NewService(r Relayer, catalog *character.Catalog, cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Service{
		relay:    r,
		catalog:  catalog,
		cfg:      cfg,
		logger:   cfg.Logger.Named("conversation"),
		sessions: make(map[string]*Session),
	}
}

// CreateSession normalizes the character and starts a session with its welcome message.
func (s *Service) CreateSession(_ context.Context, c character.Descriptor) (*Session, error) {
	if c.Species == "" {
		return nil, ErrCharacterRequired
	}
	if s.catalog != nil {
		c = s.catalog.Normalize(c)
	}

	id := uuid.NewString()
	session := NewSession(id, s.relay, c, Options{
		TypingDelay: s.cfg.TypingDelay,
		Catalog:     s.catalog,
		Logger:      s.logger,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		session.Close()
		return nil, ErrServiceClosed
	}
	s.sessions[id] = session

	s.logger.Info("session created",
		zap.String("session_id", id),
		zap.String("species", c.Species),
		zap.String("realm", c.Realm),
	)
	return session, nil
}

// GetSession retrieves a live session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// CloseSession tears a session down and forgets it.
func (s *Service) CloseSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	session.Close()
	s.logger.Info("session closed", zap.String("session_id", sessionID))
	return nil
}

// Len returns the number of live sessions.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep closes sessions idle since before now-IdleTTL that nobody is subscribed to.
func (s *Service) Sweep(now time.Time) int {
	if s.cfg.IdleTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-s.cfg.IdleTTL)

	s.mu.Lock()
	var expired []*Session
	for id, session := range s.sessions {
		lastActive, watched := session.idleSince()
		if watched || lastActive.After(cutoff) {
			continue
		}
		expired = append(expired, session)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, session := range expired {
		session.Close()
	}
	if len(expired) > 0 {
		s.logger.Info("swept idle sessions", zap.Int("count", len(expired)), zap.Int("remaining", s.Len()))
	}
	return len(expired)
}

// Run sweeps on every tick until ctx is done, then closes every session.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Shutdown()
			return nil
		case now := <-ticker.C:
			s.Sweep(now.UTC())
		}
	}
}

// Shutdown closes every session and refuses new ones.
func (s *Service) Shutdown() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.closed = true
	s.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
	s.logger.Info("conversation service stopped", zap.Int("closed_sessions", len(sessions)))
}

func isOperatorFacing(err error) bool {
	return relay.IsConfigurationError(err)
}
