package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"pitboard/internal/models"
	"pitboard/internal/observability"
	"pitboard/internal/transport"
)

// Manager tracks live sessions keyed by viewer and post, and reaps the ones
// nobody has touched for a while.
type Manager struct {
	client  transport.Client
	cfg     Config
	idleTTL time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager builds an empty session registry.
func NewManager(client transport.Client, cfg Config, idleTTL time.Duration) *Manager {
	if idleTTL <= 0 {
		idleTTL = 15 * time.Minute
	}
	return &Manager{
		client:   client,
		cfg:      cfg,
		idleTTL:  idleTTL,
		sessions: make(map[string]*Session),
	}
}

func sessionKey(viewerID, postID string) string {
	return viewerID + "|" + postID
}

// Get returns the live session for this viewer and post, if one exists.
func (m *Manager) Get(viewerID, postID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionKey(viewerID, postID)]
	return s, ok
}

// Open returns the existing session for this viewer and post, or opens a new
// one against the upstream.
func (m *Manager) Open(ctx context.Context, postID string, viewer models.UserSummary) (*Session, error) {
	key := sessionKey(viewer.ID, postID)

	m.mu.Lock()
	if s, ok := m.sessions[key]; ok && !s.Closed() {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	s, err := Open(ctx, m.client, postID, viewer, m.cfg)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another request may have opened the same session while we were
	// fetching; keep the first one and discard ours.
	if existing, ok := m.sessions[key]; ok && !existing.Closed() {
		s.Close()
		return existing, nil
	}
	m.sessions[key] = s
	return s, nil
}

// Close shuts down and forgets one session. Returns false when no session
// was open for this viewer and post.
func (m *Manager) Close(viewerID, postID string) bool {
	key := sessionKey(viewerID, postID)
	m.mu.Lock()
	s, ok := m.sessions[key]
	if ok {
		delete(m.sessions, key)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.Close()
	return true
}

// CloseAll shuts down every session, for server shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}

// Len returns the number of registered sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// ReapIdle closes sessions untouched for longer than the idle TTL and
// returns how many were reaped.
func (m *Manager) ReapIdle(now time.Time) int {
	m.mu.Lock()
	var stale []*Session
	for key, s := range m.sessions {
		if now.Sub(s.LastActive()) > m.idleTTL || s.Closed() {
			stale = append(stale, s)
			delete(m.sessions, key)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	if len(stale) > 0 {
		observability.Logger.Info("reaped idle sessions", slog.Int("count", len(stale)))
	}
	return len(stale)
}

// StartReaper runs ReapIdle on a ticker until ctx is done.
func (m *Manager) StartReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				m.ReapIdle(now)
			}
		}
	}()
}
