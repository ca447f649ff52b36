package memory

import (
	"context"
	"sync"

	"github.com/thrivepath/practice-hub/internal/domain/catalog"
	"github.com/thrivepath/practice-hub/internal/domain/session"
	"github.com/thrivepath/practice-hub/internal/domain/shared"
)

// SessionRepository is an in-memory session.Repository.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[session.ID]*session.Session
}

// NewSessionRepository creates an empty in-memory session store.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		sessions: make(map[session.ID]*session.Session),
	}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, s *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ID]; exists {
		return shared.ErrAlreadyExists
	}

	r.sessions[s.ID] = cloneSession(s)
	return nil
}

// GetByID returns a session by ID.
func (r *SessionRepository) GetByID(ctx context.Context, id session.ID) (*session.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, shared.ErrSessionNotFound
	}

	return cloneSession(s), nil
}

// Update persists lifecycle transitions on an existing session.
func (r *SessionRepository) Update(ctx context.Context, s *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ID]; !exists {
		return shared.ErrSessionNotFound
	}

	r.sessions[s.ID] = cloneSession(s)
	return nil
}

// UpdateIf persists s only while the stored session still matches the
// expected status and scored flag.
func (r *SessionRepository) UpdateIf(ctx context.Context, s *session.Session, expected session.Status, expectedScored bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.sessions[s.ID]
	if !exists {
		return shared.ErrSessionNotFound
	}
	if current.Status != expected || current.Scored != expectedScored {
		return shared.ErrSessionStateChanged
	}

	r.sessions[s.ID] = cloneSession(s)
	return nil
}

// HasCompleted reports whether the user has a completed session for the app.
func (r *SessionRepository) HasCompleted(ctx context.Context, appID string, userID shared.UserID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sessions {
		if string(s.AppID) == appID && s.UserID == userID && s.Status == session.StatusCompleted {
			return true, nil
		}
	}

	return false, nil
}

// completedApps returns the set of apps the user has completed at least one
// session for. Used by the catalog repository's exclusion query.
func (r *SessionRepository) completedApps(userID shared.UserID) map[catalog.AppID]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[catalog.AppID]struct{})
	for _, s := range r.sessions {
		if s.UserID == userID && s.Status == session.StatusCompleted {
			out[s.AppID] = struct{}{}
		}
	}

	return out
}

func cloneSession(s *session.Session) *session.Session {
	cp := *s
	if s.CompletedAt != nil {
		at := *s.CompletedAt
		cp.CompletedAt = &at
	}
	if s.Responses != nil {
		cp.Responses = append([]byte(nil), s.Responses...)
	}
	if s.InteractionData != nil {
		cp.InteractionData = append([]byte(nil), s.InteractionData...)
	}
	return &cp
}
