package session

import (
	"sync"

	"github.com/pkg/errors"

	bridgeerrors "github.com/djokodonev/egav-web-frontend/internal/errors"
)

// InMemoryRepo holds sessions per organization. Suitable for a single bridge
// instance; a shared deployment would back this with an external store.
type InMemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]map[string]Session // orgID -> sessionID -> Session
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		sessions: make(map[string]map[string]Session),
	}
}

func (r *InMemoryRepo) Upsert(orgID, sessionID string, session Session) error {
	if orgID == "" {
		return errors.Wrap(bridgeerrors.ErrInternal, "[InMemoryRepo.Upsert] orgID is required")
	}
	if sessionID == "" {
		return errors.Wrap(bridgeerrors.ErrInternal, "[InMemoryRepo.Upsert] sessionID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[orgID]; !ok {
		r.sessions[orgID] = make(map[string]Session)
	}
	r.sessions[orgID][sessionID] = session
	return nil
}

func (r *InMemoryRepo) Get(orgID, sessionID string) (Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orgSessions, ok := r.sessions[orgID]
	if !ok {
		return Session{}, errors.Wrap(bridgeerrors.ErrSessionNotFound, "[InMemoryRepo.Get]")
	}
	session, ok := orgSessions[sessionID]
	if !ok {
		return Session{}, errors.Wrap(bridgeerrors.ErrSessionNotFound, "[InMemoryRepo.Get]")
	}
	return session, nil
}

func (r *InMemoryRepo) Delete(orgID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	orgSessions, ok := r.sessions[orgID]
	if !ok {
		return nil
	}
	delete(orgSessions, sessionID)
	if len(orgSessions) == 0 {
		delete(r.sessions, orgID)
	}
	return nil
}
