package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/djokodonev/egav-web-frontend/bootstrap"
	"github.com/djokodonev/egav-web-frontend/exchange"
	"github.com/djokodonev/egav-web-frontend/identity"
	bridgeerrors "github.com/djokodonev/egav-web-frontend/internal/errors"
	"github.com/djokodonev/egav-web-frontend/internal/utils"
	"github.com/djokodonev/egav-web-frontend/refresh"
)

const DefaultMaxAge = 8 * time.Hour

// Manager owns the session lifecycle: one refresh scheduler per signed-in
// session, armed at login, re-armed after every refresh, stopped at logout.
// A failed refresh ends the session.
type Manager struct {
	repo      Repo
	refresher refresh.Refresher
	maxAge    time.Duration
	nowTime   func() time.Time

	mu         sync.Mutex
	schedulers map[string]*refresh.Scheduler // sessionID -> scheduler
}

type ManagerOption func(*Manager)

func WithMaxAge(maxAge time.Duration) ManagerOption {
	return func(m *Manager) {
		m.maxAge = maxAge
	}
}

func WithNowTime(nowFunc func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

func NewManager(repo Repo, refresher refresh.Refresher, options ...ManagerOption) *Manager {
	manager := &Manager{
		repo:       repo,
		refresher:  refresher,
		maxAge:     DefaultMaxAge,
		nowTime:    time.Now,
		schedulers: make(map[string]*refresh.Scheduler),
	}
	for _, option := range options {
		option(manager)
	}
	return manager
}

// Identity is the display identity a new session is started with.
type Identity struct {
	Email       string
	DisplayName string
	Hint        identity.AccessHint
}

// Start records a new session for the exchanged token pair and arms its
// refresh scheduler.
func (m *Manager) Start(cfg *bootstrap.TenantConfig, hostname string, pair *exchange.TokenPair, who Identity) (Session, error) {
	now := m.nowTime()
	session := Session{
		ID:              uuid.NewString(),
		OrgID:           cfg.OrgID,
		OrgSlug:         cfg.OrgSlug,
		Hostname:        hostname,
		Email:           who.Email,
		DisplayName:     who.DisplayName,
		Hint:            who.Hint,
		AccessToken:     pair.AccessToken,
		RefreshToken:    utils.Value(pair.RefreshToken),
		AccessExpiresIn: pair.ExpiresIn,
		CreatedAt:       now,
		ExpiresAt:       now.Add(m.maxAge),
	}

	if err := m.repo.Upsert(session.OrgID, session.ID, session); err != nil {
		return Session{}, errors.Wrapf(err, "[Manager.Start] orgID %s", session.OrgID)
	}

	scheduler := refresh.NewScheduler(cfg,
		&repoTokenStore{repo: m.repo, orgID: session.OrgID, sessionID: session.ID},
		m.refresher,
		refresh.WithSessionEndHook(func() {
			m.drop(session.OrgID, session.ID)
		}),
	)

	m.mu.Lock()
	m.schedulers[session.ID] = scheduler
	m.mu.Unlock()

	scheduler.Arm()
	return session, nil
}

// Get returns the session if it exists and has not aged out. An aged-out
// session is deleted on read.
func (m *Manager) Get(orgID, sessionID string) (Session, error) {
	session, err := m.repo.Get(orgID, sessionID)
	if err != nil {
		return Session{}, err
	}
	if m.nowTime().After(session.ExpiresAt) {
		m.End(orgID, sessionID)
		return Session{}, errors.Wrap(bridgeerrors.ErrSessionExpired, "[Manager.Get]")
	}
	return session, nil
}

// UpdateTokens persists a refreshed pair onto the session and re-arms its
// scheduler. The old refresh token is kept when the provider did not rotate.
func (m *Manager) UpdateTokens(orgID, sessionID string, pair *exchange.TokenPair) error {
	session, err := m.repo.Get(orgID, sessionID)
	if err != nil {
		return err
	}

	session.AccessToken = pair.AccessToken
	session.AccessExpiresIn = pair.ExpiresIn
	if pair.HasRefreshToken() {
		session.RefreshToken = utils.Value(pair.RefreshToken)
	}
	if err := m.repo.Upsert(orgID, sessionID, session); err != nil {
		return errors.Wrapf(err, "[Manager.UpdateTokens] session %s", sessionID)
	}

	m.mu.Lock()
	scheduler := m.schedulers[sessionID]
	m.mu.Unlock()
	if scheduler != nil {
		scheduler.Arm()
	}
	return nil
}

// End stops the session's scheduler and removes the session. Used at logout.
func (m *Manager) End(orgID, sessionID string) {
	m.mu.Lock()
	scheduler := m.schedulers[sessionID]
	delete(m.schedulers, sessionID)
	m.mu.Unlock()

	if scheduler != nil {
		scheduler.Stop()
	}
	if err := m.repo.Delete(orgID, sessionID); err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("session delete failed")
	}
}

// drop removes a session whose scheduler already retired itself. It must not
// stop the scheduler, which is mid-fire when this runs.
func (m *Manager) drop(orgID, sessionID string) {
	m.mu.Lock()
	delete(m.schedulers, sessionID)
	m.mu.Unlock()

	if err := m.repo.Delete(orgID, sessionID); err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("session delete failed")
	}
	log.Info().Str("sessionId", sessionID).Msg("session ended after failed refresh")
}

// Shutdown stops every scheduler. Called when the server drains.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	schedulers := make([]*refresh.Scheduler, 0, len(m.schedulers))
	for _, scheduler := range m.schedulers {
		schedulers = append(schedulers, scheduler)
	}
	m.schedulers = make(map[string]*refresh.Scheduler)
	m.mu.Unlock()

	for _, scheduler := range schedulers {
		scheduler.Stop()
	}
}

// repoTokenStore adapts one session record to the refresh scheduler's token
// store interface.
type repoTokenStore struct {
	repo      Repo
	orgID     string
	sessionID string
}

func (s *repoTokenStore) Access() (string, bool) {
	session, err := s.repo.Get(s.orgID, s.sessionID)
	if err != nil || session.AccessToken == "" {
		return "", false
	}
	return session.AccessToken, true
}

func (s *repoTokenStore) Refresh() (string, bool) {
	session, err := s.repo.Get(s.orgID, s.sessionID)
	if err != nil || session.RefreshToken == "" {
		return "", false
	}
	return session.RefreshToken, true
}

func (s *repoTokenStore) SetAccess(value string, maxAgeSeconds int) {
	session, err := s.repo.Get(s.orgID, s.sessionID)
	if err != nil {
		return
	}
	session.AccessToken = value
	session.AccessExpiresIn = maxAgeSeconds
	_ = s.repo.Upsert(s.orgID, s.sessionID, session)
}

func (s *repoTokenStore) SetRefresh(value string, _ int) {
	session, err := s.repo.Get(s.orgID, s.sessionID)
	if err != nil {
		return
	}
	session.RefreshToken = value
	_ = s.repo.Upsert(s.orgID, s.sessionID, session)
}

func (s *repoTokenStore) Clear() {
	session, err := s.repo.Get(s.orgID, s.sessionID)
	if err != nil {
		return
	}
	session.AccessToken = ""
	session.RefreshToken = ""
	_ = s.repo.Upsert(s.orgID, s.sessionID, session)
}
