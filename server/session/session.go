package session

import (
	"time"

	"github.com/djokodonev/egav-web-frontend/identity"
)

// Session is one signed-in browser session, snapshotted at callback time.
// The token fields are the server-side copy the refresh scheduler works on;
// cookies carry the same values to the browser.
type Session struct {
	ID       string
	OrgID    string
	OrgSlug  string
	Hostname string

	Email       string
	DisplayName string
	Hint        identity.AccessHint

	AccessToken     string
	RefreshToken    string
	AccessExpiresIn int

	CreatedAt time.Time
	ExpiresAt time.Time
}

type Repo interface {
	Upsert(orgID, sessionID string, session Session) error
	Get(orgID, sessionID string) (Session, error)
	Delete(orgID, sessionID string) error
}
