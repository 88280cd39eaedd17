package flowrepo

import "time"

// FlowState is the server-side half of a PKCE session, keyed by the state
// nonce. It is written at flow initiation and consumed exactly once at
// callback.
type FlowState struct {
	Verifier        string
	ChallengeMethod string
	Mode            string
	ReturnURL       string
	Degraded        bool
	CreatedAt       time.Time
}

type Repo interface {
	Upsert(state string, flowState *FlowState) error
	Get(state string) (*FlowState, error)
	Delete(state string) error
}
