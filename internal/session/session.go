// Package session tracks who the backend believes the caller is.
//
// The store starts Unknown, becomes Authenticated or Anonymous after an identity
// query, and drops to Anonymous whenever any call reports the session invalid.
// Refreshes are coalesced, and a refresh that started before an invalidation or
// a login never overwrites the newer state.
package session

import (
	"time"
)

// State is the session state as last determined.
type State int

// Session states.
const (
	StateUnknown State = iota
	StateAuthenticated
	StateAnonymous
)

// String returns the string representation of a state.
func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// DeveloperProfile is the information supplied when enabling a developer account.
type DeveloperProfile struct {
	Company string `json:"company"`
	Website string `json:"website"`
	UseCase string `json:"useCase"`
}

// Identity is the user as reported by the backend.
type Identity struct {
	UserID           int64             `json:"id"`
	Username         string            `json:"username"`
	IsDeveloper      bool              `json:"isDeveloper"`
	DeveloperProfile *DeveloperProfile `json:"developerProfile,omitempty"`
}

// Snapshot is a copy of the store's state. Callers never share the store's memory.
type Snapshot struct {
	State       State
	Identity    Identity
	Stale       bool
	RefreshedAt time.Time
}

// Authenticated reports whether the snapshot holds a signed-in identity.
func (s Snapshot) Authenticated() bool {
	return s.State == StateAuthenticated
}

// clone deep-copies an identity.
func (i Identity) clone() Identity {
	c := i
	if i.DeveloperProfile != nil {
		p := *i.DeveloperProfile
		c.DeveloperProfile = &p
	}
	return c
}
