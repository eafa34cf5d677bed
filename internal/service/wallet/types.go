package wallet

import (
	"time"

	"github.com/quantumwallet/qwallet/internal/gateway"
)

// State is a wallet's lifecycle state.
type State int

const (
	// StateCreating is a generation call in flight.
	StateCreating State = iota
	// StateActive is a wallet known to exist.
	StateActive
	// StateDeleting is a deletion call in flight.
	StateDeleting
	// StateDeleted is a wallet removed by the backend.
	StateDeleted
	// StateDeletionRefused is the outcome of a delete request the balance rule rejected.
	// The wallet stays Active.
	StateDeletionRefused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateCreating:
		return "creating"
	case StateActive:
		return "active"
	case StateDeleting:
		return "deleting"
	case StateDeleted:
		return "deleted"
	case StateDeletionRefused:
		return "deletion_refused"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// DisplayZero is shown for a balance that was never confirmed.
const DisplayZero = "0"

// Display is a balance prepared for display. Known=false means Value is the
// fallback and must not be used for decisions.
type Display struct {
	Value      string    `json:"value"`
	Known      bool      `json:"known"`
	ObservedAt time.Time `json:"observed_at,omitzero"`
}

// Entry is a wallet with its lifecycle state and balance.
type Entry struct {
	Wallet  gateway.Wallet `json:"wallet"`
	State   State          `json:"state"`
	Balance Display        `json:"balance"`
}
