// Package cache holds confirmed balance observations.
//
// An entry exists only for a balance that was actually read from the backend.
// A missing entry means the balance is unknown, which is never the same as zero.
package cache

import (
	"sync"
	"time"
)

// Observation is one confirmed balance read.
type Observation struct {
	Chain   string `json:"chain"`
	Address string `json:"address"`
	Network string `json:"network"`
	// Balance is the decimal value as reported by the backend.
	Balance    string    `json:"balance"`
	ObservedAt time.Time `json:"observedAt"`
}

// Cache records and recalls observations. The wallet lifecycle consults it
// before it lets a deletion through.
type Cache interface {
	Observe(o Observation)
	Lookup(chain, address, network string) (Observation, bool)
	Forget(chain, address, network string)
}

var _ Cache = (*Balances)(nil)

type key struct {
	chain, network, address string
}

func keyOf(chain, address, network string) key {
	if network == "" {
		network = "mainnet"
	}
	return key{chain: chain, network: network, address: address}
}

// Balances is an in-memory Cache, safe for concurrent use.
type Balances struct {
	mu  sync.RWMutex
	obs map[key]Observation
	now func() time.Time
}

// NewBalances creates an empty cache.
func NewBalances() *Balances {
	return &Balances{obs: make(map[key]Observation), now: time.Now}
}

// Observe records o, stamped with the current time. It replaces any earlier
// observation of the same address on the same chain and network.
func (b *Balances) Observe(o Observation) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o.ObservedAt = b.now()
	b.obs[keyOf(o.Chain, o.Address, o.Network)] = o
}

// Lookup returns the latest observation, if there is one.
func (b *Balances) Lookup(chain, address, network string) (Observation, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	o, ok := b.obs[keyOf(chain, address, network)]
	return o, ok
}

// Forget drops an observation, making the balance unknown again.
func (b *Balances) Forget(chain, address, network string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.obs, keyOf(chain, address, network))
}

// Len returns how many addresses have a confirmed balance.
func (b *Balances) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.obs)
}
