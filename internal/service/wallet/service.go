package wallet

import (
	"context"
	"fmt"
	"math/big"
	"slices"
	"strconv"
	"sync"

	"github.com/quantumwallet/qwallet/internal/cache"
	"github.com/quantumwallet/qwallet/internal/gateway"
	qwerr "github.com/quantumwallet/qwallet/pkg/errors"
)

// entry is the service's record of one wallet. The pointer identity is what
// in-flight reads compare against to detect a deletion that happened meanwhile.
type entry struct {
	wallet gateway.Wallet
	state  State
	seq    uint64
}

// Service owns the active wallet set.
type Service struct {
	mu       sync.Mutex
	entries  map[int64]*entry
	deleted  map[int64]struct{}
	sending  map[int64]struct{}
	seq      uint64
	creating int

	gateway Gateway
	cache   cache.Cache
	logger  LogWriter
	observe TransitionFunc
}

// Config contains dependencies for creating a wallet service.
type Config struct {
	Gateway Gateway
	// Cache holds balance observations. A fresh cache is used when nil.
	Cache        cache.Cache
	Logger       LogWriter
	OnTransition TransitionFunc
}

// NewService creates a new wallet service instance.
func NewService(cfg *Config) *Service {
	s := &Service{
		entries: make(map[int64]*entry),
		deleted: make(map[int64]struct{}),
		sending: make(map[int64]struct{}),
		gateway: cfg.Gateway,
		cache:   cfg.Cache,
		logger:  cfg.Logger,
		observe: cfg.OnTransition,
	}
	if s.cache == nil {
		s.cache = cache.NewBalances()
	}
	if s.logger == nil {
		s.logger = nopLogger{}
	}
	if s.observe == nil {
		s.observe = func(int64, State, State) {}
	}
	return s
}

// Create generates a wallet and adds it as Active with an unknown balance.
// Unauthorized is returned as is so the caller can send the user to sign in.
func (s *Service) Create(ctx context.Context, cfg gateway.GenerateConfig) (*gateway.Generated, error) {
	s.mu.Lock()
	s.creating++
	s.mu.Unlock()

	gen, err := s.gateway.GenerateWallet(ctx, cfg)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.creating--

	if err != nil {
		s.logger.Debug("wallet creation failed: %v", err)
		return nil, err
	}

	w := gen.Wallet
	s.seq++
	s.entries[w.ID] = &entry{wallet: w, state: StateActive, seq: s.seq}
	delete(s.deleted, w.ID)
	s.cache.Forget(w.Chain, w.Address, w.Network)
	s.observe(w.ID, StateCreating, StateActive)
	return gen, nil
}

// Creating reports how many generation calls are in flight.
func (s *Service) Creating() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creating
}

// List reconciles the active set with the backend listing inside f and
// returns the wallets inside f ordered by id. Balances are always requested.
// Reconciliation is idempotent: wallets inside f missing remotely drop out
// unless their deletion is in flight or they were created after the listing
// was requested. Wallets outside f are left alone.
func (s *Service) List(ctx context.Context, f gateway.WalletFilters) ([]Entry, error) {
	s.mu.Lock()
	started := s.seq
	s.mu.Unlock()

	f.IncludeBalances = true
	remote, err := s.gateway.ListWallets(ctx, f)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[int64]struct{}, len(remote))
	for _, w := range remote {
		if _, gone := s.deleted[w.ID]; gone {
			continue
		}
		seen[w.ID] = struct{}{}

		e, ok := s.entries[w.ID]
		if !ok {
			s.seq++
			e = &entry{state: StateActive, seq: s.seq}
			s.entries[w.ID] = e
		}
		balance := w.Balance
		w.Balance = ""
		if w.Network == "" {
			w.Network = e.wallet.Network
		}
		e.wallet = w

		// A balance included in the listing is a confirmed read
		if balance != "" {
			s.cache.Observe(cache.Observation{Chain: w.Chain, Address: w.Address, Network: w.Network, Balance: balance})
		}
	}

	for id, e := range s.entries {
		if _, ok := seen[id]; ok || e.state == StateDeleting || e.seq > started || !f.Matches(e.wallet) {
			continue
		}
		s.logger.Debug("wallet %d no longer listed, dropping", id)
		s.cache.Forget(e.wallet.Chain, e.wallet.Address, e.wallet.Network)
		delete(s.entries, id)
	}

	all := s.snapshotLocked()
	out := all[:0]
	for _, e := range all {
		if f.Matches(e.Wallet) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Entries returns the active set ordered by id without contacting the backend.
func (s *Service) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Get returns one wallet.
func (s *Service) Get(id int64) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return Entry{}, false
	}
	return s.entryLocked(e), true
}

func (s *Service) snapshotLocked() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, s.entryLocked(e))
	}
	slices.SortFunc(out, func(a, b Entry) int {
		switch {
		case a.Wallet.ID < b.Wallet.ID:
			return -1
		case a.Wallet.ID > b.Wallet.ID:
			return 1
		default:
			return 0
		}
	})
	return out
}

func (s *Service) entryLocked(e *entry) Entry {
	return Entry{Wallet: e.wallet, State: e.state, Balance: s.displayLocked(e)}
}

// RefreshBalance reads a wallet's balance. A confirmed read becomes the
// wallet's observation; a failed read forgets it, making the balance unknown.
// A result for a wallet deleted while the read was in flight is discarded.
func (s *Service) RefreshBalance(ctx context.Context, id int64) (*gateway.Balance, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	w := e.wallet

	bal, err := s.gateway.GetBalance(ctx, w.Address, w.Chain, gateway.BalanceOptions{Network: w.Network})

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entries[id] != e {
		return nil, staleResult(id)
	}
	if err != nil || bal == nil || !bal.Available {
		s.cache.Forget(w.Chain, w.Address, w.Network)
		if err == nil {
			err = qwerr.ErrBalanceUnavailable
		}
		return bal, err
	}

	s.cache.Observe(cache.Observation{Chain: w.Chain, Address: w.Address, Network: w.Network, Balance: bal.Value})
	return bal, nil
}

// TokenBalance reads a token balance held by a wallet. Token balances are not
// observations: they never gate deletion.
func (s *Service) TokenBalance(ctx context.Context, id int64, opts gateway.BalanceOptions) (*gateway.Balance, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	opts.Network = e.wallet.Network

	bal, err := s.gateway.GetBalance(ctx, e.wallet.Address, e.wallet.Chain, opts)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entries[id] != e {
		return nil, staleResult(id)
	}
	return bal, err
}

// Send transfers funds out of a wallet. One transfer per wallet may be in
// flight, and none while the wallet is being deleted. Unless the request was
// rejected locally the wallet's balance becomes unknown, since funds may have
// moved even when the call failed.
func (s *Service) Send(ctx context.Context, id int64, req gateway.SendRequest) (*gateway.SentTransaction, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	switch {
	case !ok:
		s.mu.Unlock()
		return nil, notFound(id)
	case e.state == StateDeleting:
		s.mu.Unlock()
		return nil, qwerr.WithDetails(qwerr.ErrDeletionInProgress, map[string]string{"wallet": strconv.FormatInt(id, 10)})
	}
	if _, busy := s.sending[id]; busy {
		s.mu.Unlock()
		return nil, qwerr.WithDetails(qwerr.ErrSendInProgress, map[string]string{"wallet": strconv.FormatInt(id, 10)})
	}
	s.sending[id] = struct{}{}
	w := e.wallet
	s.mu.Unlock()

	req.FromAddress, req.Chain, req.Network = w.Address, w.Chain, w.Network
	sent, err := s.gateway.SendTransaction(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sending, id)

	if err != nil && qwerr.IsValidation(err) {
		return nil, err
	}
	s.cache.Forget(w.Chain, w.Address, w.Network)
	if err != nil {
		s.logger.Debug("transfer from wallet %d failed: %v", id, err)
		return nil, err
	}
	return sent, nil
}

// Transactions reads a wallet's history, discarding the result if the wallet
// was deleted meanwhile.
func (s *Service) Transactions(ctx context.Context, id int64, filters gateway.TransactionFilters) ([]gateway.Transaction, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if filters.Network == "" {
		filters.Network = e.wallet.Network
	}

	txs, err := s.gateway.GetTransactions(ctx, e.wallet.Address, e.wallet.Chain, filters)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entries[id] != e {
		return nil, staleResult(id)
	}
	return txs, err
}

// RequestDelete deletes a wallet whose last observed balance is exactly zero.
// A positive or unknown balance refuses the request without a backend call,
// and a second request while one is in flight is rejected immediately.
func (s *Service) RequestDelete(ctx context.Context, id int64) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return notFound(id)
	}
	if e.state == StateDeleting {
		s.mu.Unlock()
		return qwerr.WithDetails(qwerr.ErrDeletionInProgress, map[string]string{"wallet": strconv.FormatInt(id, 10)})
	}
	if _, busy := s.sending[id]; busy {
		s.mu.Unlock()
		return qwerr.WithDetails(qwerr.ErrSendInProgress, map[string]string{"wallet": strconv.FormatInt(id, 10)})
	}

	if refusal := s.checkDeletableLocked(e); refusal != nil {
		s.mu.Unlock()
		s.observe(id, StateActive, StateDeletionRefused)
		return refusal
	}

	e.state = StateDeleting
	s.mu.Unlock()
	s.observe(id, StateActive, StateDeleting)

	err := s.gateway.DeleteWallet(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		if s.entries[id] == e {
			e.state = StateActive
		}
		s.observe(id, StateDeleting, StateActive)
		return err
	}

	delete(s.entries, id)
	s.deleted[id] = struct{}{}
	s.cache.Forget(e.wallet.Chain, e.wallet.Address, e.wallet.Network)
	s.seq++
	e.state = StateDeleted
	s.observe(id, StateDeleting, StateDeleted)
	return nil
}

// checkDeletableLocked applies the balance rule: only a confirmed zero passes.
func (s *Service) checkDeletableLocked(e *entry) error {
	w := e.wallet
	obs, ok := s.cache.Lookup(w.Chain, w.Address, w.Network)
	if !ok {
		return qwerr.WithSuggestion(
			qwerr.WithDetails(qwerr.ErrDeletionRefused, map[string]string{
				"wallet":  strconv.FormatInt(w.ID, 10),
				"balance": "unknown",
			}),
			fmt.Sprintf("the balance could not be confirmed; check it with: qwallet wallet balance %d", w.ID),
		)
	}

	amount, ok := new(big.Float).SetString(obs.Balance)
	if !ok || amount.Sign() != 0 {
		return qwerr.WithSuggestion(
			qwerr.WithDetails(qwerr.ErrDeletionRefused, map[string]string{
				"wallet":  strconv.FormatInt(w.ID, 10),
				"balance": obs.Balance,
			}),
			"move the remaining funds out of the wallet before deleting it",
		)
	}
	return nil
}

// Display returns the balance to show for a wallet: the observation when one
// exists, otherwise "0" flagged as unknown.
func (s *Service) Display(id int64) (Display, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return Display{}, notFound(id)
	}
	return s.displayLocked(e), nil
}

func (s *Service) displayLocked(e *entry) Display {
	w := e.wallet
	obs, ok := s.cache.Lookup(w.Chain, w.Address, w.Network)
	if !ok {
		return Display{Value: DisplayZero}
	}
	return Display{Value: obs.Balance, Known: true, ObservedAt: obs.ObservedAt}
}

func (s *Service) lookup(id int64) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, notFound(id)
	}
	return e, nil
}

func notFound(id int64) error {
	return qwerr.WithSuggestion(
		qwerr.WithDetails(qwerr.ErrWalletNotFound, map[string]string{"wallet": strconv.FormatInt(id, 10)}),
		"list wallets with: qwallet wallet list",
	)
}

func staleResult(id int64) error {
	return qwerr.WithDetails(qwerr.ErrStaleResult, map[string]string{"wallet": strconv.FormatInt(id, 10)})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
