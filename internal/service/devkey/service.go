package devkey

import (
	"context"
	"slices"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/quantumwallet/qwallet/internal/gateway"
	qwerr "github.com/quantumwallet/qwallet/pkg/errors"
)

// Service owns the in-memory key list. Stored keys are always masked.
type Service struct {
	mu   sync.Mutex
	keys map[int64]gateway.DeveloperKey
	// disabled holds every id known to be disabled, listed or not
	disabled map[int64]struct{}
	gateway Gateway
	logger  LogWriter
	group   singleflight.Group
}

// Config contains dependencies for creating a key service.
type Config struct {
	Gateway Gateway
	Logger  LogWriter
}

// NewService creates a key service.
func NewService(cfg *Config) *Service {
	s := &Service{
		keys:     make(map[int64]gateway.DeveloperKey),
		disabled: make(map[int64]struct{}),
		gateway:  cfg.Gateway,
		logger:   cfg.Logger,
	}
	if s.logger == nil {
		s.logger = nopLogger{}
	}
	return s
}

// Create makes a new Active key. The full secret is only in the returned
// CreatedKey and can be revealed once.
func (s *Service) Create(ctx context.Context, name string) (*gateway.CreatedKey, error) {
	name, err := gateway.NormalizeKeyName(name)
	if err != nil {
		return nil, err
	}

	created, err := s.gateway.CreateDeveloperKey(ctx, name)
	if err != nil {
		return nil, err
	}

	key := created.Key
	key.APIKey = gateway.MaskKey(key.APIKey)
	key.Enabled = true

	s.mu.Lock()
	s.keys[key.ID] = key
	s.mu.Unlock()

	return created, nil
}

// List replaces the in-memory list with the backend's and returns it ordered by id.
func (s *Service) List(ctx context.Context) ([]gateway.DeveloperKey, error) {
	remote, err := s.gateway.ListDeveloperKeys(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make(map[int64]gateway.DeveloperKey, len(remote))
	for _, k := range remote {
		k.APIKey = gateway.MaskKey(k.APIKey)
		// Disabling is one-directional; a listing that predates a disable must not undo it
		if _, off := s.disabled[k.ID]; off {
			k.Enabled = false
		}
		if !k.Enabled {
			s.disabled[k.ID] = struct{}{}
		}
		keys[k.ID] = k
	}
	s.keys = keys
	return s.sortedLocked(), nil
}

// Keys returns the in-memory list ordered by id.
func (s *Service) Keys() []gateway.DeveloperKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

// Disable revokes a key. Disabling a key already known to be disabled succeeds
// without a backend call, and concurrent disables of one key share one call.
func (s *Service) Disable(ctx context.Context, id int64) error {
	if err := gateway.ValidateID("key", id); err != nil {
		return err
	}

	s.mu.Lock()
	_, off := s.disabled[id]
	s.mu.Unlock()
	if off {
		return nil
	}

	_, err, shared := s.group.Do(strconv.FormatInt(id, 10), func() (any, error) {
		return nil, s.gateway.DisableDeveloperKey(context.WithoutCancel(ctx), id)
	})
	if shared {
		s.logger.Debug("disable of key %d joined an in-flight call", id)
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabled[id] = struct{}{}
	if k, ok := s.keys[id]; ok {
		k.Enabled = false
		s.keys[id] = k
	}
	return nil
}

// Get returns one key from the in-memory list.
func (s *Service) Get(id int64) (gateway.DeveloperKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[id]
	if !ok {
		return gateway.DeveloperKey{}, qwerr.WithSuggestion(
			qwerr.WithDetails(qwerr.ErrKeyNotFound, map[string]string{"key": strconv.FormatInt(id, 10)}),
			"list keys with: qwallet key list",
		)
	}
	return k, nil
}

func (s *Service) sortedLocked() []gateway.DeveloperKey {
	out := make([]gateway.DeveloperKey, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, k)
	}
	slices.SortFunc(out, func(a, b gateway.DeveloperKey) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
	return out
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
