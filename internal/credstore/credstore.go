// Package credstore keeps the CLI's backend session cookies between runs.
//
// Cookies are encrypted with age to an X25519 identity generated on first use
// and stored next to it in the qwallet home directory. Both files are 0600.
package credstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"filippo.io/age"
)

const (
	filePerm = 0o600
	dirPerm  = 0o700
)

// ErrCorrupted indicates the cookie file could not be decrypted or decoded.
var ErrCorrupted = errors.New("stored session is corrupted")

// cookie is the persisted form of a session cookie.
type cookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Expires time.Time `json:"expires,omitzero"`
}

// record binds stored cookies to the backend they were issued by.
type record struct {
	BaseURL string    `json:"base_url"`
	Cookies []cookie  `json:"cookies"`
	SavedAt time.Time `json:"saved_at"`
}

// Store persists cookies for one backend at a time.
type Store struct {
	mu           sync.Mutex
	identityPath string
	cookiePath   string
	identity     *age.X25519Identity
	now          func() time.Time
}

// New creates a store using the given identity and cookie file paths.
func New(identityPath, cookiePath string) *Store {
	return &Store{
		identityPath: identityPath,
		cookiePath:   cookiePath,
		now:          time.Now,
	}
}

// Save encrypts and writes the cookies held for baseURL. An empty set clears the file.
func (s *Store) Save(baseURL string, cookies []*http.Cookie) error {
	if len(cookies) == 0 {
		return s.Clear()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.loadIdentity(true)
	if err != nil {
		return err
	}

	rec := record{BaseURL: baseURL, SavedAt: s.now().UTC()}
	for _, c := range cookies {
		rec.Cookies = append(rec.Cookies, cookie{Name: c.Name, Value: c.Value, Expires: c.Expires})
	}

	plain, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	buf := &bytes.Buffer{}
	w, err := age.Encrypt(buf, id.Recipient())
	if err != nil {
		return fmt.Errorf("initializing encryption: %w", err)
	}
	if _, err := w.Write(plain); err != nil {
		return fmt.Errorf("writing encrypted session: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}

	return writeFile(s.cookiePath, buf.Bytes())
}

// Load returns the unexpired cookies stored for baseURL. Cookies saved for a
// different backend, or no file at all, yield an empty result.
func (s *Store) Load(baseURL string) ([]*http.Cookie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// #nosec G304 -- path comes from configuration
	data, err := os.ReadFile(s.cookiePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	id, err := s.loadIdentity(false)
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, fmt.Errorf("%w: identity file missing", ErrCorrupted)
	}

	r, err := age.Decrypt(bytes.NewReader(data), id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupted, err)
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupted, err)
	}

	var rec record
	if err := json.Unmarshal(plain, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupted, err)
	}

	if !sameOrigin(rec.BaseURL, baseURL) {
		return nil, nil
	}

	now := s.now()
	out := make([]*http.Cookie, 0, len(rec.Cookies))
	for _, c := range rec.Cookies {
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			continue
		}
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/", Expires: c.Expires})
	}
	return out, nil
}

// Clear removes the stored cookies. The identity is kept.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.cookiePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// loadIdentity reads the identity file, generating it when create is set.
func (s *Store) loadIdentity(create bool) (*age.X25519Identity, error) {
	if s.identity != nil {
		return s.identity, nil
	}

	// #nosec G304 -- path comes from configuration
	data, err := os.ReadFile(s.identityPath)
	switch {
	case err == nil:
		id, perr := age.ParseX25519Identity(strings.TrimSpace(string(data)))
		if perr != nil {
			return nil, fmt.Errorf("parsing identity: %w", perr)
		}
		s.identity = id
		return id, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	case !create:
		return nil, nil
	}

	id, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating identity: %w", err)
	}
	if err := writeFile(s.identityPath, []byte(id.String()+"\n")); err != nil {
		return nil, err
	}
	s.identity = id
	return id, nil
}

func sameOrigin(a, b string) bool {
	return strings.TrimRight(a, "/") == strings.TrimRight(b, "/")
}

// writeFile replaces path through a synced temp file so a crash never leaves a
// truncated session or identity behind.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("setting permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	return os.Rename(tmpPath, path) //nolint:gosec // path comes from configuration
}
