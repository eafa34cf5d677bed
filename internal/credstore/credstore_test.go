package credstore

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const base = "http://localhost:5000"

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	return New(filepath.Join(dir, "identity.txt"), filepath.Join(dir, "session.age")), dir
}

func TestStore_RoundTrip(t *testing.T) {
	t.Parallel()
	s, dir := newTestStore(t)

	err := s.Save(base, []*http.Cookie{{Name: "connect.sid", Value: "s%3Aabc.def"}})
	require.NoError(t, err)

	// The file on disk never contains the cookie in clear text
	raw, err := os.ReadFile(filepath.Join(dir, "session.age")) //nolint:gosec // test file
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "s%3Aabc.def")
	assert.True(t, strings.HasPrefix(string(raw), "age-encryption.org/v1"))

	// A fresh store reading the same files recovers the cookie
	again := New(filepath.Join(dir, "identity.txt"), filepath.Join(dir, "session.age"))
	cookies, err := again.Load(base + "/")
	require.NoError(t, err)
	require.Len(t, cookies, 1)
	assert.Equal(t, "connect.sid", cookies[0].Name)
	assert.Equal(t, "s%3Aabc.def", cookies[0].Value)
}

func TestStore_FilePermissions(t *testing.T) {
	t.Parallel()
	s, dir := newTestStore(t)
	require.NoError(t, s.Save(base, []*http.Cookie{{Name: "a", Value: "b"}}))

	for _, name := range []string{"identity.txt", "session.age"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(), name)
	}
}

func TestStore_LoadMissing(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	cookies, err := s.Load(base)
	require.NoError(t, err)
	assert.Empty(t, cookies)
}

func TestStore_OtherBackendIgnored(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	require.NoError(t, s.Save("https://a.repl.co", []*http.Cookie{{Name: "a", Value: "b"}}))

	cookies, err := s.Load(base)
	require.NoError(t, err)
	assert.Empty(t, cookies)
}

func TestStore_ExpiredDropped(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Save(base, []*http.Cookie{
		{Name: "old", Value: "1", Expires: now.Add(-time.Hour)},
		{Name: "live", Value: "2", Expires: now.Add(time.Hour)},
		{Name: "session", Value: "3"},
	}))

	cookies, err := s.Load(base)
	require.NoError(t, err)
	require.Len(t, cookies, 2)
	assert.Equal(t, "live", cookies[0].Name)
	assert.Equal(t, "session", cookies[1].Name)
}

func TestStore_ClearAndEmptySave(t *testing.T) {
	t.Parallel()
	s, dir := newTestStore(t)
	require.NoError(t, s.Save(base, []*http.Cookie{{Name: "a", Value: "b"}}))

	require.NoError(t, s.Save(base, nil))
	_, err := os.Stat(filepath.Join(dir, "session.age"))
	assert.True(t, os.IsNotExist(err))

	// Identity survives logout
	_, err = os.Stat(filepath.Join(dir, "identity.txt"))
	require.NoError(t, err)

	require.NoError(t, s.Clear())
}

func TestStore_Corrupted(t *testing.T) {
	t.Parallel()
	s, dir := newTestStore(t)
	require.NoError(t, s.Save(base, []*http.Cookie{{Name: "a", Value: "b"}}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "session.age"), []byte("garbage"), 0o600))

	fresh := New(filepath.Join(dir, "identity.txt"), filepath.Join(dir, "session.age"))
	_, err := fresh.Load(base)
	require.ErrorIs(t, err, ErrCorrupted)
}

func TestStore_MissingIdentity(t *testing.T) {
	t.Parallel()
	s, dir := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "session.age"), []byte("x"), 0o600))

	_, err := s.Load(base)
	require.ErrorIs(t, err, ErrCorrupted)
}
