package cli

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qwerr "github.com/quantumwallet/qwallet/pkg/errors"
)

func TestLogin_SavesSessionForLaterRuns(t *testing.T) {
	b := newFakeBackend(t)
	home := newTestHome(t, b.server.URL)

	stdout, _, err := executeCommand(t, testPassword+"\n", "--home", home, "-o", "text", "login", "-u", testUser)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Signed in as alice (id 7)")
	assert.Contains(t, stdout, "Developer account: not enabled")
	assert.FileExists(t, sessionFile(home))

	// A fresh run picks the cookie up from disk
	stdout, _, err = executeCommand(t, "", "--home", home, "-o", "json", "whoami")
	require.NoError(t, err)

	var id struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &id))
	assert.Equal(t, int64(7), id.ID)
	assert.Equal(t, testUser, id.Username)
}

func TestLogin_WrongPassword(t *testing.T) {
	b := newFakeBackend(t)
	home := newTestHome(t, b.server.URL)

	_, stderr, err := executeCommand(t, "nope\n", "--home", home, "-o", "text", "login", "-u", testUser)
	require.Error(t, err)
	assert.True(t, qwerr.IsUnauthorized(err))
	assert.Equal(t, qwerr.ExitAuth, ExitCode(err))
	assert.Contains(t, stderr, "Incorrect password.")
	assert.NoFileExists(t, sessionFile(home))
}

func TestLogin_PromptsForUsername(t *testing.T) {
	b := newFakeBackend(t)
	home := newTestHome(t, b.server.URL)

	stdout, _, err := executeCommand(t, testUser+"\n"+testPassword+"\n", "--home", home, "-o", "text", "login")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Signed in as alice")
}

func TestLogin_EmptyInput(t *testing.T) {
	b := newFakeBackend(t)
	home := newTestHome(t, b.server.URL)

	_, _, err := executeCommand(t, "", "--home", home, "-o", "text", "login", "-u", testUser)
	require.Error(t, err)
	assert.Equal(t, qwerr.ExitInput, ExitCode(err))
	assert.Zero(t, b.hitCount("POST /api/auth/login"))
}

func TestLogin_PrintURL(t *testing.T) {
	b := newFakeBackend(t)
	home := newTestHome(t, b.server.URL)

	stdout, _, err := executeCommand(t, "", "--home", home, "-o", "text", "login", "--print-url")
	require.NoError(t, err)
	assert.Contains(t, stdout, b.server.URL)
	assert.Zero(t, b.hitCount("POST /api/auth/login"))
}

func TestRegister_SignsIn(t *testing.T) {
	b := newFakeBackend(t)
	home := newTestHome(t, b.server.URL)

	stdout, _, err := executeCommand(t, testPassword+"\n", "--home", home, "-o", "text", "register", "-u", testUser)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Signed in as alice")
	assert.Equal(t, 1, b.hitCount("POST /api/auth/register"))
}

func TestWhoami_WithoutSession(t *testing.T) {
	b := newFakeBackend(t)
	home := newTestHome(t, b.server.URL)

	_, _, err := executeCommand(t, "", "--home", home, "-o", "text", "whoami")
	require.Error(t, err)
	assert.True(t, qwerr.IsUnauthorized(err))
}

func TestWhoami_ShowsDeveloperProfile(t *testing.T) {
	b := newFakeBackend(t)
	b.developer = true
	home := newTestHome(t, b.server.URL)
	login(t, home)

	stdout, _, err := executeCommand(t, "", "--home", home, "-o", "text", "whoami")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Developer account: enabled")
	assert.Contains(t, stdout, "Acme")
}

func TestLogout_ForgetsSession(t *testing.T) {
	b := newFakeBackend(t)
	home := newTestHome(t, b.server.URL)
	login(t, home)
	require.FileExists(t, sessionFile(home))

	stdout, _, err := executeCommand(t, "", "--home", home, "-o", "text", "logout")
	require.NoError(t, err)
	assert.Contains(t, stdout, "signed out")
	assert.Equal(t, 1, b.hitCount("POST /api/auth/logout"))

	_, statErr := os.Stat(sessionFile(home))
	assert.True(t, os.IsNotExist(statErr))

	_, _, err = executeCommand(t, "", "--home", home, "-o", "text", "whoami")
	assert.True(t, qwerr.IsUnauthorized(err))
}

func TestLogout_WhenBackendIsDown(t *testing.T) {
	b := newFakeBackend(t)
	home := newTestHome(t, b.server.URL)
	login(t, home)
	b.server.Close()

	_, _, err := executeCommand(t, "", "--home", home, "-o", "text", "logout")
	require.Error(t, err)
	assert.True(t, qwerr.IsConnectivity(err))

	// The local session is gone either way
	_, statErr := os.Stat(sessionFile(home))
	assert.True(t, os.IsNotExist(statErr))
}
