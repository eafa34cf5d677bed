package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumwallet/qwallet/internal/config"
	qwerr "github.com/quantumwallet/qwallet/pkg/errors"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, qwerr.ExitSuccess},
		{"unauthorized", qwerr.ErrUnauthorized, qwerr.ExitAuth},
		{"not found", qwerr.ErrWalletNotFound, qwerr.ExitNotFound},
		{"refused", qwerr.ErrDeletionRefused, qwerr.ExitPermission},
		{"connectivity", qwerr.ErrConnectivity, qwerr.ExitUnavailable},
		{"invalid input", qwerr.ErrInvalidInput, qwerr.ExitInput},
		{"plain error", os.ErrPermission, qwerr.ExitGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestVersion(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCommand(t, "", "--home", home, "-o", "json", "version")
	require.NoError(t, err)

	var info struct {
		Version  string `json:"version"`
		Platform string `json:"platform"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.Platform)

	stdout, _, err = executeCommand(t, "", "--home", home, "-o", "text", "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "qwallet ")
	assert.Contains(t, stdout, "platform:")
}

func TestRoot_InvalidOutputFormat(t *testing.T) {
	home := t.TempDir()

	_, stderr, err := executeCommand(t, "", "--home", home, "-o", "yaml", "version")
	require.Error(t, err)
	assert.Equal(t, qwerr.ExitInput, ExitCode(err))
	assert.Contains(t, stderr, "Error:")
}

func TestRoot_ErrorsAsJSON(t *testing.T) {
	b := newFakeBackend(t)
	home := newTestHome(t, b.server.URL)

	_, stderr, err := executeCommand(t, "", "--home", home, "-o", "json", "whoami")
	require.Error(t, err)

	var out struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stderr), &out))
	assert.Equal(t, qwerr.ErrUnauthorized.Code, out.Error.Code)
}

func TestRoot_InvalidConfigFile(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(config.Path(home), []byte("backend: [not, a, map"), 0o600))

	_, _, err := executeCommand(t, "", "--home", home, "-o", "text", "version")
	require.Error(t, err)
	assert.True(t, qwerr.Is(err, qwerr.ErrConfigInvalid))
}

func TestRoot_EnvironmentSelectsBackend(t *testing.T) {
	b := newFakeBackend(t)
	home := newTestHome(t, "http://127.0.0.1:1")

	resetCommandState(t)
	t.Setenv(config.EnvBaseURL, b.server.URL)

	// executeCommand clears QWALLET_* variables, so run the command directly
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs([]string{"--home", home, "-o", "json", "status"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, Execute(), stderr.String())
	assert.Contains(t, stdout.String(), `"backend": "ok"`)
}

func TestRoot_LogFileUnderHome(t *testing.T) {
	b := newFakeBackend(t)
	home := newTestHome(t, b.server.URL)

	_, _, err := executeCommand(t, "", "--home", home, "-o", "text", "--verbose", "status")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(home, "qwallet.log"))
}
