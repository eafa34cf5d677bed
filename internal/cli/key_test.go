package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qwerr "github.com/quantumwallet/qwallet/pkg/errors"
)

func developerHome(t *testing.T) (*fakeBackend, string) {
	t.Helper()
	b := newFakeBackend(t)
	b.developer = true
	home := newTestHome(t, b.server.URL)
	login(t, home)
	return b, home
}

func TestKeyCreate(t *testing.T) {
	t.Run("text shows the full key once", func(t *testing.T) {
		_, home := developerHome(t)

		stdout, _, err := executeCommand(t, "", "--home", home, "-o", "text", "key", "create", "--name", "deploy")
		require.NoError(t, err)
		assert.Contains(t, stdout, "Key 2 (deploy) created")
		assert.Contains(t, stdout, "qw_live_secretsecret9999")
	})

	t.Run("json carries the full key", func(t *testing.T) {
		_, home := developerHome(t)

		stdout, _, err := executeCommand(t, "", "--home", home, "-o", "json", "key", "create", "--name", "deploy")
		require.NoError(t, err)

		var key struct {
			ID      int64  `json:"id"`
			APIKey  string `json:"apiKey"`
			Enabled bool   `json:"enabled"`
		}
		require.NoError(t, json.Unmarshal([]byte(stdout), &key))
		assert.Equal(t, int64(2), key.ID)
		assert.Equal(t, "qw_live_secretsecret9999", key.APIKey)
		assert.True(t, key.Enabled)
	})

	t.Run("blank name", func(t *testing.T) {
		b, home := developerHome(t)

		_, _, err := executeCommand(t, "", "--home", home, "-o", "text", "key", "create", "--name", "   ")
		require.Error(t, err)
		assert.True(t, qwerr.Is(err, qwerr.ErrEmptyKeyName))
		assert.Zero(t, b.hitCount("POST /api/developer/keys"))
	})

	t.Run("needs a developer account", func(t *testing.T) {
		b := newFakeBackend(t)
		home := newTestHome(t, b.server.URL)
		login(t, home)

		_, _, err := executeCommand(t, "", "--home", home, "-o", "text", "key", "create", "--name", "deploy")
		require.Error(t, err)
		assert.True(t, qwerr.Is(err, qwerr.ErrDeveloperRequired))
		assert.Zero(t, b.hitCount("POST /api/developer/keys"))
	})
}

func TestKeyList(t *testing.T) {
	b, home := developerHome(t)

	stdout, _, err := executeCommand(t, "", "--home", home, "-o", "text", "key", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "NAME")
	assert.Contains(t, stdout, "ci")
	assert.Contains(t, stdout, "enabled")
	assert.Contains(t, stdout, "never")

	b.mu.Lock()
	b.keys = nil
	b.mu.Unlock()

	stdout, _, err = executeCommand(t, "", "--home", home, "-o", "text", "key", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No API keys")
}

func TestKeyDisable(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		preDisable bool
		wantErr    *qwerr.QWalletError
		wantOut    string
		wantCalls  int
	}{
		{name: "enabled key", id: "1", wantOut: "key 1 disabled", wantCalls: 1},
		{name: "already disabled", id: "1", preDisable: true, wantOut: "key 1 is already disabled"},
		{name: "unknown key", id: "42", wantErr: qwerr.ErrKeyNotFound},
		{name: "invalid id", id: "0", wantErr: qwerr.ErrInvalidID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, home := developerHome(t)
			if tt.preDisable {
				b.keys[0]["enabled"] = false
			}

			stdout, _, err := executeCommand(t, "", "--home", home, "-o", "text", "key", "disable", tt.id)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, qwerr.Is(err, tt.wantErr), "got %v", err)
				assert.Empty(t, b.disabled)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, stdout, tt.wantOut)
			assert.Len(t, b.disabled, tt.wantCalls)
		})
	}
}

func TestDeveloperEnable(t *testing.T) {
	t.Run("enables the account", func(t *testing.T) {
		b := newFakeBackend(t)
		home := newTestHome(t, b.server.URL)
		login(t, home)

		stdout, _, err := executeCommand(t, "", "--home", home, "-o", "text",
			"developer", "enable", "--company", "Acme", "--website", "https://acme.example", "--use-case", "payments")
		require.NoError(t, err)
		assert.Contains(t, stdout, "developer account enabled")

		stdout, _, err = executeCommand(t, "", "--home", home, "-o", "text", "whoami")
		require.NoError(t, err)
		assert.Contains(t, stdout, "Developer account: enabled")
	})

	t.Run("bad website is rejected locally", func(t *testing.T) {
		b := newFakeBackend(t)
		home := newTestHome(t, b.server.URL)
		login(t, home)

		_, _, err := executeCommand(t, "", "--home", home, "-o", "text",
			"developer", "enable", "--company", "Acme", "--website", "ftp://acme", "--use-case", "payments")
		require.Error(t, err)
		assert.True(t, qwerr.Is(err, qwerr.ErrInvalidProfile))
		assert.Zero(t, b.hitCount("POST /api/developer/enable"))
	})
}

func TestDeveloperTestConfig(t *testing.T) {
	b := newFakeBackend(t)
	home := newTestHome(t, b.server.URL)
	login(t, home)

	t.Run("needs a developer account", func(t *testing.T) {
		_, _, err := executeCommand(t, "", "--home", home, "-o", "text",
			"developer", "test-config", "--chain", "ethereum")
		require.ErrorIs(t, err, qwerr.ErrDeveloperRequired)
		assert.Zero(t, b.hitCount("POST /api/developer/test-wallet-config"))
	})

	b.mu.Lock()
	b.developer = true
	b.mu.Unlock()
	login(t, home)

	t.Run("text", func(t *testing.T) {
		stdout, _, err := executeCommand(t, "", "--home", home, "-o", "text",
			"developer", "test-config", "--chain", "solana", "--algorithm", "sphincs")
		require.NoError(t, err)
		assert.Contains(t, stdout, "Configuration accepted")
		assert.Contains(t, stdout, "quantum (sphincs)")
		assert.Contains(t, stdout, `"addressFormat": "valid"`)
	})

	t.Run("json", func(t *testing.T) {
		stdout, _, err := executeCommand(t, "", "--home", home, "-o", "json",
			"developer", "test-config", "--chain", "bitcoin")
		require.NoError(t, err)

		var got struct {
			Config struct {
				Chain            string `json:"chain"`
				MnemonicStrength int    `json:"mnemonicStrength"`
			} `json:"config"`
			Results map[string]string `json:"testResults"`
		}
		require.NoError(t, json.Unmarshal([]byte(stdout), &got))
		assert.Equal(t, "bitcoin", got.Config.Chain)
		assert.Equal(t, 256, got.Config.MnemonicStrength)
		assert.Equal(t, "bitcoin", got.Results["chain"])
	})

	t.Run("bad option never leaves", func(t *testing.T) {
		before := b.hitCount("POST /api/developer/test-wallet-config")
		_, _, err := executeCommand(t, "", "--home", home, "-o", "text",
			"developer", "test-config", "--chain", "ethereum", "--strength", "64")
		require.ErrorIs(t, err, qwerr.ErrInvalidOption)
		assert.Equal(t, before, b.hitCount("POST /api/developer/test-wallet-config"))
	})
}
