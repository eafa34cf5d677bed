package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletion_Scripts(t *testing.T) {
	tests := []struct {
		shell  string
		marker string
	}{
		{"bash", "__start_qwallet"},
		{"zsh", "#compdef qwallet"},
		{"fish", "complete -c qwallet"},
		{"powershell", "Register-ArgumentCompleter"},
	}

	for _, tt := range tests {
		t.Run(tt.shell, func(t *testing.T) {
			var buf bytes.Buffer
			completionCmd.SetOut(&buf)
			t.Cleanup(func() { completionCmd.SetOut(nil) })

			require.NoError(t, completionCmd.RunE(completionCmd, []string{tt.shell}))
			assert.Contains(t, buf.String(), tt.marker)
		})
	}
}

func TestCompletion_RejectsUnknownShell(t *testing.T) {
	require.Error(t, completionCmd.Args(completionCmd, []string{"tcsh"}))
	require.Error(t, completionCmd.Args(completionCmd, []string{}))
	require.NoError(t, completionCmd.Args(completionCmd, []string{"zsh"}))
}

// completions returns the candidate lines of a completion request, without
// the trailing directive line.
func completions(t *testing.T, args ...string) []string {
	t.Helper()
	stdout, _, err := executeCommand(t, "", append([]string{"__complete"}, args...)...)
	require.NoError(t, err)

	var out []string
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		if line != "" && !strings.HasPrefix(line, ":") {
			out = append(out, line)
		}
	}
	return out
}

func TestCompletion_FlagValues(t *testing.T) {
	home := t.TempDir()

	t.Run("chain", func(t *testing.T) {
		got := completions(t, "wallet", "create", "--home", home, "--chain", "")
		assert.Equal(t, []string{"ethereum", "bitcoin", "solana"}, got)
	})

	t.Run("transaction type", func(t *testing.T) {
		got := completions(t, "wallet", "tx", "--home", home, "--type", "")
		assert.Contains(t, got, "received")
	})
}

func TestCompletion_WalletIDs(t *testing.T) {
	b := newFakeBackend(t)
	home := newTestHome(t, b.server.URL)

	t.Run("nothing without a session", func(t *testing.T) {
		assert.Empty(t, completions(t, "wallet", "delete", "--home", home, ""))
		assert.Zero(t, b.hitCount("GET /api/wallet"))
	})

	t.Run("ids with a session", func(t *testing.T) {
		login(t, home)
		got := completions(t, "wallet", "delete", "--home", home, "")
		require.Len(t, got, 2)
		assert.Equal(t, "3\tethereum "+testEthAddress, got[0])
		assert.True(t, strings.HasPrefix(got[1], "4\t"))
	})

	t.Run("a single id only", func(t *testing.T) {
		assert.Empty(t, completions(t, "wallet", "delete", "--home", home, "3", ""))
	})
}

func TestCompletion_KeyIDsSkipDisabled(t *testing.T) {
	b, home := developerHome(t)
	b.mu.Lock()
	b.keys = append(b.keys, map[string]any{"id": 2, "name": "old", "apiKey": "qw_live_oldoldold0000", "enabled": false})
	b.mu.Unlock()

	got := completions(t, "key", "disable", "--home", home, "")
	assert.Equal(t, []string{"1\tci"}, got)
}
