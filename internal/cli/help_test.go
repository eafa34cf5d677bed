package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const maxShortLen = 80

// TestCommandTree_HelpText checks the help metadata of every command.
func TestCommandTree_HelpText(t *testing.T) {
	walkCommands(rootCmd, func(cmd *cobra.Command) {
		t.Run(cmd.CommandPath(), func(t *testing.T) {
			assert.NotEmpty(t, cmd.Use)
			assert.NotEmpty(t, cmd.Short)
			assert.LessOrEqual(t, len(cmd.Short), maxShortLen, "Short too long: %q", cmd.Short)
			assert.NotEmpty(t, cmd.Long)
			assert.NotContains(t, cmd.Long, "\nExample:", "examples belong in the Example field")
			assert.NotContains(t, cmd.Long, "\nExamples:", "examples belong in the Example field")

			runnable := cmd.RunE != nil || cmd.Run != nil
			if runnable {
				assert.NotEmpty(t, cmd.Example, "runnable command without an Example")
			}
			if cmd.Example != "" {
				assert.Contains(t, cmd.Example, "qwallet ")
			}
		})
	})
}

// TestCommandTree_Flags checks every flag has a usage string and that
// required flags say so.
func TestCommandTree_Flags(t *testing.T) {
	walkCommands(rootCmd, func(cmd *cobra.Command) {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			t.Run(cmd.CommandPath()+"/--"+f.Name, func(t *testing.T) {
				assert.NotEmpty(t, f.Usage)
				if _, required := f.Annotations[cobra.BashCompOneRequiredFlag]; required {
					assert.Contains(t, f.Usage, "(required)")
				}
			})
		})
	})
}

func TestTopLevelCommandsAreGrouped(t *testing.T) {
	groups := make(map[string]bool)
	for _, g := range rootCmd.Groups() {
		groups[g.ID] = true
	}

	for _, cmd := range rootCmd.Commands() {
		if !cmd.IsAvailableCommand() {
			continue
		}
		t.Run(cmd.Name(), func(t *testing.T) {
			require.NotEmpty(t, cmd.GroupID)
			assert.True(t, groups[cmd.GroupID], "unknown group %q", cmd.GroupID)
		})
	}
}

func TestWalkCommands_VisitsEveryCommand(t *testing.T) {
	var visited []string
	walkCommands(rootCmd, func(cmd *cobra.Command) {
		visited = append(visited, cmd.CommandPath())
	})

	for _, path := range []string{
		"qwallet",
		"qwallet login",
		"qwallet register",
		"qwallet logout",
		"qwallet whoami",
		"qwallet status",
		"qwallet wallet create",
		"qwallet wallet list",
		"qwallet wallet balance",
		"qwallet wallet tx",
		"qwallet wallet delete",
		"qwallet key create",
		"qwallet key list",
		"qwallet key disable",
		"qwallet developer enable",
		"qwallet endpoint resolve",
		"qwallet relay serve",
		"qwallet completion",
		"qwallet version",
	} {
		assert.Contains(t, visited, path)
	}
}

func TestRootHelp_ShowsGroups(t *testing.T) {
	stdout, _, err := executeCommand(t, "", "--help")
	require.NoError(t, err)

	for _, title := range []string{"Wallet Operations:", "Account & Keys:", "Network & Relay:", "Configuration:"} {
		assert.Contains(t, stdout, title)
	}
	assert.NotContains(t, stdout, "Additional Commands:")
}

func TestHelpCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "parent lists its subcommands",
			args: []string{"help", "wallet"},
			want: []string{"Subcommands:", "create", "delete", "Available Commands:"},
		},
		{
			name: "leaf shows examples and global flags",
			args: []string{"help", "wallet", "create"},
			want: []string{"Examples:", "qwallet wallet create --chain", "--home", "--relay"},
		},
		{
			name: "developer",
			args: []string{"help", "developer"},
			want: []string{"enable"},
		},
		{
			name: "unknown topic",
			args: []string{"help", "teleport"},
			want: []string{`Unknown help topic "teleport"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := executeCommand(t, "", tt.args...)
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, stdout, w)
			}
		})
	}
}

func TestEnrichParentLong(t *testing.T) {
	noop := func(*cobra.Command, []string) {}

	t.Run("lists visible subcommands", func(t *testing.T) {
		parent := &cobra.Command{Use: "parent", Short: "Parent", Long: "Base description."}
		parent.AddCommand(
			&cobra.Command{Use: "sub1", Short: "First subcommand", Run: noop},
			&cobra.Command{Use: "sub2", Short: "Second subcommand", Run: noop},
			&cobra.Command{Use: "secret", Short: "Hidden command", Hidden: true, Run: noop},
		)

		enrichParentLong(parent)

		assert.True(t, strings.HasPrefix(parent.Long, "Base description."))
		assert.Contains(t, parent.Long, "Subcommands:")
		assert.Contains(t, parent.Long, "First subcommand")
		assert.Contains(t, parent.Long, "Second subcommand")
		assert.NotContains(t, parent.Long, "secret")
	})

	t.Run("leaves leaves alone", func(t *testing.T) {
		leaf := &cobra.Command{Use: "leaf", Short: "A leaf", Long: "Leaf description."}
		enrichParentLong(leaf)
		assert.Equal(t, "Leaf description.", leaf.Long)
	})
}

func TestRequiredFlags_RejectedWhenMissing(t *testing.T) {
	for _, cmd := range []*cobra.Command{walletCreateCmd, keyCreateCmd, developerEnableCmd} {
		t.Run(cmd.CommandPath(), func(t *testing.T) {
			resetCommandState(t)
			err := cmd.ValidateRequiredFlags()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "required flag")
		})
	}
}

func TestParentHelp_RendersWithoutRunning(t *testing.T) {
	for _, cmd := range []*cobra.Command{walletCmd, keyCmd, endpointCmd, relayCmd} {
		t.Run(cmd.Name(), func(t *testing.T) {
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			t.Cleanup(func() { cmd.SetOut(nil) })

			require.NoError(t, cmd.Help())
			for _, sub := range cmd.Commands() {
				if sub.IsAvailableCommand() {
					assert.Contains(t, buf.String(), sub.Name())
				}
			}
		})
	}
}
