package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantumwallet/qwallet/internal/gateway"
)

// completionTimeout bounds backend lookups made while the shell waits.
const completionTimeout = 3 * time.Second

// completionCmd writes a shell completion script.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var completionCmd = &cobra.Command{
	Use:   "completion <shell>",
	Short: "Print a shell completion script",
	Long: `Print a completion script for bash, zsh, fish or powershell.

Besides commands and flags, completion offers chain and network names, and
the ids of your wallets and API keys when a session is saved.`,
	Example: `  source <(qwallet completion bash)
  qwallet completion zsh > "${fpath[1]}/_qwallet"
  qwallet completion fish | source`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, w := cmd.Root(), cmd.OutOrStdout()
		switch args[0] {
		case "zsh":
			return root.GenZshCompletion(w)
		case "fish":
			return root.GenFishCompletion(w, true)
		case "powershell":
			return root.GenPowerShellCompletionWithDesc(w)
		default:
			return root.GenBashCompletionV2(w, true)
		}
	},
}

// fixedValues completes a flag from a closed list.
func fixedValues(values ...string) cobra.CompletionFunc {
	return cobra.FixedCompletions(values, cobra.ShellCompDirectiveNoFileComp)
}

// withSession builds the command context for a completion request, which
// skips the persistent hooks, and hands fn a bounded context.
func withSession(cmd *cobra.Command, fn func(ctx context.Context) ([]string, error)) ([]string, cobra.ShellCompDirective) {
	if err := initGlobals(cmd); err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), completionTimeout)
	defer cancel()

	out, err := fn(ctx)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

// completeWalletIDs offers the ids of the signed-in user's wallets.
func completeWalletIDs(cmd *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return withSession(cmd, func(ctx context.Context) ([]string, error) {
		svc, err := GetCmdContext(cmd).Wallets(ctx)
		if err != nil {
			return nil, err
		}
		entries, err := svc.List(ctx, gateway.WalletFilters{})
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(entries))
		for _, e := range entries {
			out = append(out, fmt.Sprintf("%d\t%s %s", e.Wallet.ID, e.Wallet.Chain, e.Wallet.Address))
		}
		return out, nil
	})
}

// completeEnabledKeyIDs offers the ids of keys that can still be disabled.
func completeEnabledKeyIDs(cmd *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return withSession(cmd, func(ctx context.Context) ([]string, error) {
		svc, err := GetCmdContext(cmd).Keys(ctx)
		if err != nil {
			return nil, err
		}
		keys, err := svc.List(ctx)
		if err != nil {
			return nil, err
		}
		var out []string
		for _, k := range keys {
			if k.Enabled {
				out = append(out, strconv.FormatInt(k.ID, 10)+"\t"+k.Name)
			}
		}
		return out, nil
	})
}

//nolint:gochecknoglobals // registration runs once, after every init
var completionOnce sync.Once

// registerCompletions attaches value completion to flags and arguments.
// It runs from Execute because the flags are defined in other files' init.
func registerCompletions() {
	completionOnce.Do(attachCompletions)
}

func attachCompletions() {
	flagValues := []struct {
		cmd    *cobra.Command
		flag   string
		values []string
	}{
		{walletCreateCmd, "chain", gateway.Chains},
		{walletCreateCmd, "network", gateway.Networks},
		{walletCreateCmd, "type", gateway.WalletTypes},
		{walletCreateCmd, "encryption", gateway.Encryptions},
		{walletCreateCmd, "algorithm", gateway.QuantumAlgorithms},
		{walletCreateCmd, "strength", []string{"128", "256", "512"}},
		{developerTestConfigCmd, "chain", gateway.Chains},
		{developerTestConfigCmd, "network", gateway.Networks},
		{developerTestConfigCmd, "type", gateway.WalletTypes},
		{developerTestConfigCmd, "encryption", gateway.Encryptions},
		{developerTestConfigCmd, "algorithm", gateway.QuantumAlgorithms},
		{developerTestConfigCmd, "strength", []string{"128", "256", "512"}},
		{walletListCmd, "chain", gateway.Chains},
		{walletListCmd, "network", gateway.Networks},
		{walletSendCmd, "priority", gateway.Priorities},
		{walletBalanceCmd, "chain", gateway.Chains},
		{walletBalanceCmd, "network", gateway.Networks},
		{walletTxCmd, "chain", gateway.Chains},
		{walletTxCmd, "network", gateway.Networks},
		{walletTxCmd, "type", gateway.TxTypes},
		{rootCmd, "output", []string{"text", "json", "auto"}},
	}
	for _, fv := range flagValues {
		_ = fv.cmd.RegisterFlagCompletionFunc(fv.flag, fixedValues(fv.values...))
	}

	for _, c := range []*cobra.Command{walletBalanceCmd, walletTxCmd, walletSendCmd, walletDeleteCmd} {
		c.ValidArgsFunction = completeWalletIDs
	}
	keyDisableCmd.ValidArgsFunction = completeEnabledKeyIDs
}

// isCompletionRequest reports whether cmd is cobra's hidden completion
// entry point, which resolves flags itself before calling back.
func isCompletionRequest(cmd *cobra.Command) bool {
	return strings.HasPrefix(cmd.Name(), cobra.ShellCompRequestCmd)
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	completionCmd.GroupID = groupConfig
	rootCmd.AddCommand(completionCmd)
}
