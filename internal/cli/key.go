package cli

import (
	"context"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quantumwallet/qwallet/internal/gateway"
	"github.com/quantumwallet/qwallet/internal/output"
	"github.com/quantumwallet/qwallet/internal/service/devkey"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	keyName string

	devCompany string
	devWebsite string
	devUseCase string

	testCfg gateway.GenerateConfig
)

// keyCmd is the parent command for developer API keys.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage developer API keys",
	Long: `Create, list and disable developer API keys.

Keys need a developer account; enable one with: qwallet developer enable.
A key's secret is shown once when it is created. Disabling is permanent.`,
}

// keyCreateCmd creates a key.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var keyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an API key",
	Long:  `Create a named API key. The full key is printed once and cannot be shown again.`,
	Example: `  qwallet key create --name ci
  qwallet key create --name "staging server" -o json`,
	Args: cobra.NoArgs,
	RunE: runKeyCreate,
}

// keyListCmd lists keys.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var keyListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List API keys",
	Long:    `List your API keys with masked values, oldest first.`,
	Example: `  qwallet key list`,
	Args:    cobra.NoArgs,
	RunE:    runKeyList,
}

// keyDisableCmd disables a key.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var keyDisableCmd = &cobra.Command{
	Use:   "disable <key-id>",
	Short: "Disable an API key",
	Long: `Disable an API key. A disabled key cannot be enabled again. Disabling
a key that is already disabled succeeds without contacting the backend.`,
	Example: `  qwallet key disable 4`,
	Args:    cobra.ExactArgs(1),
	RunE:    runKeyDisable,
}

// developerCmd is the parent command for the developer account.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var developerCmd = &cobra.Command{
	Use:   "developer",
	Short: "Manage the developer account",
	Long:  `Turn the signed-in account into a developer account so it can hold API keys.`,
}

// developerEnableCmd enables the developer account.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var developerEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable the developer account",
	Long: `Enable the developer account for the signed-in user. A company name and a
use case are required; the website must be a URL with a domain when given.`,
	Example: `  qwallet developer enable --company "Acme" --website https://acme.example --use-case "payments"`,
	Args:    cobra.NoArgs,
	RunE:    runDeveloperEnable,
}

// developerTestConfigCmd dry-runs generation options.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var developerTestConfigCmd = &cobra.Command{
	Use:   "test-config",
	Short: "Try wallet generation options without creating a wallet",
	Long: `Send a set of wallet generation options to the backend for a dry run and
print its report. The options are checked locally first, exactly as for
wallet create. Nothing is added to your wallets.`,
	Example: `  qwallet developer test-config --chain ethereum
  qwallet developer test-config --chain solana --algorithm sphincs --strength 128 -o json`,
	Args: cobra.NoArgs,
	RunE: runDeveloperTestConfig,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	keyCmd.GroupID = groupAccount
	rootCmd.AddCommand(keyCmd)
	keyCmd.AddCommand(keyCreateCmd, keyListCmd, keyDisableCmd)

	keyCreateCmd.Flags().StringVar(&keyName, "name", "", "key name (required)")
	_ = keyCreateCmd.MarkFlagRequired("name")

	developerCmd.GroupID = groupAccount
	rootCmd.AddCommand(developerCmd)
	developerCmd.AddCommand(developerEnableCmd, developerTestConfigCmd)

	bindGenerateFlags(developerTestConfigCmd.Flags(), &testCfg)
	_ = developerTestConfigCmd.MarkFlagRequired("chain")

	developerEnableCmd.Flags().StringVar(&devCompany, "company", "", "company or project name (required)")
	developerEnableCmd.Flags().StringVar(&devWebsite, "website", "", "website URL")
	developerEnableCmd.Flags().StringVar(&devUseCase, "use-case", "", "what the keys will be used for (required)")
	_ = developerEnableCmd.MarkFlagRequired("company")
	_ = developerEnableCmd.MarkFlagRequired("use-case")
}

func keyService(cmd *cobra.Command) (context.Context, context.CancelFunc, *devkey.Service, error) {
	ctx, cancel := commandContext(cmd)
	svc, err := GetCmdContext(cmd).Keys(ctx)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return ctx, cancel, svc, nil
}

func runKeyCreate(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)
	ctx, cancel, svc, err := keyService(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	created, err := svc.Create(ctx, keyName)
	if err != nil {
		return err
	}
	defer created.Secret.Destroy()

	full, err := created.Secret.Reveal()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if cc.Fmt.IsJSON() {
		key := created.Key
		key.APIKey = full
		return output.WriteJSON(w, key)
	}

	out(w, "Key %d (%s) created\n\n", created.Key.ID, created.Key.Name)
	out(w, "  %s\n\n", full)
	outln(w, "Store it now. It will only be shown masked from here on.")
	return nil
}

func runKeyList(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)
	ctx, cancel, svc, err := keyService(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	keys, err := svc.List(ctx)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if cc.Fmt.IsJSON() {
		return output.WriteJSON(w, keys)
	}
	if len(keys) == 0 {
		outln(w, "No API keys. Create one with: qwallet key create --name <name>")
		return nil
	}
	return keyTable(keys).Render(w)
}

func runKeyDisable(cmd *cobra.Command, args []string) error {
	cc := GetCmdContext(cmd)
	id, err := parseID("key", args[0])
	if err != nil {
		return err
	}

	ctx, cancel, svc, err := keyService(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	if _, err := svc.List(ctx); err != nil {
		return err
	}
	key, err := svc.Get(id)
	if err != nil {
		return err
	}
	if !key.Enabled {
		return output.FormatSuccess(cmd.OutOrStdout(), "key "+strconv.FormatInt(id, 10)+" is already disabled", cc.Fmt.Format())
	}

	if err := svc.Disable(ctx, id); err != nil {
		return err
	}
	return output.FormatSuccess(cmd.OutOrStdout(), "key "+strconv.FormatInt(id, 10)+" disabled", cc.Fmt.Format())
}

func runDeveloperEnable(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)
	ctx, cancel := commandContext(cmd)
	defer cancel()

	profile := gateway.DeveloperProfile{
		Company: strings.TrimSpace(devCompany),
		Website: strings.TrimSpace(devWebsite),
		UseCase: strings.TrimSpace(devUseCase),
	}
	if err := gateway.ValidateProfile(profile); err != nil {
		return err
	}

	gw, err := cc.Gateway(ctx)
	if err != nil {
		return err
	}
	if err := gw.EnableDeveloperAccount(ctx, profile); err != nil {
		return err
	}
	return output.FormatSuccess(cmd.OutOrStdout(), "developer account enabled", cc.Fmt.Format())
}

func runDeveloperTestConfig(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)
	ctx, cancel := commandContext(cmd)
	defer cancel()

	gw, err := cc.Gateway(ctx)
	if err != nil {
		return err
	}
	res, err := gw.TestWalletConfig(ctx, testCfg)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if cc.Fmt.IsJSON() {
		return output.WriteJSON(w, res)
	}
	c := res.Config
	out(w, "Configuration accepted\n")
	out(w, "  Chain:      %s (%s)\n", c.Chain, c.Network)
	out(w, "  Type:       %s\n", c.WalletType)
	out(w, "  Encryption: %s (%s)\n", c.Encryption, c.QuantumAlgorithm)
	out(w, "  Strength:   %d bits\n", c.MnemonicStrength)
	if len(res.Results) > 0 {
		outln(w)
		outln(w, "Test results:")
		return output.WriteJSON(w, res.Results)
	}
	return nil
}
