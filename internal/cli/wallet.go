package cli

import (
	"context"
	"math/big"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/quantumwallet/qwallet/internal/gateway"
	"github.com/quantumwallet/qwallet/internal/output"
	walletservice "github.com/quantumwallet/qwallet/internal/service/wallet"
	qwerr "github.com/quantumwallet/qwallet/pkg/errors"
)

// balanceWorkers bounds concurrent balance reads for list --balances.
const balanceWorkers = 4

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	createCfg gateway.GenerateConfig

	listBalances bool
	listFilter   gateway.WalletFilters

	// Address targeting for balance and tx without a wallet id.
	targetAddress string
	targetChain   string
	targetNetwork string

	balanceToken gateway.BalanceOptions

	sendReq   gateway.SendRequest
	sendNonce uint64
	sendYes   bool

	txLimit  int
	txOffset int
	txType   string
	txStart  string
	txEnd    string
	txToken  string

	deleteYes bool
)

// walletCmd is the parent command for wallet operations.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Create, inspect and delete custodial wallets",
	Long: `Manage wallets held by the custody backend.

Wallets are generated server-side. The recovery phrase is shown exactly once,
when the wallet is created. A wallet can only be deleted once its balance has
been confirmed to be zero.`,
}

// walletCreateCmd generates a wallet.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var walletCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Generate a new wallet",
	Long: `Generate a new wallet on the backend.

The recovery phrase is printed once and never stored by qwallet. Write it
down before closing the terminal.`,
	Example: `  qwallet wallet create --chain ethereum
  qwallet wallet create --chain solana --network testnet --strength 128
  qwallet wallet create --chain bitcoin --algorithm falcon -o json`,
	Args: cobra.NoArgs,
	RunE: runWalletCreate,
}

// walletListCmd lists wallets.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var walletListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your wallets",
	Long: `List the wallets of the signed-in user.

A balance is only shown as confirmed when the backend reported it. Use
--balances to read every balance now.`,
	Example: `  qwallet wallet list
  qwallet wallet list --chain ethereum --network testnet
  qwallet wallet list --balances -o json`,
	Args: cobra.NoArgs,
	RunE: runWalletList,
}

// walletBalanceCmd reads a balance.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var walletBalanceCmd = &cobra.Command{
	Use:   "balance [wallet-id]",
	Short: "Read a wallet balance",
	Long: `Read the balance of one of your wallets, or of any address with
--address and --chain. Reading an address needs no sign-in.

With --token the balance of that token contract (ethereum) or mint (solana)
is read instead. A token balance does not count toward deleting a wallet.`,
	Example: `  qwallet wallet balance 3
  qwallet wallet balance 3 --token 0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48 --token-symbol USDC --token-decimals 6
  qwallet wallet balance --chain ethereum --address 0x742d35Cc6634C0532925a3b844Bc454e4438f44e`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWalletBalance,
}

// walletTxCmd reads transaction history.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var walletTxCmd = &cobra.Command{
	Use:   "tx [wallet-id]",
	Short: "Show transaction history",
	Long: `Show the transaction history of one of your wallets, or of any address
with --address and --chain.

Dates accept YYYY-MM-DD or RFC 3339.`,
	Example: `  qwallet wallet tx 3
  qwallet wallet tx 3 --type received --limit 50
  qwallet wallet tx --chain solana --address <address> --start 2024-01-01`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWalletTx,
}

// walletDeleteCmd deletes a wallet.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var walletDeleteCmd = &cobra.Command{
	Use:   "delete <wallet-id>",
	Short: "Delete an empty wallet",
	Long: `Delete a wallet. The balance is read first and the deletion is refused
unless the backend confirms it is exactly zero. A balance that cannot be read
also refuses the deletion.`,
	Example: `  qwallet wallet delete 3
  qwallet wallet delete 3 --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runWalletDelete,
}

// walletSendCmd transfers funds.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var walletSendCmd = &cobra.Command{
	Use:   "send <wallet-id>",
	Short: "Send funds from a wallet",
	Long: `Transfer funds out of one of your wallets. The amount is in the chain's
display unit (ETH, BTC, SOL), or the token's with --token.

A transfer is never retried. If the command fails after the request was sent,
check the transaction history before sending again. The wallet's balance is
unknown afterwards until it is read again.`,
	Example: `  qwallet wallet send 3 --to 0xde709f2102306220921060314715629080e2fb77 --amount 0.25
  qwallet wallet send 5 --to <address> --amount 1.5 --priority high --memo "invoice 42" --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runWalletSend,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	walletCmd.GroupID = groupWallet
	rootCmd.AddCommand(walletCmd)
	walletCmd.AddCommand(walletCreateCmd, walletListCmd, walletBalanceCmd, walletTxCmd, walletSendCmd, walletDeleteCmd)

	bindGenerateFlags(walletCreateCmd.Flags(), &createCfg)
	_ = walletCreateCmd.MarkFlagRequired("chain")

	lf := walletListCmd.Flags()
	lf.BoolVar(&listBalances, "balances", false, "read every balance before listing")
	lf.StringVar(&listFilter.Chain, "chain", "", "only wallets on this chain")
	lf.StringVar(&listFilter.Network, "network", "", "only wallets on this network")

	bf := walletBalanceCmd.Flags()
	bf.StringVar(&balanceToken.TokenAddress, "token", "", "token contract or mint address")
	bf.IntVar(&balanceToken.TokenDecimals, "token-decimals", 0, "token precision, when the backend cannot look it up")
	bf.StringVar(&balanceToken.TokenSymbol, "token-symbol", "", "token symbol to label the balance with")

	sf := walletSendCmd.Flags()
	sf.StringVar(&sendReq.ToAddress, "to", "", "recipient address (required)")
	sf.StringVar(&sendReq.Amount, "amount", "", "amount to send, e.g. 0.25 (required)")
	sf.StringVar(&sendReq.Priority, "priority", gateway.PriorityMedium, "fee priority: "+strings.Join(gateway.Priorities, ", "))
	sf.StringVar(&sendReq.Memo, "memo", "", "memo, on chains that carry one")
	sf.StringVar(&sendReq.GasPrice, "gas-price", "", "gas price in wei (ethereum)")
	sf.Uint64Var(&sendReq.GasLimit, "gas-limit", 0, "gas limit (ethereum)")
	sf.Uint64Var(&sendNonce, "nonce", 0, "explicit nonce (ethereum)")
	sf.StringVar(&sendReq.Data, "data", "", "hex call data (ethereum)")
	sf.StringVar(&sendReq.TokenAddress, "token", "", "token contract or mint to transfer")
	sf.IntVar(&sendReq.TokenDecimals, "token-decimals", 0, "token precision")
	sf.StringVar(&sendReq.TokenSymbol, "token-symbol", "", "token symbol")
	sf.BoolVarP(&sendYes, "yes", "y", false, "send without asking")
	_ = walletSendCmd.MarkFlagRequired("to")
	_ = walletSendCmd.MarkFlagRequired("amount")

	for _, c := range []*cobra.Command{walletBalanceCmd, walletTxCmd} {
		c.Flags().StringVar(&targetAddress, "address", "", "address to query instead of a wallet id")
		c.Flags().StringVar(&targetChain, "chain", "", "chain of --address")
		c.Flags().StringVar(&targetNetwork, "network", "", "network of --address (default: mainnet)")
	}

	tf := walletTxCmd.Flags()
	tf.IntVar(&txLimit, "limit", gateway.DefaultTxLimit, "maximum entries, 1-100")
	tf.IntVar(&txOffset, "offset", 0, "entries to skip")
	tf.StringVar(&txType, "type", gateway.TxTypeAll, "direction: "+strings.Join(gateway.TxTypes, ", "))
	tf.StringVar(&txStart, "start", "", "earliest date")
	tf.StringVar(&txEnd, "end", "", "latest date")
	tf.StringVar(&txToken, "token", "", "token contract address")

	walletDeleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "delete without asking")
}

// bindGenerateFlags adds the generation options shared by wallet create and
// developer test-config.
func bindGenerateFlags(f *pflag.FlagSet, cfg *gateway.GenerateConfig) {
	f.StringVar(&cfg.Chain, "chain", "", "chain (required): "+strings.Join(gateway.Chains, ", "))
	f.StringVar(&cfg.Network, "network", gateway.NetworkMainnet, "network: "+strings.Join(gateway.Networks, ", "))
	f.StringVar(&cfg.WalletType, "type", gateway.WalletTypeDefault, "wallet type: "+strings.Join(gateway.WalletTypes, ", "))
	f.StringVar(&cfg.Encryption, "encryption", gateway.EncryptionQuantum, "encryption: "+strings.Join(gateway.Encryptions, ", "))
	f.IntVar(&cfg.MnemonicStrength, "strength", gateway.DefaultMnemonicStrength, "mnemonic strength in bits: 128, 256, 512")
	f.StringVar(&cfg.QuantumAlgorithm, "algorithm", gateway.AlgorithmDilithium, "quantum algorithm: "+strings.Join(gateway.QuantumAlgorithms, ", "))
	f.StringVar(&cfg.DerivationPath, "derivation-path", "", "custom derivation path, e.g. m/44'/60'/0'/0/0")
}

func walletService(cmd *cobra.Command) (context.Context, context.CancelFunc, *walletservice.Service, error) {
	ctx, cancel := commandContext(cmd)
	svc, err := GetCmdContext(cmd).Wallets(ctx)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return ctx, cancel, svc, nil
}

func runWalletCreate(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)
	ctx, cancel, svc, err := walletService(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	gen, err := svc.Create(ctx, createCfg)
	if err != nil {
		return err
	}
	defer gen.Mnemonic.Destroy()

	phrase, err := gen.Mnemonic.Reveal()
	if err != nil {
		return err
	}
	if !gen.MnemonicVerified {
		output.Warnf("the recovery phrase does not look like a %d-bit phrase; check it before relying on it", gen.Config.MnemonicStrength)
	}

	w := cmd.OutOrStdout()
	if cc.Fmt.IsJSON() {
		return output.WriteJSON(w, struct {
			Wallet           gateway.Wallet         `json:"wallet"`
			Config           gateway.GenerateConfig `json:"config"`
			Mnemonic         string                 `json:"mnemonic"`
			MnemonicVerified bool                   `json:"mnemonicVerified"`
		}{gen.Wallet, gen.Config, phrase, gen.MnemonicVerified})
	}

	out(w, "Wallet %d created\n", gen.Wallet.ID)
	out(w, "  Chain:      %s\n", gen.Wallet.Chain)
	out(w, "  Network:    %s\n", gen.Wallet.Network)
	out(w, "  Address:    %s\n", gen.Wallet.Address)
	out(w, "  Encryption: %s (%s)\n", gen.Config.Encryption, gen.Config.QuantumAlgorithm)
	outln(w)
	out(w, "Recovery phrase (%d words). It is shown only once:\n\n", gen.Mnemonic.Words())
	out(w, "  %s\n\n", phrase)
	return nil
}

func runWalletList(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)
	ctx, cancel, svc, err := walletService(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	entries, err := svc.List(ctx, listFilter)
	if err != nil {
		return err
	}

	if listBalances && len(entries) > 0 {
		if err := refreshAll(ctx, svc, entries); err != nil {
			return err
		}
		entries = slices.DeleteFunc(svc.Entries(), func(e walletservice.Entry) bool {
			return !listFilter.Matches(e.Wallet)
		})
	}

	w := cmd.OutOrStdout()
	if cc.Fmt.IsJSON() {
		return output.WriteJSON(w, entries)
	}
	if len(entries) == 0 {
		outln(w, "No wallets yet. Create one with: qwallet wallet create --chain ethereum")
		return nil
	}
	return walletTable(entries).Render(w)
}

// refreshAll reads every balance concurrently. A failed read leaves that
// balance unknown; only a lost session aborts.
func refreshAll(ctx context.Context, svc *walletservice.Service, entries []walletservice.Entry) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(balanceWorkers)
	for _, e := range entries {
		id := e.Wallet.ID
		g.Go(func() error {
			_, err := svc.RefreshBalance(gctx, id)
			switch {
			case err == nil:
				return nil
			case qwerr.IsUnauthorized(err):
				return err
			default:
				output.Warnf("balance of wallet %d is unknown: %v", id, err)
				return nil
			}
		})
	}
	return g.Wait()
}

func runWalletBalance(cmd *cobra.Command, args []string) error {
	cc := GetCmdContext(cmd)
	ctx, cancel := commandContext(cmd)
	defer cancel()

	var (
		bal *gateway.Balance
		err error
	)
	if len(args) == 0 {
		if targetAddress == "" || targetChain == "" {
			return qwerr.WithSuggestion(qwerr.ErrInvalidInput, "give a wallet id, or both --address and --chain")
		}
		gw, gerr := cc.Gateway(ctx)
		if gerr != nil {
			return gerr
		}
		opts := balanceToken
		opts.Network = targetNetwork
		bal, err = gw.GetBalance(ctx, targetAddress, targetChain, opts)
	} else {
		id, perr := parseID("wallet", args[0])
		if perr != nil {
			return perr
		}
		svc, serr := cc.Wallets(ctx)
		if serr != nil {
			return serr
		}
		if _, lerr := svc.List(ctx, gateway.WalletFilters{}); lerr != nil {
			return lerr
		}
		if balanceToken.TokenAddress != "" {
			bal, err = svc.TokenBalance(ctx, id, balanceToken)
		} else {
			bal, err = svc.RefreshBalance(ctx, id)
		}
	}
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if cc.Fmt.IsJSON() {
		return output.WriteJSON(w, bal)
	}
	unit := bal.Chain
	if bal.Token != "" {
		unit = bal.Token
	}
	out(w, "%s %s (%s)\n", bal.Value, unit, bal.Network)
	out(w, "  Address: %s\n", bal.Address)
	return nil
}

func runWalletSend(cmd *cobra.Command, args []string) error {
	cc := GetCmdContext(cmd)
	id, err := parseID("wallet", args[0])
	if err != nil {
		return err
	}

	req := sendReq
	if cmd.Flags().Changed("nonce") {
		n := sendNonce
		req.Nonce = &n
	}

	ctx, cancel, svc, err := walletService(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	if _, err := svc.List(ctx, gateway.WalletFilters{}); err != nil {
		return err
	}
	entry, ok := svc.Get(id)
	if !ok {
		return qwerr.WithSuggestion(
			qwerr.WithDetails(qwerr.ErrWalletNotFound, map[string]string{"wallet": strconv.FormatInt(id, 10)}),
			"list wallets with: qwallet wallet list",
		)
	}

	// Check locally before asking, so a typo is not confirmed first
	check := req
	check.FromAddress, check.Chain, check.Network = entry.Wallet.Address, entry.Wallet.Chain, entry.Wallet.Network
	if _, err := check.Normalize(); err != nil {
		return err
	}

	if !sendYes {
		if !interactive(cmd) {
			return qwerr.WithSuggestion(qwerr.ErrInvalidInput, "pass --yes to send without a prompt")
		}
		unit := entry.Wallet.Chain
		if req.TokenSymbol != "" {
			unit = req.TokenSymbol
		}
		question := "Send " + strings.TrimSpace(req.Amount) + " " + unit + " from wallet " +
			strconv.FormatInt(id, 10) + " to " + strings.TrimSpace(req.ToAddress) + "?"
		if !promptConfirmation(cmd, question) {
			outln(cmd.ErrOrStderr(), "Aborted")
			return nil
		}
	}

	sent, err := svc.Send(ctx, id, req)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if cc.Fmt.IsJSON() {
		return output.WriteJSON(w, sent)
	}
	if sent.Hash == "" {
		out(w, "Transfer %s; the backend did not return a transaction hash\n", sent.Status)
		return nil
	}
	out(w, "Transfer %s\n", sent.Status)
	out(w, "  Hash: %s\n", sent.Hash)
	return nil
}

func runWalletTx(cmd *cobra.Command, args []string) error {
	cc := GetCmdContext(cmd)
	ctx, cancel := commandContext(cmd)
	defer cancel()

	filters, err := txFilters()
	if err != nil {
		return err
	}

	var txs []gateway.Transaction
	if len(args) == 0 {
		if targetAddress == "" || targetChain == "" {
			return qwerr.WithSuggestion(qwerr.ErrInvalidInput, "give a wallet id, or both --address and --chain")
		}
		gw, gerr := cc.Gateway(ctx)
		if gerr != nil {
			return gerr
		}
		filters.Network = targetNetwork
		txs, err = gw.GetTransactions(ctx, targetAddress, targetChain, filters)
	} else {
		id, perr := parseID("wallet", args[0])
		if perr != nil {
			return perr
		}
		svc, serr := cc.Wallets(ctx)
		if serr != nil {
			return serr
		}
		if _, lerr := svc.List(ctx, gateway.WalletFilters{}); lerr != nil {
			return lerr
		}
		txs, err = svc.Transactions(ctx, id, filters)
	}
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if cc.Fmt.IsJSON() {
		raw := make([]any, 0, len(txs))
		for _, tx := range txs {
			if len(tx.Raw) > 0 {
				raw = append(raw, tx.Raw)
				continue
			}
			raw = append(raw, tx)
		}
		return output.WriteJSON(w, raw)
	}
	if len(txs) == 0 {
		outln(w, "No transactions found")
		return nil
	}
	return transactionTable(txs).Render(w)
}

func txFilters() (gateway.TransactionFilters, error) {
	f := gateway.TransactionFilters{
		Limit:        txLimit,
		Offset:       txOffset,
		Type:         txType,
		TokenAddress: strings.TrimSpace(txToken),
	}
	var err error
	if f.StartDate, err = parseDate("start", txStart); err != nil {
		return f, err
	}
	if f.EndDate, err = parseDate("end", txEnd); err != nil {
		return f, err
	}
	return f, nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339. Empty means unset.
func parseDate(option, s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil //nolint:nilnil // unset filter
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, qwerr.WithSuggestion(
		qwerr.WithDetails(qwerr.ErrInvalidOption, map[string]string{"option": option, "value": s}),
		"use YYYY-MM-DD or an RFC 3339 timestamp",
	)
}

func runWalletDelete(cmd *cobra.Command, args []string) error {
	cc := GetCmdContext(cmd)
	id, err := parseID("wallet", args[0])
	if err != nil {
		return err
	}

	ctx, cancel, svc, err := walletService(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	if _, err := svc.List(ctx, gateway.WalletFilters{}); err != nil {
		return err
	}
	entry, ok := svc.Get(id)
	if !ok {
		return qwerr.WithSuggestion(
			qwerr.WithDetails(qwerr.ErrWalletNotFound, map[string]string{"wallet": strconv.FormatInt(id, 10)}),
			"list wallets with: qwallet wallet list",
		)
	}

	// The deletion rule needs a confirmed balance; a failed read leaves it unknown
	if _, err := svc.RefreshBalance(ctx, id); err != nil {
		if qwerr.IsUnauthorized(err) {
			return err
		}
		cc.Log.Debug("balance read before deleting wallet %d failed: %v", id, err)
	}

	if d, err := svc.Display(id); err == nil && d.Known && isZero(d.Value) && !deleteYes {
		if !interactive(cmd) {
			return qwerr.WithSuggestion(qwerr.ErrInvalidInput, "pass --yes to delete without a prompt")
		}
		question := "Delete wallet " + strconv.FormatInt(id, 10) + " (" + entry.Wallet.Chain + " " + entry.Wallet.Address + ")?"
		if !promptConfirmation(cmd, question) {
			outln(cmd.ErrOrStderr(), "Aborted")
			return nil
		}
	}

	if err := svc.RequestDelete(ctx, id); err != nil {
		return err
	}
	return output.FormatSuccess(cmd.OutOrStdout(), "wallet "+strconv.FormatInt(id, 10)+" deleted", cc.Fmt.Format())
}

func isZero(amount string) bool {
	v, ok := new(big.Float).SetString(amount)
	return ok && v.Sign() == 0
}
