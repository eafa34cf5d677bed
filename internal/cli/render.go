package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/quantumwallet/qwallet/internal/gateway"
	"github.com/quantumwallet/qwallet/internal/output"
	walletservice "github.com/quantumwallet/qwallet/internal/service/wallet"
	qwerr "github.com/quantumwallet/qwallet/pkg/errors"
)

// out is a helper for CLI output that ignores write errors (standard pattern for CLI tools).
//
//nolint:errcheck // CLI output writes to stdout are intentionally unchecked
func out(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}

// outln is a helper for CLI output with newline.
//
//nolint:errcheck // CLI output writes to stdout are intentionally unchecked
func outln(w io.Writer, args ...any) {
	fmt.Fprintln(w, args...)
}

// balanceText renders a display balance. An unconfirmed balance is marked so
// nobody mistakes the placeholder for a real zero.
func balanceText(d walletservice.Display) string {
	if !d.Known {
		return d.Value + " (unconfirmed)"
	}
	return d.Value
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return formatTime(*t)
}

func walletTable(entries []walletservice.Entry) *output.Table {
	tbl := output.NewTable("ID", "CHAIN", "NETWORK", "ADDRESS", "BALANCE", "CREATED").AlignRight(0).AlignRight(4)
	for _, e := range entries {
		tbl.AddRow(
			strconv.FormatInt(e.Wallet.ID, 10),
			e.Wallet.Chain,
			e.Wallet.Network,
			e.Wallet.Address,
			balanceText(e.Balance),
			formatTime(e.Wallet.CreatedAt),
		)
	}
	return tbl
}

func keyTable(keys []gateway.DeveloperKey) *output.Table {
	tbl := output.NewTable("ID", "NAME", "KEY", "STATUS", "LAST USED", "CREATED").AlignRight(0)
	for _, k := range keys {
		status := "enabled"
		if !k.Enabled {
			status = "disabled"
		}
		tbl.AddRow(
			strconv.FormatInt(k.ID, 10),
			k.Name,
			k.APIKey,
			status,
			formatTimePtr(k.LastUsed),
			formatTimePtr(k.CreatedAt),
		)
	}
	return tbl
}

func transactionTable(txs []gateway.Transaction) *output.Table {
	tbl := output.NewTable("HASH", "TYPE", "FROM", "TO", "VALUE", "TIME").
		Abbreviate(0, 18).
		Abbreviate(2, 15).
		Abbreviate(3, 15).
		AlignRight(4)
	for _, tx := range txs {
		tbl.AddRow(tx.Hash, dash(tx.Type), dash(tx.From), dash(tx.To), dash(tx.Value), dash(tx.Timestamp))
	}
	return tbl
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// parseID parses a positional wallet or key id.
func parseID(kind, arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, qwerr.WithDetails(qwerr.ErrInvalidID, map[string]string{kind: arg})
	}
	if err := gateway.ValidateID(kind, id); err != nil {
		return 0, err
	}
	return id, nil
}
