// Package wallet tracks the caller's wallets and enforces balance-gated deletion.
package wallet

import (
	"context"

	"github.com/quantumwallet/qwallet/internal/gateway"
)

// Gateway is the subset of backend operations the lifecycle drives.
type Gateway interface {
	GenerateWallet(ctx context.Context, cfg gateway.GenerateConfig) (*gateway.Generated, error)
	ListWallets(ctx context.Context, f gateway.WalletFilters) ([]gateway.Wallet, error)
	GetBalance(ctx context.Context, address, chain string, opts gateway.BalanceOptions) (*gateway.Balance, error)
	GetTransactions(ctx context.Context, address, chain string, filters gateway.TransactionFilters) ([]gateway.Transaction, error)
	DeleteWallet(ctx context.Context, id int64) error
	SendTransaction(ctx context.Context, req gateway.SendRequest) (*gateway.SentTransaction, error)
}

// LogWriter provides logging capabilities.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// TransitionFunc observes lifecycle transitions. It may run with the service
// locked and must not call back into it.
type TransitionFunc func(id int64, from, to State)
