package gateway

import (
	"encoding/json"
	"time"

	"github.com/quantumwallet/qwallet/internal/secret"
	"github.com/quantumwallet/qwallet/internal/session"
)

// Supported chains.
const (
	ChainEthereum = "ethereum"
	ChainBitcoin  = "bitcoin"
	ChainSolana   = "solana"
)

// Generation option values.
const (
	NetworkMainnet = "mainnet"
	NetworkTestnet = "testnet"

	WalletTypeDefault  = "default"
	WalletTypeHardware = "hardware"
	WalletTypeMultiSig = "multi-sig"

	EncryptionQuantum  = "quantum"
	EncryptionStandard = "standard"

	AlgorithmDilithium = "dilithium"
	AlgorithmFalcon    = "falcon"
	AlgorithmSphincs   = "sphincs"

	DefaultMnemonicStrength = 256
)

// Transaction filter values.
const (
	TxTypeAll      = "all"
	TxTypeSent     = "sent"
	TxTypeReceived = "received"

	DefaultTxLimit = 10
	MaxTxLimit     = 100
)

// Transfer priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Credentials are the username and password for login and registration.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// GenerateConfig holds the wallet generation options. Zero values take the defaults.
type GenerateConfig struct {
	Chain            string `json:"chain"`
	Network          string `json:"network"`
	WalletType       string `json:"walletType"`
	Encryption       string `json:"encryption"`
	MnemonicStrength int    `json:"mnemonicStrength"`
	QuantumAlgorithm string `json:"quantumAlgorithm"`
	DerivationPath   string `json:"derivationPath,omitempty"`
}

// Wallet is a wallet record as listed by the backend.
type Wallet struct {
	ID      int64  `json:"id"`
	Chain   string `json:"chain"`
	Address string `json:"address"`
	Network string `json:"network,omitempty"`
	// Balance is the decimal balance included in a listing, empty when absent.
	Balance   string    `json:"balance,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// WalletFilters narrows a wallet listing. Empty fields match every wallet.
type WalletFilters struct {
	Chain   string
	Network string
	// IncludeBalances asks the backend to report each wallet's balance.
	IncludeBalances bool
}

// Generated is the result of a wallet generation. Mnemonic is shown once.
type Generated struct {
	Wallet           Wallet
	Config           GenerateConfig
	Mnemonic         *secret.Value
	MnemonicVerified bool
}

// BalanceOptions selects what GetBalance reads. Without a token address the
// native balance is read.
type BalanceOptions struct {
	Network       string
	TokenAddress  string
	TokenDecimals int
	TokenSymbol   string
}

// Balance is a balance read. Available=false means the read failed and Value is meaningless.
type Balance struct {
	Chain     string `json:"chain"`
	Address   string `json:"address"`
	Network   string `json:"network"`
	Token     string `json:"token,omitempty"`
	Available bool   `json:"available"`
	Value     string `json:"value,omitempty"`
}

// SendRequest is a transfer out of a custodial wallet. Amount is a decimal
// string in the chain's (or token's) display unit.
type SendRequest struct {
	FromAddress   string  `json:"fromAddress"`
	ToAddress     string  `json:"toAddress"`
	Amount        string  `json:"amount"`
	Chain         string  `json:"chain"`
	Network       string  `json:"network"`
	GasPrice      string  `json:"gasPrice,omitempty"`
	GasLimit      uint64  `json:"gasLimit,omitempty"`
	Nonce         *uint64 `json:"nonce,omitempty"`
	Data          string  `json:"data,omitempty"`
	Memo          string  `json:"memo,omitempty"`
	TokenAddress  string  `json:"tokenAddress,omitempty"`
	TokenDecimals int     `json:"tokenDecimals,omitempty"`
	TokenSymbol   string  `json:"tokenSymbol,omitempty"`
	Priority      string  `json:"priority"`
}

// SentTransaction is the backend's answer to a transfer. Hash may be empty
// when the backend accepted the transfer without naming it.
type SentTransaction struct {
	Hash   string          `json:"hash,omitempty"`
	Status string          `json:"status"`
	Raw    json.RawMessage `json:"-"`
}

// ConfigTestResult is a dry run of a generation config. Results is the
// backend's report, kept as-is for display; nothing in it is tracked.
type ConfigTestResult struct {
	Config  GenerateConfig  `json:"config"`
	Results json.RawMessage `json:"testResults,omitempty"`
}

// TransactionFilters narrows a transaction history query.
type TransactionFilters struct {
	Network      string     `json:"network"`
	Limit        int        `json:"limit"`
	Offset       int        `json:"offset"`
	StartDate    *time.Time `json:"startDate,omitempty"`
	EndDate      *time.Time `json:"endDate,omitempty"`
	Type         string     `json:"type"`
	TokenAddress string     `json:"tokenAddress,omitempty"`
}

// Transaction is one history entry. Fields beyond the common ones are kept raw.
type Transaction struct {
	Hash      string          `json:"hash"`
	From      string          `json:"from,omitempty"`
	To        string          `json:"to,omitempty"`
	Value     string          `json:"value,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Type      string          `json:"type,omitempty"`
	Raw       json.RawMessage `json:"-"`
}

// DeveloperKey is an API key record. APIKey is masked unless just created.
type DeveloperKey struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	APIKey    string     `json:"apiKey"`
	Enabled   bool       `json:"enabled"`
	LastUsed  *time.Time `json:"lastUsed,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// CreatedKey is the result of creating a key. Secret is shown once.
type CreatedKey struct {
	Key    DeveloperKey
	Secret *secret.Value
}

// Health is the backend health answer.
type Health struct {
	Status string `json:"status"`
	Base   string `json:"base,omitempty"`
}

// DeveloperProfile is re-exported for callers that only import the gateway.
type DeveloperProfile = session.DeveloperProfile
