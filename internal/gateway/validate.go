package gateway

import (
	"fmt"
	"math"
	"math/big"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gagliardetto/solana-go"

	qwerr "github.com/quantumwallet/qwallet/pkg/errors"
)

// Recognized option values, in display order.
//
//nolint:gochecknoglobals // Read-only option tables
var (
	Chains            = []string{ChainEthereum, ChainBitcoin, ChainSolana}
	Networks          = []string{NetworkMainnet, NetworkTestnet}
	WalletTypes       = []string{WalletTypeDefault, WalletTypeHardware, WalletTypeMultiSig}
	Encryptions       = []string{EncryptionQuantum, EncryptionStandard}
	QuantumAlgorithms = []string{AlgorithmDilithium, AlgorithmFalcon, AlgorithmSphincs}
	MnemonicStrengths = []int{128, 256, 512}
	TxTypes           = []string{TxTypeAll, TxTypeSent, TxTypeReceived}
	Priorities        = []string{PriorityLow, PriorityMedium, PriorityHigh}
)

// maxSuggestDistance is the largest edit distance offered as a "did you mean".
const maxSuggestDistance = 3

// maxTokenDecimals is the largest precision an ERC-20 or SPL token can declare.
const maxTokenDecimals = 255

var (
	// derivationPathRegex matches m/44'/60'/0'/0/0 style paths.
	derivationPathRegex = regexp.MustCompile(`^m(/[0-9]+'?)+$`)

	// decimalRegex matches a plain decimal amount, no sign or exponent.
	decimalRegex = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
)

// suggest returns the closest candidate to input, or "" when none is close.
func suggest(input string, candidates []string) string {
	input = strings.ToLower(strings.TrimSpace(input))
	best, bestDist := "", math.MaxInt
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(input, c)
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	if bestDist <= maxSuggestDistance {
		return best
	}
	return ""
}

// optionError builds an invalid-option error with a did-you-mean suggestion.
func optionError(sentinel *qwerr.QWalletError, option, value string, allowed []string) error {
	err := qwerr.WithDetails(sentinel, map[string]string{
		"option":  option,
		"value":   value,
		"allowed": strings.Join(allowed, ", "),
	})
	if s := suggest(value, allowed); s != "" {
		return qwerr.WithSuggestion(err, fmt.Sprintf("did you mean '%s'?", s))
	}
	return err
}

// ValidateChain checks that chain is supported.
func ValidateChain(chain string) error {
	if chain == "" {
		return qwerr.WithDetails(qwerr.ErrUnsupportedChain, map[string]string{"chain": "empty"})
	}
	if !slices.Contains(Chains, chain) {
		return optionError(qwerr.ErrUnsupportedChain, "chain", chain, Chains)
	}
	return nil
}

func validateEnum(option, value string, allowed []string) error {
	if !slices.Contains(allowed, value) {
		return optionError(qwerr.ErrInvalidOption, option, value, allowed)
	}
	return nil
}

// ApplyDefaults fills unset generation options.
func (c GenerateConfig) ApplyDefaults() GenerateConfig {
	if c.Network == "" {
		c.Network = NetworkMainnet
	}
	if c.WalletType == "" {
		c.WalletType = WalletTypeDefault
	}
	if c.Encryption == "" {
		c.Encryption = EncryptionQuantum
	}
	if c.MnemonicStrength == 0 {
		c.MnemonicStrength = DefaultMnemonicStrength
	}
	if c.QuantumAlgorithm == "" {
		c.QuantumAlgorithm = QuantumAlgorithms[0]
	}
	c.DerivationPath = strings.TrimSpace(c.DerivationPath)
	return c
}

// Validate checks every option against the recognized values. Call ApplyDefaults first.
func (c GenerateConfig) Validate() error {
	if err := ValidateChain(c.Chain); err != nil {
		return err
	}
	if err := validateEnum("network", c.Network, Networks); err != nil {
		return err
	}
	if err := validateEnum("walletType", c.WalletType, WalletTypes); err != nil {
		return err
	}
	if err := validateEnum("encryption", c.Encryption, Encryptions); err != nil {
		return err
	}
	if !slices.Contains(MnemonicStrengths, c.MnemonicStrength) {
		return qwerr.WithDetails(qwerr.ErrInvalidOption, map[string]string{
			"option":  "mnemonicStrength",
			"value":   strconv.Itoa(c.MnemonicStrength),
			"allowed": "128, 256, 512",
		})
	}
	if err := validateEnum("quantumAlgorithm", c.QuantumAlgorithm, QuantumAlgorithms); err != nil {
		return err
	}
	if c.DerivationPath != "" && !derivationPathRegex.MatchString(c.DerivationPath) {
		return qwerr.WithSuggestion(
			qwerr.WithDetails(qwerr.ErrInvalidOption, map[string]string{"option": "derivationPath", "value": c.DerivationPath}),
			"use the form m/44'/60'/0'/0/0",
		)
	}
	return nil
}

// ValidateAddress checks an address on network (mainnet when empty) against
// its chain's encoding. Bitcoin addresses are decoded, so a bad checksum or a
// foreign network's prefix is rejected.
func ValidateAddress(chain, network, address string) error {
	if err := ValidateChain(chain); err != nil {
		return err
	}
	if network == "" {
		network = NetworkMainnet
	}
	if err := validateEnum("network", network, Networks); err != nil {
		return err
	}

	address = strings.TrimSpace(address)
	bad := func() error {
		return qwerr.WithDetails(qwerr.ErrInvalidAddress, map[string]string{
			"chain": chain, "network": network, "address": address,
		})
	}
	if address == "" {
		return bad()
	}

	switch chain {
	case ChainEthereum:
		if !common.IsHexAddress(address) {
			return bad()
		}
	case ChainSolana:
		if _, err := solana.PublicKeyFromBase58(address); err != nil {
			return bad()
		}
	case ChainBitcoin:
		params := bitcoinParams(network)
		decoded, err := btcutil.DecodeAddress(address, params)
		if err != nil || !decoded.IsForNet(params) {
			return bad()
		}
	}
	return nil
}

func bitcoinParams(network string) *chaincfg.Params {
	if network == NetworkTestnet {
		return &chaincfg.TestNet3Params
	}
	return &chaincfg.MainNetParams
}

// Validate checks the filter values that are set.
func (f WalletFilters) Validate() error {
	if f.Chain != "" {
		if err := ValidateChain(f.Chain); err != nil {
			return err
		}
	}
	if f.Network != "" {
		return validateEnum("network", f.Network, Networks)
	}
	return nil
}

// Matches reports whether w falls inside the filter. A wallet without a
// network is on mainnet.
func (f WalletFilters) Matches(w Wallet) bool {
	if f.Chain != "" && w.Chain != f.Chain {
		return false
	}
	network := w.Network
	if network == "" {
		network = NetworkMainnet
	}
	return f.Network == "" || network == f.Network
}

// validateToken checks token options for chain. Bitcoin has no tokens.
func validateToken(chain, network, address string, decimals int) error {
	if address == "" {
		return nil
	}
	if chain == ChainBitcoin {
		return qwerr.WithDetails(qwerr.ErrInvalidOption, map[string]string{
			"option": "tokenAddress", "chain": chain, "value": "tokens are not supported",
		})
	}
	if err := ValidateAddress(chain, network, address); err != nil {
		return err
	}
	if decimals < 0 || decimals > maxTokenDecimals {
		return qwerr.WithDetails(qwerr.ErrInvalidOption, map[string]string{
			"option": "tokenDecimals", "value": strconv.Itoa(decimals), "allowed": "0-255",
		})
	}
	return nil
}

// Normalize fills the network and checks the token options against chain.
func (o BalanceOptions) Normalize(chain string) (BalanceOptions, error) {
	if o.Network == "" {
		o.Network = NetworkMainnet
	}
	o.TokenAddress = strings.TrimSpace(o.TokenAddress)
	o.TokenSymbol = strings.TrimSpace(o.TokenSymbol)
	if o.TokenAddress == "" && (o.TokenSymbol != "" || o.TokenDecimals != 0) {
		return o, qwerr.WithSuggestion(
			qwerr.WithDetails(qwerr.ErrInvalidOption, map[string]string{"option": "tokenAddress", "value": "empty"}),
			"token symbol and decimals need a token address",
		)
	}
	if err := validateEnum("network", o.Network, Networks); err != nil {
		return o, err
	}
	return o, validateToken(chain, o.Network, o.TokenAddress, o.TokenDecimals)
}

// Normalize fills defaults and checks a transfer before it is sent.
func (r SendRequest) Normalize() (SendRequest, error) {
	if r.Network == "" {
		r.Network = NetworkMainnet
	}
	if r.Priority == "" {
		r.Priority = PriorityMedium
	}
	r.Amount = strings.TrimSpace(r.Amount)
	r.TokenAddress = strings.TrimSpace(r.TokenAddress)

	if err := ValidateAddress(r.Chain, r.Network, r.FromAddress); err != nil {
		return r, err
	}
	if err := ValidateAddress(r.Chain, r.Network, r.ToAddress); err != nil {
		return r, err
	}
	r.FromAddress, r.ToAddress = strings.TrimSpace(r.FromAddress), strings.TrimSpace(r.ToAddress)

	amount, ok := new(big.Rat).SetString(r.Amount)
	if !decimalRegex.MatchString(r.Amount) || !ok || amount.Sign() <= 0 {
		return r, qwerr.WithSuggestion(
			qwerr.WithDetails(qwerr.ErrInvalidOption, map[string]string{"option": "amount", "value": r.Amount}),
			"give a positive decimal amount, e.g. 0.25",
		)
	}
	if err := validateEnum("priority", r.Priority, Priorities); err != nil {
		return r, err
	}

	if r.Chain != ChainEthereum && (r.GasPrice != "" || r.GasLimit != 0 || r.Data != "") {
		return r, qwerr.WithDetails(qwerr.ErrInvalidOption, map[string]string{
			"option": "gas", "chain": r.Chain, "value": "gas price, gas limit and data are ethereum only",
		})
	}
	if r.GasPrice != "" {
		if _, ok := new(big.Int).SetString(r.GasPrice, 10); !ok {
			return r, qwerr.WithDetails(qwerr.ErrInvalidOption, map[string]string{"option": "gasPrice", "value": r.GasPrice})
		}
	}
	if r.Data != "" {
		if _, err := hexutil.Decode(r.Data); err != nil {
			return r, qwerr.WithDetails(qwerr.ErrInvalidOption, map[string]string{"option": "data", "value": r.Data})
		}
	}
	return r, validateToken(r.Chain, r.Network, r.TokenAddress, r.TokenDecimals)
}

// Normalize fills unset filters and checks ranges.
func (f TransactionFilters) Normalize() (TransactionFilters, error) {
	if f.Network == "" {
		f.Network = NetworkMainnet
	}
	if f.Type == "" {
		f.Type = TxTypeAll
	}
	if f.Limit == 0 {
		f.Limit = DefaultTxLimit
	}

	if err := validateEnum("network", f.Network, Networks); err != nil {
		return f, err
	}
	if err := validateEnum("type", f.Type, TxTypes); err != nil {
		return f, err
	}
	if f.Limit < 1 || f.Limit > MaxTxLimit {
		return f, qwerr.WithDetails(qwerr.ErrInvalidOption, map[string]string{
			"option": "limit", "value": strconv.Itoa(f.Limit), "allowed": "1-100",
		})
	}
	if f.Offset < 0 {
		return f, qwerr.WithDetails(qwerr.ErrInvalidOption, map[string]string{
			"option": "offset", "value": strconv.Itoa(f.Offset),
		})
	}
	if f.StartDate != nil && f.EndDate != nil && f.StartDate.After(*f.EndDate) {
		return f, qwerr.WithDetails(qwerr.ErrInvalidOption, map[string]string{
			"option": "startDate", "value": "after endDate",
		})
	}
	return f, nil
}

// ValidateCredentials checks that username and password are present.
func ValidateCredentials(c Credentials) error {
	if strings.TrimSpace(c.Username) == "" || c.Password == "" {
		return qwerr.ErrInvalidCredentials
	}
	return nil
}

// NormalizeKeyName trims name and rejects an empty result.
func NormalizeKeyName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", qwerr.ErrEmptyKeyName
	}
	return name, nil
}

// ValidateProfile checks a developer profile before enabling the account.
func ValidateProfile(p DeveloperProfile) error {
	missing := func(field string) error {
		return qwerr.WithDetails(qwerr.ErrInvalidProfile, map[string]string{"field": field})
	}
	if strings.TrimSpace(p.Company) == "" {
		return missing("company")
	}
	if strings.TrimSpace(p.UseCase) == "" {
		return missing("useCase")
	}
	if w := strings.TrimSpace(p.Website); w != "" {
		candidate := w
		if !strings.Contains(candidate, "://") {
			candidate = "https://" + candidate
		}
		u, err := url.Parse(candidate)
		if err != nil || u.Hostname() == "" || !strings.Contains(u.Hostname(), ".") {
			return qwerr.WithDetails(qwerr.ErrInvalidProfile, map[string]string{"field": "website", "value": w})
		}
	}
	return nil
}

// ValidateID rejects non-positive resource ids.
func ValidateID(kind string, id int64) error {
	if id <= 0 {
		return qwerr.WithDetails(qwerr.ErrInvalidID, map[string]string{kind: strconv.FormatInt(id, 10)})
	}
	return nil
}
