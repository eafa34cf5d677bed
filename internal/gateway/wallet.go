package gateway

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tyler-smith/go-bip39"

	"github.com/quantumwallet/qwallet/internal/secret"
	qwerr "github.com/quantumwallet/qwallet/pkg/errors"
)

// GenerateWallet asks the backend to create a wallet. The mnemonic in the result
// can be revealed once.
func (g *Gateway) GenerateWallet(ctx context.Context, cfg GenerateConfig) (_ *Generated, err error) {
	defer g.observe(OpGenerateWallet, time.Now(), &err)

	cfg = cfg.ApplyDefaults()
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err = g.requireSession(ctx, false); err != nil {
		return nil, err
	}

	data, err := g.call(ctx, OpGenerateWallet, http.MethodPost, PathGenerate, cfg)
	if err != nil {
		return nil, err
	}

	root := gjson.ParseBytes(data)
	mnemonic := firstString(root, "mnemonic", "wallet.mnemonic")
	address := firstString(root, "address", "wallet.address")
	if mnemonic == "" || address == "" {
		return nil, decodeError(OpGenerateWallet, errMissingField("mnemonic or address"))
	}

	w := Wallet{
		ID:        firstInt(root, "wallet.id", "id"),
		Chain:     cfg.Chain,
		Address:   address,
		Network:   cfg.Network,
		CreatedAt: time.Now().UTC(),
	}
	if c := firstString(root, "wallet.chain", "chain"); c != "" {
		w.Chain = c
	}

	return &Generated{
		Wallet:           w,
		Config:           cfg,
		Mnemonic:         secret.New(mnemonic),
		MnemonicVerified: VerifyMnemonic(mnemonic, cfg.MnemonicStrength),
	}, nil
}

// ListWallets returns the signed-in user's wallets inside f. The filter is
// sent to the backend and applied again to its answer.
func (g *Gateway) ListWallets(ctx context.Context, f WalletFilters) (_ []Wallet, err error) {
	defer g.observe(OpListWallets, time.Now(), &err)

	if err = f.Validate(); err != nil {
		return nil, err
	}
	if _, err = g.requireSession(ctx, false); err != nil {
		return nil, err
	}

	q := url.Values{}
	if f.Chain != "" {
		q.Set("chain", f.Chain)
	}
	if f.Network != "" {
		q.Set("network", f.Network)
	}
	if f.IncludeBalances {
		q.Set("includeBalances", "true")
	}
	path := PathWallets
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	data, err := g.call(ctx, OpListWallets, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, decodeError(OpListWallets, errInvalidJSON)
	}

	list := gjson.ParseBytes(data)
	if !list.IsArray() {
		list = list.Get("wallets")
	}
	if !list.IsArray() {
		return nil, decodeError(OpListWallets, errMissingField("wallets"))
	}

	wallets := make([]Wallet, 0, len(list.Array()))
	for _, item := range list.Array() {
		w := Wallet{
			ID:      item.Get("id").Int(),
			Chain:   item.Get("chain").String(),
			Address: item.Get("address").String(),
			Network: item.Get("network").String(),
		}
		if b := item.Get("balance"); b.Exists() && b.Type != gjson.Null {
			if v, ok := parseAmount(b); ok {
				w.Balance = v
			}
		}
		if t, ok := parseTime(item.Get("createdAt")); ok {
			w.CreatedAt = t
		}
		if f.Matches(w) {
			wallets = append(wallets, w)
		}
	}
	return wallets, nil
}

// GetBalance reads an address balance, or a token balance when opts names a
// token. It needs no session. On any failure the returned Balance is marked
// unavailable and the error is ErrBalanceUnavailable carrying the cause's kind;
// an unavailable balance is never zero.
func (g *Gateway) GetBalance(ctx context.Context, address, chain string, opts BalanceOptions) (_ *Balance, err error) {
	defer g.observe(OpGetBalance, time.Now(), &err)

	if opts, err = opts.Normalize(chain); err != nil {
		return nil, err
	}
	if err = ValidateAddress(chain, opts.Network, address); err != nil {
		return nil, err
	}

	bal := &Balance{Chain: chain, Address: strings.TrimSpace(address), Network: opts.Network, Token: opts.TokenSymbol}
	body := map[string]any{"address": bal.Address, "chain": chain, "network": opts.Network}
	if opts.TokenAddress != "" {
		body["tokenAddress"] = opts.TokenAddress
		if opts.TokenDecimals > 0 {
			body["tokenDecimals"] = opts.TokenDecimals
		}
		if opts.TokenSymbol != "" {
			body["tokenSymbol"] = opts.TokenSymbol
		}
		if bal.Token == "" {
			bal.Token = opts.TokenAddress
		}
	}

	data, err := g.call(ctx, OpGetBalance, http.MethodPost, PathBalance, body)
	if err != nil {
		return bal, balanceUnavailable(err)
	}

	root := gjson.ParseBytes(data)
	raw := root.Get("balance")
	if !raw.Exists() || raw.Type == gjson.Null {
		raw = root.Get("total")
	}
	value, ok := parseAmount(raw)
	if !ok {
		return bal, balanceUnavailable(decodeError(OpGetBalance, errMissingField("balance")))
	}

	bal.Available = true
	bal.Value = value
	return bal, nil
}

// balanceUnavailable wraps cause as ErrBalanceUnavailable, taking the cause's kind.
func balanceUnavailable(cause error) error {
	e := qwerr.WithMessage(qwerr.ErrBalanceUnavailable, qwerr.ErrBalanceUnavailable.Message)
	e.Kind = qwerr.KindOf(cause)
	e.Cause = cause
	if qwerr.IsUnauthorized(cause) {
		e.ExitCode = qwerr.ExitCode(cause)
	}
	return e
}

// GetTransactions reads an address's transaction history. It needs no session.
func (g *Gateway) GetTransactions(ctx context.Context, address, chain string, filters TransactionFilters) (_ []Transaction, err error) {
	defer g.observe(OpGetTransactions, time.Now(), &err)

	if filters, err = filters.Normalize(); err != nil {
		return nil, err
	}
	if err = ValidateAddress(chain, filters.Network, address); err != nil {
		return nil, err
	}

	body := struct {
		Address string `json:"address"`
		Chain   string `json:"chain"`
		TransactionFilters
	}{strings.TrimSpace(address), chain, filters}

	data, err := g.call(ctx, OpGetTransactions, http.MethodPost, PathTransactions, body)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, decodeError(OpGetTransactions, errInvalidJSON)
	}

	list := gjson.ParseBytes(data)
	if !list.IsArray() {
		list = list.Get("transactions")
	}
	if !list.Exists() || list.Type == gjson.Null {
		return []Transaction{}, nil
	}
	if !list.IsArray() {
		return nil, decodeError(OpGetTransactions, errMissingField("transactions"))
	}

	txs := make([]Transaction, 0, len(list.Array()))
	for _, item := range list.Array() {
		txs = append(txs, Transaction{
			Hash:      firstString(item, "hash", "txHash", "id"),
			From:      item.Get("from").String(),
			To:        item.Get("to").String(),
			Value:     item.Get("value").String(),
			Timestamp: item.Get("timestamp").String(),
			Type:      item.Get("type").String(),
			Raw:       []byte(item.Raw),
		})
	}
	return txs, nil
}

// SendTransaction submits a transfer. It is never retried here: a failure
// after the request left may still have moved funds, so the caller decides.
func (g *Gateway) SendTransaction(ctx context.Context, req SendRequest) (_ *SentTransaction, err error) {
	defer g.observe(OpSendTransaction, time.Now(), &err)

	if req, err = req.Normalize(); err != nil {
		return nil, err
	}
	if _, err = g.requireSession(ctx, false); err != nil {
		return nil, err
	}

	body := struct {
		SendRequest
		QuantumSignature bool `json:"quantumSignature"`
	}{req, true}

	data, err := g.call(ctx, OpSendTransaction, http.MethodPost, PathSend, body)
	if err != nil {
		return nil, err
	}

	root := gjson.ParseBytes(data)
	sent := &SentTransaction{
		Hash:   firstString(root, "hash", "txHash", "transactionHash", "transaction.hash"),
		Status: firstString(root, "status", "transaction.status"),
		Raw:    json.RawMessage(data),
	}
	if sent.Status == "" {
		sent.Status = "submitted"
	}
	return sent, nil
}

// DeleteWallet removes a wallet. Balance policy is the caller's concern.
func (g *Gateway) DeleteWallet(ctx context.Context, id int64) (err error) {
	defer g.observe(OpDeleteWallet, time.Now(), &err)

	if err = ValidateID("wallet", id); err != nil {
		return err
	}
	if _, err = g.requireSession(ctx, false); err != nil {
		return err
	}

	_, err = g.call(ctx, OpDeleteWallet, http.MethodDelete, PathWallets+"/"+strconv.FormatInt(id, 10), nil)
	return err
}

// VerifyMnemonic checks a phrase against the requested strength: a valid BIP39
// phrase for 128 and 256 bits, and the expected number of wordlist words for 512.
func VerifyMnemonic(phrase string, strength int) bool {
	words := strings.Fields(phrase)
	if len(words) != strength/32*3 {
		return false
	}
	if strength <= 256 {
		return bip39.IsMnemonicValid(strings.Join(words, " "))
	}
	index := wordIndex()
	for _, w := range words {
		if _, ok := index[w]; !ok {
			return false
		}
	}
	return true
}

//nolint:gochecknoglobals // Built once from the BIP39 wordlist
var wordIndex = sync.OnceValue(func() map[string]struct{} {
	list := bip39.GetWordList()
	m := make(map[string]struct{}, len(list))
	for _, w := range list {
		m[w] = struct{}{}
	}
	return m
})

// parseAmount returns a decimal amount as text, rejecting anything that is not a number.
func parseAmount(v gjson.Result) (string, bool) {
	var s string
	switch v.Type {
	case gjson.Number:
		s = v.Raw
	case gjson.String:
		s = strings.TrimSpace(v.String())
	default:
		return "", false
	}
	if _, ok := new(big.Float).SetString(s); !ok {
		return "", false
	}
	return s, true
}

func firstString(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() && v.Type != gjson.Null {
			return v.String()
		}
	}
	return ""
}

func firstInt(r gjson.Result, paths ...string) int64 {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() && v.Type == gjson.Number {
			return v.Int()
		}
	}
	return 0
}

type errMissingField string

func (e errMissingField) Error() string {
	return "response is missing " + string(e)
}
