package gateway

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qwerr "github.com/quantumwallet/qwallet/pkg/errors"
)

func TestValidateAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		chain   string
		network string
		address string
		valid   bool
	}{
		{"eth checksummed", ChainEthereum, "", "0x52908400098527886E0F7030069857D2E4169EE7", true},
		{"eth lowercase", ChainEthereum, "", "0xde709f2102306220921060314715629080e2fb77", true},
		{"eth short", ChainEthereum, "", "0x1234", false},
		{"eth not hex", ChainEthereum, "", "0xZZ908400098527886E0F7030069857D2E4169EE7", false},
		{"sol system program", ChainSolana, "", "11111111111111111111111111111111", true},
		{"sol token program", ChainSolana, "", "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA", true},
		{"sol invalid char", ChainSolana, "", "0OIl1111111111111111111111111111", false},
		{"btc p2pkh", ChainBitcoin, "", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", true},
		{"btc p2pkh explicit mainnet", ChainBitcoin, NetworkMainnet, "1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN2", true},
		{"btc p2pkh bad checksum", ChainBitcoin, "", "1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN3", false},
		{"btc p2sh", ChainBitcoin, "", "3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy", true},
		{"btc bech32", ChainBitcoin, "", "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq", true},
		{"btc bech32 upper", ChainBitcoin, "", "BC1QAR0SRRR7XFKVY5L643LYDNW9RE59GTZZWF5MDQ", true},
		{"btc bech32 mixed case", ChainBitcoin, "", "bc1qAR0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq", false},
		{"btc bech32 bad checksum", ChainBitcoin, "", "bc1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqq", false},
		{"btc with zero", ChainBitcoin, "", "10zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", false},
		{"btc testnet bech32", ChainBitcoin, NetworkTestnet, "tb1qw508d6qejxtdg4y5r3zarvary0c5xw7kxpjzsx", true},
		{"btc testnet address on mainnet", ChainBitcoin, NetworkMainnet, "tb1qw508d6qejxtdg4y5r3zarvary0c5xw7kxpjzsx", false},
		{"btc mainnet address on testnet", ChainBitcoin, NetworkTestnet, "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", false},
		{"empty", ChainEthereum, "", "  ", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateAddress(tc.chain, tc.network, tc.address)
			if tc.valid {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, qwerr.ErrInvalidAddress)
		})
	}
}

func TestValidateAddress_UnsupportedChain(t *testing.T) {
	t.Parallel()
	err := ValidateAddress("litecoin", "", "LaMT348PWRnrqeeWArpwQPbuanpXDZGEUz")
	require.ErrorIs(t, err, qwerr.ErrUnsupportedChain)
}

func TestValidateAddress_UnknownNetwork(t *testing.T) {
	t.Parallel()
	err := ValidateAddress(ChainBitcoin, "regtest", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa")
	require.ErrorIs(t, err, qwerr.ErrInvalidOption)
}

func TestSuggest(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ethereum", suggest("etherium", Chains))
	assert.Equal(t, "solana", suggest("Solanna", Chains))
	assert.Equal(t, "multi-sig", suggest("multisig", WalletTypes))
	assert.Empty(t, suggest("completely-different", Chains))
}

func TestGenerateConfig_Defaults(t *testing.T) {
	t.Parallel()

	for _, chain := range Chains {
		t.Run(chain, func(t *testing.T) {
			t.Parallel()

			cfg := GenerateConfig{Chain: chain}.ApplyDefaults()
			require.NoError(t, cfg.Validate())
			assert.Equal(t, GenerateConfig{
				Chain:            chain,
				Network:          NetworkMainnet,
				WalletType:       WalletTypeDefault,
				Encryption:       EncryptionQuantum,
				MnemonicStrength: 256,
				QuantumAlgorithm: AlgorithmDilithium,
			}, cfg)
		})
	}
}

func TestGenerateConfig_TrimsDerivationPath(t *testing.T) {
	t.Parallel()

	cfg := GenerateConfig{Chain: ChainSolana, DerivationPath: " m/44'/501'/0'/0' "}.ApplyDefaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "m/44'/501'/0'/0'", cfg.DerivationPath)
}

func TestGenerateConfig_InvalidOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  GenerateConfig
	}{
		{"network", GenerateConfig{Chain: ChainEthereum, Network: "devnet"}},
		{"wallet type", GenerateConfig{Chain: ChainEthereum, WalletType: "paper"}},
		{"encryption", GenerateConfig{Chain: ChainEthereum, Encryption: "none"}},
		{"algorithm", GenerateConfig{Chain: ChainEthereum, QuantumAlgorithm: "kyber"}},
		{"strength", GenerateConfig{Chain: ChainEthereum, MnemonicStrength: 64}},
		{"path", GenerateConfig{Chain: ChainEthereum, DerivationPath: "m/44'/x"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.cfg.ApplyDefaults().Validate()
			require.ErrorIs(t, err, qwerr.ErrInvalidOption)
		})
	}
}

func TestTransactionFilters_Normalize(t *testing.T) {
	t.Parallel()

	f, err := TransactionFilters{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, DefaultTxLimit, f.Limit)
	assert.Equal(t, TxTypeAll, f.Type)
	assert.Equal(t, NetworkMainnet, f.Network)

	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	bad := []TransactionFilters{
		{Limit: -1},
		{Limit: MaxTxLimit + 1},
		{Offset: -5},
		{Type: "minted"},
		{StartDate: &start, EndDate: &end},
	}
	for _, b := range bad {
		_, err := b.Normalize()
		require.ErrorIs(t, err, qwerr.ErrInvalidOption)
	}
}

func TestValidateProfile(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateProfile(DeveloperProfile{Company: "Acme", UseCase: "payments"}))
	require.NoError(t, ValidateProfile(DeveloperProfile{Company: "Acme", UseCase: "payments", Website: "acme.io"}))
	require.NoError(t, ValidateProfile(DeveloperProfile{Company: "Acme", UseCase: "payments", Website: "https://acme.io/about"}))

	require.ErrorIs(t, ValidateProfile(DeveloperProfile{Company: " ", UseCase: "x"}), qwerr.ErrInvalidProfile)
	require.ErrorIs(t, ValidateProfile(DeveloperProfile{Company: "Acme"}), qwerr.ErrInvalidProfile)
	require.ErrorIs(t, ValidateProfile(DeveloperProfile{Company: "Acme", UseCase: "x", Website: "not a site"}), qwerr.ErrInvalidProfile)
}

func TestNormalizeKeyName(t *testing.T) {
	t.Parallel()

	name, err := NormalizeKeyName("  ci key \t")
	require.NoError(t, err)
	assert.Equal(t, "ci key", name)

	_, err = NormalizeKeyName("\n ")
	require.ErrorIs(t, err, qwerr.ErrEmptyKeyName)
}

func TestVerifyMnemonic(t *testing.T) {
	t.Parallel()

	twelve := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	assert.True(t, VerifyMnemonic(twelve, 128))
	assert.False(t, VerifyMnemonic(twelve, 256))
	assert.False(t, VerifyMnemonic(strings.Replace(twelve, "about", "abandon", 1), 128))

	fortyEight := strings.TrimSpace(strings.Repeat("zoo ", 48))
	assert.True(t, VerifyMnemonic(fortyEight, 512))
	assert.False(t, VerifyMnemonic(strings.Replace(fortyEight, "zoo", "qwallet", 1), 512))
}

func TestMaskKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "qk_********1234", MaskKey("qk_abcdefghij1234"))
	assert.Equal(t, "********wxyz", MaskKey("abcdefghijklmnopwxyz"))
	assert.Equal(t, "****", MaskKey("abcd"))
}

func TestBackendMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "nope", backendMessage([]byte(`{"message":"nope"}`)))
	assert.Equal(t, "bad", backendMessage([]byte(`{"error":"bad"}`)))
	assert.Equal(t, "plain words", backendMessage([]byte("  plain words \n")))
	assert.Empty(t, backendMessage([]byte(`{"other":1}`)))
	assert.Empty(t, backendMessage([]byte("<html><body>502</body></html>")))
	assert.Len(t, backendMessage([]byte(strings.Repeat("x", 500))), maxMessageLen+3)
}
