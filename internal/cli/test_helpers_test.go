package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/quantumwallet/qwallet/internal/config"
	"github.com/quantumwallet/qwallet/internal/output"
)

const (
	testUser        = "alice"
	testPassword    = "hunter2"
	testCookie      = "qw_session"
	testEthAddress  = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"
	testEthAddress2 = "0x52908400098527886E0F7030069857D2E4169EE7"
	// 256-bit BIP39 test vector
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon " +
		"abandon abandon abandon abandon abandon abandon abandon abandon " +
		"abandon abandon abandon abandon abandon abandon abandon art"
)

// fakeBackend is an in-memory custody backend with cookie sessions.
type fakeBackend struct {
	mu        sync.Mutex
	developer bool
	wallets   []map[string]any
	// balances by address, or address/token; a missing entry answers 500
	balances map[string]string
	deleted  []int64
	sends    []map[string]any
	keys     []map[string]any
	disabled []int64
	hits     map[string]int
	server   *httptest.Server
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()

	b := &fakeBackend{
		wallets: []map[string]any{
			{"id": 3, "chain": "ethereum", "address": testEthAddress, "network": "mainnet", "createdAt": "2024-05-01T10:00:00Z"},
			{"id": 4, "chain": "ethereum", "address": testEthAddress2, "network": "mainnet"},
		},
		balances: map[string]string{testEthAddress: "0", testEthAddress2: "1.25"},
		keys: []map[string]any{
			{"id": 1, "name": "ci", "apiKey": "qw_live_abcdefgh12345678", "enabled": true, "createdAt": "2024-05-01T10:00:00Z"},
		},
		hits: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", b.handleAuth)
	mux.HandleFunc("POST /api/auth/register", b.handleAuth)
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, _ *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: testCookie, Value: "", Path: "/", MaxAge: -1})
		writeTestJSON(w, http.StatusOK, map[string]bool{"success": true})
	})
	mux.HandleFunc("GET /api/user", b.authed(func(w http.ResponseWriter, _ *http.Request) {
		writeTestJSON(w, http.StatusOK, b.user())
	}))
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, _ *http.Request) {
		writeTestJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /api/wallet", b.authed(func(w http.ResponseWriter, _ *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		writeTestJSON(w, http.StatusOK, b.wallets)
	}))
	mux.HandleFunc("POST /api/wallet/generate", b.authed(b.handleGenerate))
	mux.HandleFunc("POST /api/wallet/balance", b.handleBalance)
	mux.HandleFunc("DELETE /api/wallet/{id}", b.authed(b.handleDelete))
	mux.HandleFunc("POST /api/transactions", func(w http.ResponseWriter, _ *http.Request) {
		writeTestJSON(w, http.StatusOK, []map[string]string{
			{"hash": "0xabc", "from": testEthAddress2, "to": testEthAddress, "value": "0.5", "type": "received", "timestamp": "2024-05-02T10:00:00Z"},
		})
	})
	mux.HandleFunc("POST /api/transaction/send", b.authed(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		b.mu.Lock()
		b.sends = append(b.sends, req)
		b.mu.Unlock()
		writeTestJSON(w, http.StatusOK, map[string]string{"hash": "0xfeed", "status": "pending"})
	}))
	mux.HandleFunc("POST /api/developer/test-wallet-config", b.authed(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		writeTestJSON(w, http.StatusOK, map[string]any{
			"success":     true,
			"testResults": map[string]any{"chain": req["chain"], "addressFormat": "valid"},
		})
	}))
	mux.HandleFunc("POST /api/developer/enable", b.authed(func(w http.ResponseWriter, _ *http.Request) {
		b.mu.Lock()
		b.developer = true
		b.mu.Unlock()
		writeTestJSON(w, http.StatusOK, map[string]bool{"success": true})
	}))
	mux.HandleFunc("GET /api/developer/keys", b.authed(func(w http.ResponseWriter, _ *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		writeTestJSON(w, http.StatusOK, b.keys)
	}))
	mux.HandleFunc("POST /api/developer/keys", b.authed(func(w http.ResponseWriter, _ *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		key := map[string]any{"id": len(b.keys) + 1, "name": "deploy", "apiKey": "qw_live_secretsecret9999", "enabled": true}
		b.keys = append(b.keys, key)
		writeTestJSON(w, http.StatusCreated, key)
	}))
	mux.HandleFunc("POST /api/developer/keys/{id}/disable", b.authed(func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		b.mu.Lock()
		defer b.mu.Unlock()
		b.disabled = append(b.disabled, id)
		for _, k := range b.keys {
			if int64(k["id"].(int)) == id { //nolint:forcetypeassert // test data
				k["enabled"] = false
			}
		}
		writeTestJSON(w, http.StatusOK, map[string]bool{"success": true})
	}))

	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.hits[r.Method+" "+r.URL.Path]++
		b.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) user() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	u := map[string]any{"id": 7, "username": testUser, "isDeveloper": b.developer}
	if b.developer {
		u["developerProfile"] = map[string]string{"company": "Acme", "website": "https://acme.example", "useCase": "payments"}
	}
	return u
}

func (b *fakeBackend) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(testCookie)
		if err != nil || c.Value != "ok" {
			writeTestJSON(w, http.StatusUnauthorized, map[string]string{"message": "Not authenticated"})
			return
		}
		next(w, r)
	}
}

func (b *fakeBackend) handleAuth(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&creds)
	if creds.Username != testUser || creds.Password != testPassword {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("Incorrect password."))
		return
	}
	http.SetCookie(w, &http.Cookie{Name: testCookie, Value: "ok", Path: "/", HttpOnly: true})
	writeTestJSON(w, http.StatusOK, map[string]any{"user": b.user()})
}

func (b *fakeBackend) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	_ = json.NewDecoder(r.Body).Decode(&req)
	writeTestJSON(w, http.StatusOK, map[string]any{
		"wallet":   map[string]any{"id": 9, "chain": req["chain"], "address": testEthAddress},
		"mnemonic": testMnemonic,
	})
}

func (b *fakeBackend) handleBalance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address      string `json:"address"`
		TokenAddress string `json:"tokenAddress"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	key := req.Address
	if req.TokenAddress != "" {
		key += "/" + req.TokenAddress
	}
	b.mu.Lock()
	bal, ok := b.balances[key]
	b.mu.Unlock()
	if !ok {
		writeTestJSON(w, http.StatusInternalServerError, map[string]string{"message": "node unavailable"})
		return
	}
	writeTestJSON(w, http.StatusOK, map[string]string{"balance": bal, "address": req.Address})
}

func (b *fakeBackend) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, id)
	kept := b.wallets[:0]
	for _, wl := range b.wallets {
		if int64(wl["id"].(int)) != id { //nolint:forcetypeassert // test data
			kept = append(kept, wl)
		}
	}
	b.wallets = kept
	writeTestJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (b *fakeBackend) lastSend() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.sends) == 0 {
		return nil
	}
	return b.sends[len(b.sends)-1]
}

func (b *fakeBackend) hitCount(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[key]
}

func writeTestJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// newTestHome writes a config pointing at baseURL and returns the home directory.
func newTestHome(t *testing.T, baseURL string, mutate ...func(*config.Config)) string {
	t.Helper()
	home := t.TempDir()
	cfg := config.Defaults()
	cfg.Home = home
	cfg.Backend.BaseURL = baseURL
	cfg.Backend.RatePerSecond = 0
	cfg.Backend.TimeoutSeconds = 5
	cfg.Logging.File = "qwallet.log"
	cfg.Endpoint.HealthTimeoutSeconds = 1
	for _, m := range mutate {
		m(cfg)
	}
	require.NoError(t, config.Save(cfg, config.Path(home)))
	return home
}

// resetCommandState restores every flag to its default between runs.
func resetCommandState(t *testing.T) {
	t.Helper()
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	walkCommands(rootCmd, func(cmd *cobra.Command) {
		cmd.Flags().VisitAll(reset)
		cmd.PersistentFlags().VisitAll(reset)
	})
	inputSource, inputReader = nil, nil
	for _, env := range []string{config.EnvHome, config.EnvBaseURL, config.EnvMode, config.EnvRelayURL, config.EnvContextURL, config.EnvOutputFormat} {
		if _, ok := os.LookupEnv(env); ok {
			t.Setenv(env, "")
			_ = os.Unsetenv(env)
		}
	}
}

// executeCommand runs the CLI with args and stdin and returns stdout and stderr.
func executeCommand(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	resetCommandState(t)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
		output.SetNoticeWriter(os.Stderr)
		// cobra leaves its completion entry point attached after a request
		for _, c := range rootCmd.Commands() {
			if isCompletionRequest(c) {
				rootCmd.RemoveCommand(c)
			}
		}
	})

	err := Execute()
	return stdout.String(), stderr.String(), err
}

// login signs the test user in, leaving the session saved under home.
func login(t *testing.T, home string) {
	t.Helper()
	_, stderr, err := executeCommand(t, testPassword+"\n", "--home", home, "-o", "text", "login", "-u", testUser)
	require.NoError(t, err, stderr)
}

func sessionFile(home string) string {
	return filepath.Join(home, "session.age")
}
