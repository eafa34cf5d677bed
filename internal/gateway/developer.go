package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/quantumwallet/qwallet/internal/secret"
	qwerr "github.com/quantumwallet/qwallet/pkg/errors"
)

// EnableDeveloperAccount turns the signed-in account into a developer account.
// The session is re-queried afterwards so the developer flag is picked up.
func (g *Gateway) EnableDeveloperAccount(ctx context.Context, profile DeveloperProfile) (err error) {
	defer g.observe(OpEnableDeveloper, time.Now(), &err)

	if err = ValidateProfile(profile); err != nil {
		return err
	}
	if _, err = g.requireSession(ctx, false); err != nil {
		return err
	}

	profile = DeveloperProfile{
		Company: strings.TrimSpace(profile.Company),
		Website: strings.TrimSpace(profile.Website),
		UseCase: strings.TrimSpace(profile.UseCase),
	}
	if _, err = g.call(ctx, OpEnableDeveloper, http.MethodPost, PathDeveloperEnable, profile); err != nil {
		return err
	}
	g.session.MarkStale()
	return nil
}

// TestWalletConfig asks the backend to try cfg without keeping a wallet. The
// options are checked like GenerateWallet's first. The report is for display.
func (g *Gateway) TestWalletConfig(ctx context.Context, cfg GenerateConfig) (_ *ConfigTestResult, err error) {
	defer g.observe(OpTestConfig, time.Now(), &err)

	cfg = cfg.ApplyDefaults()
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err = g.requireSession(ctx, true); err != nil {
		return nil, err
	}

	data, err := g.call(ctx, OpTestConfig, http.MethodPost, PathTestConfig, cfg)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, decodeError(OpTestConfig, errInvalidJSON)
	}

	res := &ConfigTestResult{Config: cfg, Results: json.RawMessage(data)}
	if r := gjson.GetBytes(data, "testResults"); r.Exists() {
		res.Results = json.RawMessage(r.Raw)
	}
	return res, nil
}

// ListDeveloperKeys returns the developer's API keys.
func (g *Gateway) ListDeveloperKeys(ctx context.Context) (_ []DeveloperKey, err error) {
	defer g.observe(OpListKeys, time.Now(), &err)

	if _, err = g.requireSession(ctx, true); err != nil {
		return nil, err
	}

	data, err := g.call(ctx, OpListKeys, http.MethodGet, PathDeveloperKeys, nil)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, decodeError(OpListKeys, errInvalidJSON)
	}

	list := gjson.ParseBytes(data)
	if !list.IsArray() {
		list = list.Get("keys")
	}
	if !list.Exists() || list.Type == gjson.Null {
		return []DeveloperKey{}, nil
	}
	if !list.IsArray() {
		return nil, decodeError(OpListKeys, errMissingField("keys"))
	}

	keys := make([]DeveloperKey, 0, len(list.Array()))
	for _, item := range list.Array() {
		keys = append(keys, parseKey(item))
	}
	return keys, nil
}

// CreateDeveloperKey creates a named API key. The key's secret is in the result
// once; the returned record holds only the masked form.
func (g *Gateway) CreateDeveloperKey(ctx context.Context, name string) (_ *CreatedKey, err error) {
	defer g.observe(OpCreateKey, time.Now(), &err)

	if name, err = NormalizeKeyName(name); err != nil {
		return nil, err
	}
	if _, err = g.requireSession(ctx, true); err != nil {
		return nil, err
	}

	data, err := g.call(ctx, OpCreateKey, http.MethodPost, PathDeveloperKeys, map[string]string{"name": name})
	if err != nil {
		return nil, err
	}

	root := gjson.ParseBytes(data)
	for _, p := range []string{"key", "data"} {
		if v := root.Get(p); v.IsObject() {
			root = v
			break
		}
	}

	key := parseKey(root)
	if key.APIKey == "" {
		return nil, decodeError(OpCreateKey, errMissingField("apiKey"))
	}
	if key.Name == "" {
		key.Name = name
	}
	if !root.Get("enabled").Exists() {
		key.Enabled = true
	}

	created := &CreatedKey{Key: key, Secret: secret.New(key.APIKey)}
	created.Key.APIKey = MaskKey(key.APIKey)
	return created, nil
}

// DisableDeveloperKey disables an API key.
func (g *Gateway) DisableDeveloperKey(ctx context.Context, id int64) (err error) {
	defer g.observe(OpDisableKey, time.Now(), &err)

	if err = ValidateID("key", id); err != nil {
		return err
	}
	if _, err = g.requireSession(ctx, true); err != nil {
		return err
	}

	path := PathDeveloperKeys + "/" + strconv.FormatInt(id, 10) + "/disable"
	_, err = g.call(ctx, OpDisableKey, http.MethodPost, path, nil)
	if qwerr.Is(err, qwerr.ErrApplicationRejected) && statusOf(err) == http.StatusNotFound {
		return qwerr.WithCause(qwerr.ErrKeyNotFound, err)
	}
	return err
}

func parseKey(item gjson.Result) DeveloperKey {
	k := DeveloperKey{
		ID:      item.Get("id").Int(),
		Name:    item.Get("name").String(),
		APIKey:  item.Get("apiKey").String(),
		Enabled: item.Get("enabled").Bool(),
	}
	if t, ok := parseTime(item.Get("lastUsed")); ok {
		k.LastUsed = &t
	}
	if t, ok := parseTime(item.Get("createdAt")); ok {
		k.CreatedAt = &t
	}
	return k
}

func parseTime(v gjson.Result) (time.Time, bool) {
	if v.Type != gjson.String {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, v.String())
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// MaskKey hides all but the prefix and last four characters of an API key.
func MaskKey(key string) string {
	const visible = 4
	if len(key) <= visible*2 {
		return strings.Repeat("*", len(key))
	}
	prefix := ""
	if i := strings.Index(key, "_"); i > 0 && i < len(key)-visible {
		prefix = key[:i+1]
	}
	return prefix + strings.Repeat("*", 8) + key[len(key)-visible:]
}

// statusOf returns the HTTP status recorded on a classified error, or 0.
func statusOf(err error) int {
	var qe *qwerr.QWalletError
	if !qwerr.As(err, &qe) {
		return 0
	}
	n, _ := strconv.Atoi(qe.Details["status"])
	return n
}
