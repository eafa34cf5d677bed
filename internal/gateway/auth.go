package gateway

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/quantumwallet/qwallet/internal/session"
)

// Login signs in with a username and password. The returned identity is nil
// when the backend answered without a user; the session is then re-queried on
// next use.
func (g *Gateway) Login(ctx context.Context, creds Credentials) (_ *session.Identity, err error) {
	defer g.observe(OpLogin, time.Now(), &err)
	return g.authenticate(ctx, OpLogin, PathLogin, creds)
}

// Register creates an account and signs in with it.
func (g *Gateway) Register(ctx context.Context, creds Credentials) (_ *session.Identity, err error) {
	defer g.observe(OpRegister, time.Now(), &err)
	return g.authenticate(ctx, OpRegister, PathRegister, creds)
}

func (g *Gateway) authenticate(ctx context.Context, op, path string, creds Credentials) (*session.Identity, error) {
	if err := ValidateCredentials(creds); err != nil {
		return nil, err
	}
	creds.Username = strings.TrimSpace(creds.Username)

	// Bad credentials come back as 401 and must not count as a lost session
	data, err := g.send(ctx, op, http.MethodPost, path, creds)
	if err != nil {
		return nil, err
	}

	id, perr := parseIdentity(data)
	if perr != nil || id == nil {
		g.session.MarkStale()
		return nil, nil //nolint:nilnil // success without a user
	}
	g.session.SetAuthenticated(*id)
	return id, nil
}

// Logout ends the backend session. The local session is Anonymous afterwards
// whatever the outcome, so an unreachable backend cannot keep a user signed in.
func (g *Gateway) Logout(ctx context.Context) (err error) {
	defer g.observe(OpLogout, time.Now(), &err)
	defer g.session.Invalidate()

	_, err = g.call(ctx, OpLogout, http.MethodPost, PathLogout, nil)
	return err
}
