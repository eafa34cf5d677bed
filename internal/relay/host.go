// Package relay is the background side of the relayed channel. A Host answers
// envelopes by calling the backend over HTTP, and the messengers and Server
// carry envelopes to it either in process or over a websocket.
package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/quantumwallet/qwallet/internal/metrics"
	"github.com/quantumwallet/qwallet/internal/transport"
	qwerr "github.com/quantumwallet/qwallet/pkg/errors"
)

// Backend paths served by the envelope shorthands.
const (
	pathBalance      = "/api/wallet/balance"
	pathTransactions = "/api/transactions"
	pathLogin        = "/login"
)

// Resolver supplies the backend base for envelopes that carry none.
type Resolver interface {
	Resolve(ctx context.Context) (string, error)
}

// Handler answers one envelope. It never returns nil.
type Handler interface {
	Handle(ctx context.Context, msg *transport.Message) *transport.Reply
}

// LogWriter is the logging surface used by the host.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// HostOptions configures a Host.
type HostOptions struct {
	// Resolver picks the backend when an envelope has no base. Optional.
	Resolver Resolver
	// BaseURL is used when there is no resolver.
	BaseURL     string
	Timeout     time.Duration
	RateLimiter *transport.RateLimiter
	HTTPClient  *http.Client
	Metrics     *metrics.Metrics
	Logger      LogWriter
}

// Host performs backend calls on behalf of relayed clients. It keeps one
// direct channel per backend base so the cookie session survives between
// envelopes.
type Host struct {
	opts HostOptions

	mu       sync.Mutex
	channels map[string]*transport.DirectChannel
}

var _ Handler = (*Host)(nil)

// NewHost creates a relay host.
func NewHost(opts HostOptions) (*Host, error) {
	if opts.Resolver == nil && opts.BaseURL == "" {
		return nil, qwerr.WithDetails(qwerr.ErrInvalidInput, map[string]string{"relay": "no resolver or base url"})
	}
	if opts.RateLimiter == nil {
		opts.RateLimiter = transport.NewRateLimiter(10, 5)
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	return &Host{opts: opts, channels: make(map[string]*transport.DirectChannel)}, nil
}

// Handle answers msg. Backend statuses and failure kinds are carried in the
// reply so the client sees what a direct call would have returned.
func (h *Host) Handle(ctx context.Context, msg *transport.Message) *transport.Reply {
	reply, err := h.handle(ctx, msg)
	if err != nil {
		reply = transport.FailureReply(msg, err)
	}
	h.opts.Metrics.RecordRelayMessage(msg.Type, metrics.Outcome(err))
	if err != nil {
		h.opts.Logger.Debug("relay %s %s failed: %v", msg.Type, msg.ID, err)
	}
	return reply
}

func (h *Host) handle(ctx context.Context, msg *transport.Message) (*transport.Reply, error) {
	switch msg.Type {
	case transport.TypeAPIRequest:
		req := &transport.Request{Operation: "relay", Path: msg.Endpoint, Base: msg.Base}
		if msg.Options != nil {
			req.Method = msg.Options.Method
			req.Body = msg.Options.Body
		}
		return h.forward(ctx, msg, req)

	case transport.TypeGetBalance:
		req, err := transport.NewRequest("relay_balance", http.MethodPost, pathBalance, shorthandBody(msg))
		if err != nil {
			return nil, err
		}
		reply, err := h.forward(ctx, msg, req)
		if err != nil {
			return nil, err
		}
		root := gjson.ParseBytes(reply.Data)
		if b := root.Get("balance"); b.Exists() {
			reply.Balance = b.String()
		} else if b := root.Get("total"); b.Exists() {
			reply.Balance = b.String()
		}
		return reply, nil

	case transport.TypeGetTransactions:
		req, err := transport.NewRequest("relay_transactions", http.MethodPost, pathTransactions, shorthandBody(msg))
		if err != nil {
			return nil, err
		}
		reply, err := h.forward(ctx, msg, req)
		if err != nil {
			return nil, err
		}
		list := gjson.ParseBytes(reply.Data)
		if !list.IsArray() {
			list = list.Get("transactions")
		}
		if list.IsArray() {
			reply.Transactions = json.RawMessage(list.Raw)
		} else {
			reply.Transactions = json.RawMessage("[]")
		}
		return reply, nil

	case transport.TypeOpenLoginPage:
		ch, err := h.channel(ctx, msg.Base)
		if err != nil {
			return nil, err
		}
		u, err := ch.LoginPage(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(map[string]string{"url": u})
		if err != nil {
			return nil, err
		}
		return &transport.Reply{ID: msg.ID, Success: true, Data: data}, nil

	default:
		return nil, qwerr.WithDetails(
			qwerr.WithMessage(qwerr.ErrInvalidInput, "unknown relay message type"),
			map[string]string{"type": msg.Type},
		)
	}
}

// forward performs req over the direct channel for the envelope's backend.
func (h *Host) forward(ctx context.Context, msg *transport.Message, req *transport.Request) (*transport.Reply, error) {
	ch, err := h.channel(ctx, msg.Base)
	if err != nil {
		return nil, err
	}
	// The channel is already bound to the base
	req.Base = ""

	resp, err := ch.Send(ctx, req)
	if err != nil {
		return nil, err
	}

	reply := &transport.Reply{ID: msg.ID, Success: true, Status: resp.Status}
	transport.SetReplyBody(reply, resp.Body)
	return reply, nil
}

// channel returns the direct channel for base, resolving it when empty.
func (h *Host) channel(ctx context.Context, base string) (*transport.DirectChannel, error) {
	if base == "" {
		var err error
		if base, err = h.resolve(ctx); err != nil {
			return nil, err
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.channels[base]; ok {
		return ch, nil
	}
	ch, err := transport.NewDirectChannel(transport.DirectOptions{
		BaseURL:     base,
		Timeout:     h.opts.Timeout,
		HTTPClient:  h.opts.HTTPClient,
		RateLimiter: h.opts.RateLimiter,
	})
	if err != nil {
		return nil, err
	}
	h.channels[base] = ch
	h.opts.Logger.Debug("relay host bound to backend %s", base)
	return ch, nil
}

func (h *Host) resolve(ctx context.Context) (string, error) {
	if h.opts.Resolver == nil {
		return h.opts.BaseURL, nil
	}
	return h.opts.Resolver.Resolve(ctx)
}

// Channel returns the direct channel already bound to base, if any.
func (h *Host) Channel(base string) (*transport.DirectChannel, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.channels[base]
	return ch, ok
}

func shorthandBody(msg *transport.Message) map[string]string {
	network := msg.Network
	if network == "" {
		network = "mainnet"
	}
	return map[string]string{"address": msg.Address, "chain": msg.Chain, "network": network}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
