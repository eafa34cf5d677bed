package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	qwerr "github.com/quantumwallet/qwallet/pkg/errors"
)

// Relay envelope types.
const (
	TypeAPIRequest      = "API_REQUEST"
	TypeGetBalance      = "GET_BALANCE"
	TypeGetTransactions = "GET_TRANSACTIONS"
	TypeOpenLoginPage   = "OPEN_LOGIN_PAGE"
)

// Message is the envelope posted to the relay host.
type Message struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Endpoint string          `json:"endpoint,omitempty"`
	Options  *MessageOptions `json:"options,omitempty"`
	Base     string          `json:"base,omitempty"`
	Chain    string          `json:"chain,omitempty"`
	Address  string          `json:"address,omitempty"`
	Network  string          `json:"network,omitempty"`
}

// MessageOptions mirrors the HTTP request the host should perform.
type MessageOptions struct {
	Method  string            `json:"method,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Reply is the host's answer to a Message.
type Reply struct {
	ID      string          `json:"id"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	// Text carries a backend body that is not JSON.
	Text         string          `json:"text,omitempty"`
	Error        string          `json:"error,omitempty"`
	Status       int             `json:"status,omitempty"`
	Kind         qwerr.Kind      `json:"kind,omitempty"`
	Balance      string          `json:"balance,omitempty"`
	Transactions json.RawMessage `json:"transactions,omitempty"`
}

// Messenger posts envelopes to a relay host. Post never answers synchronously:
// the reply arrives on the returned channel, which is closed after one value,
// or closed without one when the messenger breaks while the post is pending.
// A closed messenger returns ErrRelayBroken.
type Messenger interface {
	Post(ctx context.Context, msg *Message) (<-chan *Reply, error)
}

// NewMessage creates an envelope with a fresh correlation id.
func NewMessage(msgType string) *Message {
	return &Message{ID: uuid.NewString(), Type: msgType}
}

// EnvelopeFor wraps a logical request in an API_REQUEST envelope.
func EnvelopeFor(req *Request) *Message {
	msg := NewMessage(TypeAPIRequest)
	msg.Endpoint = req.Path
	msg.Base = req.Base

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	msg.Options = &MessageOptions{
		Method:  method,
		Body:    req.Body,
		Headers: map[string]string{"Content-Type": "application/json"},
	}
	return msg
}

// FailureReply builds a failure reply for msg from err, keeping the HTTP status and kind.
func FailureReply(msg *Message, err error) *Reply {
	reply := &Reply{
		ID:    msg.ID,
		Error: err.Error(),
		Kind:  qwerr.KindOf(err),
	}

	var se *StatusError
	if errors.As(err, &se) {
		reply.Status = se.HTTPStatus
		reply.Kind = ""
		SetReplyBody(reply, se.Body)
		if msgText := gjson.GetBytes(se.Body, "message"); msgText.Exists() {
			reply.Error = msgText.String()
		}
	}
	return reply
}

// SetReplyBody stores a backend body on reply, as Data when it is JSON and as
// Text otherwise, so the envelope always marshals.
func SetReplyBody(reply *Reply, body []byte) {
	if len(body) == 0 {
		return
	}
	if json.Valid(body) {
		reply.Data = body
		return
	}
	reply.Text = string(body)
}

// replyBody is the inverse of SetReplyBody.
func replyBody(reply *Reply) []byte {
	if len(reply.Data) > 0 {
		return reply.Data
	}
	if reply.Text != "" {
		return []byte(reply.Text)
	}
	return nil
}

// RelayChannel sends requests through a Messenger.
type RelayChannel struct {
	messenger Messenger
	timeout   time.Duration
}

var (
	_ Channel    = (*RelayChannel)(nil)
	_ LoginPager = (*RelayChannel)(nil)
)

// NewRelayChannel creates a relayed channel with a per-message timeout.
func NewRelayChannel(m Messenger, timeout time.Duration) *RelayChannel {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &RelayChannel{messenger: m, timeout: timeout}
}

// Kind returns KindRelayed.
func (c *RelayChannel) Kind() Kind {
	return KindRelayed
}

// Send wraps req in an API_REQUEST envelope and waits for the host's reply.
func (c *RelayChannel) Send(ctx context.Context, req *Request) (*Response, error) {
	reply, err := c.Call(ctx, EnvelopeFor(req))
	if err != nil {
		return nil, err
	}
	return responseFromReply(reply)
}

// LoginPage asks the host for the login page of its resolved backend.
func (c *RelayChannel) LoginPage(ctx context.Context) (string, error) {
	reply, err := c.Call(ctx, NewMessage(TypeOpenLoginPage))
	if err != nil {
		return "", err
	}
	if !reply.Success {
		_, err := responseFromReply(reply)
		return "", err
	}
	u := gjson.GetBytes(reply.Data, "url").String()
	if u == "" {
		return "", qwerr.WithMessage(qwerr.ErrUnknown, "relay returned no login url")
	}
	return u, nil
}

// Call posts msg and waits for its reply, the per-message timeout, or ctx.
func (c *RelayChannel) Call(ctx context.Context, msg *Message) (*Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	replies, err := c.messenger.Post(ctx, msg)
	if err != nil {
		if qwerr.IsConnectivity(err) {
			return nil, err
		}
		return nil, qwerr.WithCause(qwerr.ErrRelayBroken, err)
	}

	select {
	case reply, ok := <-replies:
		if !ok || reply == nil {
			return nil, qwerr.WithDetails(qwerr.ErrRelayBroken, map[string]string{"message": msg.ID})
		}
		return reply, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, qwerr.WithDetails(qwerr.WithCause(qwerr.ErrTimeout, ctx.Err()), map[string]string{"message": msg.ID})
		}
		return nil, qwerr.WithCause(qwerr.ErrConnectivity, ctx.Err())
	}
}

// responseFromReply turns an API_REQUEST reply back into what the direct channel would return.
func responseFromReply(reply *Reply) (*Response, error) {
	if reply.Success {
		status := reply.Status
		if status == 0 {
			status = http.StatusOK
		}
		return &Response{Status: status, Body: replyBody(reply)}, nil
	}

	if reply.Status != 0 {
		return nil, &StatusError{HTTPStatus: reply.Status, Body: replyBody(reply)}
	}

	details := map[string]string{"relay_error": truncateBody(reply.Error, 256)}
	switch reply.Kind {
	case qwerr.KindConnectivity, "":
		return nil, qwerr.WithDetails(qwerr.ErrConnectivity, details)
	case qwerr.KindValidation:
		return nil, qwerr.WithMessage(qwerr.ErrInvalidInput, reply.Error)
	default:
		return nil, qwerr.WithDetails(qwerr.ErrUnknown, details)
	}
}
