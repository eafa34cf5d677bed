package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quantumwallet/qwallet/internal/transport"
	qwerr "github.com/quantumwallet/qwallet/pkg/errors"
)

const handshakeTimeout = 10 * time.Second

var errMessengerClosed = errors.New("relay messenger closed")

type pendingPost struct {
	replies chan *transport.Reply
	stop    func() bool
}

// WSMessenger posts envelopes to a relay Server over a websocket and routes
// replies back by message id.
type WSMessenger struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]*pendingPost
	broken  error
	done    chan struct{}
	logger  LogWriter
}

var _ transport.Messenger = (*WSMessenger)(nil)

// DialMessenger connects to the relay endpoint at url (ws:// or wss://).
func DialMessenger(ctx context.Context, url string, header http.Header, logger LogWriter) (*WSMessenger, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, qwerr.WithDetails(
			qwerr.WithCause(qwerr.ErrConnectivity, fmt.Errorf("websocket dial: %w", err)),
			map[string]string{"relay": url},
		)
	}
	conn.SetReadLimit(maxMessageSize)

	if logger == nil {
		logger = nopLogger{}
	}
	m := &WSMessenger{
		conn:    conn,
		pending: make(map[string]*pendingPost),
		done:    make(chan struct{}),
		logger:  logger,
	}
	go m.readLoop()
	return m, nil
}

// Post writes msg and returns the channel its reply will arrive on. Once the
// connection has failed every post fails fast with ErrRelayBroken.
func (m *WSMessenger) Post(ctx context.Context, msg *transport.Message) (<-chan *transport.Reply, error) {
	p := &pendingPost{replies: make(chan *transport.Reply, 1)}

	m.mu.Lock()
	if m.broken != nil {
		err := m.broken
		m.mu.Unlock()
		return nil, qwerr.WithCause(qwerr.ErrRelayBroken, err)
	}
	m.pending[msg.ID] = p
	// A caller that gave up no longer needs a slot
	p.stop = context.AfterFunc(ctx, func() { m.forget(msg.ID, p) })
	m.mu.Unlock()

	m.writeMu.Lock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = m.conn.SetWriteDeadline(deadline)
	} else {
		_ = m.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	}
	err := m.conn.WriteJSON(msg)
	m.writeMu.Unlock()

	if err != nil {
		m.forget(msg.ID, p)
		return nil, qwerr.WithCause(qwerr.ErrRelayBroken, err)
	}
	return p.replies, nil
}

// Close closes the connection. Pending posts are released without a reply.
func (m *WSMessenger) Close() error {
	m.mu.Lock()
	if m.broken == nil {
		m.broken = errMessengerClosed
	}
	m.mu.Unlock()

	m.writeMu.Lock()
	_ = m.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	m.writeMu.Unlock()

	err := m.conn.Close()
	<-m.done
	return err
}

// Done is closed once the connection has stopped delivering replies.
func (m *WSMessenger) Done() <-chan struct{} {
	return m.done
}

func (m *WSMessenger) readLoop() {
	defer close(m.done)
	for {
		_, data, err := m.conn.ReadMessage()
		if err != nil {
			m.fail(err)
			return
		}

		var reply transport.Reply
		if err := json.Unmarshal(data, &reply); err != nil {
			m.logger.Debug("dropping malformed relay reply: %v", err)
			continue
		}
		m.deliver(&reply)
	}
}

func (m *WSMessenger) deliver(reply *transport.Reply) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pending[reply.ID]
	if !ok {
		m.logger.Debug("relay reply %s has no waiting caller", reply.ID)
		return
	}
	delete(m.pending, reply.ID)
	p.stop()
	p.replies <- reply
	close(p.replies)
}

// fail marks the messenger broken and releases every pending post.
func (m *WSMessenger) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.broken == nil {
		m.broken = err
		m.logger.Error("relay connection lost: %v", err)
	}
	for id, p := range m.pending {
		delete(m.pending, id)
		p.stop()
		close(p.replies)
	}
}

// forget drops a pending post if it is still the registered one. Its channel
// is left open: the caller has already stopped waiting on it.
func (m *WSMessenger) forget(id string, p *pendingPost) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.pending[id]; ok && cur == p {
		delete(m.pending, id)
	}
}
