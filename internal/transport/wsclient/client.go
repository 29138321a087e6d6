// Package wsclient connects to the chat websocket and turns its frames into
// an ordered stream of events.
package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chunkchat/internal/chatwire"
	"chunkchat/internal/chunk"
	"chunkchat/internal/logging"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10
)

// ErrClosed is returned by outbound calls after the client has stopped.
var ErrClosed = errors.New("wsclient: connection closed")

type EventKind string

const (
	EventConnected    EventKind = "connected"
	EventChunk        EventKind = "chunk"
	EventSystem       EventKind = "system"
	EventAck          EventKind = "ack"
	EventError        EventKind = "error"
	EventDisconnected EventKind = "disconnected"
)

// Event is one thing that happened on the connection. Events are delivered
// in arrival order. EventDisconnected is always the last one unless the
// caller closed the client first.
type Event struct {
	Kind EventKind
	// ReplyID is the producer's reply id on chunk events.
	ReplyID string
	Chunk   chunk.Chunk
	Text    string
	At      time.Time
	Code    string
	Err     error
}

type UserMessage struct {
	Text   string
	Sender string
}

type Options struct {
	Logger *zap.Logger
	Header http.Header
	// Buffer is the capacity of the event channel.
	Buffer           int
	HandshakeTimeout time.Duration
}

type Client struct {
	conn *websocket.Conn
	log  *zap.Logger

	events  chan Event
	writeCh chan chatwire.Inbound

	ctx    context.Context
	cancel context.CancelFunc
	// closed is closed by Close; nobody reads events after that.
	closed chan struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup

	mu        sync.Mutex
	sessionID string
}

// Dial opens the websocket at url and starts the reader and writer
// goroutines. The first event is EventConnected.
func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.HandshakeTimeout,
	}
	if dialer.HandshakeTimeout <= 0 {
		dialer.HandshakeTimeout = 10 * time.Second
	}
	conn, resp, err := dialer.DialContext(ctx, url, opts.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 64
	}

	cctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:    conn,
		log:     logging.OrNop(opts.Logger).With(zap.String("url", url)),
		events:  make(chan Event, buffer),
		writeCh: make(chan chatwire.Inbound, 32),
		ctx:     cctx,
		cancel:  cancel,
		closed:  make(chan struct{}),
	}
	c.events <- Event{Kind: EventConnected, At: time.Now()}

	c.wg.Add(2)
	go c.writeLoop()
	go c.readLoop()
	return c, nil
}

// Events returns the event channel. It is closed after EventDisconnected.
func (c *Client) Events() <-chan Event { return c.events }

// SessionID returns the id the server assigned, once known.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Client) SetName(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("wsclient: name is required")
	}
	return c.send(ctx, chatwire.Inbound{Type: chatwire.TypeSetName, Name: name})
}

func (c *Client) Send(ctx context.Context, msg UserMessage) error {
	if strings.TrimSpace(msg.Text) == "" {
		return errors.New("wsclient: message text is required")
	}
	return c.send(ctx, chatwire.Inbound{Type: chatwire.TypeMessage, Text: msg.Text, Sender: msg.Sender})
}

func (c *Client) Ping(ctx context.Context) error {
	return c.send(ctx, chatwire.Inbound{Type: chatwire.TypePing})
}

// Close stops the connection and waits for the goroutines to exit. It is
// safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.cancel()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		_ = c.conn.Close()
		c.wg.Wait()
	})
	return nil
}

func (c *Client) send(ctx context.Context, in chatwire.Inbound) error {
	select {
	case <-c.ctx.Done():
		return ErrClosed
	default:
	}
	select {
	case c.writeCh <- in:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrClosed
	}
}

func (c *Client) writeLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case in := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteJSON(in); err != nil {
				c.log.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (c *Client) readLoop() {
	defer c.wg.Done()
	defer close(c.events)
	defer c.conn.Close()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			var cause error
			if c.ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				cause = err
			}
			c.cancel()
			c.finish(Event{Kind: EventDisconnected, At: time.Now(), Err: cause})
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		ev, ok := c.decode(data)
		if !ok {
			continue
		}
		if !c.deliver(ev) {
			return
		}
	}
}

// finish delivers the terminal event. It waits for a slow reader and only
// gives up once Close has been called.
func (c *Client) finish(ev Event) {
	if !c.deliver(ev) {
		c.log.Debug("client closed; disconnect event not delivered")
	}
}

func (c *Client) deliver(ev Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.closed:
		return false
	}
}

func (c *Client) decode(data []byte) (Event, bool) {
	var out chatwire.Outbound
	if err := json.Unmarshal(data, &out); err != nil {
		c.log.Warn("dropping malformed frame", zap.Error(err))
		return Event{}, false
	}
	at := out.Time()
	if at.IsZero() {
		at = time.Now()
	}

	switch strings.ToLower(strings.TrimSpace(out.Type)) {
	case chatwire.TypeChunk:
		parsed, err := chunk.Parse(out.Chunk)
		if err != nil {
			c.log.Warn("dropping unparseable chunk",
				zap.String("reply_id", out.MessageID),
				zap.Error(err),
			)
			return Event{}, false
		}
		return Event{Kind: EventChunk, ReplyID: out.MessageID, Chunk: parsed, At: at}, true
	case chatwire.TypeSystem:
		return Event{Kind: EventSystem, Text: out.Text, At: at}, true
	case chatwire.TypeSendAck:
		return Event{Kind: EventAck, At: at}, true
	case chatwire.TypeError:
		return Event{Kind: EventError, Code: out.Code, Text: out.Message, At: at}, true
	case chatwire.TypeSubscribed:
		c.mu.Lock()
		c.sessionID = out.SessionID
		c.mu.Unlock()
		return Event{}, false
	case chatwire.TypePong:
		return Event{}, false
	default:
		c.log.Debug("ignoring frame", zap.String("type", out.Type))
		return Event{}, false
	}
}
