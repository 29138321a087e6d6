package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chunkchat/internal/chatwire"
	"chunkchat/internal/chunk"
	"chunkchat/internal/gateway/service/presence"
	"chunkchat/internal/gateway/service/reply"
	"chunkchat/internal/logging"
	"chunkchat/internal/metrics"
)

const (
	chatWSWriteWait = 10 * time.Second
	chatWSPongWait  = 60 * time.Second
	chatWSPingEvery = (chatWSPongWait * 9) / 10
)

var chatWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// ChatHandler serves the chat websocket. Each connection gets at most one
// reply in flight; closing the connection cancels it.
type ChatHandler struct {
	presence *presence.Service
	producer reply.Producer
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func NewChatHandler(presenceSvc *presence.Service, producer reply.Producer, m *metrics.Metrics, log *zap.Logger) *ChatHandler {
	return &ChatHandler{
		presence: presenceSvc,
		producer: producer,
		metrics:  m,
		log:      logging.OrNop(log),
	}
}

// chatConn is the state of one websocket connection.
type chatConn struct {
	id      string
	log     *zap.Logger
	writeCh chan chatwire.Outbound
	ctx     context.Context

	streaming atomic.Bool
	replies   sync.WaitGroup
}

func (c *chatConn) push(out chatwire.Outbound) bool {
	select {
	case c.writeCh <- out:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *chatConn) pushError(err error) {
	c.push(errorFrame(err))
}

func (h *ChatHandler) HandleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := chatWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	cc := &chatConn{
		id:      uuid.NewString(),
		writeCh: make(chan chatwire.Outbound, 32),
		ctx:     ctx,
	}
	cc.log = h.log.With(zap.String("conn_id", cc.id))
	if h.metrics != nil {
		h.metrics.Connections.Inc()
		defer h.metrics.Connections.Dec()
	}

	if err := conn.SetReadDeadline(time.Now().Add(chatWSPongWait)); err != nil {
		cc.log.Warn("chat ws set read deadline failed", zap.Error(err))
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(chatWSPongWait))
	})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		cc.writeLoop(conn, cancel)
	}()

	notices, err := h.presence.Subscribe(ctx, cc.id)
	if err != nil {
		cc.pushError(connect.NewError(connect.CodeInternal, err))
		cancel()
		<-writerDone
		return
	}
	go func() {
		for n := range notices {
			cc.push(chatwire.Outbound{Type: chatwire.TypeSystem, Text: n.Text, Timestamp: n.At.UnixMilli()})
		}
	}()

	cc.push(chatwire.Outbound{Type: chatwire.TypeSubscribed, SessionID: cc.id})
	cc.log.Info("chat connection opened")

	defer func() {
		cancel()
		cc.replies.Wait()
		<-writerDone
		h.presence.Leave(cc.id)
		cc.log.Info("chat connection closed")
	}()

	for {
		var in chatwire.Inbound
		if err := conn.ReadJSON(&in); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				if h.metrics != nil {
					h.metrics.ParseFailures.Inc()
				}
				cc.pushError(connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("malformed frame: %w", err)))
				continue
			}
			return
		}
		h.dispatch(cc, in)
	}
}

// writeLoop drains writeCh and pings until ctx is done. A failed write
// closes the connection so the blocked reader returns at once.
func (cc *chatConn) writeLoop(conn *websocket.Conn, cancel context.CancelFunc) {
	ticker := time.NewTicker(chatWSPingEvery)
	defer ticker.Stop()

	fail := func(err error) {
		cc.log.Debug("chat ws write failed", zap.Error(err))
		cancel()
		_ = conn.Close()
	}
	for {
		select {
		case <-cc.ctx.Done():
			return
		case out := <-cc.writeCh:
			if err := conn.SetWriteDeadline(time.Now().Add(chatWSWriteWait)); err != nil {
				fail(err)
				return
			}
			if err := conn.WriteJSON(out); err != nil {
				fail(err)
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(chatWSWriteWait)); err != nil {
				fail(err)
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				fail(err)
				return
			}
		}
	}
}

func (h *ChatHandler) dispatch(cc *chatConn, in chatwire.Inbound) {
	switch msgType := in.NormalizedType(); msgType {
	case "":
		cc.pushError(connect.NewError(connect.CodeInvalidArgument, errors.New("type is required")))
	case chatwire.TypePing:
		cc.push(chatwire.Outbound{Type: chatwire.TypePong})
	case chatwire.TypeSetName:
		if err := h.presence.Join(cc.id, in.Name); err != nil {
			cc.pushError(connect.NewError(connect.CodeInvalidArgument, err))
		}
	case chatwire.TypeMessage:
		if err := h.startReply(cc, in); err != nil {
			cc.pushError(err)
		}
	default:
		cc.pushError(connect.NewError(connect.CodeInvalidArgument, errors.New("unsupported type: "+msgType)))
	}
}

func (h *ChatHandler) startReply(cc *chatConn, in chatwire.Inbound) error {
	name, ok := h.presence.Name(cc.id)
	if !ok {
		return connect.NewError(connect.CodeFailedPrecondition, errors.New("set_name is required before sending messages"))
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return connect.NewError(connect.CodeInvalidArgument, errors.New("text is required"))
	}
	if !cc.streaming.CompareAndSwap(false, true) {
		return connect.NewError(connect.CodeResourceExhausted, reply.ErrBusy)
	}

	req := reply.Request{ReplyID: uuid.NewString(), Sender: name, Text: text}
	// The ack goes out before the first chunk can be queued.
	cc.push(chatwire.Outbound{Type: chatwire.TypeSendAck, Accepted: true})
	log := cc.log.With(zap.String("reply_id", req.ReplyID), zap.String("producer", h.producer.Name()))
	cc.replies.Add(1)
	go func() {
		defer cc.replies.Done()
		defer cc.streaming.Store(false)

		sealed := false
		emit := func(c chunk.Chunk) error {
			raw, err := json.Marshal(c)
			if err != nil {
				return fmt.Errorf("encode chunk: %w", err)
			}
			if !cc.push(chatwire.Outbound{Type: chatwire.TypeChunk, MessageID: req.ReplyID, Chunk: raw}) {
				return cc.ctx.Err()
			}
			sealed = c.IsComplete
			return nil
		}

		err := h.producer.Stream(cc.ctx, req, emit)
		switch {
		case err == nil:
			log.Debug("reply streamed")
		case cc.ctx.Err() != nil:
			log.Info("reply canceled by disconnect")
		default:
			log.Warn("reply failed", zap.Error(err))
			if !sealed {
				_ = emit(reply.FailureChunk())
			}
		}
	}()
	return nil
}

func errorFrame(err error) chatwire.Outbound {
	msg := err.Error()
	var cerr *connect.Error
	if errors.As(err, &cerr) {
		msg = cerr.Message()
	}
	return chatwire.Outbound{
		Type:    chatwire.TypeError,
		Code:    connect.CodeOf(err).String(),
		Message: msg,
	}
}
