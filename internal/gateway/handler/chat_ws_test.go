package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"chunkchat/internal/chunk"
	"chunkchat/internal/gateway/repository/script"
	"chunkchat/internal/gateway/service/presence"
	"chunkchat/internal/gateway/service/reply"
	"chunkchat/internal/metrics"
	"chunkchat/internal/reassembly"
	"chunkchat/internal/transport/wsclient"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testGateway struct {
	srv     *httptest.Server
	metrics *metrics.Metrics
}

func newTestGateway(t *testing.T, delay time.Duration) *testGateway {
	t.Helper()
	m := metrics.New()
	producer := reply.Instrument(reply.NewScriptProducer(script.NewMemoryStore(), nil, "demo", delay, nil), m)
	h := NewChatHandler(presence.New(), producer, m, nil)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/chat", h.HandleChatWS)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &testGateway{srv: srv, metrics: m}
}

func (g *testGateway) dial(t *testing.T) *wsclient.Client {
	t.Helper()
	c, err := wsclient.Dial(context.Background(), "ws"+strings.TrimPrefix(g.srv.URL, "http")+"/ws/chat", wsclient.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	ev := next(t, c)
	require.Equal(t, wsclient.EventConnected, ev.Kind)
	return c
}

func next(t *testing.T, c *wsclient.Client) wsclient.Event {
	t.Helper()
	select {
	case ev, ok := <-c.Events():
		require.True(t, ok, "event stream closed")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return wsclient.Event{}
	}
}

func nextOf(t *testing.T, c *wsclient.Client, kind wsclient.EventKind) wsclient.Event {
	t.Helper()
	for {
		if ev := next(t, c); ev.Kind == kind {
			return ev
		}
	}
}

func TestChatStreamsScriptAsOneMessage(t *testing.T) {
	g := newTestGateway(t, 0)
	c := g.dial(t)
	ctx := context.Background()

	require.NoError(t, c.SetName(ctx, "ana"))
	assert.Equal(t, "ana has joined the chat", nextOf(t, c, wsclient.EventSystem).Text)

	require.NoError(t, c.Send(ctx, wsclient.UserMessage{Text: "hello", Sender: "ana"}))
	assert.Equal(t, wsclient.EventAck, next(t, c).Kind)

	session := reassembly.NewSession()
	var msg reassembly.RenderedMessage
	replyID := ""
	for !msg.IsComplete {
		ev := nextOf(t, c, wsclient.EventChunk)
		if replyID == "" {
			replyID = ev.ReplyID
		}
		assert.Equal(t, replyID, ev.ReplyID)
		msg = session.Append(reassembly.Envelope{ReplyID: ev.ReplyID, Chunk: ev.Chunk})
	}
	assert.Equal(t, 5, msg.ChunkCount)
	assert.Len(t, msg.Fragments, 5)
	assert.Empty(t, msg.Diagnostics)
	assert.Contains(t, msg.HTML(), `href="/learn"`)
	assert.Contains(t, msg.HTML(), `alt="Analysis image"`)

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(g.metrics.Replies.WithLabelValues("script", "completed")) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 5.0, testutil.ToFloat64(g.metrics.ChunksSent.WithLabelValues("text"))+
		testutil.ToFloat64(g.metrics.ChunksSent.WithLabelValues("image"))+
		testutil.ToFloat64(g.metrics.ChunksSent.WithLabelValues("button")))
}

func TestMessageBeforeNameIsRejected(t *testing.T) {
	g := newTestGateway(t, 0)
	c := g.dial(t)

	require.NoError(t, c.Send(context.Background(), wsclient.UserMessage{Text: "hi"}))
	ev := nextOf(t, c, wsclient.EventError)
	assert.Equal(t, "failed_precondition", ev.Code)
}

func TestSecondMessageWhileStreamingIsRejected(t *testing.T) {
	g := newTestGateway(t, time.Hour)
	c := g.dial(t)
	ctx := context.Background()

	require.NoError(t, c.SetName(ctx, "ana"))
	require.NoError(t, c.Send(ctx, wsclient.UserMessage{Text: "one"}))
	first := nextOf(t, c, wsclient.EventChunk)
	assert.Equal(t, chunk.KindText, first.Chunk.Type)

	require.NoError(t, c.Send(ctx, wsclient.UserMessage{Text: "two"}))
	ev := nextOf(t, c, wsclient.EventError)
	assert.Equal(t, "resource_exhausted", ev.Code)
	assert.Equal(t, reply.ErrBusy.Error(), ev.Text)
}

func TestDisconnectCancelsReplyAndAnnouncesLeave(t *testing.T) {
	g := newTestGateway(t, time.Hour)
	watcher := g.dial(t)
	c := g.dial(t)
	ctx := context.Background()

	require.NoError(t, watcher.SetName(ctx, "bo"))
	nextOf(t, watcher, wsclient.EventSystem)
	require.NoError(t, c.SetName(ctx, "ana"))
	assert.Equal(t, "ana has joined the chat", nextOf(t, watcher, wsclient.EventSystem).Text)

	require.NoError(t, c.Send(ctx, wsclient.UserMessage{Text: "hi"}))
	nextOf(t, c, wsclient.EventChunk)
	require.NoError(t, c.Close())

	assert.Equal(t, "ana has left the chat", nextOf(t, watcher, wsclient.EventSystem).Text)
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(g.metrics.Replies.WithLabelValues("script", "canceled")) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPingAndSessionID(t *testing.T) {
	g := newTestGateway(t, 0)
	c := g.dial(t)
	require.NoError(t, c.Ping(context.Background()))
	require.NoError(t, c.SetName(context.Background(), "ana"))
	ev := nextOf(t, c, wsclient.EventSystem)
	assert.Equal(t, "ana has joined the chat", ev.Text)
	assert.NotEmpty(t, c.SessionID())
}
