package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chunkchat/internal/chatwire"
)

func TestWriteFailureUnblocksReader(t *testing.T) {
	readErr := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := chatWSUpgrader.Upgrade(w, r, nil)
		if err != nil {
			readErr <- err
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		cc := &chatConn{log: zap.NewNop(), writeCh: make(chan chatwire.Outbound, 1), ctx: ctx}
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			cc.writeLoop(conn, cancel)
		}()

		// A chunk that cannot be encoded makes the write fail.
		cc.writeCh <- chatwire.Outbound{Type: chatwire.TypeChunk, Chunk: json.RawMessage(`{bad`)}
		_, _, err = conn.ReadMessage()
		readErr <- err
		<-writerDone
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()

	select {
	case err := <-readErr:
		assert.Error(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("reader stayed blocked after the writer failed")
	}
}
