// Package chatwire defines the JSON frames exchanged on the chat websocket.
package chatwire

import (
	"encoding/json"
	"strings"
	"time"
)

// Client to server frame types.
const (
	TypeSetName = "set_name"
	TypeMessage = "message"
	TypePing    = "ping"
)

// Server to client frame types.
const (
	TypeSubscribed = "subscribed"
	TypeChunk      = "chunk"
	TypeSystem     = "system"
	TypeSendAck    = "send_ack"
	TypePong       = "pong"
	TypeError      = "error"
)

type Inbound struct {
	Type   string `json:"type"`
	Name   string `json:"name,omitempty"`
	Text   string `json:"text,omitempty"`
	Sender string `json:"sender,omitempty"`
}

// NormalizedType returns the lowercased, trimmed frame type.
func (in Inbound) NormalizedType() string {
	return strings.ToLower(strings.TrimSpace(in.Type))
}

type Outbound struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	// MessageID is the producer's reply id on chunk frames.
	MessageID string          `json:"messageId,omitempty"`
	Chunk     json.RawMessage `json:"chunk,omitempty"`
	Text      string          `json:"text,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
	Accepted  bool            `json:"accepted,omitempty"`
	Code      string          `json:"code,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// Time returns Timestamp (unix millis) as a time, or the zero time.
func (out Outbound) Time() time.Time {
	if out.Timestamp == 0 {
		return time.Time{}
	}
	return time.UnixMilli(out.Timestamp)
}

func JoinedNotice(name string) string { return name + " has joined the chat" }

func LeftNotice(name string) string { return name + " has left the chat" }
