// Package chat drives one chat connection: it feeds transport events through
// a reassembly session into the transcript and forwards user input.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"chunkchat/internal/logging"
	"chunkchat/internal/reassembly"
	"chunkchat/internal/transcript"
	"chunkchat/internal/transport/wsclient"
)

const disconnectedNotice = "Disconnected from server"

// Sender is the outbound half of a connection.
type Sender interface {
	SetName(ctx context.Context, name string) error
	Send(ctx context.Context, msg wsclient.UserMessage) error
}

type Conversation struct {
	log     *zap.Logger
	session *reassembly.Session
	store   *transcript.Store
	sender  Sender
	name    string
}

func NewConversation(store *transcript.Store, sender Sender, log *zap.Logger) *Conversation {
	log = logging.OrNop(log)
	return &Conversation{
		log:     log,
		session: reassembly.NewSession(reassembly.WithLogger(log)),
		store:   store,
		sender:  sender,
	}
}

// Join announces the user's display name to the server.
func (c *Conversation) Join(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if err := c.sender.SetName(ctx, name); err != nil {
		return fmt.Errorf("set name: %w", err)
	}
	c.name = name
	return nil
}

// Submit records the user's message locally and sends it.
func (c *Conversation) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	c.store.AppendUser(c.name, text)
	if err := c.sender.Send(ctx, wsclient.UserMessage{Text: text, Sender: c.name}); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// Handle applies one transport event. Events must be handled sequentially in
// arrival order.
func (c *Conversation) Handle(ev wsclient.Event) {
	switch ev.Kind {
	case wsclient.EventConnected:
		c.log.Debug("connected")
	case wsclient.EventChunk:
		msg := c.session.Append(reassembly.Envelope{ReplyID: ev.ReplyID, Chunk: ev.Chunk})
		c.store.UpsertAssistant(msg)
	case wsclient.EventSystem:
		c.store.AppendNotice(ev.Text, ev.At)
	case wsclient.EventAck:
	case wsclient.EventError:
		c.log.Warn("server error", zap.String("code", ev.Code), zap.String("message", ev.Text))
		c.store.AppendNotice(fmt.Sprintf("Error (%s): %s", ev.Code, ev.Text), ev.At)
	case wsclient.EventDisconnected:
		if id, ok := c.session.Disconnect(); ok {
			c.log.Info("reply interrupted", zap.String("message_id", id))
		}
		if ev.Err != nil {
			c.log.Warn("connection lost", zap.Error(ev.Err))
		}
		c.store.AppendNotice(disconnectedNotice, ev.At)
	default:
		c.log.Debug("ignoring event", zap.String("kind", string(ev.Kind)))
	}
}

// Run handles events until the channel closes or ctx is done. A channel
// that closes without EventDisconnected is treated as a disconnect.
func (c *Conversation) Run(ctx context.Context, events <-chan wsclient.Event) error {
	disconnected := false
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				if !disconnected {
					c.Handle(wsclient.Event{Kind: wsclient.EventDisconnected, At: time.Now()})
				}
				return nil
			}
			disconnected = ev.Kind == wsclient.EventDisconnected
			c.Handle(ev)
		}
	}
}
