package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chunkchat/internal/chunk"
	"chunkchat/internal/transcript"
	"chunkchat/internal/transport/wsclient"
)

type fakeSender struct {
	names []string
	sent  []wsclient.UserMessage
	err   error
}

func (f *fakeSender) SetName(_ context.Context, name string) error {
	f.names = append(f.names, name)
	return f.err
}

func (f *fakeSender) Send(_ context.Context, msg wsclient.UserMessage) error {
	f.sent = append(f.sent, msg)
	return f.err
}

func TestChunksBecomeOneAssistantEntry(t *testing.T) {
	store := transcript.New()
	c := NewConversation(store, &fakeSender{}, nil)

	c.Handle(wsclient.Event{Kind: wsclient.EventConnected})
	c.Handle(wsclient.Event{Kind: wsclient.EventChunk, ReplyID: "r1", Chunk: chunk.Text("Hi")})
	c.Handle(wsclient.Event{Kind: wsclient.EventChunk, ReplyID: "r1", Chunk: chunk.Text("there").Complete()})

	entries := store.Entries()
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].Message)
	assert.True(t, entries[0].Message.IsComplete)
	assert.Len(t, entries[0].Message.Fragments, 2)
}

func TestDisconnectMidReply(t *testing.T) {
	store := transcript.New()
	c := NewConversation(store, &fakeSender{}, nil)
	at := time.UnixMilli(1700000000000)

	c.Handle(wsclient.Event{Kind: wsclient.EventChunk, ReplyID: "r1", Chunk: chunk.Text("partial")})
	c.Handle(wsclient.Event{Kind: wsclient.EventDisconnected, At: at})
	c.Handle(wsclient.Event{Kind: wsclient.EventChunk, ReplyID: "r2", Chunk: chunk.Text("new").Complete()})

	entries := store.Entries()
	require.Len(t, entries, 3)
	assert.False(t, entries[0].Sealed())
	assert.Equal(t, transcript.KindSystem, entries[1].Kind)
	assert.Equal(t, disconnectedNotice, entries[1].Text)
	assert.Equal(t, at, entries[1].Timestamp)
	assert.NotEqual(t, entries[0].ID, entries[2].ID)
}

func TestSystemAndErrorEventsAreNotices(t *testing.T) {
	store := transcript.New()
	c := NewConversation(store, &fakeSender{}, nil)
	c.Handle(wsclient.Event{Kind: wsclient.EventSystem, Text: "bo has joined the chat"})
	c.Handle(wsclient.Event{Kind: wsclient.EventError, Code: "resource_exhausted", Text: "reply in progress"})
	c.Handle(wsclient.Event{Kind: wsclient.EventAck})

	entries := store.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "bo has joined the chat", entries[0].Text)
	assert.Equal(t, "Error (resource_exhausted): reply in progress", entries[1].Text)
}

func TestJoinAndSubmit(t *testing.T) {
	store := transcript.New()
	sender := &fakeSender{}
	c := NewConversation(store, sender, nil)

	require.NoError(t, c.Join(context.Background(), " ana "))
	require.NoError(t, c.Submit(context.Background(), " hello "))
	require.NoError(t, c.Submit(context.Background(), "   "))

	assert.Equal(t, []string{"ana"}, sender.names)
	assert.Equal(t, []wsclient.UserMessage{{Text: "hello", Sender: "ana"}}, sender.sent)
	entries := store.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, transcript.KindUser, entries[0].Kind)
	assert.Equal(t, "ana", entries[0].Sender)
}

func TestSubmitSurfacesSendError(t *testing.T) {
	sender := &fakeSender{err: errors.New("boom")}
	c := NewConversation(transcript.New(), sender, nil)
	err := c.Submit(context.Background(), "x")
	assert.ErrorContains(t, err, "boom")
}

func TestRunStopsWhenEventsClose(t *testing.T) {
	store := transcript.New()
	c := NewConversation(store, &fakeSender{}, nil)
	events := make(chan wsclient.Event, 3)
	events <- wsclient.Event{Kind: wsclient.EventChunk, Chunk: chunk.Text("x").Complete()}
	events <- wsclient.Event{Kind: wsclient.EventDisconnected}
	close(events)

	require.NoError(t, c.Run(context.Background(), events))
	assert.Equal(t, 2, store.Len())
}

func TestRunTreatsClosedStreamAsDisconnect(t *testing.T) {
	store := transcript.New()
	c := NewConversation(store, &fakeSender{}, nil)
	events := make(chan wsclient.Event, 1)
	events <- wsclient.Event{Kind: wsclient.EventChunk, ReplyID: "r1", Chunk: chunk.Text("partial")}
	close(events)

	require.NoError(t, c.Run(context.Background(), events))
	entries := store.Entries()
	require.Len(t, entries, 2)
	assert.False(t, entries[0].Sealed())
	assert.Equal(t, disconnectedNotice, entries[1].Text)

	// The abandoned reply is not continued by a later chunk.
	c.Handle(wsclient.Event{Kind: wsclient.EventChunk, ReplyID: "r1", Chunk: chunk.Text("late").Complete()})
	entries = store.Entries()
	require.Len(t, entries, 3)
	assert.NotEqual(t, entries[0].ID, entries[2].ID)
}

func TestRunHonoursContext(t *testing.T) {
	c := NewConversation(transcript.New(), &fakeSender{}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := c.Run(ctx, make(chan wsclient.Event))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
