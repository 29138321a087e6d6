package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func readNotice(t *testing.T, ch <-chan Notice) Notice {
	t.Helper()
	select {
	case n := <-ch:
		return n
	case <-time.After(time.Second):
		t.Fatal("no notice")
		return Notice{}
	}
}

func TestJoinAndLeaveBroadcast(t *testing.T) {
	svc := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := svc.Subscribe(ctx, "a")
	require.NoError(t, err)
	b, err := svc.Subscribe(ctx, "b")
	require.NoError(t, err)

	require.NoError(t, svc.Join("a", "Ana"))
	assert.Equal(t, "Ana has joined the chat", readNotice(t, a).Text)
	assert.Equal(t, "Ana has joined the chat", readNotice(t, b).Text)

	svc.Leave("a")
	assert.Equal(t, "Ana has left the chat", readNotice(t, b).Text)
	_, ok := svc.Name("a")
	assert.False(t, ok)
}

func TestLeaveWithoutNameIsSilent(t *testing.T) {
	svc := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := svc.Subscribe(ctx, "x")
	require.NoError(t, err)

	svc.Leave("never-named")
	select {
	case n := <-ch:
		t.Fatalf("unexpected notice %q", n.Text)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSubscribeValidation(t *testing.T) {
	svc := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := svc.Subscribe(ctx, "")
	assert.Error(t, err)
	_, err = svc.Subscribe(ctx, "dup")
	require.NoError(t, err)
	_, err = svc.Subscribe(ctx, "dup")
	assert.Error(t, err)
	assert.Error(t, svc.Join("dup", " "))
}

func TestSubscriptionClosesWithContext(t *testing.T) {
	svc := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := svc.Subscribe(ctx, "c")
	require.NoError(t, err)
	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}

func TestSlowSubscriberKeepsNewest(t *testing.T) {
	svc := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := svc.Subscribe(ctx, "slow")
	require.NoError(t, err)
	for i := 0; i < 40; i++ {
		require.NoError(t, svc.Join("other", "n"))
	}
	assert.Len(t, ch, cap(ch))
	assert.Equal(t, 1, svc.Count())
}
