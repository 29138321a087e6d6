package reassembly

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"chunkchat/internal/chunk"
	"chunkchat/internal/ui"
)

func fixedClock() func() time.Time {
	at := time.UnixMilli(1700000000000)
	return func() time.Time { return at }
}

func counterIDs() func(time.Time) string {
	n := 0
	return func(at time.Time) string {
		n++
		return fmt.Sprintf("%d-%d", at.UnixMilli(), n)
	}
}

func TestAppendTwoTextChunksFormOneMessage(t *testing.T) {
	s := NewSession(WithClock(fixedClock()), WithIDGenerator(counterIDs()))

	first := s.Append(Envelope{Chunk: chunk.Text("Hi")})
	assert.False(t, first.IsComplete)
	require.Len(t, first.Fragments, 1)

	second := s.Append(Envelope{Chunk: chunk.Text("there").Complete()})
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.IsComplete)
	assert.Equal(t, 2, second.ChunkCount)
	require.Len(t, second.Fragments, 2)
	assert.Equal(t, "Hi", second.Fragments[0].Text.Text)
	assert.Equal(t, "there", second.Fragments[1].Text.Text)

	_, open := s.Current()
	assert.False(t, open)
}

func TestAppendAfterSealOpensNewMessage(t *testing.T) {
	s := NewSession(WithClock(fixedClock()), WithIDGenerator(counterIDs()))
	a := s.Append(Envelope{Chunk: chunk.Text("one").Complete()})
	b := s.Append(Envelope{Chunk: chunk.Text("two")})
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 1, b.ChunkCount)
	assert.True(t, a.IsComplete, "sealed render must not change")
}

func TestRenderedMessageIsAValue(t *testing.T) {
	s := NewSession()
	first := s.Append(Envelope{Chunk: chunk.Text("a")})
	s.Append(Envelope{Chunk: chunk.Text("b")})
	assert.Len(t, first.Fragments, 1)
	assert.Equal(t, 1, first.ChunkCount)
}

func TestIncrementalEqualsBatchRender(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for trial := 0; trial < 200; trial++ {
		seq := randomSequence(rng)
		s := NewSession()
		var last RenderedMessage
		for _, c := range seq {
			last = s.Append(Envelope{Chunk: c})
		}
		require.True(t, last.IsComplete)
		want := ui.Render(seq)
		if diff := cmp.Diff(want.Fragments, last.Fragments); diff != "" {
			t.Fatalf("trial %d fragments (-batch +incremental):\n%s", trial, diff)
		}
		if diff := cmp.Diff(want.Diagnostics, last.Diagnostics); diff != "" {
			t.Fatalf("trial %d diagnostics (-batch +incremental):\n%s", trial, diff)
		}
	}
}

func TestStableFragmentsNeverChange(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	for trial := 0; trial < 100; trial++ {
		seq := randomSequence(rng)
		s := NewSession()
		var shown []ui.Fragment
		for _, c := range seq {
			msg := s.Append(Envelope{Chunk: c})
			stable := msg.StableFragments()
			require.GreaterOrEqual(t, len(stable), len(shown))
			if diff := cmp.Diff(shown, stable[:len(shown)]); diff != "" {
				t.Fatalf("trial %d stable prefix changed:\n%s", trial, diff)
			}
			shown = stable
		}
	}
}

func TestListRunRendersEachItemOnce(t *testing.T) {
	s := NewSession()
	s.Append(Envelope{Chunk: chunk.List("a", "b")})
	closing := chunk.List("a", "b", "c")
	closing.Metadata.ListCompleted = true
	msg := s.Append(Envelope{Chunk: closing.Complete()})

	out := msg.HTML()
	assert.Equal(t, "<ul><li>a</li><li>b</li><li>c</li></ul>", out)
	for _, item := range []string{"a", "b", "c"} {
		assert.Equal(t, 1, strings.Count(out, "<li>"+item+"</li>"))
	}
}

func TestDisconnectLeavesNextReplySeparate(t *testing.T) {
	s := NewSession(WithClock(fixedClock()), WithIDGenerator(counterIDs()))
	stale := s.Append(Envelope{ReplyID: "r1", Chunk: chunk.Text("partial")})

	id, ok := s.Disconnect()
	require.True(t, ok)
	assert.Equal(t, stale.ID, id)
	assert.False(t, stale.IsComplete)

	_, ok = s.Disconnect()
	assert.False(t, ok)

	fresh := s.Append(Envelope{ReplyID: "r2", Chunk: chunk.Text("new")})
	assert.NotEqual(t, stale.ID, fresh.ID)
	assert.Equal(t, 1, fresh.ChunkCount)
}

func TestReplyIDChangeStartsNewMessage(t *testing.T) {
	s := NewSession(WithClock(fixedClock()), WithIDGenerator(counterIDs()))
	a := s.Append(Envelope{ReplyID: "r1", Chunk: chunk.Text("old")})
	b := s.Append(Envelope{ReplyID: "r2", Chunk: chunk.Text("new")})
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "r2", b.ReplyID)
	assert.Equal(t, 1, b.ChunkCount)

	c := s.Append(Envelope{ReplyID: "r2", Chunk: chunk.Text("more")})
	assert.Equal(t, b.ID, c.ID)
	assert.Equal(t, 2, c.ChunkCount)
}

func TestMissingReplyIDContinuesOpenMessage(t *testing.T) {
	s := NewSession()
	a := s.Append(Envelope{Chunk: chunk.Text("x")})
	b := s.Append(Envelope{ReplyID: "r9", Chunk: chunk.Text("y")})
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "r9", b.ReplyID)
}

func TestDiagnosticsLoggedOncePerChunk(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s := NewSession(WithLogger(zap.New(core)))

	s.Append(Envelope{Chunk: chunk.Chunk{Type: chunk.KindUnknown, RawType: "chart"}})
	s.Append(Envelope{Chunk: chunk.Text("a")})
	msg := s.Append(Envelope{Chunk: chunk.Text("b").Complete()})

	require.Len(t, msg.Diagnostics, 1)
	entries := logs.FilterMessage("chunk rendered as empty").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "chart", entries[0].ContextMap()["type"])
}

func TestDuplicateGeneratedIDsAreRetried(t *testing.T) {
	s := NewSession(WithIDGenerator(func(time.Time) string { return "same" }))
	a := s.Append(Envelope{Chunk: chunk.Text("1").Complete()})
	b := s.Append(Envelope{Chunk: chunk.Text("2").Complete()})
	assert.Equal(t, "same", a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestNewMessageIDShape(t *testing.T) {
	id := NewMessageID(time.UnixMilli(42))
	assert.True(t, strings.HasPrefix(id, "42-"))
	assert.Len(t, id, len("42-")+8)
}

func randomSequence(rng *rand.Rand) []chunk.Chunk {
	n := 1 + rng.IntN(12)
	seq := make([]chunk.Chunk, 0, n)
	items := []string{"a", "b", "c", "d"}
	for i := 0; i < n; i++ {
		var c chunk.Chunk
		switch rng.IntN(7) {
		case 0:
			c = chunk.Text(fmt.Sprintf("t%d", i))
		case 1:
			c = chunk.List(items[:1+rng.IntN(len(items))]...)
			c.Metadata.ListCompleted = rng.IntN(3) == 0
		case 2:
			rows := [][]string{{"1", "x"}, {"2", "y"}, {"1", "x"}}
			c = chunk.Table([]string{"k", "v"}, rows[:1+rng.IntN(len(rows))]...)
			c.Metadata.TableCompleted = rng.IntN(3) == 0
		case 3:
			c = chunk.Image("/img.png", "", "")
		case 4:
			c = chunk.Chunk{Type: chunk.KindButton, Text: "b"}
		case 5:
			c = chunk.Chunk{Type: chunk.KindUnknown, RawType: "chart"}
		default:
			c = chunk.Chunk{Type: chunk.KindImage}
		}
		seq = append(seq, c)
	}
	seq[len(seq)-1].IsComplete = true
	return seq
}
