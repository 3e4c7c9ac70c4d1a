package stream

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
)

func drain(ch <-chan rag.StreamEvent) []rag.StreamEvent {
	var events []rag.StreamEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func TestEmitterHappyPathOrdersSourcesTokensDone(t *testing.T) {
	e, ch := NewEmitter(0)
	events := make(chan []rag.StreamEvent, 1)
	go func() { events <- drain(ch) }()

	e.Sources(nil)
	e.Token("hello")
	e.Token(" world")
	e.Done()

	got := <-events
	require.Len(t, got, 4)
	require.Equal(t, rag.StreamEventSources, got[0].Type)
	require.Equal(t, rag.StreamEventToken, got[1].Type)
	require.Equal(t, rag.StreamEventToken, got[2].Type)
	require.Equal(t, rag.StreamEventDone, got[3].Type)
}

func TestEmitterErrorClosesChannel(t *testing.T) {
	e, ch := NewEmitter(0)
	events := make(chan []rag.StreamEvent, 1)
	go func() { events <- drain(ch) }()

	e.Sources(nil)
	e.Error(errStreamOverflow)

	got := <-events
	require.Len(t, got, 2)
	require.Equal(t, rag.StreamEventError, got[1].Type)
}

// TestTokenOverflowClosesChannel is the regression test for the bug where
// the overflow branch emitted an error event directly instead of calling
// Error, leaving the channel open forever for any `for ev := range events`
// consumer.
func TestTokenOverflowClosesChannel(t *testing.T) {
	e, ch := NewEmitter(0)
	events := make(chan []rag.StreamEvent, 1)
	go func() { events <- drain(ch) }()

	e.Sources(nil)
	var lastOK bool
	for i := 0; i < MaxEvents+10; i++ {
		lastOK = e.Token("x")
		if !lastOK {
			break
		}
	}
	require.False(t, lastOK)

	got := <-events // hangs forever if the channel never closes
	last := got[len(got)-1]
	require.Equal(t, rag.StreamEventError, last.Type)
	require.ErrorIs(t, last.Err, errStreamOverflow)
}

func TestTokenOverflowOnCharBudget(t *testing.T) {
	e, ch := NewEmitter(0)
	events := make(chan []rag.StreamEvent, 1)
	go func() { events <- drain(ch) }()

	e.Sources(nil)
	big := make([]byte, MaxChars+1)
	for i := range big {
		big[i] = 'x'
	}
	ok := e.Token(string(big))
	require.False(t, ok)

	got := <-events
	last := got[len(got)-1]
	require.Equal(t, rag.StreamEventError, last.Type)
}
