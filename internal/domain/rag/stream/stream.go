// Package stream implements the streamed-answer event contract
// (sources -> token* -> done|error), grounded on the teacher's
// ChatCompletionStream SSE scanner (internal/infra/llm/chatgpt), which
// this package generalizes from raw provider frames to the four
// domain-level event kinds.
package stream

import (
	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
)

const (
	MaxEvents = 2000
	MaxChars  = 12000
)

// Emitter writes bounded StreamEvents to a channel, enforcing the
// event/char caps so a runaway provider stream cannot exhaust the client.
type Emitter struct {
	ch         chan rag.StreamEvent
	eventCount int
	charCount  int
}

// NewEmitter constructs an Emitter writing to a freshly created channel of
// the given buffer size.
func NewEmitter(buffer int) (*Emitter, <-chan rag.StreamEvent) {
	ch := make(chan rag.StreamEvent, buffer)
	return &Emitter{ch: ch}, ch
}

// Sources emits the sources event that must precede any token events.
func (e *Emitter) Sources(sources []rag.RankedChunk) bool {
	return e.emit(rag.StreamEvent{Type: rag.StreamEventSources, Sources: sources})
}

// Token emits a single token fragment. It returns false, having already
// emitted a terminal error event, if the stream has exceeded its event or
// character budget.
func (e *Emitter) Token(tok string) bool {
	e.charCount += len(tok)
	if e.eventCount >= MaxEvents || e.charCount > MaxChars {
		e.Error(errStreamOverflow)
		return false
	}
	return e.emit(rag.StreamEvent{Type: rag.StreamEventToken, Token: tok})
}

// Done emits the terminal done event and closes the channel.
func (e *Emitter) Done() {
	e.emit(rag.StreamEvent{Type: rag.StreamEventDone})
	close(e.ch)
}

// Error emits a terminal error event and closes the channel.
func (e *Emitter) Error(err error) {
	e.emit(rag.StreamEvent{Type: rag.StreamEventError, Err: err})
	close(e.ch)
}

func (e *Emitter) emit(ev rag.StreamEvent) bool {
	e.eventCount++
	e.ch <- ev
	return true
}

var errStreamOverflow = streamOverflowError{}

type streamOverflowError struct{}

func (streamOverflowError) Error() string { return "stream exceeded event or character budget" }
