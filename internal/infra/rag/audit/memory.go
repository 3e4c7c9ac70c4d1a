package audit

import (
	"context"
	"sync"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
)

// MemoryRecorder keeps audit events in memory, for tests and local dev.
type MemoryRecorder struct {
	mu     sync.Mutex
	events []rag.AuditEvent
}

// NewMemoryRecorder constructs the recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (r *MemoryRecorder) Record(_ context.Context, event rag.AuditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a snapshot of recorded events, for assertions in tests.
func (r *MemoryRecorder) Events() []rag.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]rag.AuditEvent, len(r.events))
	copy(out, r.events)
	return out
}

var _ rag.AuditRecorder = (*MemoryRecorder)(nil)
