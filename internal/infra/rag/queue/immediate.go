// Package queue provides concrete rag.DocumentProcessingQueue
// implementations: an in-process immediate queue and a Valkey-backed
// persistent queue (both adapted from the teacher's uploadask/queue).
package queue

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
)

// Handler processes one ingestion job.
type Handler func(ctx context.Context, documentID, workspaceID uuid.UUID)

// HandlerQueue is a rag.DocumentProcessingQueue that also accepts a worker
// handler for job delivery.
type HandlerQueue interface {
	rag.DocumentProcessingQueue
	SetHandler(handler Handler)
}

// ImmediateQueue invokes the handler in a new goroutine on enqueue. Unlike
// the teacher's ImmediateQueue, Enqueue fails fast when no handler has been
// registered yet instead of silently dropping the job.
type ImmediateQueue struct {
	handler Handler
}

// NewImmediateQueue constructs the queue.
func NewImmediateQueue() *ImmediateQueue {
	return &ImmediateQueue{}
}

// SetHandler replaces the handler used for queued jobs.
func (q *ImmediateQueue) SetHandler(handler Handler) {
	q.handler = handler
}

// Enqueue invokes the handler asynchronously.
func (q *ImmediateQueue) Enqueue(ctx context.Context, documentID, workspaceID uuid.UUID) (string, error) {
	if q.handler == nil {
		return "", fmt.Errorf("ingestion queue: no handler registered")
	}
	jobID := uuid.NewString()
	handler := q.handler
	go handler(ctx, documentID, workspaceID)
	return jobID, nil
}

var _ rag.DocumentProcessingQueue = (*ImmediateQueue)(nil)
var _ HandlerQueue = (*ImmediateQueue)(nil)
