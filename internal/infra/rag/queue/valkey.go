package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
)

type jobEnvelope struct {
	JobID       string `json:"job_id"`
	DocumentID  string `json:"document_id"`
	WorkspaceID string `json:"workspace_id"`
}

// ValkeyQueue persists ingestion jobs in Valkey and delivers them to a
// registered handler via a blocking-pop worker loop.
type ValkeyQueue struct {
	client      valkey.Client
	queueKey    string
	handler     Handler
	registered  atomic.Bool
	logger      *slog.Logger
	stop        chan struct{}
	pollTimeout time.Duration
}

// NewValkeyQueue constructs a Valkey-backed queue.
func NewValkeyQueue(client valkey.Client, queueKey string, logger *slog.Logger) *ValkeyQueue {
	if queueKey == "" {
		queueKey = "rag:ingest:jobs"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ValkeyQueue{
		client:      client,
		queueKey:    queueKey,
		logger:      logger.With("component", "rag.queue.valkey"),
		stop:        make(chan struct{}),
		pollTimeout: 5 * time.Second,
	}
}

// SetHandler registers the worker handler and starts the consume loop.
func (q *ValkeyQueue) SetHandler(handler Handler) {
	q.handler = handler
	q.registered.Store(handler != nil)
	if handler != nil {
		go q.consume()
	}
}

// Stop terminates the consume loop.
func (q *ValkeyQueue) Stop() {
	close(q.stop)
}

// Enqueue pushes a job onto the queue. Fails fast if no worker has
// registered a handler, instead of silently accepting unreachable jobs.
func (q *ValkeyQueue) Enqueue(ctx context.Context, documentID, workspaceID uuid.UUID) (string, error) {
	if !q.registered.Load() {
		return "", fmt.Errorf("ingestion queue: no handler registered for %s", q.queueKey)
	}
	jobID := uuid.NewString()
	encoded, err := json.Marshal(jobEnvelope{
		JobID:       jobID,
		DocumentID:  documentID.String(),
		WorkspaceID: workspaceID.String(),
	})
	if err != nil {
		return "", err
	}
	cmd := q.client.B().Lpush().Key(q.queueKey).Element(string(encoded)).Build()
	if err := q.client.Do(ctx, cmd).Error(); err != nil {
		return "", err
	}
	return jobID, nil
}

func (q *ValkeyQueue) consume() {
	ctx := context.Background()
	for {
		select {
		case <-q.stop:
			return
		default:
		}
		resp := q.client.Do(ctx, q.client.B().Brpop().Key(q.queueKey).Timeout(q.pollTimeout.Seconds()).Build())
		values, err := resp.ToArray()
		if err != nil {
			if !valkey.IsValkeyNil(err) {
				q.logger.Warn("valkey queue pop failed", "error", err)
			}
			continue
		}
		if len(values) < 2 || q.handler == nil {
			continue
		}
		raw, err := values[1].ToString()
		if err != nil {
			q.logger.Warn("valkey queue payload decode failed", "error", err)
			continue
		}
		var job jobEnvelope
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			q.logger.Warn("valkey queue unmarshal failed", "error", err)
			continue
		}
		documentID, err := uuid.Parse(job.DocumentID)
		if err != nil {
			q.logger.Warn("valkey queue invalid document_id", "error", err)
			continue
		}
		workspaceID, err := uuid.Parse(job.WorkspaceID)
		if err != nil {
			q.logger.Warn("valkey queue invalid workspace_id", "error", err)
			continue
		}
		q.handler(ctx, documentID, workspaceID)
	}
}

var _ rag.DocumentProcessingQueue = (*ValkeyQueue)(nil)
var _ HandlerQueue = (*ValkeyQueue)(nil)
