package embedcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
)

// ValkeyCache persists embeddings in Valkey/Redis with a TTL, grounded on
// the teacher's faqstore.ValkeyStore GET/SET/TTL pattern.
type ValkeyCache struct {
	client valkey.Client
	prefix string
	ttl    time.Duration
}

// NewValkeyCache constructs a ValkeyCache. A zero ttl stores entries
// without expiry.
func NewValkeyCache(client valkey.Client, prefix string, ttl time.Duration) *ValkeyCache {
	if prefix == "" {
		prefix = "embedcache"
	}
	return &ValkeyCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *ValkeyCache) fullKey(key string) string {
	return c.prefix + ":" + key
}

func (c *ValkeyCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	resp := c.client.Do(ctx, c.client.B().Get().Key(c.fullKey(key)).Build())
	payload, err := resp.ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var vec []float32
	if err := json.Unmarshal([]byte(payload), &vec); err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

func (c *ValkeyCache) Set(ctx context.Context, key string, vec []float32) error {
	payload, err := json.Marshal(vec)
	if err != nil {
		return err
	}
	builder := c.client.B().Set().Key(c.fullKey(key)).Value(string(payload))
	var cmd valkey.Completed
	if c.ttl > 0 {
		ttl := c.ttl
		if ttl < time.Second {
			ttl = time.Second
		}
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}
	return c.client.Do(ctx, cmd).Error()
}

var _ rag.EmbeddingCache = (*ValkeyCache)(nil)
