package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"hourly-quiz-service/internal/domain"
	"hourly-quiz-service/internal/infra/memory"
)

const questionsKey = "quiz:questions"

// QuestionBank caches the catalog in Redis and falls back to a loader on cache miss.
// Questions are stored as: HSET quiz:questions {questionID} {question JSON}
//
// The decoded catalog is also kept in process until the hash would expire, so
// steady-state reads do not touch Redis.
type QuestionBank struct {
	client *redis.Client
	loader memory.QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	clock  func() time.Time

	mu        sync.RWMutex
	snapshot  *memory.Catalog
	expiresAt time.Time

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionBank(client *redis.Client, loader memory.QuestionLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		client: client,
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *QuestionBank) AllIDs(ctx context.Context) ([]int64, error) {
	c, err := b.catalog(ctx)
	if err != nil {
		return nil, err
	}
	return c.AllIDs(), nil
}

func (b *QuestionBank) ByIDs(ctx context.Context, ids []int64) ([]domain.Question, error) {
	c, err := b.catalog(ctx)
	if err != nil {
		return nil, err
	}
	return c.ByIDs(ids)
}

func (b *QuestionBank) catalog(ctx context.Context) (*memory.Catalog, error) {
	if c, ok := b.local(); ok {
		return c, nil
	}

	result, err, _ := b.sf.Do(questionsKey, func() (interface{}, error) {
		// Re-check in case another goroutine or replica filled the cache.
		if c, ok := b.local(); ok {
			return c, nil
		}
		if c, ttl, ok := b.cached(ctx); ok {
			b.keep(c, ttl)
			return c, nil
		}

		questions, err := b.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, fmt.Errorf("load questions: %w", err)
		}

		ttl := b.ttlWithJitter()
		pipe := b.client.TxPipeline()
		pipe.Del(ctx, questionsKey)
		for _, q := range questions {
			data, err := json.Marshal(q)
			if err != nil {
				return nil, err
			}
			pipe.HSet(ctx, questionsKey, domain.QuestionIDKey(q.ID), data)
		}
		if ttl > 0 {
			pipe.Expire(ctx, questionsKey, ttl)
		}
		// a failed cache fill is not fatal, the loaded catalog is still served
		_, _ = pipe.Exec(ctx)

		c := memory.NewCatalog(questions)
		b.keep(c, ttl)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*memory.Catalog), nil
}

func (b *QuestionBank) local() (*memory.Catalog, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.snapshot == nil {
		return nil, false
	}
	if !b.expiresAt.IsZero() && !b.clock().Before(b.expiresAt) {
		return nil, false
	}
	return b.snapshot, true
}

// keep stores c in process for ttl; ttl <= 0 keeps it until the process exits.
func (b *QuestionBank) keep(c *memory.Catalog, ttl time.Duration) {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = b.clock().Add(ttl)
	}
	b.mu.Lock()
	b.snapshot = c
	b.expiresAt = expiresAt
	b.mu.Unlock()
}

// cached decodes the Redis hash and reports its remaining lifetime.
func (b *QuestionBank) cached(ctx context.Context) (*memory.Catalog, time.Duration, bool) {
	pipe := b.client.Pipeline()
	all := pipe.HGetAll(ctx, questionsKey)
	pttl := pipe.PTTL(ctx, questionsKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, 0, false
	}
	raw := all.Val()
	if len(raw) == 0 {
		return nil, 0, false
	}
	questions := make([]domain.Question, 0, len(raw))
	for _, data := range raw {
		var q domain.Question
		if err := json.Unmarshal([]byte(data), &q); err != nil {
			return nil, 0, false
		}
		questions = append(questions, q)
	}

	ttl := pttl.Val()
	if ttl <= 0 {
		// no expiry on the hash: fall back to the configured lifetime
		ttl = b.ttl
	}
	return memory.NewCatalog(questions), ttl, true
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	jitterMax := int64(b.ttl) / 10
	b.rndMu.Lock()
	defer b.rndMu.Unlock()
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}
