package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"hourly-quiz-service/internal/domain"
)

// QuestionLoader fetches the catalog from a backing store (e.g., Postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// QuestionBank caches the catalog with TTL to avoid repeated DB hits.
type QuestionBank struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand

	mu        sync.RWMutex
	snapshot  *Catalog
	expiresAt time.Time
}

func NewQuestionBank(loader QuestionLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
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

func (b *QuestionBank) catalog(ctx context.Context) (*Catalog, error) {
	now := b.clock()

	b.mu.RLock()
	if b.snapshot != nil && (b.ttl <= 0 || b.expiresAt.After(now)) {
		c := b.snapshot
		b.mu.RUnlock()
		return c, nil
	}
	b.mu.RUnlock()

	result, err, _ := b.sf.Do("catalog", func() (interface{}, error) {
		now := b.clock()
		b.mu.RLock()
		if b.snapshot != nil && (b.ttl <= 0 || b.expiresAt.After(now)) {
			c := b.snapshot
			b.mu.RUnlock()
			return c, nil
		}
		b.mu.RUnlock()

		questions, err := b.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, fmt.Errorf("load questions: %w", err)
		}
		c := NewCatalog(questions)
		expiresAt := now.Add(b.ttlWithJitter())

		b.mu.Lock()
		b.snapshot = c
		b.expiresAt = expiresAt
		b.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Catalog), nil
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(b.ttl) / 10
	b.rndMu.Lock()
	defer b.rndMu.Unlock()
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

// Catalog is an immutable, id-indexed question set.
type Catalog struct {
	ids  []int64
	byID map[int64]domain.Question
}

// NewCatalog indexes questions. Later duplicates of an id are dropped.
func NewCatalog(questions []domain.Question) *Catalog {
	c := &Catalog{byID: make(map[int64]domain.Question, len(questions))}
	for _, q := range questions {
		if _, dup := c.byID[q.ID]; dup {
			continue
		}
		c.byID[q.ID] = q
		c.ids = append(c.ids, q.ID)
	}
	sort.Slice(c.ids, func(i, j int) bool { return c.ids[i] < c.ids[j] })
	return c
}

// AllIDs returns the sorted question ids. The slice is a copy.
func (c *Catalog) AllIDs() []int64 {
	return append([]int64(nil), c.ids...)
}

// ByIDs returns the questions in the order of ids.
func (c *Catalog) ByIDs(ids []int64) ([]domain.Question, error) {
	out := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		q, ok := c.byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %d", domain.ErrQuestionNotFound, id)
		}
		out = append(out, q)
	}
	return out, nil
}

// StaticQuestionLoader is a simple loader backed by a fixed slice (useful for tests/demos).
type StaticQuestionLoader struct {
	questions []domain.Question
}

func NewStaticQuestionLoader(questions []domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	return l.questions, nil
}
