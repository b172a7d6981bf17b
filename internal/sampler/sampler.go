package sampler

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// ErrInsufficientPool is returned when more ids are requested than the pool holds.
var ErrInsufficientPool = errors.New("insufficient pool")

// Sampler draws question ids uniformly without replacement. It is not
// cryptographically secure; it only has to keep assignments unpredictable
// for participants.
type Sampler struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// New returns a sampler seeded from the current time.
func New() *Sampler {
	return NewWithSeed(time.Now().UnixNano())
}

// NewWithSeed returns a deterministic sampler for tests.
func NewWithSeed(seed int64) *Sampler {
	return &Sampler{rnd: rand.New(rand.NewSource(seed))}
}

// Sample returns count distinct ids drawn from pool. Duplicate pool entries are
// collapsed first. The input slice is not modified.
func (s *Sampler) Sample(pool []int64, count int) ([]int64, error) {
	if count < 0 {
		return nil, fmt.Errorf("sample: negative count %d", count)
	}
	candidates := dedupe(pool)
	if count > len(candidates) {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrInsufficientPool, count, len(candidates))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// partial Fisher-Yates: only the first count slots are shuffled
	for i := 0; i < count; i++ {
		j := i + s.rnd.Intn(len(candidates)-i)
		candidates[i], candidates[j] = candidates[j], candidates[i]
	}
	out := make([]int64, count)
	copy(out, candidates[:count])
	return out, nil
}

func dedupe(pool []int64) []int64 {
	seen := make(map[int64]struct{}, len(pool))
	out := make([]int64, 0, len(pool))
	for _, id := range pool {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
