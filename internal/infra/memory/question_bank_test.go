package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"hourly-quiz-service/internal/domain"
)

func TestQuestionBankCaches(t *testing.T) {
	loader := &countingLoader{QuestionLoader: NewStaticQuestionLoader(sampleQuestions())}
	bank := NewQuestionBank(loader, time.Minute)

	if _, err := bank.AllIDs(context.Background()); err != nil {
		t.Fatalf("all ids: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls.Load())
	}

	if _, err := bank.ByIDs(context.Background(), []int64{1}); err != nil {
		t.Fatalf("by ids: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls.Load())
	}
}

func TestQuestionBankReloadsAfterTTL(t *testing.T) {
	loader := &countingLoader{QuestionLoader: NewStaticQuestionLoader(sampleQuestions())}
	bank := NewQuestionBank(loader, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bank.clock = func() time.Time { return now }

	if _, err := bank.AllIDs(context.Background()); err != nil {
		t.Fatalf("all ids: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := bank.AllIDs(context.Background()); err != nil {
		t.Fatalf("all ids: %v", err)
	}
	if loader.calls.Load() != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.calls.Load())
	}
}

func TestQuestionBankCoalescesLoads(t *testing.T) {
	release := make(chan struct{})
	loader := &countingLoader{QuestionLoader: NewStaticQuestionLoader(sampleQuestions()), gate: release}
	bank := NewQuestionBank(loader, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = bank.AllIDs(context.Background())
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if loader.calls.Load() != 1 {
		t.Fatalf("expected coalesced load, loader calls %d", loader.calls.Load())
	}
}

func TestCatalogByIDsPreservesOrder(t *testing.T) {
	c := NewCatalog(sampleQuestions())
	qs, err := c.ByIDs([]int64{3, 1})
	if err != nil {
		t.Fatalf("by ids: %v", err)
	}
	if qs[0].ID != 3 || qs[1].ID != 1 {
		t.Fatalf("unexpected order %d,%d", qs[0].ID, qs[1].ID)
	}
	if _, err := c.ByIDs([]int64{42}); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
	ids := c.AllIDs()
	if len(ids) != 3 || ids[0] != 1 || ids[2] != 3 {
		t.Fatalf("unexpected ids %v", ids)
	}
}

type countingLoader struct {
	QuestionLoader
	calls atomic.Int32
	gate  chan struct{}
}

func (l *countingLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	l.calls.Add(1)
	if l.gate != nil {
		<-l.gate
	}
	return l.QuestionLoader.LoadQuestions(ctx)
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: 3, Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectOption: 1},
		{ID: 1, Prompt: "Capital of Hungary?", Options: []string{"Budapest", "Szeged"}, CorrectOption: 0},
		{ID: 2, Prompt: "Largest lake?", Options: []string{"Velence", "Balaton"}, CorrectOption: 1},
	}
}
