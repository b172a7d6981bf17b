package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"hourly-quiz-service/internal/domain"
)

// Leaderboard returns the top participants by cumulative score. Ties are broken
// by session id so the order is deterministic.
func (s *QuizService) Leaderboard(ctx context.Context) (domain.Leaderboard, error) {
	entries, err := s.sessions.Top(ctx, s.boardSize)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	for i := range entries {
		entries[i].Rank = i + 1
		if entries[i].DisplayName == "" {
			entries[i].DisplayName = entries[i].SessionID
		}
	}
	return domain.Leaderboard{Entries: entries, UpdatedAt: s.now()}, nil
}

// Subscribe returns a channel that receives leaderboard snapshots whenever a
// score or display name changes. The caller must invoke cancel to avoid leaks.
func (s *QuizService) Subscribe(ctx context.Context) (<-chan domain.Leaderboard, func(), error) {
	initial, err := s.Leaderboard(ctx)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hub.subscribe(initial)
	return ch, cancel, nil
}

func (s *QuizService) publishLeaderboard(ctx context.Context) {
	if s.hub.empty() {
		return
	}
	lb, err := s.Leaderboard(ctx)
	if err != nil {
		s.logger.Warn("leaderboard refresh failed", zap.Error(err))
		return
	}
	s.hub.broadcast(lb)
}

// LeaderboardHub fans snapshots out to subscribers.
type LeaderboardHub struct {
	mu          sync.Mutex
	subscribers map[chan domain.Leaderboard]struct{}
}

func newLeaderboardHub() *LeaderboardHub {
	return &LeaderboardHub{subscribers: make(map[chan domain.Leaderboard]struct{})}
}

func (h *LeaderboardHub) empty() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers) == 0
}

func (h *LeaderboardHub) subscribe(initial domain.Leaderboard) (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	h.mu.Lock()
	ch <- initial
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *LeaderboardHub) broadcast(lb domain.Leaderboard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- lb:
		default:
			// slow consumer: drop the oldest snapshot, keep the newest
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
