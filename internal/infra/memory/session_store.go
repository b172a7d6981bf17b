package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"hourly-quiz-service/internal/app"
	"hourly-quiz-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionStore. Each
// session has its own lock, so different participants never contend.
type SessionStore struct {
	clock    func() time.Time
	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	mu        sync.Mutex
	session   domain.ParticipantSession
	persisted bool
	removed   bool
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		clock:    time.Now,
		sessions: make(map[string]*sessionEntry),
	}
}

func (s *SessionStore) Get(_ context.Context, sessionID string) (domain.ParticipantSession, bool, error) {
	s.mu.Lock()
	entry, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return domain.ParticipantSession{}, false, nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if !entry.persisted {
		return domain.ParticipantSession{}, false, nil
	}
	return entry.session.Clone(), true, nil
}

// Update runs fn on a copy of the session while holding the session lock and
// commits the copy only if fn succeeds and ctx is still live.
func (s *SessionStore) Update(ctx context.Context, sessionID string, fn app.UpdateFunc) (domain.ParticipantSession, error) {
	for {
		entry := s.acquire(sessionID)
		entry.mu.Lock()
		if entry.removed {
			// lost a race with a failed first write; retry on the fresh entry
			entry.mu.Unlock()
			continue
		}
		out, err := s.updateLocked(ctx, sessionID, entry, fn)
		entry.mu.Unlock()
		return out, err
	}
}

func (s *SessionStore) updateLocked(ctx context.Context, sessionID string, entry *sessionEntry, fn app.UpdateFunc) (domain.ParticipantSession, error) {
	now := s.clock()
	working := domain.ParticipantSession{SessionID: sessionID, CreatedAt: now}
	if entry.persisted {
		working = entry.session.Clone()
	}

	err := fn(&working)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		if !entry.persisted {
			s.mu.Lock()
			if s.sessions[sessionID] == entry {
				delete(s.sessions, sessionID)
			}
			s.mu.Unlock()
			entry.removed = true
		}
		return domain.ParticipantSession{}, err
	}

	working.UpdatedAt = now
	entry.session = working
	entry.persisted = true
	return working.Clone(), nil
}

func (s *SessionStore) acquire(sessionID string) *sessionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		entry = &sessionEntry{}
		s.sessions[sessionID] = entry
	}
	return entry
}

// Top ranks persisted sessions by score desc, then session id asc.
func (s *SessionStore) Top(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.Lock()
	entries := make([]*sessionEntry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	board := make([]domain.LeaderboardEntry, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if e.persisted {
			board = append(board, domain.LeaderboardEntry{
				SessionID:   e.session.SessionID,
				DisplayName: e.session.DisplayName,
				Score:       e.session.CumulativeScore,
			})
		}
		e.mu.Unlock()
	}
	SortLeaderboard(board)
	if limit > 0 && len(board) > limit {
		board = board[:limit]
	}
	return board, nil
}

// SortLeaderboard orders entries by score desc, then session id asc.
func SortLeaderboard(entries []domain.LeaderboardEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].SessionID < entries[j].SessionID
	})
}
