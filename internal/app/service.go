package app

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"hourly-quiz-service/internal/domain"
	"hourly-quiz-service/internal/epoch"
	"hourly-quiz-service/internal/sampler"
)

const (
	// DefaultAssignmentSize is how many questions one epoch assignment holds.
	DefaultAssignmentSize = 5
	// DefaultLeaderboardSize is the number of ranked entries returned.
	DefaultLeaderboardSize = 10

	maxSessionIDLen   = 128
	maxDisplayNameLen = 64
)

// UpdateFunc mutates a session inside a store transaction. Returning an error
// aborts the update and nothing is persisted.
type UpdateFunc func(session *domain.ParticipantSession) error

// SessionStore persists participant sessions (in-memory, Redis, Postgres).
// Update must serialize callers per session id and commit all-or-nothing; an
// unseen id starts from an empty session that is only stored if fn succeeds.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (domain.ParticipantSession, bool, error)
	Update(ctx context.Context, sessionID string, fn UpdateFunc) (domain.ParticipantSession, error)
	Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

// QuestionBank serves the read-only catalog.
type QuestionBank interface {
	AllIDs(ctx context.Context) ([]int64, error)
	// ByIDs returns questions in the order of ids or ErrQuestionNotFound.
	ByIDs(ctx context.Context, ids []int64) ([]domain.Question, error)
}

// Sampler draws assignment ids from the catalog.
type Sampler interface {
	Sample(pool []int64, count int) ([]int64, error)
}

// Recorder receives service events for metrics.
type Recorder interface {
	AssignmentServed(minted bool)
	SubmissionScored(delta, scored, ignored int)
	SubmissionRejected(reason string)
}

type nopRecorder struct{}

func (nopRecorder) AssignmentServed(bool)          {}
func (nopRecorder) SubmissionScored(int, int, int) {}
func (nopRecorder) SubmissionRejected(string)      {}

// QuizService implements the epoch assignment and scoring use cases.
type QuizService struct {
	sessions  SessionStore
	questions QuestionBank
	sampler   Sampler
	clock     epoch.Clock
	size      int
	boardSize int
	recorder  Recorder
	logger    *zap.Logger
	hub       *LeaderboardHub
	now       func() time.Time
}

// Option configures a QuizService.
type Option func(*QuizService)

func WithClock(clock epoch.Clock) Option {
	return func(s *QuizService) { s.clock = clock }
}

func WithSampler(sampler Sampler) Option {
	return func(s *QuizService) { s.sampler = sampler }
}

func WithAssignmentSize(n int) Option {
	return func(s *QuizService) {
		if n > 0 {
			s.size = n
		}
	}
}

func WithLeaderboardSize(n int) Option {
	return func(s *QuizService) {
		if n > 0 {
			s.boardSize = n
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *QuizService) {
		if r != nil {
			s.recorder = r
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *QuizService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithNow overrides the clock used to timestamp leaderboard snapshots.
func WithNow(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

func NewQuizService(store SessionStore, questions QuestionBank, opts ...Option) *QuizService {
	s := &QuizService{
		sessions:  store,
		questions: questions,
		sampler:   sampler.New(),
		clock:     epoch.NewClock(epoch.DefaultWindow),
		size:      DefaultAssignmentSize,
		boardSize: DefaultLeaderboardSize,
		recorder:  nopRecorder{},
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = newLeaderboardHub()
	return s
}

// AssignmentSize returns the configured number of questions per assignment.
func (s *QuizService) AssignmentSize() int {
	return s.size
}

// CurrentEpoch returns the epoch containing now.
func (s *QuizService) CurrentEpoch(now time.Time) domain.Epoch {
	return s.clock.Current(now)
}

// SetDisplayName stores the name shown on the leaderboard. Unseen sessions are created.
func (s *QuizService) SetDisplayName(ctx context.Context, sessionID, name string) (domain.ParticipantSession, error) {
	if err := validateSessionID(sessionID); err != nil {
		return domain.ParticipantSession{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxDisplayNameLen {
		return domain.ParticipantSession{}, domain.ErrInvalidDisplayName
	}

	session, err := s.sessions.Update(ctx, sessionID, func(session *domain.ParticipantSession) error {
		session.DisplayName = name
		return nil
	})
	if err != nil {
		return domain.ParticipantSession{}, err
	}
	s.publishLeaderboard(ctx)
	return session, nil
}

func validateSessionID(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" || len(sessionID) > maxSessionIDLen {
		return domain.ErrInvalidSession
	}
	return nil
}
