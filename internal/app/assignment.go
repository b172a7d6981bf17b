package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"hourly-quiz-service/internal/domain"
	"hourly-quiz-service/internal/sampler"
)

// GetAssignment returns the participant's question set for the epoch containing now,
// minting a new one when the session has none for this epoch.
func (s *QuizService) GetAssignment(ctx context.Context, sessionID string, now time.Time) (domain.Assignment, error) {
	if err := validateSessionID(sessionID); err != nil {
		return domain.Assignment{}, err
	}
	current := s.clock.Current(now)

	// Re-serve path: a complete assignment for this epoch is read without locking.
	session, ok, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("load session: %w", err)
	}
	minted := false
	if !ok || !session.HasAssignment(current, s.size) {
		session, minted, err = s.mint(ctx, sessionID, current)
		if err != nil {
			return domain.Assignment{}, err
		}
	}

	questions, err := s.questions.ByIDs(ctx, session.AssignedQuestionIDs)
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("load assigned questions: %w", err)
	}
	public := make([]domain.PublicQuestion, len(questions))
	for i, q := range questions {
		public[i] = q.Public()
	}

	s.recorder.AssignmentServed(minted)
	if minted {
		s.logger.Debug("assignment minted",
			zap.String("session", sessionID),
			zap.Stringer("epoch", current),
			zap.Int64s("questions", session.AssignedQuestionIDs))
	}

	answered := append([]int64{}, session.AnsweredQuestionIDs...)
	return domain.Assignment{
		SessionID:   sessionID,
		Epoch:       current,
		EpochStart:  current.Start(),
		NextEpochAt: s.clock.End(current),
		Questions:   public,
		Answered:    answered,
		Done:        session.Completed(),
		Minted:      minted,
	}, nil
}

// mint draws a new assignment under the store's per-session update. The check
// is repeated inside the update so concurrent callers mint at most once.
func (s *QuizService) mint(ctx context.Context, sessionID string, current domain.Epoch) (domain.ParticipantSession, bool, error) {
	pool, err := s.questions.AllIDs(ctx)
	if err != nil {
		return domain.ParticipantSession{}, false, fmt.Errorf("load question pool: %w", err)
	}
	if len(pool) < s.size {
		s.logger.Error("question pool smaller than assignment size",
			zap.Int("pool", len(pool)), zap.Int("assignmentSize", s.size))
		return domain.ParticipantSession{}, false, fmt.Errorf("%w: catalog has %d questions, assignment needs %d", domain.ErrPoolExhausted, len(pool), s.size)
	}

	minted := false
	session, err := s.sessions.Update(ctx, sessionID, func(session *domain.ParticipantSession) error {
		minted = false
		if session.HasAssignment(current, s.size) {
			return nil
		}
		ids, err := s.sampler.Sample(pool, s.size)
		if err != nil {
			if errors.Is(err, sampler.ErrInsufficientPool) {
				return fmt.Errorf("%w: %v", domain.ErrPoolExhausted, err)
			}
			return err
		}
		session.Mint(current, ids)
		minted = true
		return nil
	})
	if err != nil {
		return domain.ParticipantSession{}, false, err
	}
	return session, minted, nil
}
