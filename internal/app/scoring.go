package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"hourly-quiz-service/internal/domain"
)

// Submit scores answers against the session's assignment for the epoch containing now.
// Each assigned question is scored at most once per epoch; replays of already
// answered questions are ignored. A question outside the assignment rejects
// the whole submission.
func (s *QuizService) Submit(ctx context.Context, sessionID string, now time.Time, answers []domain.Answer) (domain.SubmitResult, error) {
	if err := validateSessionID(sessionID); err != nil {
		return domain.SubmitResult{}, err
	}
	current := s.clock.Current(now)

	var result domain.SubmitResult
	session, err := s.sessions.Update(ctx, sessionID, func(session *domain.ParticipantSession) error {
		result = domain.SubmitResult{Epoch: current, Scored: []int64{}, Ignored: []int64{}}
		if !session.HasAssignment(current, s.size) {
			return domain.ErrNoActiveAssignment
		}
		for _, a := range answers {
			if !session.IsAssigned(a.QuestionID) {
				return fmt.Errorf("%w: %d", domain.ErrUnknownQuestion, a.QuestionID)
			}
		}

		key, err := s.answerKey(ctx, session, answers)
		if err != nil {
			return err
		}

		delta := 0
		for _, a := range answers {
			if session.IsAnswered(a.QuestionID) {
				result.Ignored = append(result.Ignored, a.QuestionID)
				continue
			}
			if a.SelectedOption == key[a.QuestionID] {
				delta++
			}
			session.MarkAnswered(a.QuestionID)
			result.Scored = append(result.Scored, a.QuestionID)
		}
		session.CumulativeScore += delta
		result.ScoreDelta = delta
		return nil
	})
	if err != nil {
		s.recorder.SubmissionRejected(rejectReason(err))
		return domain.SubmitResult{}, err
	}

	result.CumulativeScore = session.CumulativeScore
	result.Done = session.Completed()
	s.recorder.SubmissionScored(result.ScoreDelta, len(result.Scored), len(result.Ignored))
	s.logger.Debug("submission scored",
		zap.String("session", sessionID),
		zap.Stringer("epoch", current),
		zap.Int("delta", result.ScoreDelta),
		zap.Int("total", result.CumulativeScore),
		zap.Int("ignored", len(result.Ignored)))

	if result.ScoreDelta > 0 {
		s.publishLeaderboard(ctx)
	}
	return result, nil
}

// answerKey loads correct option indexes for the not yet answered questions of a submission.
func (s *QuizService) answerKey(ctx context.Context, session *domain.ParticipantSession, answers []domain.Answer) (map[int64]int, error) {
	pending := make([]int64, 0, len(answers))
	seen := make(map[int64]struct{}, len(answers))
	for _, a := range answers {
		if session.IsAnswered(a.QuestionID) {
			continue
		}
		if _, dup := seen[a.QuestionID]; dup {
			continue
		}
		seen[a.QuestionID] = struct{}{}
		pending = append(pending, a.QuestionID)
	}

	key := make(map[int64]int, len(pending))
	if len(pending) == 0 {
		return key, nil
	}
	questions, err := s.questions.ByIDs(ctx, pending)
	if err != nil {
		return nil, fmt.Errorf("load answer key: %w", err)
	}
	for _, q := range questions {
		key[q.ID] = q.CorrectOption
	}
	return key, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoActiveAssignment):
		return "no_active_assignment"
	case errors.Is(err, domain.ErrUnknownQuestion):
		return "unknown_question"
	case errors.Is(err, domain.ErrConcurrentUpdate):
		return "conflict"
	default:
		return "error"
	}
}
