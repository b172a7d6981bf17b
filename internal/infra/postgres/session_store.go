package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"hourly-quiz-service/internal/app"
	"hourly-quiz-service/internal/domain"
)

const sessionColumns = `session_id, display_name, assigned_epoch, assigned_question_ids,
	answered_question_ids, cumulative_score, created_at, updated_at`

// SessionStore persists sessions in the quiz_sessions table. Updates run in a
// transaction holding a row lock (SELECT ... FOR UPDATE), which serializes
// writers per session id while leaving other rows free.
type SessionStore struct {
	pool  *pgxpool.Pool
	clock func() time.Time
}

func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool, clock: time.Now}
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (domain.ParticipantSession, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM quiz_sessions WHERE session_id = $1`, sessionID)
	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ParticipantSession{}, false, nil
	}
	if err != nil {
		return domain.ParticipantSession{}, false, fmt.Errorf("get session: %w", err)
	}
	return session, true, nil
}

func (s *SessionStore) Update(ctx context.Context, sessionID string, fn app.UpdateFunc) (domain.ParticipantSession, error) {
	var out domain.ParticipantSession
	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		now := s.clock().UTC()
		// the placeholder row is rolled back with the transaction if fn fails
		if _, err := tx.Exec(ctx,
			`INSERT INTO quiz_sessions (session_id, created_at, updated_at) VALUES ($1, $2, $2)
			 ON CONFLICT (session_id) DO NOTHING`, sessionID, now); err != nil {
			return err
		}
		row := tx.QueryRow(ctx, `SELECT `+sessionColumns+` FROM quiz_sessions WHERE session_id = $1 FOR UPDATE`, sessionID)
		session, err := scanSession(row)
		if err != nil {
			return err
		}

		if err := fn(&session); err != nil {
			return err
		}
		session.UpdatedAt = now

		if _, err := tx.Exec(ctx,
			`UPDATE quiz_sessions SET
				display_name = $2,
				assigned_epoch = $3,
				assigned_question_ids = $4,
				answered_question_ids = $5,
				cumulative_score = $6,
				updated_at = $7
			 WHERE session_id = $1`,
			sessionID,
			session.DisplayName,
			int64(session.AssignedEpoch),
			nonNil(session.AssignedQuestionIDs),
			nonNil(session.AnsweredQuestionIDs),
			session.CumulativeScore,
			session.UpdatedAt,
		); err != nil {
			return err
		}
		out = session
		return nil
	})
	if err != nil {
		return domain.ParticipantSession{}, err
	}
	return out, nil
}

func (s *SessionStore) Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT session_id, display_name, cumulative_score FROM quiz_sessions
		 ORDER BY cumulative_score DESC, session_id ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []domain.LeaderboardEntry{}
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.SessionID, &e.DisplayName, &e.Score); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanSession(row pgx.Row) (domain.ParticipantSession, error) {
	var (
		session domain.ParticipantSession
		epoch   int64
	)
	err := row.Scan(
		&session.SessionID,
		&session.DisplayName,
		&epoch,
		&session.AssignedQuestionIDs,
		&session.AnsweredQuestionIDs,
		&session.CumulativeScore,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	session.AssignedEpoch = domain.Epoch(epoch)
	return session, err
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
