package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"hourly-quiz-service/internal/domain"
)

// QuestionLoader loads the catalog from the questions table.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, prompt, options, correct_option FROM questions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.Prompt, &q.Options, &q.CorrectOption); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// SeedIfEmpty inserts questions when the table has none and reports how many
// rows were written. Existing catalogs are left untouched.
func SeedIfEmpty(ctx context.Context, pool *pgxpool.Pool, questions []domain.Question) (int, error) {
	inserted := 0
	err := pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		// serialize concurrent seeders on the same database
		if _, err := tx.Exec(ctx, `LOCK TABLE questions IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return err
		}
		var count int
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM questions`).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for _, q := range questions {
			batch.Queue(`INSERT INTO questions (id, prompt, options, correct_option) VALUES ($1, $2, $3, $4)`,
				q.ID, q.Prompt, q.Options, q.CorrectOption)
		}
		results := tx.SendBatch(ctx, batch)
		for range questions {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return err
			}
		}
		if err := results.Close(); err != nil {
			return err
		}
		inserted = len(questions)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("seed questions: %w", err)
	}
	return inserted, nil
}
