package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"docquiz-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuizStore keeps quizzes as JSONB in Postgres, with their source documents
// linked in quiz_sources.
type QuizStore struct {
	pool *pgxpool.Pool
}

func NewQuizStore(pool *pgxpool.Pool) *QuizStore {
	return &QuizStore{pool: pool}
}

func (s *QuizStore) CreateQuiz(ctx context.Context, quiz domain.Quiz) error {
	data, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	return s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO quizzes (id, data, created_at) VALUES ($1, $2::jsonb, $3)`,
			quiz.ID, string(data), quiz.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert quiz: %w", err)
		}
		for i, docID := range quiz.SourceDocumentIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO quiz_sources (quiz_id, document_id, position) VALUES ($1, $2, $3)`,
				quiz.ID, docID, i,
			); err != nil {
				return fmt.Errorf("link quiz source %s: %w", docID, err)
			}
		}
		return nil
	})
}

func (s *QuizStore) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	return quiz, nil
}

func (s *QuizStore) ListQuizzes(ctx context.Context, offset, limit int) ([]domain.Quiz, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM quizzes`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count quizzes: %w", err)
	}
	if offset < 0 || offset >= total {
		return nil, total, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT data FROM quizzes ORDER BY created_at DESC, id DESC OFFSET $1 LIMIT $2`,
		offset, limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	quizzes := make([]domain.Quiz, 0, limit)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, 0, fmt.Errorf("scan quiz: %w", err)
		}
		var quiz domain.Quiz
		if err := json.Unmarshal(raw, &quiz); err != nil {
			return nil, 0, fmt.Errorf("unmarshal quiz: %w", err)
		}
		quizzes = append(quizzes, quiz)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list quizzes: %w", err)
	}
	return quizzes, total, nil
}
