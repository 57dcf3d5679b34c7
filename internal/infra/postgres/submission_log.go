package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"docquiz-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const submissionColumns = `id, quiz_id, user_id, answers, submitted_at, score, total_questions, percentage`

// SubmissionLog is the append-only submissions table.
type SubmissionLog struct {
	pool *pgxpool.Pool
}

func NewSubmissionLog(pool *pgxpool.Pool) *SubmissionLog {
	return &SubmissionLog{pool: pool}
}

func (l *SubmissionLog) AppendSubmission(ctx context.Context, s domain.Submission) error {
	answers, err := json.Marshal(s.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	_, err = l.pool.Exec(ctx,
		`INSERT INTO submissions (`+submissionColumns+`) VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8)`,
		s.ID, s.QuizID, s.UserID, string(answers), s.SubmittedAt, s.Score, s.TotalQuestions, s.Percentage,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (l *SubmissionLog) ScanSubmissions(ctx context.Context, f domain.SubmissionFilter, fn func(domain.Submission) error) error {
	where, args := filterClause(f)
	rows, err := l.pool.Query(ctx, `SELECT `+submissionColumns+` FROM submissions`+where, args...)
	if err != nil {
		return fmt.Errorf("scan submissions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return err
		}
		if err := fn(s); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (l *SubmissionLog) ListSubmissions(ctx context.Context, f domain.SubmissionFilter, offset, limit int) ([]domain.Submission, int, error) {
	where, args := filterClause(f)

	var total int
	if err := l.pool.QueryRow(ctx, `SELECT count(*) FROM submissions`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count submissions: %w", err)
	}
	if offset < 0 || offset >= total {
		return nil, total, nil
	}

	n := len(args)
	args = append(args, offset, limit)
	rows, err := l.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM submissions%s ORDER BY submitted_at DESC, id ASC OFFSET $%d LIMIT $%d`,
			submissionColumns, where, n+1, n+2),
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Submission, 0, limit)
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list submissions: %w", err)
	}
	return out, total, nil
}

func filterClause(f domain.SubmissionFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.QuizID != "" {
		add("quiz_id = $%d", f.QuizID)
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if !f.Range.Start.IsZero() {
		add("submitted_at >= $%d", f.Range.Start)
	}
	if !f.Range.End.IsZero() {
		add("submitted_at <= $%d", f.Range.End)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanSubmission(rows pgx.Rows) (domain.Submission, error) {
	var (
		s       domain.Submission
		answers []byte
	)
	if err := rows.Scan(&s.ID, &s.QuizID, &s.UserID, &answers, &s.SubmittedAt, &s.Score, &s.TotalQuestions, &s.Percentage); err != nil {
		return domain.Submission{}, fmt.Errorf("scan submission: %w", err)
	}
	if err := json.Unmarshal(answers, &s.Answers); err != nil {
		return domain.Submission{}, fmt.Errorf("unmarshal answers: %w", err)
	}
	s.SubmittedAt = s.SubmittedAt.UTC()
	return s, nil
}
