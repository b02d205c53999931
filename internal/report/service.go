package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrQuizNotFound = errors.New("quiz not found")

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

type QuizSummary struct {
	QuizID            int64    `json:"quiz_id"`
	Title             string   `json:"title"`
	Participants      int      `json:"participants"`
	CompletedAttempts int      `json:"completed_attempts"`
	OpenAttempts      int      `json:"open_attempts"`
	AverageScore      *float64 `json:"average_score,omitempty"`
	HighestScore      *int     `json:"highest_score,omitempty"`
	LowestScore       *int     `json:"lowest_score,omitempty"`
	TotalQuestions    int      `json:"total_questions"`
}

// SummaryByQuiz aggregates completed attempts only. Score fields are nil
// until at least one attempt finishes.
func (s *Service) SummaryByQuiz(ctx context.Context, quizID int64) (*QuizSummary, error) {
	var out QuizSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT q.id, q.title,
		       COUNT(DISTINCT qa.user_id) FILTER (WHERE qa.id IS NOT NULL),
		       COUNT(qa.id) FILTER (WHERE qa.completed_at IS NOT NULL),
		       COUNT(qa.id) FILTER (WHERE qa.id IS NOT NULL AND qa.completed_at IS NULL),
		       AVG(qa.score) FILTER (WHERE qa.completed_at IS NOT NULL),
		       MAX(qa.score) FILTER (WHERE qa.completed_at IS NOT NULL),
		       MIN(qa.score) FILTER (WHERE qa.completed_at IS NOT NULL),
		       (SELECT COUNT(*) FROM questions qs WHERE qs.quiz_id = q.id)
		FROM quizzes q
		LEFT JOIN quiz_attempts qa ON qa.quiz_id = q.id
		WHERE q.id = $1
		GROUP BY q.id, q.title
	`, quizID).Scan(
		&out.QuizID, &out.Title,
		&out.Participants, &out.CompletedAttempts, &out.OpenAttempts,
		&out.AverageScore, &out.HighestScore, &out.LowestScore,
		&out.TotalQuestions,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrQuizNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("quiz summary: %w", err)
	}
	return &out, nil
}

func (s *Service) Overview(ctx context.Context) ([]QuizSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT q.id, q.title,
		       COUNT(DISTINCT qa.user_id) FILTER (WHERE qa.id IS NOT NULL),
		       COUNT(qa.id) FILTER (WHERE qa.completed_at IS NOT NULL),
		       COUNT(qa.id) FILTER (WHERE qa.id IS NOT NULL AND qa.completed_at IS NULL),
		       AVG(qa.score) FILTER (WHERE qa.completed_at IS NOT NULL),
		       MAX(qa.score) FILTER (WHERE qa.completed_at IS NOT NULL),
		       MIN(qa.score) FILTER (WHERE qa.completed_at IS NOT NULL),
		       (SELECT COUNT(*) FROM questions qs WHERE qs.quiz_id = q.id)
		FROM quizzes q
		LEFT JOIN quiz_attempts qa ON qa.quiz_id = q.id
		GROUP BY q.id, q.title
		ORDER BY q.id
	`)
	if err != nil {
		return nil, fmt.Errorf("report overview: %w", err)
	}
	defer rows.Close()

	items := make([]QuizSummary, 0)
	for rows.Next() {
		var it QuizSummary
		if err := rows.Scan(
			&it.QuizID, &it.Title,
			&it.Participants, &it.CompletedAttempts, &it.OpenAttempts,
			&it.AverageScore, &it.HighestScore, &it.LowestScore,
			&it.TotalQuestions,
		); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
