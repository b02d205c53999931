package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrQuizNotFound = errors.New("quiz not found")
	ErrTitleTaken   = errors.New("a quiz with this title already exists")
)

// ValidationError reports a rejected question payload. Row is 1-based and
// refers to the question position in the submitted set.
type ValidationError struct {
	Row    int
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("question %d: %s", e.Row, e.Reason)
}

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

type AdminQuiz struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Topic         string    `json:"topic"`
	ImageURL      *string   `json:"image_url,omitempty"`
	IsActive      bool      `json:"is_active"`
	QuestionCount int       `json:"question_count"`
	AttemptCount  int       `json:"attempt_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type CreateQuizInput struct {
	Title       string
	Description string
	Topic       string
	ImageURL    *string
}

type UpdateQuizInput struct {
	ID          int64
	Title       string
	Description string
	Topic       string
	ImageURL    *string
	IsActive    bool
}

type OptionInput struct {
	OptionLetter string `json:"option_letter"`
	OptionText   string `json:"option_text"`
	IsCorrect    bool   `json:"is_correct"`
}

type QuestionInput struct {
	QuestionText string        `json:"question_text"`
	Options      []OptionInput `json:"options"`
}

type AdminOption struct {
	ID           int64  `json:"id"`
	OptionLetter string `json:"option_letter"`
	OptionText   string `json:"option_text"`
	IsCorrect    bool   `json:"is_correct"`
}

type AdminQuestion struct {
	ID            int64         `json:"id"`
	QuestionText  string        `json:"question_text"`
	QuestionOrder int           `json:"question_order"`
	Options       []AdminOption `json:"options"`
}

type QuizAttemptRecord struct {
	AttemptID      int64      `json:"attempt_id"`
	UserID         int64      `json:"user_id"`
	UserEmail      string     `json:"user_email"`
	UserFullName   string     `json:"user_full_name"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Score          *int       `json:"score,omitempty"`
	TotalQuestions int        `json:"total_questions"`
}

func (s *Service) ListQuizzes(ctx context.Context, includeInactive bool) ([]AdminQuiz, error) {
	query := `
		SELECT q.id, q.title, q.description, q.topic, q.image_url, q.is_active,
		       q.created_at, q.updated_at,
		       (SELECT COUNT(*) FROM questions qs WHERE qs.quiz_id = q.id) AS question_count,
		       (SELECT COUNT(*) FROM quiz_attempts qa WHERE qa.quiz_id = q.id) AS attempt_count
		FROM quizzes q
	`
	if !includeInactive {
		query += ` WHERE q.is_active = TRUE`
	}
	query += ` ORDER BY q.id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	items := make([]AdminQuiz, 0)
	for rows.Next() {
		var it AdminQuiz
		if err := rows.Scan(
			&it.ID, &it.Title, &it.Description, &it.Topic, &it.ImageURL, &it.IsActive,
			&it.CreatedAt, &it.UpdatedAt, &it.QuestionCount, &it.AttemptCount,
		); err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Service) CreateQuiz(ctx context.Context, in CreateQuizInput) (*AdminQuiz, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, errors.New("title is required")
	}

	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM quizzes WHERE lower(title) = lower($1))
	`, title).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check title: %w", err)
	}
	if exists {
		return nil, ErrTitleTaken
	}

	var it AdminQuiz
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO quizzes (title, description, topic, image_url, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id, title, description, topic, image_url, is_active, created_at, updated_at
	`, title, strings.TrimSpace(in.Description), strings.TrimSpace(in.Topic), in.ImageURL).Scan(
		&it.ID, &it.Title, &it.Description, &it.Topic, &it.ImageURL, &it.IsActive,
		&it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert quiz: %w", err)
	}
	return &it, nil
}

func (s *Service) UpdateQuiz(ctx context.Context, in UpdateQuizInput) (*AdminQuiz, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, errors.New("title is required")
	}

	var it AdminQuiz
	err := s.db.QueryRowContext(ctx, `
		UPDATE quizzes
		SET title = $2, description = $3, topic = $4, image_url = $5,
		    is_active = $6, updated_at = now()
		WHERE id = $1
		RETURNING id, title, description, topic, image_url, is_active, created_at, updated_at
	`, in.ID, title, strings.TrimSpace(in.Description), strings.TrimSpace(in.Topic), in.ImageURL, in.IsActive).Scan(
		&it.ID, &it.Title, &it.Description, &it.Topic, &it.ImageURL, &it.IsActive,
		&it.CreatedAt, &it.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrQuizNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update quiz: %w", err)
	}
	return &it, nil
}

// DeactivateQuiz hides a quiz from the public catalog. Attempt history
// stays intact, which is why quizzes are never hard-deleted.
func (s *Service) DeactivateQuiz(ctx context.Context, quizID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE quizzes SET is_active = FALSE, updated_at = now() WHERE id = $1
	`, quizID)
	if err != nil {
		return fmt.Errorf("deactivate quiz: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate quiz: %w", err)
	}
	if affected == 0 {
		return ErrQuizNotFound
	}
	return nil
}

func (s *Service) ListQuestions(ctx context.Context, quizID int64) ([]AdminQuestion, error) {
	if err := s.quizExists(ctx, quizID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT q.id, q.question_text, q.question_order,
		       o.id, o.option_letter, o.option_text, o.is_correct
		FROM questions q
		JOIN question_options o ON o.question_id = q.id
		WHERE q.quiz_id = $1
		ORDER BY q.question_order, o.option_letter
	`, quizID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	items := make([]AdminQuestion, 0)
	var current *AdminQuestion
	for rows.Next() {
		var (
			qID    int64
			qText  string
			qOrder int
			opt    AdminOption
		)
		if err := rows.Scan(&qID, &qText, &qOrder, &opt.ID, &opt.OptionLetter, &opt.OptionText, &opt.IsCorrect); err != nil {
			return nil, fmt.Errorf("scan question row: %w", err)
		}
		if current == nil || current.ID != qID {
			items = append(items, AdminQuestion{ID: qID, QuestionText: qText, QuestionOrder: qOrder, Options: make([]AdminOption, 0, 4)})
			current = &items[len(items)-1]
		}
		current.Options = append(current.Options, opt)
	}
	return items, rows.Err()
}

// ReplaceQuestions swaps the full question set of a quiz in one
// transaction. Stored answers cascade away with the old questions, so
// editing a quiz that already has attempts rewrites its history.
func (s *Service) ReplaceQuestions(ctx context.Context, quizID int64, questions []QuestionInput) ([]AdminQuestion, error) {
	if err := validateQuestions(questions); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM quizzes WHERE id = $1)
	`, quizID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check quiz: %w", err)
	}
	if !exists {
		return nil, ErrQuizNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE quiz_id = $1`, quizID); err != nil {
		return nil, fmt.Errorf("delete old questions: %w", err)
	}

	for i, q := range questions {
		var questionID int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO questions (quiz_id, question_text, question_order)
			VALUES ($1, $2, $3)
			RETURNING id
		`, quizID, strings.TrimSpace(q.QuestionText), i+1).Scan(&questionID)
		if err != nil {
			return nil, fmt.Errorf("insert question %d: %w", i+1, err)
		}
		for _, opt := range q.Options {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO question_options (question_id, option_letter, option_text, is_correct)
				VALUES ($1, $2, $3, $4)
			`, questionID, strings.ToLower(strings.TrimSpace(opt.OptionLetter)), strings.TrimSpace(opt.OptionText), opt.IsCorrect)
			if err != nil {
				return nil, fmt.Errorf("insert option %s for question %d: %w", opt.OptionLetter, i+1, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE quizzes SET updated_at = now() WHERE id = $1`, quizID); err != nil {
		return nil, fmt.Errorf("touch quiz: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return s.ListQuestions(ctx, quizID)
}

func (s *Service) ListQuizAttempts(ctx context.Context, quizID int64) ([]QuizAttemptRecord, error) {
	if err := s.quizExists(ctx, quizID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT qa.id, u.id, u.email, u.full_name,
		       qa.started_at, qa.completed_at, qa.score, qa.total_questions
		FROM quiz_attempts qa
		JOIN users u ON u.id = qa.user_id
		WHERE qa.quiz_id = $1
		ORDER BY qa.started_at DESC
	`, quizID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	items := make([]QuizAttemptRecord, 0)
	for rows.Next() {
		var it QuizAttemptRecord
		if err := rows.Scan(
			&it.AttemptID, &it.UserID, &it.UserEmail, &it.UserFullName,
			&it.StartedAt, &it.CompletedAt, &it.Score, &it.TotalQuestions,
		); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Service) quizExists(ctx context.Context, quizID int64) error {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM quizzes WHERE id = $1)
	`, quizID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check quiz: %w", err)
	}
	if !exists {
		return ErrQuizNotFound
	}
	return nil
}

func validateQuestions(questions []QuestionInput) error {
	if len(questions) == 0 {
		return errors.New("at least one question is required")
	}
	for i, q := range questions {
		row := i + 1
		if strings.TrimSpace(q.QuestionText) == "" {
			return &ValidationError{Row: row, Reason: "question text is required"}
		}
		if len(q.Options) < 2 {
			return &ValidationError{Row: row, Reason: "at least two options are required"}
		}
		correct := 0
		letters := map[string]bool{}
		for _, opt := range q.Options {
			letter := strings.ToLower(strings.TrimSpace(opt.OptionLetter))
			if letter == "" {
				return &ValidationError{Row: row, Reason: "option letter is required"}
			}
			if letters[letter] {
				return &ValidationError{Row: row, Reason: fmt.Sprintf("duplicate option letter %q", letter)}
			}
			letters[letter] = true
			if strings.TrimSpace(opt.OptionText) == "" {
				return &ValidationError{Row: row, Reason: fmt.Sprintf("option %s text is required", letter)}
			}
			if opt.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return &ValidationError{Row: row, Reason: fmt.Sprintf("exactly one correct option is required, got %d", correct)}
		}
	}
	return nil
}
