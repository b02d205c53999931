package quiz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

type Service struct {
	db *sql.DB
}

type QuizSummary struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Topic         string  `json:"topic"`
	ImageURL      *string `json:"image_url,omitempty"`
	QuestionCount int     `json:"question_count"`
}

type Option struct {
	ID           int64  `json:"id"`
	OptionLetter string `json:"option_letter"`
	OptionText   string `json:"option_text"`
}

type Question struct {
	ID            int64    `json:"id"`
	QuestionText  string   `json:"question_text"`
	QuestionOrder int      `json:"question_order"`
	Options       []Option `json:"options"`
}

type QuizDetail struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Topic       string     `json:"topic"`
	ImageURL    *string    `json:"image_url,omitempty"`
	Questions   []Question `json:"questions"`
}

type Attempt struct {
	ID             int64     `json:"id"`
	QuizID         int64     `json:"quiz_id"`
	UserID         int64     `json:"user_id"`
	StartedAt      time.Time `json:"started_at"`
	TotalQuestions int       `json:"total_questions"`
}

type StartResult struct {
	AttemptID int64       `json:"attempt_id"`
	Attempt   Attempt     `json:"attempt"`
	Quiz      *QuizDetail `json:"quiz"`
}

type CompletionSummary struct {
	AttemptID      int64     `json:"attempt_id"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	CompletedAt    time.Time `json:"completed_at"`
}

type ResultOption struct {
	ID           int64  `json:"id"`
	OptionLetter string `json:"option_letter"`
	OptionText   string `json:"option_text"`
	IsCorrect    bool   `json:"is_correct"`
}

type ResultUserAnswer struct {
	SelectedOptionID     int64  `json:"selected_option_id"`
	SelectedOptionLetter string `json:"selected_option_letter"`
	SelectedOptionText   string `json:"selected_option_text"`
	IsCorrect            bool   `json:"is_correct"`
}

type ResultCorrectAnswer struct {
	OptionID     int64  `json:"option_id"`
	OptionLetter string `json:"option_letter"`
	OptionText   string `json:"option_text"`
}

type ResultQuestion struct {
	QuestionID    int64               `json:"question_id"`
	QuestionText  string              `json:"question_text"`
	QuestionOrder int                 `json:"question_order"`
	Options       []ResultOption      `json:"options"`
	UserAnswer    ResultUserAnswer    `json:"user_answer"`
	CorrectAnswer ResultCorrectAnswer `json:"correct_answer"`
}

type AttemptResults struct {
	AttemptID      int64            `json:"attempt_id"`
	Quiz           QuizRef          `json:"quiz"`
	Score          int              `json:"score"`
	TotalQuestions int              `json:"total_questions"`
	CompletedAt    time.Time        `json:"completed_at"`
	Questions      []ResultQuestion `json:"questions"`
}

type QuizRef struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Topic string `json:"topic"`
}

type AttemptStatus struct {
	AttemptID         int64      `json:"attempt_id"`
	QuizID            int64      `json:"quiz_id"`
	IsCompleted       bool       `json:"is_completed"`
	AnsweredQuestions []int64    `json:"answered_questions"`
	TotalQuestions    int        `json:"total_questions"`
	StartedAt         time.Time  `json:"started_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

type attemptRow struct {
	ID             int64
	UserID         int64
	QuizID         int64
	StartedAt      time.Time
	CompletedAt    sql.NullTime
	Score          sql.NullInt64
	TotalQuestions int
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

func (s *Service) ListQuizzes(ctx context.Context) ([]QuizSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT q.id, q.title, q.description, q.topic, q.image_url, COUNT(qn.id)
		FROM quizzes q
		LEFT JOIN questions qn ON qn.quiz_id = q.id
		WHERE q.is_active = TRUE
		GROUP BY q.id
		ORDER BY q.id
	`)
	if err != nil {
		return nil, fmt.Errorf("query quizzes: %w", err)
	}
	defer rows.Close()

	out := make([]QuizSummary, 0)
	for rows.Next() {
		var q QuizSummary
		var imageURL sql.NullString
		if err := rows.Scan(&q.ID, &q.Title, &q.Description, &q.Topic, &imageURL, &q.QuestionCount); err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		if imageURL.Valid {
			q.ImageURL = &imageURL.String
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quizzes: %w", err)
	}
	return out, nil
}

func (s *Service) GetQuiz(ctx context.Context, quizID int64) (*QuizDetail, error) {
	return s.loadQuizDetail(ctx, s.db, quizID)
}

// StartAttempt creates the attempt ledger row, snapshotting the question
// count so later catalog edits never corrupt historical scoring. The
// partial unique index on open attempts backstops the existence check, so a
// concurrent start for the same (user, quiz) loses the race cleanly and is
// reported as the same conflict.
func (s *Service) StartAttempt(ctx context.Context, userID, quizID int64) (*StartResult, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM quizzes WHERE id = $1 AND is_active = TRUE)
	`, quizID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check quiz: %w", err)
	}
	if !exists {
		return nil, ErrQuizNotFound
	}

	if conflict, err := s.openAttemptConflict(ctx, userID, quizID); err != nil {
		return nil, err
	} else if conflict != nil {
		return nil, conflict
	}

	var attempt Attempt
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO quiz_attempts (user_id, quiz_id, started_at, total_questions)
		SELECT $1, $2, now(), COUNT(*)
		FROM questions
		WHERE quiz_id = $2
		RETURNING id, quiz_id, user_id, started_at, total_questions
	`, userID, quizID).Scan(&attempt.ID, &attempt.QuizID, &attempt.UserID, &attempt.StartedAt, &attempt.TotalQuestions)
	if err != nil {
		if isUniqueViolation(err) {
			// Lost the race to a concurrent start; report the winner.
			if conflict, cerr := s.openAttemptConflict(ctx, userID, quizID); cerr == nil && conflict != nil {
				return nil, conflict
			}
			return nil, fmt.Errorf("insert attempt: %w", err)
		}
		return nil, fmt.Errorf("insert attempt: %w", err)
	}

	detail, err := s.loadQuizDetail(ctx, s.db, quizID)
	if err != nil {
		return nil, err
	}

	return &StartResult{AttemptID: attempt.ID, Attempt: attempt, Quiz: detail}, nil
}

func (s *Service) SubmitAnswer(ctx context.Context, userID, attemptID, questionID, selectedOptionID int64) (bool, error) {
	row, err := s.loadOpenAttempt(ctx, userID, attemptID)
	if err != nil {
		return false, err
	}

	var inQuiz bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM questions WHERE id = $1 AND quiz_id = $2
		)
	`, questionID, row.QuizID).Scan(&inQuiz); err != nil {
		return false, fmt.Errorf("validate question in quiz: %w", err)
	}
	if !inQuiz {
		return false, ErrQuestionNotInQuiz
	}

	var isCorrect bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT is_correct
		FROM question_options
		WHERE id = $1 AND question_id = $2
	`, selectedOptionID, questionID).Scan(&isCorrect); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrOptionNotInQuestion
		}
		return false, fmt.Errorf("validate option in question: %w", err)
	}

	// is_correct is copied from the option at answer time on purpose; it is
	// a historical snapshot that survives later catalog edits.
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_answers (
			quiz_attempt_id, question_id, selected_option_id, is_correct, updated_at
		) VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (quiz_attempt_id, question_id)
		DO UPDATE SET
			selected_option_id = EXCLUDED.selected_option_id,
			is_correct = EXCLUDED.is_correct,
			updated_at = now()
	`, attemptID, questionID, selectedOptionID, isCorrect)
	if err != nil {
		return false, fmt.Errorf("upsert answer: %w", err)
	}

	return isCorrect, nil
}

func (s *Service) CompleteAttempt(ctx context.Context, userID, attemptID int64) (*CompletionSummary, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin complete tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := attemptRow{}
	err = tx.QueryRowContext(ctx, `
		SELECT id, user_id, quiz_id, started_at, completed_at, score, total_questions
		FROM quiz_attempts
		WHERE id = $1 AND user_id = $2 AND completed_at IS NULL
		FOR UPDATE
	`, attemptID, userID).Scan(
		&row.ID, &row.UserID, &row.QuizID, &row.StartedAt, &row.CompletedAt, &row.Score, &row.TotalQuestions,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("load attempt for update: %w", err)
	}

	var answered, correct int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE is_correct)
		FROM user_answers
		WHERE quiz_attempt_id = $1
	`, attemptID).Scan(&answered, &correct); err != nil {
		return nil, fmt.Errorf("count answers: %w", err)
	}

	if answered < row.TotalQuestions {
		return nil, &IncompleteError{Answered: answered, Total: row.TotalQuestions}
	}

	var completedAt time.Time
	if err := tx.QueryRowContext(ctx, `
		UPDATE quiz_attempts
		SET completed_at = now(),
			score = $2
		WHERE id = $1
		RETURNING completed_at
	`, attemptID, correct).Scan(&completedAt); err != nil {
		return nil, fmt.Errorf("finalize attempt: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit complete: %w", err)
	}

	return &CompletionSummary{
		AttemptID:      attemptID,
		Score:          correct,
		TotalQuestions: row.TotalQuestions,
		CompletedAt:    completedAt,
	}, nil
}

func (s *Service) GetResults(ctx context.Context, userID, attemptID int64) (*AttemptResults, error) {
	row := attemptRow{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, quiz_id, started_at, completed_at, score, total_questions
		FROM quiz_attempts
		WHERE id = $1 AND user_id = $2 AND completed_at IS NOT NULL
	`, attemptID, userID).Scan(
		&row.ID, &row.UserID, &row.QuizID, &row.StartedAt, &row.CompletedAt, &row.Score, &row.TotalQuestions,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("load completed attempt: %w", err)
	}

	var quiz QuizRef
	if err := s.db.QueryRowContext(ctx, `
		SELECT id, title, topic FROM quizzes WHERE id = $1
	`, row.QuizID).Scan(&quiz.ID, &quiz.Title, &quiz.Topic); err != nil {
		return nil, fmt.Errorf("load quiz ref: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			qn.id, qn.question_text, qn.question_order,
			ua.selected_option_id, ua.is_correct,
			o.id, o.option_letter, o.option_text, o.is_correct
		FROM questions qn
		JOIN user_answers ua
			ON ua.question_id = qn.id
			AND ua.quiz_attempt_id = $1
		JOIN question_options o ON o.question_id = qn.id
		WHERE qn.quiz_id = $2
		ORDER BY qn.question_order, o.option_letter
	`, attemptID, row.QuizID)
	if err != nil {
		return nil, fmt.Errorf("query result rows: %w", err)
	}
	defer rows.Close()

	questions := make([]ResultQuestion, 0, row.TotalQuestions)
	var current *ResultQuestion
	for rows.Next() {
		var (
			questionID       int64
			questionText     string
			questionOrder    int
			selectedOptionID int64
			answerCorrect    bool
			opt              ResultOption
		)
		if err := rows.Scan(
			&questionID, &questionText, &questionOrder,
			&selectedOptionID, &answerCorrect,
			&opt.ID, &opt.OptionLetter, &opt.OptionText, &opt.IsCorrect,
		); err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}

		if current == nil || current.QuestionID != questionID {
			questions = append(questions, ResultQuestion{
				QuestionID:    questionID,
				QuestionText:  questionText,
				QuestionOrder: questionOrder,
				UserAnswer: ResultUserAnswer{
					SelectedOptionID: selectedOptionID,
					IsCorrect:        answerCorrect,
				},
			})
			current = &questions[len(questions)-1]
		}

		current.Options = append(current.Options, opt)
		if opt.ID == current.UserAnswer.SelectedOptionID {
			current.UserAnswer.SelectedOptionLetter = opt.OptionLetter
			current.UserAnswer.SelectedOptionText = opt.OptionText
		}
		if opt.IsCorrect {
			current.CorrectAnswer = ResultCorrectAnswer{
				OptionID:     opt.ID,
				OptionLetter: opt.OptionLetter,
				OptionText:   opt.OptionText,
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate result rows: %w", err)
	}

	score := 0
	if row.Score.Valid {
		score = int(row.Score.Int64)
	}

	return &AttemptResults{
		AttemptID:      row.ID,
		Quiz:           quiz,
		Score:          score,
		TotalQuestions: row.TotalQuestions,
		CompletedAt:    row.CompletedAt.Time,
		Questions:      questions,
	}, nil
}

func (s *Service) GetAttemptStatus(ctx context.Context, userID, attemptID int64) (*AttemptStatus, error) {
	row := attemptRow{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, quiz_id, started_at, completed_at, score, total_questions
		FROM quiz_attempts
		WHERE id = $1 AND user_id = $2
	`, attemptID, userID).Scan(
		&row.ID, &row.UserID, &row.QuizID, &row.StartedAt, &row.CompletedAt, &row.Score, &row.TotalQuestions,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("load attempt: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT question_id
		FROM user_answers
		WHERE quiz_attempt_id = $1
		ORDER BY question_id
	`, attemptID)
	if err != nil {
		return nil, fmt.Errorf("query answered questions: %w", err)
	}
	defer rows.Close()

	answered := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan answered question: %w", err)
		}
		answered = append(answered, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answered questions: %w", err)
	}

	status := &AttemptStatus{
		AttemptID:         row.ID,
		QuizID:            row.QuizID,
		IsCompleted:       row.CompletedAt.Valid,
		AnsweredQuestions: answered,
		TotalQuestions:    row.TotalQuestions,
		StartedAt:         row.StartedAt,
	}
	if row.CompletedAt.Valid {
		status.CompletedAt = &row.CompletedAt.Time
	}
	return status, nil
}

func (s *Service) openAttemptConflict(ctx context.Context, userID, quizID int64) (*AttemptConflictError, error) {
	var existingID int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id
		FROM quiz_attempts
		WHERE user_id = $1 AND quiz_id = $2 AND completed_at IS NULL
	`, userID, quizID).Scan(&existingID)
	if err == nil {
		return &AttemptConflictError{AttemptID: existingID}, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return nil, fmt.Errorf("query existing attempt: %w", err)
}

func (s *Service) loadOpenAttempt(ctx context.Context, userID, attemptID int64) (*attemptRow, error) {
	row := &attemptRow{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, quiz_id, started_at, completed_at, score, total_questions
		FROM quiz_attempts
		WHERE id = $1 AND user_id = $2 AND completed_at IS NULL
	`, attemptID, userID).Scan(
		&row.ID, &row.UserID, &row.QuizID, &row.StartedAt, &row.CompletedAt, &row.Score, &row.TotalQuestions,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("load open attempt: %w", err)
	}
	return row, nil
}

type queryable interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (s *Service) loadQuizDetail(ctx context.Context, q queryable, quizID int64) (*QuizDetail, error) {
	detail := &QuizDetail{}
	var imageURL sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT id, title, description, topic, image_url
		FROM quizzes
		WHERE id = $1 AND is_active = TRUE
	`, quizID).Scan(&detail.ID, &detail.Title, &detail.Description, &detail.Topic, &imageURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("load quiz: %w", err)
	}
	if imageURL.Valid {
		detail.ImageURL = &imageURL.String
	}

	rows, err := q.QueryContext(ctx, `
		SELECT qn.id, qn.question_text, qn.question_order,
		       o.id, o.option_letter, o.option_text
		FROM questions qn
		JOIN question_options o ON o.question_id = qn.id
		WHERE qn.quiz_id = $1
		ORDER BY qn.question_order, o.option_letter
	`, quizID)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var current *Question
	for rows.Next() {
		var (
			questionID    int64
			questionText  string
			questionOrder int
			opt           Option
		)
		if err := rows.Scan(&questionID, &questionText, &questionOrder, &opt.ID, &opt.OptionLetter, &opt.OptionText); err != nil {
			return nil, fmt.Errorf("scan question row: %w", err)
		}
		if current == nil || current.ID != questionID {
			detail.Questions = append(detail.Questions, Question{
				ID:            questionID,
				QuestionText:  questionText,
				QuestionOrder: questionOrder,
			})
			current = &detail.Questions[len(detail.Questions)-1]
		}
		current.Options = append(current.Options, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate question rows: %w", err)
	}

	return detail, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
