package quiz

import (
	"errors"
	"fmt"
)

var (
	ErrQuizNotFound = errors.New("quiz not found")

	// ErrAttemptNotFound deliberately covers "does not exist", "belongs to
	// another user" and, for mutating operations, "already completed". The
	// API never distinguishes those cases to the caller.
	ErrAttemptNotFound = errors.New("quiz attempt not found or already completed")

	ErrQuestionNotInQuiz   = errors.New("question does not belong to this quiz")
	ErrOptionNotInQuestion = errors.New("option does not belong to this question")
)

// AttemptConflictError reports an existing incomplete attempt for the same
// (user, quiz). The id lets the client resume instead of duplicating.
type AttemptConflictError struct {
	AttemptID int64
}

func (e *AttemptConflictError) Error() string {
	return fmt.Sprintf("incomplete attempt %d already exists for this quiz", e.AttemptID)
}

// IncompleteError rejects completion while questions remain unanswered.
type IncompleteError struct {
	Answered int
	Total    int
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("attempt has %d of %d questions answered", e.Answered, e.Total)
}
