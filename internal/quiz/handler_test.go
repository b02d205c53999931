package quiz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quizhub/internal/auth"

	"github.com/go-chi/chi/v5"
)

type mockQuizService struct {
	listQuizzesFn      func(ctx context.Context) ([]QuizSummary, error)
	getQuizFn          func(ctx context.Context, quizID int64) (*QuizDetail, error)
	startAttemptFn     func(ctx context.Context, userID, quizID int64) (*StartResult, error)
	submitAnswerFn     func(ctx context.Context, userID, attemptID, questionID, selectedOptionID int64) (bool, error)
	completeAttemptFn  func(ctx context.Context, userID, attemptID int64) (*CompletionSummary, error)
	getResultsFn       func(ctx context.Context, userID, attemptID int64) (*AttemptResults, error)
	getAttemptStatusFn func(ctx context.Context, userID, attemptID int64) (*AttemptStatus, error)
}

func (m *mockQuizService) ListQuizzes(ctx context.Context) ([]QuizSummary, error) {
	if m.listQuizzesFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.listQuizzesFn(ctx)
}

func (m *mockQuizService) GetQuiz(ctx context.Context, quizID int64) (*QuizDetail, error) {
	if m.getQuizFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.getQuizFn(ctx, quizID)
}

func (m *mockQuizService) StartAttempt(ctx context.Context, userID, quizID int64) (*StartResult, error) {
	if m.startAttemptFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.startAttemptFn(ctx, userID, quizID)
}

func (m *mockQuizService) SubmitAnswer(ctx context.Context, userID, attemptID, questionID, selectedOptionID int64) (bool, error) {
	if m.submitAnswerFn == nil {
		return false, errors.New("not implemented")
	}
	return m.submitAnswerFn(ctx, userID, attemptID, questionID, selectedOptionID)
}

func (m *mockQuizService) CompleteAttempt(ctx context.Context, userID, attemptID int64) (*CompletionSummary, error) {
	if m.completeAttemptFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.completeAttemptFn(ctx, userID, attemptID)
}

func (m *mockQuizService) GetResults(ctx context.Context, userID, attemptID int64) (*AttemptResults, error) {
	if m.getResultsFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.getResultsFn(ctx, userID, attemptID)
}

func (m *mockQuizService) GetAttemptStatus(ctx context.Context, userID, attemptID int64) (*AttemptStatus, error) {
	if m.getAttemptStatusFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.getAttemptStatusFn(ctx, userID, attemptID)
}

func withChiParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func withUser(r *http.Request, userID int64) *http.Request {
	return r.WithContext(auth.ContextWithUser(r.Context(), &auth.User{ID: userID, Role: "user"}))
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestListQuizzes(t *testing.T) {
	h := NewHandler(&mockQuizService{
		listQuizzesFn: func(ctx context.Context) ([]QuizSummary, error) {
			return []QuizSummary{
				{ID: 1, Title: "Test Quiz", QuestionCount: 10},
				{ID: 2, Title: "Basic Physics Quiz", QuestionCount: 5},
			}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/quizzes", nil)
	w := httptest.NewRecorder()

	h.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	items, ok := body["data"].([]interface{})
	if !ok || len(items) != 2 {
		t.Fatalf("expected 2 quizzes, got %v", body["data"])
	}
}

func TestGetQuizNotFound(t *testing.T) {
	h := NewHandler(&mockQuizService{
		getQuizFn: func(ctx context.Context, quizID int64) (*QuizDetail, error) {
			return nil, ErrQuizNotFound
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/quiz/99", nil)
	req = withChiParam(req, "id", "99")
	w := httptest.NewRecorder()

	h.Get(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestGetQuizRejectsBadID(t *testing.T) {
	called := false
	h := NewHandler(&mockQuizService{
		getQuizFn: func(ctx context.Context, quizID int64) (*QuizDetail, error) {
			called = true
			return nil, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/quiz/abc", nil)
	req = withChiParam(req, "id", "abc")
	w := httptest.NewRecorder()

	h.Get(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if called {
		t.Fatalf("service should not be called for an invalid id")
	}
}

func TestStartAttemptConflictReturnsExistingAttemptID(t *testing.T) {
	h := NewHandler(&mockQuizService{
		startAttemptFn: func(ctx context.Context, userID, quizID int64) (*StartResult, error) {
			return nil, &AttemptConflictError{AttemptID: 42}
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/quiz/1/start", nil)
	req = withChiParam(req, "id", "1")
	req = withUser(req, 7)
	w := httptest.NewRecorder()

	h.Start(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	body := decodeBody(t, w)
	errObj, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object, got %v", body["error"])
	}
	details, ok := errObj["details"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error details, got %v", errObj)
	}
	if details["attempt_id"] != float64(42) {
		t.Fatalf("expected attempt_id 42 in details, got %v", details["attempt_id"])
	}
}

func TestStartAttemptPassesSessionUserID(t *testing.T) {
	var gotUserID, gotQuizID int64
	h := NewHandler(&mockQuizService{
		startAttemptFn: func(ctx context.Context, userID, quizID int64) (*StartResult, error) {
			gotUserID = userID
			gotQuizID = quizID
			return &StartResult{
				AttemptID: 5,
				Attempt:   Attempt{ID: 5, QuizID: quizID, UserID: userID, StartedAt: time.Now(), TotalQuestions: 10},
				Quiz:      &QuizDetail{ID: quizID, Title: "Test Quiz"},
			}, nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/quiz/3/start", nil)
	req = withChiParam(req, "id", "3")
	req = withUser(req, 15)
	w := httptest.NewRecorder()

	h.Start(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if gotUserID != 15 || gotQuizID != 3 {
		t.Fatalf("expected user 15 quiz 3, got user %d quiz %d", gotUserID, gotQuizID)
	}
}

func TestStartAttemptRequiresAuth(t *testing.T) {
	h := NewHandler(&mockQuizService{})

	req := httptest.NewRequest(http.MethodPost, "/api/quiz/1/start", nil)
	req = withChiParam(req, "id", "1")
	w := httptest.NewRecorder()

	h.Start(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestSubmitAnswerReturnsIsCorrect(t *testing.T) {
	var gotQuestionID, gotOptionID int64
	h := NewHandler(&mockQuizService{
		submitAnswerFn: func(ctx context.Context, userID, attemptID, questionID, selectedOptionID int64) (bool, error) {
			gotQuestionID = questionID
			gotOptionID = selectedOptionID
			return true, nil
		},
	})

	payload := []byte(`{"question_id":12,"selected_option_id":48}`)
	req := httptest.NewRequest(http.MethodPost, "/api/quiz-attempt/5/answer", bytes.NewReader(payload))
	req = withChiParam(req, "id", "5")
	req = withUser(req, 7)
	w := httptest.NewRecorder()

	h.SubmitAnswer(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if gotQuestionID != 12 || gotOptionID != 48 {
		t.Fatalf("expected question 12 option 48, got %d/%d", gotQuestionID, gotOptionID)
	}
	body := decodeBody(t, w)
	data, ok := body["data"].(map[string]interface{})
	if !ok || data["is_correct"] != true {
		t.Fatalf("expected is_correct true, got %v", body["data"])
	}
}

func TestSubmitAnswerOtherUsersAttemptIsNotFound(t *testing.T) {
	h := NewHandler(&mockQuizService{
		submitAnswerFn: func(ctx context.Context, userID, attemptID, questionID, selectedOptionID int64) (bool, error) {
			return false, ErrAttemptNotFound
		},
	})

	payload := []byte(`{"question_id":1,"selected_option_id":2}`)
	req := httptest.NewRequest(http.MethodPost, "/api/quiz-attempt/5/answer", bytes.NewReader(payload))
	req = withChiParam(req, "id", "5")
	req = withUser(req, 99)
	w := httptest.NewRecorder()

	h.SubmitAnswer(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another user's attempt, got %d", w.Code)
	}
}

func TestSubmitAnswerBadReferences(t *testing.T) {
	for _, svcErr := range []error{ErrQuestionNotInQuiz, ErrOptionNotInQuestion} {
		h := NewHandler(&mockQuizService{
			submitAnswerFn: func(ctx context.Context, userID, attemptID, questionID, selectedOptionID int64) (bool, error) {
				return false, svcErr
			},
		})

		payload := []byte(`{"question_id":1,"selected_option_id":2}`)
		req := httptest.NewRequest(http.MethodPost, "/api/quiz-attempt/5/answer", bytes.NewReader(payload))
		req = withChiParam(req, "id", "5")
		req = withUser(req, 7)
		w := httptest.NewRecorder()

		h.SubmitAnswer(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %v, got %d", svcErr, w.Code)
		}
	}
}

func TestSubmitAnswerRejectsMissingFields(t *testing.T) {
	called := false
	h := NewHandler(&mockQuizService{
		submitAnswerFn: func(ctx context.Context, userID, attemptID, questionID, selectedOptionID int64) (bool, error) {
			called = true
			return false, nil
		},
	})

	payload := []byte(`{"question_id":1}`)
	req := httptest.NewRequest(http.MethodPost, "/api/quiz-attempt/5/answer", bytes.NewReader(payload))
	req = withChiParam(req, "id", "5")
	req = withUser(req, 7)
	w := httptest.NewRecorder()

	h.SubmitAnswer(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if called {
		t.Fatalf("service should not be called with missing fields")
	}
}

func TestCompleteIncompleteAttemptReportsProgress(t *testing.T) {
	h := NewHandler(&mockQuizService{
		completeAttemptFn: func(ctx context.Context, userID, attemptID int64) (*CompletionSummary, error) {
			return nil, &IncompleteError{Answered: 3, Total: 10}
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/quiz-attempt/5/complete", nil)
	req = withChiParam(req, "id", "5")
	req = withUser(req, 7)
	w := httptest.NewRecorder()

	h.Complete(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	body := decodeBody(t, w)
	errObj, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object, got %v", body["error"])
	}
	details, ok := errObj["details"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error details, got %v", errObj)
	}
	if details["answered"] != float64(3) || details["total"] != float64(10) {
		t.Fatalf("expected answered=3 total=10, got %v", details)
	}
}

func TestCompleteReturnsScore(t *testing.T) {
	now := time.Now()
	h := NewHandler(&mockQuizService{
		completeAttemptFn: func(ctx context.Context, userID, attemptID int64) (*CompletionSummary, error) {
			return &CompletionSummary{AttemptID: attemptID, Score: 3, TotalQuestions: 5, CompletedAt: now}, nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/quiz-attempt/8/complete", nil)
	req = withChiParam(req, "id", "8")
	req = withUser(req, 7)
	w := httptest.NewRecorder()

	h.Complete(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	data, ok := body["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected data object, got %v", body["data"])
	}
	if data["score"] != float64(3) || data["total_questions"] != float64(5) {
		t.Fatalf("expected score 3 of 5, got %v", data)
	}
}

func TestResultsNotFoundWhenIncomplete(t *testing.T) {
	h := NewHandler(&mockQuizService{
		getResultsFn: func(ctx context.Context, userID, attemptID int64) (*AttemptResults, error) {
			return nil, ErrAttemptNotFound
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/quiz-attempt/5/results", nil)
	req = withChiParam(req, "id", "5")
	req = withUser(req, 7)
	w := httptest.NewRecorder()

	h.Results(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestStatusReturnsAnsweredQuestions(t *testing.T) {
	h := NewHandler(&mockQuizService{
		getAttemptStatusFn: func(ctx context.Context, userID, attemptID int64) (*AttemptStatus, error) {
			return &AttemptStatus{
				AttemptID:         attemptID,
				QuizID:            2,
				IsCompleted:       false,
				AnsweredQuestions: []int64{11, 13},
				TotalQuestions:    5,
				StartedAt:         time.Now(),
			}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/quiz-attempt/5/status", nil)
	req = withChiParam(req, "id", "5")
	req = withUser(req, 7)
	w := httptest.NewRecorder()

	h.Status(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	data, ok := body["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected data object, got %v", body["data"])
	}
	answered, ok := data["answered_questions"].([]interface{})
	if !ok || len(answered) != 2 {
		t.Fatalf("expected 2 answered questions, got %v", data["answered_questions"])
	}
	if data["is_completed"] != false {
		t.Fatalf("expected is_completed false, got %v", data["is_completed"])
	}
}
