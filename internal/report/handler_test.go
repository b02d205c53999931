package report

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

type mockReportService struct {
	summaryByQuizFn func(ctx context.Context, quizID int64) (*QuizSummary, error)
	overviewFn      func(ctx context.Context) ([]QuizSummary, error)
}

func (m *mockReportService) SummaryByQuiz(ctx context.Context, quizID int64) (*QuizSummary, error) {
	if m.summaryByQuizFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.summaryByQuizFn(ctx, quizID)
}

func (m *mockReportService) Overview(ctx context.Context) ([]QuizSummary, error) {
	if m.overviewFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.overviewFn(ctx)
}

func withChiParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestQuizSummary(t *testing.T) {
	avg := 3.4
	h := NewHandler(&mockReportService{
		summaryByQuizFn: func(ctx context.Context, quizID int64) (*QuizSummary, error) {
			return &QuizSummary{QuizID: quizID, Title: "Test Quiz", CompletedAttempts: 5, AverageScore: &avg, TotalQuestions: 5}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/reports/quiz/2", nil)
	req = withChiParam(req, "id", "2")
	w := httptest.NewRecorder()

	h.QuizSummary(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	data, ok := body["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected data object, got %v", body["data"])
	}
	if data["average_score"] != 3.4 || data["completed_attempts"] != float64(5) {
		t.Fatalf("unexpected summary payload: %v", data)
	}
}

func TestQuizSummaryNotFound(t *testing.T) {
	h := NewHandler(&mockReportService{
		summaryByQuizFn: func(ctx context.Context, quizID int64) (*QuizSummary, error) {
			return nil, ErrQuizNotFound
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/reports/quiz/99", nil)
	req = withChiParam(req, "id", "99")
	w := httptest.NewRecorder()

	h.QuizSummary(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
