package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"quizhub/internal/app/apiresp"
	"quizhub/internal/auth"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc quizService
}

type quizService interface {
	ListQuizzes(ctx context.Context) ([]QuizSummary, error)
	GetQuiz(ctx context.Context, quizID int64) (*QuizDetail, error)
	StartAttempt(ctx context.Context, userID, quizID int64) (*StartResult, error)
	SubmitAnswer(ctx context.Context, userID, attemptID, questionID, selectedOptionID int64) (bool, error)
	CompleteAttempt(ctx context.Context, userID, attemptID int64) (*CompletionSummary, error)
	GetResults(ctx context.Context, userID, attemptID int64) (*AttemptResults, error)
	GetAttemptStatus(ctx context.Context, userID, attemptID int64) (*AttemptStatus, error)
}

type response struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type submitAnswerRequest struct {
	QuestionID       int64 `json:"question_id"`
	SelectedOptionID int64 `json:"selected_option_id"`
}

func NewHandler(svc quizService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListQuizzes(r.Context())
	if err != nil {
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: items})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	quizID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || quizID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid quiz id"})
		return
	}

	detail, err := h.svc.GetQuiz(r.Context(), quizID)
	if err != nil {
		if errors.Is(err, ErrQuizNotFound) {
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: err.Error()})
			return
		}
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: detail})
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeJSON(w, r, http.StatusUnauthorized, response{OK: false, Error: "unauthorized"})
		return
	}

	quizID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || quizID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid quiz id"})
		return
	}

	result, err := h.svc.StartAttempt(r.Context(), user.ID, quizID)
	if err != nil {
		var conflict *AttemptConflictError
		switch {
		case errors.Is(err, ErrQuizNotFound):
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: err.Error()})
		case errors.As(err, &conflict):
			apiresp.WriteErrorDetails(w, r, http.StatusConflict,
				"you have an incomplete attempt for this quiz",
				map[string]int64{"attempt_id": conflict.AttemptID})
		default:
			writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		}
		return
	}

	writeJSON(w, r, http.StatusOK, response{OK: true, Data: result})
}

func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeJSON(w, r, http.StatusUnauthorized, response{OK: false, Error: "unauthorized"})
		return
	}

	attemptID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || attemptID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid attempt id"})
		return
	}

	var req submitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}
	if req.QuestionID <= 0 || req.SelectedOptionID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "question_id and selected_option_id are required"})
		return
	}

	isCorrect, err := h.svc.SubmitAnswer(r.Context(), user.ID, attemptID, req.QuestionID, req.SelectedOptionID)
	if err != nil {
		switch {
		case errors.Is(err, ErrAttemptNotFound):
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: err.Error()})
		case errors.Is(err, ErrQuestionNotInQuiz), errors.Is(err, ErrOptionNotInQuestion):
			writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: err.Error()})
		default:
			writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		}
		return
	}

	writeJSON(w, r, http.StatusOK, response{OK: true, Data: map[string]bool{"is_correct": isCorrect}})
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeJSON(w, r, http.StatusUnauthorized, response{OK: false, Error: "unauthorized"})
		return
	}

	attemptID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || attemptID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid attempt id"})
		return
	}

	summary, err := h.svc.CompleteAttempt(r.Context(), user.ID, attemptID)
	if err != nil {
		var incomplete *IncompleteError
		switch {
		case errors.Is(err, ErrAttemptNotFound):
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: err.Error()})
		case errors.As(err, &incomplete):
			apiresp.WriteErrorDetails(w, r, http.StatusBadRequest,
				"please answer all questions before completing the quiz",
				map[string]int{"answered": incomplete.Answered, "total": incomplete.Total})
		default:
			writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		}
		return
	}

	writeJSON(w, r, http.StatusOK, response{OK: true, Data: summary})
}

func (h *Handler) Results(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeJSON(w, r, http.StatusUnauthorized, response{OK: false, Error: "unauthorized"})
		return
	}

	attemptID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || attemptID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid attempt id"})
		return
	}

	results, err := h.svc.GetResults(r.Context(), user.ID, attemptID)
	if err != nil {
		if errors.Is(err, ErrAttemptNotFound) {
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: "quiz results not found or quiz not completed"})
			return
		}
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}

	writeJSON(w, r, http.StatusOK, response{OK: true, Data: results})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeJSON(w, r, http.StatusUnauthorized, response{OK: false, Error: "unauthorized"})
		return
	}

	attemptID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || attemptID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid attempt id"})
		return
	}

	status, err := h.svc.GetAttemptStatus(r.Context(), user.ID, attemptID)
	if err != nil {
		if errors.Is(err, ErrAttemptNotFound) {
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: err.Error()})
			return
		}
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}

	writeJSON(w, r, http.StatusOK, response{OK: true, Data: status})
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, payload response) {
	if payload.OK {
		apiresp.WriteOK(w, r, code, payload.Data)
		return
	}
	apiresp.WriteError(w, r, code, payload.Error)
}
