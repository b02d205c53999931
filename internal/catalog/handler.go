package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"quizhub/internal/app/apiresp"

	"github.com/go-chi/chi/v5"
)

const maxImportBytes = 8 << 20

type Handler struct {
	svc catalogService
}

type catalogService interface {
	ListQuizzes(ctx context.Context, includeInactive bool) ([]AdminQuiz, error)
	CreateQuiz(ctx context.Context, in CreateQuizInput) (*AdminQuiz, error)
	UpdateQuiz(ctx context.Context, in UpdateQuizInput) (*AdminQuiz, error)
	DeactivateQuiz(ctx context.Context, quizID int64) error
	ListQuestions(ctx context.Context, quizID int64) ([]AdminQuestion, error)
	ReplaceQuestions(ctx context.Context, quizID int64, questions []QuestionInput) ([]AdminQuestion, error)
	ListQuizAttempts(ctx context.Context, quizID int64) ([]QuizAttemptRecord, error)
	ImportQuestionsExcel(ctx context.Context, quizID int64, r io.Reader) (*QuestionImportReport, error)
	ExportQuestionsExcel(ctx context.Context, quizID int64) ([]byte, error)
}

type quizRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Topic       string  `json:"topic"`
	ImageURL    *string `json:"image_url"`
	IsActive    *bool   `json:"is_active"`
}

type replaceQuestionsRequest struct {
	Questions []QuestionInput `json:"questions"`
}

func NewHandler(svc catalogService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "1"
	items, err := h.svc.ListQuizzes(r.Context(), includeInactive)
	if err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, items)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req quizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.svc.CreateQuiz(r.Context(), CreateQuizInput{
		Title:       req.Title,
		Description: req.Description,
		Topic:       req.Topic,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		if errors.Is(err, ErrTitleTaken) {
			apiresp.WriteError(w, r, http.StatusConflict, err.Error())
			return
		}
		apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	apiresp.WriteOK(w, r, http.StatusCreated, created)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	quizID, ok := parseQuizID(w, r)
	if !ok {
		return
	}

	var req quizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	updated, err := h.svc.UpdateQuiz(r.Context(), UpdateQuizInput{
		ID:          quizID,
		Title:       req.Title,
		Description: req.Description,
		Topic:       req.Topic,
		ImageURL:    req.ImageURL,
		IsActive:    isActive,
	})
	if err != nil {
		if errors.Is(err, ErrQuizNotFound) {
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
			return
		}
		apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, updated)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	quizID, ok := parseQuizID(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeactivateQuiz(r.Context(), quizID); err != nil {
		if errors.Is(err, ErrQuizNotFound) {
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
			return
		}
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, map[string]bool{"deactivated": true})
}

func (h *Handler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	quizID, ok := parseQuizID(w, r)
	if !ok {
		return
	}

	items, err := h.svc.ListQuestions(r.Context(), quizID)
	if err != nil {
		if errors.Is(err, ErrQuizNotFound) {
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
			return
		}
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, items)
}

func (h *Handler) ReplaceQuestions(w http.ResponseWriter, r *http.Request) {
	quizID, ok := parseQuizID(w, r)
	if !ok {
		return
	}

	var req replaceQuestionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	items, err := h.svc.ReplaceQuestions(r.Context(), quizID, req.Questions)
	if err != nil {
		var vErr *ValidationError
		switch {
		case errors.Is(err, ErrQuizNotFound):
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
		case errors.As(err, &vErr):
			apiresp.WriteErrorDetails(w, r, http.StatusBadRequest, vErr.Error(),
				map[string]interface{}{"question": vErr.Row, "reason": vErr.Reason})
		default:
			apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
		}
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, items)
}

func (h *Handler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	quizID, ok := parseQuizID(w, r)
	if !ok {
		return
	}

	items, err := h.svc.ListQuizAttempts(r.Context(), quizID)
	if err != nil {
		if errors.Is(err, ErrQuizNotFound) {
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
			return
		}
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, items)
}

func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	quizID, ok := parseQuizID(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	report, err := h.svc.ImportQuestionsExcel(r.Context(), quizID, file)
	if err != nil {
		if errors.Is(err, ErrQuizNotFound) {
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
			return
		}
		if report != nil {
			// Row-level failures: return the report so the admin can fix
			// the offending rows.
			apiresp.WriteErrorDetails(w, r, http.StatusBadRequest, err.Error(),
				map[string]interface{}{"report": report})
			return
		}
		apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, report)
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	quizID, ok := parseQuizID(w, r)
	if !ok {
		return
	}

	data, err := h.svc.ExportQuestionsExcel(r.Context(), quizID)
	if err != nil {
		if errors.Is(err, ErrQuizNotFound) {
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
			return
		}
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="quiz_%d_questions.xlsx"`, quizID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func parseQuizID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	quizID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || quizID <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid quiz id")
		return 0, false
	}
	return quizID, true
}
