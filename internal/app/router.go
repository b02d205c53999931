package app

import (
	"database/sql"
	"html/template"
	"net/http"
	"time"

	"quizhub/internal/app/observability"
	"quizhub/internal/auth"
	"quizhub/internal/catalog"
	"quizhub/internal/quiz"
	"quizhub/internal/report"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(cfg Config, db *sql.DB) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	collector := observability.NewCollector(db)
	r.Use(collector.Middleware)
	r.Use(CSRFMiddleware(cfg.CSRFEnforced))

	tmpl := template.Must(template.ParseGlob("web/templates/layout/*.html"))
	template.Must(tmpl.ParseGlob("web/templates/pages/*.html"))

	authSvc := auth.NewService(db, auth.ServiceConfig{
		SessionTTL:     time.Duration(cfg.SessionTTLHours) * time.Hour,
		BootstrapToken: cfg.BootstrapToken,
	})
	authHandler := auth.NewHandler(authSvc)

	quizSvc := quiz.NewService(db)
	quizHandler := quiz.NewHandler(quizSvc)

	catalogSvc := catalog.NewService(db)
	catalogHandler := catalog.NewHandler(catalogSvc)

	reportSvc := report.NewService(db)
	reportHandler := report.NewHandler(reportSvc)

	loginLimiter := NewIPRateLimiter(cfg.AuthRateLimitPerMin, time.Minute)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	r.Get("/metrics", collector.MetricsHandler)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]any{
			"Title": "QuizHub",
		}

		if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	r.Route("/api", func(api chi.Router) {
		api.Post("/bootstrap/init", authHandler.BootstrapInit)
		api.With(RateLimitMiddleware(loginLimiter)).Post("/login", authHandler.Login)

		api.Group(func(secure chi.Router) {
			secure.Use(authHandler.RequireAuth)
			secure.Get("/me", authHandler.Me)
			secure.Post("/logout", authHandler.Logout)

			secure.Get("/quizzes", quizHandler.List)
			secure.Get("/quiz/{id}", quizHandler.Get)
			secure.Post("/quiz/{id}/start", quizHandler.Start)
			secure.Post("/quiz-attempt/{id}/answer", quizHandler.SubmitAnswer)
			secure.Post("/quiz-attempt/{id}/complete", quizHandler.Complete)
			secure.Get("/quiz-attempt/{id}/results", quizHandler.Results)
			secure.Get("/quiz-attempt/{id}/status", quizHandler.Status)

			secure.Group(func(admin chi.Router) {
				admin.Use(authHandler.RequireRoles("admin"))
				admin.Get("/admin/quizzes", catalogHandler.List)
				admin.Post("/admin/quizzes", catalogHandler.Create)
				admin.Put("/admin/quizzes/{id}", catalogHandler.Update)
				admin.Delete("/admin/quizzes/{id}", catalogHandler.Deactivate)
				admin.Get("/admin/quizzes/{id}/questions", catalogHandler.ListQuestions)
				admin.Put("/admin/quizzes/{id}/questions", catalogHandler.ReplaceQuestions)
				admin.Get("/admin/quizzes/{id}/attempts", catalogHandler.ListAttempts)
				admin.Post("/admin/quizzes/{id}/import", catalogHandler.Import)
				admin.Get("/admin/quizzes/{id}/export", catalogHandler.Export)

				admin.Get("/admin/reports/quizzes", reportHandler.Overview)
				admin.Get("/admin/reports/quiz/{id}", reportHandler.QuizSummary)
			})
		})
	})

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir("web/static"))))

	return r
}
