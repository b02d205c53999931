package app

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestFrontendSmokePublicRoutes(t *testing.T) {
	restore := chdirToRepoRoot(t)
	defer restore()

	router := NewRouter(Config{
		CSRFEnforced:        false,
		AuthRateLimitPerMin: 60,
		SessionTTLHours:     24,
	}, nil)

	tests := []struct {
		name       string
		method     string
		target     string
		wantStatus int
	}{
		{name: "home", method: http.MethodGet, target: "/", wantStatus: http.StatusOK},
		{name: "healthz", method: http.MethodGet, target: "/healthz", wantStatus: http.StatusOK},
		{name: "metrics", method: http.MethodGet, target: "/metrics", wantStatus: http.StatusOK},
		{name: "static_css", method: http.MethodGet, target: "/static/css/app.css?v=test", wantStatus: http.StatusOK},
		{name: "static_js", method: http.MethodGet, target: "/static/js/app.js?v=test", wantStatus: http.StatusOK},
		{name: "me_unauthorized", method: http.MethodGet, target: "/api/me", wantStatus: http.StatusUnauthorized},
		{name: "quizzes_unauthorized", method: http.MethodGet, target: "/api/quizzes", wantStatus: http.StatusUnauthorized},
		{name: "start_unauthorized", method: http.MethodPost, target: "/api/quiz/1/start", wantStatus: http.StatusUnauthorized},
		{name: "login_invalid_body", method: http.MethodPost, target: "/api/login", wantStatus: http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.target, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tc.wantStatus {
				t.Fatalf("%s %s: got status %d, want %d", tc.method, tc.target, w.Code, tc.wantStatus)
			}
		})
	}
}

func chdirToRepoRoot(t *testing.T) func() {
	t.Helper()

	start, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	dir := start
	for {
		if fileExists(filepath.Join(dir, "go.mod")) && fileExists(filepath.Join(dir, "web", "templates", "layout", "base.html")) {
			if err := os.Chdir(dir); err != nil {
				t.Fatalf("chdir to repo root %s: %v", dir, err)
			}
			return func() {
				_ = os.Chdir(start)
			}
		}

		next := filepath.Dir(dir)
		if next == dir {
			t.Fatalf("repo root not found from %s", start)
		}
		dir = next
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
