package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/learnhub/internal/api/response"
	auth "github.com/mind-engage/learnhub/internal/auth/middleware"
	"github.com/mind-engage/learnhub/internal/quiz"
)

// ListAttemptsHandler lists the caller's attempts at one quiz, oldest first.
func ListAttemptsHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListAttempts(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "quizID"))
		if err != nil {
			fail(w, r, err)
			return
		}
		response.OK(w, list)
	}
}
