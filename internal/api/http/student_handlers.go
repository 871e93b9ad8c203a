package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/learnhub/internal/api/response"
	auth "github.com/mind-engage/learnhub/internal/auth/middleware"
	"github.com/mind-engage/learnhub/internal/quiz"
)

// Quiz taking. All attempt routes act on the caller's own attempts; someone
// else's attempt id answers 404.

// StudentQuizHandler serves the quiz without answer keys. Randomized order
// is stable per student.
func StudentQuizHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := svc.GetQuizForStudent(r.Context(), chi.URLParam(r, "quizID"), auth.UserID(r.Context()))
		if err != nil {
			fail(w, r, err)
			return
		}
		response.OK(w, q)
	}
}

// StartAttemptHandler answers 201 for a new attempt and 200 when resuming.
func StartAttemptHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, resumed, err := svc.StartAttempt(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "quizID"))
		if err != nil {
			fail(w, r, err)
			return
		}
		if resumed {
			response.OK(w, a)
			return
		}
		response.Created(w, a)
	}
}

func GetAttemptHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := svc.GetAttempt(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "attemptID"))
		if err != nil {
			fail(w, r, err)
			return
		}
		response.OK(w, a)
	}
}

type submitAnswerReq struct {
	QuestionID        string   `json:"questionId" validate:"required"`
	SelectedAnswerIDs []string `json:"selectedAnswerIds"`
	TimeSpentSec      int      `json:"timeSpentSec" validate:"gte=0"`
}

func SubmitAnswerHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitAnswerReq
		if err := decode(r, &req); err != nil {
			fail(w, r, err)
			return
		}
		resp, err := svc.SubmitAnswer(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "attemptID"),
			req.QuestionID, req.SelectedAnswerIDs, req.TimeSpentSec)
		if err != nil {
			fail(w, r, err)
			return
		}
		response.OK(w, resp)
	}
}

type autoSaveReq struct {
	Data             json.RawMessage `json:"data"`
	TimeRemainingSec *int            `json:"timeRemainingSec" validate:"omitempty,gte=0"`
}

func AutoSaveHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req autoSaveReq
		if err := decode(r, &req); err != nil {
			fail(w, r, err)
			return
		}
		a, err := svc.AutoSave(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "attemptID"), req.Data, req.TimeRemainingSec)
		if err != nil {
			fail(w, r, err)
			return
		}
		response.OK(w, a)
	}
}

type reviewReq struct {
	QuestionID string `json:"questionId" validate:"required"`
}

func ToggleReviewHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reviewReq
		if err := decode(r, &req); err != nil {
			fail(w, r, err)
			return
		}
		a, err := svc.ToggleReview(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "attemptID"), req.QuestionID)
		if err != nil {
			fail(w, r, err)
			return
		}
		response.OK(w, a)
	}
}

type violationReq struct {
	Type   string `json:"type" validate:"required,oneof=TAB_SWITCH COPY_PASTE"`
	Detail string `json:"detail" validate:"max=500"`
}

func LogViolationHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req violationReq
		if err := decode(r, &req); err != nil {
			fail(w, r, err)
			return
		}
		a, err := svc.LogViolation(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "attemptID"), req.Type, req.Detail)
		if err != nil {
			fail(w, r, err)
			return
		}
		response.OK(w, a)
	}
}

func CompleteAttemptHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := svc.CompleteAttempt(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "attemptID"))
		if err != nil {
			fail(w, r, err)
			return
		}
		response.OK(w, c)
	}
}

// ExpireAttemptHandler is what the client calls when its countdown hits zero.
func ExpireAttemptHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := svc.ExpireAttempt(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "attemptID"))
		if err != nil {
			fail(w, r, err)
			return
		}
		response.OK(w, a)
	}
}

func AttemptResultHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.GetResult(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "attemptID"))
		if err != nil {
			fail(w, r, err)
			return
		}
		response.OK(w, res)
	}
}
