// Package http is the JSON transport: a chi router under /api wiring the
// account, quiz, progress and certificate services behind the auth gate.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mind-engage/learnhub/internal/account"
	"github.com/mind-engage/learnhub/internal/api/response"
	"github.com/mind-engage/learnhub/internal/apierr"
	auth "github.com/mind-engage/learnhub/internal/auth/middleware"
	"github.com/mind-engage/learnhub/internal/certificate"
	"github.com/mind-engage/learnhub/internal/course"
	"github.com/mind-engage/learnhub/internal/eventlog"
	"github.com/mind-engage/learnhub/internal/logger"
	"github.com/mind-engage/learnhub/internal/progress"
	"github.com/mind-engage/learnhub/internal/quiz"
	"github.com/mind-engage/learnhub/internal/rbac"
	"github.com/mind-engage/learnhub/internal/token"
)

type Deps struct {
	Accounts     *account.Service
	Issuer       *token.Issuer
	Courses      *course.Store
	Progress     *progress.Tracker
	Quizzes      *quiz.Service
	Certificates *certificate.Service
	Events       *eventlog.Repo
	Log          *logger.Logger

	CORSOrigins          []string
	CORSAllowCredentials bool
	RequestTimeout       time.Duration
}

func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, AccessLog(d.Log), middleware.Recoverer)
	r.Use(middleware.Timeout(d.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Device-Fingerprint"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: d.CORSAllowCredentials,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	gate := auth.Authenticate(d.Issuer, d.Accounts)

	r.Route("/api", func(api chi.Router) {
		// public
		api.Post("/auth/register", RegisterHandler(d.Accounts))
		api.Post("/auth/login", LoginHandler(d.Accounts))
		api.Post("/auth/refresh", RefreshHandler(d.Accounts))
		api.Post("/auth/logout", LogoutHandler(d.Accounts))
		api.Post("/auth/verify-email", VerifyEmailHandler(d.Accounts))
		api.Post("/auth/forgot-password", ForgotPasswordHandler(d.Accounts))
		api.Post("/auth/reset-password", ResetPasswordHandler(d.Accounts))
		api.Get("/certificates/verify/{number}", VerifyCertificateHandler(d.Certificates))

		api.Group(func(pr chi.Router) {
			pr.Use(gate)

			pr.Get("/auth/me", MeHandler(d.Accounts))
			pr.Post("/auth/change-password", ChangePasswordHandler(d.Accounts))
			pr.Post("/auth/resend-verification", ResendVerificationHandler(d.Accounts))

			pr.With(rbac.Require(rbac.PermSessionsOwn)).Route("/sessions", func(sr chi.Router) {
				sr.Get("/", ListSessionsHandler(d.Accounts))
				sr.Delete("/", LogoutAllHandler(d.Accounts))
				sr.Patch("/{sessionID}", RenameSessionHandler(d.Accounts))
				sr.Delete("/{sessionID}", RemoveSessionHandler(d.Accounts))
			})

			pr.Group(func(lr chi.Router) {
				lr.Use(auth.RequireEmailVerified)

				lr.With(rbac.Require(rbac.PermProgressWrite)).Group(func(pg chi.Router) {
					pg.Post("/chapters/{chapterID}/progress", RecordWatchHandler(d.Progress, d.Courses))
					pg.Post("/chapters/{chapterID}/complete", CompleteChapterHandler(d.Progress, d.Courses))
					pg.Get("/course-versions/{versionID}/progress", VersionProgressHandler(d.Progress, d.Courses))
				})

				lr.With(rbac.Require(rbac.PermQuizTake)).Group(func(qr chi.Router) {
					qr.Get("/quizzes/{quizID}", StudentQuizHandler(d.Quizzes))
					qr.Post("/quizzes/{quizID}/attempts", StartAttemptHandler(d.Quizzes))
					qr.Get("/quizzes/{quizID}/attempts", ListAttemptsHandler(d.Quizzes))

					qr.Route("/attempts/{attemptID}", func(ar chi.Router) {
						ar.Get("/", GetAttemptHandler(d.Quizzes))
						ar.Post("/answers", SubmitAnswerHandler(d.Quizzes))
						ar.Put("/auto-save", AutoSaveHandler(d.Quizzes))
						ar.Post("/review", ToggleReviewHandler(d.Quizzes))
						ar.Post("/violations", LogViolationHandler(d.Quizzes))
						ar.Post("/complete", CompleteAttemptHandler(d.Quizzes))
						ar.Post("/expire", ExpireAttemptHandler(d.Quizzes))
						ar.Get("/result", AttemptResultHandler(d.Quizzes))
					})
				})

				lr.With(rbac.Require(rbac.PermCertificateView)).Group(func(cr chi.Router) {
					cr.Get("/certificates", MyCertificatesHandler(d.Certificates))
					cr.Post("/certificates/{certificateID}/regenerate", RegenerateCertificateHandler(d.Certificates))
				})
			})

			pr.Route("/admin", func(ad chi.Router) {
				ad.Use(auth.RequireAdmin)

				ad.Post("/courses", CreateCourseHandler(d.Courses))
				ad.Post("/courses/{courseID}/versions", CreateVersionHandler(d.Courses))
				ad.Post("/course-versions/{versionID}/chapters", AddChapterHandler(d.Courses))
				ad.Get("/course-versions/{versionID}/chapters", ListChaptersHandler(d.Courses))

				ad.Get("/quizzes", ListQuizzesHandler(d.Quizzes))
				ad.Post("/quizzes", CreateQuizHandler(d.Quizzes))
				ad.Get("/quizzes/{quizID}", GetQuizHandler(d.Quizzes))
				ad.Put("/quizzes/{quizID}", UpdateQuizHandler(d.Quizzes))
				ad.Delete("/quizzes/{quizID}", DeleteQuizHandler(d.Quizzes))
				ad.Post("/quizzes/{quizID}/questions", AddQuestionHandler(d.Quizzes))
				ad.Put("/quizzes/{quizID}/questions/{questionID}", UpdateQuestionHandler(d.Quizzes))
				ad.Delete("/quizzes/{quizID}/questions/{questionID}", DeleteQuestionHandler(d.Quizzes))
				ad.Get("/quizzes/{quizID}/analytics", QuizAnalyticsHandler(d.Quizzes))
				ad.Get("/quiz-templates", ListTemplatesHandler(d.Quizzes))
				ad.Post("/quiz-templates/{templateID}/instantiate", CreateFromTemplateHandler(d.Quizzes))

				ad.Get("/users", ListUsersHandler(d.Accounts))
				ad.Get("/users/{userID}", GetUserHandler(d.Accounts))
				ad.Patch("/users/{userID}/status", SetUserStatusHandler(d.Accounts))
				ad.Patch("/users/{userID}/role", SetUserRoleHandler(d.Accounts))
				ad.Post("/users/{userID}/revoke-sessions", RevokeUserSessionsHandler(d.Accounts))
				ad.Delete("/users/{userID}", DeleteUserHandler(d.Accounts))

				ad.Get("/events", ListEventsHandler(d.Events))
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, apierr.NotFound("Route not found"))
	})
	return r
}
