package http

import (
	"errors"
	"net/http"

	"github.com/mind-engage/learnhub/internal/account"
	"github.com/mind-engage/learnhub/internal/apierr"
	"github.com/mind-engage/learnhub/internal/certificate"
	"github.com/mind-engage/learnhub/internal/course"
	"github.com/mind-engage/learnhub/internal/progress"
	"github.com/mind-engage/learnhub/internal/quiz"
	"github.com/mind-engage/learnhub/internal/ratelimit"
	"github.com/mind-engage/learnhub/internal/session"
)

// toAPIError maps domain errors to transport errors. Unknown errors pass
// through and render as 500.
func toAPIError(err error) error {
	if _, ok := apierr.As(err); ok {
		return err
	}
	var dl *session.DeviceLimitError
	if errors.As(err, &dl) {
		return apierr.Forbidden(apierr.CodeDeviceLimit,
			"Device limit reached. Please remove a device from your account before signing in on a new one.").
			WithDetails(map[string]any{"activeDevices": dl.ActiveDevices, "maxDevices": dl.MaxDevices})
	}

	switch {
	// accounts and sessions
	case errors.Is(err, account.ErrInvalidCredentials):
		return apierr.Unauthenticated("Invalid email or password")
	case errors.Is(err, account.ErrAccountDeactivated):
		return apierr.Forbidden(apierr.CodeAccountDeactivated, "Account is deactivated")
	case errors.Is(err, ratelimit.ErrRateLimited):
		return apierr.New(http.StatusTooManyRequests, apierr.CodeLoginRateLimited,
			errors.New("Too many login attempts. Please try again later."))
	case errors.Is(err, session.ErrInvalidRefresh):
		return apierr.Unauthenticated("Invalid refresh token")
	case errors.Is(err, account.ErrEmailTaken):
		return apierr.New(http.StatusConflict, apierr.CodeConflict, errors.New("Email already registered"))
	case errors.Is(err, account.ErrWrongPassword):
		return apierr.BadRequest(apierr.CodeValidation, "Current password is incorrect")
	case errors.Is(err, account.ErrAlreadyVerified),
		errors.Is(err, account.ErrInvalidVerification),
		errors.Is(err, account.ErrInvalidResetToken),
		errors.Is(err, account.ErrInvalidRole):
		return apierr.BadRequest(apierr.CodeValidation, err.Error())
	case errors.Is(err, account.ErrUserNotFound):
		return apierr.NotFound("User not found")
	case errors.Is(err, session.ErrNotFound):
		return apierr.NotFound("Session not found")

	// quizzes
	case errors.Is(err, quiz.ErrQuizNotFound):
		return apierr.New(http.StatusNotFound, apierr.CodeQuizNotFound, errors.New("Quiz not found"))
	case errors.Is(err, quiz.ErrTemplateNotFound):
		return apierr.New(http.StatusNotFound, apierr.CodeTemplateNotFound, errors.New("Template not found"))
	case errors.Is(err, quiz.ErrQuestionNotFound):
		return apierr.New(http.StatusNotFound, apierr.CodeQuestionNotFound, errors.New("Question not found"))
	case errors.Is(err, quiz.ErrAttemptNotFound):
		return apierr.NotFound("Attempt not found")
	case errors.Is(err, quiz.ErrMaxAttemptsReached):
		return apierr.Forbidden(apierr.CodeMaxAttempts, "Maximum attempts reached")
	case errors.Is(err, quiz.ErrNotInProgress):
		return apierr.BadRequest(apierr.CodeNotInProgress, "Attempt is not in progress")
	case errors.Is(err, quiz.ErrInvalidQuiz),
		errors.Is(err, quiz.ErrInvalidQuestion),
		errors.Is(err, quiz.ErrInvalidAnswer),
		errors.Is(err, quiz.ErrInvalidViolation):
		return apierr.BadRequest(apierr.CodeValidation, err.Error())

	// catalog, progress, certificates
	case errors.Is(err, course.ErrCourseNotFound),
		errors.Is(err, course.ErrVersionNotFound),
		errors.Is(err, course.ErrChapterNotFound),
		errors.Is(err, progress.ErrNotFound),
		errors.Is(err, certificate.ErrNotFound):
		return apierr.NotFound(capitalize(err.Error()))
	}
	return err
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
