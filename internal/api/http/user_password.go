package http

import (
	"net/http"

	"github.com/mind-engage/learnhub/internal/account"
	"github.com/mind-engage/learnhub/internal/api/response"
	auth "github.com/mind-engage/learnhub/internal/auth/middleware"
)

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
}

// ChangePasswordHandler signs the user out everywhere on success.
func ChangePasswordHandler(svc *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req changePasswordReq
		if err := decode(r, &req); err != nil {
			fail(w, r, err)
			return
		}
		if err := svc.ChangePassword(r.Context(), auth.UserID(r.Context()), req.CurrentPassword, req.NewPassword); err != nil {
			fail(w, r, err)
			return
		}
		response.Message(w, "Password changed. Please sign in again.")
	}
}

type forgotPasswordReq struct {
	Email string `json:"email" validate:"required,email"`
}

// ForgotPasswordHandler answers the same way whether or not the email is
// registered.
func ForgotPasswordHandler(svc *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req forgotPasswordReq
		if err := decode(r, &req); err != nil {
			fail(w, r, err)
			return
		}
		if err := svc.ForgotPassword(r.Context(), req.Email); err != nil {
			fail(w, r, err)
			return
		}
		response.Message(w, "If that email is registered, a reset link has been sent.")
	}
}

type resetPasswordReq struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

func ResetPasswordHandler(svc *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resetPasswordReq
		if err := decode(r, &req); err != nil {
			fail(w, r, err)
			return
		}
		if err := svc.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
			fail(w, r, err)
			return
		}
		response.Message(w, "Password reset. Please sign in.")
	}
}
