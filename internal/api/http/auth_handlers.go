package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/learnhub/internal/account"
	"github.com/mind-engage/learnhub/internal/api/response"
	auth "github.com/mind-engage/learnhub/internal/auth/middleware"
	"github.com/mind-engage/learnhub/internal/device"
	"github.com/mind-engage/learnhub/internal/session"
)

type registerReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required,max=120"`
}

func RegisterHandler(svc *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerReq
		if err := decode(r, &req); err != nil {
			fail(w, r, err)
			return
		}
		u, err := svc.Register(r.Context(), account.RegisterInput{Email: req.Email, Password: req.Password, Name: req.Name})
		if err != nil {
			fail(w, r, err)
			return
		}
		response.Created(w, u)
	}
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginHandler opens a device session for the requesting browser.
func LoginHandler(svc *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginReq
		if err := decode(r, &req); err != nil {
			fail(w, r, err)
			return
		}
		res, err := svc.Login(r.Context(), req.Email, req.Password, device.FromRequest(r))
		if err != nil {
			fail(w, r, err)
			return
		}
		response.OK(w, res)
	}
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

func RefreshHandler(svc *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshReq
		if err := decode(r, &req); err != nil {
			fail(w, r, err)
			return
		}
		pair, err := svc.Refresh(r.Context(), req.RefreshToken)
		if err != nil {
			fail(w, r, err)
			return
		}
		response.OK(w, pair)
	}
}

// LogoutHandler is idempotent: an unknown token still logs out.
func LogoutHandler(svc *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshReq
		if err := decode(r, &req); err != nil {
			fail(w, r, err)
			return
		}
		if err := svc.Logout(r.Context(), req.RefreshToken); err != nil {
			fail(w, r, err)
			return
		}
		response.Message(w, "Logged out")
	}
}

func MeHandler(svc *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := svc.GetUser(r.Context(), auth.UserID(r.Context()))
		if err != nil {
			fail(w, r, err)
			return
		}
		response.OK(w, u)
	}
}

type verifyEmailReq struct {
	Token string `json:"token" validate:"required"`
}

func VerifyEmailHandler(svc *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req verifyEmailReq
		if err := decode(r, &req); err != nil {
			fail(w, r, err)
			return
		}
		u, err := svc.VerifyEmail(r.Context(), req.Token)
		if err != nil {
			fail(w, r, err)
			return
		}
		response.OK(w, u)
	}
}

func ResendVerificationHandler(svc *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.ResendVerification(r.Context(), auth.UserID(r.Context())); err != nil {
			fail(w, r, err)
			return
		}
		response.Message(w, "Verification email sent")
	}
}

/* ----------------------------- sessions ----------------------------- */

func ListSessionsHandler(svc *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListSessions(r.Context(), auth.UserID(r.Context()))
		if err != nil {
			fail(w, r, err)
			return
		}
		if list == nil {
			list = []session.Session{}
		}
		response.OK(w, list)
	}
}

type renameSessionReq struct {
	DeviceName string `json:"deviceName" validate:"required,max=100"`
}

func RenameSessionHandler(svc *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req renameSessionReq
		if err := decode(r, &req); err != nil {
			fail(w, r, err)
			return
		}
		if err := svc.RenameSession(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "sessionID"), req.DeviceName); err != nil {
			fail(w, r, err)
			return
		}
		response.Message(w, "Device renamed")
	}
}

func RemoveSessionHandler(svc *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.RemoveSession(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "sessionID")); err != nil {
			fail(w, r, err)
			return
		}
		response.Message(w, "Device removed")
	}
}

// LogoutAllHandler ends every session the caller holds, this one included.
func LogoutAllHandler(svc *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := svc.LogoutAll(r.Context(), auth.UserID(r.Context()))
		if err != nil {
			fail(w, r, err)
			return
		}
		response.OK(w, map[string]any{"revoked": n})
	}
}
