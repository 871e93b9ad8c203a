package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/learnhub/internal/account"
	"github.com/mind-engage/learnhub/internal/api/response"
)

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}

func ListUsersHandler(svc *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := svc.ListUsers(r.Context(), queryInt(r, "limit", 50), queryInt(r, "offset", 0))
		if err != nil {
			fail(w, r, err)
			return
		}
		if users == nil {
			users = []account.User{}
		}
		response.OK(w, users)
	}
}

func GetUserHandler(svc *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := svc.GetUser(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			fail(w, r, err)
			return
		}
		response.OK(w, u)
	}
}

type setActiveReq struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

// SetUserStatusHandler activates or deactivates an account. Deactivation
// ends every session the user holds.
func SetUserStatusHandler(svc *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setActiveReq
		if err := decode(r, &req); err != nil {
			fail(w, r, err)
			return
		}
		if err := svc.SetActive(r.Context(), chi.URLParam(r, "userID"), *req.IsActive); err != nil {
			fail(w, r, err)
			return
		}
		if *req.IsActive {
			response.Message(w, "User activated")
			return
		}
		response.Message(w, "User deactivated")
	}
}

type setRoleReq struct {
	Role string `json:"role" validate:"required,oneof=STUDENT ADMIN"`
}

func SetUserRoleHandler(svc *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setRoleReq
		if err := decode(r, &req); err != nil {
			fail(w, r, err)
			return
		}
		if err := svc.SetRole(r.Context(), chi.URLParam(r, "userID"), req.Role); err != nil {
			fail(w, r, err)
			return
		}
		response.Message(w, "Role updated")
	}
}

func RevokeUserSessionsHandler(svc *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := svc.RevokeSessions(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			fail(w, r, err)
			return
		}
		response.OK(w, map[string]any{"revoked": n})
	}
}

func DeleteUserHandler(svc *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.SoftDelete(r.Context(), chi.URLParam(r, "userID")); err != nil {
			fail(w, r, err)
			return
		}
		response.Message(w, "User deleted")
	}
}
