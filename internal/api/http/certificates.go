package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/learnhub/internal/api/response"
	auth "github.com/mind-engage/learnhub/internal/auth/middleware"
	"github.com/mind-engage/learnhub/internal/certificate"
	"github.com/mind-engage/learnhub/internal/rbac"
)

func MyCertificatesHandler(svc *certificate.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListForUser(r.Context(), auth.UserID(r.Context()))
		if err != nil {
			fail(w, r, err)
			return
		}
		response.OK(w, list)
	}
}

// VerifyCertificateHandler is public: anyone holding a printed number can
// check it.
func VerifyCertificateHandler(svc *certificate.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := svc.GetByNumber(r.Context(), chi.URLParam(r, "number"))
		if err != nil {
			fail(w, r, err)
			return
		}
		response.OK(w, map[string]any{
			"certificateNumber": c.Number,
			"studentName":       c.StudentName,
			"courseTitle":       c.CourseTitle,
			"score":             c.Score,
			"completionDate":    c.CompletionDate,
			"issuedAt":          c.IssuedAt,
		})
	}
}

// RegenerateCertificateHandler lets the owner, or anyone allowed to mint,
// refresh the printed details.
func RegenerateCertificateHandler(svc *certificate.Service) http.HandlerFunc {
	checker := rbac.NewChecker(nil)
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "certificateID")
		c, err := svc.Get(r.Context(), id)
		if err != nil {
			fail(w, r, err)
			return
		}
		caller, _ := auth.IdentityFromContext(r.Context())
		if c.UserID != caller.ID && !checker.Has(caller.Role, rbac.PermCertificateMint) {
			fail(w, r, certificate.ErrNotFound)
			return
		}
		c, err = svc.Regenerate(r.Context(), id)
		if err != nil {
			fail(w, r, err)
			return
		}
		response.OK(w, c)
	}
}
