package http

import (
	"net/http"
	"strconv"

	"github.com/mind-engage/learnhub/internal/api/response"
	"github.com/mind-engage/learnhub/internal/apierr"
	"github.com/mind-engage/learnhub/internal/eventlog"
)

// ListEventsHandler pages through the audit trail for one key, e.g.
// "user:<id>" or "quiz:<id>". after is the last seq already seen.
func ListEventsHandler(repo *eventlog.Repo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("key")
		if key == "" {
			fail(w, r, apierr.BadRequest(apierr.CodeValidation, "key is required"))
			return
		}
		after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
		list, err := repo.List(r.Context(), key, after, queryInt(r, "limit", 100))
		if err != nil {
			fail(w, r, err)
			return
		}
		if list == nil {
			list = []eventlog.Event{}
		}
		response.OK(w, list)
	}
}
