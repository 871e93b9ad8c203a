package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/learnhub/internal/api/response"
	auth "github.com/mind-engage/learnhub/internal/auth/middleware"
	"github.com/mind-engage/learnhub/internal/course"
	"github.com/mind-engage/learnhub/internal/progress"
)

type createCourseReq struct {
	Title string `json:"title" validate:"required,max=200"`
}

func CreateCourseHandler(store *course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createCourseReq
		if err := decode(r, &req); err != nil {
			fail(w, r, err)
			return
		}
		c, err := store.CreateCourse(r.Context(), req.Title)
		if err != nil {
			fail(w, r, err)
			return
		}
		response.Created(w, c)
	}
}

// CreateVersionHandler publishes the next version number of a course.
func CreateVersionHandler(store *course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := store.CreateVersion(r.Context(), chi.URLParam(r, "courseID"))
		if err != nil {
			fail(w, r, err)
			return
		}
		response.Created(w, v)
	}
}

type addChapterReq struct {
	Title            string `json:"title" validate:"required,max=200"`
	VideoDurationSec int    `json:"videoDurationSec" validate:"gte=0"`
}

func AddChapterHandler(store *course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addChapterReq
		if err := decode(r, &req); err != nil {
			fail(w, r, err)
			return
		}
		ch, err := store.AddChapter(r.Context(), chi.URLParam(r, "versionID"), req.Title, req.VideoDurationSec)
		if err != nil {
			fail(w, r, err)
			return
		}
		response.Created(w, ch)
	}
}

func ListChaptersHandler(store *course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		versionID := chi.URLParam(r, "versionID")
		if _, err := store.GetVersion(r.Context(), versionID); err != nil {
			fail(w, r, err)
			return
		}
		list, err := store.ListChapters(r.Context(), versionID)
		if err != nil {
			fail(w, r, err)
			return
		}
		if list == nil {
			list = []course.Chapter{}
		}
		response.OK(w, list)
	}
}

/* ----------------------------- progress ----------------------------- */

type watchReq struct {
	WatchPercentage float64 `json:"watchPercentage" validate:"gte=0,lte=100"`
	LastPositionSec float64 `json:"lastPositionSec" validate:"gte=0"`
}

// RecordWatchHandler stores playback progress. Watching 90% latches the
// chapter's skip-ahead and completion flags.
func RecordWatchHandler(tracker *progress.Tracker, courses *course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req watchReq
		if err := decode(r, &req); err != nil {
			fail(w, r, err)
			return
		}
		chapterID := chi.URLParam(r, "chapterID")
		if _, err := courses.GetChapter(r.Context(), chapterID); err != nil {
			fail(w, r, err)
			return
		}
		p, err := tracker.RecordWatch(r.Context(), auth.UserID(r.Context()), chapterID, req.WatchPercentage, req.LastPositionSec)
		if err != nil {
			fail(w, r, err)
			return
		}
		response.OK(w, p)
	}
}

func CompleteChapterHandler(tracker *progress.Tracker, courses *course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chapterID := chi.URLParam(r, "chapterID")
		if _, err := courses.GetChapter(r.Context(), chapterID); err != nil {
			fail(w, r, err)
			return
		}
		p, err := tracker.MarkCompleted(r.Context(), auth.UserID(r.Context()), chapterID)
		if err != nil {
			fail(w, r, err)
			return
		}
		response.OK(w, p)
	}
}

func VersionProgressHandler(tracker *progress.Tracker, courses *course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		versionID := chi.URLParam(r, "versionID")
		if _, err := courses.GetVersion(r.Context(), versionID); err != nil {
			fail(w, r, err)
			return
		}
		uid := auth.UserID(r.Context())
		chapters, err := tracker.ListForVersion(r.Context(), uid, versionID)
		if err != nil {
			fail(w, r, err)
			return
		}
		done, err := tracker.AllChaptersCompleted(r.Context(), uid, versionID)
		if err != nil {
			fail(w, r, err)
			return
		}
		if chapters == nil {
			chapters = []progress.ChapterProgress{}
		}
		response.OK(w, map[string]any{"chapters": chapters, "allCompleted": done})
	}
}
