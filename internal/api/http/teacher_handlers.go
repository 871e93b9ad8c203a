package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/learnhub/internal/api/response"
	"github.com/mind-engage/learnhub/internal/quiz"
)

// Quiz authoring. Every route here sits behind RequireAdmin.

type quizReq struct {
	Title               string   `json:"title" validate:"required,max=200"`
	Description         string   `json:"description"`
	ChapterID           *string  `json:"chapterId"`
	ContentBlockID      *string  `json:"contentBlockId"`
	CourseVersionID     *string  `json:"courseVersionId"`
	IsTemplate          bool     `json:"isTemplate"`
	PassingScore        *float64 `json:"passingScore" validate:"omitempty,gte=0,lte=100"`
	MaxAttempts         *int     `json:"maxAttempts" validate:"omitempty,gte=1"`
	TimeLimitMinutes    *int     `json:"timeLimitMinutes" validate:"omitempty,gte=1"`
	PreventTabSwitch    bool     `json:"preventTabSwitch"`
	PreventCopyPaste    bool     `json:"preventCopyPaste"`
	RandomizeQuestions  bool     `json:"randomizeQuestions"`
	RandomizeAnswers    bool     `json:"randomizeAnswers"`
	ShowCorrectAnswers  *bool    `json:"showCorrectAnswers"`
	GenerateCertificate bool     `json:"generateCertificate"`
}

// settings applies the defaults of a new quiz: pass at 70, show answers.
func (q quizReq) settings() quiz.Settings {
	st := quiz.Settings{
		Title:               q.Title,
		Description:         q.Description,
		ChapterID:           q.ChapterID,
		ContentBlockID:      q.ContentBlockID,
		CourseVersionID:     q.CourseVersionID,
		IsTemplate:          q.IsTemplate,
		PassingScore:        70,
		MaxAttempts:         q.MaxAttempts,
		TimeLimitMinutes:    q.TimeLimitMinutes,
		PreventTabSwitch:    q.PreventTabSwitch,
		PreventCopyPaste:    q.PreventCopyPaste,
		RandomizeQuestions:  q.RandomizeQuestions,
		RandomizeAnswers:    q.RandomizeAnswers,
		ShowCorrectAnswers:  true,
		GenerateCertificate: q.GenerateCertificate,
	}
	if q.PassingScore != nil {
		st.PassingScore = *q.PassingScore
	}
	if q.ShowCorrectAnswers != nil {
		st.ShowCorrectAnswers = *q.ShowCorrectAnswers
	}
	return st
}

func CreateQuizHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req quizReq
		if err := decode(r, &req); err != nil {
			fail(w, r, err)
			return
		}
		q, err := svc.CreateQuiz(r.Context(), req.settings())
		if err != nil {
			fail(w, r, err)
			return
		}
		response.Created(w, q)
	}
}

func UpdateQuizHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req quizReq
		if err := decode(r, &req); err != nil {
			fail(w, r, err)
			return
		}
		q, err := svc.UpdateQuiz(r.Context(), chi.URLParam(r, "quizID"), req.settings())
		if err != nil {
			fail(w, r, err)
			return
		}
		response.OK(w, q)
	}
}

func DeleteQuizHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteQuiz(r.Context(), chi.URLParam(r, "quizID")); err != nil {
			fail(w, r, err)
			return
		}
		response.Message(w, "Quiz deleted")
	}
}

// GetQuizHandler returns the authoring view with answer keys.
func GetQuizHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := svc.GetQuiz(r.Context(), chi.URLParam(r, "quizID"))
		if err != nil {
			fail(w, r, err)
			return
		}
		response.OK(w, q)
	}
}

func ListQuizzesHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs := r.URL.Query()
		list, err := svc.ListQuizzes(r.Context(), quiz.ListFilter{
			ChapterID:       qs.Get("chapterId"),
			CourseVersionID: qs.Get("courseVersionId"),
		})
		if err != nil {
			fail(w, r, err)
			return
		}
		if list == nil {
			list = []quiz.Quiz{}
		}
		response.OK(w, list)
	}
}

func ListTemplatesHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListTemplates(r.Context())
		if err != nil {
			fail(w, r, err)
			return
		}
		if list == nil {
			list = []quiz.Quiz{}
		}
		response.OK(w, list)
	}
}

type instantiateReq struct {
	Title           string  `json:"title" validate:"max=200"`
	ChapterID       *string `json:"chapterId"`
	ContentBlockID  *string `json:"contentBlockId"`
	CourseVersionID *string `json:"courseVersionId"`
}

func CreateFromTemplateHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req instantiateReq
		if err := decode(r, &req); err != nil {
			fail(w, r, err)
			return
		}
		q, err := svc.CreateFromTemplate(r.Context(), chi.URLParam(r, "templateID"), quiz.TemplateTarget{
			Title:           req.Title,
			ChapterID:       req.ChapterID,
			ContentBlockID:  req.ContentBlockID,
			CourseVersionID: req.CourseVersionID,
		})
		if err != nil {
			fail(w, r, err)
			return
		}
		response.Created(w, q)
	}
}

type answerReq struct {
	ID        string `json:"id"`
	Text      string `json:"text" validate:"required"`
	IsCorrect bool   `json:"isCorrect"`
}

type questionReq struct {
	Type        string      `json:"type" validate:"required,oneof=SINGLE_CHOICE MULTIPLE_CHOICE TRUE_FALSE"`
	Text        string      `json:"text" validate:"required"`
	Explanation string      `json:"explanation"`
	Points      float64     `json:"points" validate:"gt=0"`
	Answers     []answerReq `json:"answers" validate:"required,min=2,dive"`
}

func (q questionReq) input() quiz.QuestionInput {
	in := quiz.QuestionInput{Type: q.Type, Text: q.Text, Explanation: q.Explanation, Points: q.Points}
	for _, a := range q.Answers {
		in.Answers = append(in.Answers, quiz.AnswerInput{ID: a.ID, Text: a.Text, IsCorrect: a.IsCorrect})
	}
	return in
}

func AddQuestionHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req questionReq
		if err := decode(r, &req); err != nil {
			fail(w, r, err)
			return
		}
		q, err := svc.AddQuestion(r.Context(), chi.URLParam(r, "quizID"), req.input())
		if err != nil {
			fail(w, r, err)
			return
		}
		response.Created(w, q)
	}
}

func UpdateQuestionHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req questionReq
		if err := decode(r, &req); err != nil {
			fail(w, r, err)
			return
		}
		q, err := svc.UpdateQuestion(r.Context(), chi.URLParam(r, "quizID"), chi.URLParam(r, "questionID"), req.input())
		if err != nil {
			fail(w, r, err)
			return
		}
		response.OK(w, q)
	}
}

func DeleteQuestionHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteQuestion(r.Context(), chi.URLParam(r, "quizID"), chi.URLParam(r, "questionID")); err != nil {
			fail(w, r, err)
			return
		}
		response.Message(w, "Question deleted")
	}
}

// QuizAnalyticsHandler lists daily buckets; from and to are YYYY-MM-DD.
func QuizAnalyticsHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs := r.URL.Query()
		list, err := svc.ListAnalytics(r.Context(), chi.URLParam(r, "quizID"), qs.Get("from"), qs.Get("to"))
		if err != nil {
			fail(w, r, err)
			return
		}
		response.OK(w, list)
	}
}
