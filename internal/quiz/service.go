// Package quiz runs quiz authoring and the attempt lifecycle: start or
// resume, answer, auto-save, review flags, integrity violations, completion,
// time expiry, scoring and per-day analytics.
package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/learnhub/internal/certificate"
	"github.com/mind-engage/learnhub/internal/clock"
	"github.com/mind-engage/learnhub/internal/course"
	"github.com/mind-engage/learnhub/internal/db"
	"github.com/mind-engage/learnhub/internal/eventlog"
	"github.com/mind-engage/learnhub/internal/grading"
	"github.com/mind-engage/learnhub/internal/logger"
	"github.com/mind-engage/learnhub/internal/progress"
)

type CourseLookup interface {
	GetChapter(ctx context.Context, id string) (*course.Chapter, error)
	GetVersion(ctx context.Context, id string) (*course.Version, error)
}

type ProgressMarker interface {
	MarkCompleted(ctx context.Context, userID, chapterID string) (*progress.Progress, error)
}

type CertificateIssuer interface {
	IssueIfEligible(ctx context.Context, req certificate.Request) (*certificate.Certificate, bool, error)
}

type Deps struct {
	Store        *SQLStore
	Grader       *grading.Grader
	Courses      CourseLookup
	Progress     ProgressMarker    // nil skips chapter completion
	Certificates CertificateIssuer // nil skips certificates
	Events       eventlog.Sink
	Clock        clock.Clock
	Log          *logger.Logger
}

type Service struct {
	store  *SQLStore
	grader *grading.Grader
	course CourseLookup
	prog   ProgressMarker
	certs  CertificateIssuer
	events eventlog.Sink
	clock  clock.Clock
	log    *logger.Logger
}

func NewService(d Deps) *Service {
	if d.Grader == nil {
		d.Grader = grading.NewGrader()
	}
	if d.Events == nil {
		d.Events = eventlog.Nop{}
	}
	if d.Clock == nil {
		d.Clock = clock.System()
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	return &Service{
		store:  d.Store,
		grader: d.Grader,
		course: d.Courses,
		prog:   d.Progress,
		certs:  d.Certificates,
		events: d.Events,
		clock:  d.Clock,
		log:    d.Log.With("service", "QuizService"),
	}
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }

// Score converts earned points into a 0..100 percentage of the snapshot
// total. A zero total is treated as 1.
func Score(earned, total, passingScore float64) (score float64, passed bool) {
	if total <= 0 {
		total = 1
	}
	score = round2(earned * 100 / total)
	return score, score >= passingScore
}

/* ----------------------------- authoring ---------------------------- */

func (s *Service) validateSettings(ctx context.Context, st *Settings) error {
	st.Title = strings.TrimSpace(st.Title)
	switch {
	case st.Title == "":
		return fmt.Errorf("%w: title is required", ErrInvalidQuiz)
	case st.PassingScore < 0 || st.PassingScore > 100:
		return fmt.Errorf("%w: passing score must be between 0 and 100", ErrInvalidQuiz)
	case st.MaxAttempts != nil && *st.MaxAttempts < 1:
		return fmt.Errorf("%w: max attempts must be at least 1", ErrInvalidQuiz)
	case st.TimeLimitMinutes != nil && *st.TimeLimitMinutes < 1:
		return fmt.Errorf("%w: time limit must be at least 1 minute", ErrInvalidQuiz)
	}
	if s.course == nil {
		return nil
	}
	if st.ChapterID != nil && *st.ChapterID != "" {
		if _, err := s.course.GetChapter(ctx, *st.ChapterID); err != nil {
			return err
		}
	}
	if st.CourseVersionID != nil && *st.CourseVersionID != "" {
		if _, err := s.course.GetVersion(ctx, *st.CourseVersionID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) CreateQuiz(ctx context.Context, st Settings) (*Quiz, error) {
	if err := s.validateSettings(ctx, &st); err != nil {
		return nil, err
	}
	now := db.FromUnix(s.clock.Now().Unix())
	q := &Quiz{ID: uuid.NewString(), Settings: st, CreatedAt: now, UpdatedAt: now}
	if err := s.store.InsertQuiz(ctx, s.store.DB(), q); err != nil {
		return nil, err
	}
	s.log.Info("quiz created", "quiz_id", q.ID, "template", q.IsTemplate)
	return q, nil
}

func (s *Service) UpdateQuiz(ctx context.Context, id string, st Settings) (*Quiz, error) {
	if err := s.validateSettings(ctx, &st); err != nil {
		return nil, err
	}
	if err := s.store.UpdateSettings(ctx, id, st, s.clock.Now()); err != nil {
		return nil, err
	}
	return s.GetQuiz(ctx, id)
}

func (s *Service) DeleteQuiz(ctx context.Context, id string) error {
	return s.store.DeleteQuiz(ctx, id)
}

// GetQuiz returns the full authoring view, correctness flags included.
func (s *Service) GetQuiz(ctx context.Context, id string) (*Quiz, error) {
	q, err := s.store.GetQuiz(ctx, s.store.DB(), id)
	if err != nil {
		return nil, err
	}
	if q.Questions, err = s.store.LoadQuestions(ctx, s.store.DB(), id); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *Service) ListQuizzes(ctx context.Context, f ListFilter) ([]Quiz, error) {
	return s.store.ListQuizzes(ctx, f)
}

func (s *Service) ListTemplates(ctx context.Context) ([]Quiz, error) {
	return s.store.ListQuizzes(ctx, ListFilter{TemplatesOnly: true})
}

type AnswerInput struct {
	ID        string // optional; keeps a stable id across edits
	Text      string
	IsCorrect bool
}

type QuestionInput struct {
	Type        string
	Text        string
	Explanation string
	Points      float64
	Answers     []AnswerInput
}

func (s *Service) buildQuestion(quizID, questionID string, in QuestionInput) (*Question, error) {
	if !s.grader.Supported(in.Type) {
		return nil, fmt.Errorf("%w: unsupported type %q", ErrInvalidQuestion, in.Type)
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, fmt.Errorf("%w: text is required", ErrInvalidQuestion)
	}
	if in.Points <= 0 {
		return nil, fmt.Errorf("%w: points must be positive", ErrInvalidQuestion)
	}
	if len(in.Answers) < 2 {
		return nil, fmt.Errorf("%w: at least two answers are required", ErrInvalidQuestion)
	}
	correct := 0
	for _, a := range in.Answers {
		if a.IsCorrect {
			correct++
		}
	}
	if in.Type == grading.MultipleChoice {
		if correct < 1 {
			return nil, fmt.Errorf("%w: at least one answer must be correct", ErrInvalidQuestion)
		}
	} else if correct != 1 {
		return nil, fmt.Errorf("%w: exactly one answer must be correct", ErrInvalidQuestion)
	}

	q := &Question{
		ID:          questionID,
		QuizID:      quizID,
		Type:        in.Type,
		Text:        strings.TrimSpace(in.Text),
		Explanation: in.Explanation,
		Points:      in.Points,
	}
	seen := map[string]bool{}
	for i, a := range in.Answers {
		id := a.ID
		if id == "" || seen[id] {
			id = uuid.NewString()
		}
		seen[id] = true
		q.Answers = append(q.Answers, Answer{ID: id, QuestionID: questionID, Text: a.Text, IsCorrect: a.IsCorrect, OrderIndex: i})
	}
	return q, nil
}

func (s *Service) AddQuestion(ctx context.Context, quizID string, in QuestionInput) (*Question, error) {
	q, err := s.buildQuestion(quizID, uuid.NewString(), in)
	if err != nil {
		return nil, err
	}
	err = db.WithTx(ctx, s.store.DB(), func(tx *sql.Tx) error {
		if _, err := s.store.GetQuiz(ctx, tx, quizID); err != nil {
			return err
		}
		idx, err := s.store.NextQuestionIndex(ctx, tx, quizID)
		if err != nil {
			return err
		}
		q.OrderIndex = idx
		if err := s.store.InsertQuestion(ctx, tx, q); err != nil {
			return err
		}
		return s.store.RecomputeTotalPoints(ctx, tx, quizID, s.clock.Now())
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (s *Service) UpdateQuestion(ctx context.Context, quizID, questionID string, in QuestionInput) (*Question, error) {
	q, err := s.buildQuestion(quizID, questionID, in)
	if err != nil {
		return nil, err
	}
	err = db.WithTx(ctx, s.store.DB(), func(tx *sql.Tx) error {
		if err := s.store.ReplaceQuestion(ctx, tx, q); err != nil {
			return err
		}
		return s.store.RecomputeTotalPoints(ctx, tx, quizID, s.clock.Now())
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (s *Service) DeleteQuestion(ctx context.Context, quizID, questionID string) error {
	return db.WithTx(ctx, s.store.DB(), func(tx *sql.Tx) error {
		if err := s.store.DeleteQuestion(ctx, tx, quizID, questionID); err != nil {
			return err
		}
		return s.store.RecomputeTotalPoints(ctx, tx, quizID, s.clock.Now())
	})
}

// TemplateTarget places a copy of a template. An empty Title keeps the
// template's title.
type TemplateTarget struct {
	Title           string
	ChapterID       *string
	ContentBlockID  *string
	CourseVersionID *string
}

// CreateFromTemplate deep-copies a template's settings, questions and
// answers under fresh ids.
func (s *Service) CreateFromTemplate(ctx context.Context, templateID string, target TemplateTarget) (*Quiz, error) {
	tpl, err := s.GetQuiz(ctx, templateID)
	if errors.Is(err, ErrQuizNotFound) || (err == nil && !tpl.IsTemplate) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}

	st := tpl.Settings
	st.IsTemplate = false
	st.ChapterID, st.ContentBlockID, st.CourseVersionID = target.ChapterID, target.ContentBlockID, target.CourseVersionID
	if strings.TrimSpace(target.Title) != "" {
		st.Title = target.Title
	}
	if err := s.validateSettings(ctx, &st); err != nil {
		return nil, err
	}

	now := db.FromUnix(s.clock.Now().Unix())
	src := tpl.ID
	q := &Quiz{ID: uuid.NewString(), Settings: st, SourceTemplateID: &src, CreatedAt: now, UpdatedAt: now}
	for _, tq := range tpl.Questions {
		nq := tq
		nq.ID = uuid.NewString()
		nq.QuizID = q.ID
		nq.Answers = make([]Answer, len(tq.Answers))
		for i, a := range tq.Answers {
			a.ID = uuid.NewString()
			a.QuestionID = nq.ID
			nq.Answers[i] = a
		}
		q.Questions = append(q.Questions, nq)
	}

	err = db.WithTx(ctx, s.store.DB(), func(tx *sql.Tx) error {
		if err := s.store.InsertQuiz(ctx, tx, q); err != nil {
			return err
		}
		for i := range q.Questions {
			if err := s.store.InsertQuestion(ctx, tx, &q.Questions[i]); err != nil {
				return err
			}
		}
		return s.store.RecomputeTotalPoints(ctx, tx, q.ID, now)
	})
	if err != nil {
		return nil, err
	}
	q.TotalPoints = tpl.TotalPoints
	s.log.Info("quiz created from template", "quiz_id", q.ID, "template_id", tpl.ID)
	return q, nil
}

/* ---------------------------- attempts ----------------------------- */

func (s *Service) ownedAttempt(ctx context.Context, userID, attemptID string) (*Attempt, error) {
	a, err := s.store.GetAttempt(ctx, s.store.DB(), attemptID)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, ErrAttemptNotFound
	}
	return a, nil
}

// StartAttempt returns the caller's in-progress attempt if there is one,
// otherwise opens a new one. resumed reports which happened.
func (s *Service) StartAttempt(ctx context.Context, userID, quizID string) (a *Attempt, resumed bool, err error) {
	err = db.WithTx(ctx, s.store.DB(), func(tx *sql.Tx) error {
		q, err := s.store.GetQuiz(ctx, tx, quizID)
		if err != nil {
			return err
		}
		if q.MaxAttempts != nil {
			n, err := s.store.CountFinished(ctx, tx, userID, quizID)
			if err != nil {
				return err
			}
			if n >= *q.MaxAttempts {
				return ErrMaxAttemptsReached
			}
		}
		if existing, err := s.store.FindInProgress(ctx, tx, userID, quizID); err == nil {
			a, resumed = existing, true
			return nil
		} else if !errors.Is(err, ErrAttemptNotFound) {
			return err
		}
		num, err := s.store.NextAttemptNumber(ctx, tx, userID, quizID)
		if err != nil {
			return err
		}
		a = &Attempt{
			ID:                uuid.NewString(),
			QuizID:            quizID,
			UserID:            userID,
			AttemptNumber:     num,
			Status:            StatusInProgress,
			TotalPoints:       q.TotalPoints,
			StartedAt:         db.FromUnix(s.clock.Now().Unix()),
			Violations:        []Violation{},
			ReviewQuestionIDs: []string{},
		}
		return s.store.InsertAttempt(ctx, tx, a)
	})
	if errors.Is(err, errAttemptConflict) {
		// a concurrent start won; resume its attempt
		a, err = s.store.FindInProgress(ctx, s.store.DB(), userID, quizID)
		if err != nil {
			return nil, false, err
		}
		return a, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !resumed {
		s.log.Info("attempt started", "attempt_id", a.ID, "quiz_id", quizID, "user_id", userID, "number", a.AttemptNumber)
	}
	return a, resumed, nil
}

// activeAttempt loads an owned in-progress attempt with its quiz. An attempt
// found past its time limit is expired on the spot.
func (s *Service) activeAttempt(ctx context.Context, userID, attemptID string) (*Attempt, *Quiz, error) {
	a, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, nil, err
	}
	if a.Status != StatusInProgress {
		return nil, nil, ErrNotInProgress
	}
	q, err := s.store.GetQuiz(ctx, s.store.DB(), a.QuizID)
	if err != nil {
		return nil, nil, err
	}
	if dl := q.deadline(a.StartedAt); !dl.IsZero() && !s.clock.Now().Before(dl) {
		if _, err := s.finish(ctx, a, q, StatusTimeExpired); err != nil && !errors.Is(err, ErrNotInProgress) {
			return nil, nil, err
		}
		return nil, nil, ErrNotInProgress
	}
	return a, q, nil
}

// SubmitAnswer grades and stores the response for one question, replacing
// any earlier response to it.
func (s *Service) SubmitAnswer(ctx context.Context, userID, attemptID, questionID string, selected []string, timeSpentSec int) (*Response, error) {
	a, _, err := s.activeAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	questions, err := s.store.LoadQuestions(ctx, s.store.DB(), a.QuizID)
	if err != nil {
		return nil, err
	}
	var question *Question
	for i := range questions {
		if questions[i].ID == questionID {
			question = &questions[i]
			break
		}
	}
	if question == nil {
		return nil, ErrQuestionNotFound
	}
	selected = grading.Normalize(selected)
	for _, id := range selected {
		if !question.hasAnswer(id) {
			return nil, ErrInvalidAnswer
		}
	}
	res, err := s.grader.Grade(grading.Q{Type: question.Type, Points: question.Points, CorrectAnswerIDs: question.CorrectAnswerIDs()}, selected)
	if err != nil {
		return nil, err
	}
	if timeSpentSec < 0 {
		timeSpentSec = 0
	}

	now := s.clock.Now()
	r := &Response{
		ID:                uuid.NewString(),
		AttemptID:         a.ID,
		QuestionID:        questionID,
		SelectedAnswerIDs: selected,
		IsCorrect:         res.Correct,
		PointsEarned:      res.PointsEarned,
		TimeSpentSec:      timeSpentSec,
		AnsweredAt:        db.FromUnix(now.Unix()),
	}
	err = db.WithTx(ctx, s.store.DB(), func(tx *sql.Tx) error {
		if err := s.store.LockInProgress(ctx, tx, a.ID); err != nil {
			return err
		}
		if err := s.store.UpsertResponse(ctx, tx, r); err != nil {
			return err
		}
		n, err := s.store.CountResponses(ctx, tx, a.ID)
		if err != nil {
			return err
		}
		return s.store.SetAnswered(ctx, tx, a.ID, n, now)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// AutoSave stores opaque client state and the client's view of the time
// left. Scoring never reads it.
func (s *Service) AutoSave(ctx context.Context, userID, attemptID string, data json.RawMessage, timeRemainingSec *int) (*Attempt, error) {
	a, _, err := s.activeAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 && !json.Valid(data) {
		return nil, fmt.Errorf("%w: auto-save data must be JSON", ErrInvalidQuiz)
	}
	err = db.WithTx(ctx, s.store.DB(), func(tx *sql.Tx) error {
		if err := s.store.LockInProgress(ctx, tx, a.ID); err != nil {
			return err
		}
		return s.store.SaveAutoSave(ctx, tx, a.ID, data, timeRemainingSec, s.clock.Now())
	})
	if err != nil {
		return nil, err
	}
	return s.store.GetAttempt(ctx, s.store.DB(), a.ID)
}

// ToggleReview flips whether a question is flagged for review.
func (s *Service) ToggleReview(ctx context.Context, userID, attemptID, questionID string) (*Attempt, error) {
	a, _, err := s.activeAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	questions, err := s.store.LoadQuestions(ctx, s.store.DB(), a.QuizID)
	if err != nil {
		return nil, err
	}
	found := false
	for _, q := range questions {
		if q.ID == questionID {
			found = true
			break
		}
	}
	if !found {
		return nil, ErrQuestionNotFound
	}

	err = db.WithTx(ctx, s.store.DB(), func(tx *sql.Tx) error {
		if err := s.store.LockInProgress(ctx, tx, a.ID); err != nil {
			return err
		}
		cur, err := s.store.GetAttempt(ctx, tx, a.ID)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(cur.ReviewQuestionIDs)+1)
		removed := false
		for _, id := range cur.ReviewQuestionIDs {
			if id == questionID {
				removed = true
				continue
			}
			ids = append(ids, id)
		}
		if !removed {
			ids = append(ids, questionID)
		}
		return s.store.SetReviewList(ctx, tx, a.ID, ids)
	})
	if err != nil {
		return nil, err
	}
	return s.store.GetAttempt(ctx, s.store.DB(), a.ID)
}

// LogViolation appends an integrity event and bumps its counter. Whether a
// violation matters is up to the quiz settings and the reviewer; the attempt
// is never ended here.
func (s *Service) LogViolation(ctx context.Context, userID, attemptID, kind, detail string) (*Attempt, error) {
	if kind != ViolationTabSwitch && kind != ViolationCopyPaste {
		return nil, ErrInvalidViolation
	}
	a, _, err := s.activeAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	err = db.WithTx(ctx, s.store.DB(), func(tx *sql.Tx) error {
		if err := s.store.LockInProgress(ctx, tx, a.ID); err != nil {
			return err
		}
		cur, err := s.store.GetAttempt(ctx, tx, a.ID)
		if err != nil {
			return err
		}
		entries := append(cur.Violations, Violation{Type: kind, At: db.FromUnix(s.clock.Now().Unix()), Detail: detail})
		return s.store.AppendViolation(ctx, tx, a.ID, entries, kind)
	})
	if err != nil {
		return nil, err
	}
	s.log.Warn("integrity violation", "attempt_id", a.ID, "user_id", userID, "kind", kind)
	return s.store.GetAttempt(ctx, s.store.DB(), a.ID)
}

// Completion is what CompleteAttempt hands back. Certificate is set only
// when this completion minted one.
type Completion struct {
	Attempt     *Attempt                 `json:"attempt"`
	Certificate *certificate.Certificate `json:"certificate,omitempty"`
}

// CompleteAttempt scores and closes an in-progress attempt. Only the first
// of concurrent finishes succeeds.
func (s *Service) CompleteAttempt(ctx context.Context, userID, attemptID string) (*Completion, error) {
	a, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusInProgress {
		return nil, ErrNotInProgress
	}
	q, err := s.store.GetQuiz(ctx, s.store.DB(), a.QuizID)
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, a, q, StatusCompleted)
}

// ExpireAttempt closes an in-progress attempt as TIME_EXPIRED, scoring what
// was answered so far.
func (s *Service) ExpireAttempt(ctx context.Context, userID, attemptID string) (*Attempt, error) {
	a, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusInProgress {
		return nil, ErrNotInProgress
	}
	q, err := s.store.GetQuiz(ctx, s.store.DB(), a.QuizID)
	if err != nil {
		return nil, err
	}
	c, err := s.finish(ctx, a, q, StatusTimeExpired)
	if err != nil {
		return nil, err
	}
	return c.Attempt, nil
}

// ExpireOverdue closes every timed attempt whose limit has run out and
// returns how many it closed.
func (s *Service) ExpireOverdue(ctx context.Context, batch int) (int, error) {
	if batch <= 0 {
		batch = 100
	}
	due, err := s.store.ListOverdue(ctx, s.clock.Now(), batch)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, o := range due {
		if _, err := s.ExpireAttempt(ctx, o.UserID, o.ID); err != nil {
			if errors.Is(err, ErrNotInProgress) {
				continue
			}
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *Service) finish(ctx context.Context, a *Attempt, q *Quiz, status string) (*Completion, error) {
	now := s.clock.Now()
	done := db.FromUnix(now.Unix())
	spent := int(now.Sub(a.StartedAt) / time.Second)
	if spent < 0 {
		spent = 0
	}
	var remaining *int
	if status == StatusTimeExpired {
		zero := 0
		remaining = &zero
	} else if q.TimeLimitMinutes != nil {
		left := *q.TimeLimitMinutes*60 - spent
		if left < 0 {
			left = 0
		}
		remaining = &left
	} else {
		remaining = a.TimeRemainingSec
	}

	final := *a
	err := db.WithTx(ctx, s.store.DB(), func(tx *sql.Tx) error {
		earned, err := s.store.SumEarned(ctx, tx, a.ID)
		if err != nil {
			return err
		}
		final.Score, final.Passed = Score(earned, a.TotalPoints, q.PassingScore)
		final.Status = status
		final.CompletedAt = &done
		final.TimeSpentSec = &spent
		final.TimeRemainingSec = remaining
		return s.store.Finalize(ctx, tx, &final)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("attempt finished", "attempt_id", a.ID, "quiz_id", q.ID, "user_id", a.UserID,
		"status", status, "score", final.Score, "passed", final.Passed)
	return &Completion{Attempt: &final, Certificate: s.afterFinish(context.WithoutCancel(ctx), &final, q)}, nil
}

// afterFinish runs the post-commit side effects. Failures are logged and
// never undo the finished attempt.
func (s *Service) afterFinish(ctx context.Context, a *Attempt, q *Quiz) *certificate.Certificate {
	if _, err := s.store.RecomputeDay(ctx, uuid.NewString(), q.ID, *a.CompletedAt, s.clock.Now()); err != nil {
		s.log.Warn("analytics recompute failed", "quiz_id", q.ID, "error", err)
	}
	typ := eventlog.AttemptCompleted
	if a.Status == StatusTimeExpired {
		typ = eventlog.AttemptExpired
	}
	if err := s.events.Append(ctx, typ, "quiz:"+q.ID, map[string]any{
		"attemptId": a.ID, "userId": a.UserID, "score": a.Score, "passed": a.Passed,
	}); err != nil {
		s.log.Warn("event append failed", "type", typ, "error", err)
	}

	if a.Status != StatusCompleted || !a.Passed {
		return nil
	}
	if q.ChapterID != nil && s.prog != nil {
		if _, err := s.prog.MarkCompleted(ctx, a.UserID, *q.ChapterID); err != nil {
			s.log.Warn("chapter completion failed", "chapter_id", *q.ChapterID, "user_id", a.UserID, "error", err)
		}
	}
	if !q.GenerateCertificate || s.certs == nil {
		return nil
	}
	versionID, err := s.courseVersionOf(ctx, q)
	if err != nil || versionID == "" {
		if err != nil {
			s.log.Warn("certificate course lookup failed", "quiz_id", q.ID, "error", err)
		}
		return nil
	}
	cert, issued, err := s.certs.IssueIfEligible(ctx, certificate.Request{
		UserID:          a.UserID,
		QuizID:          q.ID,
		AttemptID:       a.ID,
		CourseVersionID: versionID,
		Score:           a.Score,
		CompletedAt:     *a.CompletedAt,
	})
	if err != nil {
		s.log.Warn("certificate issue failed", "attempt_id", a.ID, "error", err)
		return nil
	}
	if !issued {
		return nil
	}
	return cert
}

// courseVersionOf resolves the version a quiz belongs to, directly or via
// its chapter.
func (s *Service) courseVersionOf(ctx context.Context, q *Quiz) (string, error) {
	if q.CourseVersionID != nil && *q.CourseVersionID != "" {
		return *q.CourseVersionID, nil
	}
	if q.ChapterID == nil || s.course == nil {
		return "", nil
	}
	ch, err := s.course.GetChapter(ctx, *q.ChapterID)
	if err != nil {
		return "", err
	}
	return ch.CourseVersionID, nil
}

func (s *Service) GetAttempt(ctx context.Context, userID, attemptID string) (*Attempt, error) {
	return s.ownedAttempt(ctx, userID, attemptID)
}

func (s *Service) ListAttempts(ctx context.Context, userID, quizID string) ([]Attempt, error) {
	if _, err := s.store.GetQuiz(ctx, s.store.DB(), quizID); err != nil {
		return nil, err
	}
	return s.store.ListAttempts(ctx, userID, quizID)
}

// GetResult returns an attempt with its responses. Once the attempt is
// finished, a per-question review is attached.
func (s *Service) GetResult(ctx context.Context, userID, attemptID string) (*Result, error) {
	a, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	responses, err := s.store.ListResponses(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	res := &Result{Attempt: a, Responses: responses}
	if a.Status == StatusInProgress {
		return res, nil
	}
	q, err := s.store.GetQuiz(ctx, s.store.DB(), a.QuizID)
	if err != nil {
		return nil, err
	}
	questions, err := s.store.LoadQuestions(ctx, s.store.DB(), a.QuizID)
	if err != nil {
		return nil, err
	}
	byQuestion := make(map[string]Response, len(responses))
	for _, r := range responses {
		byQuestion[r.QuestionID] = r
	}
	for _, qq := range questions {
		r := byQuestion[qq.ID]
		rv := QuestionReview{
			QuestionID:        qq.ID,
			Text:              qq.Text,
			Points:            qq.Points,
			SelectedAnswerIDs: r.SelectedAnswerIDs,
			IsCorrect:         r.IsCorrect,
			PointsEarned:      r.PointsEarned,
		}
		if rv.SelectedAnswerIDs == nil {
			rv.SelectedAnswerIDs = []string{}
		}
		if q.ShowCorrectAnswers {
			rv.CorrectAnswerIDs = qq.CorrectAnswerIDs()
			rv.Explanation = qq.Explanation
		}
		res.Review = append(res.Review, rv)
	}
	return res, nil
}

func (s *Service) ListAnalytics(ctx context.Context, quizID, from, to string) ([]DailyAnalytics, error) {
	if _, err := s.store.GetQuiz(ctx, s.store.DB(), quizID); err != nil {
		return nil, err
	}
	return s.store.ListAnalytics(ctx, quizID, from, to)
}
