package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mind-engage/learnhub/internal/db"
)

// SQLStore persists quizzes, attempts, responses and daily analytics. Methods
// taking a db.Queryer run on whatever handle the caller passes, so the
// service can compose them inside one transaction.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(h *sql.DB) *SQLStore { return &SQLStore{db: h} }

func (s *SQLStore) DB() *sql.DB { return s.db }

type scanner interface{ Scan(...any) error }

func nullStr(p *string) sql.NullString {
	if p == nil || *p == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func strPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	s := n.String
	return &s
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

/* ----------------------------- quizzes ----------------------------- */

const quizCols = `id, title, description, chapter_id, content_block_id, course_version_id, is_template, source_template_id,
passing_score, max_attempts, time_limit_minutes, prevent_tab_switch, prevent_copy_paste, randomize_questions,
randomize_answers, show_correct_answers, generate_certificate, total_points, created_at, updated_at`

func scanQuiz(row scanner) (*Quiz, error) {
	var (
		q                               Quiz
		chapter, block, version, source sql.NullString
		maxAttempts, timeLimit          sql.NullInt64
		created, updated                int64
	)
	err := row.Scan(&q.ID, &q.Title, &q.Description, &chapter, &block, &version, &q.IsTemplate, &source,
		&q.PassingScore, &maxAttempts, &timeLimit, &q.PreventTabSwitch, &q.PreventCopyPaste, &q.RandomizeQuestions,
		&q.RandomizeAnswers, &q.ShowCorrectAnswers, &q.GenerateCertificate, &q.TotalPoints, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQuizNotFound
		}
		return nil, err
	}
	q.ChapterID = strPtr(chapter)
	q.ContentBlockID = strPtr(block)
	q.CourseVersionID = strPtr(version)
	q.SourceTemplateID = strPtr(source)
	q.MaxAttempts = intPtr(maxAttempts)
	q.TimeLimitMinutes = intPtr(timeLimit)
	q.CreatedAt = db.FromUnix(created)
	q.UpdatedAt = db.FromUnix(updated)
	return &q, nil
}

func (s *SQLStore) InsertQuiz(ctx context.Context, x db.Queryer, q *Quiz) error {
	_, err := x.ExecContext(ctx, `
INSERT INTO quizzes (`+quizCols+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		q.ID, q.Title, q.Description, nullStr(q.ChapterID), nullStr(q.ContentBlockID), nullStr(q.CourseVersionID),
		q.IsTemplate, nullStr(q.SourceTemplateID), q.PassingScore, nullInt(q.MaxAttempts), nullInt(q.TimeLimitMinutes),
		q.PreventTabSwitch, q.PreventCopyPaste, q.RandomizeQuestions, q.RandomizeAnswers, q.ShowCorrectAnswers,
		q.GenerateCertificate, q.TotalPoints, q.CreatedAt.Unix(), q.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("quiz: insert: %w", err)
	}
	return nil
}

func (s *SQLStore) UpdateSettings(ctx context.Context, id string, st Settings, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE quizzes SET title = $1, description = $2, chapter_id = $3, content_block_id = $4, course_version_id = $5,
  is_template = $6, passing_score = $7, max_attempts = $8, time_limit_minutes = $9, prevent_tab_switch = $10,
  prevent_copy_paste = $11, randomize_questions = $12, randomize_answers = $13, show_correct_answers = $14,
  generate_certificate = $15, updated_at = $16
WHERE id = $17`,
		st.Title, st.Description, nullStr(st.ChapterID), nullStr(st.ContentBlockID), nullStr(st.CourseVersionID),
		st.IsTemplate, st.PassingScore, nullInt(st.MaxAttempts), nullInt(st.TimeLimitMinutes), st.PreventTabSwitch,
		st.PreventCopyPaste, st.RandomizeQuestions, st.RandomizeAnswers, st.ShowCorrectAnswers,
		st.GenerateCertificate, now.Unix(), id)
	if err != nil {
		return fmt.Errorf("quiz: update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrQuizNotFound
	}
	return nil
}

func (s *SQLStore) DeleteQuiz(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM quizzes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("quiz: delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrQuizNotFound
	}
	return nil
}

func (s *SQLStore) GetQuiz(ctx context.Context, x db.Queryer, id string) (*Quiz, error) {
	return scanQuiz(x.QueryRowContext(ctx, `SELECT `+quizCols+` FROM quizzes WHERE id = $1`, id))
}

// ListFilter narrows ListQuizzes. Empty fields do not filter.
type ListFilter struct {
	ChapterID       string
	CourseVersionID string
	TemplatesOnly   bool
}

func (s *SQLStore) ListQuizzes(ctx context.Context, f ListFilter) ([]Quiz, error) {
	q := `SELECT ` + quizCols + ` FROM quizzes WHERE 1=1`
	var args []any
	if f.ChapterID != "" {
		args = append(args, f.ChapterID)
		q += fmt.Sprintf(" AND chapter_id = $%d", len(args))
	}
	if f.CourseVersionID != "" {
		args = append(args, f.CourseVersionID)
		q += fmt.Sprintf(" AND course_version_id = $%d", len(args))
	}
	if f.TemplatesOnly {
		q += " AND is_template = TRUE"
	}
	q += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("quiz: list: %w", err)
	}
	defer rows.Close()
	var out []Quiz
	for rows.Next() {
		qz, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *qz)
	}
	return out, rows.Err()
}

// RecomputeTotalPoints sets total_points to the sum of the quiz's question
// points. Attempts already started keep their own snapshot.
func (s *SQLStore) RecomputeTotalPoints(ctx context.Context, x db.Queryer, quizID string, now time.Time) error {
	_, err := x.ExecContext(ctx, `
UPDATE quizzes SET total_points = (SELECT COALESCE(SUM(points), 0) FROM quiz_questions WHERE quiz_id = $1),
  updated_at = $2
WHERE id = $3`, quizID, now.Unix(), quizID)
	if err != nil {
		return fmt.Errorf("quiz: total points: %w", err)
	}
	return nil
}

/* ---------------------------- questions ---------------------------- */

func (s *SQLStore) NextQuestionIndex(ctx context.Context, x db.Queryer, quizID string) (int, error) {
	var n int
	err := x.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(order_index), -1) + 1 FROM quiz_questions WHERE quiz_id = $1`, quizID).Scan(&n)
	return n, err
}

func (s *SQLStore) InsertQuestion(ctx context.Context, x db.Queryer, q *Question) error {
	if _, err := x.ExecContext(ctx, `
INSERT INTO quiz_questions (id, quiz_id, type, text, explanation, points, order_index)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, q.ID, q.QuizID, q.Type, q.Text, q.Explanation, q.Points, q.OrderIndex); err != nil {
		return fmt.Errorf("quiz: insert question: %w", err)
	}
	return s.insertAnswers(ctx, x, q.Answers)
}

func (s *SQLStore) insertAnswers(ctx context.Context, x db.Queryer, answers []Answer) error {
	for _, a := range answers {
		if _, err := x.ExecContext(ctx, `
INSERT INTO quiz_answers (id, question_id, text, is_correct, order_index) VALUES ($1,$2,$3,$4,$5)`,
			a.ID, a.QuestionID, a.Text, a.IsCorrect, a.OrderIndex); err != nil {
			return fmt.Errorf("quiz: insert answer: %w", err)
		}
	}
	return nil
}

// ReplaceQuestion rewrites the question row and swaps its answer set.
func (s *SQLStore) ReplaceQuestion(ctx context.Context, x db.Queryer, q *Question) error {
	res, err := x.ExecContext(ctx, `
UPDATE quiz_questions SET type = $1, text = $2, explanation = $3, points = $4
WHERE id = $5 AND quiz_id = $6`, q.Type, q.Text, q.Explanation, q.Points, q.ID, q.QuizID)
	if err != nil {
		return fmt.Errorf("quiz: update question: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrQuestionNotFound
	}
	if _, err := x.ExecContext(ctx, `DELETE FROM quiz_answers WHERE question_id = $1`, q.ID); err != nil {
		return fmt.Errorf("quiz: clear answers: %w", err)
	}
	return s.insertAnswers(ctx, x, q.Answers)
}

func (s *SQLStore) DeleteQuestion(ctx context.Context, x db.Queryer, quizID, questionID string) error {
	res, err := x.ExecContext(ctx, `DELETE FROM quiz_questions WHERE id = $1 AND quiz_id = $2`, questionID, quizID)
	if err != nil {
		return fmt.Errorf("quiz: delete question: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrQuestionNotFound
	}
	return nil
}

// LoadQuestions returns the quiz's questions in order with their answers.
func (s *SQLStore) LoadQuestions(ctx context.Context, x db.Queryer, quizID string) ([]Question, error) {
	rows, err := x.QueryContext(ctx, `
SELECT id, quiz_id, type, text, explanation, points, order_index
FROM quiz_questions WHERE quiz_id = $1 ORDER BY order_index, id`, quizID)
	if err != nil {
		return nil, fmt.Errorf("quiz: load questions: %w", err)
	}
	var qs []Question
	idx := map[string]int{}
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Type, &q.Text, &q.Explanation, &q.Points, &q.OrderIndex); err != nil {
			rows.Close()
			return nil, err
		}
		idx[q.ID] = len(qs)
		qs = append(qs, q)
	}
	err = rows.Err()
	rows.Close()
	if err != nil || len(qs) == 0 {
		return qs, err
	}

	arows, err := x.QueryContext(ctx, `
SELECT a.id, a.question_id, a.text, a.is_correct, a.order_index
FROM quiz_answers a JOIN quiz_questions q ON q.id = a.question_id
WHERE q.quiz_id = $1 ORDER BY a.order_index, a.id`, quizID)
	if err != nil {
		return nil, fmt.Errorf("quiz: load answers: %w", err)
	}
	defer arows.Close()
	for arows.Next() {
		var a Answer
		if err := arows.Scan(&a.ID, &a.QuestionID, &a.Text, &a.IsCorrect, &a.OrderIndex); err != nil {
			return nil, err
		}
		if i, ok := idx[a.QuestionID]; ok {
			qs[i].Answers = append(qs[i].Answers, a)
		}
	}
	return qs, arows.Err()
}

/* ----------------------------- attempts ---------------------------- */

const attemptCols = `id, quiz_id, user_id, attempt_number, status, score, passed, total_points, questions_answered,
started_at, completed_at, last_saved_at, time_spent_sec, time_remaining_sec, tab_switch_count, copy_paste_count,
violation_log, auto_save_data, review_question_ids`

func scanAttempt(row scanner) (*Attempt, error) {
	var (
		a                          Attempt
		started                    int64
		completed, saved           sql.NullInt64
		spent, remaining           sql.NullInt64
		violations, auto, reviewed string
	)
	err := row.Scan(&a.ID, &a.QuizID, &a.UserID, &a.AttemptNumber, &a.Status, &a.Score, &a.Passed, &a.TotalPoints,
		&a.QuestionsAnswered, &started, &completed, &saved, &spent, &remaining, &a.TabSwitchCount, &a.CopyPasteCount,
		&violations, &auto, &reviewed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	a.StartedAt = db.FromUnix(started)
	a.CompletedAt = db.TimePtr(completed)
	a.LastSavedAt = db.TimePtr(saved)
	a.TimeSpentSec = intPtr(spent)
	a.TimeRemainingSec = intPtr(remaining)
	if err := json.Unmarshal([]byte(violations), &a.Violations); err != nil {
		return nil, fmt.Errorf("quiz: violation log: %w", err)
	}
	if err := json.Unmarshal([]byte(reviewed), &a.ReviewQuestionIDs); err != nil {
		return nil, fmt.Errorf("quiz: review list: %w", err)
	}
	if a.Violations == nil {
		a.Violations = []Violation{}
	}
	if a.ReviewQuestionIDs == nil {
		a.ReviewQuestionIDs = []string{}
	}
	if auto != "" {
		a.AutoSaveData = json.RawMessage(auto)
	}
	return &a, nil
}

func (s *SQLStore) GetAttempt(ctx context.Context, x db.Queryer, id string) (*Attempt, error) {
	return scanAttempt(x.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM quiz_attempts WHERE id = $1`, id))
}

func (s *SQLStore) FindInProgress(ctx context.Context, x db.Queryer, userID, quizID string) (*Attempt, error) {
	return scanAttempt(x.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM quiz_attempts
WHERE user_id = $1 AND quiz_id = $2 AND status = 'IN_PROGRESS'`, userID, quizID))
}

func (s *SQLStore) ListAttempts(ctx context.Context, userID, quizID string) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+attemptCols+` FROM quiz_attempts
WHERE user_id = $1 AND quiz_id = $2 ORDER BY attempt_number`, userID, quizID)
	if err != nil {
		return nil, fmt.Errorf("quiz: list attempts: %w", err)
	}
	defer rows.Close()
	out := []Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// CountFinished counts attempts that count against max_attempts.
func (s *SQLStore) CountFinished(ctx context.Context, x db.Queryer, userID, quizID string) (int, error) {
	var n int
	err := x.QueryRowContext(ctx, `SELECT COUNT(*) FROM quiz_attempts
WHERE user_id = $1 AND quiz_id = $2 AND status IN ('COMPLETED', 'TIME_EXPIRED')`, userID, quizID).Scan(&n)
	return n, err
}

func (s *SQLStore) NextAttemptNumber(ctx context.Context, x db.Queryer, userID, quizID string) (int, error) {
	var n int
	err := x.QueryRowContext(ctx, `SELECT COALESCE(MAX(attempt_number), 0) + 1 FROM quiz_attempts
WHERE user_id = $1 AND quiz_id = $2`, userID, quizID).Scan(&n)
	return n, err
}

// InsertAttempt returns errAttemptConflict when another in-progress attempt
// (or the same attempt number) won a concurrent start.
func (s *SQLStore) InsertAttempt(ctx context.Context, x db.Queryer, a *Attempt) error {
	_, err := x.ExecContext(ctx, `
INSERT INTO quiz_attempts (id, quiz_id, user_id, attempt_number, status, total_points, started_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, a.ID, a.QuizID, a.UserID, a.AttemptNumber, a.Status, a.TotalPoints, a.StartedAt.Unix())
	if db.IsUniqueViolation(err) {
		return errAttemptConflict
	}
	if err != nil {
		return fmt.Errorf("quiz: insert attempt: %w", err)
	}
	return nil
}

// LockInProgress touches the attempt row so the surrounding transaction holds
// its write lock. It fails with ErrNotInProgress once the attempt is finished.
func (s *SQLStore) LockInProgress(ctx context.Context, x db.Queryer, id string) error {
	res, err := x.ExecContext(ctx,
		`UPDATE quiz_attempts SET status = status WHERE id = $1 AND status = 'IN_PROGRESS'`, id)
	if err != nil {
		return fmt.Errorf("quiz: lock attempt: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return ErrNotInProgress
	}
	return nil
}

func (s *SQLStore) SetAnswered(ctx context.Context, x db.Queryer, id string, answered int, now time.Time) error {
	_, err := x.ExecContext(ctx, `UPDATE quiz_attempts SET questions_answered = $1, last_saved_at = $2
WHERE id = $3 AND status = 'IN_PROGRESS'`, answered, now.Unix(), id)
	return err
}

func (s *SQLStore) SaveAutoSave(ctx context.Context, x db.Queryer, id string, data json.RawMessage, remaining *int, now time.Time) error {
	_, err := x.ExecContext(ctx, `UPDATE quiz_attempts SET auto_save_data = $1, time_remaining_sec = COALESCE($2, time_remaining_sec),
  last_saved_at = $3
WHERE id = $4 AND status = 'IN_PROGRESS'`, string(data), nullInt(remaining), now.Unix(), id)
	return err
}

func (s *SQLStore) SetReviewList(ctx context.Context, x db.Queryer, id string, ids []string) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	_, err = x.ExecContext(ctx, `UPDATE quiz_attempts SET review_question_ids = $1
WHERE id = $2 AND status = 'IN_PROGRESS'`, string(raw), id)
	return err
}

// AppendViolation stores the new log and bumps the counter for its kind.
func (s *SQLStore) AppendViolation(ctx context.Context, x db.Queryer, id string, entries []Violation, kind string) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	col := "tab_switch_count"
	if kind == ViolationCopyPaste {
		col = "copy_paste_count"
	}
	_, err = x.ExecContext(ctx, `UPDATE quiz_attempts SET violation_log = $1, `+col+` = `+col+` + 1
WHERE id = $2 AND status = 'IN_PROGRESS'`, string(raw), id)
	return err
}

// Finalize moves an in-progress attempt to a terminal status. Exactly one
// caller wins; everyone else gets ErrNotInProgress.
func (s *SQLStore) Finalize(ctx context.Context, x db.Queryer, a *Attempt) error {
	res, err := x.ExecContext(ctx, `
UPDATE quiz_attempts SET status = $1, score = $2, passed = $3, completed_at = $4, time_spent_sec = $5,
  time_remaining_sec = $6
WHERE id = $7 AND status = 'IN_PROGRESS'`,
		a.Status, a.Score, a.Passed, db.NullUnix(a.CompletedAt), nullInt(a.TimeSpentSec), nullInt(a.TimeRemainingSec), a.ID)
	if err != nil {
		return fmt.Errorf("quiz: finalize: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return ErrNotInProgress
	}
	return nil
}

type overdue struct {
	ID, UserID string
}

// ListOverdue finds in-progress attempts whose time limit has run out.
func (s *SQLStore) ListOverdue(ctx context.Context, now time.Time, limit int) ([]overdue, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT a.id, a.user_id FROM quiz_attempts a JOIN quizzes q ON q.id = a.quiz_id
WHERE a.status = 'IN_PROGRESS' AND q.time_limit_minutes IS NOT NULL
  AND a.started_at + q.time_limit_minutes * 60 <= $1
ORDER BY a.started_at LIMIT $2`, now.Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("quiz: list overdue: %w", err)
	}
	defer rows.Close()
	var out []overdue
	for rows.Next() {
		var o overdue
		if err := rows.Scan(&o.ID, &o.UserID); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

/* ---------------------------- responses ---------------------------- */

// UpsertResponse keeps one response per (attempt, question); resubmitting
// replaces the earlier one.
func (s *SQLStore) UpsertResponse(ctx context.Context, x db.Queryer, r *Response) error {
	raw, err := json.Marshal(r.SelectedAnswerIDs)
	if err != nil {
		return err
	}
	_, err = x.ExecContext(ctx, `
INSERT INTO quiz_responses (id, attempt_id, question_id, selected_answer_ids, is_correct, points_earned, time_spent_sec, answered_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (attempt_id, question_id) DO UPDATE SET
  selected_answer_ids = excluded.selected_answer_ids,
  is_correct = excluded.is_correct,
  points_earned = excluded.points_earned,
  time_spent_sec = excluded.time_spent_sec,
  answered_at = excluded.answered_at`,
		r.ID, r.AttemptID, r.QuestionID, string(raw), r.IsCorrect, r.PointsEarned, r.TimeSpentSec, r.AnsweredAt.Unix())
	if err != nil {
		return fmt.Errorf("quiz: upsert response: %w", err)
	}
	return x.QueryRowContext(ctx, `SELECT id FROM quiz_responses WHERE attempt_id = $1 AND question_id = $2`,
		r.AttemptID, r.QuestionID).Scan(&r.ID)
}

func (s *SQLStore) CountResponses(ctx context.Context, x db.Queryer, attemptID string) (int, error) {
	var n int
	err := x.QueryRowContext(ctx, `SELECT COUNT(*) FROM quiz_responses WHERE attempt_id = $1`, attemptID).Scan(&n)
	return n, err
}

func (s *SQLStore) SumEarned(ctx context.Context, x db.Queryer, attemptID string) (float64, error) {
	var n float64
	err := x.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(points_earned), 0) FROM quiz_responses WHERE attempt_id = $1`, attemptID).Scan(&n)
	return n, err
}

func (s *SQLStore) ListResponses(ctx context.Context, attemptID string) ([]Response, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, attempt_id, question_id, selected_answer_ids, is_correct, points_earned, time_spent_sec, answered_at
FROM quiz_responses WHERE attempt_id = $1 ORDER BY answered_at, id`, attemptID)
	if err != nil {
		return nil, fmt.Errorf("quiz: list responses: %w", err)
	}
	defer rows.Close()
	out := []Response{}
	for rows.Next() {
		var (
			r        Response
			selected string
			answered int64
		)
		if err := rows.Scan(&r.ID, &r.AttemptID, &r.QuestionID, &selected, &r.IsCorrect, &r.PointsEarned,
			&r.TimeSpentSec, &answered); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(selected), &r.SelectedAnswerIDs); err != nil {
			return nil, fmt.Errorf("quiz: selected answers: %w", err)
		}
		r.AnsweredAt = db.FromUnix(answered)
		out = append(out, r)
	}
	return out, rows.Err()
}

/* ---------------------------- analytics ---------------------------- */

// RecomputeDay rebuilds one (quiz, UTC day) bucket from the attempts that
// finished that day.
func (s *SQLStore) RecomputeDay(ctx context.Context, id, quizID string, day time.Time, now time.Time) (*DailyAnalytics, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	var (
		total             int
		completed, passed sql.NullInt64
		avgScore, avgTime sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*),
  SUM(CASE WHEN status = 'COMPLETED' THEN 1 ELSE 0 END),
  AVG(score),
  SUM(CASE WHEN passed THEN 1 ELSE 0 END),
  AVG(CAST(time_spent_sec AS DOUBLE PRECISION))
FROM quiz_attempts
WHERE quiz_id = $1 AND status IN ('COMPLETED', 'TIME_EXPIRED')
  AND completed_at >= $2 AND completed_at < $3`, quizID, start.Unix(), end.Unix()).
		Scan(&total, &completed, &avgScore, &passed, &avgTime)
	if err != nil {
		return nil, fmt.Errorf("quiz: analytics aggregate: %w", err)
	}

	d := &DailyAnalytics{
		QuizID:            quizID,
		Day:               start.Format(time.DateOnly),
		TotalAttempts:     total,
		CompletedAttempts: int(completed.Int64),
		AverageScore:      round2(avgScore.Float64),
		AverageTimeSec:    round2(avgTime.Float64),
		UpdatedAt:         now,
	}
	if total > 0 {
		d.PassRate = round2(100 * float64(passed.Int64) / float64(total))
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO quiz_analytics (id, quiz_id, day, total_attempts, completed_attempts, average_score, pass_rate, average_time_sec, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (quiz_id, day) DO UPDATE SET
  total_attempts = excluded.total_attempts,
  completed_attempts = excluded.completed_attempts,
  average_score = excluded.average_score,
  pass_rate = excluded.pass_rate,
  average_time_sec = excluded.average_time_sec,
  updated_at = excluded.updated_at`,
		id, d.QuizID, d.Day, d.TotalAttempts, d.CompletedAttempts, d.AverageScore, d.PassRate, d.AverageTimeSec, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("quiz: analytics upsert: %w", err)
	}
	return d, nil
}

// ListAnalytics returns buckets in [from, to], both YYYY-MM-DD and inclusive.
// Empty bounds are open.
func (s *SQLStore) ListAnalytics(ctx context.Context, quizID, from, to string) ([]DailyAnalytics, error) {
	if from == "" {
		from = "0000-00-00"
	}
	if to == "" {
		to = "9999-99-99"
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT quiz_id, day, total_attempts, completed_attempts, average_score, pass_rate, average_time_sec, updated_at
FROM quiz_analytics WHERE quiz_id = $1 AND day >= $2 AND day <= $3 ORDER BY day`, quizID, from, to)
	if err != nil {
		return nil, fmt.Errorf("quiz: list analytics: %w", err)
	}
	defer rows.Close()
	out := []DailyAnalytics{}
	for rows.Next() {
		var (
			d       DailyAnalytics
			updated int64
		)
		if err := rows.Scan(&d.QuizID, &d.Day, &d.TotalAttempts, &d.CompletedAttempts, &d.AverageScore,
			&d.PassRate, &d.AverageTimeSec, &updated); err != nil {
			return nil, err
		}
		d.UpdatedAt = db.FromUnix(updated)
		out = append(out, d)
	}
	return out, rows.Err()
}
