// Package progress tracks per-chapter watch and completion state.
package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/learnhub/internal/clock"
	"github.com/mind-engage/learnhub/internal/db"
)

var ErrNotFound = errors.New("progress not found")

// FirstWatchThreshold is the watch percentage at which a chapter counts as
// watched through: the skip-ahead flags latch and the chapter completes.
const FirstWatchThreshold = 90.0

type Progress struct {
	UserID              string     `json:"userId"`
	ChapterID           string     `json:"chapterId"`
	IsCompleted         bool       `json:"isCompleted"`
	WatchPercentage     float64    `json:"watchPercentage"`
	LastPositionSec     float64    `json:"lastPositionSec"`
	FirstWatchCompleted bool       `json:"firstWatchCompleted"`
	CanSkipAhead        bool       `json:"canSkipAhead"`
	CompletedAt         *time.Time `json:"completedAt,omitempty"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// ChapterProgress pairs a chapter with the caller's progress on it.
type ChapterProgress struct {
	ChapterID  string    `json:"chapterId"`
	Title      string    `json:"title"`
	OrderIndex int       `json:"orderIndex"`
	Progress   *Progress `json:"progress,omitempty"`
}

type Tracker struct {
	db    *sql.DB
	clock clock.Clock
}

func NewTracker(h *sql.DB, clk clock.Clock) *Tracker {
	if clk == nil {
		clk = clock.System()
	}
	return &Tracker{db: h, clock: clk}
}

func clampPct(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// The latching columns are OR-ed with their stored value so they never go
// back to false; watch percentage only ever grows.
const upsertProgress = `
INSERT INTO progress (id, user_id, chapter_id, is_completed, watch_percentage, last_position_sec,
  first_watch_completed, can_skip_ahead, completed_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (user_id, chapter_id) DO UPDATE SET
  is_completed = (progress.is_completed OR excluded.is_completed),
  watch_percentage = CASE WHEN excluded.watch_percentage > progress.watch_percentage
    THEN excluded.watch_percentage ELSE progress.watch_percentage END,
  last_position_sec = excluded.last_position_sec,
  first_watch_completed = (progress.first_watch_completed OR excluded.first_watch_completed),
  can_skip_ahead = (progress.can_skip_ahead OR excluded.can_skip_ahead),
  completed_at = COALESCE(progress.completed_at, excluded.completed_at),
  updated_at = excluded.updated_at`

// RecordWatch stores a playback update for the chapter.
func (t *Tracker) RecordWatch(ctx context.Context, userID, chapterID string, watchPct, positionSec float64) (*Progress, error) {
	now := t.clock.Now()
	pct := clampPct(watchPct)
	if positionSec < 0 {
		positionSec = 0
	}
	watched := pct >= FirstWatchThreshold
	var completedAt sql.NullInt64
	if watched {
		completedAt = sql.NullInt64{Int64: now.Unix(), Valid: true}
	}
	if _, err := t.db.ExecContext(ctx, upsertProgress,
		uuid.NewString(), userID, chapterID, watched, pct, positionSec, watched, watched, completedAt, now.Unix()); err != nil {
		return nil, fmt.Errorf("progress: record watch: %w", err)
	}
	return t.Get(ctx, userID, chapterID)
}

// MarkCompleted completes the chapter without touching watch state. Passing
// the chapter's quiz lands here.
func (t *Tracker) MarkCompleted(ctx context.Context, userID, chapterID string) (*Progress, error) {
	now := t.clock.Now().Unix()
	_, err := t.db.ExecContext(ctx, `
INSERT INTO progress (id, user_id, chapter_id, is_completed, completed_at, updated_at)
VALUES ($1,$2,$3,TRUE,$4,$5)
ON CONFLICT (user_id, chapter_id) DO UPDATE SET
  is_completed = TRUE,
  completed_at = COALESCE(progress.completed_at, excluded.completed_at),
  updated_at = excluded.updated_at`,
		uuid.NewString(), userID, chapterID, now, now)
	if err != nil {
		return nil, fmt.Errorf("progress: mark completed: %w", err)
	}
	return t.Get(ctx, userID, chapterID)
}

const progressCols = `user_id, chapter_id, is_completed, watch_percentage, last_position_sec,
first_watch_completed, can_skip_ahead, completed_at, updated_at`

func scanProgress(row interface{ Scan(...any) error }) (*Progress, error) {
	var (
		p         Progress
		completed sql.NullInt64
		updated   int64
	)
	if err := row.Scan(&p.UserID, &p.ChapterID, &p.IsCompleted, &p.WatchPercentage, &p.LastPositionSec,
		&p.FirstWatchCompleted, &p.CanSkipAhead, &completed, &updated); err != nil {
		return nil, err
	}
	p.CompletedAt = db.TimePtr(completed)
	p.UpdatedAt = db.FromUnix(updated)
	return &p, nil
}

func (t *Tracker) Get(ctx context.Context, userID, chapterID string) (*Progress, error) {
	p, err := scanProgress(t.db.QueryRowContext(ctx,
		`SELECT `+progressCols+` FROM progress WHERE user_id = $1 AND chapter_id = $2`, userID, chapterID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("progress: get: %w", err)
	}
	return p, nil
}

// ListForVersion returns every chapter of the version in order with the
// user's progress, nil where the user has not started the chapter.
func (t *Tracker) ListForVersion(ctx context.Context, userID, versionID string) ([]ChapterProgress, error) {
	rows, err := t.db.QueryContext(ctx, `
SELECT c.id, c.title, c.order_index,
  p.is_completed, p.watch_percentage, p.last_position_sec, p.first_watch_completed, p.can_skip_ahead,
  p.completed_at, p.updated_at
FROM chapters c
LEFT JOIN progress p ON p.chapter_id = c.id AND p.user_id = $1
WHERE c.course_version_id = $2
ORDER BY c.order_index, c.created_at`, userID, versionID)
	if err != nil {
		return nil, fmt.Errorf("progress: list: %w", err)
	}
	defer rows.Close()

	var out []ChapterProgress
	for rows.Next() {
		var (
			cp                          ChapterProgress
			completed, watched, canSkip sql.NullBool
			pct, pos                    sql.NullFloat64
			completedAt, updatedAt      sql.NullInt64
		)
		if err := rows.Scan(&cp.ChapterID, &cp.Title, &cp.OrderIndex,
			&completed, &pct, &pos, &watched, &canSkip, &completedAt, &updatedAt); err != nil {
			return nil, err
		}
		if updatedAt.Valid {
			cp.Progress = &Progress{
				UserID:              userID,
				ChapterID:           cp.ChapterID,
				IsCompleted:         completed.Bool,
				WatchPercentage:     pct.Float64,
				LastPositionSec:     pos.Float64,
				FirstWatchCompleted: watched.Bool,
				CanSkipAhead:        canSkip.Bool,
				CompletedAt:         db.TimePtr(completedAt),
				UpdatedAt:           db.FromUnix(updatedAt.Int64),
			}
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

// AllChaptersCompleted reports whether no chapter of the version is left
// incomplete for the user. A version without chapters is complete.
func (t *Tracker) AllChaptersCompleted(ctx context.Context, userID, versionID string) (bool, error) {
	var remaining int
	err := t.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM chapters c
LEFT JOIN progress p ON p.chapter_id = c.id AND p.user_id = $1
WHERE c.course_version_id = $2 AND (p.is_completed IS NULL OR p.is_completed = FALSE)`,
		userID, versionID).Scan(&remaining)
	if err != nil {
		return false, fmt.Errorf("progress: completion check: %w", err)
	}
	return remaining == 0, nil
}
