// Package course holds the catalog structure quizzes and progress hang off:
// courses, their published versions and ordered chapters.
package course

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

var (
	ErrCourseNotFound  = errors.New("course not found")
	ErrVersionNotFound = errors.New("course version not found")
	ErrChapterNotFound = errors.New("chapter not found")
)

type Course struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

type Version struct {
	ID        string    `json:"id"`
	CourseID  string    `json:"courseId"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
}

type Chapter struct {
	ID               string    `json:"id"`
	CourseVersionID  string    `json:"courseVersionId"`
	Title            string    `json:"title"`
	OrderIndex       int       `json:"orderIndex"`
	VideoDurationSec int       `json:"videoDurationSec"`
	CreatedAt        time.Time `json:"createdAt"`
}

type Store struct {
	db    *sql.DB
	clock clock.Clock
}

func NewStore(h *sql.DB, clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.System()
	}
	return &Store{db: h, clock: clk}
}

func (s *Store) CreateCourse(ctx context.Context, title string) (*Course, error) {
	c := &Course{ID: uuid.NewString(), Title: title, CreatedAt: db.FromUnix(s.clock.Now().Unix())}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO courses (id, title, created_at) VALUES ($1,$2,$3)`,
		c.ID, c.Title, c.CreatedAt.Unix()); err != nil {
		return nil, fmt.Errorf("course: create: %w", err)
	}
	return c, nil
}

func (s *Store) GetCourse(ctx context.Context, id string) (*Course, error) {
	var (
		c       Course
		created int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, title, created_at FROM courses WHERE id = $1`, id).
		Scan(&c.ID, &c.Title, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCourseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("course: get: %w", err)
	}
	c.CreatedAt = db.FromUnix(created)
	return &c, nil
}

// CreateVersion appends the next version number for the course.
func (s *Store) CreateVersion(ctx context.Context, courseID string) (*Version, error) {
	if _, err := s.GetCourse(ctx, courseID); err != nil {
		return nil, err
	}
	v := &Version{ID: uuid.NewString(), CourseID: courseID, CreatedAt: db.FromUnix(s.clock.Now().Unix())}
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(version), 0) + 1 FROM course_versions WHERE course_id = $1`, courseID).Scan(&v.Version); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO course_versions (id, course_id, version, created_at) VALUES ($1,$2,$3,$4)`,
			v.ID, v.CourseID, v.Version, v.CreatedAt.Unix())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("course: create version: %w", err)
	}
	return v, nil
}

func (s *Store) GetVersion(ctx context.Context, id string) (*Version, error) {
	var (
		v       Version
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, course_id, version, created_at FROM course_versions WHERE id = $1`, id).
		Scan(&v.ID, &v.CourseID, &v.Version, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVersionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("course: get version: %w", err)
	}
	v.CreatedAt = db.FromUnix(created)
	return &v, nil
}

// AddChapter appends a chapter at the end of the version's order.
func (s *Store) AddChapter(ctx context.Context, versionID, title string, videoDurationSec int) (*Chapter, error) {
	if _, err := s.GetVersion(ctx, versionID); err != nil {
		return nil, err
	}
	c := &Chapter{
		ID:               uuid.NewString(),
		CourseVersionID:  versionID,
		Title:            title,
		VideoDurationSec: videoDurationSec,
		CreatedAt:        db.FromUnix(s.clock.Now().Unix()),
	}
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(order_index), -1) + 1 FROM chapters WHERE course_version_id = $1`, versionID).Scan(&c.OrderIndex); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO chapters (id, course_version_id, title, order_index, video_duration_sec, created_at)
VALUES ($1,$2,$3,$4,$5,$6)`,
			c.ID, c.CourseVersionID, c.Title, c.OrderIndex, c.VideoDurationSec, c.CreatedAt.Unix())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("course: add chapter: %w", err)
	}
	return c, nil
}

const chapterCols = `id, course_version_id, title, order_index, video_duration_sec, created_at`

func scanChapter(row interface{ Scan(...any) error }) (*Chapter, error) {
	var (
		c       Chapter
		created int64
	)
	if err := row.Scan(&c.ID, &c.CourseVersionID, &c.Title, &c.OrderIndex, &c.VideoDurationSec, &created); err != nil {
		return nil, err
	}
	c.CreatedAt = db.FromUnix(created)
	return &c, nil
}

func (s *Store) GetChapter(ctx context.Context, id string) (*Chapter, error) {
	c, err := scanChapter(s.db.QueryRowContext(ctx, `SELECT `+chapterCols+` FROM chapters WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChapterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("course: get chapter: %w", err)
	}
	return c, nil
}

func (s *Store) ListChapters(ctx context.Context, versionID string) ([]Chapter, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chapterCols+` FROM chapters WHERE course_version_id = $1 ORDER BY order_index, created_at`, versionID)
	if err != nil {
		return nil, fmt.Errorf("course: list chapters: %w", err)
	}
	defer rows.Close()
	var out []Chapter
	for rows.Next() {
		c, err := scanChapter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// ResolveCourse maps a course version to the course it belongs to.
func (s *Store) ResolveCourse(ctx context.Context, versionID string) (*Course, error) {
	v, err := s.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	return s.GetCourse(ctx, v.CourseID)
}
