// Package certificate mints course completion certificates once a student
// has passed a certificate-granting quiz and finished every chapter.
package certificate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/learnhub/internal/account"
	"github.com/mind-engage/learnhub/internal/clock"
	"github.com/mind-engage/learnhub/internal/course"
	"github.com/mind-engage/learnhub/internal/db"
	"github.com/mind-engage/learnhub/internal/eventlog"
	"github.com/mind-engage/learnhub/internal/logger"
)

var ErrNotFound = errors.New("certificate not found")

type Certificate struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	CourseID       string    `json:"courseId"`
	QuizID         string    `json:"quizId"`
	AttemptID      string    `json:"attemptId"`
	Number         string    `json:"certificateNumber"`
	StudentName    string    `json:"studentName"`
	CourseTitle    string    `json:"courseTitle"`
	Score          float64   `json:"score"`
	CompletionDate time.Time `json:"completionDate"`
	IssuedAt       time.Time `json:"issuedAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Request describes a passed attempt that may earn a certificate.
type Request struct {
	UserID          string
	QuizID          string
	AttemptID       string
	CourseVersionID string
	Score           float64
	CompletedAt     time.Time
}

type ChapterChecker interface {
	AllChaptersCompleted(ctx context.Context, userID, versionID string) (bool, error)
}

type CourseResolver interface {
	ResolveCourse(ctx context.Context, versionID string) (*course.Course, error)
	GetCourse(ctx context.Context, id string) (*course.Course, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, id string) (*account.User, error)
}

type Deps struct {
	DB       *sql.DB
	Progress ChapterChecker
	Courses  CourseResolver
	Users    UserLookup
	Events   eventlog.Sink
	Clock    clock.Clock
	Log      *logger.Logger
}

type Service struct {
	db       *sql.DB
	progress ChapterChecker
	courses  CourseResolver
	users    UserLookup
	events   eventlog.Sink
	clock    clock.Clock
	log      *logger.Logger
}

func NewService(d Deps) *Service {
	if d.Clock == nil {
		d.Clock = clock.System()
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Events == nil {
		d.Events = eventlog.Nop{}
	}
	return &Service{
		db:       d.DB,
		progress: d.Progress,
		courses:  d.Courses,
		users:    d.Users,
		events:   d.Events,
		clock:    d.Clock,
		log:      d.Log.With("service", "CertificateService"),
	}
}

// NewNumber returns CERT-<unix millis>-<9 base36 chars>, upper case.
func NewNumber(now time.Time) string {
	const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	var b strings.Builder
	b.WriteString("CERT-")
	b.WriteString(strconv.FormatInt(now.UnixMilli(), 10))
	b.WriteByte('-')
	for i := 0; i < 9; i++ {
		b.WriteByte(alphabet[rand.IntN(len(alphabet))])
	}
	return b.String()
}

// IssueIfEligible mints the user's certificate for the course the version
// belongs to. It returns issued=false without error when chapters are still
// outstanding or a certificate for the course already exists.
func (s *Service) IssueIfEligible(ctx context.Context, req Request) (*Certificate, bool, error) {
	done, err := s.progress.AllChaptersCompleted(ctx, req.UserID, req.CourseVersionID)
	if err != nil {
		return nil, false, err
	}
	if !done {
		s.log.Debug("certificate withheld, chapters outstanding", "user_id", req.UserID, "version_id", req.CourseVersionID)
		return nil, false, nil
	}
	c, err := s.courses.ResolveCourse(ctx, req.CourseVersionID)
	if err != nil {
		return nil, false, err
	}
	if existing, err := s.findForCourse(ctx, req.UserID, c.ID); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	u, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, false, err
	}

	now := s.clock.Now()
	completed := req.CompletedAt
	if completed.IsZero() {
		completed = now
	}
	cert := &Certificate{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		CourseID:       c.ID,
		QuizID:         req.QuizID,
		AttemptID:      req.AttemptID,
		StudentName:    u.Name,
		CourseTitle:    c.Title,
		Score:          req.Score,
		CompletionDate: db.FromUnix(completed.Unix()),
		IssuedAt:       db.FromUnix(now.Unix()),
		UpdatedAt:      db.FromUnix(now.Unix()),
	}
	for try := 0; ; try++ {
		cert.Number = NewNumber(now)
		err = s.insert(ctx, cert)
		if err == nil {
			break
		}
		if !db.IsUniqueViolation(err) {
			return nil, false, err
		}
		// lost a race for the same course, or a number collision
		if existing, ferr := s.findForCourse(ctx, req.UserID, c.ID); ferr == nil {
			return existing, false, nil
		}
		if try == 2 {
			return nil, false, fmt.Errorf("certificate: allocate number: %w", err)
		}
	}

	s.log.Info("certificate issued", "user_id", cert.UserID, "course_id", cert.CourseID, "number", cert.Number)
	if err := s.events.Append(ctx, eventlog.CertificateIssued, "user:"+cert.UserID, map[string]any{
		"certificateId": cert.ID, "number": cert.Number, "courseId": cert.CourseID, "attemptId": cert.AttemptID,
	}); err != nil {
		s.log.Warn("event append failed", "type", eventlog.CertificateIssued, "error", err)
	}
	return cert, true, nil
}

func (s *Service) insert(ctx context.Context, c *Certificate) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO certificates (id, user_id, course_id, quiz_id, attempt_id, certificate_number, student_name, course_title,
  score, completion_date, issued_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		c.ID, c.UserID, c.CourseID, c.QuizID, c.AttemptID, c.Number, c.StudentName, c.CourseTitle,
		c.Score, c.CompletionDate.Unix(), c.IssuedAt.Unix(), c.UpdatedAt.Unix())
	if err != nil && !db.IsUniqueViolation(err) {
		return fmt.Errorf("certificate: insert: %w", err)
	}
	return err
}

// Regenerate refreshes the printed student name and course title. The
// number and the original issue date stay.
func (s *Service) Regenerate(ctx context.Context, id string) (*Certificate, error) {
	cert, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, cert.UserID)
	if err != nil {
		return nil, err
	}
	c, err := s.courses.GetCourse(ctx, cert.CourseID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if _, err := s.db.ExecContext(ctx, `
UPDATE certificates SET student_name = $1, course_title = $2, updated_at = $3 WHERE id = $4`,
		u.Name, c.Title, now.Unix(), cert.ID); err != nil {
		return nil, fmt.Errorf("certificate: regenerate: %w", err)
	}
	cert.StudentName = u.Name
	cert.CourseTitle = c.Title
	cert.UpdatedAt = db.FromUnix(now.Unix())
	return cert, nil
}

const certCols = `id, user_id, course_id, quiz_id, attempt_id, certificate_number, student_name, course_title,
score, completion_date, issued_at, updated_at`

func scanCert(row interface{ Scan(...any) error }) (*Certificate, error) {
	var (
		c                          Certificate
		completed, issued, updated int64
	)
	err := row.Scan(&c.ID, &c.UserID, &c.CourseID, &c.QuizID, &c.AttemptID, &c.Number, &c.StudentName,
		&c.CourseTitle, &c.Score, &completed, &issued, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.CompletionDate = db.FromUnix(completed)
	c.IssuedAt = db.FromUnix(issued)
	c.UpdatedAt = db.FromUnix(updated)
	return &c, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Certificate, error) {
	return scanCert(s.db.QueryRowContext(ctx, `SELECT `+certCols+` FROM certificates WHERE id = $1`, id))
}

// GetByNumber backs public verification of a printed certificate.
func (s *Service) GetByNumber(ctx context.Context, number string) (*Certificate, error) {
	return scanCert(s.db.QueryRowContext(ctx,
		`SELECT `+certCols+` FROM certificates WHERE certificate_number = $1`, strings.TrimSpace(number)))
}

func (s *Service) findForCourse(ctx context.Context, userID, courseID string) (*Certificate, error) {
	return scanCert(s.db.QueryRowContext(ctx,
		`SELECT `+certCols+` FROM certificates WHERE user_id = $1 AND course_id = $2`, userID, courseID))
}

func (s *Service) ListForUser(ctx context.Context, userID string) ([]Certificate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+certCols+` FROM certificates WHERE user_id = $1 ORDER BY issued_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("certificate: list: %w", err)
	}
	defer rows.Close()
	out := []Certificate{}
	for rows.Next() {
		c, err := scanCert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}
