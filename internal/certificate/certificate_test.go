package certificate

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/mind-engage/learnhub/internal/account"
	"github.com/mind-engage/learnhub/internal/clock"
	"github.com/mind-engage/learnhub/internal/course"
	"github.com/mind-engage/learnhub/internal/db/dbtest"
	"github.com/mind-engage/learnhub/internal/progress"
)

type fixture struct {
	svc      *Service
	courses  *course.Store
	tracker  *progress.Tracker
	version  *course.Version
	chapters []*course.Chapter
	clk      *clock.Fixed
}

func newFixture(t *testing.T, chapters int) *fixture {
	t.Helper()
	h := dbtest.Open(t)
	dbtest.SeedUser(t, h, "stu", account.RoleStudent)
	clk := clock.NewFixed(time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC))
	courses := course.NewStore(h, clk)
	tracker := progress.NewTracker(h, clk)
	ctx := context.Background()

	c, err := courses.CreateCourse(ctx, "Go Basics")
	if err != nil {
		t.Fatal(err)
	}
	v, err := courses.CreateVersion(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{courses: courses, tracker: tracker, version: v, clk: clk}
	for i := 0; i < chapters; i++ {
		ch, err := courses.AddChapter(ctx, v.ID, "Chapter", 600)
		if err != nil {
			t.Fatal(err)
		}
		f.chapters = append(f.chapters, ch)
	}
	f.svc = NewService(Deps{DB: h, Progress: tracker, Courses: courses, Users: account.NewUsers(h), Clock: clk})
	return f
}

func (f *fixture) request() Request {
	return Request{UserID: "stu", QuizID: "q1", AttemptID: "a1", CourseVersionID: f.version.ID, Score: 85, CompletedAt: f.clk.Now()}
}

func TestNumberFormat(t *testing.T) {
	re := regexp.MustCompile(`^CERT-\d+-[0-9A-Z]{9}$`)
	n := NewNumber(time.UnixMilli(1700000000123))
	if !re.MatchString(n) {
		t.Fatalf("number %q", n)
	}
	if n[:19] != "CERT-1700000000123-" {
		t.Fatalf("timestamp part: %q", n)
	}
}

func TestWithheldUntilChaptersComplete(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	if _, err := f.tracker.MarkCompleted(ctx, "stu", f.chapters[0].ID); err != nil {
		t.Fatal(err)
	}
	cert, issued, err := f.svc.IssueIfEligible(ctx, f.request())
	if err != nil || issued || cert != nil {
		t.Fatalf("got %v %v %v", cert, issued, err)
	}

	if _, err := f.tracker.MarkCompleted(ctx, "stu", f.chapters[1].ID); err != nil {
		t.Fatal(err)
	}
	cert, issued, err = f.svc.IssueIfEligible(ctx, f.request())
	if err != nil || !issued {
		t.Fatalf("got %v %v", issued, err)
	}
	if cert.StudentName != "User stu" || cert.CourseTitle != "Go Basics" || cert.Score != 85 {
		t.Fatalf("cert = %+v", cert)
	}
}

func TestOnePerCourse(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	first, issued, err := f.svc.IssueIfEligible(ctx, f.request())
	if err != nil || !issued {
		t.Fatalf("first: %v %v", issued, err)
	}
	f.clk.Advance(time.Hour)
	again, issued, err := f.svc.IssueIfEligible(ctx, f.request())
	if err != nil || issued {
		t.Fatalf("second: %v %v", issued, err)
	}
	if again.ID != first.ID || again.Number != first.Number {
		t.Fatalf("expected the existing certificate back")
	}
	list, err := f.svc.ListForUser(ctx, "stu")
	if err != nil || len(list) != 1 {
		t.Fatalf("list = %v, %v", list, err)
	}
}

func TestRegenerateKeepsNumber(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	cert, _, err := f.svc.IssueIfEligible(ctx, f.request())
	if err != nil {
		t.Fatal(err)
	}
	dbtest.Exec(t, f.svc.db, `UPDATE users SET name = 'Renamed Student' WHERE id = 'stu'`)
	f.clk.Advance(24 * time.Hour)

	re, err := f.svc.Regenerate(ctx, cert.ID)
	if err != nil {
		t.Fatal(err)
	}
	if re.Number != cert.Number || re.StudentName != "Renamed Student" {
		t.Fatalf("regenerated = %+v", re)
	}
	if !re.IssuedAt.Equal(cert.IssuedAt) || !re.UpdatedAt.After(cert.UpdatedAt) {
		t.Fatalf("timestamps: issued %v→%v updated %v→%v", cert.IssuedAt, re.IssuedAt, cert.UpdatedAt, re.UpdatedAt)
	}

	byNum, err := f.svc.GetByNumber(ctx, " "+cert.Number+" ")
	if err != nil || byNum.StudentName != "Renamed Student" {
		t.Fatalf("by number: %+v %v", byNum, err)
	}
	if _, err := f.svc.GetByNumber(ctx, "CERT-0-NOPE"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown number: %v", err)
	}
}
