package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mind-engage/learnhub/internal/clock"
	"github.com/mind-engage/learnhub/internal/course"
	"github.com/mind-engage/learnhub/internal/db/dbtest"
)

type env struct {
	tracker  *Tracker
	version  *course.Version
	chapters []*course.Chapter
	clk      *clock.Fixed
}

func newEnv(t *testing.T) env {
	t.Helper()
	h := dbtest.Open(t)
	clk := clock.NewFixed(time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC))
	dbtest.SeedUser(t, h, "u1", "STUDENT")

	cs := course.NewStore(h, clk)
	ctx := context.Background()
	c, _ := cs.CreateCourse(ctx, "Algebra")
	v, _ := cs.CreateVersion(ctx, c.ID)
	ch1, _ := cs.AddChapter(ctx, v.ID, "One", 100)
	ch2, _ := cs.AddChapter(ctx, v.ID, "Two", 100)
	return env{tracker: NewTracker(h, clk), version: v, chapters: []*course.Chapter{ch1, ch2}, clk: clk}
}

func TestRecordWatchLatchesFlags(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ch := e.chapters[0].ID

	p, err := e.tracker.RecordWatch(ctx, "u1", ch, 40, 40)
	if err != nil {
		t.Fatal(err)
	}
	if p.FirstWatchCompleted || p.CanSkipAhead || p.IsCompleted {
		t.Fatalf("flags set too early: %+v", p)
	}

	p, _ = e.tracker.RecordWatch(ctx, "u1", ch, 92, 92)
	if !p.FirstWatchCompleted || !p.CanSkipAhead || !p.IsCompleted || p.CompletedAt == nil {
		t.Fatalf("flags not latched: %+v", p)
	}
	firstDone := *p.CompletedAt

	// rewatching from the start keeps the flags and the best percentage
	e.clk.Advance(time.Hour)
	p, _ = e.tracker.RecordWatch(ctx, "u1", ch, 10, 5)
	if !p.FirstWatchCompleted || !p.CanSkipAhead || !p.IsCompleted {
		t.Fatalf("flags reset: %+v", p)
	}
	if p.WatchPercentage != 92 || p.LastPositionSec != 5 {
		t.Fatalf("pct=%v pos=%v", p.WatchPercentage, p.LastPositionSec)
	}
	if !p.CompletedAt.Equal(firstDone) {
		t.Fatal("completed_at moved")
	}
}

func TestRecordWatchClamps(t *testing.T) {
	e := newEnv(t)
	p, _ := e.tracker.RecordWatch(context.Background(), "u1", e.chapters[0].ID, 250, -3)
	if p.WatchPercentage != 100 || p.LastPositionSec != 0 {
		t.Fatalf("got %+v", p)
	}
}

func TestAllChaptersCompleted(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	done, _ := e.tracker.AllChaptersCompleted(ctx, "u1", e.version.ID)
	if done {
		t.Fatal("nothing watched yet")
	}
	_, _ = e.tracker.MarkCompleted(ctx, "u1", e.chapters[0].ID)
	_, _ = e.tracker.RecordWatch(ctx, "u1", e.chapters[1].ID, 50, 50)
	if done, _ := e.tracker.AllChaptersCompleted(ctx, "u1", e.version.ID); done {
		t.Fatal("second chapter only half watched")
	}
	p, err := e.tracker.MarkCompleted(ctx, "u1", e.chapters[1].ID)
	if err != nil || !p.IsCompleted || p.WatchPercentage != 50 {
		t.Fatalf("mark completed: %+v %v", p, err)
	}
	if done, _ := e.tracker.AllChaptersCompleted(ctx, "u1", e.version.ID); !done {
		t.Fatal("all chapters completed")
	}

	list, err := e.tracker.ListForVersion(ctx, "u1", e.version.ID)
	if err != nil || len(list) != 2 || list[0].Progress == nil || !list[1].Progress.IsCompleted {
		t.Fatalf("list = %+v, %v", list, err)
	}
}

func TestGetMissing(t *testing.T) {
	e := newEnv(t)
	if _, err := e.tracker.Get(context.Background(), "u1", e.chapters[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v", err)
	}
	list, _ := e.tracker.ListForVersion(context.Background(), "u1", e.version.ID)
	if len(list) != 2 || list[0].Progress != nil {
		t.Fatalf("list = %+v", list)
	}
}
