package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mind-engage/learnhub/internal/account"
	api "github.com/mind-engage/learnhub/internal/api/http"
	"github.com/mind-engage/learnhub/internal/certificate"
	"github.com/mind-engage/learnhub/internal/clock"
	"github.com/mind-engage/learnhub/internal/config"
	"github.com/mind-engage/learnhub/internal/course"
	"github.com/mind-engage/learnhub/internal/db"
	"github.com/mind-engage/learnhub/internal/eventlog"
	"github.com/mind-engage/learnhub/internal/grading"
	"github.com/mind-engage/learnhub/internal/logger"
	"github.com/mind-engage/learnhub/internal/progress"
	"github.com/mind-engage/learnhub/internal/quiz"
	"github.com/mind-engage/learnhub/internal/ratelimit"
	"github.com/mind-engage/learnhub/internal/session"
	"github.com/mind-engage/learnhub/internal/token"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		lg.Error("db open failed", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer dbh.Close()

	clk := clock.System()

	// --- Login throttle (optional) ---
	var limiter *ratelimit.Limiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			lg.Warn("redis unreachable, login throttle fails open", "addr", cfg.RedisAddr, "error", err)
		}
		cancel()
		limiter = ratelimit.New(rdb, ratelimit.Config{MaxAttempts: cfg.LoginMaxAttempts, Cooldown: cfg.LoginCooldown})
	}

	// --- Services ---
	issuer, err := token.NewIssuer(token.Config{
		AccessSecret:  cfg.AccessSecret,
		RefreshSecret: cfg.RefreshSecret,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
	}, clk)
	if err != nil {
		lg.Error("token issuer", "error", err)
		os.Exit(1)
	}
	events := eventlog.NewRepo(dbh, clk)
	users := account.NewUsers(dbh)
	sessions := session.NewStore(dbh, issuer, clk, session.Limits{
		Student: cfg.MaxDevicesStudent,
		Admin:   cfg.MaxDevicesAdmin,
	})
	accounts := account.NewService(account.Deps{
		Users:    users,
		Sessions: sessions,
		Issuer:   issuer,
		Limiter:  limiter,
		Notifier: account.NewLogNotifier(lg),
		Events:   events,
		Clock:    clk,
		Log:      lg,
	})
	courses := course.NewStore(dbh, clk)
	tracker := progress.NewTracker(dbh, clk)
	certs := certificate.NewService(certificate.Deps{
		DB:       dbh,
		Progress: tracker,
		Courses:  courses,
		Users:    users,
		Events:   events,
		Clock:    clk,
		Log:      lg,
	})
	quizzes := quiz.NewService(quiz.Deps{
		Store:        quiz.NewSQLStore(dbh),
		Grader:       grading.NewGrader(),
		Courses:      courses,
		Progress:     tracker,
		Certificates: certs,
		Events:       events,
		Clock:        clk,
		Log:          lg,
	})

	// --- Background jobs ---
	var wg sync.WaitGroup
	for _, job := range []interface{ Run(context.Context) }{
		session.NewSweeper(sessions, cfg.SessionCleanupInterval, lg),
		quiz.NewExpirySweeper(quizzes, cfg.AttemptExpiryInterval, lg),
	} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job.Run(ctx)
		}()
	}

	// --- HTTP ---
	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewRouter(api.Deps{
			Accounts:             accounts,
			Issuer:               issuer,
			Courses:              courses,
			Progress:             tracker,
			Quizzes:              quizzes,
			Certificates:         certs,
			Events:               events,
			Log:                  lg,
			CORSOrigins:          cfg.CORSOrigins,
			CORSAllowCredentials: cfg.CORSAllowCredentials,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lg.Info("listening", "addr", cfg.HTTPAddr, "db", cfg.DBDriver, "throttle", limiter != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("http server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		lg.Warn("http shutdown", "error", err)
	}
	wg.Wait()
}
