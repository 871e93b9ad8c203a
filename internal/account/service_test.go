package account

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/learnhub/internal/clock"
	"github.com/mind-engage/learnhub/internal/db/dbtest"
	"github.com/mind-engage/learnhub/internal/device"
	"github.com/mind-engage/learnhub/internal/eventlog"
	"github.com/mind-engage/learnhub/internal/ratelimit"
	"github.com/mind-engage/learnhub/internal/session"
	"github.com/mind-engage/learnhub/internal/token"
)

type captureNotifier struct {
	mu     sync.Mutex
	verify map[string]string
	reset  map[string]string
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{verify: map[string]string{}, reset: map[string]string{}}
}

func (n *captureNotifier) SendVerification(_ context.Context, u *User, tok string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verify[u.Email] = tok
	return nil
}

func (n *captureNotifier) SendPasswordReset(_ context.Context, u *User, tok string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reset[u.Email] = tok
	return nil
}

type harness struct {
	svc    *Service
	clk    *clock.Fixed
	notes  *captureNotifier
	events *eventlog.Repo
}

func newHarness(t *testing.T) harness {
	t.Helper()
	h := dbtest.Open(t)
	clk := clock.NewFixed(time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC))
	iss, err := token.NewIssuer(token.Config{AccessSecret: "acc", RefreshSecret: "ref"}, clk)
	if err != nil {
		t.Fatal(err)
	}
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	notes := newCaptureNotifier()
	events := eventlog.NewRepo(h, clk)
	svc := NewService(Deps{
		Users:      NewUsers(h),
		Sessions:   session.NewStore(h, iss, clk, session.Limits{Student: 3, Admin: 10}),
		Issuer:     iss,
		Limiter:    ratelimit.New(rdb, ratelimit.Config{MaxAttempts: 3, Cooldown: time.Minute}),
		Notifier:   notes,
		Events:     events,
		Clock:      clk,
		BcryptCost: bcrypt.MinCost,
	})
	return harness{svc: svc, clk: clk, notes: notes, events: events}
}

func laptop() device.Info {
	return device.Info{Fingerprint: "fp-laptop", Meta: device.Describe("Firefox/125.0 Linux"), IP: "10.0.0.1"}
}

func (h harness) register(t *testing.T, email string) *User {
	t.Helper()
	u, err := h.svc.Register(context.Background(), RegisterInput{Email: email, Password: "correct-horse", Name: "Ana"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return u
}

func TestRegisterAndLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, " Ana@Example.com ")
	if u.Email != "ana@example.com" || u.Role != RoleStudent || u.EmailVerified {
		t.Fatalf("user = %+v", u)
	}
	if _, err := h.svc.Register(ctx, RegisterInput{Email: "ana@example.com", Password: "another-pass", Name: "B"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate register: %v", err)
	}

	res, err := h.svc.Login(ctx, "ANA@example.com", "correct-horse", laptop())
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Tokens.AccessToken == "" || res.Tokens.RefreshToken == "" || res.Tokens.ExpiresIn != 900 {
		t.Fatalf("tokens = %+v", res.Tokens)
	}
	if res.Session.UserID != u.ID {
		t.Fatal("session bound to wrong user")
	}
}

func TestLoginWrongPasswordIsThrottled(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "ana@example.com")

	for i := 0; i < 3; i++ {
		if _, err := h.svc.Login(ctx, "ana@example.com", "nope", laptop()); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	if _, err := h.svc.Login(ctx, "ana@example.com", "correct-horse", laptop()); !errors.Is(err, ratelimit.ErrRateLimited) {
		t.Fatalf("expected throttle, got %v", err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	h := newHarness(t)
	if _, err := h.svc.Login(context.Background(), "ghost@example.com", "whatever", laptop()); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("got %v", err)
	}
}

func TestLoginDeviceLimit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "ana@example.com")
	for _, fp := range []string{"a", "b", "c"} {
		d := laptop()
		d.Fingerprint = fp
		if _, err := h.svc.Login(ctx, "ana@example.com", "correct-horse", d); err != nil {
			t.Fatal(err)
		}
	}
	d := laptop()
	d.Fingerprint = "d"
	_, err := h.svc.Login(ctx, "ana@example.com", "correct-horse", d)
	var dle *session.DeviceLimitError
	if !errors.As(err, &dle) || dle.ActiveDevices != 3 || dle.MaxDevices != 3 {
		t.Fatalf("got %v", err)
	}
}

func TestRefreshRotates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "ana@example.com")
	res, _ := h.svc.Login(ctx, "ana@example.com", "correct-horse", laptop())

	p, err := h.svc.Refresh(ctx, res.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if p.RefreshToken == res.Tokens.RefreshToken {
		t.Fatal("refresh token not rotated")
	}
	if _, err := h.svc.Refresh(ctx, res.Tokens.RefreshToken); !errors.Is(err, session.ErrInvalidRefresh) {
		t.Fatalf("replay: %v", err)
	}
	if err := h.svc.Logout(ctx, p.RefreshToken); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.Refresh(ctx, p.RefreshToken); !errors.Is(err, session.ErrInvalidRefresh) {
		t.Fatalf("after logout: %v", err)
	}
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "ana@example.com")
	res, _ := h.svc.Login(ctx, "ana@example.com", "correct-horse", laptop())

	if err := h.svc.ChangePassword(ctx, u.ID, "wrong", "new-password-1"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("got %v", err)
	}
	if err := h.svc.ChangePassword(ctx, u.ID, "correct-horse", "new-password-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.Refresh(ctx, res.Tokens.RefreshToken); !errors.Is(err, session.ErrInvalidRefresh) {
		t.Fatalf("session survived password change: %v", err)
	}
	if _, err := h.svc.Login(ctx, "ana@example.com", "new-password-1", laptop()); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	evs, _ := h.events.List(ctx, "user:"+u.ID, 0, 10)
	if len(evs) == 0 || evs[0].Type != eventlog.SessionsRevoked {
		t.Fatalf("events = %+v", evs)
	}
}

func TestVerifyEmail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "ana@example.com")
	tok := h.notes.verify["ana@example.com"]
	if len(tok) != 64 {
		t.Fatalf("verification token = %q", tok)
	}
	if _, err := h.svc.VerifyEmail(ctx, "bogus"); !errors.Is(err, ErrInvalidVerification) {
		t.Fatalf("got %v", err)
	}
	got, err := h.svc.VerifyEmail(ctx, tok)
	if err != nil || !got.EmailVerified {
		t.Fatalf("verify: %+v %v", got, err)
	}
	if _, err := h.svc.VerifyEmail(ctx, tok); !errors.Is(err, ErrInvalidVerification) {
		t.Fatal("verification token should be single use")
	}
	if err := h.svc.ResendVerification(ctx, u.ID); !errors.Is(err, ErrAlreadyVerified) {
		t.Fatalf("got %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "ana@example.com")
	res, _ := h.svc.Login(ctx, "ana@example.com", "correct-horse", laptop())

	if err := h.svc.ForgotPassword(ctx, "nobody@example.com"); err != nil {
		t.Fatalf("unknown email should be silent: %v", err)
	}
	if err := h.svc.ForgotPassword(ctx, "ana@example.com"); err != nil {
		t.Fatal(err)
	}
	tok := h.notes.reset["ana@example.com"]

	h.clk.Advance(30 * time.Minute)
	if err := h.svc.ResetPassword(ctx, tok, "brand-new-pass"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := h.svc.ResetPassword(ctx, tok, "again-new-pass"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("reuse: %v", err)
	}
	if _, err := h.svc.Refresh(ctx, res.Tokens.RefreshToken); !errors.Is(err, session.ErrInvalidRefresh) {
		t.Fatal("sessions should be revoked after reset")
	}
}

func TestPasswordResetExpires(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "ana@example.com")
	_ = h.svc.ForgotPassword(ctx, "ana@example.com")
	tok := h.notes.reset["ana@example.com"]
	h.clk.Advance(61 * time.Minute)
	if err := h.svc.ResetPassword(ctx, tok, "brand-new-pass"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("got %v", err)
	}
}

func TestDeactivateAndSoftDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "ana@example.com")
	res, _ := h.svc.Login(ctx, "ana@example.com", "correct-horse", laptop())

	if err := h.svc.SetActive(ctx, u.ID, false); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.Login(ctx, "ana@example.com", "correct-horse", laptop()); !errors.Is(err, ErrAccountDeactivated) {
		t.Fatalf("login while inactive: %v", err)
	}
	if _, err := h.svc.Refresh(ctx, res.Tokens.RefreshToken); !errors.Is(err, ErrAccountDeactivated) {
		t.Fatalf("refresh while inactive: %v", err)
	}

	if err := h.svc.SoftDelete(ctx, u.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.GetUser(ctx, u.ID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("deleted user visible: %v", err)
	}
}

func TestSessionManagement(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "ana@example.com")
	res, _ := h.svc.Login(ctx, "ana@example.com", "correct-horse", laptop())

	if err := h.svc.RenameSession(ctx, u.ID, res.Session.ID, "  Desk  "); err != nil {
		t.Fatal(err)
	}
	list, err := h.svc.ListSessions(ctx, u.ID)
	if err != nil || len(list) != 1 || list[0].DeviceName != "Desk" {
		t.Fatalf("list = %+v, %v", list, err)
	}
	n, err := h.svc.RevokeSessions(ctx, u.ID)
	if err != nil || n != 1 {
		t.Fatalf("revoke = %d, %v", n, err)
	}
	if err := h.svc.RemoveSession(ctx, u.ID, "missing"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("got %v", err)
	}
	if err := h.svc.SetRole(ctx, u.ID, "ROOT"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("got %v", err)
	}
}

func TestLogoutAll(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "ana@example.com")
	first, _ := h.svc.Login(ctx, "ana@example.com", "correct-horse", laptop())
	_, err := h.svc.Login(ctx, "ana@example.com", "correct-horse",
		device.Info{Fingerprint: "fp-phone", Meta: device.Describe("Mobile Safari iPhone"), IP: "10.0.0.2"})
	if err != nil {
		t.Fatal(err)
	}

	n, err := h.svc.LogoutAll(ctx, u.ID)
	if err != nil || n != 2 {
		t.Fatalf("logout all = %d, %v", n, err)
	}
	if _, err := h.svc.Refresh(ctx, first.Tokens.RefreshToken); !errors.Is(err, session.ErrInvalidRefresh) {
		t.Fatalf("refresh after logout all: %v", err)
	}

	evs, err := h.events.List(ctx, "user:"+u.ID, 0, 50)
	if err != nil {
		t.Fatal(err)
	}
	last := evs[len(evs)-1]
	if last.Type != eventlog.SessionsRevoked || !strings.Contains(string(last.Data), `"logout_all"`) {
		t.Fatalf("last event = %s %s", last.Type, last.Data)
	}
}
