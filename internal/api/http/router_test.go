package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/learnhub/internal/account"
	"github.com/mind-engage/learnhub/internal/certificate"
	"github.com/mind-engage/learnhub/internal/clock"
	"github.com/mind-engage/learnhub/internal/course"
	"github.com/mind-engage/learnhub/internal/db/dbtest"
	"github.com/mind-engage/learnhub/internal/eventlog"
	"github.com/mind-engage/learnhub/internal/grading"
	"github.com/mind-engage/learnhub/internal/progress"
	"github.com/mind-engage/learnhub/internal/quiz"
	"github.com/mind-engage/learnhub/internal/session"
	"github.com/mind-engage/learnhub/internal/token"
)

type mailbox struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (m *mailbox) SendVerification(_ context.Context, u *account.User, tok string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[u.Email] = tok
	return nil
}

func (m *mailbox) SendPasswordReset(context.Context, *account.User, string) error { return nil }

func (m *mailbox) token(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[email]
}

type server struct {
	t        *testing.T
	srv      *httptest.Server
	accounts *account.Service
	mail     *mailbox
}

func newServer(t *testing.T) *server {
	t.Helper()
	h := dbtest.Open(t)
	clk := clock.NewFixed(time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC))
	iss, err := token.NewIssuer(token.Config{AccessSecret: "acc", RefreshSecret: "ref"}, clk)
	if err != nil {
		t.Fatal(err)
	}
	mail := &mailbox{tokens: map[string]string{}}
	events := eventlog.NewRepo(h, clk)
	users := account.NewUsers(h)
	accounts := account.NewService(account.Deps{
		Users:      users,
		Sessions:   session.NewStore(h, iss, clk, session.Limits{Student: 2, Admin: 5}),
		Issuer:     iss,
		Notifier:   mail,
		Events:     events,
		Clock:      clk,
		BcryptCost: bcrypt.MinCost,
	})
	courses := course.NewStore(h, clk)
	tracker := progress.NewTracker(h, clk)
	certs := certificate.NewService(certificate.Deps{
		DB: h, Progress: tracker, Courses: courses, Users: users, Events: events, Clock: clk,
	})
	quizzes := quiz.NewService(quiz.Deps{
		Store:        quiz.NewSQLStore(h),
		Grader:       grading.NewGrader(),
		Courses:      courses,
		Progress:     tracker,
		Certificates: certs,
		Events:       events,
		Clock:        clk,
	})
	srv := httptest.NewServer(NewRouter(Deps{
		Accounts:     accounts,
		Issuer:       iss,
		Courses:      courses,
		Progress:     tracker,
		Quizzes:      quizzes,
		Certificates: certs,
		Events:       events,
		CORSOrigins:  []string{"*"},
	}))
	t.Cleanup(srv.Close)
	return &server{t: t, srv: srv, accounts: accounts, mail: mail}
}

type reply struct {
	status int
	body   map[string]any
}

func (r reply) data() map[string]any {
	d, _ := r.body["data"].(map[string]any)
	return d
}

func (r reply) list() []any {
	l, _ := r.body["data"].([]any)
	return l
}

func (s *server) do(method, path, bearer string, body any, hdr ...string) reply {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, s.srv.URL+path, &buf)
	if err != nil {
		s.t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		s.t.Fatal(err)
	}
	defer res.Body.Close()
	out := reply{status: res.StatusCode}
	_ = json.NewDecoder(res.Body).Decode(&out.body)
	return out
}

func (s *server) expect(r reply, status int) reply {
	s.t.Helper()
	if r.status != status {
		s.t.Fatalf("status = %d want %d: %v", r.status, status, r.body)
	}
	return r
}

// signup registers, verifies and logs in, returning the access and refresh
// tokens for the given device fingerprint.
func (s *server) signup(email, fp string) (string, string) {
	s.t.Helper()
	s.expect(s.do("POST", "/api/auth/register", "", map[string]any{
		"email": email, "password": "correct-horse", "name": "Learner",
	}), http.StatusCreated)
	s.expect(s.do("POST", "/api/auth/verify-email", "", map[string]any{"token": s.mail.token(email)}), http.StatusOK)
	return s.login(email, fp)
}

func (s *server) login(email, fp string) (string, string) {
	s.t.Helper()
	r := s.expect(s.do("POST", "/api/auth/login", "", map[string]any{
		"email": email, "password": "correct-horse",
	}, "X-Device-Fingerprint", fp, "User-Agent", "Mozilla/5.0 (X11; Linux x86_64) Firefox/125.0"), http.StatusOK)
	toks := r.data()["tokens"].(map[string]any)
	return toks["accessToken"].(string), toks["refreshToken"].(string)
}

func TestHealthAndUnknownRoute(t *testing.T) {
	s := newServer(t)
	s.expect(s.do("GET", "/healthz", "", nil), http.StatusOK)
	r := s.expect(s.do("GET", "/api/nope", "", nil), http.StatusNotFound)
	if r.body["success"] != false {
		t.Fatalf("body = %v", r.body)
	}
}

func TestAuthGateAndValidation(t *testing.T) {
	s := newServer(t)
	r := s.expect(s.do("GET", "/api/auth/me", "", nil), http.StatusUnauthorized)
	if r.body["code"] != "UNAUTHENTICATED" {
		t.Fatalf("code = %v", r.body["code"])
	}
	s.expect(s.do("GET", "/api/auth/me", "garbage", nil), http.StatusUnauthorized)

	r = s.expect(s.do("POST", "/api/auth/register", "", map[string]any{
		"email": "not-an-email", "password": "short", "name": "",
	}), http.StatusBadRequest)
	if r.body["code"] != "VALIDATION_FAILED" {
		t.Fatalf("code = %v", r.body["code"])
	}
	if errs, _ := r.body["errors"].(map[string]any); errs["email"] == nil || errs["password"] == nil {
		t.Fatalf("errors = %v", r.body["errors"])
	}
}

func TestUnverifiedStudentCannotTakeQuizzes(t *testing.T) {
	s := newServer(t)
	s.expect(s.do("POST", "/api/auth/register", "", map[string]any{
		"email": "new@example.com", "password": "correct-horse", "name": "New",
	}), http.StatusCreated)
	access, _ := s.login("new@example.com", "fp-1")

	s.expect(s.do("GET", "/api/auth/me", access, nil), http.StatusOK)
	r := s.expect(s.do("GET", "/api/quizzes/q1", access, nil), http.StatusForbidden)
	if r.body["code"] != "EMAIL_NOT_VERIFIED" {
		t.Fatalf("code = %v", r.body["code"])
	}
	s.expect(s.do("GET", "/api/admin/users", access, nil), http.StatusForbidden)
}

func TestDeviceLimitAndRefreshRotation(t *testing.T) {
	s := newServer(t)
	access, refresh := s.signup("ana@example.com", "fp-1")
	s.login("ana@example.com", "fp-2")

	r := s.expect(s.do("POST", "/api/auth/login", "", map[string]any{
		"email": "ana@example.com", "password": "correct-horse",
	}, "X-Device-Fingerprint", "fp-3"), http.StatusForbidden)
	if r.body["code"] != "DEVICE_LIMIT_REACHED" || r.body["activeDevices"] != float64(2) || r.body["maxDevices"] != float64(2) {
		t.Fatalf("body = %v", r.body)
	}

	// the same browser again reuses its session and replaces its refresh token
	_, reissued := s.login("ana@example.com", "fp-1")
	s.expect(s.do("POST", "/api/auth/refresh", "", map[string]any{"refreshToken": refresh}), http.StatusUnauthorized)
	refresh = reissued
	sessions := s.expect(s.do("GET", "/api/sessions", access, nil), http.StatusOK).list()
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d", len(sessions))
	}

	r = s.expect(s.do("POST", "/api/auth/refresh", "", map[string]any{"refreshToken": refresh}), http.StatusOK)
	rotated := r.data()["refreshToken"].(string)
	if rotated == refresh {
		t.Fatal("refresh token was not rotated")
	}
	s.expect(s.do("POST", "/api/auth/refresh", "", map[string]any{"refreshToken": refresh}), http.StatusUnauthorized)

	s.expect(s.do("DELETE", "/api/sessions", access, nil), http.StatusOK)
	s.expect(s.do("POST", "/api/auth/refresh", "", map[string]any{"refreshToken": rotated}), http.StatusUnauthorized)
	s.login("ana@example.com", "fp-3")
}

func TestQuizFlowIssuesCertificate(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	s.signup("admin@example.com", "fp-admin")
	admin, err := s.accounts.ListUsers(ctx, 10, 0)
	if err != nil || len(admin) != 1 {
		t.Fatalf("users = %v, %v", admin, err)
	}
	if err := s.accounts.SetRole(ctx, admin[0].ID, account.RoleAdmin); err != nil {
		t.Fatal(err)
	}
	adminTok, _ := s.login("admin@example.com", "fp-admin")

	c := s.expect(s.do("POST", "/api/admin/courses", adminTok, map[string]any{"title": "Go Basics"}), http.StatusCreated).data()
	v := s.expect(s.do("POST", "/api/admin/courses/"+c["id"].(string)+"/versions", adminTok, nil), http.StatusCreated).data()
	ch := s.expect(s.do("POST", "/api/admin/course-versions/"+v["id"].(string)+"/chapters", adminTok, map[string]any{
		"title": "Types", "videoDurationSec": 120,
	}), http.StatusCreated).data()
	chapterID := ch["id"].(string)

	qz := s.expect(s.do("POST", "/api/admin/quizzes", adminTok, map[string]any{
		"title": "Types check", "chapterId": chapterID, "passingScore": 50, "generateCertificate": true,
	}), http.StatusCreated).data()
	quizID := qz["id"].(string)
	question := s.expect(s.do("POST", "/api/admin/quizzes/"+quizID+"/questions", adminTok, map[string]any{
		"type": "SINGLE_CHOICE", "text": "Zero value of string?", "points": 4,
		"answers": []map[string]any{{"text": `""`, "isCorrect": true}, {"text": "nil"}},
	}), http.StatusCreated).data()
	var correct string
	for _, a := range question["answers"].([]any) {
		if a.(map[string]any)["isCorrect"] == true {
			correct = a.(map[string]any)["id"].(string)
		}
	}

	stu, _ := s.signup("stu@example.com", "fp-stu")

	view := s.expect(s.do("GET", "/api/quizzes/"+quizID, stu, nil), http.StatusOK).data()
	for _, q := range view["questions"].([]any) {
		for _, a := range q.(map[string]any)["answers"].([]any) {
			if _, leaked := a.(map[string]any)["isCorrect"]; leaked {
				t.Fatal("student view exposes correct answers")
			}
		}
	}

	att := s.expect(s.do("POST", "/api/quizzes/"+quizID+"/attempts", stu, nil), http.StatusCreated).data()
	attemptID := att["id"].(string)
	again := s.expect(s.do("POST", "/api/quizzes/"+quizID+"/attempts", stu, nil), http.StatusOK).data()
	if again["id"] != attemptID {
		t.Fatal("second start did not resume")
	}

	base := "/api/attempts/" + attemptID
	s.expect(s.do("POST", base+"/answers", stu, map[string]any{
		"questionId": question["id"], "selectedAnswerIds": []string{correct}, "timeSpentSec": 12,
	}), http.StatusOK)
	s.expect(s.do("PUT", base+"/auto-save", stu, map[string]any{"data": map[string]any{"draft": 1}}), http.StatusOK)
	s.expect(s.do("POST", base+"/violations", stu, map[string]any{"type": "TAB_SWITCH"}), http.StatusOK)
	s.expect(s.do("POST", base+"/violations", stu, map[string]any{"type": "SCREENSHOT"}), http.StatusBadRequest)

	done := s.expect(s.do("POST", base+"/complete", stu, nil), http.StatusOK).data()
	a := done["attempt"].(map[string]any)
	if a["status"] != "COMPLETED" || a["score"] != float64(100) || a["passed"] != true || a["tabSwitchCount"] != float64(1) {
		t.Fatalf("attempt = %v", a)
	}
	cert, ok := done["certificate"].(map[string]any)
	if !ok {
		t.Fatalf("no certificate in %v", done)
	}

	r := s.expect(s.do("POST", base+"/complete", stu, nil), http.StatusBadRequest)
	if r.body["code"] != "NOT_IN_PROGRESS" {
		t.Fatalf("code = %v", r.body["code"])
	}

	result := s.expect(s.do("GET", base+"/result", stu, nil), http.StatusOK).data()
	if review := result["review"].([]any); len(review) != 1 {
		t.Fatalf("review = %v", review)
	}

	prog := s.expect(s.do("GET", "/api/course-versions/"+v["id"].(string)+"/progress", stu, nil), http.StatusOK).data()
	if prog["allCompleted"] != true {
		t.Fatalf("progress = %v", prog)
	}

	mine := s.expect(s.do("GET", "/api/certificates", stu, nil), http.StatusOK).list()
	if len(mine) != 1 {
		t.Fatalf("certificates = %v", mine)
	}
	pub := s.expect(s.do("GET", "/api/certificates/verify/"+cert["certificateNumber"].(string), "", nil), http.StatusOK).data()
	if pub["courseTitle"] != "Go Basics" {
		t.Fatalf("verify = %v", pub)
	}
	if _, leaked := pub["userId"]; leaked {
		t.Fatal("public verification exposes user id")
	}

	other, _ := s.signup("other@example.com", "fp-other")
	s.expect(s.do("GET", base, other, nil), http.StatusNotFound)
	s.expect(s.do("POST", "/api/certificates/"+cert["id"].(string)+"/regenerate", other, nil), http.StatusNotFound)
	s.expect(s.do("POST", "/api/certificates/"+cert["id"].(string)+"/regenerate", stu, nil), http.StatusOK)

	events := s.expect(s.do("GET", "/api/admin/events?key=quiz:"+quizID, adminTok, nil), http.StatusOK).list()
	if len(events) == 0 {
		t.Fatal("no quiz events recorded")
	}
	s.expect(s.do("GET", "/api/admin/events", adminTok, nil), http.StatusBadRequest)
}
