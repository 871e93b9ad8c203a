package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mind-engage/learnhub/internal/apierr"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return m
}

func TestErrorWithDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	err := apierr.Forbidden(apierr.CodeDeviceLimit, "Device limit reached").
		WithDetails(map[string]any{"activeDevices": 3, "maxDevices": 3, "success": true})
	Error(rec, fmt.Errorf("login: %w", err))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
	m := decode(t, rec)
	if m["success"] != false || m["code"] != apierr.CodeDeviceLimit || m["activeDevices"] != float64(3) {
		t.Fatalf("body = %v", m)
	}
}

func TestErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, errors.New("pq: connection refused"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if m := decode(t, rec); m["message"] != "Internal server error" {
		t.Fatalf("leaked: %v", m)
	}
}

func TestOK(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, map[string]int{"n": 1})
	m := decode(t, rec)
	if m["success"] != true || m["data"].(map[string]any)["n"] != float64(1) {
		t.Fatalf("body = %v", m)
	}
}
