package device

import (
	"net/http/httptest"
	"testing"
)

const (
	chromeMac    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	safariPhone  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1"
	edgeWindows  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0"
	androidTab   = "Mozilla/5.0 (Linux; Android 13; SM-X700) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	firefoxLinux = "Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0"
)

func TestDescribe(t *testing.T) {
	cases := []struct {
		ua   string
		want Meta
	}{
		{chromeMac, Meta{Name: "Chrome on macOS", Type: TypeDesktop, Browser: "Chrome"}},
		{safariPhone, Meta{Name: "Safari on iOS", Type: TypeMobile, Browser: "Safari"}},
		{edgeWindows, Meta{Name: "Edge on Windows", Type: TypeDesktop, Browser: "Edge"}},
		{androidTab, Meta{Name: "Chrome on Android", Type: TypeTablet, Browser: "Chrome"}},
		{firefoxLinux, Meta{Name: "Firefox on Linux", Type: TypeDesktop, Browser: "Firefox"}},
		{"", Meta{Name: "Unknown Browser", Type: TypeDesktop, Browser: "Unknown Browser"}},
	}
	for _, c := range cases {
		if got := Describe(c.ua); got != c.want {
			t.Errorf("Describe(%q) = %+v, want %+v", c.ua, got, c.want)
		}
	}
}

func TestFingerprintStableAndDistinct(t *testing.T) {
	h := Hints{Platform: `"macOS"`, AcceptLanguage: "en-US"}
	a := Fingerprint(chromeMac, h)
	if a != Fingerprint(chromeMac, h) {
		t.Fatal("fingerprint not stable")
	}
	if len(a) != 64 {
		t.Fatalf("fingerprint length = %d", len(a))
	}
	if a == Fingerprint(chromeMac, Hints{Platform: `"Windows"`, AcceptLanguage: "en-US"}) {
		t.Fatal("different hints should change the fingerprint")
	}
	if a == Fingerprint(firefoxLinux, h) {
		t.Fatal("different agents should change the fingerprint")
	}
}

func TestFromRequest(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/auth/login", nil)
	r.Header.Set("User-Agent", safariPhone)
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	info := FromRequest(r)
	if info.IP != "203.0.113.7" {
		t.Fatalf("ip = %q", info.IP)
	}
	if info.Meta.Type != TypeMobile {
		t.Fatalf("type = %q", info.Meta.Type)
	}
	if info.Fingerprint != Fingerprint(safariPhone, Hints{}) {
		t.Fatal("fingerprint mismatch")
	}

	r.Header.Set("X-Device-Fingerprint", "client-fp")
	if got := FromRequest(r).Fingerprint; got != "client-fp" {
		t.Fatalf("explicit fingerprint ignored: %q", got)
	}
}

func TestClientIPFallsBackToRemoteAddr(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.10:54321"
	if got := ClientIP(r); got != "192.0.2.10" {
		t.Fatalf("ClientIP = %q", got)
	}
}
