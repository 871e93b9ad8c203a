// Package device derives a stable fingerprint and display metadata for the
// browser/device that presents credentials.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

const (
	TypeDesktop = "desktop"
	TypeMobile  = "mobile"
	TypeTablet  = "tablet"
)

// Hints are the client-hint headers mixed into the fingerprint.
type Hints struct {
	UA             string // Sec-CH-UA
	Platform       string // Sec-CH-UA-Platform
	Mobile         string // Sec-CH-UA-Mobile
	AcceptLanguage string
}

type Meta struct {
	Name    string `json:"deviceName"`
	Type    string `json:"deviceType"`
	Browser string `json:"browser"`
}

// Fingerprint hashes the user agent together with the client hints. The same
// browser on the same machine yields the same value across logins.
func Fingerprint(userAgent string, h Hints) string {
	parts := []string{
		strings.TrimSpace(userAgent),
		strings.TrimSpace(h.UA),
		strings.TrimSpace(h.Platform),
		strings.TrimSpace(h.Mobile),
		strings.TrimSpace(h.AcceptLanguage),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// Describe classifies a user agent string. Unknown agents come back as a
// desktop "Unknown Browser".
func Describe(userAgent string) Meta {
	ua := strings.ToLower(userAgent)

	typ := TypeDesktop
	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet") ||
		(strings.Contains(ua, "android") && !strings.Contains(ua, "mobile")):
		typ = TypeTablet
	case strings.Contains(ua, "mobi") || strings.Contains(ua, "iphone"):
		typ = TypeMobile
	}

	browser := detectBrowser(ua)
	os := detectOS(ua)

	name := browser
	if os != "" {
		name = browser + " on " + os
	}
	return Meta{Name: name, Type: typ, Browser: browser}
}

// order matters: Edge and Opera also advertise Chrome, Chrome advertises Safari
func detectBrowser(ua string) string {
	switch {
	case strings.Contains(ua, "edg/") || strings.Contains(ua, "edge/"):
		return "Edge"
	case strings.Contains(ua, "opr/") || strings.Contains(ua, "opera"):
		return "Opera"
	case strings.Contains(ua, "firefox/") || strings.Contains(ua, "fxios/"):
		return "Firefox"
	case strings.Contains(ua, "chrome/") || strings.Contains(ua, "crios/"):
		return "Chrome"
	case strings.Contains(ua, "safari/"):
		return "Safari"
	default:
		return "Unknown Browser"
	}
}

func detectOS(ua string) string {
	switch {
	case strings.Contains(ua, "windows"):
		return "Windows"
	case strings.Contains(ua, "iphone") || strings.Contains(ua, "ipad"):
		return "iOS"
	case strings.Contains(ua, "android"):
		return "Android"
	case strings.Contains(ua, "mac os") || strings.Contains(ua, "macintosh"):
		return "macOS"
	case strings.Contains(ua, "linux"):
		return "Linux"
	default:
		return ""
	}
}

// Info is everything the session store needs about the caller's device.
type Info struct {
	Fingerprint string
	Meta        Meta
	IP          string
}

// FromRequest reads the user agent, client hints and remote address. An
// explicit X-Device-Fingerprint header from a trusted client overrides the
// derived hash.
func FromRequest(r *http.Request) Info {
	ua := r.UserAgent()
	fp := strings.TrimSpace(r.Header.Get("X-Device-Fingerprint"))
	if fp == "" {
		fp = Fingerprint(ua, Hints{
			UA:             r.Header.Get("Sec-CH-UA"),
			Platform:       r.Header.Get("Sec-CH-UA-Platform"),
			Mobile:         r.Header.Get("Sec-CH-UA-Mobile"),
			AcceptLanguage: r.Header.Get("Accept-Language"),
		})
	}
	return Info{Fingerprint: fp, Meta: Describe(ua), IP: ClientIP(r)}
}

// ClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	if xr := strings.TrimSpace(r.Header.Get("X-Real-IP")); xr != "" {
		return xr
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
