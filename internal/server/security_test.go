package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"unicode/utf8"
)

func TestBuildCSPHeader(t *testing.T) {
	tests := []struct {
		name string
		cfg  CSPConfig
		want string
	}{
		{"empty", CSPConfig{}, ""},
		{"api", APICSPConfig(), "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'"},
		{
			"mixed",
			CSPConfig{
				DefaultSrc:              []string{"'self'"},
				ImgSrc:                  []string{"'self'", "data:"},
				ConnectSrc:              []string{"'self'", "wss:"},
				UpgradeInsecureRequests: true,
			},
			"default-src 'self'; img-src 'self' data:; connect-src 'self' wss:; upgrade-insecure-requests",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.BuildCSPHeader(); got != tt.want {
				t.Errorf("BuildCSPHeader() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSecurityHeadersWithCSP(t *testing.T) {
	handler := SecurityHeadersWithCSP(APICSPConfig(), okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	want := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "strict-origin-when-cross-origin",
		"Content-Security-Policy": APICSPConfig().BuildCSPHeader(),
	}
	for header, value := range want {
		if got := w.Header().Get(header); got != value {
			t.Errorf("%s = %q, want %q", header, got, value)
		}
	}

	w = httptest.NewRecorder()
	SecurityHeadersWithCSP(CSPConfig{}, okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if _, ok := w.Header()["Content-Security-Policy"]; ok {
		t.Error("empty CSP config should not set the header")
	}
}

func TestSanitizeUserInput(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  report.csv  ", "report.csv"},
		{"a\x00b", "ab"},
		{"bell\x07 and del\x7f", "bell and del"},
		{"line\nnext\tcol", "line\nnext\tcol"},
		{"héllo wörld", "héllo wörld"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SanitizeUserInput(tt.input); got != tt.want {
			t.Errorf("SanitizeUserInput(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestLimitStringLength(t *testing.T) {
	tests := []struct {
		input string
		max   int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"truncated", 5, "trunc"},
		{"añb", 2, "a"},
		{"añb", 3, "añ"},
		{"", 0, ""},
	}
	for _, tt := range tests {
		got := LimitStringLength(tt.input, tt.max)
		if got != tt.want {
			t.Errorf("LimitStringLength(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("LimitStringLength(%q, %d) produced invalid UTF-8", tt.input, tt.max)
		}
	}
}

func TestValidateContentType(t *testing.T) {
	allowed := []string{"text/csv", "application/octet-stream"}

	tests := []struct {
		contentType string
		want        bool
	}{
		{"text/csv", true},
		{"text/csv; charset=utf-8", true},
		{"TEXT/CSV", true},
		{" application/octet-stream ", true},
		{"application/json", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidateContentType(tt.contentType, allowed); got != tt.want {
			t.Errorf("ValidateContentType(%q) = %v, want %v", tt.contentType, got, tt.want)
		}
	}
}
