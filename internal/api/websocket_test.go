package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/Rescribe/core/convert"
	"github.com/FocuswithJustin/Rescribe/core/ir"
)

const testOrigin = "http://localhost"

func wsURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}

func dial(t *testing.T, url, origin string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("Dial(%s) error = %v (status %d)", url, err, status)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// readUntil reads frames, which may batch several messages separated by
// newlines, until match returns true for one message.
func readUntil(t *testing.T, conn *websocket.Conn, match func(ProgressMessage) bool) ProgressMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage() error = %v", err)
		}
		for _, line := range bytes.Split(data, []byte{'\n'}) {
			var msg ProgressMessage
			if err := json.Unmarshal(line, &msg); err != nil {
				t.Fatalf("bad message %q: %v", line, err)
			}
			if match(msg) {
				return msg
			}
		}
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func TestHubBroadcastsObservedEvents(t *testing.T) {
	hub := NewHub()
	counts := make(chan int, 16)
	hub.OnClientCount = func(n int) { counts <- n }
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	ts := httptest.NewServer(SecureWebSocketHandler(hub, DefaultWebSocketSecurityConfig(), NewWebSocketRateLimiter()))
	defer ts.Close()

	conn := dial(t, wsURL(ts, "/"), testOrigin)
	waitForClients(t, hub, 1)

	hub.Observe(convert.Event{RunID: "run-1", Stage: convert.StageRead, From: "csv", To: "html"})
	msg := readUntil(t, conn, func(ProgressMessage) bool { return true })
	if msg.Type != "progress" || msg.Stage != "read" || msg.Progress != 20 || msg.RunID != "run-1" {
		t.Errorf("progress message = %+v", msg)
	}
	if msg.Data["from"] != "csv" || msg.Data["to"] != "html" || msg.Timestamp == "" {
		t.Errorf("progress message = %+v", msg)
	}

	hub.Observe(convert.Event{RunID: "run-1", Stage: convert.StageWrite, From: "csv", To: "html", Err: errors.New("disk full")})
	msg = readUntil(t, conn, func(ProgressMessage) bool { return true })
	if msg.Type != "error" || msg.Message != "disk full" {
		t.Errorf("error message = %+v", msg)
	}

	hub.Observe(convert.Event{
		RunID:     "run-1",
		Stage:     convert.StageDone,
		From:      "csv",
		To:        "html",
		LossClass: ir.LossL2,
		Warnings:  []ir.FidelityWarning{ir.NewWarning(ir.SeverityMinor, ir.Simplified{Feature: "x"}, "x")},
		Duration:  3 * time.Millisecond,
	})
	msg = readUntil(t, conn, func(ProgressMessage) bool { return true })
	if msg.Type != "complete" || msg.Progress != 100 {
		t.Errorf("complete message = %+v", msg)
	}
	if msg.Data["loss_class"] != "L2" || msg.Data["warnings"] != float64(1) || msg.Data["duration_ms"] != float64(3) {
		t.Errorf("complete data = %v", msg.Data)
	}

	conn.Close()
	waitForClients(t, hub, 0)
	if first := <-counts; first != 1 {
		t.Errorf("first OnClientCount = %d, want 1", first)
	}
}

func TestServerBroadcastsConversion(t *testing.T) {
	s := newTestServer(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Hub().Run(ctx)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn := dial(t, wsURL(ts, "/ws"), testOrigin)
	waitForClients(t, s.Hub(), 1)

	resp, err := http.Post(ts.URL+"/convert?from=csv&to=html", "text/csv", strings.NewReader("a,b\n1,2"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /convert = %d", resp.StatusCode)
	}

	msg := readUntil(t, conn, func(m ProgressMessage) bool { return m.Type == "complete" })
	if msg.Data["from"] != "csv" || msg.Data["to"] != "html" || msg.RunID == "" {
		t.Errorf("complete message = %+v", msg)
	}
}

func TestSecureWebSocketHandlerRejects(t *testing.T) {
	hub := startHub(t)
	cfg := DefaultWebSocketSecurityConfig()
	cfg.AllowedOrigins = []string{"https://app.example.com"}
	cfg.RequireAuth = true
	cfg.AuthConfig = AuthConfig{Enabled: true, APIKey: testAPIKey}

	ts := httptest.NewServer(SecureWebSocketHandler(hub, cfg, NewWebSocketRateLimiter()))
	defer ts.Close()

	tests := []struct {
		name   string
		query  string
		origin string
		status int
	}{
		{"missing key", "", "https://app.example.com", http.StatusUnauthorized},
		{"wrong key", "?api_key=wrong-key-123456789", "https://app.example.com", http.StatusUnauthorized},
		{"bad origin", "?api_key=" + testAPIKey, "https://evil.example.org", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{"Origin": {tt.origin}}
			conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "/"+tt.query), header)
			if err == nil {
				conn.Close()
				t.Fatal("expected dial to fail")
			}
			if resp == nil || resp.StatusCode != tt.status {
				t.Errorf("response = %v, want status %d", resp, tt.status)
			}
		})
	}

	dial(t, wsURL(ts, "/?api_key="+testAPIKey), "https://app.example.com")
	waitForClients(t, hub, 1)
}

func TestHubStopDisconnectsClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	ts := httptest.NewServer(SecureWebSocketHandler(hub, DefaultWebSocketSecurityConfig(), NewWebSocketRateLimiter()))
	defer ts.Close()

	conn := dial(t, wsURL(ts, "/"), testOrigin)
	waitForClients(t, hub, 1)

	cancel()
	<-stopped

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
		t.Errorf("ReadMessage() after stop = %v, want close", err)
	}

	if hub.join(&Client{hub: hub, send: make(chan []byte, 1)}) {
		t.Error("join() succeeded on a stopped hub")
	}
	hub.leave(&Client{hub: hub})
}

func TestIsOriginAllowed(t *testing.T) {
	tests := []struct {
		origin  string
		allowed []string
		want    bool
	}{
		{"", []string{"*"}, false},
		{"https://a.com", []string{"*"}, true},
		{"https://a.com", []string{"https://a.com"}, true},
		{"https://b.com", []string{"https://a.com"}, false},
		{"https://app.example.com", []string{"*.example.com"}, true},
		{"https://evilexample.com", []string{"*.example.com"}, false},
		{"https://a.com", nil, false},
	}
	for _, tt := range tests {
		if got := isOriginAllowed(tt.origin, tt.allowed); got != tt.want {
			t.Errorf("isOriginAllowed(%q, %v) = %v, want %v", tt.origin, tt.allowed, got, tt.want)
		}
	}
}

func TestValidateAuthForWebSocket(t *testing.T) {
	enabled := WebSocketSecurityConfig{RequireAuth: true, AuthConfig: AuthConfig{Enabled: true, APIKey: testAPIKey}}

	tests := []struct {
		name   string
		config WebSocketSecurityConfig
		header string
		query  string
		ok     bool
	}{
		{"auth not required", WebSocketSecurityConfig{}, "", "", true},
		{"required but not configured", WebSocketSecurityConfig{RequireAuth: true}, testAPIKey, "", false},
		{"missing key", enabled, "", "", false},
		{"header key", enabled, testAPIKey, "", true},
		{"query key", enabled, "", "?api_key=" + testAPIKey, true},
		{"wrong key", enabled, "nope", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			msg := ValidateAuthForWebSocket(req, tt.config)
			if (msg == "") != tt.ok {
				t.Errorf("ValidateAuthForWebSocket() = %q, want ok=%v", msg, tt.ok)
			}
		})
	}
}

func TestWebSocketRateLimiter(t *testing.T) {
	rl := NewWebSocketRateLimiter()
	client := &Client{}

	if rl.Allow(client) {
		t.Error("unregistered client allowed")
	}

	rl.Register(client, 2)
	for i := 0; i < 4; i++ {
		if !rl.Allow(client) {
			t.Fatalf("message %d denied within burst", i)
		}
	}
	if rl.Allow(client) {
		t.Error("message beyond burst allowed")
	}

	rl.Unregister(client)
	if rl.Allow(client) {
		t.Error("unregistered client allowed")
	}
}
