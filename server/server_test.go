package server

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"charm.land/log/v2"

	"github.com/avila-org/avila-arrow/lifecycle"
)

func testConfig() Config {
	return Config{
		Addr:       "127.0.0.1:0",
		Workers:    2,
		QueueSize:  16,
		JobTimeout: 5 * time.Second,
	}
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	s, err := NewServer(cfg, log.New(io.Discard))
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return s
}

// sendRequest writes one request over the connection and returns the
// status plus the result frame, if any.
func sendRequest(t *testing.T, conn net.Conn, op, column string, payload []byte) (StatusResponse, []byte) {
	t.Helper()

	header, err := json.Marshal(RequestHeader{Op: op, Column: column})
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteFrame(conn, header); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if err := WriteFrame(conn, payload); err != nil {
		t.Fatalf("write payload: %v", err)
	}

	statusData, err := ReadFrame(conn)
	if err != nil {
		t.Fatalf("read status: %v", err)
	}
	var status StatusResponse
	if err := json.Unmarshal(statusData, &status); err != nil {
		t.Fatalf("parse status: %v", err)
	}

	if !status.Success {
		return status, nil
	}

	result, err := ReadFrame(conn)
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	return status, result
}

func TestServerLifecycleGate(t *testing.T) {
	s := newTestServer(t, testConfig())

	// Before initialization the server must refuse to start.
	if !lifecycle.Initialized() {
		if err := s.StartAsync(); !errors.Is(err, ErrNotInitialized) {
			t.Fatalf("Expected ErrNotInitialized, got %v", err)
		}
	}

	if status := lifecycle.Init(); status != lifecycle.StatusOK {
		t.Fatalf("Init returned status %d", status)
	}

	if err := s.StartAsync(); err != nil {
		t.Fatalf("StartAsync after init failed: %v", err)
	}
	defer s.Stop()

	if s.Addr() == "" {
		t.Error("Expected a bound address")
	}
}

func TestServerEndToEnd(t *testing.T) {
	if status := lifecycle.Init(); status != lifecycle.StatusOK {
		t.Fatalf("Init returned status %d", status)
	}

	s := newTestServer(t, testConfig())
	if err := s.StartAsync(); err != nil {
		t.Fatalf("StartAsync failed: %v", err)
	}
	defer s.Stop()

	conn, err := net.DialTimeout("tcp", s.Addr(), time.Second)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	status, result := sendRequest(t, conn, OpSum, "reading", testPayload(t))
	if !status.Success {
		t.Fatalf("Request failed: %s", status.Error)
	}
	if len(result) == 0 {
		t.Fatal("Expected a result frame")
	}

	// A failed request keeps the connection usable.
	status, _ = sendRequest(t, conn, OpSum, "missing", testPayload(t))
	if status.Success {
		t.Fatal("Expected failure for missing column")
	}

	status, _ = sendRequest(t, conn, OpMean, "reading", testPayload(t))
	if !status.Success {
		t.Fatalf("Request after error failed: %s", status.Error)
	}
}

func TestServerAuthHandshake(t *testing.T) {
	if status := lifecycle.Init(); status != lifecycle.StatusOK {
		t.Fatalf("Init returned status %d", status)
	}

	cfg := testConfig()
	cfg.AuthEnabled = true
	cfg.AuthToken = "test-secret"

	s := newTestServer(t, cfg)
	if err := s.StartAsync(); err != nil {
		t.Fatalf("StartAsync failed: %v", err)
	}
	defer s.Stop()

	conn, err := net.DialTimeout("tcp", s.Addr(), time.Second)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	authMsg, _ := json.Marshal(AuthMessage{Type: "auth", Token: "test-secret"})
	if err := WriteFrame(conn, authMsg); err != nil {
		t.Fatalf("write auth: %v", err)
	}

	respData, err := ReadFrame(conn)
	if err != nil {
		t.Fatalf("read auth response: %v", err)
	}
	var resp AuthResponse
	if err := json.Unmarshal(respData, &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success {
		t.Fatalf("Auth rejected: %s", resp.Error)
	}

	status, _ := sendRequest(t, conn, OpMax, "reading", testPayload(t))
	if !status.Success {
		t.Fatalf("Request after auth failed: %s", status.Error)
	}
}

func TestServerAuthRejected(t *testing.T) {
	if status := lifecycle.Init(); status != lifecycle.StatusOK {
		t.Fatalf("Init returned status %d", status)
	}

	cfg := testConfig()
	cfg.AuthEnabled = true
	cfg.AuthToken = "test-secret"

	s := newTestServer(t, cfg)
	if err := s.StartAsync(); err != nil {
		t.Fatalf("StartAsync failed: %v", err)
	}
	defer s.Stop()

	conn, err := net.DialTimeout("tcp", s.Addr(), time.Second)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	authMsg, _ := json.Marshal(AuthMessage{Type: "auth", Token: "wrong"})
	if err := WriteFrame(conn, authMsg); err != nil {
		t.Fatalf("write auth: %v", err)
	}

	respData, err := ReadFrame(conn)
	if err != nil {
		t.Fatalf("read auth response: %v", err)
	}
	var resp AuthResponse
	if err := json.Unmarshal(respData, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Success {
		t.Fatal("Expected auth rejection")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Addr == "" {
		t.Error("Expected a default address")
	}
	if cfg.Workers <= 0 {
		t.Error("Expected positive worker count")
	}
}
