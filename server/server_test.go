package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/lifecycle/errors"
	"github.com/kbukum/lifecycle/logger"
	"github.com/kbukum/lifecycle/observability"
	"github.com/kbukum/lifecycle/security"
	"github.com/kbukum/lifecycle/security/tlstest"
	"github.com/kbukum/lifecycle/server/middleware"
)

func testServer(cfg Config) *Server {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	s := New(cfg, logger.NewNop())
	s.Engine().GET("/ping", func(c *gin.Context) { RespondOK(c, "pong") })
	return s
}

func get(t *testing.T, url string, header ...string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, http.NoBody)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func TestServerStartStopRestart(t *testing.T) {
	s := testServer(Config{})
	ctx := context.Background()

	for round := range 2 {
		if err := s.Start(ctx); err != nil {
			t.Fatalf("round %d: Start: %v", round, err)
		}
		if err := s.Start(ctx); err != nil {
			t.Fatalf("round %d: second Start should be a no-op, got %v", round, err)
		}
		if !s.Serving() {
			t.Fatalf("round %d: expected serving", round)
		}

		resp, body := get(t, fmt.Sprintf("http://%s/ping", s.Addr()))
		if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"pong"`) {
			t.Fatalf("round %d: unexpected response %d %s", round, resp.StatusCode, body)
		}
		if resp.Header.Get(middleware.RequestIDHeader) == "" {
			t.Errorf("round %d: expected middleware stack to set a request ID", round)
		}

		if err := s.Stop(ctx); err != nil {
			t.Fatalf("round %d: Stop: %v", round, err)
		}
		if s.Serving() {
			t.Fatalf("round %d: expected stopped", round)
		}
	}

	if err := s.Stop(ctx); err != nil {
		t.Errorf("Stop on a stopped server should be a no-op, got %v", err)
	}
}

func TestServerStopDrainsWithCanceledContext(t *testing.T) {
	s := testServer(Config{})
	entered, release := make(chan struct{}), make(chan struct{})
	s.Engine().GET("/slow", func(c *gin.Context) {
		close(entered)
		<-release
		RespondOK(c, "done")
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	type result struct {
		status int
		err    error
	}
	got := make(chan result, 1)
	go func() {
		resp, err := http.Get(fmt.Sprintf("http://%s/slow", s.Addr()))
		if err != nil {
			got <- result{err: err}
			return
		}
		resp.Body.Close()
		got <- result{status: resp.StatusCode}
	}()
	<-entered

	// A stop issued from a request inherits a context that dies with the
	// server's base context.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop with a canceled context: %v", err)
	}
	if r := <-got; r.err != nil || r.status != http.StatusOK {
		t.Errorf("expected the in-flight request to finish, got %d %v", r.status, r.err)
	}
	if s.Serving() {
		t.Error("expected stopped")
	}
}

func TestServerBindFailure(t *testing.T) {
	first := testServer(Config{})
	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = first.Stop(ctx) })

	host, port, _ := net.SplitHostPort(first.Addr())
	p, _ := strconv.Atoi(port)
	second := testServer(Config{Host: host, Port: p})
	if err := second.Start(ctx); err == nil {
		_ = second.Stop(ctx)
		t.Fatal("expected bind failure on a taken port")
	}
	if second.Serving() {
		t.Error("expected failed start to leave the server stopped")
	}
}

func TestServerTLS(t *testing.T) {
	certs := tlstest.GenerateTLSCerts(t)
	s := testServer(Config{TLS: security.TLSConfig{CertFile: certs.CertFile, KeyFile: certs.KeyFile}})
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Stop(ctx) })

	client := &http.Client{Transport: &http.Transport{
		TLSClientConfig:   &tls.Config{RootCAs: certs.CertPool},
		ForceAttemptHTTP2: true,
	}}
	resp, err := client.Get(fmt.Sprintf("https://%s/ping", s.Addr()))
	if err != nil {
		t.Fatalf("GET over TLS: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.TLS == nil {
		t.Errorf("unexpected TLS response %d %+v", resp.StatusCode, resp.TLS)
	}
	if d := s.Describe(); !strings.Contains(d.Details, "(tls)") {
		t.Errorf("expected tls in description, got %q", d.Details)
	}

	bad := testServer(Config{TLS: security.TLSConfig{CertFile: certs.CertFile, KeyFile: "/missing.key"}})
	if err := bad.Start(ctx); err == nil {
		_ = bad.Stop(ctx)
		t.Fatal("expected start to fail on a missing key")
	}
	if bad.Serving() {
		t.Error("expected failed start to leave the server stopped")
	}
}

func TestServerAuthAndProbes(t *testing.T) {
	secret := "0123456789abcdef-admin"
	s := testServer(Config{AuthSecret: secret})
	s.Engine().GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/ping", http.NoBody))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/health", http.NoBody))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected probe without token, got %d", rr.Code)
	}

	token, err := middleware.IssueHS256([]byte(secret), "ops", 0)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("GET", "/ping", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rr.Code)
	}
	if d := s.Describe(); d.Type != "server" || !strings.HasSuffix(d.Details, "(auth)") {
		t.Errorf("unexpected description %+v", d)
	}
}

func TestServerRateLimit(t *testing.T) {
	s := testServer(Config{RateLimit: 0.001, RateBurst: 1})
	codes := make([]int, 2)
	for i := range codes {
		rr := httptest.NewRecorder()
		s.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/ping", http.NoBody))
		codes[i] = rr.Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("expected 200 then 429, got %v", codes)
	}
}

func TestServerHealth(t *testing.T) {
	s := testServer(Config{})
	if h := s.CheckHealth(context.Background()); h.Status != observability.HealthStatusDown {
		t.Errorf("expected down before start, got %s", h.Status)
	}
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer s.Stop(ctx)
	if h := s.CheckHealth(ctx); h.Status != observability.HealthStatusUp || !strings.Contains(h.Message, s.Addr()) {
		t.Errorf("unexpected health %+v", h)
	}
}

func TestRespondWithError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   apperrors.ErrorCode
	}{
		{"app error", apperrors.NotFound("component", "db"), http.StatusNotFound, apperrors.ErrCodeNotFound},
		{"wrapped app error", fmt.Errorf("ctx: %w", apperrors.Conflict("busy")), http.StatusConflict, apperrors.ErrCodeConflict},
		{"plain error", io.ErrUnexpectedEOF, http.StatusInternalServerError, apperrors.ErrCodeInternal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rr)
			RespondWithError(c, tc.err)
			if rr.Code != tc.wantStatus {
				t.Errorf("expected %d, got %d", tc.wantStatus, rr.Code)
			}
			var body apperrors.ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.Error.Code != tc.wantCode {
				t.Errorf("expected %s, got %s", tc.wantCode, body.Error.Code)
			}
		})
	}
}

func TestRoutesOrder(t *testing.T) {
	s := testServer(Config{})
	s.Engine().GET("/health", func(*gin.Context) {})
	s.Engine().DELETE("/components/:name", func(*gin.Context) {})
	s.Engine().GET("/components/:name", func(*gin.Context) {})

	routes := s.Routes()
	var got []string
	for _, r := range routes {
		got = append(got, r.Method+" "+r.Path)
	}
	want := "GET /components/:name,DELETE /components/:name,GET /ping,GET /health"
	if strings.Join(got, ",") != want {
		t.Errorf("unexpected order %v", got)
	}
}

func TestFormatHandlerName(t *testing.T) {
	tests := map[string]string{
		"github.com/kbukum/lifecycle/rpc.(*Server).handleCall-fm":    "Server.handleCall",
		"github.com/kbukum/lifecycle/server/endpoint.Version.func1":  "version",
		"github.com/kbukum/lifecycle/server/endpoint.ListComponents": "ListComponents",
		"github.com/gin-gonic/gin.WrapH.func1":                       "wraph",
	}
	for in, want := range tests {
		if got := formatHandlerName(in); got != want {
			t.Errorf("formatHandlerName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConfig(t *testing.T) {
	cfg := Config{RateLimit: 5}
	cfg.ApplyDefaults()
	if cfg.Port != 8080 || cfg.ReadTimeout != 15 || cfg.WriteTimeout != 0 || cfg.RateBurst != 11 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}

	bad := []Config{
		{Port: 70000},
		{ReadTimeout: -1},
		{RateLimit: -1},
		{AuthSecret: "short"},
		{MaxBodySize: "lots"},
		{TLS: security.TLSConfig{CertFile: "cert.pem"}},
	}
	for _, c := range bad {
		if err := c.Validate(); err == nil {
			t.Errorf("expected %+v to be rejected", c)
		}
	}
}
