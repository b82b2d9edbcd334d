package services

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dipauto/certidao-api/internal/cert"
	"github.com/dipauto/certidao-api/internal/config"
)

// fakeClock advances instantly and counts how often the poll loop slept.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps int
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps++
	c.now = c.now.Add(d)
	return nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeProvider stands in for the solving service: it records submissions
// and serves a scripted sequence of poll responses.
type fakeProvider struct {
	t           *testing.T
	mu          sync.Mutex
	submits     int
	polls       int
	submitBody  string
	pollScript  func(poll int) string
	submitCode  int
	lastSitekey string
}

func (p *fakeProvider) server() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/in.php", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.submits++
		require.NoError(p.t, r.ParseMultipartForm(1<<20))
		assert.Equal(p.t, "turnstile", r.FormValue("method"))
		p.lastSitekey = r.FormValue("sitekey")
		if p.submitCode != 0 {
			w.WriteHeader(p.submitCode)
			return
		}
		io.WriteString(w, p.submitBody)
	})
	mux.HandleFunc("/res.php", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.polls++
		io.WriteString(w, p.pollScript(p.polls))
	})
	return httptest.NewServer(mux)
}

func solverConfig(base string, maxPolls int) config.CaptchaConfig {
	return config.CaptchaConfig{
		APIKey:          "test-key",
		SubmitURL:       base + "/in.php",
		ResultURL:       base + "/res.php",
		PollInterval:    5 * time.Second,
		MaxPollAttempts: maxPolls,
		HTTPTimeout:     10 * time.Second,
	}
}

func TestSolve_TokenAfterPending(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		t:          t,
		submitBody: `{"status":1,"request":"challenge-77"}`,
		pollScript: func(poll int) string {
			if poll < 3 {
				return `{"status":0,"request":"CAPCHA_NOT_READY"}`
			}
			return `{"status":1,"request":"solved-token"}`
		},
	}
	srv := provider.server()
	defer srv.Close()

	clock := newFakeClock()
	solver := NewCaptchaSolver(solverConfig(srv.URL, 24), clock, testLogger())

	token, err := solver.Solve(context.Background(), "0xkey", "https://portal.example/page")
	require.NoError(t, err)
	assert.Equal(t, "solved-token", token)
	assert.Equal(t, 1, provider.submits)
	assert.Equal(t, 3, provider.polls)
	assert.Equal(t, "0xkey", provider.lastSitekey)
	assert.Equal(t, 3, clock.sleeps)
}

func TestSolve_LegacyTextEnvelope(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		t:          t,
		submitBody: "OK|challenge-12",
		pollScript: func(poll int) string {
			if poll == 1 {
				return "CAPCHA_NOT_READY"
			}
			return "OK|token-from-text"
		},
	}
	srv := provider.server()
	defer srv.Close()

	solver := NewCaptchaSolver(solverConfig(srv.URL, 24), newFakeClock(), testLogger())

	token, err := solver.Solve(context.Background(), "0xkey", "https://portal.example/page")
	require.NoError(t, err)
	assert.Equal(t, "token-from-text", token)
}

func TestSolve_TimeoutAtPollCeiling(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		t:          t,
		submitBody: `{"status":1,"request":"challenge-9"}`,
		pollScript: func(int) string { return "CAPCHA_NOT_READY" },
	}
	srv := provider.server()
	defer srv.Close()

	clock := newFakeClock()
	solver := NewCaptchaSolver(solverConfig(srv.URL, 4), clock, testLogger())

	_, err := solver.Solve(context.Background(), "0xkey", "https://portal.example/page")
	require.Error(t, err)
	assert.Equal(t, cert.KindChallengeTimeout, cert.KindOf(err))

	// Exactly the configured ceiling, never one more.
	assert.Equal(t, 4, provider.polls)
	assert.Equal(t, 4, clock.sleeps)
}

func TestSolve_Rejected(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		t:          t,
		submitBody: `{"status":1,"request":"challenge-3"}`,
		pollScript: func(int) string { return `{"status":0,"request":"ERROR_CAPTCHA_UNSOLVABLE"}` },
	}
	srv := provider.server()
	defer srv.Close()

	solver := NewCaptchaSolver(solverConfig(srv.URL, 24), newFakeClock(), testLogger())

	_, err := solver.Solve(context.Background(), "0xkey", "https://portal.example/page")
	require.Error(t, err)
	assert.Equal(t, cert.KindChallengeRejected, cert.KindOf(err))
	assert.Contains(t, err.Error(), "unsolvable")
	assert.Equal(t, 1, provider.polls)
}

func TestSolve_SubmitFailureIsTerminal(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		t:          t,
		submitCode: http.StatusBadGateway,
		pollScript: func(int) string { return "unreachable" },
	}
	srv := provider.server()
	defer srv.Close()

	solver := NewCaptchaSolver(solverConfig(srv.URL, 24), newFakeClock(), testLogger())

	_, err := solver.Solve(context.Background(), "0xkey", "https://portal.example/page")
	require.Error(t, err)
	assert.Equal(t, cert.KindChallengeSubmitFailed, cert.KindOf(err))

	// One submission, no retry, no polling.
	assert.Equal(t, 1, provider.submits)
	assert.Equal(t, 0, provider.polls)
}

func TestSolve_SubmitRejection(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		t:          t,
		submitBody: `{"status":0,"request":"ERROR_WRONG_USER_KEY"}`,
		pollScript: func(int) string { return "unreachable" },
	}
	srv := provider.server()
	defer srv.Close()

	solver := NewCaptchaSolver(solverConfig(srv.URL, 24), newFakeClock(), testLogger())

	_, err := solver.Solve(context.Background(), "0xkey", "https://portal.example/page")
	require.Error(t, err)
	assert.Equal(t, cert.KindChallengeSubmitFailed, cert.KindOf(err))
	assert.Equal(t, 0, provider.polls)
}

func TestSolve_MissingKey(t *testing.T) {
	t.Parallel()

	cfg := solverConfig("http://unused", 24)
	cfg.APIKey = ""
	solver := NewCaptchaSolver(cfg, newFakeClock(), testLogger())

	_, err := solver.Solve(context.Background(), "0xkey", "https://portal.example/page")
	require.Error(t, err)
	assert.Equal(t, cert.KindChallengeSubmitFailed, cert.KindOf(err))
}

func TestSolve_ContextCancelledDuringPoll(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	provider := &fakeProvider{
		t:          t,
		submitBody: `{"status":1,"request":"challenge-5"}`,
		pollScript: func(int) string {
			cancel()
			return "CAPCHA_NOT_READY"
		},
	}
	srv := provider.server()
	defer srv.Close()

	solver := NewCaptchaSolver(solverConfig(srv.URL, 24), newFakeClock(), testLogger())

	_, err := solver.Solve(ctx, "0xkey", "https://portal.example/page")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
