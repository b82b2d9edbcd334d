package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dipauto/certidao-api/internal/cert"
	"github.com/dipauto/certidao-api/internal/config"
)

const (
	captchaStatusOK         = 1
	captchaNotReady         = "CAPCHA_NOT_READY"
	captchaErrorUnsolvable  = "ERROR_CAPTCHA_UNSOLVABLE"
	captchaErrorWrongKey    = "ERROR_WRONG_USER_KEY"
	captchaErrorZeroBalance = "ERROR_ZERO_BALANCE"
)

// captchaAPIResponse covers both the submit acknowledgement and the poll
// result; the provider uses the same envelope for both.
type captchaAPIResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
	Error   string `json:"error_text"`
}

// CaptchaSolver talks to the challenge-solving service: one submission,
// then fixed-interval polling up to a bounded attempt ceiling. It keeps no
// state between calls and shares nothing with the portal sessions.
type CaptchaSolver struct {
	cfg    config.CaptchaConfig
	client *http.Client
	clock  Clock
	logger *logrus.Logger
}

// NewCaptchaSolver creates a solver client. clock may be nil, in which case
// the wall clock is used.
func NewCaptchaSolver(cfg config.CaptchaConfig, clock Clock, logger *logrus.Logger) *CaptchaSolver {
	if cfg.APIKey == "" {
		logger.Warn("Captcha API key not configured; challenged sources will fail")
	}
	if clock == nil {
		clock = NewClock()
	}
	return &CaptchaSolver{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.HTTPTimeout,
			Transport: &http.Transport{
				MaxIdleConns:       10,
				IdleConnTimeout:    30 * time.Second,
				DisableCompression: true,
			},
		},
		clock:  clock,
		logger: logger,
	}
}

// Solve submits the challenge once and polls for the token. A failed
// submission is terminal; retrying a scrape restarts from session
// establishment, not from here.
func (c *CaptchaSolver) Solve(ctx context.Context, siteKey, pageURL string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", cert.NewError(cert.KindChallengeSubmitFailed, "captcha.solve", "API key not configured", nil)
	}
	if siteKey == "" || pageURL == "" {
		return "", cert.NewError(cert.KindChallengeSubmitFailed, "captcha.solve", "sitekey and pageurl are required", nil)
	}

	logger := c.logger.WithFields(logrus.Fields{
		"sitekey": siteKey,
		"pageurl": pageURL,
	})
	logger.Info("Submitting challenge to solving service")

	challengeID, err := c.submit(ctx, siteKey, pageURL)
	if err != nil {
		return "", err
	}

	logger.WithField("challenge_id", challengeID).Debug("Challenge accepted, polling for token")
	return c.poll(ctx, challengeID)
}

// submit sends the challenge to the provider and returns its identifier.
func (c *CaptchaSolver) submit(ctx context.Context, siteKey, pageURL string) (string, error) {
	payload := &bytes.Buffer{}
	writer := multipart.NewWriter(payload)

	fields := map[string]string{
		"key":     c.cfg.APIKey,
		"method":  "turnstile",
		"sitekey": siteKey,
		"pageurl": pageURL,
		"json":    "1",
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return "", cert.NewError(cert.KindChallengeSubmitFailed, "captcha.submit", "building payload", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", cert.NewError(cert.KindChallengeSubmitFailed, "captcha.submit", "building payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.SubmitURL, payload)
	if err != nil {
		return "", cert.NewError(cert.KindChallengeSubmitFailed, "captcha.submit", "building request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", cert.NewError(cert.KindChallengeSubmitFailed, "captcha.submit", "transport", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", cert.NewError(cert.KindChallengeSubmitFailed, "captcha.submit",
			fmt.Sprintf("HTTP %d from solving service", resp.StatusCode), nil)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", cert.NewError(cert.KindChallengeSubmitFailed, "captcha.submit", "reading response", err)
	}

	id, state := parseCaptchaResponse(body)
	if state != captchaStateReady || id == "" {
		return "", cert.NewError(cert.KindChallengeSubmitFailed, "captcha.submit",
			fmt.Sprintf("submission not acknowledged: %s", strings.TrimSpace(string(body))), nil)
	}
	return id, nil
}

// poll waits PollInterval between checks, up to MaxPollAttempts checks.
func (c *CaptchaSolver) poll(ctx context.Context, challengeID string) (string, error) {
	for attempt := 1; attempt <= c.cfg.MaxPollAttempts; attempt++ {
		if err := c.clock.Sleep(ctx, c.cfg.PollInterval); err != nil {
			return "", err
		}

		token, state, err := c.check(ctx, challengeID)
		if err != nil {
			return "", err
		}
		switch state {
		case captchaStateReady:
			c.logger.WithField("attempts", attempt).Info("Challenge token ready")
			return token, nil
		case captchaStatePending:
			c.logger.WithFields(logrus.Fields{
				"challenge_id": challengeID,
				"attempt":      attempt,
			}).Debug("Challenge not ready yet")
		}
	}

	return "", cert.NewError(cert.KindChallengeTimeout, "captcha.poll",
		fmt.Sprintf("no token after %d polls at %s", c.cfg.MaxPollAttempts, c.cfg.PollInterval), nil)
}

type captchaState int

const (
	captchaStateReady captchaState = iota
	captchaStatePending
	captchaStateRejected
)

func (c *CaptchaSolver) check(ctx context.Context, challengeID string) (string, captchaState, error) {
	url := fmt.Sprintf("%s?key=%s&action=get&id=%s&json=1", c.cfg.ResultURL, c.cfg.APIKey, challengeID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", captchaStateRejected, cert.NewError(cert.KindChallengeRejected, "captcha.poll", "building request", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", captchaStateRejected, ctx.Err()
		}
		return "", captchaStateRejected, cert.NewError(cert.KindChallengeRejected, "captcha.poll", "transport", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", captchaStateRejected, cert.NewError(cert.KindChallengeRejected, "captcha.poll",
			fmt.Sprintf("HTTP %d from solving service", resp.StatusCode), nil)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", captchaStateRejected, cert.NewError(cert.KindChallengeRejected, "captcha.poll", "reading response", err)
	}

	value, state := parseCaptchaResponse(body)
	if state == captchaStateRejected {
		return "", state, cert.NewError(cert.KindChallengeRejected, "captcha.poll", mapProviderError(value), nil)
	}
	return value, state, nil
}

// parseCaptchaResponse handles both envelopes the provider emits: the JSON
// form when json=1 is honored, and the legacy "OK|..." plain text.
func parseCaptchaResponse(body []byte) (string, captchaState) {
	var response captchaAPIResponse
	if err := json.Unmarshal(body, &response); err == nil && (response.Status != 0 || response.Request != "") {
		switch {
		case response.Status == captchaStatusOK:
			return response.Request, captchaStateReady
		case response.Request == captchaNotReady:
			return "", captchaStatePending
		default:
			detail := response.Request
			if response.Error != "" {
				detail = response.Error
			}
			return detail, captchaStateRejected
		}
	}

	text := strings.TrimSpace(string(body))
	switch {
	case strings.HasPrefix(text, "OK|"):
		return strings.TrimPrefix(text, "OK|"), captchaStateReady
	case text == captchaNotReady:
		return "", captchaStatePending
	default:
		return text, captchaStateRejected
	}
}

func mapProviderError(msg string) string {
	switch {
	case strings.Contains(msg, captchaErrorUnsolvable):
		return "provider reports the challenge is unsolvable: " + msg
	case strings.Contains(msg, captchaErrorWrongKey):
		return "invalid API key: " + msg
	case strings.Contains(msg, captchaErrorZeroBalance):
		return "provider balance exhausted: " + msg
	default:
		return "provider error: " + msg
	}
}
