package cert

import (
	"net/http"
	"net/http/cookiejar"
	"time"
)

// Browser-like header set the portals expect. Requests without these get
// rejected by the most basic bot filters before any challenge is involved.
const (
	headerAccept         = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8"
	headerAcceptLanguage = "pt-BR,pt;q=0.9"
	defaultUserAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36"
)

// Session holds the ephemeral state of one certificate attempt: a cookie
// jar scoped to this attempt only plus the HTTP client bound to it. It is
// created at the start of an attempt and discarded at the end regardless of
// outcome; nothing in it survives to a retry.
type Session struct {
	Jar       *cookiejar.Jar
	Client    *http.Client
	UserAgent string
}

// SessionFactory builds a fresh Session per task attempt. Injected so tests
// can assert that two attempts never share a cookie store.
type SessionFactory func() (*Session, error)

// NewSession builds a session with an empty cookie jar, redirect following
// and the given per-request timeout.
func NewSession(timeout time.Duration, userAgent string) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Session{
		Jar: jar,
		Client: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		UserAgent: userAgent,
	}, nil
}

// DefaultSessionFactory returns a factory producing sessions with the given
// timeout and user agent.
func DefaultSessionFactory(timeout time.Duration, userAgent string) SessionFactory {
	return func() (*Session, error) {
		return NewSession(timeout, userAgent)
	}
}

// Decorate applies the browser header set to a request.
func (s *Session) Decorate(req *http.Request) {
	req.Header.Set("Accept", headerAccept)
	req.Header.Set("Accept-Language", headerAcceptLanguage)
	req.Header.Set("User-Agent", s.UserAgent)
}

// DecorateSubmit applies the extra headers the portals expect on the form
// POST (same-origin navigation shape).
func (s *Session) DecorateSubmit(req *http.Request, origin, referer string) {
	s.Decorate(req)
	req.Header.Set("Cache-Control", "max-age=0")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Origin", origin)
	req.Header.Set("Referer", referer)
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	req.Header.Set("Sec-Fetch-User", "?1")
}
