package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/dipauto/certidao-api/internal/cert"
	"github.com/dipauto/certidao-api/internal/config"
	"github.com/dipauto/certidao-api/internal/models"
)

// maxDocumentBytes caps how much of a portal response is read. Certificates
// are small; anything past this is not one.
const maxDocumentBytes = 20 << 20

// CertificateFetcher implements the three-phase scrape shared by all four
// sources: establish a task-scoped session, solve the bot challenge when
// the source has one, then submit the query through the same cookie store
// and validate the document. Every attempt gets a fresh session; nothing
// survives a failure.
type CertificateFetcher struct {
	cfg      config.SourcesConfig
	solver   CaptchaSolverInterface
	sessions cert.SessionFactory
	logger   *logrus.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewCertificateFetcher creates a fetcher. sessions may be nil, in which
// case the default cookie-jar factory is used.
func NewCertificateFetcher(cfg config.SourcesConfig, solver CaptchaSolverInterface, sessions cert.SessionFactory, logger *logrus.Logger) *CertificateFetcher {
	if sessions == nil {
		sessions = cert.DefaultSessionFactory(cfg.RequestTimeout, cfg.UserAgent)
	}
	return &CertificateFetcher{
		cfg:      cfg,
		solver:   solver,
		sessions: sessions,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}
}

// FetchCertificate runs the scrape protocol for one task.
func (f *CertificateFetcher) FetchCertificate(ctx context.Context, task models.CertificateTask) (*models.CertificateResult, error) {
	source, ok := cert.SourceFor(task.Source)
	if !ok {
		return nil, cert.NewError(cert.KindUnknown, "fetch", fmt.Sprintf("no source descriptor for %q", task.Source), nil)
	}

	baseURL := f.baseURLFor(task.Source)
	pageURL := baseURL + source.PagePath
	submitURL := baseURL + source.SubmitPath

	logger := f.logger.WithFields(logrus.Fields{
		"task_id": task.ID,
		"source":  task.Source,
		"tax_id":  task.TaxID,
	})

	if err := f.waitPortal(ctx, baseURL); err != nil {
		return nil, err
	}

	session, err := f.sessions()
	if err != nil {
		return nil, cert.NewError(cert.KindSessionEstablishFailed, "fetch.session", "creating session", err)
	}

	// Phase 1: establish session, collecting the portal cookies.
	markup, err := f.establish(ctx, session, pageURL)
	if err != nil {
		return nil, err
	}
	logger.WithField("page_bytes", len(markup)).Debug("Portal session established")

	// Phase 2: challenge, for protected sources only.
	token := ""
	if source.HasChallenge {
		key, strategy := cert.ExtractSiteKey(string(markup))
		if key == "" {
			e := cert.NewError(cert.KindChallengeKeyNotFound, "fetch.sitekey", "no extraction strategy matched", nil)
			e.Markup = markup
			return nil, e
		}
		logger.WithFields(logrus.Fields{
			"sitekey":  key,
			"strategy": strategy,
		}).Info("Challenge sitekey extracted")

		token, err = f.solver.Solve(ctx, key, pageURL)
		if err != nil {
			return nil, err
		}
	}

	// Phase 3: submit the query through the same cookie store.
	body, contentType, err := f.submit(ctx, session, source, task, token, baseURL, pageURL, submitURL)
	if err != nil {
		return nil, err
	}

	// Phase 4: validate, with the single extra hop for sources that answer
	// with a page linking the document.
	document, err := f.validate(ctx, session, source, baseURL, body, contentType)
	if err != nil {
		return nil, err
	}

	logger.WithField("bytes", len(document)).Info("Certificate extracted")
	return &models.CertificateResult{
		TaskID:     task.ID,
		Document:   document,
		ByteLength: len(document),
		MIMEHint:   "application/pdf",
		Metadata: models.SourceMetadata{
			CertificateKind: source.CertificateKind,
			TaxID:           task.TaxID,
			Name:            task.Name,
			CompanyName:     task.CompanyName,
			TargetID:        task.Target.ID,
		},
	}, nil
}

func (f *CertificateFetcher) baseURLFor(source models.SourceType) string {
	switch source {
	case models.SourceSuperiorCourtCompany, models.SourceSuperiorCourtIndividual:
		return strings.TrimSuffix(f.cfg.SuperiorCourtBaseURL, "/")
	default:
		return strings.TrimSuffix(f.cfg.StateCourtBaseURL, "/")
	}
}

// waitPortal throttles requests per portal host.
func (f *CertificateFetcher) waitPortal(ctx context.Context, baseURL string) error {
	rpm := f.cfg.RequestsPerMinute
	if rpm <= 0 {
		return nil
	}

	f.mu.Lock()
	limiter, ok := f.limiters[baseURL]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm)
		f.limiters[baseURL] = limiter
	}
	f.mu.Unlock()

	return limiter.Wait(ctx)
}

func (f *CertificateFetcher) establish(ctx context.Context, session *cert.Session, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, cert.NewError(cert.KindSessionEstablishFailed, "fetch.establish", "building request", err)
	}
	session.Decorate(req)

	resp, err := session.Client.Do(req)
	if err != nil {
		return nil, cert.NewError(cert.KindSessionEstablishFailed, "fetch.establish", "requesting landing page", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, cert.NewError(cert.KindSessionEstablishFailed, "fetch.establish",
			fmt.Sprintf("HTTP %d from landing page", resp.StatusCode), nil)
	}

	markup, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, cert.NewError(cert.KindSessionEstablishFailed, "fetch.establish", "reading landing page", err)
	}
	return markup, nil
}

func (f *CertificateFetcher) submit(ctx context.Context, session *cert.Session, source cert.Source, task models.CertificateTask, token, baseURL, pageURL, submitURL string) ([]byte, string, error) {
	form := source.BuildForm(task, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, submitURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, "", cert.NewError(cert.KindResponseNotDocument, "fetch.submit", "building request", err)
	}
	session.DecorateSubmit(req, baseURL, pageURL)

	resp, err := session.Client.Do(req)
	if err != nil {
		return nil, "", cert.NewError(cert.KindResponseNotDocument, "fetch.submit", "submitting query", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", cert.NewError(cert.KindResponseNotDocument, "fetch.submit",
			fmt.Sprintf("HTTP %d from query submit", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, "", cert.NewError(cert.KindResponseNotDocument, "fetch.submit", "reading response", err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func (f *CertificateFetcher) validate(ctx context.Context, session *cert.Session, source cert.Source, baseURL string, body []byte, contentType string) ([]byte, error) {
	if cert.IsPDF(contentType, body) {
		return body, nil
	}

	if source.FollowDocLink {
		if link := cert.ExtractDocumentLink(body); link != "" {
			return f.followLink(ctx, session, baseURL, link)
		}
	}

	return nil, cert.NewError(cert.KindResponseNotDocument, "fetch.validate",
		fmt.Sprintf("content type %q, %d bytes", contentType, len(body)), nil)
}

// followLink performs the single extra hop to the linked document, reusing
// the session cookies.
func (f *CertificateFetcher) followLink(ctx context.Context, session *cert.Session, baseURL, link string) ([]byte, error) {
	docURL := link
	if !strings.HasPrefix(link, "http") {
		base, err := url.Parse(baseURL)
		if err != nil {
			return nil, cert.NewError(cert.KindResponseNotDocument, "fetch.follow", "parsing base URL", err)
		}
		ref, err := url.Parse(link)
		if err != nil {
			return nil, cert.NewError(cert.KindResponseNotDocument, "fetch.follow", "parsing document link", err)
		}
		docURL = base.ResolveReference(ref).String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return nil, cert.NewError(cert.KindResponseNotDocument, "fetch.follow", "building request", err)
	}
	session.Decorate(req)

	resp, err := session.Client.Do(req)
	if err != nil {
		return nil, cert.NewError(cert.KindResponseNotDocument, "fetch.follow", "fetching linked document", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, cert.NewError(cert.KindResponseNotDocument, "fetch.follow",
			fmt.Sprintf("HTTP %d from linked document", resp.StatusCode), nil)
	}

	document, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, cert.NewError(cert.KindResponseNotDocument, "fetch.follow", "reading linked document", err)
	}
	if !cert.IsPDF(resp.Header.Get("Content-Type"), document) {
		return nil, cert.NewError(cert.KindResponseNotDocument, "fetch.follow",
			fmt.Sprintf("linked document is not a PDF (%d bytes)", len(document)), nil)
	}
	return document, nil
}
