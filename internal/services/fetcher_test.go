package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dipauto/certidao-api/internal/cert"
	"github.com/dipauto/certidao-api/internal/config"
	"github.com/dipauto/certidao-api/internal/models"
)

var pdfBody = []byte("%PDF-1.7\nfake certificate body")

type stubSolver struct {
	mu      sync.Mutex
	calls   int
	siteKey string
	pageURL string
	token   string
	err     error
}

func (s *stubSolver) Solve(_ context.Context, siteKey, pageURL string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.siteKey = siteKey
	s.pageURL = pageURL
	return s.token, s.err
}

// countingFactory wraps the default session factory and records every
// session it hands out.
type countingFactory struct {
	mu       sync.Mutex
	sessions []*cert.Session
}

func (f *countingFactory) factory() cert.SessionFactory {
	return func() (*cert.Session, error) {
		session, err := cert.NewSession(10*time.Second, "")
		if err != nil {
			return nil, err
		}
		f.mu.Lock()
		f.sessions = append(f.sessions, session)
		f.mu.Unlock()
		return session, nil
	}
}

func fetcherConfig(superiorURL, stateURL string) config.SourcesConfig {
	return config.SourcesConfig{
		SuperiorCourtBaseURL: superiorURL,
		StateCourtBaseURL:    stateURL,
		RequestTimeout:       10 * time.Second,
	}
}

func TestFetchCertificate_SuperiorCourtCompany(t *testing.T) {
	t.Parallel()

	var submitted url.Values
	mux := http.NewServeMux()
	mux.HandleFunc("/processo/certidao/emitir", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			io.WriteString(w, `<html><form name="certidao"></form></html>`)
			return
		}
		require.NoError(t, r.ParseForm())
		submitted = r.PostForm
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(pdfBody)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	solver := &stubSolver{token: "should-not-be-used"}
	fetcher := NewCertificateFetcher(fetcherConfig(srv.URL, srv.URL), solver, nil, testLogger())

	task := models.CertificateTask{
		ID:     "task-1",
		Source: models.SourceSuperiorCourtCompany,
		TaxID:  "11222333000181",
		Name:   "Construtora Alfa LTDA",
	}

	result, err := fetcher.FetchCertificate(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, pdfBody, result.Document)
	assert.Equal(t, len(pdfBody), result.ByteLength)
	assert.Equal(t, "STJ_PJ", result.Metadata.CertificateKind)

	// Challenge-free source: the solver must never be consulted.
	assert.Equal(t, 0, solver.calls)

	assert.Equal(t, "pessoajuridicaconstanadaconsta", submitted.Get("certidaoTipo"))
	assert.Equal(t, "11.222.333/0001-81", submitted.Get("parteCNPJ"))
}

func TestFetchCertificate_StateCourtWithChallengeAndDocLink(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	var submitted url.Values
	mux.HandleFunc("/CertidaoNegativaPositivaPublica", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			io.WriteString(w, `<html><div class="cf-turnstile" data-sitekey="0xSTATEKEY"></div></html>`)
			return
		}
		require.NoError(t, r.ParseForm())
		submitted = r.PostForm
		// The portal answers with a page linking the document.
		io.WriteString(w, `<html><body><a href="/docs/certidao_987.pdf">Certidão</a></body></html>`)
	})
	mux.HandleFunc("/docs/certidao_987.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(pdfBody)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	solver := &stubSolver{token: "solved-token"}
	fetcher := NewCertificateFetcher(fetcherConfig(srv.URL, srv.URL), solver, nil, testLogger())

	task := models.CertificateTask{
		ID:         "task-2",
		Source:     models.SourceStateCourtCivil,
		TaxID:      "52998224725",
		Name:       "Maria da Silva",
		MotherName: "Ana da Silva",
		BirthDate:  time.Date(1981, 3, 5, 0, 0, 0, 0, time.UTC),
	}

	result, err := fetcher.FetchCertificate(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, pdfBody, result.Document)

	assert.Equal(t, 1, solver.calls)
	assert.Equal(t, "0xSTATEKEY", solver.siteKey)
	assert.Contains(t, solver.pageURL, "TipoArea=1")

	assert.Equal(t, "solved-token", submitted.Get("cf-turnstile-response"))
	assert.Equal(t, "solved-token", submitted.Get("g-recaptcha-response"))
	assert.Equal(t, "05/03/1981", submitted.Get("DataNascimento"))
}

func TestFetchCertificate_ResponseNotDocument(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/processo/certidao/emitir", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			io.WriteString(w, `<html>ok</html>`)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=UTF-8")
		io.WriteString(w, `<html><body>Dados informados são inválidos</body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	fetcher := NewCertificateFetcher(fetcherConfig(srv.URL, srv.URL), &stubSolver{}, nil, testLogger())

	_, err := fetcher.FetchCertificate(context.Background(), models.CertificateTask{
		Source: models.SourceSuperiorCourtCompany,
		TaxID:  "11222333000181",
	})
	require.Error(t, err)
	assert.Equal(t, cert.KindResponseNotDocument, cert.KindOf(err))
	assert.Contains(t, err.Error(), "text/html")
}

func TestFetchCertificate_LandingPageUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	fetcher := NewCertificateFetcher(fetcherConfig(srv.URL, srv.URL), &stubSolver{}, nil, testLogger())

	_, err := fetcher.FetchCertificate(context.Background(), models.CertificateTask{
		Source: models.SourceSuperiorCourtIndividual,
		TaxID:  "52998224725",
	})
	require.Error(t, err)
	assert.Equal(t, cert.KindSessionEstablishFailed, cert.KindOf(err))
}

func TestFetchCertificate_SiteKeyNotFound(t *testing.T) {
	t.Parallel()

	landing := `<html><body><p>pagina sem widget</p></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, landing)
	}))
	defer srv.Close()

	solver := &stubSolver{token: "unused"}
	fetcher := NewCertificateFetcher(fetcherConfig(srv.URL, srv.URL), solver, nil, testLogger())

	_, err := fetcher.FetchCertificate(context.Background(), models.CertificateTask{
		Source: models.SourceStateCourtCriminal,
		TaxID:  "52998224725",
	})
	require.Error(t, err)
	assert.Equal(t, cert.KindChallengeKeyNotFound, cert.KindOf(err))
	assert.Equal(t, 0, solver.calls)

	// The raw markup is kept on the error for diagnostics.
	var certErr *cert.Error
	require.True(t, errors.As(err, &certErr))
	assert.Equal(t, landing, string(certErr.Markup))
}

func TestFetchCertificate_SolverFailurePropagates(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			t.Error("query must not be submitted when the challenge fails")
		}
		io.WriteString(w, `<div class="cf-turnstile" data-sitekey="0xKEY"></div>`)
	}))
	defer srv.Close()

	solverErr := cert.NewError(cert.KindChallengeTimeout, "captcha.poll", "no token", nil)
	fetcher := NewCertificateFetcher(fetcherConfig(srv.URL, srv.URL), &stubSolver{err: solverErr}, nil, testLogger())

	_, err := fetcher.FetchCertificate(context.Background(), models.CertificateTask{
		Source: models.SourceStateCourtCivil,
		TaxID:  "52998224725",
	})
	require.Error(t, err)
	assert.Equal(t, cert.KindChallengeTimeout, cert.KindOf(err))
}

func TestFetchCertificate_FreshSessionPerAttempt(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/processo/certidao/emitir", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "abc"})
			io.WriteString(w, `<html>ok</html>`)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(pdfBody)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	factory := &countingFactory{}
	fetcher := NewCertificateFetcher(fetcherConfig(srv.URL, srv.URL), &stubSolver{}, factory.factory(), testLogger())

	task := models.CertificateTask{Source: models.SourceSuperiorCourtIndividual, TaxID: "52998224725"}

	_, err := fetcher.FetchCertificate(context.Background(), task)
	require.NoError(t, err)
	_, err = fetcher.FetchCertificate(context.Background(), task)
	require.NoError(t, err)

	require.Len(t, factory.sessions, 2)
	assert.NotSame(t, factory.sessions[0], factory.sessions[1])
	assert.NotSame(t, factory.sessions[0].Jar, factory.sessions[1].Jar)
}

func TestFetchCertificate_UnknownSource(t *testing.T) {
	t.Parallel()

	fetcher := NewCertificateFetcher(fetcherConfig("http://x", "http://y"), &stubSolver{}, nil, testLogger())

	_, err := fetcher.FetchCertificate(context.Background(), models.CertificateTask{Source: "TRF1"})
	require.Error(t, err)
	assert.Equal(t, cert.KindUnknown, cert.KindOf(err))
}
