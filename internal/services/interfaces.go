package services

import (
	"context"

	"github.com/dipauto/certidao-api/internal/models"
)

// CaptchaSolverInterface drives the external challenge-solving service.
type CaptchaSolverInterface interface {
	// Solve submits a challenge and polls until a token is ready, the
	// service rejects it, or the attempt ceiling / context deadline trips.
	Solve(ctx context.Context, siteKey, pageURL string) (string, error)
}

// CertificateFetcherInterface executes the full scrape protocol for one
// task against its portal.
type CertificateFetcherInterface interface {
	FetchCertificate(ctx context.Context, task models.CertificateTask) (*models.CertificateResult, error)
}

// PlannerInterface decides which certificates are owed to which entities.
type PlannerInterface interface {
	Plan(parties []models.Party, shareholders []models.Shareholder) []models.CertificateTask
}

// ExtractorInterface runs a planned task set to completion.
type ExtractorInterface interface {
	Run(ctx context.Context, caseID string, tasks []models.CertificateTask) models.ExtractionSummary
}

// DocumentStoreInterface receives successful certificates for durable
// storage and indexing. Persistence itself is an external concern.
type DocumentStoreInterface interface {
	Save(ctx context.Context, caseID string, result *models.CertificateResult) (string, error)
}

// CacheServiceInterface is the result cache consulted before hitting a
// portal again for the same entity.
type CacheServiceInterface interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Health() map[string]interface{}
}
