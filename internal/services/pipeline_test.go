package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dipauto/certidao-api/internal/models"
)

// Planner and extractor chained end to end against a fetcher double, the
// way the extraction endpoint drives them.

func TestPipeline_SellerCompany(t *testing.T) {
	t.Parallel()

	planner := NewPlanner(testLogger())
	tasks := planner.Plan([]models.Party{{
		ID:        "p1",
		Name:      "Construtora Alfa LTDA",
		TaxID:     "11222333000181",
		TaxIDKind: models.TaxIDCNPJ,
		Role:      "Seller",
	}}, nil)
	require.Len(t, tasks, 1)
	require.Equal(t, models.SourceSuperiorCourtCompany, tasks[0].Source)

	extractor := NewExtractor(&fakeFetcher{}, &fakeStore{}, nil, extractionConfig(), newFakeClock(), testLogger())
	summary := extractor.Run(context.Background(), "case-20", tasks)

	require.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 0, summary.Skipped)

	outcome := summary.PerTask[0]
	assert.Equal(t, models.StatusSucceeded, outcome.Status)
	assert.Equal(t, "11222333000181", outcome.TaxID)
}

func TestPipeline_ShareholderWithoutMotherName(t *testing.T) {
	t.Parallel()

	planner := NewPlanner(testLogger())
	tasks := planner.Plan(nil, []models.Shareholder{{
		ID:    "s1",
		Name:  "Pedro Souza",
		TaxID: "52998224725",
	}})
	require.Len(t, tasks, 3)

	fetcher := &fakeFetcher{}
	extractor := NewExtractor(fetcher, &fakeStore{}, nil, extractionConfig(), newFakeClock(), testLogger())
	summary := extractor.Run(context.Background(), "case-21", tasks)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, summary.Total, summary.Succeeded+summary.Failed+summary.Skipped)

	// Only the superior-court task reached the fetcher.
	assert.Equal(t, 1, fetcher.calls)
}
