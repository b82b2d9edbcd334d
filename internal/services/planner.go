package services

import (
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dipauto/certidao-api/internal/models"
	"github.com/dipauto/certidao-api/internal/utils"
)

const skipReasonMissingEnrichment = "missing enrichment data"

// sellerRoleVocabulary are the role fragments that mark a company as being
// on the selling side of the transaction. Matching is a case-insensitive
// substring test, so "Vendedora", "EMPRESA VENDEDORA" and "Outorgante
// Vendedor" all qualify.
var sellerRoleVocabulary = []string{
	"vendedor",
	"vendedora",
	"outorgante",
	"proprietári",
	"proprietari",
	"cedente",
	"seller",
	"grantor",
	"owner",
	"assignor",
}

// Planner decides which certificates are owed to which entities. It reads
// the party and shareholder snapshots, never mutates them, and produces a
// deterministic task list: re-planning the same input yields the same tasks
// modulo generated ids.
type Planner struct {
	logger *logrus.Logger
}

// NewPlanner creates a planner.
func NewPlanner(logger *logrus.Logger) *Planner {
	return &Planner{logger: logger}
}

// Plan emits one superior-court task per selling company, and per fully
// identified shareholder one superior-court task plus the two state-court
// tasks. State-court tasks for shareholders missing enrichment data are
// emitted already terminated as skipped, so the run summary accounts for
// them instead of silently dropping them.
func (p *Planner) Plan(parties []models.Party, shareholders []models.Shareholder) []models.CertificateTask {
	var tasks []models.CertificateTask

	for _, party := range parties {
		if party.TaxIDKind != models.TaxIDCNPJ || !IsSellerRole(party.Role) {
			continue
		}
		p.logger.WithFields(logrus.Fields{
			"party": party.Name,
			"cnpj":  party.TaxID,
			"role":  party.Role,
		}).Info("Planning company certificate")

		tasks = append(tasks, models.CertificateTask{
			ID:     uuid.New().String(),
			Source: models.SourceSuperiorCourtCompany,
			Target: models.TargetRef{Kind: models.TargetParty, ID: party.ID},
			TaxID:  utils.CleanDocumento(party.TaxID),
			Name:   party.Name,
			Status: models.StatusPlanned,
		})
	}

	for _, socio := range shareholders {
		cpf := utils.CleanDocumento(socio.TaxID)
		if len(cpf) != 11 {
			// Masked or absent CPF: no portal accepts a partial document,
			// so the shareholder is excluded from planning entirely.
			p.logger.WithFields(logrus.Fields{
				"socio":  socio.Name,
				"digits": len(cpf),
			}).Warn("Shareholder without complete CPF, skipping all certificates")
			continue
		}

		base := models.CertificateTask{
			Target:      models.TargetRef{Kind: models.TargetShareholder, ID: socio.ID},
			TaxID:       cpf,
			Name:        socio.Name,
			CompanyName: socio.CompanyName,
			MotherName:  socio.MotherName,
			BirthDate:   socio.BirthDate,
		}

		superior := base
		superior.ID = uuid.New().String()
		superior.Source = models.SourceSuperiorCourtIndividual
		superior.Status = models.StatusPlanned
		tasks = append(tasks, superior)

		for _, source := range []models.SourceType{models.SourceStateCourtCivil, models.SourceStateCourtCriminal} {
			task := base
			task.ID = uuid.New().String()
			task.Source = source
			if socio.HasEnrichment() {
				task.Status = models.StatusPlanned
			} else {
				task.Status = models.StatusSkippedPrecondition
				task.SkipReason = skipReasonMissingEnrichment
				p.logger.WithFields(logrus.Fields{
					"socio":  socio.Name,
					"source": source,
				}).Warn("Shareholder not enriched, state-court certificate skipped")
			}
			tasks = append(tasks, task)
		}
	}

	return tasks
}

// IsSellerRole tests a free-text role against the seller vocabulary.
func IsSellerRole(role string) bool {
	lower := strings.ToLower(role)
	for _, term := range sellerRoleVocabulary {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// RegistryCandidate is one person returned by a registry lookup when trying
// to complete a masked CPF.
type RegistryCandidate struct {
	Name  string
	TaxID string
}

// CompleteMaskedTaxID fills a masked shareholder CPF from registry lookup
// results only when the lookup produced exactly one candidate whose name
// matches. This is a heuristic with unverified false-positive risk; it is
// deliberately kept off the planning path and every use is logged for
// product review.
func (p *Planner) CompleteMaskedTaxID(socio models.Shareholder, candidates []RegistryCandidate) (string, bool) {
	if len(utils.CleanDocumento(socio.TaxID)) == 11 {
		return utils.CleanDocumento(socio.TaxID), true
	}
	if len(candidates) != 1 {
		return "", false
	}

	candidate := candidates[0]
	cpf := utils.CleanDocumento(candidate.TaxID)
	if len(cpf) != 11 || !strings.EqualFold(strings.TrimSpace(candidate.Name), strings.TrimSpace(socio.Name)) {
		return "", false
	}

	p.logger.WithFields(logrus.Fields{
		"socio":     socio.Name,
		"heuristic": "single_match_assumed",
	}).Warn("Masked CPF completed from a single registry match; result needs review")
	return cpf, true
}
