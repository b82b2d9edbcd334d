package models

import "time"

// TaxIDKind distinguishes individual (CPF) from company (CNPJ) tax ids.
type TaxIDKind string

const (
	TaxIDCPF  TaxIDKind = "cpf"
	TaxIDCNPJ TaxIDKind = "cnpj"
)

// Party is a legal entity extracted from the transaction documents.
// Parties are produced by the AI-extraction pipeline and are read-only here.
type Party struct {
	ID        string    `json:"id"`
	Name      string    `json:"nome"`
	TaxID     string    `json:"documento"`
	TaxIDKind TaxIDKind `json:"tipo_documento"`
	Role      string    `json:"role"`
}

// Shareholder is a natural-person sócio of a company party. The enrichment
// fields (mother name, birth date) are filled by the registry enrichment
// pipeline and gate the state-court certificates.
type Shareholder struct {
	ID            string    `json:"id"`
	CompanyID     string    `json:"empresa_id"`
	CompanyName   string    `json:"empresa_nome"`
	Name          string    `json:"socio_nome"`
	TaxID         string    `json:"socio_cpf"`
	Qualification string    `json:"socio_qualificacao,omitempty"`
	MotherName    string    `json:"socio_nome_mae,omitempty"`
	BirthDate     time.Time `json:"socio_nascimento,omitempty"`
	NationalID    string    `json:"socio_rg,omitempty"`
	Sex           string    `json:"socio_sexo,omitempty"`
	Enriched      bool      `json:"enriquecido"`
}

// HasEnrichment reports whether the biographical fields required by the
// state-court portals are present.
func (s Shareholder) HasEnrichment() bool {
	return s.MotherName != "" && !s.BirthDate.IsZero()
}
