package models

// ExtractionRequest is the case snapshot posted to the extraction endpoint:
// the parties and shareholders already produced by the upstream extraction
// and enrichment pipelines.
// @Description Estrutura de dados para disparar a extração de certidões
type ExtractionRequest struct {
	// Identificador da análise de due diligence
	// @example "1042"
	CaseID string `json:"analise_id" binding:"required" example:"1042"`
	// Partes da transação (empresas e pessoas físicas)
	Parties []Party `json:"partes"`
	// Sócios das empresas vendedoras
	Shareholders []Shareholder `json:"socios"`
}
