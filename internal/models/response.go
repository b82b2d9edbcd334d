package models

import "time"

// ErrorResponse is the standard error payload returned by the API.
// @Description Estrutura padrão de erro para todos os endpoints
type ErrorResponse struct {
	// Short error classification
	// @example "Invalid request"
	Error string `json:"error" example:"Invalid request"`
	// Human-readable explanation
	// @example "analise_id é obrigatório"
	Message string `json:"message" example:"analise_id é obrigatório"`
	// Machine-readable error code
	// @example "INVALID_REQUEST"
	Code string `json:"code" example:"INVALID_REQUEST"`
	// Timestamp da resposta em formato ISO 8601
	Timestamp time.Time `json:"timestamp"`
	// Request path that produced the error
	Path string `json:"path,omitempty"`
}

// ExtractionResponse wraps a completed extraction run.
// @Description Resultado agregado de uma execução de extração de certidões
type ExtractionResponse struct {
	// Indica se a execução chegou ao fim (falhas por tarefa não invalidam a execução)
	// @example true
	Success bool `json:"success" example:"true"`
	// Sumário agregado da execução
	Summary ExtractionSummary `json:"summary"`
	// Tempo total de execução
	// @example "2m13s"
	ExecutionTime string `json:"execution_time" example:"2m13s"`
	// Timestamp da resposta
	Timestamp time.Time `json:"timestamp"`
}

// PlanResponse wraps a dry-run planning call.
type PlanResponse struct {
	CaseID    string            `json:"analise_id"`
	Tasks     []CertificateTask `json:"tasks"`
	Timestamp time.Time         `json:"timestamp"`
}

// Error code constants shared by the handlers.
const (
	ErrorCodeInvalidRequest  = "INVALID_REQUEST"
	ErrorCodeInternalError   = "INTERNAL_ERROR"
	ErrorCodeRateLimit       = "RATE_LIMIT_EXCEEDED"
	ErrorCodeExtractionError = "EXTRACTION_ERROR"
)
