package models

import "time"

// SourceMetadata describes the extracted certificate for indexing. It is
// persisted alongside the document by the store adapter.
type SourceMetadata struct {
	CertificateKind string `json:"tipo_certidao"`
	TaxID           string `json:"documento"`
	Name            string `json:"nome"`
	CompanyName     string `json:"empresa,omitempty"`
	TargetID        string `json:"target_id"`
}

// CertificateResult is the output of a successfully executed task. It is
// only constructed after the body passed PDF validation.
type CertificateResult struct {
	TaskID     string         `json:"task_id"`
	Document   []byte         `json:"-"`
	ByteLength int            `json:"byte_length"`
	MIMEHint   string         `json:"mime_hint"`
	Metadata   SourceMetadata `json:"metadata"`
}

// TaskOutcome is the per-task line of an extraction summary.
type TaskOutcome struct {
	TaskID     string     `json:"task_id"`
	Source     SourceType `json:"source"`
	TaxID      string     `json:"tax_id"`
	Name       string     `json:"name"`
	Status     TaskStatus `json:"status"`
	ErrorKind  string     `json:"error_kind,omitempty"`
	Error      string     `json:"error,omitempty"`
	ByteLength int        `json:"byte_length,omitempty"`
	StoredAs   string     `json:"stored_as,omitempty"`
	Duration   string     `json:"duration,omitempty"`
	FromCache  bool       `json:"from_cache,omitempty"`
}

// ExtractionSummary aggregates one run of the orchestration loop.
type ExtractionSummary struct {
	CaseID     string        `json:"analise_id"`
	Total      int           `json:"total_certidoes"`
	Succeeded  int           `json:"sucesso"`
	Failed     int           `json:"falhas"`
	Skipped    int           `json:"puladas"`
	PerTask    []TaskOutcome `json:"detalhes"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}
