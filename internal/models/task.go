package models

import "time"

// SourceType identifies one certificate-issuing portal.
type SourceType string

const (
	SourceSuperiorCourtCompany    SourceType = "STJ_PJ"
	SourceSuperiorCourtIndividual SourceType = "STJ_PF"
	SourceStateCourtCivil         SourceType = "TJGO_CIVEL"
	SourceStateCourtCriminal      SourceType = "TJGO_CRIMINAL"
)

// TaskStatus is the lifecycle state of a certificate task.
type TaskStatus string

const (
	StatusPlanned             TaskStatus = "planned"
	StatusRunning             TaskStatus = "running"
	StatusSucceeded           TaskStatus = "succeeded"
	StatusFailed              TaskStatus = "failed"
	StatusSkippedPrecondition TaskStatus = "skipped_precondition"
)

// TargetKind says what kind of entity a task points at.
type TargetKind string

const (
	TargetParty       TargetKind = "party"
	TargetShareholder TargetKind = "shareholder"
)

// TargetRef references the entity a certificate is requested for.
type TargetRef struct {
	Kind TargetKind `json:"kind"`
	ID   string     `json:"id"`
}

// CertificateTask is one (entity, source) unit of extraction work. The
// planner creates it; only the extractor moves it through its lifecycle.
type CertificateTask struct {
	ID     string     `json:"id"`
	Source SourceType `json:"source"`
	Target TargetRef  `json:"target"`

	// Inputs required by the portal form.
	TaxID       string    `json:"tax_id"`
	Name        string    `json:"name"`
	CompanyName string    `json:"company_name,omitempty"`
	MotherName  string    `json:"mother_name,omitempty"`
	BirthDate   time.Time `json:"birth_date,omitempty"`

	Status     TaskStatus `json:"status"`
	Attempts   int        `json:"attempts"`
	LastError  string     `json:"last_error,omitempty"`
	SkipReason string     `json:"skip_reason,omitempty"`
}

// Runnable reports whether the task is still waiting to be executed.
func (t CertificateTask) Runnable() bool {
	return t.Status == StatusPlanned
}

// NeedsChallenge reports whether the task's source sits behind a bot
// challenge widget.
func (s SourceType) NeedsChallenge() bool {
	return s == SourceStateCourtCivil || s == SourceStateCourtCriminal
}
