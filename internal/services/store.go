package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dipauto/certidao-api/internal/models"
)

// FileDocumentStore persists certificates under an upload directory, one
// PDF plus a metadata JSON sidecar per document. Durable storage and
// indexing beyond this directory belong to the downstream document system.
type FileDocumentStore struct {
	dir    string
	logger *logrus.Logger
}

// NewFileDocumentStore creates the store, ensuring the directory exists.
func NewFileDocumentStore(dir string, logger *logrus.Logger) (*FileDocumentStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	return &FileDocumentStore{dir: dir, logger: logger}, nil
}

type storedMetadata struct {
	CaseID          string `json:"analise_id"`
	CertificateKind string `json:"tipo_certidao"`
	TaxID           string `json:"documento"`
	Name            string `json:"nome"`
	CompanyName     string `json:"empresa,omitempty"`
	TargetID        string `json:"target_id"`
	TaskID          string `json:"task_id"`
	ByteLength      int    `json:"tamanho"`
	MIME            string `json:"mime"`
	StoredAt        string `json:"stored_at"`
}

// Save writes the document and its sidecar, returning the document file
// name.
func (s *FileDocumentStore) Save(ctx context.Context, caseID string, result *models.CertificateResult) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s_%s_%d.pdf", result.Metadata.CertificateKind, result.Metadata.TaxID, time.Now().Unix())
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, result.Document, 0o644); err != nil {
		return "", fmt.Errorf("writing document: %w", err)
	}

	meta := storedMetadata{
		CaseID:          caseID,
		CertificateKind: result.Metadata.CertificateKind,
		TaxID:           result.Metadata.TaxID,
		Name:            result.Metadata.Name,
		CompanyName:     result.Metadata.CompanyName,
		TargetID:        result.Metadata.TargetID,
		TaskID:          result.TaskID,
		ByteLength:      result.ByteLength,
		MIME:            result.MIMEHint,
		StoredAt:        time.Now().Format(time.RFC3339),
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encoding metadata: %w", err)
	}
	if err := os.WriteFile(path+".json", metaBytes, 0o644); err != nil {
		return "", fmt.Errorf("writing metadata: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"file":    name,
		"bytes":   result.ByteLength,
		"case_id": caseID,
	}).Info("Certificate stored")
	return name, nil
}
