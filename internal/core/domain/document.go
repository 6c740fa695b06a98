package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

type Document struct {
	ID             string                `json:"id"`
	Filename       string                `json:"filename"`
	MimeType       string                `json:"mime_type"`
	StoragePath    string                `json:"storage_path"`
	Status         DocumentStatus        `json:"status"`
	Error          string                `json:"error,omitempty"`
	Classification *ClassificationResult `json:"classification,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}
