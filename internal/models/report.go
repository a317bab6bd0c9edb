package models

import (
	"strings"
	"time"
)

// ReportRequest is the payload of POST /api/generate-report.
// Timestamp and RequestID are client bookkeeping and do not affect the document.
type ReportRequest struct {
	ClientName string `json:"clientName" validate:"required"`
	ReportType string `json:"reportType" validate:"required"`
	ReportYear int    `json:"reportYear,omitempty" validate:"gte=0"`
	Timestamp  string `json:"timestamp,omitempty"`
	RequestID  string `json:"requestId,omitempty"`
}

// Normalize trims the required fields so whitespace-only values count as missing.
func (r *ReportRequest) Normalize() {
	r.ClientName = strings.TrimSpace(r.ClientName)
	r.ReportType = strings.TrimSpace(r.ReportType)
	r.RequestID = strings.TrimSpace(r.RequestID)
}

// GenerateResponse is returned after a document has been written.
type GenerateResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	FilePath string `json:"filePath"`
	FileName string `json:"fileName"`
}

// GeneratedReport records one document written to storage
type GeneratedReport struct {
	ID          uint      `json:"id" gorm:"primarykey"`
	CreatedAt   time.Time `json:"createdAt" gorm:"index"`
	FileName    string    `json:"fileName" gorm:"size:255;not null;uniqueIndex"`
	FileKey     string    `json:"fileKey" gorm:"size:1024;not null"`
	ClientName  string    `json:"clientName" gorm:"size:255;not null;index"`
	ReportType  string    `json:"reportType" gorm:"size:255;not null"`
	ReportYear  int       `json:"reportYear" gorm:"not null"`
	RequestID   string    `json:"requestId,omitempty" gorm:"size:255"`
	SizeBytes   int64     `json:"sizeBytes"`
	ContentType string    `json:"contentType" gorm:"size:255"`
}

// TableName specifies the table name for the GeneratedReport model
func (GeneratedReport) TableName() string {
	return "generated_reports"
}
