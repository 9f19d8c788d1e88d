package models

import (
	"time"

	"github.com/google/uuid"
)

// Supported generated document types
const (
	DocTypePrinciple           = "principle"
	DocTypeRiskAssessment      = "risk-assessment"
	DocTypeMethodStatement     = "method-statement"
	DocTypeSafeWorkProcedure   = "safe-work-procedure"
	DocTypeQualityControlPlan  = "quality-control-plan"
	DocTypeInspectionChecklist = "inspection-checklist"
	DocTypeTrainingRecord      = "training-record"
	DocTypeIncidentReport      = "incident-report"
)

// GeneratedDocument records one AI-generated compliance document
type GeneratedDocument struct {
	ID           uuid.UUID `json:"id"`
	DocumentType string    `json:"document_type"`
	Title        string    `json:"title"`
	Author       string    `json:"author"`
	Layer        string    `json:"layer,omitempty"`
	Format       string    `json:"format"`
	Reference    string    `json:"reference,omitempty"`
	StoragePath  string    `json:"storage_path,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
