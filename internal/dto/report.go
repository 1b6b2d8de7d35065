package dto

import "github.com/noah-isme/attendance-report-api/internal/models"

// ReportRequest captures POST /reports payload.
type ReportRequest struct {
	Type       models.ReportType   `json:"type" validate:"required,oneof=matrix sessions"`
	CourseID   string              `json:"courseId" validate:"required_if=Type matrix"`
	From       string              `json:"from"`
	To         string              `json:"to"`
	Batch      string              `json:"batch"`
	Branch     string              `json:"branch"`
	Section    string              `json:"section"`
	MarkedByMe bool                `json:"markedByMe"`
	Format     models.ReportFormat `json:"format" validate:"omitempty,oneof=csv pdf"`
}

// ReportJobResponse is returned after enqueueing a report.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress metadata.
type ReportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ReportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
