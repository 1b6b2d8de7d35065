package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-report-api/internal/dto"
	"github.com/noah-isme/attendance-report-api/internal/matrix"
	"github.com/noah-isme/attendance-report-api/internal/models"
	appErrors "github.com/noah-isme/attendance-report-api/pkg/errors"
	"github.com/noah-isme/attendance-report-api/pkg/export"
	"github.com/noah-isme/attendance-report-api/pkg/storage"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService renders attendance grids into downloadable files.
type ExportService struct {
	attendance *AttendanceService
	storage    fileStorage
	csv        csvRenderer
	pdf        pdfRenderer
	signer     *storage.SignedURLSigner
	logger     *zap.Logger
	cfg        ExportConfig
}

// NewExportService constructs an ExportService. The CSV renderer defaults
// to the quoting variant so exports match the established file format.
func NewExportService(attendance *AttendanceService, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewQuotedCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		attendance: attendance,
		storage:    store,
		csv:        csv,
		pdf:        pdf,
		signer:     signer,
		logger:     logger,
		cfg:        cfg,
	}
}

// MatrixDataset flattens the dense grid into a tabular dataset. Date
// columns use the DD/MM display form; cells render P, A, or empty.
// Rows are positional so dates sharing a DD/MM label (the same day a
// year apart) each keep their own column.
func MatrixDataset(grid *models.Matrix) export.Dataset {
	headers := []string{"Roll Number", "Student Name", "Branch", "Section"}
	for _, date := range grid.Dates {
		headers = append(headers, displayDate(date))
	}
	headers = append(headers, "Total Present", "Total Classes", "Attendance %")

	rows := make([][]string, 0, len(grid.Students))
	for _, stat := range grid.Students {
		row := make([]string, 0, len(headers))
		row = append(row,
			stat.Student.RollNumber,
			stat.Student.FullName(),
			stat.Student.Branch,
			stat.Student.Section,
		)
		for _, date := range grid.Dates {
			value := ""
			if cell, ok := grid.Cell(stat.Student.ID, date); ok {
				if cell.IsPresent {
					value = "P"
				} else {
					value = "A"
				}
			}
			row = append(row, value)
		}
		row = append(row,
			fmt.Sprintf("%d", stat.PresentCount),
			fmt.Sprintf("%d", stat.TotalClasses),
			stat.AttendancePercentage+"%",
		)
		rows = append(rows, row)
	}

	return export.Dataset{Headers: headers, Rows: rows}
}

// SessionsDataset flattens a sessions listing for export.
func SessionsDataset(sessions []models.AttendanceSession) export.Dataset {
	rows := make([][]string, 0, len(sessions))
	for _, session := range sessions {
		rows = append(rows, []string{
			session.SessionDate,
			session.Room,
			session.Classes.String(),
			string(session.Status),
		})
	}
	return export.Dataset{
		Headers: []string{"Date", "Room", "Classes", "Status"},
		Rows:    rows,
	}
}

// RenderCourseCSV produces the synchronous CSV download for a course grid.
// An empty grid yields no file.
func (s *ExportService) RenderCourseCSV(course *models.Course, grid *models.Matrix) (string, []byte, error) {
	if len(grid.Students) == 0 || len(grid.Dates) == 0 {
		return "", nil, appErrors.ErrNoExportData
	}
	payload, err := s.csv.Render(MatrixDataset(grid))
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
	}
	return courseFilename(course, models.ReportFormatCSV), payload, nil
}

// Generate builds the dataset a job describes and stores the rendered file.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}

	dataset, title, filename, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	format := job.Params.Format
	if format == "" {
		format = models.ReportFormatCSV
	}

	var payload []byte
	switch format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", format)
	}
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/reports/export/%s", prefix, token),
		Format:       format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, string, error) {
	switch job.Type {
	case models.ReportTypeMatrix:
		return s.buildMatrixDataset(ctx, job.Params)
	case models.ReportTypeSessions:
		return s.buildSessionsDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildMatrixDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, string, error) {
	payload, err := s.attendance.Payload(ctx, params.FacultyID, params.CourseID, params.From, params.To)
	if err != nil {
		return export.Dataset{}, "", "", err
	}

	filtered := matrix.FilterStudents(payload.StudentStats, params.Selection())
	markedBy := int64(0)
	if params.MarkedByMe {
		markedBy = params.FacultyID
	}
	grid := matrix.Build(payload, filtered, markedBy)
	if len(grid.Students) == 0 || len(grid.Dates) == 0 {
		return export.Dataset{}, "", "", appErrors.ErrNoExportData
	}

	course, err := s.attendance.Course(ctx, params.CourseID)
	if err != nil {
		s.logger.Warn("course metadata unavailable for export",
			zap.String("course_id", params.CourseID),
			zap.Error(err))
		course = nil
	}

	format := params.Format
	if format == "" {
		format = models.ReportFormatCSV
	}
	title := "Attendance Report"
	if course != nil {
		title = fmt.Sprintf("Attendance Report %s", course.CourseName)
	}
	return MatrixDataset(grid), title, courseFilename(course, format), nil
}

func (s *ExportService) buildSessionsDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, string, error) {
	facultyID := ""
	if params.FacultyID != 0 {
		facultyID = fmt.Sprintf("%d", params.FacultyID)
	}
	sessions, err := s.attendance.Sessions(ctx, sessionsRequestFromParams(facultyID, params))
	if err != nil {
		return export.Dataset{}, "", "", err
	}
	if len(sessions.Sessions) == 0 {
		return export.Dataset{}, "", "", appErrors.ErrNoExportData
	}

	format := params.Format
	if format == "" {
		format = models.ReportFormatCSV
	}
	filename := fmt.Sprintf("sessions_%s.%s", time.Now().UTC().Format("2006-01-02"), format)
	return SessionsDataset(sessions.Sessions), "Class Sessions", filename, nil
}

func sessionsRequestFromParams(facultyID string, params models.ReportJobParams) dto.SessionsRequest {
	return dto.SessionsRequest{FacultyID: facultyID, StartDate: params.From, EndDate: params.To}
}

func courseFilename(course *models.Course, format models.ReportFormat) string {
	name := "course"
	if course != nil && course.CourseName != "" {
		// Runs of whitespace collapse to a single underscore.
		if sanitized := strings.Join(strings.Fields(course.CourseName), "_"); sanitized != "" {
			name = sanitized
		}
	}
	return fmt.Sprintf("attendance_%s_%s.%s", name, time.Now().UTC().Format("2006-01-02"), format)
}

// displayDate converts an ISO date to the DD/MM column form. Unparseable
// values pass through untouched.
func displayDate(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.Format("02/01")
}
