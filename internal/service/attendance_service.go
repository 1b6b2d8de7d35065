package service

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-report-api/internal/dto"
	"github.com/noah-isme/attendance-report-api/internal/matrix"
	"github.com/noah-isme/attendance-report-api/internal/models"
	"github.com/noah-isme/attendance-report-api/internal/repository"
	"github.com/noah-isme/attendance-report-api/internal/upstream"
	appErrors "github.com/noah-isme/attendance-report-api/pkg/errors"
)

type attendanceSource interface {
	FacultyAttendance(ctx context.Context, q upstream.AttendanceQuery) (*models.AttendancePayload, error)
	Course(ctx context.Context, courseID string) (*models.Course, error)
	Sessions(ctx context.Context, q upstream.SessionsQuery) ([]models.AttendanceSession, error)
}

// AttendanceService pivots sparse upstream attendance records into the
// dense matrix views the API serves.
type AttendanceService struct {
	source  attendanceSource
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAttendanceService constructs the service.
func NewAttendanceService(source attendanceSource, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{source: source, cache: cache, metrics: metrics, logger: logger}
}

// Payload returns the raw upstream attendance payload, consulting the
// cache first. Cache failures degrade to a direct fetch.
func (s *AttendanceService) Payload(ctx context.Context, facultyID int64, courseID, from, to string) (*models.AttendancePayload, error) {
	key := repository.AttendanceKey(facultyID, courseID, from, to)

	var cached models.AttendancePayload
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	start := time.Now()
	payload, err := s.source.FacultyAttendance(ctx, upstream.AttendanceQuery{CourseID: courseID, From: from, To: to})
	s.metrics.ObserveUpstreamRequest("faculty_attendance", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, payload, 0); err != nil {
		s.logger.Debug("attendance payload not cached", zap.String("key", key), zap.Error(err))
	}
	return payload, nil
}

// Course returns course metadata, cached. A nil course with nil error is
// never returned; failures bubble up for the caller to decide.
func (s *AttendanceService) Course(ctx context.Context, courseID string) (*models.Course, error) {
	key := repository.CourseKey(courseID)

	var cached models.Course
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	start := time.Now()
	course, err := s.source.Course(ctx, courseID)
	s.metrics.ObserveUpstreamRequest("course", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, course, 0); err != nil {
		s.logger.Debug("course metadata not cached", zap.String("key", key), zap.Error(err))
	}
	return course, nil
}

// Matrix builds the dense attendance grid for the request. Course metadata
// is fetched concurrently and its failure is non-fatal: the grid is still
// served, just without course details.
func (s *AttendanceService) Matrix(ctx context.Context, req dto.MatrixRequest, facultyID int64) (*dto.MatrixResponse, error) {
	type courseResult struct {
		course *models.Course
		err    error
	}
	courseCh := make(chan courseResult, 1)
	go func() {
		course, err := s.Course(ctx, req.CourseID)
		courseCh <- courseResult{course: course, err: err}
	}()

	payload, err := s.Payload(ctx, facultyID, req.CourseID, req.From, req.To)
	if err != nil {
		return nil, err
	}

	filtered := matrix.FilterStudents(payload.StudentStats, req.Selection())
	markedBy := int64(0)
	if req.MarkedByMe {
		markedBy = facultyID
	}
	grid := matrix.Build(payload, filtered, markedBy)
	s.auditPercentages(filtered)

	resp := &dto.MatrixResponse{
		Dates:   grid.Dates,
		Rows:    buildRows(grid),
		Filters: matrix.BuildFilterOptions(payload.StudentStats),
		Stats:   matrix.OverallFiltered(payload.OverallStats, filtered),
	}

	cr := <-courseCh
	if cr.err != nil {
		s.logger.Warn("course metadata unavailable",
			zap.String("course_id", req.CourseID),
			zap.Error(cr.err))
	} else {
		resp.Course = cr.course
	}
	return resp, nil
}

// CellDetail resolves one student/date intersection of the grid.
func (s *AttendanceService) CellDetail(ctx context.Context, req dto.MatrixRequest, facultyID, studentID int64, date string) (*dto.CellDetailResponse, error) {
	payload, err := s.Payload(ctx, facultyID, req.CourseID, req.From, req.To)
	if err != nil {
		return nil, err
	}

	var student *models.Student
	for i := range payload.StudentStats {
		if payload.StudentStats[i].Student.ID == studentID {
			student = &payload.StudentStats[i].Student
			break
		}
	}
	if student == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found in course roster")
	}

	markedBy := int64(0)
	if req.MarkedByMe {
		markedBy = facultyID
	}
	grid := matrix.Build(payload, payload.StudentStats, markedBy)

	resp := &dto.CellDetailResponse{Student: *student, Date: date}
	if cell, ok := grid.Cell(studentID, date); ok {
		resp.HasRecord = true
		resp.IsPresent = cell.IsPresent
		faculty := cell.Faculty
		resp.Faculty = &faculty
		session := cell.Session
		resp.Session = &session
	}
	return resp, nil
}

// Sessions lists recorded class sessions, optionally narrowed by a
// processing status the upstream listing cannot filter on itself.
func (s *AttendanceService) Sessions(ctx context.Context, req dto.SessionsRequest) (*dto.SessionsResponse, error) {
	if req.Status != "" && !models.SessionStatus(req.Status).Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown session status")
	}

	start := time.Now()
	sessions, err := s.source.Sessions(ctx, upstream.SessionsQuery{
		FacultyID: req.FacultyID,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Room:      req.Room,
	})
	s.metrics.ObserveUpstreamRequest("sessions", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	if req.Status != "" {
		want := models.SessionStatus(req.Status)
		kept := sessions[:0]
		for _, session := range sessions {
			if session.Status == want {
				kept = append(kept, session)
			}
		}
		sessions = kept
	}

	return &dto.SessionsResponse{Sessions: sessions, Total: len(sessions)}, nil
}

// auditPercentages cross-checks the upstream percentage strings against a
// local recomputation and flags drift at debug level. The upstream value
// stays authoritative for display and export.
func (s *AttendanceService) auditPercentages(stats []models.StudentStat) {
	for _, stat := range stats {
		recomputed, ok := matrix.RecomputedPercentage(stat)
		if !ok {
			continue
		}
		reported, err := strconv.ParseFloat(stat.AttendancePercentage, 64)
		if err != nil {
			continue
		}
		if diff := reported - recomputed; diff > 0.5 || diff < -0.5 {
			s.logger.Debug("attendance percentage drift",
				zap.Int64("student_id", stat.Student.ID),
				zap.String("reported", stat.AttendancePercentage),
				zap.Float64("recomputed", recomputed))
		}
	}
}

func buildRows(grid *models.Matrix) []dto.MatrixRow {
	rows := make([]dto.MatrixRow, 0, len(grid.Students))
	for _, stat := range grid.Students {
		row := dto.MatrixRow{
			Student:              stat.Student,
			TotalClasses:         stat.TotalClasses,
			PresentCount:         stat.PresentCount,
			AttendancePercentage: stat.AttendancePercentage,
			Cells:                make(map[string]*dto.MatrixCell, len(grid.Dates)),
		}
		for _, date := range grid.Dates {
			cell, ok := grid.Cell(stat.Student.ID, date)
			if !ok {
				row.Cells[date] = nil
				continue
			}
			row.Cells[date] = &dto.MatrixCell{
				IsPresent: cell.IsPresent,
				FacultyID: cell.Faculty.ID,
				Faculty:   cell.Faculty.FirstName + " " + cell.Faculty.LastName,
			}
		}
		rows = append(rows, row)
	}
	return rows
}
