package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-report-api/internal/dto"
	"github.com/noah-isme/attendance-report-api/internal/models"
	appErrors "github.com/noah-isme/attendance-report-api/pkg/errors"
	"github.com/noah-isme/attendance-report-api/pkg/response"
)

type attendanceProvider interface {
	Matrix(ctx context.Context, req dto.MatrixRequest, facultyID int64) (*dto.MatrixResponse, error)
	CellDetail(ctx context.Context, req dto.MatrixRequest, facultyID, studentID int64, date string) (*dto.CellDetailResponse, error)
	Sessions(ctx context.Context, req dto.SessionsRequest) (*dto.SessionsResponse, error)
}

type gridExporter interface {
	RenderCourseCSV(course *models.Course, grid *models.Matrix) (string, []byte, error)
}

// AttendanceHandler exposes the matrix and sessions endpoints.
type AttendanceHandler struct {
	attendance attendanceProvider
	exporter   gridExporter
}

// NewAttendanceHandler constructs handler.
func NewAttendanceHandler(attendance attendanceProvider, exporter gridExporter) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance, exporter: exporter}
}

// Matrix godoc
// @Summary Dense student × date attendance matrix for a course
// @Tags Attendance
// @Produce json
// @Param courseId query string true "Course ID"
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Param batch query string false "Batch filter (e.g. 2023, or all)"
// @Param branch query string false "Branch filter"
// @Param section query string false "Section filter"
// @Param markedByMe query bool false "Only records marked by the caller"
// @Success 200 {object} response.Envelope
// @Router /attendance/matrix [get]
func (h *AttendanceHandler) Matrix(c *gin.Context) {
	var req dto.MatrixRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "courseId is required"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	matrix, err := h.attendance.Matrix(c.Request.Context(), req, claims.FacultyID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, matrix, nil)
}

// Cell godoc
// @Summary Single matrix cell detail
// @Tags Attendance
// @Produce json
// @Param studentId path int true "Student ID"
// @Param date path string true "Session date (YYYY-MM-DD)"
// @Param courseId query string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /attendance/matrix/{studentId}/{date} [get]
func (h *AttendanceHandler) Cell(c *gin.Context) {
	var req dto.MatrixRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "courseId is required"))
		return
	}
	studentID, err := strconv.ParseInt(c.Param("studentId"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid student id"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	detail, err := h.attendance.CellDetail(c.Request.Context(), req, claims.FacultyID, studentID, c.Param("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// ExportCSV godoc
// @Summary Download the current matrix view as CSV
// @Tags Attendance
// @Produce text/csv
// @Param courseId query string true "Course ID"
// @Param batch query string false "Batch filter"
// @Param branch query string false "Branch filter"
// @Param section query string false "Section filter"
// @Success 200 {file} binary
// @Failure 422 {object} response.Envelope
// @Router /attendance/export [get]
func (h *AttendanceHandler) ExportCSV(c *gin.Context) {
	var req dto.MatrixRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "courseId is required"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	matrix, err := h.attendance.Matrix(c.Request.Context(), req, claims.FacultyID)
	if err != nil {
		response.Error(c, err)
		return
	}
	grid := matrixFromResponse(matrix)
	filename, payload, err := h.exporter.RenderCourseCSV(matrix.Course, grid)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/csv; charset=utf-8", payload)
}

// Sessions godoc
// @Summary List recorded class sessions
// @Tags Attendance
// @Produce json
// @Param facultyId query string false "Faculty ID (admins only)"
// @Param startDate query string false "Start date"
// @Param endDate query string false "End date"
// @Param room query string false "Room"
// @Param status query string false "Processing status (pending, running, processed, failed)"
// @Success 200 {object} response.Envelope
// @Router /attendance/sessions [get]
func (h *AttendanceHandler) Sessions(c *gin.Context) {
	var req dto.SessionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	// Faculty callers only see their own sessions.
	if claims.Role != models.RoleAdmin {
		req.FacultyID = strconv.FormatInt(claims.FacultyID, 10)
	}
	sessions, err := h.attendance.Sessions(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

// matrixFromResponse rebuilds the engine grid from the response DTO so the
// exporter renders exactly what the client was shown.
func matrixFromResponse(resp *dto.MatrixResponse) *models.Matrix {
	grid := &models.Matrix{
		Dates:    resp.Dates,
		Students: make([]models.StudentStat, 0, len(resp.Rows)),
		Cells:    make(map[int64]map[string]*models.Cell, len(resp.Rows)),
	}
	for _, row := range resp.Rows {
		grid.Students = append(grid.Students, models.StudentStat{
			Student:              row.Student,
			TotalClasses:         row.TotalClasses,
			PresentCount:         row.PresentCount,
			AttendancePercentage: row.AttendancePercentage,
		})
		cells := make(map[string]*models.Cell, len(resp.Dates))
		for _, date := range resp.Dates {
			cell := row.Cells[date]
			if cell == nil {
				cells[date] = nil
				continue
			}
			cells[date] = &models.Cell{
				IsPresent: cell.IsPresent,
				Faculty:   models.Faculty{ID: cell.FacultyID},
				Student:   row.Student,
			}
		}
		grid.Cells[row.Student.ID] = cells
	}
	return grid
}
