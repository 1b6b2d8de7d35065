package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-report-api/internal/dto"
	"github.com/noah-isme/attendance-report-api/internal/middleware"
	"github.com/noah-isme/attendance-report-api/internal/models"
	appErrors "github.com/noah-isme/attendance-report-api/pkg/errors"
)

type attendanceServiceMock struct {
	matrixResp   *dto.MatrixResponse
	matrixErr    error
	cellResp     *dto.CellDetailResponse
	cellErr      error
	sessionsResp *dto.SessionsResponse
	sessionsErr  error

	lastSessionsReq dto.SessionsRequest
}

func (m *attendanceServiceMock) Matrix(ctx context.Context, req dto.MatrixRequest, facultyID int64) (*dto.MatrixResponse, error) {
	return m.matrixResp, m.matrixErr
}

func (m *attendanceServiceMock) CellDetail(ctx context.Context, req dto.MatrixRequest, facultyID, studentID int64, date string) (*dto.CellDetailResponse, error) {
	return m.cellResp, m.cellErr
}

func (m *attendanceServiceMock) Sessions(ctx context.Context, req dto.SessionsRequest) (*dto.SessionsResponse, error) {
	m.lastSessionsReq = req
	return m.sessionsResp, m.sessionsErr
}

type exporterMock struct {
	filename string
	payload  []byte
	err      error
}

func (m *exporterMock) RenderCourseCSV(course *models.Course, grid *models.Matrix) (string, []byte, error) {
	if m.err != nil {
		return "", nil, m.err
	}
	return m.filename, m.payload, nil
}

func facultyClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-1", FacultyID: 11, Role: models.RoleFaculty}
}

func newGinContext(method, path string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, nil)
	c.Request = req
	return c, w
}

func sampleMatrixResponse() *dto.MatrixResponse {
	return &dto.MatrixResponse{
		Course: &models.Course{ID: 101, CourseName: "Data Structures"},
		Dates:  []string{"2026-01-13"},
		Rows: []dto.MatrixRow{
			{
				Student: models.Student{ID: 1, RollNumber: "2023BT23CSE01"},
				Cells:   map[string]*dto.MatrixCell{"2026-01-13": {IsPresent: true}},
			},
		},
	}
}

func TestAttendanceHandlerMatrix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &attendanceServiceMock{matrixResp: sampleMatrixResponse()}
	handler := NewAttendanceHandler(mockSvc, &exporterMock{})

	c, w := newGinContext(http.MethodGet, "/attendance/matrix?courseId=101")
	c.Set(middleware.ContextUserKey, facultyClaims())

	handler.Matrix(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "2023BT23CSE01")
}

func TestAttendanceHandlerMatrixRequiresCourse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAttendanceHandler(&attendanceServiceMock{}, &exporterMock{})

	c, w := newGinContext(http.MethodGet, "/attendance/matrix")
	c.Set(middleware.ContextUserKey, facultyClaims())

	handler.Matrix(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttendanceHandlerMatrixUpstreamError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &attendanceServiceMock{matrixErr: appErrors.ErrUpstream}
	handler := NewAttendanceHandler(mockSvc, &exporterMock{})

	c, w := newGinContext(http.MethodGet, "/attendance/matrix?courseId=101")
	c.Set(middleware.ContextUserKey, facultyClaims())

	handler.Matrix(c)
	require.Equal(t, http.StatusBadGateway, w.Code)
}

func TestAttendanceHandlerCell(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &attendanceServiceMock{cellResp: &dto.CellDetailResponse{HasRecord: true, IsPresent: true}}
	handler := NewAttendanceHandler(mockSvc, &exporterMock{})

	c, w := newGinContext(http.MethodGet, "/attendance/matrix/1/2026-01-13?courseId=101")
	c.Params = gin.Params{{Key: "studentId", Value: "1"}, {Key: "date", Value: "2026-01-13"}}
	c.Set(middleware.ContextUserKey, facultyClaims())

	handler.Cell(c)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAttendanceHandlerCellInvalidStudent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAttendanceHandler(&attendanceServiceMock{}, &exporterMock{})

	c, w := newGinContext(http.MethodGet, "/attendance/matrix/abc/2026-01-13?courseId=101")
	c.Params = gin.Params{{Key: "studentId", Value: "abc"}, {Key: "date", Value: "2026-01-13"}}
	c.Set(middleware.ContextUserKey, facultyClaims())

	handler.Cell(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttendanceHandlerExportCSV(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &attendanceServiceMock{matrixResp: sampleMatrixResponse()}
	exporter := &exporterMock{filename: "attendance_Data_Structures_2026-01-13.csv", payload: []byte(`"Roll Number"`)}
	handler := NewAttendanceHandler(mockSvc, exporter)

	c, w := newGinContext(http.MethodGet, "/attendance/export?courseId=101")
	c.Set(middleware.ContextUserKey, facultyClaims())

	handler.ExportCSV(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Disposition"), "attendance_Data_Structures_2026-01-13.csv")
	require.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv"))
}

func TestAttendanceHandlerExportCSVNoData(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &attendanceServiceMock{matrixResp: &dto.MatrixResponse{}}
	exporter := &exporterMock{err: appErrors.ErrNoExportData}
	handler := NewAttendanceHandler(mockSvc, exporter)

	c, w := newGinContext(http.MethodGet, "/attendance/export?courseId=101")
	c.Set(middleware.ContextUserKey, facultyClaims())

	handler.ExportCSV(c)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestAttendanceHandlerSessionsScopesFaculty(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &attendanceServiceMock{sessionsResp: &dto.SessionsResponse{}}
	handler := NewAttendanceHandler(mockSvc, &exporterMock{})

	c, w := newGinContext(http.MethodGet, "/attendance/sessions?facultyId=999")
	c.Set(middleware.ContextUserKey, facultyClaims())

	handler.Sessions(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "11", mockSvc.lastSessionsReq.FacultyID, "faculty callers cannot browse other faculties")
}

func TestAttendanceHandlerSessionsAdminPassthrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &attendanceServiceMock{sessionsResp: &dto.SessionsResponse{}}
	handler := NewAttendanceHandler(mockSvc, &exporterMock{})

	c, w := newGinContext(http.MethodGet, "/attendance/sessions?facultyId=999")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.Sessions(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "999", mockSvc.lastSessionsReq.FacultyID)
}
