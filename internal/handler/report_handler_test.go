package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-report-api/internal/dto"
	"github.com/noah-isme/attendance-report-api/internal/middleware"
	"github.com/noah-isme/attendance-report-api/internal/models"
	"github.com/noah-isme/attendance-report-api/internal/service"
	appErrors "github.com/noah-isme/attendance-report-api/pkg/errors"
)

type reportServiceMock struct {
	createResp  *dto.ReportJobResponse
	createErr   error
	statusResp  *dto.ReportStatusResponse
	statusErr   error
	download    *service.ReportDownload
	downloadErr error
}

func (m *reportServiceMock) CreateJob(ctx context.Context, req dto.ReportRequest, facultyID int64, actorID string) (*dto.ReportJobResponse, error) {
	return m.createResp, m.createErr
}

func (m *reportServiceMock) GetStatus(ctx context.Context, id string, actorID string, role models.UserRole) (*dto.ReportStatusResponse, error) {
	return m.statusResp, m.statusErr
}

func (m *reportServiceMock) ResolveDownload(ctx context.Context, token string) (*service.ReportDownload, error) {
	return m.download, m.downloadErr
}

func newJSONContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestReportHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{
		createResp: &dto.ReportJobResponse{ID: "job-1", Status: models.ReportStatusQueued, Progress: 0},
	}
	handler := NewReportHandler(mockSvc)

	payload, _ := json.Marshal(dto.ReportRequest{Type: models.ReportTypeMatrix, CourseID: "101", Format: models.ReportFormatCSV})
	c, w := newJSONContext(http.MethodPost, "/reports", payload)
	c.Set(middleware.ContextUserKey, facultyClaims())

	handler.Create(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Contains(t, w.Body.String(), "job-1")
}

func TestReportHandlerCreateRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&reportServiceMock{})

	payload, _ := json.Marshal(dto.ReportRequest{Type: models.ReportTypeMatrix, CourseID: "101"})
	c, w := newJSONContext(http.MethodPost, "/reports", payload)

	handler.Create(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReportHandlerStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{
		statusResp: &dto.ReportStatusResponse{ID: "job-1", Status: models.ReportStatusFinished, Progress: 100},
	}
	handler := NewReportHandler(mockSvc)

	c, w := newJSONContext(http.MethodGet, "/reports/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	c.Set(middleware.ContextUserKey, facultyClaims())

	handler.Status(c)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestReportHandlerStatusForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{statusErr: appErrors.ErrForbidden}
	handler := NewReportHandler(mockSvc)

	c, w := newJSONContext(http.MethodGet, "/reports/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	c.Set(middleware.ContextUserKey, facultyClaims())

	handler.Status(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestReportHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	path := filepath.Join(dir, "attendance_CS101_2026-01-15.csv")
	require.NoError(t, os.WriteFile(path, []byte(`"Roll Number"`), 0o644))
	file, err := os.Open(path)
	require.NoError(t, err)

	mockSvc := &reportServiceMock{download: &service.ReportDownload{
		File:     file,
		Filename: "attendance_CS101_2026-01-15.csv",
		Format:   models.ReportFormatCSV,
	}}
	handler := NewReportHandler(mockSvc)

	c, w := newJSONContext(http.MethodGet, "/reports/export/token-1", nil)
	c.Params = gin.Params{{Key: "token", Value: "token-1"}}

	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Disposition"), "attendance_CS101_2026-01-15.csv")
	require.Equal(t, `"Roll Number"`, w.Body.String())
}

func TestReportHandlerDownloadNotReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{downloadErr: appErrors.ErrReportNotReady}
	handler := NewReportHandler(mockSvc)

	c, w := newJSONContext(http.MethodGet, "/reports/export/token-1", nil)
	c.Params = gin.Params{{Key: "token", Value: "token-1"}}

	handler.Download(c)
	require.Equal(t, http.StatusConflict, w.Code)
}
