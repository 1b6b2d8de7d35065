package service

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-report-api/internal/matrix"
	"github.com/noah-isme/attendance-report-api/internal/models"
	appErrors "github.com/noah-isme/attendance-report-api/pkg/errors"
	"github.com/noah-isme/attendance-report-api/pkg/storage"
)

func newExportServiceForTest(t *testing.T, source *sourceStub) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	cfg := ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}
	attendance := newAttendanceServiceForTest(source)
	svc := NewExportService(attendance, store, signer, cfg, zap.NewNop(), nil, nil)
	return svc, store
}

func TestMatrixDataset(t *testing.T) {
	payload := testPayload()
	grid := matrix.Build(payload, payload.StudentStats, 0)

	dataset := MatrixDataset(grid)
	require.Equal(t, []string{
		"Roll Number", "Student Name", "Branch", "Section",
		"13/01", "20/01",
		"Total Present", "Total Classes", "Attendance %",
	}, dataset.Headers)
	require.Len(t, dataset.Rows, 2)

	first := dataset.Rows[0]
	require.Len(t, first, len(dataset.Headers))
	assert.Equal(t, "2023BT23CSE01", first[0])
	assert.Equal(t, "Student Example", first[1])
	assert.Equal(t, "A", first[4], "absent renders as A")
	assert.Equal(t, "P", first[5], "present renders as P")
	assert.Equal(t, "50%", first[8])

	second := dataset.Rows[1]
	assert.Equal(t, "", second[4], "no record renders empty")
	assert.Equal(t, "A", second[5])
}

func TestMatrixDatasetRepeatedDisplayDates(t *testing.T) {
	stat := testStat(1, "2023BT23CSE01", "CSE", "A", 1, 2)
	payload := &models.AttendancePayload{
		AttendanceByDate: map[string]models.AttendanceDay{
			"2025-01-13": {
				Date:     "2025-01-13",
				Students: []models.StudentEntry{{Student: stat.Student, IsPresent: true}},
			},
			"2026-01-13": {
				Date:     "2026-01-13",
				Students: []models.StudentEntry{{Student: stat.Student, IsPresent: false}},
			},
		},
		StudentStats: []models.StudentStat{stat},
	}
	grid := matrix.Build(payload, payload.StudentStats, 0)

	dataset := MatrixDataset(grid)
	require.Equal(t, []string{
		"Roll Number", "Student Name", "Branch", "Section",
		"13/01", "13/01",
		"Total Present", "Total Classes", "Attendance %",
	}, dataset.Headers)
	require.Len(t, dataset.Rows, 1)

	// Same day a year apart: each date keeps its own column.
	row := dataset.Rows[0]
	assert.Equal(t, "P", row[4])
	assert.Equal(t, "A", row[5])
}

func TestRenderCourseCSV(t *testing.T) {
	payload := testPayload()
	grid := matrix.Build(payload, payload.StudentStats, 0)
	svc, _ := newExportServiceForTest(t, &sourceStub{})

	filename, data, err := svc.RenderCourseCSV(&models.Course{CourseName: "Data Structures"}, grid)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filename, "attendance_Data_Structures_"))
	assert.True(t, strings.HasSuffix(filename, ".csv"))

	content := string(data)
	lines := strings.Split(content, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `"Roll Number","Student Name","Branch","Section","13/01","20/01","Total Present","Total Classes","Attendance %"`, lines[0])
	assert.Contains(t, lines[1], `"P"`)
	assert.Contains(t, lines[1], `"50%"`)
}

func TestRenderCourseCSVEmptyGrid(t *testing.T) {
	svc, _ := newExportServiceForTest(t, &sourceStub{})
	grid := matrix.Build(&models.AttendancePayload{AttendanceByDate: map[string]models.AttendanceDay{}}, nil, 0)

	_, _, err := svc.RenderCourseCSV(nil, grid)
	require.ErrorIs(t, err, appErrors.ErrNoExportData)
}

func TestExportServiceGenerateMatrixCSV(t *testing.T) {
	source := &sourceStub{payload: testPayload(), course: &models.Course{ID: 101, CourseName: "Data Structures"}}
	svc, store := newExportServiceForTest(t, source)

	job := &models.ReportJob{
		ID:     "job-1",
		Type:   models.ReportTypeMatrix,
		Params: models.ReportJobParams{CourseID: "101", FacultyID: 11, Format: models.ReportFormatCSV},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	require.NotEmpty(t, result.RelativePath)
	assert.Contains(t, result.URL, "/reports/export/")

	info, err := os.Stat(store.Path(result.RelativePath))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestExportServiceGenerateSessionsPDF(t *testing.T) {
	source := &sourceStub{sessions: []models.AttendanceSession{
		{Session: models.Session{ID: 1, SessionDate: "2026-01-10", Room: "LT-2", Status: models.SessionStatusProcessed}},
	}}
	svc, store := newExportServiceForTest(t, source)

	job := &models.ReportJob{
		ID:     "job-2",
		Type:   models.ReportTypeSessions,
		Params: models.ReportJobParams{Format: models.ReportFormatPDF},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	info, err := os.Stat(store.Path(result.RelativePath))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
	assert.Equal(t, models.ReportFormatPDF, result.Format)
}

func TestExportServiceGenerateEmptyMatrix(t *testing.T) {
	source := &sourceStub{
		payload: &models.AttendancePayload{AttendanceByDate: map[string]models.AttendanceDay{}},
		course:  &models.Course{},
	}
	svc, _ := newExportServiceForTest(t, source)

	job := &models.ReportJob{
		ID:     "job-3",
		Type:   models.ReportTypeMatrix,
		Params: models.ReportJobParams{CourseID: "101", Format: models.ReportFormatCSV},
	}
	_, err := svc.Generate(context.Background(), job)
	require.ErrorIs(t, err, appErrors.ErrNoExportData)
}

func TestDisplayDate(t *testing.T) {
	assert.Equal(t, "05/03", displayDate("2026-03-05"))
	assert.Equal(t, "not-a-date", displayDate("not-a-date"))
}

func TestCourseFilename(t *testing.T) {
	name := courseFilename(&models.Course{CourseName: "Data  Structures\tLab"}, models.ReportFormatCSV)
	assert.True(t, strings.HasPrefix(name, "attendance_Data_Structures_Lab_"))
	assert.True(t, strings.HasSuffix(name, ".csv"))

	fallback := courseFilename(nil, models.ReportFormatPDF)
	assert.True(t, strings.HasPrefix(fallback, "attendance_course_"))
}
