package dto

import "github.com/noah-isme/attendance-report-api/internal/models"

// MatrixRequest captures query parameters for the matrix endpoints.
type MatrixRequest struct {
	CourseID   string `form:"courseId" binding:"required"`
	From       string `form:"from"`
	To         string `form:"to"`
	Batch      string `form:"batch"`
	Branch     string `form:"branch"`
	Section    string `form:"section"`
	MarkedByMe bool   `form:"markedByMe"`
}

// Selection converts the filter fields into an engine selection.
func (r MatrixRequest) Selection() models.Selection {
	return models.Selection{Batch: r.Batch, Branch: r.Branch, Section: r.Section}
}

// MatrixCell is one student/date intersection in the response grid.
type MatrixCell struct {
	IsPresent bool   `json:"isPresent"`
	FacultyID int64  `json:"facultyId,omitempty"`
	Faculty   string `json:"faculty,omitempty"`
}

// MatrixRow pairs a student with their dense date row.
type MatrixRow struct {
	Student              models.Student         `json:"student"`
	TotalClasses         int                    `json:"totalClasses"`
	PresentCount         int                    `json:"presentCount"`
	AttendancePercentage string                 `json:"attendancePercentage"`
	Cells                map[string]*MatrixCell `json:"cells"`
}

// MatrixResponse is the JSON shape of the pivoted matrix.
type MatrixResponse struct {
	Course  *models.Course              `json:"course,omitempty"`
	Dates   []string                    `json:"dates"`
	Rows    []MatrixRow                 `json:"rows"`
	Filters models.FilterOptions        `json:"filters"`
	Stats   models.OverallFilteredStats `json:"stats"`
}

// CellDetailResponse describes a single matrix cell lookup.
type CellDetailResponse struct {
	Student   models.Student  `json:"student"`
	Date      string          `json:"date"`
	HasRecord bool            `json:"hasRecord"`
	IsPresent bool            `json:"isPresent"`
	Faculty   *models.Faculty `json:"faculty,omitempty"`
	Session   *models.Session `json:"session,omitempty"`
}

// SessionsRequest captures query parameters for the sessions listing.
type SessionsRequest struct {
	FacultyID string `form:"facultyId"`
	StartDate string `form:"startDate"`
	EndDate   string `form:"endDate"`
	Room      string `form:"room"`
	Status    string `form:"status"`
}

// SessionsResponse lists class sessions with their processing state.
type SessionsResponse struct {
	Sessions []models.AttendanceSession `json:"sessions"`
	Total    int                        `json:"total"`
}
