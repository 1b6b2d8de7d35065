package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SessionStatus reflects the upstream processing state of a session's
// classroom photo pipeline.
type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusProcessed SessionStatus = "processed"
	SessionStatusFailed    SessionStatus = "failed"
)

// Valid returns true when the status is a supported value.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusPending, SessionStatusRunning, SessionStatusProcessed, SessionStatusFailed:
		return true
	default:
		return false
	}
}

// Student represents a learner as published by the attendance data source.
// The roll number encodes the admission batch after the literal marker "BT".
type Student struct {
	ID         int64  `json:"id"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	RollNumber string `json:"rollNumber"`
	Branch     string `json:"branch"`
	Section    string `json:"section"`
	Subsection string `json:"subsection"`
}

// FullName joins the student's first and last names for display and export.
func (s Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// FacultyUser carries the account details nested under a faculty record.
type FacultyUser struct {
	Email string `json:"email"`
}

// Faculty identifies who marked an attendance record.
type Faculty struct {
	ID         int64       `json:"id"`
	FirstName  string      `json:"firstName"`
	LastName   string      `json:"lastName"`
	LegalName  string      `json:"legalName,omitempty"`
	Department string      `json:"department,omitempty"`
	User       FacultyUser `json:"user,omitempty"`
}

// ClassRef names one branch/section combination covered by a session.
type ClassRef struct {
	Branch  string `json:"branch"`
	Section string `json:"section"`
}

// ClassList normalises the upstream "classes" field, which arrives either as
// a display string ("CSE-A, ECE-B"), a bare array of refs, or an object
// wrapping such an array. All shapes decode to a flat []ClassRef.
type ClassList []ClassRef

// UnmarshalJSON accepts every shape the upstream emits.
func (cl *ClassList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "" {
		*cl = nil
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		*cl = parseClassString(raw)
		return nil
	}

	var refs []ClassRef
	if err := json.Unmarshal(data, &refs); err == nil {
		*cl = refs
		return nil
	}

	var wrapped struct {
		Classes []ClassRef `json:"classes"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil {
		*cl = wrapped.Classes
		return nil
	}

	return fmt.Errorf("classes: unsupported shape %q", trimmed)
}

// String renders the list in the upstream display form.
func (cl ClassList) String() string {
	parts := make([]string, 0, len(cl))
	for _, ref := range cl {
		if ref.Section == "" {
			parts = append(parts, ref.Branch)
			continue
		}
		parts = append(parts, ref.Branch+"-"+ref.Section)
	}
	return strings.Join(parts, ", ")
}

func parseClassString(raw string) ClassList {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	refs := make(ClassList, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if idx := strings.LastIndex(part, "-"); idx > 0 && idx < len(part)-1 {
			refs = append(refs, ClassRef{Branch: part[:idx], Section: part[idx+1:]})
			continue
		}
		refs = append(refs, ClassRef{Branch: part})
	}
	return refs
}

// Session is one scheduled class meeting at which attendance was captured.
type Session struct {
	ID          int64         `json:"id"`
	SessionDate string        `json:"sessionDate,omitempty"`
	Room        string        `json:"room,omitempty"`
	Classes     ClassList     `json:"classes,omitempty"`
	Status      SessionStatus `json:"mlStatus,omitempty"`
}

// AttendanceSession is the session listing shape used for browsing, richer
// than the per-date session embedded in attendance payloads.
type AttendanceSession struct {
	FacultyID int64 `json:"facultyId"`
	CourseID  int64 `json:"courseId"`
	Session
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// StudentEntry pairs a student with their recorded presence on one date.
type StudentEntry struct {
	Student   Student  `json:"student"`
	IsPresent bool     `json:"isPresent"`
	Faculty   *Faculty `json:"faculty,omitempty"`
}

// AttendanceDay holds all records captured for a single calendar date.
type AttendanceDay struct {
	Date     string         `json:"date"`
	Session  Session        `json:"session"`
	Faculty  *Faculty       `json:"faculty,omitempty"`
	Students []StudentEntry `json:"students"`
}

// StudentStat is the per-student aggregate the data source ships alongside
// the raw records. TotalClasses counts only dates where the student has a
// recorded value, not every session in the report window.
type StudentStat struct {
	Student              Student `json:"student"`
	TotalClasses         int     `json:"totalClasses"`
	PresentCount         int     `json:"presentCount"`
	AttendancePercentage string  `json:"attendancePercentage"`
}

// OverallStats are the unfiltered course-wide totals from the data source.
// They are authoritative and never recomputed from filtered views.
type OverallStats struct {
	TotalSessions               int     `json:"totalSessions"`
	TotalAttendanceRecords      int     `json:"totalAttendanceRecords"`
	TotalPresent                int     `json:"totalPresent"`
	OverallAttendancePercentage float64 `json:"overallAttendancePercentage"`
}

// AttendancePayload is the full per-course report payload.
type AttendancePayload struct {
	AttendanceByDate map[string]AttendanceDay `json:"attendanceByDate"`
	StudentStats     []StudentStat            `json:"studentStats"`
	OverallStats     OverallStats             `json:"overallStats"`
}

// Course metadata, used for display and export filenames only.
type Course struct {
	ID          int64  `json:"id"`
	CourseName  string `json:"courseName"`
	Credits     int    `json:"credits"`
	Description string `json:"description,omitempty"`
}
