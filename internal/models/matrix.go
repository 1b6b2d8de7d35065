package models

// FilterWildcard selects every value of a filter dimension.
const FilterWildcard = "all"

// Selection holds the batch/branch/section filter choices. Empty values are
// treated as the wildcard.
type Selection struct {
	Batch   string `json:"batch"`
	Branch  string `json:"branch"`
	Section string `json:"section"`
}

// Normalized returns the selection with empty dimensions replaced by the
// wildcard value.
func (s Selection) Normalized() Selection {
	if s.Batch == "" {
		s.Batch = FilterWildcard
	}
	if s.Branch == "" {
		s.Branch = FilterWildcard
	}
	if s.Section == "" {
		s.Section = FilterWildcard
	}
	return s
}

// FilterOptions are the distinct filter vocabularies derived from a payload.
type FilterOptions struct {
	Batches  []string `json:"batches"`
	Branches []string `json:"branches"`
	Sections []string `json:"sections"`
}

// Cell is one recorded attendance outcome inside the matrix. Absence of a
// record is represented by a nil *Cell, never a missing map entry.
type Cell struct {
	IsPresent bool    `json:"isPresent"`
	Faculty   Faculty `json:"faculty"`
	Session   Session `json:"session"`
	Student   Student `json:"student"`
}

// Matrix is the dense student × date attendance grid. For every student in
// Students and every date in Dates, Cells holds an entry; nil marks "no
// record" for that pair.
type Matrix struct {
	Dates    []string                   `json:"dates"`
	Students []StudentStat              `json:"students"`
	Cells    map[int64]map[string]*Cell `json:"cells"`
}

// Cell returns the record for a student/date pair. The second return is
// false when the pair has no record or the student is not in the grid;
// callers treat that as a no-op, not an error.
func (m *Matrix) Cell(studentID int64, date string) (*Cell, bool) {
	row, ok := m.Cells[studentID]
	if !ok {
		return nil, false
	}
	cell, ok := row[date]
	if !ok || cell == nil {
		return nil, false
	}
	return cell, true
}

// OverallFilteredStats combines the authoritative unfiltered session totals
// with the size of the currently filtered student set. Only TotalStudents
// responds to filtering; the rest mirror the upstream OverallStats.
type OverallFilteredStats struct {
	TotalSessions     int     `json:"totalSessions"`
	TotalStudents     int     `json:"totalStudents"`
	TotalPresent      int     `json:"totalPresent"`
	OverallPercentage float64 `json:"overallAttendancePercentage"`
}
