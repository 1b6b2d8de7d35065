// Package matrix pivots sparse per-date attendance records into the dense
// student × date grid used by report views and exports. Everything here is a
// pure transform: same payload and selection in, same grid out.
package matrix

import (
	"regexp"
	"sort"

	"github.com/noah-isme/attendance-report-api/internal/models"
)

// batchPattern finds the admission batch marker in a roll number: the
// literal "BT" followed by a two-digit year, e.g. "2023BT23CSE045".
var batchPattern = regexp.MustCompile(`(?i)BT(\d{2})`)

// ExtractBatch returns the four-digit batch year encoded in a roll number.
// Roll numbers without the marker yield ok=false; such students never match
// a specific batch filter but still pass the wildcard.
func ExtractBatch(rollNumber string) (string, bool) {
	m := batchPattern.FindStringSubmatch(rollNumber)
	if m == nil {
		return "", false
	}
	return "20" + m[1], true
}

// BuildFilterOptions derives the distinct batch/branch/section vocabularies
// from the per-student aggregates. Each list is deduplicated and sorted
// ascending.
func BuildFilterOptions(stats []models.StudentStat) models.FilterOptions {
	batches := make(map[string]struct{})
	branches := make(map[string]struct{})
	sections := make(map[string]struct{})

	for _, stat := range stats {
		if batch, ok := ExtractBatch(stat.Student.RollNumber); ok {
			batches[batch] = struct{}{}
		}
		branches[stat.Student.Branch] = struct{}{}
		sections[stat.Student.Section] = struct{}{}
	}

	return models.FilterOptions{
		Batches:  sortedKeys(batches),
		Branches: sortedKeys(branches),
		Sections: sortedKeys(sections),
	}
}

// FilterStudents returns the stats passing every dimension of the selection.
// "all" is the wildcard per dimension; the output preserves input order.
func FilterStudents(stats []models.StudentStat, sel models.Selection) []models.StudentStat {
	sel = sel.Normalized()
	filtered := make([]models.StudentStat, 0, len(stats))
	for _, stat := range stats {
		if sel.Batch != models.FilterWildcard {
			batch, _ := ExtractBatch(stat.Student.RollNumber)
			if batch != sel.Batch {
				continue
			}
		}
		if sel.Branch != models.FilterWildcard && stat.Student.Branch != sel.Branch {
			continue
		}
		if sel.Section != models.FilterWildcard && stat.Student.Section != sel.Section {
			continue
		}
		filtered = append(filtered, stat)
	}
	return filtered
}

// SortedDates lists the distinct dates of the payload in ascending order.
// ISO-8601 date strings sort lexicographically.
func SortedDates(byDate map[string]models.AttendanceDay) []string {
	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}

// Build produces the dense grid for the filtered student set. Every
// (student, date) pair gets a cell; nil marks "no record". Records of
// students outside the filtered set are dropped entirely. A per-entry
// faculty falls back to the date-level one when absent.
//
// markedBy, when non-zero, keeps only cells recorded by that faculty; the
// rest revert to "no record". Callers pass the authenticated faculty ID
// explicitly rather than relying on ambient state.
func Build(payload *models.AttendancePayload, filtered []models.StudentStat, markedBy int64) *models.Matrix {
	dates := SortedDates(payload.AttendanceByDate)

	cells := make(map[int64]map[string]*models.Cell, len(filtered))
	for _, stat := range filtered {
		row := make(map[string]*models.Cell, len(dates))
		for _, date := range dates {
			row[date] = nil
		}
		cells[stat.Student.ID] = row
	}

	for date, day := range payload.AttendanceByDate {
		for _, entry := range day.Students {
			row, ok := cells[entry.Student.ID]
			if !ok {
				continue
			}
			faculty := resolveFaculty(entry, day)
			if markedBy != 0 && faculty.ID != markedBy {
				continue
			}
			row[date] = &models.Cell{
				IsPresent: entry.IsPresent,
				Faculty:   faculty,
				Session:   day.Session,
				Student:   entry.Student,
			}
		}
	}

	return &models.Matrix{
		Dates:    dates,
		Students: filtered,
		Cells:    cells,
	}
}

// OverallFiltered pairs the authoritative unfiltered totals with the
// filtered student count. TotalSessions and TotalPresent deliberately ignore
// the filter: they describe the course, not the current view.
func OverallFiltered(overall models.OverallStats, filtered []models.StudentStat) models.OverallFilteredStats {
	return models.OverallFilteredStats{
		TotalSessions:     overall.TotalSessions,
		TotalStudents:     len(filtered),
		TotalPresent:      overall.TotalPresent,
		OverallPercentage: overall.OverallAttendancePercentage,
	}
}

// RecomputedPercentage derives the attendance percentage from the raw
// counts. The upstream-provided string stays authoritative for display;
// this value exists so callers can cross-check the two.
func RecomputedPercentage(stat models.StudentStat) (float64, bool) {
	if stat.TotalClasses <= 0 {
		return 0, false
	}
	return float64(stat.PresentCount) / float64(stat.TotalClasses) * 100, true
}

func resolveFaculty(entry models.StudentEntry, day models.AttendanceDay) models.Faculty {
	if entry.Faculty != nil {
		return *entry.Faculty
	}
	if day.Faculty != nil {
		return *day.Faculty
	}
	return models.Faculty{}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
