package matrix

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-report-api/internal/models"
)

func stat(id int64, roll, branch, section string, present, total int) models.StudentStat {
	return models.StudentStat{
		Student: models.Student{
			ID:         id,
			FirstName:  "Student",
			LastName:   "Example",
			RollNumber: roll,
			Branch:     branch,
			Section:    section,
		},
		TotalClasses:         total,
		PresentCount:         present,
		AttendancePercentage: "90",
	}
}

func samplePayload() *models.AttendancePayload {
	s1 := stat(1, "2023BT23CSE01", "CSE", "A", 1, 2)
	s2 := stat(2, "2022BT22ECE07", "ECE", "B", 0, 0)
	marker := models.Faculty{ID: 11, FirstName: "Asha", LastName: "Verma"}
	return &models.AttendancePayload{
		AttendanceByDate: map[string]models.AttendanceDay{
			"2026-01-20": {
				Date:    "2026-01-20",
				Session: models.Session{ID: 101, Room: "LT-2"},
				Faculty: &marker,
				Students: []models.StudentEntry{
					{Student: s1.Student, IsPresent: true},
				},
			},
			"2026-01-13": {
				Date:    "2026-01-13",
				Session: models.Session{ID: 100, Room: "LT-2"},
				Faculty: &marker,
				Students: []models.StudentEntry{
					{Student: s1.Student, IsPresent: false},
				},
			},
		},
		StudentStats: []models.StudentStat{s1, s2},
		OverallStats: models.OverallStats{
			TotalSessions:               2,
			TotalAttendanceRecords:      2,
			TotalPresent:                1,
			OverallAttendancePercentage: 50,
		},
	}
}

func TestExtractBatch(t *testing.T) {
	batch, ok := ExtractBatch("2023BT23CSE045")
	require.True(t, ok)
	require.Equal(t, "2023", batch)

	batch, ok = ExtractBatch("bt21ece12")
	require.True(t, ok)
	require.Equal(t, "2021", batch)

	_, ok = ExtractBatch("NOBATCHFIELD")
	require.False(t, ok)
}

func TestBuildFilterOptions(t *testing.T) {
	stats := []models.StudentStat{
		stat(1, "2023BT23CSE01", "CSE", "A", 9, 10),
		stat(2, "2022BT22ECE07", "ECE", "B", 5, 10),
		stat(3, "LEGACY-ROLL", "CSE", "A", 1, 10),
	}

	opts := BuildFilterOptions(stats)
	require.Equal(t, []string{"2022", "2023"}, opts.Batches)
	require.Equal(t, []string{"CSE", "ECE"}, opts.Branches)
	require.Equal(t, []string{"A", "B"}, opts.Sections)
}

func TestFilterStudentsScenario(t *testing.T) {
	stats := []models.StudentStat{stat(1, "2023BT23CSE01", "CSE", "A", 9, 10)}

	matched := FilterStudents(stats, models.Selection{Batch: "2023", Branch: "CSE", Section: "A"})
	require.Len(t, matched, 1)
	require.Equal(t, int64(1), matched[0].Student.ID)

	empty := FilterStudents(stats, models.Selection{Batch: "2022", Branch: "all", Section: "all"})
	require.Empty(t, empty)
}

func TestFilterStudentsNoBatchNeverMatchesSpecificBatch(t *testing.T) {
	stats := []models.StudentStat{stat(1, "NOBATCHFIELD", "CSE", "A", 9, 10)}

	require.Empty(t, FilterStudents(stats, models.Selection{Batch: "2023"}))
	require.Len(t, FilterStudents(stats, models.Selection{}), 1)
}

func TestFilterStudentsStableOrderAndIdempotent(t *testing.T) {
	stats := []models.StudentStat{
		stat(3, "2023BT23CSE03", "CSE", "A", 1, 2),
		stat(1, "2023BT23CSE01", "CSE", "A", 2, 2),
		stat(2, "2022BT22CSE02", "CSE", "A", 0, 2),
	}

	sel := models.Selection{Batch: "2023"}
	once := FilterStudents(stats, sel)
	twice := FilterStudents(once, sel)

	require.Equal(t, []int64{3, 1}, []int64{once[0].Student.ID, once[1].Student.ID})
	require.Equal(t, once, twice)
}

func TestBuildMatrixIsDense(t *testing.T) {
	payload := samplePayload()
	filtered := FilterStudents(payload.StudentStats, models.Selection{})

	m := Build(payload, filtered, 0)
	require.Equal(t, []string{"2026-01-13", "2026-01-20"}, m.Dates)
	require.Len(t, m.Cells, 2)
	for _, stat := range filtered {
		row, ok := m.Cells[stat.Student.ID]
		require.True(t, ok)
		require.Len(t, row, len(m.Dates))
		for _, date := range m.Dates {
			_, present := row[date]
			require.True(t, present, "cell missing for %d/%s", stat.Student.ID, date)
		}
	}

	cell, ok := m.Cell(1, "2026-01-20")
	require.True(t, ok)
	require.True(t, cell.IsPresent)
	require.Equal(t, int64(11), cell.Faculty.ID)

	cell, ok = m.Cell(1, "2026-01-13")
	require.True(t, ok)
	require.False(t, cell.IsPresent)

	_, ok = m.Cell(2, "2026-01-20")
	require.False(t, ok)
}

func TestBuildMatrixOmitsFilteredOutStudents(t *testing.T) {
	payload := samplePayload()
	filtered := FilterStudents(payload.StudentStats, models.Selection{Branch: "ECE"})

	m := Build(payload, filtered, 0)
	require.Len(t, m.Cells, 1)
	_, ok := m.Cells[1]
	require.False(t, ok, "student 1 has records but is outside the filter")
}

func TestBuildMatrixFacultyFallback(t *testing.T) {
	payload := samplePayload()
	other := models.Faculty{ID: 22, FirstName: "Ravi"}
	day := payload.AttendanceByDate["2026-01-20"]
	day.Students[0].Faculty = &other
	payload.AttendanceByDate["2026-01-20"] = day

	m := Build(payload, payload.StudentStats, 0)

	cell, ok := m.Cell(1, "2026-01-20")
	require.True(t, ok)
	require.Equal(t, int64(22), cell.Faculty.ID, "entry-level faculty wins")

	cell, ok = m.Cell(1, "2026-01-13")
	require.True(t, ok)
	require.Equal(t, int64(11), cell.Faculty.ID, "date-level faculty is the fallback")
}

func TestBuildMatrixMarkedByFilter(t *testing.T) {
	payload := samplePayload()
	other := models.Faculty{ID: 22}
	day := payload.AttendanceByDate["2026-01-20"]
	day.Students[0].Faculty = &other
	payload.AttendanceByDate["2026-01-20"] = day

	m := Build(payload, payload.StudentStats, 11)

	_, ok := m.Cell(1, "2026-01-20")
	require.False(t, ok, "cell marked by another faculty reverts to no record")

	_, ok = m.Cell(1, "2026-01-13")
	require.True(t, ok)

	// Dense shape is preserved even when cells are filtered away.
	require.Len(t, m.Cells[1], len(m.Dates))
}

func TestBuildMatrixDeterministic(t *testing.T) {
	payload := samplePayload()
	filtered := FilterStudents(payload.StudentStats, models.Selection{})

	first := Build(payload, filtered, 0)
	second := Build(payload, filtered, 0)
	require.Equal(t, first, second)
}

func TestOverallFilteredKeepsUnfilteredTotals(t *testing.T) {
	payload := samplePayload()

	subset := FilterStudents(payload.StudentStats, models.Selection{Branch: "CSE"})
	require.Len(t, subset, 1)

	got := OverallFiltered(payload.OverallStats, subset)
	require.Equal(t, payload.OverallStats.TotalSessions, got.TotalSessions)
	require.Equal(t, payload.OverallStats.TotalPresent, got.TotalPresent)
	require.Equal(t, payload.OverallStats.OverallAttendancePercentage, got.OverallPercentage)
	require.Equal(t, 1, got.TotalStudents)
}

func TestRecomputedPercentage(t *testing.T) {
	pct, ok := RecomputedPercentage(stat(1, "r", "CSE", "A", 9, 10))
	require.True(t, ok)
	require.InDelta(t, 90.0, pct, 0.001)

	_, ok = RecomputedPercentage(stat(2, "r", "CSE", "A", 0, 0))
	require.False(t, ok)
}
