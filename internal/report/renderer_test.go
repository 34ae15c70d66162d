package report

import (
	"bytes"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/SwiftTim/hub2/internal/model"
	"github.com/SwiftTim/hub2/internal/watermark"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func baseData(t model.ReportType) *model.ReportData {
	return &model.ReportData{
		Type:        t,
		Student:     model.StudentInfo{ID: uuid.New(), Name: "Wanjiru Kamau", Email: "wanjiru@students.example.edu"},
		GeneratedAt: time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC),
		DocumentID:  uuid.New(),
		VerifyURL:   "http://localhost:3000/verify/abc?sig=0123456789abcdef",
	}
}

func TestRender_AllTypes(t *testing.T) {
	r := NewRenderer(nil)

	marks := baseData(model.ReportTypeMarks)
	marks.Marks = []model.MarkRow{
		{UnitCode: "CSC 201", UnitName: "Data Structures", Kind: "assessment", Score: f64(18), TotalMarks: f64(20), Percentage: f64(90), RecordedAt: marks.GeneratedAt},
		{UnitCode: "CSC 205", UnitName: "Databases", Kind: "assignment", Score: f64(7.5), TotalMarks: f64(10), Percentage: f64(75)},
	}

	assignments := baseData(model.ReportTypeAssignments)
	submitted := assignments.GeneratedAt.Add(-time.Hour)
	assignments.Submissions = []model.SubmissionRow{
		{Title: "Linked lists", UnitCode: "CSC 201", UnitName: "Data Structures", SubmittedAt: &submitted, Status: "graded", Grade: f64(8)},
		{Title: "ER diagram", UnitCode: "CSC 205", UnitName: "Databases", Status: "pending"},
	}

	analytics := baseData(model.ReportTypeAnalytics)
	analytics.Analytics = &model.Analytics{
		Engagement:  model.Engagement{ResourcesDownloaded: 12, GroupsParticipated: 2, AssessmentsTaken: 3},
		Performance: model.Performance{AvgAssessmentScore: f64(71.25)},
		Activity:    []model.ActivityDay{{Date: analytics.GeneratedAt, Count: 4}},
	}

	for _, data := range []*model.ReportData{marks, assignments, analytics} {
		t.Run(string(data.Type), func(t *testing.T) {
			out, err := r.Render(data)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))

			info, err := watermark.ReadInfo(out)
			require.NoError(t, err)
			assert.Equal(t, data.Type.Title(), info.Title)
		})
	}
}

func TestRender_PaginatesLongTables(t *testing.T) {
	data := baseData(model.ReportTypeMarks)
	for i := 0; i < 120; i++ {
		data.Marks = append(data.Marks, model.MarkRow{
			UnitCode: fmt.Sprintf("UNIT %03d", i), Kind: "assessment",
			Score: f64(1), TotalMarks: f64(2), Percentage: f64(50),
		})
	}

	out, err := NewRenderer(nil).Render(data)
	require.NoError(t, err)
	pages := regexp.MustCompile(`/Type\s*/Page\b[^s]`).FindAll(out, -1)
	assert.Greater(t, len(pages), 1)
}

func TestRender_EmptyAndUnknown(t *testing.T) {
	r := NewRenderer(nil)

	_, err := r.Render(baseData(model.ReportTypeAnalytics))
	assert.NoError(t, err)

	_, err = r.Render(baseData(model.ReportType("transcript")))
	assert.ErrorIs(t, err, ErrUnknownReport)
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "7.5/10", fraction(f64(7.5), f64(10)))
	assert.Equal(t, "-/-", fraction(nil, nil))
	assert.Equal(t, "66.7%", percent(f64(66.666)))
	assert.Equal(t, "N/A", percentOrNA(nil))
}
