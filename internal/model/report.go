package model

import (
	"time"

	"github.com/google/uuid"
)

// ReportType enumerates generatable reports.
type ReportType string

const (
	ReportTypeMarks       ReportType = "marks"
	ReportTypeAssignments ReportType = "assignments"
	ReportTypeAnalytics   ReportType = "analytics"
)

// Valid reports whether t is a known report type.
func (t ReportType) Valid() bool {
	switch t {
	case ReportTypeMarks, ReportTypeAssignments, ReportTypeAnalytics:
		return true
	}
	return false
}

// Title is the heading printed on the report and used for filenames.
func (t ReportType) Title() string {
	switch t {
	case ReportTypeMarks:
		return "Academic Marks Report"
	case ReportTypeAssignments:
		return "Assignment Submission Report"
	case ReportTypeAnalytics:
		return "Student Analytics Report"
	}
	return "Report"
}

// GeneratedReport is the persisted record of one watermark-signed document.
type GeneratedReport struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	ReportType   ReportType `json:"report_type"`
	Title        string     `json:"title"`
	DocumentHash string     `json:"document_hash"`
	Signature    string     `json:"signature"`
	CreatedAt    time.Time  `json:"created_at"`
}

// StudentInfo identifies the report subject.
type StudentInfo struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	StudentNumber string    `json:"student_number,omitempty"`
	Email         string    `json:"email"`
}

// MarkRow is one graded assessment or assignment.
type MarkRow struct {
	UnitCode   string    `json:"unit_code"`
	UnitName   string    `json:"unit_name"`
	Kind       string    `json:"type"` // assessment | assignment
	Score      *float64  `json:"score,omitempty"`
	TotalMarks *float64  `json:"total_marks,omitempty"`
	Percentage *float64  `json:"percentage,omitempty"`
	RecordedAt time.Time `json:"assessment_date"`
}

// SubmissionRow is one assignment submission.
type SubmissionRow struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	UnitCode    string     `json:"unit_code"`
	UnitName    string     `json:"unit_name"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	Grade       *float64   `json:"grade,omitempty"`
	Feedback    *string    `json:"feedback,omitempty"`
	Status      string     `json:"status"`
}

// Engagement counts a student's participation.
type Engagement struct {
	ResourcesDownloaded int `json:"resources_downloaded"`
	GroupsParticipated  int `json:"groups_participated"`
	AssessmentsTaken    int `json:"assessments_taken"`
}

// Performance holds average percentages; nil when there is nothing to average.
type Performance struct {
	AvgAssessmentScore *float64 `json:"avg_assessment_score,omitempty"`
	AvgAssignmentScore *float64 `json:"avg_assignment_score,omitempty"`
}

// ActivityDay is the number of recorded actions on one date.
type ActivityDay struct {
	Date  time.Time `json:"activity_date"`
	Count int       `json:"activity_count"`
}

// Analytics summarises a student's engagement.
type Analytics struct {
	Engagement  Engagement    `json:"engagement"`
	Performance Performance   `json:"performance"`
	Activity    []ActivityDay `json:"activity"`
}

// ReportData is the source data handed to the PDF renderer.
type ReportData struct {
	Type        ReportType
	Student     StudentInfo
	GeneratedAt time.Time
	DocumentID  uuid.UUID
	VerifyURL   string
	Marks       []MarkRow
	Submissions []SubmissionRow
	Analytics   *Analytics
}
