// Package report renders report data into plain paginated PDFs. Watermarks
// are applied afterwards by the watermark package.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/SwiftTim/hub2/internal/model"
	"github.com/jung-kurt/gofpdf"
)

var ErrUnknownReport = errors.New("unknown report type")

const (
	marginLeft   = 50.0
	marginTop    = 50.0
	marginBottom = 70.0 // keeps body text above the watermark footer
	lineHeight   = 15.0
)

// Renderer produces report PDFs with the core Helvetica fonts.
type Renderer struct {
	loc *time.Location
}

// NewRenderer returns a Renderer printing dates in loc (UTC if nil).
func NewRenderer(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{loc: loc}
}

// Render lays out data for its report type.
func (r *Renderer) Render(data *model.ReportData) ([]byte, error) {
	if !data.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownReport, data.Type)
	}

	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(marginLeft, marginTop, marginLeft)
	pdf.SetAutoPageBreak(true, marginBottom)
	pdf.SetTitle(data.Type.Title(), true)
	pdf.SetAuthor("Academic Hub", false)
	pdf.AliasNbPages("")

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	d := &doc{pdf: pdf, tr: tr, loc: r.loc}

	pdf.SetHeaderFunc(func() {
		if pdf.PageNo() == 1 {
			return
		}
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 12, tr(data.Type.Title()+" (continued)"), "", 1, "R", false, 0, "")
		pdf.Ln(6)
	})

	pdf.AddPage()
	d.header(data)

	switch data.Type {
	case model.ReportTypeMarks:
		d.marks(data.Marks)
	case model.ReportTypeAssignments:
		d.submissions(data.Submissions)
	case model.ReportTypeAnalytics:
		d.analytics(data.Analytics)
	}

	if data.VerifyURL != "" {
		pdf.Ln(20)
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(80, 80, 80)
		pdf.MultiCell(0, 12, tr("Verify this document at: "+data.VerifyURL), "", "L", false)
	}

	if pdf.Err() {
		return nil, fmt.Errorf("render %s report: %w", data.Type, pdf.Error())
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write %s report: %w", data.Type, err)
	}
	return buf.Bytes(), nil
}

type doc struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
	loc *time.Location
}

func (d *doc) header(data *model.ReportData) {
	p := d.pdf
	p.SetTextColor(0, 0, 0)
	p.SetFont("Helvetica", "B", 20)
	p.CellFormat(0, 26, d.tr(data.Type.Title()), "", 1, "L", false, 0, "")

	p.SetFont("Helvetica", "", 11)
	p.SetTextColor(128, 128, 128)
	p.CellFormat(0, lineHeight, "Generated on: "+d.datetime(data.GeneratedAt), "", 1, "L", false, 0, "")
	p.Ln(10)

	p.SetTextColor(0, 0, 0)
	p.SetFont("Helvetica", "B", 12)
	p.CellFormat(0, lineHeight+3, d.tr("Student: "+data.Student.Name), "", 1, "L", false, 0, "")
	p.SetFont("Helvetica", "", 11)
	number := data.Student.StudentNumber
	if number == "" {
		number = "N/A"
	}
	p.CellFormat(0, lineHeight+3, d.tr("Student ID: "+number), "", 1, "L", false, 0, "")
	if data.Student.Email != "" {
		p.CellFormat(0, lineHeight+3, d.tr("Email: "+data.Student.Email), "", 1, "L", false, 0, "")
	}
	p.Ln(20)
}

func (d *doc) section(title string) {
	d.pdf.SetFont("Helvetica", "B", 14)
	d.pdf.SetTextColor(0, 0, 0)
	d.pdf.CellFormat(0, 20, title, "", 1, "L", false, 0, "")
	d.pdf.Ln(6)
}

var markColumns = []struct {
	title string
	width float64
}{
	{"Unit", 150},
	{"Type", 90},
	{"Score", 100},
	{"Percentage", 80},
	{"Date", 75},
}

func (d *doc) marksHeader() {
	d.pdf.SetFont("Helvetica", "B", 10)
	d.pdf.SetFillColor(235, 235, 235)
	for _, c := range markColumns {
		d.pdf.CellFormat(c.width, lineHeight+3, c.title, "B", 0, "L", true, 0, "")
	}
	d.pdf.Ln(-1)
	d.pdf.SetFont("Helvetica", "", 9)
}

func (d *doc) marks(rows []model.MarkRow) {
	d.section("ACADEMIC RESULTS")
	if len(rows) == 0 {
		d.empty("No graded assessments or assignments yet.")
		return
	}
	d.marksHeader()
	_, pageH := d.pdf.GetPageSize()
	for _, row := range rows {
		if d.pdf.GetY()+lineHeight > pageH-marginBottom {
			d.pdf.AddPage()
			d.marksHeader()
		}
		cells := []string{
			row.UnitCode,
			row.Kind,
			fraction(row.Score, row.TotalMarks),
			percent(row.Percentage),
			d.date(row.RecordedAt),
		}
		for i, c := range markColumns {
			d.pdf.CellFormat(c.width, lineHeight, d.tr(cells[i]), "", 0, "L", false, 0, "")
		}
		d.pdf.Ln(-1)
	}
}

func (d *doc) submissions(rows []model.SubmissionRow) {
	d.section("ASSIGNMENT HISTORY")
	if len(rows) == 0 {
		d.empty("No assignment submissions yet.")
		return
	}
	p := d.pdf
	for i, row := range rows {
		p.SetFont("Helvetica", "B", 11)
		p.MultiCell(0, lineHeight, d.tr(strconv.Itoa(i+1)+". "+row.Title), "", "L", false)

		p.SetFont("Helvetica", "", 10)
		d.indented(fmt.Sprintf("Unit: %s (%s)", row.UnitName, row.UnitCode))
		if row.DueDate != nil {
			d.indented("Due: " + d.datetime(*row.DueDate))
		}
		submitted := "Not submitted"
		if row.SubmittedAt != nil {
			submitted = d.datetime(*row.SubmittedAt)
		}
		d.indented("Submitted: " + submitted)
		d.indented("Status: " + row.Status)
		if row.Grade != nil {
			feedback := "No feedback"
			if row.Feedback != nil && *row.Feedback != "" {
				feedback = *row.Feedback
			}
			d.indented(fmt.Sprintf("Grade: %s - %s", number(*row.Grade), feedback))
		}
		p.Ln(10)
	}
}

func (d *doc) analytics(a *model.Analytics) {
	if a == nil {
		a = &model.Analytics{}
	}
	p := d.pdf

	d.section("ENGAGEMENT METRICS")
	p.SetFont("Helvetica", "", 12)
	d.line(fmt.Sprintf("Resources Downloaded: %d", a.Engagement.ResourcesDownloaded))
	d.line(fmt.Sprintf("Groups Participated: %d", a.Engagement.GroupsParticipated))
	d.line(fmt.Sprintf("Assessments Taken: %d", a.Engagement.AssessmentsTaken))
	p.Ln(20)

	d.section("PERFORMANCE METRICS")
	p.SetFont("Helvetica", "", 12)
	d.line("Average Assessment Score: " + percentOrNA(a.Performance.AvgAssessmentScore))
	d.line("Average Assignment Score: " + percentOrNA(a.Performance.AvgAssignmentScore))
	p.Ln(20)

	if len(a.Activity) == 0 {
		return
	}
	d.section("RECENT ACTIVITY")
	p.SetFont("Helvetica", "", 10)
	for _, day := range a.Activity {
		d.line(fmt.Sprintf("%s: %d actions", d.date(day.Date), day.Count))
	}
}

func (d *doc) line(s string) {
	d.pdf.CellFormat(0, lineHeight+5, d.tr(s), "", 1, "L", false, 0, "")
}

func (d *doc) indented(s string) {
	d.pdf.SetX(marginLeft + 20)
	d.pdf.MultiCell(0, lineHeight, d.tr(s), "", "L", false)
}

func (d *doc) empty(s string) {
	d.pdf.SetFont("Helvetica", "I", 10)
	d.pdf.SetTextColor(128, 128, 128)
	d.pdf.CellFormat(0, lineHeight, s, "", 1, "L", false, 0, "")
	d.pdf.SetTextColor(0, 0, 0)
}

func (d *doc) date(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(d.loc).Format("02 Jan 2006")
}

func (d *doc) datetime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(d.loc).Format("02 Jan 2006 15:04")
}

func number(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func fraction(score, total *float64) string {
	s, t := "-", "-"
	if score != nil {
		s = number(*score)
	}
	if total != nil {
		t = number(*total)
	}
	return s + "/" + t
}

func percent(p *float64) string {
	if p == nil {
		return "-"
	}
	return strconv.FormatFloat(*p, 'f', 1, 64) + "%"
}

func percentOrNA(p *float64) string {
	if p == nil {
		return "N/A"
	}
	return percent(p)
}
