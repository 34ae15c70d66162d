package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SwiftTim/hub2/internal/clock"
	"github.com/SwiftTim/hub2/internal/model"
	"github.com/SwiftTim/hub2/internal/report"
	"github.com/SwiftTim/hub2/internal/watermark"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidReportType      = errors.New("invalid report type")
	ErrReportGenerationFailed = errors.New("failed to generate report")
)

// Verification verdicts carried in Verification.Error.
const (
	VerdictNotFound         = "Document not found or invalid"
	VerdictInvalidSignature = "Invalid document signature"
)

// ReportDataSource supplies the rows a report is built from.
type ReportDataSource interface {
	Student(ctx context.Context, userID uuid.UUID) (model.StudentInfo, error)
	Marks(ctx context.Context, userID uuid.UUID) ([]model.MarkRow, error)
	Submissions(ctx context.Context, userID uuid.UUID) ([]model.SubmissionRow, error)
	Analytics(ctx context.Context, userID uuid.UUID) (*model.Analytics, error)
}

// ReportStore persists generated report records.
type ReportStore interface {
	Create(ctx context.Context, rep *model.GeneratedReport) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.GeneratedReport, error)
}

// GeneratedDocument is a watermarked report ready to be returned to the caller.
type GeneratedDocument struct {
	PDF        []byte
	DocumentID uuid.UUID
	Title      string
	Filename   string
	Version    string
}

// VerifiedDocument is the public proof returned by Verify.
type VerifiedDocument struct {
	ID        uuid.UUID        `json:"id"`
	Type      model.ReportType `json:"type"`
	Title     string           `json:"title"`
	CreatedAt time.Time        `json:"createdAt"`
	UserID    uuid.UUID        `json:"userId"`
}

// VerificationInfo describes how a document was verified.
type VerificationInfo struct {
	Timestamp time.Time `json:"timestamp"`
	Method    string    `json:"method"`
}

// Verification is the verify endpoint's result. It is never an error for an
// unknown or mismatched document.
type Verification struct {
	Valid        bool              `json:"valid"`
	Document     *VerifiedDocument `json:"document,omitempty"`
	Verification *VerificationInfo `json:"verification,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// Inspection extends the embedded watermark check with the server-side record.
type Inspection struct {
	watermark.Extraction
	// Registered is set when the document id is known and its stored
	// signature equals the embedded one.
	Registered bool `json:"registered"`
	// Untampered is set when the file's content hash equals the stored hash.
	Untampered bool `json:"untampered"`
}

// ReportService generates, watermarks and verifies PDF reports.
type ReportService struct {
	data        ReportDataSource
	store       ReportStore
	renderer    *report.Renderer
	watermarker *watermark.Watermarker
	institution string
	frontendURL string
	clock       clock.Clock
	log         zerolog.Logger
}

// NewReportService creates a new ReportService.
func NewReportService(
	data ReportDataSource,
	store ReportStore,
	renderer *report.Renderer,
	watermarker *watermark.Watermarker,
	institution, frontendURL string,
	c clock.Clock,
	log zerolog.Logger,
) *ReportService {
	if c == nil {
		c = clock.Real()
	}
	return &ReportService{
		data:        data,
		store:       store,
		renderer:    renderer,
		watermarker: watermarker,
		institution: institution,
		frontendURL: frontendURL,
		clock:       c,
		log:         log.With().Str("component", "report_service").Logger(),
	}
}

// Generate renders a report for userID, applies the invisible then the
// visible watermark, and records it for later verification. Every failure
// after validation is reported as ErrReportGenerationFailed.
func (s *ReportService) Generate(ctx context.Context, userID uuid.UUID, reportType model.ReportType) (*GeneratedDocument, error) {
	if !reportType.Valid() {
		return nil, ErrInvalidReportType
	}

	doc, err := s.generate(ctx, userID, reportType)
	if err != nil {
		s.log.Error().Err(err).
			Str("user_id", userID.String()).
			Str("report_type", string(reportType)).
			Msg("Report generation failed")
		return nil, ErrReportGenerationFailed
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Str("report_type", string(reportType)).
		Str("document_id", doc.DocumentID.String()).
		Msg("Report generated")
	return doc, nil
}

func (s *ReportService) generate(ctx context.Context, userID uuid.UUID, reportType model.ReportType) (*GeneratedDocument, error) {
	data, err := s.collect(ctx, userID, reportType)
	if err != nil {
		return nil, err
	}

	docID := uuid.New()
	now := s.clock.Now()
	payload := watermark.NewPayload(userID.String(), string(reportType), docID.String(), s.institution, now)

	// Signing is deterministic, so the link printed in the body matches the
	// signature the invisible pass embeds.
	signed, err := s.watermarker.Signer().Sign(payload)
	if err != nil {
		return nil, fmt.Errorf("sign payload: %w", err)
	}
	data.DocumentID = docID
	data.GeneratedAt = now
	data.VerifyURL = watermark.VerificationURL(s.frontendURL, docID.String(), signed.Signature)

	plain, err := s.renderer.Render(data)
	if err != nil {
		return nil, err
	}

	title := reportType.Title()
	marked, signed, err := s.watermarker.EmbedInvisible(plain, payload, title)
	if err != nil {
		return nil, err
	}
	final, err := s.watermarker.EmbedVisible(marked, payload)
	if err != nil {
		return nil, err
	}

	hash, err := watermark.ContentHash(final, payload)
	if err != nil {
		return nil, fmt.Errorf("content hash: %w", err)
	}

	rec := &model.GeneratedReport{
		ID:           docID,
		UserID:       userID,
		ReportType:   reportType,
		Title:        title,
		DocumentHash: hash,
		Signature:    signed.Signature,
		CreatedAt:    now,
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist report record: %w", err)
	}

	return &GeneratedDocument{
		PDF:        final,
		DocumentID: docID,
		Title:      title,
		Filename:   Filename(title, docID),
		Version:    watermark.Version,
	}, nil
}

func (s *ReportService) collect(ctx context.Context, userID uuid.UUID, reportType model.ReportType) (*model.ReportData, error) {
	student, err := s.data.Student(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	data := &model.ReportData{Type: reportType, Student: student}

	switch reportType {
	case model.ReportTypeMarks:
		data.Marks, err = s.data.Marks(ctx, userID)
	case model.ReportTypeAssignments:
		data.Submissions, err = s.data.Submissions(ctx, userID)
	case model.ReportTypeAnalytics:
		data.Analytics, err = s.data.Analytics(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s data: %w", reportType, err)
	}
	return data, nil
}

// Filename is the download name: the title with underscores plus the first
// eight characters of the document id.
func Filename(title string, docID uuid.UUID) string {
	return strings.ReplaceAll(title, " ", "_") + "_" + docID.String()[:8] + ".pdf"
}

// Verify looks up a generated report. When sigPrefix is non-empty it must
// equal the leading characters of the stored signature. This confirms a
// record exists; Inspect performs the cryptographic check.
func (s *ReportService) Verify(ctx context.Context, documentID, sigPrefix string) (*Verification, error) {
	id, err := uuid.Parse(documentID)
	if err != nil {
		return &Verification{Error: VerdictNotFound}, nil
	}

	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &Verification{Error: VerdictNotFound}, nil
		}
		return nil, fmt.Errorf("get report record: %w", err)
	}

	if sigPrefix != "" {
		stored := watermark.Prefix(rec.Signature)
		if subtle.ConstantTimeCompare([]byte(sigPrefix), []byte(stored)) != 1 {
			return &Verification{Error: VerdictInvalidSignature}, nil
		}
	}

	return &Verification{
		Valid: true,
		Document: &VerifiedDocument{
			ID:        rec.ID,
			Type:      rec.ReportType,
			Title:     rec.Title,
			CreatedAt: rec.CreatedAt,
			UserID:    rec.UserID,
		},
		Verification: &VerificationInfo{
			Timestamp: s.clock.Now(),
			Method:    "database_lookup",
		},
	}, nil
}

// Inspect extracts and re-verifies the watermark embedded in an uploaded
// PDF, then cross-checks it against the stored record.
func (s *ReportService) Inspect(ctx context.Context, pdf []byte) (*Inspection, error) {
	out := &Inspection{Extraction: s.watermarker.Extract(pdf)}
	if !out.Valid {
		return out, nil
	}

	id, err := uuid.Parse(out.Data.DocumentID)
	if err != nil {
		return out, nil
	}
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return out, nil
		}
		return nil, fmt.Errorf("get report record: %w", err)
	}

	out.Registered = subtle.ConstantTimeCompare([]byte(rec.Signature), []byte(out.Signature)) == 1
	if hash, err := watermark.ContentHash(pdf, *out.Data); err == nil {
		out.Untampered = out.Registered && hash == rec.DocumentHash
	}
	return out, nil
}
