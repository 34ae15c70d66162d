package watermark

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

const (
	creator  = "Academic Hub Watermarking System"
	producer = "Academic Hub v1.0"

	defaultTitle = "Academic Document"
)

// Keywords is the JSON structure stored in the PDF keywords field.
type Keywords struct {
	Signature string `json:"signature"`
	Payload   string `json:"payload"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// Extraction is the result of reading a watermark back. It is never an error:
// every failure is reported as Valid=false with a reason.
type Extraction struct {
	Valid     bool     `json:"valid"`
	Error     string   `json:"error,omitempty"`
	Data      *Payload `json:"data,omitempty"`
	Signature string   `json:"signature,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
	Version   string   `json:"version,omitempty"`
}

// Extraction failure reasons.
const (
	ReasonNoWatermark      = "No watermark found"
	ReasonInvalidSignature = "Invalid watermark signature"
	ReasonUnreadable       = "Failed to extract watermark"
)

// Watermarker embeds and extracts watermarks.
type Watermarker struct {
	signer *Signer
	loc    *time.Location
}

// New returns a Watermarker. Dates on visible stamps are rendered in loc (UTC if nil).
func New(signer *Signer, loc *time.Location) *Watermarker {
	if loc == nil {
		loc = time.UTC
	}
	return &Watermarker{signer: signer, loc: loc}
}

// Signer exposes the underlying signer.
func (w *Watermarker) Signer() *Signer { return w.signer }

// EmbedInvisible signs p and writes the signature prefix as 1pt white text
// near two corners and the center of every page, then stores the full
// signed payload in the keywords field.
func (w *Watermarker) EmbedInvisible(src []byte, p Payload, title string) ([]byte, Signed, error) {
	signed, err := w.signer.Sign(p)
	if err != nil {
		return nil, Signed{}, err
	}
	kw, err := json.Marshal(Keywords{
		Signature: signed.Signature,
		Payload:   signed.Payload,
		Version:   Version,
		Timestamp: p.Timestamp,
	})
	if err != nil {
		return nil, Signed{}, fmt.Errorf("encode keywords: %w", err)
	}

	if title == "" {
		title = defaultTitle
	}
	meta := Info{
		Title:    title,
		Subject:  "Watermarked document - " + p.DocumentType,
		Creator:  creator,
		Producer: producer,
		Keywords: string(kw),
	}

	mark := "WM:" + signed.Prefix()
	out, err := overlay(src, meta, func(pdf *gofpdf.Fpdf, _ int, pw, ph float64) {
		pdf.SetFont("Helvetica", "", 1)
		pdf.SetTextColor(255, 255, 255)
		for _, pt := range invisibleSpots(pw, ph) {
			pdf.Text(pt[0], pt[1], mark)
		}
	})
	if err != nil {
		return nil, Signed{}, fmt.Errorf("invisible watermark: %w", err)
	}
	return out, signed, nil
}

// invisibleSpots returns baseline positions (top-left origin): top-left,
// bottom-right and just below-left of center, clear of the diagonal stamp
// and the footer line.
func invisibleSpots(w, h float64) [][2]float64 {
	return [][2]float64{
		{10, 20},
		{w - 100, h - 10},
		{w/2 - 50, h/2 + 40},
	}
}

// EmbedVisible stamps a translucent diagonal "<institution> - <date>" across
// every page and a footer with the document id and generation time. Metadata
// written by a previous pass is carried over.
func (w *Watermarker) EmbedVisible(src []byte, p Payload) ([]byte, error) {
	meta, err := ReadInfo(src)
	if err != nil {
		return nil, fmt.Errorf("visible watermark: %w", err)
	}

	institution := p.InstitutionID
	if institution == "" {
		institution = "ACADEMIC HUB"
	}
	ts := p.Time().In(w.loc)
	diagonal := institution + " - " + ts.Format("02 Jan 2006")
	docLine := "Document ID: " + p.DocumentID
	genLine := "Generated: " + ts.Format("02 Jan 2006 15:04:05 MST")

	out, err := overlay(src, meta, func(pdf *gofpdf.Fpdf, _ int, pw, ph float64) {
		cx, cy := pw/2, ph/2

		pdf.SetFont("Helvetica", "B", 24)
		pdf.SetTextColor(204, 204, 204)
		pdf.SetAlpha(0.3, "Normal")
		pdf.TransformBegin()
		pdf.TransformRotate(-45, cx, cy)
		pdf.Text(cx-pdf.GetStringWidth(diagonal)/2, cy, diagonal)
		pdf.TransformEnd()
		pdf.SetAlpha(1, "Normal")

		pdf.SetFont("Helvetica", "B", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.Text(50, ph-30, docLine)
		pdf.Text(pw-200, ph-30, genLine)
	})
	if err != nil {
		return nil, fmt.Errorf("visible watermark: %w", err)
	}
	return out, nil
}

// Extract reads the keywords field and re-verifies the embedded signature.
func (w *Watermarker) Extract(pdf []byte) Extraction {
	info, err := ReadInfo(pdf)
	if err != nil {
		if errors.Is(err, ErrNoInfo) {
			return Extraction{Error: ReasonNoWatermark}
		}
		return Extraction{Error: ReasonUnreadable}
	}
	if strings.TrimSpace(info.Keywords) == "" {
		return Extraction{Error: ReasonNoWatermark}
	}

	var kw Keywords
	if err := json.Unmarshal([]byte(info.Keywords), &kw); err != nil {
		return Extraction{Error: ReasonUnreadable}
	}
	p, ok := w.signer.Open(kw.Signature, kw.Payload)
	if !ok {
		return Extraction{Error: ReasonInvalidSignature}
	}
	return Extraction{
		Valid:     true,
		Data:      &p,
		Signature: kw.Signature,
		Timestamp: kw.Timestamp,
		Version:   kw.Version,
	}
}

// VerificationURL builds the public verification link printed on reports.
func VerificationURL(frontendURL, documentID, signature string) string {
	return fmt.Sprintf("%s/verify/%s?sig=%s", strings.TrimRight(frontendURL, "/"), documentID, Prefix(signature))
}
