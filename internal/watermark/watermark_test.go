package watermark

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-watermark-secret"

func testPayload() Payload {
	return NewPayload(
		"7f0c4c7e-31a8-4bd4-9a55-1f3f7f6a2b10",
		"marks",
		"c2b3a2f4-0d55-4f1b-a7e3-6f4bb8f5a901",
		"academic-hub",
		time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC),
	)
}

func mustSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := NewSigner(testSecret)
	require.NoError(t, err)
	return s
}

// samplePDF renders a small multi-page document the way the report renderer does.
func samplePDF(t *testing.T, pages int) []byte {
	t.Helper()
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetTitle("Source", false)
	for i := 0; i < pages; i++ {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "", 12)
		pdf.Text(72, 72, "Academic Marks Report")
	}
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

func TestNewSigner_RejectsEmptySecret(t *testing.T) {
	_, err := NewSigner("")
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestCanonicalize_Sorted(t *testing.T) {
	canon, err := Canonicalize(testPayload())
	require.NoError(t, err)
	assert.Equal(t,
		`{"documentId":"c2b3a2f4-0d55-4f1b-a7e3-6f4bb8f5a901","documentType":"marks","institutionId":"academic-hub","timestamp":"2026-03-02T09:30:00.000Z","userId":"7f0c4c7e-31a8-4bd4-9a55-1f3f7f6a2b10"}`,
		string(canon))
}

func TestNewPayload_DefaultsInstitution(t *testing.T) {
	p := NewPayload("u", "marks", "d", "", time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC))
	assert.Equal(t, DefaultInstitution, p.InstitutionID)
}

func TestSignVerify(t *testing.T) {
	s := mustSigner(t)
	signed, err := s.Sign(testPayload())
	require.NoError(t, err)

	assert.Len(t, signed.Signature, 64)
	assert.True(t, s.Verify(signed.Signature, signed.Payload))

	again, err := s.Sign(testPayload())
	require.NoError(t, err)
	assert.Equal(t, signed, again)
}

func TestVerify_Mutations(t *testing.T) {
	s := mustSigner(t)
	signed, err := s.Sign(testPayload())
	require.NoError(t, err)

	mutated := testPayload()
	mutated.UserID = "someone-else"
	canon, err := Canonicalize(mutated)
	require.NoError(t, err)

	flipped := []byte(signed.Signature)
	if flipped[0] == 'a' {
		flipped[0] = 'b'
	} else {
		flipped[0] = 'a'
	}

	other, err := NewSigner("another-secret")
	require.NoError(t, err)

	// Same fields and signature, different bytes.
	original, err := base64.StdEncoding.DecodeString(signed.Payload)
	require.NoError(t, err)
	reordered, err := json.Marshal(testPayload())
	require.NoError(t, err)
	require.NotEqual(t, original, reordered)
	spaced := bytes.ReplaceAll(original, []byte(`":"`), []byte(`": "`))
	extra := append(bytes.TrimSuffix(append([]byte{}, original...), []byte("}")), []byte(`,"role":"admin"}`)...)

	tests := []struct {
		name      string
		signer    *Signer
		signature string
		payload   string
	}{
		{"mutated payload", s, signed.Signature, base64.StdEncoding.EncodeToString(canon)},
		{"mutated signature", s, string(flipped), signed.Payload},
		{"truncated signature", s, signed.Signature[:16], signed.Payload},
		{"non-hex signature", s, strings.Repeat("z", 64), signed.Payload},
		{"non-base64 payload", s, signed.Signature, "!!!"},
		{"non-json payload", s, signed.Signature, base64.StdEncoding.EncodeToString([]byte("nope"))},
		{"wrong secret", other, signed.Signature, signed.Payload},
		{"reordered keys", s, signed.Signature, base64.StdEncoding.EncodeToString(reordered)},
		{"extra whitespace", s, signed.Signature, base64.StdEncoding.EncodeToString(spaced)},
		{"extra key", s, signed.Signature, base64.StdEncoding.EncodeToString(extra)},
		{"trailing newline", s, signed.Signature, base64.StdEncoding.EncodeToString(append(append([]byte{}, original...), '\n'))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, tt.signer.Verify(tt.signature, tt.payload))
		})
	}
}

func TestContentHash(t *testing.T) {
	p := testPayload()
	a, err := ContentHash([]byte("%PDF-1.3 a"), p)
	require.NoError(t, err)
	b, err := ContentHash([]byte("%PDF-1.3 b"), p)
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)

	p.DocumentType = "analytics"
	c, err := ContentHash([]byte("%PDF-1.3 a"), p)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestVerificationURL(t *testing.T) {
	url := VerificationURL("https://hub.example.edu/", "doc-1", "0123456789abcdef0123")
	assert.Equal(t, "https://hub.example.edu/verify/doc-1?sig=0123456789abcdef", url)
}

func TestEmbedExtract_RoundTrip(t *testing.T) {
	w := New(mustSigner(t), nil)
	p := testPayload()

	invisible, signed, err := w.EmbedInvisible(samplePDF(t, 3), p, "Academic Marks Report")
	require.NoError(t, err)
	final, err := w.EmbedVisible(invisible, p)
	require.NoError(t, err)

	got := w.Extract(final)
	require.True(t, got.Valid, got.Error)
	require.NotNil(t, got.Data)
	assert.Equal(t, p, *got.Data)
	assert.Equal(t, signed.Signature, got.Signature)
	assert.Equal(t, Version, got.Version)
	assert.Equal(t, p.Timestamp, got.Timestamp)

	info, err := ReadInfo(final)
	require.NoError(t, err)
	assert.Equal(t, "Academic Marks Report", info.Title)
	assert.Equal(t, "Watermarked document - marks", info.Subject)
	assert.Equal(t, "Academic Hub Watermarking System", info.Creator)
	assert.Equal(t, "Academic Hub v1.0", info.Producer)
}

func TestEmbedInvisible_Alone(t *testing.T) {
	w := New(mustSigner(t), nil)
	out, _, err := w.EmbedInvisible(samplePDF(t, 1), testPayload(), "")
	require.NoError(t, err)

	got := w.Extract(out)
	assert.True(t, got.Valid)

	info, err := ReadInfo(out)
	require.NoError(t, err)
	assert.Equal(t, "Academic Document", info.Title)
}

func TestExtract_Negative(t *testing.T) {
	w := New(mustSigner(t), nil)

	plain := w.Extract(samplePDF(t, 1))
	assert.False(t, plain.Valid)
	assert.Equal(t, ReasonNoWatermark, plain.Error)

	garbage := w.Extract([]byte("not a pdf"))
	assert.False(t, garbage.Valid)
	assert.Equal(t, ReasonUnreadable, garbage.Error)

	other, err := NewSigner("rotated-secret")
	require.NoError(t, err)
	marked, _, err := New(other, nil).EmbedInvisible(samplePDF(t, 1), testPayload(), "")
	require.NoError(t, err)
	forged := w.Extract(marked)
	assert.False(t, forged.Valid)
	assert.Equal(t, ReasonInvalidSignature, forged.Error)
}

func TestEmbed_MalformedPDF(t *testing.T) {
	w := New(mustSigner(t), nil)

	_, _, err := w.EmbedInvisible([]byte("hello"), testPayload(), "")
	assert.ErrorIs(t, err, ErrMalformedPDF)

	_, _, err = w.EmbedInvisible([]byte("%PDF-1.4\ngarbage"), testPayload(), "")
	assert.ErrorIs(t, err, ErrMalformedPDF)

	_, err = w.EmbedVisible([]byte("hello"), testPayload())
	assert.ErrorIs(t, err, ErrMalformedPDF)
}

// rawPDF writes a one-page document with a correct classic xref table.
// info, when set, becomes object 4 and the trailer's /Info.
func rawPDF(info string) []byte {
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>",
	}
	if info != "" {
		objs = append(objs, info)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R", len(objs)+1)
	if info != "" {
		buf.WriteString(" /Info 4 0 R")
	}
	fmt.Fprintf(&buf, " >>\nstartxref\n%d\n%%%%EOF\n", xref)
	return buf.Bytes()
}

func TestReadInfo_Escapes(t *testing.T) {
	doc := rawPDF("<< /Title (Marks \\(Term 1\\) \\\\ Final) /Keywords (line\\nbreak) /Subject <FEFF00480069> >>")

	info, err := ReadInfo(doc)
	require.NoError(t, err)
	assert.Equal(t, `Marks (Term 1) \ Final`, info.Title)
	assert.Equal(t, "line\nbreak", info.Keywords)
	assert.Equal(t, "Hi", info.Subject)
	assert.Empty(t, info.Author)
}

func TestReadInfo_UTF16Title(t *testing.T) {
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetTitle("Résultats", true)
	pdf.AddPage()
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))

	info, err := ReadInfo(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "Résultats", info.Title)
}

func TestReadInfo_Errors(t *testing.T) {
	_, err := ReadInfo([]byte("PK\x03\x04"))
	assert.ErrorIs(t, err, ErrMalformedPDF)

	_, err = ReadInfo([]byte("%PDF-1.4\nno objects, no xref"))
	assert.ErrorIs(t, err, ErrMalformedPDF)

	_, err = ReadInfo(rawPDF(""))
	assert.ErrorIs(t, err, ErrNoInfo)

	w := New(mustSigner(t), nil)
	got := w.Extract(rawPDF(""))
	assert.False(t, got.Valid)
	assert.Equal(t, ReasonNoWatermark, got.Error)
}

var streamRe = regexp.MustCompile(`(?s)>>\s*stream\r?\n(.*?)\r?\nendstream`)

// contentStreams returns every stream body in pdf, inflated when it is
// Flate-compressed.
func contentStreams(t *testing.T, pdf []byte) [][]byte {
	t.Helper()
	var out [][]byte
	for _, m := range streamRe.FindAllSubmatch(pdf, -1) {
		body := m[1]
		if zr, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
			if inflated, err := io.ReadAll(zr); err == nil {
				body = inflated
			}
		}
		out = append(out, body)
	}
	return out
}

func TestEmbed_PageMarks(t *testing.T) {
	const pages = 3
	w := New(mustSigner(t), nil)
	p := testPayload()

	invisible, signed, err := w.EmbedInvisible(samplePDF(t, pages), p, "")
	require.NoError(t, err)
	mark := []byte("(WM:" + signed.Prefix() + ")")

	marked := 0
	for _, body := range contentStreams(t, invisible) {
		if n := bytes.Count(body, mark); n > 0 {
			assert.Equal(t, 3, n, "one mark per spot")
			marked++
		}
	}
	assert.Equal(t, pages, marked, "every page carries the invisible marks")

	final, err := w.EmbedVisible(invisible, p)
	require.NoError(t, err)

	footer := []byte("(Document ID: " + p.DocumentID + ")")
	diagonal := []byte("(academic-hub - 02 Mar 2026)")
	var wm, stamped int
	for _, body := range contentStreams(t, final) {
		wm += bytes.Count(body, mark)
		if n := bytes.Count(body, footer); n > 0 {
			assert.Equal(t, 1, n)
			assert.Equal(t, 1, bytes.Count(body, diagonal))
			stamped++
		}
	}
	assert.Equal(t, pages, stamped, "every page carries the footer and diagonal")
	assert.GreaterOrEqual(t, wm, 3*pages, "invisible marks survive the visible pass")
}

func TestEmbedExtract_DefaultInstitutionRoundTrip(t *testing.T) {
	w := New(mustSigner(t), nil)
	p := testPayload()
	p.InstitutionID = ""

	out, _, err := w.EmbedInvisible(samplePDF(t, 1), p, "")
	require.NoError(t, err)
	got := w.Extract(out)
	require.True(t, got.Valid, got.Error)
	assert.Equal(t, p, *got.Data)
}
