package watermark

import (
	"bytes"
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
	"github.com/jung-kurt/gofpdf/contrib/gofpdi"
)

// drawFunc stamps one page. w and h are the page size in points.
type drawFunc func(pdf *gofpdf.Fpdf, page int, w, h float64)

// overlay re-emits every page of src as an imported template, lets draw
// stamp on top of it and writes meta as the new info dictionary. src is
// never modified; a new buffer is returned.
func overlay(src []byte, meta Info, draw drawFunc) (out []byte, err error) {
	if !bytes.HasPrefix(bytes.TrimLeft(src, " \t\r\n"), pdfHeader) {
		return nil, ErrMalformedPDF
	}

	// gofpdi panics on unparsable input.
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("%w: %v", ErrMalformedPDF, r)
		}
	}()

	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	applyInfo(pdf, meta)

	imp := gofpdi.NewImporter()
	var rs io.ReadSeeker = bytes.NewReader(src)

	first := imp.ImportPageFromStream(pdf, &rs, 1, "/MediaBox")
	sizes := imp.GetPageSizes()
	if len(sizes) == 0 {
		return nil, fmt.Errorf("%w: no pages", ErrMalformedPDF)
	}

	for page := 1; page <= len(sizes); page++ {
		tpl := first
		if page > 1 {
			tpl = imp.ImportPageFromStream(pdf, &rs, page, "/MediaBox")
		}
		w, h := pageSize(sizes[page])
		pdf.AddPageFormat("P", gofpdf.SizeType{Wd: w, Ht: h})
		imp.UseImportedTemplate(pdf, tpl, 0, 0, w, h)
		draw(pdf, page, w, h)
	}

	if pdf.Err() {
		return nil, fmt.Errorf("render overlay: %w", pdf.Error())
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// A4 in points.
const (
	a4Width  = 595.28
	a4Height = 841.89
)

func pageSize(boxes map[string]map[string]float64) (float64, float64) {
	box, ok := boxes["/MediaBox"]
	if !ok || box["w"] <= 0 || box["h"] <= 0 {
		return a4Width, a4Height
	}
	return box["w"], box["h"]
}

func applyInfo(pdf *gofpdf.Fpdf, meta Info) {
	if meta.Title != "" {
		pdf.SetTitle(meta.Title, true)
	}
	if meta.Subject != "" {
		pdf.SetSubject(meta.Subject, true)
	}
	if meta.Author != "" {
		pdf.SetAuthor(meta.Author, true)
	}
	if meta.Creator != "" {
		pdf.SetCreator(meta.Creator, false)
	}
	if meta.Producer != "" {
		pdf.SetProducer(meta.Producer, false)
	}
	if meta.Keywords != "" {
		pdf.SetKeywords(meta.Keywords, false)
	}
}
