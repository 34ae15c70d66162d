package watermark

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

var (
	ErrMalformedPDF = errors.New("malformed pdf")
	ErrNoInfo       = errors.New("pdf has no info dictionary")
)

// Info holds the document information dictionary fields we read and write.
type Info struct {
	Title    string
	Subject  string
	Author   string
	Keywords string
	Creator  string
	Producer string
}

var pdfHeader = []byte("%PDF-")

func init() {
	// The server never reads or writes a pdfcpu config directory.
	api.DisableConfigDir()
}

func readConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// ReadInfo loads pdf with pdfcpu and decodes the text entries of the
// trailer's Info dictionary. Classic and stream cross-reference tables are
// both supported.
func ReadInfo(pdf []byte) (info Info, err error) {
	if !bytes.HasPrefix(bytes.TrimLeft(pdf, " \t\r\n"), pdfHeader) {
		return Info{}, ErrMalformedPDF
	}

	defer func() {
		if r := recover(); r != nil {
			info = Info{}
			err = fmt.Errorf("%w: %v", ErrMalformedPDF, r)
		}
	}()

	ctx, err := api.ReadContext(bytes.NewReader(pdf), readConfig())
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrMalformedPDF, err)
	}
	xrt := ctx.XRefTable
	if xrt.Info == nil {
		return Info{}, ErrNoInfo
	}
	dict, err := xrt.DereferenceDict(*xrt.Info)
	if err != nil {
		return Info{}, fmt.Errorf("%w: info dictionary: %v", ErrMalformedPDF, err)
	}
	if dict == nil {
		return Info{}, ErrNoInfo
	}

	text := func(key string) string {
		obj, ok := dict.Find(key)
		if !ok {
			return ""
		}
		obj, err := xrt.Dereference(obj)
		if err != nil || obj == nil {
			return ""
		}
		s, err := types.StringOrHexLiteral(obj)
		if err != nil || s == nil {
			return ""
		}
		return *s
	}

	return Info{
		Title:    text("Title"),
		Subject:  text("Subject"),
		Author:   text("Author"),
		Keywords: text("Keywords"),
		Creator:  text("Creator"),
		Producer: text("Producer"),
	}, nil
}
