package pdfrenderer

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// US Letter, used when a page carries neither a CropBox nor a MediaBox
const (
	defaultPageWidth  = 612
	defaultPageHeight = 792
)

// inspection holds what pdfcpu tells us about a document before any backend touches it
type inspection struct {
	path      string
	encrypted bool
	pages     []Geometry
}

// inspect reads the page tree of path with pdfcpu. The password is tried as both
// user and owner password so either one opens the document.
func inspect(path, password string) (*inspection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DocumentLoadError{Path: path, Err: err}
	}
	defer f.Close()

	if err := checkHeader(f); err != nil {
		return nil, &DocumentLoadError{Path: path, Err: err}
	}

	conf := model.NewDefaultConfiguration()
	conf.UserPW = password
	conf.OwnerPW = password

	ctx, err := api.ReadContext(f, conf)
	if err != nil {
		return nil, loadError(path, fmt.Errorf("failed to read PDF context: %w", err))
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, loadError(path, fmt.Errorf("%w: %v", ErrNotPDF, err))
	}

	result := &inspection{
		path:      path,
		encrypted: ctx.Encrypt != nil,
		pages:     make([]Geometry, 0, ctx.PageCount),
	}
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		_, _, attrs, err := ctx.PageDict(pageNr, false)
		if err != nil {
			return nil, loadError(path, fmt.Errorf("failed to get page dict %d: %w", pageNr, err))
		}
		geo := Geometry{Width: defaultPageWidth, Height: defaultPageHeight}
		if attrs != nil {
			switch {
			case attrs.CropBox != nil:
				geo.Width, geo.Height = attrs.CropBox.Width(), attrs.CropBox.Height()
			case attrs.MediaBox != nil:
				geo.Width, geo.Height = attrs.MediaBox.Width(), attrs.MediaBox.Height()
			}
			geo.Rotation = NormalizeRotation(attrs.Rotate)
		}
		result.pages = append(result.pages, geo)
	}
	return result, nil
}

// checkHeader rejects files that do not carry a PDF header in their first KB
func checkHeader(r io.ReadSeeker) error {
	head := make([]byte, 1024)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return err
	}
	if !bytes.Contains(head[:n], []byte("%PDF-")) {
		return ErrNotPDF
	}
	_, err = r.Seek(0, io.SeekStart)
	return err
}

// NormalizeRotation maps a /Rotate value onto 0, 90, 180 or 270
func NormalizeRotation(degrees int) int {
	r := ((degrees % 360) + 360) % 360
	return (r / 90) * 90
}

func (in *inspection) geometry(pageNumber int) (Geometry, error) {
	if err := checkPage(pageNumber, len(in.pages)); err != nil {
		return Geometry{}, err
	}
	return in.pages[pageNumber-1], nil
}
