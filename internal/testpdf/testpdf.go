// Package testpdf writes small, well-formed PDF files for tests.
package testpdf

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Page describes one page of a generated document
type Page struct {
	Width, Height float64
	Rotate        int
	// CropBox overrides the visible area when set (llx, lly, urx, ury)
	CropBox []float64
}

// Letter is a plain portrait US Letter page
var Letter = Page{Width: 612, Height: 792}

// Write writes a document with the given pages to path. Every page carries a
// filled square so rendered output is not blank.
func Write(path string, pages ...Page) error {
	return os.WriteFile(path, Build(pages...), 0644)
}

// Build returns the bytes of a document with the given pages
func Build(pages ...Page) []byte {
	var buf bytes.Buffer
	var offsets []int

	object := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	// 1: catalog, 2: page tree, then a page and its content stream per page
	kids := ""
	for i := range pages {
		kids += fmt.Sprintf("%d 0 R ", 3+2*i)
	}
	object("<< /Type /Catalog /Pages 2 0 R >>")
	object(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, len(pages)))

	content := "0 0 1 rg 10 10 100 100 re f\n"
	for i, p := range pages {
		dict := fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %g %g] /Resources << >> /Contents %d 0 R",
			p.Width, p.Height, 4+2*i)
		if len(p.CropBox) == 4 {
			dict += fmt.Sprintf(" /CropBox [%g %g %g %g]", p.CropBox[0], p.CropBox[1], p.CropBox[2], p.CropBox[3])
		}
		if p.Rotate != 0 {
			dict += fmt.Sprintf(" /Rotate %d", p.Rotate)
		}
		object(dict + " >>")
		object(fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(content), content))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

// Encrypt writes an AES-256 encrypted copy of in to out
func Encrypt(in, out, userPW, ownerPW string) error {
	conf := model.NewAESConfiguration(userPW, ownerPW, 256)
	return api.EncryptFile(in, out, conf)
}
