package engine

import (
	"math"
	"sync/atomic"

	"github.com/drummonds/pdfbitmap/engine/pdfrenderer"
)

// Size is a page size in points
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PageModel describes one page of an open document. Everything except the power
// (the last scale requested for the page) is fixed when the document is opened.
type PageModel struct {
	FilePath     string
	PageNumber   int
	Password     string
	OriginalSize Size
	Rotation     int

	power atomic.Uint64
}

func newPageModel(filePath, password string, pageNumber int, geo pdfrenderer.Geometry) *PageModel {
	page := &PageModel{
		FilePath:     filePath,
		PageNumber:   pageNumber,
		Password:     password,
		OriginalSize: Size{Width: geo.Width, Height: geo.Height},
		Rotation:     geo.Rotation,
	}
	page.SetPower(1)
	return page
}

// ViewSize returns the original size with width and height swapped for pages
// rotated by 90 or 270 degrees
func (p *PageModel) ViewSize() Size {
	if p.Rotation == 90 || p.Rotation == 270 {
		return Size{Width: p.OriginalSize.Height, Height: p.OriginalSize.Width}
	}
	return p.OriginalSize
}

// PixelSize returns the dimensions of a raster of this page at scale
func (p *PageModel) PixelSize(scale float64) (int, int) {
	view := p.ViewSize()
	return pdfrenderer.FloorPixels(view.Width * scale), pdfrenderer.FloorPixels(view.Height * scale)
}

// Power returns the last scale requested for this page
func (p *PageModel) Power() float64 {
	return math.Float64frombits(p.power.Load())
}

// SetPower records the scale of the latest rasterization request
func (p *PageModel) SetPower(scale float64) {
	p.power.Store(math.Float64bits(scale))
}
