package engine

import (
	"sync"
	"testing"

	"github.com/drummonds/pdfbitmap/engine/pdfrenderer"
)

func TestPageModelViewSize(t *testing.T) {
	tests := []struct {
		rotation      int
		width, height float64
	}{
		{0, 612, 792},
		{90, 792, 612},
		{180, 612, 792},
		{270, 792, 612},
	}
	for _, tt := range tests {
		page := newPageModel("a.pdf", "", 1, pdfrenderer.Geometry{Width: 612, Height: 792, Rotation: tt.rotation})
		view := page.ViewSize()
		if view.Width != tt.width || view.Height != tt.height {
			t.Errorf("rotation %d: got %vx%v, want %vx%v", tt.rotation, view.Width, view.Height, tt.width, tt.height)
		}
	}
}

func TestPageModelPixelSize(t *testing.T) {
	page := newPageModel("a.pdf", "", 1, pdfrenderer.Geometry{Width: 595.28, Height: 841.89})
	w, h := page.PixelSize(2)
	if w != 1190 || h != 1683 {
		t.Errorf("Expected 1190x1683, got %dx%d", w, h)
	}
}

func TestPageModelPowerIsSafeForConcurrentUse(t *testing.T) {
	page := newPageModel("a.pdf", "", 1, pdfrenderer.Geometry{Width: 10, Height: 10})
	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(scale float64) {
			defer wg.Done()
			page.SetPower(scale)
			_ = page.Power()
		}(float64(i))
	}
	wg.Wait()
	if p := page.Power(); p < 1 || p > 8 {
		t.Errorf("Unexpected power %v", p)
	}
}
