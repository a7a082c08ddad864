package webapp

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/maxence-charriere/go-app/v10/pkg/app"
)

// zoomLevels are the scales the viewer steps through
var zoomLevels = []float64{0.1, 0.25, 0.5, 0.75, 1, 1.5, 2, 3, 4}

// nextZoom returns the zoom level after scale in direction (+1 in, -1 out),
// staying at the ends of zoomLevels
func nextZoom(scale float64, direction int) float64 {
	if direction > 0 {
		for _, level := range zoomLevels {
			if level > scale {
				return level
			}
		}
		return zoomLevels[len(zoomLevels)-1]
	}
	for i := len(zoomLevels) - 1; i >= 0; i-- {
		if zoomLevels[i] < scale {
			return zoomLevels[i]
		}
	}
	return zoomLevels[0]
}

// ViewerPage shows the pages of an open document and exports page ranges
type ViewerPage struct {
	app.Compo
	documentID   string
	document     DocumentInfo
	scale        float64
	loading      bool
	error        string
	exportRange  string
	exportFormat string
	exporting    bool
	message      string
}

// OnMount is called when the component is mounted
func (v *ViewerPage) OnMount(ctx app.Context) {
	v.documentID = ctx.Page().URL().Query().Get("id")
	v.scale = GetViewerScale()
	v.exportFormat = "png"
	if v.documentID == "" {
		v.error = "No document selected"
		return
	}
	v.loading = true
	v.fetchDocument(ctx)
}

// fetchDocument loads the document and its page geometry
func (v *ViewerPage) fetchDocument(ctx app.Context) {
	fetchJSON(ctx, http.MethodGet, "/api/documents/"+v.documentID, nil, func(ctx app.Context, status int, text string) {
		v.loading = false
		if status != http.StatusOK {
			v.error = apiError(status, text)
			return
		}
		if err := json.Unmarshal([]byte(text), &v.document); err != nil {
			v.error = fmt.Sprintf("Failed to parse response: %v", err)
		}
	})
}

// Render renders the viewer page
func (v *ViewerPage) Render() app.UI {
	if v.loading {
		return app.Div().Class("viewer-page").Body(
			app.Div().Class("loading").Body(app.Text("Loading document...")),
		)
	}
	if v.error != "" && v.document.ID == "" {
		return app.Div().Class("viewer-page").Body(
			app.Div().Class("error").Body(app.Text("Error: "+v.error)),
			app.A().Href("/").Text("Back to Home"),
		)
	}

	return app.Div().
		Class("viewer-page").
		Body(
			app.H2().Text(v.document.Name),
			app.P().Class("page-info").Text(v.documentInfo()),
			v.renderToolbar(),
			v.renderExport(),
			app.If(v.error != "", func() app.UI {
				return app.Div().Class("error").Body(app.Text("Error: " + v.error))
			}),
			app.If(v.message != "", func() app.UI {
				return app.Div().Class("success").Body(
					app.Text(v.message+" "),
					app.A().Href("/jobs").Text("View jobs"),
				)
			}),
			app.Div().Class("page-list").Body(
				app.Range(v.document.Pages).Slice(func(i int) app.UI {
					return v.renderPage(v.document.Pages[i])
				}),
			),
		)
}

// documentInfo describes the document in one line
func (v *ViewerPage) documentInfo() string {
	info := fmt.Sprintf("%s | %d pages | %s backend", v.document.Path, v.document.PageCount, v.document.Backend)
	if v.document.Encrypted {
		info += " | encrypted"
	}
	return info
}

// renderToolbar renders the zoom and close controls
func (v *ViewerPage) renderToolbar() app.UI {
	return app.Div().Class("viewer-toolbar").Body(
		app.Button().
			Class("btn-secondary").
			Disabled(v.scale <= zoomLevels[0]).
			OnClick(func(ctx app.Context, e app.Event) {
				v.scale = nextZoom(v.scale, -1)
			}).
			Body(app.Text("−")),
		app.Span().Class("zoom-level").Text(fmt.Sprintf("%.0f%%", v.scale*100)),
		app.Button().
			Class("btn-secondary").
			Disabled(v.scale >= zoomLevels[len(zoomLevels)-1]).
			OnClick(func(ctx app.Context, e app.Event) {
				v.scale = nextZoom(v.scale, 1)
			}).
			Body(app.Text("+")),
		app.Button().
			Class("btn-secondary").
			OnClick(v.onCancelClick).
			Body(app.Text("Cancel Renders")),
		app.Button().
			Class("btn-danger").
			OnClick(v.onCloseClick).
			Body(app.Text("Close Document")),
	)
}

// renderExport renders the export form
func (v *ViewerPage) renderExport() app.UI {
	buttonText := "Export"
	if v.exporting {
		buttonText = "Starting..."
	}
	return app.Div().Class("export-form").Body(
		app.Input().
			Type("text").
			Class("range-input").
			Placeholder("Pages, e.g. 1,3-5 (all when empty)").
			Value(v.exportRange).
			OnInput(func(ctx app.Context, e app.Event) {
				v.exportRange = ctx.JSSrc().Get("value").String()
			}),
		app.Select().
			Class("format-select").
			OnChange(func(ctx app.Context, e app.Event) {
				v.exportFormat = ctx.JSSrc().Get("value").String()
			}).
			Body(
				app.Option().Value("png").Selected(v.exportFormat == "png").Text("PNG"),
				app.Option().Value("jpg").Selected(v.exportFormat == "jpg").Text("JPEG"),
				app.Option().Value("tif").Selected(v.exportFormat == "tif").Text("TIFF"),
			),
		app.Button().
			Class("btn-primary").
			Disabled(v.exporting).
			OnClick(v.onExportClick).
			Body(app.Text(buttonText)),
	)
}

// renderPage renders one page image with its geometry
func (v *ViewerPage) renderPage(page PageInfo) app.UI {
	caption := fmt.Sprintf("Page %d | %.0f x %.0f pt", page.Number, page.OriginalSize.Width, page.OriginalSize.Height)
	if page.Rotation != 0 {
		caption += fmt.Sprintf(" | rotated %d°", page.Rotation)
	}
	return app.Div().Class("page-card").Body(
		app.Img().
			Class("page-image").
			Src(pageImageURL(v.document.ID, page.Number, v.scale)).
			Alt(fmt.Sprintf("Page %d", page.Number)).
			Width(int(page.ViewSize.Width*v.scale)).
			Height(int(page.ViewSize.Height*v.scale)).
			Attr("loading", "lazy"),
		app.Div().Class("page-caption").Text(caption),
	)
}

// onExportClick starts an export job for the selected range
func (v *ViewerPage) onExportClick(ctx app.Context, e app.Event) {
	v.exporting = true
	v.error = ""
	v.message = ""

	request := map[string]interface{}{"range": v.exportRange, "format": v.exportFormat, "scale": v.scale}
	fetchJSON(ctx, http.MethodPost, "/api/documents/"+v.documentID+"/export", request, func(ctx app.Context, status int, text string) {
		v.exporting = false
		if status != http.StatusAccepted {
			v.error = apiError(status, text)
			return
		}
		var started struct {
			JobID  string `json:"jobId"`
			OutDir string `json:"outDir"`
		}
		if err := json.Unmarshal([]byte(text), &started); err != nil {
			v.error = fmt.Sprintf("Failed to parse response: %v", err)
			return
		}
		v.message = fmt.Sprintf("Export started, writing to %s.", started.OutDir)
	})
}

// onCancelClick drops the queued renders of the document
func (v *ViewerPage) onCancelClick(ctx app.Context, e app.Event) {
	fetchJSON(ctx, http.MethodPost, "/api/documents/"+v.documentID+"/cancel", nil, func(ctx app.Context, status int, text string) {
		if status != http.StatusOK {
			v.error = apiError(status, text)
		}
	})
}

// onCloseClick closes the document on the server and returns home
func (v *ViewerPage) onCloseClick(ctx app.Context, e app.Event) {
	fetchJSON(ctx, http.MethodDelete, "/api/documents/"+v.documentID, nil, func(ctx app.Context, status int, text string) {
		if status != http.StatusOK {
			v.error = apiError(status, text)
			return
		}
		ctx.Navigate("/")
	})
}
