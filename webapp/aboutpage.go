package webapp

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/maxence-charriere/go-app/v10/pkg/app"
)

// AboutInfo represents the about information from the API
type AboutInfo struct {
	Version       string  `json:"version"`
	Backend       string  `json:"backend"`
	DefaultScale  float64 `json:"defaultScale"`
	ExportPath    string  `json:"exportPath"`
	ExportFormat  string  `json:"exportFormat"`
	DatabaseType  string  `json:"databaseType"`
	OpenDocuments int     `json:"openDocuments"`
}

// AboutPage displays information about the render service
type AboutPage struct {
	app.Compo
	aboutInfo AboutInfo
	loading   bool
	error     string
}

// OnMount is called when the component is mounted
func (a *AboutPage) OnMount(ctx app.Context) {
	a.loading = true
	fetchJSON(ctx, http.MethodGet, "/api/about", nil, func(ctx app.Context, status int, text string) {
		a.loading = false
		if status != http.StatusOK {
			a.error = apiError(status, text)
			return
		}
		if err := json.Unmarshal([]byte(text), &a.aboutInfo); err != nil {
			a.error = fmt.Sprintf("Failed to parse response: %v", err)
		}
	})
}

// Render renders the about page
func (a *AboutPage) Render() app.UI {
	if a.loading {
		return app.Div().Class("about-page").Body(
			app.H2().Text("About pdfbitmap"),
			app.Div().Class("loading").Body(app.Text("Loading...")),
		)
	}

	if a.error != "" {
		return app.Div().Class("about-page").Body(
			app.H2().Text("About pdfbitmap"),
			app.Div().Class("error").Body(app.Text("Error: "+a.error)),
		)
	}

	return app.Div().Class("about-page").Body(
		app.H2().Text("About pdfbitmap"),
		app.Div().Class("about-content").Body(
			app.Div().Class("about-section").Body(
				app.H3().Text("Application Information"),
				app.Div().Class("info-grid").Body(
					a.renderInfoItem("Version", a.aboutInfo.Version),
					a.renderInfoItem("Render Backend", a.getBackendDisplay()),
					a.renderInfoItem("Database", a.getDatabaseDisplay()),
					a.renderInfoItem("Open Documents", fmt.Sprint(a.aboutInfo.OpenDocuments)),
				),
			),
			app.Div().Class("about-section").Body(
				app.H3().Text("Rendering"),
				app.Div().Class("config-details").Body(
					app.P().Body(
						app.Strong().Text("Default Scale: "),
						app.Text(fmt.Sprintf("%g", a.aboutInfo.DefaultScale)),
					),
					app.P().Body(
						app.Strong().Text("Export Format: "),
						app.Text(a.aboutInfo.ExportFormat),
					),
					app.P().Body(
						app.Strong().Text("Export Path: "),
						app.Text(a.aboutInfo.ExportPath),
					),
				),
			),
			app.Div().Class("about-section").Body(
				app.H3().Text("About pdfbitmap"),
				app.P().Text("pdfbitmap renders PDF pages to bitmaps with PDFium or MuPDF and exports page ranges to image files."),
			),
		),
	)
}

// renderInfoItem creates an info item display
func (a *AboutPage) renderInfoItem(label, value string) app.UI {
	return app.Div().Class("info-item").Body(
		app.Div().Class("info-label").Body(app.Text(label)),
		app.Div().Class("info-value").Body(app.Text(value)),
	)
}

// getDatabaseDisplay returns a user-friendly database display name
func (a *AboutPage) getDatabaseDisplay() string {
	switch a.aboutInfo.DatabaseType {
	case "postgres":
		return "PostgreSQL"
	case "cockroachdb":
		return "CockroachDB"
	case "sqlite":
		return "SQLite"
	default:
		return a.aboutInfo.DatabaseType
	}
}

// getBackendDisplay names the library behind the render backend
func (a *AboutPage) getBackendDisplay() string {
	switch a.aboutInfo.Backend {
	case "pdfium":
		return "PDFium (WebAssembly)"
	case "fitz":
		return "MuPDF (go-fitz)"
	default:
		return a.aboutInfo.Backend
	}
}
