package webapp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/drummonds/pdfbitmap/textutil"
	"github.com/maxence-charriere/go-app/v10/pkg/app"
)

// HomePage opens documents and lists the open and recently opened ones
type HomePage struct {
	app.Compo
	path      string
	password  string
	opening   bool
	documents []DocumentInfo
	recent    []RecentFile
	loading   bool
	error     string
}

// OnMount is called when the component is mounted
func (h *HomePage) OnMount(ctx app.Context) {
	h.loading = true
	h.fetchDocuments(ctx)
	h.fetchRecent(ctx)
}

// fetchDocuments loads the documents that are open on the server
func (h *HomePage) fetchDocuments(ctx app.Context) {
	fetchJSON(ctx, http.MethodGet, "/api/documents", nil, func(ctx app.Context, status int, text string) {
		if status != http.StatusOK {
			h.error = apiError(status, text)
			return
		}
		if err := json.Unmarshal([]byte(text), &h.documents); err != nil {
			h.error = fmt.Sprintf("Failed to parse response: %v", err)
		}
	})
}

// fetchRecent loads the recently opened files
func (h *HomePage) fetchRecent(ctx app.Context) {
	fetchJSON(ctx, http.MethodGet, "/api/recent", nil, func(ctx app.Context, status int, text string) {
		h.loading = false
		if status != http.StatusOK {
			h.error = apiError(status, text)
			return
		}
		if err := json.Unmarshal([]byte(text), &h.recent); err != nil {
			h.error = fmt.Sprintf("Failed to parse response: %v", err)
		}
	})
}

// openDocument asks the server to open path and shows it in the viewer
func (h *HomePage) openDocument(ctx app.Context, path, password string) {
	if path == "" {
		h.error = "Please enter the path of a PDF file"
		return
	}
	h.opening = true
	h.error = ""

	request := map[string]string{"path": path, "password": password}
	fetchJSON(ctx, http.MethodPost, "/api/documents", request, func(ctx app.Context, status int, text string) {
		h.opening = false
		if status == http.StatusUnauthorized {
			h.path = path
			h.error = "This document needs a password: " + apiError(status, text)
			return
		}
		if status != http.StatusCreated {
			h.error = apiError(status, text)
			return
		}
		var document DocumentInfo
		if err := json.Unmarshal([]byte(text), &document); err != nil {
			h.error = fmt.Sprintf("Failed to parse response: %v", err)
			return
		}
		ctx.Navigate(viewerURL(document.ID))
	})
}

// viewerURL is the viewer page of an open document
func viewerURL(documentID string) string {
	return "/view?id=" + url.QueryEscape(documentID)
}

// Render renders the home page
func (h *HomePage) Render() app.UI {
	buttonText := "Open"
	if h.opening {
		buttonText = "Opening..."
	}

	return app.Div().
		Class("home-page").
		Body(
			app.H2().Text("Open a Document"),
			app.Div().Class("open-form").Body(
				app.Input().
					Type("text").
					Class("path-input").
					Placeholder("/path/to/document.pdf").
					Value(h.path).
					OnInput(func(ctx app.Context, e app.Event) {
						h.path = ctx.JSSrc().Get("value").String()
					}).
					OnKeyDown(func(ctx app.Context, e app.Event) {
						if e.Get("key").String() == "Enter" {
							h.openDocument(ctx, h.path, h.password)
						}
					}),
				app.Input().
					Type("password").
					Class("password-input").
					Placeholder("Password (optional)").
					Value(h.password).
					OnInput(func(ctx app.Context, e app.Event) {
						h.password = ctx.JSSrc().Get("value").String()
					}),
				app.Button().
					Class("btn-primary").
					Disabled(h.opening).
					OnClick(func(ctx app.Context, e app.Event) {
						h.openDocument(ctx, h.path, h.password)
					}).
					Body(app.Text(buttonText)),
			),
			app.If(h.error != "", func() app.UI {
				return app.Div().Class("error").Body(app.Text("Error: " + h.error))
			}),
			app.H3().Text("Open Documents"),
			h.renderDocuments(),
			app.H3().Text("Recent Files"),
			h.renderRecent(),
		)
}

// renderDocuments lists the documents open on the server
func (h *HomePage) renderDocuments() app.UI {
	if len(h.documents) == 0 {
		return app.Div().Class("no-results").Body(app.Text("No documents are open."))
	}
	return app.Div().Class("document-grid").Body(
		app.Range(h.documents).Slice(func(i int) app.UI {
			return &DocumentCard{Document: h.documents[i]}
		}),
	)
}

// renderRecent lists recently opened files with a button to reopen each
func (h *HomePage) renderRecent() app.UI {
	if h.loading {
		return app.Div().Class("loading").Body(app.Text("Loading..."))
	}
	if len(h.recent) == 0 {
		return app.Div().Class("no-results").Body(app.Text("No recent files."))
	}
	return app.Div().Class("recent-list").Body(
		app.Range(h.recent).Slice(func(i int) app.UI {
			file := h.recent[i]
			return app.Div().Class("recent-item").Body(
				app.Div().Class("recent-info").Body(
					app.Strong().Text(file.Name),
					app.P().Class("recent-path").Text(file.Path),
					app.P().Class("recent-details").Text(recentDetails(file)),
				),
				app.Button().
					Class("btn-secondary").
					Disabled(h.opening).
					OnClick(func(ctx app.Context, e app.Event) {
						h.path = file.Path
						h.openDocument(ctx, file.Path, h.password)
					}).
					Body(app.Text("Open")),
			)
		}),
	)
}

// recentDetails summarises a recent file in one line
func recentDetails(file RecentFile) string {
	details := fmt.Sprintf("%d pages, %s, opened %d times", file.PageCount, textutil.FormatByteSize(file.Size), file.OpenCount)
	if file.PageCount == 1 {
		details = fmt.Sprintf("1 page, %s, opened %d times", textutil.FormatByteSize(file.Size), file.OpenCount)
	}
	if file.Encrypted {
		details += ", encrypted"
	}
	return details
}

// DocumentCard displays a single open document
type DocumentCard struct {
	app.Compo
	Document DocumentInfo
}

// Render renders the document card
func (d *DocumentCard) Render() app.UI {
	return app.Div().
		Class("document-card").
		Body(
			app.Div().Class("document-icon").Body(
				app.Img().
					Src(pageImageURL(d.Document.ID, 1, 0.2)).
					Alt("First page of "+d.Document.Name),
			),
			app.Div().Class("document-info").Body(
				app.H3().Text(d.Document.Name),
				app.P().
					Class("document-pages").
					Text(fmt.Sprintf("%d pages, %s backend", d.Document.PageCount, d.Document.Backend)),
				app.A().
					Href(viewerURL(d.Document.ID)).
					Class("document-link").
					Body(app.Text("View Document")),
			),
		)
}
