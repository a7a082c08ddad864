package webapp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/maxence-charriere/go-app/v10/pkg/app"
)

// sidebarRecentLimit is how many recent files the sidebar offers
const sidebarRecentLimit = 5

// Sidebar lists the pages of the viewer, the documents open on the server and
// the recent files that are not open
type Sidebar struct {
	app.Compo
	isOpen    bool
	documents []DocumentInfo
	recent    []RecentFile
	opening   string
	error     string
}

// OnMount is called when the component is mounted
func (s *Sidebar) OnMount(ctx app.Context) {
	s.isOpen = s.getSidebarState(ctx)
	s.refresh(ctx)
}

// OnNav reloads the lists, documents are opened and closed from other pages
func (s *Sidebar) OnNav(ctx app.Context) {
	s.isOpen = s.getSidebarState(ctx)
	s.refresh(ctx)
}

func (s *Sidebar) refresh(ctx app.Context) {
	if !s.isOpen {
		return
	}
	fetchJSON(ctx, http.MethodGet, "/api/documents", nil, func(ctx app.Context, status int, text string) {
		if status != http.StatusOK {
			s.error = apiError(status, text)
			return
		}
		var documents []DocumentInfo
		if err := json.Unmarshal([]byte(text), &documents); err == nil {
			s.documents = documents
		}
	})
	fetchJSON(ctx, http.MethodGet, fmt.Sprintf("/api/recent?limit=%d", 2*sidebarRecentLimit), nil, func(ctx app.Context, status int, text string) {
		if status != http.StatusOK {
			return
		}
		var recent []RecentFile
		if err := json.Unmarshal([]byte(text), &recent); err == nil {
			s.recent = recent
		}
	})
}

// openRecent opens a recent file and shows it in the viewer
func (s *Sidebar) openRecent(ctx app.Context, path string) {
	s.opening = path
	s.error = ""
	fetchJSON(ctx, http.MethodPost, "/api/documents", map[string]string{"path": path}, func(ctx app.Context, status int, text string) {
		s.opening = ""
		if status == http.StatusUnauthorized {
			s.error = "Password required, open it from Documents"
			return
		}
		if status != http.StatusCreated {
			s.error = apiError(status, text)
			return
		}
		var document DocumentInfo
		if err := json.Unmarshal([]byte(text), &document); err != nil {
			s.error = fmt.Sprintf("Failed to parse response: %v", err)
			return
		}
		ctx.Navigate(viewerURL(document.ID))
	})
}

// Render renders the sidebar
func (s *Sidebar) Render() app.UI {
	class := "sidebar"
	if s.isOpen {
		class += " sidebar-open"
	}
	current := app.Window().URL()
	recent := sidebarRecent(s.recent, s.documents, sidebarRecentLimit)

	return app.Aside().
		Class(class).
		Body(
			app.Nav().Class("sidebar-nav").Body(
				s.renderNavItem("📄", "Documents", "/", isActiveItem(current, "/")),
				s.renderNavItem("⚙️", "Jobs", "/jobs", isActiveItem(current, "/jobs")),
				s.renderNavItem("ℹ️", "About", "/about", isActiveItem(current, "/about")),
			),
			app.H4().Class("sidebar-heading").Text("Open"),
			app.If(len(s.documents) == 0, func() app.UI {
				return app.P().Class("sidebar-empty").Text("Nothing open")
			}).Else(func() app.UI {
				return app.Div().Body(
					app.Range(s.documents).Slice(func(i int) app.UI {
						document := s.documents[i]
						href := viewerURL(document.ID)
						return s.renderNavItem("🖼️", documentLabel(document), href, isActiveItem(current, href))
					}),
				)
			}),
			app.If(len(recent) > 0, func() app.UI {
				return app.Div().Body(
					app.H4().Class("sidebar-heading").Text("Recent"),
					app.Range(recent).Slice(func(i int) app.UI {
						file := recent[i]
						label := file.Name
						if s.opening == file.Path {
							label += " (opening)"
						}
						return app.A().
							Class("sidebar-item").
							Title(file.Path).
							OnClick(func(ctx app.Context, e app.Event) {
								e.PreventDefault()
								s.openRecent(ctx, file.Path)
							}).
							Body(app.Span().Class("sidebar-label").Text(label))
					}),
				)
			}),
			app.If(s.error != "", func() app.UI {
				return app.P().Class("error").Text(s.error)
			}),
		)
}

// renderNavItem creates a navigation item
func (s *Sidebar) renderNavItem(icon, label, href string, active bool) app.UI {
	class := "sidebar-item"
	if active {
		class += " sidebar-item-active"
	}

	return app.A().
		Href(href).
		Class(class).
		Body(
			app.Span().Class("sidebar-icon").Text(icon),
			app.Span().Class("sidebar-label").Text(label),
		)
}

// getSidebarState retrieves the sidebar open/closed state from local storage
func (s *Sidebar) getSidebarState(ctx app.Context) bool {
	var isOpen bool
	ctx.LocalStorage().Get("sidebar-open", &isOpen)
	return isOpen
}

// documentLabel names an open document with its page count and queued renders
func documentLabel(document DocumentInfo) string {
	label := fmt.Sprintf("%s (%d pages)", document.Name, document.PageCount)
	if document.PageCount == 1 {
		label = document.Name + " (1 page)"
	}
	if document.Pending > 0 {
		label += fmt.Sprintf(", %d rendering", document.Pending)
	}
	return label
}

// sidebarRecent returns up to limit recent files that are not already open
func sidebarRecent(recent []RecentFile, open []DocumentInfo, limit int) []RecentFile {
	isOpen := make(map[string]bool, len(open))
	for _, document := range open {
		isOpen[document.Path] = true
	}
	var files []RecentFile
	for _, file := range recent {
		if len(files) == limit {
			break
		}
		if !isOpen[file.Path] {
			files = append(files, file)
		}
	}
	return files
}

// isActiveItem reports whether href points at the current page, viewer links
// also match on the document id
func isActiveItem(current *url.URL, href string) bool {
	target, err := url.Parse(href)
	if err != nil || current == nil || current.Path != target.Path {
		return false
	}
	if id := target.Query().Get("id"); id != "" {
		return current.Query().Get("id") == id
	}
	return true
}
