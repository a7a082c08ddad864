package webapp

import (
	"github.com/maxence-charriere/go-app/v10/pkg/app"
)

// RoutePaths are the pages of the viewer, every one is served by App
var RoutePaths = []string{"/", "/view", "/jobs", "/about"}

// RegisterRoutes routes every page to the App component
func RegisterRoutes() {
	for _, path := range RoutePaths {
		app.Route(path, func() app.Composer { return &App{} })
	}
}

// App is the root component of the application
type App struct {
	app.Compo
	path string
}

// OnPreRender records the requested route when the server renders the page
func (a *App) OnPreRender(ctx app.Context) {
	a.path = ctx.Page().URL().Path
}

// OnNav records the route on every navigation in the browser
func (a *App) OnNav(ctx app.Context) {
	a.path = ctx.Page().URL().Path
}

// currentPath is the route being shown
func (a *App) currentPath() string {
	if a.path != "" {
		return a.path
	}
	return app.Window().URL().Path
}

// Render renders the app
func (a *App) Render() app.UI {
	return app.Div().
		Class("app-container").
		Body(
			app.Header().Body(
				&NavBar{},
			),
			app.Div().Class("app-layout").Body(
				&Sidebar{},
				app.Main().Class("main-content").Body(
					app.Div().Class("content").Body(
						pageFor(a.currentPath()),
					),
				),
			),
		)
}

// pageFor returns the page component for a route
func pageFor(path string) app.UI {
	switch path {
	case "/":
		return &HomePage{}
	case "/view":
		return &ViewerPage{}
	case "/jobs":
		return &JobsPage{}
	case "/about":
		return &AboutPage{}
	default:
		return &NotFoundPage{}
	}
}
