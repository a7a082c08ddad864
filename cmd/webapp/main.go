//go:build js && wasm

package main

import (
	"github.com/drummonds/pdfbitmap/webapp"
	"github.com/maxence-charriere/go-app/v10/pkg/app"
)

// Built with GOARCH=wasm GOOS=js into web/app.wasm, served by cmd/frontend
func main() {
	webapp.RegisterRoutes()
	app.RunWhenOnBrowser()
}
