package webapp

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/maxence-charriere/go-app/v10/pkg/app"
)

const defaultViewerScale = 0.5

// GetAPIBaseURL returns the configured API base URL
// It reads from window.pdfbitmapConfig.apiURL if available,
// otherwise falls back to empty string (relative URLs)
func GetAPIBaseURL() string {
	if !app.IsClient {
		return "" // Server-side rendering - use relative URLs
	}

	config := app.Window().Get("pdfbitmapConfig")
	if config.Truthy() {
		apiURL := config.Get("apiURL")
		if apiURL.Truthy() {
			url := apiURL.String()
			// Ensure no trailing slash
			if len(url) > 0 && url[len(url)-1] == '/' {
				return url[:len(url)-1]
			}
			return url
		}
	}
	return ""
}

// GetViewerScale returns the scale page images are first shown at
func GetViewerScale() float64 {
	if !app.IsClient {
		return defaultViewerScale
	}
	config := app.Window().Get("pdfbitmapConfig")
	if config.Truthy() {
		if scale := config.Get("viewerScale"); scale.Truthy() && scale.Float() > 0 {
			return scale.Float()
		}
	}
	return defaultViewerScale
}

// BuildAPIURL constructs a full API URL from a path
// Example: BuildAPIURL("/api/recent") -> "http://backend:8000/api/recent"
// or just "/api/recent" if using relative URLs
func BuildAPIURL(path string) string {
	baseURL := GetAPIBaseURL()
	if baseURL == "" {
		return path // Relative URL
	}
	return baseURL + path
}

// pageImageURL is the API route rendering one page of an open document
func pageImageURL(documentID string, pageNumber int, scale float64) string {
	return BuildAPIURL(fmt.Sprintf("/api/documents/%s/pages/%d/image?scale=%s",
		url.PathEscape(documentID), pageNumber, strconv.FormatFloat(scale, 'f', -1, 64)))
}

// fetchJSON calls the API and hands the response status and body to done on
// the UI goroutine. A network failure is reported as status 0.
func fetchJSON(ctx app.Context, method, path string, body interface{}, done func(ctx app.Context, status int, text string)) {
	ctx.Async(func() {
		options := map[string]interface{}{"method": method}
		if body != nil {
			payload, err := json.Marshal(body)
			if err != nil {
				ctx.Dispatch(func(ctx app.Context) { done(ctx, 0, err.Error()) })
				return
			}
			options["body"] = string(payload)
			options["headers"] = map[string]interface{}{"Content-Type": "application/json"}
		}

		res := app.Window().Call("fetch", BuildAPIURL(path), options)

		res.Call("then", app.FuncOf(func(this app.Value, args []app.Value) any {
			if len(args) == 0 {
				return nil
			}
			response := args[0]
			status := response.Get("status").Int()

			response.Call("text").Call("then", app.FuncOf(func(this app.Value, args []app.Value) any {
				text := ""
				if len(args) > 0 {
					text = args[0].String()
				}
				ctx.Dispatch(func(ctx app.Context) { done(ctx, status, text) })
				return nil
			}))

			return nil
		})).Call("catch", app.FuncOf(func(this app.Value, args []app.Value) any {
			ctx.Dispatch(func(ctx app.Context) { done(ctx, 0, "") })
			return nil
		}))
	})
}

// apiError turns a failed response into a message for the user
func apiError(status int, text string) string {
	if status == 0 {
		return "Network error: Could not connect to server"
	}
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(text), &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return fmt.Sprintf("Request failed (status: %d)", status)
}

// Job represents a background export or prune job
type Job struct {
	ID          string      `json:"id"`
	Type        string      `json:"type"`
	Status      string      `json:"status"`
	Progress    int         `json:"progress"`
	CurrentStep string      `json:"currentStep"`
	TotalSteps  int         `json:"totalSteps"`
	Message     string      `json:"message"`
	Error       string      `json:"error,omitempty"`
	Result      string      `json:"result,omitempty"`
	Summary     *JobSummary `json:"summary,omitempty"`
	CreatedAt   string      `json:"createdAt"`
	UpdatedAt   string      `json:"updatedAt"`
	StartedAt   string      `json:"startedAt,omitempty"`
	CompletedAt string      `json:"completedAt,omitempty"`
}

// JobSummary is the result of a completed export
type JobSummary struct {
	PagesRendered int    `json:"pagesRendered"`
	PagesTotal    int    `json:"pagesTotal"`
	Size          string `json:"size"`
	Errors        int    `json:"errors"`
	Details       string `json:"details"`
}

// PageSize is a page size in points
type PageSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PageInfo describes one page of an open document
type PageInfo struct {
	Number       int      `json:"number"`
	OriginalSize PageSize `json:"originalSize"`
	ViewSize     PageSize `json:"viewSize"`
	Rotation     int      `json:"rotation"`
}

// DocumentInfo is a document opened through the API
type DocumentInfo struct {
	ID        string     `json:"id"`
	Path      string     `json:"path"`
	Name      string     `json:"name"`
	Backend   string     `json:"backend"`
	Encrypted bool       `json:"encrypted"`
	PageCount int        `json:"pageCount"`
	Pending   int        `json:"pending"`
	Pages     []PageInfo `json:"pages"`
}

// RecentFile is a recently opened document
type RecentFile struct {
	Path       string `json:"path"`
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	PageCount  int    `json:"pageCount"`
	Encrypted  bool   `json:"encrypted"`
	OpenCount  int    `json:"openCount"`
	LastOpened string `json:"lastOpened"`
}
