package webapp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/maxence-charriere/go-app/v10/pkg/app"
)

// JobsPage displays export and housekeeping jobs
type JobsPage struct {
	app.Compo
	jobs          []Job
	loading       bool
	error         string
	autoRefresh   bool
	refreshTicker *time.Ticker
}

// OnMount is called when the component is mounted
func (j *JobsPage) OnMount(ctx app.Context) {
	j.autoRefresh = true
	j.loadJobs(ctx)

	// Start auto-refresh every 2 seconds
	ctx.Async(func() {
		j.refreshTicker = time.NewTicker(2 * time.Second)
		for range j.refreshTicker.C {
			if j.autoRefresh {
				j.loadJobs(ctx)
			}
		}
	})
}

// OnDismount is called when the component is unmounted
func (j *JobsPage) OnDismount() {
	if j.refreshTicker != nil {
		j.refreshTicker.Stop()
	}
}

// Render renders the jobs page
func (j *JobsPage) Render() app.UI {
	return app.Div().
		Class("jobs-page").
		Body(
			app.H2().Text("Jobs"),
			app.P().Text("Page exports and the periodic recent file cleanup."),

			app.Div().Class("jobs-controls").Body(
				app.Button().
					Class("btn-primary").
					OnClick(j.onRefreshClick).
					Disabled(j.loading).
					Body(app.Text("Refresh")),
				app.Label().Class("auto-refresh-label").Body(
					app.Input().
						Type("checkbox").
						Checked(j.autoRefresh).
						OnChange(j.onAutoRefreshChange),
					app.Text(" Auto-refresh"),
				),
			),

			j.renderStatus(),
		)
}

// renderStatus renders the jobs list or status messages
func (j *JobsPage) renderStatus() app.UI {
	if j.loading && len(j.jobs) == 0 {
		return app.Div().Class("loading").Body(
			app.Text("Loading jobs..."),
		)
	}

	if j.error != "" {
		return app.Div().Class("error").Body(
			app.Text("Error: " + j.error),
		)
	}

	if len(j.jobs) == 0 {
		return app.Div().Class("info").Body(
			app.P().Text("No jobs found. Jobs are created when you export pages of a document."),
		)
	}

	return app.Div().Class("jobs-list").Body(
		app.Range(j.jobs).Slice(func(i int) app.UI {
			return j.renderJob(&j.jobs[i])
		}),
	)
}

// renderJob renders a single job card
func (j *JobsPage) renderJob(job *Job) app.UI {
	return app.Div().
		Class("job-card job-"+job.Status).
		Body(
			app.Div().Class("job-header").Body(
				app.Div().Class("job-type").Body(
					app.Strong().Text(formatJobType(job.Type)),
					app.Span().Class("job-status-badge job-status-"+job.Status).
						Body(app.Text(job.Status)),
				),
				app.Div().Class("job-time").Body(
					app.Text(formatTime(job.CreatedAt, time.Now())),
				),
			),

			app.If(job.Status == "running",
				func() app.UI {
					return app.Div().Class("job-progress").Body(
						app.Div().Class("progress-bar").Body(
							app.Div().
								Class("progress-fill").
								Style("width", fmt.Sprintf("%d%%", job.Progress)),
						),
						app.Div().Class("progress-text").Body(
							app.Text(fmt.Sprintf("%d%% - %s", job.Progress, job.CurrentStep)),
						),
					)
				},
			),

			app.If(job.Message != "",
				func() app.UI {
					return app.Div().Class("job-message").Body(
						app.Text(job.Message),
					)
				},
			),

			app.If(job.Error != "",
				func() app.UI {
					return app.Div().Class("job-error").Body(
						app.Strong().Text("Error: "),
						app.Text(job.Error),
					)
				},
			),

			app.If(job.Result != "",
				func() app.UI {
					return app.Div().Class("job-result").Body(
						app.Text(formatResult(job.Result)),
					)
				},
			),

			app.Div().Class("job-footer").Body(
				app.Div().Class("job-id").Body(
					app.Text("ID: " + job.ID),
				),
				app.If(job.CompletedAt != "",
					func() app.UI {
						return app.Div().Class("job-completed").Body(
							app.Text("Completed: " + formatTime(job.CompletedAt, time.Now())),
						)
					},
				),
			),
		)
}

// formatJobType converts job type to readable format
func formatJobType(jobType string) string {
	switch jobType {
	case "export":
		return "Page Export"
	case "prune":
		return "Recent File Cleanup"
	default:
		if jobType == "" {
			return "Job"
		}
		return strings.ToUpper(jobType[:1]) + jobType[1:]
	}
}

// formatTime formats an RFC 3339 time relative to now when it is recent
func formatTime(timeStr string, now time.Time) string {
	if timeStr == "" {
		return ""
	}

	t, err := time.Parse(time.RFC3339, timeStr)
	if err != nil {
		return timeStr
	}

	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "Just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	}

	return t.Format("Jan 2, 2006 at 3:04 PM")
}

// formatResult formats the JSON result of an export or prune job
func formatResult(result string) string {
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(result), &data); err != nil {
		return result
	}

	var parts []string
	if rendered, ok := data["pagesRendered"].(float64); ok {
		if total, ok := data["pagesTotal"].(float64); ok {
			parts = append(parts, fmt.Sprintf("Rendered: %.0f of %.0f pages", rendered, total))
		} else {
			parts = append(parts, fmt.Sprintf("Rendered: %.0f pages", rendered))
		}
	}
	if size, ok := data["size"].(string); ok && size != "" {
		parts = append(parts, "Written: "+size)
	}
	if val, ok := data["errors"].(float64); ok && val > 0 {
		parts = append(parts, fmt.Sprintf("Errors: %.0f", val))
	}
	if val, ok := data["recentFilesRemoved"].(float64); ok {
		parts = append(parts, fmt.Sprintf("Recent files removed: %.0f", val))
	}
	if val, ok := data["jobsRemoved"].(float64); ok {
		parts = append(parts, fmt.Sprintf("Jobs removed: %.0f", val))
	}
	if details, ok := data["details"].(string); ok && details != "" {
		parts = append(parts, "Output: "+details)
	}

	if len(parts) > 0 {
		return strings.Join(parts, ", ")
	}
	return result
}

// onRefreshClick handles the refresh button click
func (j *JobsPage) onRefreshClick(ctx app.Context, e app.Event) {
	j.loadJobs(ctx)
}

// onAutoRefreshChange handles auto-refresh checkbox change
func (j *JobsPage) onAutoRefreshChange(ctx app.Context, e app.Event) {
	j.autoRefresh = ctx.JSSrc().Get("checked").Bool()
	ctx.Update()
}

// loadJobs fetches jobs from the API
func (j *JobsPage) loadJobs(ctx app.Context) {
	j.loading = true
	j.error = ""

	fetchJSON(ctx, http.MethodGet, "/api/jobs?limit=50", nil, func(ctx app.Context, status int, text string) {
		j.loading = false
		if status < 200 || status >= 300 {
			j.error = fmt.Sprintf("Failed to load jobs (status: %d)", status)
			return
		}
		var jobs []Job
		if err := json.Unmarshal([]byte(text), &jobs); err != nil {
			j.error = "Failed to parse jobs: " + err.Error()
			return
		}
		j.jobs = jobs
	})
}
