package webapp

import (
	"testing"
	"time"
)

func TestFormatJobType(t *testing.T) {
	tests := map[string]string{
		"export":  "Page Export",
		"prune":   "Recent File Cleanup",
		"reindex": "Reindex",
		"":        "Job",
	}
	for jobType, want := range tests {
		if got := formatJobType(jobType); got != want {
			t.Errorf("formatJobType(%q) = %q, want %q", jobType, got, want)
		}
	}
}

func TestFormatTime(t *testing.T) {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Empty", "", ""},
		{"Unparseable", "yesterday", "yesterday"},
		{"Seconds ago", now.Add(-20 * time.Second).Format(time.RFC3339), "Just now"},
		{"One minute", now.Add(-time.Minute).Format(time.RFC3339), "1 minute ago"},
		{"Minutes", now.Add(-15 * time.Minute).Format(time.RFC3339), "15 minutes ago"},
		{"One hour", now.Add(-time.Hour).Format(time.RFC3339), "1 hour ago"},
		{"Hours", now.Add(-5 * time.Hour).Format(time.RFC3339), "5 hours ago"},
		{"Fractional seconds", now.Add(-3 * time.Hour).Format(time.RFC3339Nano), "3 hours ago"},
		{"Days", "2025-03-10T09:30:00Z", "Mar 10, 2025 at 9:30 AM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatTime(tt.input, now); got != tt.want {
				t.Errorf("formatTime(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatResult(t *testing.T) {
	tests := []struct {
		name   string
		result string
		want   string
	}{
		{
			name:   "Export summary",
			result: `{"pagesRendered":3,"pagesTotal":4,"bytesWritten":2048,"size":"2.00 KB","errors":1,"details":"/srv/exports/01J"}`,
			want:   "Rendered: 3 of 4 pages, Written: 2.00 KB, Errors: 1, Output: /srv/exports/01J",
		},
		{
			name:   "Export without errors",
			result: `{"pagesRendered":2,"pagesTotal":2,"size":"10.0 KB","errors":0}`,
			want:   "Rendered: 2 of 2 pages, Written: 10.0 KB",
		},
		{
			name:   "Prune counts",
			result: `{"recentFilesRemoved":2,"jobsRemoved":7}`,
			want:   "Recent files removed: 2, Jobs removed: 7",
		},
		{
			name:   "Unknown JSON is shown as is",
			result: `{"other":true}`,
			want:   `{"other":true}`,
		},
		{
			name:   "Plain text",
			result: "done",
			want:   "done",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatResult(tt.result); got != tt.want {
				t.Errorf("formatResult() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestJobsPageRenderStates(t *testing.T) {
	states := map[string]*JobsPage{
		"Loading": {loading: true},
		"Error":   {error: "Network error"},
		"Empty":   {},
		"Jobs": {jobs: []Job{
			{ID: "01J", Type: "export", Status: "running", Progress: 50, CurrentStep: "Page 2 (1 of 2)"},
			{ID: "01K", Type: "prune", Status: "completed", Result: `{"jobsRemoved":1}`, CompletedAt: "2025-03-10T09:30:00Z"},
			{ID: "01M", Type: "export", Status: "failed", Error: "disk full"},
		}},
	}
	for name, page := range states {
		if ui := page.Render(); ui == nil {
			t.Errorf("%s state should return non-nil UI", name)
		}
	}
}
