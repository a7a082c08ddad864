package engine

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/drummonds/pdfbitmap/config"
	"github.com/drummonds/pdfbitmap/database"
)

func TestPruneJobFunc(t *testing.T) {
	serverHandler := newTestServer(t, newFakeRenderer())
	ctx := context.Background()

	kept := writeDocument(t, "kept.pdf", 1)
	removed := writeDocument(t, "removed.pdf", 1)
	for _, path := range []string{kept, removed} {
		file, err := database.NewRecentFile(path, 1, false)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := serverHandler.DB.TouchRecentFile(ctx, file); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Remove(removed); err != nil {
		t.Fatal(err)
	}

	serverHandler.pruneJobFunc(ctx)

	files, err := serverHandler.DB.GetRecentFiles(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Path != kept {
		t.Errorf("Expected only %s to remain, got %+v", kept, files)
	}

	jobs, err := serverHandler.DB.GetRecentJobs(ctx, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 || jobs[0].Type != database.JobTypePrune {
		t.Fatalf("Expected one prune job, got %+v", jobs)
	}
	if jobs[0].Status != database.JobStatusCompleted {
		t.Errorf("Expected completed prune job, got %s (%s)", jobs[0].Status, jobs[0].Error)
	}
	var counts map[string]int
	if err := json.Unmarshal([]byte(jobs[0].Result), &counts); err != nil {
		t.Fatalf("Prune result is not JSON: %v", err)
	}
	if counts["recentFilesRemoved"] != 1 {
		t.Errorf("Expected 1 recent file removed, got %v", counts)
	}
}

func TestInitializeSchedules(t *testing.T) {
	serverHandler := newTestServer(t, newFakeRenderer())
	c := serverHandler.InitializeSchedules()
	defer c.Stop()

	entries := c.Entries()
	if len(entries) != 1 {
		t.Fatalf("Expected one scheduled job, got %d", len(entries))
	}
	if entries[0].Next.IsZero() {
		t.Error("Expected the prune job to have a next run time")
	}
}

func TestStartupChecks(t *testing.T) {
	t.Run("Creates export directory and normalizes format", func(t *testing.T) {
		exportPath := filepath.Join(t.TempDir(), "nested", "exports")
		serverHandler := &ServerHandler{
			Renderer:     newFakeRenderer(),
			ServerConfig: config.ViewerConfig{RenderBackend: "pdfium", ExportPath: exportPath, ExportFormat: "JPEG"},
		}
		if err := serverHandler.StartupChecks(); err != nil {
			t.Fatalf("StartupChecks: %v", err)
		}
		if info, err := os.Stat(exportPath); err != nil || !info.IsDir() {
			t.Errorf("Expected %s to be created", exportPath)
		}
		if serverHandler.ServerConfig.ExportFormat != "jpg" {
			t.Errorf("Expected jpg, got %s", serverHandler.ServerConfig.ExportFormat)
		}
	})

	t.Run("Unsupported format falls back to png", func(t *testing.T) {
		serverHandler := &ServerHandler{
			Renderer:     newFakeRenderer(),
			ServerConfig: config.ViewerConfig{ExportPath: t.TempDir(), ExportFormat: "webp"},
		}
		if err := serverHandler.StartupChecks(); err != nil {
			t.Fatalf("StartupChecks: %v", err)
		}
		if serverHandler.ServerConfig.ExportFormat != "png" {
			t.Errorf("Expected png, got %s", serverHandler.ServerConfig.ExportFormat)
		}
	})

	t.Run("Export path that is a file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "exports")
		if err := os.WriteFile(file, nil, 0644); err != nil {
			t.Fatal(err)
		}
		serverHandler := &ServerHandler{Renderer: newFakeRenderer(), ServerConfig: config.ViewerConfig{ExportPath: file}}
		if err := serverHandler.StartupChecks(); err == nil {
			t.Error("Expected an error when the export path is a file")
		}
	})

	t.Run("Missing renderer", func(t *testing.T) {
		serverHandler := &ServerHandler{ServerConfig: config.ViewerConfig{ExportPath: t.TempDir()}}
		if err := serverHandler.StartupChecks(); err == nil {
			t.Error("Expected an error without a renderer")
		}
	})
}
