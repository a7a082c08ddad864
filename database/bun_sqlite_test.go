package database

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/drummonds/pdfbitmap/config"
	"github.com/oklog/ulid/v2"
)

func newTestRepository(t *testing.T) *BunDB {
	t.Helper()
	Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	dbFile := filepath.Join(t.TempDir(), "test_pdfbitmap_"+ulid.Make().String()+".sqlite")
	db, err := NewRepository(config.ViewerConfig{DatabaseType: "sqlite", DatabaseDbname: dbFile})
	if err != nil {
		t.Fatalf("Failed to set up sqlite repository: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("%PDF-1.4\n"), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestBunSQLiteRecentFiles(t *testing.T) {
	db := newTestRepository(t)
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("Touch same path twice keeps one row", func(t *testing.T) {
		path := writeFile(t, dir, "report.pdf")
		file, err := NewRecentFile(path, 3, false)
		if err != nil {
			t.Fatalf("NewRecentFile: %v", err)
		}

		first, err := db.TouchRecentFile(ctx, file)
		if err != nil {
			t.Fatalf("First touch failed: %v", err)
		}
		if first.OpenCount != 1 {
			t.Errorf("Expected open count 1, got %d", first.OpenCount)
		}

		file.PageCount = 4
		second, err := db.TouchRecentFile(ctx, file)
		if err != nil {
			t.Fatalf("Second touch failed: %v", err)
		}
		if second.ID != first.ID {
			t.Errorf("Expected the same record, got %s and %s", first.ID, second.ID)
		}
		if second.OpenCount != 2 {
			t.Errorf("Expected open count 2, got %d", second.OpenCount)
		}
		if second.PageCount != 4 {
			t.Errorf("Expected refreshed page count 4, got %d", second.PageCount)
		}

		files, err := db.GetRecentFiles(ctx, 0)
		if err != nil {
			t.Fatalf("GetRecentFiles: %v", err)
		}
		if len(files) != 1 {
			t.Fatalf("Expected one recent file, got %d", len(files))
		}
		if files[0].Name != "report.pdf" {
			t.Errorf("Expected name report.pdf, got %s", files[0].Name)
		}
	})

	t.Run("Newest first and enumerate skips missing files", func(t *testing.T) {
		older := writeFile(t, dir, "older.pdf")
		newer := writeFile(t, dir, "newer.pdf")
		for _, path := range []string{older, newer} {
			time.Sleep(5 * time.Millisecond)
			file, err := NewRecentFile(path, 1, false)
			if err != nil {
				t.Fatalf("NewRecentFile: %v", err)
			}
			if _, err := db.TouchRecentFile(ctx, file); err != nil {
				t.Fatalf("Touch %s failed: %v", path, err)
			}
		}

		files, err := db.GetRecentFiles(ctx, 2)
		if err != nil {
			t.Fatalf("GetRecentFiles: %v", err)
		}
		if len(files) != 2 || files[0].Name != "newer.pdf" || files[1].Name != "older.pdf" {
			t.Fatalf("Unexpected order: %+v", files)
		}

		if err := os.Remove(newer); err != nil {
			t.Fatal(err)
		}
		existing, err := EnumerateRecentFiles(ctx, db, 0)
		if err != nil {
			t.Fatalf("EnumerateRecentFiles: %v", err)
		}
		for _, file := range existing {
			if file.Name == "newer.pdf" {
				t.Error("Expected removed file to be skipped")
			}
		}
		if len(existing) != 2 {
			t.Errorf("Expected 2 surviving files, got %d", len(existing))
		}

		limited, err := EnumerateRecentFiles(ctx, db, 1)
		if err != nil {
			t.Fatalf("EnumerateRecentFiles: %v", err)
		}
		if len(limited) != 1 || limited[0].Name != "older.pdf" {
			t.Errorf("Expected only older.pdf, got %+v", limited)
		}

		pruned, err := db.PruneMissingRecentFiles(ctx)
		if err != nil {
			t.Fatalf("PruneMissingRecentFiles: %v", err)
		}
		if pruned != 1 {
			t.Errorf("Expected 1 pruned file, got %d", pruned)
		}
	})

	t.Run("Delete recent file", func(t *testing.T) {
		path := writeFile(t, dir, "gone.pdf")
		file, err := NewRecentFile(path, 1, true)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := db.TouchRecentFile(ctx, file); err != nil {
			t.Fatal(err)
		}
		if err := db.DeleteRecentFile(ctx, file.Path); err != nil {
			t.Fatalf("DeleteRecentFile: %v", err)
		}
		files, err := db.GetRecentFiles(ctx, 0)
		if err != nil {
			t.Fatal(err)
		}
		for _, f := range files {
			if f.Path == file.Path {
				t.Error("Expected deleted path to be gone")
			}
		}
	})

	t.Run("NewRecentFile of a missing path fails", func(t *testing.T) {
		if _, err := NewRecentFile(filepath.Join(dir, "nope.pdf"), 1, false); err == nil {
			t.Error("Expected an error for a missing file")
		}
	})
}

func TestBunSQLiteJobs(t *testing.T) {
	db := newTestRepository(t)
	ctx := context.Background()

	job, err := db.CreateJob(ctx, JobTypeExport, "Exporting report.pdf")
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if job.Status != JobStatusPending {
		t.Errorf("Expected pending job, got %s", job.Status)
	}

	t.Run("Active jobs include pending and running", func(t *testing.T) {
		if err := db.UpdateJobStatus(ctx, job.ID, JobStatusRunning, "Rendering"); err != nil {
			t.Fatalf("UpdateJobStatus: %v", err)
		}
		if err := db.UpdateJobProgress(ctx, job.ID, 50, "Page 2 of 4"); err != nil {
			t.Fatalf("UpdateJobProgress: %v", err)
		}
		active, err := db.GetActiveJobs(ctx)
		if err != nil {
			t.Fatalf("GetActiveJobs: %v", err)
		}
		if len(active) != 1 || active[0].ID != job.ID {
			t.Fatalf("Expected the export job to be active, got %+v", active)
		}
		if active[0].Progress != 50 || active[0].CurrentStep != "Page 2 of 4" {
			t.Errorf("Unexpected progress %d %q", active[0].Progress, active[0].CurrentStep)
		}
		if active[0].StartedAt == nil {
			t.Error("Expected started_at to be set")
		}
	})

	t.Run("Complete job stores the result", func(t *testing.T) {
		summary, _ := json.Marshal(JobSummary{PagesRendered: 4, PagesTotal: 4, BytesWritten: 2048, Size: "2.00 KB"})
		if err := db.CompleteJob(ctx, job.ID, string(summary)); err != nil {
			t.Fatalf("CompleteJob: %v", err)
		}
		stored, err := db.GetJob(ctx, job.ID)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if stored.Status != JobStatusCompleted || stored.Progress != 100 {
			t.Errorf("Expected completed at 100%%, got %s at %d", stored.Status, stored.Progress)
		}
		if !stored.Finished() || stored.CompletedAt == nil {
			t.Error("Expected a finished job with completed_at")
		}
		var decoded JobSummary
		if err := json.Unmarshal([]byte(stored.Result), &decoded); err != nil {
			t.Fatalf("Result is not JSON: %v", err)
		}
		if decoded.PagesRendered != 4 {
			t.Errorf("Expected 4 pages rendered, got %d", decoded.PagesRendered)
		}
	})

	t.Run("Failed job keeps its error", func(t *testing.T) {
		failed, err := db.CreateJob(ctx, JobTypePrune, "Pruning")
		if err != nil {
			t.Fatal(err)
		}
		if err := db.UpdateJobError(ctx, failed.ID, "disk full"); err != nil {
			t.Fatalf("UpdateJobError: %v", err)
		}
		stored, err := db.GetJob(ctx, failed.ID)
		if err != nil {
			t.Fatal(err)
		}
		if stored.Status != JobStatusFailed || stored.Error != "disk full" {
			t.Errorf("Unexpected failed job %+v", stored)
		}
	})

	t.Run("Recent jobs and cleanup", func(t *testing.T) {
		jobs, err := db.GetRecentJobs(ctx, 10, 0)
		if err != nil {
			t.Fatalf("GetRecentJobs: %v", err)
		}
		if len(jobs) != 2 {
			t.Fatalf("Expected 2 jobs, got %d", len(jobs))
		}

		deleted, err := db.DeleteOldJobs(ctx, time.Hour)
		if err != nil {
			t.Fatalf("DeleteOldJobs: %v", err)
		}
		if deleted != 0 {
			t.Errorf("Expected fresh jobs to be kept, deleted %d", deleted)
		}

		deleted, err = db.DeleteOldJobs(ctx, -time.Minute)
		if err != nil {
			t.Fatalf("DeleteOldJobs: %v", err)
		}
		if deleted != 2 {
			t.Errorf("Expected both finished jobs deleted, got %d", deleted)
		}
	})

	t.Run("Unknown job", func(t *testing.T) {
		if _, err := db.GetJob(ctx, ulid.Make()); err == nil {
			t.Error("Expected an error for an unknown job")
		}
	})
}

func TestMigrationsAreRepeatable(t *testing.T) {
	db := newTestRepository(t)
	ctx := context.Background()

	if err := runMigrations(ctx, db.db); err != nil {
		t.Fatalf("Second migration run failed: %v", err)
	}
	if err := rollbackMigrations(ctx, db.db); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	if err := runMigrations(ctx, db.db); err != nil {
		t.Fatalf("Migration after rollback failed: %v", err)
	}
	if _, err := db.GetRecentFiles(ctx, 0); err != nil {
		t.Errorf("Expected recent_files to exist again: %v", err)
	}
}

func TestUnknownDatabaseType(t *testing.T) {
	if _, err := NewRepository(config.ViewerConfig{DatabaseType: "oracle"}); err == nil {
		t.Error("Expected an error for an unsupported database type")
	}
}
