package database

import (
	"context"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
)

// Logger is global since we will need it everywhere
var Logger = slog.New(slog.DiscardHandler)

// RecentFile is a document that has been opened through the service or the CLI
type RecentFile struct {
	ID         ulid.ULID `json:"id"`
	Path       string    `json:"path"` // absolute path to the file
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	PageCount  int       `json:"pageCount"`
	Encrypted  bool      `json:"encrypted"`
	OpenCount  int       `json:"openCount"`
	LastOpened time.Time `json:"lastOpened"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Repository defines database operations
type Repository interface {
	Close() error
	// Recent file methods
	TouchRecentFile(ctx context.Context, file RecentFile) (*RecentFile, error)
	GetRecentFiles(ctx context.Context, limit int) ([]RecentFile, error)
	DeleteRecentFile(ctx context.Context, path string) error
	PruneMissingRecentFiles(ctx context.Context) (int, error)
	// Job tracking methods
	CreateJob(ctx context.Context, jobType JobType, message string) (*Job, error)
	UpdateJobProgress(ctx context.Context, jobID ulid.ULID, progress int, currentStep string) error
	UpdateJobStatus(ctx context.Context, jobID ulid.ULID, status JobStatus, message string) error
	UpdateJobError(ctx context.Context, jobID ulid.ULID, errorMsg string) error
	CompleteJob(ctx context.Context, jobID ulid.ULID, result string) error
	GetJob(ctx context.Context, jobID ulid.ULID) (*Job, error)
	GetRecentJobs(ctx context.Context, limit, offset int) ([]Job, error)
	GetActiveJobs(ctx context.Context) ([]Job, error)
	DeleteOldJobs(ctx context.Context, olderThan time.Duration) (int, error)
}

// NewRecentFile describes path for TouchRecentFile, reading its size from disk
func NewRecentFile(path string, pageCount int, encrypted bool) (RecentFile, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return RecentFile{}, err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return RecentFile{}, err
	}
	return RecentFile{
		Path:      absPath,
		Name:      filepath.Base(absPath),
		Size:      info.Size(),
		PageCount: pageCount,
		Encrypted: encrypted,
	}, nil
}

// EnumerateRecentFiles returns up to limit recently opened files that still
// exist on disk, most recently opened first. A limit of zero or less returns
// every surviving entry.
func EnumerateRecentFiles(ctx context.Context, db Repository, limit int) ([]RecentFile, error) {
	files, err := db.GetRecentFiles(ctx, 0)
	if err != nil {
		Logger.Error("Unable to fetch recent files", "error", err)
		return nil, err
	}
	existing := make([]RecentFile, 0, len(files))
	for _, file := range files {
		if limit > 0 && len(existing) == limit {
			break
		}
		if _, err := os.Stat(file.Path); err != nil {
			Logger.Debug("Skipping recent file that is no longer readable", "path", file.Path, "error", err)
			continue
		}
		existing = append(existing, file)
	}
	return existing, nil
}

// CalculateUUID generates a ULID for a record created at time
func CalculateUUID(time time.Time) (ulid.ULID, error) {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.UnixNano())), 0)
	return ulid.New(ulid.Timestamp(time), entropy)
}
