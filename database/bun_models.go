package database

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/uptrace/bun"
)

// BunRecentFile represents the recent_files table for Bun ORM
type BunRecentFile struct {
	bun.BaseModel `bun:"table:recent_files,alias:rf"`

	ID         string    `bun:"id,pk"` // ULID as string
	Path       string    `bun:"path,notnull,unique"`
	Name       string    `bun:"name,notnull"`
	Size       int64     `bun:"size,notnull,default:0"`
	PageCount  int       `bun:"page_count,notnull,default:0"`
	Encrypted  bool      `bun:"encrypted,notnull,default:false"`
	OpenCount  int       `bun:"open_count,notnull,default:1"`
	LastOpened time.Time `bun:"last_opened,notnull,default:current_timestamp"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// ToRecentFile converts BunRecentFile to RecentFile
func (rf *BunRecentFile) ToRecentFile() (*RecentFile, error) {
	parsedULID, err := ulid.Parse(rf.ID)
	if err != nil {
		return nil, err
	}
	return &RecentFile{
		ID:         parsedULID,
		Path:       rf.Path,
		Name:       rf.Name,
		Size:       rf.Size,
		PageCount:  rf.PageCount,
		Encrypted:  rf.Encrypted,
		OpenCount:  rf.OpenCount,
		LastOpened: rf.LastOpened,
		CreatedAt:  rf.CreatedAt,
	}, nil
}

// FromRecentFile converts RecentFile to BunRecentFile
func FromRecentFile(file *RecentFile) *BunRecentFile {
	return &BunRecentFile{
		ID:         file.ID.String(),
		Path:       file.Path,
		Name:       file.Name,
		Size:       file.Size,
		PageCount:  file.PageCount,
		Encrypted:  file.Encrypted,
		OpenCount:  file.OpenCount,
		LastOpened: file.LastOpened,
		CreatedAt:  file.CreatedAt,
	}
}

// BunJob represents the jobs table for Bun ORM
type BunJob struct {
	bun.BaseModel `bun:"table:jobs,alias:j"`

	ID          string     `bun:"id,pk"` // ULID as string
	Type        string     `bun:"type,notnull"`
	Status      string     `bun:"status,notnull,default:'pending'"`
	Progress    int        `bun:"progress,notnull,default:0"`
	CurrentStep string     `bun:"current_step,notnull,default:''"`
	TotalSteps  int        `bun:"total_steps,notnull,default:0"`
	Message     string     `bun:"message,notnull,default:''"`
	Error       string     `bun:"error,nullzero"`
	Result      string     `bun:"result,nullzero"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
	StartedAt   *time.Time `bun:"started_at,nullzero"`
	CompletedAt *time.Time `bun:"completed_at,nullzero"`
}

// ToJob converts BunJob to Job
func (bj *BunJob) ToJob() (*Job, error) {
	parsedULID, err := ulid.Parse(bj.ID)
	if err != nil {
		return nil, err
	}

	return &Job{
		ID:          parsedULID,
		Type:        JobType(bj.Type),
		Status:      JobStatus(bj.Status),
		Progress:    bj.Progress,
		CurrentStep: bj.CurrentStep,
		TotalSteps:  bj.TotalSteps,
		Message:     bj.Message,
		Error:       bj.Error,
		Result:      bj.Result,
		CreatedAt:   bj.CreatedAt,
		UpdatedAt:   bj.UpdatedAt,
		StartedAt:   bj.StartedAt,
		CompletedAt: bj.CompletedAt,
	}, nil
}

// FromJob converts Job to BunJob
func FromJob(job *Job) *BunJob {
	return &BunJob{
		ID:          job.ID.String(),
		Type:        string(job.Type),
		Status:      string(job.Status),
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		TotalSteps:  job.TotalSteps,
		Message:     job.Message,
		Error:       job.Error,
		Result:      job.Result,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
}
