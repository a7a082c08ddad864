package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/drummonds/pdfbitmap/database"
	"github.com/robfig/cron/v3"
)

// Logger is global since we will need it everywhere
var Logger = slog.New(slog.DiscardHandler)

// InitializeSchedules starts the housekeeping cron job and returns the
// scheduler so the caller can stop it on shutdown
func (serverHandler *ServerHandler) InitializeSchedules() *cron.Cron {
	interval := serverHandler.ServerConfig.PruneInterval
	if interval <= 0 {
		interval = 60
	}

	c := cron.New()
	var pruneJob cron.Job
	pruneJob = cron.FuncJob(func() { serverHandler.pruneJobFunc(context.Background()) })
	pruneJob = cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger)).Then(pruneJob) //ensure we don't kick off another if old one is still running
	if _, err := c.AddJob(fmt.Sprintf("@every %dm", interval), pruneJob); err != nil {
		Logger.Error("Unable to schedule prune job", "error", err)
	}
	Logger.Info("Adding prune job scheduler", "interval_minutes", interval)
	c.Start()
	return c
}

// pruneJobFunc forgets recent files that have been deleted and old finished
// jobs, recording the run as a prune job
func (serverHandler *ServerHandler) pruneJobFunc(ctx context.Context) {
	// Add panic recovery to prevent entire application crash
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("Panic recovered in prune job", "panic", r)
		}
	}()

	job, err := serverHandler.DB.CreateJob(ctx, database.JobTypePrune, "Pruning recent files and old jobs")
	if err != nil {
		Logger.Error("Failed to create prune job", "error", err)
		return
	}
	if err := serverHandler.DB.UpdateJobStatus(ctx, job.ID, database.JobStatusRunning, "Pruning"); err != nil {
		Logger.Error("Failed to update job status", "error", err)
	}

	files, err := serverHandler.DB.PruneMissingRecentFiles(ctx)
	if err != nil {
		Logger.Error("Unable to prune recent files", "error", err)
		serverHandler.DB.UpdateJobError(ctx, job.ID, err.Error())
		return
	}
	serverHandler.DB.UpdateJobProgress(ctx, job.ID, 50, "Deleting old jobs")

	retention := time.Duration(serverHandler.ServerConfig.JobRetention) * time.Hour
	jobs, err := serverHandler.DB.DeleteOldJobs(ctx, retention)
	if err != nil {
		Logger.Error("Unable to delete old jobs", "error", err)
		serverHandler.DB.UpdateJobError(ctx, job.ID, err.Error())
		return
	}

	Logger.Info("Prune job finished", "recentFiles", files, "jobs", jobs)
	result, _ := json.Marshal(map[string]int{"recentFilesRemoved": files, "jobsRemoved": jobs})
	if err := serverHandler.DB.CompleteJob(ctx, job.ID, string(result)); err != nil {
		Logger.Error("Failed to complete prune job", "error", err)
	}
}
