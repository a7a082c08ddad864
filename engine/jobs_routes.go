package engine

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/drummonds/pdfbitmap/database"
	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"
)

type jobResponse struct {
	database.Job
	Summary *database.JobSummary `json:"summary,omitempty"`
}

// GetJob retrieves an export or prune job by ID, with its decoded summary once
// it has completed
// @Summary Get job by ID
// @Tags Jobs
// @Accept json
// @Produce json
// @Param id path string true "Job ID (ULID)"
// @Success 200 {object} jobResponse "Job details"
// @Failure 400 {object} map[string]interface{} "Invalid job ID"
// @Failure 404 {object} map[string]interface{} "Job not found"
// @Router /jobs/{id} [get]
func (serverHandler *ServerHandler) GetJob(c echo.Context) error {
	jobIDStr := c.Param("id")
	jobID, err := ulid.Parse(jobIDStr)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "Invalid job ID format",
		})
	}

	job, err := serverHandler.DB.GetJob(c.Request().Context(), jobID)
	if err != nil {
		Logger.Error("Failed to get job", "jobID", jobIDStr, "error", err)
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "Job not found",
		})
	}

	response := jobResponse{Job: *job}
	if job.Status == database.JobStatusCompleted && job.Result != "" {
		summary := new(database.JobSummary)
		if err := json.Unmarshal([]byte(job.Result), summary); err != nil {
			Logger.Warn("Job result is not a summary", "jobID", jobIDStr, "error", err)
		} else {
			response.Summary = summary
		}
	}
	return c.JSON(http.StatusOK, response)
}

// GetRecentJobs retrieves recent jobs with pagination
// @Summary Get recent jobs
// @Tags Jobs
// @Accept json
// @Produce json
// @Param limit query int false "Number of jobs to return (default: 20)"
// @Param offset query int false "Offset for pagination (default: 0)"
// @Param type query string false "Only jobs of this type (export, prune)"
// @Success 200 {array} database.Job "List of jobs"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /jobs [get]
func (serverHandler *ServerHandler) GetRecentJobs(c echo.Context) error {
	limit := 20
	offset := 0
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}
	if offsetStr := c.QueryParam("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	jobs, err := serverHandler.DB.GetRecentJobs(c.Request().Context(), limit, offset)
	if err != nil {
		Logger.Error("Failed to get recent jobs", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to retrieve jobs",
		})
	}
	return c.JSON(http.StatusOK, filterJobs(jobs, database.JobType(c.QueryParam("type"))))
}

// GetActiveJobs retrieves exports that are still running or pending
// @Summary Get active jobs
// @Tags Jobs
// @Accept json
// @Produce json
// @Success 200 {array} database.Job "List of active jobs"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /jobs/active [get]
func (serverHandler *ServerHandler) GetActiveJobs(c echo.Context) error {
	jobs, err := serverHandler.DB.GetActiveJobs(c.Request().Context())
	if err != nil {
		Logger.Error("Failed to get active jobs", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to retrieve active jobs",
		})
	}
	return c.JSON(http.StatusOK, filterJobs(jobs, ""))
}

// filterJobs keeps jobs of jobType (all when empty) and never returns nil so
// the JSON is always an array
func filterJobs(jobs []database.Job, jobType database.JobType) []database.Job {
	filtered := make([]database.Job, 0, len(jobs))
	for _, job := range jobs {
		if jobType == "" || job.Type == jobType {
			filtered = append(filtered, job)
		}
	}
	return filtered
}
