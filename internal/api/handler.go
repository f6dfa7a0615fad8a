package api

import (
	"encoding/json"
	"net/http"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kmicac/matchsync/internal/codec"
	"github.com/kmicac/matchsync/internal/config"
	"github.com/kmicac/matchsync/internal/models"
	"github.com/kmicac/matchsync/internal/scheduler"
	"github.com/kmicac/matchsync/internal/syncer"
	"github.com/kmicac/matchsync/pkg/logger"
)

const Version = "1.0.0"

type Handler struct {
	config    *config.Config
	scheduler *scheduler.Scheduler
	syncer    *syncer.Syncer
}

func NewHandler(cfg *config.Config, sched *scheduler.Scheduler, s *syncer.Syncer) *Handler {
	return &Handler{
		config:    cfg,
		scheduler: sched,
		syncer:    s,
	}
}

// HealthCheck returns the health status of the service
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   Version,
	}

	respondJSON(w, http.StatusOK, response)
}

// GetStatus returns the scheduler state and the configured sources
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	sched := h.scheduleConfig()

	lastRun := h.scheduler.LastRun()
	if db := config.GetDB(); db != nil {
		var lastJob models.SyncJob
		if err := db.Where("status = ?", "completed").Order("completed_at DESC").First(&lastJob).Error; err == nil {
			if lastRun == nil || (lastJob.CompletedAt != nil && lastJob.CompletedAt.After(*lastRun)) {
				lastRun = lastJob.CompletedAt
			}
		}
	}

	leagues := make([]string, 0, len(h.config.Stats.Leagues))
	for code := range h.config.Stats.Leagues {
		leagues = append(leagues, code)
	}
	slices.Sort(leagues)

	response := models.StatusResponse{
		LastRun:         lastRun,
		NextRun:         h.scheduler.GetNextRun(),
		IsRunning:       h.scheduler.IsRunning(),
		CurrentJob:      h.scheduler.CurrentJob(),
		ScheduleEnabled: sched.Enabled,
		CronExpression:  sched.CronExpr,
		Competitions:    h.config.Schedule.Competitions,
		StatsLeagues:    leagues,
	}

	respondJSON(w, http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Status retrieved successfully",
		Data:    response,
	})
}

// TriggerSync starts a sync job of the kind named in the path
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, mux.Vars(r)["kind"])
}

// DedupeVideos starts the video list deduplication pass
func (h *Handler) DedupeVideos(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, syncer.JobVideos)
}

func (h *Handler) trigger(w http.ResponseWriter, kind string) {
	logger.Info("Manual sync triggered", zap.String("kind", kind))

	err := h.scheduler.Trigger(kind)
	switch {
	case errors.Is(err, scheduler.ErrUnknownKind):
		respondJSON(w, http.StatusBadRequest, models.APIResponse{
			Success: false,
			Error:   err.Error(),
		})
		return
	case errors.Is(err, scheduler.ErrBusy):
		respondJSON(w, http.StatusConflict, models.APIResponse{
			Success: false,
			Error:   err.Error(),
		})
		return
	case err != nil:
		respondJSON(w, http.StatusInternalServerError, models.APIResponse{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusAccepted, models.APIResponse{
		Success: true,
		Message: "Sync started",
		Data:    map[string]string{"kind": kind},
	})
}

// GetFixtures returns the stored fixtures of a competition
func (h *Handler) GetFixtures(w http.ResponseWriter, r *http.Request) {
	comp := mux.Vars(r)["competition"]
	if !slices.Contains(h.config.Schedule.Competitions, comp) {
		notFound(w, "Competition not configured")
		return
	}
	h.serveCollection(w, h.syncer.FixturePath(comp), "Fixtures retrieved successfully")
}

// GetStats returns the stored stats fixtures of a league
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	if _, ok := h.config.Stats.Leagues[code]; !ok {
		notFound(w, "League not configured")
		return
	}
	h.serveCollection(w, h.syncer.StatsPath(code), "Stats retrieved successfully")
}

// GetTeams returns the stored team list of a competition
func (h *Handler) GetTeams(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	if !slices.Contains(h.config.Teams.Competitions, code) {
		notFound(w, "Competition not configured")
		return
	}
	h.serveCollection(w, h.syncer.TeamsPath(code), "Teams retrieved successfully")
}

// GetHighlights returns the linked highlights, or the raw list with ?raw=true
func (h *Handler) GetHighlights(w http.ResponseWriter, r *http.Request) {
	path := h.syncer.LinkedPath()
	if raw, _ := strconv.ParseBool(r.URL.Query().Get("raw")); raw {
		path = h.syncer.HighlightsPath()
	}
	h.serveCollection(w, path, "Highlights retrieved successfully")
}

func (h *Handler) serveCollection(w http.ResponseWriter, path, message string) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		notFound(w, "No data synchronized yet")
		return
	}
	if err != nil {
		logger.Error("Failed to read collection", zap.String("path", path), zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, models.APIResponse{
			Success: false,
			Error:   "Failed to read collection",
		})
		return
	}

	respondJSON(w, http.StatusOK, models.APIResponse{
		Success: true,
		Message: message,
		Data:    json.RawMessage(data),
	})
}

// GetScheduleConfig returns the current schedule configuration
func (h *Handler) GetScheduleConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Schedule config retrieved successfully",
		Data:    h.scheduleConfig(),
	})
}

// UpdateScheduleConfig updates the schedule configuration
func (h *Handler) UpdateScheduleConfig(w http.ResponseWriter, r *http.Request) {
	var input struct {
		CronExpr string `json:"cron_expr"`
		Enabled  bool   `json:"enabled"`
	}

	if err := codec.JSON.NewDecoder(r.Body).Decode(&input); err != nil {
		respondJSON(w, http.StatusBadRequest, models.APIResponse{
			Success: false,
			Error:   "Invalid request body",
		})
		return
	}

	if err := h.scheduler.UpdateSchedule(input.CronExpr, input.Enabled); err != nil {
		respondJSON(w, http.StatusBadRequest, models.APIResponse{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	scheduleConfig := h.scheduleConfig()
	scheduleConfig.CronExpr = input.CronExpr
	scheduleConfig.Enabled = input.Enabled

	if db := config.GetDB(); db != nil {
		if err := db.Save(&scheduleConfig).Error; err != nil {
			logger.Error("Failed to persist schedule config", zap.Error(err))
			respondJSON(w, http.StatusInternalServerError, models.APIResponse{
				Success: false,
				Error:   "Failed to update schedule config",
			})
			return
		}
	} else {
		h.config.Scheduler.CronExpression = input.CronExpr
		h.config.Scheduler.Enabled = input.Enabled
	}

	respondJSON(w, http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Schedule config updated successfully",
		Data:    scheduleConfig,
	})
}

// scheduleConfig reads the ledger's schedule row, falling back to the
// configured schedule without a ledger.
func (h *Handler) scheduleConfig() models.ScheduleConfig {
	fallback := models.ScheduleConfig{
		CronExpr: h.config.Scheduler.CronExpression,
		Enabled:  h.config.Scheduler.Enabled,
	}
	db := config.GetDB()
	if db == nil {
		return fallback
	}
	var scheduleConfig models.ScheduleConfig
	if err := db.First(&scheduleConfig).Error; err != nil {
		return fallback
	}
	return scheduleConfig
}

// GetJobs returns sync job history
func (h *Handler) GetJobs(w http.ResponseWriter, r *http.Request) {
	db := config.GetDB()
	if db == nil {
		ledgerUnavailable(w)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	offset := (page - 1) * limit

	query := db.Model(&models.SyncJob{})
	if jobType := r.URL.Query().Get("type"); jobType != "" {
		query = query.Where("job_type = ?", jobType)
	}

	var total int64
	query.Count(&total)

	var jobs []models.SyncJob
	query.Offset(offset).Limit(limit).Order("created_at DESC").Find(&jobs)

	respondJSON(w, http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Jobs retrieved successfully",
		Data: map[string]interface{}{
			"jobs":  jobs,
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetJobByID returns a specific job
func (h *Handler) GetJobByID(w http.ResponseWriter, r *http.Request) {
	db := config.GetDB()
	if db == nil {
		ledgerUnavailable(w)
		return
	}

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		notFound(w, "Job not found")
		return
	}

	var job models.SyncJob
	if err := db.First(&job, id).Error; err != nil {
		notFound(w, "Job not found")
		return
	}

	respondJSON(w, http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Job retrieved successfully",
		Data:    job,
	})
}

func notFound(w http.ResponseWriter, msg string) {
	respondJSON(w, http.StatusNotFound, models.APIResponse{
		Success: false,
		Error:   msg,
	})
}

func ledgerUnavailable(w http.ResponseWriter) {
	respondJSON(w, http.StatusServiceUnavailable, models.APIResponse{
		Success: false,
		Error:   "Job ledger is not available",
	})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := codec.JSON.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("Failed to write response", zap.Error(err))
	}
}
