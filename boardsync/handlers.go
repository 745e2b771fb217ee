package boardsync

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/ledgersync_backend/config"
	"bitbucket.org/mmdatafocus/ledgersync_backend/models"
	"bitbucket.org/mmdatafocus/ledgersync_backend/transfer"
	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const runLockKey = "lock:board-sync-run"

// RunSyncHandler runs transfer-then-reconcile inline and answers with the
// pipeline summary. Uncaught pipeline errors become a generic 500 with the
// message string only.
func RunSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		// Redis lock is a best-effort guard against overlapping manual runs.
		// Correctness still relies on callers not overlapping executions; the
		// group-creation race across concurrent runs is a known limitation.
		lock := obtainRunLock(c, logger)
		defer releaseRunLock(c, logger, lock)

		db := config.GetMirrorDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not ready"})
			return
		}

		run := models.SyncRun{
			Status:      models.SyncRunStatusQueued,
			TriggeredBy: models.SyncTriggeredManual,
		}
		if err := db.WithContext(c.Request.Context()).Create(&run).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		summary, err := executeRun(c.Request.Context(), logger, run.ID)
		if err != nil {
			config.LogError(logger, "handlers.go", "RunSyncHandler", "execute run", run.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, RunResponse{
			Status:      "success",
			SyncedItems: summary.SyncedItems,
			FailedItems: summary.FailedItems,
			Details:     summary.Details,
		})
	}
}

// RunTransferHandler runs the transfer stage alone.
func RunTransferHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		sourceDB := config.GetSourceDB()
		mirrorDB := config.GetMirrorDB()
		if sourceDB == nil || mirrorDB == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not ready"})
			return
		}
		settings := config.GetBoardSettings()

		from, to := transfer.DefaultRange(settings.TransferLookbackDays)
		result, err := transfer.Run(c.Request.Context(), logger,
			models.NewLedgerStore(sourceDB),
			models.NewMirrorStore(mirrorDB),
			from, to)
		if err != nil {
			config.LogError(logger, "handlers.go", "RunTransferHandler", "transfer", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, TransferResponse{
			Status:   "success",
			Scanned:  result.Scanned,
			Inserted: result.Inserted,
		})
	}
}

// EnqueueSyncHandler records a queued run and publishes it for the push
// consumer, returning immediately with the run id.
func EnqueueSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetMirrorDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not ready"})
			return
		}

		run := models.SyncRun{
			Status:      models.SyncRunStatusQueued,
			TriggeredBy: models.SyncTriggeredQueue,
		}
		if err := db.WithContext(c.Request.Context()).Create(&run).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		// Publish is best-effort: the run row already exists and a later push
		// redelivery or manual trigger can still pick it up.
		if err := PublishSyncRun(c.Request.Context(), run.ID); err != nil {
			config.LogError(config.GetLogger(), "handlers.go", "EnqueueSyncHandler", "publish sync run", run.ID, err)
		}

		c.JSON(http.StatusOK, gin.H{"id": run.ID})
	}
}

// SyncHistoryHandler lists recent runs, newest first.
func SyncHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetMirrorDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not ready"})
			return
		}

		limit := 20
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		var runs []models.SyncRun
		if err := db.WithContext(c.Request.Context()).
			Order("id desc").
			Limit(limit).
			Find(&runs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		items := make([]SyncRunResponse, 0, len(runs))
		for _, run := range runs {
			items = append(items, mapRunToResponse(run))
		}
		c.JSON(http.StatusOK, SyncHistoryResponse{Items: items})
	}
}

// SyncRunDetailHandler returns one run with its per-record details and
// failure rows.
func SyncRunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetMirrorDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not ready"})
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		run, errs, err := loadRunWithErrors(c, db, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, SyncRunDetailResponse{
			SyncRunResponse: mapRunToResponse(*run),
			Details:         decodeDetails(run.DetailsJSON),
			Errors:          mapErrors(errs),
		})
	}
}

func loadRunWithErrors(c *gin.Context, db *gorm.DB, id int) (*models.SyncRun, []models.SyncRunError, error) {
	var run models.SyncRun
	if err := db.WithContext(c.Request.Context()).Where("id = ?", id).Take(&run).Error; err != nil {
		return nil, nil, err
	}
	var errs []models.SyncRunError
	if err := db.WithContext(c.Request.Context()).
		Where("sync_run_id = ?", run.ID).
		Order("id desc").
		Find(&errs).Error; err != nil {
		return nil, nil, err
	}
	return &run, errs, nil
}

func obtainRunLock(c *gin.Context, logger *logrus.Logger) *redislock.Lock {
	redisLock := config.GetRedisLock()
	if redisLock == nil {
		logger.WithFields(logrus.Fields{
			"field": "RunSyncHandler",
		}).Warn("redis lock not ready; proceeding without redis lock")
		return nil
	}
	lock, err := redisLock.Obtain(c.Request.Context(), runLockKey, 10*time.Minute, nil)
	if err == redislock.ErrNotObtained {
		logger.WithFields(logrus.Fields{
			"field": "RunSyncHandler",
		}).Warn("could not obtain redis lock; proceeding without redis lock")
		return nil
	} else if err != nil {
		logger.WithFields(logrus.Fields{
			"field": "RunSyncHandler",
		}).Warn("error obtaining redis lock; proceeding without redis lock: " + err.Error())
		return nil
	}
	return lock
}

func releaseRunLock(c *gin.Context, logger *logrus.Logger, lock *redislock.Lock) {
	if lock == nil {
		return
	}
	if err := lock.Release(c.Request.Context()); err != nil {
		logger.WithFields(logrus.Fields{
			"field": "RunSyncHandler",
		}).Warn("failed to release redis lock: " + err.Error())
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func mapRunToResponse(run models.SyncRun) SyncRunResponse {
	return SyncRunResponse{
		ID:                 run.ID,
		Status:             run.Status,
		StartedAt:          formatTime(run.StartedAt),
		FinishedAt:         formatTime(run.FinishedAt),
		DurationMs:         run.DurationMs,
		RecordsTransferred: run.RecordsTransferred,
		RecordsSynced:      run.RecordsSynced,
		ErrorCount:         run.ErrorCount,
		TriggeredBy:        run.TriggeredBy,
	}
}

func mapErrors(errorsList []models.SyncRunError) []SyncErrorResponse {
	out := make([]SyncErrorResponse, 0, len(errorsList))
	for _, errItem := range errorsList {
		out = append(out, SyncErrorResponse{
			ID:          errItem.ID,
			DocumentKey: errItem.DocumentKey,
			Message:     errItem.Message,
		})
	}
	return out
}
