package boardsync

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/ledgersync_backend/config"
	"bitbucket.org/mmdatafocus/ledgersync_backend/models"
	"bitbucket.org/mmdatafocus/ledgersync_backend/transfer"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// executeRun drives the full pipeline (transfer, then reconcile) for one
// persisted SyncRun, recording its outcome on the run row. Transfer-stage
// errors are fatal to the run; reconcile failures are per-record and make
// the run partial rather than failed.
func executeRun(ctx context.Context, logger *logrus.Logger, runId uint) (Summary, error) {
	sourceDB := config.GetSourceDB()
	mirrorDB := config.GetMirrorDB()
	if sourceDB == nil || mirrorDB == nil {
		return Summary{}, errors.New("databases not ready")
	}
	settings := config.GetBoardSettings()
	if settings == nil {
		return Summary{}, errors.New("board settings not loaded")
	}

	client, err := NewClient(settings.APIURL, settings.APIKey, logger)
	if err != nil {
		return Summary{}, err
	}

	db := mirrorDB.WithContext(ctx)
	startedAt := time.Now()
	if runId != 0 {
		if err := db.Model(&models.SyncRun{}).Where("id = ?", runId).Updates(map[string]interface{}{
			"status":     models.SyncRunStatusRunning,
			"started_at": startedAt,
		}).Error; err != nil {
			return Summary{}, err
		}
	}

	from, to := transfer.DefaultRange(settings.TransferLookbackDays)
	transferred, err := transfer.Run(ctx, logger,
		models.NewLedgerStore(sourceDB),
		models.NewMirrorStore(mirrorDB),
		from, to)
	if err != nil {
		finalizeRun(db, logger, runId, models.SyncRunStatusFailed, transferred.Inserted, Summary{}, startedAt)
		return Summary{}, err
	}

	reconciler := &Reconciler{
		Store:        models.NewMirrorStore(mirrorDB),
		Board:        client,
		BoardId:      settings.BoardId,
		LookbackDays: settings.SyncLookbackDays,
		Logger:       logger,
	}
	summary, err := reconciler.Run(ctx)
	if err != nil {
		finalizeRun(db, logger, runId, models.SyncRunStatusFailed, transferred.Inserted, summary, startedAt)
		return Summary{}, err
	}

	status := models.SyncRunStatusSuccess
	if summary.FailedItems > 0 && summary.SyncedItems == 0 {
		status = models.SyncRunStatusFailed
	} else if summary.FailedItems > 0 {
		status = models.SyncRunStatusPartial
	}
	finalizeRun(db, logger, runId, status, transferred.Inserted, summary, startedAt)
	return summary, nil
}

func finalizeRun(db *gorm.DB, logger *logrus.Logger, runId uint, status string, recordsTransferred int, summary Summary, startedAt time.Time) {
	if runId == 0 {
		return
	}

	finishedAt := time.Now()
	detailsJSON, _ := json.Marshal(summary.Details)
	if err := db.Model(&models.SyncRun{}).Where("id = ?", runId).Updates(map[string]interface{}{
		"status":              status,
		"records_transferred": recordsTransferred,
		"records_synced":      summary.SyncedItems,
		"error_count":         summary.FailedItems,
		"details_json":        detailsJSON,
		"finished_at":         finishedAt,
		"duration_ms":         finishedAt.Sub(startedAt).Milliseconds(),
	}).Error; err != nil {
		config.LogError(logger, "runs.go", "finalizeRun", "update sync run", runId, err)
	}

	for _, detail := range summary.Details {
		if detail.Status != RecordStatusFailed {
			continue
		}
		errRec := models.SyncRunError{
			SyncRunId:   runId,
			DocumentKey: detail.DocumentKey,
			Message:     detail.Error,
		}
		if err := db.Create(&errRec).Error; err != nil {
			config.LogError(logger, "runs.go", "finalizeRun", "create sync run error", detail.DocumentKey, err)
		}
	}
}

// processQueuedRun executes a run that arrived via the Pub/Sub push endpoint.
// Terminal runs are skipped so redelivered messages stay idempotent.
func processQueuedRun(ctx context.Context, logger *logrus.Logger, payload SyncRunPayload) error {
	if payload.RunId == 0 {
		return errors.New("invalid payload")
	}
	db := config.GetMirrorDB()
	if db == nil {
		return errors.New("mirror database not ready")
	}

	var run models.SyncRun
	if err := db.WithContext(ctx).Where("id = ?", payload.RunId).Take(&run).Error; err != nil {
		return err
	}
	if run.Status == models.SyncRunStatusSuccess || run.Status == models.SyncRunStatusFailed || run.Status == models.SyncRunStatusPartial {
		return nil
	}

	_, err := executeRun(ctx, logger, run.ID)
	return err
}
