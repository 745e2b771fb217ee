package models

import "time"

const (
	SyncRunStatusQueued  = "queued"
	SyncRunStatusRunning = "running"
	SyncRunStatusSuccess = "success"
	SyncRunStatusFailed  = "failed"
	SyncRunStatusPartial = "partial"
)

const (
	SyncTriggeredManual = "manual"
	SyncTriggeredQueue  = "queue"
)

// SyncRun is one execution of the transfer+reconcile pipeline, persisted in
// the mirror database so run history survives restarts.
type SyncRun struct {
	ID                 uint       `gorm:"primary_key" json:"id"`
	Status             string     `gorm:"size:20;not null" json:"status"`
	TriggeredBy        string     `gorm:"size:20" json:"triggered_by"`
	RecordsTransferred int        `json:"records_transferred"`
	RecordsSynced      int        `json:"records_synced"`
	ErrorCount         int        `json:"error_count"`
	DetailsJSON        []byte     `gorm:"type:json" json:"details"`
	StartedAt          *time.Time `json:"started_at"`
	FinishedAt         *time.Time `json:"finished_at"`
	DurationMs         int64      `json:"duration_ms"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// SyncRunError records one failed document inside a run.
type SyncRunError struct {
	ID          uint      `gorm:"primary_key" json:"id"`
	SyncRunId   uint      `gorm:"index;not null" json:"sync_run_id"`
	DocumentKey string    `gorm:"size:50" json:"document_key"`
	Message     string    `gorm:"type:text" json:"message"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
