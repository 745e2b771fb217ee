package models

import "gorm.io/gorm"

// MigrateMirrorTables provisions the reporting-side schema: the transfer
// ledger and the run history tables. Safe to call on every startup; the
// mirror table is created lazily on the first run against a fresh database.
func MigrateMirrorTables(db *gorm.DB) error {
	return db.AutoMigrate(
		&MirrorInvoice{},
		&SyncRun{},
		&SyncRunError{},
	)
}
