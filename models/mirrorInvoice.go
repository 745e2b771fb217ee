package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MirrorInvoice is one row of the transfer ledger in the reporting database.
// Rows are inserted once by the transfer engine and mutated exactly once,
// when the remote board confirms item creation.
type MirrorInvoice struct {
	DocumentKey   string          `gorm:"primaryKey;size:50" json:"document_key"`
	CustomerName  string          `gorm:"size:100" json:"customer_name"`
	OrderRef      string          `gorm:"size:50" json:"order_ref"`
	DocumentDate  time.Time       `gorm:"not null" json:"document_date"`
	DueDate       time.Time       `gorm:"not null" json:"due_date"`
	Currency      string          `gorm:"size:100" json:"currency"`
	ExchangeRate  decimal.Decimal `gorm:"type:decimal(18,6);not null" json:"exchange_rate"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	BaseAmount    decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"base_amount"`
	SalesPerson   string          `gorm:"size:100" json:"sales_person"`
	Synchronized  bool            `gorm:"not null;default:false" json:"synchronized"`
	TransferredAt time.Time       `gorm:"autoCreateTime" json:"transferred_at"`
}

// MirrorStore is the data access layer for the transfer ledger. It owns no
// business logic; transaction boundaries are per method.
type MirrorStore struct {
	db *gorm.DB
}

func NewMirrorStore(db *gorm.DB) *MirrorStore {
	return &MirrorStore{db: db}
}

// DocumentKeys returns the full set of document keys already transferred.
func (s *MirrorStore) DocumentKeys(ctx context.Context) (map[string]struct{}, error) {
	var keys []string
	if err := s.db.WithContext(ctx).
		Model(&MirrorInvoice{}).
		Pluck("document_key", &keys).Error; err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set, nil
}

// InsertInvoices bulk-inserts new mirror rows in a single transaction.
// On any error the whole batch is rolled back.
func (s *MirrorStore) InsertInvoices(ctx context.Context, invoices []MirrorInvoice) error {
	if len(invoices) == 0 {
		return nil
	}
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := tx.Create(&invoices).Error; err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// UnsynchronizedInvoices returns mirror rows pending reconciliation whose
// document date falls inside the lookback window.
func (s *MirrorStore) UnsynchronizedInvoices(ctx context.Context, from, to time.Time) ([]MirrorInvoice, error) {
	var invoices []MirrorInvoice
	err := s.db.WithContext(ctx).
		Where("synchronized = ? AND document_date BETWEEN ? AND ?", false, from, to).
		Order("document_date, document_key").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

// MarkSynchronized flips the synchronized flag for one document. The flag only
// ever transitions false -> true; the single UPDATE is its own transaction so
// each confirmed record is durable before the next one is attempted.
func (s *MirrorStore) MarkSynchronized(ctx context.Context, documentKey string) error {
	return s.db.WithContext(ctx).
		Model(&MirrorInvoice{}).
		Where("document_key = ?", documentKey).
		Update("synchronized", true).Error
}
