package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// LedgerStore reads invoice rows from the source transactional database.
// The reference tables (customers, currencies, sales persons) are opaque
// lookups; we only ever join them for display names.
type LedgerStore struct {
	db *gorm.DB
}

func NewLedgerStore(db *gorm.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// InvoicesInRange returns ledger invoices whose document date falls in the
// inclusive range, shaped as mirror rows ready for insertion. The
// base-currency amount is derived in SQL; a zero exchange rate yields zero
// rather than an error.
func (s *LedgerStore) InvoicesInRange(ctx context.Context, from, to time.Time) ([]MirrorInvoice, error) {
	var invoices []MirrorInvoice
	err := s.db.WithContext(ctx).Raw(`
		SELECT i.document_key,
		       c.name AS customer_name,
		       i.order_ref,
		       i.document_date,
		       i.due_date,
		       cur.description AS currency,
		       i.exchange_rate,
		       i.amount,
		       CASE WHEN i.exchange_rate = 0 THEN 0 ELSE i.amount / i.exchange_rate END AS base_amount,
		       sp.name AS sales_person
		FROM invoices i
		JOIN customers c ON i.customer_id = c.id
		JOIN currencies cur ON i.currency_id = cur.id
		JOIN sales_persons sp ON i.sales_person_id = sp.id
		WHERE i.document_date BETWEEN ? AND ?`,
		from, to,
	).Scan(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}
