package transfer

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/ledgersync_backend/models"
	"github.com/sirupsen/logrus"
)

// LedgerSource reads invoice rows from the transactional store.
type LedgerSource interface {
	InvoicesInRange(ctx context.Context, from, to time.Time) ([]models.MirrorInvoice, error)
}

// MirrorSink holds the already-transferred rows and accepts new ones.
type MirrorSink interface {
	DocumentKeys(ctx context.Context) (map[string]struct{}, error)
	InsertInvoices(ctx context.Context, invoices []models.MirrorInvoice) error
}

type Result struct {
	Scanned  int `json:"scanned"`
	Inserted int `json:"inserted"`
}

// DefaultRange returns the inclusive date range covering the last `days`
// days, ending today.
func DefaultRange(days int) (time.Time, time.Time) {
	if days <= 0 {
		days = 180
	}
	to := time.Now()
	return to.AddDate(0, 0, -days), to
}

// Run copies ledger invoices in the date range into the mirror store,
// skipping every document key already present. The insert is all-or-nothing:
// re-running with an overlapping range inserts zero duplicates because the
// key set is recomputed from the mirror's current state each time.
func Run(ctx context.Context, logger *logrus.Logger, ledger LedgerSource, mirror MirrorSink, from, to time.Time) (Result, error) {
	transferred, err := mirror.DocumentKeys(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read transferred keys: %w", err)
	}

	rows, err := ledger.InvoicesInRange(ctx, from, to)
	if err != nil {
		return Result{}, fmt.Errorf("query ledger invoices: %w", err)
	}

	fresh := make([]models.MirrorInvoice, 0, len(rows))
	for _, row := range rows {
		if _, ok := transferred[row.DocumentKey]; ok {
			continue
		}
		fresh = append(fresh, row)
	}

	res := Result{Scanned: len(rows), Inserted: len(fresh)}
	if len(fresh) == 0 {
		logger.WithFields(logrus.Fields{
			"scanned": res.Scanned,
			"from":    from.Format("2006-01-02"),
			"to":      to.Format("2006-01-02"),
		}).Info("no new invoices to transfer in range")
		return res, nil
	}

	if err := mirror.InsertInvoices(ctx, fresh); err != nil {
		return Result{Scanned: res.Scanned}, fmt.Errorf("insert mirror invoices: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"scanned":  res.Scanned,
		"inserted": res.Inserted,
		"from":     from.Format("2006-01-02"),
		"to":       to.Format("2006-01-02"),
	}).Info("invoices transferred to mirror store")
	return res, nil
}
