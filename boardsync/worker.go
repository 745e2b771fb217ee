package boardsync

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/ledgersync_backend/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("ledgersync-boardsync")

// MirrorSource is the slice of the mirror store the reconciler needs.
type MirrorSource interface {
	UnsynchronizedInvoices(ctx context.Context, from, to time.Time) ([]models.MirrorInvoice, error)
	MarkSynchronized(ctx context.Context, documentKey string) error
}

// Reconciler pushes unsynchronized mirror rows to the board, one at a time.
// Collaborators are injected explicitly so tests can substitute fakes.
type Reconciler struct {
	Store        MirrorSource
	Board        BoardAPI
	BoardId      string
	LookbackDays int
	Logger       *logrus.Logger
}

// Run fetches the candidate set and reconciles each record independently: a
// failed record is reported and skipped, never aborting the batch. Records
// are marked synchronized one commit at a time, so a crash mid-batch loses
// only the records not yet confirmed; the next run's selection predicate
// excludes everything already marked.
func (r *Reconciler) Run(ctx context.Context) (Summary, error) {
	ctx, span := tracer.Start(ctx, "boardsync.reconcile")
	defer span.End()

	days := r.LookbackDays
	if days <= 0 {
		days = 180
	}
	to := time.Now()
	from := to.AddDate(0, 0, -days)

	candidates, err := r.Store.UnsynchronizedInvoices(ctx, from, to)
	if err != nil {
		return Summary{}, err
	}

	r.Logger.WithFields(logrus.Fields{
		"module":     "boardsync",
		"candidates": len(candidates),
		"days_back":  days,
	}).Info("found unsynchronized invoices")

	summary := Summary{Details: make([]RecordResult, 0, len(candidates))}
	for _, invoice := range candidates {
		result := r.syncOne(ctx, invoice)
		if result.Status == RecordStatusSuccess {
			summary.SyncedItems++
		} else {
			summary.FailedItems++
		}
		summary.Details = append(summary.Details, result)
	}
	return summary, nil
}

func (r *Reconciler) syncOne(ctx context.Context, invoice models.MirrorInvoice) RecordResult {
	groupId, err := ResolveGroup(ctx, r.Board, r.BoardId, invoice.DocumentDate, r.Logger)
	if err != nil {
		return r.failed(invoice.DocumentKey, "", err)
	}

	itemId, err := r.Board.CreateItem(ctx, r.BoardId, invoice.DocumentKey, itemColumnValues(invoice), groupId)
	if err != nil {
		return r.failed(invoice.DocumentKey, groupId, err)
	}
	if itemId == "" {
		return RecordResult{
			DocumentKey: invoice.DocumentKey,
			Status:      RecordStatusFailed,
			GroupId:     groupId,
			Error:       "board returned no item id",
		}
	}

	// Only after the board confirms the item does the flag flip; an error here
	// leaves the record unsynchronized so the next run retries it.
	if err := r.Store.MarkSynchronized(ctx, invoice.DocumentKey); err != nil {
		return r.failed(invoice.DocumentKey, groupId, err)
	}

	r.Logger.WithFields(logrus.Fields{
		"module":   "boardsync",
		"document": invoice.DocumentKey,
		"group":    strings.ToUpper(GroupLabel(invoice.DocumentDate)),
		"group_id": groupId,
		"item_id":  itemId,
	}).Info("document synchronized")

	return RecordResult{
		DocumentKey: invoice.DocumentKey,
		Status:      RecordStatusSuccess,
		ItemId:      itemId,
		GroupId:     groupId,
	}
}

func (r *Reconciler) failed(documentKey, groupId string, err error) RecordResult {
	r.Logger.WithFields(logrus.Fields{
		"module":   "boardsync",
		"document": documentKey,
	}).Error("failed to synchronize document: " + err.Error())
	return RecordResult{
		DocumentKey: documentKey,
		Status:      RecordStatusFailed,
		GroupId:     groupId,
		Error:       err.Error(),
	}
}
