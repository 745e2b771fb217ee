package transfer_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/ledgersync_backend/models"
	"bitbucket.org/mmdatafocus/ledgersync_backend/transfer"
	"github.com/sirupsen/logrus"
)

type fakeLedger struct {
	rows []models.MirrorInvoice
	err  error
}

func (f *fakeLedger) InvoicesInRange(ctx context.Context, from, to time.Time) ([]models.MirrorInvoice, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

type fakeMirror struct {
	existing  map[string]struct{}
	inserted  [][]models.MirrorInvoice
	insertErr error
}

func (f *fakeMirror) DocumentKeys(ctx context.Context) (map[string]struct{}, error) {
	keys := make(map[string]struct{}, len(f.existing))
	for k := range f.existing {
		keys[k] = struct{}{}
	}
	return keys, nil
}

func (f *fakeMirror) InsertInvoices(ctx context.Context, invoices []models.MirrorInvoice) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, invoices)
	if f.existing == nil {
		f.existing = make(map[string]struct{})
	}
	for _, inv := range invoices {
		f.existing[inv.DocumentKey] = struct{}{}
	}
	return nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func invoice(key string, date time.Time) models.MirrorInvoice {
	return models.MirrorInvoice{
		DocumentKey:  key,
		CustomerName: "Customer " + key,
		DocumentDate: date,
		DueDate:      date.AddDate(0, 1, 0),
	}
}

func TestRun_TransfersAllWhenMirrorEmpty(t *testing.T) {
	ctx := context.Background()
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	ledger := &fakeLedger{rows: []models.MirrorInvoice{
		invoice("INV-001", date),
		invoice("INV-002", date),
		invoice("INV-003", date),
	}}
	mirror := &fakeMirror{}

	res, err := transfer.Run(ctx, testLogger(), ledger, mirror, date.AddDate(0, 0, -30), date)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Scanned != 3 || res.Inserted != 3 {
		t.Fatalf("got scanned=%d inserted=%d, want 3/3", res.Scanned, res.Inserted)
	}
	if len(mirror.inserted) != 1 || len(mirror.inserted[0]) != 3 {
		t.Fatalf("expected one batch of 3 inserts, got %v", mirror.inserted)
	}
}

func TestRun_SkipsAlreadyTransferredKeys(t *testing.T) {
	ctx := context.Background()
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	ledger := &fakeLedger{rows: []models.MirrorInvoice{
		invoice("INV-001", date),
		invoice("INV-002", date),
		invoice("INV-003", date),
	}}
	mirror := &fakeMirror{existing: map[string]struct{}{"INV-001": {}}}

	res, err := transfer.Run(ctx, testLogger(), ledger, mirror, date.AddDate(0, 0, -30), date)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Scanned != 3 || res.Inserted != 2 {
		t.Fatalf("got scanned=%d inserted=%d, want 3/2", res.Scanned, res.Inserted)
	}
	batch := mirror.inserted[0]
	for _, inv := range batch {
		if inv.DocumentKey == "INV-001" {
			t.Fatalf("INV-001 was transferred twice")
		}
	}
}

func TestRun_SecondRunInsertsNothing(t *testing.T) {
	ctx := context.Background()
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	ledger := &fakeLedger{rows: []models.MirrorInvoice{
		invoice("INV-001", date),
		invoice("INV-002", date),
	}}
	mirror := &fakeMirror{}
	from, to := date.AddDate(0, 0, -30), date

	if _, err := transfer.Run(ctx, testLogger(), ledger, mirror, from, to); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	res, err := transfer.Run(ctx, testLogger(), ledger, mirror, from, to)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if res.Scanned != 2 || res.Inserted != 0 {
		t.Fatalf("second run got scanned=%d inserted=%d, want 2/0", res.Scanned, res.Inserted)
	}
	if len(mirror.inserted) != 1 {
		t.Fatalf("second run inserted a batch; mirror now has %d batches", len(mirror.inserted))
	}
}

func TestRun_InsertFailureIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	ledger := &fakeLedger{rows: []models.MirrorInvoice{invoice("INV-001", date)}}
	mirror := &fakeMirror{insertErr: errors.New("deadlock")}

	_, err := transfer.Run(ctx, testLogger(), ledger, mirror, date.AddDate(0, 0, -30), date)
	if err == nil {
		t.Fatalf("expected insert error to propagate")
	}
	if len(mirror.inserted) != 0 {
		t.Fatalf("failed batch must not leave partial rows")
	}
}

func TestDefaultRange(t *testing.T) {
	from, to := transfer.DefaultRange(0)
	if !from.AddDate(0, 0, 180).Equal(to) {
		t.Fatalf("default window is %s..%s, want 180 days", from, to)
	}
	from, to = transfer.DefaultRange(30)
	if !from.AddDate(0, 0, 30).Equal(to) {
		t.Fatalf("window is %s..%s, want 30 days", from, to)
	}
}
