package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/ledgersync_backend/config"
	"bitbucket.org/mmdatafocus/ledgersync_backend/models"
	"bitbucket.org/mmdatafocus/ledgersync_backend/transfer"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func TestTransferPipelineAgainstMySQL(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.ConnectDatabasesWithRetry. Source and mirror share
	// one server here; in production they are different databases.
	for _, prefix := range []string{"SOURCE", "MIRROR"} {
		t.Setenv(prefix+"_DB_USER", "root")
		t.Setenv(prefix+"_DB_PASSWORD", "testpw")
		t.Setenv(prefix+"_DB_HOST", "127.0.0.1")
		t.Setenv(prefix+"_DB_PORT", mysqlPort)
		t.Setenv(prefix+"_DB_NAME", "ledgersync_test")
	}

	config.ConnectDatabasesWithRetry()
	sourceDB := config.GetSourceDB()
	mirrorDB := config.GetMirrorDB()
	if sourceDB == nil || mirrorDB == nil {
		t.Fatalf("databases are nil after ConnectDatabasesWithRetry")
	}

	if err := models.MigrateMirrorTables(mirrorDB); err != nil {
		t.Fatalf("MigrateMirrorTables: %v", err)
	}

	// Minimal source schema: just enough for the transfer query's joins.
	for _, ddl := range []string{
		`CREATE TABLE customers (id INT PRIMARY KEY, name VARCHAR(100))`,
		`CREATE TABLE currencies (id INT PRIMARY KEY, description VARCHAR(100))`,
		`CREATE TABLE sales_persons (id INT PRIMARY KEY, name VARCHAR(100))`,
		`CREATE TABLE invoices (
			document_key VARCHAR(50) PRIMARY KEY,
			customer_id INT,
			order_ref VARCHAR(50),
			document_date DATE,
			due_date DATE,
			currency_id INT,
			sales_person_id INT,
			exchange_rate DECIMAL(18,6),
			amount DECIMAL(18,2)
		)`,
		`INSERT INTO customers VALUES (1, 'Smile Co')`,
		`INSERT INTO currencies VALUES (1, 'US Dollar')`,
		`INSERT INTO sales_persons VALUES (1, 'Aung')`,
		`INSERT INTO invoices VALUES
			('INV-001', 1, 'SO-1', '2024-01-15', '2024-02-15', 1, 1, 2.0, 100.00),
			('INV-002', 1, 'SO-2', '2024-01-20', '2024-02-20', 1, 1, 0.0, 50.00),
			('INV-003', 1, 'SO-3', '2020-01-01', '2020-02-01', 1, 1, 1.0, 10.00)`,
	} {
		if err := sourceDB.Exec(ddl).Error; err != nil {
			t.Fatalf("source schema: %v\n%s", err, ddl)
		}
	}

	logger := logrus.New()
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	ledger := models.NewLedgerStore(sourceDB)
	mirror := models.NewMirrorStore(mirrorDB)

	// First run picks up the two in-range invoices; the 2020 one stays behind.
	res, err := transfer.Run(ctx, logger, ledger, mirror, from, to)
	if err != nil {
		t.Fatalf("transfer.Run: %v", err)
	}
	if res.Scanned != 2 || res.Inserted != 2 {
		t.Fatalf("got scanned=%d inserted=%d, want 2/2", res.Scanned, res.Inserted)
	}

	// Zero exchange rate must produce a zero base amount, not an error.
	rows, err := mirror.UnsynchronizedInvoices(ctx, from, to)
	if err != nil {
		t.Fatalf("UnsynchronizedInvoices: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d unsynchronized rows, want 2", len(rows))
	}
	byKey := map[string]models.MirrorInvoice{}
	for _, row := range rows {
		byKey[row.DocumentKey] = row
	}
	if got := byKey["INV-001"].BaseAmount; !got.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("INV-001 base amount = %s, want 50", got)
	}
	if got := byKey["INV-002"].BaseAmount; !got.Equal(decimal.Zero) {
		t.Fatalf("INV-002 base amount = %s, want 0 for zero exchange rate", got)
	}

	// Re-running the same window inserts nothing.
	res, err = transfer.Run(ctx, logger, ledger, mirror, from, to)
	if err != nil {
		t.Fatalf("second transfer.Run: %v", err)
	}
	if res.Inserted != 0 {
		t.Fatalf("second run inserted %d rows, want 0", res.Inserted)
	}

	// The synchronized flag excludes the row from the next candidate set.
	if err := mirror.MarkSynchronized(ctx, "INV-001"); err != nil {
		t.Fatalf("MarkSynchronized: %v", err)
	}
	rows, err = mirror.UnsynchronizedInvoices(ctx, from, to)
	if err != nil {
		t.Fatalf("UnsynchronizedInvoices after mark: %v", err)
	}
	if len(rows) != 1 || rows[0].DocumentKey != "INV-002" {
		t.Fatalf("expected only INV-002 pending, got %v", rows)
	}

	// A batch containing a duplicate key rolls back entirely.
	err = mirror.InsertInvoices(ctx, []models.MirrorInvoice{
		{DocumentKey: "INV-004", DocumentDate: from, DueDate: to,
			ExchangeRate: decimal.NewFromInt(1), Amount: decimal.NewFromInt(1), BaseAmount: decimal.NewFromInt(1)},
		{DocumentKey: "INV-001", DocumentDate: from, DueDate: to,
			ExchangeRate: decimal.NewFromInt(1), Amount: decimal.NewFromInt(1), BaseAmount: decimal.NewFromInt(1)},
	})
	if err == nil {
		t.Fatalf("expected duplicate key error")
	}
	keys, err := mirror.DocumentKeys(ctx)
	if err != nil {
		t.Fatalf("DocumentKeys: %v", err)
	}
	if _, ok := keys["INV-004"]; ok {
		t.Fatalf("failed batch leaked INV-004 into the mirror")
	}
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("ledgersync-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=ledgersync_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
