package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"findash/internal/core"
)

// ContractedHoursReader supplies contracted hours from outside the
// warehouse, such as the manually maintained spreadsheet.
type ContractedHoursReader interface {
	ReadContractedHours(ctx context.Context) ([]core.ContractedHours, string, error)
}

// IngestOptions tune Ingest.
type IngestOptions struct {
	// ContractedHours replaces the warehouse contracted hours tables when set.
	ContractedHours ContractedHoursReader
	// Now stamps the snapshot meta table. Defaults to time.Now.
	Now func() time.Time
}

// OpenWarehouse opens the source warehouse by URL: postgres:// and
// postgresql:// use pgx, sqlite:// or a bare path use SQLite.
func OpenWarehouse(url string) (*sql.DB, error) {
	driver, dsn := "sqlite", strings.TrimPrefix(url, "sqlite://")
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		driver, dsn = "pgx", url
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open warehouse: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping warehouse: %w", err)
	}
	return db, nil
}

// MaskURL hides the password of a connection URL for logging.
func MaskURL(url string) string {
	scheme, rest, ok := strings.Cut(url, "://")
	if !ok {
		return url
	}
	userinfo, host, ok := strings.Cut(rest, "@")
	if !ok {
		return url
	}
	user, _, hasPw := strings.Cut(userinfo, ":")
	if !hasPw {
		return url
	}
	return scheme + "://" + user + ":***@" + host
}

// Ingest copies the prw_* warehouse tables into dst. Only the latest
// budget year is kept.
func Ingest(ctx context.Context, warehouse *sql.DB, dst *Writer, opts IngestOptions) (*Source, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	slog.InfoContext(ctx, "Reading warehouse tables")
	src, err := readTables(ctx, warehouse, "prw_")
	if err != nil {
		return nil, fmt.Errorf("read warehouse: %w", err)
	}
	src.Budget, err = readBudget(ctx, warehouse,
		`SELECT `+budgetColumns+` FROM prw_budget WHERE year = (SELECT MAX(year) FROM prw_budget) ORDER BY id`,
		"prw_budget")
	if err != nil {
		return nil, fmt.Errorf("read warehouse: %w", err)
	}

	if opts.ContractedHours != nil {
		rows, updated, err := opts.ContractedHours.ReadContractedHours(ctx)
		if err != nil {
			return nil, fmt.Errorf("read contracted hours: %w", err)
		}
		src.ContractedHours = rows
		src.ContractedHoursUpdatedMonth = updated
	} else {
		src.ContractedHoursUpdatedMonth, err = readContractedHoursUpdated(ctx, warehouse)
		if err != nil {
			return nil, err
		}
	}

	for _, r := range src.IncomeStatement {
		if err := r.Validate(); err != nil {
			slog.WarnContext(ctx, "Invalid income statement row", "error", err,
				"ledger_acct", r.LedgerAccount, "dept_wd_id", r.DepartmentID, "month", r.Month)
		}
	}

	src.LastUpdated = now()
	if err := dst.Write(ctx, src, src.LastUpdated); err != nil {
		return nil, err
	}
	return src, nil
}

func readContractedHoursUpdated(ctx context.Context, q *sql.DB) (string, error) {
	var updated sql.NullString
	err := q.QueryRowContext(ctx, `SELECT contracted_hours_updated_month FROM prw_contracted_hours_meta ORDER BY id LIMIT 1`).Scan(&updated)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read contracted hours meta: %w", err)
	}
	return updated.String, nil
}
