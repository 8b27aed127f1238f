package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"findash/internal/core"
)

// Writer creates snapshot files.
type Writer struct {
	db   *sql.DB
	path string
}

// Create makes a new, empty snapshot at path, replacing any existing file.
func Create(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove old snapshot: %w", err)
	}
	if err := RunMigrations(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	return &Writer{db: db, path: path}, nil
}

func (w *Writer) Close() error {
	if w.db != nil {
		return w.db.Close()
	}
	return nil
}

// Path is the file the writer is filling.
func (w *Writer) Path() string { return w.path }

// Write replaces the contents of every table with src in one transaction
// and stamps the meta table with modified.
func (w *Writer) Write(ctx context.Context, src *Source, modified time.Time) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"volumes", "uos", "budget", "hours", "contracted_hours", "income_stmt", "_kv", "meta"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, t := range []struct {
		table string
		rows  []core.Volume
	}{
		{"volumes", src.Volumes},
		{"uos", src.UOS},
	} {
		for _, v := range t.rows {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO `+t.table+` (dept_wd_id, dept_name, month, volume, unit) VALUES (?, ?, ?, ?, ?)`,
				v.DepartmentID, nullString(v.DepartmentName), v.Month, v.Volume, nullString(v.Unit)); err != nil {
				return fmt.Errorf("insert %s: %w", t.table, err)
			}
		}
	}

	for _, b := range src.Budget {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO budget (`+budgetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			b.DepartmentID, nullString(b.DepartmentName), b.BudgetFTE, b.BudgetProdHours,
			int64(b.BudgetVolume), b.BudgetUOS, b.BudgetProdHoursPerUOS, b.HourlyRate); err != nil {
			return fmt.Errorf("insert budget: %w", err)
		}
	}

	for _, h := range src.Hours {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO hours (month, dept_wd_id, dept_name, reg_hrs, overtime_hrs, prod_hrs, nonprod_hrs, total_hrs, total_fte) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			h.Month, h.DepartmentID, nullString(h.DepartmentName), h.RegHours, h.OvertimeHours,
			h.ProdHours, h.NonProdHours, h.TotalHours, h.TotalFTE); err != nil {
			return fmt.Errorf("insert hours: %w", err)
		}
	}

	for _, c := range src.ContractedHours {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO contracted_hours (dept_wd_id, dept_name, year, hrs, ttl_dept_hrs) VALUES (?, ?, ?, ?, ?)`,
			c.DepartmentID, nullString(c.DepartmentName), c.Year, c.Hours, c.TotalDeptHours); err != nil {
			return fmt.Errorf("insert contracted hours: %w", err)
		}
	}

	for _, r := range src.IncomeStatement {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO income_stmt (month, ledger_acct, dept_wd_id, dept_name, spend_category, revenue_category, actual, budget, actual_ytd, budget_ytd) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.Month, r.LedgerAccount, r.DepartmentID, nullString(r.DepartmentName),
			nullString(r.SpendCategory), nullString(r.RevenueCategory),
			r.Actual.InexactFloat64(), r.Budget.InexactFloat64(),
			r.ActualYTD.InexactFloat64(), r.BudgetYTD.InexactFloat64()); err != nil {
			return fmt.Errorf("insert income statement: %w", err)
		}
	}

	kv, err := json.Marshal(KV{ContractedHoursUpdatedMonth: src.ContractedHoursUpdatedMonth})
	if err != nil {
		return fmt.Errorf("encode kv: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO _kv (data) VALUES (?)`, string(kv)); err != nil {
		return fmt.Errorf("insert kv: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO meta (modified) VALUES (?)`, modified.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("insert meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	slog.InfoContext(ctx, "Snapshot written",
		"path", w.path,
		"volumes", len(src.Volumes),
		"uos", len(src.UOS),
		"budget", len(src.Budget),
		"hours", len(src.Hours),
		"contracted_hours", len(src.ContractedHours),
		"income_stmt", len(src.IncomeStatement))
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
