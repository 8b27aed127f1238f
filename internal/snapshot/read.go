package snapshot

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"findash/internal/core"
)

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// readTables loads the KPI tables whose names are prefix + table name.
// The snapshot uses no prefix; the warehouse uses "prw_".
func readTables(ctx context.Context, q queryer, prefix string) (*Source, error) {
	src := &Source{}
	var err error
	if src.Volumes, err = readVolumes(ctx, q, prefix+"volumes"); err != nil {
		return nil, err
	}
	if src.UOS, err = readVolumes(ctx, q, prefix+"uos"); err != nil {
		return nil, err
	}
	if src.Hours, err = readHours(ctx, q, prefix+"hours"); err != nil {
		return nil, err
	}
	if src.ContractedHours, err = readContractedHours(ctx, q, prefix+"contracted_hours"); err != nil {
		return nil, err
	}
	if src.IncomeStatement, err = readIncomeStatement(ctx, q, prefix+"income_stmt"); err != nil {
		return nil, err
	}
	return src, nil
}

func readVolumes(ctx context.Context, q queryer, table string) ([]core.Volume, error) {
	rows, err := q.QueryContext(ctx, `SELECT dept_wd_id, dept_name, month, volume, unit FROM `+table+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var out []core.Volume
	for rows.Next() {
		var v core.Volume
		var name, unit sql.NullString
		var volume sql.NullFloat64
		if err := rows.Scan(&v.DepartmentID, &name, &v.Month, &volume, &unit); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		v.DepartmentName, v.Unit, v.Volume = name.String, unit.String, volume.Float64
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, nil
}

func readBudget(ctx context.Context, q queryer, query, table string) ([]core.Budget, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		var b core.Budget
		var name sql.NullString
		var fte, prodHrs, volume, uos, perUOS, rate sql.NullFloat64
		if err := rows.Scan(&b.DepartmentID, &name, &fte, &prodHrs, &volume, &uos, &perUOS, &rate); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		b.DepartmentName = name.String
		b.BudgetFTE = fte.Float64
		b.BudgetProdHours = prodHrs.Float64
		b.BudgetVolume = volume.Float64
		b.BudgetUOS = uos.Float64
		b.BudgetProdHoursPerUOS = perUOS.Float64
		b.HourlyRate = rate.Float64
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, nil
}

const budgetColumns = `dept_wd_id, dept_name, budget_fte, budget_prod_hrs, budget_volume, budget_uos, budget_prod_hrs_per_uos, hourly_rate`

func readHours(ctx context.Context, q queryer, table string) ([]core.Hours, error) {
	rows, err := q.QueryContext(ctx, `SELECT month, dept_wd_id, dept_name, reg_hrs, overtime_hrs, prod_hrs, nonprod_hrs, total_hrs, total_fte FROM `+table+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var out []core.Hours
	for rows.Next() {
		var h core.Hours
		var name sql.NullString
		var reg, ot, prod, nonprod, total, fte sql.NullFloat64
		if err := rows.Scan(&h.Month, &h.DepartmentID, &name, &reg, &ot, &prod, &nonprod, &total, &fte); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		h.DepartmentName = name.String
		h.RegHours, h.OvertimeHours = reg.Float64, ot.Float64
		h.ProdHours, h.NonProdHours = prod.Float64, nonprod.Float64
		h.TotalHours, h.TotalFTE = total.Float64, fte.Float64
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, nil
}

func readContractedHours(ctx context.Context, q queryer, table string) ([]core.ContractedHours, error) {
	rows, err := q.QueryContext(ctx, `SELECT dept_wd_id, dept_name, year, hrs, ttl_dept_hrs FROM `+table+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var out []core.ContractedHours
	for rows.Next() {
		var c core.ContractedHours
		var name sql.NullString
		var hrs, total sql.NullFloat64
		if err := rows.Scan(&c.DepartmentID, &name, &c.Year, &hrs, &total); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		c.DepartmentName = name.String
		c.Hours, c.TotalDeptHours = hrs.Float64, total.Float64
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, nil
}

func readIncomeStatement(ctx context.Context, q queryer, table string) ([]core.LedgerRow, error) {
	rows, err := q.QueryContext(ctx, `SELECT month, ledger_acct, dept_wd_id, dept_name, spend_category, revenue_category, actual, budget, actual_ytd, budget_ytd FROM `+table+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var out []core.LedgerRow
	for rows.Next() {
		var r core.LedgerRow
		var name, spend, revenue sql.NullString
		var actual, budget, actualYTD, budgetYTD decimal.NullDecimal
		if err := rows.Scan(&r.Month, &r.LedgerAccount, &r.DepartmentID, &name, &spend, &revenue,
			&actual, &budget, &actualYTD, &budgetYTD); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		r.DepartmentName = name.String
		r.SpendCategory, r.RevenueCategory = spend.String, revenue.String
		r.Category = core.CombineCategory(r.SpendCategory, r.RevenueCategory)
		r.Actual, r.Budget = actual.Decimal, budget.Decimal
		r.ActualYTD, r.BudgetYTD = actualYTD.Decimal, budgetYTD.Decimal
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, nil
}
