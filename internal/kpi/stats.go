// Package kpi computes the department statistics shown on dashboard cards:
// volume and unit of service rollups, budget targets, hours per unit,
// FTE variance and contracted hours.
//
// Every calculation degrades to zero on missing data and never fails.
package kpi

import (
	"math"
	"strconv"
	"time"

	"findash/internal/core"
	"findash/internal/statement"
)

// UndefinedUnit is reported when a volume table has no rows.
const UndefinedUnit = "undefined"

// Statement prefixes used to pull YTD figures from a generated statement.
var (
	RevenuePrefixes = []string{
		"Operating Revenues|Patient Revenues",
		"Operating Revenues|Other",
	}
	ExpenseRow     = "Total Operating Expenses"
	SalaryPrefixes = []string{
		"Expenses|Salaries",
		"Expenses|Professional Fees|60221:Temp Labor",
		"Expenses|Professional Fees|60222:Locum Tenens",
	}
)

// Input is the data for one logical department, already filtered to its IDs.
type Input struct {
	DepartmentIDs   []string
	Month           string // selected month, YYYY-MM
	Volumes         []core.Volume
	UOS             []core.Volume
	Budget          []core.Budget
	Hours           []core.Hours
	ContractedHours []core.ContractedHours
	IncomeStatement []core.LedgerRow
	// ContractedHoursUpdated is the date ("YYYY-MM-DD...") through which
	// contracted hours have been entered.
	ContractedHoursUpdated string
	// Definition defaults to statement.DefaultDefinition when nil.
	Definition statement.Definition
	Now        time.Time
}

// BudgetTotals is the budget summed over a department's IDs.
type BudgetTotals struct {
	FTE             float64
	ProdHours       float64
	Volume          float64
	UOS             float64
	ProdHoursPerUOS float64
	HourlyRate      float64
}

// DeptStats are the single-value statistics for a department and month.
type DeptStats struct {
	UOSUnit    string `json:"uos_unit"`
	VolumeUnit string `json:"volume_unit"`

	KPIMonthMax      string `json:"kpi_month_max"`
	MonthInPriorYear string `json:"month_in_prior_year"`

	MonthVolume       float64 `json:"month_volume"`
	YTMVolume         float64 `json:"ytm_volume"`
	MonthBudgetVolume float64 `json:"month_budget_volume"`
	YTMBudgetVolume   float64 `json:"ytm_budget_volume"`
	MonthUOS          float64 `json:"month_uos"`
	YTMUOS            float64 `json:"ytm_uos"`
	PriorYearMonthUOS float64 `json:"prior_year_month_uos"`
	PriorYearYTMUOS   float64 `json:"prior_year_ytm_uos"`

	BudgetFTE float64 `json:"budget_fte"`

	KPIYTDVolume     float64 `json:"kpi_ytd_volume"`
	YTDBudgetVolume  float64 `json:"ytd_budget_volume"`
	YTDRevenue       float64 `json:"ytd_revenue"`
	YTDBudgetRevenue float64 `json:"ytd_budget_revenue"`
	YTDExpense       float64 `json:"ytd_expense"`
	YTDBudgetExpense float64 `json:"ytd_budget_expense"`
	YTDSalary        float64 `json:"ytd_salary"`
	YTDProdHours     float64 `json:"ytd_prod_hours"`
	YTDHours         float64 `json:"ytd_hours"`

	RevenuePerVolume         float64 `json:"revenue_per_volume"`
	ExpensePerVolume         float64 `json:"expense_per_volume"`
	TargetRevenuePerVolume   float64 `json:"target_revenue_per_volume"`
	VarianceRevenuePerVolume int     `json:"variance_revenue_per_volume"`
	TargetExpensePerVolume   float64 `json:"target_expense_per_volume"`
	VarianceExpensePerVolume int     `json:"variance_expense_per_volume"`

	HoursPerVolume            float64 `json:"hours_per_volume"`
	TargetHoursPerVolume      float64 `json:"target_hours_per_volume"`
	VarianceHoursPerVolume    float64 `json:"variance_hours_per_volume"`
	VarianceHoursPerVolumePct int     `json:"variance_hours_per_volume_pct"`

	HourlyRate         float64 `json:"hourly_rate"`
	FTEVariance        float64 `json:"fte_variance"`
	FTEVarianceDollars float64 `json:"fte_variance_dollars"`

	ContractedHoursMonth        string  `json:"contracted_hours_month"`
	ContractedHours             float64 `json:"contracted_hours"`
	ContractedFTE               float64 `json:"contracted_fte"`
	PriorYearForContractedHours string  `json:"prior_year_for_contracted_hours"`
	PriorYearContractedHours    float64 `json:"prior_year_contracted_hours"`
	PriorYearContractedFTE      float64 `json:"prior_year_contracted_fte"`
}

// ComputeDepartmentStats derives the dashboard statistics for in.
func ComputeDepartmentStats(in Input) DeptStats {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	def := in.Definition
	if def == nil {
		def = statement.DefaultDefinition()
	}

	sel, err := core.ParseMonth(in.Month)
	if err != nil {
		sel = core.MonthOf(now)
	}
	priorSel := sel.PriorYear()

	s := DeptStats{
		UOSUnit:          UndefinedUnit,
		VolumeUnit:       UndefinedUnit,
		MonthInPriorYear: priorSel.String(),
	}

	maxMonth := MaxMonthToDisplay(in.Volumes, in.UOS, in.IncomeStatement, now)
	s.KPIMonthMax = maxMonth.String()

	kpiVolumes := in.UOS
	if len(kpiVolumes) == 0 {
		kpiVolumes = in.Volumes
	}

	if len(in.Volumes) > 0 {
		s.MonthVolume = sumVolume(in.Volumes, func(m string) bool { return m == sel.String() })
		s.YTMVolume = sumVolume(in.Volumes, sel.InYearThrough)
		s.VolumeUnit = in.Volumes[0].Unit
	}
	if len(in.UOS) > 0 {
		s.MonthUOS = sumVolume(in.UOS, func(m string) bool { return m == sel.String() })
		s.YTMUOS = sumVolume(in.UOS, sel.InYearThrough)
		s.PriorYearMonthUOS = sumVolume(in.UOS, func(m string) bool { return m == priorSel.String() })
		s.PriorYearYTMUOS = sumVolume(in.UOS, priorSel.InYearThrough)
		s.UOSUnit = in.UOS[0].Unit
	}
	s.KPIYTDVolume = sumVolume(kpiVolumes, maxMonth.InYearThrough)

	budget := NormalizeBudget(in.Budget, in.DepartmentIDs, len(in.UOS) > 0)
	budgetVolumeForKPI := budget.Volume
	if len(in.UOS) > 0 {
		budgetVolumeForKPI = budget.UOS
	}
	s.YTDBudgetVolume = budgetVolumeForKPI * float64(maxMonth.Month) / 12

	// Contracted hours are kept per calendar year through the month they
	// were last updated.
	year := now.Year()
	updated, err := core.ParseMonth(in.ContractedHoursUpdated)
	if err != nil {
		updated = core.MonthOf(now)
	}
	contractedMonth := core.Month{Year: year, Month: updated.Month}
	priorYear := year - 1
	s.ContractedHours = sumContracted(in.ContractedHours, year)
	s.PriorYearContractedHours = sumContracted(in.ContractedHours, priorYear)
	s.ContractedFTE = safeDiv(s.ContractedHours, core.FTEHoursInYear(year)*core.FractionOfYearThrough(contractedMonth))
	s.PriorYearContractedFTE = safeDiv(s.PriorYearContractedHours, core.FTEHoursInYear(priorYear))
	s.ContractedHoursMonth = contractedMonth.Label()
	s.PriorYearForContractedHours = strconv.Itoa(priorYear)

	hoursYTD, _ := HoursYTM(in.Hours, maxMonth.String())
	s.YTDProdHours = hoursYTD.ProdHours + s.ContractedHours
	s.YTDHours = hoursYTD.TotalHours + s.ContractedHours

	s.YTDRevenue, s.YTDBudgetRevenue, s.YTDExpense, s.YTDBudgetExpense, s.YTDSalary =
		ytdFinancials(in.IncomeStatement, maxMonth.String(), def)

	s.MonthBudgetVolume = budget.Volume / 12
	s.YTMBudgetVolume = budget.Volume * float64(sel.Month) / 12
	s.BudgetFTE = budget.FTE

	if s.KPIYTDVolume > 0 {
		s.RevenuePerVolume = s.YTDRevenue / s.KPIYTDVolume
		s.ExpensePerVolume = s.YTDExpense / s.KPIYTDVolume
		s.HoursPerVolume = s.YTDProdHours / s.KPIYTDVolume
	}

	if s.YTDBudgetVolume != 0 && s.YTDBudgetRevenue != 0 && s.YTDBudgetExpense != 0 {
		s.TargetRevenuePerVolume = s.YTDBudgetRevenue / s.YTDBudgetVolume
		s.VarianceRevenuePerVolume = VariancePct(s.RevenuePerVolume, s.TargetRevenuePerVolume)
		s.TargetExpensePerVolume = s.YTDBudgetExpense / s.YTDBudgetVolume
		s.VarianceExpensePerVolume = VariancePct(s.ExpensePerVolume, s.TargetExpensePerVolume)
	}

	// Hours per unit below target is favorable: the percentage is negated.
	s.TargetHoursPerVolume = budget.ProdHoursPerUOS
	s.VarianceHoursPerVolume = s.TargetHoursPerVolume - s.HoursPerVolume
	if s.TargetHoursPerVolume > 0 {
		s.VarianceHoursPerVolumePct = int(math.Trunc(-s.VarianceHoursPerVolume / s.TargetHoursPerVolume * 100))
	}

	s.HourlyRate = budget.HourlyRate
	if s.YTDHours != 0 {
		s.HourlyRate = s.YTDSalary / s.YTDHours
		s.FTEVariance = safeDiv(
			s.VarianceHoursPerVolume*s.KPIYTDVolume,
			core.FTEHoursPerYear*(s.YTDProdHours/s.YTDHours),
		)
		s.FTEVarianceDollars = s.VarianceHoursPerVolume * s.KPIYTDVolume * s.HourlyRate
	}

	return s
}

// VariancePct is (actual/target - 1) * 100 truncated toward zero, or 0
// when target is 0.
func VariancePct(actual, target float64) int {
	if target == 0 {
		return 0
	}
	return int(math.Trunc((actual/target - 1) * 100))
}

// MaxMonthToDisplay is the latest month with both volume data (UOS when
// present, else volumes) and income statement data. When only one source
// has data its latest month is used; with neither, the month of now.
func MaxMonthToDisplay(volumes, uos []core.Volume, ledger []core.LedgerRow, now time.Time) core.Month {
	kpiVolumes := uos
	if len(kpiVolumes) == 0 {
		kpiVolumes = volumes
	}
	volMax := ""
	for _, v := range kpiVolumes {
		if v.Month > volMax {
			volMax = v.Month
		}
	}
	stmtMax := ""
	for _, r := range ledger {
		if r.Month > stmtMax {
			stmtMax = r.Month
		}
	}

	latest := volMax
	switch {
	case volMax == "":
		latest = stmtMax
	case stmtMax != "" && stmtMax < volMax:
		latest = stmtMax
	}
	m, err := core.ParseMonth(latest)
	if err != nil {
		return core.MonthOf(now)
	}
	return m
}

// NormalizeBudget sums the budget rows of ids. With more than one ID the
// ratios are recomputed from the summed components: hours per UOS from
// hours and UOS (or volume when there is no UOS data), and the hourly
// rate averaged over the IDs.
func NormalizeBudget(rows []core.Budget, ids []string, haveUOS bool) BudgetTotals {
	set := core.NewIDSet(ids...)
	var t BudgetTotals
	for _, b := range rows {
		if len(ids) > 0 && !set.Has(b.DepartmentID) {
			continue
		}
		t.FTE += b.BudgetFTE
		t.ProdHours += b.BudgetProdHours
		t.Volume += b.BudgetVolume
		t.UOS += b.BudgetUOS
		t.ProdHoursPerUOS += b.BudgetProdHoursPerUOS
		t.HourlyRate += b.HourlyRate
	}
	if len(ids) > 1 {
		switch {
		case t.UOS > 0:
			t.ProdHoursPerUOS = t.ProdHours / t.UOS
		case !haveUOS && t.Volume > 0:
			t.ProdHoursPerUOS = t.ProdHours / t.Volume
		default:
			t.ProdHoursPerUOS = 0
		}
		t.HourlyRate = t.HourlyRate / float64(len(ids))
	}
	return t
}

func ytdFinancials(rows []core.LedgerRow, month string, def statement.Definition) (revenue, budgetRevenue, expense, budgetExpense, salary float64) {
	var latest []core.LedgerRow
	for _, r := range rows {
		if r.Month == month {
			latest = append(latest, r)
		}
	}
	stmt := statement.Generate(latest, def)

	rev := stmt.SumWhere(RevenuePrefixes...)
	revenue = rev.ActualYTD.InexactFloat64()
	budgetRevenue = rev.BudgetYTD.InexactFloat64()
	if row, ok := stmt.Find(ExpenseRow); ok && row.Amounts != nil {
		expense = row.Amounts.ActualYTD.InexactFloat64()
		budgetExpense = row.Amounts.BudgetYTD.InexactFloat64()
	}
	salary = stmt.SumWhere(SalaryPrefixes...).ActualYTD.InexactFloat64()
	return revenue, budgetRevenue, expense, budgetExpense, salary
}

func sumVolume(rows []core.Volume, match func(month string) bool) float64 {
	var sum float64
	for _, r := range rows {
		if match(r.Month) {
			sum += r.Volume
		}
	}
	return sum
}

func sumContracted(rows []core.ContractedHours, year int) float64 {
	var sum float64
	for _, r := range rows {
		if r.Year == year {
			sum += r.Hours
		}
	}
	return sum
}
