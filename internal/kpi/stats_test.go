package kpi

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"findash/internal/core"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func ytdRow(account, category, month string, actualYTD, budgetYTD int64) core.LedgerRow {
	return core.LedgerRow{
		LedgerAccount: account,
		Category:      category,
		DepartmentID:  "CC_1",
		Month:         month,
		ActualYTD:     decimal.NewFromInt(actualYTD),
		BudgetYTD:     decimal.NewFromInt(budgetYTD),
	}
}

func scenario() Input {
	in := Input{
		DepartmentIDs:          []string{"CC_1"},
		Month:                  "2024-04",
		Now:                    time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		ContractedHoursUpdated: "2024-02-29",
		Budget: []core.Budget{{
			DepartmentID:          "CC_1",
			BudgetFTE:             10,
			BudgetProdHours:       20000,
			BudgetVolume:          1200,
			BudgetProdHoursPerUOS: 4,
			HourlyRate:            40,
		}},
		ContractedHours: []core.ContractedHours{
			{DepartmentID: "CC_1", Year: 2024, Hours: 400},
			{DepartmentID: "CC_1", Year: 2023, Hours: 2080},
		},
		IncomeStatement: []core.LedgerRow{
			ytdRow("40000:Patient Revenues", "Inpatient Revenue", "2024-04", -45080, -40000),
			ytdRow("50000:Salaries & Wages", "Nursing", "2024-04", 15000, 12000),
			ytdRow("50000:Salaries & Wages", "Nursing", "2024-03", 99999, 99999),
		},
	}
	for _, m := range []string{"2024-01", "2024-02", "2024-03", "2024-04"} {
		in.Volumes = append(in.Volumes, core.Volume{DepartmentID: "CC_1", Month: m, Volume: 100, Unit: "Visits"})
		in.Hours = append(in.Hours, core.Hours{DepartmentID: "CC_1", Month: m, ProdHours: 700, TotalHours: 800})
	}
	in.Volumes = append(in.Volumes, core.Volume{DepartmentID: "CC_1", Month: "2023-04", Volume: 90, Unit: "Visits"})
	return in
}

func TestComputeDepartmentStatsScenario(t *testing.T) {
	s := ComputeDepartmentStats(scenario())

	if s.KPIMonthMax != "2024-04" || s.MonthInPriorYear != "2023-04" {
		t.Fatalf("months: max=%s prior=%s", s.KPIMonthMax, s.MonthInPriorYear)
	}
	if s.VolumeUnit != "Visits" || s.UOSUnit != UndefinedUnit {
		t.Fatalf("units: %q %q", s.VolumeUnit, s.UOSUnit)
	}
	if s.MonthVolume != 100 || s.YTMVolume != 400 || s.KPIYTDVolume != 400 {
		t.Fatalf("volumes: month=%v ytm=%v kpi=%v", s.MonthVolume, s.YTMVolume, s.KPIYTDVolume)
	}
	if s.MonthUOS != 0 || s.PriorYearMonthUOS != 0 {
		t.Fatalf("uos should be zero without uos rows")
	}
	if s.MonthBudgetVolume != 100 || s.YTMBudgetVolume != 400 || s.YTDBudgetVolume != 400 {
		t.Fatalf("budget volume: month=%v ytm=%v ytd=%v", s.MonthBudgetVolume, s.YTMBudgetVolume, s.YTDBudgetVolume)
	}
	if s.BudgetFTE != 10 {
		t.Fatalf("budget fte: %v", s.BudgetFTE)
	}

	if s.YTDRevenue != 45080 || s.YTDBudgetRevenue != 40000 {
		t.Fatalf("revenue: %v / %v", s.YTDRevenue, s.YTDBudgetRevenue)
	}
	if s.YTDExpense != 15000 || s.YTDBudgetExpense != 12000 || s.YTDSalary != 15000 {
		t.Fatalf("expense: %v / %v salary %v", s.YTDExpense, s.YTDBudgetExpense, s.YTDSalary)
	}
	if !near(s.RevenuePerVolume, 112.7) || s.TargetRevenuePerVolume != 100 {
		t.Fatalf("revenue per volume: %v target %v", s.RevenuePerVolume, s.TargetRevenuePerVolume)
	}
	if s.VarianceRevenuePerVolume != 12 {
		t.Fatalf("12.7%% must truncate to 12, got %d", s.VarianceRevenuePerVolume)
	}
	if s.ExpensePerVolume != 37.5 || s.TargetExpensePerVolume != 30 || s.VarianceExpensePerVolume != 25 {
		t.Fatalf("expense per volume: %v target %v var %d", s.ExpensePerVolume, s.TargetExpensePerVolume, s.VarianceExpensePerVolume)
	}

	// 2800 employee + 400 contracted productive hours, 3200 + 400 total.
	if s.YTDProdHours != 3200 || s.YTDHours != 3600 {
		t.Fatalf("hours: prod=%v total=%v", s.YTDProdHours, s.YTDHours)
	}
	if s.HoursPerVolume != 8 || s.TargetHoursPerVolume != 4 || s.VarianceHoursPerVolume != -4 {
		t.Fatalf("hours per volume: %v target %v var %v", s.HoursPerVolume, s.TargetHoursPerVolume, s.VarianceHoursPerVolume)
	}
	if s.VarianceHoursPerVolumePct != 100 {
		t.Fatalf("hours variance pct: %d", s.VarianceHoursPerVolumePct)
	}

	rate := 15000.0 / 3600.0
	if !near(s.HourlyRate, rate) {
		t.Fatalf("hourly rate: %v", s.HourlyRate)
	}
	wantFTE := (-4 * 400.0) / (2080 * (3200.0 / 3600.0))
	if !near(s.FTEVariance, wantFTE) {
		t.Fatalf("fte variance: got %v want %v", s.FTEVariance, wantFTE)
	}
	if !near(s.FTEVarianceDollars, -4*400*rate) {
		t.Fatalf("fte variance dollars: %v", s.FTEVarianceDollars)
	}

	if s.ContractedHoursMonth != "Feb 2024" || s.PriorYearForContractedHours != "2023" {
		t.Fatalf("contracted labels: %q %q", s.ContractedHoursMonth, s.PriorYearForContractedHours)
	}
	if s.ContractedHours != 400 || s.PriorYearContractedHours != 2080 {
		t.Fatalf("contracted hours: %v %v", s.ContractedHours, s.PriorYearContractedHours)
	}
	if !near(s.ContractedFTE, 400/(2088*60.0/366.0)) {
		t.Fatalf("contracted fte: %v", s.ContractedFTE)
	}
	if s.PriorYearContractedFTE != 1 {
		t.Fatalf("prior year contracted fte: %v", s.PriorYearContractedFTE)
	}
}

func TestComputeDepartmentStatsZeroGuard(t *testing.T) {
	in := scenario()
	in.Volumes = nil
	in.UOS = nil
	s := ComputeDepartmentStats(in)

	if s.MonthVolume != 0 || s.RevenuePerVolume != 0 || s.ExpensePerVolume != 0 || s.HoursPerVolume != 0 {
		t.Fatalf("expected zero ratios, got %+v", s)
	}
	if math.IsNaN(s.FTEVariance) || math.IsInf(s.FTEVariance, 0) {
		t.Fatalf("fte variance must be finite, got %v", s.FTEVariance)
	}
	if s.KPIMonthMax != "2024-04" {
		t.Fatalf("max month should fall back to the income statement, got %s", s.KPIMonthMax)
	}
	if s.YTDRevenue != 45080 {
		t.Fatalf("income statement figures still computed, got %v", s.YTDRevenue)
	}
}

func TestComputeDepartmentStatsEmptyInput(t *testing.T) {
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	s := ComputeDepartmentStats(Input{Month: "2025-02", Now: now})
	if s.KPIMonthMax != "2025-03" {
		t.Fatalf("expected current month fallback, got %s", s.KPIMonthMax)
	}
	if s.HourlyRate != 0 || s.FTEVariance != 0 || s.FTEVarianceDollars != 0 {
		t.Fatalf("expected zero hourly figures, got %+v", s)
	}
	if s.VarianceRevenuePerVolume != 0 || s.TargetRevenuePerVolume != 0 {
		t.Fatalf("targets require budget data")
	}
	if s.ContractedFTE != 0 || s.ContractedHoursMonth != "Mar 2025" {
		t.Fatalf("contracted: %v %q", s.ContractedFTE, s.ContractedHoursMonth)
	}
}

func TestComputeDepartmentStatsNoHoursUsesBudgetRate(t *testing.T) {
	in := scenario()
	in.Hours = nil
	in.ContractedHours = nil
	s := ComputeDepartmentStats(in)
	if s.HourlyRate != 40 {
		t.Fatalf("expected budget hourly rate, got %v", s.HourlyRate)
	}
	if s.FTEVariance != 0 || s.FTEVarianceDollars != 0 {
		t.Fatalf("fte variance requires hours")
	}
}

func TestComputeDepartmentStatsUOS(t *testing.T) {
	in := scenario()
	in.UOS = []core.Volume{
		{DepartmentID: "CC_1", Month: "2023-03", Volume: 50, Unit: "Exams"},
		{DepartmentID: "CC_1", Month: "2023-04", Volume: 60, Unit: "Exams"},
		{DepartmentID: "CC_1", Month: "2023-05", Volume: 70, Unit: "Exams"},
		{DepartmentID: "CC_1", Month: "2024-04", Volume: 80, Unit: "Exams"},
	}
	in.Budget[0].BudgetUOS = 960
	s := ComputeDepartmentStats(in)

	if s.UOSUnit != "Exams" {
		t.Fatalf("uos unit: %q", s.UOSUnit)
	}
	if s.MonthUOS != 80 || s.YTMUOS != 80 || s.PriorYearMonthUOS != 60 || s.PriorYearYTMUOS != 110 {
		t.Fatalf("uos: %v %v %v %v", s.MonthUOS, s.YTMUOS, s.PriorYearMonthUOS, s.PriorYearYTMUOS)
	}
	if s.KPIYTDVolume != 80 {
		t.Fatalf("kpi volume should use uos, got %v", s.KPIYTDVolume)
	}
	if s.YTDBudgetVolume != 320 {
		t.Fatalf("ytd budget volume should use budget uos, got %v", s.YTDBudgetVolume)
	}
}

func TestVariancePctTruncates(t *testing.T) {
	cases := []struct {
		actual, target float64
		want           int
	}{
		{1.127, 1, 12},
		{0.873, 1, -12},
		{2, 1, 100},
		{5, 0, 0},
		{0, 10, -100},
	}
	for _, tc := range cases {
		if got := VariancePct(tc.actual, tc.target); got != tc.want {
			t.Fatalf("VariancePct(%v, %v) = %d, want %d", tc.actual, tc.target, got, tc.want)
		}
	}
}

func TestNormalizeBudget(t *testing.T) {
	rows := []core.Budget{
		{DepartmentID: "A", BudgetFTE: 1, BudgetProdHours: 2000, BudgetVolume: 100, BudgetUOS: 1000, BudgetProdHoursPerUOS: 2, HourlyRate: 30},
		{DepartmentID: "B", BudgetFTE: 2, BudgetProdHours: 6000, BudgetVolume: 300, BudgetUOS: 3000, BudgetProdHoursPerUOS: 2, HourlyRate: 50},
		{DepartmentID: "C", BudgetFTE: 100},
	}
	got := NormalizeBudget(rows, []string{"A", "B"}, true)
	if got.FTE != 3 || got.ProdHoursPerUOS != 2 || got.HourlyRate != 40 {
		t.Fatalf("summed uos ratio: %+v", got)
	}

	noUOS := []core.Budget{
		{DepartmentID: "A", BudgetProdHours: 2000, BudgetVolume: 100},
		{DepartmentID: "B", BudgetProdHours: 6000, BudgetVolume: 300},
	}
	if got := NormalizeBudget(noUOS, []string{"A", "B"}, false); got.ProdHoursPerUOS != 20 {
		t.Fatalf("volume fallback: %+v", got)
	}
	if got := NormalizeBudget(noUOS, []string{"A", "B"}, true); got.ProdHoursPerUOS != 0 {
		t.Fatalf("uos data without budget uos should zero the ratio: %+v", got)
	}

	single := NormalizeBudget(rows[:1], []string{"A"}, true)
	if single.ProdHoursPerUOS != 2 || single.HourlyRate != 30 {
		t.Fatalf("single department keeps its ratios: %+v", single)
	}
}

func TestMaxMonthToDisplay(t *testing.T) {
	now := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	vol := []core.Volume{{Month: "2024-05"}, {Month: "2024-02"}}
	uos := []core.Volume{{Month: "2024-01"}}
	ledger := []core.LedgerRow{{Month: "2024-03"}}

	cases := []struct {
		name   string
		vol    []core.Volume
		uos    []core.Volume
		ledger []core.LedgerRow
		want   string
	}{
		{"income statement earlier", vol, nil, ledger, "2024-03"},
		{"uos preferred", vol, uos, ledger, "2024-01"},
		{"no volumes", nil, nil, ledger, "2024-03"},
		{"no income statement", vol, nil, nil, "2024-05"},
		{"nothing", nil, nil, nil, "2024-09"},
	}
	for _, tc := range cases {
		if got := MaxMonthToDisplay(tc.vol, tc.uos, tc.ledger, now).String(); got != tc.want {
			t.Fatalf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}
