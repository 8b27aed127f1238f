package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"findash/internal/core"
)

func sampleSource() *Source {
	return &Source{
		Volumes: []core.Volume{
			{DepartmentID: "CC_1", DepartmentName: "ICU", Month: "2024-01", Volume: 100, Unit: "Patient Days"},
			{DepartmentID: "CC_1", DepartmentName: "ICU", Month: "2024-02", Volume: 110, Unit: "Patient Days"},
			{DepartmentID: "CC_2", DepartmentName: "Lab", Month: "2024-02", Volume: 50},
		},
		UOS: []core.Volume{
			{DepartmentID: "CC_1", Month: "2024-02", Volume: 12.5, Unit: "UOS"},
		},
		Budget: []core.Budget{
			{DepartmentID: "CC_1", DepartmentName: "ICU", BudgetFTE: 10, BudgetProdHours: 19000, BudgetVolume: 1200, BudgetUOS: 150, BudgetProdHoursPerUOS: 15.8, HourlyRate: 55.5},
		},
		Hours: []core.Hours{
			{DepartmentID: "CC_1", Month: "2024-01", RegHours: 1500, OvertimeHours: 20, ProdHours: 1400, NonProdHours: 120, TotalHours: 1520, TotalFTE: 9.5},
			{DepartmentID: "CC_1", Month: "2024-02", RegHours: 1400, ProdHours: 1300, TotalHours: 1400, TotalFTE: 9},
		},
		ContractedHours: []core.ContractedHours{
			{DepartmentID: "CC_1", Year: 2024, Hours: 80, TotalDeptHours: 2900},
		},
		IncomeStatement: []core.LedgerRow{
			{LedgerAccount: "40000:Patient Revenue", RevenueCategory: "Inpatient", Category: "Inpatient", DepartmentID: "CC_1", Month: "2024-02",
				Actual: decimal.NewFromInt(1000), Budget: decimal.NewFromInt(900), ActualYTD: decimal.NewFromInt(2000), BudgetYTD: decimal.NewFromInt(1800)},
			{LedgerAccount: "60000:Salaries", SpendCategory: "Wages", Category: "Wages", DepartmentID: "CC_2", Month: "2024-02",
				Actual: decimal.NewFromFloat(250.25), Budget: decimal.NewFromInt(300)},
		},
		ContractedHoursUpdatedMonth: "2024-02",
	}
}

func writeSnapshot(t *testing.T, src *Source, modified time.Time) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db", "snapshot.sqlite3")
	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer w.Close()
	if err := w.Write(context.Background(), src, modified); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return path
}

func TestWriteLoadRoundTrip(t *testing.T) {
	modified := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	in := sampleSource()
	path := writeSnapshot(t, in, modified)

	out, err := LoadFile(context.Background(), path, "")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !out.LastUpdated.Equal(modified) {
		t.Fatalf("LastUpdated = %v, want %v", out.LastUpdated, modified)
	}
	for table, n := range in.Counts() {
		if got := out.Counts()[table]; got != n {
			t.Fatalf("%s rows = %d, want %d", table, got, n)
		}
	}
	if out.Volumes[1].Volume != 110 || out.Volumes[1].Unit != "Patient Days" {
		t.Fatalf("volume row = %+v", out.Volumes[1])
	}
	if out.Volumes[2].Unit != "" {
		t.Fatalf("null unit should load empty, got %q", out.Volumes[2].Unit)
	}
	if out.UOS[0].Volume != 12.5 {
		t.Fatalf("uos volume = %v, want 12.5", out.UOS[0].Volume)
	}
	if out.Budget[0].HourlyRate != 55.5 || out.Budget[0].BudgetVolume != 1200 {
		t.Fatalf("budget row = %+v", out.Budget[0])
	}
	wages := out.IncomeStatement[1]
	if wages.Category != "Wages" || wages.RevenueCategory != "" {
		t.Fatalf("ledger categories = %+v", wages)
	}
	if !wages.Actual.Equal(decimal.NewFromFloat(250.25)) {
		t.Fatalf("ledger actual = %s, want 250.25", wages.Actual)
	}
	if out.IncomeStatement[0].Category != "Inpatient" {
		t.Fatalf("revenue category not combined: %+v", out.IncomeStatement[0])
	}
	if out.ContractedHoursUpdatedMonth != "2024-02" {
		t.Fatalf("ContractedHoursUpdatedMonth = %q", out.ContractedHoursUpdatedMonth)
	}
}

func TestCreateReplacesExisting(t *testing.T) {
	path := writeSnapshot(t, sampleSource(), time.Now())

	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := w.Write(context.Background(), &Source{}, time.Now()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	w.Close()

	out, err := LoadFile(context.Background(), path, "")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(out.Volumes) != 0 || len(out.IncomeStatement) != 0 {
		t.Fatalf("expected empty snapshot, got %v", out.Counts())
	}
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.sqlite3"))
	if !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("err = %v, want ErrNoSnapshot", err)
	}
}

func TestSchemaVersion(t *testing.T) {
	path := writeSnapshot(t, &Source{}, time.Now())
	version, dirty, err := SchemaVersion(path)
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != 1 || dirty {
		t.Fatalf("version = %d dirty = %v, want 1 false", version, dirty)
	}
}

func TestKVFileOverrides(t *testing.T) {
	path := writeSnapshot(t, sampleSource(), time.Now())
	dir := t.TempDir()

	kvPath := filepath.Join(dir, "kv.json")
	if err := WriteKV(kvPath, KV{ContractedHoursUpdatedMonth: "2024-05-31"}); err != nil {
		t.Fatalf("WriteKV: %v", err)
	}
	out, err := LoadFile(context.Background(), path, kvPath)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if out.ContractedHoursUpdatedMonth != "2024-05-31" {
		t.Fatalf("ContractedHoursUpdatedMonth = %q, want file value", out.ContractedHoursUpdatedMonth)
	}

	out, err = LoadFile(context.Background(), path, filepath.Join(dir, "missing.json"))
	if err != nil {
		t.Fatalf("LoadFile with missing kv: %v", err)
	}
	if out.ContractedHoursUpdatedMonth != "2024-02" {
		t.Fatalf("missing kv file should keep db value, got %q", out.ContractedHoursUpdatedMonth)
	}
}

func TestParseKV(t *testing.T) {
	kv, err := ParseKV([]byte(`{"contracted_hours_updated_month": "2023-11"}`))
	if err != nil {
		t.Fatalf("ParseKV: %v", err)
	}
	if kv.ContractedHoursUpdatedMonth != "2023-11" {
		t.Fatalf("got %q", kv.ContractedHoursUpdatedMonth)
	}
	if _, err := ParseKV([]byte(`{`)); err == nil {
		t.Fatalf("expected error for malformed JSON")
	}
}

func TestFilter(t *testing.T) {
	src := sampleSource()
	got := src.Filter([]string{"CC_2"})
	if len(got.Volumes) != 1 || got.Volumes[0].DepartmentID != "CC_2" {
		t.Fatalf("volumes = %+v", got.Volumes)
	}
	if len(got.Budget) != 0 || len(got.Hours) != 0 || len(got.UOS) != 0 {
		t.Fatalf("unexpected rows: %v", got.Counts())
	}
	if len(got.IncomeStatement) != 1 || got.IncomeStatement[0].LedgerAccount != "60000:Salaries" {
		t.Fatalf("income statement = %+v", got.IncomeStatement)
	}
	if got.ContractedHoursUpdatedMonth != src.ContractedHoursUpdatedMonth {
		t.Fatalf("settings not carried over")
	}
	if len(src.Volumes) != 3 {
		t.Fatalf("Filter mutated the source")
	}
}

func TestMonthRange(t *testing.T) {
	vol := func(months ...string) []core.Volume {
		var out []core.Volume
		for _, m := range months {
			out = append(out, core.Volume{DepartmentID: "CC_1", Month: m, Volume: 1})
		}
		return out
	}
	hrs := func(months ...string) []core.Hours {
		var out []core.Hours
		for _, m := range months {
			out = append(out, core.Hours{DepartmentID: "CC_1", Month: m})
		}
		return out
	}
	ledger := func(months ...string) []core.LedgerRow {
		var out []core.LedgerRow
		for _, m := range months {
			out = append(out, core.LedgerRow{LedgerAccount: "40000:Patient Revenue", DepartmentID: "CC_1", Month: m})
		}
		return out
	}

	tests := []struct {
		name        string
		src         *Source
		first, last string
	}{
		{
			name:  "no uos rows",
			src:   &Source{Volumes: vol("2024-01", "2024-03"), Hours: hrs("2024-02", "2024-03"), IncomeStatement: ledger("2024-01", "2024-03")},
			first: "2024-01", last: "2024-03",
		},
		{
			name:  "uos is not consulted",
			src:   &Source{Volumes: vol("2024-01", "2024-03"), UOS: vol("2024-03"), Hours: hrs("2024-02", "2024-03"), IncomeStatement: ledger("2024-01", "2024-03")},
			first: "2024-01", last: "2024-03",
		},
		{
			name:  "last is the earliest latest month",
			src:   &Source{Volumes: vol("2023-11", "2024-04"), Hours: hrs("2024-01", "2024-02"), IncomeStatement: ledger("2024-01", "2024-03")},
			first: "2023-11", last: "2024-02",
		},
		{
			name:  "empty tables are skipped",
			src:   &Source{Volumes: vol("2024-02", "2024-05")},
			first: "2024-02", last: "2024-05",
		},
		{name: "empty source", src: &Source{}},
	}
	for _, tt := range tests {
		first, last := tt.src.MonthRange()
		if first != tt.first || last != tt.last {
			t.Fatalf("%s: MonthRange = %q..%q, want %q..%q", tt.name, first, last, tt.first, tt.last)
		}
	}

	first, last := sampleSource().MonthRange()
	if first != "2024-01" || last != "2024-02" {
		t.Fatalf("sample MonthRange = %s..%s, want 2024-01..2024-02", first, last)
	}
}

func TestMaskURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"postgres://user:secret@db:5432/prw", "postgres://user:***@db:5432/prw"},
		{"postgres://user@db/prw", "postgres://user@db/prw"},
		{"/data/warehouse.sqlite3", "/data/warehouse.sqlite3"},
	}
	for _, tt := range tests {
		if got := MaskURL(tt.in); got != tt.want {
			t.Fatalf("MaskURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

const warehouseSchema = `
CREATE TABLE prw_volumes (id INTEGER PRIMARY KEY, dept_wd_id TEXT, dept_name TEXT, month TEXT, volume INTEGER, unit TEXT);
CREATE TABLE prw_uos (id INTEGER PRIMARY KEY, dept_wd_id TEXT, dept_name TEXT, month TEXT, volume REAL, unit TEXT);
CREATE TABLE prw_budget (id INTEGER PRIMARY KEY, year INTEGER, dept_wd_id TEXT, dept_name TEXT, budget_fte REAL, budget_prod_hrs REAL, budget_volume INTEGER, budget_uos REAL, budget_prod_hrs_per_uos REAL, hourly_rate REAL);
CREATE TABLE prw_hours (id INTEGER PRIMARY KEY, month TEXT, dept_wd_id TEXT, dept_name TEXT, reg_hrs REAL, overtime_hrs REAL, prod_hrs REAL, nonprod_hrs REAL, total_hrs REAL, total_fte REAL);
CREATE TABLE prw_contracted_hours (id INTEGER PRIMARY KEY, dept_wd_id TEXT, dept_name TEXT, year INTEGER, hrs REAL, ttl_dept_hrs REAL);
CREATE TABLE prw_contracted_hours_meta (id INTEGER PRIMARY KEY, contracted_hours_updated_month TEXT);
CREATE TABLE prw_income_stmt (id INTEGER PRIMARY KEY, month TEXT, ledger_acct TEXT, dept_wd_id TEXT, dept_name TEXT, spend_category TEXT, revenue_category TEXT, actual REAL, budget REAL, actual_ytd REAL, budget_ytd REAL);
INSERT INTO prw_volumes (dept_wd_id, dept_name, month, volume, unit) VALUES ('CC_1', 'ICU', '2024-01', 90, 'Patient Days');
INSERT INTO prw_uos (dept_wd_id, dept_name, month, volume, unit) VALUES ('CC_1', 'ICU', '2024-01', 4.5, NULL);
INSERT INTO prw_budget (year, dept_wd_id, dept_name, budget_fte, budget_prod_hrs, budget_volume, budget_uos, budget_prod_hrs_per_uos, hourly_rate) VALUES
  (2023, 'CC_1', 'ICU', 8, 15000, 1000, 100, 15, 50),
  (2024, 'CC_1', 'ICU', 10, 19000, 1200, 150, 15.8, 55);
INSERT INTO prw_hours (month, dept_wd_id, dept_name, reg_hrs, overtime_hrs, prod_hrs, nonprod_hrs, total_hrs, total_fte) VALUES ('2024-01', 'CC_1', 'ICU', 1500, 20, 1400, 120, 1520, 9.5);
INSERT INTO prw_contracted_hours (dept_wd_id, dept_name, year, hrs, ttl_dept_hrs) VALUES ('CC_1', 'ICU', 2024, NULL, 2900);
INSERT INTO prw_contracted_hours_meta (contracted_hours_updated_month) VALUES ('2024-01-31');
INSERT INTO prw_income_stmt (month, ledger_acct, dept_wd_id, dept_name, spend_category, revenue_category, actual, budget, actual_ytd, budget_ytd) VALUES ('2024-01', '60000:Salaries', 'CC_1', 'ICU', 'Wages', NULL, 10, 12, 10, 12);
`

func newWarehouse(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenWarehouse("sqlite://" + filepath.Join(t.TempDir(), "warehouse.sqlite3"))
	if err != nil {
		t.Fatalf("OpenWarehouse: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.Exec(warehouseSchema); err != nil {
		t.Fatalf("seed warehouse: %v", err)
	}
	return db
}

type fakeContracted struct {
	rows    []core.ContractedHours
	updated string
	err     error
}

func (f fakeContracted) ReadContractedHours(context.Context) ([]core.ContractedHours, string, error) {
	return f.rows, f.updated, f.err
}

func TestIngest(t *testing.T) {
	wh := newWarehouse(t)
	path := filepath.Join(t.TempDir(), "snapshot.sqlite3")
	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer w.Close()

	now := time.Date(2024, 2, 10, 8, 0, 0, 0, time.UTC)
	src, err := Ingest(context.Background(), wh, w, IngestOptions{Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(src.Budget) != 1 || src.Budget[0].BudgetFTE != 10 {
		t.Fatalf("budget should keep only the latest year, got %+v", src.Budget)
	}
	if src.ContractedHoursUpdatedMonth != "2024-01-31" {
		t.Fatalf("updated month = %q", src.ContractedHoursUpdatedMonth)
	}

	loaded, err := LoadFile(context.Background(), path, "")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !loaded.LastUpdated.Equal(now) {
		t.Fatalf("LastUpdated = %v, want %v", loaded.LastUpdated, now)
	}
	if len(loaded.Volumes) != 1 || loaded.Volumes[0].Volume != 90 {
		t.Fatalf("volumes = %+v", loaded.Volumes)
	}
	if len(loaded.ContractedHours) != 1 || loaded.ContractedHours[0].Hours != 0 {
		t.Fatalf("contracted hours = %+v", loaded.ContractedHours)
	}
	if loaded.IncomeStatement[0].Category != "Wages" {
		t.Fatalf("income statement = %+v", loaded.IncomeStatement)
	}
}

func TestIngestContractedHoursOverride(t *testing.T) {
	wh := newWarehouse(t)
	w, err := Create(filepath.Join(t.TempDir(), "snapshot.sqlite3"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer w.Close()

	reader := fakeContracted{
		rows:    []core.ContractedHours{{DepartmentID: "CC_9", Year: 2024, Hours: 40, TotalDeptHours: 400}},
		updated: "2024-03",
	}
	src, err := Ingest(context.Background(), wh, w, IngestOptions{ContractedHours: reader})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(src.ContractedHours) != 1 || src.ContractedHours[0].DepartmentID != "CC_9" {
		t.Fatalf("contracted hours = %+v", src.ContractedHours)
	}
	if src.ContractedHoursUpdatedMonth != "2024-03" {
		t.Fatalf("updated month = %q", src.ContractedHoursUpdatedMonth)
	}

	boom := errors.New("sheet unavailable")
	if _, err := Ingest(context.Background(), wh, w, IngestOptions{ContractedHours: fakeContracted{err: boom}}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
}
