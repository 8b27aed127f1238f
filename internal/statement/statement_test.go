package statement

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"findash/internal/core"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func ledger(dept, account, category string, actual int64) core.LedgerRow {
	return core.LedgerRow{
		LedgerAccount: account,
		Category:      category,
		DepartmentID:  dept,
		Month:         "2024-03",
		Actual:        d(actual),
		Budget:        d(actual * 2),
		ActualYTD:     d(actual * 3),
		BudgetYTD:     d(actual * 4),
	}
}

func render(s Statement) string {
	var b strings.Builder
	for _, r := range s {
		if r.Amounts == nil {
			fmt.Fprintf(&b, "%s;%s;-\n", r.Hier, r.Label)
			continue
		}
		fmt.Fprintf(&b, "%s;%s;%s;%s;%s;%s\n", r.Hier, r.Label,
			r.Amounts.Actual, r.Amounts.Budget, r.Amounts.ActualYTD, r.Amounts.BudgetYTD)
	}
	return b.String()
}

func TestGenerateBasicStatement(t *testing.T) {
	def := Definition{
		Group{Name: "Operating Revenues", Items: []Node{
			Group{Name: "Patient Revenues", Items: []Node{
				Group{Name: "Inpatient", Items: []Node{
					Leaf{Account: "40000:Patient Revenues", Category: Category("Inpatient Revenue"), Negative: true},
				}},
			}},
		}},
	}
	rows := []core.LedgerRow{ledger("CC_1", "40000:Patient Revenues", "Inpatient Revenue", -1000)}

	got := Generate(rows, def)
	want := []struct {
		hier   string
		header bool
	}{
		{"Operating Revenues", true},
		{"Operating Revenues|Patient Revenues", true},
		{"Operating Revenues|Patient Revenues|Inpatient", true},
		{"Operating Revenues|Patient Revenues|Inpatient|40000:Patient Revenues-Inpatient Revenue", false},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d rows, got %d:\n%s", len(want), len(got), render(got))
	}
	for i, w := range want {
		if got[i].Hier != w.hier || got[i].IsHeader() != w.header {
			t.Fatalf("row %d: expected %q header=%v, got %q header=%v", i, w.hier, w.header, got[i].Hier, got[i].IsHeader())
		}
	}
	leaf := got[3]
	if leaf.Label != "Inpatient Revenue" {
		t.Fatalf("leaf label: got %q", leaf.Label)
	}
	if !leaf.Amounts.Actual.Equal(d(1000)) || !leaf.Amounts.BudgetYTD.Equal(d(4000)) {
		t.Fatalf("sign flip failed: %+v", *leaf.Amounts)
	}
}

func TestGenerateLeafLabels(t *testing.T) {
	def := Definition{
		Leaf{Account: "49000:Contractual Adjustments"},
		Leaf{Account: "60300:Supplies", Category: Category("")},
		Leaf{Account: "60300:Supplies", Category: Category("Medical")},
	}
	rows := []core.LedgerRow{
		ledger("CC_1", "49000:Contractual Adjustments", "Medicare", 10),
		ledger("CC_1", "49000:Contractual Adjustments", "Medicaid", 20),
		ledger("CC_1", "60300:Supplies", "", 5),
		ledger("CC_1", "60300:Supplies", "Medical", 7),
	}
	got := Generate(rows, def)
	want := "49000:Contractual Adjustments;49000:Contractual Adjustments;10;20;30;40\n" +
		"49000:Contractual Adjustments;49000:Contractual Adjustments;20;40;60;80\n" +
		"60300:Supplies-;(Blank);5;10;15;20\n" +
		"60300:Supplies-Medical;Medical;7;14;21;28\n"
	if render(got) != want {
		t.Fatalf("unexpected statement:\n%s\nwant:\n%s", render(got), want)
	}
}

func TestGenerateWildcardExpansion(t *testing.T) {
	def := Definition{
		Group{Name: "Expenses", Items: []Node{
			Leaf{Account: "50000:Salaries & Wages", Category: Category(Wildcard)},
			Leaf{Account: "60500:Utilities", Category: Category(Wildcard)},
		}},
	}
	rows := []core.LedgerRow{
		ledger("CC_1", "50000:Salaries & Wages", "Nursing", 1),
		ledger("CC_1", "50000:Salaries & Wages", "", 2),
		ledger("CC_1", "50000:Salaries & Wages", "Admin", 3),
		ledger("CC_1", "50000:Salaries & Wages", "Nursing", 4),
		ledger("CC_1", "60300:Supplies", "Medical", 5),
	}
	got := Generate(rows, def)

	if _, ok := got.Find("Expenses|60500:Utilities"); ok {
		t.Fatalf("wildcard with no rows must not emit a header")
	}
	header, ok := got.Find("Expenses|50000:Salaries & Wages")
	if !ok || !header.IsHeader() || header.Label != "50000:Salaries & Wages" {
		t.Fatalf("missing account header: %+v", header)
	}

	var labels []string
	seen := map[string]bool{}
	for _, r := range got {
		if r.IsHeader() || seen[r.Hier] {
			continue
		}
		seen[r.Hier] = true
		labels = append(labels, r.Label)
	}
	want := []string{BlankLabel, "Admin", "Nursing"}
	if strings.Join(labels, ",") != strings.Join(want, ",") {
		t.Fatalf("expected categories %v, got %v", want, labels)
	}

	nursing := 0
	for _, r := range got {
		if r.Hier == "Expenses|50000:Salaries & Wages|50000:Salaries & Wages-Nursing" {
			nursing++
		}
	}
	if nursing != 2 {
		t.Fatalf("expected one row per matching ledger row, got %d", nursing)
	}
}

func TestGenerateTotals(t *testing.T) {
	def := Definition{
		Group{Name: "Revenue", Items: []Node{
			Leaf{Account: "R1", Negative: true},
			Leaf{Account: "R2", Negative: true},
		}},
		Group{Name: "Deductions", Items: []Node{Leaf{Account: "D1"}}},
		Total{Name: "Net", Refs: []string{"Revenue/", "-Deductions/"}},
		Total{Name: "Missing", Refs: []string{"Nowhere/"}},
	}
	rows := []core.LedgerRow{
		ledger("CC_1", "R1", "", -100),
		ledger("CC_1", "R2", "", -50),
		ledger("CC_1", "D1", "", 30),
	}
	got := Generate(rows, def)
	net, ok := got.Find("Net")
	if !ok || net.Amounts == nil {
		t.Fatalf("missing total row")
	}
	if !net.Amounts.Actual.Equal(d(120)) || !net.Amounts.Budget.Equal(d(240)) {
		t.Fatalf("net total: got %+v", *net.Amounts)
	}
	missing, _ := got.Find("Missing")
	if missing.Amounts == nil || !missing.Amounts.Actual.IsZero() {
		t.Fatalf("unresolved total must be zero-valued, got %+v", missing)
	}
}

func TestTotalNestedPath(t *testing.T) {
	def := Definition{
		Group{Name: "A", Items: []Node{
			Leaf{Account: "X"},
			Total{Name: "Sub", Refs: []string{"A/X"}},
		}},
	}
	got := Generate([]core.LedgerRow{ledger("CC_1", "X", "", 9)}, def)
	sub, ok := got.Find("A|Sub")
	if !ok || !sub.Amounts.Actual.Equal(d(9)) {
		t.Fatalf("nested total: %+v", sub)
	}
}

// Random leaf values under two sibling groups; the total must equal the
// hand-computed signed sum.
func TestTotalMatchesManualSum(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	def := Definition{
		Group{Name: "Top", Items: []Node{
			Group{Name: "Left", Items: []Node{Leaf{Account: "L", Category: Category(Wildcard)}}},
			Group{Name: "Right", Items: []Node{Leaf{Account: "R", Category: Category(Wildcard)}}},
		}},
		Total{Name: "Diff", Refs: []string{"Top/Left", "-Top/Right"}},
	}
	for iter := 0; iter < 20; iter++ {
		var rows []core.LedgerRow
		var want int64
		for i := 0; i < 10; i++ {
			v := rng.Int63n(2001) - 1000
			cat := fmt.Sprintf("c%d", rng.Intn(4))
			if i%2 == 0 {
				rows = append(rows, ledger("CC_1", "L", cat, v))
				want += v
			} else {
				rows = append(rows, ledger("CC_1", "R", cat, v))
				want -= v
			}
		}
		diff, _ := Generate(rows, def).Find("Diff")
		if !diff.Amounts.Actual.Equal(d(want)) || !diff.Amounts.BudgetYTD.Equal(d(want*4)) {
			t.Fatalf("iteration %d: expected %d, got %s", iter, want, diff.Amounts.Actual)
		}
	}
}

func TestGenerateConsolidatesDepartments(t *testing.T) {
	def := Definition{
		Group{Name: "Deductions", Items: []Node{Leaf{Account: "49000:Contractual Adjustments"}}},
	}
	rows := []core.LedgerRow{
		ledger("CC_1", "49000:Contractual Adjustments", "", 100),
		ledger("CC_2", "49000:Contractual Adjustments", "", 100),
	}
	got := Generate(rows, def)
	if len(got) != 2 {
		t.Fatalf("expected header and one consolidated row, got:\n%s", render(got))
	}
	if !got[0].IsHeader() {
		t.Fatalf("header should stay without amounts")
	}
	if !got[1].Amounts.Actual.Equal(d(200)) {
		t.Fatalf("expected 200, got %s", got[1].Amounts.Actual)
	}
}

func TestGenerateSingleDepartmentKeepsDuplicates(t *testing.T) {
	def := Definition{Leaf{Account: "A"}}
	rows := []core.LedgerRow{ledger("CC_1", "A", "", 1), ledger("CC_1", "A", "", 2)}
	if got := Generate(rows, def); len(got) != 2 {
		t.Fatalf("single department rows are not grouped, got %d rows", len(got))
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	rows := []core.LedgerRow{
		ledger("CC_1", "40000:Patient Revenues", "Inpatient Revenue", -500),
		ledger("CC_2", "40000:Patient Revenues", "Clinic Revenue", -300),
		ledger("CC_1", "50000:Salaries & Wages", "Nursing", 200),
		ledger("CC_2", "50000:Salaries & Wages", "Admin", 100),
		ledger("CC_2", "60220:Professional Fees", "", 50),
	}
	def := DefaultDefinition()
	first := render(Generate(rows, def))
	for i := 0; i < 5; i++ {
		if again := render(Generate(rows, def)); again != first {
			t.Fatalf("output changed between runs:\n%s\nvs\n%s", first, again)
		}
	}
}

func TestDefaultDefinitionTotals(t *testing.T) {
	rows := []core.LedgerRow{
		ledger("CC_1", "40000:Patient Revenues", "Inpatient Revenue", -1000),
		ledger("CC_1", "40300:Other Operating Revenue", "Cafeteria", -100),
		ledger("CC_1", "49000:Contractual Adjustments", "", 200),
		ledger("CC_1", "50000:Salaries & Wages", "Nursing", 300),
		ledger("CC_1", "60221:Temp Labor", "Agency", 50),
	}
	s := Generate(rows, DefaultDefinition())

	check := func(hier string, want int64) {
		t.Helper()
		r, ok := s.Find(hier)
		if !ok || r.Amounts == nil {
			t.Fatalf("missing row %q", hier)
		}
		if !r.Amounts.Actual.Equal(d(want)) {
			t.Fatalf("%s: expected %d, got %s", hier, want, r.Amounts.Actual)
		}
	}
	check("Net Revenue", 900)
	check("Total Operating Expenses", 350)
	check("Operating Margin", 550)

	rev := s.SumWhere("Operating Revenues|Patient Revenues", "Operating Revenues|Other")
	if !rev.Actual.Equal(d(1100)) {
		t.Fatalf("revenue: got %s", rev.Actual)
	}
}

func TestValidateReportsUnresolvedRefs(t *testing.T) {
	def := DefaultDefinition()
	issues := Validate(def, nil)
	if len(issues) != 1 || issues[0].Total != "Operating Margin" || issues[0].Ref != "-Deductions/" {
		t.Fatalf("unexpected issues for empty data: %+v", issues)
	}
	rows := []core.LedgerRow{ledger("CC_1", "49000:Contractual Adjustments", "", 1)}
	if issues := Validate(def, rows); len(issues) != 0 {
		t.Fatalf("expected no issues, got %+v", issues)
	}
}

func TestDepth(t *testing.T) {
	cases := map[string]int{"A": 0, "A|B": 1, "A|B|C-D": 2}
	keys := make([]string, 0, len(cases))
	for k := range cases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if got := (Row{Hier: k}).Depth(); got != cases[k] {
			t.Fatalf("Depth(%q) = %d, want %d", k, got, cases[k])
		}
	}
}
