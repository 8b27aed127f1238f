// Package statement expands ledger rows into a readable income statement by
// walking a definition tree of groups, account leaves and totals.
package statement

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"findash/internal/core"
)

// Separator joins the path segments of a row's hier.
const Separator = "|"

// BlankLabel is shown for a category that is present but empty.
const BlankLabel = "(Blank)"

// Amounts are the four money columns of a statement row.
type Amounts struct {
	Actual    decimal.Decimal
	Budget    decimal.Decimal
	ActualYTD decimal.Decimal
	BudgetYTD decimal.Decimal
}

// Add returns a + b.
func (a Amounts) Add(b Amounts) Amounts {
	return Amounts{
		Actual:    a.Actual.Add(b.Actual),
		Budget:    a.Budget.Add(b.Budget),
		ActualYTD: a.ActualYTD.Add(b.ActualYTD),
		BudgetYTD: a.BudgetYTD.Add(b.BudgetYTD),
	}
}

// Neg returns -a.
func (a Amounts) Neg() Amounts {
	return Amounts{
		Actual:    a.Actual.Neg(),
		Budget:    a.Budget.Neg(),
		ActualYTD: a.ActualYTD.Neg(),
		BudgetYTD: a.BudgetYTD.Neg(),
	}
}

// Row is one line of the generated statement. Header rows have nil Amounts.
type Row struct {
	Hier    string
	Label   string
	Amounts *Amounts
}

// IsHeader reports whether the row is a group or account header.
func (r Row) IsHeader() bool { return r.Amounts == nil }

// Depth is the number of ancestors of the row in the hierarchy.
func (r Row) Depth() int { return strings.Count(r.Hier, Separator) }

// Statement is the ordered output of Generate.
type Statement []Row

// Find returns the first row with the exact hier.
func (s Statement) Find(hier string) (Row, bool) {
	for _, r := range s {
		if r.Hier == hier {
			return r, true
		}
	}
	return Row{}, false
}

// SumWhere sums the amounts of every row whose hier starts with any of
// the prefixes. A row matching several prefixes is counted once.
func (s Statement) SumWhere(prefixes ...string) Amounts {
	var sum Amounts
	for _, r := range s {
		if r.Amounts == nil {
			continue
		}
		for _, p := range prefixes {
			if strings.HasPrefix(r.Hier, p) {
				sum = sum.Add(*r.Amounts)
				break
			}
		}
	}
	return sum
}

// Generate builds the statement for rows, which should cover one reporting
// period. When rows span more than one department, rows sharing a hier and
// label are summed into one, keeping first-seen order.
func Generate(rows []core.LedgerRow, def Definition) Statement {
	b := &builder{src: rows}
	b.walk(def, "")
	if countDepartments(rows) > 1 {
		return consolidate(b.out)
	}
	return b.out
}

// UnresolvedRef is a Total reference that matched no row emitted before it.
type UnresolvedRef struct {
	Total string
	Ref   string
}

// Validate runs a dry generation of def against rows and reports Total
// references that resolve to nothing. Generate treats these as zero.
func Validate(def Definition, rows []core.LedgerRow) []UnresolvedRef {
	b := &builder{src: rows, trackRefs: true}
	b.walk(def, "")
	return b.unresolved
}

type builder struct {
	src        []core.LedgerRow
	out        Statement
	trackRefs  bool
	unresolved []UnresolvedRef
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + Separator + name
}

func (b *builder) walk(nodes []Node, path string) {
	for _, n := range nodes {
		switch v := n.(type) {
		case Group:
			hier := join(path, v.Name)
			b.out = append(b.out, Row{Hier: hier, Label: v.Name})
			b.walk(v.Items, hier)
		case Leaf:
			if v.Category != nil && *v.Category == Wildcard {
				b.expandWildcard(v, path)
			} else {
				b.leaf(v, path)
			}
		case Total:
			b.total(v, path)
		}
	}
}

func (b *builder) expandWildcard(l Leaf, path string) {
	seen := make(map[string]struct{})
	for _, r := range b.src {
		if r.LedgerAccount == l.Account {
			seen[r.Category] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return
	}
	cats := make([]string, 0, len(seen))
	for c := range seen {
		cats = append(cats, c)
	}
	sort.Strings(cats)

	hier := join(path, l.Account)
	b.out = append(b.out, Row{Hier: hier, Label: l.Account})
	for _, c := range cats {
		b.leaf(Leaf{Account: l.Account, Category: Category(c), Negative: l.Negative}, hier)
	}
}

func (b *builder) leaf(l Leaf, path string) {
	name, label := l.Account, l.Account
	if l.Category != nil {
		name = l.Account + "-" + *l.Category
		label = *l.Category
		if label == "" {
			label = BlankLabel
		}
	}
	hier := join(path, name)

	for _, r := range b.src {
		if r.LedgerAccount != l.Account {
			continue
		}
		if l.Category != nil && r.Category != *l.Category {
			continue
		}
		a := Amounts{Actual: r.Actual, Budget: r.Budget, ActualYTD: r.ActualYTD, BudgetYTD: r.BudgetYTD}
		if l.Negative {
			a = a.Neg()
		}
		b.out = append(b.out, Row{Hier: hier, Label: label, Amounts: &a})
	}
}

func (b *builder) total(t Total, path string) {
	var sum Amounts
	for _, ref := range t.Refs {
		prefix := strings.ReplaceAll(ref, "/", Separator)
		neg := strings.HasPrefix(prefix, "-")
		prefix = strings.TrimPrefix(prefix, "-")

		var part Amounts
		matched := false
		for _, r := range b.out {
			if !strings.HasPrefix(r.Hier, prefix) {
				continue
			}
			matched = true
			if r.Amounts != nil {
				part = part.Add(*r.Amounts)
			}
		}
		if !matched && b.trackRefs {
			b.unresolved = append(b.unresolved, UnresolvedRef{Total: join(path, t.Name), Ref: ref})
		}
		if neg {
			part = part.Neg()
		}
		sum = sum.Add(part)
	}
	b.out = append(b.out, Row{Hier: join(path, t.Name), Label: t.Name, Amounts: &sum})
}

func countDepartments(rows []core.LedgerRow) int {
	ids := make(map[string]struct{})
	for _, r := range rows {
		ids[r.DepartmentID] = struct{}{}
	}
	return len(ids)
}

func consolidate(rows Statement) Statement {
	type key struct{ hier, label string }
	index := make(map[key]int, len(rows))
	out := make(Statement, 0, len(rows))
	for _, r := range rows {
		k := key{r.Hier, r.Label}
		i, ok := index[k]
		if !ok {
			index[k] = len(out)
			if r.Amounts != nil {
				a := *r.Amounts
				r.Amounts = &a
			}
			out = append(out, r)
			continue
		}
		if r.Amounts == nil {
			continue
		}
		if out[i].Amounts == nil {
			a := *r.Amounts
			out[i].Amounts = &a
			continue
		}
		a := out[i].Amounts.Add(*r.Amounts)
		out[i].Amounts = &a
	}
	return out
}
