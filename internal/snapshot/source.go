// Package snapshot reads and writes the reporting snapshot: a SQLite file
// holding the volume, budget, hours and income statement tables, plus a
// small JSON side file of key/value settings.
package snapshot

import (
	"time"

	"findash/internal/core"
)

// Source is a fully loaded snapshot. It is never mutated after loading.
type Source struct {
	LastUpdated                 time.Time
	Volumes                     []core.Volume
	UOS                         []core.Volume
	Budget                      []core.Budget
	Hours                       []core.Hours
	ContractedHours             []core.ContractedHours
	IncomeStatement             []core.LedgerRow
	ContractedHoursUpdatedMonth string
}

// Filter returns a copy of s holding only rows for ids.
func (s *Source) Filter(ids []string) *Source {
	set := core.NewIDSet(ids...)
	out := &Source{
		LastUpdated:                 s.LastUpdated,
		ContractedHoursUpdatedMonth: s.ContractedHoursUpdatedMonth,
	}
	for _, v := range s.Volumes {
		if set.Has(v.DepartmentID) {
			out.Volumes = append(out.Volumes, v)
		}
	}
	for _, v := range s.UOS {
		if set.Has(v.DepartmentID) {
			out.UOS = append(out.UOS, v)
		}
	}
	for _, b := range s.Budget {
		if set.Has(b.DepartmentID) {
			out.Budget = append(out.Budget, b)
		}
	}
	for _, h := range s.Hours {
		if set.Has(h.DepartmentID) {
			out.Hours = append(out.Hours, h)
		}
	}
	for _, c := range s.ContractedHours {
		if set.Has(c.DepartmentID) {
			out.ContractedHours = append(out.ContractedHours, c)
		}
	}
	for _, r := range s.IncomeStatement {
		if set.Has(r.DepartmentID) {
			out.IncomeStatement = append(out.IncomeStatement, r)
		}
	}
	return out
}

// MonthRange spans the months offered by the dashboard: first is the
// earliest month in volumes, hours or the income statement, last is the
// earliest of their latest months. Empty tables are skipped; both are
// empty when every table is.
func (s *Source) MonthRange() (first, last string) {
	hours := make([]string, 0, len(s.Hours))
	for _, h := range s.Hours {
		hours = append(hours, h.Month)
	}
	ledger := make([]string, 0, len(s.IncomeStatement))
	for _, r := range s.IncomeStatement {
		ledger = append(ledger, r.Month)
	}

	for _, months := range [][]string{volumeMonths(s.Volumes), hours, ledger} {
		if len(months) == 0 {
			continue
		}
		lo, hi := months[0], months[0]
		for _, m := range months[1:] {
			if m < lo {
				lo = m
			}
			if m > hi {
				hi = m
			}
		}
		if first == "" || lo < first {
			first = lo
		}
		if last == "" || hi < last {
			last = hi
		}
	}
	return first, last
}

// Counts returns the number of rows per table, keyed by table name.
func (s *Source) Counts() map[string]int {
	return map[string]int{
		"volumes":          len(s.Volumes),
		"uos":              len(s.UOS),
		"budget":           len(s.Budget),
		"hours":            len(s.Hours),
		"contracted_hours": len(s.ContractedHours),
		"income_stmt":      len(s.IncomeStatement),
	}
}

func volumeMonths(rows []core.Volume) []string {
	out := make([]string, 0, len(rows))
	for _, v := range rows {
		out = append(out, v.Month)
	}
	return out
}
