// Package memory serves contracted hours from memory or a local CSV export
// of the spreadsheet.
package memory

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"findash/internal/core"
	ports "findash/internal/sheets"
)

type Store struct {
	mu      sync.Mutex
	rows    []core.ContractedHours
	updated string
}

var _ ports.ContractedHoursReader = (*Store)(nil)

func New(rows []core.ContractedHours, updated string) *Store {
	return &Store{rows: rows, updated: updated}
}

// NewFromCSV reads a CSV with the columns dept_wd_id, dept_name, year, hrs,
// ttl_dept_hrs and a header row. updated is the date hours were entered through.
func NewFromCSV(path, updated string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open contracted hours csv: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read contracted hours csv: %w", err)
	}
	var rows []core.ContractedHours
	for i, rec := range records {
		if i == 0 || len(rec) < 5 || strings.TrimSpace(rec[0]) == "" {
			continue
		}
		year, err := strconv.Atoi(strings.TrimSpace(rec[2]))
		if err != nil {
			return nil, fmt.Errorf("line %d: year: %w", i+1, err)
		}
		hours, _ := strconv.ParseFloat(strings.TrimSpace(rec[3]), 64)
		total, _ := strconv.ParseFloat(strings.TrimSpace(rec[4]), 64)
		rows = append(rows, core.ContractedHours{
			DepartmentID:   strings.TrimSpace(rec[0]),
			DepartmentName: strings.TrimSpace(rec[1]),
			Year:           year,
			Hours:          hours,
			TotalDeptHours: total,
		})
	}
	return New(rows, updated), nil
}

func (s *Store) ReadContractedHours(_ context.Context) ([]core.ContractedHours, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ContractedHours(nil), s.rows...), s.updated, nil
}
