package google

import (
	"fmt"
	"strconv"
	"strings"

	"findash/internal/core"
)

var contractedHeaders = []string{"Dept ID", "Dept Name", "Year", "Hours", "Total Dept Hours"}

// parseContractedHours converts the sheet values into rows. Rows before the
// header may hold an "Updated" label followed by the date hours were
// entered through. Rows without a department ID or year are skipped.
func parseContractedHours(values [][]interface{}) ([]core.ContractedHours, string, error) {
	var updated string
	header := -1
	var cols []int
	for i, raw := range values {
		row := toStrings(raw)
		if strings.EqualFold(safeGet(row, 0), "Updated") {
			updated = safeGet(row, 1)
			continue
		}
		if indexOf(row, contractedHeaders[0]) == -1 {
			continue
		}
		cols = make([]int, len(contractedHeaders))
		var missing []string
		for j, h := range contractedHeaders {
			cols[j] = indexOf(row, h)
			if cols[j] == -1 {
				missing = append(missing, h)
			}
		}
		if len(missing) > 0 {
			return nil, "", fmt.Errorf("unexpected header: missing %s; got headers=%v", strings.Join(missing, ","), row)
		}
		header = i
		break
	}
	if header == -1 {
		return nil, updated, fmt.Errorf("header row with %q not found", contractedHeaders[0])
	}

	var out []core.ContractedHours
	for _, raw := range values[header+1:] {
		row := toStrings(raw)
		if strings.EqualFold(safeGet(row, 0), "Updated") {
			updated = safeGet(row, 1)
			continue
		}
		id := safeGet(row, cols[0])
		year, err := strconv.Atoi(safeGet(row, cols[2]))
		if id == "" || err != nil {
			continue
		}
		hours, _ := parseNumber(safeGet(row, cols[3]))
		total, _ := parseNumber(safeGet(row, cols[4]))
		out = append(out, core.ContractedHours{
			DepartmentID:   id,
			DepartmentName: safeGet(row, cols[1]),
			Year:           year,
			Hours:          hours,
			TotalDeptHours: total,
		})
	}
	return out, updated, nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

// parseNumber accepts plain and thousands-separated numbers.
func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
