package http

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"findash/internal/core"
	"findash/internal/fte"
)

// maxSelectionLen bounds the sel parameter; real selections are cost
// center IDs or short group names.
const maxSelectionLen = 128

var errMissingFTE = errors.New("fte is required")

// DashboardParams are the selector values of a dashboard request.
type DashboardParams struct {
	Selection string
	Month     string
	// RejectedMonth holds a month parameter that did not parse.
	RejectedMonth string
}

// ParseDashboardParams reads sel and month from query. An unparseable
// month is dropped so the latest month with data is shown instead.
func ParseDashboardParams(query url.Values) DashboardParams {
	p := DashboardParams{
		Selection: sanitizeInput(query.Get("sel")),
		Month:     strings.TrimSpace(query.Get("month")),
	}
	if len(p.Selection) > maxSelectionLen {
		p.Selection = p.Selection[:maxSelectionLen]
	}
	if p.Month != "" {
		m, err := core.ParseMonth(p.Month)
		if err != nil {
			p.RejectedMonth, p.Month = p.Month, ""
		} else {
			p.Month = m.String()
		}
	}
	return p
}

// Encode renders the params back into a query string, omitting empty values.
func (p DashboardParams) Encode() string {
	v := url.Values{}
	if p.Month != "" {
		v.Set("month", p.Month)
	}
	if p.Selection != "" {
		v.Set("sel", p.Selection)
	}
	return v.Encode()
}

// fteOverrides maps query names to the calculator parameter they set.
var fteOverrides = map[string]func(*fte.Params, float64){
	"prior_year_volume":        func(p *fte.Params, v float64) { p.PriorYearVolume = v },
	"prior_year_uos":           func(p *fte.Params, v float64) { p.PriorYearUOS = v },
	"budget_volume":            func(p *fte.Params, v float64) { p.BudgetVolume = v },
	"budget_uos":               func(p *fte.Params, v float64) { p.BudgetUOS = v },
	"budget_fte":               func(p *fte.Params, v float64) { p.BudgetFTE = v },
	"std_fte_hours":            func(p *fte.Params, v float64) { p.StdFTEHours = v },
	"std_salary_per_hour":      func(p *fte.Params, v float64) { p.StdSalaryPerHour = v },
	"percent_productive_hours": func(p *fte.Params, v float64) { p.PercentProductiveHours = v },
}

// ParseFTEParams reads the requested FTE and any parameter overrides.
// Overrides left out are filled from the defaults by the service.
func ParseFTEParams(query url.Values) (float64, fte.Params, error) {
	var params fte.Params
	raw := strings.TrimSpace(query.Get("fte"))
	if raw == "" {
		return 0, params, errMissingFTE
	}
	requested, err := parseNumber("fte", raw)
	if err != nil {
		return 0, params, err
	}
	if requested < 0 {
		return 0, params, fmt.Errorf("fte must not be negative")
	}
	for name, set := range fteOverrides {
		raw := strings.TrimSpace(query.Get(name))
		if raw == "" {
			continue
		}
		v, err := parseNumber(name, raw)
		if err != nil {
			return 0, params, err
		}
		set(&params, v)
	}
	return requested, params, nil
}

func parseNumber(name, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s: %q is not a number", name, raw)
	}
	return v, nil
}
