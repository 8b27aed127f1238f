package http

import (
	"encoding/json"
	"html/template"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"findash/internal/core"
	"findash/internal/kpi"
)

// formatDollars formats v rounded to whole dollars, e.g. "$12,345" or "-$80".
func formatDollars(v float64) string {
	r := math.Round(v)
	if r == 0 {
		return "$0"
	}
	if r < 0 {
		return "-$" + humanize.Comma(int64(-r))
	}
	return "$" + humanize.Comma(int64(r))
}

func formatDecimalDollars(d decimal.Decimal) string {
	return formatDollars(d.InexactFloat64())
}

// formatNumber formats v with thousands separators, rounded to at most
// digits decimals.
func formatNumber(v float64, digits int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	// CommafWithDigits truncates.
	scale := math.Pow10(digits)
	return humanize.CommafWithDigits(math.Round(v*scale)/scale, digits)
}

// formatPct formats a whole percentage with an explicit sign.
func formatPct(v int) string {
	if v > 0 {
		return "+" + strconv.Itoa(v) + "%"
	}
	return strconv.Itoa(v) + "%"
}

// monthLabel turns "2024-04" into "Apr 2024", leaving unparseable input as is.
func monthLabel(s string) string {
	m, err := core.ParseMonth(s)
	if err != nil {
		return s
	}
	return m.Label()
}

// trendPoints lays points out as an SVG polyline within width x height,
// scaling values from zero to the maximum.
func trendPoints(points []kpi.TrendPoint, width, height float64) string {
	if len(points) == 0 {
		return ""
	}
	max := 0.0
	for _, p := range points {
		max = math.Max(max, p.Value)
	}
	step := 0.0
	if len(points) > 1 {
		step = width / float64(len(points)-1)
	}
	var b strings.Builder
	for i, p := range points {
		y := height
		if max > 0 {
			y = height - p.Value/max*height
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatFloat(float64(i)*step, 'f', 1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(y, 'f', 1, 64))
	}
	return b.String()
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"dollars":    formatDollars,
		"decDollars": formatDecimalDollars,
		"number":     formatNumber,
		"pct":        formatPct,
		"monthLabel": monthLabel,
		"trend":      trendPoints,
		"variance": func(actual, budget decimal.Decimal) string {
			return formatDecimalDollars(actual.Sub(budget))
		},
		"negative": func(d decimal.Decimal) bool { return d.IsNegative() },
	}
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

// writeJSON encodes v with status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
