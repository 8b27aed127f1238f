package http

import (
	"testing"

	"github.com/shopspring/decimal"

	"findash/internal/kpi"
)

func TestFormatDollars(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "$0"},
		{0.4, "$0"},
		{1234.5, "$1,235"},
		{-80.2, "-$80"},
		{1234567, "$1,234,567"},
	}
	for _, tt := range tests {
		if got := formatDollars(tt.in); got != tt.want {
			t.Fatalf("formatDollars(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := formatDecimalDollars(decimal.RequireFromString("-1500.75")); got != "-$1,501" {
		t.Fatalf("formatDecimalDollars = %q", got)
	}
}

func TestFormatNumberAndPct(t *testing.T) {
	if got := formatNumber(12345.678, 1); got != "12,345.7" {
		t.Fatalf("formatNumber = %q", got)
	}
	if got := formatNumber(42, 2); got != "42" {
		t.Fatalf("formatNumber whole = %q", got)
	}
	tests := []struct {
		in   int
		want string
	}{
		{5, "+5%"},
		{0, "0%"},
		{-12, "-12%"},
	}
	for _, tt := range tests {
		if got := formatPct(tt.in); got != tt.want {
			t.Fatalf("formatPct(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMonthLabel(t *testing.T) {
	if got := monthLabel("2024-04"); got != "Apr 2024" {
		t.Fatalf("monthLabel = %q", got)
	}
	if got := monthLabel("soon"); got != "soon" {
		t.Fatalf("monthLabel passthrough = %q", got)
	}
}

func TestTrendPoints(t *testing.T) {
	points := []kpi.TrendPoint{{Month: "a", Value: 0}, {Month: "b", Value: 5}, {Month: "c", Value: 10}}
	if got := trendPoints(points, 100, 50); got != "0.0,50.0 50.0,25.0 100.0,0.0" {
		t.Fatalf("trendPoints = %q", got)
	}
	if got := trendPoints([]kpi.TrendPoint{{Value: 0}}, 100, 50); got != "0.0,50.0" {
		t.Fatalf("flat trend = %q", got)
	}
	if got := trendPoints(nil, 100, 50); got != "" {
		t.Fatalf("empty trend = %q", got)
	}
}
