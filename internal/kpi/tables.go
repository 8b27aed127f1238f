package kpi

import (
	"sort"

	"findash/internal/core"
)

// TrendMonths is the number of months shown in trend charts.
const TrendMonths = 12

// MonthVolume is the volume for one month summed across departments.
type MonthVolume struct {
	Month  string
	Volume float64
	Unit   string
}

// MonthHours is the hours and FTE for one month summed across departments.
type MonthHours struct {
	Month        string
	ProdHours    float64
	NonProdHours float64
	TotalHours   float64
	TotalFTE     float64
}

// HoursSummary is a summed set of hours columns.
type HoursSummary struct {
	RegHours      float64
	OvertimeHours float64
	ProdHours     float64
	NonProdHours  float64
	TotalHours    float64
	TotalFTE      float64
}

func (s *HoursSummary) add(h core.Hours) {
	s.RegHours += h.RegHours
	s.OvertimeHours += h.OvertimeHours
	s.ProdHours += h.ProdHours
	s.NonProdHours += h.NonProdHours
	s.TotalHours += h.TotalHours
	s.TotalFTE += h.TotalFTE
}

// TrendPoint is one month of a trend chart.
type TrendPoint struct {
	Month string
	Value float64
}

// VolumeHistory groups rows by month, summing volume and keeping the first
// unit seen, newest month first.
func VolumeHistory(rows []core.Volume) []MonthVolume {
	index := make(map[string]int)
	var out []MonthVolume
	for _, r := range rows {
		i, ok := index[r.Month]
		if !ok {
			index[r.Month] = len(out)
			out = append(out, MonthVolume{Month: r.Month, Unit: r.Unit})
			i = len(out) - 1
		}
		out[i].Volume += r.Volume
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Month > out[j].Month })
	return out
}

// HoursHistory groups rows by month, oldest month first.
func HoursHistory(rows []core.Hours) []MonthHours {
	index := make(map[string]int)
	var out []MonthHours
	for _, r := range rows {
		i, ok := index[r.Month]
		if !ok {
			index[r.Month] = len(out)
			out = append(out, MonthHours{Month: r.Month})
			i = len(out) - 1
		}
		out[i].ProdHours += r.ProdHours
		out[i].NonProdHours += r.NonProdHours
		out[i].TotalHours += r.TotalHours
		out[i].TotalFTE += r.TotalFTE
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// HoursForMonth sums the hours of every row in month. The boolean is false
// when there are no rows for the month.
func HoursForMonth(rows []core.Hours, month string) (HoursSummary, bool) {
	var sum HoursSummary
	found := false
	for _, r := range rows {
		if r.Month == month {
			sum.add(r)
			found = true
		}
	}
	return sum, found
}

// HoursYTM sums the hours from January through month of the same year.
// After January, TotalFTE is recomputed from total hours and the fraction
// of the year elapsed instead of summing monthly FTE.
func HoursYTM(rows []core.Hours, month string) (HoursSummary, bool) {
	m, err := core.ParseMonth(month)
	if err != nil {
		return HoursSummary{}, false
	}
	var sum HoursSummary
	found := false
	for _, r := range rows {
		if m.InYearThrough(r.Month) {
			sum.add(r)
			found = true
		}
	}
	if found && m.Month > 1 {
		sum.TotalFTE = safeDiv(sum.TotalHours, core.FTEHoursInYear(m.Year)*core.FractionOfYearThrough(m))
	}
	return sum, found
}

// VolumeTrend returns the trailing months of volume ending at endMonth,
// oldest first, with missing months as zero.
func VolumeTrend(history []MonthVolume, endMonth string) []TrendPoint {
	byMonth := make(map[string]float64, len(history))
	for _, h := range history {
		if _, ok := byMonth[h.Month]; !ok {
			byMonth[h.Month] = h.Volume
		}
	}
	return trend(byMonth, endMonth)
}

// FTETrend returns the trailing months of total FTE ending at endMonth,
// oldest first, with missing months as zero.
func FTETrend(history []MonthHours, endMonth string) []TrendPoint {
	byMonth := make(map[string]float64, len(history))
	for _, h := range history {
		if _, ok := byMonth[h.Month]; !ok {
			byMonth[h.Month] = h.TotalFTE
		}
	}
	return trend(byMonth, endMonth)
}

func trend(byMonth map[string]float64, endMonth string) []TrendPoint {
	end, err := core.ParseMonth(endMonth)
	if err != nil {
		return nil
	}
	out := make([]TrendPoint, TrendMonths)
	for i := 0; i < TrendMonths; i++ {
		m := end.AddMonths(i - TrendMonths + 1).String()
		out[i] = TrendPoint{Month: m, Value: byMonth[m]}
	}
	return out
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
