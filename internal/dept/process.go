package dept

import (
	"time"

	"findash/internal/core"
	"findash/internal/kpi"
	"findash/internal/snapshot"
	"findash/internal/statement"
)

// Settings are the selector values chosen on a dashboard.
type Settings struct {
	// Selection is AllSelection, a member ID or a nested group name.
	Selection string
	// Month is YYYY-MM. Empty selects the latest month with data.
	Month string
}

// Data is everything a department dashboard displays.
type Data struct {
	Config    Config
	Selection string
	IDs       []string
	Month     string
	// RejectedSelection holds a selector value that matched no member.
	// The dashboard falls back to AllSelection.
	RejectedSelection string

	// Newest month first.
	Volumes []kpi.MonthVolume
	UOS     []kpi.MonthVolume

	// Oldest month first.
	Hours         []kpi.MonthHours
	HoursForMonth kpi.HoursSummary
	HasHours      bool
	HoursYTM      kpi.HoursSummary
	HasHoursYTM   bool

	IncomeStatement statement.Statement
	Stats           kpi.DeptStats

	VolumeTrend []kpi.TrendPoint
	FTETrend    []kpi.TrendPoint

	LastUpdated time.Time
}

// Process partitions src down to the department selection and computes
// the tables and statistics for the selected month.
func Process(cfg Config, settings Settings, src *snapshot.Source, def statement.Definition, now time.Time) Data {
	if def == nil {
		def = statement.DefaultDefinition()
	}
	selection := settings.Selection
	if selection == "" {
		selection = AllSelection
	}
	ids := cfg.Select(selection)
	var rejected string
	if ids == nil {
		rejected, selection = selection, AllSelection
		ids = cfg.AllIDs()
	}
	data := src.Filter(ids)

	month := settings.Month
	if _, err := core.ParseMonth(month); err != nil {
		month = kpi.MaxMonthToDisplay(data.Volumes, data.UOS, data.IncomeStatement, now).String()
	}

	var ledger []core.LedgerRow
	for _, r := range data.IncomeStatement {
		if r.Month == month {
			ledger = append(ledger, r)
		}
	}

	out := Data{
		Config:            cfg,
		Selection:         selection,
		IDs:               ids,
		RejectedSelection: rejected,
		Month:             month,
		Volumes:           kpi.VolumeHistory(data.Volumes),
		UOS:               kpi.VolumeHistory(data.UOS),
		Hours:             kpi.HoursHistory(data.Hours),
		IncomeStatement:   statement.Generate(ledger, def),
		LastUpdated:       src.LastUpdated,
	}
	out.HoursForMonth, out.HasHours = kpi.HoursForMonth(data.Hours, month)
	out.HoursYTM, out.HasHoursYTM = kpi.HoursYTM(data.Hours, month)
	out.Stats = kpi.ComputeDepartmentStats(kpi.Input{
		DepartmentIDs:          ids,
		Month:                  month,
		Volumes:                data.Volumes,
		UOS:                    data.UOS,
		Budget:                 data.Budget,
		Hours:                  data.Hours,
		ContractedHours:        data.ContractedHours,
		IncomeStatement:        data.IncomeStatement,
		ContractedHoursUpdated: src.ContractedHoursUpdatedMonth,
		Definition:             def,
		Now:                    now,
	})
	trendVolumes := out.UOS
	if len(trendVolumes) == 0 {
		trendVolumes = out.Volumes
	}
	out.VolumeTrend = kpi.VolumeTrend(trendVolumes, month)
	out.FTETrend = kpi.FTETrend(out.Hours, month)
	return out
}
