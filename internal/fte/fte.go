// Package fte is the what-if calculator for staffing changes: it projects
// the volume, salary and reimbursement impact of a requested FTE count
// against a department's budget.
package fte

import "errors"

// ErrInvalidParams is returned by Params.Validate.
var ErrInvalidParams = errors.New("invalid fte parameters")

// Reimbursement per unit of statistical volume and the share collected.
const (
	ReimbursementPerVolume = 370
	ReimbursementRate      = 0.507
)

// Params configure the calculator. Zero fields are filled from DefaultParams
// by Merge.
type Params struct {
	PriorYearVolume        float64 `json:"prior_year_volume"`
	PriorYearUOS           float64 `json:"prior_year_uos"`
	BudgetVolume           float64 `json:"budget_volume"`
	BudgetUOS              float64 `json:"budget_uos"`
	BudgetFTE              float64 `json:"budget_fte"`
	StdFTEHours            float64 `json:"std_fte_hours"`
	StdSalaryPerHour       float64 `json:"std_salary_per_hour"`
	PercentProductiveHours float64 `json:"percent_productive_hours"`
}

// DefaultParams returns the parameters of the reference department.
func DefaultParams() Params {
	return Params{
		PriorYearVolume:        14577,
		PriorYearUOS:           26157,
		BudgetVolume:           16500,
		BudgetUOS:              29628,
		BudgetFTE:              32,
		StdFTEHours:            2080,
		StdSalaryPerHour:       37.06,
		PercentProductiveHours: 0.884423297881127,
	}
}

// Merge returns p with zero fields replaced by the matching field of defaults.
func (p Params) Merge(defaults Params) Params {
	pick := func(v, d float64) float64 {
		if v != 0 {
			return v
		}
		return d
	}
	return Params{
		PriorYearVolume:        pick(p.PriorYearVolume, defaults.PriorYearVolume),
		PriorYearUOS:           pick(p.PriorYearUOS, defaults.PriorYearUOS),
		BudgetVolume:           pick(p.BudgetVolume, defaults.BudgetVolume),
		BudgetUOS:              pick(p.BudgetUOS, defaults.BudgetUOS),
		BudgetFTE:              pick(p.BudgetFTE, defaults.BudgetFTE),
		StdFTEHours:            pick(p.StdFTEHours, defaults.StdFTEHours),
		StdSalaryPerHour:       pick(p.StdSalaryPerHour, defaults.StdSalaryPerHour),
		PercentProductiveHours: pick(p.PercentProductiveHours, defaults.PercentProductiveHours),
	}
}

// Validate reports parameters that would divide by zero.
func (p Params) Validate() error {
	if p.BudgetFTE <= 0 {
		return errors.Join(ErrInvalidParams, errors.New("budget_fte must be positive"))
	}
	if p.BudgetVolume <= 0 {
		return errors.Join(ErrInvalidParams, errors.New("budget_volume must be positive"))
	}
	return nil
}

// Result is the projected impact of staffing at the requested FTE.
type Result struct {
	ProductiveHoursNeeded   float64 `json:"productive_hours_needed_for_volume"`
	StandardVolume          float64 `json:"standard_volume"`
	StatisticalImpactVolume float64 `json:"statistical_impact_volume"`
	SalaryImpactDollars     float64 `json:"salary_impact_dollars"`
	ReimbursementDollars    float64 `json:"reimbursement_dollars"`
	NetImpactDollars        float64 `json:"net_impact_dollars"`
}

// Calc projects the impact of staffing at requested FTE. p must be valid.
func Calc(requested float64, p Params) Result {
	productiveHoursPerFTE := p.StdFTEHours * p.PercentProductiveHours
	standardVolume := p.BudgetVolume / p.BudgetFTE * requested
	impactVolume := standardVolume - p.BudgetVolume
	salary := (requested - p.BudgetFTE) * p.StdFTEHours * p.StdSalaryPerHour
	reimbursement := impactVolume * ReimbursementPerVolume * ReimbursementRate

	return Result{
		ProductiveHoursNeeded:   requested * productiveHoursPerFTE,
		StandardVolume:          standardVolume,
		StatisticalImpactVolume: impactVolume,
		SalaryImpactDollars:     salary,
		ReimbursementDollars:    reimbursement,
		NetImpactDollars:        reimbursement - salary,
	}
}
