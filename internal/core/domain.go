package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

type (
	// LedgerRow is one posted income statement line for a department and month.
	LedgerRow struct {
		LedgerAccount   string
		Category        string
		SpendCategory   string
		RevenueCategory string
		DepartmentID    string
		DepartmentName  string
		Month           string // YYYY-MM
		Actual          decimal.Decimal
		Budget          decimal.Decimal
		ActualYTD       decimal.Decimal
		BudgetYTD       decimal.Decimal
	}

	// Volume is a monthly volume or unit of service count for a department.
	Volume struct {
		DepartmentID   string
		DepartmentName string
		Month          string // YYYY-MM
		Volume         float64
		Unit           string
	}

	// Budget holds the annual budget targets for one department.
	Budget struct {
		DepartmentID          string
		DepartmentName        string
		BudgetFTE             float64
		BudgetProdHours       float64
		BudgetVolume          float64
		BudgetUOS             float64
		BudgetProdHoursPerUOS float64
		HourlyRate            float64
	}

	// Hours are employee hours worked by a department in one month.
	Hours struct {
		DepartmentID   string
		DepartmentName string
		Month          string // YYYY-MM
		RegHours       float64
		OvertimeHours  float64
		ProdHours      float64
		NonProdHours   float64
		TotalHours     float64
		TotalFTE       float64
	}

	// ContractedHours are non-employee (traveler, locum) hours for a department in one year.
	ContractedHours struct {
		DepartmentID   string
		DepartmentName string
		Year           int
		Hours          float64
		TotalDeptHours float64
	}
)

var (
	ErrInvalidMonth      = errors.New("invalid month")
	ErrEmptyDepartmentID = errors.New("empty department id")
	ErrEmptyAccount      = errors.New("empty ledger account")
)

// CombineCategory returns the spend category when present, otherwise the revenue category.
func CombineCategory(spend, revenue string) string {
	if spend != "" {
		return spend
	}
	return revenue
}

func (r LedgerRow) Validate() error {
	if strings.TrimSpace(r.LedgerAccount) == "" {
		return ErrEmptyAccount
	}
	if strings.TrimSpace(r.DepartmentID) == "" {
		return ErrEmptyDepartmentID
	}
	if _, err := ParseMonth(r.Month); err != nil {
		return err
	}
	return nil
}

func (v Volume) Validate() error {
	if strings.TrimSpace(v.DepartmentID) == "" {
		return ErrEmptyDepartmentID
	}
	if _, err := ParseMonth(v.Month); err != nil {
		return err
	}
	return nil
}

func (h Hours) Validate() error {
	if strings.TrimSpace(h.DepartmentID) == "" {
		return ErrEmptyDepartmentID
	}
	if _, err := ParseMonth(h.Month); err != nil {
		return err
	}
	return nil
}

// IDSet is a set of department identifiers.
type IDSet map[string]struct{}

// NewIDSet builds a set from a list of department IDs.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}
