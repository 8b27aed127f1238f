// Package sheets holds the ports for manually maintained spreadsheet data.
package sheets

import (
	"context"

	"findash/internal/core"
)

// ContractedHoursReader returns contracted hours per department and year,
// plus the date through which they have been entered.
type ContractedHoursReader interface {
	ReadContractedHours(ctx context.Context) (rows []core.ContractedHours, updatedMonth string, err error)
}
