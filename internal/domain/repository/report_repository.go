package repository

import (
	"context"

	"github.com/shopspring/decimal"
)

// DemandRow aggregates order lines for one delivery branch, department and item
type DemandRow struct {
	BranchCode   string          `json:"branch_code"`
	BranchName   string          `json:"branch_name"`
	Department   string          `json:"department"`
	SKU          string          `json:"sku"`
	ItemName     string          `json:"item_name"`
	Qty          int64           `json:"qty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	UnitMarkup   decimal.Decimal `json:"unit_markup"`
	BaseAmount   decimal.Decimal `json:"base_amount"`
	MarkupAmount decimal.Decimal `json:"markup_amount"`
	Amount       decimal.Decimal `json:"amount"`
}

// DemandFilter narrows the demand aggregation
type DemandFilter struct {
	BranchCode string
	Department string
}

// ReportRepository defines read-only reporting queries
type ReportRepository interface {
	// Demand aggregates Pending, Posted and Delivered order lines
	Demand(ctx context.Context, filter DemandFilter) ([]DemandRow, error)
}
