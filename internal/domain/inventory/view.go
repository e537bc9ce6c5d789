// Package inventory derives per-branch stock counters from order-line aggregates.
// Counters are never stored; they are recomputed on every read.
package inventory

import (
	"sort"

	"github.com/sangkips/coopmart-api/internal/domain/entity"
	"github.com/sangkips/coopmart-api/internal/domain/enum"
)

// DefaultLowStockThreshold flags rows whose posted-adjusted remainder is at or below it
const DefaultLowStockThreshold = 20

// StatusQuantity is the summed line quantity for one (delivery branch, item, order status)
type StatusQuantity struct {
	BranchID uint
	ItemID   uint
	Status   enum.OrderStatus
	Qty      int64
}

// Row is the reconciled stock position of one item at one branch
type Row struct {
	BranchID                uint   `json:"branch_id"`
	BranchCode              string `json:"branch_code"`
	BranchName              string `json:"branch_name"`
	ItemID                  uint   `json:"item_id"`
	SKU                     string `json:"sku"`
	ItemName                string `json:"item_name"`
	InitialStock            int64  `json:"initial_stock"`
	PendingQty              int64  `json:"pending_qty"`
	PostedQty               int64  `json:"posted_qty"`
	DeliveredQty            int64  `json:"delivered_qty"`
	AllocatedQty            int64  `json:"allocated_qty"`
	RemainingAfterPosted    int64  `json:"remaining_after_posted"`
	RemainingAfterDelivered int64  `json:"remaining_after_delivered"`
	Low                     bool   `json:"low"`
}

type pairKey struct {
	branchID uint
	itemID   uint
}

// Reconcile builds one row per price row. Items without a price row at a branch are
// excluded; priced items with no orders appear with zero counters. Quantities for
// cancelled or deleted orders are ignored.
func Reconcile(prices []entity.BranchItemPrice, quantities []StatusQuantity, lowThreshold int64) []Row {
	type counters struct{ pending, posted, delivered int64 }
	byPair := make(map[pairKey]*counters, len(prices))
	for _, q := range quantities {
		key := pairKey{q.BranchID, q.ItemID}
		c, ok := byPair[key]
		if !ok {
			c = &counters{}
			byPair[key] = c
		}
		switch q.Status {
		case enum.OrderStatusPending:
			c.pending += q.Qty
		case enum.OrderStatusPosted:
			c.posted += q.Qty
		case enum.OrderStatusDelivered:
			c.delivered += q.Qty
		}
	}

	rows := make([]Row, 0, len(prices))
	for _, p := range prices {
		row := Row{
			BranchID:     p.BranchID,
			ItemID:       p.ItemID,
			InitialStock: int64(p.InitialStock),
		}
		if p.Branch != nil {
			row.BranchCode = p.Branch.Code
			row.BranchName = p.Branch.Name
		}
		if p.Item != nil {
			row.SKU = p.Item.SKU
			row.ItemName = p.Item.Name
		}
		if c, ok := byPair[pairKey{p.BranchID, p.ItemID}]; ok {
			row.PendingQty = c.pending
			row.PostedQty = c.posted
			row.DeliveredQty = c.delivered
		}
		row.AllocatedQty = row.PendingQty + row.PostedQty
		row.RemainingAfterPosted = row.InitialStock - row.AllocatedQty
		// delivered is subtracted once, from the posted-adjusted remainder
		row.RemainingAfterDelivered = row.RemainingAfterPosted - row.DeliveredQty
		row.Low = row.RemainingAfterPosted <= lowThreshold
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].BranchCode != rows[j].BranchCode {
			return rows[i].BranchCode < rows[j].BranchCode
		}
		return rows[i].SKU < rows[j].SKU
	})
	return rows
}
