package service

import (
	"context"

	"github.com/sangkips/coopmart-api/internal/domain/inventory"
	"github.com/sangkips/coopmart-api/internal/domain/repository"
	"github.com/sangkips/coopmart-api/pkg/apperror"
	"github.com/sangkips/coopmart-api/pkg/identity"
)

// InventoryService serves the reconciled stock view
type InventoryService struct {
	catalogRepo  repository.CatalogRepository
	orderRepo    repository.OrderRepository
	lowThreshold int64
}

// NewInventoryService creates a new inventory service. A negative lowThreshold means the default;
// zero flags only rows with nothing left.
func NewInventoryService(catalogRepo repository.CatalogRepository, orderRepo repository.OrderRepository, lowThreshold int64) *InventoryService {
	if lowThreshold < 0 {
		lowThreshold = inventory.DefaultLowStockThreshold
	}
	return &InventoryService{catalogRepo: catalogRepo, orderRepo: orderRepo, lowThreshold: lowThreshold}
}

// InventoryQuery filters the inventory view; empty fields mean all
type InventoryQuery struct {
	BranchCode string
	SKU        string
}

// GetInventoryStatus recomputes stock rows from prices and order lines.
// Reps default to, and are limited to, their own branch.
func (s *InventoryService) GetInventoryStatus(ctx context.Context, p identity.Principal, q InventoryQuery) ([]inventory.Row, error) {
	var filter repository.InventoryFilter

	if q.BranchCode != "" {
		branch, err := requireBranch(ctx, s.catalogRepo, q.BranchCode)
		if err != nil {
			return nil, err
		}
		if !p.CanActOnBranch(branch.ID) {
			return nil, apperror.NewForbiddenError("Inventory of other branches is not visible to you")
		}
		filter.BranchID = &branch.ID
	} else if !p.IsAdmin() {
		if p.BranchID == nil {
			return nil, apperror.NewForbiddenError("Inventory requires a branch scope")
		}
		filter.BranchID = p.BranchID
	}

	if q.SKU != "" {
		item, err := requireItem(ctx, s.catalogRepo, q.SKU)
		if err != nil {
			return nil, err
		}
		filter.ItemID = &item.ID
	}

	prices, err := s.catalogRepo.ListPrices(ctx, repository.PriceFilter{BranchID: filter.BranchID, ItemID: filter.ItemID})
	if err != nil {
		return nil, err
	}
	quantities, err := s.orderRepo.StatusQuantities(ctx, filter)
	if err != nil {
		return nil, err
	}
	return inventory.Reconcile(prices, quantities, s.lowThreshold), nil
}
