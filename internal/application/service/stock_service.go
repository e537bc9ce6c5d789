package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sangkips/coopmart-api/internal/domain/entity"
	"github.com/sangkips/coopmart-api/internal/domain/enum"
	"github.com/sangkips/coopmart-api/internal/domain/repository"
	"github.com/sangkips/coopmart-api/pkg/apperror"
	"github.com/sangkips/coopmart-api/pkg/identity"
)

// StockService records receipts and adjustments against a branch's initial stock
type StockService struct {
	catalogRepo   repository.CatalogRepository
	inventoryRepo repository.InventoryRepository
}

// NewStockService creates a new stock ledger service
func NewStockService(catalogRepo repository.CatalogRepository, inventoryRepo repository.InventoryRepository) *StockService {
	return &StockService{catalogRepo: catalogRepo, inventoryRepo: inventoryRepo}
}

// StockChangeInput names the branch item and quantity of a stock change
type StockChangeInput struct {
	BranchCode string
	SKU        string
	Qty        int
	Note       string
}

// ReceiveStock adds delivered goods to a branch
func (s *StockService) ReceiveStock(ctx context.Context, p identity.Principal, input *StockChangeInput) (*entity.InventoryMovement, error) {
	if input.Qty <= 0 {
		return nil, apperror.NewValidationError("Quantity must be greater than zero", apperror.FieldError{Field: "qty", Message: "must be greater than zero"})
	}
	return s.apply(ctx, p, input, input.Qty, enum.ReferencePurchase)
}

// AdjustStock corrects initial stock by a signed delta
func (s *StockService) AdjustStock(ctx context.Context, p identity.Principal, input *StockChangeInput) (*entity.InventoryMovement, error) {
	if input.Qty == 0 {
		return nil, apperror.NewValidationError("Adjustment must not be zero", apperror.FieldError{Field: "qty", Message: "must not be zero"})
	}
	if strings.TrimSpace(input.Note) == "" {
		return nil, apperror.NewValidationError("Adjustment note is required", apperror.FieldError{Field: "note", Message: "is required"})
	}
	return s.apply(ctx, p, input, input.Qty, enum.ReferenceAdjustment)
}

func (s *StockService) apply(ctx context.Context, p identity.Principal, input *StockChangeInput, delta int, ref enum.ReferenceType) (*entity.InventoryMovement, error) {
	branch, err := requireBranch(ctx, s.catalogRepo, input.BranchCode)
	if err != nil {
		return nil, err
	}
	if !p.CanActOnBranch(branch.ID) {
		return nil, apperror.NewForbiddenError("Stock of other branches cannot be changed")
	}
	item, err := requireItem(ctx, s.catalogRepo, input.SKU)
	if err != nil {
		return nil, err
	}
	cycle, err := s.requireActiveCycle(ctx)
	if err != nil {
		return nil, err
	}

	movement := &entity.InventoryMovement{
		ItemID:        item.ID,
		BranchID:      branch.ID,
		CycleID:       cycle.ID,
		Type:          enum.MovementIn,
		Quantity:      delta,
		ReferenceType: ref,
		Note:          strings.TrimSpace(input.Note),
		CreatedBy:     p.Username,
	}
	if delta < 0 {
		movement.Type = enum.MovementOut
		movement.Quantity = -delta
	}

	err = s.inventoryRepo.ApplyStockChange(ctx, branch.ID, item.ID, delta, movement)
	switch {
	case errors.Is(err, repository.ErrNoPriceRow):
		return nil, apperror.NewValidationError(fmt.Sprintf("Item %s is not stocked at %s", item.SKU, branch.Code))
	case errors.Is(err, repository.ErrNegativeStock):
		return nil, apperror.NewValidationError(fmt.Sprintf("Adjustment would leave negative stock for %s at %s", item.SKU, branch.Code))
	case err != nil:
		return nil, err
	}
	movement.Item = item
	movement.Branch = branch
	return movement, nil
}

// MovementQuery filters the ledger; empty fields mean all
type MovementQuery struct {
	BranchCode string
	SKU        string
	CycleID    *uint
	Limit      int
}

// ListMovements returns ledger entries newest first, limited to the rep's branch
func (s *StockService) ListMovements(ctx context.Context, p identity.Principal, q MovementQuery) ([]entity.InventoryMovement, error) {
	filter := repository.MovementFilter{CycleID: q.CycleID, Limit: q.Limit}
	if filter.Limit <= 0 || filter.Limit > 1000 {
		filter.Limit = 200
	}
	if q.BranchCode != "" {
		branch, err := requireBranch(ctx, s.catalogRepo, q.BranchCode)
		if err != nil {
			return nil, err
		}
		filter.BranchID = &branch.ID
	}
	if !p.IsAdmin() {
		if p.BranchID == nil || (filter.BranchID != nil && *filter.BranchID != *p.BranchID) {
			return nil, apperror.NewForbiddenError("Ledger of other branches is not visible to you")
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
	return s.inventoryRepo.ListMovements(ctx, filter)
}

func (s *StockService) requireActiveCycle(ctx context.Context) (*entity.Cycle, error) {
	cycle, err := s.inventoryRepo.ActiveCycle(ctx)
	if err != nil {
		return nil, err
	}
	if cycle == nil {
		return nil, apperror.NewNotFoundError("Active cycle")
	}
	return cycle, nil
}
