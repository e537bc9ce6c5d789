package repository

import (
	"context"
	"errors"

	"github.com/sangkips/coopmart-api/internal/domain/entity"
	"github.com/sangkips/coopmart-api/internal/domain/enum"
)

// ErrNoPriceRow is returned when a stock change targets an item that is not stocked at the branch
var ErrNoPriceRow = errors.New("item has no price row at branch")

// ErrNegativeStock is returned when a stock change would take initial stock below zero
var ErrNegativeStock = errors.New("stock change would leave negative initial stock")

// InventoryRepository covers cycles and the append-only movement ledger
type InventoryRepository interface {
	ActiveCycle(ctx context.Context) (*entity.Cycle, error)
	GetCycle(ctx context.Context, id uint) (*entity.Cycle, error)
	ListCycles(ctx context.Context) ([]entity.Cycle, error)
	CreateCycle(ctx context.Context, cycle *entity.Cycle) error
	// ActivateCycle makes id the only active cycle
	ActivateCycle(ctx context.Context, id uint) error

	AppendMovements(ctx context.Context, movements []entity.InventoryMovement) error
	ListMovements(ctx context.Context, filter MovementFilter) ([]entity.InventoryMovement, error)
	// ApplyStockChange adds delta to a price row's initial stock and appends the movement atomically
	ApplyStockChange(ctx context.Context, branchID, itemID uint, delta int, movement *entity.InventoryMovement) error
}

// MovementFilter narrows ledger listings
type MovementFilter struct {
	BranchID      *uint
	ItemID        *uint
	CycleID       *uint
	ReferenceType *enum.ReferenceType
	Limit         int
}
