package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/coopmart-api/internal/domain/eligibility"
	"github.com/sangkips/coopmart-api/internal/domain/entity"
	"github.com/sangkips/coopmart-api/internal/domain/enum"
	"github.com/sangkips/coopmart-api/internal/domain/inventory"
	"github.com/sangkips/coopmart-api/pkg/pagination"
)

// ErrStaleOrder is returned when a conditional write finds the order no longer in the expected state
var ErrStaleOrder = errors.New("order is no longer in the expected state")

// OrderRepository defines the interface for order data operations
type OrderRepository interface {
	// CreateWithLines persists the order, its lines and ledger movements in one transaction
	CreateWithLines(ctx context.Context, order *entity.Order, movements []entity.InventoryMovement) error
	// GetByID loads an order with its lines, including soft-deleted orders
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Order, error)
	List(ctx context.Context, params *OrderFilterParams) ([]entity.Order, int64, error)
	// ReplaceLines swaps the full line set while the order is still Pending
	ReplaceLines(ctx context.Context, order *entity.Order, movements []entity.InventoryMovement) error
	// Transition applies a conditional status change; ErrStaleOrder when zero rows match
	Transition(ctx context.Context, t *OrderTransition) error
	Annotate(ctx context.Context, id uuid.UUID, note string) error
	// Exposure sums Pending and Posted order totals for a member per payment option
	Exposure(ctx context.Context, memberID uint, excludeOrderID *uuid.UUID) (eligibility.Exposure, error)
	// StatusQuantities sums line quantities per delivery branch, item and order status
	StatusQuantities(ctx context.Context, filter InventoryFilter) ([]inventory.StatusQuantity, error)
}

// OrderTransition describes one conditional status change
type OrderTransition struct {
	OrderID uuid.UUID
	From    enum.OrderStatus
	To      enum.OrderStatus
	// Updates holds extra columns written with the status, such as posted_at
	Updates map[string]interface{}
	// Movements are appended to the ledger in the same transaction
	Movements []entity.InventoryMovement
	// SoftDelete also stamps deleted_at on the order
	SoftDelete bool
}

// OrderFilterParams contains filtering parameters for order queries
type OrderFilterParams struct {
	Pagination       *pagination.PaginationParams
	Status           *enum.OrderStatus
	MemberID         *uint
	DeliveryBranchID *uint
	DepartmentID     *uint
	PaymentOption    *enum.PaymentOption
	StartDate        *time.Time
	EndDate          *time.Time
	SortBy           string
	SortOrder        string
}

// InventoryFilter narrows reconciliation queries
type InventoryFilter struct {
	BranchID *uint
	ItemID   *uint
}
