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
	domainRepo "github.com/sangkips/coopmart-api/internal/domain/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var orderSortColumns = map[string]string{
	"created_at":   "created_at",
	"total_amount": "total_amount",
	"status":       "status",
	"reference":    "reference",
}

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *gorm.DB) domainRepo.OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) CreateWithLines(ctx context.Context, order *entity.Order, movements []entity.InventoryMovement) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Member", "HomeBranch", "DeliveryBranch", "Department").Create(order).Error; err != nil {
			return err
		}
		return appendMovements(tx, movements)
	})
}

func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	var order entity.Order
	err := r.db.WithContext(ctx).
		Unscoped().
		Preload("Member").
		Preload("DeliveryBranch").
		Preload("HomeBranch").
		Preload("Department").
		Preload("Lines.Item").
		First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &order, err
}

func (r *orderRepository) List(ctx context.Context, params *domainRepo.OrderFilterParams) ([]entity.Order, int64, error) {
	var orders []entity.Order
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Order{})
	if params.Status != nil {
		if *params.Status == enum.OrderStatusDeleted {
			query = query.Unscoped()
		}
		query = query.Where("status = ?", *params.Status)
	}
	if params.MemberID != nil {
		query = query.Where("member_id = ?", *params.MemberID)
	}
	if params.DeliveryBranchID != nil {
		query = query.Where("delivery_branch_id = ?", *params.DeliveryBranchID)
	}
	if params.DepartmentID != nil {
		query = query.Where("department_id = ?", *params.DepartmentID)
	}
	if params.PaymentOption != nil {
		query = query.Where("payment_option = ?", *params.PaymentOption)
	}
	query = query.Scopes(CreatedBetween("created_at", params.StartDate, params.EndDate))

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Scopes(SortBy(orderSortColumns, params.SortBy, params.SortOrder, "created_at"), Paginate(params.Pagination)).
		Preload("Member").
		Preload("DeliveryBranch").
		Find(&orders).Error

	return orders, total, err
}

// ReplaceLines rewrites the line set only if the order is still Pending
func (r *orderRepository) ReplaceLines(ctx context.Context, order *entity.Order, movements []entity.InventoryMovement) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entity.Order{}).
			Where("id = ? AND status = ?", order.ID, enum.OrderStatusPending).
			Updates(map[string]interface{}{
				"total_amount": order.TotalAmount,
				"updated_at":   time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domainRepo.ErrStaleOrder
		}

		if err := tx.Where("order_id = ?", order.ID).Delete(&entity.OrderLine{}).Error; err != nil {
			return err
		}
		for i := range order.Lines {
			order.Lines[i].ID = uuid.Nil
			order.Lines[i].OrderID = order.ID
		}
		if len(order.Lines) > 0 {
			if err := tx.Omit("Item").Create(&order.Lines).Error; err != nil {
				return err
			}
		}
		return appendMovements(tx, movements)
	})
}

// Transition writes the status change guarded by the expected source status
func (r *orderRepository) Transition(ctx context.Context, t *domainRepo.OrderTransition) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		updates := map[string]interface{}{
			"status":     t.To,
			"updated_at": now,
		}
		for k, v := range t.Updates {
			updates[k] = v
		}
		if t.SoftDelete {
			updates["deleted_at"] = now
		}

		res := tx.Model(&entity.Order{}).
			Where("id = ? AND status = ?", t.OrderID, t.From).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domainRepo.ErrStaleOrder
		}
		return appendMovements(tx, t.Movements)
	})
}

func (r *orderRepository) Annotate(ctx context.Context, id uuid.UUID, note string) error {
	res := r.db.WithContext(ctx).
		Unscoped().
		Model(&entity.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"admin_notes": note, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *orderRepository) Exposure(ctx context.Context, memberID uint, excludeOrderID *uuid.UUID) (eligibility.Exposure, error) {
	var rows []struct {
		PaymentOption enum.PaymentOption
		Total         decimal.Decimal
	}

	query := r.db.WithContext(ctx).Model(&entity.Order{}).
		Select("payment_option, COALESCE(SUM(total_amount), 0) AS total").
		Where("member_id = ? AND status IN ?", memberID, []enum.OrderStatus{enum.OrderStatusPending, enum.OrderStatusPosted})
	if excludeOrderID != nil {
		query = query.Where("id <> ?", *excludeOrderID)
	}
	if err := query.Group("payment_option").Scan(&rows).Error; err != nil {
		return nil, err
	}

	exposure := eligibility.Exposure{}
	for _, row := range rows {
		exposure[row.PaymentOption] = row.Total
	}
	return exposure, nil
}

func (r *orderRepository) StatusQuantities(ctx context.Context, filter domainRepo.InventoryFilter) ([]inventory.StatusQuantity, error) {
	var rows []inventory.StatusQuantity

	query := r.db.WithContext(ctx).
		Table("order_lines AS l").
		Select("o.delivery_branch_id AS branch_id, l.item_id AS item_id, o.status AS status, SUM(l.qty) AS qty").
		Joins("JOIN orders o ON o.id = l.order_id").
		Where("o.status IN ?", []enum.OrderStatus{enum.OrderStatusPending, enum.OrderStatusPosted, enum.OrderStatusDelivered})
	if filter.BranchID != nil {
		query = query.Where("o.delivery_branch_id = ?", *filter.BranchID)
	}
	if filter.ItemID != nil {
		query = query.Where("l.item_id = ?", *filter.ItemID)
	}

	err := query.Group("o.delivery_branch_id, l.item_id, o.status").Scan(&rows).Error
	return rows, err
}

func appendMovements(tx *gorm.DB, movements []entity.InventoryMovement) error {
	if len(movements) == 0 {
		return nil
	}
	return tx.Omit("Item", "Branch").Create(&movements).Error
}
