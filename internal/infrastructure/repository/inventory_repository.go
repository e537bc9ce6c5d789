package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sangkips/coopmart-api/internal/domain/entity"
	domainRepo "github.com/sangkips/coopmart-api/internal/domain/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type inventoryRepository struct {
	db *gorm.DB
}

// NewInventoryRepository creates a new inventory ledger repository
func NewInventoryRepository(db *gorm.DB) domainRepo.InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) ActiveCycle(ctx context.Context) (*entity.Cycle, error) {
	var cycle entity.Cycle
	err := r.db.WithContext(ctx).First(&cycle, "is_active = ?", true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &cycle, err
}

func (r *inventoryRepository) GetCycle(ctx context.Context, id uint) (*entity.Cycle, error) {
	var cycle entity.Cycle
	err := r.db.WithContext(ctx).First(&cycle, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &cycle, err
}

func (r *inventoryRepository) ListCycles(ctx context.Context) ([]entity.Cycle, error) {
	var cycles []entity.Cycle
	err := r.db.WithContext(ctx).Order("starts_at DESC").Find(&cycles).Error
	return cycles, err
}

func (r *inventoryRepository) CreateCycle(ctx context.Context, cycle *entity.Cycle) error {
	return r.db.WithContext(ctx).Create(cycle).Error
}

// ActivateCycle clears the current active flag before setting the new one so the
// partial unique index never sees two active rows
func (r *inventoryRepository) ActivateCycle(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		if err := tx.Model(&entity.Cycle{}).
			Where("is_active = ? AND id <> ?", true, id).
			Updates(map[string]interface{}{"is_active": false, "updated_at": now}).Error; err != nil {
			return err
		}
		res := tx.Model(&entity.Cycle{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{"is_active": true, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *inventoryRepository) AppendMovements(ctx context.Context, movements []entity.InventoryMovement) error {
	return appendMovements(r.db.WithContext(ctx), movements)
}

func (r *inventoryRepository) ListMovements(ctx context.Context, filter domainRepo.MovementFilter) ([]entity.InventoryMovement, error) {
	var movements []entity.InventoryMovement

	query := r.db.WithContext(ctx).Model(&entity.InventoryMovement{})
	if filter.BranchID != nil {
		query = query.Where("branch_id = ?", *filter.BranchID)
	}
	if filter.ItemID != nil {
		query = query.Where("item_id = ?", *filter.ItemID)
	}
	if filter.CycleID != nil {
		query = query.Where("cycle_id = ?", *filter.CycleID)
	}
	if filter.ReferenceType != nil {
		query = query.Where("reference_type = ?", *filter.ReferenceType)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	err := query.Preload("Item").Preload("Branch").Order("id DESC").Find(&movements).Error
	return movements, err
}

// ApplyStockChange locks the price row, moves initial stock by delta and records the movement
func (r *inventoryRepository) ApplyStockChange(ctx context.Context, branchID, itemID uint, delta int, movement *entity.InventoryMovement) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var price entity.BranchItemPrice
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&price, "branch_id = ? AND item_id = ?", branchID, itemID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainRepo.ErrNoPriceRow
		}
		if err != nil {
			return err
		}
		if price.InitialStock+delta < 0 {
			return domainRepo.ErrNegativeStock
		}

		if err := tx.Model(&entity.BranchItemPrice{}).
			Where("id = ?", price.ID).
			Updates(map[string]interface{}{
				"initial_stock": gorm.Expr("initial_stock + ?", delta),
				"updated_at":    time.Now(),
			}).Error; err != nil {
			return err
		}
		return tx.Omit("Item", "Branch").Create(movement).Error
	})
}
