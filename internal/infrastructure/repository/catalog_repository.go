package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sangkips/coopmart-api/internal/domain/entity"
	domainRepo "github.com/sangkips/coopmart-api/internal/domain/repository"
	"github.com/sangkips/coopmart-api/pkg/utils"
	"gorm.io/gorm"
)

type catalogRepository struct {
	db        *gorm.DB
	chunkSize int
}

// NewCatalogRepository creates a new catalog repository writing imports in chunks of chunkSize
func NewCatalogRepository(db *gorm.DB, chunkSize int) domainRepo.CatalogRepository {
	return &catalogRepository{db: db, chunkSize: chunkSize}
}

func (r *catalogRepository) ListBranches(ctx context.Context) ([]entity.Branch, error) {
	var branches []entity.Branch
	err := r.db.WithContext(ctx).Order("code ASC").Find(&branches).Error
	return branches, err
}

func (r *catalogRepository) GetBranchByCode(ctx context.Context, code string) (*entity.Branch, error) {
	var branch entity.Branch
	err := r.db.WithContext(ctx).First(&branch, "code = ?", utils.NormalizeCode(code)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &branch, err
}

// FindBranches loads the branches matching codes in a single query
func (r *catalogRepository) FindBranches(ctx context.Context, codes []string) ([]entity.Branch, error) {
	if len(codes) == 0 {
		return []entity.Branch{}, nil
	}
	normalized := make([]string, len(codes))
	for i, c := range codes {
		normalized[i] = utils.NormalizeCode(c)
	}
	var branches []entity.Branch
	err := r.db.WithContext(ctx).Where("code IN ?", normalized).Find(&branches).Error
	return branches, err
}

func (r *catalogRepository) ListDepartments(ctx context.Context) ([]entity.Department, error) {
	var departments []entity.Department
	err := r.db.WithContext(ctx).Order("name ASC").Find(&departments).Error
	return departments, err
}

func (r *catalogRepository) GetDepartmentByName(ctx context.Context, name string) (*entity.Department, error) {
	var department entity.Department
	err := r.db.WithContext(ctx).First(&department, "LOWER(name) = ?", utils.NormalizeName(name)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &department, err
}

// FindDepartments matches names case-insensitively
func (r *catalogRepository) FindDepartments(ctx context.Context, names []string) ([]entity.Department, error) {
	if len(names) == 0 {
		return []entity.Department{}, nil
	}
	normalized := make([]string, len(names))
	for i, n := range names {
		normalized[i] = utils.NormalizeName(n)
	}
	var departments []entity.Department
	err := r.db.WithContext(ctx).Where("LOWER(name) IN ?", normalized).Find(&departments).Error
	return departments, err
}

func (r *catalogRepository) ListItems(ctx context.Context, search string) ([]entity.Item, error) {
	var items []entity.Item
	query := r.db.WithContext(ctx).Model(&entity.Item{})
	if search != "" {
		like := "%" + search + "%"
		query = query.Where("name ILIKE ? OR sku ILIKE ?", like, like)
	}
	err := query.Order("sku ASC").Find(&items).Error
	return items, err
}

func (r *catalogRepository) GetItemBySKU(ctx context.Context, sku string) (*entity.Item, error) {
	var item entity.Item
	err := r.db.WithContext(ctx).First(&item, "sku = ?", utils.NormalizeCode(sku)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &item, err
}

func (r *catalogRepository) FindItems(ctx context.Context, skus []string) ([]entity.Item, error) {
	if len(skus) == 0 {
		return []entity.Item{}, nil
	}
	normalized := make([]string, len(skus))
	for i, s := range skus {
		normalized[i] = utils.NormalizeCode(s)
	}
	var items []entity.Item
	err := r.db.WithContext(ctx).Where("sku IN ?", normalized).Find(&items).Error
	return items, err
}

func (r *catalogRepository) UpsertItems(ctx context.Context, items []entity.Item) (int, error) {
	w := r.itemWriter()
	return writeInChunks[entity.Item](ctx, w, w.table, items, r.chunkSize)
}

// itemWriter leaves a stored image_ref alone when the incoming row has none
func (r *catalogRepository) itemWriter() gormChunkWriter[entity.Item] {
	return gormChunkWriter[entity.Item]{
		db:         r.db,
		table:      entity.Item{}.TableName(),
		conflict:   []string{"sku"},
		updates:    []string{"name", "unit", "category", "image_ref", "updated_at"},
		keepIfNull: []string{"image_ref"},
		key: func(i *entity.Item) map[string]interface{} {
			return map[string]interface{}{"sku": utils.NormalizeCode(i.SKU)}
		},
		rowUpdates: func(i *entity.Item) []string {
			if i.ImageRef == nil {
				return []string{"name", "unit", "category", "updated_at"}
			}
			return []string{"name", "unit", "category", "image_ref", "updated_at"}
		},
	}
}

func (r *catalogRepository) GetPrice(ctx context.Context, branchID, itemID uint) (*entity.BranchItemPrice, error) {
	var price entity.BranchItemPrice
	err := r.db.WithContext(ctx).
		Preload("Branch").Preload("Item").
		First(&price, "branch_id = ? AND item_id = ?", branchID, itemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &price, err
}

func (r *catalogRepository) ListPrices(ctx context.Context, filter domainRepo.PriceFilter) ([]entity.BranchItemPrice, error) {
	var prices []entity.BranchItemPrice
	err := r.db.WithContext(ctx).
		Scopes(pairFilter(filter)).
		Preload("Branch").Preload("Item").
		Order("branch_id ASC, item_id ASC").
		Find(&prices).Error
	return prices, err
}

func (r *catalogRepository) UpsertPrices(ctx context.Context, prices []entity.BranchItemPrice) (int, error) {
	w := gormChunkWriter[entity.BranchItemPrice]{
		db:       r.db,
		table:    entity.BranchItemPrice{}.TableName(),
		conflict: []string{"branch_id", "item_id"},
		updates:  []string{"base_price", "initial_stock", "updated_at"},
		key: func(p *entity.BranchItemPrice) map[string]interface{} {
			return map[string]interface{}{"branch_id": p.BranchID, "item_id": p.ItemID}
		},
	}
	return writeInChunks[entity.BranchItemPrice](ctx, w, w.table, prices, r.chunkSize)
}

func (r *catalogRepository) GetMarkup(ctx context.Context, branchID, itemID uint) (*entity.BranchItemMarkup, error) {
	var markup entity.BranchItemMarkup
	err := r.db.WithContext(ctx).First(&markup, "branch_id = ? AND item_id = ?", branchID, itemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &markup, err
}

func (r *catalogRepository) ListMarkups(ctx context.Context, filter domainRepo.PriceFilter) ([]entity.BranchItemMarkup, error) {
	var markups []entity.BranchItemMarkup
	err := r.db.WithContext(ctx).
		Scopes(pairFilter(filter)).
		Preload("Branch").Preload("Item").
		Order("branch_id ASC, item_id ASC").
		Find(&markups).Error
	return markups, err
}

func (r *catalogRepository) UpsertMarkups(ctx context.Context, markups []entity.BranchItemMarkup) (int, error) {
	w := gormChunkWriter[entity.BranchItemMarkup]{
		db:       r.db,
		table:    entity.BranchItemMarkup{}.TableName(),
		conflict: []string{"branch_id", "item_id"},
		updates:  []string{"amount", "active", "updated_at"},
		key: func(m *entity.BranchItemMarkup) map[string]interface{} {
			return map[string]interface{}{"branch_id": m.BranchID, "item_id": m.ItemID}
		},
	}
	return writeInChunks[entity.BranchItemMarkup](ctx, w, w.table, markups, r.chunkSize)
}

func (r *catalogRepository) SetMarkupActive(ctx context.Context, branchID, itemID uint, active bool) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entity.BranchItemMarkup{}).
		Where("branch_id = ? AND item_id = ?", branchID, itemID).
		Updates(map[string]interface{}{"active": active, "updated_at": time.Now()})
	return res.RowsAffected > 0, res.Error
}

func (r *catalogRepository) DeleteMarkup(ctx context.Context, branchID, itemID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("branch_id = ? AND item_id = ?", branchID, itemID).
		Delete(&entity.BranchItemMarkup{})
	return res.RowsAffected > 0, res.Error
}

func pairFilter(filter domainRepo.PriceFilter) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if filter.BranchID != nil {
			db = db.Where("branch_id = ?", *filter.BranchID)
		}
		if filter.ItemID != nil {
			db = db.Where("item_id = ?", *filter.ItemID)
		}
		if len(filter.ItemIDs) > 0 {
			db = db.Where("item_id IN ?", filter.ItemIDs)
		}
		return db
	}
}
