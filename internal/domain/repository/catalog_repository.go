package repository

import (
	"context"

	"github.com/sangkips/coopmart-api/internal/domain/entity"
)

// CatalogRepository covers branches, departments, items and their per-branch prices and markups
type CatalogRepository interface {
	ListBranches(ctx context.Context) ([]entity.Branch, error)
	GetBranchByCode(ctx context.Context, code string) (*entity.Branch, error)
	FindBranches(ctx context.Context, codes []string) ([]entity.Branch, error)

	ListDepartments(ctx context.Context) ([]entity.Department, error)
	GetDepartmentByName(ctx context.Context, name string) (*entity.Department, error)
	FindDepartments(ctx context.Context, names []string) ([]entity.Department, error)

	ListItems(ctx context.Context, search string) ([]entity.Item, error)
	GetItemBySKU(ctx context.Context, sku string) (*entity.Item, error)
	FindItems(ctx context.Context, skus []string) ([]entity.Item, error)
	UpsertItems(ctx context.Context, items []entity.Item) (int, error)

	GetPrice(ctx context.Context, branchID, itemID uint) (*entity.BranchItemPrice, error)
	ListPrices(ctx context.Context, filter PriceFilter) ([]entity.BranchItemPrice, error)
	UpsertPrices(ctx context.Context, prices []entity.BranchItemPrice) (int, error)

	GetMarkup(ctx context.Context, branchID, itemID uint) (*entity.BranchItemMarkup, error)
	ListMarkups(ctx context.Context, filter PriceFilter) ([]entity.BranchItemMarkup, error)
	UpsertMarkups(ctx context.Context, markups []entity.BranchItemMarkup) (int, error)
	// SetMarkupActive toggles a markup without deleting it; false when no row exists
	SetMarkupActive(ctx context.Context, branchID, itemID uint, active bool) (bool, error)
	// DeleteMarkup removes a markup row; false when no row existed
	DeleteMarkup(ctx context.Context, branchID, itemID uint) (bool, error)
}

// PriceFilter narrows price and markup listings
type PriceFilter struct {
	BranchID *uint
	ItemID   *uint
	ItemIDs  []uint
}
