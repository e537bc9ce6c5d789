package service

import (
	"context"
	"fmt"

	"github.com/sangkips/coopmart-api/internal/domain/entity"
	"github.com/sangkips/coopmart-api/internal/domain/repository"
	"github.com/sangkips/coopmart-api/pkg/apperror"
	"github.com/shopspring/decimal"
)

// PricingService resolves the effective sell price of items per branch
type PricingService struct {
	catalogRepo repository.CatalogRepository
}

// NewPricingService creates a new pricing service
func NewPricingService(catalogRepo repository.CatalogRepository) *PricingService {
	return &PricingService{catalogRepo: catalogRepo}
}

// ResolvedPrice is an item's price at one branch with the markup applied
type ResolvedPrice struct {
	BranchID       uint            `json:"branch_id"`
	BranchCode     string          `json:"branch_code"`
	ItemID         uint            `json:"item_id"`
	SKU            string          `json:"sku"`
	ItemName       string          `json:"item_name"`
	BasePrice      decimal.Decimal `json:"base_price"`
	Markup         decimal.Decimal `json:"markup"`
	MarkupActive   bool            `json:"markup_active"`
	EffectivePrice decimal.Decimal `json:"effective_price"`
	InitialStock   int             `json:"initial_stock"`
}

func resolve(price entity.BranchItemPrice, markup *entity.BranchItemMarkup) ResolvedPrice {
	rp := ResolvedPrice{
		BranchID:       price.BranchID,
		ItemID:         price.ItemID,
		BasePrice:      price.BasePrice,
		Markup:         markup.ActiveAmount(),
		MarkupActive:   markup != nil && markup.Active,
		EffectivePrice: price.EffectivePrice(markup),
		InitialStock:   price.InitialStock,
	}
	if price.Branch != nil {
		rp.BranchCode = price.Branch.Code
	}
	if price.Item != nil {
		rp.SKU = price.Item.SKU
		rp.ItemName = price.Item.Name
	}
	return rp
}

// Resolve returns the effective price of one item at one branch.
// ok is false when the branch has no price row for the item: the item is unavailable there.
func (s *PricingService) Resolve(ctx context.Context, branchID, itemID uint) (ResolvedPrice, bool, error) {
	price, err := s.catalogRepo.GetPrice(ctx, branchID, itemID)
	if err != nil || price == nil {
		return ResolvedPrice{}, false, err
	}
	markup, err := s.catalogRepo.GetMarkup(ctx, branchID, itemID)
	if err != nil {
		return ResolvedPrice{}, false, err
	}
	return resolve(*price, markup), true, nil
}

// ResolveMany resolves several items at one branch in two queries. Unavailable items are absent.
func (s *PricingService) ResolveMany(ctx context.Context, branchID uint, itemIDs []uint) (map[uint]ResolvedPrice, error) {
	out := make(map[uint]ResolvedPrice, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	filter := repository.PriceFilter{BranchID: &branchID, ItemIDs: itemIDs}
	prices, err := s.catalogRepo.ListPrices(ctx, filter)
	if err != nil {
		return nil, err
	}
	markups, err := s.catalogRepo.ListMarkups(ctx, filter)
	if err != nil {
		return nil, err
	}

	markupByItem := make(map[uint]*entity.BranchItemMarkup, len(markups))
	for i := range markups {
		markupByItem[markups[i].ItemID] = &markups[i]
	}
	for _, p := range prices {
		out[p.ItemID] = resolve(p, markupByItem[p.ItemID])
	}
	return out, nil
}

// ListPrices returns resolved prices for every item stocked at a branch
func (s *PricingService) ListPrices(ctx context.Context, branchCode string) ([]ResolvedPrice, error) {
	branch, err := requireBranch(ctx, s.catalogRepo, branchCode)
	if err != nil {
		return nil, err
	}
	filter := repository.PriceFilter{BranchID: &branch.ID}
	prices, err := s.catalogRepo.ListPrices(ctx, filter)
	if err != nil {
		return nil, err
	}
	markups, err := s.catalogRepo.ListMarkups(ctx, filter)
	if err != nil {
		return nil, err
	}
	markupByItem := make(map[uint]*entity.BranchItemMarkup, len(markups))
	for i := range markups {
		markupByItem[markups[i].ItemID] = &markups[i]
	}

	out := make([]ResolvedPrice, 0, len(prices))
	for _, p := range prices {
		out = append(out, resolve(p, markupByItem[p.ItemID]))
	}
	return out, nil
}

// MarkupInput identifies a markup by branch and sku
type MarkupInput struct {
	BranchCode string
	SKU        string
	Amount     decimal.Decimal
}

// UpsertMarkup sets the markup amount and reactivates it
func (s *PricingService) UpsertMarkup(ctx context.Context, input *MarkupInput) (*entity.BranchItemMarkup, error) {
	if input.Amount.IsNegative() {
		return nil, apperror.NewValidationError("Markup must not be negative", apperror.FieldError{Field: "amount", Message: "must not be negative"})
	}
	branch, item, err := s.pair(ctx, input.BranchCode, input.SKU)
	if err != nil {
		return nil, err
	}

	markup := entity.BranchItemMarkup{BranchID: branch.ID, ItemID: item.ID, Amount: input.Amount.Round(2), Active: true}
	if _, err := s.catalogRepo.UpsertMarkups(ctx, []entity.BranchItemMarkup{markup}); err != nil {
		return nil, err
	}
	return s.catalogRepo.GetMarkup(ctx, branch.ID, item.ID)
}

// SetMarkupActive toggles a markup without removing it
func (s *PricingService) SetMarkupActive(ctx context.Context, branchCode, sku string, active bool) (*entity.BranchItemMarkup, error) {
	branch, item, err := s.pair(ctx, branchCode, sku)
	if err != nil {
		return nil, err
	}
	found, err := s.catalogRepo.SetMarkupActive(ctx, branch.ID, item.ID, active)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperror.NewNotFoundError(fmt.Sprintf("Markup for %s at %s", item.SKU, branch.Code))
	}
	return s.catalogRepo.GetMarkup(ctx, branch.ID, item.ID)
}

// DeleteMarkup removes a markup row
func (s *PricingService) DeleteMarkup(ctx context.Context, branchCode, sku string) error {
	branch, item, err := s.pair(ctx, branchCode, sku)
	if err != nil {
		return err
	}
	found, err := s.catalogRepo.DeleteMarkup(ctx, branch.ID, item.ID)
	if err != nil {
		return err
	}
	if !found {
		return apperror.NewNotFoundError(fmt.Sprintf("Markup for %s at %s", item.SKU, branch.Code))
	}
	return nil
}

func (s *PricingService) pair(ctx context.Context, branchCode, sku string) (*entity.Branch, *entity.Item, error) {
	branch, err := requireBranch(ctx, s.catalogRepo, branchCode)
	if err != nil {
		return nil, nil, err
	}
	item, err := requireItem(ctx, s.catalogRepo, sku)
	if err != nil {
		return nil, nil, err
	}
	return branch, item, nil
}
