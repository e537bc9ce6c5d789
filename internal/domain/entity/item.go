package entity

import (
	"time"

	"github.com/sangkips/coopmart-api/pkg/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Item is a subsidized good identified by its sku
type Item struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SKU       string    `gorm:"column:sku;size:64;uniqueIndex;not null" json:"sku"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Unit      string    `gorm:"size:32" json:"unit"`
	Category  string    `gorm:"size:64" json:"category"`
	ImageRef  *string   `gorm:"size:512" json:"image_ref,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeSave normalizes the sku used as the natural key
func (i *Item) BeforeSave(tx *gorm.DB) error {
	i.SKU = utils.NormalizeCode(i.SKU)
	return nil
}

// TableName returns the table name for the Item model
func (Item) TableName() string {
	return "items"
}

// BranchItemPrice is the base price and opening stock of an item at a branch.
// An item without a price row is unavailable at that branch.
type BranchItemPrice struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	BranchID     uint            `gorm:"not null;uniqueIndex:idx_branch_item_prices_pair" json:"branch_id"`
	ItemID       uint            `gorm:"not null;uniqueIndex:idx_branch_item_prices_pair" json:"item_id"`
	BasePrice    decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"base_price"`
	InitialStock int             `gorm:"not null;default:0" json:"initial_stock"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	// Relationships
	Branch *Branch `gorm:"foreignKey:BranchID" json:"branch,omitempty"`
	Item   *Item   `gorm:"foreignKey:ItemID" json:"item,omitempty"`
}

// TableName returns the table name for the BranchItemPrice model
func (BranchItemPrice) TableName() string {
	return "branch_item_prices"
}

// EffectivePrice is the sell price: base price plus the markup when it is active
func (p BranchItemPrice) EffectivePrice(markup *BranchItemMarkup) decimal.Decimal {
	return p.BasePrice.Add(markup.ActiveAmount())
}

// BranchItemMarkup is a per-branch surcharge on an item's base price
type BranchItemMarkup struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	BranchID  uint            `gorm:"not null;uniqueIndex:idx_branch_item_markups_pair" json:"branch_id"`
	ItemID    uint            `gorm:"not null;uniqueIndex:idx_branch_item_markups_pair" json:"item_id"`
	Amount    decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	Active    bool            `gorm:"not null" json:"active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`

	// Relationships
	Branch *Branch `gorm:"foreignKey:BranchID" json:"branch,omitempty"`
	Item   *Item   `gorm:"foreignKey:ItemID" json:"item,omitempty"`
}

// TableName returns the table name for the BranchItemMarkup model
func (BranchItemMarkup) TableName() string {
	return "branch_item_markups"
}

// ActiveAmount is the markup to add to the base price; zero when absent or inactive
func (m *BranchItemMarkup) ActiveAmount() decimal.Decimal {
	if m == nil || !m.Active {
		return decimal.Zero
	}
	return m.Amount
}
