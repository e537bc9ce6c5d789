package entity

import (
	"time"

	"github.com/sangkips/coopmart-api/internal/domain/enum"
)

// Cycle is a time-boxed inventory period. Exactly one cycle is active.
type Cycle struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Name      string     `gorm:"size:128;not null" json:"name"`
	StartsAt  time.Time  `gorm:"not null" json:"starts_at"`
	EndsAt    *time.Time `json:"ends_at,omitempty"`
	IsActive  bool       `gorm:"not null;default:false;index:idx_cycles_one_active,unique,where:is_active" json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName returns the table name for the Cycle model
func (Cycle) TableName() string {
	return "cycles"
}

// InventoryMovement is an append-only stock ledger entry scoped to a cycle.
// It is kept independently of the order-status reconciliation view.
type InventoryMovement struct {
	ID            uint               `gorm:"primaryKey" json:"id"`
	ItemID        uint               `gorm:"not null;index" json:"item_id"`
	BranchID      uint               `gorm:"not null;index" json:"branch_id"`
	CycleID       uint               `gorm:"not null;index" json:"cycle_id"`
	Type          enum.MovementType  `gorm:"size:8;not null" json:"type"`
	Quantity      int                `gorm:"not null" json:"quantity"`
	ReferenceType enum.ReferenceType `gorm:"size:32;not null;index" json:"reference_type"`
	ReferenceID   string             `gorm:"size:64;index" json:"reference_id,omitempty"`
	Note          string             `gorm:"type:text" json:"note,omitempty"`
	CreatedBy     string             `gorm:"size:128" json:"created_by,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`

	// Relationships
	Item   *Item   `gorm:"foreignKey:ItemID" json:"item,omitempty"`
	Branch *Branch `gorm:"foreignKey:BranchID" json:"branch,omitempty"`
}

// TableName returns the table name for the InventoryMovement model
func (InventoryMovement) TableName() string {
	return "inventory_movements"
}

// Signed returns the quantity with Out movements negated
func (m InventoryMovement) Signed() int {
	if m.Type == enum.MovementOut {
		return -m.Quantity
	}
	return m.Quantity
}
