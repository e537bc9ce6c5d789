package entity

import (
	"time"

	"github.com/sangkips/coopmart-api/pkg/utils"
	"gorm.io/gorm"
)

// Branch is a cooperative outlet. Orders reference a branch twice: the member's
// home branch and the delivery branch that fulfils the order.
type Branch struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"size:32;uniqueIndex;not null" json:"code"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeSave normalizes the branch code used as the natural key
func (b *Branch) BeforeSave(tx *gorm.DB) error {
	b.Code = utils.NormalizeCode(b.Code)
	return nil
}

// TableName returns the table name for the Branch model
func (Branch) TableName() string {
	return "branches"
}

// Department groups members for reporting
type Department struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:128;uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for the Department model
func (Department) TableName() string {
	return "departments"
}
