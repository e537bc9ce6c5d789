package entity

import (
	"time"

	"github.com/sangkips/coopmart-api/pkg/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Member is a cooperative member. Balances are loaded by bulk import only.
type Member struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	MemberNo     string          `gorm:"size:32;uniqueIndex;not null" json:"member_no"`
	Name         string          `gorm:"size:255;not null" json:"name"`
	Category     string          `gorm:"size:64" json:"category"`
	Savings      decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"savings"`
	Loans        decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"loans"`
	GlobalLimit  decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"global_limit"`
	HomeBranchID *uint           `gorm:"index" json:"home_branch_id,omitempty"`
	DepartmentID *uint           `gorm:"index" json:"department_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	// Relationships
	HomeBranch *Branch     `gorm:"foreignKey:HomeBranchID" json:"home_branch,omitempty"`
	Department *Department `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
}

// BeforeSave normalizes the member number used as the natural key
func (m *Member) BeforeSave(tx *gorm.DB) error {
	m.MemberNo = utils.NormalizeCode(m.MemberNo)
	return nil
}

// TableName returns the table name for the Member model
func (Member) TableName() string {
	return "members"
}
