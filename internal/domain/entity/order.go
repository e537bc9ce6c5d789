package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/coopmart-api/internal/domain/enum"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order is a member's request for goods from a delivery branch
type Order struct {
	ID               uuid.UUID          `gorm:"type:uuid;primary_key" json:"id"`
	Reference        string             `gorm:"size:32;uniqueIndex;not null" json:"reference"`
	MemberID         uint               `gorm:"not null;index" json:"member_id"`
	HomeBranchID     *uint              `gorm:"index" json:"home_branch_id,omitempty"`
	DeliveryBranchID uint               `gorm:"not null;index" json:"delivery_branch_id"`
	DepartmentID     *uint              `gorm:"index" json:"department_id,omitempty"`
	PaymentOption    enum.PaymentOption `gorm:"size:16;not null;index" json:"payment_option"`
	Status           enum.OrderStatus   `gorm:"not null;default:0;index" json:"status"`
	TotalAmount      decimal.Decimal    `gorm:"type:numeric(14,2);not null;default:0" json:"total_amount"`
	Note             string             `gorm:"type:text" json:"note,omitempty"`
	AdminNotes       string             `gorm:"type:text" json:"admin_notes,omitempty"`
	CreatedBy        string             `gorm:"size:128" json:"created_by"`
	PostedAt         *time.Time         `json:"posted_at,omitempty"`
	PostedBy         string             `gorm:"size:128" json:"posted_by,omitempty"`
	DeliveredAt      *time.Time         `json:"delivered_at,omitempty"`
	DeliveredBy      string             `gorm:"size:128" json:"delivered_by,omitempty"`
	CancelledAt      *time.Time         `json:"cancelled_at,omitempty"`
	CancelReason     string             `gorm:"type:text" json:"cancel_reason,omitempty"`
	DeleteReason     string             `gorm:"type:text" json:"delete_reason,omitempty"`
	DeletedBy        string             `gorm:"size:128" json:"deleted_by,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
	DeletedAt        gorm.DeletedAt     `gorm:"index" json:"deleted_at,omitempty"`

	// Relationships
	Member         *Member     `gorm:"foreignKey:MemberID" json:"member,omitempty"`
	HomeBranch     *Branch     `gorm:"foreignKey:HomeBranchID" json:"home_branch,omitempty"`
	DeliveryBranch *Branch     `gorm:"foreignKey:DeliveryBranchID" json:"delivery_branch,omitempty"`
	Department     *Department `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
	Lines          []OrderLine `gorm:"foreignKey:OrderID" json:"lines,omitempty"`
}

// BeforeCreate generates a UUID before creating a new order
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// Recalculate recomputes every line amount and the order total from them
func (o *Order) Recalculate() {
	o.TotalAmount = SumLines(o.Lines)
}

// SumLines recomputes each line amount and returns their sum
func SumLines(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for i := range lines {
		lines[i].Recompute()
		total = total.Add(lines[i].Amount)
	}
	return total
}

// OrderLine is one item on an order. Amount is always qty x unit price.
type OrderLine struct {
	ID         uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	OrderID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	ItemID     uint            `gorm:"not null;index" json:"item_id"`
	Qty        int             `gorm:"not null" json:"qty"`
	UnitPrice  decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"unit_price"`
	UnitMarkup decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"unit_markup"`
	Amount     decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	CreatedAt  time.Time       `json:"created_at"`

	// Relationships
	Item *Item `gorm:"foreignKey:ItemID" json:"item,omitempty"`
}

// Recompute derives the line amount from qty and unit price
func (l *OrderLine) Recompute() {
	l.Amount = l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Qty)))
}

// BeforeSave keeps the amount derived even when callers forget to recompute
func (l *OrderLine) BeforeSave(tx *gorm.DB) error {
	l.Recompute()
	return nil
}

// BeforeCreate generates a UUID before creating a new order line
func (l *OrderLine) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the OrderLine model
func (OrderLine) TableName() string {
	return "order_lines"
}
