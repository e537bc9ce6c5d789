package repository

import (
	"context"

	"github.com/sangkips/coopmart-api/internal/domain/enum"
	domainRepo "github.com/sangkips/coopmart-api/internal/domain/repository"
	"github.com/sangkips/coopmart-api/pkg/utils"
	"gorm.io/gorm"
)

type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository creates a new reporting repository
func NewReportRepository(db *gorm.DB) domainRepo.ReportRepository {
	return &reportRepository{db: db}
}

// Demand groups lines by delivery branch, department, item and price point.
// Cancelled and deleted orders never count as demand.
func (r *reportRepository) Demand(ctx context.Context, filter domainRepo.DemandFilter) ([]domainRepo.DemandRow, error) {
	var rows []domainRepo.DemandRow

	query := r.db.WithContext(ctx).
		Table("order_lines AS l").
		Select(`b.code AS branch_code,
			b.name AS branch_name,
			COALESCE(d.name, '') AS department,
			i.sku AS sku,
			i.name AS item_name,
			SUM(l.qty) AS qty,
			l.unit_price - l.unit_markup AS unit_price,
			l.unit_markup AS unit_markup,
			SUM(l.qty * (l.unit_price - l.unit_markup)) AS base_amount,
			SUM(l.qty * l.unit_markup) AS markup_amount,
			SUM(l.amount) AS amount`).
		Joins("JOIN orders o ON o.id = l.order_id").
		Joins("JOIN branches b ON b.id = o.delivery_branch_id").
		Joins("JOIN items i ON i.id = l.item_id").
		Joins("LEFT JOIN departments d ON d.id = o.department_id").
		Where("o.status IN ?", []enum.OrderStatus{enum.OrderStatusPending, enum.OrderStatusPosted, enum.OrderStatusDelivered})

	if filter.BranchCode != "" {
		query = query.Where("b.code = ?", utils.NormalizeCode(filter.BranchCode))
	}
	if filter.Department != "" {
		query = query.Where("LOWER(d.name) = ?", utils.NormalizeName(filter.Department))
	}

	err := query.
		Group("b.code, b.name, d.name, i.sku, i.name, l.unit_price, l.unit_markup").
		Order("b.code ASC, department ASC, i.sku ASC").
		Scan(&rows).Error
	return rows, err
}
