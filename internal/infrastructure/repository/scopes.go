package repository

import (
	"strings"
	"time"

	"github.com/sangkips/coopmart-api/pkg/pagination"
	"gorm.io/gorm"
)

// Paginate returns a GORM scope applying offset and limit from page-based params
func Paginate(params *pagination.PaginationParams) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if params == nil {
			return db
		}
		params.Validate()
		return db.Offset(params.Offset()).Limit(params.PerPage)
	}
}

// CreatedBetween filters the given timestamp column to the calendar days start through end.
// Both bounds are optional and end is inclusive of its whole day.
func CreatedBetween(column string, start, end *time.Time) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if start != nil {
			db = db.Where(column+" >= ?", *start)
		}
		if end != nil {
			db = db.Where(column+" < ?", end.AddDate(0, 0, 1))
		}
		return db
	}
}

// SortBy orders by a whitelisted column; unknown columns fall back to fallback DESC.
// allowed maps the public sort key to the SQL column.
func SortBy(allowed map[string]string, key, order, fallback string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		column, ok := allowed[strings.ToLower(key)]
		if !ok {
			return db.Order(fallback + " DESC")
		}
		direction := "DESC"
		if strings.EqualFold(order, "asc") {
			direction = "ASC"
		}
		return db.Order(column + " " + direction)
	}
}
