package repository

import (
	"context"

	"github.com/sangkips/coopmart-api/internal/domain/entity"
)

// MemberRepository defines the interface for member data operations
type MemberRepository interface {
	GetByID(ctx context.Context, id uint) (*entity.Member, error)
	GetByMemberNo(ctx context.Context, memberNo string) (*entity.Member, error)
	// Upsert inserts or updates members keyed by member_no and returns the rows written
	Upsert(ctx context.Context, members []entity.Member) (int, error)
}
