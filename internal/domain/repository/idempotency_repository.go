package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/sangkips/coopmart-api/internal/domain/entity"
)

// IdempotencyRepository stores replayable responses for order submissions
type IdempotencyRepository interface {
	GetByKey(ctx context.Context, key string, userID uuid.UUID) (*entity.IdempotencyKey, error)
	Create(ctx context.Context, ikey *entity.IdempotencyKey) error
	DeleteExpired(ctx context.Context) (int64, error)
}
