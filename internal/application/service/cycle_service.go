package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sangkips/coopmart-api/internal/domain/entity"
	"github.com/sangkips/coopmart-api/internal/domain/repository"
	"github.com/sangkips/coopmart-api/pkg/apperror"
	"gorm.io/gorm"
)

// CycleService manages inventory cycles
type CycleService struct {
	inventoryRepo repository.InventoryRepository
}

// NewCycleService creates a new cycle service
func NewCycleService(inventoryRepo repository.InventoryRepository) *CycleService {
	return &CycleService{inventoryRepo: inventoryRepo}
}

// CreateCycleInput represents the create cycle input
type CreateCycleInput struct {
	Name     string
	StartsAt time.Time
	EndsAt   *time.Time
	Activate bool
}

// CreateCycle stores a new cycle, optionally making it the active one
func (s *CycleService) CreateCycle(ctx context.Context, input *CreateCycleInput) (*entity.Cycle, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperror.NewValidationError("Cycle name is required", apperror.FieldError{Field: "name", Message: "is required"})
	}
	startsAt := input.StartsAt
	if startsAt.IsZero() {
		startsAt = time.Now()
	}
	if input.EndsAt != nil && !input.EndsAt.After(startsAt) {
		return nil, apperror.NewValidationError("Cycle must end after it starts", apperror.FieldError{Field: "ends_at", Message: "must be after starts_at"})
	}

	cycle := &entity.Cycle{Name: name, StartsAt: startsAt, EndsAt: input.EndsAt}
	if err := s.inventoryRepo.CreateCycle(ctx, cycle); err != nil {
		return nil, err
	}
	if input.Activate {
		return s.ActivateCycle(ctx, cycle.ID)
	}
	return cycle, nil
}

// ActivateCycle makes id the only active cycle
func (s *CycleService) ActivateCycle(ctx context.Context, id uint) (*entity.Cycle, error) {
	if err := s.inventoryRepo.ActivateCycle(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFoundError("Cycle")
		}
		return nil, err
	}
	return s.inventoryRepo.GetCycle(ctx, id)
}

// ActiveCycle returns the active cycle or NotFound
func (s *CycleService) ActiveCycle(ctx context.Context) (*entity.Cycle, error) {
	cycle, err := s.inventoryRepo.ActiveCycle(ctx)
	if err != nil {
		return nil, err
	}
	if cycle == nil {
		return nil, apperror.NewNotFoundError("Active cycle")
	}
	return cycle, nil
}

func (s *CycleService) ListCycles(ctx context.Context) ([]entity.Cycle, error) {
	return s.inventoryRepo.ListCycles(ctx)
}
