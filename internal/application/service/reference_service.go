package service

import (
	"context"
	"strings"

	"github.com/sangkips/coopmart-api/internal/domain/entity"
	"github.com/sangkips/coopmart-api/internal/domain/repository"
	"github.com/sangkips/coopmart-api/pkg/apperror"
	"github.com/sangkips/coopmart-api/pkg/identity"
)

// ReferenceService serves branches, departments, items and member lookups
type ReferenceService struct {
	catalogRepo repository.CatalogRepository
	memberRepo  repository.MemberRepository
}

// NewReferenceService creates a new reference data service
func NewReferenceService(catalogRepo repository.CatalogRepository, memberRepo repository.MemberRepository) *ReferenceService {
	return &ReferenceService{catalogRepo: catalogRepo, memberRepo: memberRepo}
}

func (s *ReferenceService) ListBranches(ctx context.Context) ([]entity.Branch, error) {
	return s.catalogRepo.ListBranches(ctx)
}

func (s *ReferenceService) ListDepartments(ctx context.Context) ([]entity.Department, error) {
	return s.catalogRepo.ListDepartments(ctx)
}

func (s *ReferenceService) ListItems(ctx context.Context, search string) ([]entity.Item, error) {
	return s.catalogRepo.ListItems(ctx, strings.TrimSpace(search))
}

// GetMember returns a member; members may only look themselves up
func (s *ReferenceService) GetMember(ctx context.Context, p identity.Principal, memberNo string) (*entity.Member, error) {
	if p.IsMember() && !sameCode(p.MemberNo, memberNo) {
		return nil, apperror.NewForbiddenError("Members can only view their own record")
	}
	member, err := s.memberRepo.GetByMemberNo(ctx, memberNo)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, apperror.NewNotFoundError("Member")
	}
	return member, nil
}
