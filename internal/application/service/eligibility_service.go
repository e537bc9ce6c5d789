package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sangkips/coopmart-api/internal/domain/eligibility"
	"github.com/sangkips/coopmart-api/internal/domain/entity"
	"github.com/sangkips/coopmart-api/internal/domain/enum"
	"github.com/sangkips/coopmart-api/internal/domain/repository"
	"github.com/sangkips/coopmart-api/pkg/apperror"
	"github.com/sangkips/coopmart-api/pkg/identity"
	"github.com/shopspring/decimal"
)

// EligibilityService nets outstanding orders against member balances
type EligibilityService struct {
	memberRepo repository.MemberRepository
	orderRepo  repository.OrderRepository
	policy     eligibility.LoanCeilingPolicy
}

// NewEligibilityService creates a new eligibility service
func NewEligibilityService(
	memberRepo repository.MemberRepository,
	orderRepo repository.OrderRepository,
	policy eligibility.LoanCeilingPolicy,
) *EligibilityService {
	if policy == nil {
		policy = eligibility.HeadroomPolicy{}
	}
	return &EligibilityService{memberRepo: memberRepo, orderRepo: orderRepo, policy: policy}
}

// GetEligibility returns the current eligible amounts of a member.
// Members may only read their own figures.
func (s *EligibilityService) GetEligibility(ctx context.Context, p identity.Principal, memberNo string) (*eligibility.Snapshot, error) {
	if p.IsMember() && !sameCode(p.MemberNo, memberNo) {
		return nil, apperror.NewForbiddenError("Members can only view their own eligibility")
	}
	member, err := s.memberRepo.GetByMemberNo(ctx, memberNo)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, apperror.NewNotFoundError("Member")
	}
	return s.Snapshot(ctx, member, nil)
}

// Snapshot computes eligibility, optionally leaving one order out of the exposure
func (s *EligibilityService) Snapshot(ctx context.Context, member *entity.Member, excludeOrderID *uuid.UUID) (*eligibility.Snapshot, error) {
	exposure, err := s.orderRepo.Exposure(ctx, member.ID, excludeOrderID)
	if err != nil {
		return nil, err
	}
	snap := eligibility.Compute(*member, exposure, s.policy)
	return &snap, nil
}

// Admit checks whether an order of total paid with opt fits the member's ceiling.
// The check is point-in-time; callers serialize per member when they need more.
func (s *EligibilityService) Admit(ctx context.Context, member *entity.Member, opt enum.PaymentOption, total decimal.Decimal, excludeOrderID *uuid.UUID) (*eligibility.Snapshot, error) {
	snap, err := s.Snapshot(ctx, member, excludeOrderID)
	if err != nil {
		return nil, err
	}
	if !snap.Admits(opt, total) {
		eligible, _ := snap.Eligible(opt)
		return snap, apperror.NewLimitExceededError(
			fmt.Sprintf("Order total %s exceeds %s eligibility of %s", total.StringFixed(2), opt, eligible.StringFixed(2)),
		).WithDetails(snap)
	}
	return snap, nil
}

// PolicyName reports the configured loan ceiling policy
func (s *EligibilityService) PolicyName() string {
	return s.policy.Name()
}
