// Package eligibility nets a member's outstanding orders against static balances.
package eligibility

import (
	"fmt"
	"strings"

	"github.com/sangkips/coopmart-api/internal/domain/entity"
	"github.com/sangkips/coopmart-api/internal/domain/enum"
	"github.com/shopspring/decimal"
)

// Exposure is the summed total of a member's Pending and Posted orders per payment option
type Exposure map[enum.PaymentOption]decimal.Decimal

// Of returns the exposure for opt, zero when absent
func (e Exposure) Of(opt enum.PaymentOption) decimal.Decimal {
	if v, ok := e[opt]; ok {
		return v
	}
	return decimal.Zero
}

// LoanCeilingPolicy supplies the loan ceiling business rule
type LoanCeilingPolicy interface {
	Name() string
	LoanCeiling(m entity.Member) decimal.Decimal
}

// GlobalLimitPolicy uses the member's global limit as the ceiling
type GlobalLimitPolicy struct{}

func (GlobalLimitPolicy) Name() string { return "global_limit" }

func (GlobalLimitPolicy) LoanCeiling(m entity.Member) decimal.Decimal {
	return nonNegative(m.GlobalLimit)
}

// HeadroomPolicy allows borrowing only up to the unused part of the global limit
type HeadroomPolicy struct{}

func (HeadroomPolicy) Name() string { return "headroom" }

func (HeadroomPolicy) LoanCeiling(m entity.Member) decimal.Decimal {
	return nonNegative(m.GlobalLimit.Sub(m.Loans))
}

// PolicyByName resolves a configured policy name
func PolicyByName(name string) (LoanCeilingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "headroom":
		return HeadroomPolicy{}, nil
	case "global_limit":
		return GlobalLimitPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown loan ceiling policy %q", name)
	}
}

// Snapshot is the point-in-time eligibility of one member
type Snapshot struct {
	MemberNo              string          `json:"member_no"`
	Savings               decimal.Decimal `json:"savings"`
	Loans                 decimal.Decimal `json:"loans"`
	LoanCeiling           decimal.Decimal `json:"loan_ceiling"`
	SavingsExposure       decimal.Decimal `json:"savings_exposure"`
	LoanExposure          decimal.Decimal `json:"loan_exposure"`
	SavingsEligible       decimal.Decimal `json:"savings_eligible"`
	LoanEligible          decimal.Decimal `json:"loan_eligible"`
	OutstandingLoansTotal decimal.Decimal `json:"outstanding_loans_total"`
}

// Compute derives the eligible amounts for a member
func Compute(m entity.Member, exposure Exposure, policy LoanCeilingPolicy) Snapshot {
	if policy == nil {
		policy = HeadroomPolicy{}
	}
	savingsExposure := exposure.Of(enum.PaymentSavings)
	loanExposure := exposure.Of(enum.PaymentLoan)
	ceiling := policy.LoanCeiling(m)

	return Snapshot{
		MemberNo:              m.MemberNo,
		Savings:               m.Savings,
		Loans:                 m.Loans,
		LoanCeiling:           ceiling,
		SavingsExposure:       savingsExposure,
		LoanExposure:          loanExposure,
		SavingsEligible:       nonNegative(m.Savings.Sub(savingsExposure)),
		LoanEligible:          nonNegative(ceiling.Sub(loanExposure)),
		OutstandingLoansTotal: m.Loans.Add(loanExposure),
	}
}

// Eligible returns the spendable amount for opt. ok is false for unconstrained options.
func (s Snapshot) Eligible(opt enum.PaymentOption) (amount decimal.Decimal, ok bool) {
	switch opt {
	case enum.PaymentSavings:
		return s.SavingsEligible, true
	case enum.PaymentLoan:
		return s.LoanEligible, true
	default:
		return decimal.Zero, false
	}
}

// Admits reports whether an order of total paid with opt fits under the ceiling
func (s Snapshot) Admits(opt enum.PaymentOption, total decimal.Decimal) bool {
	eligible, constrained := s.Eligible(opt)
	if !constrained {
		return true
	}
	return total.LessThanOrEqual(eligible)
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
