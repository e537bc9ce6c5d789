package eligibility_test

import (
	"testing"

	"github.com/sangkips/coopmart-api/internal/domain/eligibility"
	"github.com/sangkips/coopmart-api/internal/domain/entity"
	"github.com/sangkips/coopmart-api/internal/domain/enum"
	"github.com/shopspring/decimal"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestSavingsEligibleNetsPendingExposure(t *testing.T) {
	m := entity.Member{MemberNo: "A12345", Savings: d(100000)}
	snap := eligibility.Compute(m, eligibility.Exposure{enum.PaymentSavings: d(30000 + 40000)}, nil)

	if !snap.SavingsEligible.Equal(d(30000)) {
		t.Fatalf("savings eligible = %s, want 30000", snap.SavingsEligible)
	}
	if !snap.Admits(enum.PaymentSavings, d(30000)) {
		t.Error("order equal to the eligible amount must be admitted")
	}
	if snap.Admits(enum.PaymentSavings, d(30001)) {
		t.Error("order above the eligible amount must be rejected")
	}
}

func TestEligibleNeverNegative(t *testing.T) {
	m := entity.Member{Savings: d(1000), GlobalLimit: d(5000), Loans: d(7000)}
	snap := eligibility.Compute(m, eligibility.Exposure{
		enum.PaymentSavings: d(3000),
		enum.PaymentLoan:    d(100),
	}, eligibility.HeadroomPolicy{})

	if !snap.SavingsEligible.IsZero() || !snap.LoanEligible.IsZero() {
		t.Fatalf("expected zero eligibility, got savings=%s loan=%s", snap.SavingsEligible, snap.LoanEligible)
	}
	if !snap.OutstandingLoansTotal.Equal(d(7100)) {
		t.Errorf("outstanding loans = %s, want 7100", snap.OutstandingLoansTotal)
	}
}

func TestLoanCeilingPolicies(t *testing.T) {
	m := entity.Member{GlobalLimit: d(200000), Loans: d(50000)}
	exposure := eligibility.Exposure{enum.PaymentLoan: d(20000)}

	tests := []struct {
		policy string
		want   int64
	}{
		{"headroom", 200000 - 50000 - 20000},
		{"global_limit", 200000 - 20000},
	}
	for _, tt := range tests {
		p, err := eligibility.PolicyByName(tt.policy)
		if err != nil {
			t.Fatal(err)
		}
		snap := eligibility.Compute(m, exposure, p)
		if !snap.LoanEligible.Equal(d(tt.want)) {
			t.Errorf("%s: loan eligible = %s, want %d", tt.policy, snap.LoanEligible, tt.want)
		}
	}

	if _, err := eligibility.PolicyByName("unlimited"); err == nil {
		t.Error("expected unknown policy error")
	}
}

func TestCashIsUnconstrained(t *testing.T) {
	snap := eligibility.Compute(entity.Member{}, nil, nil)
	if !snap.Admits(enum.PaymentCash, d(1_000_000)) {
		t.Fatal("cash orders must always be admitted")
	}
}
