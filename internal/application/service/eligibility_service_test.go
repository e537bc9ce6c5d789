package service_test

import (
	"context"
	"testing"

	"github.com/sangkips/coopmart-api/internal/application/service"
	"github.com/sangkips/coopmart-api/internal/domain/eligibility"
	"github.com/sangkips/coopmart-api/internal/domain/entity"
	"github.com/sangkips/coopmart-api/pkg/apperror"
)

func orderOil(t *testing.T, f *fixture, opt string, qty int) *entity.Order {
	t.Helper()
	order, err := f.orders.CreateOrder(context.Background(), admin, &service.CreateOrderInput{
		MemberNo:           "E1",
		DeliveryBranchCode: "DUTSE",
		PaymentOption:      opt,
		Lines:              []service.OrderLineInput{{SKU: "OIL5L", Qty: qty}},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	return order
}

func eligibilityFixture(t *testing.T) *fixture {
	f := newFixture(t)
	oil := f.store.addItem("OIL5L", "Vegetable oil 5L")
	f.store.addPrice(f.dutse.ID, oil.ID, "10000", 500)
	f.store.addMember("E1", "100000", "50000", "200000", &f.dutse.ID)
	return f
}

func TestSavingsExposureExcludesDeliveredOrders(t *testing.T) {
	f := eligibilityFixture(t)
	ctx := context.Background()

	orderOil(t, f, "Savings", 3)
	posted := orderOil(t, f, "Savings", 4)
	if _, err := f.orders.PostOrder(ctx, admin, posted.ID, ""); err != nil {
		t.Fatal(err)
	}

	snap, err := f.elig.GetEligibility(ctx, admin, "E1")
	if err != nil {
		t.Fatal(err)
	}
	if !snap.SavingsExposure.Equal(dec("70000")) || !snap.SavingsEligible.Equal(dec("30000")) {
		t.Fatalf("exposure %s eligible %s, want 70000 and 30000", snap.SavingsExposure, snap.SavingsEligible)
	}

	if _, err := f.orders.DeliverOrder(ctx, admin, posted.ID, ""); err != nil {
		t.Fatal(err)
	}
	snap, err = f.elig.GetEligibility(ctx, admin, "E1")
	if err != nil {
		t.Fatal(err)
	}
	if !snap.SavingsEligible.Equal(dec("70000")) {
		t.Fatalf("eligible after delivery = %s, want 70000", snap.SavingsEligible)
	}
}

func TestLoanCeilingPolicies(t *testing.T) {
	f := eligibilityFixture(t)
	ctx := context.Background()
	orderOil(t, f, "Loan", 5)

	snap, err := f.elig.GetEligibility(ctx, admin, "E1")
	if err != nil {
		t.Fatal(err)
	}
	if !snap.LoanCeiling.Equal(dec("150000")) || !snap.LoanEligible.Equal(dec("100000")) {
		t.Fatalf("headroom ceiling %s eligible %s", snap.LoanCeiling, snap.LoanEligible)
	}
	if !snap.OutstandingLoansTotal.Equal(dec("100000")) {
		t.Fatalf("outstanding = %s, want 100000", snap.OutstandingLoansTotal)
	}

	global := service.NewEligibilityService(memberRepo{f.store}, orderRepo{f.store}, eligibility.GlobalLimitPolicy{})
	snap, err = global.GetEligibility(ctx, admin, "E1")
	if err != nil {
		t.Fatal(err)
	}
	if !snap.LoanEligible.Equal(dec("150000")) {
		t.Fatalf("global limit eligible = %s, want 150000", snap.LoanEligible)
	}
	if global.PolicyName() != "global_limit" || f.elig.PolicyName() != "headroom" {
		t.Fatal("unexpected policy names")
	}
}

func TestCashIsUnconstrained(t *testing.T) {
	f := eligibilityFixture(t)
	// far beyond savings and loan ceilings
	orderOil(t, f, "Cash", 400)
}

func TestGetEligibilityScopes(t *testing.T) {
	f := eligibilityFixture(t)
	ctx := context.Background()

	_, err := f.elig.GetEligibility(ctx, memberPrincipal("A12345"), "E1")
	assertKind(t, err, apperror.KindForbidden)

	_, err = f.elig.GetEligibility(ctx, admin, "NOPE")
	assertKind(t, err, apperror.KindNotFound)

	if _, err := f.elig.GetEligibility(ctx, memberPrincipal("e1"), "E1"); err != nil {
		t.Fatalf("member reading own eligibility: %v", err)
	}
}
