package enum_test

import (
	"encoding/json"
	"testing"

	"github.com/sangkips/coopmart-api/internal/domain/enum"
)

func TestOrderStatusTransitions(t *testing.T) {
	all := []enum.OrderStatus{
		enum.OrderStatusPending, enum.OrderStatusPosted, enum.OrderStatusDelivered,
		enum.OrderStatusCancelled, enum.OrderStatusDeleted,
	}
	legal := map[[2]enum.OrderStatus]bool{
		{enum.OrderStatusPending, enum.OrderStatusPosted}:    true,
		{enum.OrderStatusPending, enum.OrderStatusCancelled}: true,
		{enum.OrderStatusPending, enum.OrderStatusDeleted}:   true,
		{enum.OrderStatusPosted, enum.OrderStatusDelivered}:  true,
	}

	for _, from := range all {
		for _, to := range all {
			want := legal[[2]enum.OrderStatus{from, to}]
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("%s -> %s = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []enum.OrderStatus{enum.OrderStatusDelivered, enum.OrderStatusCancelled, enum.OrderStatusDeleted} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	if enum.OrderStatusPending.IsTerminal() || enum.OrderStatusPosted.IsTerminal() {
		t.Error("pending and posted are not terminal")
	}
}

func TestOrderStatusJSON(t *testing.T) {
	data, err := json.Marshal(enum.OrderStatusPosted)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"Posted"` {
		t.Fatalf("marshal = %s", data)
	}

	var s enum.OrderStatus
	if err := json.Unmarshal([]byte(`"delivered"`), &s); err != nil || s != enum.OrderStatusDelivered {
		t.Fatalf("unmarshal name = %v, %v", s, err)
	}
	if err := json.Unmarshal([]byte(`3`), &s); err != nil || s != enum.OrderStatusCancelled {
		t.Fatalf("unmarshal int = %v, %v", s, err)
	}
	if err := json.Unmarshal([]byte(`"Shipped"`), &s); err == nil {
		t.Fatal("expected unknown status to fail")
	}
}

func TestPaymentOptionParse(t *testing.T) {
	tests := []struct {
		in      string
		want    enum.PaymentOption
		wantErr bool
	}{
		{"savings", enum.PaymentSavings, false},
		{" LOAN ", enum.PaymentLoan, false},
		{"Cash", enum.PaymentCash, false},
		{"card", "", true},
	}
	for _, tt := range tests {
		got, err := enum.ParsePaymentOption(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParsePaymentOption(%q) = %q, %v", tt.in, got, err)
		}
	}
	if enum.PaymentCash.Constrained() {
		t.Error("cash orders must be unconstrained")
	}
}
