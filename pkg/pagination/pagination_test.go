package pagination_test

import (
	"testing"

	"github.com/sangkips/coopmart-api/pkg/pagination"
)

func TestFromStringsClampsInput(t *testing.T) {
	tests := []struct {
		page, perPage string
		wantPage      int
		wantPerPage   int
	}{
		{"", "", 1, 20},
		{"3", "50", 3, 50},
		{"-1", "0", 1, 20},
		{"x", "5000", 1, 200},
	}
	for _, tt := range tests {
		p := pagination.FromStrings(tt.page, tt.perPage)
		if p.Page != tt.wantPage || p.PerPage != tt.wantPerPage {
			t.Errorf("FromStrings(%q, %q) = %d/%d, want %d/%d", tt.page, tt.perPage, p.Page, p.PerPage, tt.wantPage, tt.wantPerPage)
		}
	}
}

func TestNewPagination(t *testing.T) {
	p := pagination.NewPagination(2, 10, 25)
	if p.TotalPages != 3 || !p.HasNext || !p.HasPrev {
		t.Fatalf("unexpected pagination %+v", p)
	}
	if off := (&pagination.PaginationParams{Page: 3, PerPage: 10}).Offset(); off != 20 {
		t.Errorf("Offset = %d, want 20", off)
	}
}
