package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sangkips/coopmart-api/internal/domain/entity"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type capturedStatement struct {
	sql  string
	vars []interface{}
}

// dryRunDB builds statements against the postgres dialect without a server and
// records every INSERT and SELECT it would have sent.
func dryRunDB(t *testing.T) (*gorm.DB, *[]capturedStatement) {
	t.Helper()

	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost user=coop dbname=coop sslmode=disable"}), &gorm.Config{
		DryRun:                 true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Discard,
	})
	if err != nil {
		t.Fatalf("open dry-run db: %v", err)
	}

	captured := &[]capturedStatement{}
	record := func(tx *gorm.DB) {
		*captured = append(*captured, capturedStatement{
			sql:  tx.Statement.SQL.String(),
			vars: append([]interface{}(nil), tx.Statement.Vars...),
		})
	}
	if err := db.Callback().Create().After("gorm:create").Register("test:record_create", record); err != nil {
		t.Fatalf("register create callback: %v", err)
	}
	if err := db.Callback().Query().After("gorm:query").Register("test:record_query", record); err != nil {
		t.Fatalf("register query callback: %v", err)
	}
	return db, captured
}

func onlyStatement(t *testing.T, captured *[]capturedStatement) capturedStatement {
	t.Helper()
	if len(*captured) != 1 {
		t.Fatalf("statements = %d, want 1", len(*captured))
	}
	return (*captured)[0]
}

func TestUpsertMarkupsWritesInactiveFlag(t *testing.T) {
	db, captured := dryRunDB(t)
	repo := NewCatalogRepository(db, 0)

	markups := []entity.BranchItemMarkup{
		{BranchID: 1, ItemID: 7, Amount: decimal.NewFromInt(500), Active: false},
	}
	n, err := repo.UpsertMarkups(context.Background(), markups)
	if err != nil {
		t.Fatalf("UpsertMarkups: %v", err)
	}
	if n != 1 {
		t.Errorf("written = %d, want 1", n)
	}
	if markups[0].Active {
		t.Error("inactive markup was flipped to active before insert")
	}

	stmt := onlyStatement(t, captured)
	if !strings.Contains(stmt.sql, `"active"="excluded"."active"`) {
		t.Errorf("conflict clause does not overwrite active: %s", stmt.sql)
	}
	var flags []bool
	for _, v := range stmt.vars {
		if b, ok := v.(bool); ok {
			flags = append(flags, b)
		}
	}
	if len(flags) != 1 || flags[0] {
		t.Errorf("active values sent = %v, want [false]", flags)
	}
}

func TestUpsertItemsKeepsImageWhenAbsent(t *testing.T) {
	db, captured := dryRunDB(t)
	repo := NewCatalogRepository(db, 0)

	items := []entity.Item{{SKU: "rice50kg", Name: "Rice 50kg", Unit: "bag"}}
	if _, err := repo.UpsertItems(context.Background(), items); err != nil {
		t.Fatalf("UpsertItems: %v", err)
	}

	stmt := onlyStatement(t, captured)
	if !strings.Contains(stmt.sql, `"image_ref"=COALESCE(EXCLUDED.image_ref, items.image_ref)`) {
		t.Errorf("image_ref is overwritten unconditionally: %s", stmt.sql)
	}
	if !strings.Contains(stmt.sql, `"name"="excluded"."name"`) {
		t.Errorf("name is not updated on conflict: %s", stmt.sql)
	}
}

func TestItemRowUpdatesSkipMissingImage(t *testing.T) {
	w := (&catalogRepository{}).itemWriter()
	image := "rice.png"

	tests := []struct {
		name      string
		item      entity.Item
		wantImage bool
	}{
		{name: "without image", item: entity.Item{SKU: "RICE50KG"}, wantImage: false},
		{name: "with image", item: entity.Item{SKU: "RICE50KG", ImageRef: &image}, wantImage: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols := w.rowUpdates(&tt.item)
			got := false
			for _, c := range cols {
				if c == "image_ref" {
					got = true
				}
			}
			if got != tt.wantImage {
				t.Errorf("image_ref selected = %v, want %v (columns %v)", got, tt.wantImage, cols)
			}
		})
	}
}

func TestCreatedBetweenIncludesWholeEndDay(t *testing.T) {
	db, captured := dryRunDB(t)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	var orders []entity.Order
	if err := db.Scopes(CreatedBetween("created_at", &start, &end)).Find(&orders).Error; err != nil {
		t.Fatalf("Find: %v", err)
	}

	stmt := onlyStatement(t, captured)
	if strings.Contains(stmt.sql, "created_at <=") || !strings.Contains(stmt.sql, "created_at <") {
		t.Fatalf("end bound should be exclusive of the following day: %s", stmt.sql)
	}
	if len(stmt.vars) != 2 {
		t.Fatalf("vars = %v, want start and end bounds", stmt.vars)
	}
	upper, ok := stmt.vars[1].(time.Time)
	if !ok {
		t.Fatalf("upper bound %T is not a time", stmt.vars[1])
	}
	// an order placed late on the end day must fall inside the range
	lateOnEndDay := end.Add(23*time.Hour + 59*time.Minute)
	if !lateOnEndDay.Before(upper) {
		t.Errorf("order at %s excluded by upper bound %s", lateOnEndDay, upper)
	}
	if want := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC); !upper.Equal(want) {
		t.Errorf("upper bound = %s, want %s", upper, want)
	}
}
