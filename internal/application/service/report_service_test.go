package service_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sangkips/coopmart-api/internal/application/service"
	"github.com/sangkips/coopmart-api/internal/domain/repository"
	"github.com/sangkips/coopmart-api/internal/infrastructure/aggregation"
	"github.com/sangkips/coopmart-api/pkg/apperror"
	"github.com/sangkips/coopmart-api/pkg/backoff"
	"github.com/sangkips/coopmart-api/pkg/workbook"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// scriptedAggregator answers per branch from respond, counting calls
type scriptedAggregator struct {
	mu      sync.Mutex
	calls   map[string]int
	respond func(branch string, call int) ([]repository.DemandRow, error)
}

func (a *scriptedAggregator) Aggregate(_ context.Context, branch, _ string) ([]repository.DemandRow, error) {
	a.mu.Lock()
	if a.calls == nil {
		a.calls = map[string]int{}
	}
	a.calls[branch]++
	call := a.calls[branch]
	a.mu.Unlock()
	return a.respond(branch, call)
}

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waits = append(r.waits, d)
	return nil
}

func dutseDemand() []repository.DemandRow {
	return []repository.DemandRow{
		{BranchCode: "DUTSE", Department: "Finance", SKU: "RICE50KG", ItemName: "Rice 50kg", Qty: 2,
			UnitPrice: dec("49500"), UnitMarkup: dec("500"), BaseAmount: dec("99000"), MarkupAmount: dec("1000"), Amount: dec("100000")},
		{BranchCode: "DUTSE", Department: "Finance", SKU: "OIL5L", ItemName: "Oil 5L", Qty: 1,
			UnitPrice: dec("12000"), UnitMarkup: dec("0"), BaseAmount: dec("12000"), MarkupAmount: dec("0"), Amount: dec("12000")},
	}
}

func quickPolicy(attempts int) backoff.Policy {
	return backoff.Policy{
		Base:        10 * time.Millisecond,
		Max:         5 * time.Second,
		MaxAttempts: attempts,
		Jitter:      func(time.Duration) time.Duration { return 0 },
	}
}

func newReportService(f *fixture, agg aggregation.Aggregator, sleeper *sleepRecorder, attempts int) *service.ReportService {
	return service.NewReportService(catalogRepo{f.store}, reportRepo{f.store}, agg, service.ReportOptions{
		Timeout: time.Second,
		Backoff: quickPolicy(attempts),
		Sleep:   sleeper.sleep,
	}, nil, zap.NewNop())
}

func sheetRows(t *testing.T, data []byte, name string) [][]string {
	t.Helper()
	rows, err := workbook.ReadSheet(bytes.NewReader(data), name)
	if err != nil {
		t.Fatalf("read sheet %s: %v", name, err)
	}
	return rows
}

func TestExportPlaceholdersThrottledBranch(t *testing.T) {
	f := newFixture(t)
	agg := &scriptedAggregator{respond: func(branch string, _ int) ([]repository.DemandRow, error) {
		if branch == "GWARINPA" {
			return nil, &aggregation.ThrottledError{Status: 429, RetryAfter: 2 * time.Second}
		}
		return dutseDemand(), nil
	}}
	sleeper := &sleepRecorder{}

	export, err := newReportService(f, agg, sleeper, 3).ExportDemandWorkbook(context.Background(), "")
	if err != nil {
		t.Fatalf("ExportDemandWorkbook: %v", err)
	}

	if export.Branches != 2 {
		t.Fatalf("branches = %d", export.Branches)
	}
	if len(export.Warnings) != 1 || !strings.HasPrefix(export.Warnings[0], "GWARINPA: ") {
		t.Fatalf("warnings = %v", export.Warnings)
	}
	if agg.calls["GWARINPA"] != 3 || agg.calls["DUTSE"] != 1 {
		t.Fatalf("calls = %v", agg.calls)
	}
	if len(sleeper.waits) != 2 || sleeper.waits[0] != 2*time.Second || sleeper.waits[1] != 2*time.Second {
		t.Fatalf("retry hint not honored: %v", sleeper.waits)
	}

	file, err := excelize.OpenReader(bytes.NewReader(export.Workbook))
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	if got := file.GetSheetList(); strings.Join(got, ",") != "DUTSE,GWARINPA,Summary,Memo" {
		t.Fatalf("sheets = %v", got)
	}

	dutse := sheetRows(t, export.Workbook, "DUTSE")
	if len(dutse) != 4 {
		t.Fatalf("DUTSE rows = %d, want header, 2 lines and total", len(dutse))
	}
	total := dutse[3]
	if total[0] != "TOTAL" || total[3] != "3" || total[8] != "112000" {
		t.Fatalf("DUTSE total = %v", total)
	}

	placeholder := sheetRows(t, export.Workbook, "GWARINPA")
	if len(placeholder) != 2 || placeholder[1][0] != "TOTAL" || placeholder[1][8] != "0" {
		t.Fatalf("placeholder = %v", placeholder)
	}

	summary := sheetRows(t, export.Workbook, "Summary")
	if len(summary) != 4 || summary[1][6] != "ok" || summary[2][6] != "unavailable" {
		t.Fatalf("summary = %v", summary)
	}
	if summary[3][0] != "TOTAL" || summary[3][5] != "112000" {
		t.Fatalf("summary total = %v", summary[3])
	}

	memo := sheetRows(t, export.Workbook, "Memo")
	if memo[1][1] != "111000" || memo[2][1] != "1000" || memo[3][1] != "112000" {
		t.Fatalf("memo = %v", memo)
	}
}

func TestExportRetriesTimeouts(t *testing.T) {
	f := newFixture(t)
	agg := &scriptedAggregator{respond: func(branch string, call int) ([]repository.DemandRow, error) {
		if branch == "DUTSE" && call == 1 {
			return nil, context.DeadlineExceeded
		}
		if branch == "DUTSE" {
			return dutseDemand(), nil
		}
		return nil, nil
	}}
	sleeper := &sleepRecorder{}

	export, err := newReportService(f, agg, sleeper, 3).ExportDemandWorkbook(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(export.Warnings) != 0 {
		t.Fatalf("warnings = %v", export.Warnings)
	}
	if agg.calls["DUTSE"] != 2 {
		t.Fatalf("DUTSE calls = %d", agg.calls["DUTSE"])
	}
	if len(sleeper.waits) != 1 || sleeper.waits[0] != 10*time.Millisecond {
		t.Fatalf("waits = %v", sleeper.waits)
	}
}

func TestExportDoesNotRetryHardFailures(t *testing.T) {
	f := newFixture(t)
	agg := &scriptedAggregator{respond: func(branch string, _ int) ([]repository.DemandRow, error) {
		if branch == "DUTSE" {
			return nil, errors.New("upstream exploded")
		}
		return nil, nil
	}}
	sleeper := &sleepRecorder{}

	export, err := newReportService(f, agg, sleeper, 5).ExportDemandWorkbook(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if agg.calls["DUTSE"] != 1 || len(sleeper.waits) != 0 {
		t.Fatalf("calls = %v waits = %v", agg.calls, sleeper.waits)
	}
	if len(export.Warnings) != 1 || export.Warnings[0] != "DUTSE: upstream exploded" {
		t.Fatalf("warnings = %v", export.Warnings)
	}
}

func TestExportAbortsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	agg := &scriptedAggregator{respond: func(string, int) ([]repository.DemandRow, error) {
		return nil, &aggregation.ThrottledError{Status: 503}
	}}
	svc := service.NewReportService(catalogRepo{f.store}, reportRepo{f.store}, agg, service.ReportOptions{
		Backoff: quickPolicy(5),
		Sleep: func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}, nil, zap.NewNop())

	_, err := svc.ExportDemandWorkbook(ctx, "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if agg.calls["GWARINPA"] != 0 {
		t.Fatalf("export kept going after cancel: %v", agg.calls)
	}
}

func TestDemandReportFilters(t *testing.T) {
	f := newFixture(t)
	f.store.demand = append(dutseDemand(), repository.DemandRow{BranchCode: "GWARINPA", Department: "Audit", SKU: "RICE50KG", Qty: 4})
	svc := newReportService(f, nil, &sleepRecorder{}, 3)
	ctx := context.Background()

	rows, err := svc.DemandReport(ctx, "", "")
	if err != nil || len(rows) != 3 {
		t.Fatalf("all rows = %d, %v", len(rows), err)
	}
	rows, err = svc.DemandReport(ctx, "dutse", "finance")
	if err != nil || len(rows) != 2 {
		t.Fatalf("DUTSE finance rows = %d, %v", len(rows), err)
	}
	rows, err = svc.DemandReport(ctx, "", "Unknown")
	if err != nil || rows == nil || len(rows) != 0 {
		t.Fatalf("unknown department rows = %v, %v", rows, err)
	}

	_, err = svc.DemandReport(ctx, "KUBWA", "")
	assertKind(t, err, apperror.KindNotFound)
}

func TestExportUsesDatabaseAggregatorByDefault(t *testing.T) {
	f := newFixture(t)
	f.store.demand = dutseDemand()
	export, err := newReportService(f, nil, &sleepRecorder{}, 3).ExportDemandWorkbook(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if rows := sheetRows(t, export.Workbook, "DUTSE"); len(rows) != 4 {
		t.Fatalf("DUTSE rows = %v", rows)
	}
}

func TestExportItemsPack(t *testing.T) {
	f := newFixture(t)
	data, err := newReportService(f, nil, &sleepRecorder{}, 3).ExportItemsPack(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	prices := sheetRows(t, data, "Prices")
	if len(prices) != 3 {
		t.Fatalf("prices = %v", prices)
	}
	if prices[1][0] != "DUTSE" || prices[1][5] != "50000" || prices[1][6] != "100" {
		t.Fatalf("price row = %v", prices[1])
	}
	if rows := sheetRows(t, data, "Items"); len(rows) != 3 || rows[1][0] != "RICE50KG" {
		t.Fatalf("items = %v", rows)
	}
	if rows := sheetRows(t, data, "Markups"); len(rows) != 3 || rows[1][0] != "DUTSE" {
		t.Fatalf("markups = %v", rows)
	}
}
