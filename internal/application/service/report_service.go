package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sangkips/coopmart-api/internal/domain/entity"
	"github.com/sangkips/coopmart-api/internal/domain/repository"
	"github.com/sangkips/coopmart-api/internal/infrastructure/aggregation"
	"github.com/sangkips/coopmart-api/internal/infrastructure/metrics"
	"github.com/sangkips/coopmart-api/pkg/apperror"
	"github.com/sangkips/coopmart-api/pkg/backoff"
	"github.com/sangkips/coopmart-api/pkg/logger"
	"github.com/sangkips/coopmart-api/pkg/workbook"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ReportOptions tunes the export loop
type ReportOptions struct {
	// Timeout bounds each aggregation call
	Timeout time.Duration
	// Pacing is the minimum spacing between aggregation calls; zero disables pacing
	Pacing  time.Duration
	Backoff backoff.Policy
	// Sleep waits between retries; defaults to a context-aware timer
	Sleep func(ctx context.Context, d time.Duration) error
}

// ReportService builds demand reports and workbook exports
type ReportService struct {
	catalogRepo repository.CatalogRepository
	reports     repository.ReportRepository
	aggregator  aggregation.Aggregator
	pacer       *rate.Limiter
	timeout     time.Duration
	backoff     backoff.Policy
	sleep       func(ctx context.Context, d time.Duration) error
	metrics     *metrics.Metrics
	log         *zap.Logger
}

// NewReportService creates a new report service
func NewReportService(
	catalogRepo repository.CatalogRepository,
	reports repository.ReportRepository,
	aggregator aggregation.Aggregator,
	opts ReportOptions,
	m *metrics.Metrics,
	log *zap.Logger,
) *ReportService {
	if aggregator == nil {
		aggregator = aggregation.NewDBAggregator(reports)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 8 * time.Second
	}
	if opts.Backoff.MaxAttempts <= 0 {
		opts.Backoff = backoff.Default()
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	limit := rate.Inf
	if opts.Pacing > 0 {
		limit = rate.Every(opts.Pacing)
	}
	return &ReportService{
		catalogRepo: catalogRepo,
		reports:     reports,
		aggregator:  aggregator,
		pacer:       rate.NewLimiter(limit, 1),
		timeout:     opts.Timeout,
		backoff:     opts.Backoff,
		sleep:       opts.Sleep,
		metrics:     m,
		log:         logger.OrNop(log),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// DemandReport returns aggregated demand rows, optionally for one branch and department
func (s *ReportService) DemandReport(ctx context.Context, branchCode, department string) ([]repository.DemandRow, error) {
	if branchCode != "" {
		if _, err := requireBranch(ctx, s.catalogRepo, branchCode); err != nil {
			return nil, err
		}
	}
	rows, err := s.reports.Demand(ctx, repository.DemandFilter{BranchCode: branchCode, Department: department})
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []repository.DemandRow{}
	}
	return rows, nil
}

// DemandExport is a rendered demand workbook. Warnings name branches exported as placeholders.
type DemandExport struct {
	Workbook []byte   `json:"-"`
	Branches int      `json:"branches"`
	Warnings []string `json:"warnings"`
}

var demandHeader = []string{"Department", "SKU", "Item", "Qty", "Unit Price", "Markup", "Base Amount", "Markup Amount", "Amount"}

type demandTotals struct {
	qty    int64
	base   decimal.Decimal
	markup decimal.Decimal
	amount decimal.Decimal
}

func (t *demandTotals) add(o demandTotals) {
	t.qty += o.qty
	t.base = t.base.Add(o.base)
	t.markup = t.markup.Add(o.markup)
	t.amount = t.amount.Add(o.amount)
}

// ExportDemandWorkbook aggregates every branch in turn and renders one sheet per branch,
// a cross-branch Summary and a Memo. A branch that cannot be aggregated gets a zeroed
// placeholder sheet and a warning; only cancellation aborts the export.
func (s *ReportService) ExportDemandWorkbook(ctx context.Context, department string) (*DemandExport, error) {
	branches, err := s.catalogRepo.ListBranches(ctx)
	if err != nil {
		return nil, err
	}

	export := &DemandExport{Branches: len(branches), Warnings: []string{}}
	sheets := make([]workbook.Sheet, 0, len(branches)+2)
	summary := workbook.Sheet{
		Name:   "Summary",
		Header: []string{"Branch", "Name", "Qty", "Base Amount", "Markup Amount", "Amount", "Status"},
	}
	grand := demandTotals{}

	for _, branch := range branches {
		rows, err := s.aggregateBranch(ctx, branch.Code, department)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		status := "ok"
		if err != nil {
			status = "unavailable"
			rows = nil
			warning := fmt.Sprintf("%s: %s", branch.Code, failureReason(err))
			export.Warnings = append(export.Warnings, warning)
			s.metrics.ExportBranch("placeholder")
			s.log.Warn("branch exported as placeholder", zap.String("branch", branch.Code), zap.Error(err))
		} else {
			s.metrics.ExportBranch("ok")
		}

		sheet, totals := branchSheet(branch, rows)
		sheets = append(sheets, sheet)
		grand.add(totals)
		summary.Rows = append(summary.Rows, []interface{}{
			branch.Code, branch.Name, totals.qty, totals.base, totals.markup, totals.amount, status,
		})
	}

	summary.Total = []interface{}{"TOTAL", "", grand.qty, grand.base, grand.markup, grand.amount, ""}
	memo := workbook.Sheet{
		Name:   "Memo",
		Header: []string{"Description", "Amount"},
		Rows: [][]interface{}{
			{"Amount without markup", grand.base},
			{"Markup", grand.markup},
		},
		Total: []interface{}{"TOTAL with markup", grand.amount},
	}
	sheets = append(sheets, summary, memo)

	data, err := workbook.Bytes(sheets...)
	if err != nil {
		return nil, err
	}
	export.Workbook = data
	return export, nil
}

// aggregateBranch retries throttled and timed-out calls with backoff, honoring server hints
func (s *ReportService) aggregateBranch(ctx context.Context, branchCode, department string) ([]repository.DemandRow, error) {
	for attempt := 1; ; attempt++ {
		if err := s.pacer.Wait(ctx); err != nil {
			return nil, err
		}

		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		rows, err := s.aggregator.Aggregate(callCtx, branchCode, department)
		cancel()
		if err == nil {
			s.metrics.ExportAttempt("ok")
			return rows, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !aggregation.IsRetryable(err) {
			s.metrics.ExportAttempt("error")
			return nil, err
		}

		s.metrics.ExportAttempt("throttled")
		if attempt >= s.backoff.MaxAttempts {
			return nil, apperror.NewUpstreamThrottledError(branchCode, attempt).WithCause(err)
		}
		wait := s.backoff.Hinted(attempt, aggregation.RetryAfterHint(err))
		s.log.Debug("aggregation throttled, backing off",
			zap.String("branch", branchCode),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
		)
		if err := s.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func branchSheet(branch entity.Branch, rows []repository.DemandRow) (workbook.Sheet, demandTotals) {
	totals := demandTotals{}
	sheet := workbook.Sheet{
		Name:   branch.Code,
		Header: demandHeader,
		Rows:   make([][]interface{}, 0, len(rows)),
	}
	for _, r := range rows {
		sheet.Rows = append(sheet.Rows, []interface{}{
			r.Department, r.SKU, r.ItemName, r.Qty, r.UnitPrice, r.UnitMarkup, r.BaseAmount, r.MarkupAmount, r.Amount,
		})
		totals.add(demandTotals{qty: r.Qty, base: r.BaseAmount, markup: r.MarkupAmount, amount: r.Amount})
	}
	sheet.Total = []interface{}{"TOTAL", "", "", totals.qty, "", "", totals.base, totals.markup, totals.amount}
	return sheet, totals
}

// ExportItemsPack renders the item master, resolved prices and markups as one workbook
func (s *ReportService) ExportItemsPack(ctx context.Context) ([]byte, error) {
	items, err := s.catalogRepo.ListItems(ctx, "")
	if err != nil {
		return nil, err
	}
	prices, err := s.catalogRepo.ListPrices(ctx, repository.PriceFilter{})
	if err != nil {
		return nil, err
	}
	markups, err := s.catalogRepo.ListMarkups(ctx, repository.PriceFilter{})
	if err != nil {
		return nil, err
	}

	itemSheet := workbook.Sheet{Name: "Items", Header: []string{"SKU", "Name", "Unit", "Category"}}
	for _, it := range items {
		itemSheet.Rows = append(itemSheet.Rows, []interface{}{it.SKU, it.Name, it.Unit, it.Category})
	}
	itemSheet.Total = []interface{}{"TOTAL", len(items)}

	markupByPair := make(map[pair]*entity.BranchItemMarkup, len(markups))
	for i := range markups {
		markupByPair[pair{markups[i].BranchID, markups[i].ItemID}] = &markups[i]
	}

	priceSheet := workbook.Sheet{
		Name:   "Prices",
		Header: []string{"Branch", "SKU", "Item", "Base Price", "Markup", "Effective Price", "Initial Stock"},
	}
	var stock int64
	for _, p := range prices {
		rp := resolve(p, markupByPair[pair{p.BranchID, p.ItemID}])
		priceSheet.Rows = append(priceSheet.Rows, []interface{}{
			rp.BranchCode, rp.SKU, rp.ItemName, rp.BasePrice, rp.Markup, rp.EffectivePrice, rp.InitialStock,
		})
		stock += int64(rp.InitialStock)
	}
	priceSheet.Total = []interface{}{"TOTAL", len(prices), "", "", "", "", stock}

	markupSheet := workbook.Sheet{Name: "Markups", Header: []string{"Branch", "SKU", "Amount", "Active"}}
	active := 0
	for _, m := range markups {
		var branchCode, sku string
		if m.Branch != nil {
			branchCode = m.Branch.Code
		}
		if m.Item != nil {
			sku = m.Item.SKU
		}
		if m.Active {
			active++
		}
		markupSheet.Rows = append(markupSheet.Rows, []interface{}{branchCode, sku, m.Amount, m.Active})
	}
	markupSheet.Total = []interface{}{"TOTAL", len(markups), "", active}

	return workbook.Bytes(itemSheet, priceSheet, markupSheet)
}
