package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sangkips/coopmart-api/internal/domain/entity"
	"github.com/sangkips/coopmart-api/internal/domain/enum"
	"github.com/sangkips/coopmart-api/internal/domain/repository"
	"github.com/sangkips/coopmart-api/internal/importer"
	"github.com/sangkips/coopmart-api/internal/infrastructure/metrics"
	"github.com/sangkips/coopmart-api/pkg/apperror"
	"github.com/sangkips/coopmart-api/pkg/logger"
	"github.com/sangkips/coopmart-api/pkg/utils"
	"go.uber.org/zap"
)

// ImportService loads members, items, prices and markups from sheets
type ImportService struct {
	memberRepo    repository.MemberRepository
	catalogRepo   repository.CatalogRepository
	inventoryRepo repository.InventoryRepository
	metrics       *metrics.Metrics
	log           *zap.Logger
}

// NewImportService creates a new import service
func NewImportService(
	memberRepo repository.MemberRepository,
	catalogRepo repository.CatalogRepository,
	inventoryRepo repository.InventoryRepository,
	m *metrics.Metrics,
	log *zap.Logger,
) *ImportService {
	return &ImportService{
		memberRepo:    memberRepo,
		catalogRepo:   catalogRepo,
		inventoryRepo: inventoryRepo,
		metrics:       m,
		log:           logger.OrNop(log),
	}
}

// ImportResult summarizes one import. Skipped rows are listed by the key that failed to resolve.
// NotWritten counts resolved rows left unwritten when a write stopped part way.
type ImportResult struct {
	Kind               importer.Kind       `json:"kind"`
	Received           int                 `json:"received"`
	Upserted           int                 `json:"upserted"`
	NotWritten         int                 `json:"not_written"`
	Skipped            int                 `json:"skipped"`
	UnknownBranches    []string            `json:"unknown_branches"`
	MissingSkus        []string            `json:"missing_skus"`
	UnknownDepartments []string            `json:"unknown_departments"`
	InvalidRows        []importer.RowError `json:"invalid_rows"`
}

func newImportResult(kind importer.Kind, received int, invalid []importer.RowError) *ImportResult {
	if invalid == nil {
		invalid = []importer.RowError{}
	}
	return &ImportResult{
		Kind:               kind,
		Received:           received,
		UnknownBranches:    []string{},
		MissingSkus:        []string{},
		UnknownDepartments: []string{},
		InvalidRows:        invalid,
	}
}

// stopped records a write that committed written of total rows before failing.
// The returned error carries the result as its details.
func (r *ImportResult) stopped(written, total int, err error) error {
	r.Upserted = written
	r.NotWritten = total - written
	appErr := apperror.ErrInternalServer.WithCause(err)
	if apperror.IsAppError(err) {
		appErr = apperror.GetAppError(err)
	}
	return appErr.WithDetails(r)
}

// keySet collects distinct unresolved keys
type keySet map[string]struct{}

func (k keySet) add(key string) { k[key] = struct{}{} }

func (k keySet) sorted() []string {
	out := make([]string, 0, len(k))
	for key := range k {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// Import dispatches a parsed table to the importer for kind
func (s *ImportService) Import(ctx context.Context, kind importer.Kind, table importer.Table, actor string) (*ImportResult, error) {
	if missing := table.MissingColumns(importer.RequiredColumns(kind)...); len(missing) > 0 {
		fieldErrs := make([]apperror.FieldError, len(missing))
		for i, c := range missing {
			fieldErrs[i] = apperror.FieldError{Field: c, Message: "column is missing"}
		}
		return nil, apperror.NewValidationError(fmt.Sprintf("Missing columns: %s", strings.Join(missing, ", ")), fieldErrs...)
	}

	var (
		result *ImportResult
		err    error
	)
	switch kind {
	case importer.KindMembers:
		result, err = s.ImportMembers(ctx, table)
	case importer.KindItems:
		result, err = s.ImportItems(ctx, table)
	case importer.KindPrices:
		result, err = s.ImportPrices(ctx, table, actor)
	case importer.KindMarkups:
		result, err = s.ImportMarkups(ctx, table)
	default:
		return nil, apperror.NewBadRequestError(fmt.Sprintf("Unknown import kind %q", kind))
	}
	if result == nil {
		return nil, err
	}

	s.metrics.ImportRows(string(kind), "upserted", result.Upserted)
	s.metrics.ImportRows(string(kind), "not_written", result.NotWritten)
	s.metrics.ImportRows(string(kind), "skipped", result.Skipped)
	s.metrics.ImportRows(string(kind), "invalid", len(result.InvalidRows))
	fields := []zap.Field{
		zap.String("kind", string(kind)),
		zap.Int("received", result.Received),
		zap.Int("upserted", result.Upserted),
		zap.Int("skipped", result.Skipped),
		zap.Int("invalid", len(result.InvalidRows)),
		zap.String("actor", actor),
	}
	if err != nil {
		s.log.Warn("import stopped part way", append(fields, zap.Int("not_written", result.NotWritten), zap.Error(err))...)
		return result, err
	}
	s.log.Info("import finished", fields...)
	return result, nil
}

// ImportMembers upserts members keyed by member number
func (s *ImportService) ImportMembers(ctx context.Context, table importer.Table) (*ImportResult, error) {
	batch := importer.ParseMembers(table)
	result := newImportResult(importer.KindMembers, len(table.Records), batch.Invalid)

	branches := branchLookup(s.catalogRepo)
	departments := departmentLookup(s.catalogRepo)
	codes := make([]string, 0, len(batch.Rows))
	names := make([]string, 0, len(batch.Rows))
	for _, r := range batch.Rows {
		codes = append(codes, r.BranchCode)
		names = append(names, r.Department)
	}
	if err := branches.prime(ctx, codes); err != nil {
		return nil, err
	}
	if err := departments.prime(ctx, names); err != nil {
		return nil, err
	}

	unknownBranches, unknownDepartments := keySet{}, keySet{}
	index := make(map[string]int, len(batch.Rows))
	members := make([]entity.Member, 0, len(batch.Rows))
	for _, r := range batch.Rows {
		member := entity.Member{
			MemberNo:    utils.NormalizeCode(r.MemberNo),
			Name:        strings.TrimSpace(r.Name),
			Category:    strings.TrimSpace(r.Category),
			Savings:     r.Savings,
			Loans:       r.Loans,
			GlobalLimit: r.GlobalLimit,
		}
		if r.BranchCode != "" {
			branch, err := branches.get(ctx, r.BranchCode)
			if err != nil {
				return nil, err
			}
			if branch == nil {
				unknownBranches.add(utils.NormalizeCode(r.BranchCode))
				result.Skipped++
				continue
			}
			member.HomeBranchID = &branch.ID
		}
		if r.Department != "" {
			department, err := departments.get(ctx, r.Department)
			if err != nil {
				return nil, err
			}
			if department == nil {
				unknownDepartments.add(strings.TrimSpace(r.Department))
				result.Skipped++
				continue
			}
			member.DepartmentID = &department.ID
		}

		if at, ok := index[member.MemberNo]; ok {
			members[at] = member
			continue
		}
		index[member.MemberNo] = len(members)
		members = append(members, member)
	}

	result.UnknownBranches = unknownBranches.sorted()
	result.UnknownDepartments = unknownDepartments.sorted()
	n, err := s.memberRepo.Upsert(ctx, members)
	if err != nil {
		return result, result.stopped(n, len(members), err)
	}
	result.Upserted = n
	return result, nil
}

// ImportItems upserts the item master keyed by sku
func (s *ImportService) ImportItems(ctx context.Context, table importer.Table) (*ImportResult, error) {
	batch := importer.ParseItems(table)
	result := newImportResult(importer.KindItems, len(table.Records), batch.Invalid)

	index := make(map[string]int, len(batch.Rows))
	items := make([]entity.Item, 0, len(batch.Rows))
	for _, r := range batch.Rows {
		item := entity.Item{
			SKU:      utils.NormalizeCode(r.SKU),
			Name:     strings.TrimSpace(r.Name),
			Unit:     strings.TrimSpace(r.Unit),
			Category: strings.TrimSpace(r.Category),
		}
		if ref := strings.TrimSpace(r.ImageRef); ref != "" {
			item.ImageRef = &ref
		}
		if at, ok := index[item.SKU]; ok {
			items[at] = item
			continue
		}
		index[item.SKU] = len(items)
		items = append(items, item)
	}

	n, err := s.catalogRepo.UpsertItems(ctx, items)
	if err != nil {
		return result, result.stopped(n, len(items), err)
	}
	result.Upserted = n
	return result, nil
}

type pair struct {
	branchID uint
	itemID   uint
}

// ImportPrices upserts branch prices. Rows naming an unknown sku with an item name create the item.
// Changes to initial stock are written to the ledger as adjustments.
func (s *ImportService) ImportPrices(ctx context.Context, table importer.Table, actor string) (*ImportResult, error) {
	batch := importer.ParsePrices(table)
	result := newImportResult(importer.KindPrices, len(table.Records), batch.Invalid)

	branches := branchLookup(s.catalogRepo)
	items := itemLookup(s.catalogRepo)
	codes := make([]string, 0, len(batch.Rows))
	skus := make([]string, 0, len(batch.Rows))
	for _, r := range batch.Rows {
		codes = append(codes, r.BranchCode)
		skus = append(skus, r.SKU)
	}
	if err := branches.prime(ctx, codes); err != nil {
		return nil, err
	}
	if err := requireSomeBranch(ctx, branches, codes); err != nil {
		return nil, err
	}
	if err := items.prime(ctx, skus); err != nil {
		return nil, err
	}

	// create items that only exist in this sheet
	var created []entity.Item
	seenNew := keySet{}
	for _, r := range batch.Rows {
		item, err := items.get(ctx, r.SKU)
		if err != nil {
			return nil, err
		}
		sku := utils.NormalizeCode(r.SKU)
		if item != nil || strings.TrimSpace(r.Name) == "" {
			continue
		}
		if _, dup := seenNew[sku]; dup {
			continue
		}
		seenNew.add(sku)
		created = append(created, entity.Item{SKU: sku, Name: strings.TrimSpace(r.Name)})
	}
	if len(created) > 0 {
		if _, err := s.catalogRepo.UpsertItems(ctx, created); err != nil {
			return nil, err
		}
		newSkus := seenNew.sorted()
		items.forget(newSkus...)
		if err := items.prime(ctx, newSkus); err != nil {
			return nil, err
		}
	}

	unknownBranches, missingSkus := keySet{}, keySet{}
	index := make(map[pair]int, len(batch.Rows))
	prices := make([]entity.BranchItemPrice, 0, len(batch.Rows))
	touchedBranches := map[uint]bool{}
	for _, r := range batch.Rows {
		branch, err := branches.get(ctx, r.BranchCode)
		if err != nil {
			return nil, err
		}
		if branch == nil {
			unknownBranches.add(utils.NormalizeCode(r.BranchCode))
			result.Skipped++
			continue
		}
		item, err := items.get(ctx, r.SKU)
		if err != nil {
			return nil, err
		}
		if item == nil {
			missingSkus.add(utils.NormalizeCode(r.SKU))
			result.Skipped++
			continue
		}

		price := entity.BranchItemPrice{
			BranchID:     branch.ID,
			ItemID:       item.ID,
			BasePrice:    r.BasePrice,
			InitialStock: r.InitialStock,
		}
		touchedBranches[branch.ID] = true
		key := pair{branch.ID, item.ID}
		if at, ok := index[key]; ok {
			prices[at] = price
			continue
		}
		index[key] = len(prices)
		prices = append(prices, price)
	}
	result.UnknownBranches = unknownBranches.sorted()
	result.MissingSkus = missingSkus.sorted()

	before, err := s.currentStock(ctx, touchedBranches)
	if err != nil {
		return nil, err
	}

	n, err := s.catalogRepo.UpsertPrices(ctx, prices)
	if err != nil {
		// chunks before the failure are committed, so their stock changes are too
		if serr := s.recordStockChanges(ctx, prices[:n], before, actor); serr != nil {
			s.log.Error("stock changes of written prices not recorded", zap.Int("written", n), zap.Error(serr))
		}
		return result, result.stopped(n, len(prices), err)
	}
	result.Upserted = n

	if err := s.recordStockChanges(ctx, prices, before, actor); err != nil {
		return nil, err
	}
	return result, nil
}

// ImportMarkups upserts markups keyed by branch and item
func (s *ImportService) ImportMarkups(ctx context.Context, table importer.Table) (*ImportResult, error) {
	batch := importer.ParseMarkups(table)
	result := newImportResult(importer.KindMarkups, len(table.Records), batch.Invalid)

	branches := branchLookup(s.catalogRepo)
	items := itemLookup(s.catalogRepo)
	codes := make([]string, 0, len(batch.Rows))
	skus := make([]string, 0, len(batch.Rows))
	for _, r := range batch.Rows {
		codes = append(codes, r.BranchCode)
		skus = append(skus, r.SKU)
	}
	if err := branches.prime(ctx, codes); err != nil {
		return nil, err
	}
	if err := requireSomeBranch(ctx, branches, codes); err != nil {
		return nil, err
	}
	if err := items.prime(ctx, skus); err != nil {
		return nil, err
	}

	unknownBranches, missingSkus := keySet{}, keySet{}
	index := make(map[pair]int, len(batch.Rows))
	markups := make([]entity.BranchItemMarkup, 0, len(batch.Rows))
	for _, r := range batch.Rows {
		branch, err := branches.get(ctx, r.BranchCode)
		if err != nil {
			return nil, err
		}
		if branch == nil {
			unknownBranches.add(utils.NormalizeCode(r.BranchCode))
			result.Skipped++
			continue
		}
		item, err := items.get(ctx, r.SKU)
		if err != nil {
			return nil, err
		}
		if item == nil {
			missingSkus.add(utils.NormalizeCode(r.SKU))
			result.Skipped++
			continue
		}

		markup := entity.BranchItemMarkup{BranchID: branch.ID, ItemID: item.ID, Amount: r.Amount, Active: r.Active}
		key := pair{branch.ID, item.ID}
		if at, ok := index[key]; ok {
			markups[at] = markup
			continue
		}
		index[key] = len(markups)
		markups = append(markups, markup)
	}
	result.UnknownBranches = unknownBranches.sorted()
	result.MissingSkus = missingSkus.sorted()

	n, err := s.catalogRepo.UpsertMarkups(ctx, markups)
	if err != nil {
		return result, result.stopped(n, len(markups), err)
	}
	result.Upserted = n
	return result, nil
}

// requireSomeBranch fails the whole import when no row names a known branch
func requireSomeBranch(ctx context.Context, branches *lookup[entity.Branch], codes []string) error {
	unknown := keySet{}
	for _, code := range codes {
		branch, err := branches.get(ctx, code)
		if err != nil {
			return err
		}
		if branch != nil {
			return nil
		}
		if nc := utils.NormalizeCode(code); nc != "" {
			unknown.add(nc)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	return apperror.NewValidationError(
		fmt.Sprintf("No known branch in import: %s", strings.Join(unknown.sorted(), ", ")),
		apperror.FieldError{Field: "branch_code", Message: "no row matches an existing branch"},
	)
}

func (s *ImportService) currentStock(ctx context.Context, branchIDs map[uint]bool) (map[pair]int, error) {
	stock := make(map[pair]int)
	for id := range branchIDs {
		branchID := id
		prices, err := s.catalogRepo.ListPrices(ctx, repository.PriceFilter{BranchID: &branchID})
		if err != nil {
			return nil, err
		}
		for _, p := range prices {
			stock[pair{p.BranchID, p.ItemID}] = p.InitialStock
		}
	}
	return stock, nil
}

func (s *ImportService) recordStockChanges(ctx context.Context, prices []entity.BranchItemPrice, before map[pair]int, actor string) error {
	var movements []entity.InventoryMovement
	for _, p := range prices {
		delta := p.InitialStock - before[pair{p.BranchID, p.ItemID}]
		if delta == 0 {
			continue
		}
		m := entity.InventoryMovement{
			ItemID:        p.ItemID,
			BranchID:      p.BranchID,
			Type:          enum.MovementIn,
			Quantity:      delta,
			ReferenceType: enum.ReferenceAdjustment,
			Note:          "price import",
			CreatedBy:     actor,
		}
		if delta < 0 {
			m.Type = enum.MovementOut
			m.Quantity = -delta
		}
		movements = append(movements, m)
	}
	if len(movements) == 0 {
		return nil
	}

	cycle, err := s.inventoryRepo.ActiveCycle(ctx)
	if err != nil {
		return err
	}
	if cycle == nil {
		s.log.Warn("no active cycle, import stock adjustments not recorded", zap.Int("changes", len(movements)))
		return nil
	}
	for i := range movements {
		movements[i].CycleID = cycle.ID
	}
	return s.inventoryRepo.AppendMovements(ctx, movements)
}
