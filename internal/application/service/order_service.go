package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/coopmart-api/internal/domain/entity"
	"github.com/sangkips/coopmart-api/internal/domain/enum"
	"github.com/sangkips/coopmart-api/internal/domain/repository"
	"github.com/sangkips/coopmart-api/internal/infrastructure/cache"
	"github.com/sangkips/coopmart-api/internal/infrastructure/messaging"
	"github.com/sangkips/coopmart-api/internal/infrastructure/metrics"
	"github.com/sangkips/coopmart-api/pkg/apperror"
	"github.com/sangkips/coopmart-api/pkg/identity"
	"github.com/sangkips/coopmart-api/pkg/logger"
	"github.com/sangkips/coopmart-api/pkg/pagination"
	"github.com/sangkips/coopmart-api/pkg/utils"
	"go.uber.org/zap"
)

// OrderService drives orders through their lifecycle
type OrderService struct {
	orderRepo     repository.OrderRepository
	memberRepo    repository.MemberRepository
	catalogRepo   repository.CatalogRepository
	inventoryRepo repository.InventoryRepository
	pricing       *PricingService
	eligibility   *EligibilityService
	locker        cache.MemberLocker
	publisher     messaging.Publisher
	metrics       *metrics.Metrics
	log           *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	orderRepo repository.OrderRepository,
	memberRepo repository.MemberRepository,
	catalogRepo repository.CatalogRepository,
	inventoryRepo repository.InventoryRepository,
	pricing *PricingService,
	eligibility *EligibilityService,
	locker cache.MemberLocker,
	publisher messaging.Publisher,
	m *metrics.Metrics,
	log *zap.Logger,
) *OrderService {
	if locker == nil {
		locker = cache.NoopLocker{}
	}
	if publisher == nil {
		publisher = messaging.NoopPublisher{}
	}
	return &OrderService{
		orderRepo:     orderRepo,
		memberRepo:    memberRepo,
		catalogRepo:   catalogRepo,
		inventoryRepo: inventoryRepo,
		pricing:       pricing,
		eligibility:   eligibility,
		locker:        locker,
		publisher:     publisher,
		metrics:       m,
		log:           logger.OrNop(log),
	}
}

// OrderLineInput represents an item in an order
type OrderLineInput struct {
	SKU string
	Qty int
}

// CreateOrderInput represents the create order input
type CreateOrderInput struct {
	MemberNo           string
	DeliveryBranchCode string
	Department         string
	PaymentOption      string
	Note               string
	Lines              []OrderLineInput
}

// BulkFailure explains why one order of a bulk request was not moved
type BulkFailure struct {
	ID     uuid.UUID `json:"id"`
	Reason string    `json:"reason"`
}

// BulkResult is the partial-success outcome of a bulk transition
type BulkResult struct {
	Posted    []uuid.UUID   `json:"posted,omitempty"`
	Delivered []uuid.UUID   `json:"delivered,omitempty"`
	Failed    []BulkFailure `json:"failed"`
}

// CreateOrder prices the lines at the delivery branch, checks eligibility and stores a Pending order
func (s *OrderService) CreateOrder(ctx context.Context, p identity.Principal, input *CreateOrderInput) (*entity.Order, error) {
	opt, err := enum.ParsePaymentOption(input.PaymentOption)
	if err != nil {
		return nil, apperror.NewValidationError("Invalid payment option",
			apperror.FieldError{Field: "payment_option", Message: "must be one of Savings, Loan, Cash"})
	}
	merged, err := mergeLines(input.Lines)
	if err != nil {
		return nil, err
	}

	memberNo := input.MemberNo
	if p.IsMember() {
		if memberNo == "" {
			memberNo = p.MemberNo
		}
		if !sameCode(p.MemberNo, memberNo) {
			return nil, apperror.NewForbiddenError("Members can only order for themselves")
		}
	}
	member, err := s.memberRepo.GetByMemberNo(ctx, memberNo)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, apperror.NewNotFoundError(fmt.Sprintf("Member %s", utils.NormalizeCode(memberNo)))
	}

	branch, err := requireBranch(ctx, s.catalogRepo, input.DeliveryBranchCode)
	if err != nil {
		return nil, err
	}
	if p.IsRep() && !p.CanActOnBranch(branch.ID) {
		return nil, apperror.NewForbiddenError("Reps can only create orders for their own branch")
	}

	departmentID := member.DepartmentID
	if input.Department != "" {
		department, err := s.catalogRepo.GetDepartmentByName(ctx, input.Department)
		if err != nil {
			return nil, err
		}
		if department == nil {
			return nil, apperror.NewNotFoundError(fmt.Sprintf("Department %s", input.Department))
		}
		departmentID = &department.ID
	}

	lines, err := s.priceLines(ctx, branch, merged)
	if err != nil {
		return nil, err
	}

	order := &entity.Order{
		ID:               uuid.New(),
		Reference:        utils.GenerateReferenceNo("ORD"),
		MemberID:         member.ID,
		HomeBranchID:     member.HomeBranchID,
		DeliveryBranchID: branch.ID,
		DepartmentID:     departmentID,
		PaymentOption:    opt,
		Status:           enum.OrderStatusPending,
		Note:             strings.TrimSpace(input.Note),
		CreatedBy:        p.Username,
		Lines:            lines,
	}
	order.Recalculate()

	release, err := s.locker.Lock(ctx, member.MemberNo)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := s.eligibility.Admit(ctx, member, opt, order.TotalAmount, nil); err != nil {
		return nil, err
	}

	cycle, err := s.activeCycle(ctx)
	if err != nil {
		return nil, err
	}
	movements := ledger(cycle, order.DeliveryBranchID, order.ID, order.Lines, enum.MovementOut, enum.ReferenceReservation, p.Username)

	if err := s.orderRepo.CreateWithLines(ctx, order, movements); err != nil {
		return nil, err
	}

	s.log.Info("order created",
		zap.String("reference", order.Reference),
		zap.String("member_no", member.MemberNo),
		zap.String("branch", branch.Code),
		zap.String("payment_option", opt.String()),
		zap.String("total", order.TotalAmount.StringFixed(2)),
	)
	s.metrics.OrderTransition("New", enum.OrderStatusPending.String())
	order.Member = member
	s.publish(ctx, order, "", enum.OrderStatusPending, p.Username)

	return s.orderRepo.GetByID(ctx, order.ID)
}

// UpdateLines replaces every line of a Pending order and re-checks eligibility without its old total
func (s *OrderService) UpdateLines(ctx context.Context, p identity.Principal, id uuid.UUID, input []OrderLineInput) (*entity.Order, error) {
	merged, err := mergeLines(input)
	if err != nil {
		return nil, err
	}
	order, err := s.loadScoped(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if order.Status != enum.OrderStatusPending {
		return nil, apperror.NewStateError(fmt.Sprintf("Order %s is %s; only Pending orders can be edited", order.Reference, order.Status))
	}
	if order.DeliveryBranch == nil {
		return nil, apperror.NewNotFoundError("Delivery branch")
	}

	lines, err := s.priceLines(ctx, order.DeliveryBranch, merged)
	if err != nil {
		return nil, err
	}
	previous := order.Lines

	member := order.Member
	if member == nil {
		if member, err = s.memberRepo.GetByID(ctx, order.MemberID); err != nil {
			return nil, err
		}
		if member == nil {
			return nil, apperror.NewNotFoundError("Member")
		}
	}

	release, err := s.locker.Lock(ctx, member.MemberNo)
	if err != nil {
		return nil, err
	}
	defer release()

	updated := *order
	updated.Lines = lines
	updated.Recalculate()
	if _, err := s.eligibility.Admit(ctx, member, order.PaymentOption, updated.TotalAmount, &order.ID); err != nil {
		return nil, err
	}

	cycle, err := s.activeCycle(ctx)
	if err != nil {
		return nil, err
	}
	movements := append(
		ledger(cycle, order.DeliveryBranchID, order.ID, previous, enum.MovementIn, enum.ReferenceRelease, p.Username),
		ledger(cycle, order.DeliveryBranchID, order.ID, updated.Lines, enum.MovementOut, enum.ReferenceReservation, p.Username)...,
	)

	if err := s.orderRepo.ReplaceLines(ctx, &updated, movements); err != nil {
		if errors.Is(err, repository.ErrStaleOrder) {
			return nil, apperror.NewStateError(fmt.Sprintf("Order %s is no longer Pending", order.Reference))
		}
		return nil, err
	}
	return s.orderRepo.GetByID(ctx, order.ID)
}

// PostOrder moves a Pending order to Posted
func (s *OrderService) PostOrder(ctx context.Context, p identity.Principal, id uuid.UUID, note string) (*entity.Order, error) {
	if p.IsMember() {
		return nil, apperror.NewForbiddenError("Members cannot post orders")
	}
	order, err := s.loadScoped(ctx, p, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"posted_at": time.Now(),
		"posted_by": p.Username,
	}
	if note = strings.TrimSpace(note); note != "" {
		updates["admin_notes"] = appendNote(order.AdminNotes, p.Username, note)
	}
	if err := s.transition(ctx, p, order, enum.OrderStatusPosted, updates, nil, false); err != nil {
		return nil, err
	}
	return s.orderRepo.GetByID(ctx, id)
}

// PostOrders posts each order independently and reports per-id failures
func (s *OrderService) PostOrders(ctx context.Context, p identity.Principal, ids []uuid.UUID) *BulkResult {
	result := &BulkResult{Posted: []uuid.UUID{}, Failed: []BulkFailure{}}
	for _, id := range ids {
		if _, err := s.PostOrder(ctx, p, id, ""); err != nil {
			result.Failed = append(result.Failed, BulkFailure{ID: id, Reason: failureReason(err)})
			continue
		}
		result.Posted = append(result.Posted, id)
	}
	return result
}

// DeliverOrder moves a Posted order to Delivered
func (s *OrderService) DeliverOrder(ctx context.Context, p identity.Principal, id uuid.UUID, deliveredBy string) (*entity.Order, error) {
	if p.IsMember() {
		return nil, apperror.NewForbiddenError("Members cannot deliver orders")
	}
	order, err := s.loadScoped(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if deliveredBy = strings.TrimSpace(deliveredBy); deliveredBy == "" {
		deliveredBy = p.Username
	}

	updates := map[string]interface{}{
		"delivered_at": time.Now(),
		"delivered_by": deliveredBy,
	}
	if err := s.transition(ctx, p, order, enum.OrderStatusDelivered, updates, nil, false); err != nil {
		return nil, err
	}
	return s.orderRepo.GetByID(ctx, id)
}

// DeliverOrders delivers each order independently and reports per-id failures
func (s *OrderService) DeliverOrders(ctx context.Context, p identity.Principal, ids []uuid.UUID, deliveredBy string) *BulkResult {
	result := &BulkResult{Delivered: []uuid.UUID{}, Failed: []BulkFailure{}}
	for _, id := range ids {
		if _, err := s.DeliverOrder(ctx, p, id, deliveredBy); err != nil {
			result.Failed = append(result.Failed, BulkFailure{ID: id, Reason: failureReason(err)})
			continue
		}
		result.Delivered = append(result.Delivered, id)
	}
	return result
}

// CancelOrder cancels a Pending order and releases its reserved stock
func (s *OrderService) CancelOrder(ctx context.Context, p identity.Principal, id uuid.UUID, reason string) (*entity.Order, error) {
	if p.IsMember() {
		return nil, apperror.NewForbiddenError("Members cannot cancel orders")
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		return nil, apperror.NewValidationError("Cancel reason is required", apperror.FieldError{Field: "reason", Message: "is required"})
	}
	order, err := s.loadScoped(ctx, p, id)
	if err != nil {
		return nil, err
	}

	movements, err := s.releaseMovements(ctx, order, p.Username)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{
		"cancelled_at":  time.Now(),
		"cancel_reason": reason,
	}
	if err := s.transition(ctx, p, order, enum.OrderStatusCancelled, updates, movements, false); err != nil {
		return nil, err
	}
	return s.orderRepo.GetByID(ctx, id)
}

// DeleteOrder soft-deletes a Pending order. Lines are kept for audit.
func (s *OrderService) DeleteOrder(ctx context.Context, p identity.Principal, id uuid.UUID, reason string) error {
	if !p.IsAdmin() {
		return apperror.NewForbiddenError("Only admins can delete orders")
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		return apperror.NewValidationError("Delete reason is required", apperror.FieldError{Field: "reason", Message: "is required"})
	}
	order, err := s.loadScoped(ctx, p, id)
	if err != nil {
		return err
	}

	movements, err := s.releaseMovements(ctx, order, p.Username)
	if err != nil {
		return err
	}
	updates := map[string]interface{}{
		"delete_reason": reason,
		"deleted_by":    p.Username,
	}
	return s.transition(ctx, p, order, enum.OrderStatusDeleted, updates, movements, true)
}

// GetOrder returns an order visible to the caller
func (s *OrderService) GetOrder(ctx context.Context, p identity.Principal, id uuid.UUID) (*entity.Order, error) {
	return s.loadScoped(ctx, p, id)
}

// ListOrdersInput filters order listings; codes and names are resolved to ids
type ListOrdersInput struct {
	Pagination    *pagination.PaginationParams
	Status        string
	MemberNo      string
	BranchCode    string
	Department    string
	PaymentOption string
	StartDate     *time.Time
	EndDate       *time.Time
	SortBy        string
	SortOrder     string
}

// ListOrders lists orders within the caller's scope
func (s *OrderService) ListOrders(ctx context.Context, p identity.Principal, input *ListOrdersInput) (*pagination.PaginatedResult[entity.Order], error) {
	params := &repository.OrderFilterParams{
		Pagination: input.Pagination,
		StartDate:  input.StartDate,
		EndDate:    input.EndDate,
		SortBy:     input.SortBy,
		SortOrder:  input.SortOrder,
	}
	if params.Pagination == nil {
		params.Pagination = pagination.DefaultPagination()
	}
	params.Pagination.Validate()

	if input.Status != "" {
		status, err := enum.ParseOrderStatus(input.Status)
		if err != nil {
			return nil, apperror.NewValidationError("Invalid status", apperror.FieldError{Field: "status", Message: err.Error()})
		}
		params.Status = &status
	}
	if input.PaymentOption != "" {
		opt, err := enum.ParsePaymentOption(input.PaymentOption)
		if err != nil {
			return nil, apperror.NewValidationError("Invalid payment option", apperror.FieldError{Field: "payment_option", Message: err.Error()})
		}
		params.PaymentOption = &opt
	}

	memberNo := input.MemberNo
	if p.IsMember() {
		if memberNo != "" && !sameCode(memberNo, p.MemberNo) {
			return nil, apperror.NewForbiddenError("Members can only list their own orders")
		}
		memberNo = p.MemberNo
	}
	if memberNo != "" {
		member, err := s.memberRepo.GetByMemberNo(ctx, memberNo)
		if err != nil {
			return nil, err
		}
		if member == nil {
			return nil, apperror.NewNotFoundError("Member")
		}
		params.MemberID = &member.ID
	}

	if input.BranchCode != "" {
		branch, err := requireBranch(ctx, s.catalogRepo, input.BranchCode)
		if err != nil {
			return nil, err
		}
		params.DeliveryBranchID = &branch.ID
	}
	if p.IsRep() {
		if p.BranchID == nil {
			return nil, apperror.NewForbiddenError("Reps need a branch scope")
		}
		if params.DeliveryBranchID != nil && *params.DeliveryBranchID != *p.BranchID {
			return nil, apperror.NewForbiddenError("Reps can only list orders of their own branch")
		}
		params.DeliveryBranchID = p.BranchID
	}

	if input.Department != "" {
		department, err := s.catalogRepo.GetDepartmentByName(ctx, input.Department)
		if err != nil {
			return nil, err
		}
		if department == nil {
			return nil, apperror.NewNotFoundError("Department")
		}
		params.DepartmentID = &department.ID
	}

	orders, total, err := s.orderRepo.List(ctx, params)
	if err != nil {
		return nil, err
	}
	pag := pagination.NewPagination(params.Pagination.Page, params.Pagination.PerPage, total)
	return pagination.NewPaginatedResult(orders, pag), nil
}

// AnnotateOrder appends an administrative note to any order, including terminal ones
func (s *OrderService) AnnotateOrder(ctx context.Context, p identity.Principal, id uuid.UUID, note string) (*entity.Order, error) {
	if !p.IsAdmin() {
		return nil, apperror.NewForbiddenError("Only admins can annotate orders")
	}
	if note = strings.TrimSpace(note); note == "" {
		return nil, apperror.NewValidationError("Note is required", apperror.FieldError{Field: "note", Message: "is required"})
	}
	order, err := s.loadScoped(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if err := s.orderRepo.Annotate(ctx, id, appendNote(order.AdminNotes, p.Username, note)); err != nil {
		return nil, err
	}
	return s.orderRepo.GetByID(ctx, id)
}

// loadScoped fetches an order and checks the caller may act on it
func (s *OrderService) loadScoped(ctx context.Context, p identity.Principal, id uuid.UUID) (*entity.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperror.NewNotFoundError("Order")
	}

	switch {
	case p.IsAdmin():
	case p.IsRep():
		if !p.CanActOnBranch(order.DeliveryBranchID) {
			return nil, apperror.NewForbiddenError("Order belongs to another branch")
		}
	case p.IsMember():
		if order.Member == nil || !sameCode(order.Member.MemberNo, p.MemberNo) {
			return nil, apperror.NewForbiddenError("Order belongs to another member")
		}
	default:
		return nil, apperror.ErrForbidden
	}
	return order, nil
}

func (s *OrderService) transition(
	ctx context.Context,
	p identity.Principal,
	order *entity.Order,
	to enum.OrderStatus,
	updates map[string]interface{},
	movements []entity.InventoryMovement,
	softDelete bool,
) error {
	from := order.Status
	if !from.CanTransitionTo(to) {
		return apperror.NewStateError(fmt.Sprintf("Order %s is %s and cannot become %s", order.Reference, from, to))
	}

	err := s.orderRepo.Transition(ctx, &repository.OrderTransition{
		OrderID:    order.ID,
		From:       from,
		To:         to,
		Updates:    updates,
		Movements:  movements,
		SoftDelete: softDelete,
	})
	if errors.Is(err, repository.ErrStaleOrder) {
		return apperror.NewStateError(fmt.Sprintf("Order %s is no longer %s", order.Reference, from))
	}
	if err != nil {
		return err
	}

	s.log.Info("order transitioned",
		zap.String("reference", order.Reference),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.String("actor", p.Username),
	)
	s.metrics.OrderTransition(from.String(), to.String())
	s.publish(ctx, order, from.String(), to, p.Username)
	return nil
}

// publish runs after commit; a broker failure never undoes a transition
func (s *OrderService) publish(ctx context.Context, order *entity.Order, from string, to enum.OrderStatus, actor string) {
	event := messaging.OrderEvent{
		Type:             messaging.EventOrderStatusChanged,
		OrderID:          order.ID,
		Reference:        order.Reference,
		DeliveryBranchID: order.DeliveryBranchID,
		From:             from,
		To:               to.String(),
		Actor:            actor,
		OccurredAt:       time.Now().UTC(),
	}
	if order.Member != nil {
		event.MemberNo = order.Member.MemberNo
	}
	if err := s.publisher.PublishOrderEvent(ctx, event); err != nil {
		s.log.Warn("publish order event failed", zap.String("reference", order.Reference), zap.Error(err))
	}
}

// priceLines resolves skus and prices them at branch. Items without a price row are unavailable.
func (s *OrderService) priceLines(ctx context.Context, branch *entity.Branch, merged []OrderLineInput) ([]entity.OrderLine, error) {
	skus := make([]string, len(merged))
	for i, l := range merged {
		skus[i] = l.SKU
	}
	items, err := s.catalogRepo.FindItems(ctx, skus)
	if err != nil {
		return nil, err
	}
	bySKU := make(map[string]entity.Item, len(items))
	itemIDs := make([]uint, 0, len(items))
	for _, it := range items {
		bySKU[utils.NormalizeCode(it.SKU)] = it
		itemIDs = append(itemIDs, it.ID)
	}
	for _, l := range merged {
		if _, ok := bySKU[l.SKU]; !ok {
			return nil, apperror.NewNotFoundError(fmt.Sprintf("Item %s", l.SKU))
		}
	}

	prices, err := s.pricing.ResolveMany(ctx, branch.ID, itemIDs)
	if err != nil {
		return nil, err
	}

	lines := make([]entity.OrderLine, 0, len(merged))
	var unavailable []string
	for _, l := range merged {
		item := bySKU[l.SKU]
		price, ok := prices[item.ID]
		if !ok {
			unavailable = append(unavailable, l.SKU)
			continue
		}
		lines = append(lines, entity.OrderLine{
			ItemID:     item.ID,
			Qty:        l.Qty,
			UnitPrice:  price.EffectivePrice,
			UnitMarkup: price.Markup,
		})
	}
	if len(unavailable) > 0 {
		return nil, apperror.NewValidationError(
			fmt.Sprintf("Not available at %s: %s", branch.Code, strings.Join(unavailable, ", ")),
			apperror.FieldError{Field: "lines", Message: "item has no price at the delivery branch"},
		)
	}
	return lines, nil
}

func (s *OrderService) releaseMovements(ctx context.Context, order *entity.Order, actor string) ([]entity.InventoryMovement, error) {
	cycle, err := s.activeCycle(ctx)
	if err != nil {
		return nil, err
	}
	return ledger(cycle, order.DeliveryBranchID, order.ID, order.Lines, enum.MovementIn, enum.ReferenceRelease, actor), nil
}

// activeCycle returns nil when no cycle is open; orders then skip the ledger
func (s *OrderService) activeCycle(ctx context.Context) (*entity.Cycle, error) {
	cycle, err := s.inventoryRepo.ActiveCycle(ctx)
	if err != nil {
		return nil, err
	}
	if cycle == nil {
		s.log.Warn("no active cycle, ledger movements skipped")
	}
	return cycle, nil
}

// mergeLines validates quantities and folds duplicate skus, keeping first-seen order
func mergeLines(input []OrderLineInput) ([]OrderLineInput, error) {
	if len(input) == 0 {
		return nil, apperror.NewValidationError("Order must have at least one line", apperror.FieldError{Field: "lines", Message: "is required"})
	}

	var fieldErrs []apperror.FieldError
	index := make(map[string]int, len(input))
	merged := make([]OrderLineInput, 0, len(input))
	for i, l := range input {
		sku := utils.NormalizeCode(l.SKU)
		if sku == "" {
			fieldErrs = append(fieldErrs, apperror.FieldError{Field: fmt.Sprintf("lines[%d].sku", i), Message: "is required"})
			continue
		}
		if l.Qty <= 0 {
			fieldErrs = append(fieldErrs, apperror.FieldError{Field: fmt.Sprintf("lines[%d].qty", i), Message: "must be greater than zero"})
			continue
		}
		if at, ok := index[sku]; ok {
			merged[at].Qty += l.Qty
			continue
		}
		index[sku] = len(merged)
		merged = append(merged, OrderLineInput{SKU: sku, Qty: l.Qty})
	}
	if len(fieldErrs) > 0 {
		return nil, apperror.NewValidationError("Invalid order lines", fieldErrs...)
	}
	return merged, nil
}

func ledger(
	cycle *entity.Cycle,
	branchID uint,
	orderID uuid.UUID,
	lines []entity.OrderLine,
	typ enum.MovementType,
	ref enum.ReferenceType,
	actor string,
) []entity.InventoryMovement {
	if cycle == nil || len(lines) == 0 {
		return nil
	}
	movements := make([]entity.InventoryMovement, 0, len(lines))
	for _, l := range lines {
		movements = append(movements, entity.InventoryMovement{
			ItemID:        l.ItemID,
			BranchID:      branchID,
			CycleID:       cycle.ID,
			Type:          typ,
			Quantity:      l.Qty,
			ReferenceType: ref,
			ReferenceID:   orderID.String(),
			CreatedBy:     actor,
		})
	}
	return movements
}

func appendNote(existing, actor, note string) string {
	entry := fmt.Sprintf("[%s] %s: %s", time.Now().UTC().Format("2006-01-02 15:04"), actor, note)
	if strings.TrimSpace(existing) == "" {
		return entry
	}
	return existing + "\n" + entry
}
