package service_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/coopmart-api/internal/domain/eligibility"
	"github.com/sangkips/coopmart-api/internal/domain/entity"
	"github.com/sangkips/coopmart-api/internal/domain/enum"
	"github.com/sangkips/coopmart-api/internal/domain/inventory"
	"github.com/sangkips/coopmart-api/internal/domain/repository"
	"github.com/sangkips/coopmart-api/internal/infrastructure/messaging"
	"github.com/sangkips/coopmart-api/pkg/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// store backs every fake repository with plain slices
type store struct {
	mu          sync.Mutex
	nextID      uint
	branches    []entity.Branch
	departments []entity.Department
	items       []entity.Item
	prices      []entity.BranchItemPrice
	markups     []entity.BranchItemMarkup
	members     []entity.Member
	orders      map[uuid.UUID]*entity.Order
	movements   []entity.InventoryMovement
	cycles      []entity.Cycle
	demand      []repository.DemandRow
}

func newStore() *store {
	return &store{nextID: 1, orders: make(map[uuid.UUID]*entity.Order)}
}

func (s *store) id() uint {
	id := s.nextID
	s.nextID++
	return id
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func (s *store) addBranch(code, name string) entity.Branch {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := entity.Branch{ID: s.id(), Code: code, Name: name}
	s.branches = append(s.branches, b)
	return b
}

func (s *store) addDepartment(name string) entity.Department {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := entity.Department{ID: s.id(), Name: name}
	s.departments = append(s.departments, d)
	return d
}

func (s *store) addItem(sku, name string) entity.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := entity.Item{ID: s.id(), SKU: sku, Name: name}
	s.items = append(s.items, it)
	return it
}

func (s *store) addPrice(branchID, itemID uint, base string, stock int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices = append(s.prices, entity.BranchItemPrice{ID: s.id(), BranchID: branchID, ItemID: itemID, BasePrice: dec(base), InitialStock: stock})
}

func (s *store) addMarkup(branchID, itemID uint, amount string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markups = append(s.markups, entity.BranchItemMarkup{ID: s.id(), BranchID: branchID, ItemID: itemID, Amount: dec(amount), Active: active})
}

func (s *store) addMember(memberNo, savings, loans, limit string, homeBranchID *uint) entity.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := entity.Member{
		ID:           s.id(),
		MemberNo:     memberNo,
		Name:         "Member " + memberNo,
		Savings:      dec(savings),
		Loans:        dec(loans),
		GlobalLimit:  dec(limit),
		HomeBranchID: homeBranchID,
	}
	s.members = append(s.members, m)
	return m
}

func (s *store) addCycle(name string, active bool) entity.Cycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := entity.Cycle{ID: s.id(), Name: name, StartsAt: time.Now(), IsActive: active}
	s.cycles = append(s.cycles, c)
	return c
}

func (s *store) branchByID(id uint) *entity.Branch {
	for i := range s.branches {
		if s.branches[i].ID == id {
			b := s.branches[i]
			return &b
		}
	}
	return nil
}

func (s *store) itemByID(id uint) *entity.Item {
	for i := range s.items {
		if s.items[i].ID == id {
			it := s.items[i]
			return &it
		}
	}
	return nil
}

func (s *store) memberByID(id uint) *entity.Member {
	for i := range s.members {
		if s.members[i].ID == id {
			m := s.members[i]
			return &m
		}
	}
	return nil
}

func (s *store) movementsFor(ref enum.ReferenceType) []entity.InventoryMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.InventoryMovement
	for _, m := range s.movements {
		if m.ReferenceType == ref {
			out = append(out, m)
		}
	}
	return out
}

func (s *store) orderSnapshot(id uuid.UUID) entity.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.orders[id]
}

// catalogRepo implements repository.CatalogRepository
type catalogRepo struct{ *store }

func (r catalogRepo) ListBranches(context.Context) ([]entity.Branch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]entity.Branch(nil), r.branches...)
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r catalogRepo) GetBranchByCode(_ context.Context, code string) (*entity.Branch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.branches {
		if b.Code == utils.NormalizeCode(code) {
			return &b, nil
		}
	}
	return nil, nil
}

func (r catalogRepo) FindBranches(_ context.Context, codes []string) ([]entity.Branch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Branch
	for _, b := range r.branches {
		for _, c := range codes {
			if b.Code == utils.NormalizeCode(c) {
				out = append(out, b)
				break
			}
		}
	}
	return out, nil
}

func (r catalogRepo) ListDepartments(context.Context) ([]entity.Department, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.Department(nil), r.departments...), nil
}

func (r catalogRepo) GetDepartmentByName(_ context.Context, name string) (*entity.Department, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.departments {
		if utils.NormalizeName(d.Name) == utils.NormalizeName(name) {
			return &d, nil
		}
	}
	return nil, nil
}

func (r catalogRepo) FindDepartments(_ context.Context, names []string) ([]entity.Department, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Department
	for _, d := range r.departments {
		for _, n := range names {
			if utils.NormalizeName(d.Name) == utils.NormalizeName(n) {
				out = append(out, d)
				break
			}
		}
	}
	return out, nil
}

func (r catalogRepo) ListItems(_ context.Context, search string) ([]entity.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Item
	for _, it := range r.items {
		q := strings.ToLower(search)
		if q == "" || strings.Contains(strings.ToLower(it.Name), q) || strings.Contains(strings.ToLower(it.SKU), q) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r catalogRepo) GetItemBySKU(_ context.Context, sku string) (*entity.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range r.items {
		if it.SKU == utils.NormalizeCode(sku) {
			return &it, nil
		}
	}
	return nil, nil
}

func (r catalogRepo) FindItems(_ context.Context, skus []string) ([]entity.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Item
	for _, it := range r.items {
		for _, sku := range skus {
			if it.SKU == utils.NormalizeCode(sku) {
				out = append(out, it)
				break
			}
		}
	}
	return out, nil
}

func (r catalogRepo) UpsertItems(_ context.Context, items []entity.Item) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, in := range items {
		in.SKU = utils.NormalizeCode(in.SKU)
		found := false
		for i := range r.items {
			if r.items[i].SKU == in.SKU {
				in.ID = r.items[i].ID
				if in.ImageRef == nil {
					in.ImageRef = r.items[i].ImageRef
				}
				r.items[i] = in
				found = true
				break
			}
		}
		if !found {
			in.ID = r.id()
			r.items = append(r.items, in)
		}
	}
	return len(items), nil
}

func (r catalogRepo) attachPrice(p entity.BranchItemPrice) entity.BranchItemPrice {
	p.Branch = r.branchByID(p.BranchID)
	p.Item = r.itemByID(p.ItemID)
	return p
}

func (r catalogRepo) GetPrice(_ context.Context, branchID, itemID uint) (*entity.BranchItemPrice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.prices {
		if p.BranchID == branchID && p.ItemID == itemID {
			out := r.attachPrice(p)
			return &out, nil
		}
	}
	return nil, nil
}

func matchesPair(f repository.PriceFilter, branchID, itemID uint) bool {
	if f.BranchID != nil && *f.BranchID != branchID {
		return false
	}
	if f.ItemID != nil && *f.ItemID != itemID {
		return false
	}
	if len(f.ItemIDs) > 0 {
		for _, id := range f.ItemIDs {
			if id == itemID {
				return true
			}
		}
		return false
	}
	return true
}

func (r catalogRepo) ListPrices(_ context.Context, f repository.PriceFilter) ([]entity.BranchItemPrice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.BranchItemPrice
	for _, p := range r.prices {
		if matchesPair(f, p.BranchID, p.ItemID) {
			out = append(out, r.attachPrice(p))
		}
	}
	return out, nil
}

func (r catalogRepo) UpsertPrices(_ context.Context, prices []entity.BranchItemPrice) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, in := range prices {
		found := false
		for i := range r.prices {
			if r.prices[i].BranchID == in.BranchID && r.prices[i].ItemID == in.ItemID {
				r.prices[i].BasePrice = in.BasePrice
				r.prices[i].InitialStock = in.InitialStock
				found = true
				break
			}
		}
		if !found {
			in.ID = r.id()
			r.prices = append(r.prices, in)
		}
	}
	return len(prices), nil
}

func (r catalogRepo) GetMarkup(_ context.Context, branchID, itemID uint) (*entity.BranchItemMarkup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.markups {
		if m.BranchID == branchID && m.ItemID == itemID {
			return &m, nil
		}
	}
	return nil, nil
}

func (r catalogRepo) ListMarkups(_ context.Context, f repository.PriceFilter) ([]entity.BranchItemMarkup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.BranchItemMarkup
	for _, m := range r.markups {
		if matchesPair(f, m.BranchID, m.ItemID) {
			m.Branch = r.branchByID(m.BranchID)
			m.Item = r.itemByID(m.ItemID)
			out = append(out, m)
		}
	}
	return out, nil
}

func (r catalogRepo) UpsertMarkups(_ context.Context, markups []entity.BranchItemMarkup) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, in := range markups {
		found := false
		for i := range r.markups {
			if r.markups[i].BranchID == in.BranchID && r.markups[i].ItemID == in.ItemID {
				r.markups[i].Amount = in.Amount
				r.markups[i].Active = in.Active
				found = true
				break
			}
		}
		if !found {
			in.ID = r.id()
			r.markups = append(r.markups, in)
		}
	}
	return len(markups), nil
}

func (r catalogRepo) SetMarkupActive(_ context.Context, branchID, itemID uint, active bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.markups {
		if r.markups[i].BranchID == branchID && r.markups[i].ItemID == itemID {
			r.markups[i].Active = active
			return true, nil
		}
	}
	return false, nil
}

func (r catalogRepo) DeleteMarkup(_ context.Context, branchID, itemID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.markups {
		if r.markups[i].BranchID == branchID && r.markups[i].ItemID == itemID {
			r.markups = append(r.markups[:i], r.markups[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// memberRepo implements repository.MemberRepository
type memberRepo struct{ *store }

func (r memberRepo) GetByID(_ context.Context, id uint) (*entity.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.memberByID(id), nil
}

func (r memberRepo) GetByMemberNo(_ context.Context, memberNo string) (*entity.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if m.MemberNo == utils.NormalizeCode(memberNo) {
			return &m, nil
		}
	}
	return nil, nil
}

func (r memberRepo) Upsert(_ context.Context, members []entity.Member) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, in := range members {
		found := false
		for i := range r.members {
			if r.members[i].MemberNo == in.MemberNo {
				in.ID = r.members[i].ID
				r.members[i] = in
				found = true
				break
			}
		}
		if !found {
			in.ID = r.id()
			r.members = append(r.members, in)
		}
	}
	return len(members), nil
}

// orderRepo implements repository.OrderRepository
type orderRepo struct{ *store }

func cloneOrder(o *entity.Order) *entity.Order {
	c := *o
	c.Lines = append([]entity.OrderLine(nil), o.Lines...)
	return &c
}

func (r orderRepo) CreateWithLines(_ context.Context, order *entity.Order, movements []entity.InventoryMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := cloneOrder(order)
	c.Member, c.DeliveryBranch = nil, nil
	c.CreatedAt = time.Now()
	for i := range c.Lines {
		c.Lines[i].ID = uuid.New()
		c.Lines[i].OrderID = c.ID
	}
	r.orders[c.ID] = c
	r.appendMovements(movements)
	return nil
}

func (r orderRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	c := cloneOrder(o)
	c.Member = r.memberByID(c.MemberID)
	c.DeliveryBranch = r.branchByID(c.DeliveryBranchID)
	for i := range c.Lines {
		c.Lines[i].Item = r.itemByID(c.Lines[i].ItemID)
	}
	return c, nil
}

func (r orderRepo) List(_ context.Context, p *repository.OrderFilterParams) ([]entity.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Order
	for _, o := range r.orders {
		if p.Status != nil && o.Status != *p.Status {
			continue
		}
		if p.Status == nil && o.DeletedAt.Valid {
			continue
		}
		if p.MemberID != nil && o.MemberID != *p.MemberID {
			continue
		}
		if p.DeliveryBranchID != nil && o.DeliveryBranchID != *p.DeliveryBranchID {
			continue
		}
		if p.PaymentOption != nil && o.PaymentOption != *p.PaymentOption {
			continue
		}
		out = append(out, *cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Reference < out[j].Reference })
	return out, int64(len(out)), nil
}

func (r orderRepo) ReplaceLines(_ context.Context, order *entity.Order, movements []entity.InventoryMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[order.ID]
	if !ok || o.Status != enum.OrderStatusPending {
		return repository.ErrStaleOrder
	}
	o.Lines = append([]entity.OrderLine(nil), order.Lines...)
	for i := range o.Lines {
		o.Lines[i].ID = uuid.New()
		o.Lines[i].OrderID = o.ID
	}
	o.TotalAmount = order.TotalAmount
	r.appendMovements(movements)
	return nil
}

func (r orderRepo) Transition(_ context.Context, t *repository.OrderTransition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[t.OrderID]
	if !ok || o.Status != t.From {
		return repository.ErrStaleOrder
	}
	o.Status = t.To
	for k, v := range t.Updates {
		switch k {
		case "posted_at":
			at := v.(time.Time)
			o.PostedAt = &at
		case "posted_by":
			o.PostedBy = v.(string)
		case "delivered_at":
			at := v.(time.Time)
			o.DeliveredAt = &at
		case "delivered_by":
			o.DeliveredBy = v.(string)
		case "cancelled_at":
			at := v.(time.Time)
			o.CancelledAt = &at
		case "cancel_reason":
			o.CancelReason = v.(string)
		case "delete_reason":
			o.DeleteReason = v.(string)
		case "deleted_by":
			o.DeletedBy = v.(string)
		case "admin_notes":
			o.AdminNotes = v.(string)
		}
	}
	if t.SoftDelete {
		o.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}
	r.appendMovements(t.Movements)
	return nil
}

func (r orderRepo) Annotate(_ context.Context, id uuid.UUID, note string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	o.AdminNotes = note
	return nil
}

func (r orderRepo) Exposure(_ context.Context, memberID uint, exclude *uuid.UUID) (eligibility.Exposure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exp := eligibility.Exposure{}
	for _, o := range r.orders {
		if o.MemberID != memberID || !o.Status.CountsAsExposure() {
			continue
		}
		if exclude != nil && o.ID == *exclude {
			continue
		}
		exp[o.PaymentOption] = exp.Of(o.PaymentOption).Add(o.TotalAmount)
	}
	return exp, nil
}

func (r orderRepo) StatusQuantities(_ context.Context, f repository.InventoryFilter) ([]inventory.StatusQuantity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	type key struct {
		branchID, itemID uint
		status           enum.OrderStatus
	}
	sums := map[key]int64{}
	for _, o := range r.orders {
		switch o.Status {
		case enum.OrderStatusPending, enum.OrderStatusPosted, enum.OrderStatusDelivered:
		default:
			continue
		}
		if f.BranchID != nil && o.DeliveryBranchID != *f.BranchID {
			continue
		}
		for _, l := range o.Lines {
			if f.ItemID != nil && l.ItemID != *f.ItemID {
				continue
			}
			sums[key{o.DeliveryBranchID, l.ItemID, o.Status}] += int64(l.Qty)
		}
	}
	out := make([]inventory.StatusQuantity, 0, len(sums))
	for k, qty := range sums {
		out = append(out, inventory.StatusQuantity{BranchID: k.branchID, ItemID: k.itemID, Status: k.status, Qty: qty})
	}
	return out, nil
}

func (s *store) appendMovements(movements []entity.InventoryMovement) {
	for _, m := range movements {
		m.ID = s.id()
		s.movements = append(s.movements, m)
	}
}

// inventoryRepo implements repository.InventoryRepository
type inventoryRepo struct{ *store }

func (r inventoryRepo) ActiveCycle(context.Context) (*entity.Cycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cycles {
		if c.IsActive {
			return &c, nil
		}
	}
	return nil, nil
}

func (r inventoryRepo) GetCycle(_ context.Context, id uint) (*entity.Cycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cycles {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, nil
}

func (r inventoryRepo) ListCycles(context.Context) ([]entity.Cycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.Cycle(nil), r.cycles...), nil
}

func (r inventoryRepo) CreateCycle(_ context.Context, c *entity.Cycle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = r.id()
	r.cycles = append(r.cycles, *c)
	return nil
}

func (r inventoryRepo) ActivateCycle(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	found := false
	for i := range r.cycles {
		if r.cycles[i].ID == id {
			found = true
		}
	}
	if !found {
		return gorm.ErrRecordNotFound
	}
	for i := range r.cycles {
		r.cycles[i].IsActive = r.cycles[i].ID == id
	}
	return nil
}

func (r inventoryRepo) AppendMovements(_ context.Context, movements []entity.InventoryMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appendMovements(movements)
	return nil
}

func (r inventoryRepo) ListMovements(_ context.Context, f repository.MovementFilter) ([]entity.InventoryMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.InventoryMovement
	for i := len(r.movements) - 1; i >= 0; i-- {
		m := r.movements[i]
		if f.BranchID != nil && m.BranchID != *f.BranchID {
			continue
		}
		if f.ItemID != nil && m.ItemID != *f.ItemID {
			continue
		}
		if f.CycleID != nil && m.CycleID != *f.CycleID {
			continue
		}
		out = append(out, m)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (r inventoryRepo) ApplyStockChange(_ context.Context, branchID, itemID uint, delta int, m *entity.InventoryMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.prices {
		p := &r.prices[i]
		if p.BranchID != branchID || p.ItemID != itemID {
			continue
		}
		if p.InitialStock+delta < 0 {
			return repository.ErrNegativeStock
		}
		p.InitialStock += delta
		m.ID = r.id()
		r.movements = append(r.movements, *m)
		return nil
	}
	return repository.ErrNoPriceRow
}

// reportRepo implements repository.ReportRepository over preset rows
type reportRepo struct{ *store }

func (r reportRepo) Demand(_ context.Context, f repository.DemandFilter) ([]repository.DemandRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repository.DemandRow
	for _, row := range r.demand {
		if f.BranchCode != "" && row.BranchCode != utils.NormalizeCode(f.BranchCode) {
			continue
		}
		if f.Department != "" && utils.NormalizeName(row.Department) != utils.NormalizeName(f.Department) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

// recordingPublisher captures published events
type recordingPublisher struct {
	mu     sync.Mutex
	events []messaging.OrderEvent
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, e messaging.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) last() messaging.OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return messaging.OrderEvent{}
	}
	return p.events[len(p.events)-1]
}
