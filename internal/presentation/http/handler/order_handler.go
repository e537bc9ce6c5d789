package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sangkips/coopmart-api/internal/application/service"
	"github.com/sangkips/coopmart-api/internal/presentation/http/dto/response"
	"github.com/sangkips/coopmart-api/pkg/pagination"
)

// OrderHandler handles order-related HTTP requests
type OrderHandler struct {
	orderService *service.OrderService
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orderService *service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

type orderLineRequest struct {
	SKU string `json:"sku" binding:"required"`
	Qty int    `json:"qty" binding:"required"`
}

type createOrderRequest struct {
	MemberNo           string             `json:"member_no"`
	DeliveryBranchCode string             `json:"delivery_branch_code" binding:"required"`
	Department         string             `json:"department"`
	PaymentOption      string             `json:"payment_option" binding:"required"`
	Note               string             `json:"note"`
	Lines              []orderLineRequest `json:"lines" binding:"required,min=1,dive"`
}

type bulkRequest struct {
	IDs         []uuid.UUID `json:"ids" binding:"required,min=1"`
	DeliveredBy string      `json:"delivered_by"`
}

type reasonRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type noteRequest struct {
	Note string `json:"note"`
}

func toLineInputs(lines []orderLineRequest) []service.OrderLineInput {
	out := make([]service.OrderLineInput, len(lines))
	for i, l := range lines {
		out[i] = service.OrderLineInput{SKU: l.SKU, Qty: l.Qty}
	}
	return out
}

// List handles listing orders within the caller's scope
func (h *OrderHandler) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	input := &service.ListOrdersInput{
		Pagination:    pagination.FromStrings(c.Query("page"), c.Query("per_page")),
		Status:        c.Query("status"),
		MemberNo:      c.Query("member_no"),
		BranchCode:    c.Query("branch_code"),
		Department:    c.Query("department"),
		PaymentOption: c.Query("payment_option"),
		SortBy:        c.Query("sort_by"),
		SortOrder:     c.Query("sort_order"),
	}
	if startDate, err := time.Parse("2006-01-02", c.Query("start_date")); err == nil {
		input.StartDate = &startDate
	}
	if endDate, err := time.Parse("2006-01-02", c.Query("end_date")); err == nil {
		input.EndDate = &endDate
	}

	result, err := h.orderService.ListOrders(c.Request.Context(), p, input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithPagination(c, 200, "Orders retrieved successfully", result)
}

// Create handles placing an order
func (h *OrderHandler) Create(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req createOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), p, &service.CreateOrderInput{
		MemberNo:           req.MemberNo,
		DeliveryBranchCode: req.DeliveryBranchCode,
		Department:         req.Department,
		PaymentOption:      req.PaymentOption,
		Note:               req.Note,
		Lines:              toLineInputs(req.Lines),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Order created successfully", order)
}

// Get handles getting a single order
func (h *OrderHandler) Get(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), p, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Order retrieved successfully", order)
}

// UpdateLines replaces the lines of a Pending order
func (h *OrderHandler) UpdateLines(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req struct {
		Lines []orderLineRequest `json:"lines" binding:"required,min=1,dive"`
	}
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orderService.UpdateLines(c.Request.Context(), p, id, toLineInputs(req.Lines))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Order lines updated successfully", order)
}

// Post moves a Pending order to Posted
func (h *OrderHandler) Post(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req noteRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	order, err := h.orderService.PostOrder(c.Request.Context(), p, id, req.Note)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Order posted successfully", order)
}

// PostBulk posts many orders, reporting per-order failures
func (h *OrderHandler) PostBulk(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req bulkRequest
	if !bindJSON(c, &req) {
		return
	}

	result := h.orderService.PostOrders(c.Request.Context(), p, req.IDs)
	response.OK(c, "Bulk post processed", result)
}

// Deliver moves a Posted order to Delivered
func (h *OrderHandler) Deliver(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req struct {
		DeliveredBy string `json:"delivered_by"`
	}
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	order, err := h.orderService.DeliverOrder(c.Request.Context(), p, id, req.DeliveredBy)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Order delivered successfully", order)
}

// DeliverBulk delivers many orders, reporting per-order failures
func (h *OrderHandler) DeliverBulk(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req bulkRequest
	if !bindJSON(c, &req) {
		return
	}

	result := h.orderService.DeliverOrders(c.Request.Context(), p, req.IDs, req.DeliveredBy)
	response.OK(c, "Bulk delivery processed", result)
}

// Cancel handles cancelling a Pending order
func (h *OrderHandler) Cancel(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req reasonRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orderService.CancelOrder(c.Request.Context(), p, id, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Order cancelled successfully", order)
}

// Delete soft-deletes a Pending order
func (h *OrderHandler) Delete(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req reasonRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.orderService.DeleteOrder(c.Request.Context(), p, id, req.Reason); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Order deleted successfully", nil)
}

// Annotate appends an admin note
func (h *OrderHandler) Annotate(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req struct {
		Note string `json:"note" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orderService.AnnotateOrder(c.Request.Context(), p, id, req.Note)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Order annotated successfully", order)
}
