package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sangkips/coopmart-api/internal/application/service"
	"github.com/sangkips/coopmart-api/internal/presentation/http/dto/response"
)

// InventoryHandler serves stock views, ledger movements and cycles
type InventoryHandler struct {
	inventoryService *service.InventoryService
	stockService     *service.StockService
	cycleService     *service.CycleService
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(inventoryService *service.InventoryService, stockService *service.StockService, cycleService *service.CycleService) *InventoryHandler {
	return &InventoryHandler{inventoryService: inventoryService, stockService: stockService, cycleService: cycleService}
}

// Status returns the reconciled stock rows
func (h *InventoryHandler) Status(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	rows, err := h.inventoryService.GetInventoryStatus(c.Request.Context(), p, service.InventoryQuery{
		BranchCode: c.Query("branch_code"),
		SKU:        c.Query("sku"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Inventory retrieved successfully", rows)
}

type stockChangeRequest struct {
	BranchCode string `json:"branch_code" binding:"required"`
	SKU        string `json:"sku" binding:"required"`
	Qty        int    `json:"qty"`
	Note       string `json:"note"`
}

func (r stockChangeRequest) input() *service.StockChangeInput {
	return &service.StockChangeInput{BranchCode: r.BranchCode, SKU: r.SKU, Qty: r.Qty, Note: r.Note}
}

// Receive records goods delivered to a branch
func (h *InventoryHandler) Receive(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req stockChangeRequest
	if !bindJSON(c, &req) {
		return
	}

	movement, err := h.stockService.ReceiveStock(c.Request.Context(), p, req.input())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Stock received", movement)
}

// Adjust corrects a branch's stock by a signed quantity
func (h *InventoryHandler) Adjust(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req stockChangeRequest
	if !bindJSON(c, &req) {
		return
	}

	movement, err := h.stockService.AdjustStock(c.Request.Context(), p, req.input())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Stock adjusted", movement)
}

// Movements lists ledger entries newest first
func (h *InventoryHandler) Movements(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var q struct {
		BranchCode string `form:"branch_code"`
		SKU        string `form:"sku"`
		CycleID    *uint  `form:"cycle_id"`
		Limit      int    `form:"limit"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	movements, err := h.stockService.ListMovements(c.Request.Context(), p, service.MovementQuery{
		BranchCode: q.BranchCode,
		SKU:        q.SKU,
		CycleID:    q.CycleID,
		Limit:      q.Limit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Movements retrieved successfully", movements)
}

// ListCycles lists every cycle, newest first
func (h *InventoryHandler) ListCycles(c *gin.Context) {
	cycles, err := h.cycleService.ListCycles(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Cycles retrieved successfully", cycles)
}

// ActiveCycle returns the active cycle
func (h *InventoryHandler) ActiveCycle(c *gin.Context) {
	cycle, err := h.cycleService.ActiveCycle(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Active cycle retrieved successfully", cycle)
}

// CreateCycle opens a new cycle
func (h *InventoryHandler) CreateCycle(c *gin.Context) {
	var req struct {
		Name     string     `json:"name" binding:"required"`
		StartsAt time.Time  `json:"starts_at"`
		EndsAt   *time.Time `json:"ends_at"`
		Activate bool       `json:"activate"`
	}
	if !bindJSON(c, &req) {
		return
	}

	cycle, err := h.cycleService.CreateCycle(c.Request.Context(), &service.CreateCycleInput{
		Name:     req.Name,
		StartsAt: req.StartsAt,
		EndsAt:   req.EndsAt,
		Activate: req.Activate,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Cycle created successfully", cycle)
}

// ActivateCycle makes the cycle in the path the only active one
func (h *InventoryHandler) ActivateCycle(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Invalid cycle ID")
		return
	}

	cycle, err := h.cycleService.ActivateCycle(c.Request.Context(), uint(id))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Cycle activated successfully", cycle)
}
