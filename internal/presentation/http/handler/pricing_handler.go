package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/sangkips/coopmart-api/internal/application/service"
	"github.com/sangkips/coopmart-api/internal/presentation/http/dto/response"
	"github.com/shopspring/decimal"
)

// PricingHandler serves resolved prices and markup maintenance
type PricingHandler struct {
	pricingService *service.PricingService
}

// NewPricingHandler creates a new pricing handler
func NewPricingHandler(pricingService *service.PricingService) *PricingHandler {
	return &PricingHandler{pricingService: pricingService}
}

type markupKey struct {
	BranchCode string `json:"branch_code" binding:"required"`
	SKU        string `json:"sku" binding:"required"`
}

// ListPrices returns effective prices, optionally for one branch
func (h *PricingHandler) ListPrices(c *gin.Context) {
	prices, err := h.pricingService.ListPrices(c.Request.Context(), c.Query("branch_code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Prices retrieved successfully", prices)
}

// UpsertMarkup creates or replaces a markup and activates it
func (h *PricingHandler) UpsertMarkup(c *gin.Context) {
	var req struct {
		markupKey
		Amount decimal.Decimal `json:"amount"`
	}
	if !bindJSON(c, &req) {
		return
	}

	markup, err := h.pricingService.UpsertMarkup(c.Request.Context(), &service.MarkupInput{
		BranchCode: req.BranchCode,
		SKU:        req.SKU,
		Amount:     req.Amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Markup saved successfully", markup)
}

// SetMarkupActive toggles a markup without changing its amount
func (h *PricingHandler) SetMarkupActive(c *gin.Context) {
	var req struct {
		markupKey
		Active *bool `json:"active" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	markup, err := h.pricingService.SetMarkupActive(c.Request.Context(), req.BranchCode, req.SKU, *req.Active)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Markup updated successfully", markup)
}

// DeleteMarkup removes a markup
func (h *PricingHandler) DeleteMarkup(c *gin.Context) {
	var req markupKey
	if !bindJSON(c, &req) {
		return
	}

	if err := h.pricingService.DeleteMarkup(c.Request.Context(), req.BranchCode, req.SKU); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Markup deleted successfully", nil)
}
