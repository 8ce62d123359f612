package handlers

import (
	"github.com/gin-gonic/gin"

	"prodledger/internal/domain/ledger"
	"prodledger/internal/infrastructure/http/v1/dto"
)

// BalancesHandler serves the style ledger.
type BalancesHandler struct {
	*BaseHandler
	service *ledger.Service
}

// NewBalancesHandler creates a new balances handler.
func NewBalancesHandler(base *BaseHandler, service *ledger.Service) *BalancesHandler {
	return &BalancesHandler{BaseHandler: base, service: service}
}

// Get handles GET /balances/:styleCode. A style with no row reads as zeros.
func (h *BalancesHandler) Get(c *gin.Context) {
	b, err := h.service.Get(c.Request.Context(), c.Param("styleCode"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromBalance(b))
}

// List handles GET /balances
func (h *BalancesHandler) List(c *gin.Context) {
	var q dto.ListBalancesQuery
	if !h.BindQuery(c, &q) {
		return
	}

	bs, err := h.service.List(c.Request.Context(), ledger.BalanceFilter{
		StyleCodes:  q.StyleCodes,
		StylePrefix: q.Prefix,
		ExcludeZero: q.ExcludeZero,
		Limit:       q.Limit,
		Offset:      q.Offset,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"items": dto.FromBalances(bs)})
}
