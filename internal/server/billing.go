package server

import (
	"net/http"
	"strings"

	billingdomain "github.com/brushline/leadrail/internal/billing/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListTransactions(c *gin.Context) {
	var query struct {
		BuyerID string `form:"buyer_id"`
		Limit   int    `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	txns, err := s.billingSvc.List(c.Request.Context(), billingdomain.ListTransactionsRequest{
		BuyerID: strings.TrimSpace(query.BuyerID),
		Limit:   query.Limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": txns})
}

type refundRequest struct {
	BuyerID     string `json:"buyer_id"`
	AmountCents int64  `json:"amount_cents"`
	Note        string `json:"note"`
	LeadID      string `json:"lead_id"`
}

func (s *Server) Refund(c *gin.Context) {
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	txn, err := s.billingSvc.Refund(c.Request.Context(), billingdomain.RefundRequest{
		BuyerID:     strings.TrimSpace(req.BuyerID),
		AmountCents: req.AmountCents,
		Note:        strings.TrimSpace(req.Note),
		LeadID:      strings.TrimSpace(req.LeadID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": txn})
}

func (s *Server) CheckLowBalances(c *gin.Context) {
	alerted, err := s.billingSvc.CheckLowBalances(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"alerted": alerted,
	}})
}
