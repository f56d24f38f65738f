package server

import (
	"net/http"
	"strings"

	billingdomain "github.com/brushline/leadrail/internal/billing/domain"
	buyerdomain "github.com/brushline/leadrail/internal/buyer/domain"
	"github.com/gin-gonic/gin"
)

type createBuyerRequest struct {
	Name           string   `json:"name"`
	ContactEmail   string   `json:"contact_email"`
	Active         bool     `json:"active"`
	MinScore       int      `json:"min_score"`
	Services       []string `json:"services"`
	PostalPrefixes []string `json:"postal_prefixes"`
	DailyCap       int      `json:"daily_cap"`
	WebhookURL     string   `json:"webhook_url"`

	PricePerLeadCents        *int64 `json:"price_per_lead_cents"`
	CreditCents              *int64 `json:"credit_cents"`
	LowBalanceThresholdCents *int64 `json:"low_balance_threshold_cents"`
}

func (s *Server) CreateBuyer(c *gin.Context) {
	var req createBuyerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	buyer, err := s.buyerSvc.Create(c.Request.Context(), buyerdomain.CreateBuyerRequest{
		Name:                     req.Name,
		ContactEmail:             req.ContactEmail,
		Active:                   req.Active,
		MinScore:                 req.MinScore,
		Services:                 req.Services,
		PostalPrefixes:           req.PostalPrefixes,
		DailyCap:                 req.DailyCap,
		WebhookURL:               req.WebhookURL,
		PricePerLeadCents:        req.PricePerLeadCents,
		CreditCents:              req.CreditCents,
		LowBalanceThresholdCents: req.LowBalanceThresholdCents,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": buyer})
}

func (s *Server) ListBuyers(c *gin.Context) {
	buyers, err := s.buyerSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": buyers})
}

func (s *Server) GetBuyer(c *gin.Context) {
	buyer, err := s.buyerSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": buyer})
}

type updateBuyerRequest struct {
	Name           *string   `json:"name"`
	ContactEmail   *string   `json:"contact_email"`
	Active         *bool     `json:"active"`
	MinScore       *int      `json:"min_score"`
	Services       *[]string `json:"services"`
	PostalPrefixes *[]string `json:"postal_prefixes"`
	DailyCap       *int      `json:"daily_cap"`
	WebhookURL     *string   `json:"webhook_url"`

	PricePerLeadCents        *int64 `json:"price_per_lead_cents"`
	LowBalanceThresholdCents *int64 `json:"low_balance_threshold_cents"`
}

func (s *Server) UpdateBuyer(c *gin.Context) {
	var req updateBuyerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	buyer, err := s.buyerSvc.Update(c.Request.Context(), strings.TrimSpace(c.Param("id")), buyerdomain.UpdateBuyerRequest{
		Name:                     req.Name,
		ContactEmail:             req.ContactEmail,
		Active:                   req.Active,
		MinScore:                 req.MinScore,
		Services:                 req.Services,
		PostalPrefixes:           req.PostalPrefixes,
		DailyCap:                 req.DailyCap,
		WebhookURL:               req.WebhookURL,
		PricePerLeadCents:        req.PricePerLeadCents,
		LowBalanceThresholdCents: req.LowBalanceThresholdCents,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": buyer})
}

type fundBuyerRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Note        string `json:"note"`
}

func (s *Server) FundBuyer(c *gin.Context) {
	var req fundBuyerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	txn, err := s.billingSvc.Fund(c.Request.Context(), billingdomain.FundRequest{
		BuyerID:     strings.TrimSpace(c.Param("id")),
		AmountCents: req.AmountCents,
		Note:        strings.TrimSpace(req.Note),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": txn})
}
