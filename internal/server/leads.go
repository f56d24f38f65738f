package server

import (
	"net/http"
	"strconv"
	"strings"

	leaddomain "github.com/brushline/leadrail/internal/lead/domain"
	"github.com/gin-gonic/gin"
)

type submitLeadRequest struct {
	Name         string            `json:"name"`
	Email        string            `json:"email"`
	Phone        string            `json:"phone"`
	Service      string            `json:"service"`
	Message      string            `json:"message"`
	Urgency      string            `json:"urgency"`
	BudgetBand   string            `json:"budget_band"`
	Addons       []string          `json:"addons"`
	UTM          map[string]string `json:"utm"`
	Photos       int               `json:"photos"`
	ConsentShare bool              `json:"consent_share"`
	PostalCode   string            `json:"postal_code"`
}

func (s *Server) SubmitLead(c *gin.Context) {
	if s.limiter != nil && !s.limiter.Allow(c.Request.Context(), c.ClientIP()) {
		s.tracker.Track(c.Request.Context(), "lead.rate_limited", map[string]any{"ip": c.ClientIP()})
		AbortWithError(c, ErrRateLimited)
		return
	}

	var req submitLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	lead, err := s.leadSvc.Intake(c.Request.Context(), leaddomain.IntakeRequest{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Service:      req.Service,
		Message:      req.Message,
		Urgency:      req.Urgency,
		BudgetBand:   req.BudgetBand,
		Addons:       req.Addons,
		UTM:          req.UTM,
		Photos:       req.Photos,
		ConsentShare: req.ConsentShare,
		PostalCode:   req.PostalCode,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// Scoring and routing details stay internal; the submitter only learns
	// the inquiry was received.
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"id":       lead.ID,
		"received": true,
	}})
}

func (s *Server) ListLeads(c *gin.Context) {
	var query struct {
		Status   string `form:"status"`
		MinScore int    `form:"min_score"`
		Limit    int    `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	leads, err := s.leadSvc.List(c.Request.Context(), leaddomain.ListLeadsRequest{
		Status:   leaddomain.Status(strings.TrimSpace(query.Status)),
		MinScore: query.MinScore,
		Limit:    query.Limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": leads})
}

func (s *Server) GetLead(c *gin.Context) {
	lead, err := s.leadSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": lead})
}

type updateLeadStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) UpdateLeadStatus(c *gin.Context) {
	var req updateLeadStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	lead, err := s.leadSvc.UpdateStatus(c.Request.Context(), leaddomain.UpdateStatusRequest{
		ID:     strings.TrimSpace(c.Param("id")),
		Status: leaddomain.Status(strings.TrimSpace(req.Status)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": lead})
}

func (s *Server) ListLeadDeliveries(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	deliveries, err := s.deliverySvc.List(c.Request.Context(), strings.TrimSpace(c.Param("id")), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": deliveries})
}
