package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListAnalyticsEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	events := s.tracker.Recent(c.Request.Context(), limit)
	c.JSON(http.StatusOK, gin.H{"data": events})
}
