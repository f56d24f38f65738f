package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) ProcessDrip(c *gin.Context) {
	result, err := s.dripSvc.ProcessDue(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
