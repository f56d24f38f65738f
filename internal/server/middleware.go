package server

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"
)

// AdminRequired gates operator routes behind the shared admin key. An
// unconfigured key denies everything rather than opening the surface.
func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !keysMatch(c.GetHeader("X-Admin-Key"), s.cfg.AdminAPIKey) {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

// InternalRequired gates task endpoints invoked by trusted infrastructure.
func (s *Server) InternalRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !keysMatch(c.GetHeader("X-Internal-Key"), s.cfg.InternalTaskKey) {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

func keysMatch(provided, expected string) bool {
	if expected == "" || provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}
