package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	entdomain "github.com/solacehealth/solace/internal/entitlement/domain"
)

// ListChains returns the supported payment chain catalog.
func (s *Server) ListChains(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"chains": s.chains.List()})
}

// ListTiers returns the subscription plan catalog.
func (s *Server) ListTiers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tiers": entdomain.Tiers()})
}
