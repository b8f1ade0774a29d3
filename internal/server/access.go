package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/solacehealth/solace/internal/access"
	entdomain "github.com/solacehealth/solace/internal/entitlement/domain"
)

// GetUserAccess returns the user's current entitlement snapshot. A user
// without a subscription gets a valid snapshot, not an error.
func (s *Server) GetUserAccess(c *gin.Context) {
	userID := c.Param("user_id")

	snapshot, err := s.accessSvc.CheckAccess(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

type bookingEligibilityRequest struct {
	UserID      string             `json:"user_id" binding:"required"`
	TherapistID string             `json:"therapist_id" binding:"required"`
	SessionType access.SessionType `json:"session_type" binding:"required,session_type"`
	Minutes     int                `json:"minutes" binding:"required,gt=0"`
}

// CheckBookingEligibility answers whether a session booking would be
// allowed right now. A denial is a 200 with the reason, not an error; the
// caller renders it to the user.
func (s *Server) CheckBookingEligibility(c *gin.Context) {
	var req bookingEligibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	decision, err := s.accessSvc.CanBookSession(c.Request.Context(), req.UserID, req.TherapistID, req.SessionType, req.Minutes)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, decision)
}

type consumeMinutesRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	SessionID   string `json:"session_id" binding:"required"`
	SessionType string `json:"session_type" binding:"required"`
	Minutes     int    `json:"minutes" binding:"required,gt=0"`
}

// ConsumeSessionMinutes draws a completed session's minutes down from the
// active subscription. The balance floors at zero.
func (s *Server) ConsumeSessionMinutes(c *gin.Context) {
	var req consumeMinutesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.entitlements.ConsumeMinutes(c.Request.Context(), entdomain.ConsumeMinutesRequest{
		UserID:      req.UserID,
		SessionID:   req.SessionID,
		SessionType: req.SessionType,
		Minutes:     req.Minutes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"minutes_applied":   result.MinutesApplied,
		"remaining_minutes": result.RemainingMinutes,
	})
}

// ListUsageHistory returns the user's minute ledger, newest first.
func (s *Server) ListUsageHistory(c *gin.Context) {
	userID := c.Param("user_id")
	limit := parseLimit(c.Query("limit"), 50)

	entries, err := s.entitlements.UsageHistory(c.Request.Context(), userID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
