package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"trading-alert-engine/internal/alert"
	"trading-alert-engine/internal/auth"
)

type tokenRequest struct {
	AdminToken string `json:"admin_token" binding:"required"`
	Subject    string `json:"subject"`
}

// handleIssueToken exchanges the admin bootstrap token for a JWT
func (s *Server) handleIssueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if s.config.AdminTokenHash == "" || !auth.VerifyAdminToken(req.AdminToken, s.config.AdminTokenHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid admin token"})
		return
	}

	subject := req.Subject
	if subject == "" {
		subject = "admin"
	}

	token, err := s.jwtManager.GenerateToken(subject, true)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to issue token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   s.jwtManager.TokenDuration(),
	})
}

type createAlertRequest struct {
	Symbol      string                 `json:"symbol" binding:"required"`
	Kind        string                 `json:"kind" binding:"required"`
	Condition   string                 `json:"condition" binding:"required"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
	ExpiresIn   string                 `json:"expires_in"` // Go duration, e.g. "24h"; empty means never
	OneTime     *bool                  `json:"one_time"`   // defaults to true
}

func (s *Server) handleCreateAlert(c *gin.Context) {
	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	kind, err := alert.ParseKind(req.Kind)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cond, err := alert.ParseCondition(req.Condition)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var expiresIn time.Duration
	if req.ExpiresIn != "" {
		expiresIn, err = time.ParseDuration(req.ExpiresIn)
		if err != nil || expiresIn < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid expires_in duration"})
			return
		}
	}

	oneTime := true
	if req.OneTime != nil {
		oneTime = *req.OneTime
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	created, err := s.registry.Add(ctx, alert.AddParams{
		Symbol:      req.Symbol,
		Kind:        kind,
		Condition:   cond,
		Description: req.Description,
		Parameters:  req.Parameters,
		ExpiresIn:   expiresIn,
		OneTime:     oneTime,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to create alert")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist alert"})
		return
	}

	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleListAlerts(c *gin.Context) {
	enabledOnly := c.Query("enabled") == "true"
	symbol := c.Query("symbol")

	alerts := s.registry.List(enabledOnly, symbol)
	c.JSON(http.StatusOK, gin.H{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

func (s *Server) handleGetAlert(c *gin.Context) {
	a, err := s.registry.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, alert.ErrAlertNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) handleDeleteAlert(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	removed, err := s.registry.Remove(ctx, c.Param("id"))
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to remove alert")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist removal"})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": true})
}

func (s *Server) handleEnableAlert(c *gin.Context) {
	s.setAlertEnabled(c, true)
}

func (s *Server) handleDisableAlert(c *gin.Context) {
	s.setAlertEnabled(c, false)
}

func (s *Server) setAlertEnabled(c *gin.Context, enabled bool) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	var (
		ok  bool
		err error
	)
	if enabled {
		ok, err = s.registry.Enable(ctx, c.Param("id"))
	} else {
		ok, err = s.registry.Disable(ctx, c.Param("id"))
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist change"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": enabled})
}

func (s *Server) handleEngineStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"symbols":        s.registry.Symbols(),
		"last_cycle":     s.engine.LastResult(),
	})
}

// handleRunCycle triggers an immediate evaluation cycle
func (s *Server) handleRunCycle(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	result := s.engine.RunCycle(ctx)
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"uptime": int64(time.Since(s.startedAt).Seconds()),
	})
}
