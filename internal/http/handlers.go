package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rewards-bot-backend/internal/common/logger"
	"rewards-bot-backend/internal/common/middleware"
	winnersvc "rewards-bot-backend/internal/features/winner/service"
)

// statusResponse mirrors what /status shows in chat, minus anything secret:
// no WVC codes and no signatures.
type statusResponse struct {
	Username         string  `json:"username"`
	Rank             *int    `json:"rank,omitempty"`
	XP               *int    `json:"xp,omitempty"`
	Wallet           *string `json:"wallet,omitempty"`
	PendingNewWallet *string `json:"pending_new_wallet,omitempty"`
	WvcRequired      bool    `json:"wvc_required"`
	ProofRecorded    bool    `json:"proof_recorded"`
	Registered       bool    `json:"registered"`
}

func (a *App) statusHandler(c *gin.Context) {
	user, ok := middleware.TelegramUserFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	ctx := c.Request.Context()
	rec, err := a.winners.Status(ctx, user.ID)
	if errors.Is(err, winnersvc.ErrNotWhitelisted) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not linked"})
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("status endpoint failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	hasProof, err := a.winners.HasProof(ctx, user.ID)
	if err != nil {
		logger.Error().Err(err).Msg("proof lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, statusResponse{
		Username:         rec.Username,
		Rank:             rec.Rank,
		XP:               rec.XP,
		Wallet:           rec.Wallet,
		PendingNewWallet: rec.PendingNewWallet,
		WvcRequired:      rec.NeedsWVC(),
		ProofRecorded:    hasProof,
		Registered:       rec.RegistrationSignature != nil,
	})
}

func (a *App) adminRequestsHandler(c *gin.Context) {
	requests, err := a.requests.ListRecent(c.Request.Context())
	if err != nil {
		logger.Error().Err(err).Msg("admin requests endpoint failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests, "count": len(requests)})
}
