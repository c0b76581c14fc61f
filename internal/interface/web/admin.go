package webservice

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rafflenet/raffled/internal/core/application"
)

type adminHandler struct {
	adminSvc application.AdminService
	appSvc   application.Service
}

func newAdminHandler(
	adminSvc application.AdminService, appSvc application.Service,
) *adminHandler {
	return &adminHandler{adminSvc, appSvc}
}

func (h *adminHandler) getBalance(c *gin.Context) {
	balance, err := h.adminSvc.GetBalance(c.Request.Context())
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, balanceResponse{
		Pool:    balance.Pool,
		Surplus: balance.Surplus,
	})
}

func (h *adminHandler) listRounds(c *gin.Context) {
	after, err := parseTimestamp(c.Query("after"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid after timestamp"})
		return
	}
	before, err := parseTimestamp(c.Query("before"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before timestamp"})
		return
	}

	ids, err := h.adminSvc.GetRounds(c.Request.Context(), after, before)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rounds": ids})
}

func (h *adminHandler) getRoundDetails(c *gin.Context) {
	details, err := h.adminSvc.GetRoundDetails(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toRoundDetailsResponse(details))
}

func (h *adminHandler) getAccountBalance(c *gin.Context) {
	participant := c.Param("participant")
	balance, err := h.adminSvc.GetAccountBalance(c.Request.Context(), participant)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"participant": participant,
		"balance":     balance,
	})
}

func (h *adminHandler) abandonDraw(c *gin.Context) {
	var req abandonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.Reason) <= 0 {
		req.Reason = "abandoned by operator"
	}

	requestId, err := h.appSvc.AbandonDraw(c.Request.Context(), req.Reason)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"request_id": requestId})
}

func parseTimestamp(value string) (int64, error) {
	if len(value) <= 0 {
		return 0, nil
	}
	return strconv.ParseInt(value, 10, 64)
}
