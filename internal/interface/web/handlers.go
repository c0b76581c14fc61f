package webservice

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rafflenet/raffled/internal/core/application"
	"github.com/rafflenet/raffled/internal/core/domain"
	"github.com/rafflenet/raffled/internal/core/ports"
)

type raffleHandler struct {
	svc        application.Service
	randomness ports.RandomnessSource
	broker     *broker
}

func newRaffleHandler(
	svc application.Service, randomnessSvc ports.RandomnessSource, broker *broker,
) *raffleHandler {
	return &raffleHandler{svc, randomnessSvc, broker}
}

func (h *raffleHandler) getInfo(c *gin.Context) {
	info, err := h.svc.GetInfo(c.Request.Context())
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toInfoResponse(info))
}

func (h *raffleHandler) enter(c *gin.Context) {
	var req enterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.svc.Enter(c.Request.Context(), req.Participant, req.FeePaid); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *raffleHandler) getCurrentRound(c *gin.Context) {
	round, err := h.svc.GetCurrentRound(c.Request.Context())
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toRoundResponse(round))
}

func (h *raffleHandler) getRound(c *gin.Context) {
	round, err := h.svc.GetRoundById(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toRoundResponse(round))
}

func (h *raffleHandler) getEntrant(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entrant index"})
		return
	}

	participant, err := h.svc.GetParticipant(c.Request.Context(), index)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"participant": participant})
}

func (h *raffleHandler) getLastWinner(c *gin.Context) {
	record, err := h.svc.GetLastWinner(c.Request.Context())
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no settled round yet"})
		return
	}
	c.JSON(http.StatusOK, toWinnerResponse(record))
}

func (h *raffleHandler) getRecentWinners(c *gin.Context) {
	limit := 10
	if q := c.Query("limit"); len(q) > 0 {
		parsed, err := strconv.Atoi(q)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	records, err := h.svc.GetRecentWinners(c.Request.Context(), limit)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	winners := make([]*winnerResponse, 0, len(records))
	for i := range records {
		winners = append(winners, toWinnerResponse(&records[i]))
	}
	c.JSON(http.StatusOK, gin.H{"winners": winners})
}

func (h *raffleHandler) checkUpkeep(c *gin.Context) {
	needed, status := h.svc.CheckUpkeep(c.Request.Context())
	c.JSON(http.StatusOK, toUpkeepResponse(needed, status))
}

func (h *raffleHandler) performUpkeep(c *gin.Context) {
	requestId, err := h.svc.PerformUpkeep(c.Request.Context())
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"request_id": requestId})
}

func (h *raffleHandler) fulfillRandomness(c *gin.Context) {
	var req fulfillmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	requestId, words, proof, err := parseFulfillment(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.randomness.Fulfill(
		c.Request.Context(), requestId, words, proof,
	); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *raffleHandler) streamEvents(c *gin.Context) {
	l := &listener{
		id:   uuid.NewString(),
		ch:   make(chan domain.RoundEvent),
		done: make(chan struct{}),
	}

	h.broker.pushListener(l)
	defer func() {
		h.broker.removeListener(l.id)
		close(l.done)
	}()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case event := <-l.ch:
			name, payload := toEventPayload(event)
			c.SSEvent(name, payload)
			return true
		}
	})
}

func statusForError(err error) int {
	if errors.Is(err, ports.ErrUnknownRequest) {
		return http.StatusNotFound
	}
	if errors.Is(err, ports.ErrRequestFulfilled) {
		return http.StatusConflict
	}

	switch err.(type) {
	case domain.ErrRoundNotOpen, domain.ErrStaleFulfillment,
		application.ErrUpkeepNotNeeded:
		return http.StatusConflict
	case domain.ErrInsufficientFee:
		return http.StatusBadRequest
	case domain.ErrIndexOutOfRange:
		return http.StatusNotFound
	}

	if strings.Contains(err.Error(), "proof for request") {
		return http.StatusForbidden
	}
	if strings.Contains(err.Error(), "not found") {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
