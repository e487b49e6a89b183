// README: Driver and lead handlers for offers, responses and trip start/complete.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"drivebook/internal/modules/booking"
	"drivebook/internal/modules/dispatch"
	"drivebook/internal/types"
)

// CandidateHandler serves one pool; the router mounts one per pool.
type CandidateHandler struct {
	pool     types.Pool
	dispatch DispatchService
	booking  BookingService
}

func NewCandidateHandler(pool types.Pool, dispatchSvc DispatchService, bookingSvc BookingService) *CandidateHandler {
	return &CandidateHandler{pool: pool, dispatch: dispatchSvc, booking: bookingSvc}
}

func (h *CandidateHandler) Offers(c *gin.Context) {
	offers, err := h.dispatch.ListOffers(c.Request.Context(), h.pool, callerID(c), c.Query("status"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"offers": offers})
}

type respondReq struct {
	Action string `json:"action"`
}

func (h *CandidateHandler) Respond(c *gin.Context) {
	id, ok := pathID(c, "responseId")
	if !ok {
		return
	}
	var req respondReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, "invalid json")
		return
	}
	r, err := h.dispatch.Respond(c.Request.Context(), dispatch.RespondCommand{
		Pool:        h.pool,
		ResponseID:  id,
		CandidateID: callerID(c),
		Action:      req.Action,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}

func (h *CandidateHandler) Start(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	b, err := h.booking.Start(c.Request.Context(), booking.StartCommand{BookingID: id, Pool: h.pool, ActorID: callerID(c)})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}

func (h *CandidateHandler) Complete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	b, err := h.booking.Complete(c.Request.Context(), booking.CompleteCommand{BookingID: id, Pool: h.pool, ActorID: callerID(c)})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}
