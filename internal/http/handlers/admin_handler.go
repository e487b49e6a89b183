// README: Admin handlers for review, fan-out, response listing, allocation and candidate registration.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"drivebook/internal/modules/booking"
	"drivebook/internal/modules/dispatch"
	"drivebook/internal/modules/matching"
	"drivebook/internal/types"
)

type DispatchService interface {
	FanOut(ctx context.Context, pool types.Pool, bookingID types.ID) (*dispatch.FanOutResult, error)
	Respond(ctx context.Context, cmd dispatch.RespondCommand) (*dispatch.Response, error)
	ListResponses(ctx context.Context, pool types.Pool, bookingID types.ID, status string) ([]dispatch.Response, error)
	ListOffers(ctx context.Context, pool types.Pool, candidateID types.ID, status string) ([]dispatch.Offer, error)
	Allocate(ctx context.Context, cmd dispatch.AllocateCommand) (*booking.Booking, error)
}

type MatchingService interface {
	Register(ctx context.Context, cmd matching.RegisterCommand) (*matching.Candidate, error)
	Candidate(ctx context.Context, pool types.Pool, id types.ID) (*matching.Candidate, error)
	DispatchInfo(ctx context.Context, pool types.Pool, bookingID types.ID) (*matching.Dispatch, error)
}

type AdminHandler struct {
	booking  BookingService
	dispatch DispatchService
	matching MatchingService
}

func NewAdminHandler(bookingSvc BookingService, dispatchSvc DispatchService, matchingSvc MatchingService) *AdminHandler {
	return &AdminHandler{booking: bookingSvc, dispatch: dispatchSvc, matching: matchingSvc}
}

func (h *AdminHandler) ListBookings(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	status := booking.Status(c.Query("status"))
	if status != "" && !status.Valid() {
		writeBadRequest(c, "unknown status")
		return
	}
	list, err := h.booking.List(c.Request.Context(), status, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"bookings": list})
}

// reviewReq accepts packageType and packageId as aliases.
type reviewReq struct {
	SelectedPackageType string  `json:"selectedPackageType"`
	SelectedPackageID   *string `json:"selectedPackageId"`
	PackageType         string  `json:"packageType"`
	PackageID           *string `json:"packageId"`
}

func (r reviewReq) packageType() types.PackageType {
	if r.SelectedPackageType != "" {
		return types.PackageType(r.SelectedPackageType)
	}
	return types.PackageType(r.PackageType)
}

func (r reviewReq) packageID() *types.ID {
	if r.SelectedPackageID != nil {
		return types.FromPtr(r.SelectedPackageID)
	}
	return types.FromPtr(r.PackageID)
}

func (h *AdminHandler) Review(c *gin.Context) {
	id, ok := pathID(c, "bookingId")
	if !ok {
		return
	}
	var req reviewReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, "invalid json")
		return
	}
	b, err := h.booking.Review(c.Request.Context(), booking.ReviewCommand{
		BookingID:   id,
		AdminID:     callerID(c),
		PackageType: req.packageType(),
		PackageID:   req.packageID(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}

func (h *AdminHandler) History(c *gin.Context) {
	id, ok := pathID(c, "bookingId")
	if !ok {
		return
	}
	events, err := h.booking.History(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"bookingId": id, "events": events})
}

func (h *AdminHandler) SendToDrivers(c *gin.Context) { h.fanOut(c, types.PoolDriver) }

func (h *AdminHandler) SendToLeads(c *gin.Context) { h.fanOut(c, types.PoolLead) }

func (h *AdminHandler) fanOut(c *gin.Context, pool types.Pool) {
	id, ok := pathID(c, "bookingId")
	if !ok {
		return
	}
	res, err := h.dispatch.FanOut(c.Request.Context(), pool, id)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (h *AdminHandler) Responses(c *gin.Context) { h.responses(c, types.PoolDriver) }

func (h *AdminHandler) LeadResponses(c *gin.Context) { h.responses(c, types.PoolLead) }

func (h *AdminHandler) responses(c *gin.Context, pool types.Pool) {
	id, ok := pathID(c, "bookingId")
	if !ok {
		return
	}
	list, err := h.dispatch.ListResponses(c.Request.Context(), pool, id, c.Query("status"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"bookingId": id, "pool": pool, "responses": list})
}

// Dispatch reports what was sent for the booking; ?pool= defaults to driver.
func (h *AdminHandler) Dispatch(c *gin.Context) {
	id, ok := pathID(c, "bookingId")
	if !ok {
		return
	}
	pool := types.Pool(c.DefaultQuery("pool", string(types.PoolDriver)))
	info, err := h.matching.DispatchInfo(c.Request.Context(), pool, id)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, info)
}

type allocateReq struct {
	DriverID string `json:"driverId"`
	LeadID   string `json:"leadId"`
}

func (h *AdminHandler) AllocateDriver(c *gin.Context) { h.allocate(c, types.PoolDriver) }

func (h *AdminHandler) AllocateLead(c *gin.Context) { h.allocate(c, types.PoolLead) }

func (h *AdminHandler) allocate(c *gin.Context, pool types.Pool) {
	id, ok := pathID(c, "bookingId")
	if !ok {
		return
	}
	var req allocateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, "invalid json")
		return
	}
	candidate := req.DriverID
	if pool == types.PoolLead {
		candidate = req.LeadID
	}
	if !isValidID(candidate) {
		writeBadRequest(c, "missing "+string(pool)+" id")
		return
	}
	b, err := h.dispatch.Allocate(c.Request.Context(), dispatch.AllocateCommand{
		Pool:        pool,
		BookingID:   id,
		CandidateID: types.ID(candidate),
		AdminID:     callerID(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}

type registerCandidateReq struct {
	ID    string `json:"id"`
	Pool  string `json:"pool"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// RegisterCandidate adds a driver or lead. An empty id gets a generated one.
func (h *AdminHandler) RegisterCandidate(c *gin.Context) {
	var req registerCandidateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, "invalid json")
		return
	}
	if req.ID != "" && !isValidID(req.ID) {
		writeBadRequest(c, "invalid id")
		return
	}
	cand, err := h.matching.Register(c.Request.Context(), matching.RegisterCommand{
		ID:    types.ID(req.ID),
		Pool:  types.Pool(req.Pool),
		Name:  req.Name,
		Phone: req.Phone,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, cand)
}

// Candidate looks up a driver or lead; ?pool defaults to driver.
func (h *AdminHandler) Candidate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	cand, err := h.matching.Candidate(c.Request.Context(), types.Pool(c.DefaultQuery("pool", string(types.PoolDriver))), id)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, cand)
}
