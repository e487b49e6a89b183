// README: Customer booking handlers for create/list/get/cancel and fare estimates.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	httpmiddleware "drivebook/internal/http/middleware"
	"drivebook/internal/modules/booking"
	"drivebook/internal/modules/fare"
	"drivebook/internal/types"
)

type BookingService interface {
	Create(ctx context.Context, cmd booking.CreateCommand) (*booking.Booking, error)
	Get(ctx context.Context, id types.ID) (*booking.Booking, error)
	GetForCustomer(ctx context.Context, id, customerID types.ID) (*booking.Booking, error)
	ListByCustomer(ctx context.Context, customerID types.ID, limit int) ([]booking.Booking, error)
	List(ctx context.Context, status booking.Status, limit int) ([]booking.Booking, error)
	History(ctx context.Context, id types.ID) ([]booking.Event, error)
	Review(ctx context.Context, cmd booking.ReviewCommand) (*booking.Booking, error)
	Start(ctx context.Context, cmd booking.StartCommand) (*booking.Booking, error)
	Complete(ctx context.Context, cmd booking.CompleteCommand) (*booking.Booking, error)
	Cancel(ctx context.Context, cmd booking.CancelCommand) (*booking.Booking, error)
}

type FareService interface {
	Estimate(ctx context.Context, req fare.EstimateRequest) (*fare.Estimate, error)
}

type BookingHandler struct {
	booking BookingService
	fare    FareService
}

func NewBookingHandler(bookingSvc BookingService, fareSvc FareService) *BookingHandler {
	return &BookingHandler{booking: bookingSvc, fare: fareSvc}
}

// createBookingReq accepts startAt and durationHours as aliases of
// startDateTime and duration.
type createBookingReq struct {
	PickupLocation string    `json:"pickupLocation"`
	DropLocation   string    `json:"dropLocation"`
	BookingType    string    `json:"bookingType"`
	ServiceType    string    `json:"serviceType"`
	StartDateTime  time.Time `json:"startDateTime"`
	Duration       int       `json:"duration"`
	StartAt        time.Time `json:"startAt"`
	DurationHours  int       `json:"durationHours"`
	VehicleType    string    `json:"vehicleType"`
	CarType        string    `json:"carType"`
	EstimateAmount int64     `json:"estimateAmount"`
}

func (r createBookingReq) start() time.Time {
	if r.StartDateTime.IsZero() {
		return r.StartAt
	}
	return r.StartDateTime
}

func (r createBookingReq) duration() int {
	if r.Duration == 0 {
		return r.DurationHours
	}
	return r.Duration
}

func (h *BookingHandler) Create(c *gin.Context) {
	var req createBookingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, "invalid json")
		return
	}
	b, err := h.booking.Create(c.Request.Context(), booking.CreateCommand{
		CustomerID:     callerID(c),
		PickupLocation: req.PickupLocation,
		DropLocation:   req.DropLocation,
		BookingType:    booking.Type(req.BookingType),
		ServiceType:    req.ServiceType,
		StartAt:        req.start(),
		DurationHours:  req.duration(),
		VehicleType:    req.VehicleType,
		CarType:        req.CarType,
		EstimateAmount: req.EstimateAmount,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, b)
}

func (h *BookingHandler) List(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	list, err := h.booking.ListByCustomer(c.Request.Context(), callerID(c), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"bookings": list})
}

// Get returns any booking to admins; customers only see their own.
func (h *BookingHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var (
		b   *booking.Booking
		err error
	)
	if httpmiddleware.CallerRole(c) == httpmiddleware.RoleAdmin {
		b, err = h.booking.Get(c.Request.Context(), id)
	} else {
		b, err = h.booking.GetForCustomer(c.Request.Context(), id, callerID(c))
	}
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}

type cancelBookingReq struct {
	Reason string `json:"reason"`
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req cancelBookingReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeBadRequest(c, "invalid json")
			return
		}
	}
	actor := booking.ActorCustomer
	if httpmiddleware.CallerRole(c) == httpmiddleware.RoleAdmin {
		actor = booking.ActorAdmin
	}
	b, err := h.booking.Cancel(c.Request.Context(), booking.CancelCommand{
		BookingID: id,
		ActorType: actor,
		ActorID:   callerID(c),
		Reason:    req.Reason,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}

func (h *BookingHandler) Estimate(c *gin.Context) {
	req := fare.EstimateRequest{
		Pickup:      c.Query("pickupLocation"),
		Drop:        c.Query("dropLocation"),
		VehicleType: c.Query("vehicleType"),
		BookingType: c.Query("bookingType"),
	}
	if req.Pickup == "" || req.Drop == "" {
		writeBadRequest(c, "pickupLocation and dropLocation are required")
		return
	}
	est, err := h.fare.Estimate(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, est)
}
