// README: Catalog handlers for packages, monthly pricing, plans and admin subscription management.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"drivebook/internal/modules/catalog"
	"drivebook/internal/types"
)

type CatalogService interface {
	ListPackages(ctx context.Context, pt types.PackageType) ([]catalog.Package, error)
	ListMonthly(ctx context.Context) ([]catalog.MonthlyPricing, error)
	ListPlans(ctx context.Context, pool types.Pool) ([]catalog.Plan, error)
	Subscribe(ctx context.Context, cmd catalog.SubscribeCommand) (*catalog.Subscription, error)
	CancelSubscription(ctx context.Context, pool types.Pool, id types.ID) (*catalog.Subscription, error)
	RejectSubscription(ctx context.Context, pool types.Pool, id types.ID) (*catalog.Subscription, error)
}

type CatalogHandler struct {
	catalog CatalogService
}

func NewCatalogHandler(svc CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: svc}
}

func (h *CatalogHandler) Packages(c *gin.Context) {
	list, err := h.catalog.ListPackages(c.Request.Context(), types.PackageType(c.Query("packageType")))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"packages": list})
}

func (h *CatalogHandler) MonthlyPricing(c *gin.Context) {
	list, err := h.catalog.ListMonthly(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"pricing": list})
}

// Plans defaults to the driver pool.
func (h *CatalogHandler) Plans(c *gin.Context) {
	pool := types.Pool(c.DefaultQuery("pool", string(types.PoolDriver)))
	list, err := h.catalog.ListPlans(c.Request.Context(), pool)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"pool": pool, "plans": list})
}

type subscribeReq struct {
	Pool        string    `json:"pool"`
	CandidateID string    `json:"candidateId"`
	PlanID      string    `json:"planId"`
	Start       time.Time `json:"start"`
}

func (h *CatalogHandler) Subscribe(c *gin.Context) {
	var req subscribeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, "invalid json")
		return
	}
	sub, err := h.catalog.Subscribe(c.Request.Context(), catalog.SubscribeCommand{
		Pool:        types.Pool(req.Pool),
		CandidateID: types.ID(req.CandidateID),
		PlanID:      types.ID(req.PlanID),
		Start:       req.Start,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, sub)
}

func (h *CatalogHandler) CancelSubscription(c *gin.Context) {
	h.closeSubscription(c, h.catalog.CancelSubscription)
}

func (h *CatalogHandler) RejectSubscription(c *gin.Context) {
	h.closeSubscription(c, h.catalog.RejectSubscription)
}

func (h *CatalogHandler) closeSubscription(c *gin.Context, closeFn func(context.Context, types.Pool, types.ID) (*catalog.Subscription, error)) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	pool := types.Pool(c.DefaultQuery("pool", string(types.PoolDriver)))
	sub, err := closeFn(c.Request.Context(), pool, id)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, sub)
}
