package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ems-leave-api/internal/dto"
	"github.com/noah-isme/ems-leave-api/pkg/response"
)

type accrualRunner interface {
	RunOnce(ctx context.Context) (dto.AccrualRunResult, error)
}

// AccrualHandler exposes the administrative accrual sweep trigger.
type AccrualHandler struct {
	service accrualRunner
}

// NewAccrualHandler creates a new handler.
func NewAccrualHandler(svc accrualRunner) *AccrualHandler {
	return &AccrualHandler{service: svc}
}

// Run godoc
// @Summary Run the accrual sweep synchronously
// @Description Apply due reward credits and annual resets immediately
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/accrual/run [post]
func (h *AccrualHandler) Run(c *gin.Context) {
	result, err := h.service.RunOnce(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
