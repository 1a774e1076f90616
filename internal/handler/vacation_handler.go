package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ems-leave-api/internal/dto"
	"github.com/noah-isme/ems-leave-api/internal/models"
	appErrors "github.com/noah-isme/ems-leave-api/pkg/errors"
	"github.com/noah-isme/ems-leave-api/pkg/response"
)

type vacationService interface {
	Submit(ctx context.Context, actor *models.User, req dto.SubmitVacationRequest) (*dto.VacationDetail, error)
	Get(ctx context.Context, actor *models.User, id string) (*dto.VacationDetail, error)
	List(ctx context.Context, actor *models.User, query dto.VacationQuery) ([]models.VacationRequest, models.Pagination, error)
	ChiefReview(ctx context.Context, actor *models.User, id string, req dto.ReviewVacationRequest) (*models.VacationRequest, error)
	PrincipalReview(ctx context.Context, actor *models.User, id string, req dto.ReviewVacationRequest) (*models.VacationRequest, error)
	Cancel(ctx context.Context, actor *models.User, id string) (*models.VacationRequest, error)
	EditDates(ctx context.Context, actor *models.User, id string, req dto.EditDatesRequest) (*models.VacationRequest, error)
	BalanceSummary(ctx context.Context, actor *models.User, employeeID string) (*dto.BalanceSummary, error)
	ExportCSV(ctx context.Context, actor *models.User, query dto.VacationQuery) ([]byte, error)
}

// VacationHandler wires HTTP endpoints to the vacation service.
type VacationHandler struct {
	service vacationService
}

// NewVacationHandler creates a new handler.
func NewVacationHandler(svc vacationService) *VacationHandler {
	return &VacationHandler{service: svc}
}

// Submit godoc
// @Summary Submit leave request
// @Description Create a leave request, reserving the working days
// @Tags Vacations
// @Accept json
// @Produce json
// @Param payload body dto.SubmitVacationRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /vacations [post]
func (h *VacationHandler) Submit(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.SubmitVacationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid request payload"))
		return
	}

	detail, err := h.service.Submit(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// List godoc
// @Summary List leave requests
// @Description List requests visible to the caller, filtered and paginated
// @Tags Vacations
// @Produce json
// @Param status query string false "Comma-separated statuses"
// @Param type query string false "Vacation type"
// @Param employee_id query string false "Employee filter (reviewers only)"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /vacations [get]
func (h *VacationHandler) List(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	requests, pagination, err := h.service.List(c.Request.Context(), actor, parseVacationQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, &pagination)
}

// Get godoc
// @Summary Get leave request
// @Tags Vacations
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /vacations/{id} [get]
func (h *VacationHandler) Get(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	request, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// ChiefReview godoc
// @Summary Record chief review decision
// @Tags Vacations
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.ReviewVacationRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /vacations/{id}/chief-review [post]
func (h *VacationHandler) ChiefReview(c *gin.Context) {
	h.review(c, h.service.ChiefReview)
}

// PrincipalReview godoc
// @Summary Record principal review decision
// @Tags Vacations
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.ReviewVacationRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /vacations/{id}/principal-review [post]
func (h *VacationHandler) PrincipalReview(c *gin.Context) {
	h.review(c, h.service.PrincipalReview)
}

func (h *VacationHandler) review(c *gin.Context, apply func(context.Context, *models.User, string, dto.ReviewVacationRequest) (*models.VacationRequest, error)) {
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ReviewVacationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}

	request, err := apply(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Cancel godoc
// @Summary Cancel own pending request
// @Tags Vacations
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /vacations/{id}/cancel [post]
func (h *VacationHandler) Cancel(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	request, err := h.service.Cancel(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// EditDates godoc
// @Summary Correct the dates of a pending request
// @Tags Vacations
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.EditDatesRequest true "New span"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /vacations/{id}/dates [put]
func (h *VacationHandler) EditDates(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.EditDatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid edit payload"))
		return
	}

	request, err := h.service.EditDates(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Balance godoc
// @Summary Get own balance summary
// @Tags Balance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /balance [get]
func (h *VacationHandler) Balance(c *gin.Context) {
	h.balance(c, "")
}

// BalanceByID godoc
// @Summary Get an employee's balance summary
// @Tags Balance
// @Produce json
// @Param id path string true "Employee ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /balance/{id} [get]
func (h *VacationHandler) BalanceByID(c *gin.Context) {
	h.balance(c, c.Param("id"))
}

func (h *VacationHandler) balance(c *gin.Context, employeeID string) {
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	summary, err := h.service.BalanceSummary(c.Request.Context(), actor, employeeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Report godoc
// @Summary Export visible requests as CSV
// @Tags Vacations
// @Produce text/csv
// @Param status query string false "Comma-separated statuses"
// @Param type query string false "Vacation type"
// @Param employee_id query string false "Employee filter (reviewers only)"
// @Success 200 {string} string "CSV document"
// @Router /reports/vacations [get]
func (h *VacationHandler) Report(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	data, err := h.service.ExportCSV(c.Request.Context(), actor, parseVacationQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="vacations.csv"`)
	c.Data(http.StatusOK, "text/csv", data)
}

func parseVacationQuery(c *gin.Context) dto.VacationQuery {
	query := dto.VacationQuery{
		Type:       models.VacationType(c.Query("type")),
		EmployeeID: c.Query("employee_id"),
		Page:       queryInt(c, "page", 1),
		PageSize:   queryInt(c, "page_size", 50),
	}
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				query.Status = append(query.Status, models.VacationStatus(part))
			}
		}
	}
	return query
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
