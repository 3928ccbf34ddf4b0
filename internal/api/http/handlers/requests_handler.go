package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/facility-requests/internal/api/dto"
	"github.com/spec-kit/facility-requests/internal/auth"
	"github.com/spec-kit/facility-requests/internal/domain"
	"github.com/spec-kit/facility-requests/internal/service"
	apperrors "github.com/spec-kit/facility-requests/pkg/util"
)

// RequestsHandler manages facility request endpoints.
type RequestsHandler struct {
	service *service.RequestService
}

// NewRequestsHandler constructs handler.
func NewRequestsHandler(requestService *service.RequestService) *RequestsHandler {
	return &RequestsHandler{service: requestService}
}

// CreateRequest POST /requests.
func (h *RequestsHandler) CreateRequest(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateRequestRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	created, err := h.service.CreateRequest(c.UserContext(), caller, service.CreateRequestInput{
		Location:    req.Location,
		Description: req.Description,
		Severity:    req.Severity,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.RequestDetailFrom(created)})
}

// ListRequests GET /requests.
func (h *RequestsHandler) ListRequests(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	items, err := h.service.ListRequests(c.UserContext(), caller, listQuery(c))
	if err != nil {
		return err
	}
	out := make([]dto.RequestSummary, 0, len(items))
	for i := range items {
		out = append(out, dto.RequestSummaryFrom(&items[i]))
	}
	return c.JSON(fiber.Map{"data": out})
}

// Stats GET /requests/stats.
func (h *RequestsHandler) Stats(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	counts, err := h.service.Stats(c.UserContext(), caller, listQuery(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.StatsFrom(counts)})
}

// GetRequest GET /requests/:id.
func (h *RequestsHandler) GetRequest(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	req, err := h.service.GetRequest(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.RequestDetailFrom(req)})
}

// UpdateStatus PATCH /requests/:id.
func (h *RequestsHandler) UpdateStatus(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	updated, err := h.service.UpdateStatus(c.UserContext(), caller, c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.RequestDetailFrom(updated)})
}

// Respond POST /requests/:id/respond.
func (h *RequestsHandler) Respond(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	var req dto.RespondRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.service.RespondToRequest(c.UserContext(), caller, c.Params("id"), service.RespondInput{
		Message: req.Message,
		Status:  req.Status,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.RespondResponse{
		Response: dto.ResponseMessageFrom(result.Response),
		Request:  dto.RequestDetailFrom(result.Request),
	}})
}

func callerFrom(c *fiber.Ctx) (domain.CallerIdentity, error) {
	caller, ok := auth.IdentityFromContext(c)
	if !ok {
		return domain.CallerIdentity{}, apperrors.NewUnauthorized("authentication required")
	}
	return caller, nil
}

func listQuery(c *fiber.Ctx) service.ListRequestsInput {
	var input service.ListRequestsInput
	userID := c.Query("userId")
	if userID == "" {
		userID = c.Query("user_id")
	}
	if userID != "" {
		input.UserID = &userID
	}
	if status := c.Query("status"); status != "" {
		input.Status = &status
	}
	return input
}
