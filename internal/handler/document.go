package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/docuforge/api/internal/middleware"
	"github.com/docuforge/api/internal/model"
	"github.com/docuforge/api/internal/service"
	"github.com/docuforge/api/pkg/response"
)

type DocumentHandler struct {
	service   *service.DocumentService
	validator *validator.Validate
}

func NewDocumentHandler(svc *service.DocumentService, v *validator.Validate) *DocumentHandler {
	return &DocumentHandler{
		service:   svc,
		validator: v,
	}
}

// Generate handles POST /api/documents/generate
func (h *DocumentHandler) Generate(c *fiber.Ctx) error {
	var req model.DocumentGenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Submit(c.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		if errors.Is(err, service.ErrQuotaExceeded) {
			// Polling hint; active jobs finish on their own schedule
			c.Set("Retry-After", "30")
			return response.QuotaExceeded(c, "Too many active jobs, wait for one to finish")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/documents/status/:jobId
func (h *DocumentHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetStatus(c.Context(), middleware.GetUserID(c), jobID)
	if err != nil {
		return h.mapJobError(c, err)
	}

	return response.OK(c, result)
}

// Result handles GET /api/documents/result/:jobId
func (h *DocumentHandler) Result(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetResult(c.Context(), middleware.GetUserID(c), jobID)
	if err != nil {
		if errors.Is(err, service.ErrNotCompleted) {
			return response.ValidationError(c, "Job not completed yet", nil)
		}
		return h.mapJobError(c, err)
	}

	return response.OK(c, result)
}

// Cancel handles POST /api/documents/cancel/:jobId
func (h *DocumentHandler) Cancel(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.Cancel(c.Context(), middleware.GetUserID(c), jobID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidTransition) {
			return response.InvalidTransition(c, "Job already finished")
		}
		return h.mapJobError(c, err)
	}

	return response.OK(c, result)
}

// List handles GET /api/documents/jobs
func (h *DocumentHandler) List(c *fiber.Ctx) error {
	jobs, err := h.service.ListJobs(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, fiber.Map{"jobs": jobs})
}

func (h *DocumentHandler) mapJobError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return response.NotFound(c, "Job not found")
	case errors.Is(err, service.ErrForbidden):
		return response.Forbidden(c, "Job belongs to another user")
	default:
		return response.ServiceError(c, err.Error())
	}
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
