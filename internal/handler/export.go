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

type ExportHandler struct {
	service   *service.ExportService
	validator *validator.Validate
}

func NewExportHandler(svc *service.ExportService, v *validator.Validate) *ExportHandler {
	return &ExportHandler{
		service:   svc,
		validator: v,
	}
}

// Export handles POST /api/export/:format
func (h *ExportHandler) Export(c *fiber.Ctx) error {
	format := model.ExportFormat(c.Params("format"))
	switch format {
	case model.ExportFormatMarkdown, model.ExportFormatHTML, model.ExportFormatText:
	default:
		return response.ValidationError(c, "Unsupported export format", nil)
	}

	var req model.ExportRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Export(c.Context(), middleware.GetUserID(c), req.JobID, format)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			return response.NotFound(c, "Job not found")
		case errors.Is(err, service.ErrForbidden):
			return response.Forbidden(c, "Job belongs to another user")
		case errors.Is(err, service.ErrNotCompleted):
			return response.ValidationError(c, "Job not completed yet", nil)
		default:
			return response.ServiceError(c, err.Error())
		}
	}

	return response.OK(c, result)
}
