package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/docuforge/api/internal/model"
	"github.com/docuforge/api/internal/service"
	"github.com/docuforge/api/pkg/response"
)

type OutlineHandler struct {
	service   *service.OutlineService
	validator *validator.Validate
}

func NewOutlineHandler(svc *service.OutlineService, v *validator.Validate) *OutlineHandler {
	return &OutlineHandler{
		service:   svc,
		validator: v,
	}
}

// Generate handles POST /api/outline/generate
func (h *OutlineHandler) Generate(c *fiber.Ctx) error {
	var req model.OutlineGenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Generate(c.Context(), &req)
	if err != nil {
		return response.AIError(c, err.Error())
	}

	return response.OK(c, result)
}
