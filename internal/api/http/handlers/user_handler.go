package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/api/dto"
	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/service"
)

// UserHandler serves the authenticated user's own account.
type UserHandler struct {
	auth *service.AuthService
}

// NewUserHandler constructs handler.
func NewUserHandler(authService *service.AuthService) *UserHandler {
	return &UserHandler{auth: authService}
}

// Profile handles GET /api/user/profile.
func (h *UserHandler) Profile(c *fiber.Ctx, subject auth.Subject) error {
	user, err := h.auth.Profile(c.UserContext(), subject.SubjectID())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// ChangePassword handles POST /api/user/change-password.
func (h *UserHandler) ChangePassword(c *fiber.Ctx, subject auth.Subject) error {
	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return fiber.NewError(http.StatusBadRequest, "current_password and new_password required")
	}
	if err := h.auth.ChangePassword(c.UserContext(), subject.SubjectID(), req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"message": "password updated"}})
}
