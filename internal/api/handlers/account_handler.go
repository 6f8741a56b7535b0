package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/mediassist/backend/internal/account"
	"github.com/mediassist/backend/internal/apperrors"
	"github.com/mediassist/backend/internal/auth"
)

type AccountHandler struct {
	accounts *account.Service
	tokens   *auth.TokenIssuer
}

func NewAccountHandler(accounts *account.Service, tokens *auth.TokenIssuer) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		tokens:   tokens,
	}
}

func (h *AccountHandler) Register(c *fiber.Ctx) error {
	var req account.Registration
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, "parse registration", fmt.Errorf("invalid request body: %w", apperrors.ErrInvalidInput))
	}

	if _, err := h.accounts.Register(c.UserContext(), req); err != nil {
		return respondError(c, "register user", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully",
	})
}

func (h *AccountHandler) Login(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, "parse login", fmt.Errorf("invalid request body: %w", apperrors.ErrInvalidInput))
	}

	user, err := h.accounts.Authenticate(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return respondError(c, "log in", err)
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		return respondError(c, "issue token", err)
	}

	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Welcome %s!", user.FullName),
		"user": fiber.Map{
			"_id":      user.ID,
			"username": user.Username,
			"fullName": user.FullName,
			"age":      user.Age,
			"userType": user.UserType,
		},
		"token": token,
	})
}

// Delete removes the caller's own account. The token must belong to the
// account currently holding the username.
func (h *AccountHandler) Delete(c *fiber.Ctx) error {
	username := c.Params("username")
	claims := auth.FromContext(c)
	if claims == nil || claims.Username != username {
		return respondError(c, "delete user", fmt.Errorf("cannot delete another account: %w", apperrors.ErrForbidden))
	}

	if _, err := h.accounts.DeleteByUsername(c.UserContext(), claims.UserID, username); err != nil {
		return respondError(c, "delete user", err)
	}

	return c.JSON(fiber.Map{
		"message": "User deleted successfully",
	})
}
