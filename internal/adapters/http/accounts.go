package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/shiporbit/shiporbit/internal/core/services"
)

type registerRequest struct {
	Email               string `json:"email"`
	FirstName           string `json:"first_name"`
	LastName            string `json:"last_name"`
	PhoneNumber         string `json:"phone_number"`
	Password            string `json:"password"`
	CompanyName         string `json:"company_name"`
	PrimaryShipsCountry string `json:"primary_ships_country"`
}

func (h *handlers) register(c *fiber.Ctx) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	profile, token, err := h.svc.Accounts.Register(c.Context(), services.RegisterInput{
		Email:               req.Email,
		FirstName:           req.FirstName,
		LastName:            req.LastName,
		PhoneNumber:         req.PhoneNumber,
		Password:            req.Password,
		CompanyName:         req.CompanyName,
		PrimaryShipsCountry: req.PrimaryShipsCountry,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully",
		"token":   token,
		"user":    newUserJSON(profile),
	})
}

func (h *handlers) login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	profile, token, err := h.svc.Accounts.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"token":   token,
		"user":    newUserJSON(profile),
		"message": "Login successful",
	})
}

func (h *handlers) passwordResetRequest(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.svc.Accounts.RequestPasswordReset(c.Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Password reset email sent successfully"})
}

func (h *handlers) passwordResetConfirm(c *fiber.Ctx) error {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.svc.Accounts.ConfirmPasswordReset(c.Context(), req.Token, req.Password); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Password reset successfully"})
}

func (h *handlers) verifyEmail(c *fiber.Ctx) error {
	var req struct {
		Token string `json:"token"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	already, err := h.svc.Accounts.VerifyEmail(c.Context(), req.Token)
	if err != nil {
		return err
	}
	if already {
		return c.JSON(fiber.Map{"message": "Email already verified"})
	}
	return c.JSON(fiber.Map{"message": "Email verified successfully"})
}

func (h *handlers) resendVerification(c *fiber.Ctx) error {
	already, err := h.svc.Accounts.ResendVerification(c.Context(), user(c))
	if errors.Is(err, services.ErrMailUnavailable) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Please Try again later"})
	}
	if err != nil {
		return err
	}
	if already {
		return c.JSON(fiber.Map{"message": "Email already verified"})
	}
	return c.JSON(fiber.Map{"message": "Verification email sent successfully"})
}

func (h *handlers) userProfile(c *fiber.Ctx) error {
	profile, err := h.svc.Accounts.Profile(c.Context(), user(c))
	if err != nil {
		return err
	}
	return c.JSON(newUserJSON(profile))
}
