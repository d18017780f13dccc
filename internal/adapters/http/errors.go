package http

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/shiporbit/shiporbit/internal/core/domain"
)

// errorHandler turns errors returned by handlers into JSON responses.
func errorHandler(c *fiber.Ctx, err error) error {
	if v, ok := domain.AsValidation(err); ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": v.Fields})
	}
	if errors.Is(err, domain.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"detail": "Not found."})
	}

	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		detail := ferr.Message
		switch ferr.Code {
		case fiber.StatusNotFound:
			if ferr == fiber.ErrNotFound {
				detail = "Not found."
			}
		case fiber.StatusMethodNotAllowed:
			detail = "Method \"" + c.Method() + "\" not allowed."
		}
		return c.Status(ferr.Code).JSON(fiber.Map{"detail": detail})
	}

	log.WithFields(log.Fields{"method": c.Method(), "path": c.Path(), "error": err}).Error("request failed")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": "A server error occurred."})
}

// bind decodes the JSON body into dst. An empty body leaves dst untouched.
func bind(c *fiber.Ctx, dst any) error {
	body := c.Body()
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "JSON parse error - "+err.Error())
	}
	return nil
}
