package handlers

import "github.com/gofiber/fiber/v2"

// Every response uses the same envelope: {success, data} on the happy path,
// {success, message} on errors, plus per-field detail for validation.

func okJSON(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(fiber.Map{"success": true, "data": data})
}

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "message": msg})
}

func failFields(c *fiber.Ctx, fields map[string]string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"message": "validation failed",
		"fields":  fields,
	})
}
