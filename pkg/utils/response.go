package utils

import "github.com/gofiber/fiber/v2"

// Every API response carries "exito"; errors add "mensaje" and, when an
// underlying failure exists, its raw text under "detalle".

func Success(c *fiber.Ctx, status int, data fiber.Map) error {
	payload := fiber.Map{"exito": true}
	for key, value := range data {
		payload[key] = value
	}
	return c.Status(status).JSON(payload)
}

func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"exito":   false,
		"mensaje": message,
	})
}

func ErrorWithDetail(c *fiber.Ctx, status int, message string, err error) error {
	payload := fiber.Map{
		"exito":   false,
		"mensaje": message,
	}
	if err != nil {
		payload["detalle"] = err.Error()
	}
	return c.Status(status).JSON(payload)
}
