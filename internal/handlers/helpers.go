package handlers

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/gofiber/fiber/v2"
)

func parseID(value string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(value))
}

func hasDigits(value string) bool {
	for _, r := range value {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func missingFieldsMessage(missing []string) string {
	return "faltan campos obligatorios: " + strings.Join(missing, ", ")
}

func getRequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestID").(string); ok {
		return id
	}
	return ""
}
