package handlers

import (
	"time"

	"github.com/autoescuela/backend/internal/config"
	"github.com/autoescuela/backend/internal/hosted"
	"github.com/autoescuela/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type SystemHandler struct {
	DB     *gorm.DB
	Hosted *hosted.Client
	Public config.HostedConfig
}

func NewSystemHandler(db *gorm.DB, hostedClient *hosted.Client, publicCfg config.HostedConfig) *SystemHandler {
	return &SystemHandler{DB: db, Hosted: hostedClient, Public: publicCfg}
}

// EstadoBD runs one round trip through the pool.
func (h *SystemHandler) EstadoBD(c *fiber.Ctx) error {
	if h.DB == nil {
		return utils.Error(c, fiber.StatusServiceUnavailable, "base de datos no configurada")
	}

	var row struct {
		Ahora time.Time
	}
	if err := h.DB.Raw("SELECT NOW() AS ahora").Scan(&row).Error; err != nil {
		return utils.ErrorWithDetail(c, fiber.StatusInternalServerError, "no se pudo conectar a la base de datos", err)
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"bd":   "conectada",
		"hora": row.Ahora,
	})
}

// DiagSupabase probes the hosted backend with the configured key.
func (h *SystemHandler) DiagSupabase(c *fiber.Ctx) error {
	if !h.Hosted.Configured() {
		return utils.Error(c, fiber.StatusServiceUnavailable, "backend alojado no configurado")
	}

	if err := h.Hosted.Health(c.Context()); err != nil {
		if hosted.IsPermissionDenied(err) {
			return utils.ErrorWithDetail(c, fiber.StatusInternalServerError, "el backend alojado rechazo la clave", err)
		}
		return utils.ErrorWithDetail(c, fiber.StatusBadGateway, "el backend alojado no respondio", err)
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"estado": "accesible",
		"url":    h.Public.URL,
	})
}

// ConfiguracionPublica hands the browser what it needs to talk to the hosted
// backend directly. The service key never appears here.
func (h *SystemHandler) ConfiguracionPublica(c *fiber.Ctx) error {
	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"url":           h.Public.URL,
		"clave_publica": h.Public.AnonKey,
	})
}
