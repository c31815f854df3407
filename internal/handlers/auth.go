package handlers

import (
	"fmt"
	"strings"

	"github.com/autoescuela/backend/internal/database"
	"github.com/autoescuela/backend/internal/hosted"
	"github.com/autoescuela/backend/internal/middleware"
	"github.com/autoescuela/backend/pkg/logger"
	"github.com/autoescuela/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type AuthHandler struct {
	DB      *gorm.DB
	Hosted  *hosted.Client
	Columns database.UserColumns
}

func NewAuthHandler(db *gorm.DB, hostedClient *hosted.Client, columns database.UserColumns) *AuthHandler {
	return &AuthHandler{DB: db, Hosted: hostedClient, Columns: columns}
}

// The login form has gone through several revisions, so both field spellings
// are accepted.
type loginRequest struct {
	Correo     string `json:"correo"`
	Usuario    string `json:"usuario"`
	Contrasena string `json:"contrasena"`
	Password   string `json:"password"`
}

type credentialRow struct {
	ID      int
	Nombre  string
	Correo  string
	Secreto string
}

// Login checks the submitted credentials against the hosted backend first and
// falls back to direct SQL when the hosted side answers with a
// permission-shaped error (missing grants, row-level security).
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "cuerpo de la peticion invalido")
	}

	email := strings.ToLower(strings.TrimSpace(req.Correo))
	if email == "" {
		email = strings.ToLower(strings.TrimSpace(req.Usuario))
	}
	secret := req.Contrasena
	if secret == "" {
		secret = req.Password
	}

	if email == "" || strings.TrimSpace(secret) == "" {
		return utils.Error(c, fiber.StatusBadRequest, "correo y contrasena son obligatorios")
	}

	haveDB := h.DB != nil
	haveHosted := h.Hosted.Configured()
	if !haveDB && !haveHosted {
		return utils.Error(c, fiber.StatusServiceUnavailable, "ninguna fuente de datos configurada")
	}

	var row *credentialRow

	if haveHosted {
		record, err := h.Hosted.FetchUserByEmail(c.Context(), email)
		switch {
		case err == nil:
			if record != nil {
				row = &credentialRow{
					ID:      record.ID,
					Nombre:  record.Nombre,
					Correo:  record.Correo,
					Secreto: record.Secreto,
				}
			} else {
				row = nil
			}
		case hosted.IsPermissionDenied(err):
			if !haveDB {
				return utils.ErrorWithDetail(c, fiber.StatusInternalServerError, "acceso denegado por el backend alojado", err)
			}
			logger.Warn("hosted_permission_denied_fallback", map[string]interface{}{
				"error":      err.Error(),
				"request_id": getRequestID(c),
			})
			row, err = h.fetchCredentialRow(email)
			if err != nil {
				return utils.ErrorWithDetail(c, fiber.StatusInternalServerError, "no se pudo consultar el usuario", err)
			}
		default:
			return utils.ErrorWithDetail(c, fiber.StatusBadGateway, "el backend alojado no respondio", err)
		}
	} else {
		var err error
		row, err = h.fetchCredentialRow(email)
		if err != nil {
			return utils.ErrorWithDetail(c, fiber.StatusInternalServerError, "no se pudo consultar el usuario", err)
		}
	}

	// One message for both unknown email and wrong secret.
	if row == nil || !utils.CheckPassword(secret, row.Secreto) {
		logger.Warn("login_failed", map[string]interface{}{
			"correo":     email,
			"ip":         c.IP(),
			"request_id": getRequestID(c),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "credenciales invalidas")
	}

	token, err := utils.GenerateToken(row.ID, row.Correo)
	if err != nil {
		return utils.ErrorWithDetail(c, fiber.StatusInternalServerError, "no se pudo generar el token", err)
	}

	logger.Info("user_login", map[string]interface{}{
		"user_id":    row.ID,
		"correo":     row.Correo,
		"ip":         c.IP(),
		"request_id": getRequestID(c),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"usuario": fiber.Map{
			"id":              row.ID,
			"correo":          row.Correo,
			"nombre_completo": row.Nombre,
		},
		"token": token,
	})
}

// fetchCredentialRow queries through the resolved column mapping so the same
// SQL works against any of the historical usuarios schemas.
func (h *AuthHandler) fetchCredentialRow(email string) (*credentialRow, error) {
	cols := h.Columns
	if cols.ID == "" {
		cols = database.DefaultUserColumns()
	}

	query := fmt.Sprintf(
		"SELECT %s AS id, %s AS nombre, %s AS correo, %s AS secreto FROM usuarios WHERE LOWER(%s) = ? LIMIT 1",
		cols.ID, cols.Name, cols.Email, cols.Password, cols.Email,
	)

	var row credentialRow
	result := h.DB.Raw(query, email).Scan(&row)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &row, nil
}

// Me returns the authenticated user's projection.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "no autenticado")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"usuario": fiber.Map{
			"id":              user.ID,
			"correo":          user.Correo,
			"nombre_completo": user.Nombre,
		},
	})
}
