package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/autoescuela/backend/internal/database"
	"github.com/autoescuela/backend/internal/models"
	"github.com/autoescuela/backend/pkg/logger"
	"github.com/autoescuela/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type UsersHandler struct {
	DB      *gorm.DB
	Columns database.UserColumns
}

func NewUsersHandler(db *gorm.DB, columns database.UserColumns) *UsersHandler {
	return &UsersHandler{DB: db, Columns: columns}
}

func (h *UsersHandler) List(c *fiber.Ctx) error {
	var usuarios []models.Usuario
	if err := h.DB.Order("id_usuario ASC").Find(&usuarios).Error; err != nil {
		return utils.ErrorWithDetail(c, fiber.StatusInternalServerError, "no se pudieron listar los usuarios", err)
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"usuarios": usuarios})
}

type userRequest struct {
	NombreCompleto string `json:"nombre_completo"`
	Nombre         string `json:"nombre"`
	Correo         string `json:"correo"`
	Contrasena     string `json:"contrasena"`
}

func (r *userRequest) displayName() string {
	if r.NombreCompleto != "" {
		return r.NombreCompleto
	}
	return r.Nombre
}

func (h *UsersHandler) Create(c *fiber.Ctx) error {
	var req userRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "cuerpo de la peticion invalido")
	}

	nombre := strings.TrimSpace(req.displayName())
	correo := strings.ToLower(strings.TrimSpace(req.Correo))
	contrasena := strings.TrimSpace(req.Contrasena)

	var missing []string
	if nombre == "" {
		missing = append(missing, "nombre_completo")
	}
	if correo == "" {
		missing = append(missing, "correo")
	}
	if contrasena == "" {
		missing = append(missing, "contrasena")
	}
	if len(missing) > 0 {
		return utils.Error(c, fiber.StatusBadRequest, missingFieldsMessage(missing))
	}

	if hasDigits(nombre) {
		return utils.Error(c, fiber.StatusBadRequest, "el nombre no puede contener numeros")
	}

	var existing models.Usuario
	if err := h.DB.First(&existing, "correo = ?", correo).Error; err == nil {
		return utils.Error(c, fiber.StatusConflict, "ya existe un usuario con ese correo")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorWithDetail(c, fiber.StatusInternalServerError, "no se pudo comprobar el correo", err)
	}

	hash, err := utils.HashPassword(contrasena)
	if err != nil {
		return utils.ErrorWithDetail(c, fiber.StatusInternalServerError, "no se pudo procesar la contrasena", err)
	}

	usuario := models.Usuario{
		Nombre:     nombre,
		Correo:     correo,
		Contrasena: hash,
	}

	if err := h.DB.Create(&usuario).Error; err != nil {
		return utils.ErrorWithDetail(c, fiber.StatusInternalServerError, "no se pudo crear el usuario", err)
	}

	logger.Info("user_created", map[string]interface{}{
		"user_id":    usuario.ID,
		"correo":     usuario.Correo,
		"request_id": getRequestID(c),
	})

	return utils.Success(c, fiber.StatusCreated, fiber.Map{"usuario": usuario})
}

type userUpdateRequest struct {
	NombreCompleto *string `json:"nombre_completo"`
	Nombre         *string `json:"nombre"`
	Correo         *string `json:"correo"`
	Contrasena     *string `json:"contrasena"`
}

func (h *UsersHandler) Update(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "identificador de usuario invalido")
	}

	var req userUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "cuerpo de la peticion invalido")
	}

	var usuario models.Usuario
	if err := h.DB.First(&usuario, "id_usuario = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "usuario no encontrado")
		}
		return utils.ErrorWithDetail(c, fiber.StatusInternalServerError, "no se pudo leer el usuario", err)
	}

	updates := map[string]interface{}{}

	nombre := req.NombreCompleto
	if nombre == nil {
		nombre = req.Nombre
	}
	if nombre != nil {
		value := strings.TrimSpace(*nombre)
		if value == "" {
			return utils.Error(c, fiber.StatusBadRequest, "nombre_completo no puede estar vacio")
		}
		if hasDigits(value) {
			return utils.Error(c, fiber.StatusBadRequest, "el nombre no puede contener numeros")
		}
		updates["nombre"] = value
	}

	if req.Correo != nil {
		value := strings.ToLower(strings.TrimSpace(*req.Correo))
		if value == "" {
			return utils.Error(c, fiber.StatusBadRequest, "correo no puede estar vacio")
		}
		var existing models.Usuario
		if err := h.DB.First(&existing, "correo = ? AND id_usuario <> ?", value, id).Error; err == nil {
			return utils.Error(c, fiber.StatusConflict, "ya existe un usuario con ese correo")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorWithDetail(c, fiber.StatusInternalServerError, "no se pudo comprobar el correo", err)
		}
		updates["correo"] = value
	}

	// Omitted or blank password keeps the stored value.
	if req.Contrasena != nil {
		value := strings.TrimSpace(*req.Contrasena)
		if value != "" {
			hash, err := utils.HashPassword(value)
			if err != nil {
				return utils.ErrorWithDetail(c, fiber.StatusInternalServerError, "no se pudo procesar la contrasena", err)
			}
			updates["contrasena"] = hash
		}
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no hay campos para actualizar")
	}

	if err := h.DB.Model(&models.Usuario{}).Where("id_usuario = ?", id).Updates(updates).Error; err != nil {
		return utils.ErrorWithDetail(c, fiber.StatusInternalServerError, "no se pudo actualizar el usuario", err)
	}

	if err := h.DB.First(&usuario, "id_usuario = ?", id).Error; err != nil {
		return utils.ErrorWithDetail(c, fiber.StatusInternalServerError, "no se pudo leer el usuario actualizado", err)
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"usuario": usuario})
}

var errUserNotFound = errors.New("usuario no encontrado")

// Delete removes the user and renumbers every identifier above it so the ids
// stay contiguous from 1, then re-aligns the backing sequence. All three
// statements run in one transaction so concurrent deletes serialize on the
// affected rows.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "identificador de usuario invalido")
	}

	idColumn := h.Columns.ID
	if idColumn == "" {
		idColumn = database.DefaultUserColumns().ID
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		result := tx.Exec(fmt.Sprintf("DELETE FROM usuarios WHERE %s = ?", idColumn), id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errUserNotFound
		}

		// Rows above the gap shift down one by one into it.
		if err := tx.Exec(fmt.Sprintf(
			"UPDATE usuarios SET %s = %s - 1 WHERE %s > ?", idColumn, idColumn, idColumn,
		), id).Error; err != nil {
			return err
		}

		return database.ResyncUserSequence(tx, idColumn)
	})
	if err != nil {
		if errors.Is(err, errUserNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "usuario no encontrado")
		}
		return utils.ErrorWithDetail(c, fiber.StatusInternalServerError, "no se pudo eliminar el usuario", err)
	}

	logger.Info("user_deleted", map[string]interface{}{
		"user_id":    id,
		"request_id": getRequestID(c),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"mensaje": "usuario eliminado"})
}
