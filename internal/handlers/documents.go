package handlers

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/autoescuela/backend/internal/models"
	"github.com/autoescuela/backend/internal/storage"
	"github.com/autoescuela/backend/pkg/logger"
	"github.com/autoescuela/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DocumentsHandler struct {
	DB      *gorm.DB
	Storage *storage.MinIOClient
}

func NewDocumentsHandler(db *gorm.DB, storageClient *storage.MinIOClient) *DocumentsHandler {
	return &DocumentsHandler{DB: db, Storage: storageClient}
}

func (h *DocumentsHandler) List(c *fiber.Ctx) error {
	tipo := strings.TrimSpace(c.Query("tipo"))

	query := h.DB.Model(&models.Documento{})
	if tipo != "" {
		query = query.Where("tipo = ?", tipo)
	}

	var documentos []models.Documento
	if err := query.Order("titulo ASC").Find(&documentos).Error; err != nil {
		return utils.ErrorWithDetail(c, fiber.StatusInternalServerError, "no se pudieron listar los documentos", err)
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"documentos": documentos})
}

type documentRequest struct {
	Titulo      string `json:"titulo"`
	Descripcion string `json:"descripcion"`
	URL         string `json:"url"`
	Tipo        string `json:"tipo"`
}

func (h *DocumentsHandler) Create(c *fiber.Ctx) error {
	var req documentRequest

	// The upload form posts multipart with an "archivo" file; the admin API
	// posts plain JSON with an external URL.
	fileHeader, fileErr := c.FormFile("archivo")
	if fileErr == nil {
		req.Titulo = strings.TrimSpace(c.FormValue("titulo"))
		req.Descripcion = strings.TrimSpace(c.FormValue("descripcion"))
		req.Tipo = strings.TrimSpace(c.FormValue("tipo"))
	} else {
		if err := c.BodyParser(&req); err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "cuerpo de la peticion invalido")
		}
		req.Titulo = strings.TrimSpace(req.Titulo)
		req.Descripcion = strings.TrimSpace(req.Descripcion)
		req.URL = strings.TrimSpace(req.URL)
		req.Tipo = strings.TrimSpace(req.Tipo)
	}

	var missing []string
	if req.Titulo == "" {
		missing = append(missing, "titulo")
	}
	if req.URL == "" && fileErr != nil {
		missing = append(missing, "url")
	}
	if req.Tipo == "" {
		missing = append(missing, "tipo")
	}
	if len(missing) > 0 {
		return utils.Error(c, fiber.StatusBadRequest, missingFieldsMessage(missing))
	}

	if fileErr == nil {
		if h.Storage == nil {
			return utils.Error(c, fiber.StatusServiceUnavailable, "almacenamiento de archivos no configurado")
		}

		stream, err := fileHeader.Open()
		if err != nil {
			return utils.ErrorWithDetail(c, fiber.StatusInternalServerError, "no se pudo abrir el archivo subido", err)
		}
		defer stream.Close()

		filename := filepath.Base(strings.TrimSpace(fileHeader.Filename))
		if filename == "" {
			return utils.Error(c, fiber.StatusBadRequest, "nombre de archivo invalido")
		}

		contentType := fileHeader.Header.Get("Content-Type")
		if contentType == "" {
			contentType = mime.TypeByExtension(filepath.Ext(filename))
		}
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		objectName := fmt.Sprintf("documentos/%s/%s", uuid.New().String(), filename)
		if err := h.Storage.Upload(c.Context(), objectName, stream, fileHeader.Size, contentType); err != nil {
			return utils.ErrorWithDetail(c, fiber.StatusInternalServerError, "no se pudo subir el archivo", err)
		}
		req.URL = objectName
	}

	documento := models.Documento{
		Titulo:      req.Titulo,
		Descripcion: req.Descripcion,
		URL:         req.URL,
		Tipo:        req.Tipo,
	}

	if err := h.DB.Create(&documento).Error; err != nil {
		if fileErr == nil && h.Storage != nil {
			_ = h.Storage.Delete(c.Context(), documento.URL)
		}
		return utils.ErrorWithDetail(c, fiber.StatusInternalServerError, "no se pudo crear el documento", err)
	}

	logger.Info("document_created", map[string]interface{}{
		"document_id": documento.ID,
		"titulo":      documento.Titulo,
		"tipo":        documento.Tipo,
		"request_id":  getRequestID(c),
	})

	return utils.Success(c, fiber.StatusCreated, fiber.Map{"documento": documento})
}

type documentUpdateRequest struct {
	Titulo      *string `json:"titulo"`
	Descripcion *string `json:"descripcion"`
	URL         *string `json:"url"`
	Tipo        *string `json:"tipo"`
}

func (h *DocumentsHandler) Update(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "identificador de documento invalido")
	}

	var req documentUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "cuerpo de la peticion invalido")
	}

	updates := map[string]interface{}{}
	if req.Titulo != nil {
		value := strings.TrimSpace(*req.Titulo)
		if value == "" {
			return utils.Error(c, fiber.StatusBadRequest, "titulo no puede estar vacio")
		}
		updates["titulo"] = value
	}
	if req.Descripcion != nil {
		updates["descripcion"] = strings.TrimSpace(*req.Descripcion)
	}
	if req.URL != nil {
		value := strings.TrimSpace(*req.URL)
		if value == "" {
			return utils.Error(c, fiber.StatusBadRequest, "url no puede estar vacia")
		}
		updates["url"] = value
	}
	if req.Tipo != nil {
		value := strings.TrimSpace(*req.Tipo)
		if value == "" {
			return utils.Error(c, fiber.StatusBadRequest, "tipo no puede estar vacio")
		}
		updates["tipo"] = value
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no hay campos para actualizar")
	}

	result := h.DB.Model(&models.Documento{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return utils.ErrorWithDetail(c, fiber.StatusInternalServerError, "no se pudo actualizar el documento", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.Error(c, fiber.StatusNotFound, "documento no encontrado")
	}

	var documento models.Documento
	if err := h.DB.First(&documento, "id = ?", id).Error; err != nil {
		return utils.ErrorWithDetail(c, fiber.StatusInternalServerError, "no se pudo leer el documento actualizado", err)
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"documento": documento})
}

func (h *DocumentsHandler) Delete(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "identificador de documento invalido")
	}

	var documento models.Documento
	if err := h.DB.First(&documento, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "documento no encontrado")
		}
		return utils.ErrorWithDetail(c, fiber.StatusInternalServerError, "no se pudo leer el documento", err)
	}

	if err := h.DB.Delete(&models.Documento{}, "id = ?", id).Error; err != nil {
		return utils.ErrorWithDetail(c, fiber.StatusInternalServerError, "no se pudo eliminar el documento", err)
	}

	// Uploaded documents store a bare object path; external links carry a
	// scheme and are left alone.
	if h.Storage != nil && !strings.Contains(documento.URL, "://") {
		_ = h.Storage.Delete(c.Context(), documento.URL)
	}

	logger.Info("document_deleted", map[string]interface{}{
		"document_id": id,
		"request_id":  getRequestID(c),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"mensaje": "documento eliminado"})
}
