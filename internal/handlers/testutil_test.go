package handlers

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/autoescuela/backend/internal/config"
	"github.com/autoescuela/backend/internal/database"
	"github.com/autoescuela/backend/internal/hosted"
	"github.com/autoescuela/backend/internal/middleware"
	"github.com/autoescuela/backend/internal/models"
	"github.com/autoescuela/backend/pkg/logger"
	"github.com/autoescuela/backend/pkg/utils"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"
)

type testEnv struct {
	app *fiber.App
	db  *gorm.DB
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	return setupTestEnvWithHosted(t, config.HostedConfig{})
}

func setupTestEnvWithHosted(t *testing.T, hostedCfg config.HostedConfig) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		gosqlite.MustRegisterScalarFunction("NOW", 0, func(ctx *gosqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			return time.Now().UTC(), nil
		})
		logger.Init()
		utils.ConfigureJWT("test-secret", 24)
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := db.AutoMigrate(&models.Documento{}, &models.Usuario{}); err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	userColumns := database.DefaultUserColumns()
	hostedClient := hosted.New(hostedCfg)

	documentsHandler := NewDocumentsHandler(db, nil)
	usersHandler := NewUsersHandler(db, userColumns)
	authHandler := NewAuthHandler(db, hostedClient, userColumns)
	systemHandler := NewSystemHandler(db, hostedClient, hostedCfg)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 25 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS("*"))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	api := app.Group("/api")

	api.Get("/documentos", documentsHandler.List)
	api.Post("/documentos", documentsHandler.Create)
	api.Put("/documentos/:id", documentsHandler.Update)
	api.Delete("/documentos/:id", documentsHandler.Delete)

	api.Get("/usuarios", usersHandler.List)
	api.Post("/usuarios", usersHandler.Create)
	api.Put("/usuarios/:id", usersHandler.Update)
	api.Delete("/usuarios/:id", usersHandler.Delete)

	api.Post("/autenticacion", authHandler.Login)
	api.Get("/autenticacion/yo", authMiddleware.RequireAuth, authHandler.Me)

	api.Get("/estado-bd", systemHandler.EstadoBD)
	api.Get("/diag/supabase", systemHandler.DiagSupabase)
	api.Get("/configuracion-publica", systemHandler.ConfiguracionPublica)

	return &testEnv{app: app, db: db}
}

func createTestUser(t *testing.T, db *gorm.DB, nombre, correo, contrasena string) *models.Usuario {
	t.Helper()

	hash, err := utils.HashPassword(contrasena)
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	user := &models.Usuario{
		Nombre:     nombre,
		Correo:     correo,
		Contrasena: hash,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	return user
}

// createLegacyUser stores the secret verbatim, the way rows inherited from
// earlier deployments look.
func createLegacyUser(t *testing.T, db *gorm.DB, nombre, correo, contrasena string) *models.Usuario {
	t.Helper()

	user := &models.Usuario{
		Nombre:     nombre,
		Correo:     correo,
		Contrasena: contrasena,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating legacy test user: %v", err)
	}

	return user
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if exito, _ := body["exito"].(bool); exito {
		t.Fatalf("expected exito=false, got %+v", body)
	}
	if got, _ := body["mensaje"].(string); got != expected {
		t.Fatalf("expected mensaje %q, got %q", expected, got)
	}
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var count int64
	if err := db.Model(model).Count(&count).Error; err != nil {
		t.Fatalf("failed counting rows: %v", err)
	}
	return count
}
