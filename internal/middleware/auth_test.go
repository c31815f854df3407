package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/autoescuela/backend/internal/models"
	"github.com/autoescuela/backend/pkg/logger"
	"github.com/autoescuela/backend/pkg/utils"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func setupAuthApp(t *testing.T) (*fiber.App, *models.Usuario) {
	t.Helper()

	utils.ConfigureJWT("test-secret", 1)

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

	if err := db.AutoMigrate(&models.Usuario{}); err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	user := &models.Usuario{Nombre: "Ana", Correo: "ana@test", Contrasena: "x"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	authMiddleware := NewAuthMiddleware(db)

	app := fiber.New()
	app.Get("/protegido", authMiddleware.RequireAuth, func(c *fiber.Ctx) error {
		response := fiber.Map{"id": GetCurrentUser(c).ID}
		if logUser := logger.GetUserIDFromContext(c); logUser != nil {
			response["usuario_log"] = *logUser
		}
		return c.JSON(response)
	})

	return app, user
}

func TestRequireAuthRejectsMissingOrBadToken(t *testing.T) {
	app, _ := setupAuthApp(t)

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not a bearer header", "Basic abc"},
		{"garbage token", "Bearer not-a-token"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protegido", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", resp.StatusCode)
			}
		})
	}
}

func TestRequireAuthExposesUserToRequestLogging(t *testing.T) {
	app, user := setupAuthApp(t)

	token, err := utils.GenerateToken(user.ID, user.Correo)
	if err != nil {
		t.Fatalf("failed generating token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/protegido", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	if int(body["id"].(float64)) != user.ID {
		t.Fatalf("expected current user id %d, got %+v", user.ID, body)
	}
	if body["usuario_log"] != strconv.Itoa(user.ID) {
		t.Fatalf("expected log attribution %q, got %+v", strconv.Itoa(user.ID), body)
	}
}
