package middleware_test

import (
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"dm-service/database"
	"dm-service/database/dbtest"
	"dm-service/middleware"
	"dm-service/utils"

	"github.com/go-playground/assert/v2"
	"github.com/gofiber/fiber/v2"
)

const key = "test-key"

func token(t *testing.T, user uint) string {
	t.Helper()
	signed, err := utils.GenerateToken(user, key, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func call(t *testing.T, app *fiber.App, method, path, bearer string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	body := envelope{}
	json.NewDecoder(resp.Body).Decode(&body)
	return resp.StatusCode, body
}

func TestJWT(t *testing.T) {
	app := fiber.New()
	app.Get("/me", middleware.JWT(key), func(c *fiber.Ctx) error {
		user, err := middleware.UserID(c)
		if err != nil {
			return err
		}
		return c.SendString(strconv.FormatUint(uint64(user), 10))
	})

	status, body := call(t, app, "GET", "/me", "")
	assert.Equal(t, status, fiber.StatusBadRequest)
	assert.Equal(t, body.Message, "Missing or malformed JWT")

	status, _ = call(t, app, "GET", "/me", "not-a-token")
	assert.Equal(t, status, fiber.StatusUnauthorized)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, 12))
	resp, err := app.Test(req)
	assert.Equal(t, err, nil)
	assert.Equal(t, resp.StatusCode, fiber.StatusOK)
}

func TestRBAC(t *testing.T) {
	enforcer, err := database.Casbin(dbtest.Open(t), "../config/restful_rbac_model.conf")
	assert.Equal(t, err, nil)
	_, err = enforcer.AddGroupingPolicy("1", database.AdminRole)
	assert.Equal(t, err, nil)

	app := fiber.New()
	admin := app.Group("/v1/admin", middleware.JWT(key), middleware.RBAC(enforcer))
	admin.Get("/online", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	status, _ := call(t, app, "GET", "/v1/admin/online", token(t, 1))
	assert.Equal(t, status, fiber.StatusOK)

	status, body := call(t, app, "GET", "/v1/admin/online", token(t, 2))
	assert.Equal(t, status, fiber.StatusForbidden)
	assert.Equal(t, body.Status, "error")
}
