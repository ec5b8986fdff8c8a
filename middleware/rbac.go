package middleware

import (
	"strconv"

	"github.com/casbin/casbin/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang/glog"
)

// RBAC lets a request through when the enforcer allows its user the
// requested path and method. Policy is reloaded on every request.
func RBAC(enforcer casbin.IEnforcer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := UserID(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status":  "error",
				"message": "Invalid or expired JWT",
				"data":    nil,
			})
		}

		// Load policy from Database
		if err := enforcer.LoadPolicy(); err != nil {
			glog.Errorf("rbac: load policy: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"status":  "error",
				"message": "Internal server error",
				"data":    nil,
			})
		}

		accepted, err := enforcer.Enforce(strconv.FormatUint(uint64(user), 10), c.Path(), c.Method())
		if err != nil {
			glog.Errorf("rbac: enforce: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"status":  "error",
				"message": "Internal server error",
				"data":    nil,
			})
		}

		if !accepted {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"status":  "error",
				"message": "Unauthorized",
				"data":    nil,
			})
		}

		return c.Next()
	}
}
