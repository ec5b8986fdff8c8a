package middleware

import (
	"errors"

	"dm-service/utils"

	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// LocalsUser is the Locals key the verified token is stored under.
const LocalsUser = "user"

func JWT(key string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{
			JWTAlg: utils.SigningMethod,
			Key:    []byte(key),
		},
		ContextKey: LocalsUser,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
				return c.Status(fiber.StatusBadRequest).
					JSON(fiber.Map{
						"status":  "error",
						"message": "Missing or malformed JWT",
						"data":    nil,
					})
			}
			return c.Status(fiber.StatusUnauthorized).
				JSON(fiber.Map{
					"status":  "error",
					"message": "Invalid or expired JWT",
					"data":    nil,
				})
		},
	})
}

// UserID returns the user the request was authenticated as.
func UserID(c *fiber.Ctx) (uint, error) {
	token, ok := c.Locals(LocalsUser).(*jwt.Token)
	if !ok {
		return 0, utils.ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, utils.ErrInvalidToken
	}
	return utils.ClaimsUser(claims)
}
