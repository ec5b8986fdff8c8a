package controller

import (
	"errors"

	"dm-service/apperror"
	"dm-service/database"

	"github.com/gofiber/fiber/v2"
)

func (h *Controller) UserProfile(c *fiber.Ctx) error {
	me, _, err := identify(c, "")
	if err != nil {
		return failure(c, err)
	}

	user, err := h.users.Get(c.UserContext(), me)
	if errors.Is(err, database.ErrNotFound) {
		return failure(c, apperror.NotFound("User not found"))
	}
	if err != nil {
		return failure(c, apperror.Transient("User store unavailable", err))
	}

	return success(c, nil, fiber.Map{
		"id":         user.ID,
		"created":    user.CreatedAt.Unix(),
		"username":   user.Username,
		"email":      user.Email,
		"fullName":   user.FullName,
		"profilePic": user.ProfilePic,
		"bio":        user.Bio,
		"role":       user.Role,
	})
}
