package controller

import (
	"dm-service/follow"

	"github.com/gofiber/fiber/v2"
)

func (h *Controller) FollowRequest(c *fiber.Ctx) error {
	me, target, err := identify(c, "userId")
	if err != nil {
		return failure(c, err)
	}

	request, err := h.follows.RequestFollow(c.UserContext(), me, target)
	if err != nil {
		return failure(c, err)
	}
	return success(c, nil, request)
}

func (h *Controller) FollowIncoming(c *fiber.Ctx) error {
	return h.incoming(c, 0)
}

func (h *Controller) FollowIncomingPreview(c *fiber.Ctx) error {
	return h.incoming(c, follow.PreviewLimit)
}

func (h *Controller) incoming(c *fiber.Ctx, limit int) error {
	me, _, err := identify(c, "")
	if err != nil {
		return failure(c, err)
	}

	requests, err := h.follows.Incoming(c.UserContext(), me, limit)
	if err != nil {
		return failure(c, err)
	}
	return success(c, nil, requests)
}

func (h *Controller) FollowAccept(c *fiber.Ctx) error {
	me, request, err := identify(c, "requestId")
	if err != nil {
		return failure(c, err)
	}

	if err := h.follows.AcceptFollow(c.UserContext(), me, request); err != nil {
		return failure(c, err)
	}
	return success(c, nil, nil)
}

func (h *Controller) FollowReject(c *fiber.Ctx) error {
	me, request, err := identify(c, "requestId")
	if err != nil {
		return failure(c, err)
	}

	if err := h.follows.RejectFollow(c.UserContext(), me, request); err != nil {
		return failure(c, err)
	}
	return success(c, nil, nil)
}

func (h *Controller) FollowMutual(c *fiber.Ctx) error {
	me, other, err := identify(c, "userId")
	if err != nil {
		return failure(c, err)
	}

	mutual, err := h.follows.Mutual(c.UserContext(), me, other)
	if err != nil {
		return failure(c, err)
	}
	return success(c, nil, fiber.Map{"mutual": mutual})
}
