package controller

import (
	"slices"

	"github.com/gofiber/fiber/v2"
	"github.com/golang/glog"
)

// AdminOnline reports the users with at least one live connection on this
// node and, when a cluster reader is set, on every node.
func (h *Controller) AdminOnline(c *fiber.Ctx) error {
	data := fiber.Map{
		"users":       h.presence.OnlineUsers(),
		"connections": h.presence.Connections(),
	}

	if h.cluster != nil {
		cluster, err := h.cluster(c.UserContext())
		if err != nil {
			glog.Warningf("admin: read cluster presence: %v", err)
		} else {
			slices.Sort(cluster)
			data["cluster"] = cluster
		}
	}

	return success(c, nil, data)
}
