package router

import (
	"dm-service/controller"
	"dm-service/middleware"

	"github.com/casbin/casbin/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RestConfig struct {
	JWTKey   string
	Enforcer casbin.IEnforcer
	Gatherer prometheus.Gatherer
}

func Rest(app *fiber.App, h *controller.Controller, config RestConfig) {
	if config.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(config.Gatherer, promhttp.HandlerOpts{})))
	}

	api := app.Group("/v1", logger.New())

	// Messenger
	messenger := api.Group("/messenger", middleware.JWT(config.JWTKey))
	messenger.Get("/users", h.MessengerContacts)
	messenger.Post("/send/:id", h.MessengerSend)
	messenger.Put("/mark/:id", h.MessengerMarkSeen)
	messenger.Post("/translate/:messageId", h.MessengerTranslate)
	messenger.Delete("/:messageId", h.MessengerDelete)
	messenger.Get("/:id", h.MessengerConversation)

	// Follow
	follow := api.Group("/follow", middleware.JWT(config.JWTKey))
	follow.Post("/request/:userId", h.FollowRequest)
	follow.Get("/incoming", h.FollowIncoming)
	follow.Get("/incoming/preview", h.FollowIncomingPreview)
	follow.Post("/accept/:requestId", h.FollowAccept)
	follow.Post("/reject/:requestId", h.FollowReject)
	follow.Get("/mutual/:userId", h.FollowMutual)

	// User
	user := api.Group("/user", middleware.JWT(config.JWTKey))
	user.Get("/profile", h.UserProfile)

	// Admin
	if config.Enforcer != nil {
		admin := api.Group("/admin", middleware.JWT(config.JWTKey), middleware.RBAC(config.Enforcer))
		admin.Get("/online", h.AdminOnline)
	}
}
