package controller

import (
	"context"
	"strconv"

	"dm-service/apperror"
	"dm-service/middleware"
	"dm-service/model"
	"dm-service/wire"

	"github.com/gofiber/fiber/v2"
)

type Messenger interface {
	SendMessage(ctx context.Context, sender, receiver uint, in wire.SendInput) (*model.Message, error)
	Conversation(ctx context.Context, me, peer uint) ([]model.Message, error)
	DeleteMessage(ctx context.Context, me, id uint) (*model.Message, error)
	MarkSeen(ctx context.Context, me, id uint) error
	Contacts(ctx context.Context, me uint) (*wire.Contacts, error)
	Translate(ctx context.Context, me, id uint, target, source string) (*wire.Translation, error)
}

type Follows interface {
	RequestFollow(ctx context.Context, from, to uint) (*wire.FollowRequest, error)
	AcceptFollow(ctx context.Context, me, requestID uint) error
	RejectFollow(ctx context.Context, me, requestID uint) error
	Incoming(ctx context.Context, me uint, limit int) ([]wire.FollowRequest, error)
	Mutual(ctx context.Context, me, other uint) (bool, error)
}

type Users interface {
	Get(ctx context.Context, id uint) (*model.User, error)
}

type Presence interface {
	OnlineUsers() []uint
	Connections() int
}

type Controller struct {
	messenger Messenger
	follows   Follows
	users     Users
	presence  Presence
	cluster   func(ctx context.Context) ([]uint, error)
}

func New(messenger Messenger, follows Follows, users Users, presence Presence) *Controller {
	return &Controller{
		messenger: messenger,
		follows:   follows,
		users:     users,
		presence:  presence,
	}
}

// WithCluster sets the reader of the online users across every node.
func (h *Controller) WithCluster(cluster func(ctx context.Context) ([]uint, error)) *Controller {
	h.cluster = cluster
	return h
}

func success(c *fiber.Ctx, message any, data any) error {
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": message,
		"data":    data,
	})
}

func failure(c *fiber.Ctx, err error) error {
	return c.Status(apperror.Status(err)).JSON(fiber.Map{
		"status":  "error",
		"message": apperror.Message(err),
		"data":    nil,
	})
}

// identify resolves the authenticated user and the numeric route param name.
func identify(c *fiber.Ctx, name string) (uint, uint, error) {
	me, err := middleware.UserID(c)
	if err != nil {
		return 0, 0, apperror.Authorization("Invalid or expired JWT")
	}
	if name == "" {
		return me, 0, nil
	}
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, 0, apperror.Validation("Invalid " + name)
	}
	return me, uint(id), nil
}
