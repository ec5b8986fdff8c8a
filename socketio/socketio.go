// Package socketio serves the socket.io push transport. Every socket must
// present an access token in the token query parameter; sockets without a
// valid one are disconnected as soon as they connect.
package socketio

import (
	"context"
	"strconv"
	"time"

	"dm-service/presence"
	"dm-service/utils"
	"dm-service/wire"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"
	"github.com/zishang520/engine.io/v2/log"
	"github.com/zishang520/socket.io-go-redis/adapter"
	r_type "github.com/zishang520/socket.io-go-redis/types"
	"github.com/zishang520/socket.io/v2/socket"
)

// Init mounts the socket.io endpoint on app. When client is set the server
// uses the Redis adapter so several nodes share rooms.
func Init(app *fiber.App, client *redis.Client, key string) *socket.Server {
	log.DEBUG = bool(glog.V(2))

	options := socket.DefaultServerOptions()
	options.SetServeClient(true)
	options.SetAllowEIO3(true)
	options.SetPingInterval(25 * time.Second)
	options.SetPingTimeout(20 * time.Second)
	options.SetMaxHttpBufferSize(1000000)
	options.SetConnectTimeout(5 * time.Second)
	if client != nil {
		options.SetAdapter(&adapter.RedisAdapterBuilder{
			Redis: r_type.NewRedisClient(context.Background(), client),
			Opts:  &adapter.RedisAdapterOptions{},
		})
	}

	server := socket.NewServer(nil, nil)

	server.Use(func(client *socket.Socket, next func(*socket.ExtendedError)) {
		if token, ok := client.Conn().Request().Query().Get("token"); ok {
			claims, err := utils.CheckAndExtractTokenMetadata(token, key)
			if err == nil {
				client.SetData(claims)
			} else {
				glog.V(1).Infof("socketio: rejected token: %v", err)
			}
		}

		next(nil)
	})

	app.Get("/socket.io/", adaptor.HTTPHandler(server.ServeHandler(options)))
	app.Post("/socket.io/", adaptor.HTTPHandler(server.ServeHandler(options)))

	return server
}

// Identity returns the user a socket authenticated as.
func Identity(client *socket.Socket) (uint, bool) {
	claims, ok := client.Data().(*utils.TokenMetadata)
	if !ok || claims == nil {
		return 0, false
	}
	return claims.Id, true
}

// Room is the room every socket of user joins.
func Room(user uint) socket.Room {
	return socket.Room(strconv.FormatUint(uint64(user), 10))
}

// Remote emits to user's room through the adapter, reaching sockets held
// by other nodes.
func Remote(server *socket.Server) presence.Remote {
	return func(user uint, ev wire.Event) {
		server.To(Room(user)).Emit(string(ev.Kind), ev.Payload)
	}
}
