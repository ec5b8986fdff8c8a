package router

import (
	"context"

	"dm-service/presence"
	"dm-service/socketio"
	"dm-service/wire"

	"github.com/golang/glog"
	"github.com/zishang520/socket.io/v2/socket"
)

// EventOnlineUsers is the socket request that re-sends the online set to
// the asking socket.
const EventOnlineUsers = "online_users"

// Attach registers a new live connection for user whose pushes are written
// with emit. The returned detach function unregisters it and stops the pump.
func Attach(registry *presence.Registry, user uint, buffer int, emit presence.Emit) (*presence.Connection, func(), error) {
	conn := presence.NewConnection(buffer)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := presence.Pump(ctx, conn, emit); err != nil && ctx.Err() == nil {
			registry.Unregister(conn)
		}
	}()

	if err := registry.Register(user, conn); err != nil {
		cancel()
		conn.Close()
		<-done
		return nil, nil, err
	}

	detach := func() {
		registry.Unregister(conn)
		cancel()
		<-done
	}
	return conn, detach, nil
}

func Socket(server *socket.Server, registry *presence.Registry, buffer int) {
	server.On("connection", func(clients ...interface{}) {
		client := clients[0].(*socket.Socket)

		user, ok := socketio.Identity(client)
		if !ok {
			client.Disconnect(true)
			return
		}

		conn, detach, err := Attach(registry, user, buffer, func(ev wire.Event) error {
			client.Emit(string(ev.Kind), ev.Payload)
			return nil
		})
		if err != nil {
			glog.Errorf("socket: register user %d: %v", user, err)
			client.Disconnect(true)
			return
		}
		client.Join(socketio.Room(user))
		glog.V(1).Infof("socket: user %d connected as %s", user, conn.ID())

		client.On(EventOnlineUsers, func(args ...interface{}) {
			client.Emit(string(wire.EventOnlineUsers), registry.OnlineUsers())
		})

		client.On("disconnect", func(args ...interface{}) {
			detach()
			glog.V(1).Infof("socket: user %d disconnected %s", user, conn.ID())
		})
	})
}
