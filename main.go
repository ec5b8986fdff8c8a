package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dm-service/config"
	"dm-service/controller"
	"dm-service/database"
	"dm-service/delivery"
	"dm-service/event"
	"dm-service/event/listener"
	"dm-service/follow"
	"dm-service/gate"
	"dm-service/metrics"
	"dm-service/notify"
	"dm-service/presence"
	"dm-service/router"
	"dm-service/socketio"
	"dm-service/translator"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/golang/glog"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	flag.Parse()
	defer glog.Flush()

	settings, err := config.Load()
	if err != nil {
		glog.Fatalf("load config: %v", err)
	}

	rest := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StrictRouting:         true,
		AppName:               "dm-service",
	})

	rest.Use(cors.New())

	database.RedisConnect(settings)
	database.PostgresConnect(settings)

	enforcer, err := database.Casbin(database.Postgres, settings.CasbinModel)
	if err != nil {
		glog.Fatalf("casbin: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(reg); err != nil {
		glog.Fatalf("register metrics: %v", err)
	}

	node, err := os.Hostname()
	if err != nil {
		node = ulid.Make().String()
	}
	mirror := presence.NewRedisMirror(database.Redis[0], node, settings.StoreTimeout)

	registry := presence.NewRegistry()
	registry.Observe(metrics.ObserveOnline)
	registry.Observe(mirror.Observe)

	bus, err := event.Connect(settings, []string{
		// Connect to queues
		event.QueueMessenger,
		event.QueueAPI,
	})
	if err != nil {
		glog.Fatalf("event bus: %v", err)
	}

	users := database.NewUserStore(database.Postgres)
	relations := database.NewRelationStore(database.Postgres)
	accessGate := gate.New(relations, settings.StoreTimeout)
	notifier := notify.New(registry)

	messenger := delivery.New(delivery.Options{
		Gate:         accessGate,
		Messages:     database.NewMessageStore(database.Postgres),
		Users:        users,
		Edges:        relations,
		Presence:     registry,
		Publisher:    bus,
		Translator:   translator.NewMyMemory(settings.TranslatorURL, settings.TranslatorTimeout),
		StoreTimeout: settings.StoreTimeout,
	})
	follows := follow.New(relations, users, accessGate, notifier, bus, settings.StoreTimeout)

	// Run "api" listener and subscribe it to its queue
	api := listener.NewAPI(notifier)
	go api.Run()
	if err := bus.Subscribe([]event.Subscription{api.Subscription()}); err != nil {
		glog.Fatalf("subscribe: %v", err)
	}

	// Replay event logs
	if err := bus.Replay(); err != nil {
		glog.Errorf("event replay: %v", err)
	}

	socket := socketio.Init(rest, database.Redis[1], settings.JWTAccessKey)
	registry.Forward(socketio.Remote(socket))

	h := controller.New(messenger, follows, users, registry).
		WithCluster(func(ctx context.Context) ([]uint, error) {
			return presence.Online(ctx, database.Redis[0])
		})
	router.Rest(rest, h, router.RestConfig{
		JWTKey:   settings.JWTAccessKey,
		Enforcer: enforcer,
		Gatherer: reg,
	})
	router.Socket(socket, registry, settings.PushBuffer)

	go func() {
		if err := rest.Listen(fmt.Sprintf(":%s", settings.ServerPort)); err != nil {
			glog.Errorf("listen: %v", err)
		}
	}()
	glog.Infof("dm-service listening on :%s as node %s", settings.ServerPort, node)

	exit := make(chan struct{})
	signals := make(chan os.Signal, 1)

	signal.Notify(signals, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for s := range signals {
			switch s {
			case syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				close(exit)
				return
			}
		}
	}()

	<-exit
	glog.Infof("shutting down")

	socket.Close(nil)
	if err := rest.ShutdownWithTimeout(5 * time.Second); err != nil {
		glog.Warningf("shutdown: %v", err)
	}

	registry.Close()
	ctx, cancel := context.WithTimeout(context.Background(), settings.StoreTimeout)
	if err := mirror.Clear(ctx); err != nil {
		glog.Warningf("clear presence mirror: %v", err)
	}
	cancel()

	bus.Close()
	database.RedisClose()
}
