package database

import (
	"fmt"

	"dm-service/config"

	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"
)

// Redis holds one client per configured logical database. DB 0 carries
// the presence mirror, DB 1 the socket.io adapter.
var Redis = make(map[int]*redis.Client)

func RedisConnect(settings *config.Settings) {
	for _, dbNumber := range settings.RedisDB {
		options := &redis.Options{
			Addr: fmt.Sprintf(
				"%s:%s",
				settings.RedisHost,
				settings.RedisPort,
			),
			Password: settings.RedisPassword,
			DB:       dbNumber,

			ContextTimeoutEnabled: true,
		}

		Redis[dbNumber] = redis.NewClient(options)
	}

	glog.Infof("Connections opened to Redis")
}

func RedisClose() {
	for db, client := range Redis {
		if err := client.Close(); err != nil {
			glog.Warningf("failed to close redis db %d: %v", db, err)
		}
	}
}
