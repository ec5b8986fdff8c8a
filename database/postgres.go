package database

import (
	"errors"
	"fmt"

	"dm-service/config"
	"dm-service/model"

	"github.com/golang/glog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned by the stores when a user, message or follow
// request does not exist.
var ErrNotFound = errors.New("record not found")

var Postgres *gorm.DB

func PostgresConnect(settings *config.Settings) {
	var err error
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		settings.PostgresHost,
		settings.PostgresPort,
		settings.PostgresUser,
		settings.PostgresPassword,
		settings.PostgresDB,
	)
	Postgres, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		panic("failed to connect postgres")
	}

	glog.Infof("Connection opened to Postgres")
	if err := Migrate(Postgres); err != nil {
		panic(fmt.Sprintf("failed to migrate postgres: %v", err))
	}
	glog.Infof("Postgres Database Migrated")
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Follow{},
		&model.Message{},
	)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
