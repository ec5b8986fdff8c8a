// Package dbtest opens throwaway SQLite databases migrated with the
// messenger schema, for store and service tests.
package dbtest

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"dm-service/database"
	"dm-service/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var memoryDBs atomic.Int64

// Open returns a private in-memory database, closed when the test ends.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:messenger%d?mode=memory&cache=shared", memoryDBs.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Users creates n users and returns their ids in creation order.
func Users(t testing.TB, db *gorm.DB, n int) []uint {
	t.Helper()

	users := database.NewUserStore(db)
	ids := []uint{}
	for i := 0; i < n; i += 1 {
		user := &model.User{
			Username: fmt.Sprintf("user%d", i),
			Email:    fmt.Sprintf("user%d@example.com", i),
			FullName: fmt.Sprintf("User %d", i),
		}
		if err := users.Create(context.Background(), user); err != nil {
			t.Fatalf("create user: %v", err)
		}
		ids = append(ids, user.ID)
	}
	return ids
}

// Follow records an accepted mutual follow between a and b.
func Follow(t testing.TB, db *gorm.DB, a, b uint) {
	t.Helper()
	if err := database.NewRelationStore(db).MakeMutual(context.Background(), a, b); err != nil {
		t.Fatalf("make mutual: %v", err)
	}
}
