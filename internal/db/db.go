package db

import (
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/ringlabs/twitposter/internal/generator"
	"github.com/ringlabs/twitposter/internal/models"
	"github.com/ringlabs/twitposter/internal/settings"
)

// Connect opens the MySQL-backed gorm handle and runs schema migration.
func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db open: %v", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		log.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := gdb.AutoMigrate(
		&models.User{},
		&settings.UserSettings{},
		&generator.Turn{},
	); err != nil {
		log.Fatalf("automigrate: %v", err)
	}
	return gdb
}
