// Package db contains the GORM models and database bootstrap for Threadline.
package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens (creating if necessary) the sqlite database at path and runs
// migrations for all models.
func Open(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create database dir %s: %w", dir, err)
		}
	}

	database, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	if err := AutoMigrate(database); err != nil {
		return nil, err
	}

	return database, nil
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&Project{},
		&WorkItem{},
		&WorkItemRelation{},
		&Branch{},
		&Message{},
		&Artifact{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
