package database

import (
	"testing"

	"gorm.io/gorm"
)

func closeDatabase(testContext *testing.T, database *gorm.DB) {
	testContext.Helper()
	sqlDB, err := database.DB()
	if err != nil {
		testContext.Fatalf("failed to access sql handle: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		testContext.Fatalf("failed to close database: %v", err)
	}
}
