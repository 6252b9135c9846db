package db

import (
	"fmt"

	"gorm.io/gorm"

	"field-service/internal/model"
)

var migrationStatements = []string{
	`CREATE INDEX IF NOT EXISTS idx_documents_updated_at ON documents (updated_at);`,
}

func runMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.Document{}); err != nil {
		return fmt.Errorf("automigrate documents: %w", err)
	}
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
