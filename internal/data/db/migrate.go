package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/secondbrain-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(types.Models()...); err != nil {
		return err
	}
	return EnsureDocumentIndexes(db)
}

// EnsureDocumentIndexes adds the composite indexes gorm tags cannot express.
// The statements are valid on both Postgres and SQLite.
func EnsureDocumentIndexes(db *gorm.DB) error {
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_document_user_created ON document(user_id, created_at);`).Error; err != nil {
		return fmt.Errorf("create idx_document_user_created: %w", err)
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_saga_run_status_updated ON saga_run(status, updated_at);`).Error; err != nil {
		return fmt.Errorf("create idx_saga_run_status_updated: %w", err)
	}
	return nil
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...", "driver", s.driver)
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	return nil
}
