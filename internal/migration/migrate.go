package migration

import (
	"context"
	"fmt"
	"os"

	"github.com/lexcabinet/cabinet-backend/internal/domain"
	"github.com/lexcabinet/cabinet-backend/pkg/logger"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// Importer bulk-creates draft entries; satisfied by service.ContentService
type Importer interface {
	Import(ctx context.Context, items []domain.ContentExportItem, actor string) (*domain.ContentImportResult, error)
}

// Run executes AutoMigrate for the content, member and audit tables.
func Run(db *gorm.DB) error {
	if err := db.AutoMigrate(&domain.ContentEntry{}, &domain.Member{}, &domain.AuditLog{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// LoadSeed reads a YAML list of content items
func LoadSeed(path string) ([]domain.ContentExportItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	var items []domain.ContentExportItem
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	return items, nil
}

// Seed imports the seed file as drafts, only when content_entries is empty.
// Returns the number of imported entries.
func Seed(ctx context.Context, db *gorm.DB, importer Importer, path string) (int, error) {
	if path == "" {
		return 0, nil
	}

	var count int64
	if err := db.WithContext(ctx).Model(&domain.ContentEntry{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count content entries: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	items, err := LoadSeed(path)
	if err != nil {
		return 0, err
	}
	result, err := importer.Import(ctx, items, "")
	if err != nil {
		return 0, err
	}
	for _, skipped := range result.Skipped {
		logger.GetLogger().Warn().Str("item", skipped).Msg("seed item skipped")
	}
	return len(result.Imported), nil
}
