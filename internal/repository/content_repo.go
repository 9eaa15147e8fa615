package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/lexcabinet/cabinet-backend/internal/common"
	"github.com/lexcabinet/cabinet-backend/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500

	mysqlDuplicateEntry = 1062
	mysqlDeadlock       = 1213
)

// ContentRepository content entry data access.
// Lookups return (nil, nil) when nothing matches; every other failure is a *common.StorageError.
type ContentRepository interface {
	FindCurrent(ctx context.Context, key, locale string) (*domain.ContentEntry, error)
	FindPublished(ctx context.Context, key, locale string) (*domain.ContentEntry, error)
	FindByID(ctx context.Context, id uint64) (*domain.ContentEntry, error)
	FindByIDForUpdate(ctx context.Context, id uint64) (*domain.ContentEntry, error)
	LockFamily(ctx context.Context, key, locale string) (uint, error)
	List(ctx context.Context, filter domain.ContentFilter) ([]*domain.ContentEntry, int64, error)
	ListCurrentPublished(ctx context.Context, locale string) ([]*domain.ContentEntry, error)
	Insert(ctx context.Context, entry *domain.ContentEntry) error
	Update(ctx context.Context, entry *domain.ContentEntry) error
	Transaction(ctx context.Context, fn func(repo ContentRepository) error) error
}

type contentRepository struct {
	db *gorm.DB
}

// NewContentRepository creates a new ContentRepository
func NewContentRepository(db *gorm.DB) ContentRepository {
	return &contentRepository{db: db}
}

func (r *contentRepository) family(ctx context.Context, key, locale string) *gorm.DB {
	return r.db.WithContext(ctx).
		Where("content_key = ? AND locale = ?", key, locale)
}

// FindCurrent returns the highest version of a (key, locale) family
func (r *contentRepository) FindCurrent(ctx context.Context, key, locale string) (*domain.ContentEntry, error) {
	var entry domain.ContentEntry
	err := r.family(ctx, key, locale).
		Order("version DESC").
		Take(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, common.WrapStorage("find current", err)
	}
	return &entry, nil
}

// FindPublished returns the current record only when it is published and active.
// An older published version hidden behind a newer draft is not served.
func (r *contentRepository) FindPublished(ctx context.Context, key, locale string) (*domain.ContentEntry, error) {
	entry, err := r.FindCurrent(ctx, key, locale)
	if err != nil || entry == nil {
		return nil, err
	}
	if !entry.IsPublic() {
		return nil, nil
	}
	return entry, nil
}

func (r *contentRepository) FindByID(ctx context.Context, id uint64) (*domain.ContentEntry, error) {
	var entry domain.ContentEntry
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, common.WrapStorage("find by id", err)
	}
	return &entry, nil
}

// FindByIDForUpdate row-locks the record for the rest of the transaction.
// SQLite has no row locks; the dialect drops the clause.
func (r *contentRepository) FindByIDForUpdate(ctx context.Context, id uint64) (*domain.ContentEntry, error) {
	var entry domain.ContentEntry
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, common.WrapStorage("lock by id", err)
	}
	return &entry, nil
}

// LockFamily locks the newest row of a (key, locale) family until the
// transaction ends and returns its version, 0 for an empty family. Writers that
// allocate versions take this lock first. On MySQL an empty family is covered
// by the index gap lock; SQLite serializes writers anyway.
func (r *contentRepository) LockFamily(ctx context.Context, key, locale string) (uint, error) {
	var entry domain.ContentEntry
	err := r.family(ctx, key, locale).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "version").
		Order("version DESC").
		Take(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, wrapWrite("lock family", err)
	}
	return entry.Version, nil
}

// List filters entries for the admin screen, most recently updated first
func (r *contentRepository) List(ctx context.Context, filter domain.ContentFilter) ([]*domain.ContentEntry, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.ContentEntry{})

	// blank filters mean "any"
	if filter.Page != nil && *filter.Page != "" {
		query = query.Where("page = ?", *filter.Page)
	}
	if filter.Section != nil && *filter.Section != "" {
		query = query.Where("section = ?", *filter.Section)
	}
	if filter.Locale != nil && *filter.Locale != "" {
		query = query.Where("locale = ?", *filter.Locale)
	}
	if filter.Search != nil && *filter.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(*filter.Search)) + "%"
		query = query.Where(
			"(LOWER(content_key) LIKE ? ESCAPE '!' OR LOWER(value) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!')",
			pattern, pattern, pattern,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, common.WrapStorage("count", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	skip := filter.Skip
	if skip < 0 {
		skip = 0
	}

	var entries []*domain.ContentEntry
	err := query.
		Order("updated_at DESC").
		Order("id DESC").
		Offset(skip).
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, 0, common.WrapStorage("list", err)
	}
	return entries, total, nil
}

// ListCurrentPublished returns, per key, the current record of a locale when it is publicly visible
func (r *contentRepository) ListCurrentPublished(ctx context.Context, locale string) ([]*domain.ContentEntry, error) {
	latest := r.db.Table("content_entries AS latest").
		Select("MAX(latest.version)").
		Where("latest.content_key = content_entries.content_key AND latest.locale = content_entries.locale")

	var entries []*domain.ContentEntry
	err := r.db.WithContext(ctx).
		Where("locale = ?", locale).
		Where("version = (?)", latest).
		Where("status = ? AND is_active = ?", domain.StatusPublished, true).
		Order("content_key ASC").
		Find(&entries).Error
	if err != nil {
		return nil, common.WrapStorage("list published", err)
	}
	return entries, nil
}

func (r *contentRepository) Insert(ctx context.Context, entry *domain.ContentEntry) error {
	return wrapWrite("insert", r.db.WithContext(ctx).Create(entry).Error)
}

// Update writes the full record, current fields and history together
func (r *contentRepository) Update(ctx context.Context, entry *domain.ContentEntry) error {
	return wrapWrite("update", r.db.WithContext(ctx).Save(entry).Error)
}

// Transaction runs fn against a repository bound to one database transaction.
// Errors returned by fn come back unchanged; commit failures are storage errors.
func (r *contentRepository) Transaction(ctx context.Context, fn func(repo ContentRepository) error) error {
	var fnErr error
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fnErr = fn(&contentRepository{db: tx})
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	return wrapWrite("commit", err)
}

// wrapWrite wraps err as a StorageError, marking unique-key and deadlock
// failures as common.ErrVersionCollision
func wrapWrite(op string, err error) error {
	if err == nil {
		return nil
	}
	if isVersionCollision(err) {
		return &common.StorageError{Op: op, Err: fmt.Errorf("%w: %v", common.ErrVersionCollision, err)}
	}
	return common.WrapStorage(op, err)
}

func isVersionCollision(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry || myErr.Number == mysqlDeadlock
	}
	// sqlite3 reports constraint failures as plain text
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// escapeLike escapes LIKE metacharacters with '!'
func escapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}
