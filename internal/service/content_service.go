package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lexcabinet/cabinet-backend/internal/common"
	"github.com/lexcabinet/cabinet-backend/internal/domain"
	"github.com/lexcabinet/cabinet-backend/internal/repository"
	"github.com/lexcabinet/cabinet-backend/pkg/cache"
	pkglogger "github.com/lexcabinet/cabinet-backend/pkg/logger"
	"gorm.io/datatypes"
)

const (
	defaultStoreTimeout = 5 * time.Second
	systemActor         = "system"
	maxWriteAttempts    = 3
)

// ContentOptions service tuning
type ContentOptions struct {
	DefaultLocale string
	StoreTimeout  time.Duration
}

// ContentService versioned content entries, their publication lifecycle and
// the cached public read path
type ContentService struct {
	repo          repository.ContentRepository
	members       repository.MemberRepository
	cache         cache.Store
	defaultLocale string
	timeout       time.Duration
}

// NewContentService creates a new ContentService. members may be nil, in which
// case history entries carry raw actor ids only.
func NewContentService(repo repository.ContentRepository, members repository.MemberRepository, store cache.Store, opts ContentOptions) *ContentService {
	locale, err := normalizeLocale(opts.DefaultLocale, "fr-FR")
	if err != nil {
		locale = "fr-FR"
	}
	timeout := opts.StoreTimeout
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	return &ContentService{
		repo:          repo,
		members:       members,
		cache:         store,
		defaultLocale: locale,
		timeout:       timeout,
	}
}

// CanonicalLocale returns the locale a lookup for raw would use; unparseable input is returned as given
func (s *ContentService) CanonicalLocale(raw string) string {
	locale, err := normalizeLocale(raw, s.defaultLocale)
	if err != nil {
		return raw
	}
	return locale
}

func (s *ContentService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Lookup serves the public read path: cache first, then the current published
// record. cached reports whether the value came from the cache.
func (s *ContentService) Lookup(ctx context.Context, key, locale string) (resp *domain.ContentValueResponse, cached bool, err error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false, common.ErrKeyNotFound
	}
	locale, err = normalizeLocale(locale, s.defaultLocale)
	if err != nil {
		return nil, false, common.ErrKeyNotFound
	}

	value, gen, ok := s.cache.Get(locale, key)
	if ok {
		return &domain.ContentValueResponse{Key: key, Locale: locale, Value: value}, true, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	entry, err := s.repo.FindPublished(ctx, key, locale)
	if err != nil {
		return nil, false, err
	}
	if entry == nil {
		return nil, false, common.ErrKeyNotFound
	}

	s.cache.PutIfFresh(locale, key, entry.Value, gen)
	return &domain.ContentValueResponse{Key: key, Locale: locale, Value: entry.Value}, false, nil
}

// LookupMany resolves several keys of one locale; keys with no public value are omitted
func (s *ContentService) LookupMany(ctx context.Context, keys []string, locale string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		resp, _, err := s.Lookup(ctx, key, locale)
		if errors.Is(err, common.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[resp.Key] = resp.Value
	}
	return out, nil
}

// CreateEntry inserts the next version of a (key, locale) family as an active draft
func (s *ContentService) CreateEntry(ctx context.Context, req *domain.CreateContentRequest, actor string) (*domain.ContentEntry, error) {
	key := strings.TrimSpace(req.Key)
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Value) == "" {
		return nil, common.NewValidationError("value", "is required")
	}
	locale, err := normalizeLocale(req.Locale, s.defaultLocale)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var entry *domain.ContentEntry
	err = s.retryCollisions(ctx, func() error {
		return s.repo.Transaction(ctx, func(tx repository.ContentRepository) error {
			latest, err := tx.LockFamily(ctx, key, locale)
			if err != nil {
				return err
			}
			candidate := &domain.ContentEntry{
				Key:           key,
				Locale:        locale,
				Version:       latest + 1,
				Value:         req.Value,
				Description:   req.Description,
				Page:          req.Page,
				Section:       req.Section,
				IsActive:      true,
				Status:        domain.StatusDraft,
				ChangeType:    domain.ChangeCreated,
				UpdatedBy:     actorOrSystem(actor),
				ChangeHistory: datatypes.JSONSlice[domain.HistorySnapshot]{},
			}
			if err := tx.Insert(ctx, candidate); err != nil {
				return err
			}
			entry = candidate
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(locale, key)
	pkglogger.GetLogger().Info().
		Uint64("id", entry.ID).
		Str("key", key).
		Str("locale", locale).
		Uint("version", entry.Version).
		Str("actor", entry.UpdatedBy).
		Msg("content entry created")
	return entry, nil
}

// ApplyUpdate applies an explicit edit. Omitted optional fields keep their value.
func (s *ContentService) ApplyUpdate(ctx context.Context, id uint64, req *domain.UpdateContentRequest, actor string) (*domain.ContentEntry, error) {
	if strings.TrimSpace(req.Value) == "" {
		return nil, common.NewValidationError("value", "is required")
	}
	if req.Status != nil && !req.Status.Valid() {
		return nil, common.NewValidationError("status", "must be one of draft, published, archived")
	}
	return s.mutate(ctx, id, actor, func(entry *domain.ContentEntry) (domain.ChangeType, error) {
		return applyEdit(req, entry)
	})
}

// Publish moves a draft to published and makes it active
func (s *ContentService) Publish(ctx context.Context, id uint64, actor string) (*domain.ContentEntry, error) {
	return s.transition(ctx, id, actor, actionPublish)
}

// Unpublish moves published content back to draft
func (s *ContentService) Unpublish(ctx context.Context, id uint64, actor string) (*domain.ContentEntry, error) {
	return s.transition(ctx, id, actor, actionUnpublish)
}

// Archive retires draft or published content and deactivates it
func (s *ContentService) Archive(ctx context.Context, id uint64, actor string) (*domain.ContentEntry, error) {
	return s.transition(ctx, id, actor, actionArchive)
}

func (s *ContentService) transition(ctx context.Context, id uint64, actor string, action lifecycleAction) (*domain.ContentEntry, error) {
	entry, err := s.mutate(ctx, id, actor, func(entry *domain.ContentEntry) (domain.ChangeType, error) {
		return applyNamedTransition(action, entry)
	})
	if err != nil {
		return nil, err
	}
	if action == actionArchive {
		s.cache.InvalidateAllLocales(entry.Key)
	}
	return entry, nil
}

// mutate is the single write path for existing records: lock, snapshot the
// prior state into history, apply fn, bump the version, save. The cache is
// only touched once the transaction has committed.
func (s *ContentService) mutate(ctx context.Context, id uint64, actor string, fn func(entry *domain.ContentEntry) (domain.ChangeType, error)) (*domain.ContentEntry, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var updated *domain.ContentEntry
	err := s.retryCollisions(ctx, func() error {
		return s.repo.Transaction(ctx, func(tx repository.ContentRepository) error {
			entry, err := tx.FindByIDForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if entry == nil {
				return common.ErrNotFound
			}

			prior := entry.Snapshot()
			fromVersion := entry.Version

			change, err := fn(entry)
			if err != nil {
				return err
			}

			// An older family member being edited must not collide with a newer version.
			latest, err := tx.LockFamily(ctx, entry.Key, entry.Locale)
			if err != nil {
				return err
			}
			if latest < fromVersion {
				latest = fromVersion
			}

			entry.ChangeHistory = append(entry.ChangeHistory, prior)
			entry.Version = latest + 1
			entry.ChangeType = change
			entry.UpdatedBy = actorOrSystem(actor)

			if err := tx.Update(ctx, entry); err != nil {
				return err
			}
			updated = entry
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(updated.Locale, updated.Key)
	pkglogger.GetLogger().Info().
		Uint64("id", updated.ID).
		Str("key", updated.Key).
		Str("locale", updated.Locale).
		Uint("version", updated.Version).
		Str("status", string(updated.Status)).
		Str("change", string(updated.ChangeType)).
		Str("actor", updated.UpdatedBy).
		Msg("content entry updated")
	return updated, nil
}

// Get returns one record by id
func (s *ContentService) Get(ctx context.Context, id uint64) (*domain.ContentEntry, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, common.ErrNotFound
	}
	return entry, nil
}

// List filters records for the admin screen
func (s *ContentService) List(ctx context.Context, filter domain.ContentFilter) ([]*domain.ContentEntry, int64, error) {
	if filter.Locale != nil && *filter.Locale != "" {
		locale, err := normalizeLocale(*filter.Locale, s.defaultLocale)
		if err != nil {
			return nil, 0, err
		}
		filter.Locale = &locale
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.repo.List(ctx, filter)
}

// History returns the prior states of a record, oldest first, followed by its
// current state. Actor names are best effort.
func (s *ContentService) History(ctx context.Context, id uint64) (*domain.ContentHistoryResponse, error) {
	entry, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	items := make([]domain.HistoryItem, 0, len(entry.ChangeHistory)+1)
	for _, snap := range entry.ChangeHistory {
		items = append(items, domain.HistoryItem{HistorySnapshot: snap})
	}
	items = append(items, domain.HistoryItem{HistorySnapshot: entry.Snapshot(), Current: true})

	names := s.resolveActors(ctx, items)
	for i := range items {
		items[i].UpdatedByName = names[items[i].UpdatedBy]
	}

	return &domain.ContentHistoryResponse{
		ID:      entry.ID,
		Key:     entry.Key,
		Locale:  entry.Locale,
		Entries: items,
	}, nil
}

func (s *ContentService) resolveActors(ctx context.Context, items []domain.HistoryItem) map[string]string {
	if s.members == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it.UpdatedBy == "" || it.UpdatedBy == systemActor {
			continue
		}
		if _, ok := seen[it.UpdatedBy]; ok {
			continue
		}
		seen[it.UpdatedBy] = struct{}{}
		ids = append(ids, it.UpdatedBy)
	}
	if len(ids) == 0 {
		return nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	names, err := s.members.DisplayNames(ctx, ids)
	if err != nil {
		pkglogger.GetLogger().Warn().Err(err).Int("actors", len(ids)).Msg("history actor resolution failed")
		return nil
	}
	return names
}

// Export returns the current published value of every key in a locale
func (s *ContentService) Export(ctx context.Context, locale string) ([]domain.ContentExportItem, error) {
	locale, err := normalizeLocale(locale, s.defaultLocale)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	entries, err := s.repo.ListCurrentPublished(ctx, locale)
	if err != nil {
		return nil, err
	}
	items := make([]domain.ContentExportItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, domain.ContentExportItem{
			Key:         e.Key,
			Locale:      e.Locale,
			Value:       e.Value,
			Page:        e.Page,
			Section:     e.Section,
			Description: e.Description,
			Version:     e.Version,
		})
	}
	return items, nil
}

// Import creates a new draft version per item. Invalid items are skipped and
// reported; a storage failure aborts the remaining items.
func (s *ContentService) Import(ctx context.Context, items []domain.ContentExportItem, actor string) (*domain.ContentImportResult, error) {
	result := &domain.ContentImportResult{Imported: []string{}, Skipped: []string{}}
	for _, item := range items {
		req := &domain.CreateContentRequest{
			Key:         item.Key,
			Value:       item.Value,
			Locale:      item.Locale,
			Page:        item.Page,
			Section:     item.Section,
			Description: item.Description,
		}
		entry, err := s.CreateEntry(ctx, req, actor)
		if err != nil {
			var verr *common.ValidationError
			if errors.As(err, &verr) {
				result.Skipped = append(result.Skipped, fmt.Sprintf("%s: %s", item.Key, verr.Error()))
				continue
			}
			return result, err
		}
		result.Imported = append(result.Imported, cache.CompositeKey(entry.Locale, entry.Key))
	}
	return result, nil
}

// InvalidateCache drops cached public values. An empty locale drops every locale of key.
func (s *ContentService) InvalidateCache(key, locale string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return common.NewValidationError("key", "is required")
	}
	if strings.TrimSpace(locale) == "" {
		s.cache.InvalidateAllLocales(key)
		return nil
	}
	normalized, err := normalizeLocale(locale, s.defaultLocale)
	if err != nil {
		return err
	}
	s.cache.Invalidate(normalized, key)
	return nil
}

// retryCollisions reruns write when a concurrent writer took the same version.
// Collisions that outlast every attempt surface as ErrVersionConflict.
func (s *ContentService) retryCollisions(ctx context.Context, write func() error) error {
	var err error
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		err = write()
		if !errors.Is(err, common.ErrVersionCollision) {
			return err
		}
		if ctx.Err() != nil {
			break
		}
		pkglogger.GetLogger().Debug().Err(err).Int("attempt", attempt).Msg("content version collision")
	}
	return fmt.Errorf("%w: %v", common.ErrVersionConflict, err)
}

func actorOrSystem(actor string) string {
	if actor == "" {
		return systemActor
	}
	return actor
}
