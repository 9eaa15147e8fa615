package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lexcabinet/cabinet-backend/internal/common"
	"github.com/lexcabinet/cabinet-backend/internal/domain"
	"github.com/lexcabinet/cabinet-backend/internal/repository"
	"github.com/lexcabinet/cabinet-backend/pkg/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// --- Mock MemberRepository ---

type mockMemberRepo struct {
	mock.Mock
}

func (m *mockMemberRepo) DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	args := m.Called(ctx, userIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

// --- Mock ContentRepository (failure paths only) ---

type mockContentRepo struct {
	mock.Mock
}

func (m *mockContentRepo) FindCurrent(ctx context.Context, key, locale string) (*domain.ContentEntry, error) {
	args := m.Called(key, locale)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ContentEntry), args.Error(1)
}

func (m *mockContentRepo) FindPublished(ctx context.Context, key, locale string) (*domain.ContentEntry, error) {
	args := m.Called(key, locale)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ContentEntry), args.Error(1)
}

func (m *mockContentRepo) FindByID(ctx context.Context, id uint64) (*domain.ContentEntry, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ContentEntry), args.Error(1)
}

func (m *mockContentRepo) FindByIDForUpdate(ctx context.Context, id uint64) (*domain.ContentEntry, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ContentEntry), args.Error(1)
}

func (m *mockContentRepo) LockFamily(ctx context.Context, key, locale string) (uint, error) {
	args := m.Called(key, locale)
	return args.Get(0).(uint), args.Error(1)
}

func (m *mockContentRepo) List(ctx context.Context, filter domain.ContentFilter) ([]*domain.ContentEntry, int64, error) {
	args := m.Called(filter)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*domain.ContentEntry), args.Get(1).(int64), args.Error(2)
}

func (m *mockContentRepo) ListCurrentPublished(ctx context.Context, locale string) ([]*domain.ContentEntry, error) {
	args := m.Called(locale)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ContentEntry), args.Error(1)
}

func (m *mockContentRepo) Insert(ctx context.Context, entry *domain.ContentEntry) error {
	return m.Called(entry).Error(0)
}

func (m *mockContentRepo) Update(ctx context.Context, entry *domain.ContentEntry) error {
	return m.Called(entry).Error(0)
}

func (m *mockContentRepo) Transaction(ctx context.Context, fn func(repo repository.ContentRepository) error) error {
	args := m.Called()
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(m)
}

// --- Helpers ---

func setupContentDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection keeps every query on the same in-memory database
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&domain.ContentEntry{}, &domain.Member{}))
	return db
}

func newTestService(t *testing.T, members repository.MemberRepository) (*ContentService, *cache.ContentCache) {
	t.Helper()
	db := setupContentDB(t)
	store := cache.NewContentCache()
	svc := NewContentService(repository.NewContentRepository(db), members, store, ContentOptions{
		DefaultLocale: "fr-FR",
		StoreTimeout:  2 * time.Second,
	})
	return svc, store
}

func createDraft(t *testing.T, svc *ContentService, key, locale, value string) *domain.ContentEntry {
	t.Helper()
	entry, err := svc.CreateEntry(context.Background(), &domain.CreateContentRequest{
		Key: key, Locale: locale, Value: value,
	}, "editor-1")
	require.NoError(t, err)
	return entry
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
func uintPtr(u uint) *uint    { return &u }
func statusPtr(s domain.ContentStatus) *domain.ContentStatus {
	return &s
}

// --- Tests ---

func TestCreatePublishRead(t *testing.T) {
	svc, store := newTestService(t, nil)
	ctx := context.Background()

	entry := createDraft(t, svc, "home.title", "fr-FR", "Bienvenue")
	assert.Equal(t, uint(1), entry.Version)
	assert.Equal(t, domain.StatusDraft, entry.Status)
	assert.True(t, entry.IsActive)
	assert.Empty(t, entry.ChangeHistory)

	_, _, err := svc.Lookup(ctx, "home.title", "fr-FR")
	assert.ErrorIs(t, err, common.ErrKeyNotFound)
	assert.Equal(t, 0, store.Len(), "negative results are never cached")

	published, err := svc.Publish(ctx, entry.ID, "editor-1")
	require.NoError(t, err)
	assert.Equal(t, uint(2), published.Version)
	assert.Equal(t, domain.ChangePublished, published.ChangeType)
	require.Len(t, published.ChangeHistory, 1)
	assert.Equal(t, domain.ChangeCreated, published.ChangeHistory[0].ChangeType)

	resp, cached, err := svc.Lookup(ctx, "home.title", "fr-FR")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "Bienvenue", resp.Value)

	resp, cached, err = svc.Lookup(ctx, "home.title", "fr-FR")
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, "Bienvenue", resp.Value)
}

func TestLookup_DefaultAndCanonicalLocale(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	entry := createDraft(t, svc, "footer.legal", "fr-fr", "Mentions légales")
	assert.Equal(t, "fr-FR", entry.Locale)
	_, err := svc.Publish(ctx, entry.ID, "editor-1")
	require.NoError(t, err)

	resp, _, err := svc.Lookup(ctx, "footer.legal", "")
	require.NoError(t, err)
	assert.Equal(t, "fr-FR", resp.Locale)
	assert.Equal(t, "Mentions légales", resp.Value)

	_, _, err = svc.Lookup(ctx, "footer.legal", "en-GB")
	assert.ErrorIs(t, err, common.ErrKeyNotFound)

	_, _, err = svc.Lookup(ctx, "footer.legal", "not a locale!")
	assert.ErrorIs(t, err, common.ErrKeyNotFound)
}

func TestUpdateThenUnpublish(t *testing.T) {
	svc, store := newTestService(t, nil)
	ctx := context.Background()

	entry := createDraft(t, svc, "home.cta", "fr-FR", "Contactez-nous")
	_, err := svc.Publish(ctx, entry.ID, "editor-1")
	require.NoError(t, err)
	_, _, err = svc.Lookup(ctx, "home.cta", "fr-FR")
	require.NoError(t, err)
	require.Equal(t, 1, store.Len())

	updated, err := svc.ApplyUpdate(ctx, entry.ID, &domain.UpdateContentRequest{Value: "Écrivez-nous"}, "editor-2")
	require.NoError(t, err)
	assert.Equal(t, uint(3), updated.Version)
	assert.Equal(t, domain.ChangeUpdated, updated.ChangeType)
	assert.Equal(t, domain.StatusPublished, updated.Status)
	assert.Equal(t, "editor-2", updated.UpdatedBy)
	assert.Equal(t, 0, store.Len(), "update invalidates the cached value")

	resp, cached, err := svc.Lookup(ctx, "home.cta", "fr-FR")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "Écrivez-nous", resp.Value)

	unpublished, err := svc.Unpublish(ctx, entry.ID, "editor-2")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, unpublished.Status)
	assert.Equal(t, domain.ChangeStatusChanged, unpublished.ChangeType)
	assert.Equal(t, uint(4), unpublished.Version)

	_, _, err = svc.Lookup(ctx, "home.cta", "fr-FR")
	assert.ErrorIs(t, err, common.ErrKeyNotFound)

	history, err := svc.History(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, history.Entries, 4)
	assert.Equal(t, []domain.ChangeType{
		domain.ChangeCreated, domain.ChangePublished, domain.ChangeUpdated, domain.ChangeStatusChanged,
	}, []domain.ChangeType{
		history.Entries[0].ChangeType, history.Entries[1].ChangeType,
		history.Entries[2].ChangeType, history.Entries[3].ChangeType,
	})
	assert.Equal(t, "Contactez-nous", history.Entries[1].Value)
	assert.True(t, history.Entries[3].Current)
	assert.False(t, history.Entries[2].Current)
}

func TestArchiveThenRecreate(t *testing.T) {
	svc, store := newTestService(t, nil)
	ctx := context.Background()

	entry := createDraft(t, svc, "promo.banner", "fr-FR", "Soldes")
	_, err := svc.Publish(ctx, entry.ID, "editor-1")
	require.NoError(t, err)
	_, _, err = svc.Lookup(ctx, "promo.banner", "fr-FR")
	require.NoError(t, err)

	archived, err := svc.Archive(ctx, entry.ID, "editor-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusArchived, archived.Status)
	assert.False(t, archived.IsActive)
	assert.Equal(t, 0, store.Len())

	_, _, err = svc.Lookup(ctx, "promo.banner", "fr-FR")
	assert.ErrorIs(t, err, common.ErrKeyNotFound)

	recreated := createDraft(t, svc, "promo.banner", "fr-FR", "Nouvelles soldes")
	assert.NotEqual(t, entry.ID, recreated.ID)
	assert.Equal(t, archived.Version+1, recreated.Version)
	assert.Equal(t, domain.StatusDraft, recreated.Status)

	old, err := svc.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusArchived, old.Status)
}

func TestInvalidTransitions(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	entry := createDraft(t, svc, "nav.home", "fr-FR", "Accueil")

	_, err := svc.Unpublish(ctx, entry.ID, "editor-1")
	assert.ErrorIs(t, err, common.ErrInvalidTransition)

	_, err = svc.Publish(ctx, entry.ID, "editor-1")
	require.NoError(t, err)
	_, err = svc.Publish(ctx, entry.ID, "editor-1")
	assert.ErrorIs(t, err, common.ErrInvalidTransition)

	_, err = svc.Archive(ctx, entry.ID, "editor-1")
	require.NoError(t, err)
	_, err = svc.Archive(ctx, entry.ID, "editor-1")
	assert.ErrorIs(t, err, common.ErrInvalidTransition)
	_, err = svc.Publish(ctx, entry.ID, "editor-1")
	assert.ErrorIs(t, err, common.ErrInvalidTransition)

	current, err := svc.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, uint(3), current.Version, "rejected transitions leave no trace")
	assert.Len(t, current.ChangeHistory, 2)
}

func TestUpdate_ReactivatesArchived(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	entry := createDraft(t, svc, "nav.blog", "fr-FR", "Blog")
	_, err := svc.Archive(ctx, entry.ID, "editor-1")
	require.NoError(t, err)

	revived, err := svc.ApplyUpdate(ctx, entry.ID, &domain.UpdateContentRequest{
		Value:    "Blog",
		Status:   statusPtr(domain.StatusPublished),
		IsActive: boolPtr(true),
	}, "editor-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPublished, revived.Status)
	assert.True(t, revived.IsActive)
	assert.Equal(t, domain.ChangePublished, revived.ChangeType)

	resp, _, err := svc.Lookup(ctx, "nav.blog", "fr-FR")
	require.NoError(t, err)
	assert.Equal(t, "Blog", resp.Value)
}

func TestUpdate_PublishedStaysActive(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	entry := createDraft(t, svc, "nav.faq", "fr-FR", "FAQ")
	_, err := svc.Publish(ctx, entry.ID, "editor-1")
	require.NoError(t, err)

	updated, err := svc.ApplyUpdate(ctx, entry.ID, &domain.UpdateContentRequest{
		Value:    "FAQ",
		IsActive: boolPtr(false),
	}, "editor-1")
	require.NoError(t, err)
	assert.True(t, updated.IsActive)
	assert.Equal(t, domain.ChangeUpdated, updated.ChangeType)

	draft, err := svc.ApplyUpdate(ctx, entry.ID, &domain.UpdateContentRequest{
		Value:    "FAQ",
		Status:   statusPtr(domain.StatusDraft),
		IsActive: boolPtr(false),
	}, "editor-1")
	require.NoError(t, err)
	assert.False(t, draft.IsActive)
	assert.Equal(t, domain.ChangeStatusChanged, draft.ChangeType)
}

func TestUpdate_OptionalFieldsKeepValues(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	entry, err := svc.CreateEntry(ctx, &domain.CreateContentRequest{
		Key: "home.intro", Value: "Texte", Page: "home", Section: "hero", Description: "intro",
	}, "editor-1")
	require.NoError(t, err)

	updated, err := svc.ApplyUpdate(ctx, entry.ID, &domain.UpdateContentRequest{
		Value:   "Texte 2",
		Section: strPtr("body"),
	}, "editor-1")
	require.NoError(t, err)
	assert.Equal(t, "home", updated.Page)
	assert.Equal(t, "body", updated.Section)
	assert.Equal(t, "intro", updated.Description)
	assert.Equal(t, domain.StatusDraft, updated.Status)
}

func TestUpdate_ExpectedVersionConflict(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	entry := createDraft(t, svc, "home.subtitle", "fr-FR", "v1")

	_, err := svc.ApplyUpdate(ctx, entry.ID, &domain.UpdateContentRequest{
		Value: "v2", ExpectedVersion: uintPtr(1),
	}, "editor-1")
	require.NoError(t, err)

	_, err = svc.ApplyUpdate(ctx, entry.ID, &domain.UpdateContentRequest{
		Value: "v2 bis", ExpectedVersion: uintPtr(1),
	}, "editor-2")
	assert.ErrorIs(t, err, common.ErrVersionConflict)

	current, err := svc.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "v2", current.Value)
}

func TestUpdate_OlderFamilyMemberTakesNextVersion(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	first := createDraft(t, svc, "home.title", "fr-FR", "A")
	second := createDraft(t, svc, "home.title", "fr-FR", "B")
	assert.Equal(t, uint(2), second.Version)

	updated, err := svc.ApplyUpdate(ctx, first.ID, &domain.UpdateContentRequest{Value: "A2"}, "editor-1")
	require.NoError(t, err)
	assert.Equal(t, uint(3), updated.Version)

	_, err = svc.Publish(ctx, first.ID, "editor-1")
	require.NoError(t, err)
	resp, _, err := svc.Lookup(ctx, "home.title", "fr-FR")
	require.NoError(t, err)
	assert.Equal(t, "A2", resp.Value)
}

func TestCurrentDraftHidesOlderPublished(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	first := createDraft(t, svc, "home.title", "fr-FR", "Live")
	_, err := svc.Publish(ctx, first.ID, "editor-1")
	require.NoError(t, err)

	createDraft(t, svc, "home.title", "fr-FR", "Work in progress")

	_, _, err = svc.Lookup(ctx, "home.title", "fr-FR")
	assert.ErrorIs(t, err, common.ErrKeyNotFound)
}

func TestNotFoundAndValidation(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Publish(ctx, 999, "editor-1")
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = svc.ApplyUpdate(ctx, 999, &domain.UpdateContentRequest{Value: "x"}, "editor-1")
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = svc.History(ctx, 999)
	assert.ErrorIs(t, err, common.ErrNotFound)

	cases := []struct {
		name  string
		req   domain.CreateContentRequest
		field string
	}{
		{"empty key", domain.CreateContentRequest{Key: " ", Value: "x"}, "key"},
		{"bad key", domain.CreateContentRequest{Key: "home..title", Value: "x"}, "key"},
		{"blank value", domain.CreateContentRequest{Key: "home.title", Value: "   "}, "value"},
		{"bad locale", domain.CreateContentRequest{Key: "home.title", Value: "x", Locale: "??"}, "locale"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := tc.req
			_, err := svc.CreateEntry(ctx, &req, "editor-1")
			var verr *common.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Fields[0].Field)
			assert.ErrorIs(t, err, common.ErrInvalidInput)
		})
	}
}

func TestHistory_ResolvesDisplayNames(t *testing.T) {
	members := new(mockMemberRepo)
	svc, _ := newTestService(t, members)
	ctx := context.Background()

	entry := createDraft(t, svc, "home.title", "fr-FR", "A")
	_, err := svc.ApplyUpdate(ctx, entry.ID, &domain.UpdateContentRequest{Value: "B"}, "editor-2")
	require.NoError(t, err)

	members.On("DisplayNames", mock.Anything, []string{"editor-1", "editor-2"}).
		Return(map[string]string{"editor-1": "Alice"}, nil).Once()

	history, err := svc.History(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, history.Entries, 2)
	assert.Equal(t, "Alice", history.Entries[0].UpdatedByName)
	assert.Empty(t, history.Entries[1].UpdatedByName)
	assert.Equal(t, "editor-2", history.Entries[1].UpdatedBy)
	members.AssertExpectations(t)
}

func TestHistory_NameResolutionFailureIsNotFatal(t *testing.T) {
	members := new(mockMemberRepo)
	svc, _ := newTestService(t, members)
	ctx := context.Background()

	entry := createDraft(t, svc, "home.title", "fr-FR", "A")
	members.On("DisplayNames", mock.Anything, mock.Anything).Return(nil, errors.New("members db down"))

	history, err := svc.History(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, history.Entries, 1)
	assert.Equal(t, "editor-1", history.Entries[0].UpdatedBy)
	assert.Empty(t, history.Entries[0].UpdatedByName)
}

func TestStorageFailureLeavesCacheUntouched(t *testing.T) {
	repo := new(mockContentRepo)
	store := cache.NewContentCache()
	svc := NewContentService(repo, nil, store, ContentOptions{DefaultLocale: "fr-FR"})

	store.Put("fr-FR", "home.title", "cached")
	repo.On("Transaction").Return(common.WrapStorage("begin", errors.New("connection refused")))

	_, err := svc.Publish(context.Background(), 1, "editor-1")
	var serr *common.StorageError
	require.ErrorAs(t, err, &serr)

	resp, cached, err := svc.Lookup(context.Background(), "home.title", "fr-FR")
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, "cached", resp.Value)
}

func TestLookup_StorageErrorIsNotCached(t *testing.T) {
	repo := new(mockContentRepo)
	store := cache.NewContentCache()
	svc := NewContentService(repo, nil, store, ContentOptions{DefaultLocale: "fr-FR"})

	repo.On("FindPublished", "home.title", "fr-FR").
		Return(nil, common.WrapStorage("find current", errors.New("timeout"))).Once()

	_, _, err := svc.Lookup(context.Background(), "home.title", "fr-FR")
	var serr *common.StorageError
	assert.ErrorAs(t, err, &serr)
	assert.Equal(t, 0, store.Len())
}

func TestConcurrentUpdatesAllRecorded(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	entry := createDraft(t, svc, "home.counter", "fr-FR", "0")

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ApplyUpdate(ctx, entry.ID, &domain.UpdateContentRequest{Value: "x"}, "editor-1")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	current, err := svc.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, uint(1+writers), current.Version)
	assert.Len(t, current.ChangeHistory, writers)
	for i, snap := range current.ChangeHistory {
		assert.Equal(t, uint(i+1), snap.Version)
	}
}

func TestConcurrentCreatesGetDistinctVersions(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	versions := make(chan uint, writers)
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry, err := svc.CreateEntry(ctx, &domain.CreateContentRequest{
				Key: "home.title", Value: "Bienvenue", Locale: "fr-FR",
			}, "editor-1")
			if err != nil {
				errs <- err
				return
			}
			versions <- entry.Version
		}()
	}
	wg.Wait()
	close(errs)
	close(versions)
	for err := range errs {
		require.NoError(t, err)
	}

	seen := map[uint]bool{}
	for v := range versions {
		assert.False(t, seen[v], "version %d allocated twice", v)
		seen[v] = true
	}
	require.Len(t, seen, writers)
	for v := uint(1); v <= writers; v++ {
		assert.True(t, seen[v], "missing version %d", v)
	}
}

func TestCreateEntry_RetriesVersionCollision(t *testing.T) {
	repo := new(mockContentRepo)
	svc := NewContentService(repo, nil, cache.NewContentCache(), ContentOptions{DefaultLocale: "fr-FR"})

	collision := &common.StorageError{Op: "insert", Err: common.ErrVersionCollision}
	repo.On("Transaction").Return(nil)
	repo.On("LockFamily", "home.title", "fr-FR").Return(uint(0), nil).Once()
	repo.On("LockFamily", "home.title", "fr-FR").Return(uint(1), nil).Once()
	repo.On("Insert", mock.Anything).Return(collision).Once()
	repo.On("Insert", mock.Anything).Return(nil).Once()

	entry, err := svc.CreateEntry(context.Background(), &domain.CreateContentRequest{
		Key: "home.title", Value: "Bienvenue",
	}, "editor-1")
	require.NoError(t, err)
	assert.Equal(t, uint(2), entry.Version)
	repo.AssertNumberOfCalls(t, "Insert", 2)
}

func TestCreateEntry_PersistentCollisionIsConflict(t *testing.T) {
	repo := new(mockContentRepo)
	svc := NewContentService(repo, nil, cache.NewContentCache(), ContentOptions{DefaultLocale: "fr-FR"})

	repo.On("Transaction").Return(nil)
	repo.On("LockFamily", "home.title", "fr-FR").Return(uint(0), nil)
	repo.On("Insert", mock.Anything).Return(&common.StorageError{Op: "insert", Err: common.ErrVersionCollision})

	_, err := svc.CreateEntry(context.Background(), &domain.CreateContentRequest{
		Key: "home.title", Value: "Bienvenue",
	}, "editor-1")
	assert.ErrorIs(t, err, common.ErrVersionConflict)
	repo.AssertNumberOfCalls(t, "Insert", maxWriteAttempts)
}

func TestLookupMany(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	for _, key := range []string{"nav.home", "nav.blog"} {
		entry := createDraft(t, svc, key, "fr-FR", key+" value")
		_, err := svc.Publish(ctx, entry.ID, "editor-1")
		require.NoError(t, err)
	}
	createDraft(t, svc, "nav.draft", "fr-FR", "hidden")

	values, err := svc.LookupMany(ctx, []string{"nav.home", "nav.blog", "nav.draft", "nav.missing"}, "fr-FR")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"nav.home": "nav.home value",
		"nav.blog": "nav.blog value",
	}, values)
}

func TestExportImport(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	entry := createDraft(t, svc, "home.title", "fr-FR", "Titre")
	_, err := svc.Publish(ctx, entry.ID, "editor-1")
	require.NoError(t, err)
	createDraft(t, svc, "home.draft", "fr-FR", "Brouillon")

	items, err := svc.Export(ctx, "fr-FR")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "home.title", items[0].Key)
	assert.Equal(t, "Titre", items[0].Value)

	target, _ := newTestService(t, nil)
	items = append(items, domain.ContentExportItem{Key: "bad key", Value: "x"})
	result, err := target.Import(ctx, items, "importer")
	require.NoError(t, err)
	assert.Equal(t, []string{"fr-FR::home.title"}, result.Imported)
	require.Len(t, result.Skipped, 1)
	assert.Contains(t, result.Skipped[0], "bad key")

	imported, total, err := target.List(ctx, domain.ContentFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, domain.StatusDraft, imported[0].Status)
	assert.Equal(t, "importer", imported[0].UpdatedBy)
}

func TestInvalidateCache(t *testing.T) {
	svc, store := newTestService(t, nil)

	store.Put("fr-FR", "home.title", "fr")
	store.Put("en-GB", "home.title", "en")

	require.NoError(t, svc.InvalidateCache("home.title", "fr-fr"))
	assert.Equal(t, 1, store.Len())

	require.NoError(t, svc.InvalidateCache("home.title", ""))
	assert.Equal(t, 0, store.Len())

	assert.Error(t, svc.InvalidateCache("", "fr-FR"))
}
