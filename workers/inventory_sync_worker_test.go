package workers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"collectible-admin-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newItemsDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.Item{}))
	return db
}

type feed struct {
	mu      sync.Mutex
	batches [][]RemoteItem
	since   []string
	tokens  []string
}

func (f *feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.since = append(f.since, r.URL.Query().Get("since"))
	f.tokens = append(f.tokens, r.Header.Get("X-Service-Token"))

	var items []RemoteItem
	if len(f.batches) > 0 {
		items, f.batches = f.batches[0], f.batches[1:]
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(GetItemChangesResponse{Items: items})
}

func TestSyncOnceUpsertsAndReportsNewItems(t *testing.T) {
	t1 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	f := &feed{batches: [][]RemoteItem{
		{
			{ID: "a", Name: "Alpha", Category: " Cards ", Score: 120, CreatedAt: t1, UpdatedAt: t1},
			{ID: "b", Name: "Beta", Category: "figures", Score: 480, CreatedAt: t1, UpdatedAt: t1},
			{ID: " ", Name: "ghost"},
		},
		{
			{ID: "b", Name: "Beta (mint)", Category: "figures", Score: 490, CreatedAt: t1, UpdatedAt: t2},
			{ID: "c", Name: "Gamma", Category: "cards", Score: 300, CreatedAt: t2, UpdatedAt: t2},
		},
	}}
	srv := httptest.NewServer(f)
	defer srv.Close()

	db := newItemsDB(t)
	var registered []int64
	w := NewInventorySyncWorker(db, srv.URL, "/internal/items/changes", "svc-token", time.Minute).
		OnNewItems(func(_ context.Context, n int64) error {
			registered = append(registered, n)
			return nil
		})

	n, err := w.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = w.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = w.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.Equal(t, []int64{2, 1}, registered)
	assert.Equal(t, "1970-01-01T00:00:00Z", f.since[0])
	assert.Equal(t, t1.Format(time.RFC3339), f.since[1])
	assert.Equal(t, t2.Format(time.RFC3339), f.since[2])
	assert.Equal(t, "svc-token", f.tokens[0])

	var b models.Item
	require.NoError(t, db.First(&b, "id = ?", "b").Error)
	assert.Equal(t, "Beta (mint)", b.Name)
	assert.Equal(t, 490, b.Score)

	var a models.Item
	require.NoError(t, db.First(&a, "id = ?", "a").Error)
	assert.Equal(t, "cards", a.Category)
}

func TestSyncOnceSurfacesUpstreamErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	w := NewInventorySyncWorker(newItemsDB(t), srv.URL, "/internal/items/changes", "svc-token", time.Minute)
	_, err := w.SyncOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
