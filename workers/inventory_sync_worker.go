// workers/inventory_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"collectible-admin-system/metrics"
	"collectible-admin-system/models"
	"collectible-admin-system/utils"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RemoteItem matches one entry of the inventory service's change feed.
type RemoteItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetItemChangesResponse is the top-level structure of the change feed.
type GetItemChangesResponse struct {
	Items []RemoteItem `json:"items"`
}

// NewItemsFunc is told how many previously unknown items a batch brought in.
type NewItemsFunc func(ctx context.Context, count int64) error

// InventorySyncWorker mirrors scored items into the local items table.
type InventorySyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client
	onNewItems   NewItemsFunc
}

func NewInventorySyncWorker(db *gorm.DB, baseURL, endpointPath, serviceToken string, interval time.Duration) *InventorySyncWorker {
	return &InventorySyncWorker{
		db:           db,
		interval:     interval,
		baseURL:      baseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient:   utils.HTTPClient,
	}
}

// OnNewItems registers a hook for newly listed items (inventory totals).
func (w *InventorySyncWorker) OnNewItems(fn NewItemsFunc) *InventorySyncWorker {
	w.onNewItems = fn
	return w
}

func (w *InventorySyncWorker) Start(ctx context.Context) {
	log.Info().Str("component", "inventory_sync").Msg("🔁 Starting inventory sync worker (inventory-service → items)…")
	go w.run(ctx)
}

func (w *InventorySyncWorker) run(ctx context.Context) {
	if _, err := w.SyncOnce(ctx); err != nil {
		log.Warn().Err(err).Str("component", "inventory_sync").Msg("⚠️ initial sync failed")
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx); err != nil {
				log.Error().Err(err).Str("component", "inventory_sync").Msg("❌ sync batch failed")
			}
		case <-ctx.Done():
			log.Info().Str("component", "inventory_sync").Msg("⏹️ inventory sync worker stopped")
			return
		}
	}
}

// SyncOnce pulls changes since the newest local row and upserts them.
func (w *InventorySyncWorker) SyncOnce(ctx context.Context) (int, error) {
	since := w.lastSyncTime(ctx)
	items, err := w.fetchChanges(ctx, since)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		log.Debug().Str("component", "inventory_sync").Time("since", since).Msg("no item changes")
		return 0, nil
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	var known int64
	if err := w.db.WithContext(ctx).Model(&models.Item{}).Where("id IN ?", ids).Count(&known).Error; err != nil {
		return 0, fmt.Errorf("failed to count known items: %w", err)
	}

	// Do not move the cursor on failure; the same window is retried next tick.
	if err := w.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "category", "score", "updated_at"}),
	}).Create(&items).Error; err != nil {
		return 0, fmt.Errorf("failed to upsert %d item(s): %w", len(items), err)
	}

	metrics.InventorySynced(len(items))
	log.Info().Str("component", "inventory_sync").Int("items", len(items)).Msg("✅ upserted items into mirror")

	if fresh := int64(len(items)) - known; fresh > 0 && w.onNewItems != nil {
		if err := w.onNewItems(ctx, fresh); err != nil {
			log.Warn().Err(err).Str("component", "inventory_sync").Int64("new_items", fresh).
				Msg("⚠️ could not register new inventory")
		}
	}
	return len(items), nil
}

func (w *InventorySyncWorker) lastSyncTime(ctx context.Context) time.Time {
	var latest models.Item
	err := w.db.WithContext(ctx).Order("updated_at DESC").First(&latest).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn().Err(err).Str("component", "inventory_sync").Msg("⚠️ could not read sync cursor")
		}
		return time.Unix(0, 0).UTC()
	}
	return latest.UpdatedAt
}

func (w *InventorySyncWorker) fetchChanges(ctx context.Context, since time.Time) ([]models.Item, error) {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid inventory service URL '%s': %w", w.baseURL, err)
	}
	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpointURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call inventory service: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("inventory service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response GetItemChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode inventory service response: %w", err)
	}

	now := time.Now().UTC()
	items := make([]models.Item, 0, len(response.Items))
	for _, r := range response.Items {
		if strings.TrimSpace(r.ID) == "" {
			continue
		}
		item := models.Item{
			ID:        r.ID,
			Name:      r.Name,
			Category:  strings.ToLower(strings.TrimSpace(r.Category)),
			Score:     r.Score,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		}
		if item.CreatedAt.IsZero() {
			item.CreatedAt = now
		}
		if item.UpdatedAt.IsZero() {
			item.UpdatedAt = now
		}
		items = append(items, item)
	}
	return items, nil
}
