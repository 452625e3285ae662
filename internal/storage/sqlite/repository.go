package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/event-content-agent/internal/models"
	"github.com/event-content-agent/internal/storage"
)

// Repository implements storage.Repository using SQLite
type Repository struct {
	db *gorm.DB
}

// New creates a new SQLite repository. ":memory:" and "file:" DSNs skip
// directory creation.
func New(dsn string) (*Repository, error) {
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		dir := filepath.Dir(dsn)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Repository{db: db}, nil
}

// Migrate runs database migrations
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(
		&models.GenerationRun{},
		&models.ContentItem{},
	)
}

// Close closes the database connection
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	return err
}

// Run operations

func (r *Repository) CreateRun(ctx context.Context, run *models.GenerationRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *Repository) UpdateRun(ctx context.Context, run *models.GenerationRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

func (r *Repository) GetRun(ctx context.Context, runID string) (*models.GenerationRun, error) {
	var run models.GenerationRun
	if err := r.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error; err != nil {
		return nil, notFound(err)
	}
	return &run, nil
}

func (r *Repository) ListRuns(ctx context.Context, filter storage.RunFilter) ([]*models.GenerationRun, error) {
	var runs []*models.GenerationRun
	query := r.db.WithContext(ctx).Model(&models.GenerationRun{})

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Mode != nil {
		query = query.Where("mode = ?", *filter.Mode)
	}

	query = query.Order("started_at DESC").Order("id DESC")

	// Pagination
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// LatestRun returns the most recently started run with status, or any status when empty
func (r *Repository) LatestRun(ctx context.Context, status models.RunStatus) (*models.GenerationRun, error) {
	var run models.GenerationRun
	query := r.db.WithContext(ctx).Order("started_at DESC").Order("id DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.First(&run).Error; err != nil {
		return nil, notFound(err)
	}
	return &run, nil
}

// Content operations

// SaveContent stores items under runID. An item already stored for the same
// run, event and angle is replaced.
func (r *Repository) SaveContent(ctx context.Context, runID string, items []*models.ContentItem) error {
	if len(items) == 0 {
		return nil
	}
	for _, item := range items {
		item.RunID = runID
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "run_id"}, {Name: "event_id"}, {Name: "content_angle"}},
			UpdateAll: true,
		}).
		Create(&items).Error
}

func (r *Repository) GetContent(ctx context.Context, id uint) (*models.ContentItem, error) {
	var item models.ContentItem
	if err := r.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

func (r *Repository) ListContent(ctx context.Context, filter storage.ContentFilter) ([]*models.ContentItem, error) {
	var items []*models.ContentItem
	query := r.db.WithContext(ctx).Model(&models.ContentItem{})

	if filter.RunID != "" {
		query = query.Where("run_id = ?", filter.RunID)
	}
	if filter.EventID != "" {
		query = query.Where("event_id = ?", filter.EventID)
	}
	if filter.Artist != "" {
		query = query.Where("artist_name = ?", filter.Artist)
	}
	if filter.Angle != nil {
		query = query.Where("content_angle = ?", *filter.Angle)
	}
	if filter.MinPriority > 0 {
		query = query.Where("priority >= ?", filter.MinPriority)
	}
	if !filter.IncludeErrors {
		query = query.Where("is_error = ?", false)
	}

	// Ordering
	orderCol := "priority"
	if storage.ContentOrderColumns[filter.OrderBy] {
		orderCol = filter.OrderBy
	}
	query = query.Order(clause.OrderByColumn{Column: clause.Column{Name: orderCol}, Desc: filter.OrderDesc}).
		Order("id ASC")

	// Pagination
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *Repository) UpdateContent(ctx context.Context, item *models.ContentItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}
