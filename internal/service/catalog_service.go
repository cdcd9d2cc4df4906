package service

import (
	"context"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/library-catalog-api/internal/dto"
	"github.com/noah-isme/library-catalog-api/internal/models"
	appErrors "github.com/noah-isme/library-catalog-api/pkg/errors"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type catalogRepository interface {
	List(ctx context.Context, filter models.BookFilter) ([]models.Book, int, error)
	Stats(ctx context.Context, view models.CatalogView) (*models.CatalogStats, []models.CategoryStat, error)
}

// StatsSnapshot is the cached aggregate for one view.
type StatsSnapshot struct {
	Stats      models.CatalogStats   `json:"stats"`
	Categories []models.CategoryStat `json:"categories"`
}

// CatalogService serves paginated listings with aggregate statistics.
type CatalogService struct {
	repo   catalogRepository
	cache  *CacheService
	logger *zap.Logger
}

// NewCatalogService constructs the listing service.
func NewCatalogService(repo catalogRepository, cache *CacheService, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{repo: repo, cache: cache, logger: logger}
}

// List returns one page of the requested view together with its statistics.
func (s *CatalogService) List(ctx context.Context, q dto.ListBooksQuery) (*dto.BookPage, error) {
	filter, page, err := buildFilter(q)
	if err != nil {
		return nil, err
	}

	books, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to list books")
	}
	if books == nil {
		books = []models.Book{}
	}

	snapshot, err := s.stats(ctx, filter.View)
	if err != nil {
		return nil, err
	}

	filters := map[string]any{
		"view":   filter.View,
		"search": filter.Search,
	}
	if filter.CategoryID != nil {
		filters["category"] = *filter.CategoryID
	}
	if filter.Status != "" {
		filters["status"] = filter.Status
	}

	return &dto.BookPage{
		Books:         books,
		Pagination:    models.NewPagination(page, filter.Limit, total),
		Stats:         snapshot.Stats,
		CategoryStats: snapshot.Categories,
		Filters:       filters,
	}, nil
}

// Stats returns the aggregate figures of a view, served from cache when possible.
func (s *CatalogService) Stats(ctx context.Context, view models.CatalogView) (*StatsSnapshot, error) {
	return s.stats(ctx, view)
}

func (s *CatalogService) stats(ctx context.Context, view models.CatalogView) (*StatsSnapshot, error) {
	key := StatsKey(view)
	var cached StatsSnapshot
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	stats, categories, err := s.repo.Stats(ctx, view)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to load catalog statistics")
	}
	if categories == nil {
		categories = []models.CategoryStat{}
	}
	snapshot := &StatsSnapshot{Stats: *stats, Categories: categories}
	snapshot.Stats.AvgQuantityPerBook = math.Round(snapshot.Stats.AvgQuantityPerBook*100) / 100

	s.cache.Set(ctx, key, snapshot, 0)
	return snapshot, nil
}

// buildFilter normalises listing parameters. Out-of-range paging falls back to defaults.
func buildFilter(q dto.ListBooksQuery) (models.BookFilter, int, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	view := q.View
	if view == "" {
		view = models.CatalogViewMain
	}

	filter := models.BookFilter{
		View:   view,
		Search: strings.TrimSpace(q.Search),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}

	if category := strings.TrimSpace(q.Category); category != "" {
		id, err := strconv.Atoi(category)
		if err != nil {
			return models.BookFilter{}, 0, appErrors.Clone(appErrors.ErrValidation, "category must be numeric")
		}
		filter.CategoryID = &id
	}

	if status := strings.TrimSpace(q.Status); status != "" && view == models.CatalogViewMain {
		switch models.BookStatus(status) {
		case models.BookStatusActive, models.BookStatusDeleted:
			filter.Status = models.BookStatus(status)
		default:
			return models.BookFilter{}, 0, appErrors.Clone(appErrors.ErrValidation, "status must be active or deleted")
		}
	}

	return filter, page, nil
}
