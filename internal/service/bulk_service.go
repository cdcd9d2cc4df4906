package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/library-catalog-api/internal/dto"
	"github.com/noah-isme/library-catalog-api/internal/models"
	appErrors "github.com/noah-isme/library-catalog-api/pkg/errors"
	"github.com/noah-isme/library-catalog-api/pkg/jobs"
)

const defaultBulkMaxTargets = 500

type bookMutator interface {
	Transition(ctx context.Context, id int64, action models.BookAction) (*dto.TransitionResult, error)
	SetCategory(ctx context.Context, id int64, categoryID int) (*dto.CategoryChange, error)
}

// BulkService applies one operation independently to many books.
type BulkService struct {
	books      bookMutator
	pool       *jobs.Pool
	metrics    *MetricsService
	logger     *zap.Logger
	maxTargets int
}

// NewBulkService constructs the bulk coordinator. A nil pool processes targets sequentially.
func NewBulkService(books bookMutator, pool *jobs.Pool, metrics *MetricsService, logger *zap.Logger, maxTargets int) *BulkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pool == nil {
		pool = jobs.NewPool("bulk", jobs.PoolConfig{Workers: 1, Logger: logger})
	}
	if maxTargets <= 0 {
		maxTargets = defaultBulkMaxTargets
	}
	return &BulkService{books: books, pool: pool, metrics: metrics, logger: logger, maxTargets: maxTargets}
}

// Apply runs req.Operation on every target. A failing target never stops the
// others; results keep the order of the de-duplicated input.
func (s *BulkService) Apply(ctx context.Context, req dto.BulkRequest) (*dto.BulkResult, error) {
	apply, err := s.operation(req)
	if err != nil {
		return nil, err
	}
	ids := uniqueIDs(req.IDs)
	if len(ids) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "ids must contain at least one book id")
	}
	if len(ids) > s.maxTargets {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d books can be processed at once", s.maxTargets))
	}

	results := make([]dto.BulkItemResult, len(ids))
	processed := make([]bool, len(ids))
	runErr := s.pool.Run(ctx, len(ids), func(ctx context.Context, i int) {
		results[i] = apply(ctx, ids[i])
		processed[i] = true
	})

	result := &dto.BulkResult{Operation: req.Operation, Results: results}
	for i := range results {
		if !processed[i] {
			results[i] = dto.BulkItemResult{ID: ids[i], Error: appErrors.Clone(appErrors.ErrInternal, "book was not processed")}
		}
		if results[i].Success {
			result.SuccessCount++
		} else {
			result.FailureCount++
		}
		s.metrics.RecordBulkItem(req.Operation, results[i].Success)
	}

	fields := []zap.Field{
		zap.String("operation", string(req.Operation)),
		zap.Int("targets", len(ids)),
		zap.Int("succeeded", result.SuccessCount),
		zap.Int("failed", result.FailureCount),
	}
	if runErr != nil {
		s.logger.Warn("bulk operation interrupted", append(fields, zap.Error(runErr))...)
	} else {
		s.logger.Info("bulk operation finished", fields...)
	}
	return result, nil
}

type bulkApply func(ctx context.Context, id int64) dto.BulkItemResult

func (s *BulkService) operation(req dto.BulkRequest) (bulkApply, error) {
	switch req.Operation {
	case dto.BulkOperationDelete:
		return s.transition(models.BookActionDelete), nil
	case dto.BulkOperationRestore:
		return s.transition(models.BookActionRestore), nil
	case dto.BulkOperationArchive:
		return s.transition(models.BookActionArchive), nil
	case dto.BulkOperationSetCategory:
		if req.CategoryID == nil || !models.ValidCategory(*req.CategoryID) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "categoryId must be between 1 and 6")
		}
		categoryID := *req.CategoryID
		return func(ctx context.Context, id int64) dto.BulkItemResult {
			if err := checkTargetID(id); err != nil {
				return failedItem(id, err)
			}
			change, err := s.books.SetCategory(ctx, id, categoryID)
			if err != nil {
				return failedItem(id, err)
			}
			return dto.BulkItemResult{ID: id, Success: true, Changed: change.Changed}
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown bulk operation %q", req.Operation))
	}
}

func (s *BulkService) transition(action models.BookAction) bulkApply {
	return func(ctx context.Context, id int64) dto.BulkItemResult {
		if err := checkTargetID(id); err != nil {
			return failedItem(id, err)
		}
		if _, err := s.books.Transition(ctx, id, action); err != nil {
			return failedItem(id, err)
		}
		return dto.BulkItemResult{ID: id, Success: true, Changed: true}
	}
}

func checkTargetID(id int64) error {
	if id <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "book id must be a positive integer")
	}
	return nil
}

func failedItem(id int64, err error) dto.BulkItemResult {
	return dto.BulkItemResult{ID: id, Error: appErrors.FromError(err)}
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
