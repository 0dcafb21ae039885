package requests

import (
	"context"

	"github.com/google/uuid"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/domain/coverage"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/search"
)

type RequestRepository interface {
	Create(ctx context.Context, r *Request) error
	// GetByID loads the request with its items ordered by position.
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*Request, error)
	List(ctx context.Context, orgID uuid.UUID, preds []search.Predicate, sort string, limit, offset int) ([]*Request, int, error)
	Delete(ctx context.Context, orgID, id uuid.UUID) error
	UpdateTotals(ctx context.Context, orgID, id uuid.UUID, split coverage.Split) error
}

type ItemRepository interface {
	Create(ctx context.Context, it *Item) error
	// CompareAndSwap writes every mutable column of it provided the stored
	// version still equals expected, and bumps the version. A stale version
	// yields apperr.ErrConflict.
	CompareAndSwap(ctx context.Context, it *Item, expected int) error
	Delete(ctx context.Context, requestID, itemID uuid.UUID) error
}
