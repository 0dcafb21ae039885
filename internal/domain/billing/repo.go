package billing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/search"
)

type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*Invoice, error)
	List(ctx context.Context, orgID uuid.UUID, preds []search.Predicate, sort string, limit, offset int) ([]*Invoice, int, error)
	// MarkPaid moves an unpaid invoice to Paid. It returns InvalidTransition
	// when the invoice is already paid.
	MarkPaid(ctx context.Context, orgID, id uuid.UUID, at time.Time) error
	// DeletePending removes a Pending invoice only.
	DeletePending(ctx context.Context, orgID, id uuid.UUID) error
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
}
