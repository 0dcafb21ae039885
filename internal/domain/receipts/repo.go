package receipts

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Receipt) error
	ListByRequest(ctx context.Context, orgID, requestID uuid.UUID) ([]*Receipt, error)
}
