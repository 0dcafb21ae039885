package cards

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, c *Card) error
	ListByMember(ctx context.Context, orgID, memberID uuid.UUID) ([]*Card, error)
}
