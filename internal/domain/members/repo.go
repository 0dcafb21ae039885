package members

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/search"
)

type MemberRepository interface {
	Create(ctx context.Context, m *Member) error
	// GetByID returns the member including soft-deleted rows.
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*Member, error)
	GetByCode(ctx context.Context, orgID uuid.UUID, code string) (*Member, error)
	Update(ctx context.Context, m *Member) error
	// SoftDelete marks the member and its dependents Deleted.
	SoftDelete(ctx context.Context, orgID, id uuid.UUID, at time.Time) error
	List(ctx context.Context, orgID uuid.UUID, preds []search.Predicate, sort string, limit, offset int) ([]*Member, int, error)
	ListDependents(ctx context.Context, orgID, parentID uuid.UUID) ([]*Member, error)

	// NextPrimaryNumber returns one more than the highest numeric suffix
	// among the organization's primary codes starting with prefix.
	NextPrimaryNumber(ctx context.Context, orgID uuid.UUID, prefix string) (int, error)
	// NextDependentNumber returns one more than the highest dependent
	// suffix under parent, deleted dependents included.
	NextDependentNumber(ctx context.Context, orgID uuid.UUID, parent *Member) (int, error)

	// ExtendSubscription sets end_of_subscription and status active on the
	// live members sharing rootCode. It returns the number of rows changed.
	ExtendSubscription(ctx context.Context, orgID uuid.UUID, rootCode string, until time.Time) (int64, error)
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

type CategoryRepository interface {
	Create(ctx context.Context, c *Category) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*Category, error)
	Update(ctx context.Context, c *Category) error
	Delete(ctx context.Context, orgID, id uuid.UUID) error
	List(ctx context.Context, orgID uuid.UUID) ([]*Category, error)
}

type DocumentRepository interface {
	Create(ctx context.Context, d *Document) error
	ListByMember(ctx context.Context, orgID, memberID uuid.UUID) ([]*Document, error)
}
