package cards

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/db"
)

type cardRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &cardRepoPG{pool: pool}
}

func (r *cardRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Pick(ctx, r.pool)
}

func (r *cardRepoPG) Create(ctx context.Context, c *Card) error {
	c.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO cards (id, organization_id, member_id, file_url, issued_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		c.ID, c.OrganizationID, c.MemberID, c.FileURL, c.IssuedBy,
	).Scan(&c.CreatedAt)
	return db.MapErr(err, "card")
}

func (r *cardRepoPG) ListByMember(ctx context.Context, orgID, memberID uuid.UUID) ([]*Card, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, organization_id, member_id, file_url, issued_by, created_at
		FROM cards WHERE organization_id = $1 AND member_id = $2
		ORDER BY created_at DESC`, orgID, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Card
	for rows.Next() {
		var c Card
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.MemberID, &c.FileURL, &c.IssuedBy, &c.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &c)
	}
	return items, rows.Err()
}
