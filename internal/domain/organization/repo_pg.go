package organization

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const orgColumns = `id, name, code_prefix, created_at`

func (r *repoPG) Create(ctx context.Context, org *Organization) error {
	org.ID = uuid.New()
	err := db.Pick(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO organizations (id, name, code_prefix)
		VALUES ($1, $2, $3)
		RETURNING created_at`,
		org.ID, org.Name, org.CodePrefix,
	).Scan(&org.CreatedAt)
	return db.MapErr(err, "organization")
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Organization, error) {
	org, err := scanOrg(db.Pick(ctx, r.pool).QueryRow(ctx,
		`SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id))
	if err != nil {
		return nil, db.MapErr(err, "organization")
	}
	return org, nil
}

func scanOrg(row pgx.Row) (*Organization, error) {
	var o Organization
	if err := row.Scan(&o.ID, &o.Name, &o.CodePrefix, &o.CreatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}
