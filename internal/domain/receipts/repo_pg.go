package receipts

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

const receiptColumns = `id, organization_id, request_id, file_url, generated_by,
	total_cents, insurer_share_cents, member_share_cents, created_at`

func (r *repoPG) Create(ctx context.Context, rc *Receipt) error {
	rc.ID = uuid.New()
	err := db.Pick(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO receipts (
			id, organization_id, request_id, file_url, generated_by,
			total_cents, insurer_share_cents, member_share_cents
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		rc.ID, rc.OrganizationID, rc.RequestID, rc.FileURL, rc.GeneratedBy,
		rc.TotalCents, rc.InsurerShareCents, rc.MemberShareCents,
	).Scan(&rc.CreatedAt)
	return db.MapErr(err, "receipt")
}

func (r *repoPG) ListByRequest(ctx context.Context, orgID, requestID uuid.UUID) ([]*Receipt, error) {
	rows, err := db.Pick(ctx, r.pool).Query(ctx, `SELECT `+receiptColumns+` FROM receipts
		WHERE organization_id = $1 AND request_id = $2
		ORDER BY created_at DESC`, orgID, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Receipt
	for rows.Next() {
		rc, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

func scanReceipt(row pgx.Row) (*Receipt, error) {
	var rc Receipt
	err := row.Scan(&rc.ID, &rc.OrganizationID, &rc.RequestID, &rc.FileURL, &rc.GeneratedBy,
		&rc.TotalCents, &rc.InsurerShareCents, &rc.MemberShareCents, &rc.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &rc, nil
}
