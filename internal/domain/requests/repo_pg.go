package requests

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/domain/coverage"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/apperr"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/db"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/search"
)

// SearchFields is the allow-list for GET /requests.
var SearchFields = map[string]search.Field{
	"code":       {Column: "code", Kind: search.KindText},
	"kind":       {Column: "kind", Kind: search.KindExact, Values: []string{string(KindPharmacy), string(KindTreatment)}},
	"member_id":  {Column: "member_id", Kind: search.KindUUID},
	"creator_id": {Column: "creator_id", Kind: search.KindUUID},
	"note":       {Column: "note", Kind: search.KindText},
}

// -- Request Repository --

type requestRepoPG struct {
	pool *pgxpool.Pool
}

func NewRequestRepo(pool *pgxpool.Pool) RequestRepository {
	return &requestRepoPG{pool: pool}
}

func (r *requestRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Pick(ctx, r.pool)
}

const requestColumns = `id, organization_id, member_id, creator_id, kind, code, note,
	total_cents, insurer_share_cents, member_share_cents, created_at, updated_at`

const itemColumns = `id, request_id, name, quantity, unit_price, status, approver_id, approved_at,
	version, position, created_at, updated_at`

func (r *requestRepoPG) Create(ctx context.Context, req *Request) error {
	req.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO requests (id, organization_id, member_id, creator_id, kind, code, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		req.ID, req.OrganizationID, req.MemberID, req.CreatorID, req.Kind, req.Code, req.Note,
	).Scan(&req.CreatedAt, &req.UpdatedAt)
	return db.MapErr(err, "request")
}

func (r *requestRepoPG) GetByID(ctx context.Context, orgID, id uuid.UUID) (*Request, error) {
	req, err := scanRequest(r.conn(ctx).QueryRow(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE organization_id = $1 AND id = $2`, orgID, id))
	if err != nil {
		return nil, db.MapErr(err, "request")
	}
	if err := r.attachItems(ctx, []*Request{req}); err != nil {
		return nil, err
	}
	return req, nil
}

func (r *requestRepoPG) List(ctx context.Context, orgID uuid.UUID, preds []search.Predicate, sort string, limit, offset int) ([]*Request, int, error) {
	q := search.NewQuery("requests", requestColumns)
	q.Add("organization_id = $1", orgID)
	q.Apply(preds, SearchFields)
	q.ApplySort(sort, "created_at DESC", SearchFields)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	var out []*Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		out = append(out, req)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := r.attachItems(ctx, out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// attachItems loads the items of reqs in one query.
func (r *requestRepoPG) attachItems(ctx context.Context, reqs []*Request) error {
	if len(reqs) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(reqs))
	byID := make(map[uuid.UUID]*Request, len(reqs))
	for i, req := range reqs {
		ids[i] = req.ID
		byID[req.ID] = req
		req.Items = []*Item{}
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+itemColumns+` FROM items WHERE request_id = ANY($1) ORDER BY position, created_at`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return err
		}
		if req, ok := byID[it.RequestID]; ok {
			req.Items = append(req.Items, it)
		}
	}
	return rows.Err()
}

func (r *requestRepoPG) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM requests WHERE organization_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("request")
	}
	return nil
}

func (r *requestRepoPG) UpdateTotals(ctx context.Context, orgID, id uuid.UUID, split coverage.Split) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE requests SET
			total_cents = $3, insurer_share_cents = $4, member_share_cents = $5, updated_at = NOW()
		WHERE organization_id = $1 AND id = $2`,
		orgID, id, split.TotalCents, split.InsurerShareCents, split.MemberShareCents,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("request")
	}
	return nil
}

func scanRequest(row pgx.Row) (*Request, error) {
	var req Request
	err := row.Scan(&req.ID, &req.OrganizationID, &req.MemberID, &req.CreatorID, &req.Kind, &req.Code, &req.Note,
		&req.TotalCents, &req.InsurerShareCents, &req.MemberShareCents, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// -- Item Repository --

type itemRepoPG struct {
	pool *pgxpool.Pool
}

func NewItemRepo(pool *pgxpool.Pool) ItemRepository {
	return &itemRepoPG{pool: pool}
}

func (r *itemRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Pick(ctx, r.pool)
}

func (r *itemRepoPG) Create(ctx context.Context, it *Item) error {
	it.ID = uuid.New()
	it.Version = 1
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO items (id, request_id, name, quantity, unit_price, status, approver_id, approved_at, version, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		it.ID, it.RequestID, it.Name, it.Quantity, nullDecimal(it.UnitPrice), it.Status,
		it.ApproverID, it.ApprovedAt, it.Version, it.Position,
	).Scan(&it.CreatedAt, &it.UpdatedAt)
	return db.MapErr(err, "item")
}

func (r *itemRepoPG) CompareAndSwap(ctx context.Context, it *Item, expected int) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE items SET
			name = $4, quantity = $5, position = $6, unit_price = $7, status = $8,
			approver_id = $9, approved_at = $10, version = version + 1, updated_at = NOW()
		WHERE request_id = $1 AND id = $2 AND version = $3
		RETURNING version, updated_at`,
		it.RequestID, it.ID, expected,
		it.Name, it.Quantity, it.Position, nullDecimal(it.UnitPrice), it.Status,
		it.ApproverID, it.ApprovedAt,
	).Scan(&it.Version, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Conflict("item was modified concurrently, reload and retry")
	}
	return err
}

func (r *itemRepoPG) Delete(ctx context.Context, requestID, itemID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM items WHERE request_id = $1 AND id = $2`, requestID, itemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("item")
	}
	return nil
}

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	var price decimal.NullDecimal
	err := row.Scan(&it.ID, &it.RequestID, &it.Name, &it.Quantity, &price, &it.Status, &it.ApproverID, &it.ApprovedAt,
		&it.Version, &it.Position, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if price.Valid {
		p := price.Decimal
		it.UnitPrice = &p
	}
	return &it, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
