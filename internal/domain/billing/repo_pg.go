package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/apperr"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/db"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/search"
)

type invoiceRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &invoiceRepoPG{pool: pool}
}

func (r *invoiceRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Pick(ctx, r.pool)
}

const invoiceFrom = `invoices i LEFT JOIN members m ON m.id = i.member_id`

const invoiceColumns = `i.id, i.organization_id, i.member_id, i.amount, i.period_months, i.status,
	i.due_date, i.paid_at, i.created_by, i.created_at, i.updated_at, m.code`

// SearchFields is the allow-list for GET /invoices.
var SearchFields = map[string]search.Field{
	"status":    {Column: "i.status", Kind: search.KindExact, Values: []string{StatusPending, StatusPaid, StatusOverdue}},
	"member_id": {Column: "i.member_id", Kind: search.KindUUID},
}

func (r *invoiceRepoPG) Create(ctx context.Context, inv *Invoice) error {
	inv.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO invoices (
			id, organization_id, member_id, amount, period_months, status, due_date, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		inv.ID, inv.OrganizationID, inv.MemberID, inv.Amount, inv.PeriodMonths, inv.Status,
		inv.DueDate, inv.CreatedBy,
	).Scan(&inv.CreatedAt, &inv.UpdatedAt)
	return db.MapErr(err, "invoice")
}

func (r *invoiceRepoPG) GetByID(ctx context.Context, orgID, id uuid.UUID) (*Invoice, error) {
	inv, err := scanInvoice(r.conn(ctx).QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM `+invoiceFrom+` WHERE i.organization_id = $1 AND i.id = $2`, orgID, id))
	if err != nil {
		return nil, db.MapErr(err, "invoice")
	}
	return inv, nil
}

func (r *invoiceRepoPG) List(ctx context.Context, orgID uuid.UUID, preds []search.Predicate, sort string, limit, offset int) ([]*Invoice, int, error) {
	q := search.NewQuery(invoiceFrom, invoiceColumns)
	q.Add("i.organization_id = $1", orgID)
	q.Apply(preds, SearchFields)
	q.ApplySort(sort, "i.created_at DESC", SearchFields)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, inv)
	}
	return items, total, rows.Err()
}

func (r *invoiceRepoPG) MarkPaid(ctx context.Context, orgID, id uuid.UUID, at time.Time) error {
	status, err := r.lockStatus(ctx, orgID, id)
	if err != nil {
		return err
	}
	if status == StatusPaid {
		return apperr.InvalidTransition(status, "pay")
	}
	_, err = r.conn(ctx).Exec(ctx, `
		UPDATE invoices SET status = $3, paid_at = $4, updated_at = NOW()
		WHERE organization_id = $1 AND id = $2`,
		orgID, id, StatusPaid, at,
	)
	return err
}

func (r *invoiceRepoPG) DeletePending(ctx context.Context, orgID, id uuid.UUID) error {
	status, err := r.lockStatus(ctx, orgID, id)
	if err != nil {
		return err
	}
	if status != StatusPending {
		return apperr.InvalidTransition(status, "delete")
	}
	_, err = r.conn(ctx).Exec(ctx, `DELETE FROM invoices WHERE organization_id = $1 AND id = $2`, orgID, id)
	return err
}

func (r *invoiceRepoPG) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE invoices SET status = $2, updated_at = NOW()
		WHERE status = $3 AND due_date < $1`,
		now, StatusOverdue, StatusPending,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// lockStatus reads the invoice status and holds the row for the enclosing
// transaction.
func (r *invoiceRepoPG) lockStatus(ctx context.Context, orgID, id uuid.UUID) (string, error) {
	var status string
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT status FROM invoices WHERE organization_id = $1 AND id = $2 FOR UPDATE`, orgID, id).Scan(&status)
	if err != nil {
		return "", db.MapErr(err, "invoice")
	}
	return status, nil
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.OrganizationID, &inv.MemberID, &inv.Amount, &inv.PeriodMonths, &inv.Status,
		&inv.DueDate, &inv.PaidAt, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt, &inv.MemberCode)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}
