package members

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

// -- Member Repository --

type memberRepoPG struct {
	pool *pgxpool.Pool
}

func NewMemberRepo(pool *pgxpool.Pool) MemberRepository {
	return &memberRepoPG{pool: pool}
}

func (r *memberRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Pick(ctx, r.pool)
}

const memberFrom = `members m LEFT JOIN categories c ON c.id = m.category_id`

const memberColumns = `m.id, m.organization_id, m.code, m.parent_id, m.category_id, m.name, m.phone,
	m.end_of_subscription, m.status, m.deleted_at, m.created_at, m.updated_at,
	c.name, COALESCE(c.coverage_percent, 0)`

// MemberSearchFields is the allow-list for GET /members.
var MemberSearchFields = map[string]search.Field{
	"code":        {Column: "m.code", Kind: search.KindText},
	"name":        {Column: "m.name", Kind: search.KindText},
	"phone":       {Column: "m.phone", Kind: search.KindText},
	"status":      {Column: "m.status", Kind: search.KindExact, Values: []string{StatusActive, StatusInactive, StatusDeleted}},
	"category_id": {Column: "m.category_id", Kind: search.KindUUID},
	"parent_id":   {Column: "m.parent_id", Kind: search.KindUUID},
}

func (r *memberRepoPG) Create(ctx context.Context, m *Member) error {
	m.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO members (
			id, organization_id, code, parent_id, category_id, name, phone,
			end_of_subscription, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		m.ID, m.OrganizationID, m.Code, m.ParentID, m.CategoryID, m.Name, m.Phone,
		m.EndOfSubscription, m.Status,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	return db.MapErr(err, "member")
}

func (r *memberRepoPG) GetByID(ctx context.Context, orgID, id uuid.UUID) (*Member, error) {
	m, err := scanMember(r.conn(ctx).QueryRow(ctx,
		`SELECT `+memberColumns+` FROM `+memberFrom+` WHERE m.organization_id = $1 AND m.id = $2`, orgID, id))
	if err != nil {
		return nil, db.MapErr(err, "member")
	}
	return m, nil
}

func (r *memberRepoPG) GetByCode(ctx context.Context, orgID uuid.UUID, code string) (*Member, error) {
	m, err := scanMember(r.conn(ctx).QueryRow(ctx,
		`SELECT `+memberColumns+` FROM `+memberFrom+` WHERE m.organization_id = $1 AND m.code = $2`, orgID, code))
	if err != nil {
		return nil, db.MapErr(err, "member")
	}
	return m, nil
}

func (r *memberRepoPG) Update(ctx context.Context, m *Member) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE members SET
			name = $3, phone = $4, category_id = $5, updated_at = NOW()
		WHERE organization_id = $1 AND id = $2 AND deleted_at IS NULL`,
		m.OrganizationID, m.ID, m.Name, m.Phone, m.CategoryID,
	)
	if err != nil {
		return db.MapErr(err, "member")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("member")
	}
	return nil
}

func (r *memberRepoPG) SoftDelete(ctx context.Context, orgID, id uuid.UUID, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE members SET status = $3, deleted_at = $4, updated_at = NOW()
		WHERE organization_id = $1 AND (id = $2 OR parent_id = $2) AND deleted_at IS NULL`,
		orgID, id, StatusDeleted, at,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("member")
	}
	return nil
}

func (r *memberRepoPG) List(ctx context.Context, orgID uuid.UUID, preds []search.Predicate, sort string, limit, offset int) ([]*Member, int, error) {
	q := search.NewQuery(memberFrom, memberColumns)
	q.Add("m.organization_id = $1", orgID)
	q.Apply(preds, MemberSearchFields)
	if !hasField(preds, "status") {
		q.Add("m.deleted_at IS NULL")
	}
	q.ApplySort(sort, "m.code ASC", MemberSearchFields)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collectMembers(rows)
	return items, total, err
}

func (r *memberRepoPG) ListDependents(ctx context.Context, orgID, parentID uuid.UUID) ([]*Member, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+memberColumns+` FROM `+memberFrom+`
		WHERE m.organization_id = $1 AND m.parent_id = $2 AND m.deleted_at IS NULL
		ORDER BY m.created_at, m.code`, orgID, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMembers(rows)
}

func (r *memberRepoPG) NextPrimaryNumber(ctx context.Context, orgID uuid.UUID, prefix string) (int, error) {
	// Serializes numbering per organization for the enclosing transaction.
	if _, err := r.conn(ctx).Exec(ctx, `SELECT 1 FROM organizations WHERE id = $1 FOR UPDATE`, orgID); err != nil {
		return 0, err
	}
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COALESCE(MAX(CAST(substr(code, $3::int + 1) AS INTEGER)), 0) + 1
		FROM members
		WHERE organization_id = $1 AND parent_id IS NULL
		  AND left(code, $3::int) = $2 AND substr(code, $3::int + 1) ~ '^[0-9]+$'`,
		orgID, prefix, codeLen(prefix),
	).Scan(&n)
	return n, err
}

func (r *memberRepoPG) NextDependentNumber(ctx context.Context, orgID uuid.UUID, parent *Member) (int, error) {
	if _, err := r.conn(ctx).Exec(ctx,
		`SELECT 1 FROM members WHERE organization_id = $1 AND id = $2 FOR UPDATE`, orgID, parent.ID); err != nil {
		return 0, err
	}
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COALESCE(MAX(CAST(substr(code, $3::int + 2) AS INTEGER)), 0) + 1
		FROM members
		WHERE organization_id = $1 AND parent_id = $2
		  AND substr(code, $3::int + 2) ~ '^[0-9]+$'`,
		orgID, parent.ID, codeLen(parent.Code),
	).Scan(&n)
	return n, err
}

func (r *memberRepoPG) ExtendSubscription(ctx context.Context, orgID uuid.UUID, rootCode string, until time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE members SET end_of_subscription = $3, status = $4, updated_at = NOW()
		WHERE organization_id = $1 AND deleted_at IS NULL
		  AND (code = $2 OR left(code, length($2) + 1) = $2 || '/')`,
		orgID, rootCode, until, StatusActive,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *memberRepoPG) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE members SET status = $2, updated_at = NOW()
		WHERE status = $3 AND deleted_at IS NULL AND end_of_subscription < $1`,
		now, StatusInactive, StatusActive,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func collectMembers(rows pgx.Rows) ([]*Member, error) {
	var items []*Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func scanMember(row pgx.Row) (*Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.OrganizationID, &m.Code, &m.ParentID, &m.CategoryID, &m.Name, &m.Phone,
		&m.EndOfSubscription, &m.Status, &m.DeletedAt, &m.CreatedAt, &m.UpdatedAt,
		&m.CategoryName, &m.CoveragePercent)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func hasField(preds []search.Predicate, field string) bool {
	for _, p := range preds {
		if p.Field == field {
			return true
		}
	}
	return false
}

// -- Category Repository --

type categoryRepoPG struct {
	pool *pgxpool.Pool
}

func NewCategoryRepo(pool *pgxpool.Pool) CategoryRepository {
	return &categoryRepoPG{pool: pool}
}

func (r *categoryRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Pick(ctx, r.pool)
}

const categoryColumns = `id, organization_id, name, coverage_percent, price, created_at, updated_at`

func (r *categoryRepoPG) Create(ctx context.Context, c *Category) error {
	c.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO categories (id, organization_id, name, coverage_percent, price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		c.ID, c.OrganizationID, c.Name, c.CoveragePercent, c.Price,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	return db.MapErr(err, "category")
}

func (r *categoryRepoPG) GetByID(ctx context.Context, orgID, id uuid.UUID) (*Category, error) {
	c, err := scanCategory(r.conn(ctx).QueryRow(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE organization_id = $1 AND id = $2`, orgID, id))
	if err != nil {
		return nil, db.MapErr(err, "category")
	}
	return c, nil
}

func (r *categoryRepoPG) Update(ctx context.Context, c *Category) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE categories SET name = $3, coverage_percent = $4, price = $5, updated_at = NOW()
		WHERE organization_id = $1 AND id = $2
		RETURNING updated_at`,
		c.OrganizationID, c.ID, c.Name, c.CoveragePercent, c.Price,
	).Scan(&c.UpdatedAt)
	return db.MapErr(err, "category")
}

func (r *categoryRepoPG) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM categories WHERE organization_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("category")
	}
	return nil
}

func (r *categoryRepoPG) List(ctx context.Context, orgID uuid.UUID) ([]*Category, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE organization_id = $1 ORDER BY name`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func scanCategory(row pgx.Row) (*Category, error) {
	var c Category
	if err := row.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.CoveragePercent, &c.Price, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// -- Document Repository --

type documentRepoPG struct {
	pool *pgxpool.Pool
}

func NewDocumentRepo(pool *pgxpool.Pool) DocumentRepository {
	return &documentRepoPG{pool: pool}
}

func (r *documentRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Pick(ctx, r.pool)
}

func (r *documentRepoPG) Create(ctx context.Context, d *Document) error {
	d.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO member_documents (id, organization_id, member_id, name, file_url, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		d.ID, d.OrganizationID, d.MemberID, d.Name, d.FileURL, d.UploadedBy,
	).Scan(&d.CreatedAt)
	return db.MapErr(err, "document")
}

func (r *documentRepoPG) ListByMember(ctx context.Context, orgID, memberID uuid.UUID) ([]*Document, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, organization_id, member_id, name, file_url, uploaded_by, created_at
		FROM member_documents
		WHERE organization_id = $1 AND member_id = $2
		ORDER BY created_at, name`, orgID, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []*Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.OrganizationID, &d.MemberID, &d.Name, &d.FileURL, &d.UploadedBy, &d.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}
