package receipts

import (
	"time"

	"github.com/google/uuid"
)

// Receipt is an immutable record of one generated document. Regenerating
// inserts a new row; earlier receipts stay as they were.
type Receipt struct {
	ID                uuid.UUID `db:"id" json:"id"`
	OrganizationID    uuid.UUID `db:"organization_id" json:"organization_id"`
	RequestID         uuid.UUID `db:"request_id" json:"request_id"`
	FileURL           string    `db:"file_url" json:"file_url"`
	GeneratedBy       uuid.UUID `db:"generated_by" json:"generated_by"`
	TotalCents        int64     `db:"total_cents" json:"total_cents"`
	InsurerShareCents int64     `db:"insurer_share_cents" json:"insurer_share_cents"`
	MemberShareCents  int64     `db:"member_share_cents" json:"member_share_cents"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}
