package cards

import (
	"time"

	"github.com/google/uuid"
)

// Card records one issued member ID card image.
type Card struct {
	ID             uuid.UUID `db:"id" json:"id"`
	OrganizationID uuid.UUID `db:"organization_id" json:"organization_id"`
	MemberID       uuid.UUID `db:"member_id" json:"member_id"`
	FileURL        string    `db:"file_url" json:"file_url"`
	IssuedBy       uuid.UUID `db:"issued_by" json:"issued_by"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
