package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice statuses.
const (
	StatusPending = "Pending"
	StatusPaid    = "Paid"
	StatusOverdue = "Overdue"
)

// Invoice bills a subscription period. An invoice tied to a member extends
// that member's subscription, and its dependents', when created and again
// when paid.
type Invoice struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	OrganizationID uuid.UUID       `db:"organization_id" json:"organization_id"`
	MemberID       *uuid.UUID      `db:"member_id" json:"member_id,omitempty"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	PeriodMonths   int             `db:"period_months" json:"period_months"`
	Status         string          `db:"status" json:"status"`
	DueDate        time.Time       `db:"due_date" json:"due_date"`
	PaidAt         *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	CreatedBy      uuid.UUID       `db:"created_by" json:"created_by"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`

	// Read model
	MemberCode *string `db:"member_code" json:"member_code,omitempty"`
}

func (i *Invoice) IsPaid() bool { return i.Status == StatusPaid }

// InvoiceLine is one invoice to create. MemberID is optional.
type InvoiceLine struct {
	MemberID     *uuid.UUID      `json:"member_id"`
	Amount       decimal.Decimal `json:"amount" validate:"dgte0"`
	PeriodMonths int             `json:"period_months" validate:"min=1,max=120"`
}

type CreateInput struct {
	Lines []InvoiceLine `json:"lines" validate:"min=1,dive"`
}
