package requests

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/domain/coverage"
)

// Kind distinguishes pharmacy dispensing from hospital treatment requests.
type Kind string

const (
	KindPharmacy  Kind = "pharmacy"
	KindTreatment Kind = "treatment"
)

func (k Kind) Valid() bool { return k == KindPharmacy || k == KindTreatment }

// CodePrefix is the human-facing prefix of request codes of this kind.
func (k Kind) CodePrefix() string {
	if k == KindTreatment {
		return "TR-"
	}
	return "PH-"
}

type ItemStatus string

const (
	ItemPending  ItemStatus = "Pending"
	ItemApproved ItemStatus = "Approved"
	// ItemReverted marks an item whose approval was withdrawn. It can be
	// approved again exactly like a pending item.
	ItemReverted ItemStatus = "Reverted"
)

// Status is projected from item statuses and never stored.
type Status string

const (
	StatusEmpty             Status = "Empty"
	StatusPending           Status = "Pending"
	StatusPartiallyApproved Status = "PartiallyApproved"
	StatusApproved          Status = "Approved"
)

type Item struct {
	ID         uuid.UUID        `db:"id" json:"id"`
	RequestID  uuid.UUID        `db:"request_id" json:"request_id"`
	Name       string           `db:"name" json:"name"`
	Quantity   int              `db:"quantity" json:"quantity"`
	UnitPrice  *decimal.Decimal `db:"unit_price" json:"unit_price"`
	Status     ItemStatus       `db:"status" json:"status"`
	ApproverID *uuid.UUID       `db:"approver_id" json:"approver_id,omitempty"`
	ApprovedAt *time.Time       `db:"approved_at" json:"approved_at,omitempty"`
	Version    int              `db:"version" json:"version"`
	Position   int              `db:"position" json:"position"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// Request is a pharmacy or treatment request for one member. It owns its
// items; deleting it deletes them.
type Request struct {
	ID             uuid.UUID `db:"id" json:"id"`
	OrganizationID uuid.UUID `db:"organization_id" json:"organization_id"`
	MemberID       uuid.UUID `db:"member_id" json:"member_id"`
	CreatorID      uuid.UUID `db:"creator_id" json:"creator_id"`
	Kind           Kind      `db:"kind" json:"kind"`
	Code           string    `db:"code" json:"code"`
	Note           *string   `db:"note" json:"note,omitempty"`

	// Cached totals, written when a receipt is regenerated.
	TotalCents        *int64 `db:"total_cents" json:"total_cents,omitempty"`
	InsurerShareCents *int64 `db:"insurer_share_cents" json:"insurer_share_cents,omitempty"`
	MemberShareCents  *int64 `db:"member_share_cents" json:"member_share_cents,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	Items []*Item `json:"items"`
}

// Status derives the aggregate state from the items.
func (r *Request) Status() Status {
	if len(r.Items) == 0 {
		return StatusEmpty
	}
	approved := 0
	for _, it := range r.Items {
		if it.Status == ItemApproved {
			approved++
		}
	}
	switch approved {
	case 0:
		return StatusPending
	case len(r.Items):
		return StatusApproved
	default:
		return StatusPartiallyApproved
	}
}

// Item returns the item with id, or nil.
func (r *Request) Item(id uuid.UUID) *Item {
	for _, it := range r.Items {
		if it.ID == id {
			return it
		}
	}
	return nil
}

// ApprovedLines returns the priced lines that are billable.
func (r *Request) ApprovedLines() []coverage.Line {
	var lines []coverage.Line
	for _, it := range r.Items {
		if it.Status != ItemApproved || it.UnitPrice == nil {
			continue
		}
		lines = append(lines, coverage.Line{Quantity: it.Quantity, UnitPrice: *it.UnitPrice})
	}
	return lines
}

func (r Request) MarshalJSON() ([]byte, error) {
	type alias Request
	return json.Marshal(struct {
		alias
		Status Status `json:"status"`
	}{alias(r), r.Status()})
}

// -- Inputs --

type ItemInput struct {
	ID       *uuid.UUID `json:"id"`
	Name     string     `json:"name" validate:"required,max=200"`
	Quantity int        `json:"quantity" validate:"min=1"`
}

type CreateInput struct {
	MemberID uuid.UUID   `json:"member_id" validate:"required"`
	Kind     Kind        `json:"kind" validate:"required,oneof=pharmacy treatment"`
	Note     *string     `json:"note" validate:"omitempty,max=1000"`
	Items    []ItemInput `json:"items" validate:"min=1,dive"`
}

type UpdateItemsInput struct {
	Items []ItemInput `json:"items" validate:"dive"`
}

type TransitionInput struct {
	UnitPrice *decimal.Decimal `json:"unit_price"`
}
