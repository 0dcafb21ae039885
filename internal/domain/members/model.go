package members

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Member statuses. Deleted members keep their row and code.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusDeleted  = "Deleted"
)

var hundred = decimal.NewFromInt(100)

// Category sets the cost sharing and subscription price for its members.
type Category struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	OrganizationID  uuid.UUID       `db:"organization_id" json:"organization_id"`
	Name            string          `db:"name" json:"name"`
	CoveragePercent decimal.Decimal `db:"coverage_percent" json:"coverage_percent"`
	Price           decimal.Decimal `db:"price" json:"price"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// Member is a primary member or, when ParentID is set, a dependent whose
// code is the parent's code followed by "/<n>".
type Member struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	OrganizationID    uuid.UUID  `db:"organization_id" json:"organization_id"`
	Code              string     `db:"code" json:"code"`
	ParentID          *uuid.UUID `db:"parent_id" json:"parent_id,omitempty"`
	CategoryID        *uuid.UUID `db:"category_id" json:"category_id,omitempty"`
	Name              string     `db:"name" json:"name"`
	Phone             *string    `db:"phone" json:"phone,omitempty"`
	EndOfSubscription *time.Time `db:"end_of_subscription" json:"end_of_subscription,omitempty"`
	Status            string     `db:"status" json:"status"`
	DeletedAt         *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`

	// Read model, joined from the category.
	CategoryName    *string         `db:"category_name" json:"category_name,omitempty"`
	CoveragePercent decimal.Decimal `db:"coverage_percent" json:"coverage_percent"`
}

func (m *Member) IsDependent() bool { return m.ParentID != nil }

func (m *Member) IsDeleted() bool { return m.Status == StatusDeleted || m.DeletedAt != nil }

// PrimaryCode formats the code of the n-th primary member, e.g. Nadra0007.
func PrimaryCode(prefix string, n int) string {
	return fmt.Sprintf("%s%04d", prefix, n)
}

// DependentCode formats the code of the n-th dependent of parent.
func DependentCode(parent string, n int) string {
	return fmt.Sprintf("%s/%d", parent, n)
}

// codeLen is the length of a code as Postgres left() and substr() count it,
// in characters rather than bytes.
func codeLen(code string) int {
	return utf8.RuneCountInString(code)
}

// SharesRoot reports whether code is root itself or one of its dependents.
// Nadra0001/2 shares Nadra0001; Nadra00010 does not.
func SharesRoot(code, root string) bool {
	return code == root || strings.HasPrefix(code, root+"/")
}

// Document is a file attached to a member, such as an identity scan.
type Document struct {
	ID             uuid.UUID `db:"id" json:"id"`
	OrganizationID uuid.UUID `db:"organization_id" json:"organization_id"`
	MemberID       uuid.UUID `db:"member_id" json:"member_id"`
	Name           string    `db:"name" json:"name"`
	FileURL        string    `db:"file_url" json:"file_url"`
	UploadedBy     uuid.UUID `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// DocumentInput carries one upload. Content is base64 in JSON.
type DocumentInput struct {
	Name    string `json:"name" validate:"required,max=120"`
	Content []byte `json:"content" validate:"required"`
}

// MemberInput is the payload for creating a member or dependent. Documents
// are stored in the same transaction as the member.
type MemberInput struct {
	Name       string          `json:"name" validate:"required,max=200"`
	Phone      *string         `json:"phone" validate:"omitempty,max=32"`
	CategoryID *uuid.UUID      `json:"category_id"`
	Documents  []DocumentInput `json:"documents" validate:"omitempty,max=10,dive"`
}

// MemberUpdate replaces the editable fields of a member.
type MemberUpdate struct {
	Name       string     `json:"name" validate:"required,max=200"`
	Phone      *string    `json:"phone" validate:"omitempty,max=32"`
	CategoryID *uuid.UUID `json:"category_id"`
}

type CategoryInput struct {
	Name            string          `json:"name" validate:"required,max=120"`
	CoveragePercent decimal.Decimal `json:"coverage_percent" validate:"dpercent"`
	Price           decimal.Decimal `json:"price" validate:"dgte0"`
}
