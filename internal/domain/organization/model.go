package organization

import (
	"time"

	"github.com/google/uuid"
)

// DefaultCodePrefix starts member codes when an organization sets none.
const DefaultCodePrefix = "Nadra"

// Organization is the tenant root. Every other row is scoped by its ID.
type Organization struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	CodePrefix string    `db:"code_prefix" json:"code_prefix"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
