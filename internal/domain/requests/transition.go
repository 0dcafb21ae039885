package requests

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/apperr"
)

type Action string

// Unit prices are stored as NUMERIC(14,4): four decimal places and values
// below 10^10. Anything the column would round or refuse is rejected here.
const priceScale = 4

var maxUnitPrice = decimal.New(1, 10)

const (
	ActionApprove Action = "approve"
	ActionRevert  Action = "revert"
)

// Transition applies action to item. It checks preconditions first and
// leaves item untouched on any error.
//
//	Pending  --approve--> Approved
//	Reverted --approve--> Approved
//	Approved --revert-->  Reverted
//
// Approval needs a unit price above zero that the price column holds
// exactly; revert clears price and approver.
// Who may act is decided by the caller.
func Transition(item *Item, action Action, price *decimal.Decimal, actor uuid.UUID, now time.Time) error {
	switch action {
	case ActionApprove:
		if item.Status == ItemApproved {
			return apperr.InvalidTransition(string(item.Status), string(action))
		}
		if price == nil || !price.IsPositive() {
			return apperr.Validation("unit_price", "unit price required")
		}
		if !price.Equal(price.Truncate(priceScale)) {
			return apperr.Validation("unit_price", "at most 4 decimal places")
		}
		if price.GreaterThanOrEqual(maxUnitPrice) {
			return apperr.Validation("unit_price", "exceeds the maximum unit price")
		}
		p := price.Truncate(priceScale)
		at := now.UTC()
		item.UnitPrice = &p
		item.ApproverID = &actor
		item.ApprovedAt = &at
		item.Status = ItemApproved
		return nil

	case ActionRevert:
		if item.Status != ItemApproved {
			return apperr.InvalidTransition(string(item.Status), string(action))
		}
		item.UnitPrice = nil
		item.ApproverID = nil
		item.ApprovedAt = nil
		item.Status = ItemReverted
		return nil

	default:
		return apperr.Validation("action", "unknown action")
	}
}
