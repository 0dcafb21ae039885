package requests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/domain/coverage"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/domain/members"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/apperr"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/auth"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/db"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/metrics"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/search"
)

// codeAttempts bounds retries when a generated request code collides.
const codeAttempts = 3

// MemberLookup resolves live members of an organization.
type MemberLookup interface {
	GetMember(ctx context.Context, orgID, id uuid.UUID) (*members.Member, error)
}

type Service struct {
	requests RequestRepository
	items    ItemRepository
	members  MemberLookup
	tx       db.Transactor
	logger   zerolog.Logger
	now      func() time.Time
	newCode  func(Kind) string
}

func NewService(reqs RequestRepository, items ItemRepository, m MemberLookup, tx db.Transactor, logger zerolog.Logger) *Service {
	return &Service{
		requests: reqs,
		items:    items,
		members:  m,
		tx:       tx,
		logger:   logger.With().Str("component", "requests").Logger(),
		now:      time.Now,
		newCode:  NewCode,
	}
}

// NewCode returns PH- or TR- followed by eight upper-case hex digits.
func NewCode(k Kind) string {
	return k.CodePrefix() + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// CreateRequest stores a request and its items in one transaction.
// Pharmacy users may only file pharmacy requests and hospital users only
// treatment requests.
func (s *Service) CreateRequest(ctx context.Context, who auth.Identity, in CreateInput) (*Request, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}
	if err := checkKindRole(who, in.Kind); err != nil {
		return nil, err
	}
	if _, err := s.members.GetMember(ctx, who.OrgID, in.MemberID); err != nil {
		return nil, err
	}

	var req *Request
	var err error
	for attempt := 0; attempt < codeAttempts; attempt++ {
		req = &Request{
			OrganizationID: who.OrgID,
			MemberID:       in.MemberID,
			CreatorID:      who.UserID,
			Kind:           in.Kind,
			Code:           s.newCode(in.Kind),
			Note:           in.Note,
		}
		err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
			if err := s.requests.Create(ctx, req); err != nil {
				return err
			}
			req.Items = make([]*Item, 0, len(in.Items))
			for i, ii := range in.Items {
				it := &Item{
					RequestID: req.ID,
					Name:      strings.TrimSpace(ii.Name),
					Quantity:  ii.Quantity,
					Status:    ItemPending,
					Position:  i,
				}
				if err := s.items.Create(ctx, it); err != nil {
					return err
				}
				req.Items = append(req.Items, it)
			}
			return nil
		})
		if !errors.Is(err, apperr.ErrConflict) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("org_id", who.OrgID.String()).Str("code", req.Code).
		Str("kind", string(req.Kind)).Int("items", len(req.Items)).Msg("request created")
	return req, nil
}

// GetRequest returns a request of the caller's organization. Non-staff
// callers only see requests they created.
func (s *Service) GetRequest(ctx context.Context, who auth.Identity, id uuid.UUID) (*Request, error) {
	req, err := s.requests.GetByID(ctx, who.OrgID, id)
	if err != nil {
		return nil, err
	}
	if err := canEdit(who, req); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *Service) ListRequests(ctx context.Context, who auth.Identity, preds []search.Predicate, sort string, limit, offset int) ([]*Request, int, error) {
	if !who.IsStaff() {
		own := make([]search.Predicate, 0, len(preds)+1)
		for _, p := range preds {
			if p.Field != "creator_id" {
				own = append(own, p)
			}
		}
		preds = append(own, search.Predicate{Field: "creator_id", Op: search.OpEq, Value: who.UserID.String()})
	}
	return s.requests.List(ctx, who.OrgID, preds, sort, limit, offset)
}

// UpdateItems reconciles the request's items with desired in one
// transaction. Entries with an id update that item in place, entries
// without one create a pending item, and items missing from desired are
// deleted. Ids that do not belong to the request fail the whole call
// before anything is written. Unchanged items are not written.
func (s *Service) UpdateItems(ctx context.Context, who auth.Identity, requestID uuid.UUID, desired []ItemInput) (*Request, error) {
	if err := validateItems(desired, true); err != nil {
		return nil, err
	}

	var out *Request
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		req, err := s.requests.GetByID(ctx, who.OrgID, requestID)
		if err != nil {
			return err
		}
		if err := canEdit(who, req); err != nil {
			return err
		}

		verr := &apperr.ValidationError{}
		keep := make(map[uuid.UUID]bool, len(desired))
		for i, d := range desired {
			if d.ID == nil {
				continue
			}
			if req.Item(*d.ID) == nil {
				verr.Add(fmt.Sprintf("items[%d].id", i), "item does not belong to this request")
			}
			keep[*d.ID] = true
		}
		if err := verr.OrNil(); err != nil {
			return err
		}

		for _, it := range req.Items {
			if keep[it.ID] {
				continue
			}
			if err := s.items.Delete(ctx, req.ID, it.ID); err != nil {
				return err
			}
		}
		for i, d := range desired {
			name := strings.TrimSpace(d.Name)
			if d.ID == nil {
				it := &Item{RequestID: req.ID, Name: name, Quantity: d.Quantity, Status: ItemPending, Position: i}
				if err := s.items.Create(ctx, it); err != nil {
					return err
				}
				continue
			}
			cur := req.Item(*d.ID)
			if cur.Name == name && cur.Quantity == d.Quantity && cur.Position == i {
				continue
			}
			next := *cur
			next.Name, next.Quantity, next.Position = name, d.Quantity, i
			if err := s.items.CompareAndSwap(ctx, &next, cur.Version); err != nil {
				return err
			}
		}

		out, err = s.requests.GetByID(ctx, who.OrgID, requestID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteRequest removes the request and, by cascade, its items.
func (s *Service) DeleteRequest(ctx context.Context, who auth.Identity, id uuid.UUID) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		req, err := s.requests.GetByID(ctx, who.OrgID, id)
		if err != nil {
			return err
		}
		if err := canEdit(who, req); err != nil {
			return err
		}
		return s.requests.Delete(ctx, who.OrgID, id)
	})
}

func (s *Service) DeleteItem(ctx context.Context, who auth.Identity, requestID, itemID uuid.UUID) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		req, err := s.requests.GetByID(ctx, who.OrgID, requestID)
		if err != nil {
			return err
		}
		if err := canEdit(who, req); err != nil {
			return err
		}
		if req.Item(itemID) == nil {
			return apperr.NotFound("item")
		}
		return s.items.Delete(ctx, requestID, itemID)
	})
}

// TransitionItem approves or reverts one item. Only staff may act, and only
// the approver may revert an approval. The write is a compare-and-swap on
// the item version, so of two racing approvals exactly one wins and the
// other gets ErrConflict.
func (s *Service) TransitionItem(ctx context.Context, who auth.Identity, requestID, itemID uuid.UUID, action Action, price *decimal.Decimal) (item *Item, err error) {
	defer func() {
		metrics.ItemTransitions.WithLabelValues(string(action), metrics.Result(err)).Inc()
	}()

	if !who.IsStaff() {
		return nil, apperr.Forbidden("only staff may approve or revert items")
	}
	req, err := s.requests.GetByID(ctx, who.OrgID, requestID)
	if err != nil {
		return nil, err
	}
	cur := req.Item(itemID)
	if cur == nil {
		return nil, apperr.NotFound("item")
	}
	if action == ActionRevert && cur.Status == ItemApproved &&
		(cur.ApproverID == nil || *cur.ApproverID != who.UserID) {
		return nil, apperr.Forbidden("only the approver may revert this item")
	}

	next := *cur
	if err := Transition(&next, action, price, who.UserID, s.now()); err != nil {
		return nil, err
	}
	if err := s.items.CompareAndSwap(ctx, &next, cur.Version); err != nil {
		return nil, err
	}

	s.logger.Info().Str("org_id", who.OrgID.String()).Str("request", req.Code).
		Str("item_id", itemID.String()).Str("action", string(action)).
		Str("by", who.UserID.String()).Msg("item transitioned")
	return &next, nil
}

// RecomputeTotals stores split as the request's cached totals.
func (s *Service) RecomputeTotals(ctx context.Context, orgID, requestID uuid.UUID, split coverage.Split) error {
	return s.requests.UpdateTotals(ctx, orgID, requestID, split)
}

func canEdit(who auth.Identity, req *Request) error {
	if who.IsStaff() || req.CreatorID == who.UserID {
		return nil
	}
	return apperr.Forbidden("request belongs to another user")
}

func checkKindRole(who auth.Identity, k Kind) error {
	switch who.Role {
	case auth.RolePharmacy:
		if k != KindPharmacy {
			return apperr.Forbidden("pharmacy users may only create pharmacy requests")
		}
	case auth.RoleHospital:
		if k != KindTreatment {
			return apperr.Forbidden("hospital users may only create treatment requests")
		}
	}
	return nil
}

func validateCreate(in CreateInput) error {
	verr := &apperr.ValidationError{}
	if in.MemberID == uuid.Nil {
		verr.Add("member_id", "is required")
	}
	if !in.Kind.Valid() {
		verr.Add("kind", "must be one of: pharmacy, treatment")
	}
	if len(in.Items) == 0 {
		verr.Add("items", "must contain at least 1 entries")
	}
	if err := validateItems(in.Items, false); err != nil {
		var ie *apperr.ValidationError
		if errors.As(err, &ie) {
			for k, v := range ie.Fields {
				verr.Add(k, v)
			}
		}
	}
	return verr.OrNil()
}

func validateItems(items []ItemInput, allowIDs bool) error {
	verr := &apperr.ValidationError{}
	seen := make(map[uuid.UUID]bool)
	for i, it := range items {
		if strings.TrimSpace(it.Name) == "" {
			verr.Add(fmt.Sprintf("items[%d].name", i), "is required")
		}
		if it.Quantity < 1 {
			verr.Add(fmt.Sprintf("items[%d].quantity", i), "must be at least 1")
		}
		if it.ID == nil {
			continue
		}
		if !allowIDs {
			verr.Add(fmt.Sprintf("items[%d].id", i), "must be empty for a new request")
			continue
		}
		if seen[*it.ID] {
			verr.Add(fmt.Sprintf("items[%d].id", i), "duplicate item")
		}
		seen[*it.ID] = true
	}
	return verr.OrNil()
}
