package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/domain/members"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/apperr"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/auth"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/db"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/metrics"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/search"
)

// Subscriptions is the slice of the members service that invoicing drives.
type Subscriptions interface {
	GetMember(ctx context.Context, orgID, id uuid.UUID) (*members.Member, error)
	ExtendSubscription(ctx context.Context, orgID uuid.UUID, memberCode string, months int, now time.Time) (int64, error)
}

type Service struct {
	invoices Repository
	members  Subscriptions
	tx       db.Transactor
	dueDays  int
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, m Subscriptions, tx db.Transactor, dueDays int, logger zerolog.Logger) *Service {
	return &Service{
		invoices: repo,
		members:  m,
		tx:       tx,
		dueDays:  dueDays,
		logger:   logger.With().Str("component", "billing").Logger(),
		now:      time.Now,
	}
}

// CreateInvoices records one invoice per line and extends each invoiced
// member's subscription. Either every line is applied or none is.
func (s *Service) CreateInvoices(ctx context.Context, who auth.Identity, lines []InvoiceLine) ([]*Invoice, error) {
	if len(lines) == 0 {
		return nil, apperr.Validation("lines", "must contain at least 1 entries")
	}
	verr := &apperr.ValidationError{}
	for i, l := range lines {
		if l.PeriodMonths < 1 {
			verr.Add(fmt.Sprintf("lines[%d].period_months", i), "must be at least 1")
		}
		if l.Amount.IsNegative() {
			verr.Add(fmt.Sprintf("lines[%d].amount", i), "must not be negative")
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var out []*Invoice
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		out = out[:0]
		for _, l := range lines {
			inv := &Invoice{
				OrganizationID: who.OrgID,
				MemberID:       l.MemberID,
				Amount:         l.Amount,
				PeriodMonths:   l.PeriodMonths,
				Status:         StatusPending,
				DueDate:        now.AddDate(0, 0, s.dueDays),
				CreatedBy:      who.UserID,
			}
			var member *members.Member
			if l.MemberID != nil {
				var err error
				if member, err = s.members.GetMember(ctx, who.OrgID, *l.MemberID); err != nil {
					return err
				}
				inv.MemberCode = &member.Code
			}
			if err := s.invoices.Create(ctx, inv); err != nil {
				return err
			}
			if member != nil {
				if _, err := s.members.ExtendSubscription(ctx, who.OrgID, member.Code, l.PeriodMonths, now); err != nil {
					return err
				}
			}
			out = append(out, inv)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.InvoicesTotal.WithLabelValues("created").Add(float64(len(out)))
	s.logger.Info().Str("org_id", who.OrgID.String()).Int("invoices", len(out)).Msg("invoices created")
	return out, nil
}

// MarkPaid settles an invoice and re-applies its subscription period from
// now. Paying twice is an invalid transition.
func (s *Service) MarkPaid(ctx context.Context, who auth.Identity, id uuid.UUID) (*Invoice, error) {
	now := s.now().UTC()
	var inv *Invoice
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if inv, err = s.invoices.GetByID(ctx, who.OrgID, id); err != nil {
			return err
		}
		if inv.IsPaid() {
			return apperr.InvalidTransition(inv.Status, "pay")
		}
		var member *members.Member
		if inv.MemberID != nil {
			if member, err = s.members.GetMember(ctx, who.OrgID, *inv.MemberID); err != nil {
				return err
			}
		}
		if err := s.invoices.MarkPaid(ctx, who.OrgID, id, now); err != nil {
			return err
		}
		if member != nil {
			if _, err := s.members.ExtendSubscription(ctx, who.OrgID, member.Code, inv.PeriodMonths, now); err != nil {
				return err
			}
		}
		inv, err = s.invoices.GetByID(ctx, who.OrgID, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.InvoicesTotal.WithLabelValues("paid").Inc()
	s.logger.Info().Str("org_id", who.OrgID.String()).Str("invoice", id.String()).Msg("invoice paid")
	return inv, nil
}

func (s *Service) GetInvoice(ctx context.Context, orgID, id uuid.UUID) (*Invoice, error) {
	return s.invoices.GetByID(ctx, orgID, id)
}

func (s *Service) ListInvoices(ctx context.Context, orgID uuid.UUID, preds []search.Predicate, sort string, limit, offset int) ([]*Invoice, int, error) {
	return s.invoices.List(ctx, orgID, preds, sort, limit, offset)
}

// DeleteInvoice removes a Pending invoice. Subscription time already granted
// is left in place.
func (s *Service) DeleteInvoice(ctx context.Context, who auth.Identity, id uuid.UUID) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.invoices.DeletePending(ctx, who.OrgID, id)
	})
	if err != nil {
		return err
	}
	metrics.InvoicesTotal.WithLabelValues("deleted").Inc()
	return nil
}

// MarkOverdue flips Pending invoices past their due date to Overdue across
// all organizations.
func (s *Service) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.invoices.MarkOverdue(ctx, now.UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.InvoicesTotal.WithLabelValues("overdue").Add(float64(n))
		s.logger.Info().Int64("invoices", n).Msg("invoices overdue")
	}
	return n, nil
}
