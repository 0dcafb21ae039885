package receipts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/domain/coverage"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/domain/members"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/domain/organization"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/domain/requests"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/auth"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/db"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/filestore"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/metrics"
)

// RequestSource loads requests with the caller's visibility rules and
// stores their cached totals.
type RequestSource interface {
	GetRequest(ctx context.Context, who auth.Identity, id uuid.UUID) (*requests.Request, error)
	RecomputeTotals(ctx context.Context, orgID, requestID uuid.UUID, split coverage.Split) error
}

type MemberLookup interface {
	GetMember(ctx context.Context, orgID, id uuid.UUID) (*members.Member, error)
}

type OrgLookup interface {
	GetOrganization(ctx context.Context, id uuid.UUID) (*organization.Organization, error)
}

type Service struct {
	receipts Repository
	requests RequestSource
	members  MemberLookup
	orgs     OrgLookup
	files    filestore.Store
	tx       db.Transactor
	currency string
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, reqs RequestSource, m MemberLookup, orgs OrgLookup, files filestore.Store,
	tx db.Transactor, currency string, logger zerolog.Logger) *Service {
	return &Service{
		receipts: repo,
		requests: reqs,
		members:  m,
		orgs:     orgs,
		files:    files,
		tx:       tx,
		currency: currency,
		logger:   logger.With().Str("component", "receipts").Logger(),
		now:      time.Now,
	}
}

// Generate renders a receipt for the request's approved items, stores the
// PDF and records a Receipt. Pending and reverted items are not billed.
// With regen the request's cached totals are rewritten from the same
// approved-only split.
func (s *Service) Generate(ctx context.Context, who auth.Identity, requestID uuid.UUID, regen bool) (rc *Receipt, err error) {
	defer func() {
		metrics.ReceiptsGenerated.WithLabelValues(metrics.Result(err)).Inc()
	}()

	req, err := s.requests.GetRequest(ctx, who, requestID)
	if err != nil {
		return nil, err
	}
	member, err := s.members.GetMember(ctx, who.OrgID, req.MemberID)
	if err != nil {
		return nil, err
	}
	org, err := s.orgs.GetOrganization(ctx, who.OrgID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	split := coverage.Compute(req.ApprovedLines(), member.CoveragePercent)
	doc := Document{
		OrganizationName: org.Name,
		Title:            title(req.Kind),
		RequestCode:      req.Code,
		Kind:             string(req.Kind),
		MemberCode:       member.Code,
		MemberName:       member.Name,
		CoveragePercent:  coverage.ClampPercent(member.CoveragePercent),
		Date:             now,
		GeneratedBy:      who.Role + " " + who.UserID.String(),
		Currency:         s.currency,
		Split:            split,
	}
	for _, it := range req.Items {
		if it.Status != requests.ItemApproved || it.UnitPrice == nil {
			continue
		}
		doc.Lines = append(doc.Lines, DocLine{
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitCents: coverage.UnitCents(*it.UnitPrice),
		})
	}

	pdf, err := Render(doc)
	if err != nil {
		return nil, err
	}
	name := filestore.OrgName(org.ID, fmt.Sprintf("receipt-%s-%d.pdf", req.Code, now.Unix()))
	url, err := s.files.Save(ctx, name, pdf)
	if err != nil {
		return nil, fmt.Errorf("store receipt: %w", err)
	}

	rc = &Receipt{
		OrganizationID:    who.OrgID,
		RequestID:         req.ID,
		FileURL:           url,
		GeneratedBy:       who.UserID,
		TotalCents:        split.TotalCents,
		InsurerShareCents: split.InsurerShareCents,
		MemberShareCents:  split.MemberShareCents,
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.receipts.Create(ctx, rc); err != nil {
			return err
		}
		if regen {
			return s.requests.RecomputeTotals(ctx, who.OrgID, req.ID, split)
		}
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Str("file", name).Msg("receipt file stored but not recorded")
		return nil, err
	}

	s.logger.Info().Str("org_id", who.OrgID.String()).Str("request", req.Code).
		Str("split", split.String()).Bool("regen", regen).Msg("receipt generated")
	return rc, nil
}

func (s *Service) ListReceipts(ctx context.Context, who auth.Identity, requestID uuid.UUID) ([]*Receipt, error) {
	if _, err := s.requests.GetRequest(ctx, who, requestID); err != nil {
		return nil, err
	}
	return s.receipts.ListByRequest(ctx, who.OrgID, requestID)
}

func title(k requests.Kind) string {
	if k == requests.KindTreatment {
		return "Treatment receipt"
	}
	return "Pharmacy receipt"
}
