package cards

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/domain/members"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/domain/organization"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/auth"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/filestore"
)

type MemberLookup interface {
	GetMember(ctx context.Context, orgID, id uuid.UUID) (*members.Member, error)
}

type OrgLookup interface {
	GetOrganization(ctx context.Context, id uuid.UUID) (*organization.Organization, error)
}

type Service struct {
	cards   Repository
	members MemberLookup
	orgs    OrgLookup
	files   filestore.Store
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(repo Repository, m MemberLookup, orgs OrgLookup, files filestore.Store, logger zerolog.Logger) *Service {
	return &Service{
		cards:   repo,
		members: m,
		orgs:    orgs,
		files:   files,
		logger:  logger.With().Str("component", "cards").Logger(),
		now:     time.Now,
	}
}

// Issue renders a card for the member, stores it and records it.
func (s *Service) Issue(ctx context.Context, who auth.Identity, memberID uuid.UUID) (*Card, error) {
	m, err := s.members.GetMember(ctx, who.OrgID, memberID)
	if err != nil {
		return nil, err
	}
	org, err := s.orgs.GetOrganization(ctx, who.OrgID)
	if err != nil {
		return nil, err
	}

	face := Face{
		OrganizationName: org.Name,
		MemberName:       m.Name,
		Code:             m.Code,
		Status:           m.Status,
		ValidUntil:       m.EndOfSubscription,
	}
	if m.CategoryName != nil {
		face.Category = *m.CategoryName
	}
	if parent, _, ok := strings.Cut(m.Code, "/"); ok {
		face.ParentCode = parent
	}
	png, err := Render(face)
	if err != nil {
		return nil, err
	}

	name := filestore.OrgName(org.ID, fmt.Sprintf("card-%s-%d.png",
		strings.ReplaceAll(m.Code, "/", "-"), s.now().UTC().Unix()))
	url, err := s.files.Save(ctx, name, png)
	if err != nil {
		return nil, fmt.Errorf("store card: %w", err)
	}

	c := &Card{
		OrganizationID: who.OrgID,
		MemberID:       m.ID,
		FileURL:        url,
		IssuedBy:       who.UserID,
	}
	if err := s.cards.Create(ctx, c); err != nil {
		s.logger.Error().Err(err).Str("file", name).Msg("card file stored but not recorded")
		return nil, err
	}
	s.logger.Info().Str("org_id", who.OrgID.String()).Str("code", m.Code).Msg("card issued")
	return c, nil
}

func (s *Service) ListCards(ctx context.Context, orgID, memberID uuid.UUID) ([]*Card, error) {
	if _, err := s.members.GetMember(ctx, orgID, memberID); err != nil {
		return nil, err
	}
	return s.cards.ListByMember(ctx, orgID, memberID)
}
