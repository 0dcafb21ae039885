package organization

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/apperr"
)

var prefixPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]{0,15}$`)

type Service struct {
	orgs Repository
}

func NewService(orgs Repository) *Service {
	return &Service{orgs: orgs}
}

// CreateOrganization seeds a tenant. Member codes for it start with
// codePrefix, or DefaultCodePrefix when empty.
func (s *Service) CreateOrganization(ctx context.Context, name, codePrefix string) (*Organization, error) {
	verr := &apperr.ValidationError{}
	name = strings.TrimSpace(name)
	if name == "" {
		verr.Add("name", "is required")
	}
	codePrefix = strings.TrimSpace(codePrefix)
	if codePrefix == "" {
		codePrefix = DefaultCodePrefix
	}
	if !prefixPattern.MatchString(codePrefix) {
		verr.Add("code_prefix", "must be 1-16 letters or digits starting with a letter")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	org := &Organization{Name: name, CodePrefix: codePrefix}
	if err := s.orgs.Create(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

func (s *Service) GetOrganization(ctx context.Context, id uuid.UUID) (*Organization, error) {
	return s.orgs.GetByID(ctx, id)
}
