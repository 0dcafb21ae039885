package members

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/domain/organization"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/apperr"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/auth"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/db"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/filestore"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/search"
)

// OrgLookup resolves the organization a member code is numbered under.
type OrgLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*organization.Organization, error)
}

type Service struct {
	members    MemberRepository
	categories CategoryRepository
	documents  DocumentRepository
	orgs       OrgLookup
	files      filestore.Store
	tx         db.Transactor
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(m MemberRepository, c CategoryRepository, d DocumentRepository, orgs OrgLookup, files filestore.Store,
	tx db.Transactor, logger zerolog.Logger) *Service {
	return &Service{
		members:    m,
		categories: c,
		documents:  d,
		orgs:       orgs,
		files:      files,
		tx:         tx,
		logger:     logger.With().Str("component", "members").Logger(),
		now:        time.Now,
	}
}

// -- Members --

// CreateMember registers a primary member numbered after the organization's
// highest existing code. New members stay inactive until a subscription is
// invoiced.
func (s *Service) CreateMember(ctx context.Context, who auth.Identity, in MemberInput) (*Member, error) {
	m := &Member{
		OrganizationID: who.OrgID,
		CategoryID:     in.CategoryID,
		Name:           strings.TrimSpace(in.Name),
		Phone:          in.Phone,
		Status:         StatusInactive,
	}
	if m.Name == "" {
		return nil, apperr.Validation("name", "is required")
	}
	if err := checkDocuments(in.Documents); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, who.OrgID, in.CategoryID); err != nil {
		return nil, err
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		org, err := s.orgs.GetByID(ctx, who.OrgID)
		if err != nil {
			return err
		}
		n, err := s.members.NextPrimaryNumber(ctx, who.OrgID, org.CodePrefix)
		if err != nil {
			return err
		}
		m.Code = PrimaryCode(org.CodePrefix, n)
		if err := s.members.Create(ctx, m); err != nil {
			return err
		}
		return s.attach(ctx, who, m, in.Documents)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("org_id", who.OrgID.String()).Str("code", m.Code).
		Str("created_by", who.UserID.String()).Msg("member created")
	return s.reload(ctx, m)
}

// CreateDependent registers a dependent under a live primary member. The
// dependent starts with the parent's subscription window, status and
// category unless a category is given.
func (s *Service) CreateDependent(ctx context.Context, who auth.Identity, parentID uuid.UUID, in MemberInput) (*Member, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("name", "is required")
	}
	if err := checkDocuments(in.Documents); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, who.OrgID, in.CategoryID); err != nil {
		return nil, err
	}

	var dep *Member
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		parent, err := s.GetMember(ctx, who.OrgID, parentID)
		if err != nil {
			return err
		}
		if parent.IsDependent() {
			return apperr.Validation("parent_id", "a dependent cannot have dependents")
		}
		n, err := s.members.NextDependentNumber(ctx, who.OrgID, parent)
		if err != nil {
			return err
		}
		categoryID := parent.CategoryID
		if in.CategoryID != nil {
			categoryID = in.CategoryID
		}
		dep = &Member{
			OrganizationID:    who.OrgID,
			Code:              DependentCode(parent.Code, n),
			ParentID:          &parent.ID,
			CategoryID:        categoryID,
			Name:              name,
			Phone:             in.Phone,
			EndOfSubscription: parent.EndOfSubscription,
			Status:            parent.Status,
		}
		if err := s.members.Create(ctx, dep); err != nil {
			return err
		}
		return s.attach(ctx, who, dep, in.Documents)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("org_id", who.OrgID.String()).Str("code", dep.Code).
		Str("created_by", who.UserID.String()).Msg("dependent created")
	return s.reload(ctx, dep)
}

// GetMember returns a live member of orgID. Deleted members and members of
// other organizations are NotFound.
func (s *Service) GetMember(ctx context.Context, orgID, id uuid.UUID) (*Member, error) {
	m, err := s.members.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if m.IsDeleted() {
		return nil, apperr.NotFound("member")
	}
	return m, nil
}

func (s *Service) ListMembers(ctx context.Context, orgID uuid.UUID, preds []search.Predicate, sort string, limit, offset int) ([]*Member, int, error) {
	return s.members.List(ctx, orgID, preds, sort, limit, offset)
}

func (s *Service) ListDependents(ctx context.Context, orgID, parentID uuid.UUID) ([]*Member, error) {
	if _, err := s.GetMember(ctx, orgID, parentID); err != nil {
		return nil, err
	}
	return s.members.ListDependents(ctx, orgID, parentID)
}

func (s *Service) UpdateMember(ctx context.Context, who auth.Identity, id uuid.UUID, in MemberUpdate) (*Member, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("name", "is required")
	}
	m, err := s.GetMember(ctx, who.OrgID, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, who.OrgID, in.CategoryID); err != nil {
		return nil, err
	}
	m.Name = name
	m.Phone = in.Phone
	m.CategoryID = in.CategoryID
	if err := s.members.Update(ctx, m); err != nil {
		return nil, err
	}
	return s.reload(ctx, m)
}

// DeleteMember soft-deletes the member; a primary takes its dependents with it.
func (s *Service) DeleteMember(ctx context.Context, who auth.Identity, id uuid.UUID) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.GetMember(ctx, who.OrgID, id); err != nil {
			return err
		}
		return s.members.SoftDelete(ctx, who.OrgID, id, s.now().UTC())
	})
}

// ExtendSubscription is the one place subscription windows move. The member
// with memberCode and every member whose code starts with memberCode+"/"
// get end_of_subscription = now + months and status active. Deleted members
// are left alone. Callers own the transaction.
func (s *Service) ExtendSubscription(ctx context.Context, orgID uuid.UUID, memberCode string, months int, now time.Time) (int64, error) {
	if months < 1 {
		return 0, apperr.Validation("period_months", "must be at least 1")
	}
	if memberCode == "" {
		return 0, apperr.Validation("member_code", "is required")
	}
	until := now.UTC().AddDate(0, months, 0)
	n, err := s.members.ExtendSubscription(ctx, orgID, memberCode, until)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Str("org_id", orgID.String()).Str("code", memberCode).
		Int("months", months).Int64("members", n).Time("until", until).Msg("subscription extended")
	return n, nil
}

// DeactivateExpired flips active members whose subscription ended before now.
func (s *Service) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.members.DeactivateExpired(ctx, now.UTC())
}

func (s *Service) reload(ctx context.Context, m *Member) (*Member, error) {
	out, err := s.members.GetByID(ctx, m.OrganizationID, m.ID)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) checkCategory(ctx context.Context, orgID uuid.UUID, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	if _, err := s.categories.GetByID(ctx, orgID, *id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Validation("category_id", "unknown category")
		}
		return err
	}
	return nil
}

// -- Documents --

// AddDocument stores one more file for a live member.
func (s *Service) AddDocument(ctx context.Context, who auth.Identity, memberID uuid.UUID, in DocumentInput) (*Document, error) {
	if err := checkDocuments([]DocumentInput{in}); err != nil {
		return nil, err
	}
	var docs []*Document
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		m, err := s.GetMember(ctx, who.OrgID, memberID)
		if err != nil {
			return err
		}
		docs, err = s.store(ctx, who, m, []DocumentInput{in})
		return err
	})
	if err != nil {
		return nil, err
	}
	return docs[0], nil
}

func (s *Service) ListDocuments(ctx context.Context, orgID, memberID uuid.UUID) ([]*Document, error) {
	if _, err := s.GetMember(ctx, orgID, memberID); err != nil {
		return nil, err
	}
	return s.documents.ListByMember(ctx, orgID, memberID)
}

func (s *Service) attach(ctx context.Context, who auth.Identity, m *Member, in []DocumentInput) error {
	_, err := s.store(ctx, who, m, in)
	return err
}

// store saves each file then records it. Runs inside the caller's
// transaction; a failed row leaves the saved file orphaned, never the reverse.
func (s *Service) store(ctx context.Context, who auth.Identity, m *Member, in []DocumentInput) ([]*Document, error) {
	stamp := s.now().UTC().Unix()
	code := strings.ReplaceAll(m.Code, "/", "-")
	docs := make([]*Document, 0, len(in))
	for i, d := range in {
		name := filestore.OrgName(m.OrganizationID, fmt.Sprintf("member-%s-%d-%d-%s", code, stamp, i, d.Name))
		url, err := s.files.Save(ctx, name, d.Content)
		switch {
		case errors.Is(err, filestore.ErrInvalidName):
			return nil, apperr.Validation(fmt.Sprintf("documents[%d].name", i), "invalid file name")
		case errors.Is(err, filestore.ErrFileTooLarge):
			return nil, apperr.Validation(fmt.Sprintf("documents[%d].content", i), "exceeds maximum file size")
		case err != nil:
			return nil, fmt.Errorf("save document %q: %w", d.Name, err)
		}
		doc := &Document{
			OrganizationID: m.OrganizationID,
			MemberID:       m.ID,
			Name:           d.Name,
			FileURL:        url,
			UploadedBy:     who.UserID,
		}
		if err := s.documents.Create(ctx, doc); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if len(docs) > 0 {
		s.logger.Info().Str("org_id", m.OrganizationID.String()).Str("code", m.Code).
			Int("documents", len(docs)).Msg("member documents stored")
	}
	return docs, nil
}

// maxDocumentName keeps OrgName(org, "member-<code>-<unix>-<i>-<name>")
// within the file store's 255 byte limit for any member code.
const maxDocumentName = 120

func checkDocuments(in []DocumentInput) error {
	verr := &apperr.ValidationError{}
	for i, d := range in {
		switch {
		case len(d.Name) > maxDocumentName:
			verr.Add(fmt.Sprintf("documents[%d].name", i), fmt.Sprintf("at most %d bytes", maxDocumentName))
		case strings.TrimSpace(d.Name) == "":
			verr.Add(fmt.Sprintf("documents[%d].name", i), "invalid file name")
		default:
			if _, err := filestore.SanitizeName(d.Name); err != nil {
				verr.Add(fmt.Sprintf("documents[%d].name", i), "invalid file name")
			}
		}
		switch {
		case len(d.Content) == 0:
			verr.Add(fmt.Sprintf("documents[%d].content", i), "is required")
		case len(d.Content) > filestore.MaxFileSize:
			verr.Add(fmt.Sprintf("documents[%d].content", i), "exceeds maximum file size")
		}
	}
	return verr.OrNil()
}

// -- Categories --

func (s *Service) CreateCategory(ctx context.Context, who auth.Identity, in CategoryInput) (*Category, error) {
	if err := validateCategory(in); err != nil {
		return nil, err
	}
	c := &Category{
		OrganizationID:  who.OrgID,
		Name:            strings.TrimSpace(in.Name),
		CoveragePercent: in.CoveragePercent,
		Price:           in.Price,
	}
	if err := s.categories.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) GetCategory(ctx context.Context, orgID, id uuid.UUID) (*Category, error) {
	return s.categories.GetByID(ctx, orgID, id)
}

func (s *Service) ListCategories(ctx context.Context, orgID uuid.UUID) ([]*Category, error) {
	return s.categories.List(ctx, orgID)
}

func (s *Service) UpdateCategory(ctx context.Context, who auth.Identity, id uuid.UUID, in CategoryInput) (*Category, error) {
	if err := validateCategory(in); err != nil {
		return nil, err
	}
	c, err := s.categories.GetByID(ctx, who.OrgID, id)
	if err != nil {
		return nil, err
	}
	c.Name = strings.TrimSpace(in.Name)
	c.CoveragePercent = in.CoveragePercent
	c.Price = in.Price
	if err := s.categories.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCategory removes the category; its members become uncategorized.
func (s *Service) DeleteCategory(ctx context.Context, who auth.Identity, id uuid.UUID) error {
	return s.categories.Delete(ctx, who.OrgID, id)
}

func validateCategory(in CategoryInput) error {
	verr := &apperr.ValidationError{}
	if strings.TrimSpace(in.Name) == "" {
		verr.Add("name", "is required")
	}
	if in.CoveragePercent.IsNegative() || in.CoveragePercent.GreaterThan(hundred) {
		verr.Add("coverage_percent", "must be between 0 and 100")
	}
	if in.Price.IsNegative() {
		verr.Add("price", "must not be negative")
	}
	return verr.OrNil()
}
