package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/golabing/console/internal/models"
	appErrors "github.com/golabing/console/pkg/errors"
	"github.com/golabing/console/pkg/export"
)

type organizationStore interface {
	List(ctx context.Context, creds []models.BackendCookie) ([]models.Organization, error)
	Create(ctx context.Context, creds []models.BackendCookie, input models.OrganizationInput, adminID string) error
	Update(ctx context.Context, creds []models.BackendCookie, orgID string, input models.OrganizationInput) error
	Delete(ctx context.Context, creds []models.BackendCookie, orgID string) error
}

var organizationExportHeaders = []string{"Name", "Email", "Type", "Status", "Tier", "Users", "Labs", "Created"}

// OrganizationService manages tenants. Every operation is superadmin only.
type OrganizationService struct {
	repo      organizationStore
	csv       csvCodec
	pdf       pdfRenderer
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewOrganizationService constructs an OrganizationService.
func NewOrganizationService(repo organizationStore, csv csvCodec, pdf pdfRenderer, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *OrganizationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &OrganizationService{repo: repo, csv: csv, pdf: pdf, audit: audit, validator: validate, logger: logger, now: time.Now}
}

// List returns the organizations matching filter.
func (s *OrganizationService) List(ctx context.Context, actor models.Actor, filter models.OrganizationFilter) ([]models.Organization, error) {
	orgs, err := s.source(ctx, actor)
	if err != nil {
		return nil, err
	}
	return models.FilterOrganizations(orgs, filter), nil
}

// Export renders the filtered organization list as CSV or PDF.
func (s *OrganizationService) Export(ctx context.Context, actor models.Actor, filter models.OrganizationFilter, format string) (*ExportFile, error) {
	orgs, err := s.List(ctx, actor, filter)
	if err != nil {
		return nil, err
	}
	dataset := export.Dataset{Headers: organizationExportHeaders}
	for _, o := range orgs {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Name":    o.Name,
			"Email":   o.Email,
			"Type":    o.Type,
			"Status":  o.Status,
			"Tier":    o.SubscriptionTier,
			"Users":   strconv.Itoa(o.UsersCount.Int()),
			"Labs":    strconv.Itoa(o.LabsCount.Int()),
			"Created": dateCell(o.CreatedAt),
		})
	}

	stamp := s.now().UTC().Format("20060102")
	switch strings.ToLower(format) {
	case ExportCSV, "":
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export organizations")
		}
		return &ExportFile{Filename: "organizations-" + stamp + ".csv", ContentType: "text/csv", Content: content}, nil
	case ExportPDF:
		content, err := s.pdf.Render(dataset, "Organizations")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export organizations")
		}
		return &ExportFile{Filename: "organizations-" + stamp + ".pdf", ContentType: "application/pdf", Content: content}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

// Create registers an organization.
func (s *OrganizationService) Create(ctx context.Context, actor models.Actor, input models.OrganizationInput) error {
	if err := s.authorize(actor); err != nil {
		return err
	}
	if err := s.validator.Struct(input); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid organization details")
	}
	if err := s.repo.Create(ctx, actor.Credentials, input, actor.UserID()); err != nil {
		return err
	}
	s.record(actor, "", map[string]string{"op": "create", "name": input.Name})
	return nil
}

// Update edits an organization.
func (s *OrganizationService) Update(ctx context.Context, actor models.Actor, orgID string, input models.OrganizationInput) error {
	if err := s.authorize(actor); err != nil {
		return err
	}
	if err := s.validator.Struct(input); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid organization details")
	}
	if err := s.repo.Update(ctx, actor.Credentials, orgID, input); err != nil {
		return err
	}
	s.record(actor, orgID, map[string]string{"op": "update", "name": input.Name})
	return nil
}

// Delete removes an organization.
func (s *OrganizationService) Delete(ctx context.Context, actor models.Actor, orgID string) error {
	if err := s.authorize(actor); err != nil {
		return err
	}
	if strings.TrimSpace(orgID) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "organization id is required")
	}
	if actor.User.WithoutImpersonation().OrgID == orgID {
		return appErrors.Clone(appErrors.ErrConflict, "you cannot delete your own organization")
	}
	if err := s.repo.Delete(ctx, actor.Credentials, orgID); err != nil {
		return err
	}
	s.record(actor, orgID, map[string]string{"op": "delete"})
	return nil
}

func (s *OrganizationService) source(ctx context.Context, actor models.Actor) ([]models.Organization, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, actor.Credentials)
}

func (s *OrganizationService) authorize(actor models.Actor) error {
	if actor.User == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "sign in to manage organizations")
	}
	if !actor.Capabilities().CanManageOrganizations {
		return appErrors.Clone(appErrors.ErrForbidden, "only superadmins can manage organizations")
	}
	return nil
}

func (s *OrganizationService) record(actor models.Actor, orgID string, details interface{}) {
	if s.audit == nil {
		return
	}
	s.audit.Record(actor, models.AuditActionOrganizationWrite, "organization", orgID, details)
}
