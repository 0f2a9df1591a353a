package service

import (
	"context"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/golabing/console/internal/models"
	appErrors "github.com/golabing/console/pkg/errors"
	"github.com/golabing/console/pkg/export"
)

// Export formats.
const (
	ExportCSV = "csv"
	ExportPDF = "pdf"
)

type userStore interface {
	ListByOrganization(ctx context.Context, creds []models.BackendCookie, orgID string) ([]models.UserRecord, error)
	ListAll(ctx context.Context, creds []models.BackendCookie) ([]models.UserRecord, error)
	ListOrgAdmins(ctx context.Context, creds []models.BackendCookie, orgID string) ([]models.UserRecord, error)
	Create(ctx context.Context, creds []models.BackendCookie, input models.UserInput, orgID string, createdBy *models.SessionUser) error
	CreateOrgAdmin(ctx context.Context, creds []models.BackendCookie, input models.UserInput, orgID string, createdBy *models.SessionUser) error
	BulkCreate(ctx context.Context, creds []models.BackendCookie, users []models.UserInput, orgID string, createdBy *models.SessionUser) error
	Update(ctx context.Context, creds []models.BackendCookie, userID string, input models.UserInput) error
	UpdateRole(ctx context.Context, creds []models.BackendCookie, userID, role string) error
	UpdateOrganization(ctx context.Context, creds []models.BackendCookie, userID string, assignment models.OrganizationAssignment) error
	AssignLab(ctx context.Context, creds []models.BackendCookie, userID string, assignment models.LabAssignment, assignedBy *models.SessionUser) error
	Delete(ctx context.Context, creds []models.BackendCookie, orgID string, userIDs []string) error
}

type csvCodec interface {
	Render(data export.Dataset) ([]byte, error)
	Read(r io.Reader) (export.Dataset, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportFile is a rendered export ready to download.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

var userExportHeaders = []string{"Name", "Email", "Role", "Organization", "Status", "Created", "Last Active"}

var bulkRoles = map[string]bool{"user": true, "trainer": true, "orgadmin": true, "admin": true}

// UserService manages platform users within the caller's organization.
type UserService struct {
	repo      userStore
	csv       csvCodec
	pdf       pdfRenderer
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userStore, csv csvCodec, pdf pdfRenderer, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *UserService {
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
	return &UserService{repo: repo, csv: csv, pdf: pdf, audit: audit, validator: validate, logger: logger, now: time.Now}
}

// List returns the users visible to the actor, filtered, together with stats
// over the unfiltered list.
func (s *UserService) List(ctx context.Context, actor models.Actor, filter models.UserFilter) (models.UserListing, error) {
	users, err := s.source(ctx, actor)
	if err != nil {
		return models.UserListing{}, err
	}
	return models.UserListing{Users: models.FilterUsers(users, filter), Stats: models.SummariseUsers(users)}, nil
}

// Export renders the filtered user list as CSV or PDF.
func (s *UserService) Export(ctx context.Context, actor models.Actor, filter models.UserFilter, format string) (*ExportFile, error) {
	users, err := s.source(ctx, actor)
	if err != nil {
		return nil, err
	}
	dataset := export.Dataset{Headers: userExportHeaders}
	for _, u := range models.FilterUsers(users, filter) {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Name":         u.Name,
			"Email":        u.Email,
			"Role":         u.Role,
			"Organization": u.Organization,
			"Status":       u.Status,
			"Created":      dateCell(u.CreatedAt),
			"Last Active":  dateCell(u.LastActive),
		})
	}

	stamp := s.now().UTC().Format("20060102")
	switch strings.ToLower(format) {
	case ExportCSV, "":
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export users")
		}
		return &ExportFile{Filename: "users-" + stamp + ".csv", ContentType: "text/csv", Content: content}, nil
	case ExportPDF:
		content, err := s.pdf.Render(dataset, "Users")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export users")
		}
		return &ExportFile{Filename: "users-" + stamp + ".pdf", ContentType: "application/pdf", Content: content}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

// Create adds a user to the actor's organization.
func (s *UserService) Create(ctx context.Context, actor models.Actor, input models.UserInput) error {
	if err := s.checkManager(actor); err != nil {
		return err
	}
	if err := s.validateInput(actor, input, true); err != nil {
		return err
	}
	orgID := s.targetOrg(actor, input.OrgID)
	if err := s.repo.Create(ctx, actor.Credentials, input, orgID, actor.User); err != nil {
		return err
	}
	s.record(actor, models.AuditActionUserCreate, input.Email, map[string]string{"role": input.Role, "organizationId": orgID})
	return nil
}

// Update edits a user. The password is only changed when supplied.
func (s *UserService) Update(ctx context.Context, actor models.Actor, userID string, input models.UserInput) error {
	if err := s.checkManager(actor); err != nil {
		return err
	}
	if err := s.validateInput(actor, input, false); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, actor.Credentials, userID, input); err != nil {
		return err
	}
	s.record(actor, models.AuditActionUserUpdate, userID, map[string]string{"role": input.Role, "status": input.Status})
	return nil
}

// Delete removes users from the actor's organization.
func (s *UserService) Delete(ctx context.Context, actor models.Actor, req models.DeleteUsersRequest) error {
	if err := s.checkManager(actor); err != nil {
		return err
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "select at least one user")
	}
	orgID := actor.User.OrgID
	if err := s.repo.Delete(ctx, actor.Credentials, orgID, req.UserIDs); err != nil {
		return err
	}
	s.record(actor, models.AuditActionUserDelete, strings.Join(req.UserIDs, ","), map[string]interface{}{"organizationId": orgID, "count": len(req.UserIDs)})
	return nil
}

// AssignRole changes a user's role.
func (s *UserService) AssignRole(ctx context.Context, actor models.Actor, userID string, req models.RoleAssignment) error {
	if err := s.checkManager(actor); err != nil {
		return err
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid role")
	}
	if !CanGrantRole(actor.User.Role, req.Role) {
		return appErrors.Clone(appErrors.ErrForbidden, "you cannot grant this role")
	}
	if err := s.repo.UpdateRole(ctx, actor.Credentials, userID, req.Role); err != nil {
		return err
	}
	s.record(actor, models.AuditActionUserUpdate, userID, map[string]string{"role": req.Role})
	return nil
}

// AssignOrganization moves a user to another organization. Superadmin only.
func (s *UserService) AssignOrganization(ctx context.Context, actor models.Actor, userID string, req models.OrganizationAssignment) error {
	if !actor.Capabilities().CanManageOrganizations {
		return appErrors.Clone(appErrors.ErrForbidden, "only superadmins can move users between organizations")
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid organization assignment")
	}
	if err := s.repo.UpdateOrganization(ctx, actor.Credentials, userID, req); err != nil {
		return err
	}
	s.record(actor, models.AuditActionUserUpdate, userID, map[string]string{"organizationId": req.OrgID, "role": req.Role})
	return nil
}

// AssignLab grants a user a lab for a time window.
func (s *UserService) AssignLab(ctx context.Context, actor models.Actor, userID string, req models.LabAssignment) error {
	if !actor.Capabilities().CanAssign {
		return appErrors.Clone(appErrors.ErrForbidden, "you cannot assign labs")
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lab assignment")
	}
	if _, ok := models.ParseResourceKind(string(req.Kind)); !ok {
		return appErrors.Clone(appErrors.ErrValidation, "unknown lab kind")
	}
	if err := s.repo.AssignLab(ctx, actor.Credentials, userID, req, actor.User); err != nil {
		return err
	}
	s.record(actor, models.AuditActionUserUpdate, userID, map[string]string{"labId": req.LabID, "kind": string(req.Kind)})
	return nil
}

// ListOrgAdmins returns the administrators of the actor's organization, or of
// orgID when the actor is a superadmin.
func (s *UserService) ListOrgAdmins(ctx context.Context, actor models.Actor, orgID string) ([]models.UserRecord, error) {
	if err := s.checkManager(actor); err != nil {
		return nil, err
	}
	return s.repo.ListOrgAdmins(ctx, actor.Credentials, s.targetOrg(actor, orgID))
}

// CreateOrgAdmin adds an organization administrator.
func (s *UserService) CreateOrgAdmin(ctx context.Context, actor models.Actor, input models.UserInput) error {
	if err := s.checkManager(actor); err != nil {
		return err
	}
	input.Role = string(models.RoleOrgAdmin)
	if err := s.validateInput(actor, input, true); err != nil {
		return err
	}
	orgID := s.targetOrg(actor, input.OrgID)
	if err := s.repo.CreateOrgAdmin(ctx, actor.Credentials, input, orgID, actor.User); err != nil {
		return err
	}
	s.record(actor, models.AuditActionUserCreate, input.Email, map[string]string{"role": input.Role, "organizationId": orgID})
	return nil
}

// BulkUpload reads a CSV of users and creates them in one backend call. No
// user is created when any row is invalid.
func (s *UserService) BulkUpload(ctx context.Context, actor models.Actor, r io.Reader) (models.BulkUploadResult, error) {
	if err := s.checkManager(actor); err != nil {
		return models.BulkUploadResult{}, err
	}
	data, err := s.csv.Read(r)
	if err != nil {
		return models.BulkUploadResult{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "could not read the uploaded file")
	}
	if len(data.Rows) == 0 {
		return models.BulkUploadResult{}, appErrors.Clone(appErrors.ErrValidation, "the uploaded file has no users")
	}

	users, problems := ParseBulkUsers(data.Rows)
	if len(problems) > 0 {
		return models.BulkUploadResult{Errors: problems}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%d row(s) failed validation", len(problems)))
	}
	for _, u := range users {
		if !CanGrantRole(actor.User.Role, u.Role) {
			return models.BulkUploadResult{}, appErrors.Clone(appErrors.ErrForbidden, "you cannot grant the role "+u.Role)
		}
	}

	orgID := actor.User.OrgID
	if err := s.repo.BulkCreate(ctx, actor.Credentials, users, orgID, actor.User); err != nil {
		return models.BulkUploadResult{}, err
	}
	s.record(actor, models.AuditActionUserBulkUpload, orgID, map[string]int{"count": len(users)})
	return models.BulkUploadResult{Created: len(users)}, nil
}

// ParseBulkUsers validates uploaded rows and converts them to user inputs.
// Row numbers in the returned errors count the header as row 1.
func ParseBulkUsers(rows []map[string]string) ([]models.UserInput, []models.UploadError) {
	var problems []models.UploadError
	users := make([]models.UserInput, 0, len(rows))
	seen := make(map[string]bool, len(rows))

	for i, row := range rows {
		rowNumber := i + 2
		name := strings.TrimSpace(row["name"])
		email := strings.TrimSpace(row["email"])
		role := strings.ToLower(strings.TrimSpace(row["role"]))

		if name == "" {
			problems = append(problems, models.UploadError{Row: rowNumber, Message: "Name is required"})
		}
		switch {
		case email == "":
			problems = append(problems, models.UploadError{Row: rowNumber, Message: "Email is required"})
		case !validEmail(email):
			problems = append(problems, models.UploadError{Row: rowNumber, Message: "Invalid email format"})
		case seen[strings.ToLower(email)]:
			problems = append(problems, models.UploadError{Row: rowNumber, Message: "Duplicate email address"})
		default:
			seen[strings.ToLower(email)] = true
		}
		if role != "" && !bulkRoles[role] {
			problems = append(problems, models.UploadError{Row: rowNumber, Message: "Invalid role"})
		}
		if role == "" {
			role = string(models.RoleUser)
		}
		users = append(users, models.UserInput{
			Name:     name,
			Email:    email,
			Role:     role,
			Password: strings.TrimSpace(row["password"]),
			Status:   strings.ToLower(strings.TrimSpace(row["status"])),
		})
	}
	return users, problems
}

// CanGrantRole reports whether a user acting as granter may hand out role.
// Organization admins may only create users and trainers.
func CanGrantRole(granter models.Role, role string) bool {
	switch granter {
	case models.RoleSuperAdmin, models.RoleOrgSuperAdmin:
		return true
	case models.RoleOrgAdmin:
		r := strings.ToLower(role)
		return r == string(models.RoleUser) || r == string(models.RoleTrainer)
	}
	return false
}

func (s *UserService) source(ctx context.Context, actor models.Actor) ([]models.UserRecord, error) {
	if err := s.checkManager(actor); err != nil {
		return nil, err
	}
	if actor.User.Role == models.RoleSuperAdmin {
		return s.repo.ListAll(ctx, actor.Credentials)
	}
	return s.repo.ListByOrganization(ctx, actor.Credentials, actor.User.OrgID)
}

func (s *UserService) checkManager(actor models.Actor) error {
	if actor.User == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "sign in to manage users")
	}
	if !actor.Capabilities().CanManageUsers {
		return appErrors.Clone(appErrors.ErrForbidden, "you cannot manage users")
	}
	return nil
}

func (s *UserService) validateInput(actor models.Actor, input models.UserInput, creating bool) error {
	if err := s.validator.Struct(input); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user details")
	}
	if creating && input.Password == "" {
		return appErrors.Clone(appErrors.ErrValidation, "password is required")
	}
	if !CanGrantRole(actor.User.Role, input.Role) {
		return appErrors.Clone(appErrors.ErrForbidden, "you cannot grant this role")
	}
	return nil
}

// targetOrg lets superadmins act on any organization; everyone else is pinned
// to their own.
func (s *UserService) targetOrg(actor models.Actor, requested string) string {
	if requested != "" && actor.User.Role == models.RoleSuperAdmin {
		return requested
	}
	return actor.User.OrgID
}

func (s *UserService) record(actor models.Actor, action, resourceID string, details interface{}) {
	if s.audit == nil {
		return
	}
	s.audit.Record(actor, action, "user", resourceID, details)
}

func validEmail(email string) bool {
	if strings.ContainsAny(email, " \t") {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	return at > 0 && strings.Contains(email[at+1:], ".")
}

func dateCell(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
