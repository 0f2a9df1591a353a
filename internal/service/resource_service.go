package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/golabing/console/internal/models"
	"github.com/golabing/console/internal/repository"
	appErrors "github.com/golabing/console/pkg/errors"
	"github.com/golabing/console/pkg/signedlink"
)

// ViewerPathPrefix is the console route serving the embedded VM viewer.
const ViewerPathPrefix = "/dashboard/labs/vm-session/"

const defaultConnectProtocol = "RDP"

type resourceStore interface {
	List(ctx context.Context, creds []models.BackendCookie, kind models.ResourceKind, scope repository.ResourceScope) ([]models.Resource, error)
	Credentials(ctx context.Context, creds []models.BackendCookie, kind models.ResourceKind, labID string) ([]models.Credential, error)
	UpdateCluster(ctx context.Context, creds []models.BackendCookie, fields map[string]string) error
	UpdateLab(ctx context.Context, creds []models.BackendCookie, payload interface{}) error
	DeleteCluster(ctx context.Context, creds []models.BackendCookie, labID string) error
	RemoveClusterFromOrganization(ctx context.Context, creds []models.BackendCookie, labID, orgID, adminID string) error
	DeleteDatacenterLab(ctx context.Context, creds []models.BackendCookie, labID string) error
	ToggleCredential(ctx context.Context, creds []models.BackendCookie, kind models.ResourceKind, credentialID string, disable bool) error
	EditCredential(ctx context.Context, creds []models.BackendCookie, kind models.ResourceKind, vmID string, c models.Credential) error
	Connect(ctx context.Context, creds []models.BackendCookie, req models.ConnectRequest) (string, error)
	StopInstance(ctx context.Context, creds []models.BackendCookie, instanceID, labID string) error
	HibernateInstance(ctx context.Context, creds []models.BackendCookie, instanceID, labID string) error
	DeleteCloudVM(ctx context.Context, creds []models.BackendCookie, labID, instanceID, amiID string) error
	ConvertToCatalogue(ctx context.Context, creds []models.BackendCookie, kind models.ResourceKind, res models.Resource, req models.ConversionRequest) error
	AssignToOrganization(ctx context.Context, creds []models.BackendCookie, kind models.ResourceKind, res models.Resource, orgID, assignedBy, startDate string) error
	AssignCredentials(ctx context.Context, creds []models.BackendCookie, kind models.ResourceKind, labID, orgID string, credentialIDs []string) error
}

type linkSigner interface {
	Sign(subject, value string) (string, time.Time, error)
	Verify(subject, value, signature string) (time.Time, error)
}

// ResourceService manages provisioned cloud VMs, datacenter VMs and clusters.
type ResourceService struct {
	repo      resourceStore
	signer    linkSigner
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewResourceService constructs a ResourceService.
func NewResourceService(repo resourceStore, signer linkSigner, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *ResourceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ResourceService{repo: repo, signer: signer, audit: audit, validator: validate, logger: logger}
}

// List returns the caller's resources of kind with their permitted actions.
// Credential passwords are masked.
func (s *ResourceService) List(ctx context.Context, actor models.Actor, kind models.ResourceKind) ([]models.ResourceCard, error) {
	resources, err := s.fetch(ctx, actor, kind)
	if err != nil {
		return nil, err
	}
	cards := make([]models.ResourceCard, 0, len(resources))
	for _, res := range resources {
		res.Credentials = maskAll(res.Credentials)
		cards = append(cards, models.ResourceCard{Resource: res, Actions: models.ActionsFor(actor.User, res)})
	}
	return cards, nil
}

// Get returns one resource card by id or lab id.
func (s *ResourceService) Get(ctx context.Context, actor models.Actor, kind models.ResourceKind, id string) (*models.ResourceCard, error) {
	res, err := s.find(ctx, actor, kind, id)
	if err != nil {
		return nil, err
	}
	res.Credentials = maskAll(res.Credentials)
	return &models.ResourceCard{Resource: res, Actions: models.ActionsFor(actor.User, res)}, nil
}

// Update edits a resource. Only callers with the edit action may do so.
func (s *ResourceService) Update(ctx context.Context, actor models.Actor, kind models.ResourceKind, id string, input models.ResourceUpdate) (*models.ResourceCard, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resource update")
	}
	if input.StartDate != nil && input.EndDate != nil && input.EndDate.Before(*input.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must be after start date")
	}
	res, err := s.find(ctx, actor, kind, id)
	if err != nil {
		return nil, err
	}
	if !models.ActionsFor(actor.User, res).Edit {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot edit this resource")
	}

	start, end := formatOptionalDate(input.StartDate), formatOptionalDate(input.EndDate)
	if kind == models.KindCluster {
		var software []byte
		if software, err = json.Marshal(input.Software); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid software list")
		}
		err = s.repo.UpdateCluster(ctx, actor.Credentials, map[string]string{
			"labId":       res.LabID,
			"title":       input.Title,
			"description": input.Description,
			"startDate":   start,
			"endDate":     end,
			"software":    string(software),
		})
	} else {
		err = s.repo.UpdateLab(ctx, actor.Credentials, map[string]interface{}{
			"lab_id":      res.LabID,
			"title":       input.Title,
			"description": input.Description,
			"startdate":   start,
			"enddate":     end,
			"software":    input.Software,
		})
	}
	if err != nil {
		return nil, err
	}
	s.record(actor, models.AuditActionResourceUpdate, kind, res.LabID, input)
	return s.Get(ctx, actor, kind, id)
}

// Delete removes a resource. Creators and privileged roles delete it outright;
// other cluster admins only detach it from their organization.
func (s *ResourceService) Delete(ctx context.Context, actor models.Actor, kind models.ResourceKind, id string) error {
	res, err := s.find(ctx, actor, kind, id)
	if err != nil {
		return err
	}
	actions := models.ActionsFor(actor.User, res)
	mode := "delete"
	switch {
	case actions.Delete && kind == models.KindCluster:
		err = s.repo.DeleteCluster(ctx, actor.Credentials, res.LabID)
	case actions.Delete && kind == models.KindDatacenterVM:
		err = s.repo.DeleteDatacenterLab(ctx, actor.Credentials, res.LabID)
	case actions.Delete && kind == models.KindCloudVM:
		err = s.repo.DeleteCloudVM(ctx, actor.Credentials, res.LabID, res.InstanceID, res.AMIID)
	case kind == models.KindCluster && actions.Assign:
		mode = "remove_from_organization"
		err = s.repo.RemoveClusterFromOrganization(ctx, actor.Credentials, res.LabID, actor.User.OrgID, actor.UserID())
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "you cannot delete this resource")
	}
	if err != nil {
		return err
	}
	s.record(actor, models.AuditActionResourceDelete, kind, res.LabID, map[string]string{"mode": mode})
	return nil
}

// Credentials lists the VM logins of a resource with passwords masked.
func (s *ResourceService) Credentials(ctx context.Context, actor models.Actor, kind models.ResourceKind, labID string) ([]models.Credential, error) {
	creds, err := s.credentials(ctx, actor, kind, labID)
	if err != nil {
		return nil, err
	}
	return maskAll(creds), nil
}

// RevealCredential returns a single login with its password in clear.
func (s *ResourceService) RevealCredential(ctx context.Context, actor models.Actor, kind models.ResourceKind, labID, credentialID string) (*models.Credential, error) {
	res, err := s.find(ctx, actor, kind, labID)
	if err != nil {
		return nil, err
	}
	if actions := models.ActionsFor(actor.User, res); !actions.Assign && !actions.Edit {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot view credentials")
	}
	creds, err := s.repo.Credentials(ctx, actor.Credentials, kind, res.LabID)
	if err != nil {
		return nil, err
	}
	cred := credentialByID(creds, credentialID)
	if cred == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "credential not found")
	}
	return cred, nil
}

// ToggleCredential enables or disables a VM login.
func (s *ResourceService) ToggleCredential(ctx context.Context, actor models.Actor, kind models.ResourceKind, credentialID string, disable bool) error {
	if kind == models.KindCloudVM {
		return appErrors.Clone(appErrors.ErrValidation, "cloud VMs have no managed credentials")
	}
	if !actor.Capabilities().CanEdit {
		return appErrors.Clone(appErrors.ErrForbidden, "you cannot change credentials")
	}
	if err := s.repo.ToggleCredential(ctx, actor.Credentials, kind, credentialID, disable); err != nil {
		return err
	}
	s.record(actor, models.AuditActionCredentialUpdate, kind, credentialID, map[string]bool{"disabled": disable})
	return nil
}

// EditCredential rewrites a VM login.
func (s *ResourceService) EditCredential(ctx context.Context, actor models.Actor, kind models.ResourceKind, credentialID string, input models.CredentialUpdate) error {
	if kind == models.KindCloudVM {
		return appErrors.Clone(appErrors.ErrValidation, "cloud VMs have no managed credentials")
	}
	if !actor.Capabilities().CanEdit {
		return appErrors.Clone(appErrors.ErrForbidden, "you cannot change credentials")
	}
	if err := s.validator.Struct(input); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid credential")
	}
	cred := models.Credential{
		ID:       credentialID,
		VMID:     input.VMID,
		VMName:   input.VMName,
		Username: input.Username,
		Password: input.Password,
		IP:       input.IP,
		Port:     input.Port,
	}
	if err := s.repo.EditCredential(ctx, actor.Credentials, kind, input.VMID, cred); err != nil {
		return err
	}
	s.record(actor, models.AuditActionCredentialUpdate, kind, credentialID, map[string]string{"username": input.Username, "ip": input.IP})
	return nil
}

// Connect exchanges a VM login for a remote-desktop token and returns a
// signed link to the viewer page.
func (s *ResourceService) Connect(ctx context.Context, actor models.Actor, kind models.ResourceKind, labID, credentialID string) (*models.ViewerLink, error) {
	if actor.UserID() == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "sign in to connect")
	}
	creds, err := s.credentials(ctx, actor, kind, labID)
	if err != nil {
		return nil, err
	}
	cred := credentialByID(creds, credentialID)
	if cred == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "credential not found")
	}
	if cred.Disabled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "this login is disabled")
	}

	vmID := cred.VMID
	if vmID == "" {
		vmID = cred.ID
	}
	protocol := cred.Protocol
	if protocol == "" {
		protocol = defaultConnectProtocol
	}
	req := models.ConnectRequest{
		Protocol: strings.ToUpper(protocol),
		VMID:     vmID,
		IP:       cred.IP,
		Username: cred.Username,
		Password: cred.Password,
		Port:     cred.Port,
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "credential is incomplete")
	}

	token, err := s.repo.Connect(ctx, actor.Credentials, req)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, appErrors.Clone(appErrors.ErrUpstream, "no connection token returned")
	}
	return s.ViewerLink(vmID, token)
}

// ViewerLink signs token for vmID and builds the viewer route.
func (s *ResourceService) ViewerLink(vmID, token string) (*models.ViewerLink, error) {
	sig, expiresAt, err := s.signer.Sign(vmID, token)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign viewer link")
	}
	query := url.Values{}
	query.Set("token", token)
	query.Set("sig", sig)
	return &models.ViewerLink{
		Path:      ViewerPathPrefix + url.PathEscape(vmID) + "?" + query.Encode(),
		Token:     token,
		Signature: sig,
		ExpiresAt: expiresAt,
	}, nil
}

// VerifyViewerLink checks a viewer link produced by ViewerLink.
func (s *ResourceService) VerifyViewerLink(vmID, token, sig string) (time.Time, error) {
	expiresAt, err := s.signer.Verify(vmID, token, sig)
	switch {
	case err == nil:
		return expiresAt, nil
	case errors.Is(err, signedlink.ErrExpired):
		return expiresAt, appErrors.Clone(appErrors.ErrSessionExpired, "viewer link expired")
	default:
		return time.Time{}, appErrors.Clone(appErrors.ErrForbidden, "invalid viewer link")
	}
}

// Power stops or hibernates a cloud VM.
func (s *ResourceService) Power(ctx context.Context, actor models.Actor, id string, action models.PowerAction) error {
	res, err := s.find(ctx, actor, models.KindCloudVM, id)
	if err != nil {
		return err
	}
	if !models.ActionsFor(actor.User, res).Edit {
		return appErrors.Clone(appErrors.ErrForbidden, "you cannot control this VM")
	}
	if res.InstanceID == "" {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "VM has no running instance")
	}
	switch action {
	case models.PowerStop:
		err = s.repo.StopInstance(ctx, actor.Credentials, res.InstanceID, res.LabID)
	case models.PowerHibernate:
		err = s.repo.HibernateInstance(ctx, actor.Credentials, res.InstanceID, res.LabID)
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unknown power action")
	}
	if err != nil {
		return err
	}
	s.record(actor, models.AuditActionResourcePower, models.KindCloudVM, res.LabID, map[string]string{"action": string(action)})
	return nil
}

// ConvertToCatalogue publishes a resource as a catalogue entry, assigns it to
// the organization and hands over the selected logins. The steps run in
// order and stop at the first failure; earlier steps are not undone.
func (s *ResourceService) ConvertToCatalogue(ctx context.Context, actor models.Actor, kind models.ResourceKind, id string, req models.ConversionRequest) (models.ConversionResult, error) {
	result := models.ConversionResult{Completed: []models.ConversionStep{}}
	if !actor.Capabilities().CanConvert {
		return result, appErrors.Clone(appErrors.ErrForbidden, "you cannot convert resources")
	}
	if err := ValidateConversion(s.validator, kind, req); err != nil {
		return result, err
	}
	res, err := s.find(ctx, actor, kind, id)
	if err != nil {
		return result, err
	}

	startDate := req.StartDate
	if startDate == "" {
		startDate = time.Now().UTC().Format(time.RFC3339)
	}
	steps := []struct {
		name models.ConversionStep
		run  func() error
	}{
		{models.StepUpdate, func() error {
			return s.repo.ConvertToCatalogue(ctx, actor.Credentials, kind, res, req)
		}},
		{models.StepAssignOrg, func() error {
			return s.repo.AssignToOrganization(ctx, actor.Credentials, kind, res, req.OrganizationID, actor.UserID(), startDate)
		}},
		{models.StepAssignCreds, func() error {
			if kind == models.KindCloudVM || len(req.CredentialIDs) == 0 {
				return nil
			}
			return s.repo.AssignCredentials(ctx, actor.Credentials, kind, res.LabID, req.OrganizationID, req.CredentialIDs)
		}},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			result.FailedAt = step.name
			result.Message = appErrors.FromError(err).Message
			s.logger.Warn("catalogue conversion stopped",
				zap.String("lab_id", res.LabID),
				zap.String("step", string(step.name)),
				zap.Error(err))
			return result, err
		}
		result.Completed = append(result.Completed, step.name)
	}

	s.record(actor, models.AuditActionResourceConvert, kind, res.LabID, map[string]interface{}{
		"name": req.Name, "organizationId": req.OrganizationID, "credentials": len(req.CredentialIDs),
	})
	return result, nil
}

// ValidateConversion checks a conversion request before any backend call.
func ValidateConversion(validate *validator.Validate, kind models.ResourceKind, req models.ConversionRequest) error {
	if err := validate.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid conversion request")
	}
	if !models.ValidLevel(req.Level) {
		return appErrors.Clone(appErrors.ErrValidation, "level must be one of "+strings.Join(models.CatalogueLevels, ", "))
	}
	if kind.TimeBoxed() && strings.TrimSpace(req.ExpiresAt) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "expiry date is required")
	}
	return nil
}

func (s *ResourceService) fetch(ctx context.Context, actor models.Actor, kind models.ResourceKind) ([]models.Resource, error) {
	if actor.User == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "sign in to view resources")
	}
	scope := repository.ResourceScope{
		UserID:     actor.User.ID,
		OrgID:      actor.User.OrgID,
		Privileged: actor.Capabilities().CanEdit,
	}
	return s.repo.List(ctx, actor.Credentials, kind, scope)
}

func (s *ResourceService) find(ctx context.Context, actor models.Actor, kind models.ResourceKind, id string) (models.Resource, error) {
	resources, err := s.fetch(ctx, actor, kind)
	if err != nil {
		return models.Resource{}, err
	}
	for _, res := range resources {
		if res.ID == id || res.LabID == id {
			return res, nil
		}
	}
	return models.Resource{}, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
}

// credentials loads the logins of a resource in the caller's listing.
func (s *ResourceService) credentials(ctx context.Context, actor models.Actor, kind models.ResourceKind, labID string) ([]models.Credential, error) {
	if actor.User == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "sign in to view credentials")
	}
	res, err := s.find(ctx, actor, kind, labID)
	if err != nil {
		return nil, err
	}
	return s.repo.Credentials(ctx, actor.Credentials, kind, res.LabID)
}

func (s *ResourceService) record(actor models.Actor, action string, kind models.ResourceKind, id string, details interface{}) {
	if s.audit == nil {
		return
	}
	s.audit.Record(actor, action, string(kind), id, details)
}

func credentialByID(creds []models.Credential, id string) *models.Credential {
	for i := range creds {
		if creds[i].ID == id {
			c := creds[i]
			return &c
		}
	}
	return nil
}

func maskAll(creds []models.Credential) []models.Credential {
	if creds == nil {
		return nil
	}
	out := make([]models.Credential, len(creds))
	for i, c := range creds {
		out[i] = c.Masked()
	}
	return out
}

func formatOptionalDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
