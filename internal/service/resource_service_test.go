package service

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golabing/console/internal/models"
	"github.com/golabing/console/internal/repository"
	appErrors "github.com/golabing/console/pkg/errors"
	"github.com/golabing/console/pkg/signedlink"
)

type fakeResourceStore struct {
	resources   []models.Resource
	creds       []models.Credential
	calls       []string
	failAt      string
	connectReq  models.ConnectRequest
	lastScope   repository.ResourceScope
	assignedIDs []string
	credsLabID  string
	cluster     map[string]string
}

func (f *fakeResourceStore) call(name string) error {
	f.calls = append(f.calls, name)
	if name == f.failAt {
		return appErrors.Clone(appErrors.ErrUpstreamRejected, name+" rejected")
	}
	return nil
}

func (f *fakeResourceStore) List(_ context.Context, _ []models.BackendCookie, kind models.ResourceKind, scope repository.ResourceScope) ([]models.Resource, error) {
	f.lastScope = scope
	var out []models.Resource
	for _, r := range f.resources {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeResourceStore) Credentials(_ context.Context, _ []models.BackendCookie, _ models.ResourceKind, labID string) ([]models.Credential, error) {
	f.credsLabID = labID
	return append([]models.Credential(nil), f.creds...), nil
}

func (f *fakeResourceStore) UpdateCluster(_ context.Context, _ []models.BackendCookie, fields map[string]string) error {
	f.cluster = fields
	return f.call("update_cluster")
}

func (f *fakeResourceStore) UpdateLab(context.Context, []models.BackendCookie, interface{}) error {
	return f.call("update_lab")
}

func (f *fakeResourceStore) DeleteCluster(context.Context, []models.BackendCookie, string) error {
	return f.call("delete_cluster")
}

func (f *fakeResourceStore) RemoveClusterFromOrganization(context.Context, []models.BackendCookie, string, string, string) error {
	return f.call("remove_cluster")
}

func (f *fakeResourceStore) DeleteDatacenterLab(context.Context, []models.BackendCookie, string) error {
	return f.call("delete_datacenter")
}

func (f *fakeResourceStore) ToggleCredential(context.Context, []models.BackendCookie, models.ResourceKind, string, bool) error {
	return f.call("toggle")
}

func (f *fakeResourceStore) EditCredential(context.Context, []models.BackendCookie, models.ResourceKind, string, models.Credential) error {
	return f.call("edit_credential")
}

func (f *fakeResourceStore) Connect(_ context.Context, _ []models.BackendCookie, req models.ConnectRequest) (string, error) {
	f.connectReq = req
	return "guac-token", f.call("connect")
}

func (f *fakeResourceStore) StopInstance(context.Context, []models.BackendCookie, string, string) error {
	return f.call("stop")
}

func (f *fakeResourceStore) HibernateInstance(context.Context, []models.BackendCookie, string, string) error {
	return f.call("hibernate")
}

func (f *fakeResourceStore) DeleteCloudVM(context.Context, []models.BackendCookie, string, string, string) error {
	return f.call("delete_cloud")
}

func (f *fakeResourceStore) ConvertToCatalogue(context.Context, []models.BackendCookie, models.ResourceKind, models.Resource, models.ConversionRequest) error {
	return f.call(string(models.StepUpdate))
}

func (f *fakeResourceStore) AssignToOrganization(context.Context, []models.BackendCookie, models.ResourceKind, models.Resource, string, string, string) error {
	return f.call(string(models.StepAssignOrg))
}

func (f *fakeResourceStore) AssignCredentials(_ context.Context, _ []models.BackendCookie, _ models.ResourceKind, _, _ string, ids []string) error {
	f.assignedIDs = ids
	return f.call(string(models.StepAssignCreds))
}

func newResourceFixture() (*ResourceService, *fakeResourceStore, *recordedAudit) {
	store := &fakeResourceStore{
		resources: []models.Resource{
			{Kind: models.KindCluster, ID: "r1", LabID: "lab-1", Title: "K8s", AdminID: "creator"},
			{Kind: models.KindDatacenterVM, ID: "r2", LabID: "lab-2", Title: "Windows"},
			{Kind: models.KindCloudVM, ID: "r3", LabID: "lab-3", InstanceID: "i-1", AMIID: "ami-1", UserID: "creator"},
		},
		creds: []models.Credential{
			{ID: "c1", VMID: "vm-1", Username: "admin", Password: "s3cret", IP: "10.0.0.1", Port: "3389"},
			{ID: "c2", VMID: "vm-2", Username: "lab", Password: "other", IP: "10.0.0.2", Port: "22", Protocol: "ssh", Disabled: true},
		},
	}
	audit := &recordedAudit{}
	signer := signedlink.NewSigner("viewer-secret", time.Minute)
	return NewResourceService(store, signer, audit, nil, nil), store, audit
}

func TestResourceListMasksAndGatesActions(t *testing.T) {
	svc, store, _ := newResourceFixture()
	store.resources[0].Credentials = store.creds

	cards, err := svc.List(context.Background(), actorWithRole("u5", models.RoleOrgAdmin), models.KindCluster)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, models.ResourceActions{Assign: true}, cards[0].Actions)
	assert.Equal(t, models.MaskedPassword, cards[0].Credentials[0].Password)
	assert.False(t, store.lastScope.Privileged)

	cards, err = svc.List(context.Background(), actorWithRole("creator", models.RoleTrainer), models.KindCluster)
	require.NoError(t, err)
	assert.Equal(t, models.ResourceActions{Edit: true, Delete: true}, cards[0].Actions)
	assert.Equal(t, "s3cret", store.creds[0].Password)
}

func TestResourceDeleteModes(t *testing.T) {
	svc, store, audit := newResourceFixture()

	require.NoError(t, svc.Delete(context.Background(), actorWithRole("u1", models.RoleSuperAdmin), models.KindCluster, "r1"))
	require.NoError(t, svc.Delete(context.Background(), actorWithRole("u5", models.RoleOrgAdmin), models.KindCluster, "lab-1"))
	err := svc.Delete(context.Background(), actorWithRole("u5", models.RoleOrgAdmin), models.KindDatacenterVM, "r2")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	assert.Equal(t, []string{"delete_cluster", "remove_cluster"}, store.calls)
	assert.Len(t, audit.actions, 2)
}

func TestResourceRevealReturnsSingleRow(t *testing.T) {
	svc, _, _ := newResourceFixture()
	actor := actorWithRole("u1", models.RoleOrgSuperAdmin)

	masked, err := svc.Credentials(context.Background(), actor, models.KindDatacenterVM, "lab-2")
	require.NoError(t, err)
	assert.Equal(t, models.MaskedPassword, masked[0].Password)
	assert.Equal(t, models.MaskedPassword, masked[1].Password)

	cred, err := svc.RevealCredential(context.Background(), actor, models.KindDatacenterVM, "lab-2", "c2")
	require.NoError(t, err)
	assert.Equal(t, "other", cred.Password)

	_, err = svc.RevealCredential(context.Background(), actorWithRole("u9", models.RoleUser), models.KindDatacenterVM, "lab-2", "c2")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCredentialAccessIsLimitedToListedResources(t *testing.T) {
	svc, store, _ := newResourceFixture()
	ctx := context.Background()

	_, err := svc.Credentials(ctx, actorWithRole("u1", models.RoleTrainer), models.KindDatacenterVM, "someone-elses-lab")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.RevealCredential(ctx, actorWithRole("u1", models.RoleTrainer), models.KindDatacenterVM, "someone-elses-lab", "c1")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.Connect(ctx, actorWithRole("u9", models.RoleUser), models.KindDatacenterVM, "someone-elses-lab", "c1")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	assert.Empty(t, store.credsLabID)
	assert.Empty(t, store.calls)
}

func TestCredentialLookupUsesListedLabID(t *testing.T) {
	svc, store, _ := newResourceFixture()

	cred, err := svc.RevealCredential(context.Background(), actorWithRole("u1", models.RoleTrainer), models.KindDatacenterVM, "r2", "c1")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cred.Password)
	assert.Equal(t, "lab-2", store.credsLabID)

	store.resources = nil
	_, err = svc.RevealCredential(context.Background(), actorWithRole("u1", models.RoleSuperAdmin), models.KindDatacenterVM, "lab-2", "c1")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestResourceUpdateClusterEncodesSoftware(t *testing.T) {
	svc, store, audit := newResourceFixture()

	card, err := svc.Update(context.Background(), actorWithRole("creator", models.RoleTrainer), models.KindCluster, "r1", models.ResourceUpdate{
		Title:    "K8s v2",
		Software: []string{"kubectl", "helm"},
	})
	require.NoError(t, err)
	assert.Equal(t, "r1", card.ID)
	assert.Equal(t, []string{"update_cluster"}, store.calls)
	assert.Equal(t, "lab-1", store.cluster["labId"])
	assert.JSONEq(t, `["kubectl","helm"]`, store.cluster["software"])
	assert.Contains(t, audit.actions, models.AuditActionResourceUpdate)

	_, err = svc.Update(context.Background(), actorWithRole("u5", models.RoleOrgAdmin), models.KindCluster, "r1", models.ResourceUpdate{Title: "x"})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestResourceConnectSignsViewerLink(t *testing.T) {
	svc, store, _ := newResourceFixture()

	link, err := svc.Connect(context.Background(), actorWithRole("u1", models.RoleTrainer), models.KindDatacenterVM, "lab-2", "c1")
	require.NoError(t, err)
	assert.Equal(t, "RDP", store.connectReq.Protocol)
	assert.Equal(t, "vm-1", store.connectReq.VMID)
	assert.True(t, strings.HasPrefix(link.Path, ViewerPathPrefix+"vm-1?"))

	parsed, err := url.Parse(link.Path)
	require.NoError(t, err)
	assert.Equal(t, "guac-token", parsed.Query().Get("token"))

	_, err = svc.VerifyViewerLink("vm-1", link.Token, link.Signature)
	require.NoError(t, err)
	_, err = svc.VerifyViewerLink("vm-2", link.Token, link.Signature)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Connect(context.Background(), actorWithRole("u1", models.RoleTrainer), models.KindDatacenterVM, "lab-2", "c2")
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestResourcePowerRequiresEdit(t *testing.T) {
	svc, store, _ := newResourceFixture()

	err := svc.Power(context.Background(), actorWithRole("u5", models.RoleOrgAdmin), "r3", models.PowerStop)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Power(context.Background(), actorWithRole("creator", models.RoleTrainer), "r3", models.PowerHibernate))
	assert.Equal(t, []string{"hibernate"}, store.calls)
}

func validConversion() models.ConversionRequest {
	return models.ConversionRequest{
		Name: "K8s Lab", Price: 10, Level: "intermediate", OrganizationID: "org-1",
		Instances: 2, Days: 3, ExpiresAt: "2026-12-31", CredentialIDs: []string{"c1"},
	}
}

func TestConversionValidation(t *testing.T) {
	svc, store, _ := newResourceFixture()
	actor := actorWithRole("u1", models.RoleSuperAdmin)

	req := validConversion()
	req.ExpiresAt = ""
	_, err := svc.ConvertToCatalogue(context.Background(), actor, models.KindCluster, "r1", req)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.ConvertToCatalogue(context.Background(), actor, models.KindDatacenterVM, "r2", req)
	require.NoError(t, err)

	req = validConversion()
	req.Level = "guru"
	_, err = svc.ConvertToCatalogue(context.Background(), actor, models.KindCluster, "r1", req)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.ConvertToCatalogue(context.Background(), actorWithRole("u5", models.RoleOrgAdmin), models.KindCluster, "r1", validConversion())
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Equal(t, []string{"update", "assign_organization", "assign_credentials"}, store.calls)
}

func TestConversionStopsAtFirstFailure(t *testing.T) {
	svc, store, audit := newResourceFixture()
	store.failAt = string(models.StepAssignOrg)

	result, err := svc.ConvertToCatalogue(context.Background(), actorWithRole("u1", models.RoleSuperAdmin), models.KindCluster, "r1", validConversion())
	require.Error(t, err)
	assert.Equal(t, []models.ConversionStep{models.StepUpdate}, result.Completed)
	assert.Equal(t, models.StepAssignOrg, result.FailedAt)
	assert.Equal(t, "assign_organization rejected", result.Message)
	assert.Equal(t, []string{"update", "assign_organization"}, store.calls)
	assert.Nil(t, store.assignedIDs)
	assert.Empty(t, audit.actions)
}

func TestConversionSkipsCredentialsForCloudVM(t *testing.T) {
	svc, store, _ := newResourceFixture()

	result, err := svc.ConvertToCatalogue(context.Background(), actorWithRole("u1", models.RoleSuperAdmin), models.KindCloudVM, "r3", validConversion())
	require.NoError(t, err)
	assert.Len(t, result.Completed, 3)
	assert.Equal(t, []string{"update", "assign_organization"}, store.calls)
}
