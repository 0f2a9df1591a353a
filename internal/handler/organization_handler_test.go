package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/golabing/console/internal/models"
	"github.com/golabing/console/internal/service"
	appErrors "github.com/golabing/console/pkg/errors"
)

type fakeOrganizationSrv struct {
	filter    models.OrganizationFilter
	deleteErr error
	updated   string
}

func (f *fakeOrganizationSrv) List(_ context.Context, _ models.Actor, filter models.OrganizationFilter) ([]models.Organization, error) {
	f.filter = filter
	return []models.Organization{{ID: "org-1", Name: "Acme"}}, nil
}

func (f *fakeOrganizationSrv) Export(_ context.Context, _ models.Actor, _ models.OrganizationFilter, format string) (*service.ExportFile, error) {
	return &service.ExportFile{Filename: "organizations-20240310." + format, ContentType: "application/pdf", Content: []byte("%PDF-1.3")}, nil
}

func (f *fakeOrganizationSrv) Create(context.Context, models.Actor, models.OrganizationInput) error {
	return nil
}

func (f *fakeOrganizationSrv) Update(_ context.Context, _ models.Actor, orgID string, _ models.OrganizationInput) error {
	f.updated = orgID
	return nil
}

func (f *fakeOrganizationSrv) Delete(context.Context, models.Actor, string) error {
	return f.deleteErr
}

func organizationRouter(srv *fakeOrganizationSrv) http.Handler {
	h := NewOrganizationHandler(srv)
	r := newTestRouter(sessionFor(models.RoleSuperAdmin))
	r.GET("/organizations", h.List)
	r.GET("/organizations/export", h.Export)
	r.POST("/organizations", h.Create)
	r.PUT("/organizations/:id", h.Update)
	r.DELETE("/organizations/:id", h.Delete)
	return r
}

func TestOrganizationHandlerListBindsFilter(t *testing.T) {
	srv := &fakeOrganizationSrv{}

	rec := perform(organizationRouter(srv), http.MethodGet, "/organizations?type=university&subscriptionTier=pro", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "university", srv.filter.Type)
	assert.Equal(t, "pro", srv.filter.SubscriptionTier)
}

func TestOrganizationHandlerExportPDF(t *testing.T) {
	rec := perform(organizationRouter(&fakeOrganizationSrv{}), http.MethodGet, "/organizations/export?format=pdf", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="organizations-20240310.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
}

func TestOrganizationHandlerCreateAndUpdate(t *testing.T) {
	srv := &fakeOrganizationSrv{}
	r := organizationRouter(srv)
	payload := map[string]string{"organization_name": "Acme", "org_email": "ops@acme.io", "org_type": "enterprise"}

	rec := perform(r, http.MethodPost, "/organizations", payload)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = perform(r, http.MethodPut, "/organizations/org-1", payload)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "org-1", srv.updated)
}

func TestOrganizationHandlerDeleteOwnOrganizationConflicts(t *testing.T) {
	srv := &fakeOrganizationSrv{deleteErr: appErrors.Clone(appErrors.ErrConflict, "you cannot delete your own organization")}

	rec := perform(organizationRouter(srv), http.MethodDelete, "/organizations/org-1", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
}
