package repository

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/golabing/console/internal/models"
)

// ResourceRepository wraps the backend endpoints for provisioned labs.
type ResourceRepository struct {
	client *BackendClient
}

// NewResourceRepository constructs a resource repository.
func NewResourceRepository(client *BackendClient) *ResourceRepository {
	return &ResourceRepository{client: client}
}

// ResourceScope selects which listing a caller is entitled to.
type ResourceScope struct {
	UserID     string
	OrgID      string
	Privileged bool
}

// List returns the resources of kind visible under scope.
func (r *ResourceRepository) List(ctx context.Context, creds []models.BackendCookie, kind models.ResourceKind, scope ResourceScope) ([]models.Resource, error) {
	var req *BackendRequest
	switch kind {
	case models.KindCloudVM:
		req = r.client.Post("lab_ms/getLabsConfigured").JSON(map[string]string{"admin_id": scope.UserID})
	case models.KindDatacenterVM:
		if scope.Privileged {
			req = r.client.Post("lab_ms/getSingleVmDatacenterLabs").JSON(map[string]string{"userId": scope.UserID})
		} else {
			req = r.client.Post("lab_ms/getOrgAssignedSingleVMDatacenterLab").
				JSON(map[string]string{"orgId": scope.OrgID, "created_by": scope.UserID})
		}
	case models.KindCluster:
		if scope.Privileged {
			req = r.client.Post("vmcluster_ms/getClusterLabs").JSON(map[string]string{"userId": scope.UserID})
		} else {
			req = r.client.Post("vmcluster_ms/getOrglabs").
				JSON(map[string]string{"orgId": scope.OrgID, "admin_id": scope.UserID})
		}
	default:
		return nil, nil
	}

	var out struct {
		Data []rawResource `json:"data"`
	}
	if err := req.Cookies(creds).Do(ctx, &out); err != nil {
		return nil, err
	}

	resources := make([]models.Resource, 0, len(out.Data))
	for _, raw := range out.Data {
		resources = append(resources, raw.toModel(kind))
	}
	return resources, nil
}

// Credentials lists the VM logins of a datacenter VM or cluster.
func (r *ResourceRepository) Credentials(ctx context.Context, creds []models.BackendCookie, kind models.ResourceKind, labID string) ([]models.Credential, error) {
	var req *BackendRequest
	switch kind {
	case models.KindDatacenterVM:
		req = r.client.Post("lab_ms/getDatacenterLabCreds").JSON(map[string]string{"labId": labID})
	case models.KindCluster:
		req = r.client.Post("vmcluster_ms/getClusterLabDetails").JSON(map[string]string{"labId": labID})
	default:
		return []models.Credential{}, nil
	}

	var out struct {
		Data []rawCredential `json:"data"`
	}
	if err := req.Cookies(creds).Do(ctx, &out); err != nil {
		return nil, err
	}
	result := make([]models.Credential, 0, len(out.Data))
	for _, raw := range out.Data {
		result = append(result, raw.toModel())
	}
	return result, nil
}

// UpdateCluster sends the cluster edit form.
func (r *ResourceRepository) UpdateCluster(ctx context.Context, creds []models.BackendCookie, fields map[string]string) error {
	return r.client.Post("vmcluster_ms/updateClusterLab").Cookies(creds).Multipart(fields).Do(ctx, nil)
}

// UpdateLab edits a cloud or datacenter VM lab.
func (r *ResourceRepository) UpdateLab(ctx context.Context, creds []models.BackendCookie, payload interface{}) error {
	return r.client.Post("lab_ms/updateLab").Cookies(creds).JSON(payload).Do(ctx, nil)
}

// DeleteCluster hard-deletes a cluster lab.
func (r *ResourceRepository) DeleteCluster(ctx context.Context, creds []models.BackendCookie, labID string) error {
	return r.client.Delete("vmcluster_ms/deleteClusterLab", labID).Cookies(creds).Do(ctx, nil)
}

// RemoveClusterFromOrganization detaches a cluster from an organization without deleting it.
func (r *ResourceRepository) RemoveClusterFromOrganization(ctx context.Context, creds []models.BackendCookie, labID, orgID, adminID string) error {
	return r.client.Post("vmcluster_ms/deleteFromOrganization").
		Cookies(creds).
		JSON(map[string]string{"labId": labID, "orgId": orgID, "adminId": adminID}).
		Do(ctx, nil)
}

// DeleteDatacenterLab hard-deletes a datacenter VM lab.
func (r *ResourceRepository) DeleteDatacenterLab(ctx context.Context, creds []models.BackendCookie, labID string) error {
	return r.client.Delete("lab_ms/deleteSingleVmDatacenterLab", labID).Cookies(creds).Do(ctx, nil)
}

// ToggleCredential enables or disables a VM login.
func (r *ResourceRepository) ToggleCredential(ctx context.Context, creds []models.BackendCookie, kind models.ResourceKind, credentialID string, disable bool) error {
	route := "vmcluster_ms/updateClusterVmCredentials"
	if kind == models.KindDatacenterVM {
		route = "lab_ms/updateDatacenterVmCredentials"
	}
	return r.client.Post(route).
		Cookies(creds).
		JSON(map[string]interface{}{"id": credentialID, "disable": disable}).
		Do(ctx, nil)
}

// EditCredential rewrites a VM login.
func (r *ResourceRepository) EditCredential(ctx context.Context, creds []models.BackendCookie, kind models.ResourceKind, vmID string, c models.Credential) error {
	if kind == models.KindDatacenterVM {
		return r.client.Post("lab_ms/updateDatacenterUser").
			Cookies(creds).
			JSON(map[string]string{
				"vmId": vmID, "userId": c.ID, "username": c.Username,
				"password": c.Password, "ip": c.IP, "port": c.Port,
			}).
			Do(ctx, nil)
	}
	return r.client.Post("vmcluster_ms/editClusterVmCredentials").
		Cookies(creds).
		JSON(map[string]string{
			"id": c.ID, "vmName": c.VMName, "username": c.Username,
			"password": c.Password, "ip": c.IP, "port": c.Port,
		}).
		Do(ctx, nil)
}

// Connect exchanges VM credentials for a remote-desktop token.
func (r *ResourceRepository) Connect(ctx context.Context, creds []models.BackendCookie, req models.ConnectRequest) (string, error) {
	var out struct {
		Token  string `json:"token"`
		Result struct {
			Token string `json:"token"`
		} `json:"result"`
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := r.client.Post("lab_ms/connectToDatacenterVm").Cookies(creds).JSON(req).Do(ctx, &out); err != nil {
		return "", err
	}
	for _, token := range []string{out.Token, out.Result.Token, out.Data.Token} {
		if token != "" {
			return token, nil
		}
	}
	return "", nil
}

// StopInstance powers off a cloud VM and marks the lab as not running.
func (r *ResourceRepository) StopInstance(ctx context.Context, creds []models.BackendCookie, instanceID, labID string) error {
	if err := r.client.Post("stopInstance").
		Cookies(creds).
		JSON(map[string]string{"instance_id": instanceID}).
		Do(ctx, nil); err != nil {
		return err
	}
	return r.client.Post("updateawsInstance").
		Cookies(creds).
		JSON(map[string]interface{}{"lab_id": labID, "state": false}).
		Do(ctx, nil)
}

// HibernateInstance hibernates a cloud VM.
func (r *ResourceRepository) HibernateInstance(ctx context.Context, creds []models.BackendCookie, instanceID, labID string) error {
	return r.client.Post("hibernateInstance").
		Cookies(creds).
		JSON(map[string]string{"instance_id": instanceID, "lab_id": labID}).
		Do(ctx, nil)
}

// DeleteCloudVM terminates a cloud VM and its image.
func (r *ResourceRepository) DeleteCloudVM(ctx context.Context, creds []models.BackendCookie, labID, instanceID, amiID string) error {
	return r.client.Post("deletesupervm").
		Cookies(creds).
		JSON(map[string]string{"id": labID, "instance_id": instanceID, "ami_id": amiID}).
		Do(ctx, nil)
}

// ConvertToCatalogue publishes the resource as a catalogue entry.
func (r *ResourceRepository) ConvertToCatalogue(ctx context.Context, creds []models.BackendCookie, kind models.ResourceKind, res models.Resource, req models.ConversionRequest) error {
	payload := map[string]interface{}{
		"vmId":              res.ID,
		"labId":             res.LabID,
		"name":              req.Name,
		"description":       req.Description,
		"price":             req.Price,
		"level":             req.Level,
		"category":          req.Category,
		"software":          req.Software,
		"numberOfInstances": req.Instances,
		"numberOfDays":      req.Days,
		"hoursPerDay":       req.HoursPerDay,
		"expiresIn":         req.ExpiresAt,
	}
	if kind == models.KindCloudVM {
		payload["amiId"] = res.AMIID
	}
	route := "lab_ms/convertToCatalogue"
	if kind == models.KindCluster {
		route = "vmcluster_ms/convertToCatalogue"
	}
	return r.client.Post(route).Cookies(creds).JSON(payload).Do(ctx, nil)
}

// AssignToOrganization grants an organization access to the resource.
func (r *ResourceRepository) AssignToOrganization(ctx context.Context, creds []models.BackendCookie, kind models.ResourceKind, res models.Resource, orgID, assignedBy, startDate string) error {
	switch kind {
	case models.KindCloudVM:
		return r.client.Post("lab_ms/batchAssignment").
			Cookies(creds).
			JSON(map[string]string{"lab_id": res.LabID, "org_id": orgID, "admin_id": assignedBy, "configured_by": assignedBy}).
			Do(ctx, nil)
	case models.KindDatacenterVM:
		return r.client.Post("lab_ms/singleVMDatacenterLabOrgAssignment").
			Cookies(creds).
			JSON(map[string]string{"labId": res.LabID, "orgId": orgID, "admin_id": assignedBy, "assignedBy": assignedBy, "startDate": startDate, "endDate": formatDate(res.EndDate)}).
			Do(ctx, nil)
	default:
		return r.client.Post("vmcluster_ms/assignToOrganization").
			Cookies(creds).
			JSON(map[string]string{"labId": res.LabID, "orgId": orgID, "admin_id": assignedBy, "assignedBy": assignedBy, "startDate": startDate, "endDate": formatDate(res.EndDate)}).
			Do(ctx, nil)
	}
}

// AssignCredentials hands the selected VM logins to the organization.
func (r *ResourceRepository) AssignCredentials(ctx context.Context, creds []models.BackendCookie, kind models.ResourceKind, labID, orgID string, credentialIDs []string) error {
	route := "vmcluster_ms/assignCredentialsToOrganization"
	if kind == models.KindDatacenterVM {
		route = "lab_ms/assignDatacenterCredsToOrg"
	}
	return r.client.Post(route).
		Cookies(creds).
		JSON(map[string]interface{}{"labId": labID, "orgId": orgID, "credentialIds": credentialIDs}).
		Do(ctx, nil)
}

type rawResource struct {
	ID          string          `json:"id"`
	LabID       string          `json:"lab_id"`
	LegacyLabID string          `json:"labid"`
	Title       string          `json:"title"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Platform    string          `json:"platform"`
	Protocol    string          `json:"protocol"`
	Status      string          `json:"status"`
	State       *bool           `json:"isrunning"`
	StartDate   string          `json:"startdate"`
	EndDate     string          `json:"enddate"`
	UserID      string          `json:"user_id"`
	AdminID     string          `json:"admin_id"`
	OrgID       string          `json:"org_id"`
	InstanceID  string          `json:"instance_id"`
	AMIID       string          `json:"ami_id"`
	Software    json.RawMessage `json:"software"`
	Guide       json.RawMessage `json:"labguide"`
	Credentials []rawCredential `json:"userscredentials"`
}

func (raw rawResource) toModel(kind models.ResourceKind) models.Resource {
	labID := raw.LabID
	if labID == "" {
		labID = raw.LegacyLabID
	}
	title := raw.Title
	if title == "" {
		title = raw.Name
	}
	status := raw.Status
	if status == "" && raw.State != nil && kind == models.KindCloudVM {
		status = models.StatusStopped
		if *raw.State {
			status = models.StatusRunning
		}
	}
	res := models.Resource{
		Kind:        kind,
		ID:          raw.ID,
		LabID:       labID,
		InstanceID:  raw.InstanceID,
		AMIID:       raw.AMIID,
		Title:       title,
		Description: raw.Description,
		Platform:    raw.Platform,
		Protocol:    raw.Protocol,
		Status:      models.NormalizeStatus(kind, status),
		StartDate:   parseDate(raw.StartDate),
		EndDate:     parseDate(raw.EndDate),
		UserID:      raw.UserID,
		AdminID:     raw.AdminID,
		OrgID:       raw.OrgID,
		Software:    stringList(raw.Software),
		Guides:      stringList(raw.Guide),
	}
	for _, c := range raw.Credentials {
		res.Credentials = append(res.Credentials, c.toModel())
	}
	return res
}

type rawCredential struct {
	ID       string        `json:"id"`
	VMName   string        `json:"vmname"`
	VMID     string        `json:"vmid"`
	Username string        `json:"username"`
	Password string        `json:"password"`
	IP       string        `json:"ip"`
	Port     models.Number `json:"port"`
	Protocol string        `json:"protocol"`
	Disabled bool          `json:"disabled"`
}

func (raw rawCredential) toModel() models.Credential {
	port := ""
	if raw.Port > 0 {
		port = strconv.FormatFloat(raw.Port.Float(), 'f', -1, 64)
	}
	return models.Credential{
		ID:       raw.ID,
		VMName:   raw.VMName,
		VMID:     raw.VMID,
		Username: raw.Username,
		Password: raw.Password,
		IP:       raw.IP,
		Port:     port,
		Protocol: raw.Protocol,
		Disabled: raw.Disabled,
	}
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

func parseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// stringList accepts a JSON array of strings, a single string, or a
// comma-separated string.
func stringList(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		parts := strings.Split(single, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return nil
}
