package models

import (
	"strings"
	"time"
)

// ResourceKind distinguishes the provisioned lab types.
type ResourceKind string

const (
	KindCloudVM      ResourceKind = "cloud_vm"
	KindDatacenterVM ResourceKind = "datacenter_vm"
	KindCluster      ResourceKind = "cluster"
)

// ParseResourceKind accepts the canonical kind names plus their dashed forms.
func ParseResourceKind(raw string) (ResourceKind, bool) {
	k := ResourceKind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_"))
	switch k {
	case KindCloudVM, KindDatacenterVM, KindCluster:
		return k, true
	}
	return "", false
}

// TimeBoxed reports whether conversions of this kind need a schedule and expiry.
func (k ResourceKind) TimeBoxed() bool {
	return k == KindCloudVM || k == KindCluster
}

// Resource statuses.
const (
	StatusRunning    = "running"
	StatusStopped    = "stopped"
	StatusHibernated = "hibernated"
	StatusActive     = "active"
	StatusInactive   = "inactive"
	StatusPending    = "pending"
)

// NormalizeStatus maps a backend status onto the badge vocabulary of kind.
// Anything unrecognised renders as pending.
func NormalizeStatus(kind ResourceKind, raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if kind == KindCloudVM {
		switch s {
		case StatusRunning, StatusStopped, StatusHibernated:
			return s
		}
		return StatusPending
	}
	switch s {
	case StatusActive, StatusInactive:
		return s
	}
	return StatusPending
}

// Credential is one login of a provisioned VM.
type Credential struct {
	ID       string `json:"id"`
	VMName   string `json:"vmName,omitempty"`
	VMID     string `json:"vmId,omitempty"`
	Username string `json:"username"`
	Password string `json:"password"`
	IP       string `json:"ip"`
	Port     string `json:"port"`
	Protocol string `json:"protocol,omitempty"`
	Disabled bool   `json:"disabled"`
}

// MaskedPassword is shown in place of a concealed password.
const MaskedPassword = "••••••••"

// Masked returns a copy with the password concealed.
func (c Credential) Masked() Credential {
	if c.Password != "" {
		c.Password = MaskedPassword
	}
	return c
}

// Resource is a provisioned lab of any kind.
type Resource struct {
	Kind        ResourceKind `json:"kind"`
	ID          string       `json:"id"`
	LabID       string       `json:"lab_id"`
	InstanceID  string       `json:"instance_id,omitempty"`
	AMIID       string       `json:"ami_id,omitempty"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Platform    string       `json:"platform,omitempty"`
	Protocol    string       `json:"protocol,omitempty"`
	Status      string       `json:"status"`
	StartDate   *time.Time   `json:"startdate,omitempty"`
	EndDate     *time.Time   `json:"enddate,omitempty"`
	UserID      string       `json:"user_id,omitempty"`
	AdminID     string       `json:"admin_id,omitempty"`
	OrgID       string       `json:"org_id,omitempty"`
	Software    []string     `json:"software,omitempty"`
	Guides      []string     `json:"guides,omitempty"`
	Credentials []Credential `json:"credentials,omitempty"`
}

// CreatedBy reports whether userID created the resource.
func (r Resource) CreatedBy(userID string) bool {
	if userID == "" {
		return false
	}
	return r.UserID == userID || r.AdminID == userID
}

// ResourceActions are the card actions visible to a user.
type ResourceActions struct {
	Edit   bool `json:"edit"`
	Delete bool `json:"delete"`
	Assign bool `json:"assign"`
}

// ActionsFor resolves the actions user may take on r. Creators and
// edit-capable roles see edit and delete; everyone else with the assign
// capability sees assign only.
func ActionsFor(user *SessionUser, r Resource) ResourceActions {
	if user == nil {
		return ResourceActions{}
	}
	caps := user.Capabilities()
	if r.CreatedBy(user.ID) || caps.CanEdit {
		return ResourceActions{Edit: true, Delete: true}
	}
	return ResourceActions{Assign: caps.CanAssign}
}

// ResourceCard is a resource together with the caller's permitted actions.
type ResourceCard struct {
	Resource
	Actions ResourceActions `json:"actions"`
}

// ConversionRequest promotes a resource into a catalogue entry.
type ConversionRequest struct {
	Name           string   `json:"name" validate:"required"`
	Description    string   `json:"description"`
	Price          float64  `json:"price" validate:"gte=0"`
	Level          string   `json:"level" validate:"required"`
	Category       string   `json:"category"`
	Software       []string `json:"software"`
	OrganizationID string   `json:"organizationId" validate:"required"`
	Instances      int      `json:"numberOfInstances" validate:"gte=1"`
	Days           int      `json:"numberOfDays" validate:"gte=1"`
	HoursPerDay    int      `json:"hoursPerDay" validate:"gte=0,lte=24"`
	ExpiresAt      string   `json:"expiresIn"`
	StartDate      string   `json:"startDate"`
	CredentialIDs  []string `json:"credentialIds"`
}

// ConversionStep names a stage of the convert-to-catalogue sequence.
type ConversionStep string

const (
	StepUpdate      ConversionStep = "update"
	StepAssignOrg   ConversionStep = "assign_organization"
	StepAssignCreds ConversionStep = "assign_credentials"
)

// ConversionResult reports how far a conversion progressed.
type ConversionResult struct {
	Completed []ConversionStep `json:"completed"`
	FailedAt  ConversionStep   `json:"failedAt,omitempty"`
	Message   string           `json:"message,omitempty"`
}

// ConnectRequest asks the backend for a remote-desktop token.
type ConnectRequest struct {
	Protocol string `json:"Protocol" validate:"required"`
	VMID     string `json:"VmId" validate:"required"`
	IP       string `json:"Ip" validate:"required"`
	Username string `json:"userName" validate:"required"`
	Password string `json:"password" validate:"required"`
	Port     string `json:"port" validate:"required"`
}

// ViewerLink is the signed route to the embedded VM viewer.
type ViewerLink struct {
	Path      string    `json:"path"`
	Token     string    `json:"token"`
	Signature string    `json:"sig"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ResourceUpdate edits the descriptive fields and schedule of a resource.
type ResourceUpdate struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
	Software    []string   `json:"software"`
}

// CredentialUpdate rewrites a VM login.
type CredentialUpdate struct {
	VMID     string `json:"vmId"`
	VMName   string `json:"vmName"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	IP       string `json:"ip" validate:"required,ip"`
	Port     string `json:"port" validate:"required,numeric"`
}

// PowerAction is a cloud VM lifecycle operation.
type PowerAction string

const (
	PowerStop      PowerAction = "stop"
	PowerHibernate PowerAction = "hibernate"
)
