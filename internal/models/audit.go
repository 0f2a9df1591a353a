package models

import (
	"encoding/json"
	"time"
)

// Audit actions recorded by the console.
const (
	AuditActionLogin             = "LOGIN"
	AuditActionLogout            = "LOGOUT"
	AuditActionImpersonate       = "IMPERSONATE"
	AuditActionResetRole         = "RESET_ROLE"
	AuditActionCatalogueCreate   = "CATALOGUE_CREATE"
	AuditActionCatalogueUpdate   = "CATALOGUE_UPDATE"
	AuditActionCatalogueDelete   = "CATALOGUE_DELETE"
	AuditActionCheckout          = "CHECKOUT"
	AuditActionResourceUpdate    = "RESOURCE_UPDATE"
	AuditActionResourceDelete    = "RESOURCE_DELETE"
	AuditActionResourceConvert   = "RESOURCE_CONVERT"
	AuditActionResourcePower     = "RESOURCE_POWER"
	AuditActionCredentialUpdate  = "CREDENTIAL_UPDATE"
	AuditActionUserCreate        = "USER_CREATE"
	AuditActionUserUpdate        = "USER_UPDATE"
	AuditActionUserDelete        = "USER_DELETE"
	AuditActionUserBulkUpload    = "USER_BULK_UPLOAD"
	AuditActionOrganizationWrite = "ORGANIZATION_WRITE"
	AuditActionExport            = "EXPORT"
)

// AuditLog is one row of console_audit_logs.
type AuditLog struct {
	ID            string          `db:"id" json:"id"`
	ActorID       string          `db:"actor_id" json:"actor_id"`
	ActorEmail    string          `db:"actor_email" json:"actor_email"`
	ActorRole     string          `db:"actor_role" json:"actor_role"`
	Impersonating bool            `db:"impersonating" json:"impersonating"`
	Action        string          `db:"action" json:"action"`
	Resource      string          `db:"resource" json:"resource"`
	ResourceID    *string         `db:"resource_id" json:"resource_id,omitempty"`
	Details       json.RawMessage `db:"details" json:"details,omitempty"`
	IPAddress     string          `db:"ip_address" json:"ip_address"`
	UserAgent     string          `db:"user_agent" json:"user_agent"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// AuditFilter narrows audit log queries.
type AuditFilter struct {
	ActorID  string `form:"actorId"`
	Action   string `form:"action"`
	Resource string `form:"resource"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}
