package models

import (
	"strings"
	"time"
)

// Organization is a tenant of the platform.
type Organization struct {
	ID               string     `json:"id"`
	Name             string     `json:"organization_name"`
	Email            string     `json:"org_email"`
	Type             string     `json:"org_type"`
	Status           string     `json:"status"`
	SubscriptionTier string     `json:"subscription_tier,omitempty"`
	AdminID          string     `json:"org_admin,omitempty"`
	UsersCount       Number     `json:"users_count,omitempty"`
	LabsCount        Number     `json:"labs_count,omitempty"`
	CreatedAt        *time.Time `json:"created_at,omitempty"`
}

// OrganizationFilter narrows an organization listing. Zero values match everything.
type OrganizationFilter struct {
	Search           string     `form:"search"`
	Type             string     `form:"type"`
	Status           string     `form:"status"`
	SubscriptionTier string     `form:"subscriptionTier"`
	From             *time.Time `form:"from" time_format:"2006-01-02"`
	To               *time.Time `form:"to" time_format:"2006-01-02"`
}

// FilterOrganizations is a pure function of the filter and the source list.
func FilterOrganizations(orgs []Organization, f OrganizationFilter) []Organization {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	result := make([]Organization, 0, len(orgs))
	for _, o := range orgs {
		if search != "" &&
			!strings.Contains(strings.ToLower(o.Name), search) &&
			!strings.Contains(strings.ToLower(o.Email), search) {
			continue
		}
		if f.Type != "" && !strings.EqualFold(o.Type, f.Type) {
			continue
		}
		if f.Status != "" && !strings.EqualFold(o.Status, f.Status) {
			continue
		}
		if f.SubscriptionTier != "" && !strings.EqualFold(o.SubscriptionTier, f.SubscriptionTier) {
			continue
		}
		if !withinRange(o.CreatedAt, f.From, f.To) {
			continue
		}
		result = append(result, o)
	}
	return result
}

// OrganizationInput is the create/edit form for an organization.
type OrganizationInput struct {
	Name      string `json:"organization_name" validate:"required"`
	AdminName string `json:"admin_name,omitempty"`
	Email     string `json:"org_email" validate:"required,email"`
	Phone     string `json:"phone_number,omitempty"`
	Address   string `json:"address,omitempty"`
	Website   string `json:"website,omitempty" validate:"omitempty,url"`
	Type      string `json:"org_type" validate:"required"`
}
