package models

import (
	"strings"
	"time"
)

// User statuses.
const (
	UserActive   = "active"
	UserInactive = "inactive"
	UserPending  = "pending"
)

// UserRecord is a platform user as listed by the management views.
type UserRecord struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Role         string     `json:"role"`
	Organization string     `json:"organization,omitempty"`
	OrgID        string     `json:"org_id,omitempty"`
	Status       string     `json:"status"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	LastActive   *time.Time `json:"lastActive,omitempty"`
}

// UserFilter narrows a user listing. Zero values match everything.
type UserFilter struct {
	Search string     `form:"search"`
	Role   string     `form:"role"`
	Status string     `form:"status"`
	From   *time.Time `form:"from" time_format:"2006-01-02"`
	To     *time.Time `form:"to" time_format:"2006-01-02"`
}

// FilterUsers is a pure function of the filter and the source list: it
// never depends on a previous result.
func FilterUsers(users []UserRecord, f UserFilter) []UserRecord {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	result := make([]UserRecord, 0, len(users))
	for _, u := range users {
		if search != "" &&
			!strings.Contains(strings.ToLower(u.Name), search) &&
			!strings.Contains(strings.ToLower(u.Email), search) {
			continue
		}
		if f.Role != "" && !strings.EqualFold(u.Role, f.Role) {
			continue
		}
		if f.Status != "" && !strings.EqualFold(u.Status, f.Status) {
			continue
		}
		if !withinRange(u.CreatedAt, f.From, f.To) {
			continue
		}
		result = append(result, u)
	}
	return result
}

// UserStats summarises a user listing.
type UserStats struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Trainers int `json:"trainers"`
}

// SummariseUsers counts totals over users.
func SummariseUsers(users []UserRecord) UserStats {
	stats := UserStats{Total: len(users)}
	for _, u := range users {
		if strings.EqualFold(u.Status, UserActive) {
			stats.Active++
		}
		if strings.EqualFold(u.Role, string(RoleTrainer)) {
			stats.Trainers++
		}
	}
	return stats
}

// withinRange is inclusive on both ends at day granularity. A nil bound is open.
func withinRange(at, from, to *time.Time) bool {
	if from == nil && to == nil {
		return true
	}
	if at == nil {
		return false
	}
	if from != nil && at.Before(startOfDay(*from)) {
		return false
	}
	if to != nil && !at.Before(startOfDay(*to).AddDate(0, 0, 1)) {
		return false
	}
	return true
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// UserInput is the create/edit form for a platform user. Password is
// optional on edit; when present it must be confirmed.
type UserInput struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password,omitempty" validate:"omitempty,min=6"`
	ConfirmPassword string `json:"confirmPassword,omitempty" validate:"eqfield=Password"`
	Role            string `json:"role" validate:"required,oneof=user trainer orgadmin orgsuperadmin admin"`
	Status          string `json:"status,omitempty" validate:"omitempty,oneof=active inactive pending"`
	OrgID           string `json:"organizationId,omitempty"`
}

// RoleAssignment changes a user's role.
type RoleAssignment struct {
	Role string `json:"role" validate:"required,oneof=user trainer orgadmin orgsuperadmin"`
}

// OrganizationAssignment moves a user to another organization.
type OrganizationAssignment struct {
	OrgID string `json:"organizationId" validate:"required"`
	Role  string `json:"role,omitempty" validate:"omitempty,oneof=user trainer orgadmin orgsuperadmin"`
}

// LabAssignment grants a user a time-boxed lab.
type LabAssignment struct {
	Kind      ResourceKind `json:"kind" validate:"required"`
	LabID     string       `json:"labId" validate:"required"`
	StartDate time.Time    `json:"startDate" validate:"required"`
	EndDate   time.Time    `json:"endDate" validate:"required,gtfield=StartDate"`
}

// DeleteUsersRequest removes several users from an organization.
type DeleteUsersRequest struct {
	UserIDs []string `json:"userIds" validate:"required,min=1,dive,required"`
}

// UploadError reports one invalid row of a bulk upload. Row numbers count the
// header as row 1.
type UploadError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// BulkUploadResult is the outcome of a bulk user upload.
type BulkUploadResult struct {
	Created int           `json:"created"`
	Errors  []UploadError `json:"errors,omitempty"`
}

// UserListing is a filtered user list with stats over the unfiltered source.
type UserListing struct {
	Users []UserRecord `json:"users"`
	Stats UserStats    `json:"stats"`
}
