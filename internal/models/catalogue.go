package models

import "strings"

// Catalogue levels in ascending difficulty.
const (
	LevelFoundation   = "foundation"
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
	LevelExpert       = "expert"
)

// CatalogueLevels lists the accepted catalogue levels.
var CatalogueLevels = []string{LevelFoundation, LevelBeginner, LevelIntermediate, LevelAdvanced, LevelExpert}

// ValidLevel reports whether level belongs to CatalogueLevels.
func ValidLevel(level string) bool {
	level = strings.ToLower(strings.TrimSpace(level))
	for _, l := range CatalogueLevels {
		if l == level {
			return true
		}
	}
	return false
}

// CatalogueEntry is a purchasable lab offering.
type CatalogueEntry struct {
	ID            string   `json:"id"`
	LabID         string   `json:"lab_id,omitempty"`
	LegacyLabID   string   `json:"labid,omitempty"`
	Title         string   `json:"title"`
	Name          string   `json:"name,omitempty"`
	Description   string   `json:"description"`
	Provider      string   `json:"provider"`
	Duration      Number   `json:"duration"`
	Level         string   `json:"level"`
	Category      string   `json:"category"`
	Price         Number   `json:"price"`
	IsFree        bool     `json:"isFree"`
	Rating        Number   `json:"rating"`
	EnrolledCount Number   `json:"enrolledCount"`
	AdminID       string   `json:"admin_id,omitempty"`
	UserID        string   `json:"user_id,omitempty"`
	Software      []string `json:"software,omitempty"`
}

// LabKey returns the lab identifier under whichever field name carries it.
func (e CatalogueEntry) LabKey() string {
	if e.LabID != "" {
		return e.LabID
	}
	if e.LegacyLabID != "" {
		return e.LegacyLabID
	}
	return e.ID
}

// DisplayName prefers the title and falls back to the name.
func (e CatalogueEntry) DisplayName() string {
	if e.Title != "" {
		return e.Title
	}
	return e.Name
}

// OwnedBy reports whether userID created or administers the entry.
func (e CatalogueEntry) OwnedBy(userID string) bool {
	if userID == "" {
		return false
	}
	return e.AdminID == userID || e.UserID == userID
}

// CatalogueFilter narrows the storefront listing. Zero values match everything.
type CatalogueFilter struct {
	Search   string `form:"search"`
	Level    string `form:"level"`
	Category string `form:"category"`
	Provider string `form:"provider"`
	FreeOnly bool   `form:"free"`
}

// FilterCatalogue returns the entries matching f, preserving order.
func FilterCatalogue(entries []CatalogueEntry, f CatalogueFilter) []CatalogueEntry {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	result := make([]CatalogueEntry, 0, len(entries))
	for _, e := range entries {
		if search != "" &&
			!strings.Contains(strings.ToLower(e.DisplayName()), search) &&
			!strings.Contains(strings.ToLower(e.Description), search) {
			continue
		}
		if f.Level != "" && !strings.EqualFold(e.Level, f.Level) {
			continue
		}
		if f.Category != "" && !strings.EqualFold(e.Category, f.Category) {
			continue
		}
		if f.Provider != "" && !strings.EqualFold(e.Provider, f.Provider) {
			continue
		}
		if f.FreeOnly && !e.IsFree {
			continue
		}
		result = append(result, e)
	}
	return result
}

// CatalogueInput is the admin form for creating or editing a catalogue entry.
type CatalogueInput struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description"`
	Provider    string   `json:"provider"`
	Duration    float64  `json:"duration" validate:"gte=0"`
	Level       string   `json:"level" validate:"required"`
	Category    string   `json:"category"`
	Price       float64  `json:"price" validate:"gte=0"`
	IsFree      bool     `json:"isFree"`
	Software    []string `json:"software,omitempty"`
}

// CanModifyCatalogue reports whether user may edit or delete e: superadmins
// may change any entry, other catalogue managers only their own.
func CanModifyCatalogue(user *SessionUser, e CatalogueEntry) bool {
	if user == nil || !user.Capabilities().CanManageCatalogue {
		return false
	}
	return user.Role == RoleSuperAdmin || e.OwnedBy(user.ID)
}
