package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/golabing/console/internal/models"
	appErrors "github.com/golabing/console/pkg/errors"
)

const (
	catalogueCacheKey     = "catalogue:all"
	catalogueCachePattern = "catalogue:*"
)

type catalogueStore interface {
	ListAll(ctx context.Context, creds []models.BackendCookie) ([]models.CatalogueEntry, error)
	Create(ctx context.Context, creds []models.BackendCookie, payload interface{}) error
	Update(ctx context.Context, creds []models.BackendCookie, payload interface{}) error
	Delete(ctx context.Context, creds []models.BackendCookie, id string) error
}

// CatalogueService serves the lab catalogue and its admin mutations.
type CatalogueService struct {
	repo      catalogueStore
	cache     *CacheService
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCatalogueService constructs a CatalogueService.
func NewCatalogueService(repo catalogueStore, cache *CacheService, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *CatalogueService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CatalogueService{repo: repo, cache: cache, audit: audit, validator: validate, logger: logger}
}

// FetchAll returns every catalogue entry, from cache when possible. The
// boolean reports a cache hit.
func (s *CatalogueService) FetchAll(ctx context.Context, actor models.Actor) ([]models.CatalogueEntry, bool, error) {
	if s.cache.Enabled() {
		var cached []models.CatalogueEntry
		hit, err := s.cache.Get(ctx, catalogueCacheKey, &cached)
		if err != nil {
			s.logger.Warn("catalogue cache read failed", zap.Error(err))
		}
		if hit {
			return cached, true, nil
		}
	}

	entries, err := s.repo.ListAll(ctx, actor.Credentials)
	if err != nil {
		return nil, false, err
	}

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, catalogueCacheKey, entries, 0); err != nil {
			s.logger.Warn("catalogue cache write failed", zap.Error(err))
		}
	}
	return entries, false, nil
}

// List returns the filtered storefront listing.
func (s *CatalogueService) List(ctx context.Context, actor models.Actor, filter models.CatalogueFilter) ([]models.CatalogueEntry, bool, error) {
	entries, hit, err := s.FetchAll(ctx, actor)
	if err != nil {
		return nil, false, err
	}
	return models.FilterCatalogue(entries, filter), hit, nil
}

// Get returns a single entry by id or lab id.
func (s *CatalogueService) Get(ctx context.Context, actor models.Actor, id string) (*models.CatalogueEntry, error) {
	entries, _, err := s.FetchAll(ctx, actor)
	if err != nil {
		return nil, err
	}
	if entry := findCatalogueEntry(entries, id); entry != nil {
		return entry, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "catalogue entry not found")
}

// Create adds a catalogue entry and returns the refreshed catalogue.
func (s *CatalogueService) Create(ctx context.Context, actor models.Actor, input models.CatalogueInput) ([]models.CatalogueEntry, error) {
	if !actor.Capabilities().CanManageCatalogue {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot manage the catalogue")
	}
	if err := s.validateInput(input); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, actor.Credentials, cataloguePayload("", input, actor.UserID())); err != nil {
		return nil, err
	}
	s.record(actor, models.AuditActionCatalogueCreate, "", input)
	return s.refresh(ctx, actor)
}

// Update edits an entry the actor may modify and returns the refreshed catalogue.
func (s *CatalogueService) Update(ctx context.Context, actor models.Actor, id string, input models.CatalogueInput) ([]models.CatalogueEntry, error) {
	entry, err := s.authorize(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.validateInput(input); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, actor.Credentials, cataloguePayload(entry.ID, input, entry.AdminID)); err != nil {
		return nil, err
	}
	s.record(actor, models.AuditActionCatalogueUpdate, entry.ID, input)
	return s.refresh(ctx, actor)
}

// Delete removes an entry the actor may modify and returns the refreshed catalogue.
func (s *CatalogueService) Delete(ctx context.Context, actor models.Actor, id string) ([]models.CatalogueEntry, error) {
	entry, err := s.authorize(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, actor.Credentials, entry.ID); err != nil {
		return nil, err
	}
	s.record(actor, models.AuditActionCatalogueDelete, entry.ID, map[string]string{"title": entry.DisplayName()})
	return s.refresh(ctx, actor)
}

func (s *CatalogueService) authorize(ctx context.Context, actor models.Actor, id string) (*models.CatalogueEntry, error) {
	if !actor.Capabilities().CanManageCatalogue {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot manage the catalogue")
	}
	entry, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !models.CanModifyCatalogue(actor.User, *entry) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only change catalogue entries you created")
	}
	return entry, nil
}

func (s *CatalogueService) validateInput(input models.CatalogueInput) error {
	if err := s.validator.Struct(input); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid catalogue entry")
	}
	if !models.ValidLevel(input.Level) {
		return appErrors.Clone(appErrors.ErrValidation, "level must be one of "+strings.Join(models.CatalogueLevels, ", "))
	}
	return nil
}

// refresh drops cached listings and re-reads the catalogue.
func (s *CatalogueService) refresh(ctx context.Context, actor models.Actor) ([]models.CatalogueEntry, error) {
	if s.cache.Enabled() {
		if err := s.cache.Invalidate(ctx, catalogueCachePattern); err != nil {
			s.logger.Warn("catalogue cache invalidation failed", zap.Error(err))
		}
	}
	entries, _, err := s.FetchAll(ctx, actor)
	return entries, err
}

func (s *CatalogueService) record(actor models.Actor, action, id string, details interface{}) {
	if s.audit != nil {
		s.audit.Record(actor, action, "catalogue", id, details)
	}
}

func cataloguePayload(id string, input models.CatalogueInput, adminID string) map[string]interface{} {
	payload := map[string]interface{}{
		"title":       input.Title,
		"name":        input.Title,
		"description": input.Description,
		"provider":    input.Provider,
		"duration":    input.Duration,
		"level":       strings.ToLower(input.Level),
		"category":    input.Category,
		"price":       input.Price,
		"isFree":      input.IsFree,
		"software":    input.Software,
		"admin_id":    adminID,
	}
	if id != "" {
		payload["id"] = id
	}
	return payload
}

func findCatalogueEntry(entries []models.CatalogueEntry, id string) *models.CatalogueEntry {
	for i := range entries {
		if entries[i].ID == id || entries[i].LabKey() == id {
			return &entries[i]
		}
	}
	return nil
}
