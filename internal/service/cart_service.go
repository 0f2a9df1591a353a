package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/golabing/console/internal/models"
	"github.com/golabing/console/internal/repository"
	appErrors "github.com/golabing/console/pkg/errors"
)

const checkoutSessionPlaceholder = "{sessionId}"

type cartStore interface {
	List(ctx context.Context, creds []models.BackendCookie, userID string) ([]models.CartItem, error)
	Add(ctx context.Context, creds []models.BackendCookie, req repository.AddCartItemRequest) error
	Remove(ctx context.Context, creds []models.BackendCookie, itemID string) error
	Clear(ctx context.Context, creds []models.BackendCookie, userID string) error
	Update(ctx context.Context, creds []models.BackendCookie, itemID string, patch models.CartItemPatch) (*models.CartItem, error)
	CreateCheckoutSession(ctx context.Context, creds []models.BackendCookie, userID string, lines []models.CheckoutLine) (string, error)
}

type catalogueSource interface {
	FetchAll(ctx context.Context, actor models.Actor) ([]models.CatalogueEntry, bool, error)
}

type eventPublisher interface {
	Publish(userID, name string, data interface{})
}

// CartOptions configures a CartService.
type CartOptions struct {
	CheckoutRedirect string
	StateSize        int
	StateTTL         time.Duration
}

type cartState struct {
	mu      sync.Mutex
	items   []models.CartItem
	loading bool
	loaded  bool
}

// CartService keeps each user's cart in step with the lab backend.
type CartService struct {
	repo      cartStore
	catalogue catalogueSource
	events    eventPublisher
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	redirect  string

	mu     sync.Mutex
	states *expirable.LRU[string, *cartState]
}

// NewCartService constructs a CartService.
func NewCartService(repo cartStore, catalogue catalogueSource, events eventPublisher, audit auditRecorder, validate *validator.Validate, logger *zap.Logger, opts CartOptions) *CartService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if opts.StateSize <= 0 {
		opts.StateSize = 10000
	}
	if opts.StateTTL <= 0 {
		opts.StateTTL = 30 * time.Minute
	}
	return &CartService{
		repo:      repo,
		catalogue: catalogue,
		events:    events,
		audit:     audit,
		validator: validate,
		logger:    logger,
		redirect:  opts.CheckoutRedirect,
		states:    expirable.NewLRU[string, *cartState](opts.StateSize, nil, opts.StateTTL),
	}
}

func (s *CartService) state(userID string) *cartState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states.Get(userID); ok {
		return st
	}
	st := &cartState{items: []models.CartItem{}}
	s.states.Add(userID, st)
	return st
}

// Snapshot returns the cart as last loaded, without contacting the backend.
func (s *CartService) Snapshot(userID string) models.CartSnapshot {
	st := s.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return snapshotOf(st)
}

// FetchCartItems reloads the actor's cart from the backend, replacing the
// local copy wholesale on success.
func (s *CartService) FetchCartItems(ctx context.Context, actor models.Actor) (models.CartSnapshot, error) {
	userID, err := requireUser(actor)
	if err != nil {
		return models.CartSnapshot{}, err
	}
	st := s.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := s.load(ctx, actor, st); err != nil {
		return snapshotOf(st), err
	}
	return snapshotOf(st), nil
}

// load must be called with st.mu held.
func (s *CartService) load(ctx context.Context, actor models.Actor, st *cartState) error {
	st.loading = true
	defer func() { st.loading = false }()
	items, err := s.repo.List(ctx, actor.Credentials, actor.UserID())
	if err != nil {
		s.logger.Warn("cart fetch failed", zap.String("user_id", actor.UserID()), zap.Error(err))
		return err
	}
	st.items = items
	st.loaded = true
	return nil
}

// AddToCart adds the catalogue entry for labID to the actor's cart. A lab can
// be in the cart at most once.
func (s *CartService) AddToCart(ctx context.Context, actor models.Actor, labID string) (models.CartSnapshot, error) {
	userID, err := requireUser(actor)
	if err != nil {
		return models.CartSnapshot{}, err
	}
	catalogues, _, err := s.catalogue.FetchAll(ctx, actor)
	if err != nil {
		return models.CartSnapshot{}, err
	}
	entry := catalogueFor(labID, catalogues)
	if entry == nil {
		return models.CartSnapshot{}, appErrors.Clone(appErrors.ErrNotFound, "catalogue entry not found")
	}
	st := s.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.loaded {
		if err := s.load(ctx, actor, st); err != nil {
			return snapshotOf(st), err
		}
	}
	labID = entry.LabKey()
	for _, item := range st.items {
		if item.LabID == labID {
			return snapshotOf(st), appErrors.Clone(appErrors.ErrConflict, "this lab is already in your cart")
		}
	}

	err = s.repo.Add(ctx, actor.Credentials, repository.AddCartItemRequest{
		LabID:       labID,
		Name:        entry.DisplayName(),
		Description: entry.Description,
		Duration:    entry.Duration.Float(),
		Price:       entry.Price.Float(),
		Quantity:    1,
		UserID:      userID,
	})
	if err != nil {
		return snapshotOf(st), err
	}
	if err := s.load(ctx, actor, st); err != nil {
		return snapshotOf(st), err
	}
	s.changed(userID, st)
	return snapshotOf(st), nil
}

// RemoveFromCart deletes one item and drops it locally on success.
func (s *CartService) RemoveFromCart(ctx context.Context, actor models.Actor, itemID string) (models.CartSnapshot, error) {
	userID, err := requireUser(actor)
	if err != nil {
		return models.CartSnapshot{}, err
	}
	st := s.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := s.repo.Remove(ctx, actor.Credentials, itemID); err != nil {
		return snapshotOf(st), err
	}
	remaining := make([]models.CartItem, 0, len(st.items))
	for _, item := range st.items {
		if item.ID != itemID {
			remaining = append(remaining, item)
		}
	}
	st.items = remaining
	s.changed(userID, st)
	return snapshotOf(st), nil
}

// ClearCart empties the actor's cart. Other users' carts are untouched.
func (s *CartService) ClearCart(ctx context.Context, actor models.Actor) (models.CartSnapshot, error) {
	userID, err := requireUser(actor)
	if err != nil {
		return models.CartSnapshot{}, err
	}
	st := s.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := s.repo.Clear(ctx, actor.Credentials, userID); err != nil {
		return snapshotOf(st), err
	}
	st.items = []models.CartItem{}
	st.loaded = true
	s.changed(userID, st)
	return snapshotOf(st), nil
}

// UpdateCartItem applies a partial update and swaps in the item the backend
// returns. The boolean reports success.
func (s *CartService) UpdateCartItem(ctx context.Context, actor models.Actor, itemID string, patch models.CartItemPatch) (bool, models.CartSnapshot, error) {
	userID, err := requireUser(actor)
	if err != nil {
		return false, models.CartSnapshot{}, err
	}
	if patch.Empty() {
		return false, models.CartSnapshot{}, appErrors.Clone(appErrors.ErrValidation, "nothing to update")
	}
	if err := s.validator.Struct(patch); err != nil {
		return false, models.CartSnapshot{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cart update")
	}

	st := s.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	updated, err := s.repo.Update(ctx, actor.Credentials, itemID, patch)
	if err != nil {
		return false, snapshotOf(st), err
	}
	if updated != nil {
		for i := range st.items {
			if st.items[i].ID == itemID {
				st.items[i] = *updated
			}
		}
	}
	s.changed(userID, st)
	return true, snapshotOf(st), nil
}

// ProceedToCheckout submits the cart, enriched with catalogue metadata, to the
// backend and returns the hosted checkout session. An empty cart yields nil.
func (s *CartService) ProceedToCheckout(ctx context.Context, actor models.Actor) (*models.CheckoutSession, error) {
	userID, err := requireUser(actor)
	if err != nil {
		return nil, err
	}
	st := s.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.loaded {
		if err := s.load(ctx, actor, st); err != nil {
			return nil, err
		}
	}
	if len(st.items) == 0 {
		return nil, nil
	}

	catalogues, _, err := s.catalogue.FetchAll(ctx, actor)
	if err != nil {
		return nil, checkoutFailed(err)
	}
	lines := CheckoutLines(st.items, catalogues)

	sessionID, err := s.repo.CreateCheckoutSession(ctx, actor.Credentials, userID, lines)
	if err != nil {
		return nil, checkoutFailed(err)
	}
	if sessionID == "" {
		return nil, appErrors.Clone(appErrors.ErrUpstream, "Checkout failed. Please try again.")
	}

	checkout := &models.CheckoutSession{
		SessionID:   sessionID,
		RedirectURL: strings.ReplaceAll(s.redirect, checkoutSessionPlaceholder, sessionID),
		Total:       checkoutTotal(st.items, catalogues),
	}
	if s.audit != nil {
		s.audit.Record(actor, models.AuditActionCheckout, "cart", sessionID, map[string]interface{}{"lines": len(lines), "total": checkout.Total})
	}
	return checkout, nil
}

// OpenCart asks the actor's open tabs to show the cart.
func (s *CartService) OpenCart(actor models.Actor) error {
	userID, err := requireUser(actor)
	if err != nil {
		return err
	}
	if s.events != nil {
		s.events.Publish(userID, EventCartModalOpen, nil)
	}
	return nil
}

// CheckoutLines joins cart items to their catalogue entries by lab id.
func CheckoutLines(items []models.CartItem, catalogues []models.CatalogueEntry) []models.CheckoutLine {
	lines := make([]models.CheckoutLine, 0, len(items))
	for _, item := range items {
		line := models.CheckoutLine{
			LabID:    item.LabID,
			Name:     item.Name,
			Quantity: item.Quantity.Float(),
			Price:    item.Price.Float(),
			Duration: item.Duration.Float(),
		}
		if entry := catalogueFor(item.LabID, catalogues); entry != nil {
			line.Level = entry.Level
			line.Category = entry.Category
			line.By = entry.Provider
		}
		lines = append(lines, line)
	}
	return lines
}

func checkoutTotal(items []models.CartItem, catalogues []models.CatalogueEntry) float64 {
	priced := make([]models.CartItem, len(items))
	for i, item := range items {
		priced[i] = item.WithCatalogue(catalogueFor(item.LabID, catalogues))
	}
	return models.CartTotal(priced)
}

func catalogueFor(labID string, catalogues []models.CatalogueEntry) *models.CatalogueEntry {
	for i := range catalogues {
		if catalogues[i].LabID == labID || catalogues[i].LegacyLabID == labID {
			return &catalogues[i]
		}
	}
	for i := range catalogues {
		if catalogues[i].ID == labID {
			return &catalogues[i]
		}
	}
	return nil
}

func (s *CartService) changed(userID string, st *cartState) {
	if s.events != nil {
		s.events.Publish(userID, EventCartChanged, map[string]interface{}{"count": len(st.items)})
	}
}

func snapshotOf(st *cartState) models.CartSnapshot {
	items := make([]models.CartItem, len(st.items))
	copy(items, st.items)
	return models.CartSnapshot{Items: items, IsLoading: st.loading, Total: models.CartTotal(items)}
}

func requireUser(actor models.Actor) (string, error) {
	if id := actor.UserID(); id != "" {
		return id, nil
	}
	return "", appErrors.Clone(appErrors.ErrUnauthorized, "sign in to use the cart")
}

func checkoutFailed(err error) error {
	appErr := appErrors.FromError(err)
	if appErrors.HasCode(appErr, appErrors.ErrUpstreamRejected) {
		return appErr
	}
	return appErrors.Wrap(err, appErr.Code, appErr.Status, "Checkout failed. Please try again.")
}
