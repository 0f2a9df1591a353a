package models

// CartItem is one line of a user's cart.
type CartItem struct {
	ID              string `json:"id"`
	LabID           string `json:"labid"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	Quantity        Number `json:"quantity"`
	Price           Number `json:"price"`
	Duration        Number `json:"duration"`
	DefaultDuration Number `json:"defaultduration"`
	DefaultPrice    Number `json:"defaultprice"`
	UserID          string `json:"user_id,omitempty"`
}

// UnitPrice is the base price P the line scales from, zero when unknown.
func (i CartItem) UnitPrice() float64 {
	return i.DefaultPrice.Float()
}

// LineTotal applies P x (d / D) x q. D defaults to 1 when unset. Without a
// base price the backend's price is already quoted for the chosen duration,
// so the line costs price x q.
func (i CartItem) LineTotal() float64 {
	q := i.Quantity.Float()
	p := i.UnitPrice()
	if p <= 0 {
		return i.Price.Float() * q
	}
	base := i.DefaultDuration.Float()
	if base <= 0 {
		base = 1
	}
	return p * (i.Duration.Float() / base) * q
}

// WithCatalogue fills a missing base price and default duration from the
// catalogue entry the line was bought from.
func (i CartItem) WithCatalogue(entry *CatalogueEntry) CartItem {
	if entry == nil {
		return i
	}
	if i.DefaultPrice <= 0 && entry.Price > 0 {
		i.DefaultPrice = entry.Price
		if i.DefaultDuration <= 0 {
			i.DefaultDuration = entry.Duration
		}
	}
	return i
}

// CartTotal sums LineTotal over items.
func CartTotal(items []CartItem) float64 {
	var total float64
	for _, item := range items {
		total += item.LineTotal()
	}
	return total
}

// CartItemPatch is a partial cart item update. Nil fields are left untouched.
type CartItemPatch struct {
	Duration        *float64 `json:"duration,omitempty" validate:"omitempty,gt=0"`
	Quantity        *float64 `json:"quantity,omitempty" validate:"omitempty,gte=1"`
	DefaultDuration *float64 `json:"defaultDuration,omitempty" validate:"omitempty,gt=0"`
	Price           *float64 `json:"price,omitempty" validate:"omitempty,gte=0"`
}

// Empty reports whether the patch changes nothing.
func (p CartItemPatch) Empty() bool {
	return p.Duration == nil && p.Quantity == nil && p.DefaultDuration == nil && p.Price == nil
}

// CheckoutLine is a cart item enriched with catalogue metadata.
type CheckoutLine struct {
	LabID    string  `json:"lab_id"`
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Duration float64 `json:"duration"`
	Level    string  `json:"level"`
	Category string  `json:"category"`
	By       string  `json:"by"`
}

// CheckoutSession is the outcome of a successful checkout request.
type CheckoutSession struct {
	SessionID   string  `json:"sessionId"`
	RedirectURL string  `json:"redirectUrl"`
	Total       float64 `json:"total"`
}

// CartSnapshot is the per-user cart state returned to clients.
type CartSnapshot struct {
	Items     []CartItem `json:"cartItems"`
	IsLoading bool       `json:"isLoadingCart"`
	Total     float64    `json:"total"`
}
