package catalog

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tramitia/process-tracker/internal/domain"
)

// DefaultFallbackPrice is the last resolution tier of PriceFor, used when a
// template has neither an explicit price nor a base cost.
var DefaultFallbackPrice = decimal.NewFromInt(1000)

// CategoryFilter selects the entries a bulk price change applies to. The zero
// value matches every category.
type CategoryFilter struct {
	category string
	set      bool
}

// AllCategories matches entries of any category.
func AllCategories() CategoryFilter { return CategoryFilter{} }

// InCategory matches entries whose category equals name, case-insensitively.
func InCategory(name string) CategoryFilter {
	return CategoryFilter{category: strings.TrimSpace(name), set: true}
}

// Matches reports whether the entry falls under the filter.
func (f CategoryFilter) Matches(e *domain.PriceEntry) bool {
	if !f.set {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(e.Category), f.category)
}

// Category returns the filtered category and whether one is set.
func (f CategoryFilter) Category() (string, bool) { return f.category, f.set }

// PriceFilter narrows List results.
type PriceFilter struct {
	Category   CategoryFilter
	ActiveOnly bool
}

// PricingCatalog owns the service price entries. It is not safe for
// concurrent use; the tracking service serialises every call.
type PricingCatalog struct {
	entries  []domain.PriceEntry
	fallback decimal.Decimal
	now      func() time.Time
}

// NewPricingCatalog builds a catalog from a persisted snapshot. A nil
// fallback uses DefaultFallbackPrice; an explicit zero makes the last tier free.
func NewPricingCatalog(entries []domain.PriceEntry, fallback *decimal.Decimal) *PricingCatalog {
	last := DefaultFallbackPrice
	if fallback != nil {
		last = *fallback
	}
	return &PricingCatalog{
		entries:  append([]domain.PriceEntry(nil), entries...),
		fallback: last,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source; used by tests.
func (c *PricingCatalog) SetClock(now func() time.Time) {
	c.now = now
}

// FallbackPrice returns the last-tier price.
func (c *PricingCatalog) FallbackPrice() decimal.Decimal {
	return c.fallback
}

func validateEntry(e *domain.PriceEntry) error {
	if strings.TrimSpace(e.ServiceName) == "" {
		return domain.NewValidationError("serviceName", "service name is required")
	}
	if e.Price.IsNegative() {
		return domain.NewValidationError("price", "price must be >= 0")
	}
	if strings.TrimSpace(e.Category) == "" {
		return domain.NewValidationError("category", "category is required")
	}
	return nil
}

func (c *PricingCatalog) indexOf(id uuid.UUID) int {
	for i := range c.entries {
		if c.entries[i].ID == id {
			return i
		}
	}
	return -1
}

// Add inserts a new entry, assigning an id when missing.
func (c *PricingCatalog) Add(entry domain.PriceEntry) (domain.PriceEntry, error) {
	if err := validateEntry(&entry); err != nil {
		return domain.PriceEntry{}, err
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	} else if c.indexOf(entry.ID) >= 0 {
		return domain.PriceEntry{}, domain.NewValidationError("id", "price entry already exists")
	}
	now := c.now()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	c.entries = append(c.entries, entry)
	return entry, nil
}

// Update replaces an existing entry, keeping its creation time.
func (c *PricingCatalog) Update(entry domain.PriceEntry) (domain.PriceEntry, error) {
	idx := c.indexOf(entry.ID)
	if idx < 0 {
		return domain.PriceEntry{}, domain.NewNotFound("price entry", entry.ID.String())
	}
	if err := validateEntry(&entry); err != nil {
		return domain.PriceEntry{}, err
	}
	entry.CreatedAt = c.entries[idx].CreatedAt
	entry.UpdatedAt = c.now()
	c.entries[idx] = entry
	return entry, nil
}

// Remove deletes an entry and returns it.
func (c *PricingCatalog) Remove(id uuid.UUID) (domain.PriceEntry, error) {
	idx := c.indexOf(id)
	if idx < 0 {
		return domain.PriceEntry{}, domain.NewNotFound("price entry", id.String())
	}
	removed := c.entries[idx]
	c.entries = append(c.entries[:idx], c.entries[idx+1:]...)
	return removed, nil
}

// Get returns the entry with the given id.
func (c *PricingCatalog) Get(id uuid.UUID) (domain.PriceEntry, error) {
	idx := c.indexOf(id)
	if idx < 0 {
		return domain.PriceEntry{}, domain.NewNotFound("price entry", id.String())
	}
	return c.entries[idx], nil
}

// List returns the entries matching the filter in insertion order.
func (c *PricingCatalog) List(filter PriceFilter) []domain.PriceEntry {
	out := make([]domain.PriceEntry, 0, len(c.entries))
	for i := range c.entries {
		e := &c.entries[i]
		if filter.ActiveOnly && !e.Active {
			continue
		}
		if !filter.Category.Matches(e) {
			continue
		}
		out = append(out, *e)
	}
	return out
}

// Categories returns the distinct categories, sorted.
func (c *PricingCatalog) Categories() []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, e := range c.entries {
		key := strings.TrimSpace(e.Category)
		if seen[strings.ToLower(key)] {
			continue
		}
		seen[strings.ToLower(key)] = true
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// ExplicitPriceFor returns the active entry priced for the template: first an
// entry linked by template id, then one whose service name equals the
// template name ignoring case.
func (c *PricingCatalog) ExplicitPriceFor(t domain.Template) (domain.PriceEntry, bool) {
	for _, e := range c.entries {
		if e.Active && e.TemplateID != nil && *e.TemplateID == t.ID {
			return e, true
		}
	}
	name := strings.TrimSpace(t.Name)
	for _, e := range c.entries {
		if e.Active && strings.EqualFold(strings.TrimSpace(e.ServiceName), name) {
			return e, true
		}
	}
	return domain.PriceEntry{}, false
}

// PriceFor resolves the price of a template. It always yields a value:
// explicit entry, then template base cost, then the fallback price.
func (c *PricingCatalog) PriceFor(t domain.Template) decimal.Decimal {
	if e, ok := c.ExplicitPriceFor(t); ok {
		return e.Price
	}
	if t.BaseCost != nil {
		return *t.BaseCost
	}
	return c.fallback
}

// ApplyIncrease raises every active entry under the filter by percent and
// rounds to whole currency units. New prices are computed on a staged copy
// and swapped in together, so a rejected call changes nothing. It returns the
// updated entries.
func (c *PricingCatalog) ApplyIncrease(percent decimal.Decimal, filter CategoryFilter) ([]domain.PriceEntry, error) {
	if percent.IsNegative() {
		return nil, domain.NewValidationError("percent", "percent must be >= 0")
	}
	if percent.IsZero() {
		return []domain.PriceEntry{}, nil
	}

	factor := decimal.NewFromInt(1).Add(percent.Div(decimal.NewFromInt(100)))
	staged := append([]domain.PriceEntry(nil), c.entries...)
	now := c.now()
	updated := make([]domain.PriceEntry, 0)

	for i := range staged {
		e := &staged[i]
		if !e.Active || !filter.Matches(e) {
			continue
		}
		newPrice := e.Price.Mul(factor).Round(0)
		if newPrice.IsNegative() {
			return nil, domain.NewValidationError("price", "increase produced a negative price for "+e.ServiceName)
		}
		if newPrice.Equal(e.Price) {
			continue
		}
		e.Price = newPrice
		e.UpdatedAt = now
		updated = append(updated, *e)
	}

	c.entries = staged
	return updated, nil
}

// Snapshot returns a copy of every entry, for rollback.
func (c *PricingCatalog) Snapshot() []domain.PriceEntry {
	return append([]domain.PriceEntry(nil), c.entries...)
}

// Restore replaces the entries with a snapshot taken earlier.
func (c *PricingCatalog) Restore(entries []domain.PriceEntry) {
	c.entries = append([]domain.PriceEntry(nil), entries...)
}
