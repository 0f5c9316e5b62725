// Package cart composes menu items and modifiers into priced, mergeable
// cart lines and freezes them into resolved order lines.
package cart

import (
	"fmt"
	"strings"

	"table-ordering/internal/domain"
)

// MaxQuantity caps a single line.
const MaxQuantity = 99

type Line struct {
	Key       Key
	Name      string
	UnitPrice int64
	Quantity  int
}

// Composer holds one device's in-progress cart. It is not safe for
// concurrent use; each client owns its own.
type Composer struct {
	variantRequired map[string]bool
	lines           []Line
}

// NewComposer returns an empty cart. Items whose category is listed in
// variantCategories must be added with a variant.
func NewComposer(variantCategories []string) *Composer {
	req := make(map[string]bool, len(variantCategories))
	for _, c := range variantCategories {
		req[strings.ToLower(strings.TrimSpace(c))] = true
	}
	return &Composer{variantRequired: req}
}

func (c *Composer) AddLine(item domain.MenuItem, ch Choices) (Key, error) {
	return c.AddLines(item, ch, 1)
}

// AddLines adds n units, merging into an existing line with the same key.
func (c *Composer) AddLines(item domain.MenuItem, ch Choices, n int) (Key, error) {
	if n <= 0 {
		return Key{}, fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidInput)
	}
	key := KeyFor(item.ID, ch)
	price, err := c.unitPrice(item, key)
	if err != nil {
		return Key{}, err
	}
	if i := c.find(key); i >= 0 {
		if c.lines[i].Quantity+n > MaxQuantity {
			return Key{}, fmt.Errorf("%w: quantity above %d", domain.ErrInvalidInput, MaxQuantity)
		}
		c.lines[i].Quantity += n
		return key, nil
	}
	if n > MaxQuantity {
		return Key{}, fmt.Errorf("%w: quantity above %d", domain.ErrInvalidInput, MaxQuantity)
	}
	c.lines = append(c.lines, Line{
		Key:       key,
		Name:      ComposeName(item.Name, key),
		UnitPrice: price,
		Quantity:  n,
	})
	return key, nil
}

// RemoveLine decrements the line with key k and drops it at zero. It
// reports false when there was nothing to remove.
func (c *Composer) RemoveLine(k Key) bool {
	i := c.find(k)
	if i < 0 {
		return false
	}
	c.lines[i].Quantity--
	if c.lines[i].Quantity == 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
	}
	return true
}

func (c *Composer) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Composer) Keys() []Key {
	out := make([]Key, 0, len(c.lines))
	for _, l := range c.lines {
		out = append(out, l.Key)
	}
	return out
}

func (c *Composer) Empty() bool { return len(c.lines) == 0 }

func (c *Composer) Total() int64 {
	var total int64
	for _, l := range c.lines {
		total += l.UnitPrice * int64(l.Quantity)
	}
	return total
}

// Resolve freezes the cart into order lines.
func (c *Composer) Resolve() []domain.ResolvedLine {
	out := make([]domain.ResolvedLine, 0, len(c.lines))
	for _, l := range c.lines {
		out = append(out, domain.ResolvedLine{
			MenuItemID: l.Key.MenuItemID,
			Name:       l.Name,
			UnitPrice:  l.UnitPrice,
			Quantity:   l.Quantity,
		})
	}
	return out
}

func (c *Composer) Reset() { c.lines = nil }

func (c *Composer) find(k Key) int {
	for i := range c.lines {
		if c.lines[i].Key.Equal(k) {
			return i
		}
	}
	return -1
}

func (c *Composer) unitPrice(item domain.MenuItem, k Key) (int64, error) {
	if !item.IsAvailable {
		return 0, fmt.Errorf("%w: %s is not available", domain.ErrInvalidInput, item.Name)
	}
	if k.Variant == "" && c.variantRequired[strings.ToLower(item.Category)] {
		return 0, fmt.Errorf("%w: %s needs a variant", domain.ErrMissingRequiredChoice, item.Name)
	}
	if k.Variant != "" && len(item.Variants) > 0 && !item.HasVariant(k.Variant) {
		return 0, fmt.Errorf("%w: unknown variant %q for %s", domain.ErrInvalidInput, k.Variant, item.Name)
	}
	if k.Fulfillment != DineIn && k.Fulfillment != Takeaway {
		return 0, fmt.Errorf("%w: unknown fulfillment %q", domain.ErrInvalidInput, k.Fulfillment)
	}

	var price int64
	switch k.Tier {
	case TierNormal:
		price = item.BasePrice
	case TierSpecial:
		if item.SpecialPrice == nil {
			return 0, fmt.Errorf("%w: %s has no special price", domain.ErrInvalidInput, item.Name)
		}
		price = *item.SpecialPrice
	default:
		return 0, fmt.Errorf("%w: unknown price tier %q", domain.ErrInvalidInput, k.Tier)
	}
	for _, name := range k.Extras {
		e, ok := item.Extra(name)
		if !ok {
			return 0, fmt.Errorf("%w: unknown extra %q for %s", domain.ErrInvalidInput, name, item.Name)
		}
		price += e.PriceDelta
	}
	if price < 0 {
		return 0, fmt.Errorf("%w: negative price for %s", domain.ErrInvalidInput, item.Name)
	}
	return price, nil
}
