package cart

import (
	"slices"
	"strings"
)

type PriceTier string

const (
	TierNormal  PriceTier = "normal"
	TierSpecial PriceTier = "special"
)

type Fulfillment string

const (
	DineIn   Fulfillment = "dine_in"
	Takeaway Fulfillment = "takeaway"
)

// Choices are the modifiers picked for one add-to-cart action.
type Choices struct {
	Tier        PriceTier
	Variant     string
	Extras      []string
	Fulfillment Fulfillment
}

// Key is the composite identity of a cart line. Extras are kept sorted and
// deduplicated so selection order never changes identity.
type Key struct {
	MenuItemID  int64
	Tier        PriceTier
	Variant     string
	Extras      []string
	Fulfillment Fulfillment
}

func (k Key) Equal(o Key) bool {
	return k.MenuItemID == o.MenuItemID &&
		k.Tier == o.Tier &&
		k.Variant == o.Variant &&
		k.Fulfillment == o.Fulfillment &&
		slices.Equal(k.Extras, o.Extras)
}

// KeyFor builds the canonical key for an item and a set of choices.
func KeyFor(menuItemID int64, ch Choices) Key {
	ch = normalize(ch)
	return Key{
		MenuItemID:  menuItemID,
		Tier:        ch.Tier,
		Variant:     ch.Variant,
		Extras:      ch.Extras,
		Fulfillment: ch.Fulfillment,
	}
}

func normalize(ch Choices) Choices {
	if ch.Tier == "" {
		ch.Tier = TierNormal
	}
	if ch.Fulfillment == "" {
		ch.Fulfillment = DineIn
	}
	ch.Variant = strings.TrimSpace(ch.Variant)
	extras := make([]string, 0, len(ch.Extras))
	for _, e := range ch.Extras {
		if e = strings.TrimSpace(e); e != "" {
			extras = append(extras, e)
		}
	}
	slices.Sort(extras)
	ch.Extras = slices.Compact(extras)
	return ch
}

// ComposeName bakes the modifiers into a display name, e.g.
// "Noodle Soup (small, extra meatballs) [takeaway]".
func ComposeName(name string, k Key) string {
	var b strings.Builder
	b.WriteString(name)
	mods := make([]string, 0, len(k.Extras)+1)
	if k.Variant != "" {
		mods = append(mods, k.Variant)
	}
	mods = append(mods, k.Extras...)
	if len(mods) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(mods, ", "))
		b.WriteString(")")
	}
	if k.Tier == TierSpecial {
		b.WriteString(" [special]")
	}
	if k.Fulfillment == Takeaway {
		b.WriteString(" [takeaway]")
	}
	return b.String()
}
