package pos

import (
	"slices"

	"diffpos/backend/internal/domain"
	"diffpos/backend/internal/xid"
)

// Cart holds the line items of the sale in progress. It is owned by a single
// cashier session and performs no I/O; the caller is responsible for looking
// up catalog items before adding them.
type Cart struct {
	items       []domain.LineItem
	discountPct float64
	taxRatePct  float64
}

func NewCart(taxRatePct float64) *Cart {
	if taxRatePct < 0 {
		taxRatePct = 0
	}
	return &Cart{taxRatePct: taxRatePct}
}

// AddItem merges into an existing line when the same (item, size, color)
// triple is already present, otherwise appends a new line with the catalog
// item's current price as the snapshot.
func (c *Cart) AddItem(item domain.CatalogItem, size string, color string, quantity int) (domain.LineItem, error) {
	if quantity < 1 {
		return domain.LineItem{}, ErrInvalidQuantity
	}
	if !slices.Contains(item.Sizes, size) || !slices.Contains(item.Colors, color) {
		return domain.LineItem{}, ErrInvalidSelection
	}

	for i := range c.items {
		line := &c.items[i]
		if line.CatalogItemID == item.ID && line.Size == size && line.Color == color {
			line.Quantity += quantity
			return *line, nil
		}
	}

	line := domain.LineItem{
		ID:             xid.New("line"),
		CatalogItemID:  item.ID,
		Name:           item.Name,
		Size:           size,
		Color:          color,
		Quantity:       quantity,
		UnitPriceMinor: item.PriceMinor,
	}
	c.items = append(c.items, line)
	return line, nil
}

// RemoveItem is idempotent: removing an absent line is a no-op.
func (c *Cart) RemoveItem(lineItemID string) {
	c.items = slices.DeleteFunc(c.items, func(line domain.LineItem) bool {
		return line.ID == lineItemID
	})
}

func (c *Cart) SetQuantity(lineItemID string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	for i := range c.items {
		if c.items[i].ID == lineItemID {
			c.items[i].Quantity = quantity
			return nil
		}
	}
	return ErrUnknownLineItem
}

func (c *Cart) SetDiscountPercent(percent float64) error {
	if percent < 0 || percent > 100 {
		return ErrInvalidDiscount
	}
	c.discountPct = percent
	return nil
}

// Clear empties the cart and resets the discount. The tax rate is a store
// setting and survives the reset.
func (c *Cart) Clear() {
	c.items = nil
	c.discountPct = 0
}

func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}

// Items returns a copy; callers cannot mutate cart state through it.
func (c *Cart) Items() []domain.LineItem {
	items := make([]domain.LineItem, len(c.items))
	copy(items, c.items)
	return items
}

func (c *Cart) ItemCount() int {
	count := 0
	for _, line := range c.items {
		count += line.Quantity
	}
	return count
}

func (c *Cart) DiscountPercent() float64 {
	return c.discountPct
}

func (c *Cart) TaxRatePercent() float64 {
	return c.taxRatePct
}

// SetTaxRatePercent changes the store tax rate applied from the next
// computation onward.
func (c *Cart) SetTaxRatePercent(percent float64) error {
	if percent < 0 || percent > 100 {
		return ErrInvalidTaxRate
	}
	c.taxRatePct = percent
	return nil
}
