package domain

import (
	"cmp"
	"slices"
	"strconv"
)

// A CartLine keeps the product snapshot taken when the product was first
// added. Only Quantity changes afterwards.
type CartLine struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Image     string `json:"image"`
	Quantity  int    `json:"quantity"`
}

func (l CartLine) Subtotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// A Cart maps a product id, as a decimal string, to its line.
//
// The zero value is an empty cart ready to use.
type Cart struct {
	Lines map[string]CartLine `json:"lines"`
}

func cartKey(productID int64) string {
	return strconv.FormatInt(productID, 10)
}

// Add puts quantity units of p into the cart.
//
// The resulting line quantity never exceeds p.Stock; the excess is
// discarded.
func (c *Cart) Add(p Product, quantity int) (CartLine, error) {
	if quantity <= 0 {
		return CartLine{}, NewValidationError("quantity", "must be positive")
	}
	if p.Stock <= 0 {
		return CartLine{}, &InsufficientStockError{
			ProductID: p.ID, Requested: quantity, Stock: p.Stock,
		}
	}

	if c.Lines == nil {
		c.Lines = make(map[string]CartLine)
	}

	key := cartKey(p.ID)
	line, ok := c.Lines[key]
	if !ok {
		line = CartLine{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Image:     p.PrimaryImage(),
		}
	}
	line.Quantity = min(line.Quantity+quantity, p.Stock)
	c.Lines[key] = line
	return line, nil
}

// Update sets the line quantity, clamped to stock.
func (c *Cart) Update(productID int64, quantity, stock int) (CartLine, error) {
	if quantity <= 0 {
		return CartLine{}, NewValidationError("quantity", "must be positive")
	}

	key := cartKey(productID)
	line, ok := c.Lines[key]
	if !ok {
		return CartLine{}, NewNotFoundError("cart line", productID)
	}
	if stock <= 0 {
		return CartLine{}, &InsufficientStockError{
			ProductID: productID, Requested: quantity, Stock: stock,
		}
	}

	line.Quantity = min(quantity, stock)
	c.Lines[key] = line
	return line, nil
}

// Remove reports whether a line was removed.
func (c *Cart) Remove(productID int64) bool {
	key := cartKey(productID)
	if _, ok := c.Lines[key]; !ok {
		return false
	}
	delete(c.Lines, key)
	return true
}

func (c *Cart) Clear() {
	c.Lines = nil
}

func (c Cart) Total() int64 {
	var total int64
	for _, l := range c.Lines {
		total += l.Subtotal()
	}
	return total
}

func (c Cart) Len() int {
	return len(c.Lines)
}

func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// Quantity returns 0 for a product that is not in the cart.
func (c Cart) Quantity(productID int64) int {
	return c.Lines[cartKey(productID)].Quantity
}

// Items returns the lines ordered by product id.
func (c Cart) Items() []CartLine {
	items := make([]CartLine, 0, len(c.Lines))
	for _, l := range c.Lines {
		items = append(items, l)
	}
	slices.SortFunc(items, func(a, b CartLine) int {
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	return items
}
