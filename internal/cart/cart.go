package cart

import (
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/bookstore/internal/catalog"
	"github.com/vasiliy-maslov/bookstore/internal/order"
)

// Line holds a quantity of one book together with the book as it looked when it was added.
type Line struct {
	BookID   uuid.UUID    `json:"book_id"`
	Quantity int          `json:"quantity"`
	Book     catalog.Book `json:"book"`
}

// Cart keeps lines in insertion order. Every line has Quantity >= 1.
type Cart struct {
	lines []Line
}

func New(lines ...Line) *Cart {
	c := &Cart{}
	for _, l := range lines {
		if l.Quantity > 0 {
			c.lines = append(c.lines, l)
		}
	}
	return c
}

func (c *Cart) index(bookID uuid.UUID) int {
	for i := range c.lines {
		if c.lines[i].BookID == bookID {
			return i
		}
	}
	return -1
}

// Add increments the line for book, or appends a new line with a snapshot of book.
// Quantities below one count as one.
func (c *Cart) Add(book catalog.Book, quantity int) {
	if quantity < 1 {
		quantity = 1
	}
	if i := c.index(book.ID); i >= 0 {
		c.lines[i].Quantity += quantity
		return
	}
	c.lines = append(c.lines, Line{BookID: book.ID, Quantity: quantity, Book: book})
}

func (c *Cart) Remove(bookID uuid.UUID) {
	if i := c.index(bookID); i >= 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
	}
}

// SetQuantity overwrites the quantity of an existing line; zero or less removes it.
func (c *Cart) SetQuantity(bookID uuid.UUID, quantity int) {
	if quantity <= 0 {
		c.Remove(bookID)
		return
	}
	if i := c.index(bookID); i >= 0 {
		c.lines[i].Quantity = quantity
	}
}

func (c *Cart) Clear() {
	c.lines = nil
}

func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

func (c *Cart) TotalItems() int {
	total := 0
	for _, l := range c.lines {
		total += l.Quantity
	}
	return total
}

func (c *Cart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Book.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

// CheckoutLines converts the cart into order input, pricing each line at its snapshot price.
func (c *Cart) CheckoutLines() []order.CartLine {
	out := make([]order.CartLine, 0, len(c.lines))
	for _, l := range c.lines {
		out = append(out, order.CartLine{BookID: l.BookID, Quantity: l.Quantity, Price: l.Book.Price})
	}
	return out
}
