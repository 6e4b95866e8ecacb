package catalog

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

// GenreAll is the genre filter value that selects the whole catalog.
const GenreAll = "All"

type Book struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Title       string          `json:"title" db:"title"`
	Author      string          `json:"author" db:"author"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	CoverImage  string          `json:"cover_image" db:"cover_image"`
	Genre       string          `json:"genre" db:"genre"`
	Stock       int             `json:"stock" db:"stock"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// BookPatch carries a partial update. A nil field means "no change".
type BookPatch struct {
	Title       *string
	Author      *string
	Description *string
	Price       *decimal.Decimal
	CoverImage  *string
	Genre       *string
	Stock       *int
}

func (p BookPatch) IsEmpty() bool {
	return p.Title == nil && p.Author == nil && p.Description == nil && p.Price == nil &&
		p.CoverImage == nil && p.Genre == nil && p.Stock == nil
}

// SellerBook is a listing owned by an individual seller rather than the store.
type SellerBook struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	SellerID    uuid.UUID       `json:"seller_id" db:"seller_id"`
	Title       string          `json:"title" db:"title"`
	Author      string          `json:"author" db:"author"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	CoverImage  string          `json:"cover_image" db:"cover_image"`
	Genre       string          `json:"genre" db:"genre"`
	Condition   string          `json:"condition" db:"condition"`
	Stock       int             `json:"stock" db:"stock"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// Filter selects books for listing. An empty Query lists without searching; an empty
// Genre or GenreAll disables the genre filter.
type Filter struct {
	Genre string
	Query string
}
