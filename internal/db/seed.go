package db

import (
	"fmt"
	"os"

	"github.com/gofrs/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// SeedBook is one catalog entry in a seed file. Price is kept as text so "10.00" survives YAML's float parsing.
type SeedBook struct {
	Title       string `yaml:"title"`
	Author      string `yaml:"author"`
	Description string `yaml:"description"`
	Price       string `yaml:"price"`
	CoverImage  string `yaml:"cover_image"`
	Genre       string `yaml:"genre"`
	Stock       int    `yaml:"stock"`
}

type seedFile struct {
	Books []SeedBook `yaml:"books"`
}

type bookRow struct {
	ID          uuid.UUID       `db:"id"`
	Title       string          `db:"title"`
	Author      string          `db:"author"`
	Description string          `db:"description"`
	Price       decimal.Decimal `db:"price"`
	CoverImage  string          `db:"cover_image"`
	Genre       string          `db:"genre"`
	Stock       int             `db:"stock"`
}

func LoadSeedFile(path string) ([]SeedBook, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}

	var file seedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("invalid seed file %s: %w", path, err)
	}
	return file.Books, nil
}

func toRows(books []SeedBook) ([]bookRow, error) {
	rows := make([]bookRow, 0, len(books))
	for i, b := range books {
		if b.Title == "" || b.Author == "" || b.Genre == "" {
			return nil, fmt.Errorf("seed book #%d: title, author and genre are required", i+1)
		}
		price, err := decimal.NewFromString(b.Price)
		if err != nil {
			return nil, fmt.Errorf("seed book %q: invalid price %q: %w", b.Title, b.Price, err)
		}
		if price.IsNegative() || b.Stock < 0 {
			return nil, fmt.Errorf("seed book %q: price and stock cannot be negative", b.Title)
		}

		id, err := uuid.NewV4()
		if err != nil {
			return nil, fmt.Errorf("failed to generate book id: %w", err)
		}
		rows = append(rows, bookRow{
			ID:          id,
			Title:       b.Title,
			Author:      b.Author,
			Description: b.Description,
			Price:       price,
			CoverImage:  b.CoverImage,
			Genre:       b.Genre,
			Stock:       b.Stock,
		})
	}
	return rows, nil
}

// SeedBooks bulk-inserts books in a single statement and returns how many were written.
func SeedBooks(db *sqlx.DB, books []SeedBook) (int, error) {
	if len(books) == 0 {
		return 0, nil
	}

	rows, err := toRows(books)
	if err != nil {
		return 0, err
	}

	query := `INSERT INTO books (id, title, author, description, price, cover_image, genre, stock)
		VALUES (:id, :title, :author, :description, :price, :cover_image, :genre, :stock)`

	if _, err := db.NamedExec(query, rows); err != nil {
		return 0, fmt.Errorf("failed to insert seed books: %w", err)
	}

	log.Info().Int("count", len(rows)).Msg("Seed books inserted")
	return len(rows), nil
}
