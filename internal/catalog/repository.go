package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var (
	ErrBookNotFound       = errors.New("book not found")
	ErrSellerBookNotFound = errors.New("seller book not found")
	ErrBookInUse          = errors.New("book is referenced by existing orders")
)

type Repository interface {
	ListBooks(ctx context.Context) ([]Book, error)
	ListBooksByGenre(ctx context.Context, genre string) ([]Book, error)
	SearchBooks(ctx context.Context, query string) ([]Book, error)
	GetBookByID(ctx context.Context, id uuid.UUID) (*Book, error)
	ListGenres(ctx context.Context) ([]string, error)
	CreateBook(ctx context.Context, book *Book) error
	UpdateBook(ctx context.Context, id uuid.UUID, patch BookPatch) (*Book, error)
	DeleteBook(ctx context.Context, id uuid.UUID) error
	DecrementStock(ctx context.Context, id uuid.UUID, quantity int) error

	ListSellerBooks(ctx context.Context, sellerID uuid.UUID) ([]SellerBook, error)
	CreateSellerBook(ctx context.Context, book *SellerBook) error
	DeleteSellerBook(ctx context.Context, sellerID, id uuid.UUID) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

const bookColumns = `id, title, author, description, price, cover_image, genre, stock, created_at, updated_at`

func scanBook(row pgx.Row, b *Book) error {
	return row.Scan(
		&b.ID,
		&b.Title,
		&b.Author,
		&b.Description,
		&b.Price,
		&b.CoverImage,
		&b.Genre,
		&b.Stock,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
}

func (r *postgresRepository) queryBooks(ctx context.Context, query string, args ...any) ([]Book, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := make([]Book, 0)
	for rows.Next() {
		var b Book
		if err := scanBook(rows, &b); err != nil {
			return nil, err
		}
		books = append(books, b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return books, nil
}

func (r *postgresRepository) ListBooks(ctx context.Context) ([]Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books ORDER BY created_at DESC`

	books, err := r.queryBooks(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list books: %w", err)
	}
	return books, nil
}

func (r *postgresRepository) ListBooksByGenre(ctx context.Context, genre string) ([]Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE genre = $1 ORDER BY created_at DESC`

	books, err := r.queryBooks(ctx, query, genre)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list books by genre %q: %w", genre, err)
	}
	return books, nil
}

func (r *postgresRepository) SearchBooks(ctx context.Context, q string) ([]Book, error) {
	query := `
		SELECT ` + bookColumns + `
		FROM books
		WHERE title ILIKE $1 OR author ILIKE $1 OR genre ILIKE $1
		ORDER BY created_at DESC
	`

	books, err := r.queryBooks(ctx, query, likePattern(q))
	if err != nil {
		return nil, fmt.Errorf("repository: failed to search books by %q: %w", q, err)
	}
	return books, nil
}

func (r *postgresRepository) GetBookByID(ctx context.Context, id uuid.UUID) (*Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE id = $1`

	var b Book
	if err := scanBook(r.db.QueryRow(ctx, query, id), &b); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("repository: failed to select book by id %s: %w", id, err)
	}
	return &b, nil
}

func (r *postgresRepository) ListGenres(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT genre FROM books ORDER BY genre`)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query genres: %w", err)
	}
	defer rows.Close()

	genres := make([]string, 0)
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("repository: failed to scan genre: %w", err)
		}
		genres = append(genres, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating genres: %w", err)
	}
	return genres, nil
}

func (r *postgresRepository) CreateBook(ctx context.Context, book *Book) error {
	if book.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate book ID: %w", err)
		}
		book.ID = id
	}

	now := time.Now().UTC()
	book.CreatedAt = now
	book.UpdatedAt = now

	query := `
		INSERT INTO books (` + bookColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.Exec(ctx, query,
		book.ID,
		book.Title,
		book.Author,
		book.Description,
		book.Price,
		book.CoverImage,
		book.Genre,
		book.Stock,
		book.CreatedAt,
		book.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert book: %w", err)
	}
	return nil
}

func (r *postgresRepository) UpdateBook(ctx context.Context, id uuid.UUID, patch BookPatch) (*Book, error) {
	sets := make([]string, 0, 8)
	args := make([]any, 0, 9)

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Author != nil {
		add("author", *patch.Author)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Price != nil {
		add("price", *patch.Price)
	}
	if patch.CoverImage != nil {
		add("cover_image", *patch.CoverImage)
	}
	if patch.Genre != nil {
		add("genre", *patch.Genre)
	}
	if patch.Stock != nil {
		add("stock", *patch.Stock)
	}
	add("updated_at", time.Now().UTC())

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE books SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), bookColumns)

	var b Book
	if err := scanBook(r.db.QueryRow(ctx, query, args...), &b); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("repository: failed to update book %s: %w", id, err)
	}
	return &b, nil
}

func (r *postgresRepository) DeleteBook(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return ErrBookInUse
		}
		return fmt.Errorf("repository: failed to delete book %s: %w", id, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrBookNotFound
	}
	return nil
}

// DecrementStock subtracts quantity from the book's stock without any lower bound check.
func (r *postgresRepository) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) error {
	query := `UPDATE books SET stock = stock - $1, updated_at = $2 WHERE id = $3`

	cmdTag, err := r.db.Exec(ctx, query, quantity, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("repository: failed to decrement stock for book %s: %w", id, err)
	}

	if cmdTag.RowsAffected() == 0 {
		log.Warn().Stringer("book_id", id).Msg("repository: book not found for stock update")
		return ErrBookNotFound
	}
	return nil
}

const sellerBookColumns = `id, seller_id, title, author, description, price, cover_image, genre, condition, stock, created_at, updated_at`

func (r *postgresRepository) ListSellerBooks(ctx context.Context, sellerID uuid.UUID) ([]SellerBook, error) {
	query := `SELECT ` + sellerBookColumns + ` FROM seller_books WHERE seller_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, sellerID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query seller books for %s: %w", sellerID, err)
	}
	defer rows.Close()

	books := make([]SellerBook, 0)
	for rows.Next() {
		var b SellerBook
		err := rows.Scan(
			&b.ID,
			&b.SellerID,
			&b.Title,
			&b.Author,
			&b.Description,
			&b.Price,
			&b.CoverImage,
			&b.Genre,
			&b.Condition,
			&b.Stock,
			&b.CreatedAt,
			&b.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan seller book for %s: %w", sellerID, err)
		}
		books = append(books, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating seller books for %s: %w", sellerID, err)
	}
	return books, nil
}

func (r *postgresRepository) CreateSellerBook(ctx context.Context, book *SellerBook) error {
	if book.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate seller book ID: %w", err)
		}
		book.ID = id
	}

	now := time.Now().UTC()
	book.CreatedAt = now
	book.UpdatedAt = now

	query := `
		INSERT INTO seller_books (` + sellerBookColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.Exec(ctx, query,
		book.ID,
		book.SellerID,
		book.Title,
		book.Author,
		book.Description,
		book.Price,
		book.CoverImage,
		book.Genre,
		book.Condition,
		book.Stock,
		book.CreatedAt,
		book.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert seller book: %w", err)
	}
	return nil
}

func (r *postgresRepository) DeleteSellerBook(ctx context.Context, sellerID, id uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM seller_books WHERE id = $1 AND seller_id = $2`, id, sellerID)
	if err != nil {
		return fmt.Errorf("repository: failed to delete seller book %s: %w", id, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrSellerBookNotFound
	}
	return nil
}
