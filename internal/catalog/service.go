package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

var ErrInvalidBook = errors.New("invalid book")

type Service interface {
	ListBooks(ctx context.Context, filter Filter) ([]Book, error)
	GetBookByID(ctx context.Context, id uuid.UUID) (*Book, error)
	ListGenres(ctx context.Context) ([]string, error)
	CreateBook(ctx context.Context, book *Book) (*Book, error)
	UpdateBook(ctx context.Context, id uuid.UUID, patch BookPatch) (*Book, error)
	DeleteBook(ctx context.Context, id uuid.UUID) error

	ListSellerBooks(ctx context.Context, sellerID uuid.UUID) ([]SellerBook, error)
	CreateSellerBook(ctx context.Context, book *SellerBook) (*SellerBook, error)
	DeleteSellerBook(ctx context.Context, sellerID, id uuid.UUID) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// ListBooks searches when filter.Query is set, otherwise lists by genre. A genre given
// together with a query narrows the search results.
func (s *service) ListBooks(ctx context.Context, filter Filter) ([]Book, error) {
	query := strings.TrimSpace(filter.Query)

	var (
		books []Book
		err   error
	)
	switch {
	case query != "":
		books, err = s.repo.SearchBooks(ctx, query)
		if err == nil {
			books = FilterByGenre(books, filter.Genre)
		}
	case filter.Genre != "" && filter.Genre != GenreAll:
		books, err = s.repo.ListBooksByGenre(ctx, filter.Genre)
	default:
		books, err = s.repo.ListBooks(ctx)
	}
	if err != nil {
		log.Error().Err(err).Str("genre", filter.Genre).Str("query", query).Msg("service: failed to list books")
		return nil, fmt.Errorf("service: failed to list books: %w", err)
	}

	return books, nil
}

func (s *service) GetBookByID(ctx context.Context, id uuid.UUID) (*Book, error) {
	book, err := s.repo.GetBookByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrBookNotFound) {
			log.Warn().Stringer("book_id", id).Msg("service: book not found by id")
			return nil, ErrBookNotFound
		}
		log.Error().Err(err).Stringer("book_id", id).Msg("service: failed to fetch book by id")
		return nil, fmt.Errorf("service: failed to fetch book by id: %w", err)
	}
	return book, nil
}

func (s *service) ListGenres(ctx context.Context) ([]string, error) {
	genres, err := s.repo.ListGenres(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list genres")
		return nil, fmt.Errorf("service: failed to list genres: %w", err)
	}
	return genres, nil
}

func (s *service) CreateBook(ctx context.Context, book *Book) (*Book, error) {
	if err := validateBook(book.Title, book.Author, book.Genre, book.Price.IsNegative(), book.Stock); err != nil {
		return nil, err
	}

	book.ID = uuid.Nil
	if err := s.repo.CreateBook(ctx, book); err != nil {
		log.Error().Err(err).Msg("service: failed to create book in repository")
		return nil, fmt.Errorf("service: failed to create book: %w", err)
	}

	log.Info().Stringer("book_id", book.ID).Str("title", book.Title).Msg("service: book created")
	return book, nil
}

func (s *service) UpdateBook(ctx context.Context, id uuid.UUID, patch BookPatch) (*Book, error) {
	if patch.IsEmpty() {
		return s.GetBookByID(ctx, id)
	}

	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidBook)
	}
	if patch.Author != nil && strings.TrimSpace(*patch.Author) == "" {
		return nil, fmt.Errorf("%w: author is required", ErrInvalidBook)
	}
	if patch.Genre != nil && strings.TrimSpace(*patch.Genre) == "" {
		return nil, fmt.Errorf("%w: genre is required", ErrInvalidBook)
	}
	if patch.Price != nil && patch.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price cannot be negative", ErrInvalidBook)
	}
	if patch.Stock != nil && *patch.Stock < 0 {
		return nil, fmt.Errorf("%w: stock cannot be negative", ErrInvalidBook)
	}

	book, err := s.repo.UpdateBook(ctx, id, patch)
	if err != nil {
		if errors.Is(err, ErrBookNotFound) {
			log.Warn().Stringer("book_id", id).Msg("service: book not found for update")
			return nil, ErrBookNotFound
		}
		log.Error().Err(err).Stringer("book_id", id).Msg("service: failed to update book")
		return nil, fmt.Errorf("service: failed to update book: %w", err)
	}

	log.Info().Stringer("book_id", id).Msg("service: book updated")
	return book, nil
}

func (s *service) DeleteBook(ctx context.Context, id uuid.UUID) error {
	err := s.repo.DeleteBook(ctx, id)
	if err != nil {
		if errors.Is(err, ErrBookNotFound) || errors.Is(err, ErrBookInUse) {
			log.Warn().Err(err).Stringer("book_id", id).Msg("service: book not deleted")
			return err
		}
		log.Error().Err(err).Stringer("book_id", id).Msg("service: failed to delete book")
		return fmt.Errorf("service: failed to delete book: %w", err)
	}

	log.Info().Stringer("book_id", id).Msg("service: book deleted")
	return nil
}

func (s *service) ListSellerBooks(ctx context.Context, sellerID uuid.UUID) ([]SellerBook, error) {
	books, err := s.repo.ListSellerBooks(ctx, sellerID)
	if err != nil {
		log.Error().Err(err).Stringer("seller_id", sellerID).Msg("service: failed to list seller books")
		return nil, fmt.Errorf("service: failed to list seller books: %w", err)
	}
	return books, nil
}

func (s *service) CreateSellerBook(ctx context.Context, book *SellerBook) (*SellerBook, error) {
	if book.SellerID == uuid.Nil {
		return nil, fmt.Errorf("%w: seller id cannot be nil", ErrInvalidBook)
	}
	if err := validateBook(book.Title, book.Author, book.Genre, book.Price.IsNegative(), book.Stock); err != nil {
		return nil, err
	}
	if strings.TrimSpace(book.Condition) == "" {
		return nil, fmt.Errorf("%w: condition is required", ErrInvalidBook)
	}

	book.ID = uuid.Nil
	if err := s.repo.CreateSellerBook(ctx, book); err != nil {
		log.Error().Err(err).Stringer("seller_id", book.SellerID).Msg("service: failed to create seller book")
		return nil, fmt.Errorf("service: failed to create seller book: %w", err)
	}
	return book, nil
}

func (s *service) DeleteSellerBook(ctx context.Context, sellerID, id uuid.UUID) error {
	err := s.repo.DeleteSellerBook(ctx, sellerID, id)
	if err != nil {
		if errors.Is(err, ErrSellerBookNotFound) {
			return ErrSellerBookNotFound
		}
		log.Error().Err(err).Stringer("seller_book_id", id).Msg("service: failed to delete seller book")
		return fmt.Errorf("service: failed to delete seller book: %w", err)
	}
	return nil
}

func validateBook(title, author, genre string, negativePrice bool, stock int) error {
	switch {
	case strings.TrimSpace(title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidBook)
	case strings.TrimSpace(author) == "":
		return fmt.Errorf("%w: author is required", ErrInvalidBook)
	case strings.TrimSpace(genre) == "":
		return fmt.Errorf("%w: genre is required", ErrInvalidBook)
	case negativePrice:
		return fmt.Errorf("%w: price cannot be negative", ErrInvalidBook)
	case stock < 0:
		return fmt.Errorf("%w: stock cannot be negative", ErrInvalidBook)
	}
	return nil
}
