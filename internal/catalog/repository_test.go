package catalog_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/bookstore/internal/catalog"
	"github.com/vasiliy-maslov/bookstore/internal/config"
)

var testDB *pgxpool.Pool

func TestMain(m *testing.M) {
	host := os.Getenv("DB_HOST_TEST")
	if host == "" {
		os.Exit(m.Run())
	}

	cfg := config.PostgresConfig{
		Host:     host,
		Port:     getenv("DB_PORT_TEST", "5432"),
		User:     getenv("DB_USER_TEST", "postgres"),
		Password: getenv("DB_PASSWORD_TEST", "123456"),
		DBName:   getenv("DB_NAME_TEST", "bookstore_test"),
		SSLMode:  "disable",
	}

	var err error
	testDB, err = pgxpool.New(context.Background(), cfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Str("host", cfg.Host).Msg("Failed to connect to test database")
	}

	exitCode := m.Run()
	testDB.Close()
	os.Exit(exitCode)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func setup(t *testing.T) catalog.Repository {
	t.Helper()
	if testDB == nil {
		t.Skip("DB_HOST_TEST is not set, skipping repository test")
	}

	clean := func() {
		_, err := testDB.Exec(context.Background(), "TRUNCATE TABLE order_items, orders, seller_books, books CASCADE")
		require.NoError(t, err, "failed to truncate tables")
	}
	clean()
	t.Cleanup(clean)

	return catalog.NewRepository(testDB)
}

func seed(t *testing.T, repo catalog.Repository, books ...catalog.Book) []catalog.Book {
	t.Helper()
	out := make([]catalog.Book, 0, len(books))
	for _, b := range books {
		require.NoError(t, repo.CreateBook(context.Background(), &b))
		out = append(out, b)
		// created_at orders listings; keep rows distinguishable.
		time.Sleep(5 * time.Millisecond)
	}
	return out
}

func TestPostgresRepository_ListAndFilter(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	seed(t, repo,
		book("Dune", "Science Fiction"),
		book("The Hobbit", "Fantasy"),
		book("100% Pure", "Fantasy"),
	)

	all, err := repo.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "100% Pure", all[0].Title, "newest first")

	fantasy, err := repo.ListBooksByGenre(ctx, "Fantasy")
	require.NoError(t, err)
	assert.Len(t, fantasy, 2)

	none, err := repo.ListBooksByGenre(ctx, "fantasy")
	require.NoError(t, err)
	assert.Empty(t, none, "genre match is exact")

	found, err := repo.SearchBooks(ctx, "dune")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Dune", found[0].Title)

	literal, err := repo.SearchBooks(ctx, "100%")
	require.NoError(t, err)
	require.Len(t, literal, 1, "percent sign is matched literally")

	genres, err := repo.ListGenres(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Fantasy", "Science Fiction"}, genres)
}

func TestPostgresRepository_UpdateAndDelete(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()
	books := seed(t, repo, book("Dune", "Science Fiction"))
	id := books[0].ID

	price := decimal.RequireFromString("12.50")
	updated, err := repo.UpdateBook(ctx, id, catalog.BookPatch{Price: &price})
	require.NoError(t, err)
	assert.True(t, updated.Price.Equal(price))
	assert.Equal(t, "Dune", updated.Title, "unset fields keep their value")

	_, err = repo.UpdateBook(ctx, uuid.Must(uuid.NewV4()), catalog.BookPatch{Price: &price})
	assert.ErrorIs(t, err, catalog.ErrBookNotFound)

	require.NoError(t, repo.DecrementStock(ctx, id, 2))
	got, err := repo.GetBookByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)

	assert.ErrorIs(t, repo.DecrementStock(ctx, uuid.Must(uuid.NewV4()), 1), catalog.ErrBookNotFound)

	require.NoError(t, repo.DeleteBook(ctx, id))
	_, err = repo.GetBookByID(ctx, id)
	assert.ErrorIs(t, err, catalog.ErrBookNotFound)
	assert.ErrorIs(t, repo.DeleteBook(ctx, id), catalog.ErrBookNotFound)
}

func TestPostgresRepository_SellerBooks(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	sellerID := uuid.Must(uuid.NewV4())
	_, err := testDB.Exec(ctx,
		`INSERT INTO profiles (id, name, email, password_hash) VALUES ($1, 'Seller', $2, 'x') ON CONFLICT DO NOTHING`,
		sellerID, sellerID.String()+"@example.com")
	require.NoError(t, err)

	listing := &catalog.SellerBook{
		SellerID:  sellerID,
		Title:     "Dune",
		Author:    "Frank Herbert",
		Genre:     "Science Fiction",
		Condition: "good",
		Price:     decimal.RequireFromString("4.00"),
		Stock:     1,
	}
	require.NoError(t, repo.CreateSellerBook(ctx, listing))

	mine, err := repo.ListSellerBooks(ctx, sellerID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "good", mine[0].Condition)

	other := uuid.Must(uuid.NewV4())
	assert.ErrorIs(t, repo.DeleteSellerBook(ctx, other, listing.ID), catalog.ErrSellerBookNotFound)
	require.NoError(t, repo.DeleteSellerBook(ctx, sellerID, listing.ID))
}
