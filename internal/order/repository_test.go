package order_test

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
	"github.com/vasiliy-maslov/bookstore/internal/order"
)

var testDB *pgxpool.Pool

// TestMain connects to the database named by DB_*_TEST. Without DB_HOST_TEST the
// repository tests skip and only the unit tests run.
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
		log.Fatal().Err(err).Str("host", cfg.Host).Str("dbname", cfg.DBName).Msg("Failed to connect to test database")
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

func requireDB(t *testing.T) {
	t.Helper()
	if testDB == nil {
		t.Skip("DB_HOST_TEST is not set, skipping repository test")
	}
}

func truncate(t *testing.T) {
	t.Helper()
	_, err := testDB.Exec(context.Background(), "TRUNCATE TABLE order_items, orders, seller_books, books, sessions, profiles CASCADE")
	require.NoError(t, err, "failed to truncate tables")
}

type fixture struct {
	repo   order.Repository
	books  catalog.Repository
	userID uuid.UUID
	dune   catalog.Book
	hobbit catalog.Book
}

func setup(t *testing.T) *fixture {
	requireDB(t)
	truncate(t)
	t.Cleanup(func() { truncate(t) })

	ctx := context.Background()
	f := &fixture{
		repo:   order.NewRepository(testDB),
		books:  catalog.NewRepository(testDB),
		userID: uuid.Must(uuid.NewV4()),
	}

	_, err := testDB.Exec(ctx,
		`INSERT INTO profiles (id, name, email, password_hash) VALUES ($1, $2, $3, $4)`,
		f.userID, "Reader", "reader@example.com", "x")
	require.NoError(t, err)

	f.dune = catalog.Book{Title: "Dune", Author: "Frank Herbert", Genre: "Science Fiction", Price: decimal.RequireFromString("10.00"), Stock: 5}
	f.hobbit = catalog.Book{Title: "The Hobbit", Author: "J.R.R. Tolkien", Genre: "Fantasy", Price: decimal.RequireFromString("5.00"), Stock: 2}
	require.NoError(t, f.books.CreateBook(ctx, &f.dune))
	require.NoError(t, f.books.CreateBook(ctx, &f.hobbit))
	return f
}

func (f *fixture) lines() []order.CartLine {
	return []order.CartLine{
		{BookID: f.dune.ID, Quantity: 2, Price: f.dune.Price},
		{BookID: f.hobbit.ID, Quantity: 1, Price: f.hobbit.Price},
	}
}

func (f *fixture) newOrder(lines []order.CartLine) *order.Order {
	return &order.Order{
		UserID:        f.userID,
		TotalAmount:   order.Total(lines),
		Status:        order.StatusPending,
		PaymentMethod: order.PaymentEsewa,
	}
}

func TestPostgresRepository_CreateAndGet(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	lines := f.lines()

	o := f.newOrder(lines)
	o.PaymentDetails = []byte(`{"transaction_id":"tx-1"}`)
	require.NoError(t, f.repo.CreateOrder(ctx, o))
	require.NotEqual(t, uuid.Nil, o.ID)
	require.NoError(t, f.repo.CreateOrderLines(ctx, o.ID, lines))

	got, err := f.repo.GetOrderByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, f.userID, got.UserID)
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("25.00")), "total was %s", got.TotalAmount)
	assert.Equal(t, order.StatusPending, got.Status)
	assert.Equal(t, order.PaymentEsewa, got.PaymentMethod)
	assert.JSONEq(t, `{"transaction_id":"tx-1"}`, string(got.PaymentDetails))
	require.Len(t, got.Items, 2)

	byBook := map[uuid.UUID]order.Line{}
	for _, item := range got.Items {
		byBook[item.BookID] = item
	}
	require.NotNil(t, byBook[f.dune.ID].Book)
	assert.Equal(t, "Dune", byBook[f.dune.ID].Book.Title)
	assert.Equal(t, 2, byBook[f.dune.ID].Quantity)
	assert.True(t, byBook[f.hobbit.ID].Price.Equal(decimal.RequireFromString("5.00")))
}

func TestPostgresRepository_GetOrderByID_NotFound(t *testing.T) {
	f := setup(t)

	_, err := f.repo.GetOrderByID(context.Background(), uuid.Must(uuid.NewV4()))
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestPostgresRepository_CreateOrderLines_UnknownBook(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	lines := []order.CartLine{{BookID: uuid.Must(uuid.NewV4()), Quantity: 1, Price: decimal.NewFromInt(3)}}
	o := f.newOrder(lines)
	require.NoError(t, f.repo.CreateOrder(ctx, o))

	err := f.repo.CreateOrderLines(ctx, o.ID, lines)
	assert.ErrorIs(t, err, catalog.ErrBookNotFound)

	require.NoError(t, f.repo.DeleteOrder(ctx, o.ID))
	_, err = f.repo.GetOrderByID(ctx, o.ID)
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestPostgresRepository_OrdersNewestFirst(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	lines := f.lines()

	first := f.newOrder(lines)
	require.NoError(t, f.repo.CreateOrder(ctx, first))
	require.NoError(t, f.repo.CreateOrderLines(ctx, first.ID, lines))

	time.Sleep(10 * time.Millisecond)

	second := f.newOrder(lines[:1])
	require.NoError(t, f.repo.CreateOrder(ctx, second))
	require.NoError(t, f.repo.CreateOrderLines(ctx, second.ID, lines[:1]))

	mine, err := f.repo.GetOrdersByUserID(ctx, f.userID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID)
	assert.Len(t, mine[0].Items, 1)
	assert.Len(t, mine[1].Items, 2)

	all, err := f.repo.ListOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := f.repo.GetOrdersByUserID(ctx, uuid.Must(uuid.NewV4()))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPostgresRepository_UpdateOrderStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	o := f.newOrder(f.lines())
	require.NoError(t, f.repo.CreateOrder(ctx, o))

	require.NoError(t, f.repo.UpdateOrderStatus(ctx, o.ID, order.StatusCompleted))
	got, err := f.repo.GetOrderByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCompleted, got.Status)

	err = f.repo.UpdateOrderStatus(ctx, uuid.Must(uuid.NewV4()), order.StatusCompleted)
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestPostgresRepository_PlaceOrderAtomic(t *testing.T) {
	t.Run("decrements_stock", func(t *testing.T) {
		f := setup(t)
		ctx := context.Background()
		lines := f.lines()

		o := f.newOrder(lines)
		require.NoError(t, f.repo.PlaceOrderAtomic(ctx, o, lines))

		dune, err := f.books.GetBookByID(ctx, f.dune.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, dune.Stock)

		hobbit, err := f.books.GetBookByID(ctx, f.hobbit.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, hobbit.Stock)
	})

	t.Run("shortfall_rolls_back", func(t *testing.T) {
		f := setup(t)
		ctx := context.Background()
		lines := []order.CartLine{
			{BookID: f.dune.ID, Quantity: 1, Price: f.dune.Price},
			{BookID: f.hobbit.ID, Quantity: 3, Price: f.hobbit.Price},
		}

		o := f.newOrder(lines)
		err := f.repo.PlaceOrderAtomic(ctx, o, lines)
		require.ErrorIs(t, err, order.ErrInsufficientStock)

		_, err = f.repo.GetOrderByID(ctx, o.ID)
		assert.ErrorIs(t, err, order.ErrOrderNotFound)

		dune, err := f.books.GetBookByID(ctx, f.dune.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, dune.Stock, "earlier decrements are rolled back")
	})
}

func TestBestEffortPlacement_DecrementsStock(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	svc := order.NewService(f.repo, f.books, nil, config.OrdersConfig{})

	placed, err := svc.PlaceOrder(ctx, f.userID, f.lines(), order.PaymentKhalti, nil)
	require.NoError(t, err)
	assert.Len(t, placed.Items, 2)

	dune, err := f.books.GetBookByID(ctx, f.dune.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, dune.Stock)

	hobbit, err := f.books.GetBookByID(ctx, f.hobbit.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, hobbit.Stock)
}
