package order

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
	"github.com/vasiliy-maslov/bookstore/internal/catalog"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type Repository interface {
	CreateOrder(ctx context.Context, order *Order) error
	CreateOrderLines(ctx context.Context, orderID uuid.UUID, lines []CartLine) error
	DeleteOrder(ctx context.Context, orderID uuid.UUID) error
	// PlaceOrderAtomic writes the order, its lines and the stock decrements in one transaction.
	PlaceOrderAtomic(ctx context.Context, order *Order, lines []CartLine) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error)
	ListOrders(ctx context.Context) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus Status) error
}

// querier is the subset shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateOrder(ctx context.Context, order *Order) error {
	return insertOrder(ctx, r.db, order)
}

func insertOrder(ctx context.Context, q querier, order *Order) error {
	if order.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate order ID: %w", err)
		}
		order.ID = id
	}
	order.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO orders (id, user_id, total_amount, status, payment_method, payment_details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := q.Exec(ctx, query,
		order.ID,
		order.UserID,
		order.TotalAmount,
		string(order.Status),
		string(order.PaymentMethod),
		paymentDetailsArg(order.PaymentDetails),
		order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}
	return nil
}

func paymentDetailsArg(details []byte) any {
	if len(details) == 0 {
		return nil
	}
	return string(details)
}

func (r *postgresRepository) CreateOrderLines(ctx context.Context, orderID uuid.UUID, lines []CartLine) error {
	return insertLines(ctx, r.db, orderID, lines)
}

// insertLines writes all lines with a single statement so they land or fail together.
func insertLines(ctx context.Context, q querier, orderID uuid.UUID, lines []CartLine) error {
	if len(lines) == 0 {
		return nil
	}

	now := time.Now().UTC()
	values := make([]string, 0, len(lines))
	args := make([]any, 0, len(lines)*6)
	for _, l := range lines {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate order item ID: %w", err)
		}
		n := len(args)
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6))
		args = append(args, id, orderID, l.BookID, l.Quantity, l.Price, now)
	}

	query := `INSERT INTO order_items (id, order_id, book_id, quantity, price, created_at) VALUES ` +
		strings.Join(values, ", ")
	if _, err := q.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return fmt.Errorf("repository: failed to insert order items for order %s: %w", orderID, catalog.ErrBookNotFound)
		}
		return fmt.Errorf("repository: failed to insert order items for order %s: %w", orderID, err)
	}
	return nil
}

func (r *postgresRepository) DeleteOrder(ctx context.Context, orderID uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
	if err != nil {
		return fmt.Errorf("repository: failed to delete order %s: %w", orderID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *postgresRepository) PlaceOrderAtomic(ctx context.Context, order *Order, lines []CartLine) (err error) {
	tx, beginErr := r.db.Begin(ctx)
	if beginErr != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", beginErr)
	}
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic_value", p).Msg("Panic recovered during PlaceOrderAtomic, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Msg("Failed to rollback transaction after panic")
			}
			panic(p)
		} else if err != nil {
			log.Warn().Err(err).Stringer("order_id_attempted", order.ID).Msg("Transaction for PlaceOrderAtomic failed, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id_attempted", order.ID).Msg("Failed to rollback transaction")
			}
		} else {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				log.Error().Err(commitErr).Stringer("order_id", order.ID).Msg("Failed to commit transaction")
				err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
			}
		}
	}()

	if err = insertOrder(ctx, tx, order); err != nil {
		return err
	}
	if err = insertLines(ctx, tx, order.ID, lines); err != nil {
		return err
	}

	for _, l := range lines {
		var stock int
		err = tx.QueryRow(ctx, `SELECT stock FROM books WHERE id = $1 FOR UPDATE`, l.BookID).Scan(&stock)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				err = fmt.Errorf("repository: book %s: %w", l.BookID, catalog.ErrBookNotFound)
				return err
			}
			err = fmt.Errorf("repository: failed to lock book %s: %w", l.BookID, err)
			return err
		}
		if stock < l.Quantity {
			err = fmt.Errorf("repository: book %s has %d in stock, %d requested: %w", l.BookID, stock, l.Quantity, ErrInsufficientStock)
			return err
		}

		_, err = tx.Exec(ctx, `UPDATE books SET stock = stock - $1, updated_at = $2 WHERE id = $3`,
			l.Quantity, time.Now().UTC(), l.BookID)
		if err != nil {
			err = fmt.Errorf("repository: failed to decrement stock for book %s: %w", l.BookID, err)
			return err
		}
	}

	return nil
}

const orderColumns = `id, user_id, total_amount, status, payment_method, payment_details, created_at`

func scanOrder(row pgx.Row, o *Order) error {
	var details []byte
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.TotalAmount,
		&o.Status,
		&o.PaymentMethod,
		&details,
		&o.CreatedAt,
	)
	if err != nil {
		return err
	}
	if len(details) > 0 {
		o.PaymentDetails = details
	}
	return nil
}

func (r *postgresRepository) GetOrderByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	var order Order
	if err := scanOrder(r.db.QueryRow(ctx, query, orderID), &order); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", orderID, err)
	}

	items, err := r.linesByOrder(ctx, []uuid.UUID{orderID})
	if err != nil {
		return nil, fmt.Errorf("repository: failed to load order items for order id %s: %w", orderID, err)
	}
	order.Items = items[orderID]
	if order.Items == nil {
		order.Items = make([]Line, 0)
	}

	return &order, nil
}

func (r *postgresRepository) GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	orders, err := r.queryOrders(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to fetch orders for user id %s: %w", userID, err)
	}
	return orders, nil
}

func (r *postgresRepository) ListOrders(ctx context.Context) ([]Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`

	orders, err := r.queryOrders(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list orders: %w", err)
	}
	return orders, nil
}

// queryOrders runs an orders query and attaches each order's lines, preserving row order.
func (r *postgresRepository) queryOrders(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]Order, 0)
	var orderIDs []uuid.UUID
	for rows.Next() {
		var o Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
		orderIDs = append(orderIDs, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating orders: %w", err)
	}

	if len(orderIDs) == 0 {
		return orders, nil
	}

	items, err := r.linesByOrder(ctx, orderIDs)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = make([]Line, 0)
		}
	}
	return orders, nil
}

func (r *postgresRepository) linesByOrder(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]Line, error) {
	query := `
		SELECT oi.id, oi.order_id, oi.book_id, oi.quantity, oi.price, oi.created_at,
		       b.id, b.title, b.author, b.description, b.price, b.cover_image, b.genre, b.stock, b.created_at, b.updated_at
		FROM order_items oi
		JOIN books b ON b.id = oi.book_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.created_at, oi.id
	`
	rows, err := r.db.Query(ctx, query, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	result := make(map[uuid.UUID][]Line, len(orderIDs))
	for rows.Next() {
		var (
			line Line
			book catalog.Book
		)
		err := rows.Scan(
			&line.ID,
			&line.OrderID,
			&line.BookID,
			&line.Quantity,
			&line.Price,
			&line.CreatedAt,
			&book.ID,
			&book.Title,
			&book.Author,
			&book.Description,
			&book.Price,
			&book.CoverImage,
			&book.Genre,
			&book.Stock,
			&book.CreatedAt,
			&book.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		line.Book = &book
		result[line.OrderID] = append(result[line.OrderID], line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating order items: %w", err)
	}
	return result, nil
}

func (r *postgresRepository) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus Status) error {
	cmdTag, err := r.db.Exec(ctx, `UPDATE orders SET status = $1 WHERE id = $2`, string(newStatus), orderID)
	if err != nil {
		log.Error().Err(err).Stringer("order_id", orderID).Stringer("new_status", newStatus).Msg("repository: failed to update order status")
		return fmt.Errorf("repository: failed to update order status %s: %w", orderID, err)
	}

	if cmdTag.RowsAffected() == 0 {
		log.Warn().Stringer("order_id", orderID).Stringer("new_status", newStatus).Msg("repository: order not found for status update")
		return ErrOrderNotFound
	}
	return nil
}
