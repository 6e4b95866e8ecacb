package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/bookstore/internal/config"
)

var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusCompleted: true,
		StatusCancelled: true,
	},
	StatusCompleted: {},
	StatusCancelled: {},
}

var (
	ErrInvalidOrder            = errors.New("invalid order")
	ErrInvalidStatus           = errors.New("unknown order status")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
)

// StockAdjuster lowers a book's stock after a sale.
type StockAdjuster interface {
	DecrementStock(ctx context.Context, bookID uuid.UUID, quantity int) error
}

// Notifier is told about every order that was placed. Errors are logged, never returned to the buyer.
type Notifier interface {
	OrderPlaced(ctx context.Context, order *Order) error
}

type Service interface {
	PlaceOrder(ctx context.Context, userID uuid.UUID, lines []CartLine, method PaymentMethod, details json.RawMessage) (*Order, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error)
	ListOrders(ctx context.Context) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus Status) error
}

type service struct {
	orderRepo Repository
	stock     StockAdjuster
	notifier  Notifier
	cfg       config.OrdersConfig
}

func NewService(orderRepo Repository, stock StockAdjuster, notifier Notifier, cfg config.OrdersConfig) Service {
	if cfg.StockPolicy == "" {
		cfg.StockPolicy = config.StockPolicyBestEffort
	}
	return &service{
		orderRepo: orderRepo,
		stock:     stock,
		notifier:  notifier,
		cfg:       cfg,
	}
}

func validateLines(userID uuid.UUID, lines []CartLine, method PaymentMethod, details json.RawMessage) error {
	if userID == uuid.Nil {
		return fmt.Errorf("%w: user id cannot be nil", ErrInvalidOrder)
	}
	if len(lines) == 0 {
		return fmt.Errorf("%w: order must contain at least one item", ErrInvalidOrder)
	}
	for _, l := range lines {
		if l.BookID == uuid.Nil {
			return fmt.Errorf("%w: book id in order item cannot be nil", ErrInvalidOrder)
		}
		if l.Quantity <= 0 {
			return fmt.Errorf("%w: quantity for book %s must be greater than zero", ErrInvalidOrder, l.BookID)
		}
		if l.Price.IsNegative() {
			return fmt.Errorf("%w: price for book %s cannot be negative", ErrInvalidOrder, l.BookID)
		}
	}
	if !method.Valid() {
		return fmt.Errorf("%w: unsupported payment method %q", ErrInvalidOrder, method)
	}
	if len(details) > 0 && !json.Valid(details) {
		return fmt.Errorf("%w: payment details must be valid JSON", ErrInvalidOrder)
	}
	return nil
}

// PlaceOrder records an order for lines and lowers stock for every purchased book.
//
// Under the best-effort policy the order row, its lines and the stock updates are separate writes: a failure to
// write the lines deletes the order again, and a failed stock update is logged and skipped. Under the strict
// policy all three happen in one transaction and a shortfall fails with ErrInsufficientStock.
func (s *service) PlaceOrder(ctx context.Context, userID uuid.UUID, lines []CartLine, method PaymentMethod, details json.RawMessage) (*Order, error) {
	if err := validateLines(userID, lines, method, details); err != nil {
		log.Warn().Err(err).Stringer("user_id", userID).Msg("service: rejected order")
		return nil, err
	}

	orderInput := &Order{
		UserID:         userID,
		TotalAmount:    Total(lines),
		Status:         StatusPending,
		PaymentMethod:  method,
		PaymentDetails: details,
	}

	var err error
	if s.cfg.StockPolicy == config.StockPolicyStrict {
		err = s.placeStrict(ctx, orderInput, lines)
	} else {
		err = s.placeBestEffort(ctx, orderInput, lines)
	}
	if err != nil {
		return nil, err
	}

	log.Info().
		Stringer("order_id", orderInput.ID).
		Stringer("user_id", userID).
		Str("total_amount", orderInput.TotalAmount.StringFixed(2)).
		Msg("service: order placed")

	// The order is committed at this point; a failed reload must not look like a failed checkout.
	placed, err := s.orderRepo.GetOrderByID(ctx, orderInput.ID)
	if err != nil {
		log.Error().Err(err).Stringer("order_id", orderInput.ID).Msg("service: failed to reload placed order, returning written values")
		placed = assemblePlaced(orderInput, lines)
	}

	if s.notifier != nil {
		if err := s.notifier.OrderPlaced(ctx, placed); err != nil {
			log.Warn().Err(err).Stringer("order_id", placed.ID).Msg("service: order notification failed")
		}
	}

	return placed, nil
}

// assemblePlaced builds the reply for a committed order from the values that were written.
func assemblePlaced(orderInput *Order, lines []CartLine) *Order {
	placed := *orderInput
	placed.Items = make([]Line, 0, len(lines))
	for _, l := range lines {
		placed.Items = append(placed.Items, Line{
			OrderID:   orderInput.ID,
			BookID:    l.BookID,
			Quantity:  l.Quantity,
			Price:     l.Price,
			CreatedAt: orderInput.CreatedAt,
		})
	}
	return &placed
}

func (s *service) placeBestEffort(ctx context.Context, orderInput *Order, lines []CartLine) error {
	if err := s.orderRepo.CreateOrder(ctx, orderInput); err != nil {
		log.Error().Err(err).Stringer("user_id", orderInput.UserID).Msg("service: failed to create order in repository")
		return fmt.Errorf("service: failed to create order: %w", err)
	}

	if err := s.orderRepo.CreateOrderLines(ctx, orderInput.ID, lines); err != nil {
		log.Error().Err(err).Stringer("order_id", orderInput.ID).Msg("service: failed to create order items, deleting order")
		if delErr := s.orderRepo.DeleteOrder(ctx, orderInput.ID); delErr != nil {
			log.Error().Err(delErr).Stringer("order_id", orderInput.ID).Msg("service: failed to delete order after item failure")
		}
		return fmt.Errorf("service: failed to create order items: %w", err)
	}

	for _, l := range lines {
		if err := s.stock.DecrementStock(ctx, l.BookID, l.Quantity); err != nil {
			log.Warn().
				Err(err).
				Stringer("order_id", orderInput.ID).
				Stringer("book_id", l.BookID).
				Int("quantity", l.Quantity).
				Msg("service: failed to update stock, continuing")
		}
	}
	return nil
}

func (s *service) placeStrict(ctx context.Context, orderInput *Order, lines []CartLine) error {
	if err := s.orderRepo.PlaceOrderAtomic(ctx, orderInput, lines); err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			log.Warn().Err(err).Stringer("user_id", orderInput.UserID).Msg("service: insufficient stock for order")
			return err
		}
		log.Error().Err(err).Stringer("user_id", orderInput.UserID).Msg("service: failed to place order atomically")
		return fmt.Errorf("service: failed to place order: %w", err)
	}
	return nil
}

func (s *service) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	order, err := s.orderRepo.GetOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Err(err).Stringer("order_id", id).Msg("service: order not found by id")
			return nil, ErrOrderNotFound
		}

		log.Error().Err(err).Msg("service: failed to fetch order by id in repository")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}

	return order, nil
}

func (s *service) GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	orders, err := s.orderRepo.GetOrdersByUserID(ctx, userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to fetch user orders in repository")
		return nil, fmt.Errorf("service: failed to fetch user orders: %w", err)
	}

	return orders, nil
}

func (s *service) ListOrders(ctx context.Context) ([]Order, error) {
	orders, err := s.orderRepo.ListOrders(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list orders in repository")
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}

	return orders, nil
}

func (s *service) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus Status) error {
	if !newStatus.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}

	currentOrder, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Err(err).Stringer("order_id", orderID).Stringer("new_status", newStatus).Msg("service: order not found, cannot update status")
			return ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to get order for status update")
		return fmt.Errorf("service: failed to get order for status update: %w", err)
	}

	if currentOrder.Status == newStatus {
		log.Info().Stringer("order_id", orderID).Stringer("status", newStatus).Msg("service: order status is already the same, no update needed")
		return nil
	}

	if s.cfg.EnforceTransitions && !allowedTransitions[currentOrder.Status][newStatus] {
		log.Warn().
			Stringer("order_id", currentOrder.ID).
			Stringer("current_status", currentOrder.Status).
			Stringer("new_status", newStatus).
			Msg("service: invalid status transition attempt")
		return fmt.Errorf("%w: from %s to %s", ErrInvalidStatusTransition, currentOrder.Status, newStatus)
	}

	err = s.orderRepo.UpdateOrderStatus(ctx, orderID, newStatus)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Err(err).Stringer("order_id", orderID).Stringer("new_status", newStatus).Msg("service: order not found during final update status call")
			return ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", orderID).Stringer("new_status", newStatus).Msg("service: failed to update order status in repository")
		return fmt.Errorf("service: failed to update order status: %w", err)
	}

	log.Info().Stringer("order_id", orderID).Stringer("old_status", currentOrder.Status).Stringer("new_status", newStatus).Msg("service: order status updated successfully")
	return nil
}
