package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/bookstore/internal/order"
)

type OrderItemRequest struct {
	BookID   uuid.UUID       `json:"book_id" validate:"required"`
	Quantity int             `json:"quantity" validate:"required,gte=1"`
	Price    decimal.Decimal `json:"price" validate:"gte=0"`
}

type PlaceOrderRequest struct {
	Items          []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	PaymentMethod  string             `json:"payment_method" validate:"required,oneof=esewa khalti"`
	PaymentDetails json.RawMessage    `json:"payment_details,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending completed cancelled"`
}

type OrderHandler struct {
	service  order.Service
	validate *validator.Validate
}

func NewOrderHandler(service order.Service) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: newValidator(),
	}
}

// RegisterRoutes mounts the buyer routes; router must already require a user.
func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Post("/orders", h.handlePlaceOrder)
	router.Get("/orders", h.handleListMyOrders)
	router.Get("/orders/{id}", h.handleGetOrderByID)
}

func (h *OrderHandler) RegisterAdminRoutes(router chi.Router) {
	router.Get("/orders", h.handleListOrders)
	router.Patch("/orders/{id}/status", h.handleUpdateOrderStatus)
}

func (h *OrderHandler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	profile, ok := ProfileFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req PlaceOrderRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	lines := make([]order.CartLine, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, order.CartLine{BookID: item.BookID, Quantity: item.Quantity, Price: item.Price})
	}

	placed, err := h.service.PlaceOrder(r.Context(), profile.ID, lines, order.PaymentMethod(req.PaymentMethod), req.PaymentDetails)
	if err != nil {
		respondWithServiceError(w, err, "Failed to place order")
		return
	}
	respondWithJSON(w, http.StatusCreated, placed)
}

func (h *OrderHandler) handleListMyOrders(w http.ResponseWriter, r *http.Request) {
	profile, ok := ProfileFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	orders, err := h.service.GetOrdersByUserID(r.Context(), profile.ID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list orders")
		return
	}
	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleGetOrderByID(w http.ResponseWriter, r *http.Request) {
	profile, ok := ProfileFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	id, ok := parseIDParam(w, chi.URLParam(r, "id"), "order_id")
	if !ok {
		return
	}

	found, err := h.service.GetOrderByID(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get order")
		return
	}

	// Other buyers' orders are reported as missing rather than forbidden.
	if found.UserID != profile.ID && !profile.IsAdmin {
		log.Warn().Stringer("order_id", id).Stringer("user_id", profile.ID).Msg("Order requested by non-owner")
		respondWithError(w, http.StatusNotFound, order.ErrOrderNotFound.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, found)
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to list orders")
		return
	}
	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, chi.URLParam(r, "id"), "order_id")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	if err := h.service.UpdateOrderStatus(r.Context(), id, order.Status(req.Status)); err != nil {
		respondWithServiceError(w, err, "Failed to update order status")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
