package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/bookstore/internal/catalog"
)

type CreateSellerBookRequest struct {
	Title       string          `json:"title" validate:"required"`
	Author      string          `json:"author" validate:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
	CoverImage  string          `json:"cover_image" validate:"omitempty,url"`
	Genre       string          `json:"genre" validate:"required"`
	Condition   string          `json:"condition" validate:"required"`
	Stock       int             `json:"stock" validate:"gte=0"`
}

// SellerHandler serves a user's own listings.
type SellerHandler struct {
	service  catalog.Service
	validate *validator.Validate
}

func NewSellerHandler(service catalog.Service) *SellerHandler {
	return &SellerHandler{
		service:  service,
		validate: newValidator(),
	}
}

func (h *SellerHandler) RegisterRoutes(router chi.Router) {
	router.Get("/seller/books", h.handleList)
	router.Post("/seller/books", h.handleCreate)
	router.Delete("/seller/books/{id}", h.handleDelete)
}

func (h *SellerHandler) handleList(w http.ResponseWriter, r *http.Request) {
	profile, ok := ProfileFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	books, err := h.service.ListSellerBooks(r.Context(), profile.ID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list seller books")
		return
	}
	respondWithJSON(w, http.StatusOK, books)
}

func (h *SellerHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	profile, ok := ProfileFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req CreateSellerBookRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	created, err := h.service.CreateSellerBook(r.Context(), &catalog.SellerBook{
		SellerID:    profile.ID,
		Title:       req.Title,
		Author:      req.Author,
		Description: req.Description,
		Price:       req.Price,
		CoverImage:  req.CoverImage,
		Genre:       req.Genre,
		Condition:   req.Condition,
		Stock:       req.Stock,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to create seller book")
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *SellerHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	profile, ok := ProfileFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	id, ok := parseIDParam(w, chi.URLParam(r, "id"), "seller_book_id")
	if !ok {
		return
	}

	if err := h.service.DeleteSellerBook(r.Context(), profile.ID, id); err != nil {
		respondWithServiceError(w, err, "Failed to delete seller book")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
