package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/bookstore/internal/catalog"
)

type CreateBookRequest struct {
	Title       string          `json:"title" validate:"required"`
	Author      string          `json:"author" validate:"required"`
	Description string          `json:"description" validate:"required,min=10"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
	CoverImage  string          `json:"cover_image" validate:"omitempty,url"`
	Genre       string          `json:"genre" validate:"required"`
	Stock       int             `json:"stock" validate:"gte=0"`
}

// UpdateBookRequest is a partial update; omitted fields keep their value.
type UpdateBookRequest struct {
	Title       *string          `json:"title,omitempty" validate:"omitempty,min=1"`
	Author      *string          `json:"author,omitempty" validate:"omitempty,min=1"`
	Description *string          `json:"description,omitempty" validate:"omitempty,min=10"`
	Price       *decimal.Decimal `json:"price,omitempty" validate:"omitempty,gte=0"`
	CoverImage  *string          `json:"cover_image,omitempty" validate:"omitempty,url"`
	Genre       *string          `json:"genre,omitempty" validate:"omitempty,min=1"`
	Stock       *int             `json:"stock,omitempty" validate:"omitempty,gte=0"`
}

type BookHandler struct {
	service  catalog.Service
	validate *validator.Validate
}

func NewBookHandler(service catalog.Service) *BookHandler {
	return &BookHandler{
		service:  service,
		validate: newValidator(),
	}
}

func (h *BookHandler) RegisterRoutes(router chi.Router) {
	router.Get("/books", h.handleListBooks)
	router.Get("/books/{id}", h.handleGetBookByID)
	router.Get("/genres", h.handleListGenres)
}

func (h *BookHandler) RegisterAdminRoutes(router chi.Router) {
	router.Post("/books", h.handleCreateBook)
	router.Put("/books/{id}", h.handleUpdateBook)
	router.Delete("/books/{id}", h.handleDeleteBook)
}

func (h *BookHandler) handleListBooks(w http.ResponseWriter, r *http.Request) {
	filter := catalog.Filter{
		Genre: r.URL.Query().Get("genre"),
		Query: r.URL.Query().Get("q"),
	}

	books, err := h.service.ListBooks(r.Context(), filter)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list books")
		return
	}
	respondWithJSON(w, http.StatusOK, books)
}

func (h *BookHandler) handleGetBookByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, chi.URLParam(r, "id"), "book_id")
	if !ok {
		return
	}

	book, err := h.service.GetBookByID(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get book")
		return
	}
	respondWithJSON(w, http.StatusOK, book)
}

func (h *BookHandler) handleListGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := h.service.ListGenres(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to list genres")
		return
	}
	respondWithJSON(w, http.StatusOK, genres)
}

func (h *BookHandler) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var req CreateBookRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	created, err := h.service.CreateBook(r.Context(), &catalog.Book{
		Title:       req.Title,
		Author:      req.Author,
		Description: req.Description,
		Price:       req.Price,
		CoverImage:  req.CoverImage,
		Genre:       req.Genre,
		Stock:       req.Stock,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to create book")
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *BookHandler) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, chi.URLParam(r, "id"), "book_id")
	if !ok {
		return
	}

	var req UpdateBookRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	updated, err := h.service.UpdateBook(r.Context(), id, catalog.BookPatch{
		Title:       req.Title,
		Author:      req.Author,
		Description: req.Description,
		Price:       req.Price,
		CoverImage:  req.CoverImage,
		Genre:       req.Genre,
		Stock:       req.Stock,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to update book")
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

func (h *BookHandler) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, chi.URLParam(r, "id"), "book_id")
	if !ok {
		return
	}

	if err := h.service.DeleteBook(r.Context(), id); err != nil {
		respondWithServiceError(w, err, "Failed to delete book")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
