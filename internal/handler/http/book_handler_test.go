package http_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/bookstore/internal/catalog"
)

func TestBookHandler_ListBooks(t *testing.T) {
	h := newHarness(t)
	books := []catalog.Book{
		{ID: uuid.Must(uuid.NewV4()), Title: "Dune", Author: "Frank Herbert", Genre: "Sci-Fi", Price: decimal.RequireFromString("10.00")},
	}
	h.catalog.On("ListBooks", mock.Anything, catalog.Filter{Genre: "Sci-Fi", Query: "dune"}).Return(books, nil).Once()

	rr := h.do(t, http.MethodGet, "/books?genre=Sci-Fi&q=dune", "", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var got []catalog.Book
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "Dune", got[0].Title)
	assert.True(t, got[0].Price.Equal(decimal.RequireFromString("10")))
	h.catalog.AssertExpectations(t)
}

func TestBookHandler_ListBooksFailure(t *testing.T) {
	h := newHarness(t)
	h.catalog.On("ListBooks", mock.Anything, catalog.Filter{}).Return(nil, errors.New("db down")).Once()

	rr := h.do(t, http.MethodGet, "/books", "", nil)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Failed to list books", decodeError(t, rr)["error"])
}

func TestBookHandler_GetBookByID(t *testing.T) {
	id := uuid.Must(uuid.NewV4())

	tests := []struct {
		name       string
		path       string
		setup      func(m *MockCatalogService)
		wantStatus int
		wantError  string
	}{
		{
			name: "found",
			path: "/books/" + id.String(),
			setup: func(m *MockCatalogService) {
				m.On("GetBookByID", mock.Anything, id).Return(&catalog.Book{ID: id, Title: "Dune"}, nil).Once()
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "not_found",
			path: "/books/" + id.String(),
			setup: func(m *MockCatalogService) {
				m.On("GetBookByID", mock.Anything, id).Return(nil, catalog.ErrBookNotFound).Once()
			},
			wantStatus: http.StatusNotFound,
			wantError:  catalog.ErrBookNotFound.Error(),
		},
		{
			name:       "invalid_id",
			path:       "/books/not-a-uuid",
			setup:      func(m *MockCatalogService) {},
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid id parameter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.setup(h.catalog)

			rr := h.do(t, http.MethodGet, tt.path, "", nil)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, decodeError(t, rr)["error"])
			}
			h.catalog.AssertExpectations(t)
		})
	}
}

func TestBookHandler_ListGenres(t *testing.T) {
	h := newHarness(t)
	h.catalog.On("ListGenres", mock.Anything).Return([]string{"Fantasy", "Sci-Fi"}, nil).Once()

	rr := h.do(t, http.MethodGet, "/genres", "", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var got []string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, []string{"Fantasy", "Sci-Fi"}, got)
}

func TestBookHandler_CreateBook(t *testing.T) {
	valid := map[string]interface{}{
		"title":       "Dune",
		"author":      "Frank Herbert",
		"description": "Spice, sand and politics.",
		"price":       "10.00",
		"genre":       "Sci-Fi",
		"stock":       5,
	}

	t.Run("success", func(t *testing.T) {
		h := newHarness(t)
		created := &catalog.Book{ID: uuid.Must(uuid.NewV4()), Title: "Dune", Stock: 5}
		h.catalog.On("CreateBook", mock.Anything, mock.MatchedBy(func(b *catalog.Book) bool {
			return b.Title == "Dune" && b.Stock == 5 && b.Price.Equal(decimal.RequireFromString("10"))
		})).Return(created, nil).Once()

		rr := h.do(t, http.MethodPost, "/admin/books", "admin-token", valid)

		require.Equal(t, http.StatusCreated, rr.Code)
		var got catalog.Book
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
		assert.Equal(t, created.ID, got.ID)
		h.catalog.AssertExpectations(t)
	})

	t.Run("validation_error", func(t *testing.T) {
		h := newHarness(t)
		body := map[string]interface{}{
			"title":       "Dune",
			"author":      "Frank Herbert",
			"description": "short",
			"price":       "-1",
			"genre":       "Sci-Fi",
		}

		rr := h.do(t, http.MethodPost, "/admin/books", "admin-token", body)

		require.Equal(t, http.StatusBadRequest, rr.Code)
		var resp struct {
			Error   string   `json:"error"`
			Details []string `json:"details"`
		}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, "Validation failed", resp.Error)
		assert.ElementsMatch(t, []string{
			"description must be at least 10 characters",
			"price must be greater than or equal to 0",
		}, resp.Details)
		h.catalog.AssertNotCalled(t, "CreateBook", mock.Anything, mock.Anything)
	})

	t.Run("unknown_field", func(t *testing.T) {
		h := newHarness(t)
		rr := h.do(t, http.MethodPost, "/admin/books", "admin-token", `{"title":"Dune","isbn":"x"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, decodeError(t, rr)["error"], "Invalid request payload")
	})

	t.Run("forbidden_for_buyer", func(t *testing.T) {
		h := newHarness(t)
		rr := h.do(t, http.MethodPost, "/admin/books", "user-token", valid)
		assert.Equal(t, http.StatusForbidden, rr.Code)
		h.catalog.AssertNotCalled(t, "CreateBook", mock.Anything, mock.Anything)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		h := newHarness(t)
		rr := h.do(t, http.MethodPost, "/admin/books", "", valid)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestBookHandler_UpdateBook(t *testing.T) {
	id := uuid.Must(uuid.NewV4())

	t.Run("partial_update", func(t *testing.T) {
		h := newHarness(t)
		h.catalog.On("UpdateBook", mock.Anything, id, mock.MatchedBy(func(p catalog.BookPatch) bool {
			return p.Stock != nil && *p.Stock == 7 && p.Title == nil && p.Price == nil
		})).Return(&catalog.Book{ID: id, Title: "Dune", Stock: 7}, nil).Once()

		rr := h.do(t, http.MethodPut, "/admin/books/"+id.String(), "admin-token", `{"stock":7}`)

		require.Equal(t, http.StatusOK, rr.Code)
		var got catalog.Book
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
		assert.Equal(t, 7, got.Stock)
		h.catalog.AssertExpectations(t)
	})

	t.Run("rejected_by_service", func(t *testing.T) {
		h := newHarness(t)
		h.catalog.On("UpdateBook", mock.Anything, id, mock.Anything).
			Return(nil, errors.Join(catalog.ErrInvalidBook, errors.New("title is required"))).Once()

		rr := h.do(t, http.MethodPut, "/admin/books/"+id.String(), "admin-token", `{"title":"x"}`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("not_found", func(t *testing.T) {
		h := newHarness(t)
		h.catalog.On("UpdateBook", mock.Anything, id, mock.Anything).Return(nil, catalog.ErrBookNotFound).Once()

		rr := h.do(t, http.MethodPut, "/admin/books/"+id.String(), "admin-token", `{"genre":"Fantasy"}`)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestBookHandler_DeleteBook(t *testing.T) {
	id := uuid.Must(uuid.NewV4())

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "deleted", wantStatus: http.StatusNoContent},
		{name: "not_found", err: catalog.ErrBookNotFound, wantStatus: http.StatusNotFound},
		{name: "in_use", err: catalog.ErrBookInUse, wantStatus: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.catalog.On("DeleteBook", mock.Anything, id).Return(tt.err).Once()

			rr := h.do(t, http.MethodDelete, "/admin/books/"+id.String(), "admin-token", nil)

			assert.Equal(t, tt.wantStatus, rr.Code)
			h.catalog.AssertExpectations(t)
		})
	}
}
