package cart

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/bookstore/internal/catalog"
	"github.com/vasiliy-maslov/bookstore/internal/localstore"
)

// StorageKey is where the serialized cart lives in the local store.
const StorageKey = "bookstore_cart"

type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
}

// Session is a Cart that writes itself to a Store after every mutation.
type Session struct {
	*Cart
	store Store
}

// Load restores the cart saved in store. A missing or unreadable entry starts an empty cart.
func Load(store Store) (*Session, error) {
	raw, err := store.Get(StorageKey)
	if err != nil {
		if errors.Is(err, localstore.ErrNotFound) {
			return &Session{Cart: New(), store: store}, nil
		}
		return nil, fmt.Errorf("cart: failed to read saved cart: %w", err)
	}

	var lines []Line
	if err := json.Unmarshal(raw, &lines); err != nil {
		log.Warn().Err(err).Msg("cart: saved cart is unreadable, starting empty")
		return &Session{Cart: New(), store: store}, nil
	}
	return &Session{Cart: New(lines...), store: store}, nil
}

func (s *Session) save() error {
	lines := s.Cart.Lines()
	raw, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("cart: failed to encode cart: %w", err)
	}
	if err := s.store.Set(StorageKey, raw); err != nil {
		return fmt.Errorf("cart: failed to save cart: %w", err)
	}
	return nil
}

func (s *Session) Add(book catalog.Book, quantity int) error {
	s.Cart.Add(book, quantity)
	return s.save()
}

func (s *Session) Remove(bookID uuid.UUID) error {
	s.Cart.Remove(bookID)
	return s.save()
}

func (s *Session) SetQuantity(bookID uuid.UUID, quantity int) error {
	s.Cart.SetQuantity(bookID, quantity)
	return s.save()
}

func (s *Session) Clear() error {
	s.Cart.Clear()
	return s.save()
}
