package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/bookstore/internal/catalog"
	"github.com/vasiliy-maslov/bookstore/internal/client"
	"github.com/vasiliy-maslov/bookstore/internal/localstore"
)

const (
	sessionKey = "bookstore_session"
	catalogKey = "bookstore_catalog"
)

var errNotLoggedIn = errors.New("not logged in; run `bookstore login` first")

type savedSession struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// clientEnv is what the shopping commands work against: the local state file and an API client
// that already carries the saved session token, if any.
type clientEnv struct {
	store   *localstore.Store
	api     *client.Client
	session *savedSession
}

func openClientEnv(opts *rootOptions) (*clientEnv, error) {
	path := opts.statePath
	if path == "" {
		var err error
		if path, err = localstore.DefaultPath(); err != nil {
			return nil, err
		}
	}

	store, err := localstore.Open(path)
	if err != nil {
		return nil, err
	}

	env := &clientEnv{store: store, api: client.New(opts.apiURL)}

	session, err := env.loadSession()
	if err != nil && !errors.Is(err, localstore.ErrNotFound) {
		_ = store.Close()
		return nil, err
	}
	if session != nil {
		env.session = session
		env.api.SetToken(session.Token)
	}
	return env, nil
}

func (e *clientEnv) Close() {
	if err := e.store.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close local state")
	}
}

func (e *clientEnv) requireSession() error {
	if e.session == nil || e.session.Token == "" {
		return errNotLoggedIn
	}
	return nil
}

func (e *clientEnv) loadSession() (*savedSession, error) {
	var s savedSession
	if err := e.getJSON(sessionKey, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (e *clientEnv) saveSession(s *savedSession) error {
	if err := e.setJSON(sessionKey, s); err != nil {
		return err
	}
	e.session = s
	e.api.SetToken(s.Token)
	return nil
}

func (e *clientEnv) clearSession() error {
	e.session = nil
	e.api.SetToken("")
	return e.store.Delete(sessionKey)
}

func (e *clientEnv) cachedCatalog() ([]catalog.Book, error) {
	var books []catalog.Book
	if err := e.getJSON(catalogKey, &books); err != nil {
		return nil, err
	}
	return books, nil
}

func (e *clientEnv) cacheCatalog(books []catalog.Book) error {
	return e.setJSON(catalogKey, books)
}

func (e *clientEnv) getJSON(key string, v interface{}) error {
	raw, err := e.store.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("local state %s is unreadable: %w", key, err)
	}
	return nil
}

func (e *clientEnv) setJSON(key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return e.store.Set(key, raw)
}
