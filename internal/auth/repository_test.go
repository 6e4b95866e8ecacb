package auth_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/bookstore/internal/auth"
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

func setup(t *testing.T) auth.Repository {
	t.Helper()
	if testDB == nil {
		t.Skip("DB_HOST_TEST is not set, skipping repository test")
	}

	clean := func() {
		_, err := testDB.Exec(context.Background(), "TRUNCATE TABLE order_items, orders, seller_books, sessions, profiles CASCADE")
		require.NoError(t, err, "failed to truncate tables")
	}
	clean()
	t.Cleanup(clean)

	return auth.NewRepository(testDB)
}

func TestPostgresRepository_Profiles(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	p := &auth.Profile{Name: "Reader", Email: "Reader@Example.com", PasswordHash: "hash"}
	require.NoError(t, repo.CreateProfile(ctx, p))

	got, err := repo.GetProfileByEmail(ctx, "reader@example.com")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.False(t, got.IsAdmin)

	dup := &auth.Profile{Name: "Other", Email: "reader@example.com", PasswordHash: "hash"}
	assert.ErrorIs(t, repo.CreateProfile(ctx, dup), auth.ErrEmailExists)

	require.NoError(t, repo.SetAdmin(ctx, "READER@example.com", true))
	got, err = repo.GetProfileByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAdmin)

	assert.ErrorIs(t, repo.SetAdmin(ctx, "ghost@example.com", true), auth.ErrProfileNotFound)
}

func TestPostgresRepository_Sessions(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	p := &auth.Profile{Name: "Reader", Email: "reader@example.com", PasswordHash: "hash"}
	require.NoError(t, repo.CreateProfile(ctx, p))

	now := time.Now().UTC()
	live := &auth.Session{Token: "live", UserID: p.ID, ExpiresAt: now.Add(time.Hour)}
	stale := &auth.Session{Token: "stale", UserID: p.ID, ExpiresAt: now.Add(-time.Hour)}
	require.NoError(t, repo.CreateSession(ctx, live))
	require.NoError(t, repo.CreateSession(ctx, stale))

	got, err := repo.GetSession(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.UserID)

	n, err := repo.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.GetSession(ctx, "stale")
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)

	require.NoError(t, repo.DeleteSession(ctx, "live"))
	assert.ErrorIs(t, repo.DeleteSession(ctx, "live"), auth.ErrSessionNotFound)
}
