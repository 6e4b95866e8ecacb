package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidProfile     = errors.New("invalid profile")
)

const (
	minPasswordLength = 8
	tokenBytes        = 32
)

// Provider is the identity collaborator the rest of the system talks to.
type Provider interface {
	Register(ctx context.Context, name, email, password string) (*Profile, error)
	Login(ctx context.Context, email, password string) (*Session, *Profile, error)
	// CurrentSession resolves a bearer token into its profile. Unknown and expired tokens yield ErrSessionNotFound.
	CurrentSession(ctx context.Context, token string) (*Profile, error)
	Logout(ctx context.Context, token string) error
	GetProfileByID(ctx context.Context, id uuid.UUID) (*Profile, error)
}

type service struct {
	repo       Repository
	sessionTTL time.Duration
	now        func() time.Time
}

func NewService(repo Repository, sessionTTL time.Duration) Provider {
	return &service{
		repo:       repo,
		sessionTTL: sessionTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) Register(ctx context.Context, name, email, password string) (*Profile, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: email is invalid", ErrInvalidProfile)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidProfile, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to hash password")
		return nil, fmt.Errorf("service: failed to hash password: %w", err)
	}

	profile := &Profile{
		Name:         strings.TrimSpace(name),
		Email:        strings.ToLower(email),
		PasswordHash: string(hash),
	}
	if err := s.repo.CreateProfile(ctx, profile); err != nil {
		if errors.Is(err, ErrEmailExists) {
			return nil, ErrEmailExists
		}
		log.Error().Err(err).Msg("service: failed to create profile in repository")
		return nil, fmt.Errorf("service: failed to create profile: %w", err)
	}

	log.Info().Stringer("user_id", profile.ID).Msg("service: profile registered")
	return profile, nil
}

func (s *service) Login(ctx context.Context, email, password string) (*Session, *Profile, error) {
	profile, err := s.repo.GetProfileByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		log.Error().Err(err).Msg("service: failed to look up profile for login")
		return nil, nil, fmt.Errorf("service: failed to look up profile: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		log.Warn().Stringer("user_id", profile.ID).Msg("service: password mismatch")
		return nil, nil, ErrInvalidCredentials
	}

	token, err := newToken()
	if err != nil {
		return nil, nil, fmt.Errorf("service: failed to generate session token: %w", err)
	}

	session := &Session{
		Token:     token,
		UserID:    profile.ID,
		ExpiresAt: s.now().Add(s.sessionTTL),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		log.Error().Err(err).Stringer("user_id", profile.ID).Msg("service: failed to store session")
		return nil, nil, fmt.Errorf("service: failed to create session: %w", err)
	}

	log.Info().Stringer("user_id", profile.ID).Time("expires_at", session.ExpiresAt).Msg("service: session created")
	return session, profile, nil
}

func (s *service) CurrentSession(ctx context.Context, token string) (*Profile, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}

	session, err := s.repo.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("service: failed to look up session: %w", err)
	}

	if session.Expired(s.now()) {
		if err := s.repo.DeleteSession(ctx, token); err != nil && !errors.Is(err, ErrSessionNotFound) {
			log.Warn().Err(err).Stringer("user_id", session.UserID).Msg("service: failed to drop expired session")
		}
		return nil, ErrSessionNotFound
	}

	profile, err := s.repo.GetProfileByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("service: failed to load session profile: %w", err)
	}
	return profile, nil
}

func (s *service) Logout(ctx context.Context, token string) error {
	err := s.repo.DeleteSession(ctx, token)
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		log.Error().Err(err).Msg("service: failed to delete session")
		return fmt.Errorf("service: failed to delete session: %w", err)
	}
	return nil
}

func (s *service) GetProfileByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	profile, err := s.repo.GetProfileByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("service: failed to get profile by id %s: %w", id, err)
	}
	return profile, nil
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
