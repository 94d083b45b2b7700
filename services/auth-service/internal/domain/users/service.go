package users

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/campusbay/marketplace/pkg/auth"
	"github.com/campusbay/marketplace/pkg/database"
	"github.com/campusbay/marketplace/pkg/events"
)

const (
	MinPasswordLength      = 6
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
	refreshTokenBytes      = 32
)

// RegisterCommand carries the fields of a sign-up request.
type RegisterCommand struct {
	Email       string
	Password    string
	DisplayName string
}

// ClientInfo is recorded next to each refresh token.
type ClientInfo struct {
	UserAgent string
	IPAddress string
}

type Service struct {
	userRepo     UserRepository
	tokenRepo    TokenRepository
	outboxRepo   OutboxRepository
	signer       *auth.Signer
	txManager    database.TransactionManager
	logger       *slog.Logger
	emailDomains []string
	refreshTTL   time.Duration
}

type Option func(*Service)

// WithEmailDomains restricts registration to addresses under the given domains.
// A list with no usable domain keeps the current ones.
func WithEmailDomains(domains []string) Option {
	return func(s *Service) {
		var cleaned []string
		for _, d := range domains {
			d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "@"))
			if d != "" {
				cleaned = append(cleaned, d)
			}
		}
		if len(cleaned) > 0 {
			s.emailDomains = cleaned
		}
	}
}

func WithRefreshTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

func NewService(
	userRepo UserRepository,
	tokenRepo TokenRepository,
	outboxRepo OutboxRepository,
	signer *auth.Signer,
	txManager database.TransactionManager,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		userRepo:   userRepo,
		tokenRepo:  tokenRepo,
		outboxRepo: outboxRepo,
		signer:     signer,
		txManager:  txManager,
		logger:     logger,
		refreshTTL: DefaultRefreshTokenTTL,
	}
	WithEmailDomains(DefaultEmailDomains)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates the account and queues a user.created event in the same transaction.
func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*User, error) {
	email := NormalizeEmail(cmd.Email)
	displayName := strings.TrimSpace(cmd.DisplayName)
	if err := s.validateRegistration(email, cmd.Password, displayName); err != nil {
		return nil, err
	}

	_, err := s.userRepo.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, ErrUserAlreadyExists
	case !errors.Is(err, ErrUserNotFound):
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	hash, err := auth.HashPassword(cmd.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		DisplayName:  displayName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	payload, err := events.EncodeUserCreated(&events.UserCreated{
		EventID:     uuid.New(),
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		CreatedAt:   now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode user.created: %w", err)
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// The repository maps a concurrent duplicate to ErrUserAlreadyExists.
	if err := s.userRepo.CreateUser(ctx, tx, user); err != nil {
		return nil, err
	}
	if err := s.outboxRepo.SaveEvent(ctx, tx, events.NewOutboxEvent(events.UserCreatedRoutingKey, user.ID, payload)); err != nil {
		return nil, fmt.Errorf("failed to save outbox event: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return user, nil
}

func (s *Service) Login(ctx context.Context, email, password string, client ClientInfo) (*Session, error) {
	user, err := s.userRepo.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	valid, err := auth.VerifyPassword(user.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return nil, ErrInvalidCredentials
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	session, err := s.issueSession(ctx, tx, user, client)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return session, nil
}

// Refresh rotates a refresh token. Presenting an already revoked token revokes
// every session of its owner.
func (s *Service) Refresh(ctx context.Context, refreshToken string, client ClientInfo) (*Session, error) {
	if refreshToken == "" {
		return nil, ErrInvalidToken
	}
	tokenHash := hashToken(refreshToken)

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stored, err := s.tokenRepo.GetRefreshTokenForUpdate(ctx, tx, tokenHash)
	if err != nil {
		return nil, err
	}

	if stored.Revoked {
		if err := s.tokenRepo.RevokeAllUserTokens(ctx, tx, stored.UserID); err != nil {
			return nil, fmt.Errorf("failed to revoke user tokens: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		s.logger.Warn("revoked refresh token reused", "user_id", stored.UserID)
		return nil, ErrInvalidToken
	}
	if time.Now().After(stored.ExpiresAt) {
		return nil, ErrInvalidToken
	}

	user, err := s.userRepo.GetUserByID(ctx, stored.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := s.tokenRepo.RevokeRefreshToken(ctx, tx, tokenHash); err != nil {
		return nil, fmt.Errorf("failed to revoke token: %w", err)
	}
	session, err := s.issueSession(ctx, tx, user, client)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return session, nil
}

// Logout revokes the refresh token. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.tokenRepo.RevokeRefreshToken(ctx, tx, hashToken(refreshToken)); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*User, error) {
	return s.userRepo.GetUserByID(ctx, userID)
}

// SetAdmin grants or revokes admin rights. The actor's rights are read from
// the database, not from the token, so a demoted admin loses access at once.
func (s *Service) SetAdmin(ctx context.Context, actorID, targetID uuid.UUID, isAdmin bool) (*User, error) {
	actor, err := s.userRepo.GetUserByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrForbidden
		}
		return nil, err
	}
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.userRepo.SetAdmin(ctx, tx, targetID, isAdmin); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("admin flag changed", "actor_id", actorID, "user_id", targetID, "is_admin", isAdmin)
	return s.userRepo.GetUserByID(ctx, targetID)
}

func (s *Service) issueSession(ctx context.Context, tx pgx.Tx, user *User, client ClientInfo) (*Session, error) {
	access, err := s.signer.GenerateToken(auth.Identity{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		IsAdmin:     user.IsAdmin,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	raw, err := newRefreshToken()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	stored := &RefreshToken{
		TokenHash: hashToken(raw),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
		UserAgent: client.UserAgent,
		IPAddress: client.IPAddress,
	}
	if err := s.tokenRepo.CreateRefreshToken(ctx, tx, stored); err != nil {
		return nil, fmt.Errorf("failed to save refresh token: %w", err)
	}

	return &Session{
		User:                  user,
		AccessToken:           access.Token,
		AccessTokenExpiresAt:  access.ExpiresAt,
		RefreshToken:          raw,
		RefreshTokenExpiresAt: stored.ExpiresAt,
	}, nil
}

func (s *Service) validateRegistration(email, password, displayName string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	if !s.allowedDomain(email) {
		return ErrNotCampusEmail
	}
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if displayName == "" {
		return ErrInvalidDisplayName
	}
	return nil
}

func (s *Service) allowedDomain(email string) bool {
	for _, d := range s.emailDomains {
		if strings.HasSuffix(email, "@"+d) {
			return true
		}
	}
	return false
}

// NormalizeEmail trims and lowercases an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func newRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashToken(token string) []byte {
	hash := sha256.Sum256([]byte(token))
	return hash[:]
}
