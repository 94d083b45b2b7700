package auth

import (
	"context"
	"errors"
	"strings"

	"connectrpc.com/connect"
	"github.com/google/uuid"
)

type contextKey string

const (
	tokenHeader            = "Authorization"
	tokenPrefix            = "Bearer "
	identityKey contextKey = "identity"
)

// ErrNoIdentity is returned when a handler needs a user but the request is anonymous.
var ErrNoIdentity = errors.New("no authenticated user in context")

// NewAuthInterceptor creates a ConnectRPC interceptor for authentication.
// Procedures listed in public accept anonymous calls; a valid token is still
// decoded for them when present.
func NewAuthInterceptor(signer *Signer, public ...string) connect.UnaryInterceptorFunc {
	publicSet := make(map[string]struct{}, len(public))
	for _, p := range public {
		publicSet[p] = struct{}{}
	}

	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			_, isPublic := publicSet[req.Spec().Procedure]

			authHeader := req.Header().Get(tokenHeader)
			if authHeader == "" {
				if isPublic {
					return next(ctx, req)
				}
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("missing authorization header"))
			}

			if !strings.HasPrefix(authHeader, tokenPrefix) {
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("invalid authorization header format"))
			}

			claims, err := signer.ValidateToken(strings.TrimPrefix(authHeader, tokenPrefix))
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("invalid or expired token"))
			}

			identity, err := claims.Identity()
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}

			return next(WithIdentity(ctx, identity), req)
		}
	}
}

// WithIdentity stores the identity in the request context.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// GetIdentity retrieves the identity injected by the interceptor.
func GetIdentity(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}

// UserIDFromContext returns the acting user id or ErrNoIdentity.
func UserIDFromContext(ctx context.Context) (uuid.UUID, error) {
	identity, ok := GetIdentity(ctx)
	if !ok {
		return uuid.Nil, ErrNoIdentity
	}
	return identity.UserID, nil
}
