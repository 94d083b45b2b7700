//go:build integration

package api_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusbay/marketplace/pkg/auth"
	"github.com/campusbay/marketplace/pkg/database"
	pkgevents "github.com/campusbay/marketplace/pkg/events"
	"github.com/campusbay/marketplace/pkg/rpc"
	"github.com/campusbay/marketplace/pkg/testhelpers"
	"github.com/campusbay/marketplace/services/auth-service/internal/adapters/api"
	infradb "github.com/campusbay/marketplace/services/auth-service/internal/adapters/database"
	"github.com/campusbay/marketplace/services/auth-service/internal/domain/users"
)

type authApp struct {
	server *httptest.Server
	signer *auth.Signer
	pool   *pgxpool.Pool
}

// setupAuthApp wires the service the way cmd/api does, against a real database.
func setupAuthApp(t *testing.T) *authApp {
	t.Helper()
	testDB := testhelpers.NewTestDatabase(t, "../../../migrations")
	pool := testDB.Pool

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	signer := testhelpers.NewTestSigner(t)
	service := users.NewService(
		infradb.NewPostgresUserRepository(pool),
		infradb.NewPostgresTokenRepository(pool),
		pkgevents.NewPostgresOutboxRepository(),
		signer,
		database.NewPostgresTransactionManager(pool, 5*time.Second),
		logger,
	)

	mux := http.NewServeMux()
	api.NewAuthServiceHandler(service).Register(mux, auth.NewAuthInterceptor(signer, api.PublicProcedures...))
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return &authApp{server: server, signer: signer, pool: pool}
}

func invoke[Req, Res any](t *testing.T, app *authApp, method string, msg *Req, accessToken string) (*Res, error) {
	t.Helper()
	client := connect.NewClient[Req, Res](app.server.Client(),
		app.server.URL+rpc.Procedure(api.ServiceName, method), rpc.ClientOptions()...)
	req := connect.NewRequest(msg)
	if accessToken != "" {
		req.Header().Set("Authorization", "Bearer "+accessToken)
	}
	res, err := client.CallUnary(context.Background(), req)
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func TestAuthAPI_Flow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	app := setupAuthApp(t)
	ctx := context.Background()

	registered, err := invoke[api.RegisterRequest, api.UserResponse](t, app, "Register", &api.RegisterRequest{
		Email: "Ana@Rutgers.edu", Password: "secret", DisplayName: "Ana",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "ana@rutgers.edu", registered.User.Email)

	var pending int
	require.NoError(t, app.pool.QueryRow(ctx,
		`SELECT count(*) FROM outbox_events WHERE event_type = 'user.created' AND status = 'pending'`).Scan(&pending))
	assert.Equal(t, 1, pending, "registration queues a user.created event")

	_, err = invoke[api.RegisterRequest, api.UserResponse](t, app, "Register", &api.RegisterRequest{
		Email: "ana@rutgers.edu", Password: "another", DisplayName: "Imposter",
	}, "")
	assert.Equal(t, connect.CodeAlreadyExists, connect.CodeOf(err))

	_, err = invoke[api.RegisterRequest, api.UserResponse](t, app, "Register", &api.RegisterRequest{
		Email: "ana@gmail.com", Password: "secret", DisplayName: "Ana",
	}, "")
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = invoke[api.LoginRequest, api.SessionResponse](t, app, "Login",
		&api.LoginRequest{Email: "ana@rutgers.edu", Password: "wrong"}, "")
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

	session, err := invoke[api.LoginRequest, api.SessionResponse](t, app, "Login",
		&api.LoginRequest{Email: "ana@rutgers.edu", Password: "secret"}, "")
	require.NoError(t, err)

	profile, err := invoke[api.GetProfileRequest, api.UserResponse](t, app, "GetProfile",
		&api.GetProfileRequest{}, session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, profile.User.ID)

	rotated, err := invoke[api.RefreshRequest, api.SessionResponse](t, app, "Refresh",
		&api.RefreshRequest{RefreshToken: session.RefreshToken}, "")
	require.NoError(t, err)
	assert.NotEqual(t, session.RefreshToken, rotated.RefreshToken)

	// Replaying the rotated-out token revokes the whole family.
	_, err = invoke[api.RefreshRequest, api.SessionResponse](t, app, "Refresh",
		&api.RefreshRequest{RefreshToken: session.RefreshToken}, "")
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	_, err = invoke[api.RefreshRequest, api.SessionResponse](t, app, "Refresh",
		&api.RefreshRequest{RefreshToken: rotated.RefreshToken}, "")
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

	again, err := invoke[api.LoginRequest, api.SessionResponse](t, app, "Login",
		&api.LoginRequest{Email: "ana@rutgers.edu", Password: "secret"}, "")
	require.NoError(t, err)
	_, err = invoke[api.LogoutRequest, api.Empty](t, app, "Logout", &api.LogoutRequest{RefreshToken: again.RefreshToken}, "")
	require.NoError(t, err)
	_, err = invoke[api.RefreshRequest, api.SessionResponse](t, app, "Refresh",
		&api.RefreshRequest{RefreshToken: again.RefreshToken}, "")
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
}

func TestAuthAPI_SetAdmin(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	app := setupAuthApp(t)
	ctx := context.Background()

	register := func(email string) string {
		res, err := invoke[api.RegisterRequest, api.UserResponse](t, app, "Register",
			&api.RegisterRequest{Email: email, Password: "secret", DisplayName: "User"}, "")
		require.NoError(t, err)
		return res.User.ID
	}
	adminID := register("admin@rutgers.edu")
	memberID := register("member@rutgers.edu")

	_, err := app.pool.Exec(ctx, `UPDATE users SET is_admin = true WHERE id = $1`, adminID)
	require.NoError(t, err)

	token := func(id string) string {
		tok, err := app.signer.GenerateToken(auth.Identity{UserID: uuid.MustParse(id)})
		require.NoError(t, err)
		return tok.Token
	}

	_, err = invoke[api.SetAdminRequest, api.UserResponse](t, app, "SetAdmin",
		&api.SetAdminRequest{UserID: adminID, IsAdmin: false}, token(memberID))
	assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))

	promoted, err := invoke[api.SetAdminRequest, api.UserResponse](t, app, "SetAdmin",
		&api.SetAdminRequest{UserID: memberID, IsAdmin: true}, token(adminID))
	require.NoError(t, err)
	assert.True(t, promoted.User.IsAdmin)

	_, err = invoke[api.SetAdminRequest, api.UserResponse](t, app, "SetAdmin",
		&api.SetAdminRequest{UserID: uuid.NewString(), IsAdmin: true}, token(adminID))
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
}
