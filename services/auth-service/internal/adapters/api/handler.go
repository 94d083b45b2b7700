package api

import (
	"context"
	"net"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/campusbay/marketplace/pkg/auth"
	"github.com/campusbay/marketplace/pkg/rpc"
	"github.com/campusbay/marketplace/services/auth-service/internal/domain/users"
)

const ServiceName = "auth.v1.AuthService"

// PublicProcedures can be called without a token.
var PublicProcedures = []string{
	rpc.Procedure(ServiceName, "Register"),
	rpc.Procedure(ServiceName, "Login"),
	rpc.Procedure(ServiceName, "Refresh"),
	rpc.Procedure(ServiceName, "Logout"),
}

var errorMapper = rpc.ErrorMapper{
	{Target: users.ErrInvalidInput, Code: connect.CodeInvalidArgument},
	{Target: users.ErrUserAlreadyExists, Code: connect.CodeAlreadyExists},
	{Target: users.ErrInvalidCredentials, Code: connect.CodeUnauthenticated},
	{Target: users.ErrInvalidToken, Code: connect.CodeUnauthenticated},
	{Target: users.ErrUserNotFound, Code: connect.CodeNotFound},
	{Target: users.ErrForbidden, Code: connect.CodePermissionDenied},
	{Target: auth.ErrNoIdentity, Code: connect.CodeUnauthenticated},
}

// AuthService is the part of users.Service the API needs
type AuthService interface {
	Register(ctx context.Context, cmd users.RegisterCommand) (*users.User, error)
	Login(ctx context.Context, email, password string, client users.ClientInfo) (*users.Session, error)
	Refresh(ctx context.Context, refreshToken string, client users.ClientInfo) (*users.Session, error)
	Logout(ctx context.Context, refreshToken string) error
	GetProfile(ctx context.Context, userID uuid.UUID) (*users.User, error)
	SetAdmin(ctx context.Context, actorID, targetID uuid.UUID, isAdmin bool) (*users.User, error)
}

type AuthServiceHandler struct {
	service AuthService
}

func NewAuthServiceHandler(service AuthService) *AuthServiceHandler {
	return &AuthServiceHandler{service: service}
}

// Register mounts every procedure on mux.
func (h *AuthServiceHandler) Register(mux *http.ServeMux, interceptors ...connect.Interceptor) {
	opts := rpc.HandlerOptions(interceptors...)

	handle(mux, "Register", h.RegisterUser, opts)
	handle(mux, "Login", h.Login, opts)
	handle(mux, "Refresh", h.Refresh, opts)
	handle(mux, "Logout", h.Logout, opts)
	handle(mux, "GetProfile", h.GetProfile, opts)
	handle(mux, "SetAdmin", h.SetAdmin, opts)
}

func handle[Req, Res any](
	mux *http.ServeMux,
	method string,
	fn func(context.Context, *connect.Request[Req]) (*connect.Response[Res], error),
	opts []connect.HandlerOption,
) {
	procedure := rpc.Procedure(ServiceName, method)
	mux.Handle(procedure, connect.NewUnaryHandler(procedure, fn, opts...))
}

// RegisterUser serves the Register procedure.
func (h *AuthServiceHandler) RegisterUser(
	ctx context.Context,
	req *connect.Request[RegisterRequest],
) (*connect.Response[UserResponse], error) {
	user, err := h.service.Register(ctx, users.RegisterCommand{
		Email:       req.Msg.Email,
		Password:    req.Msg.Password,
		DisplayName: req.Msg.DisplayName,
	})
	if err != nil {
		return nil, errorMapper.Map(err)
	}
	return connect.NewResponse(&UserResponse{User: toUser(user)}), nil
}

func (h *AuthServiceHandler) Login(
	ctx context.Context,
	req *connect.Request[LoginRequest],
) (*connect.Response[SessionResponse], error) {
	session, err := h.service.Login(ctx, req.Msg.Email, req.Msg.Password, clientInfo(req))
	if err != nil {
		return nil, errorMapper.Map(err)
	}
	return connect.NewResponse(toSession(session)), nil
}

func (h *AuthServiceHandler) Refresh(
	ctx context.Context,
	req *connect.Request[RefreshRequest],
) (*connect.Response[SessionResponse], error) {
	session, err := h.service.Refresh(ctx, req.Msg.RefreshToken, clientInfo(req))
	if err != nil {
		return nil, errorMapper.Map(err)
	}
	return connect.NewResponse(toSession(session)), nil
}

func (h *AuthServiceHandler) Logout(
	ctx context.Context,
	req *connect.Request[LogoutRequest],
) (*connect.Response[Empty], error) {
	if req.Msg.RefreshToken == "" {
		return nil, rpc.InvalidArgument("refresh_token is required")
	}
	if err := h.service.Logout(ctx, req.Msg.RefreshToken); err != nil {
		return nil, errorMapper.Map(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

// GetProfile returns the caller's own account
func (h *AuthServiceHandler) GetProfile(
	ctx context.Context,
	_ *connect.Request[GetProfileRequest],
) (*connect.Response[UserResponse], error) {
	userID, err := auth.UserIDFromContext(ctx)
	if err != nil {
		return nil, errorMapper.Map(err)
	}
	user, err := h.service.GetProfile(ctx, userID)
	if err != nil {
		return nil, errorMapper.Map(err)
	}
	return connect.NewResponse(&UserResponse{User: toUser(user)}), nil
}

func (h *AuthServiceHandler) SetAdmin(
	ctx context.Context,
	req *connect.Request[SetAdminRequest],
) (*connect.Response[UserResponse], error) {
	actorID, err := auth.UserIDFromContext(ctx)
	if err != nil {
		return nil, errorMapper.Map(err)
	}
	targetID, err := uuid.Parse(req.Msg.UserID)
	if err != nil {
		return nil, rpc.InvalidArgument("invalid user_id")
	}
	user, err := h.service.SetAdmin(ctx, actorID, targetID, req.Msg.IsAdmin)
	if err != nil {
		return nil, errorMapper.Map(err)
	}
	return connect.NewResponse(&UserResponse{User: toUser(user)}), nil
}

func clientInfo[T any](req *connect.Request[T]) users.ClientInfo {
	ip := req.Peer().Addr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return users.ClientInfo{
		UserAgent: req.Header().Get("User-Agent"),
		IPAddress: ip,
	}
}
