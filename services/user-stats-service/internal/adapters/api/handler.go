package api

import (
	"context"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/campusbay/marketplace/pkg/auth"
	"github.com/campusbay/marketplace/pkg/rpc"
	"github.com/campusbay/marketplace/services/user-stats-service/internal/domain/userstats"
)

const ServiceName = "userstats.v1.UserStatsService"

// PublicProcedures can be called without a token.
var PublicProcedures = []string{
	rpc.Procedure(ServiceName, "GetUserStats"),
	rpc.Procedure(ServiceName, "ListTopSellers"),
}

var errorMapper = rpc.ErrorMapper{
	{Target: userstats.ErrStatsNotFound, Code: connect.CodeNotFound},
	{Target: userstats.ErrInvalidInput, Code: connect.CodeInvalidArgument},
	{Target: auth.ErrNoIdentity, Code: connect.CodeUnauthenticated},
}

type StatsService interface {
	GetUserStats(ctx context.Context, userID uuid.UUID) (*userstats.UserStats, error)
	TopSellers(ctx context.Context, limit int) ([]*userstats.UserStats, error)
}

type UserStats struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	ItemsSold   int64  `json:"items_sold"`
	Revenue     int64  `json:"revenue"`
	ItemsBought int64  `json:"items_bought"`
	Spent       int64  `json:"spent"`
	LastTradeAt string `json:"last_trade_at,omitempty"`
}

type GetUserStatsRequest struct {
	UserID string `json:"user_id"`
}

type GetMyStatsRequest struct{}

type UserStatsResponse struct {
	Stats UserStats `json:"stats"`
}

type ListTopSellersRequest struct {
	Limit int32 `json:"limit"`
}

type ListTopSellersResponse struct {
	Sellers []UserStats `json:"sellers"`
}

type UserStatsServiceHandler struct {
	service StatsService
}

func NewUserStatsServiceHandler(service StatsService) *UserStatsServiceHandler {
	return &UserStatsServiceHandler{service: service}
}

// Register mounts every procedure on mux.
func (h *UserStatsServiceHandler) Register(mux *http.ServeMux, interceptors ...connect.Interceptor) {
	opts := rpc.HandlerOptions(interceptors...)
	handle(mux, "GetUserStats", h.GetUserStats, opts)
	handle(mux, "GetMyStats", h.GetMyStats, opts)
	handle(mux, "ListTopSellers", h.ListTopSellers, opts)
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

func (h *UserStatsServiceHandler) GetUserStats(
	ctx context.Context,
	req *connect.Request[GetUserStatsRequest],
) (*connect.Response[UserStatsResponse], error) {
	userID, err := uuid.Parse(req.Msg.UserID)
	if err != nil {
		return nil, rpc.InvalidArgument("invalid user_id")
	}
	return h.statsFor(ctx, userID)
}

// GetMyStats returns the caller's own stats
func (h *UserStatsServiceHandler) GetMyStats(
	ctx context.Context,
	_ *connect.Request[GetMyStatsRequest],
) (*connect.Response[UserStatsResponse], error) {
	userID, err := auth.UserIDFromContext(ctx)
	if err != nil {
		return nil, errorMapper.Map(err)
	}
	return h.statsFor(ctx, userID)
}

func (h *UserStatsServiceHandler) statsFor(ctx context.Context, userID uuid.UUID) (*connect.Response[UserStatsResponse], error) {
	stats, err := h.service.GetUserStats(ctx, userID)
	if err != nil {
		return nil, errorMapper.Map(err)
	}
	return connect.NewResponse(&UserStatsResponse{Stats: toUserStats(stats)}), nil
}

func (h *UserStatsServiceHandler) ListTopSellers(
	ctx context.Context,
	req *connect.Request[ListTopSellersRequest],
) (*connect.Response[ListTopSellersResponse], error) {
	sellers, err := h.service.TopSellers(ctx, int(req.Msg.Limit))
	if err != nil {
		return nil, errorMapper.Map(err)
	}
	res := &ListTopSellersResponse{Sellers: make([]UserStats, 0, len(sellers))}
	for _, s := range sellers {
		res.Sellers = append(res.Sellers, toUserStats(s))
	}
	return connect.NewResponse(res), nil
}

func toUserStats(s *userstats.UserStats) UserStats {
	out := UserStats{
		UserID:      s.UserID.String(),
		DisplayName: s.DisplayName,
		ItemsSold:   s.ItemsSold,
		Revenue:     s.Revenue,
		ItemsBought: s.ItemsBought,
		Spent:       s.Spent,
	}
	if s.LastTradeAt != nil {
		out.LastTradeAt = s.LastTradeAt.UTC().Format(time.RFC3339)
	}
	return out
}
