package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"gttdash/internal/domain"
	"gttdash/internal/httpapi"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "gttdash.v1.Dashboard"

// DashboardServer is the server API for the Dashboard service. Every method
// takes google.protobuf.Empty and returns the HTTP JSON payload as a
// google.protobuf.Struct.
type DashboardServer interface {
	GetRiskAnalytics(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetTechnicalHealth(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetMarketHealth(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	RefreshSession(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

type rpc func(DashboardServer, context.Context, *emptypb.Empty) (*structpb.Struct, error)

func unaryHandler(method string, call rpc) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(emptypb.Empty)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DashboardServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(DashboardServer), ctx, req.(*emptypb.Empty))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// DashboardServiceDesc describes the Dashboard service for grpc.Server.
var DashboardServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DashboardServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetRiskAnalytics", Handler: unaryHandler("GetRiskAnalytics", DashboardServer.GetRiskAnalytics)},
		{MethodName: "GetTechnicalHealth", Handler: unaryHandler("GetTechnicalHealth", DashboardServer.GetTechnicalHealth)},
		{MethodName: "GetMarketHealth", Handler: unaryHandler("GetMarketHealth", DashboardServer.GetMarketHealth)},
		{MethodName: "RefreshSession", Handler: unaryHandler("RefreshSession", DashboardServer.RefreshSession)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gttdash/v1/dashboard.proto",
}

// RegisterDashboardServer registers srv on s.
func RegisterDashboardServer(s grpc.ServiceRegistrar, srv DashboardServer) {
	s.RegisterService(&DashboardServiceDesc, srv)
}

// DashboardService implements DashboardServer over the engine.
type DashboardService struct {
	dash httpapi.Dashboard
}

// Compile-time interface check.
var _ DashboardServer = (*DashboardService)(nil)

// NewDashboardService creates a DashboardService.
func NewDashboardService(dash httpapi.Dashboard) *DashboardService {
	return &DashboardService{dash: dash}
}

func (s *DashboardService) GetRiskAnalytics(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	items, summary, err := s.dash.RiskAnalytics(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(httpapi.RiskPayload(items, summary))
}

func (s *DashboardService) GetTechnicalHealth(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	items, summary, err := s.dash.TechnicalHealth(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(httpapi.TechnicalPayload(items, summary))
}

func (s *DashboardService) GetMarketHealth(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	items, summary, err := s.dash.MarketHealth(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(httpapi.MarketPayload(items, summary))
}

func (s *DashboardService) RefreshSession(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.dash.Refresh(ctx); err != nil {
		return nil, toStatus(err)
	}
	return toStruct(httpapi.StatusResponse{Status: "success", Message: "Session refreshed successfully"})
}

// toStruct converts a JSON-tagged payload into a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "marshal payload: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "unmarshal payload: %v", err)
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build struct: %v", err)
	}
	return st, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrSession):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// loggingInterceptor logs every unary call with its status code.
func loggingInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Debug("rpc",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
		return resp, err
	}
}

// DashboardClient calls the Dashboard service.
type DashboardClient struct {
	cc grpc.ClientConnInterface
}

// NewDashboardClient wraps an established connection.
func NewDashboardClient(cc grpc.ClientConnInterface) *DashboardClient {
	return &DashboardClient{cc: cc}
}

func (c *DashboardClient) invoke(ctx context.Context, method string) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, new(emptypb.Empty), out); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return out, nil
}

// GetRiskAnalytics fetches the risk join.
func (c *DashboardClient) GetRiskAnalytics(ctx context.Context) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetRiskAnalytics")
}

// GetTechnicalHealth fetches the stock scorecards.
func (c *DashboardClient) GetTechnicalHealth(ctx context.Context) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetTechnicalHealth")
}

// GetMarketHealth fetches the index scorecards.
func (c *DashboardClient) GetMarketHealth(ctx context.Context) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetMarketHealth")
}

// RefreshSession forces a new broker login.
func (c *DashboardClient) RefreshSession(ctx context.Context) (*structpb.Struct, error) {
	return c.invoke(ctx, "RefreshSession")
}
