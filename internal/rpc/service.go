package rpc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/roach88/cloudsync/internal/driver"
	"github.com/roach88/cloudsync/internal/tracker"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "cloudsync.driver.v1.Driver"

// Facade is the driver surface served over gRPC. *driver.Driver implements it.
type Facade interface {
	CreateVolume(ctx context.Context, v driver.Volume) (driver.Update, error)
	DeleteVolume(ctx context.Context, v driver.Volume) error
	AttachVolume(ctx context.Context, v driver.Volume, inst driver.Instance, mountpoint string) error
	DetachVolume(ctx context.Context, v driver.Volume, inst driver.Instance) error
	GetVolumeStats(ctx context.Context, refresh bool) (driver.VolumeStats, error)
	SpawnInstance(ctx context.Context, inst driver.Instance) (driver.Update, error)
	DestroyInstance(ctx context.Context, inst driver.Instance) error
	PowerOnInstance(ctx context.Context, inst driver.Instance) (driver.Update, error)
	PowerOffInstance(ctx context.Context, inst driver.Instance) (driver.Update, error)
	RebootInstance(ctx context.Context, inst driver.Instance, hard bool) (driver.Update, error)
}

var _ Facade = (*driver.Driver)(nil)

func unary[Req any](name string, call func(Facade, context.Context, *Req) (proto.Message, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			msg := new(structpb.Struct)
			if err := dec(msg); err != nil {
				return nil, err
			}
			in := new(Req)
			if err := fromStruct(msg, in); err != nil {
				return nil, status.Error(codes.InvalidArgument, err.Error())
			}
			handler := func(ctx context.Context, req any) (any, error) {
				out, err := call(srv.(Facade), ctx, req.(*Req))
				if err != nil {
					return nil, toStatus(err)
				}
				return out, nil
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func reply(v any, err error) (proto.Message, error) {
	if err != nil {
		return nil, err
	}
	return toStruct(v)
}

func empty(err error) (proto.Message, error) {
	if err != nil {
		return nil, err
	}
	return &emptypb.Empty{}, nil
}

// serviceDesc is hand-written: every method takes a Struct and replies a
// Struct or Empty, so no generated code is needed.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Facade)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateVolume", func(f Facade, ctx context.Context, r *VolumeRequest) (proto.Message, error) {
			return reply(f.CreateVolume(ctx, r.Volume))
		}),
		unary("DeleteVolume", func(f Facade, ctx context.Context, r *VolumeRequest) (proto.Message, error) {
			return empty(f.DeleteVolume(ctx, r.Volume))
		}),
		unary("AttachVolume", func(f Facade, ctx context.Context, r *AttachRequest) (proto.Message, error) {
			return empty(f.AttachVolume(ctx, r.Volume, r.Instance, r.Mountpoint))
		}),
		unary("DetachVolume", func(f Facade, ctx context.Context, r *AttachRequest) (proto.Message, error) {
			return empty(f.DetachVolume(ctx, r.Volume, r.Instance))
		}),
		unary("GetVolumeStats", func(f Facade, ctx context.Context, r *StatsRequest) (proto.Message, error) {
			return reply(f.GetVolumeStats(ctx, r.Refresh))
		}),
		unary("SpawnInstance", func(f Facade, ctx context.Context, r *InstanceRequest) (proto.Message, error) {
			return reply(f.SpawnInstance(ctx, r.Instance))
		}),
		unary("DestroyInstance", func(f Facade, ctx context.Context, r *InstanceRequest) (proto.Message, error) {
			return empty(f.DestroyInstance(ctx, r.Instance))
		}),
		unary("PowerOnInstance", func(f Facade, ctx context.Context, r *InstanceRequest) (proto.Message, error) {
			return reply(f.PowerOnInstance(ctx, r.Instance))
		}),
		unary("PowerOffInstance", func(f Facade, ctx context.Context, r *InstanceRequest) (proto.Message, error) {
			return reply(f.PowerOffInstance(ctx, r.Instance))
		}),
		unary("RebootInstance", func(f Facade, ctx context.Context, r *InstanceRequest) (proto.Message, error) {
			return reply(f.RebootInstance(ctx, r.Instance, r.Hard))
		}),
	},
	Metadata: "cloudsync/driver/v1",
}

// Register adds the driver service to s.
func Register(s grpc.ServiceRegistrar, f Facade) {
	s.RegisterService(&serviceDesc, f)
}

// NewServer creates a gRPC server with request logging and the driver
// service registered.
func NewServer(f Facade, logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(LoggingInterceptor(logger)))
	s := grpc.NewServer(opts...)
	Register(s, f)
	return s
}

// LoggingInterceptor logs every call with its status code and duration.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		level := slog.LevelInfo
		if err != nil {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "rpc", "method", info.FullMethod, "code", code.String(), "duration", time.Since(start), "error", err)
		return resp, err
	}
}

// toStatus maps driver and tracker errors onto gRPC codes.
func toStatus(err error) error {
	var failure *tracker.Failure
	switch {
	case errors.Is(err, driver.ErrNoRemoteID):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, driver.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.As(err, &failure) && failure.Reason == tracker.ReasonTimeout:
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.As(err, &failure) && failure.Reason == tracker.ReasonNotFound:
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
