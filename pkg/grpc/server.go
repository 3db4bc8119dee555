package grpc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"LegalPracticePlatform/pkg/errors"
	"LegalPracticePlatform/pkg/logger"
)

// traceHeader ключ metadata с идентификатором запроса
const traceHeader = "x-request-id"

// Server gRPC сервер с health сервисом и общими interceptor'ами
type Server struct {
	*grpc.Server
	Health *health.Server
}

// NewServer создает gRPC сервер с логированием и преобразованием ошибок
func NewServer(log logger.Logger, opts ...grpc.ServerOption) *Server {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(UnaryServerInterceptor(log))}, opts...)
	srv := grpc.NewServer(opts...)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthServer)

	return &Server{Server: srv, Health: healthServer}
}

// SetServing выставляет статус health для сервиса
func (s *Server) SetServing(service string, serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.Health.SetServingStatus(service, st)
}

// UnaryServerInterceptor логирует вызовы, восстанавливается после паники и
// переводит *errors.Error в gRPC статус
func UnaryServerInterceptor(log logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get(traceHeader); len(values) > 0 {
				ctx = logger.WithTraceID(ctx, values[0])
			}
		}

		start := time.Now()
		defer func() {
			if recovered := recover(); recovered != nil {
				log.Error("gRPC handler panic",
					logger.CtxField(ctx),
					logger.String("method", info.FullMethod),
					logger.String("panic", fmt.Sprint(recovered)),
				)
				err = status.Error(codes.Internal, "internal server error")
			}
		}()

		resp, err = handler(ctx, req)
		if err == nil {
			log.Debug("gRPC call completed",
				logger.CtxField(ctx),
				logger.String("method", info.FullMethod),
				logger.Duration("duration", time.Since(start)),
			)
			return resp, nil
		}

		return resp, ToStatus(ctx, log, info.FullMethod, err)
	}
}

// ToStatus логирует ошибку и конвертирует ее в gRPC статус
func ToStatus(ctx context.Context, log logger.Logger, operation string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		if _, isCustom := errors.As(err); !isCustom {
			return err
		}
	}

	e, ok := errors.As(err)
	if !ok {
		e = errors.Wrap(err, errors.ErrInternal, "internal server error")
	}

	fields := []logger.Field{
		logger.CtxField(ctx),
		logger.String("operation", operation),
		logger.String("code", string(e.Code)),
		logger.Error(err),
	}
	if e.Code == errors.ErrInternal {
		log.Error("Operation failed", fields...)
	} else {
		log.Warn("Operation rejected", fields...)
	}

	return e.WithContext(ctx).ToGRPCErr()
}
