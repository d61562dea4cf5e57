package grpc

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"time"

	"github.com/DRSN-tech/fashion-search/internal/cfg"
	"github.com/DRSN-tech/fashion-search/internal/usecase"
	"github.com/DRSN-tech/fashion-search/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// maxRecvMsgSize покрывает изображение в base64 внутри запроса поиска.
const maxRecvMsgSize = 16 << 20

type GRPCServer struct {
	server *grpc.Server
	cfg    *cfg.GRPCConfig
	logger logger.Logger
}

func NewGRPCServer(cfg *cfg.GRPCConfig, logger logger.Logger) *GRPCServer {
	return &GRPCServer{
		server: grpc.NewServer(serverOptions(logger)...),
		cfg:    cfg,
		logger: logger,
	}
}

func serverOptions(log logger.Logger) []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.MaxRecvMsgSize(maxRecvMsgSize),
		// recovery внутренний, чтобы паника тоже попала в журнал вызовов
		grpc.ChainUnaryInterceptor(loggingInterceptor(log), recoveryInterceptor(log)),
	}
}

func (s *GRPCServer) RegisterServices(searchUC usecase.SearchUC) {
	s.server.RegisterService(&SearchServiceDesc, NewSearchService(searchUC, s.logger))
}

func (s *GRPCServer) Start() error {
	addr := ":" + s.cfg.Port
	lis, err := net.Listen(s.cfg.NetworkMode, addr)
	if err != nil {
		return fmt.Errorf("listen %s %s: %w", s.cfg.NetworkMode, addr, err)
	}

	s.logger.Infof("gRPC server listening on %s", lis.Addr())
	return s.server.Serve(lis)
}

// Stop ждёт завершения активных вызовов, по истечении ctx обрывает их.
func (s *GRPCServer) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Infof("gRPC server stopped")
		return nil
	case <-ctx.Done():
		s.server.Stop()
		s.logger.Warnf("gRPC server stop deadline exceeded, active calls dropped")
		return ctx.Err()
	}
}

func loggingInterceptor(log logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		switch code {
		case codes.OK:
			log.Debugf("grpc %s ok in %s", info.FullMethod, time.Since(start))
		case codes.Internal, codes.Unknown:
			log.Errorf(err, "grpc %s failed in %s", info.FullMethod, time.Since(start))
		default:
			log.Infof("grpc %s returned %s in %s", info.FullMethod, code, time.Since(start))
		}
		return resp, err
	}
}

func recoveryInterceptor(log logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf(fmt.Errorf("panic: %v", r), "grpc %s panicked\n%s", info.FullMethod, debug.Stack())
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}
