package http

import (
	"context"
	"net/http"
	"time"

	"github.com/DRSN-tech/fashion-search/internal/cfg"
)

const (
	readHeaderTimeout = 5 * time.Second
	maxHeaderBytes    = 1 << 20
)

// Server — HTTP API поиска и каталога. Загрузка изображений ограничена в обработчиках,
// здесь только таймауты соединения.
type Server struct {
	httpServer *http.Server
}

func NewServer(handler http.Handler, cfg *cfg.HTTPConfig) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			MaxHeaderBytes:    maxHeaderBytes,
		},
	}
}

func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Stop дожидается активных запросов, включая поиск с внешними сигналами, в пределах ctx.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
