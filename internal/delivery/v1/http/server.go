package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/DRSN-tech/image-fingerprint/internal/cfg"
)

const maxHeaderBytes = 64 << 10

type Server struct {
	httpServer *http.Server
}

// NewServer ограничивает чтение тела ReadTimeout, а ответ WriteTimeout.
// WriteTimeout должен превышать дедлайн извлечения, иначе 504 не дойдёт до клиента.
func NewServer(handler http.Handler, cfg *cfg.HTTPConfig) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			MaxHeaderBytes:    maxHeaderBytes,
		},
	}
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Run блокируется до остановки сервера. Штатная остановка через Stop не считается ошибкой.
func (s *Server) Run() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
