package prometheus

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

// Handler exposes the collector's registry in the Prometheus text format.
func Handler(c MetricsCollector) http.Handler {
	return promhttp.HandlerFor(c.Registry(), promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Server serves one metrics endpoint for the lifetime of a training run.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	logger logging.Logger
}

// Listen binds addr and starts serving path in the background.
func Listen(addr, path string, c MetricsCollector, log logging.Logger) (*Server, error) {
	if path == "" {
		path = "/metrics"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "bind metrics listener").WithDetail(addr)
	}
	mux := http.NewServeMux()
	mux.Handle(path, Handler(c))

	s := &Server{
		srv:    &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:     ln,
		logger: logging.OrDefault(log).Named("metrics"),
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server stopped", logging.Err(err))
		}
	}()
	s.logger.Info("metrics listening", logging.String("addr", ln.Addr().String()), logging.String("path", path))
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
