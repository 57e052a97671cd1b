package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/thejerf/suture/v4"
	"golang.org/x/net/netutil"

	"github.com/ppiankov/gdeltwatch/internal/logging"
	"github.com/ppiankov/gdeltwatch/internal/model"
)

// HTTPService serves a handler until its context is canceled. Each Serve
// call listens afresh so the supervisor can restart it after a failure.
type HTTPService struct {
	addr            string
	handler         http.Handler
	maxConnections  int
	shutdownTimeout time.Duration
	ready           chan net.Addr
}

// NewHTTPService creates the dashboard server service. maxConnections
// caps simultaneously accepted connections; zero means unlimited.
func NewHTTPService(addr string, handler http.Handler, maxConnections int, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{
		addr:            addr,
		handler:         handler,
		maxConnections:  maxConnections,
		shutdownTimeout: shutdownTimeout,
		ready:           make(chan net.Addr, 1),
	}
}

// Ready receives the bound address each time the listener starts
func (h *HTTPService) Ready() <-chan net.Addr {
	return h.ready
}

// Serve implements suture.Service
func (h *HTTPService) Serve(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", h.addr, err)
	}
	if h.maxConnections > 0 {
		ln = netutil.LimitListener(ln, h.maxConnections)
	}

	server := &http.Server{
		Handler:           h.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	logging.Info().Str("addr", ln.Addr().String()).Int("max_connections", h.maxConnections).Msg("dashboard listening")
	select {
	case h.ready <- ln.Addr():
	default:
	}

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		logging.Info().Msg("dashboard stopped")
		return ctx.Err()
	}
}

func (h *HTTPService) String() string {
	return "http-server"
}

// RefreshFunc produces and publishes a snapshot
type RefreshFunc func(ctx context.Context) (*model.Snapshot, error)

// StartupRefreshService runs one refresh when serve starts, then removes
// itself from the tree. A failed refresh is logged and not retried; the
// dashboard stays usable and can be refreshed on demand.
type StartupRefreshService struct {
	refresh  RefreshFunc
	done     chan struct{}
	doneOnce sync.Once
}

// NewStartupRefreshService wraps refresh as a one-shot service
func NewStartupRefreshService(refresh RefreshFunc) *StartupRefreshService {
	return &StartupRefreshService{refresh: refresh, done: make(chan struct{})}
}

// Done is closed once the startup refresh has finished
func (s *StartupRefreshService) Done() <-chan struct{} {
	return s.done
}

// Serve implements suture.Service
func (s *StartupRefreshService) Serve(ctx context.Context) error {
	defer s.doneOnce.Do(func() { close(s.done) })

	snapshot, err := s.refresh(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logging.Warn().Err(err).Msg("startup refresh failed")
		return suture.ErrDoNotRestart
	}

	logging.Info().Int("events", len(snapshot.Events)).Time("refreshed_at", snapshot.RefreshedAt).Msg("startup refresh complete")
	return suture.ErrDoNotRestart
}

func (s *StartupRefreshService) String() string {
	return "startup-refresh"
}
