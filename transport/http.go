package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mnehpets/oneplugin/config"
	"github.com/mnehpets/oneplugin/endpoint"
	"github.com/mnehpets/oneplugin/jsonrpc"
	"github.com/mnehpets/oneplugin/middleware"
)

// HTTPOptions configures an HTTPServer.
type HTTPOptions struct {
	// Token is the bearer token every request must present. Required.
	Token string
	// MaxBodyBytes caps request bodies. Zero means config.DefaultMaxBodyBytes.
	MaxBodyBytes int64
	// ShutdownTimeout bounds graceful shutdown. Zero means config.DefaultShutdownTimeout.
	ShutdownTimeout time.Duration
	// Metrics, when set, is served at GET /metrics behind the same checks.
	Metrics http.Handler
	Logger  *slog.Logger
}

// HTTPServer serves JSON-RPC at POST / on the loopback interface.
type HTTPServer struct {
	rpc     *jsonrpc.Server
	opts    HTTPOptions
	log     *slog.Logger
	handler http.Handler

	mu  sync.Mutex
	ln  net.Listener
	srv *http.Server
}

// NewHTTPServer creates an HTTPServer for rpc. It panics if opts.Token is empty.
func NewHTTPServer(rpc *jsonrpc.Server, opts HTTPOptions) *HTTPServer {
	if opts.MaxBodyBytes == 0 {
		opts.MaxBodyBytes = config.DefaultMaxBodyBytes
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = config.DefaultShutdownTimeout
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &HTTPServer{
		rpc:  rpc,
		opts: opts,
		log:  log,
	}
	s.handler = s.routes()
	return s
}

func (s *HTTPServer) routes() http.Handler {
	processors := []endpoint.Processor{
		s.rejectionLogger(),
		middleware.NewLoopbackOnlyProcessor(),
		middleware.NewBearerTokenProcessor(s.opts.Token),
		middleware.NewAPIHeadersProcessor(),
		middleware.NewBodyLimitProcessor(s.opts.MaxBodyBytes),
	}

	r := chi.NewRouter()
	// All methods reach the endpoint so that auth runs before the 405.
	r.Handle("/", endpoint.Handler(s.rpc.Endpoint, processors...))
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", endpoint.Wrap(s.opts.Metrics, processors...))
	}
	return r
}

// rejectionLogger logs requests turned away by the later processors.
func (s *HTTPServer) rejectionLogger() endpoint.Processor {
	return endpoint.ProcessorFunc(func(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
		err := next(w, r)
		var ee *endpoint.EndpointError
		if errors.As(err, &ee) && (ee.Status == http.StatusUnauthorized || ee.Status == http.StatusForbidden) {
			s.log.Warn("http request rejected", "status", ee.Status, "remote", r.RemoteAddr, "path", r.URL.Path)
		}
		return err
	})
}

// Handler returns the routed handler, for mounting or testing.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

// Listen binds 127.0.0.1:port. Port 0 picks a free port; see Addr.
func (s *HTTPServer) Listen(port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return errors.New("transport: http: already listening")
	}
	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("transport: http: listen: %w", err)
	}
	s.ln = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *HTTPServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts connections until ctx is cancelled, then shuts down
// gracefully, letting in-flight calls finish within the shutdown timeout.
// Listen must have been called.
func (s *HTTPServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.ln
	if ln == nil {
		s.mu.Unlock()
		return errors.New("transport: http: Serve called before Listen")
	}
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	s.srv = srv
	s.mu.Unlock()

	s.log.Info("http transport listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		s.log.Error("http transport failed", "error", err)
		return fmt.Errorf("transport: http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	<-errCh
	s.log.Info("http transport stopped")
	if err != nil {
		return fmt.Errorf("transport: http: shutdown: %w", err)
	}
	return nil
}
