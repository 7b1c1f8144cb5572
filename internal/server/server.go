package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"drivebridge/internal/archive"
	"drivebridge/internal/config"
	"drivebridge/internal/drive"
	"drivebridge/internal/gate"
	"drivebridge/internal/instrumentation"
	"drivebridge/internal/logging"
	"drivebridge/internal/stream"
)

// MediaStreamer proxies file bytes to HTTP clients.
type MediaStreamer interface {
	Stream(w http.ResponseWriter, r *http.Request, fileID string, kind stream.Kind)
}

// Archiver builds ZIP archives of Drive content.
type Archiver interface {
	ResolveFolder(ctx context.Context, folderID string) (*drive.FileRef, error)
	StreamFolder(ctx context.Context, w io.Writer, folderID string) error
	StreamFiles(ctx context.Context, w io.Writer, fileIDs []string) error
}

// UploadInitiator opens resumable upload sessions with the provider.
type UploadInitiator interface {
	StartResumableUpload(ctx context.Context, name, mimeType, parentID string) (string, error)
}

// AuthFlow drives the OAuth2 consent redirect and code exchange.
type AuthFlow interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) error
}

// CredentialState exposes the credential operations the public API needs.
type CredentialState interface {
	HasValidAccess() bool
	Clear() error
}

// Options wires the Server's collaborators. Everything but Config and Logger
// can be a test fake.
type Options struct {
	Config      *config.Config
	Streamer    MediaStreamer
	Archiver    Archiver
	Uploader    UploadInitiator
	Auth        AuthFlow
	Credentials CredentialState
	Gate        func(http.Handler) http.Handler
	Health      *HealthChecker
	Metrics     *instrumentation.Metrics
	Audit       *instrumentation.AuditLogger
	Logger      *slog.Logger

	// UploadClient performs the PUT to Google's resumable-upload session URL.
	// Defaults to http.DefaultClient.
	UploadClient *http.Client
}

// Server is the browser-facing HTTP API: auth flow, streaming, archiving,
// uploads, and health probes.
type Server struct {
	cfg          *config.Config
	streamer     MediaStreamer
	archiver     Archiver
	uploader     UploadInitiator
	auth         AuthFlow
	creds        CredentialState
	gate         func(http.Handler) http.Handler
	health       *HealthChecker
	metrics      *instrumentation.Metrics
	audit        *instrumentation.AuditLogger
	logger       *slog.Logger
	uploadClient *http.Client
	httpServer   *http.Server
}

// New assembles a Server from explicit collaborators.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	uploadClient := opts.UploadClient
	if uploadClient == nil {
		uploadClient = http.DefaultClient
	}
	g := opts.Gate
	if g == nil {
		g = func(next http.Handler) http.Handler { return next }
	}
	return &Server{
		cfg:          opts.Config,
		streamer:     opts.Streamer,
		archiver:     opts.Archiver,
		uploader:     opts.Uploader,
		auth:         opts.Auth,
		creds:        opts.Credentials,
		gate:         g,
		health:       opts.Health,
		metrics:      opts.Metrics,
		audit:        opts.Audit,
		logger:       logging.WithComponent(logger, "server"),
		uploadClient: uploadClient,
	}
}

// FromContext builds a fully wired Server on top of a ServerContext,
// constructing the Drive client, gate, stream proxy, and archive assembler.
func FromContext(sc *ServerContext, metrics *instrumentation.Metrics, audit *instrumentation.AuditLogger, logger *slog.Logger) (*Server, error) {
	client, err := sc.DriveClient()
	if err != nil {
		return nil, fmt.Errorf("wiring server: %w", err)
	}
	client.SetMetrics(metrics)
	sc.Refresher().SetMetrics(metrics)

	return New(Options{
		Config:      sc.Config(),
		Streamer:    stream.New(client, metrics, logger),
		Archiver:    archive.NewAssembler(client, metrics, logger),
		Uploader:    client,
		Auth:        sc.Refresher(),
		Credentials: sc.TokenStore(),
		Gate:        gate.New(sc.TokenStore(), sc.Refresher()).Middleware,
		Health:      NewHealthChecker(sc, sc.TokenStore()),
		Metrics:     metrics,
		Audit:       audit,
		Logger:      logger,
	}), nil
}

// Handler builds the route table with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// OAuth flow and credential management stay outside the gate: they are
	// how an operator gets the server authenticated in the first place.
	mux.HandleFunc("GET /auth/google", s.handleAuthRedirect)
	mux.HandleFunc("GET /auth/google/callback", s.handleAuthCallback)
	mux.HandleFunc("GET /api/google-drive/status", s.handleAuthStatus)
	mux.HandleFunc("POST /api/google-drive/clear", s.handleAuthClear)

	mux.Handle("GET /api/stream/{fileID}", s.gated("stream", s.handleStreamVideo))
	mux.Handle("GET /api/view/{fileID}", s.gated("view", s.handleViewImage))
	mux.Handle("GET /api/download/{fileID}", s.gated("download", s.handleDownloadFile))
	mux.Handle("GET /api/download/folder/{folderID}", s.gated("archive_folder", s.handleDownloadFolder))
	mux.Handle("GET /api/download/multiple", s.gated("archive_files", s.handleDownloadMultiple))
	mux.Handle("POST /api/upload/proxied", s.gated("upload", s.handleProxiedUpload))

	if s.health != nil {
		s.health.RegisterHealthEndpoints(mux)
	}

	return s.withCORS(s.withObservability(mux))
}

// gated wraps a media handler with the audit trail and the auth gate. The
// audit wrapper sits outside the gate so rejected requests are recorded too.
func (s *Server) gated(op string, h http.HandlerFunc) http.Handler {
	return s.audited(op, s.gate(h))
}

func (s *Server) audited(op string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.audit == nil {
			next.ServeHTTP(w, r)
			return
		}

		fileID := r.PathValue("fileID")
		if fileID == "" {
			fileID = r.PathValue("folderID")
		}
		access := instrumentation.NewMediaAccess(op).
			WithFile(fileID).
			WithClient(r.Header.Get("Origin"), r.RemoteAddr).
			WithSpanContext(r.Context())

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		if status < http.StatusBadRequest {
			access.CompleteSuccess()
		} else {
			access.CompleteWithError(fmt.Errorf("request failed with status %d", status))
		}
		s.audit.LogMediaAccess(access)
	})
}

// Start serves the API, blocking until the listener closes.
func (s *Server) Start() error {
	// No WriteTimeout: archive and media responses legitimately run for
	// minutes. Stuck clients are bounded by idle and read-header timeouts.
	s.httpServer = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting api server", slog.String("addr", s.cfg.HTTPAddr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		s.logger.Info("shutting down api server")
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
