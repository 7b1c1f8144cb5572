package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"drivebridge/internal/drive"
	"drivebridge/internal/instrumentation"
	"drivebridge/internal/logging"
)

// Kind selects which media types a handler is willing to proxy.
type Kind int

const (
	// KindVideo accepts video content and honors Range requests.
	KindVideo Kind = iota
	// KindImage accepts image content and adds a cache header.
	KindImage
	// KindAny accepts any content and forces a download disposition.
	KindAny
)

var videoMimeTypes = []string{
	"video/mp4",
	"video/webm",
	"video/ogg",
	"video/quicktime",
	"video/x-matroska",
	"video/x-msvideo",
}

var imageMimeTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"image/bmp",
	"image/svg+xml",
}

// ContentProvider is the slice of the Drive client the proxy needs.
type ContentProvider interface {
	GetFile(ctx context.Context, fileID string) (*drive.FileRef, error)
	Content(ctx context.Context, fileID string) (io.ReadCloser, error)
	ContentRange(ctx context.Context, fileID string, start, end int64) (io.ReadCloser, error)
}

// Proxy relays file content from Drive to HTTP clients, translating Range
// requests into ranged provider fetches so large media never has to be
// buffered server-side.
type Proxy struct {
	provider ContentProvider
	metrics  *instrumentation.Metrics
	logger   *slog.Logger
}

// New creates a Proxy backed by the given provider. metrics may be nil.
func New(provider ContentProvider, metrics *instrumentation.Metrics, logger *slog.Logger) *Proxy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Proxy{
		provider: provider,
		metrics:  metrics,
		logger:   logging.WithComponent(logger, "stream"),
	}
}

// Stream serves a file's bytes over HTTP according to kind. For KindVideo a
// Range header yields a 206 partial response; open-ended ranges are capped at
// ChunkFallback. Unsatisfiable ranges get 416 with an empty body. Without a
// Range header the full body is sent with 200.
func (p *Proxy) Stream(w http.ResponseWriter, r *http.Request, fileID string, kind Kind) {
	ctx := r.Context()
	start := time.Now()

	p.metrics.IncrementActiveStreams(ctx)
	defer p.metrics.DecrementActiveStreams(ctx)

	ref, err := p.provider.GetFile(ctx, fileID)
	if err != nil {
		p.fail(w, fileID, kind, "resolve metadata", err)
		return
	}

	if !kindAllows(kind, ref.MimeType) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unsupported media type: %s", ref.MimeType))
		return
	}

	switch kind {
	case KindVideo:
		if rangeHeader := r.Header.Get("Range"); rangeHeader != "" {
			p.servePartial(w, r, ref, rangeHeader)
			break
		}
		p.serveFull(w, r, ref, nil)
	case KindImage:
		p.serveFull(w, r, ref, func(h http.Header) {
			h.Set("Cache-Control", "public, max-age=3600")
		})
	case KindAny:
		p.serveFull(w, r, ref, func(h http.Header) {
			h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ref.Name))
		})
	}

	p.logger.Debug("stream complete",
		logging.Operation("stream"),
		logging.FileID(fileID),
		slog.Duration(logging.KeyDuration, time.Since(start)),
	)
}

// servePartial answers a Range request with a 206 and exactly the window the
// provider returned, or 416 when the range cannot be satisfied.
func (p *Proxy) servePartial(w http.ResponseWriter, r *http.Request, ref *drive.FileRef, rangeHeader string) {
	br, ok := parseRange(rangeHeader, ref.Size)
	if !ok {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", ref.Size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	body, err := p.provider.ContentRange(r.Context(), ref.ID, br.start, br.end)
	if err != nil {
		p.fail(w, ref.ID, KindVideo, "fetch range", err)
		return
	}
	defer body.Close()

	h := w.Header()
	h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", br.start, br.end, ref.Size))
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Length", strconv.FormatInt(br.length(), 10))
	h.Set("Content-Type", ref.MimeType)
	w.WriteHeader(http.StatusPartialContent)

	p.relay(r.Context(), w, body, ref.ID)
}

// serveFull sends the entire file with a 200. decorate, when non-nil, may add
// kind-specific headers before they are written.
func (p *Proxy) serveFull(w http.ResponseWriter, r *http.Request, ref *drive.FileRef, decorate func(http.Header)) {
	body, err := p.provider.Content(r.Context(), ref.ID)
	if err != nil {
		p.fail(w, ref.ID, KindAny, "fetch content", err)
		return
	}
	defer body.Close()

	h := w.Header()
	h.Set("Content-Type", ref.MimeType)
	if ref.Size > 0 {
		h.Set("Content-Length", strconv.FormatInt(ref.Size, 10))
	}
	if decorate != nil {
		decorate(h)
	}
	w.WriteHeader(http.StatusOK)

	p.relay(r.Context(), w, body, ref.ID)
}

// relay copies provider bytes to the client. Once headers are out a provider
// failure can only be surfaced by dropping the connection, so read errors
// abort the handler instead of leaving a clean-looking truncated response.
func (p *Proxy) relay(ctx context.Context, w http.ResponseWriter, body io.Reader, fileID string) {
	n, err := io.Copy(w, body)
	p.metrics.RecordStreamBytes(ctx, n)
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) || isWriteError(err) {
		// Client went away; nothing to salvage.
		p.logger.Debug("client disconnected mid-stream",
			logging.FileID(fileID),
			slog.Int64("bytes_sent", n),
		)
		return
	}
	p.logger.Error("provider read failed mid-stream",
		logging.FileID(fileID),
		slog.Int64("bytes_sent", n),
		logging.Err(err),
	)
	panic(http.ErrAbortHandler)
}

func (p *Proxy) fail(w http.ResponseWriter, fileID string, kind Kind, op string, err error) {
	p.logger.Error("stream failed",
		logging.Operation(op),
		logging.FileID(fileID),
		logging.Err(err),
	)
	if errors.Is(err, drive.ErrNotFound) {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	var msg string
	switch kind {
	case KindVideo:
		msg = "Failed to stream video"
	case KindImage:
		msg = "Failed to load image"
	default:
		msg = "Failed to download file"
	}
	writeError(w, http.StatusInternalServerError, msg)
}

func kindAllows(kind Kind, mimeType string) bool {
	var allowed []string
	switch kind {
	case KindVideo:
		allowed = videoMimeTypes
	case KindImage:
		allowed = imageMimeTypes
	default:
		return true
	}
	for _, m := range allowed {
		if strings.Contains(mimeType, m) {
			return true
		}
	}
	return false
}

// isWriteError reports whether err came from writing to the client rather
// than reading from the provider. io.Copy wraps neither side, so we fall back
// to the error strings net/http produces for dead client connections.
func isWriteError(err error) bool {
	s := err.Error()
	return strings.Contains(s, "broken pipe") ||
		strings.Contains(s, "connection reset") ||
		strings.Contains(s, "client disconnected")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
