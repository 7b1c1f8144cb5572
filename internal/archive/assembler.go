package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"drivebridge/internal/drive"
	"drivebridge/internal/instrumentation"
	"drivebridge/internal/logging"
)

// ErrNotFolder is returned when a folder archive is requested for a plain file.
var ErrNotFolder = errors.New("target is not a folder")

// fetchConcurrency bounds how many Drive content streams are open at once
// while the zip writer drains them one at a time.
const fetchConcurrency = 4

// Provider is the slice of the Drive client the assembler needs.
type Provider interface {
	GetFile(ctx context.Context, fileID string) (*drive.FileRef, error)
	ListChildren(ctx context.Context, folderID string) ([]*drive.FileRef, error)
	Content(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// Assembler builds ZIP archives of Drive content on the fly, writing entries
// straight to the response so an archive is never materialized server-side.
//
// Content fetches run on a bounded worker pool ahead of the single zip-writer
// loop; entries are written in worklist order so archives are deterministic
// for a given tree.
type Assembler struct {
	provider Provider
	metrics  *instrumentation.Metrics
	logger   *slog.Logger
}

// NewAssembler creates an Assembler. metrics may be nil.
func NewAssembler(provider Provider, metrics *instrumentation.Metrics, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		provider: provider,
		metrics:  metrics,
		logger:   logging.WithComponent(logger, "archive"),
	}
}

// ResolveFolder fetches folder metadata and verifies it really is a folder,
// so callers can name the archive before any body bytes are committed.
func (a *Assembler) ResolveFolder(ctx context.Context, folderID string) (*drive.FileRef, error) {
	ref, err := a.provider.GetFile(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if !ref.IsFolder() {
		return nil, fmt.Errorf("%w: %s", ErrNotFolder, folderID)
	}
	return ref, nil
}

// StreamFolder writes a ZIP of the folder's entire subtree to w. Nested
// folders become directory prefixes inside the archive. A fetch failure
// aborts mid-stream without writing the ZIP trailer, leaving the output
// recognizably truncated.
func (a *Assembler) StreamFolder(ctx context.Context, w io.Writer, folderID string) error {
	start := time.Now()

	var items []workItem
	if err := a.collectFolder(ctx, folderID, "", &items); err != nil {
		a.metrics.RecordArchiveJob(ctx, instrumentation.ArchiveKindFolder, logging.StatusError, 0, time.Since(start))
		return fmt.Errorf("collecting folder %s: %w", folderID, err)
	}

	entries, err := a.writeArchive(ctx, w, items)
	status := logging.StatusSuccess
	if err != nil {
		status = logging.StatusError
	}
	a.metrics.RecordArchiveJob(ctx, instrumentation.ArchiveKindFolder, status, entries, time.Since(start))
	a.logger.Info("folder archive finished",
		logging.Operation("archive_folder"),
		logging.FolderID(folderID),
		slog.Int64("entries", entries),
		logging.Status(status),
		slog.Duration(logging.KeyDuration, time.Since(start)),
		logging.Err(err),
	)
	return err
}

// StreamFiles writes a ZIP containing the given files at the archive root.
// IDs that resolve to folders are skipped with a log line rather than
// failing the whole archive.
func (a *Assembler) StreamFiles(ctx context.Context, w io.Writer, fileIDs []string) error {
	start := time.Now()

	items := make([]workItem, 0, len(fileIDs))
	for _, id := range fileIDs {
		ref, err := a.provider.GetFile(ctx, id)
		if err != nil {
			a.metrics.RecordArchiveJob(ctx, instrumentation.ArchiveKindFiles, logging.StatusError, 0, time.Since(start))
			return fmt.Errorf("resolving file %s: %w", id, err)
		}
		if ref.IsFolder() {
			a.logger.Warn("skipping folder in multi-file archive", logging.FileID(id))
			continue
		}
		items = append(items, workItem{id: ref.ID, path: ref.Name})
	}

	entries, err := a.writeArchive(ctx, w, items)
	status := logging.StatusSuccess
	if err != nil {
		status = logging.StatusError
	}
	a.metrics.RecordArchiveJob(ctx, instrumentation.ArchiveKindFiles, status, entries, time.Since(start))
	return err
}

// workItem is one file destined for the archive, with its slash-separated
// path inside the ZIP.
type workItem struct {
	id   string
	path string
}

// collectFolder walks the subtree depth-first, appending files to the
// worklist with their relative archive paths.
func (a *Assembler) collectFolder(ctx context.Context, folderID, prefix string, out *[]workItem) error {
	children, err := a.provider.ListChildren(ctx, folderID)
	if err != nil {
		return err
	}
	for _, child := range children {
		if child.IsFolder() {
			if err := a.collectFolder(ctx, child.ID, prefix+child.Name+"/", out); err != nil {
				return err
			}
			continue
		}
		*out = append(*out, workItem{id: child.ID, path: prefix + child.Name})
	}
	return nil
}

// pending is a worklist slot being filled by a fetch worker. done is closed
// once body/err are set.
type pending struct {
	item workItem
	body io.ReadCloser
	err  error
	done chan struct{}
}

// writeArchive streams items into a ZIP on w. Fetch workers open up to
// fetchConcurrency content streams ahead of the writer; the writer consumes
// them strictly in worklist order. On error the ZIP trailer is never written.
func (a *Assembler) writeArchive(parent context.Context, w io.Writer, items []workItem) (int64, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)

	queue := make(chan *pending, fetchConcurrency)
	go func() {
		defer close(queue)
		for _, it := range items {
			p := &pending{item: it, done: make(chan struct{})}
			select {
			case queue <- p:
			case <-ctx.Done():
				close(p.done)
				return
			}
			g.Go(func() error {
				defer close(p.done)
				p.body, p.err = a.provider.Content(ctx, p.item.id)
				return p.err
			})
		}
	}()

	zw := zip.NewWriter(w)
	var entries int64
	var writeErr error
	for p := range queue {
		<-p.done
		if writeErr != nil {
			if p.body != nil {
				p.body.Close()
			}
			continue
		}
		if p.err != nil {
			writeErr = fmt.Errorf("fetching %s: %w", p.item.id, p.err)
			cancel()
			continue
		}

		hdr := &zip.FileHeader{
			Name:     p.item.path,
			Method:   zip.Deflate,
			Modified: time.Now(),
		}
		fw, err := zw.CreateHeader(hdr)
		if err == nil {
			_, err = io.Copy(fw, p.body)
		}
		p.body.Close()
		if err != nil {
			writeErr = fmt.Errorf("writing %s: %w", p.item.path, err)
			cancel()
			continue
		}
		entries++
	}

	if err := g.Wait(); err != nil && writeErr == nil {
		writeErr = err
	}
	if writeErr == nil {
		// A canceled request means the client is gone; the trailer must not
		// make the truncated output look complete.
		writeErr = parent.Err()
	}
	if writeErr != nil {
		// Deliberately skip zw.Close: a truncated stream without the central
		// directory is how clients learn the archive failed.
		return entries, writeErr
	}
	if err := zw.Close(); err != nil {
		return entries, fmt.Errorf("finalizing archive: %w", err)
	}
	return entries, nil
}
