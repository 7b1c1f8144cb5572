package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"drivebridge/internal/instrumentation"
)

const (
	// defaultUploadURL is the resumable upload initiation endpoint.
	defaultUploadURL = "https://www.googleapis.com/upload/drive/v3/files?uploadType=resumable"

	// metadataFields are the only fields this proxy ever needs.
	metadataFields = "id, name, mimeType, size, parents"

	// listFields mirrors metadataFields for child listings.
	listFields = "nextPageToken, files(id, name, mimeType, size, parents)"
)

var (
	// ErrNotFound indicates the provider reported the file id as unknown.
	ErrNotFound = errors.New("drive: file not found")

	// ErrRangeNotSupported indicates the provider answered a ranged content
	// request with a full body instead of a partial one.
	ErrRangeNotSupported = errors.New("drive: provider did not honor range request")
)

// Client is a capability-restricted Google Drive client: metadata retrieval,
// child listing, content streaming (optionally ranged) and resumable upload
// initiation. Nothing else of the Drive API surface is exposed.
type Client struct {
	service    *drive.Service
	httpClient *http.Client
	limiter    *rate.Limiter
	uploadURL  string
	metrics    *instrumentation.Metrics
}

// NewClient creates a Drive client that authorizes every call with the token
// source's current token. Content fetches are rate limited so a single media
// session cannot starve the provider quota.
func NewClient(ctx context.Context, ts oauth2.TokenSource, opts ...option.ClientOption) (*Client, error) {
	httpClient := oauth2.NewClient(ctx, ts)

	// Force HTTP/1.1. Media downloads over HTTP/2 hammer memory and
	// stability on the googleapis edge.
	if transport, ok := httpClient.Transport.(*oauth2.Transport); ok {
		transport.Base = &http.Transport{
			Proxy:             http.ProxyFromEnvironment,
			ForceAttemptHTTP2: false,
		}
	}

	serviceOpts := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	service, err := drive.NewService(ctx, serviceOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}

	return &Client{
		service:    service,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(10, 1),
		uploadURL:  defaultUploadURL,
	}, nil
}

// SetUploadURL overrides the resumable upload initiation URL (tests only).
func (c *Client) SetUploadURL(url string) {
	c.uploadURL = url
}

// SetMetrics enables per-operation metrics recording. A nil recorder is fine.
func (c *Client) SetMetrics(m *instrumentation.Metrics) {
	c.metrics = m
}

// instrument opens a span for a Drive API call and returns a completion
// callback that closes it and records the operation metric.
func (c *Client) instrument(ctx context.Context, op, fileID string) (context.Context, func(error)) {
	ctx, span := instrumentation.StartDriveSpan(ctx, op, fileID)
	start := time.Now()
	return ctx, func(err error) {
		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
			instrumentation.SetSpanError(span, err)
		} else {
			instrumentation.SetSpanSuccess(span)
		}
		c.metrics.RecordDriveOperationWithFile(ctx, op, status, fileID, time.Since(start))
		span.End()
	}
}

// GetFile retrieves metadata for a single file or folder.
func (c *Client) GetFile(ctx context.Context, fileID string) (*FileRef, error) {
	if fileID == "" {
		return nil, fmt.Errorf("fileID is required")
	}
	ctx, done := c.instrument(ctx, instrumentation.OperationGet, fileID)

	f, err := c.service.Files.Get(fileID).
		Context(ctx).
		Fields(metadataFields).
		Do()
	done(err)
	if err != nil {
		return nil, wrapAPIError("get file "+fileID, err)
	}

	return convertToFileRef(f), nil
}

// ListChildren returns all non-trashed children of a folder in the provider's
// folder-then-name order, following pagination to the end.
func (c *Client) ListChildren(ctx context.Context, folderID string) ([]*FileRef, error) {
	if folderID == "" {
		return nil, fmt.Errorf("folderID is required")
	}
	ctx, done := c.instrument(ctx, instrumentation.OperationList, folderID)

	var (
		children  []*FileRef
		pageToken string
	)
	for {
		call := c.service.Files.List().
			Context(ctx).
			Q(fmt.Sprintf("'%s' in parents and trashed=false", folderID)).
			OrderBy("folder,name").
			Fields(listFields)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		fileList, err := call.Do()
		if err != nil {
			done(err)
			return nil, wrapAPIError("list children of "+folderID, err)
		}

		for _, f := range fileList.Files {
			children = append(children, convertToFileRef(f))
		}

		pageToken = fileList.NextPageToken
		if pageToken == "" {
			done(nil)
			return children, nil
		}
	}
}

// Content opens the full body of a file as a byte stream. The caller owns
// the returned ReadCloser.
func (c *Client) Content(ctx context.Context, fileID string) (io.ReadCloser, error) {
	if fileID == "" {
		return nil, fmt.Errorf("fileID is required")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	ctx, done := c.instrument(ctx, instrumentation.OperationContent, fileID)

	resp, err := c.service.Files.Get(fileID).
		Context(ctx).
		Download()
	done(err)
	if err != nil {
		return nil, wrapAPIError("download file "+fileID, err)
	}

	return resp.Body, nil
}

// ContentRange opens the inclusive byte window [start, end] of a file,
// forwarding the range to the provider so only that window crosses the wire.
func (c *Client) ContentRange(ctx context.Context, fileID string, start, end int64) (io.ReadCloser, error) {
	if fileID == "" {
		return nil, fmt.Errorf("fileID is required")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, done := c.instrument(ctx, instrumentation.OperationContentRange, fileID)

	call := c.service.Files.Get(fileID).Context(ctx)
	call.Header().Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))

	resp, err := call.Download()
	if err != nil {
		done(err)
		return nil, wrapAPIError(fmt.Sprintf("download range %d-%d of %s", start, end, fileID), err)
	}

	if resp.StatusCode != http.StatusPartialContent {
		resp.Body.Close()
		done(ErrRangeNotSupported)
		return nil, ErrRangeNotSupported
	}

	done(nil)
	return resp.Body, nil
}

// StartResumableUpload initiates a resumable upload session for a new file
// and returns the session URL. The caller streams the file body to that URL
// with a PUT request.
func (c *Client) StartResumableUpload(ctx context.Context, name, mimeType, parentID string) (_ string, retErr error) {
	if name == "" {
		return "", fmt.Errorf("file name is required")
	}
	if parentID == "" {
		return "", fmt.Errorf("parentID is required")
	}

	ctx, done := c.instrument(ctx, instrumentation.OperationUpload, "")
	defer func() { done(retErr) }()

	meta := struct {
		Name    string   `json:"name"`
		Parents []string `json:"parents"`
	}{Name: name, Parents: []string{parentID}}

	body, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshal upload metadata: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build upload initiation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	if mimeType != "" {
		req.Header.Set("X-Upload-Content-Type", mimeType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("initiate resumable upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("upload initiation failed with status %d: %s", resp.StatusCode, slurp)
	}

	uploadURL := resp.Header.Get("Location")
	if uploadURL == "" {
		return "", fmt.Errorf("upload initiation returned no session URL")
	}
	return uploadURL, nil
}

// convertToFileRef converts a Drive API File to our FileRef type.
func convertToFileRef(f *drive.File) *FileRef {
	return &FileRef{
		ID:       f.Id,
		Name:     f.Name,
		MimeType: f.MimeType,
		Size:     f.Size,
		Parents:  f.Parents,
	}
}

// wrapAPIError maps googleapi errors to local sentinels where the caller
// needs to branch, wrapping everything else verbatim.
func wrapAPIError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
