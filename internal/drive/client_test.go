package drive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"})
	client, err := NewClient(context.Background(), ts, option.WithEndpoint(srv.URL))
	require.NoError(t, err)
	client.SetUploadURL(srv.URL + "/upload/drive/v3/files?uploadType=resumable")
	return client, srv
}

func TestGetFile(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.True(t, strings.HasSuffix(r.URL.Path, "/files/file1"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"file1","name":"movie.mp4","mimeType":"video/mp4","size":"2048","parents":["root1"]}`))
	}))

	ref, err := client.GetFile(context.Background(), "file1")
	require.NoError(t, err)
	assert.Equal(t, "file1", ref.ID)
	assert.Equal(t, "movie.mp4", ref.Name)
	assert.Equal(t, "video/mp4", ref.MimeType)
	assert.Equal(t, int64(2048), ref.Size)
	assert.Equal(t, []string{"root1"}, ref.Parents)
	assert.False(t, ref.IsFolder())
}

func TestGetFileNotFound(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"File not found"}}`))
	}))

	_, err := client.GetFile(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetFileFolder(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"folder1","name":"photos","mimeType":"application/vnd.google-apps.folder"}`))
	}))

	ref, err := client.GetFile(context.Background(), "folder1")
	require.NoError(t, err)
	assert.True(t, ref.IsFolder())
}

func TestListChildrenPagination(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "'folder1' in parents and trashed=false", q.Get("q"))
		assert.Equal(t, "folder,name", q.Get("orderBy"))

		w.Header().Set("Content-Type", "application/json")
		if q.Get("pageToken") == "" {
			_, _ = w.Write([]byte(`{"nextPageToken":"page2","files":[{"id":"a","name":"a.txt","mimeType":"text/plain","size":"1"}]}`))
			return
		}
		assert.Equal(t, "page2", q.Get("pageToken"))
		_, _ = w.Write([]byte(`{"files":[{"id":"b","name":"b.txt","mimeType":"text/plain","size":"2"}]}`))
	}))

	children, err := client.ListChildren(context.Background(), "folder1")
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "a", children[0].ID)
	assert.Equal(t, "b", children[1].ID)
}

func TestContent(t *testing.T) {
	payload := "hello drive content"
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "media", r.URL.Query().Get("alt"))
		_, _ = io.WriteString(w, payload)
	}))

	rc, err := client.Content(context.Background(), "file1")
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, payload, string(got))
}

func TestContentRange(t *testing.T) {
	payload := []byte("0123456789abcdef")
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "media", r.URL.Query().Get("alt"))

		rangeHeader := r.Header.Get("Range")
		require.NotEmpty(t, rangeHeader)
		var start, end int64
		_, err := fmt.Sscanf(rangeHeader, "bytes=%d-%d", &start, &end)
		require.NoError(t, err)

		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(payload)))
		w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(payload[start : end+1])
	}))

	rc, err := client.ContentRange(context.Background(), "file1", 4, 9)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "456789", string(got))
}

func TestContentRangeProviderIgnoresRange(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "full body instead of a window")
	}))

	_, err := client.ContentRange(context.Background(), "file1", 0, 5)
	assert.ErrorIs(t, err, ErrRangeNotSupported)
}

func TestStartResumableUpload(t *testing.T) {
	client, srv := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/upload/") {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "video/mp4", r.Header.Get("X-Upload-Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"name":"movie.mp4","parents":["folder1"]}`, string(body))

		w.Header().Set("Location", "http://upload.example.com/session/abc")
		w.WriteHeader(http.StatusOK)
	}))
	_ = srv

	url, err := client.StartResumableUpload(context.Background(), "movie.mp4", "video/mp4", "folder1")
	require.NoError(t, err)
	assert.Equal(t, "http://upload.example.com/session/abc", url)
}

func TestStartResumableUploadMissingLocation(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	_, err := client.StartResumableUpload(context.Background(), "movie.mp4", "video/mp4", "folder1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no session URL")
}
