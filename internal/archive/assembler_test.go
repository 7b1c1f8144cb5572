package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivebridge/internal/drive"
)

// treeProvider is an in-memory Drive tree: folders map to ordered child
// lists, files map to content.
type treeProvider struct {
	refs     map[string]*drive.FileRef
	children map[string][]string
	content  map[string]string
	failID   string // Content() for this id fails
}

func newTreeProvider() *treeProvider {
	return &treeProvider{
		refs:     make(map[string]*drive.FileRef),
		children: make(map[string][]string),
		content:  make(map[string]string),
	}
}

func (p *treeProvider) addFolder(id, name, parent string) {
	p.refs[id] = &drive.FileRef{ID: id, Name: name, MimeType: drive.FolderMimeType}
	if parent != "" {
		p.children[parent] = append(p.children[parent], id)
	}
}

func (p *treeProvider) addFile(id, name, parent, content string) {
	p.refs[id] = &drive.FileRef{ID: id, Name: name, MimeType: "text/plain", Size: int64(len(content))}
	p.content[id] = content
	if parent != "" {
		p.children[parent] = append(p.children[parent], id)
	}
}

func (p *treeProvider) GetFile(_ context.Context, fileID string) (*drive.FileRef, error) {
	ref, ok := p.refs[fileID]
	if !ok {
		return nil, drive.ErrNotFound
	}
	return ref, nil
}

func (p *treeProvider) ListChildren(_ context.Context, folderID string) ([]*drive.FileRef, error) {
	ids, ok := p.children[folderID]
	if !ok {
		if _, exists := p.refs[folderID]; !exists {
			return nil, drive.ErrNotFound
		}
		return nil, nil
	}
	out := make([]*drive.FileRef, 0, len(ids))
	for _, id := range ids {
		out = append(out, p.refs[id])
	}
	return out, nil
}

func (p *treeProvider) Content(_ context.Context, fileID string) (io.ReadCloser, error) {
	if fileID == p.failID {
		return nil, errors.New("content fetch failed")
	}
	body, ok := p.content[fileID]
	if !ok {
		return nil, drive.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

// readZip extracts the archive into a path -> content map.
func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		out[f.Name] = string(body)
	}
	return out
}

func TestStreamFolderNestedTree(t *testing.T) {
	p := newTreeProvider()
	p.addFolder("root", "vacation", "")
	p.addFile("f1", "readme.txt", "root", "hello")
	p.addFolder("sub", "photos", "root")
	p.addFile("f2", "beach.jpg", "sub", "jpeg-bytes")
	p.addFolder("deep", "raw", "sub")
	p.addFile("f3", "img.raw", "deep", "raw-bytes")

	a := NewAssembler(p, nil, nil)
	var buf bytes.Buffer
	require.NoError(t, a.StreamFolder(context.Background(), &buf, "root"))

	got := readZip(t, buf.Bytes())
	assert.Equal(t, map[string]string{
		"readme.txt":         "hello",
		"photos/beach.jpg":   "jpeg-bytes",
		"photos/raw/img.raw": "raw-bytes",
	}, got)
}

func TestStreamFolderEmpty(t *testing.T) {
	p := newTreeProvider()
	p.addFolder("root", "empty", "")

	a := NewAssembler(p, nil, nil)
	var buf bytes.Buffer
	require.NoError(t, a.StreamFolder(context.Background(), &buf, "root"))

	assert.Empty(t, readZip(t, buf.Bytes()))
}

func TestStreamFolderFetchErrorOmitsTrailer(t *testing.T) {
	p := newTreeProvider()
	p.addFolder("root", "docs", "")
	p.addFile("ok1", "a.txt", "root", "aaa")
	p.addFile("bad", "b.txt", "root", "bbb")
	p.addFile("ok2", "c.txt", "root", "ccc")
	p.failID = "bad"

	a := NewAssembler(p, nil, nil)
	var buf bytes.Buffer
	err := a.StreamFolder(context.Background(), &buf, "root")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")

	// Without the central directory the output must not parse as a ZIP.
	_, zerr := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	assert.Error(t, zerr)
}

func TestResolveFolder(t *testing.T) {
	p := newTreeProvider()
	p.addFolder("root", "stuff", "")
	p.addFile("f1", "a.txt", "root", "x")

	a := NewAssembler(p, nil, nil)

	ref, err := a.ResolveFolder(context.Background(), "root")
	require.NoError(t, err)
	assert.Equal(t, "stuff", ref.Name)

	_, err = a.ResolveFolder(context.Background(), "f1")
	require.ErrorIs(t, err, ErrNotFolder)

	_, err = a.ResolveFolder(context.Background(), "nope")
	require.ErrorIs(t, err, drive.ErrNotFound)
}

func TestStreamFilesSkipsFolders(t *testing.T) {
	p := newTreeProvider()
	p.addFolder("dir", "somedir", "")
	p.addFile("f1", "one.txt", "", "first")
	p.addFile("f2", "two.txt", "", "second")

	a := NewAssembler(p, nil, nil)
	var buf bytes.Buffer
	require.NoError(t, a.StreamFiles(context.Background(), &buf, []string{"f1", "dir", "f2"}))

	got := readZip(t, buf.Bytes())
	assert.Equal(t, map[string]string{
		"one.txt": "first",
		"two.txt": "second",
	}, got)
}

func TestStreamFilesUnknownID(t *testing.T) {
	p := newTreeProvider()
	p.addFile("f1", "one.txt", "", "first")

	a := NewAssembler(p, nil, nil)
	var buf bytes.Buffer
	err := a.StreamFiles(context.Background(), &buf, []string{"f1", "ghost"})
	require.ErrorIs(t, err, drive.ErrNotFound)
}

func TestStreamFolderCanceledContext(t *testing.T) {
	p := newTreeProvider()
	p.addFolder("root", "docs", "")
	p.addFile("f1", "a.txt", "root", "aaa")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := NewAssembler(p, nil, nil)
	var buf bytes.Buffer
	err := a.StreamFolder(ctx, &buf, "root")
	require.Error(t, err)
}
