package snapshot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSourceFetch(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "stripped.gz"), []byte("payload"), 0644))

	dest := filepath.Join(t.TempDir(), "raw", "stripped.gz")
	src := &FileSource{Root: root}
	require.NoError(t, src.Fetch(context.Background(), "stripped.gz", dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestFileSourceMissing(t *testing.T) {
	src := &FileSource{Root: t.TempDir()}
	err := src.Fetch(context.Background(), "nope.gz", filepath.Join(t.TempDir(), "x"))
	assert.Error(t, err)
}

func TestHTTPSourceFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("stripped-data"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "stripped.gz")
	src := NewHTTPSource()
	require.NoError(t, src.Fetch(context.Background(), server.URL+"/stripped.gz", dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "stripped-data", string(data))
}

func TestHTTPSourceBadStatus(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	src := NewHTTPSource()
	err := src.Fetch(context.Background(), server.URL+"/missing", filepath.Join(t.TempDir(), "x"))
	assert.Error(t, err)
}

func TestSyncSkipsExisting(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "names.gz"), []byte("new"), 0644))

	dest := filepath.Join(t.TempDir(), "names.gz")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0644))

	statuses, err := Sync(context.Background(), &FileSource{Root: root},
		[]Task{{Ref: "names.gz", Dest: dest}}, false)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "skipped", statuses[0].Action)

	data, _ := os.ReadFile(dest)
	assert.Equal(t, "old", string(data))

	// force re-downloads.
	statuses, err = Sync(context.Background(), &FileSource{Root: root},
		[]Task{{Ref: "names.gz", Dest: dest}}, true)
	require.NoError(t, err)
	assert.Equal(t, "downloaded", statuses[0].Action)
	data, _ = os.ReadFile(dest)
	assert.Equal(t, "new", string(data))
}

func TestSyncIgnoresEmptyTasks(t *testing.T) {
	statuses, err := Sync(context.Background(), &FileSource{Root: t.TempDir()},
		[]Task{{Ref: "", Dest: ""}, {Ref: "x", Dest: ""}}, false)
	require.NoError(t, err)
	assert.Empty(t, statuses)
}
