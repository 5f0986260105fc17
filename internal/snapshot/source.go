// Package snapshot downloads the raw OEIS exports (stripped, names,
// keywords) from an HTTPS endpoint, an S3 mirror, or a local path.
package snapshot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	matcherrors "github.com/rahidz/oeis-offline-matcher/internal/errors"
)

// Source fetches one named dump into a local file.
type Source interface {
	// Fetch downloads the object identified by ref into destPath.
	Fetch(ctx context.Context, ref, destPath string) error
}

// HTTPSource fetches dumps over HTTP(S).
type HTTPSource struct {
	client *http.Client
}

// NewHTTPSource creates an HTTP source with a download-friendly timeout.
func NewHTTPSource() *HTTPSource {
	return &HTTPSource{client: &http.Client{Timeout: 10 * time.Minute}}
}

// Fetch streams the URL body into destPath via a temp file.
func (s *HTTPSource) Fetch(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return matcherrors.NewSnapshotError(matcherrors.CodeDownloadFailed, "invalid download URL", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return matcherrors.NewSnapshotError(matcherrors.CodeDownloadFailed,
			fmt.Sprintf("failed to download %s", url), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return matcherrors.NewSnapshotError(matcherrors.CodeDownloadFailed,
			fmt.Sprintf("unexpected status %d downloading %s", resp.StatusCode, url), nil)
	}
	return writeAtomic(destPath, resp.Body)
}

// FileSource copies dumps from a local directory, useful for tests and for
// pre-downloaded mirrors.
type FileSource struct {
	Root string
}

// Fetch copies Root/ref into destPath.
func (s *FileSource) Fetch(ctx context.Context, ref, destPath string) error {
	src := filepath.Join(s.Root, ref)
	f, err := os.Open(src)
	if err != nil {
		return matcherrors.NewSnapshotError(matcherrors.CodeSourceMissing,
			fmt.Sprintf("local dump %s not found", src), err)
	}
	defer f.Close()
	return writeAtomic(destPath, f)
}

// writeAtomic streams r into path through a temp file and renames it in
// place, so an interrupted download never leaves a truncated dump behind.
func writeAtomic(path string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return matcherrors.NewSnapshotError(matcherrors.CodeDownloadFailed, "cannot create dump directory", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return matcherrors.NewSnapshotError(matcherrors.CodeDownloadFailed, "cannot create temp file", err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return matcherrors.NewSnapshotError(matcherrors.CodeDownloadFailed, "download interrupted", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return matcherrors.NewSnapshotError(matcherrors.CodeDownloadFailed, "cannot finalize download", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return matcherrors.NewSnapshotError(matcherrors.CodeDownloadFailed, "cannot move download into place", err)
	}
	return nil
}

// Task names one dump to sync.
type Task struct {
	Ref  string
	Dest string
}

// Status reports one sync task outcome.
type Status struct {
	Dest   string
	Action string // "downloaded" or "skipped"
	Bytes  int64
}

// Sync fetches each task unless the destination already exists (force
// re-downloads).
func Sync(ctx context.Context, src Source, tasks []Task, force bool) ([]Status, error) {
	var out []Status
	for _, t := range tasks {
		if t.Ref == "" || t.Dest == "" {
			continue
		}
		if !force {
			if info, err := os.Stat(t.Dest); err == nil {
				out = append(out, Status{Dest: t.Dest, Action: "skipped", Bytes: info.Size()})
				continue
			}
		}
		if err := src.Fetch(ctx, t.Ref, t.Dest); err != nil {
			return out, err
		}
		info, err := os.Stat(t.Dest)
		if err != nil {
			return out, matcherrors.NewSnapshotError(matcherrors.CodeDownloadFailed, "downloaded file missing", err)
		}
		out = append(out, Status{Dest: t.Dest, Action: "downloaded", Bytes: info.Size()})
	}
	return out, nil
}
