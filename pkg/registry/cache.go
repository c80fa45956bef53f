package registry

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"k8s.io/klog/v2"
)

// Cache resolves refs against a local directory, filling misses from an
// optional upstream. Files land under BaseDir/<digest>.
type Cache struct {
	BaseDir string

	// Upstream fills cache misses when set; otherwise a miss is NotFound.
	Upstream Fetcher
}

var _ Fetcher = (*Cache)(nil)

// Path returns the local file for ref, downloading it on a miss.
func (c *Cache) Path(ctx context.Context, ref Ref) (string, error) {
	localPath := filepath.Join(c.BaseDir, ref.Digest)
	if _, err := os.Stat(localPath); err == nil {
		return localPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("checking cached artifact %q: %w", ref, err)
	}

	if c.Upstream == nil {
		return "", status.Errorf(codes.NotFound, "artifact %q not cached", ref)
	}

	if err := c.Upstream.Fetch(ctx, ref, localPath); err != nil {
		return "", err
	}
	return localPath, nil
}

// Fetch copies the cached (or freshly filled) artifact to destPath.
func (c *Cache) Fetch(ctx context.Context, ref Ref, destPath string) error {
	localPath, err := c.Path(ctx, ref)
	if err != nil {
		return err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening cached artifact: %w", err)
	}
	defer src.Close()

	if _, err := writeToFile(ctx, src, destPath); err != nil {
		return fmt.Errorf("copying cached artifact: %w", err)
	}
	return nil
}

// writeToFile streams src into destPath through a temp file in the same
// directory, renaming only after a complete write.
func writeToFile(ctx context.Context, src io.Reader, destPath string) (int64, error) {
	log := klog.FromContext(ctx)

	dir := filepath.Dir(destPath)
	tempFile, err := os.CreateTemp(dir, "download")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}

	shouldDeleteTempFile := true
	defer func() {
		if shouldDeleteTempFile {
			if err := os.Remove(tempFile.Name()); err != nil {
				log.Error(err, "removing temp file", "path", tempFile.Name())
			}
		}
	}()

	shouldCloseTempFile := true
	defer func() {
		if shouldCloseTempFile {
			if err := tempFile.Close(); err != nil {
				log.Error(err, "closing temp file", "path", tempFile.Name())
			}
		}
	}()

	n, err := io.Copy(tempFile, src)
	if err != nil {
		return n, fmt.Errorf("downloading from upstream source: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return n, fmt.Errorf("closing temp file: %w", err)
	}
	shouldCloseTempFile = false

	if err := os.Rename(tempFile.Name(), destPath); err != nil {
		return n, fmt.Errorf("renaming temp file: %w", err)
	}
	shouldDeleteTempFile = false

	return n, nil
}
