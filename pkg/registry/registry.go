// Package registry distributes potential artifacts by content digest,
// backed by a GCS bucket with an HTTP cache server in front for cluster
// workloads.
package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Ref addresses an artifact by the sha256 hex digest of its bytes.
type Ref struct {
	Digest string
}

func (r Ref) String() string {
	return r.Digest
}

// ParseRef validates a digest string.
func ParseRef(s string) (Ref, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != sha256.Size {
		return Ref{}, fmt.Errorf("invalid artifact digest %q", s)
	}
	return Ref{Digest: s}, nil
}

// Fetcher retrieves an artifact into destPath. A missing artifact reports
// grpc codes.NotFound so callers can distinguish it from transport failure.
type Fetcher interface {
	Fetch(ctx context.Context, ref Ref, destPath string) error
}

// Store adds publication to retrieval.
type Store interface {
	Fetcher
	Publish(ctx context.Context, sourcePath string) (Ref, error)
}

// DigestFile computes the Ref of a local file.
func DigestFile(path string) (Ref, error) {
	f, err := os.Open(path)
	if err != nil {
		return Ref{}, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return Ref{}, fmt.Errorf("hashing file: %w", err)
	}
	return Ref{Digest: hex.EncodeToString(h.Sum(nil))}, nil
}
