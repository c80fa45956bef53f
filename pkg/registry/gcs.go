package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"k8s.io/klog/v2"
)

const objectPrefix = "artifacts/"

// GCSStore keeps artifacts under artifacts/<digest> in a bucket.
type GCSStore struct {
	Bucket string
}

var _ Store = (*GCSStore)(nil)

func (s *GCSStore) Publish(ctx context.Context, sourcePath string) (Ref, error) {
	log := klog.FromContext(ctx)

	ref, err := DigestFile(sourcePath)
	if err != nil {
		return Ref{}, err
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		return Ref{}, fmt.Errorf("opening source file: %w", err)
	}
	defer src.Close()

	objectKey := objectPrefix + ref.Digest
	gcsURL := "gs://" + s.Bucket + "/" + objectKey

	client, err := storage.NewClient(ctx)
	if err != nil {
		return Ref{}, fmt.Errorf("creating GCS storage client: %w", err)
	}
	defer client.Close()

	obj := client.Bucket(s.Bucket).Object(objectKey)
	objAttrs, err := obj.Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			objAttrs = nil
			log.Info("artifact not found in GCS", "url", gcsURL)
			// Fallthrough to upload object
		} else {
			return Ref{}, fmt.Errorf("getting object attributes for %q: %w", gcsURL, err)
		}
	}
	if objAttrs != nil {
		log.Info("artifact already published", "url", gcsURL)
		return ref, nil
	}

	log.Info("uploading artifact to GCS", "source", sourcePath, "destination", gcsURL)

	startedAt := time.Now()
	w := obj.NewWriter(ctx)
	n, err := io.Copy(w, src)
	if err != nil {
		return Ref{}, fmt.Errorf("uploading to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return Ref{}, fmt.Errorf("closing GCS writer: %w", err)
	}

	log.Info("uploaded artifact to GCS", "url", gcsURL, "bytes", n, "duration", time.Since(startedAt))

	return ref, nil
}

func (s *GCSStore) Fetch(ctx context.Context, ref Ref, destPath string) error {
	log := klog.FromContext(ctx)

	objectKey := objectPrefix + ref.Digest
	gcsURL := "gs://" + s.Bucket + "/" + objectKey

	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating GCS storage client: %w", err)
	}
	defer client.Close()

	log.Info("downloading artifact from GCS", "source", gcsURL, "destination", destPath)

	startedAt := time.Now()
	r, err := client.Bucket(s.Bucket).Object(objectKey).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return status.Errorf(codes.NotFound, "artifact %q not found in %q", ref, s.Bucket)
		}
		return fmt.Errorf("opening object from GCS %q: %w", gcsURL, err)
	}
	defer r.Close()

	n, err := writeToFile(ctx, r, destPath)
	if err != nil {
		return fmt.Errorf("downloading from GCS: %w", err)
	}

	log.Info("downloaded artifact from GCS", "source", gcsURL, "destination", destPath, "bytes", n, "duration", time.Since(startedAt))

	return nil
}
