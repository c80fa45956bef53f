package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"k8s.io/klog/v2"

	"github.com/mlmd/pairnet/pkg/registry"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := klog.FromContext(ctx)

	listen := ":8080"
	cacheDir := os.Getenv("CACHE_DIR")
	if cacheDir == "" {
		// We expect CACHE_DIR to be set when running on kubernetes, but default sensibly for local dev
		cacheDir = "~/.cache/potserver/artifacts"
	}
	bucket := os.Getenv("CACHE_BUCKET")
	flag.StringVar(&listen, "listen", listen, "listen address")
	flag.StringVar(&cacheDir, "cache-dir", cacheDir, "cache directory")
	flag.StringVar(&bucket, "bucket", bucket, "GCS bucket URL (gs://<bucketName>) filling cache misses")
	klog.InitFlags(nil)
	flag.Parse()

	if strings.HasPrefix(cacheDir, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("getting home directory: %w", err)
		}
		cacheDir = filepath.Join(homeDir, strings.TrimPrefix(cacheDir, "~/"))
	}

	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return fmt.Errorf("creating cache directory %q: %w", cacheDir, err)
	}

	cache := &registry.Cache{BaseDir: cacheDir}

	if bucket != "" {
		if !strings.HasPrefix(bucket, "gs://") {
			return fmt.Errorf("bucket must be a GCS bucket URL (gs://<bucketName>)")
		}
		bucketName := strings.TrimPrefix(bucket, "gs://")
		log.Info("filling cache misses from GCS", "bucket", bucketName)
		cache.Upstream = &registry.GCSStore{Bucket: bucketName}
	} else {
		log.Info("serving local cache only", "dir", cacheDir)
	}

	s := &httpServer{cache: cache}

	klog.Infof("serving on %q", listen)
	if err := http.ListenAndServe(listen, s); err != nil {
		return fmt.Errorf("serving on %q: %w", listen, err)
	}

	return nil
}

type httpServer struct {
	cache *registry.Cache
}

func (s *httpServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tokens := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if len(tokens) == 2 && tokens[0] == "artifacts" {
		if r.Method == "GET" {
			s.serveGETArtifact(w, r, tokens[1])
			return
		}
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	http.Error(w, "not found", http.StatusNotFound)
}

func (s *httpServer) serveGETArtifact(w http.ResponseWriter, r *http.Request, digest string) {
	ctx := r.Context()

	log := klog.FromContext(ctx)

	ref, err := registry.ParseRef(digest)
	if err != nil {
		http.Error(w, "invalid digest", http.StatusBadRequest)
		return
	}

	p, err := s.cache.Path(ctx, ref)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		log.Error(err, "error getting artifact")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	klog.Infof("serving artifact %q", p)
	http.ServeFile(w, r, p)
}
