package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mlmd/pairnet/pkg/registry"
)

var pushCmd = &cobra.Command{
	Use:   "push <artifact>",
	Short: "Publish an artifact to a GCS bucket",
	Args:  cobra.ExactArgs(1),
	RunE:  runPush,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <digest>",
	Short: "Fetch an artifact by digest",
	Args:  cobra.ExactArgs(1),
	RunE:  runFetch,
}

var registryOpts struct {
	bucket string
	server string
	out    string
}

func init() {
	pushCmd.Flags().StringVar(&registryOpts.bucket, "bucket", "", "GCS bucket URL (gs://<bucketName>)")
	_ = pushCmd.MarkFlagRequired("bucket")

	fetchCmd.Flags().StringVar(&registryOpts.bucket, "bucket", "", "GCS bucket URL (gs://<bucketName>)")
	fetchCmd.Flags().StringVar(&registryOpts.server, "server", "", "artifact server base URL")
	fetchCmd.Flags().StringVarP(&registryOpts.out, "out", "o", "", "destination path")
	_ = fetchCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(fetchCmd)
}

func gcsStore(bucket string) (*registry.GCSStore, error) {
	if !strings.HasPrefix(bucket, "gs://") {
		return nil, fmt.Errorf("bucket must be a GCS bucket URL (gs://<bucketName>)")
	}
	return &registry.GCSStore{Bucket: strings.TrimPrefix(bucket, "gs://")}, nil
}

func runPush(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := gcsStore(registryOpts.bucket)
	if err != nil {
		return err
	}
	ref, err := store.Publish(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", ref)

	return nil
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	ref, err := registry.ParseRef(args[0])
	if err != nil {
		return err
	}

	var fetcher registry.Fetcher
	switch {
	case registryOpts.server != "":
		base, err := url.Parse(registryOpts.server)
		if err != nil {
			return fmt.Errorf("parsing server URL %q: %w", registryOpts.server, err)
		}
		fetcher = &registry.HTTPClient{BaseURL: base}
	case registryOpts.bucket != "":
		store, err := gcsStore(registryOpts.bucket)
		if err != nil {
			return err
		}
		fetcher = store
	default:
		return fmt.Errorf("must specify --server or --bucket")
	}

	if err := fetcher.Fetch(ctx, ref, registryOpts.out); err != nil {
		return err
	}
	fmt.Printf("fetched %s to %s\n", ref, registryOpts.out)

	return nil
}
