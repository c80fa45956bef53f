package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/mlmd/pairnet/pkg/model/remote"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a potential over the forward wire",
	RunE:  runServe,
}

var serveOpts struct {
	modelPath string
	listen    string
}

func init() {
	serveCmd.Flags().StringVarP(&serveOpts.modelPath, "model", "m", "", "potential artifact")
	serveCmd.Flags().StringVar(&serveOpts.listen, "listen", ":8081", "listen address")
	_ = serveCmd.MarkFlagRequired("model")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	invoker, err := openInvoker(serveOpts.modelPath, "")
	if err != nil {
		return err
	}
	defer invoker.Close()

	meta := invoker.Metadata()
	klog.Infof("serving %q (backend %s) on %q", meta.Name, meta.Backend, serveOpts.listen)
	if err := http.ListenAndServe(serveOpts.listen, remote.NewHandler(invoker)); err != nil {
		return fmt.Errorf("serving on %q: %w", serveOpts.listen, err)
	}

	return nil
}
