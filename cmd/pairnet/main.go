package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/mlmd/pairnet/pkg/model"
	"github.com/mlmd/pairnet/pkg/model/harmonic"
	"github.com/mlmd/pairnet/pkg/model/remote"
)

var rootCmd = &cobra.Command{
	Use:           "pairnet",
	Short:         "Bridge neighbor-list MD hosts to graph potential backends",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	rootCmd.PersistentFlags().AddGoFlagSet(klogFlags)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// openInvoker loads an artifact and picks the backend: the named remote
// endpoint when given, otherwise the in-process backend the artifact asks
// for.
func openInvoker(modelPath, remoteURL string) (model.Invoker, error) {
	artifact, err := model.ReadArtifact(modelPath)
	if err != nil {
		return nil, err
	}
	meta := artifact.Metadata()

	if remoteURL != "" {
		return remote.New(remoteURL, meta)
	}

	switch meta.Backend {
	case harmonic.BackendName:
		return harmonic.FromArtifact(artifact)
	default:
		return nil, fmt.Errorf("no in-process backend for %q, use --remote", meta.Backend)
	}
}
