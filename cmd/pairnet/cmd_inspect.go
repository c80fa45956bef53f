package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mlmd/pairnet/pkg/model"
	"github.com/mlmd/pairnet/pkg/registry"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <artifact>",
	Short: "Print artifact metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	path := args[0]

	artifact, err := model.ReadArtifact(path)
	if err != nil {
		return err
	}
	ref, err := registry.DigestFile(path)
	if err != nil {
		return err
	}

	meta := artifact.Metadata()
	fmt.Printf("name:       %s\n", meta.Name)
	fmt.Printf("version:    %s\n", meta.Version)
	fmt.Printf("backend:    %s\n", meta.Backend)
	fmt.Printf("cutoff:     %g\n", meta.Cutoff)
	fmt.Printf("species:    %s\n", strings.Join(meta.TypeNames, " "))
	fmt.Printf("allow_tf32: %v\n", meta.AllowTF32)
	if len(meta.Extra) > 0 {
		keys := make([]string, 0, len(meta.Extra))
		for key := range meta.Extra {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Printf("extra:      %s = %s\n", key, meta.Extra[key])
		}
	}
	fmt.Printf("payload:    %d bytes\n", len(artifact.Payload))
	fmt.Printf("digest:     %s\n", ref)

	return nil
}
