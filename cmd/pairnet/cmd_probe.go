package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mlmd/pairnet/pkg/pair"
	"github.com/mlmd/pairnet/pkg/simbox"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Extract a named per-atom model quantity from a scenario",
	RunE:  runProbe,
}

var probeOpts struct {
	scenario  string
	modelPath string
	remoteURL string
	quantity  string
	skin      float64
}

func init() {
	probeCmd.Flags().StringVarP(&probeOpts.scenario, "scenario", "s", "", "scenario YAML file")
	probeCmd.Flags().StringVarP(&probeOpts.modelPath, "model", "m", "", "potential artifact")
	probeCmd.Flags().StringVar(&probeOpts.remoteURL, "remote", "", "inference server base URL")
	probeCmd.Flags().StringVarP(&probeOpts.quantity, "quantity", "q", "uncertainty", "output name to extract")
	probeCmd.Flags().Float64Var(&probeOpts.skin, "skin", 0.5, "neighbor list skin distance")
	_ = probeCmd.MarkFlagRequired("scenario")
	_ = probeCmd.MarkFlagRequired("model")
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sc, err := simbox.LoadScenario(probeOpts.scenario)
	if err != nil {
		return err
	}

	invoker, err := openInvoker(probeOpts.modelPath, probeOpts.remoteURL)
	if err != nil {
		return err
	}
	defer invoker.Close()

	settings := pair.Settings{
		TagsEnabled: true,
		NewtonPair:  false,
		TypeCount:   len(sc.Elements),
	}
	probe, err := pair.NewProbe(settings, invoker, sc.Elements, probeOpts.quantity)
	if err != nil {
		return err
	}

	snap, err := sc.Snapshot()
	if err != nil {
		return err
	}
	box := sc.Box()
	full, err := simbox.Replicate(snap, box, probe.Cutoff()+probeOpts.skin)
	if err != nil {
		return err
	}
	neigh := simbox.Neighbors(full, probe.Cutoff(), probeOpts.skin)

	values, err := probe.Evaluate(ctx, full, neigh, box)
	if err != nil {
		return err
	}

	for i, value := range values {
		fmt.Printf("atom %d (tag %d): %s %.8f\n", i, full.Tags[i], probeOpts.quantity, value)
	}

	return nil
}
