package main

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/mlmd/pairnet/pkg/pair"
	"github.com/mlmd/pairnet/pkg/simbox"
	"github.com/mlmd/pairnet/pkg/system"
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate a potential on a scenario",
	RunE:  runEval,
}

var evalOpts struct {
	scenario      string
	modelPath     string
	remoteURL     string
	virial        bool
	perAtomEnergy bool
	extras        []string
	steps         int
	skin          float64
}

func init() {
	evalCmd.Flags().StringVarP(&evalOpts.scenario, "scenario", "s", "", "scenario YAML file")
	evalCmd.Flags().StringVarP(&evalOpts.modelPath, "model", "m", "", "potential artifact")
	evalCmd.Flags().StringVar(&evalOpts.remoteURL, "remote", "", "inference server base URL")
	evalCmd.Flags().BoolVar(&evalOpts.virial, "virial", false, "request the virial")
	evalCmd.Flags().BoolVar(&evalOpts.perAtomEnergy, "per-atom-energy", false, "request per-atom energies")
	evalCmd.Flags().StringArrayVar(&evalOpts.extras, "extra", nil, "extra per-atom outputs to request")
	evalCmd.Flags().IntVar(&evalOpts.steps, "steps", 1, "number of evaluations")
	evalCmd.Flags().Float64Var(&evalOpts.skin, "skin", 0.5, "neighbor list skin distance")
	_ = evalCmd.MarkFlagRequired("scenario")
	_ = evalCmd.MarkFlagRequired("model")
	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sc, err := simbox.LoadScenario(evalOpts.scenario)
	if err != nil {
		return err
	}

	invoker, err := openInvoker(evalOpts.modelPath, evalOpts.remoteURL)
	if err != nil {
		return err
	}
	defer invoker.Close()

	settings := pair.Settings{
		TagsEnabled: true,
		NewtonPair:  false,
		TypeCount:   len(sc.Elements),
	}
	var opts []pair.Option
	for _, name := range evalOpts.extras {
		opts = append(opts, pair.WithExtraOutput(name))
	}
	p, err := pair.New(settings, invoker, sc.Elements, opts...)
	if err != nil {
		return err
	}

	snap, err := sc.Snapshot()
	if err != nil {
		return err
	}
	box := sc.Box()
	full, err := simbox.Replicate(snap, box, p.Cutoff()+evalOpts.skin)
	if err != nil {
		return err
	}
	neigh := simbox.Neighbors(full, p.Cutoff(), evalOpts.skin)

	flags := system.StepFlags{
		Energy:        true,
		PerAtomEnergy: evalOpts.perAtomEnergy,
		Virial:        evalOpts.virial,
	}

	var result *system.StepResult
	for step := 0; step < evalOpts.steps; step++ {
		result, err = p.ComputeStep(ctx, full, neigh, box, flags)
		if err != nil {
			return fmt.Errorf("step %d: %w", step, err)
		}
	}

	fmt.Printf("atoms:  %d (%d ghosts)\n", full.LocalCount, full.GhostCount)
	fmt.Printf("edges:  %d\n", result.Edges)
	fmt.Printf("energy: %.8f\n", result.PotentialEnergy)
	if result.HasVirial {
		v := result.Virial
		fmt.Printf("virial: xx %.6f yy %.6f zz %.6f xy %.6f xz %.6f yz %.6f\n", v[0], v[1], v[2], v[3], v[4], v[5])
	}

	maxForce := 0.0
	for i := 0; i < full.LocalCount; i++ {
		f := full.Forces[i]
		norm := math.Sqrt(f[0]*f[0] + f[1]*f[1] + f[2]*f[2])
		if norm > maxForce {
			maxForce = norm
		}
	}
	fmt.Printf("max |F|: %.8f\n", maxForce)

	if evalOpts.perAtomEnergy {
		for i := 0; i < full.LocalCount; i++ {
			fmt.Printf("atom %d (tag %d): energy %.8f\n", i, full.Tags[i], full.Energies[i])
		}
	}
	for _, name := range evalOpts.extras {
		values, ok := p.PerAtom(name)
		if !ok {
			continue
		}
		for i := 0; i < full.LocalCount; i++ {
			fmt.Printf("atom %d (tag %d): %s %.8f\n", i, full.Tags[i], name, values[i])
		}
	}

	return nil
}
