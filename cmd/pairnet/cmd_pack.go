package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mlmd/pairnet/pkg/model"
	"github.com/mlmd/pairnet/pkg/model/harmonic"
	"github.com/mlmd/pairnet/pkg/registry"
)

var packCmd = &cobra.Command{
	Use:   "pack <config.yaml>",
	Short: "Build a potential artifact from a config file",
	Args:  cobra.ExactArgs(1),
	RunE:  runPack,
}

var packOpts struct {
	out string
}

func init() {
	packCmd.Flags().StringVarP(&packOpts.out, "out", "o", "", "output artifact path")
	_ = packCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(packCmd)
}

// packConfig is the YAML schema for pack. Currently only the harmonic
// reference backend has parameters this command knows how to encode.
type packConfig struct {
	Name      string            `yaml:"name,omitempty"`
	Version   string            `yaml:"version,omitempty"`
	Backend   string            `yaml:"backend,omitempty"`
	Cutoff    float64           `yaml:"cutoff"`
	Species   []string          `yaml:"species"`
	AllowTF32 bool              `yaml:"allow_tf32,omitempty"`
	Extra     map[string]string `yaml:"extra,omitempty"`

	Harmonic *harmonic.Params `yaml:"harmonic,omitempty"`
}

func runPack(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	var cfg packConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parsing config %q: %w", args[0], err)
	}
	if cfg.Backend == "" {
		cfg.Backend = harmonic.BackendName
	}

	meta := &model.Metadata{
		Name:       cfg.Name,
		Version:    cfg.Version,
		Backend:    cfg.Backend,
		Cutoff:     cfg.Cutoff,
		NumSpecies: len(cfg.Species),
		TypeNames:  cfg.Species,
		AllowTF32:  cfg.AllowTF32,
		Extra:      cfg.Extra,
	}

	var payload []byte
	switch cfg.Backend {
	case harmonic.BackendName:
		if cfg.Harmonic == nil {
			return fmt.Errorf("config has no harmonic parameters")
		}
		payload, err = json.Marshal(cfg.Harmonic)
		if err != nil {
			return fmt.Errorf("encoding parameters: %w", err)
		}
	default:
		return fmt.Errorf("cannot build payload for backend %q", cfg.Backend)
	}

	if err := model.WriteArtifact(packOpts.out, meta.KV(), payload); err != nil {
		return err
	}

	ref, err := registry.DigestFile(packOpts.out)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s (%s)\n", packOpts.out, ref)

	return nil
}
