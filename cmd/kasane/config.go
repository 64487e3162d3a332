package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperjump/kasane/internal/config"
)

func newConfigCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and change the fusion policy",
		Long: `Inspect and change the fusion policy (weights, score floors, candidate counts and
reranking). Changes made with "set" and "reset" are written to the saved config file, which a
running server picks up automatically.`,
		Example: `  kasane config show
  kasane config set vector_weight=0.6 min_combined_score=0.3
  kasane config reset`,
	}
	cmd.AddCommand(
		newConfigShowCmd(flags),
		newConfigDefaultCmd(flags),
		newConfigSetCmd(flags),
		newConfigResetCmd(flags),
	)
	return cmd
}

// openStore builds the fusion policy store from the application config without opening any
// index.
func openStore(flags *globalFlags) (*config.Store, error) {
	cfg, logger, err := flags.setup()
	if err != nil {
		return nil, err
	}
	store := config.NewStore(cfg.Storage.DefaultConfigPath, cfg.Storage.SavedConfigPath, config.WithStoreLogger(logger))
	if _, err := store.LoadActive(); err != nil {
		return nil, err
	}
	return store, nil
}

func printSearchConfig(w io.Writer, c config.SearchConfig) error {
	data, err := config.MarshalSearchConfig(c)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func newConfigShowCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the active fusion policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(flags)
			if err != nil {
				return err
			}
			return printSearchConfig(cmd.OutOrStdout(), store.Active())
		},
	}
}

func newConfigDefaultCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "default",
		Short: "Print the factory default fusion policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(flags)
			if err != nil {
				return err
			}
			def, err := store.LoadDefault()
			if err != nil {
				return err
			}
			return printSearchConfig(cmd.OutOrStdout(), def)
		},
	}
}

func newConfigSetCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "set key=value...",
		Short: "Change fusion policy fields and save the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := parseAssignments(args)
			if err != nil {
				return err
			}
			store, err := openStore(flags)
			if err != nil {
				return err
			}
			next, err := store.SavePatch(patch)
			if err != nil {
				return err
			}
			return printSearchConfig(cmd.OutOrStdout(), next)
		},
	}
}

func newConfigResetCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Save the factory defaults as the active fusion policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(flags)
			if err != nil {
				return err
			}
			def, err := store.Reset()
			if err != nil {
				return err
			}
			if err := store.Save(def); err != nil {
				return err
			}
			return printSearchConfig(cmd.OutOrStdout(), def)
		},
	}
}

// parseAssignments turns key=value arguments into a patch. Values are parsed as YAML scalars,
// so unknown keys and type mismatches are rejected the same way as in a config file.
func parseAssignments(args []string) (config.SearchConfigPatch, error) {
	var b strings.Builder
	for _, a := range args {
		key, value, ok := strings.Cut(a, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" || strings.TrimSpace(value) == "" {
			return config.SearchConfigPatch{}, fmt.Errorf("invalid assignment %q (want key=value)", a)
		}
		fmt.Fprintf(&b, "%s: %s\n", key, strings.TrimSpace(value))
	}
	return config.ParsePatch([]byte(b.String()))
}
