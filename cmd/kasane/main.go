// Package main is the kasane CLI entry point.
package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/kasane/internal/config"
	"github.com/hyperjump/kasane/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kasane/config.yaml"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	debug      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	cmd := &cobra.Command{
		Use:   "kasane",
		Short: "Hybrid vector + keyword ranking engine",
		Long: `kasane fuses dense vector similarity and BM25 keyword relevance into one ranked
result list, with exact-match detection, optional reranking and per-group analytics.`,
		Version:       version,
		SilenceUsage:  true,
	}
	cmd.SetVersionTemplate("kasane version {{.Version}}\n")
	cmd.PersistentFlags().StringVar(&flags.configPath, "config", defaultConfigPath, "config file path")
	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(
		newServeCmd(flags),
		newSearchCmd(flags),
		newIndexCmd(flags),
		newDeleteCmd(flags),
		newConfigCmd(flags),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// setup loads the config and builds the logger for a command.
func (f *globalFlags) setup() (*config.Config, *zap.Logger, error) {
	cfg, resolved, err := loadConfig(f.configPath)
	if err != nil {
		return nil, nil, err
	}
	debug := cfg.Debug || f.debug
	logger, err := utils.NewLogger(debug)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debug))
	return cfg, logger, nil
}
