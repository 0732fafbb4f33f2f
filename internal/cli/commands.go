// Package cli is the riskapprove command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"RiskApprove/internal/di"
	"RiskApprove/pkg/config"
	"RiskApprove/pkg/server"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "config/config.yaml"

// indexTimeout bounds an offline rebuild.
const indexTimeout = 30 * time.Minute

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "riskapprove",
		Short: "RiskApprove prediction and compliance services",
		Long: `RiskApprove runs the ml-service (price indicators per symbol) and the
rag-service (compliance checks of a portfolio against regulation documents).`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "config file path")

	load := func() (*config.Config, error) {
		cfg, err := config.LoadWithEnv(configPath)
		if err != nil {
			return nil, fmt.Errorf("config load failed: %w", err)
		}
		return cfg, nil
	}

	rootCmd.AddCommand(newServeCmd("ml", "Run the prediction service", load, func(cfg *config.Config) error {
		return applyPort(&cfg.Server.MLPort)
	}, di.InitializeMLApp))
	rootCmd.AddCommand(newServeCmd("rag", "Run the compliance service", load, func(cfg *config.Config) error {
		return applyPort(&cfg.Server.RAGPort)
	}, di.InitializeRAGApp))
	rootCmd.AddCommand(newIndexCmd(load))
	rootCmd.AddCommand(newPredictCmd(load))

	return rootCmd
}

type (
	loadFunc     func() (*config.Config, error)
	injectorFunc func(*config.Config) (*server.App, error)
)

func newServeCmd(name, short string, load loadFunc, override func(*config.Config) error, inject injectorFunc) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if err := override(cfg); err != nil {
				return err
			}
			app, err := inject(cfg)
			if err != nil {
				return fmt.Errorf("%s initialization failed: %w", name, err)
			}
			return app.Run(cmd.Context())
		},
	}
}

// applyPort replaces *port with $PORT when it is set.
func applyPort(port *int) error {
	v := os.Getenv("PORT")
	if v == "" {
		return nil
	}
	p, err := strconv.Atoi(v)
	if err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("invalid PORT %q", v)
	}
	*port = p
	return nil
}

func newIndexCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Rebuild the regulation index from the regulations directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			off, err := di.InitializeOfflineIndex(cfg)
			if err != nil {
				return fmt.Errorf("index initialization failed: %w", err)
			}
			defer off.Resources.Close()

			if err := off.Loader.CheckPDFTool(); err != nil {
				cmd.PrintErrf("warning: %v; pdf files will be skipped\n", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, indexTimeout)
			defer cancel()

			start := time.Now()
			n, err := off.Index.Rebuild(ctx)
			if err != nil {
				return fmt.Errorf("rebuild failed: %w", err)
			}
			if off.Index.Placeholder() {
				cmd.PrintErrf("warning: no regulation documents found in %s; indexed the placeholder only\n", cfg.Regulations.Dir)
			}
			cmd.Printf("indexed %d chunks from %s in %s\n", n, cfg.Regulations.Dir, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

func newPredictCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "predict SYMBOL...",
		Short: "Print indicator predictions for symbols as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			off, err := di.InitializeOfflinePredictor(cfg)
			if err != nil {
				return fmt.Errorf("predictor initialization failed: %w", err)
			}
			defer off.Resources.Close()

			outcomes := off.Predictor.PredictMany(cmd.Context(), args)
			out := make([]interface{}, len(outcomes))
			for i, o := range outcomes {
				out[i] = o.Value()
			}
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal predictions: %w", err)
			}
			cmd.Println(string(data))
			return nil
		},
	}
}
