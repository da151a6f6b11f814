package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"taskboard/internal/config"
	"taskboard/internal/logging"
	"taskboard/internal/serverapp"
)

const banner = `
  ┌┬┐┌─┐┌─┐┬┌─┌┐ ┌─┐┌─┐┬─┐┌┬┐
   │ ├─┤└─┐├┴┐├┴┐│ │├─┤├┬┘ ││
   ┴ ┴ ┴└─┘┴ ┴└─┘└─┘┴ ┴┴└──┴┘
`

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the task API and browser UI",
		Long: `Serve the task REST API and the static browser UI.

Example usage:
  taskboard serve                       # listen on :3000
  taskboard serve --addr :8080          # custom address
  taskboard serve --data data/other.json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if v, _ := cmd.Flags().GetString("addr"); v != "" {
				cfg.Server.Addr = v
			}
			if v, _ := cmd.Flags().GetString("data"); v != "" {
				cfg.Store.Path = v
			}

			logger, closer := logging.New(cfg.Logging, os.Stderr)
			defer closer.Close()

			printBanner(cmd.OutOrStdout(), cfg)

			handler, err := serverapp.NewHandler(serverapp.Options{
				Config: cfg,
				Logger: logger,
			})
			if err != nil {
				return fmt.Errorf("build server: %w", err)
			}

			logger.Info("starting taskboard",
				"addr", cfg.Server.Addr,
				"store", cfg.Store.Path,
				"version", version,
			)
			return serverapp.Run(cmd.Context(), handler, cfg.Server.Addr, logger)
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	cmd.Flags().String("data", "", "task collection file (overrides store.path)")
	return cmd
}

func printBanner(w io.Writer, cfg *config.Config) {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)

	cyan.Fprint(w, banner)
	gray.Fprintf(w, "    version: %s\n\n", version)

	green.Fprint(w, "    ▶ ")
	fmt.Fprintf(w, "HTTP:     %s\n", cfg.Server.Addr)
	green.Fprint(w, "    ▶ ")
	fmt.Fprintf(w, "Store:    %s\n", cfg.Store.Path)
	if cfg.Static.Enabled {
		green.Fprint(w, "    ▶ ")
		fmt.Fprintf(w, "Static:   %s\n", cfg.Static.Dir)
	}
	fmt.Fprintln(w)
}
