// Package main is the entry point for the consultd CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/wombat2006/techdev-sub003/internal/config"
	"github.com/wombat2006/techdev-sub003/internal/svc"
	"github.com/wombat2006/techdev-sub003/internal/wizard"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "consultd",
		Short:         "A multi-engine AI consultation daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), initCmd(), startCmd(), mcpCmd(), configCmd(), serviceCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("consultd %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [path]",
		Short: "Create a starter configuration interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := "consultd.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := wizard.Run(path); err != nil {
				if errors.Is(err, wizard.ErrDeclined) {
					fmt.Println("Keeping existing configuration.")
					return nil
				}
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			fmt.Printf("Start the daemon with: consultd start --config %s\n", path)
			return nil
		},
	}
}

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the consultation daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, err := configPathFromFlags(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runDaemon(ctx, cfgPath)
		},
	}
	return withConfigFlag(cmd)
}

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve consultations over MCP stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, err := configPathFromFlags(cmd)
			if err != nil {
				return err
			}
			return runMCP(cfgPath)
		},
	}
	return withConfigFlag(cmd)
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Parse and validate a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			fmt.Printf("Configuration OK (%d engines, %d tools)\n", len(cfg.Engines), len(cfg.Tools))
			for _, t := range cfg.Tools {
				fmt.Printf("  %s -> %s\n", t.ID, t.Engine)
			}
			return nil
		},
	})
	return cmd
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service <install|uninstall|start|stop|restart|run>",
		Short: "Manage consultd as a system service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, err := configPathFromFlags(cmd)
			if err != nil {
				return err
			}
			// The service manager starts the daemon from its own working
			// directory, so the registered path must be absolute.
			abs, err := filepath.Abs(cfgPath)
			if err != nil {
				return err
			}

			s, err := svc.New(svc.Config{ConfigPath: abs}, func(ctx context.Context) error {
				return runDaemon(ctx, abs)
			})
			if err != nil {
				return err
			}
			if args[0] == "run" {
				return s.Run()
			}
			return s.Control(args[0])
		},
	}
	return withConfigFlag(cmd)
}

// withConfigFlag adds the shared --config flag to cmd.
func withConfigFlag(cmd *cobra.Command) *cobra.Command {
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}

// configPathFromFlags honors an explicit --config value and otherwise
// falls back to the standard search locations.
func configPathFromFlags(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path, nil
	}
	return resolveConfigPath()
}

// resolveConfigPath returns the first consultd.yaml that exists among the
// standard locations.
func resolveConfigPath() (string, error) {
	searched := configSearchPaths()
	for _, p := range searched {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no configuration file found (searched: %v)", searched)
}

// configSearchPaths lists candidate locations in priority order. The XDG
// config home wins over ~/.config; the working directory is the final
// fallback.
func configSearchPaths() []string {
	paths := make([]string, 0, 2)
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		paths = append(paths, filepath.Join(xdg, "consultd", "consultd.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "consultd", "consultd.yaml"))
	}
	return append(paths, "consultd.yaml")
}
