// Package main is the entry point for the devlink CLI: inspection and
// diagnostics for the routing layer.
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/devlinkhq/devlink"
	"github.com/devlinkhq/devlink/internal/devsim"
	"github.com/devlinkhq/devlink/pkg/canbus"
	"github.com/devlinkhq/devlink/pkg/config"
	"github.com/devlinkhq/devlink/pkg/install"
	"github.com/devlinkhq/devlink/pkg/logging"
	"github.com/devlinkhq/devlink/pkg/route"
	"github.com/devlinkhq/devlink/pkg/serial"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "devlink",
		Short: "Inspect devlink routing",
		Long: `Diagnostics for the devlink routing layer: classify identifiers,
list devices, and show surface installation state.`,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file (YAML)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("simulate", false, "Register simulated local drivers")

	rootCmd.AddCommand(newClassifyCmd())
	rootCmd.AddCommand(newListPortsCmd())
	rootCmd.AddCommand(newListInterfacesCmd())
	rootCmd.AddCommand(newStatusCmd())
	return rootCmd
}

// setup loads configuration, configures logging, and installs routing so
// the list commands can reach remote devices through the relay.
func setup(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	logging.Setup(cfg.Logging)

	if sim, _ := cmd.Flags().GetBool("simulate"); sim {
		if err := devsim.RegisterAll(); err != nil {
			return nil, err
		}
	}
	if err := devlink.Install(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <identifier>...",
		Short: "Show how identifiers route",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "IDENTIFIER\tCLASS\tBACKEND")
			for _, id := range args {
				class := route.Classify(id)
				backend := "local"
				if class.Remote() {
					backend = "remote"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", id, class, backend)
			}
			return w.Flush()
		},
	}
}

func newListPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-ports",
		Short: "List serial ports",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := setup(cmd); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			ports, err := serial.ListPorts(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTYPE\tDESCRIPTION")
			for _, p := range ports {
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, p.Type, p.Description)
			}
			return w.Flush()
		},
	}
}

func newListInterfacesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-interfaces",
		Short: "List local CAN interfaces",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := setup(cmd); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			ifaces, err := canbus.Interfaces(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSTATE")
			for _, i := range ifaces {
				state := "down"
				if i.Up {
					state = "up"
				}
				fmt.Fprintf(w, "%s\t%s\n", i.Name, state)
			}
			return w.Flush()
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show surface installation state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "relay: %s\n", orNone(cfg.Relay.Address))
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SURFACE\tSTATE\tTIMEOUT")
			for _, surface := range []string{"camera", "canbus", "serial", "depth"} {
				fmt.Fprintf(w, "%s\t%s\t%s\n",
					surface,
					install.Default.State(surface),
					cfg.Timeouts.For(surface),
				)
			}
			return w.Flush()
		},
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
