package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/rfxcom/internal/config"
	"github.com/muurk/rfxcom/internal/discovery"
	"github.com/muurk/rfxcom/internal/transport"
	"github.com/muurk/rfxcom/internal/ui"
)

// Network command flags
var (
	discoverTimeout int
	discoverRole    string
)

func init() {
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(portsCmd)
}

// discoverCmd browses mDNS for gateways and bridges
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find gateways and bridges on the network",
	Long: `Browse mDNS/DNS-SD for ` + discovery.ServiceType + ` services.

LAN gateways and rfxcom-bridge instances both announce this service; the
role column tells them apart.`,
	Example: `  # Scan for the configured timeout (default 5 seconds)
  rfxcom discover

  # Only bridges, as JSON
  rfxcom discover --role bridge --json`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().IntVar(&discoverTimeout, "timeout", 0, "Scan timeout in seconds (default from preferences.discover_timeout)")
	discoverCmd.Flags().StringVar(&discoverRole, "role", "", "Only show this role (gateway, bridge)")
	discoverCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of a table")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	timeout := discoverTimeout
	if timeout <= 0 {
		timeout = config.DefaultDiscoverTimeout
		if reg, err := config.LoadRegistry(); err == nil && reg.Preferences.DiscoverTimeout > 0 {
			timeout = reg.Preferences.DiscoverTimeout
		}
	}

	switch discoverRole {
	case "", discovery.RoleGateway, discovery.RoleBridge:
	default:
		return fmt.Errorf("unknown role %q (want %s or %s)", discoverRole, discovery.RoleGateway, discovery.RoleBridge)
	}

	out := cmd.OutOrStdout()
	if !jsonOutput {
		fmt.Fprintf(out, "Scanning for %s services (timeout: %ds)...\n\n", discovery.ServiceType, timeout)
	}

	scanner := discovery.NewScanner()
	scanner.Timeout = time.Duration(timeout) * time.Second
	scanner.Role = discoverRole

	gateways, err := scanner.Browse(cmd.Context())
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(gateways)
	}

	if len(gateways) == 0 {
		ui.NewPrinter(out).PrintResult(ui.NewWarningResult("Nothing found").
			AddDetail("Service", discovery.ServiceType).
			AddDetail("Timeout", fmt.Sprintf("%ds", timeout)))
		fmt.Fprintln(out, "\nTroubleshooting:")
		fmt.Fprintln(out, "  - Check that the gateway or bridge is on the same network segment")
		fmt.Fprintln(out, "  - Bridges only announce themselves when bridge.advertise is set")
		fmt.Fprintln(out, "  - Try increasing --timeout")
		return nil
	}

	t := newTable("Role", "Name", "Address", "Details")
	for _, g := range gateways {
		addr := g.Address()
		details := g.GetMetadata("version")
		if g.Role() == discovery.RoleBridge {
			addr = g.WebSocketURL()
			details = fmt.Sprintf("%s, %s device(s)", details, g.GetMetadata("devices"))
		}
		t.Row(g.Role(), g.Name, addr, details)
	}
	fmt.Fprintln(out, t.Render())
	return nil
}

// portsCmd lists serial ports
var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Long:  `List the serial ports on this machine. USB gateways appear as /dev/ttyUSB* or /dev/ttyACM* on Linux and COM ports on Windows.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := transport.SerialPorts()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(ports) == 0 {
			fmt.Fprintln(out, "No serial ports found.")
			return nil
		}
		for _, p := range ports {
			fmt.Fprintln(out, p)
		}
		return nil
	},
}
