// Rfxcom-bridge relays an RFXCOM gateway to WebSocket subscribers.
//
// It decodes every frame the gateway reports, publishes the states of bound
// items as JSON events on /ws, and writes commands received from subscribers
// back to the gateway. Prometheus metrics are served on /metrics.
//
// Usage:
//
//	rfxcom-bridge [flags]
//
// See 'rfxcom-bridge --help' for available options.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/rfxcom/internal/bridge"
	"github.com/muurk/rfxcom/internal/config"
	"github.com/muurk/rfxcom/internal/logging"
	"github.com/muurk/rfxcom/internal/transport"
	"github.com/muurk/rfxcom/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Bridge flags. Flags that are set override the configuration file.
var (
	configPath string
	gateway    string
	baudRate   int
	listen     string
	certPath   string
	keyPath    string
	selfSigned bool
	captureDir string
	advertise  bool
	name       string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "rfxcom-bridge",
	Short: "RFXCOM WebSocket bridge",
	Long: `Relay an RFXCOM gateway to WebSocket subscribers.

Frames from the gateway are decoded and the states of bound items are
published as JSON events on /ws. Subscribers send JSON commands on the same
connection; each is encoded and written to the gateway once.

Device bindings come from the configuration file (see 'rfxcom config').
Flags override the gateway and bridge sections of the file. Send SIGHUP to
reload the device bindings without dropping subscribers.`,
	Example: `  # Use the configuration file
  rfxcom-bridge

  # Serial gateway, TLS with a generated certificate, announced over mDNS
  rfxcom-bridge --gateway /dev/ttyUSB0 --self-signed --advertise

  # Gateway behind ser2net, recording every frame
  rfxcom-bridge --gateway tcp://192.168.1.20:10001 --capture-dir ./captures --log-level debug`,
	Version:      version.Version,
	SilenceUsage: true,
	RunE:         runBridge,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	f := rootCmd.Flags()
	f.StringVar(&configPath, "config", "", "Configuration file (default: $"+config.ConfigPathEnvVar+" or the user config directory)")
	f.StringVar(&gateway, "gateway", "", "Gateway address: serial device path or tcp://host:port")
	f.IntVar(&baudRate, "baud", 0, "Serial line speed (default 38400)")
	f.StringVar(&listen, "listen", "", "HTTP listen address (default "+config.DefaultListen+")")
	f.StringVar(&certPath, "cert", "", "Path to TLS certificate file")
	f.StringVar(&keyPath, "key", "", "Path to TLS private key file")
	f.BoolVar(&selfSigned, "self-signed", false, "Serve TLS with a generated self-signed certificate")
	f.StringVar(&captureDir, "capture-dir", "", "Directory to write CBOR frame captures (disabled if not specified)")
	f.BoolVar(&advertise, "advertise", false, "Announce the bridge over mDNS")
	f.StringVar(&name, "name", "", "mDNS instance name (default: host name)")
	f.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
}

// loadConfig merges the configuration file with the flags that were set
func loadConfig(cmd *cobra.Command) (bridge.Config, int, error) {
	if configPath != "" {
		if err := os.Setenv(config.ConfigPathEnvVar, configPath); err != nil {
			return bridge.Config{}, 0, err
		}
	}
	reg, err := config.LoadRegistry()
	if err != nil {
		return bridge.Config{}, 0, fmt.Errorf("loading configuration: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("gateway") {
		reg.Gateway.Address = gateway
	}
	if flags.Changed("baud") {
		reg.Gateway.BaudRate = baudRate
	}
	if flags.Changed("listen") {
		reg.Bridge.Listen = listen
	}
	if flags.Changed("cert") || flags.Changed("key") {
		reg.Bridge.CertFile, reg.Bridge.KeyFile = certPath, keyPath
	}
	if flags.Changed("capture-dir") {
		reg.Bridge.CaptureDir = captureDir
	}
	if flags.Changed("advertise") {
		reg.Bridge.Advertise = advertise
	}
	if flags.Changed("name") {
		reg.Bridge.Name = name
	}
	if err := reg.Validate(); err != nil {
		return bridge.Config{}, 0, err
	}
	if reg.Gateway.Address == "" {
		return bridge.Config{}, 0, fmt.Errorf("no gateway address: use --gateway or set gateway.address in the configuration file")
	}

	cfg, err := bridge.ConfigFromRegistry(reg)
	if err != nil {
		return bridge.Config{}, 0, err
	}
	cfg.SelfSigned = selfSigned && cfg.CertFile == ""
	cfg.Version = version.Version
	if cfg.Name == "" {
		if host, err := os.Hostname(); err == nil {
			cfg.Name = "rfxcom-" + host
		}
	}
	return cfg, reg.Gateway.BaudRate, nil
}

func runBridge(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return err
	}
	defer logging.Sync()

	cfg, baud, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := transport.Dial(ctx, cfg.GatewayURL, transport.Options{BaudRate: baud})
	if err != nil {
		return err
	}
	if err := conn.Initialize(ctx); err != nil {
		conn.Close()
		return fmt.Errorf("initializing gateway: %w", err)
	}

	b, err := bridge.New(cfg, conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create bridge: %w", err)
	}

	go reloadOnHangup(ctx, b)

	logging.Info("Starting bridge",
		zap.String("version", version.Full()),
		zap.String("gateway", cfg.GatewayURL),
		zap.String("listen", cfg.Listen),
		zap.Int("devices", len(cfg.Devices)),
	)
	return b.Run(ctx)
}

// reloadOnHangup rereads device bindings from the configuration file on
// SIGHUP. Gateway and listener settings need a restart.
func reloadOnHangup(ctx context.Context, b *bridge.Bridge) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
		}
		if err := reloadDevices(b); err != nil {
			logging.Error("Reload failed, keeping current bindings", zap.Error(err))
		}
	}
}

func reloadDevices(b *bridge.Bridge) error {
	reg, err := config.ReloadRegistry()
	if err != nil {
		return err
	}
	devices, err := reg.ResolveDevices()
	if err != nil {
		return err
	}
	if err := b.SetDevices(devices); err != nil {
		return err
	}
	logging.Info("Reloaded device bindings", zap.Int("devices", len(devices)))
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "rfxcom-bridge %s\n", version.Full())
	},
}
