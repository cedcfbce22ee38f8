package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/rfxcom/internal/config"
	"github.com/muurk/rfxcom/internal/ui"
)

var (
	configForce bool
	bindKind    string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configBindCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file without asking")
	configBindCmd.Flags().StringVar(&bindKind, "kind", "", "Override the selector's value kind")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
	Long: `Manage the gateway, bridge and device binding configuration.

The file is YAML, or TOML when its name ends in .toml. Its location is
--config, then $` + config.ConfigPathEnvVar + `, then config.yaml in the user
configuration directory.`,
}

// configFilePath returns the active configuration path
func configFilePath() (string, error) {
	return config.GetConfigPath()
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an example configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configFilePath()
		if err != nil {
			return err
		}

		if _, err := os.Stat(path); err == nil && !configForce {
			if !ui.ConfirmOverwrite(cmd.InOrStdin(), cmd.OutOrStdout(), path) {
				return nil
			}
		}

		if err := config.CreateDefaultConfig(path); err != nil {
			return err
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintResult(ui.NewSuccessResult("Configuration written").
			AddDetail("Path", path).
			AddDetail("Format", config.FormatForPath(path).String()))
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the gateway settings and device bindings",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := config.LoadRegistry()
		if err != nil {
			return err
		}
		devices, err := reg.ResolveDevices()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		gateway := reg.Gateway.Address
		if gateway == "" {
			gateway = "(not set)"
		}
		r := ui.NewSuccessResult("Configuration").
			AddDetail("Gateway", gateway).
			AddDetail("Bridge listen", reg.Bridge.Listen).
			AddDetail("Devices", strconv.Itoa(len(devices)))
		if reg.Bridge.CaptureDir != "" {
			r.AddDetail("Capture dir", reg.Bridge.CaptureDir)
		}
		ui.NewPrinter(out).PrintResult(r)

		if len(devices) == 0 {
			return nil
		}
		t := newTable("Device", "Packet type", "Sub type", "Id", "Bindings")
		for _, d := range devices {
			bindings := make([]string, 0, len(d.Bindings))
			for _, b := range d.Bindings {
				bindings = append(bindings, fmt.Sprintf("%s=%s (%s)", b.Item, b.Selector.Name, b.Selector.Kind))
			}
			t.Row(d.Name, d.PacketType.String(), d.SubType.String(), d.ID, strings.Join(bindings, "\n"))
		}
		fmt.Fprintln(out, t.Render())
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check a configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configFilePath()
		if err != nil {
			return err
		}
		if len(args) == 1 {
			path = args[0]
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		p := ui.NewPrinter(cmd.OutOrStdout())
		reg, err := config.Parse(data, config.FormatForPath(path))
		if err != nil {
			p.PrintResult(ui.NewFailureResult("Invalid configuration", err,
				"Run 'rfxcom subtypes' and 'rfxcom selectors' for valid names",
				"Every item name may be bound once across all devices",
			).AddDetail("Path", path))
			return errors.New("configuration is invalid")
		}
		p.PrintResult(ui.NewSuccessResult("Configuration is valid").
			AddDetail("Path", path).
			AddDetail("Devices", strconv.Itoa(len(reg.Devices))))
		return nil
	},
}

var configBindCmd = &cobra.Command{
	Use:   "bind <device> <selector> <item>",
	Short: "Bind a device selector to an item",
	Example: `  rfxcom config bind hall_light DimmingLevel HallLightLevel
  rfxcom config bind garden_sensor Temperature GardenTemp --kind string`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := config.LoadRegistry()
		if err != nil {
			return err
		}
		if err := reg.Bind(args[0], args[1], bindKind, args[2]); err != nil {
			return err
		}
		path, err := configFilePath()
		if err != nil {
			return err
		}
		if err := reg.SaveFile(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s.%s bound to %s\n", ui.SuccessMarker, args[0], args[1], args[2])
		return nil
	},
}
