// Package config provides configuration management for the rfxcom tools.
//
// The configuration file names the gateway, the bridge listen settings, and
// the device bindings that map a device's value selectors to item names.
// Files ending in .toml are read as TOML; everything else is YAML.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations unless
// RFXCOM_CONFIG points elsewhere:
//   - Linux: $XDG_CONFIG_HOME/rfxcom/config.yaml or $HOME/.config/rfxcom/config.yaml
//   - macOS: $HOME/.config/rfxcom/config.yaml
//   - Windows: %LOCALAPPDATA%\rfxcom\config.yaml
//
// # Example
//
//	version: 1
//	gateway:
//	  address: /dev/ttyUSB0
//	bridge:
//	  listen: ":8080"
//	devices:
//	  hall_light:
//	    packet_type: LIGHTING2
//	    sub_type: AC
//	    id: "19088743.10"
//	    bindings:
//	      - selector: Command
//	        item: HallLight
//	      - selector: SignalLevel
//	        kind: string
//	        item: HallLightSignal
//
// Every name is resolved through the protocol package when the file is
// loaded, so a typo in a packet type, sub type, selector or kind fails at
// start-up rather than on the first frame.
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File writes are protected by a mutex and are atomic.
package config
