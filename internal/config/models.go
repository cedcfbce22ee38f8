package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/muurk/rfxcom/internal/protocol"
)

// Registry represents the entire configuration file: where the gateway is,
// how the bridge listens, and which devices are bound to which items.
type Registry struct {
	Version     int                `yaml:"version" toml:"version"`
	Gateway     Gateway            `yaml:"gateway" toml:"gateway"`
	Bridge      Bridge             `yaml:"bridge" toml:"bridge"`
	Devices     map[string]*Device `yaml:"devices,omitempty" toml:"devices,omitempty"` // Keyed by device name
	Preferences Preferences        `yaml:"preferences" toml:"preferences"`
}

// Gateway describes how to reach the transceiver
type Gateway struct {
	Address  string `yaml:"address" toml:"address"`                       // /dev/ttyUSB0, serial:///dev/ttyUSB0 or tcp://host:port
	BaudRate int    `yaml:"baud_rate,omitempty" toml:"baud_rate,omitempty"` // Serial only
}

// Bridge holds the bridge service settings
type Bridge struct {
	Listen     string `yaml:"listen" toml:"listen"`
	CertFile   string `yaml:"cert_file,omitempty" toml:"cert_file,omitempty"`
	KeyFile    string `yaml:"key_file,omitempty" toml:"key_file,omitempty"`
	CaptureDir string `yaml:"capture_dir,omitempty" toml:"capture_dir,omitempty"` // Empty disables capture
	Advertise  bool   `yaml:"advertise" toml:"advertise"`                          // Announce the bridge over mDNS
	Name       string `yaml:"name,omitempty" toml:"name,omitempty"`                // mDNS instance name
}

// Device binds one physical device to named items.
type Device struct {
	PacketType string     `yaml:"packet_type" toml:"packet_type"` // e.g. LIGHTING2
	SubType    string     `yaml:"sub_type" toml:"sub_type"`       // e.g. AC
	ID         string     `yaml:"id" toml:"id"`                   // Device id as reported by the codec
	Bindings   []*Binding `yaml:"bindings" toml:"bindings"`
}

// Binding maps one value selector of a device to an item name.
type Binding struct {
	Selector string `yaml:"selector" toml:"selector"`
	Kind     string `yaml:"kind,omitempty" toml:"kind,omitempty"` // Overrides the selector's natural kind
	Item     string `yaml:"item" toml:"item"`
}

// Preferences represents CLI preferences.
type Preferences struct {
	DiscoverTimeout int `yaml:"discover_timeout" toml:"discover_timeout"` // mDNS discovery timeout in seconds
}

// Default values applied to missing settings
const (
	DefaultListen          = ":8080"
	DefaultDiscoverTimeout = 5
)

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	r := &Registry{Version: 1}
	r.applyDefaults()
	return r
}

func (r *Registry) applyDefaults() {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}
	if r.Bridge.Listen == "" {
		r.Bridge.Listen = DefaultListen
	}
	if r.Preferences.DiscoverTimeout == 0 {
		r.Preferences.DiscoverTimeout = DefaultDiscoverTimeout
	}
}

// ResolvedDevice is a Device with every name resolved against the codec
type ResolvedDevice struct {
	Name       string
	PacketType protocol.PacketType
	SubType    protocol.SubType
	ID         string
	Bindings   []ResolvedBinding
}

// ResolvedBinding pairs a selector, with any kind override applied, with its item
type ResolvedBinding struct {
	Selector protocol.ValueSelector
	Item     string
}

// Resolve checks every name in the device through the protocol package
func (d *Device) Resolve(name string) (*ResolvedDevice, error) {
	pt, err := protocol.ParsePacketTypeName(d.PacketType)
	if err != nil {
		return nil, fmt.Errorf("device %q: %w", name, err)
	}
	codec, err := protocol.CodecFor(pt)
	if err != nil {
		return nil, fmt.Errorf("device %q: %w", name, err)
	}
	sub, err := codec.ParseSubTypeName(d.SubType)
	if err != nil {
		return nil, fmt.Errorf("device %q: %w", name, err)
	}
	if strings.TrimSpace(d.ID) == "" {
		return nil, fmt.Errorf("device %q: missing id", name)
	}

	rd := &ResolvedDevice{
		Name:       name,
		PacketType: pt,
		SubType:    sub,
		ID:         d.ID,
	}
	items := make(map[string]bool)
	for i, b := range d.Bindings {
		if b == nil {
			return nil, fmt.Errorf("device %q: binding %d is empty", name, i)
		}
		sel, err := protocol.ParseValueSelector(b.Selector)
		if err != nil {
			return nil, fmt.Errorf("device %q binding %d: %w", name, i, err)
		}
		if b.Kind != "" {
			kind, err := protocol.ParseValueKind(b.Kind)
			if err != nil {
				return nil, fmt.Errorf("device %q binding %d: %w", name, i, err)
			}
			sel = sel.As(kind)
		}
		if b.Item == "" {
			return nil, fmt.Errorf("device %q binding %d: missing item", name, i)
		}
		if items[b.Item] {
			return nil, fmt.Errorf("device %q: item %q bound twice", name, b.Item)
		}
		items[b.Item] = true
		rd.Bindings = append(rd.Bindings, ResolvedBinding{Selector: sel, Item: b.Item})
	}
	return rd, nil
}

// Validate resolves every device and checks the gateway settings
func (r *Registry) Validate() error {
	if r.Version != 1 {
		return fmt.Errorf("unsupported config version: %d (expected 1)", r.Version)
	}
	if r.Gateway.BaudRate < 0 {
		return fmt.Errorf("invalid gateway baud rate: %d", r.Gateway.BaudRate)
	}
	if (r.Bridge.CertFile == "") != (r.Bridge.KeyFile == "") {
		return fmt.Errorf("bridge TLS needs both cert_file and key_file")
	}
	_, err := r.ResolveDevices()
	return err
}

// ResolveDevices resolves every device, sorted by name. Two devices with the
// same packet type and id are rejected.
func (r *Registry) ResolveDevices() ([]*ResolvedDevice, error) {
	names := make([]string, 0, len(r.Devices))
	for name := range r.Devices {
		names = append(names, name)
	}
	sort.Strings(names)

	seen := make(map[DeviceKey]string)
	out := make([]*ResolvedDevice, 0, len(names))
	for _, name := range names {
		d := r.Devices[name]
		if d == nil {
			return nil, fmt.Errorf("device %q is empty", name)
		}
		rd, err := d.Resolve(name)
		if err != nil {
			return nil, err
		}
		key := DeviceKey{PacketType: rd.PacketType, ID: rd.ID}
		if other, dup := seen[key]; dup {
			return nil, fmt.Errorf("devices %q and %q share %s id %s", other, name, rd.PacketType, rd.ID)
		}
		seen[key] = name
		out = append(out, rd)
	}
	return out, nil
}

// DeviceKey identifies a device on the air
type DeviceKey struct {
	PacketType protocol.PacketType
	ID         string
}

// GetDevice retrieves a device by name.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(name string) *Device {
	return r.Devices[name]
}

// SetDevice adds or replaces a device
func (r *Registry) SetDevice(name string, d *Device) {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}
	r.Devices[name] = d
}

// Bind adds a selector binding to an existing device
func (r *Registry) Bind(name, selector, kind, item string) error {
	d := r.Devices[name]
	if d == nil {
		return fmt.Errorf("unknown device %q", name)
	}
	d.Bindings = append(d.Bindings, &Binding{Selector: selector, Kind: kind, Item: item})
	if _, err := d.Resolve(name); err != nil {
		d.Bindings = d.Bindings[:len(d.Bindings)-1]
		return err
	}
	return nil
}
