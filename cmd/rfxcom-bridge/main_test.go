package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/muurk/rfxcom/internal/bridge"
	"github.com/muurk/rfxcom/internal/config"
)

// idleGateway never reports frames
type idleGateway struct{}

func (idleGateway) ReadFrame() ([]byte, error) { return nil, io.EOF }
func (idleGateway) WriteFrame([]byte) error    { return nil }
func (idleGateway) NextSequence() byte         { return 0 }
func (idleGateway) Close() error               { return nil }

const oneDevice = `version: 1
devices:
  hall_light:
    packet_type: LIGHTING2
    sub_type: AC
    id: "19088743.10"
    bindings:
      - selector: Command
        item: HallLight
`

const twoDevices = oneDevice + `  outside:
    packet_type: TEMPERATURE
    sub_type: TEMP1
    id: "43794"
    bindings:
      - selector: Temperature
        item: OutsideTemperature
`

func TestReloadDevices(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(oneDevice), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(config.ConfigPathEnvVar, path)

	reg, err := config.ReloadRegistry()
	if err != nil {
		t.Fatalf("ReloadRegistry() error = %v", err)
	}
	cfg, err := bridge.ConfigFromRegistry(reg)
	if err != nil {
		t.Fatalf("ConfigFromRegistry() error = %v", err)
	}
	b, err := bridge.New(cfg, idleGateway{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { b.Shutdown(context.Background()) })

	if err := os.WriteFile(path, []byte(twoDevices), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := reloadDevices(b); err != nil {
		t.Fatalf("reloadDevices() error = %v", err)
	}
	if res := b.HandleCommand(bridge.Command{Item: "OutsideTemperature", Value: []byte(`21`)}); res.ErrorKind != "unsupported operation" {
		t.Errorf("command on reloaded item = %+v, want unsupported operation", res)
	}

	if err := os.WriteFile(path, []byte("devices: ["), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := reloadDevices(b); err == nil {
		t.Error("reloadDevices() should fail on an unreadable file")
	}
}
