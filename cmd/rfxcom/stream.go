package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/rfxcom/internal/capture"
	"github.com/muurk/rfxcom/internal/config"
	"github.com/muurk/rfxcom/internal/discovery"
	"github.com/muurk/rfxcom/internal/logging"
	"github.com/muurk/rfxcom/internal/protocol"
	"github.com/muurk/rfxcom/internal/transport"
	"github.com/muurk/rfxcom/internal/ui"
)

// Stream command flags
var (
	plainOutput bool
	captureDir  string
	baudRate    int

	replayDirection  string
	replayPacketType string
	replaySince      string
	replayMonitor    bool
)

// mdnsScheme prefixes gateway addresses resolved over mDNS
const mdnsScheme = "mdns:"

var errNoGateway = errors.New("no gateway address: pass one as an argument or set gateway.address in the configuration file")

func init() {
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(replayCmd)
}

// monitorCmd watches a live gateway
var monitorCmd = &cobra.Command{
	Use:   "monitor [address]",
	Short: "Watch frames from a live gateway",
	Long: `Connect to a gateway, start its receiver and show every frame it reports.

The address is a serial device path (optionally serial://) or tcp://host:port
for ser2net and LAN gateways. mdns:<name> connects to the LAN gateway
announced under that instance name (see 'rfxcom discover'). Without an
argument the gateway address from the configuration file is used.

On a terminal the frames are shown in a scrolling table. Use --plain, or
redirect the output, for one line per frame.`,
	Example: `  # USB gateway
  rfxcom monitor /dev/ttyUSB0

  # Gateway behind ser2net, keeping a capture
  rfxcom monitor tcp://192.168.1.20:10001 --capture ./captures

  # LAN gateway found over mDNS
  rfxcom monitor mdns:rfxlan-kitchen`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().BoolVar(&plainOutput, "plain", false, "Print one line per frame instead of the interactive table")
	monitorCmd.Flags().StringVar(&captureDir, "capture", "", "Directory to record a CBOR capture of every frame")
	monitorCmd.Flags().IntVar(&baudRate, "baud", 0, "Serial line speed (default 38400)")
}

// gatewayAddress picks the address from args or the configuration file.
// An "mdns:<name>" address is resolved to the announced gateway.
func gatewayAddress(ctx context.Context, args []string) (string, int, error) {
	if len(args) == 1 {
		addr, err := resolveGateway(ctx, args[0])
		return addr, baudRate, err
	}
	reg, err := config.LoadRegistry()
	if err != nil {
		return "", 0, err
	}
	if reg.Gateway.Address == "" {
		return "", 0, errNoGateway
	}
	baud := baudRate
	if baud == 0 {
		baud = reg.Gateway.BaudRate
	}
	addr, err := resolveGateway(ctx, reg.Gateway.Address)
	return addr, baud, err
}

func resolveGateway(ctx context.Context, addr string) (string, error) {
	name, ok := strings.CutPrefix(addr, mdnsScheme)
	if !ok {
		return addr, nil
	}
	scanner := discovery.NewScanner()
	scanner.Role = discovery.RoleGateway
	gw, err := scanner.WaitFor(ctx, name)
	if err != nil {
		return "", err
	}
	logging.Info("Resolved gateway", zap.String("name", name), zap.String("addr", gw.Address()))
	return "tcp://" + gw.Address(), nil
}

func runMonitor(cmd *cobra.Command, args []string) error {
	addr, baud, err := gatewayAddress(cmd.Context(), args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := transport.Dial(ctx, addr, transport.Options{BaudRate: baud})
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing gateway: %w", err)
	}

	var rec *capture.Recorder
	if captureDir != "" {
		rec, err = capture.Create(captureDir, addr)
		if err != nil {
			return err
		}
		defer rec.Close()
	}

	events := make(chan ui.FrameEvent, 64)
	readErr := make(chan error, 1)
	go func() {
		defer close(events)
		for {
			frame, err := conn.ReadFrame()
			if err != nil {
				readErr <- err
				return
			}
			logging.LogFrame("received", frame)
			if rec != nil {
				if err := rec.Record(capture.DirectionReceived, frame); err != nil {
					logging.Warn("Capture write failed", zap.Error(err))
				}
			}
			select {
			case events <- ui.FrameEvent{Time: time.Now(), Direction: capture.DirectionReceived, Raw: frame}:
			case <-ctx.Done():
				return
			}
		}
	}()

	if plainOutput || !ui.IsTerminal() {
		p := ui.NewPrinter(cmd.OutOrStdout())
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-events:
				if !ok {
					return streamError(readErr)
				}
				p.PrintSummary(ev)
			}
		}
	}

	final, err := ui.RunMonitor(ui.NewMonitorModel("RFXCOM "+addr, events))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d frame(s), %d decode failure(s)\n", final.Frames(), final.Failures())
	if rec != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Capture: %s (%d records)\n", rec.Path(), rec.Count())
	}
	return nil
}

// streamError reports why the read loop stopped. A closed stream is not an error.
func streamError(readErr <-chan error) error {
	select {
	case err := <-readErr:
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("reading gateway: %w", err)
	default:
		return nil
	}
}

// replayCmd reads a capture file
var replayCmd = &cobra.Command{
	Use:   "replay <capture>",
	Short: "Decode the frames in a capture file",
	Long: `Decode every frame recorded in a CBOR capture file written by
'rfxcom monitor --capture' or by the bridge.`,
	Example: `  # Everything
  rfxcom replay captures/capture-20250101-120000.cbor

  # Only commands the bridge sent in the last hour
  rfxcom replay capture.cbor --direction sent --since 1h

  # Only temperature sensors, browsed in the table view
  rfxcom replay capture.cbor --packet-type TEMPERATURE --monitor`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayDirection, "direction", "", "Only frames in this direction (received, sent)")
	replayCmd.Flags().StringVar(&replayPacketType, "packet-type", "", "Only frames of this packet type (name or 0x byte)")
	replayCmd.Flags().StringVar(&replaySince, "since", "", "Only frames newer than this duration (e.g. 30m) or RFC 3339 time")
	replayCmd.Flags().BoolVar(&replayMonitor, "monitor", false, "Browse the frames in the interactive table")
	replayCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print one JSON record per line")
}

// replayFilter builds a capture filter from the replay flags
func replayFilter(direction, packetType, since string, now time.Time) (capture.Filter, error) {
	var f capture.Filter

	switch direction {
	case "":
	case capture.DirectionReceived.String():
		d := capture.DirectionReceived
		f.Direction = &d
	case capture.DirectionSent.String():
		d := capture.DirectionSent
		f.Direction = &d
	default:
		return f, fmt.Errorf("unknown direction %q (want received or sent)", direction)
	}

	if packetType != "" {
		var b byte
		if n, err := strconv.ParseUint(packetType, 0, 8); err == nil {
			b = byte(n)
		} else {
			pt, err := protocol.ParsePacketTypeName(packetType)
			if err != nil {
				return f, err
			}
			b = byte(pt)
		}
		f.PacketType = &b
	}

	if since != "" {
		if d, err := time.ParseDuration(since); err == nil {
			f.Since = now.Add(-d)
		} else if t, err := time.Parse(time.RFC3339, since); err == nil {
			f.Since = t
		} else {
			return f, fmt.Errorf("invalid --since %q: want a duration or RFC 3339 time", since)
		}
	}
	return f, nil
}

// replayRecord is the JSON line printed by replay --json
type replayRecord struct {
	Timestamp  time.Time                 `json:"timestamp"`
	Direction  string                    `json:"direction"`
	Source     string                    `json:"source,omitempty"`
	Frame      string                    `json:"frame"`
	PacketType string                    `json:"packet_type,omitempty"`
	SubType    string                    `json:"sub_type,omitempty"`
	Device     string                    `json:"device,omitempty"`
	States     map[string]protocol.State `json:"states,omitempty"`
	Error      string                    `json:"error,omitempty"`
}

func newReplayRecord(rec capture.Record) replayRecord {
	r := replayRecord{
		Timestamp: rec.Timestamp,
		Direction: rec.Direction.String(),
		Source:    rec.Source,
		Frame:     fmt.Sprintf("%X", rec.Frame),
	}
	msg, err := protocol.Decode(rec.Frame)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	env := msg.Envelope()
	r.PacketType = env.PacketType.String()
	r.SubType = env.SubType.String()
	r.Device = msg.DeviceID()
	r.States = make(map[string]protocol.State)
	for _, sel := range msg.SupportedSelectors() {
		if st, err := msg.ToState(sel); err == nil {
			r.States[sel.Name] = st
		}
	}
	return r
}

func runReplay(cmd *cobra.Command, args []string) error {
	filter, err := replayFilter(replayDirection, replayPacketType, replaySince, time.Now())
	if err != nil {
		return err
	}

	reader, err := capture.OpenReader(args[0], filter)
	if err != nil {
		return err
	}
	defer reader.Close()

	if replayMonitor {
		events := make(chan ui.FrameEvent)
		readErr := make(chan error, 1)
		go func() {
			defer close(events)
			readErr <- feedCapture(context.Background(), reader, events)
		}()
		_, err := ui.RunMonitor(ui.NewMonitorModel("Capture "+args[0], events))
		return err
	}

	return printReplay(cmd.OutOrStdout(), reader, args[0], jsonOutput)
}

// feedCapture sends every record to events until the capture ends
func feedCapture(ctx context.Context, reader *capture.Reader, events chan<- ui.FrameEvent) error {
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		select {
		case events <- ui.FrameEvent{Time: rec.Timestamp, Direction: rec.Direction, Raw: rec.Frame}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// printReplay writes each record as a summary line, or as JSON
func printReplay(out io.Writer, reader *capture.Reader, path string, asJSON bool) error {
	p := ui.NewPrinter(out)
	enc := json.NewEncoder(out)

	if !asJSON {
		p.PrintHeader(ui.NewHeader("Capture replay", "rfxcom replay "+path))
	}

	var count, failures int
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		count++

		if asJSON {
			r := newReplayRecord(rec)
			if r.Error != "" {
				failures++
			}
			if err := enc.Encode(r); err != nil {
				return err
			}
			continue
		}

		if _, err := protocol.Decode(rec.Frame); err != nil {
			failures++
		}
		p.PrintSummary(ui.FrameEvent{Time: rec.Timestamp, Direction: rec.Direction, Raw: rec.Frame})
	}

	if !asJSON {
		p.Newline()
		p.PrintResult(ui.NewSuccessResult("Replay complete").
			AddDetail("Frames", strconv.Itoa(count)).
			AddDetail("Decode failures", strconv.Itoa(failures)))
	}
	return nil
}
