package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/muurk/rfxcom/internal/bridge"
	"github.com/muurk/rfxcom/internal/protocol"
	"github.com/muurk/rfxcom/internal/ui"
)

// Codec command flags
var (
	jsonOutput bool

	encodePacketType string
	encodeSubType    string
	encodeSelector   string
	encodeDevice     string
	encodeValue      string
	encodeKind       string
	encodeSeq        uint8
	encodeRaw        bool
)

func init() {
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(subtypesCmd)
	rootCmd.AddCommand(selectorsCmd)
}

// decodeCmd decodes hex frames
var decodeCmd = &cobra.Command{
	Use:   "decode [hex]",
	Short: "Decode a gateway frame",
	Long: `Decode a hex encoded gateway frame and show its device id and states.

Spaces, colons and line breaks inside the hex are ignored. Without an
argument, frames are read from stdin one per line.`,
	Example: `  # Decode a Lighting2 (AC) frame
  rfxcom decode 0B11000A0123456701010F70

  # Bytes may be separated
  rfxcom decode "08 50 01 10 AB 12 00 D7 79"

  # Decode a list of frames as JSON
  cat frames.txt | rfxcom decode --json`,
	Args: cobra.ArbitraryArgs,
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of styled output")
}

func runDecode(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if len(args) > 0 {
		return decodeOne(out, strings.Join(args, " "), jsonOutput)
	}

	var failed int
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := decodeOne(out, line, jsonOutput); err != nil {
			failed++
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	if failed > 0 {
		return fmt.Errorf("%d frame(s) failed to decode", failed)
	}
	return nil
}

// decodeOne decodes a single hex frame and prints the result
func decodeOne(out io.Writer, text string, asJSON bool) error {
	var raw []byte
	msg, err := func() (protocol.Message, error) {
		f, err := protocol.ParseHexFrame(text)
		if err != nil {
			return nil, err
		}
		raw = f.Bytes()
		return protocol.DecodeFrame(f)
	}()

	if asJSON {
		enc := json.NewEncoder(out)
		if err != nil {
			_ = enc.Encode(bridge.APIError{Error: err.Error(), Kind: protocol.ErrorKind(err)})
			return err
		}
		return enc.Encode(bridge.NewDecoded(msg))
	}

	p := ui.NewPrinter(out)
	if err != nil {
		p.PrintResult(ui.DecodeFailureResult(raw, err))
		return err
	}
	p.PrintResult(ui.MessageResult(msg))
	return nil
}

// encodeCmd builds a command frame
var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Build a command frame",
	Long: `Build a command frame from a device id and a typed value.

The sub type and selector are given by name. The value is parsed according
to the selector's kind, or --kind when given: booleans accept ON/OFF,
true/false and 1/0, percentages accept an optional % sign.`,
	Example: `  # Switch a Lighting2 (AC) unit on
  rfxcom encode --packet-type LIGHTING2 --sub-type AC \
      --device 19088743.10 --selector Command --value ON

  # Dim to 40%, printing only the hex frame
  rfxcom encode --packet-type LIGHTING2 --sub-type AC \
      --device 19088743.10 --selector DimmingLevel --value 40 --raw`,
	RunE: runEncode,
}

func init() {
	encodeCmd.Flags().StringVar(&encodePacketType, "packet-type", "", "Packet type name (e.g. LIGHTING2)")
	encodeCmd.Flags().StringVar(&encodeSubType, "sub-type", "", "Sub type name (e.g. AC)")
	encodeCmd.Flags().StringVar(&encodeSelector, "selector", "Command", "Value selector")
	encodeCmd.Flags().StringVar(&encodeDevice, "device", "", "Device id (e.g. 19088743.10)")
	encodeCmd.Flags().StringVar(&encodeValue, "value", "", "Value to send")
	encodeCmd.Flags().StringVar(&encodeKind, "kind", "", "Override the selector's value kind (string, number, boolean, percent)")
	encodeCmd.Flags().Uint8Var(&encodeSeq, "seq", 0, "Sequence number")
	encodeCmd.Flags().BoolVar(&encodeRaw, "raw", false, "Print only the hex frame")
	encodeCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of styled output")
	_ = encodeCmd.MarkFlagRequired("packet-type")
	_ = encodeCmd.MarkFlagRequired("sub-type")
}

// encodeRequest is the parsed form of the encode flags
type encodeRequest struct {
	PacketType string
	SubType    string
	Selector   string
	Kind       string
	Device     string
	Value      string
	Seq        byte
}

// build resolves every name and asks the codec for a message
func (r encodeRequest) build() (protocol.Message, error) {
	pt, err := protocol.ParsePacketTypeName(r.PacketType)
	if err != nil {
		return nil, err
	}
	codec, err := protocol.CodecFor(pt)
	if err != nil {
		return nil, err
	}
	st, err := codec.ParseSubTypeName(r.SubType)
	if err != nil {
		return nil, err
	}
	sel, err := protocol.ParseValueSelector(r.Selector)
	if err != nil {
		return nil, err
	}
	if r.Kind != "" {
		kind, err := protocol.ParseValueKind(r.Kind)
		if err != nil {
			return nil, err
		}
		sel = sel.As(kind)
	}
	value, err := protocol.ParseState(sel.Kind, r.Value)
	if err != nil {
		return nil, fmt.Errorf("%s value %q: %w", sel.Name, r.Value, err)
	}
	return codec.FromState(sel, r.Device, st, value, r.Seq)
}

func runEncode(cmd *cobra.Command, args []string) error {
	req := encodeRequest{
		PacketType: encodePacketType,
		SubType:    encodeSubType,
		Selector:   encodeSelector,
		Kind:       encodeKind,
		Device:     encodeDevice,
		Value:      encodeValue,
		Seq:        encodeSeq,
	}
	out := cmd.OutOrStdout()

	msg, err := req.build()
	if err != nil {
		return fmt.Errorf("encode failed: %w", err)
	}
	frame := msg.Encode()

	switch {
	case encodeRaw:
		fmt.Fprintf(out, "%X\n", frame)
	case jsonOutput:
		d := bridge.NewDecoded(msg)
		return json.NewEncoder(out).Encode(struct {
			Frame string `json:"frame"`
			bridge.Decoded
		}{Frame: fmt.Sprintf("%X", frame), Decoded: d})
	default:
		ui.NewPrinter(out).PrintResult(ui.MessageResult(msg))
	}
	return nil
}

// subtypesCmd lists sub types
var subtypesCmd = &cobra.Command{
	Use:   "subtypes [packet-type]",
	Short: "List packet types and their sub types",
	Example: `  # Every decodable packet type
  rfxcom subtypes

  # Sub types of one packet type
  rfxcom subtypes TEMPERATURE_HUMIDITY`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		codecs := protocol.Codecs()
		if len(args) == 1 {
			pt, err := protocol.ParsePacketTypeName(args[0])
			if err != nil {
				return err
			}
			codec, err := protocol.CodecFor(pt)
			if err != nil {
				return err
			}
			codecs = []protocol.Codec{codec}
		}

		t := newTable("Packet type", "Byte", "Sub type", "Byte")
		for _, c := range codecs {
			for _, st := range c.SubTypes() {
				if !st.Known() {
					continue
				}
				t.Row(c.PacketType().String(), fmt.Sprintf("0x%02X", byte(c.PacketType())), st.String(), fmt.Sprintf("0x%02X", st.Byte()))
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), t.Render())
		return nil
	},
}

// selectorsCmd lists value selectors
var selectorsCmd = &cobra.Command{
	Use:   "selectors [packet-type]",
	Short: "List value selectors and their kinds",
	Example: `  # Every selector
  rfxcom selectors

  # Selectors LIGHTING2 messages support
  rfxcom selectors LIGHTING2`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		selectors := protocol.Selectors()
		if len(args) == 1 {
			pt, err := protocol.ParsePacketTypeName(args[0])
			if err != nil {
				return err
			}
			codec, err := protocol.CodecFor(pt)
			if err != nil {
				return err
			}
			selectors = codec.SupportedSelectors()
		}

		t := newTable("Selector", "Kind")
		for _, sel := range selectors {
			t.Row(sel.Name, sel.Kind.String())
		}
		fmt.Fprintln(cmd.OutOrStdout(), t.Render())
		return nil
	},
}

// newTable returns a lipgloss table in the CLI palette
func newTable(headers ...string) *table.Table {
	headerStyle := lipgloss.NewStyle().Foreground(ui.PrimaryColor).Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ui.MutedColor)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}
