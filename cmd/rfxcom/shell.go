package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/muurk/rfxcom/internal/capture"
	"github.com/muurk/rfxcom/internal/config"
	"github.com/muurk/rfxcom/internal/protocol"
	"github.com/muurk/rfxcom/internal/transport"
	"github.com/muurk/rfxcom/internal/ui"
)

var shellGateway string

func init() {
	rootCmd.AddCommand(shellCmd)
	shellCmd.Flags().StringVar(&shellGateway, "gateway", "", "Gateway address; frames it reports are printed and 'send' writes to it")
}

// shellCmd is an interactive decode loop
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive frame shell",
	Long: `Start an interactive shell. Each hex line typed is decoded.

With --gateway the shell also prints every frame the gateway reports and
the 'send' and 'encode' commands write frames to it.`,
	Example: `  # Offline decoding
  rfxcom shell

  # Talk to a gateway
  rfxcom shell --gateway tcp://192.168.1.20:10001`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

// shell holds the state of one interactive session
type shell struct {
	out io.Writer
	gw  *transport.Conn
	seq transport.Sequence
}

func runShell(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rlConfig := &readline.Config{
		Prompt:          "rfxcom> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("help"),
			readline.PcItem("decode"),
			readline.PcItem("encode"),
			readline.PcItem("send"),
			readline.PcItem("subtypes"),
			readline.PcItem("selectors"),
			readline.PcItem("quit"),
		),
	}
	if dir, err := config.GetConfigDir(); err == nil {
		if err := os.MkdirAll(dir, 0o755); err == nil {
			rlConfig.HistoryFile = filepath.Join(dir, "shell_history")
		}
	}

	rl, err := readline.NewEx(rlConfig)
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	sh := &shell{out: rl.Stdout()}

	if shellGateway != "" {
		addr, err := resolveGateway(ctx, shellGateway)
		if err != nil {
			return err
		}
		conn, err := transport.Dial(ctx, addr, transport.Options{BaudRate: baudRate})
		if err != nil {
			return err
		}
		defer conn.Close()
		if err := conn.Initialize(ctx); err != nil {
			return fmt.Errorf("initializing gateway: %w", err)
		}
		sh.gw = conn
		go sh.receive()
	}

	sh.printHelp()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			// EOF or interrupt
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			return nil
		}
		if !sh.handle(line) {
			return nil
		}
	}
}

// receive prints frames reported by the gateway until it closes
func (s *shell) receive() {
	for {
		frame, err := s.gw.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				fmt.Fprintf(s.out, "gateway: %v\n", err)
			}
			return
		}
		ui.NewPrinter(s.out).PrintSummary(ui.FrameEvent{Time: time.Now(), Direction: capture.DirectionReceived, Raw: frame})
	}
}

// handle runs one input line. It returns false when the session should end.
func (s *shell) handle(line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()
	case "quit", "exit", "q":
		return false
	case "decode", "d":
		s.decode(strings.Join(args, " "))
	case "encode", "e":
		s.encode(args, false)
	case "send":
		s.send(args)
	case "subtypes":
		s.subtypes(args)
	case "selectors":
		for _, sel := range protocol.Selectors() {
			fmt.Fprintf(s.out, "  %-16s %s\n", sel.Name, sel.Kind)
		}
	default:
		// Bare hex decodes
		if _, err := protocol.ParseHexFrame(input); err == nil || looksLikeHex(input) {
			s.decode(input)
			return true
		}
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func looksLikeHex(text string) bool {
	for _, r := range text {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F', r == ' ', r == ':':
		default:
			return false
		}
	}
	return true
}

func (s *shell) decode(text string) {
	if text == "" {
		fmt.Fprintln(s.out, "usage: decode <hex>")
		return
	}
	_ = decodeOne(s.out, text, false)
}

// encode builds a frame from "<packet-type> <sub-type> <device> <selector> <value>"
// and, when send is set, writes it to the gateway
func (s *shell) encode(args []string, send bool) {
	if len(args) != 5 {
		fmt.Fprintln(s.out, "usage: encode <packet-type> <sub-type> <device> <selector> <value>")
		return
	}
	req := encodeRequest{
		PacketType: args[0],
		SubType:    args[1],
		Device:     args[2],
		Selector:   args[3],
		Value:      args[4],
		Seq:        s.nextSequence(),
	}
	msg, err := req.build()
	if err != nil {
		fmt.Fprintf(s.out, "%s %v\n", ui.FailureMarker, err)
		return
	}
	frame := msg.Encode()
	fmt.Fprintf(s.out, "%X\n", frame)
	if send {
		s.write(frame)
	}
}

// send writes a hex frame, or encodes and writes when given encode arguments
func (s *shell) send(args []string) {
	if s.gw == nil {
		fmt.Fprintln(s.out, "not connected: start the shell with --gateway")
		return
	}
	if len(args) == 5 {
		s.encode(args, true)
		return
	}
	f, err := protocol.ParseHexFrame(strings.Join(args, " "))
	if err != nil {
		fmt.Fprintf(s.out, "%s %v\n", ui.FailureMarker, err)
		return
	}
	s.write(f.Bytes())
}

func (s *shell) nextSequence() byte {
	if s.gw != nil {
		return s.gw.NextSequence()
	}
	return s.seq.Next()
}

func (s *shell) write(frame []byte) {
	if err := s.gw.WriteFrame(frame); err != nil {
		fmt.Fprintf(s.out, "%s %v\n", ui.FailureMarker, err)
		return
	}
	ui.NewPrinter(s.out).PrintSummary(ui.FrameEvent{Time: time.Now(), Direction: capture.DirectionSent, Raw: frame})
}

func (s *shell) subtypes(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "usage: subtypes <packet-type>")
		return
	}
	pt, err := protocol.ParsePacketTypeName(args[0])
	if err == nil {
		var codec protocol.Codec
		if codec, err = protocol.CodecFor(pt); err == nil {
			for _, st := range codec.SubTypes() {
				fmt.Fprintf(s.out, "  %-20s 0x%02X\n", st, st.Byte())
			}
			return
		}
	}
	fmt.Fprintf(s.out, "%s %v\n", ui.FailureMarker, err)
}

func (s *shell) printHelp() {
	fmt.Fprintln(s.out, `
RFXCOM shell commands:
  <hex>                                   - Decode a frame
  decode <hex>                            - Decode a frame
  encode <pt> <sub> <device> <sel> <val>  - Build a command frame
  send <hex>                              - Write a frame to the gateway
  send <pt> <sub> <device> <sel> <val>    - Build and write a command frame
  subtypes <packet-type>                  - List sub types
  selectors                               - List value selectors
  help                                    - Show this help
  quit                                    - Exit`)
}
