//go:build ignore

// Analyze-capture summarizes a CBOR capture file and dumps the frames that
// did not decode, grouped by packet type, to help add new packet types.
//
//	go run tools/analyze-capture.go captures/capture-20250101-120000.cbor
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/muurk/rfxcom/internal/capture"
	"github.com/muurk/rfxcom/internal/protocol"
)

type packetStats struct {
	total    int
	failed   int
	subTypes map[byte]int
	lengths  map[int]int
	samples  [][]byte
}

const maxSamples = 5

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: analyze-capture <capture.cbor>")
		os.Exit(1)
	}

	filename := os.Args[1]
	reader, err := capture.OpenReader(filename, capture.Filter{})
	if err != nil {
		fmt.Printf("Error opening capture: %v\n", err)
		os.Exit(1)
	}
	defer reader.Close()

	stats := make(map[byte]*packetStats)
	var records, sent int
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fmt.Printf("Error reading record %d: %v\n", records+1, err)
			os.Exit(1)
		}
		records++
		if rec.Direction == capture.DirectionSent {
			sent++
		}
		if len(rec.Frame) < protocol.HeaderSize {
			continue
		}

		pt := rec.Frame[1]
		s := stats[pt]
		if s == nil {
			s = &packetStats{subTypes: make(map[byte]int), lengths: make(map[int]int)}
			stats[pt] = s
		}
		s.total++
		s.subTypes[rec.Frame[2]]++
		s.lengths[len(rec.Frame)]++

		if _, err := protocol.Decode(rec.Frame); err != nil {
			s.failed++
			if len(s.samples) < maxSamples {
				s.samples = append(s.samples, rec.Frame)
			}
		}
	}

	fmt.Printf("=== RFXCOM Capture Analyzer ===\n")
	fmt.Printf("File: %s\n", filename)
	fmt.Printf("Records: %d (%d sent)\n\n", records, sent)

	types := make([]int, 0, len(stats))
	for pt := range stats {
		types = append(types, int(pt))
	}
	sort.Ints(types)

	for _, pt := range types {
		s := stats[byte(pt)]
		fmt.Printf("%-24s 0x%02X  frames: %-6d failed: %d\n", protocol.PacketType(pt), pt, s.total, s.failed)
		for st, n := range s.subTypes {
			fmt.Printf("    sub type 0x%02X: %d\n", st, n)
		}
		for l, n := range s.lengths {
			fmt.Printf("    %d byte frames: %d\n", l, n)
		}
		for _, frame := range s.samples {
			fmt.Println("    sample:")
			hexDump(frame)
		}
		fmt.Println()
	}
}

// hexDump prints frame eight bytes per line with offsets
func hexDump(frame []byte) {
	for i, b := range frame {
		if i%8 == 0 {
			if i > 0 {
				fmt.Println()
			}
			fmt.Printf("      [%02d] ", i)
		}
		fmt.Printf("%02X ", b)
	}
	fmt.Println()
}
