// Package ui provides terminal UI components for the rfxcom CLI.
//
// This package uses Bubble Tea and Lipgloss to render terminal output. Most
// commands follow a "run once and exit" pattern and print a styled box
// through a Printer:
//
//   - Header: banner showing the operation and its parameters
//   - Result: success, failure or warning box with ordered details
//   - FrameSummary: one-line rendering of a decoded frame
//
// The monitor is the one interactive screen. MonitorModel reads FrameEvents
// from a channel fed by a live gateway connection or a capture file and shows
// them in a scrolling bubbles table:
//
//	events := make(chan ui.FrameEvent)
//	go feed(events) // closes events at end of input
//	final, err := ui.RunMonitor(ui.NewMonitorModel("tcp://gw:10001", events))
//
// When stdout is not a terminal, commands print FrameSummary lines instead.
package ui
