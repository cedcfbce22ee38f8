// Package logging provides structured logging for the rfxcom tools.
//
// This package wraps a global zap logger with convenience functions for the
// logging patterns the bridge and CLI share. The protocol package never
// logs; callers log codec errors at their own boundary.
//
// # Log Levels
//
//   - Debug: Frame hex dumps, subscriber traffic
//   - Info: Connections, HTTP requests, lifecycle events
//   - Warn: Frames that failed to decode, dropped subscribers
//   - Error: Transport failures, startup errors
//
// # Configuration
//
// Logging is silent unless a level is given or RFXCOM_LOG_LEVEL is set:
//
//	if err := logging.Initialize(cfg.LogLevel); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// RFXCOM_LOG_FORMAT=json switches from the console encoder to JSON lines.
//
// # Specialized Logging
//
//	logging.LogConnection(addr, "gateway_connected")
//	logging.LogFrame("received", frame)
//	logging.LogDecodeFailure(frame, err)
//	logging.LogWebSocketMessage(subscriberID, "sent", websocket.TextMessage, payload)
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging
