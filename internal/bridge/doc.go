// Package bridge connects an RFXCOM gateway to WebSocket subscribers.
//
// The bridge reads frames from the gateway, decodes them with the protocol
// package, and publishes JSON events. Devices listed in the configuration
// produce one "state" event per bound item; any other device produces a
// single "message" event carrying every selector its packet type supports.
// Subscribers send commands back over the same connection.
//
// # Routes
//
//	GET  /ws             WebSocket subscriber endpoint
//	GET  /healthz        liveness and counters
//	GET  /metrics        Prometheus metrics
//	POST /api/decode     decode a hex frame from the request body
//	GET  /api/items      last state of every bound item
//	GET  /api/items/{i}  last state of one item
//
// # Commands
//
// A command addresses either a bound item or a device by name:
//
//	{"id": "1", "item": "HallLight", "value": "ON"}
//	{"device": "19088743.10", "packet_type": "LIGHTING2", "sub_type": "AC",
//	 "selector": "DimmingLevel", "value": 40}
//
// Each command is written to the gateway once. The reply is a "result" event
// with the frame that was sent or the error kind that stopped it.
//
// # Failure Handling
//
// Frames that fail to decode are counted and logged. A failed gateway read
// stops the bridge; restarting is left to the service manager.
package bridge
