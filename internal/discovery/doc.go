// Package discovery finds and announces RFXCOM gateways and bridges over mDNS.
//
// Network attached transceivers and rfxcom bridges announce themselves with
// the "_rfxcom._tcp" service type. A "role" TXT record tells them apart:
// "gateway" services speak the raw frame protocol over TCP, "bridge"
// services serve WebSocket subscribers at /ws.
//
// # Usage Example
//
//	scanner := discovery.NewScanner()
//	scanner.Role = discovery.RoleGateway
//	gateways, err := scanner.Browse(ctx)
//	if err != nil {
//	    return err
//	}
//	for _, gw := range gateways {
//	    fmt.Println(gw.Name, gw.Address())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Services must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
