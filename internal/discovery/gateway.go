package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Roles announced in the "role" TXT record
const (
	// RoleGateway is a network attached transceiver speaking the raw frame protocol
	RoleGateway = "gateway"
	// RoleBridge is an rfxcom bridge serving WebSocket subscribers
	RoleBridge = "bridge"
)

// Gateway represents a discovered gateway or bridge on the network
type Gateway struct {
	// Name is the mDNS instance name (e.g., "rfxcom-kitchen")
	Name string

	// Host is the mDNS hostname (e.g., "pi.local.")
	Host string

	// IP is the IPv4 address, or IPv6 when no IPv4 address was announced
	IP string

	// Port is the TCP port of the service
	Port int

	// Metadata contains the mDNS TXT record data
	// Common fields: "role=bridge", "version=1.2.0", "tls=1"
	Metadata map[string]string

	// DiscoveredAt is when the service was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the service
func (g *Gateway) String() string {
	return fmt.Sprintf("%s %s (%s) at %s:%d", g.Role(), g.Name, g.Host, g.IP, g.Port)
}

// Role returns the announced role, RoleGateway when absent
func (g *Gateway) Role() string {
	if r := g.GetMetadata("role"); r != "" {
		return r
	}
	return RoleGateway
}

// Address returns the address transport.Dial accepts for a gateway
func (g *Gateway) Address() string {
	return fmt.Sprintf("tcp://%s", g.hostPort())
}

// WebSocketURL returns the subscriber endpoint of a bridge
func (g *Gateway) WebSocketURL() string {
	scheme := "ws"
	if g.GetMetadata("tls") == "1" {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s/ws", scheme, g.hostPort())
}

func (g *Gateway) hostPort() string {
	return net.JoinHostPort(g.IP, strconv.Itoa(g.Port))
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (g *Gateway) GetMetadata(key string) string {
	if g.Metadata == nil {
		return ""
	}
	return g.Metadata[key]
}
