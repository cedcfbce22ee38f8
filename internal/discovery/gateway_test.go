package discovery

import "testing"

func TestGateway_String(t *testing.T) {
	gw := &Gateway{
		Name:     "rfxcom-kitchen",
		Host:     "pi.local.",
		IP:       "192.168.4.16",
		Port:     8080,
		Metadata: map[string]string{"role": "bridge"},
	}

	expected := "bridge rfxcom-kitchen (pi.local.) at 192.168.4.16:8080"
	if gw.String() != expected {
		t.Errorf("Gateway.String() = %v, want %v", gw.String(), expected)
	}
}

func TestGateway_Addresses(t *testing.T) {
	tests := []struct {
		name  string
		gw    *Gateway
		addr  string
		wsURL string
	}{
		{
			name:  "ipv4",
			gw:    &Gateway{IP: "192.168.4.16", Port: 10001},
			addr:  "tcp://192.168.4.16:10001",
			wsURL: "ws://192.168.4.16:10001/ws",
		},
		{
			name:  "ipv6",
			gw:    &Gateway{IP: "fe80::1", Port: 8080},
			addr:  "tcp://[fe80::1]:8080",
			wsURL: "ws://[fe80::1]:8080/ws",
		},
		{
			name:  "tls bridge",
			gw:    &Gateway{IP: "10.0.0.5", Port: 8443, Metadata: map[string]string{"role": "bridge", "tls": "1"}},
			addr:  "tcp://10.0.0.5:8443",
			wsURL: "wss://10.0.0.5:8443/ws",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.gw.Address(); got != tt.addr {
				t.Errorf("Gateway.Address() = %v, want %v", got, tt.addr)
			}
			if got := tt.gw.WebSocketURL(); got != tt.wsURL {
				t.Errorf("Gateway.WebSocketURL() = %v, want %v", got, tt.wsURL)
			}
		})
	}
}

func TestGateway_GetMetadata_NilMap(t *testing.T) {
	gw := &Gateway{}
	if got := gw.GetMetadata("anything"); got != "" {
		t.Errorf("Gateway.GetMetadata() with nil map = %v, want empty string", got)
	}
	if gw.Role() != RoleGateway {
		t.Errorf("Gateway.Role() = %v, want %v", gw.Role(), RoleGateway)
	}
}
