package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/rfxcom/internal/logging"
)

const (
	// ServiceType is the mDNS service type announced by gateways and bridges
	ServiceType = "_rfxcom._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for discovery
	DefaultScanTimeout = 5 * time.Second
)

// Scanner handles mDNS discovery
type Scanner struct {
	// Timeout is the maximum time to wait for answers
	Timeout time.Duration

	// Role restricts results to one role when non-empty
	Role string
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// Browse collects every service that answers before the timeout
func (s *Scanner) Browse(ctx context.Context) ([]*Gateway, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var (
		mu       sync.Mutex
		gateways []*Gateway
		seen     = make(map[string]bool)
		done     = make(chan struct{})
	)

	go func() {
		defer close(done)
		for entry := range entries {
			gw := s.parseServiceEntry(entry)
			if gw == nil || seen[gw.Name] {
				continue
			}
			seen[gw.Name] = true
			logging.Debug("mDNS service found", zap.String("service", gw.String()))
			mu.Lock()
			gateways = append(gateways, gw)
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	// The resolver closes entries once the context ends
	select {
	case <-done:
	case <-time.After(time.Second):
	}

	mu.Lock()
	defer mu.Unlock()
	return append([]*Gateway(nil), gateways...), nil
}

// WaitFor waits for a service by instance name
func (s *Scanner) WaitFor(ctx context.Context, name string) (*Gateway, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan *Gateway, 1)

	go func() {
		for entry := range entries {
			gw := s.parseServiceEntry(entry)
			if gw != nil && gw.Name == name {
				select {
				case found <- gw:
				default:
				}
				cancel()
				return
			}
		}
	}()

	if err := resolver.Lookup(ctx, name, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to look up mDNS service: %w", err)
	}

	select {
	case gw := <-found:
		return gw, nil
	case <-ctx.Done():
		select {
		case gw := <-found:
			return gw, nil
		default:
		}
		return nil, fmt.Errorf("service %q not found within timeout", name)
	}
}

// parseServiceEntry converts a zeroconf service entry to a Gateway.
// Returns nil if the entry has no usable address or the wrong role.
func (s *Scanner) parseServiceEntry(entry *zeroconf.ServiceEntry) *Gateway {
	if entry == nil || entry.Instance == "" || entry.Port == 0 {
		return nil
	}

	// Prefer IPv4
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	gw := &Gateway{
		Name:         entry.Instance,
		Host:         entry.HostName,
		IP:           ip,
		Port:         entry.Port,
		Metadata:     parseTXT(entry.Text),
		DiscoveredAt: time.Now(),
	}
	if s.Role != "" && gw.Role() != s.Role {
		return nil
	}
	return gw
}

// parseTXT splits "key=value" TXT records. Keys without a value map to "".
func parseTXT(records []string) map[string]string {
	metadata := make(map[string]string, len(records))
	for _, txt := range records {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}
	return metadata
}

// Advertisement is a running mDNS announcement
type Advertisement struct {
	server *zeroconf.Server
	once   sync.Once
}

// Advertise announces a service on every interface until Shutdown.
// metadata becomes the TXT record.
func Advertise(name string, port int, metadata map[string]string) (*Advertisement, error) {
	if name == "" {
		return nil, fmt.Errorf("mDNS instance name is empty")
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid mDNS port %d", port)
	}

	server, err := zeroconf.Register(name, ServiceType, ServiceDomain, port, formatTXT(metadata), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logging.Info("Advertising over mDNS",
		zap.String("instance", name),
		zap.String("service", ServiceType),
		zap.Int("port", port),
	)
	return &Advertisement{server: server}, nil
}

// Shutdown withdraws the announcement. Safe to call more than once.
func (a *Advertisement) Shutdown() {
	a.once.Do(a.server.Shutdown)
}

// formatTXT renders metadata as sorted key=value records
func formatTXT(metadata map[string]string) []string {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	records := make([]string, 0, len(keys))
	for _, k := range keys {
		records = append(records, k+"="+metadata[k])
	}
	return records
}
