package monitor

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
)

// blockedPrefixes are never probed unless private targets are allowed.
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("::1/128"),
}

// metadataHosts are cloud metadata endpoints, blocked unconditionally.
var metadataHosts = []string{
	"169.254.169.254",
	"169.254.170.2",
	"metadata.google.internal",
	"fd00:ec2::254",
}

// URLGuard rejects probe targets that resolve to internal addresses.
type URLGuard struct {
	allowPrivate bool
	lookup       func(ctx context.Context, host string) ([]netip.Addr, error)
}

// NewURLGuard creates a guard. allowPrivate permits RFC1918 and loopback
// targets but metadata endpoints stay blocked.
func NewURLGuard(allowPrivate bool) *URLGuard {
	return &URLGuard{
		allowPrivate: allowPrivate,
		lookup: func(ctx context.Context, host string) ([]netip.Addr, error) {
			return net.DefaultResolver.LookupNetIP(ctx, "ip", host)
		},
	}
}

// ValidateURL checks the scheme and every address the host resolves to.
func (g *URLGuard) ValidateURL(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("only http and https schemes are allowed")
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("URL must have a hostname")
	}
	if isMetadataHost(host) {
		return fmt.Errorf("access to this hostname is not allowed")
	}
	if !g.allowPrivate && (host == "localhost" || strings.HasSuffix(host, ".localhost") || host == "localhost.localdomain") {
		return fmt.Errorf("access to this hostname is not allowed")
	}

	var addrs []netip.Addr
	if ip, err := netip.ParseAddr(host); err == nil {
		addrs = []netip.Addr{ip}
	} else {
		addrs, err = g.lookup(ctx, host)
		if err != nil {
			return fmt.Errorf("failed to resolve hostname: %w", err)
		}
	}
	if len(addrs) == 0 {
		return fmt.Errorf("hostname does not resolve to any IP address")
	}

	for _, addr := range addrs {
		if err := g.checkAddr(addr); err != nil {
			return fmt.Errorf("IP address %s is not allowed: %w", addr, err)
		}
	}
	return nil
}

// Control is a net.Dialer Control hook that re-checks the address actually
// dialed, closing the gap between validation and connection.
func (g *URLGuard) Control(network, address string, _ syscall.RawConn) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("unexpected dial address %q: %w", address, err)
	}
	return g.checkAddr(ap.Addr())
}

func (g *URLGuard) checkAddr(addr netip.Addr) error {
	addr = addr.Unmap()
	if isMetadataHost(addr.String()) {
		return fmt.Errorf("access to metadata endpoints is not allowed")
	}
	if g.allowPrivate {
		return nil
	}
	if addr.IsUnspecified() {
		return fmt.Errorf("access to unspecified addresses is not allowed")
	}
	if addr.IsLoopback() {
		return fmt.Errorf("access to loopback addresses is not allowed")
	}
	if addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() {
		return fmt.Errorf("access to link-local addresses is not allowed")
	}
	if addr.IsMulticast() {
		return fmt.Errorf("access to multicast addresses is not allowed")
	}
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return fmt.Errorf("access to private IP addresses is not allowed")
		}
	}
	return nil
}

func isMetadataHost(host string) bool {
	for _, blocked := range metadataHosts {
		if host == blocked || strings.HasSuffix(host, "."+blocked) {
			return true
		}
	}
	return false
}
