package monitor

import (
	"context"
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func guardWith(allowPrivate bool, addrs map[string][]string) *URLGuard {
	g := NewURLGuard(allowPrivate)
	g.lookup = func(ctx context.Context, host string) ([]netip.Addr, error) {
		raw, ok := addrs[host]
		if !ok {
			return nil, errors.New("no such host")
		}
		out := make([]netip.Addr, 0, len(raw))
		for _, r := range raw {
			out = append(out, netip.MustParseAddr(r))
		}
		return out, nil
	}
	return g
}

func TestURLGuard_ValidateURL(t *testing.T) {
	hosts := map[string][]string{
		"public.example.com":   {"93.184.216.34"},
		"internal.example.com": {"10.1.2.3"},
		"mixed.example.com":    {"93.184.216.34", "192.168.1.1"},
	}
	g := guardWith(false, hosts)
	ctx := context.Background()

	assert.NoError(t, g.ValidateURL(ctx, "https://public.example.com/health"))
	assert.NoError(t, g.ValidateURL(ctx, "http://93.184.216.34:8080/"))

	for _, bad := range []string{
		"ftp://public.example.com",
		"http://",
		"http://localhost:8080",
		"http://127.0.0.1/",
		"http://[::1]/",
		"http://169.254.169.254/latest/meta-data",
		"http://internal.example.com",
		"http://mixed.example.com",
		"http://unknown.example.com",
	} {
		assert.Error(t, g.ValidateURL(ctx, bad), bad)
	}
}

func TestURLGuard_AllowPrivate(t *testing.T) {
	g := guardWith(true, map[string][]string{"internal.example.com": {"10.1.2.3"}})
	ctx := context.Background()

	assert.NoError(t, g.ValidateURL(ctx, "http://internal.example.com"))
	assert.NoError(t, g.ValidateURL(ctx, "http://127.0.0.1:9000"))
	assert.Error(t, g.ValidateURL(ctx, "http://169.254.169.254/"))
	assert.Error(t, g.ValidateURL(ctx, "http://metadata.google.internal/"))
}

func TestURLGuard_Control(t *testing.T) {
	g := NewURLGuard(false)
	assert.Error(t, g.Control("tcp4", "10.0.0.1:80", nil))
	assert.Error(t, g.Control("tcp6", "[::ffff:127.0.0.1]:80", nil))
	assert.NoError(t, g.Control("tcp4", "93.184.216.34:443", nil))
}
