package resolver

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"

	"callrelay/internal/logger"
)

// LookupFunc resolves a hostname to addresses. It matches the signature of
// net.Resolver.LookupHost.
type LookupFunc func(ctx context.Context, host string) ([]string, error)

// Resolver pins hostnames to the first address they resolved to. A host is
// looked up once; later calls reuse the cached address, so a target URL
// stays stable for the lifetime of the process.
type Resolver struct {
	mu     sync.RWMutex
	cache  map[string]string
	skip   bool
	lookup LookupFunc
	logger logger.Logger
}

func New(skip bool, log logger.Logger) *Resolver {
	return &Resolver{
		cache:  make(map[string]string),
		skip:   skip,
		lookup: net.DefaultResolver.LookupHost,
		logger: log,
	}
}

// Resolve substitutes the URL's hostname with a cached IP address. It never
// fails: any parse or lookup problem leaves the URL as it was, with a log
// line saying why.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) string {
	if r.skip {
		return rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		r.logger.Warnw("Leaving target URL unresolved", "url", rawURL, "error", err)
		return rawURL
	}

	host := u.Hostname()
	if host == "" || net.ParseIP(host) != nil {
		return rawURL
	}

	addr, err := r.addressFor(ctx, host)
	if err != nil {
		r.logger.Warnw("DNS lookup failed, using hostname", "host", host, "error", err)
		return rawURL
	}

	switch port := u.Port(); {
	case port != "":
		u.Host = net.JoinHostPort(addr, port)
	case strings.Contains(addr, ":"):
		u.Host = "[" + addr + "]"
	default:
		u.Host = addr
	}
	return u.String()
}

func (r *Resolver) addressFor(ctx context.Context, host string) (string, error) {
	r.mu.RLock()
	addr, ok := r.cache[host]
	r.mu.RUnlock()
	if ok {
		return addr, nil
	}

	addrs, err := r.lookup(ctx, host)
	if err != nil {
		return "", err
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("no addresses for %s", host)
	}

	r.mu.Lock()
	r.cache[host] = addrs[0]
	r.mu.Unlock()

	r.logger.Infow("Resolved target host", "host", host, "address", addrs[0])
	return addrs[0], nil
}
