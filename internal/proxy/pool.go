// Package proxy manages a rotating pool of proxy endpoints with failure
// tracking and permanent blacklisting.
package proxy

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Endpoint is a single proxy endpoint. Identity is the raw connection
// string it was parsed from.
type Endpoint struct {
	Address  string
	Port     string
	Username string
	Password string

	raw string
}

// ParseEndpoint parses "host:port" or "host:port:user:pass".
func ParseEndpoint(raw string) (Endpoint, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 && len(parts) != 4 {
		return Endpoint{}, eris.Errorf("proxy: malformed endpoint %q", raw)
	}
	ep := Endpoint{Address: parts[0], Port: parts[1], raw: strings.TrimSpace(raw)}
	if len(parts) == 4 {
		ep.Username = parts[2]
		ep.Password = parts[3]
	}
	if ep.Address == "" || ep.Port == "" {
		return Endpoint{}, eris.Errorf("proxy: malformed endpoint %q", raw)
	}
	return ep, nil
}

// String returns the raw connection string the endpoint was parsed from.
func (e Endpoint) String() string { return e.raw }

// URL returns the endpoint as an *url.URL suitable for http.ProxyURL.
func (e Endpoint) URL() *url.URL {
	u := &url.URL{Scheme: "http", Host: fmt.Sprintf("%s:%s", e.Address, e.Port)}
	if e.Username != "" {
		u.User = url.UserPassword(e.Username, e.Password)
	}
	return u
}

// LoadFile reads endpoints from a file, one per line. Blank lines and
// lines starting with '#' are skipped; malformed lines are logged and
// skipped, never fatal.
func LoadFile(path string) ([]Endpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "proxy: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	var endpoints []Endpoint
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ep, err := ParseEndpoint(line)
		if err != nil {
			zap.L().Warn("proxy: skipping malformed endpoint", zap.String("line", line))
			continue
		}
		endpoints = append(endpoints, ep)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "proxy: read %s", path)
	}
	zap.L().Info("proxy: loaded endpoints", zap.Int("count", len(endpoints)))
	return endpoints, nil
}

// Option configures a Pool.
type Option func(*Pool)

// WithRotationInterval sets the number of consecutive successes before the
// cursor advances on its own.
func WithRotationInterval(n int) Option {
	return func(p *Pool) { p.rotationInterval = n }
}

// WithBlacklistThreshold sets the failure count at which an endpoint is
// permanently excluded.
func WithBlacklistThreshold(n int) Option {
	return func(p *Pool) { p.blacklistThreshold = n }
}

// Pool rotates through proxy endpoints, tracking a success streak and
// per-endpoint failure counts. All counters are mutex-guarded; they are
// the only state shared if multiple orchestrators ever run concurrently.
type Pool struct {
	mu sync.Mutex

	endpoints []Endpoint
	failures  map[string]int
	cursor    int
	streak    int

	rotationInterval   int
	blacklistThreshold int
}

// NewPool creates a Pool over the given endpoints.
func NewPool(endpoints []Endpoint, opts ...Option) *Pool {
	p := &Pool{
		endpoints:          endpoints,
		failures:           make(map[string]int),
		rotationInterval:   4,
		blacklistThreshold: 5,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Size returns the number of configured endpoints, blacklisted or not.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.endpoints)
}

// Next returns the endpoint to use for the next attempt. The cursor
// advances when forceRotate is set (caller saw a failure) or after
// rotationInterval consecutive successes. Blacklisted endpoints are
// skipped; if every endpoint is blacklisted, or the pool is empty, ok is
// false and the caller proceeds unproxied.
func (p *Pool) Next(forceRotate bool) (Endpoint, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.endpoints) == 0 {
		return Endpoint{}, false
	}

	if forceRotate || p.streak >= p.rotationInterval {
		p.cursor = (p.cursor + 1) % len(p.endpoints)
		if !forceRotate {
			zap.L().Debug("proxy: rotating after success streak",
				zap.Int("streak", p.streak))
		}
		p.streak = 0
	}

	for attempts := 0; attempts < len(p.endpoints); attempts++ {
		ep := p.endpoints[p.cursor]
		if p.failures[ep.String()] < p.blacklistThreshold {
			return ep, true
		}
		p.cursor = (p.cursor + 1) % len(p.endpoints)
	}

	return Endpoint{}, false
}

// ReportSuccess extends the current endpoint's success streak.
func (p *Pool) ReportSuccess() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.streak++
}

// ReportFailure increments the endpoint's failure count and resets the
// streak. Once the count reaches the blacklist threshold the endpoint is
// excluded for the remainder of the process; there is no unblacklisting.
func (p *Pool) ReportFailure(ep Endpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failures[ep.String()]++
	if p.failures[ep.String()] == p.blacklistThreshold {
		zap.L().Warn("proxy: endpoint blacklisted",
			zap.String("endpoint", ep.Address),
			zap.Int("failures", p.failures[ep.String()]))
	}
	p.streak = 0
}
