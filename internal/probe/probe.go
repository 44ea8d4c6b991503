// Package probe determines real camera liveness with short TCP connects.
// The NVR's own ConnectionState is advisory; a camera is only considered
// online when something on its IP accepts a connection.
package probe

import (
	"context"
	"errors"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
)

const (
	// StatusOnline means at least one probed port accepted a connection.
	StatusOnline = "online"
	// StatusOffline means every probed port failed.
	StatusOffline = "offline"
	// StatusUnknown means the camera could not be probed at all: invalid or
	// missing IP, unroutable subnet, or a cancelled run.
	StatusUnknown = "unknown"
)

const routabilityTimeout = 1500 * time.Millisecond

// Config holds the recognized probe options.
type Config struct {
	Ports          []int         `yaml:"ports"`
	Timeout        time.Duration `yaml:"-"`
	MaxConcurrency int           `yaml:"max_concurrency"`
}

func DefaultConfig() Config {
	return Config{
		Ports:          []int{554, 80, 37777},
		Timeout:        2 * time.Second,
		MaxConcurrency: 50,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if len(c.Ports) == 0 {
		c.Ports = d.Ports
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = d.MaxConcurrency
	}
	return c
}

// Target is one camera to probe, keyed by its NVR channel.
type Target struct {
	Channel int
	IP      string
}

// IsValidIP reports whether s (after trimming) is a literal IPv4/IPv6
// address. Hostnames, CIDRs and host:port strings are rejected.
func IsValidIP(s string) bool {
	return net.ParseIP(strings.TrimSpace(s)) != nil
}

// routable checks whether the subnet holding ip is reachable from this host
// at all, with a single short connect to port 80. Connection refused still
// means routable (the host exists); only hard network errors fail the gate.
// A timeout stays ambiguous and is treated as routable so one slow host
// cannot mass-tag a whole site as unknown.
func routable(ctx context.Context, ip string) bool {
	d := net.Dialer{Timeout: routabilityTimeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(strings.TrimSpace(ip), "80"))
	if err == nil {
		conn.Close()
		return true
	}
	return routableFromErr(err)
}

func routableFromErr(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// Network unreachable, no route to host, host is down and anything else
	// unrecognized all fail the gate.
	return false
}

// probeOne walks the port ladder for a single camera. First successful
// connect wins.
func probeOne(ctx context.Context, ip string, cfg Config) string {
	ip = strings.TrimSpace(ip)
	for _, port := range cfg.Ports {
		d := net.Dialer{Timeout: cfg.Timeout}
		conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(ip, strconv.Itoa(port)))
		if err == nil {
			conn.Close()
			return StatusOnline
		}
	}
	return StatusOffline
}

// Many probes every target with bounded concurrency and returns a verdict for
// every input channel. Targets without a valid IP are unknown without any
// I/O. A failed routability gate marks the whole batch unknown.
func Many(ctx context.Context, targets []Target, cfg Config) map[int]string {
	cfg = cfg.withDefaults()
	results := make(map[int]string, len(targets))

	var firstIP string
	for _, tgt := range targets {
		if !IsValidIP(tgt.IP) {
			results[tgt.Channel] = StatusUnknown
		} else if firstIP == "" {
			firstIP = tgt.IP
		}
	}

	if firstIP != "" && !routable(ctx, firstIP) {
		log.Printf("probe: subnet not routable from this host (tested %s), all cameras unknown", strings.TrimSpace(firstIP))
		for _, tgt := range targets {
			results[tgt.Channel] = StatusUnknown
		}
		return results
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, cfg.MaxConcurrency)
	)
	for _, tgt := range targets {
		if _, done := results[tgt.Channel]; done {
			continue
		}
		wg.Add(1)
		go func(tgt Target) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			verdict := probeOne(ctx, tgt.IP, cfg)
			mu.Lock()
			results[tgt.Channel] = verdict
			mu.Unlock()
		}(tgt)
	}
	wg.Wait()

	// Cancelled goroutines leave gaps; every input channel must appear.
	online, offline, unknown := 0, 0, 0
	for _, tgt := range targets {
		if _, ok := results[tgt.Channel]; !ok {
			results[tgt.Channel] = StatusUnknown
		}
		switch results[tgt.Channel] {
		case StatusOnline:
			online++
		case StatusOffline:
			offline++
		default:
			unknown++
		}
	}
	log.Printf("probe: %d cameras, %d online, %d offline, %d unknown", len(results), online, offline, unknown)
	return results
}
