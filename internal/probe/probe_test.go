package probe

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidIP(t *testing.T) {
	valid := []string{"0.0.0.0", "255.255.255.255", "::1", "  10.1.1.200  ", "fe80::1"}
	for _, s := range valid {
		assert.True(t, IsValidIP(s), "should accept %q", s)
	}

	invalid := []string{"", "   ", "nvr.local", "192.168.1", "192.168.1.1:80", "10.0.0.0/24", "999.1.1.1"}
	for _, s := range invalid {
		assert.False(t, IsValidIP(s), "should reject %q", s)
	}
}

func TestRoutableFromErr(t *testing.T) {
	assert.False(t, routableFromErr(errors.New("dial tcp 10.9.9.9:80: connect: network is unreachable")))
	assert.False(t, routableFromErr(errors.New("dial tcp 10.9.9.9:80: connect: no route to host")))
	assert.False(t, routableFromErr(errors.New("connect: Host is down")))
	assert.False(t, routableFromErr(errors.New("some other os failure")))

	var timeoutErr net.Error = &net.OpError{Op: "dial", Err: &timeoutOpErr{}}
	assert.True(t, routableFromErr(timeoutErr))
	assert.True(t, routableFromErr(context.DeadlineExceeded))
}

type timeoutOpErr struct{}

func (*timeoutOpErr) Error() string   { return "i/o timeout" }
func (*timeoutOpErr) Timeout() bool   { return true }
func (*timeoutOpErr) Temporary() bool { return true }

// listen opens a loopback listener that accepts and immediately closes
// connections, returning its port.
func listen(t *testing.T) (int, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	port := ln.Addr().(*net.TCPAddr).Port
	return port, func() { ln.Close() }
}

// closedPort grabs a port and releases it so nothing listens there.
func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func TestMany(t *testing.T) {
	openPort, stop := listen(t)
	defer stop()

	cfg := Config{
		Ports:          []int{openPort},
		Timeout:        500 * time.Millisecond,
		MaxConcurrency: 4,
	}

	targets := []Target{
		{Channel: 1, IP: "127.0.0.1"},
		{Channel: 2, IP: ""},
		{Channel: 3, IP: "not-an-ip"},
	}

	results := Many(context.Background(), targets, cfg)
	require.Len(t, results, 3)
	assert.Equal(t, StatusOnline, results[1])
	assert.Equal(t, StatusUnknown, results[2])
	assert.Equal(t, StatusUnknown, results[3])
}

func TestMany_Offline(t *testing.T) {
	cfg := Config{
		Ports:          []int{closedPort(t), closedPort(t)},
		Timeout:        500 * time.Millisecond,
		MaxConcurrency: 2,
	}

	// The routability gate hits 127.0.0.1:80; refused or open both pass it.
	results := Many(context.Background(), []Target{{Channel: 7, IP: "127.0.0.1"}}, cfg)
	assert.Equal(t, StatusOffline, results[7])
}

func TestMany_PortLadder(t *testing.T) {
	openPort, stop := listen(t)
	defer stop()

	// First rung closed, second open: camera is still online.
	cfg := Config{
		Ports:          []int{closedPort(t), openPort},
		Timeout:        500 * time.Millisecond,
		MaxConcurrency: 1,
	}
	results := Many(context.Background(), []Target{{Channel: 1, IP: "127.0.0.1"}}, cfg)
	assert.Equal(t, StatusOnline, results[1])
}

func TestMany_AllInvalidSkipsGate(t *testing.T) {
	results := Many(context.Background(), []Target{
		{Channel: 1, IP: ""},
		{Channel: 2, IP: "camera.local"},
	}, DefaultConfig())
	assert.Equal(t, map[int]string{1: StatusUnknown, 2: StatusUnknown}, results)
}

func TestMany_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	openPort, stop := listen(t)
	defer stop()

	cfg := Config{Ports: []int{openPort}, Timeout: 200 * time.Millisecond, MaxConcurrency: 1}
	results := Many(ctx, []Target{{Channel: 1, IP: "127.0.0.1"}, {Channel: 2, IP: "127.0.0.1"}}, cfg)

	// Every input channel appears even when the run is cancelled mid-flight.
	require.Len(t, results, 2)
	for ch, v := range results {
		assert.Contains(t, []string{StatusOnline, StatusOffline, StatusUnknown}, v, "channel %d", ch)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, []int{554, 80, 37777}, cfg.Ports)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.Equal(t, 50, cfg.MaxConcurrency)

	filled := Config{}.withDefaults()
	assert.Equal(t, cfg, filled)
}
