package probe

import (
	"net"
	"strconv"
	"testing"
	"time"
)

func listenerPort(t *testing.T) (net.Listener, uint16) {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	_, portStr, err := net.SplitHostPort(l.Addr().String())
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("atoi: %v", err)
	}

	return l, uint16(port)
}

func TestIsConnectableDisabled(t *testing.T) {
	p := New(false, time.Minute)

	l, port := listenerPort(t)
	defer l.Close()

	if p.IsConnectable(net.ParseIP("127.0.0.1"), port) {
		t.Fatalf("expected a disabled prober to always report not connectable")
	}
}

func TestIsConnectableOpenPort(t *testing.T) {
	p := New(true, time.Minute)

	l, port := listenerPort(t)
	defer l.Close()

	if !p.IsConnectable(net.ParseIP("127.0.0.1"), port) {
		t.Fatalf("expected an open listening port to be reported connectable")
	}
}

func TestIsConnectableClosedPort(t *testing.T) {
	p := New(true, time.Minute)

	l, port := listenerPort(t)
	l.Close()

	if p.IsConnectable(net.ParseIP("127.0.0.1"), port) {
		t.Fatalf("expected a closed port to be reported not connectable")
	}
}

func TestIsConnectableCachesWithinTTL(t *testing.T) {
	p := New(true, time.Minute)

	l, port := listenerPort(t)

	if !p.IsConnectable(net.ParseIP("127.0.0.1"), port) {
		t.Fatalf("expected initial probe to succeed while the listener is open")
	}

	l.Close()

	if !p.IsConnectable(net.ParseIP("127.0.0.1"), port) {
		t.Fatalf("expected cached result to still report connectable within the ttl")
	}
}

func TestIsConnectableRedialsAfterTTLExpires(t *testing.T) {
	p := New(true, time.Millisecond)

	l, port := listenerPort(t)

	if !p.IsConnectable(net.ParseIP("127.0.0.1"), port) {
		t.Fatalf("expected initial probe to succeed while the listener is open")
	}

	l.Close()
	time.Sleep(5 * time.Millisecond)

	if p.IsConnectable(net.ParseIP("127.0.0.1"), port) {
		t.Fatalf("expected probe to re-dial after the ttl expires and find the port closed")
	}
}
