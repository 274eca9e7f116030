package tor

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
)

// startMockProxy serves one connection with handle and returns its address.
func startMockProxy(t *testing.T, handle func(net.Conn)) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to start mock proxy: %v", err)
	}
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}()
	return listener.Addr().String()
}

// closedAddress returns an address nothing listens on.
func closedAddress(t *testing.T) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatal(err)
	}
	addr := listener.Addr().String()
	_ = listener.Close()
	return addr
}

// TestNewClient tests client construction and address validation.
func TestNewClient(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		address string
		valid   bool
	}{
		{"127.0.0.1:9050", true},
		{"localhost:9150", true},
		{"[::1]:9050", true},
		{"127.0.0.1", false},
		{":9050", false},
		{"127.0.0.1:0", false},
		{"127.0.0.1:65536", false},
		{"127.0.0.1:port", false},
		{"", false},
	}

	for _, tc := range testCases {
		t.Run(tc.address, func(t *testing.T) {
			t.Parallel()
			client, err := NewClient(tc.address)
			if tc.valid {
				if err != nil {
					t.Fatalf("NewClient(%q) error: %v", tc.address, err)
				}
				if client.ProxyAddress() != tc.address {
					t.Errorf("ProxyAddress() = %q", client.ProxyAddress())
				}
				return
			}
			if !errors.Is(err, ErrInvalidProxyAddress) {
				t.Errorf("NewClient(%q) error = %v, expected ErrInvalidProxyAddress", tc.address, err)
			}
		})
	}
}

// TestTransport tests the proxied transport settings.
func TestTransport(t *testing.T) {
	t.Parallel()

	client, err := NewClient(DefaultProxyAddress)
	if err != nil {
		t.Fatal(err)
	}
	tr := client.Transport()

	if !tr.DisableCompression {
		t.Error("expected compression to be disabled")
	}
	if tr.TLSClientConfig == nil || !tr.TLSClientConfig.InsecureSkipVerify {
		t.Error("expected TLS verification to be disabled for onion services")
	}
	if tr.DialContext == nil {
		t.Error("expected a proxied DialContext")
	}
	if tr.MaxIdleConnsPerHost != 2 {
		t.Errorf("MaxIdleConnsPerHost = %d, expected 2", tr.MaxIdleConnsPerHost)
	}
}

// TestCheckConnection tests the SOCKS5 probe against mock servers.
func TestCheckConnection(t *testing.T) {
	t.Parallel()

	t.Run("cannot connect", func(t *testing.T) {
		t.Parallel()
		client, err := NewClient(closedAddress(t))
		if err != nil {
			t.Fatal(err)
		}
		if got := client.CheckConnection(context.Background()); got != ProxyStatusCannotConnect {
			t.Errorf("got %v, expected %v", got, ProxyStatusCannotConnect)
		}
	})

	t.Run("wrong type for http server", func(t *testing.T) {
		t.Parallel()
		addr := startMockProxy(t, func(conn net.Conn) {
			buf := make([]byte, 3)
			_, _ = io.ReadFull(conn, buf)
			_, _ = conn.Write([]byte("HTTP/1.1 400 Bad Request\r\n\r\n"))
		})
		client, err := NewClient(addr)
		if err != nil {
			t.Fatal(err)
		}
		if got := client.CheckConnection(context.Background()); got != ProxyStatusWrongType {
			t.Errorf("got %v, expected %v", got, ProxyStatusWrongType)
		}
	})

	t.Run("wrong type when auth is required", func(t *testing.T) {
		t.Parallel()
		addr := startMockProxy(t, func(conn net.Conn) {
			buf := make([]byte, 3)
			_, _ = io.ReadFull(conn, buf)
			_, _ = conn.Write([]byte{0x05, 0xFF})
		})
		client, err := NewClient(addr)
		if err != nil {
			t.Fatal(err)
		}
		if got := client.CheckConnection(context.Background()); got != ProxyStatusWrongType {
			t.Errorf("got %v, expected %v", got, ProxyStatusWrongType)
		}
	})

	t.Run("ok when connect is answered", func(t *testing.T) {
		t.Parallel()
		addr := startMockProxy(t, func(conn net.Conn) {
			buf := make([]byte, 3)
			_, _ = io.ReadFull(conn, buf)
			_, _ = conn.Write([]byte{0x05, 0x00})
			req := make([]byte, 5+len(probeHost)+2)
			_, _ = io.ReadFull(conn, req)
			// host unreachable is still a valid SOCKS5 reply
			_, _ = conn.Write([]byte{0x05, 0x04, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
		})
		client, err := NewClient(addr)
		if err != nil {
			t.Fatal(err)
		}
		if got := client.CheckConnection(context.Background()); got != ProxyStatusOK {
			t.Errorf("got %v, expected %v", got, ProxyStatusOK)
		}
	})
}

// TestDialContext tests how dial failures are reported.
func TestDialContext(t *testing.T) {
	t.Parallel()

	t.Run("proxy unreachable", func(t *testing.T) {
		t.Parallel()
		client, err := NewClient(closedAddress(t))
		if err != nil {
			t.Fatal(err)
		}
		_, err = client.DialContext(context.Background(), "tcp", "example.onion:80")
		if !errors.Is(err, ErrProxyCannotConnect) {
			t.Errorf("error = %v, expected ErrProxyCannotConnect", err)
		}
	})

	t.Run("proxy refuses the stream", func(t *testing.T) {
		t.Parallel()
		addr := startMockProxy(t, func(conn net.Conn) {
			buf := make([]byte, 3)
			_, _ = io.ReadFull(conn, buf)
			_, _ = conn.Write([]byte{0x05, 0x00})
			req := make([]byte, 512)
			_, _ = conn.Read(req)
			_, _ = conn.Write([]byte{0x05, 0x04, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
		})
		client, err := NewClient(addr)
		if err != nil {
			t.Fatal(err)
		}
		_, err = client.DialContext(context.Background(), "tcp", "example.onion:80")
		if !errors.Is(err, ErrProxyRequestFailed) {
			t.Errorf("error = %v, expected ErrProxyRequestFailed", err)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		t.Parallel()
		client, err := NewClient(closedAddress(t))
		if err != nil {
			t.Fatal(err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = client.DialContext(ctx, "tcp", "example.onion:80")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, expected context.Canceled", err)
		}
	})
}

// TestProxyStatus tests status strings and errors.
func TestProxyStatus(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		status ProxyStatus
		str    string
		err    error
	}{
		{ProxyStatusOK, "OK", nil},
		{ProxyStatusWrongType, "wrong type (not Tor)", ErrProxyNotTor},
		{ProxyStatusCannotConnect, "cannot connect", ErrProxyCannotConnect},
		{ProxyStatusTimeout, "timeout", ErrProxyTimeout},
	}

	for _, tc := range testCases {
		t.Run(tc.str, func(t *testing.T) {
			t.Parallel()
			if tc.status.String() != tc.str {
				t.Errorf("String() = %q, expected %q", tc.status.String(), tc.str)
			}
			if !errors.Is(tc.status.Err(), tc.err) {
				t.Errorf("Err() = %v, expected %v", tc.status.Err(), tc.err)
			}
		})
	}

	if ProxyStatus(99).Err() == nil {
		t.Error("expected an error for an unknown status")
	}
}
