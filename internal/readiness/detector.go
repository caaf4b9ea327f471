package readiness

import (
	"context"
	"net"
	"time"
)

// Detector is a strategy that determines if a forwarded endpoint accepts traffic.
// It must be safe for concurrent use.
type Detector interface {
	// Ready returns true if the endpoint is detected as reachable.
	// A non-nil error is fatal and aborts polling.
	Ready(ctx context.Context) (bool, error)
	// Describe returns a human-readable description of the detection method.
	Describe() string
}

// TCPDetector reports ready once a TCP connection to Addr succeeds.
type TCPDetector struct {
	Addr        string
	DialTimeout time.Duration
}

func (d TCPDetector) Ready(ctx context.Context) (bool, error) {
	timeout := d.DialTimeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", d.Addr)
	if err != nil {
		// refused or unreachable means "not yet"
		return false, nil
	}
	_ = conn.Close()
	return true, nil
}

func (d TCPDetector) Describe() string { return "tcp:" + d.Addr }
