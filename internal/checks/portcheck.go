package checks

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/probewatch/probewatch/internal/models"
)

// PortExecutor probes port_check monitors. TCP opens a connection and
// measures connect time. UDP sends a probe datagram and treats an
// unanswered send as up: the protocol gives no delivery confirmation, so a
// UDP "up" only means nothing on the path refused the packet. This is an
// accepted limitation, not a bug.
type PortExecutor struct {
	validator *TargetValidator
}

// NewPortExecutor creates the executor for port_check monitors.
func NewPortExecutor(validator *TargetValidator) *PortExecutor {
	return &PortExecutor{validator: validator}
}

func (e *PortExecutor) Type() models.MonitorType {
	return models.TypePortCheck
}

func (e *PortExecutor) Execute(ctx context.Context, m *models.Monitor) Outcome {
	start := time.Now()

	host := hostFromTarget(m.Target)
	if err := e.validator.ValidateHost(host); err != nil {
		return errorOutcome(err, time.Since(start))
	}

	cfg := m.Config.Port
	if cfg == nil {
		return errorOutcome(&ValidationError{Reason: "port config missing"}, time.Since(start))
	}

	address := net.JoinHostPort(host, fmt.Sprintf("%d", cfg.Port))

	if cfg.Protocol == models.ProtocolUDP {
		return e.checkUDP(ctx, address, cfg, start)
	}
	return e.checkTCP(ctx, address, cfg, start)
}

func (e *PortExecutor) checkTCP(ctx context.Context, address string, cfg *models.PortConfig, start time.Time) Outcome {
	dialer := &net.Dialer{}

	conn, err := dialer.DialContext(ctx, "tcp", address)
	elapsed := time.Since(start)
	if err != nil {
		if deadlineExceeded(ctx, err) {
			return timeoutOutcome(elapsed, nil)
		}
		return downOutcome(&TransientNetworkError{Err: err}, elapsed, nil)
	}
	defer conn.Close()

	return Outcome{
		Status:    models.ResultUp,
		ElapsedMs: elapsed.Milliseconds(),
		Detail: map[string]interface{}{
			"port":       cfg.Port,
			"protocol":   "tcp",
			"remote_ip":  conn.RemoteAddr().String(),
			"connect_ms": elapsed.Milliseconds(),
		},
	}
}

func (e *PortExecutor) checkUDP(ctx context.Context, address string, cfg *models.PortConfig, start time.Time) Outcome {
	dialer := &net.Dialer{}

	conn, err := dialer.DialContext(ctx, "udp", address)
	if err != nil {
		elapsed := time.Since(start)
		if deadlineExceeded(ctx, err) {
			return timeoutOutcome(elapsed, nil)
		}
		return downOutcome(&TransientNetworkError{Err: err}, elapsed, nil)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := conn.Write([]byte{0}); err != nil {
		return downOutcome(&TransientNetworkError{Err: err}, time.Since(start), nil)
	}

	// A short read window surfaces ICMP port-unreachable errors the kernel
	// reports on the connected socket. Hitting the window without an error
	// counts as up: best-effort semantics.
	_ = conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err != nil {
		if netErr, ok := err.(net.Error); !ok || !netErr.Timeout() {
			return downOutcome(&TransientNetworkError{Err: err}, time.Since(start), nil)
		}
	}

	elapsed := time.Since(start)
	return Outcome{
		Status:    models.ResultUp,
		ElapsedMs: elapsed.Milliseconds(),
		Detail: map[string]interface{}{
			"port":     cfg.Port,
			"protocol": "udp",
			"note":     "udp probe sent; no delivery confirmation available",
		},
	}
}
