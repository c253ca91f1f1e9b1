package checks

import (
	"context"
	"time"

	"github.com/go-ping/ping"

	"github.com/probewatch/probewatch/internal/models"
)

// PingExecutor probes ping_host monitors with a single ICMP echo.
type PingExecutor struct {
	validator *TargetValidator
}

// NewPingExecutor creates the executor for ping_host monitors.
func NewPingExecutor(validator *TargetValidator) *PingExecutor {
	return &PingExecutor{validator: validator}
}

func (e *PingExecutor) Type() models.MonitorType {
	return models.TypePingHost
}

func (e *PingExecutor) Execute(ctx context.Context, m *models.Monitor) Outcome {
	start := time.Now()

	host := hostFromTarget(m.Target)
	if err := e.validator.ValidateHost(host); err != nil {
		return errorOutcome(err, time.Since(start))
	}

	cfg := m.Config.Ping
	if cfg == nil {
		return errorOutcome(&ValidationError{Reason: "ping config missing"}, time.Since(start))
	}

	pinger, err := ping.NewPinger(host)
	if err != nil {
		return errorOutcome(&ValidationError{Reason: err.Error()}, time.Since(start))
	}

	pinger.Count = 1
	if cfg.PacketSize > 0 {
		pinger.Size = cfg.PacketSize
	}
	// Unprivileged UDP mode by default so the process needs no raw-socket
	// capability.
	pinger.SetPrivileged(cfg.Privileged)

	if deadline, ok := ctx.Deadline(); ok {
		pinger.Timeout = time.Until(deadline)
	}

	done := make(chan error, 1)
	go func() {
		done <- pinger.Run()
	}()

	select {
	case <-ctx.Done():
		pinger.Stop()
		return timeoutOutcome(time.Since(start), nil)
	case err := <-done:
		if err != nil {
			return downOutcome(&TransientNetworkError{Err: err}, time.Since(start), nil)
		}
	}

	stats := pinger.Statistics()
	elapsed := time.Since(start)
	detail := map[string]interface{}{
		"packets_sent":     stats.PacketsSent,
		"packets_received": stats.PacketsRecv,
	}
	if stats.IPAddr != nil {
		detail["resolved_ip"] = stats.IPAddr.String()
	}

	if stats.PacketsRecv == 0 {
		return timeoutOutcome(elapsed, detail)
	}

	// RTT parsed from the echo reply, not wall time around the run.
	return Outcome{
		Status:    models.ResultUp,
		ElapsedMs: stats.AvgRtt.Milliseconds(),
		Detail:    detail,
	}
}
