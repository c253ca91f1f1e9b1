package checks

import (
	"context"
	"crypto/x509"
	"strings"
	"time"

	"github.com/probewatch/probewatch/internal/models"
)

// WebsiteExecutor probes website monitors: HTTP semantics with a default
// 200-299 acceptance range plus optional TLS certificate inspection.
type WebsiteExecutor struct {
	validator    *TargetValidator
	snippetBytes int
}

// NewWebsiteExecutor creates the executor for website monitors.
func NewWebsiteExecutor(validator *TargetValidator, snippetBytes int) *WebsiteExecutor {
	return &WebsiteExecutor{validator: validator, snippetBytes: snippetBytes}
}

func (e *WebsiteExecutor) Type() models.MonitorType {
	return models.TypeWebsite
}

func (e *WebsiteExecutor) Execute(ctx context.Context, m *models.Monitor) Outcome {
	cfg := m.Config.Website
	if cfg == nil {
		return errorOutcome(&ValidationError{Reason: "website config missing"}, 0)
	}

	var inspect *tlsInspection
	if cfg.SSLCheckEnabled && ShouldInspectTLS(m, time.Now()) {
		inspect = &tlsInspection{}
	}

	outcome := runHTTPProbe(ctx, e.validator, m.Target, &cfg.HTTPConfig, e.snippetBytes, []string{"200-299"}, inspect)

	if inspect != nil && inspect.summary != nil {
		if outcome.Detail == nil {
			outcome.Detail = map[string]interface{}{}
		}
		outcome.Detail["tls"] = inspect.summary
	}

	return outcome
}

// ShouldInspectTLS throttles certificate inspection by the SSL-specific
// interval, tightening back to every tick once expiry is near (within twice
// the warning window).
func ShouldInspectTLS(m *models.Monitor, now time.Time) bool {
	cfg := m.Config.Website
	if cfg == nil || !cfg.SSLCheckEnabled {
		return false
	}

	if m.LastSSLCheckAt == nil || cfg.SSLCheckIntervalSeconds <= 0 {
		return true
	}

	warnDays := m.AlertConfig.SSLDaysWarning
	if warnDays < 1 {
		warnDays = 14
	}
	if m.LastSSLDaysRemaining != nil && *m.LastSSLDaysRemaining <= 2*warnDays {
		return true
	}

	interval := time.Duration(cfg.SSLCheckIntervalSeconds) * time.Second
	return now.Sub(*m.LastSSLCheckAt) >= interval
}

// certSummary condenses a peer certificate into the result detail payload.
func certSummary(cert *x509.Certificate, now time.Time) map[string]interface{} {
	daysRemaining := int(cert.NotAfter.Sub(now).Hours() / 24)

	return map[string]interface{}{
		"issuer":         strings.Join(cert.Issuer.Organization, ", "),
		"issuer_cn":      cert.Issuer.CommonName,
		"subject":        cert.Subject.CommonName,
		"not_before":     cert.NotBefore.UTC().Format(time.RFC3339),
		"not_after":      cert.NotAfter.UTC().Format(time.RFC3339),
		"days_remaining": daysRemaining,
		"valid":          now.After(cert.NotBefore) && now.Before(cert.NotAfter),
	}
}
