package api

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/probewatch/probewatch/internal/config"
	"github.com/probewatch/probewatch/internal/models"
)

func TestValidateTarget(t *testing.T) {
	valid := []struct {
		typ    models.MonitorType
		target string
	}{
		{models.TypeHTTPRequest, "https://example.com/health"},
		{models.TypeWebsite, "http://example.com"},
		{models.TypePingHost, "example.com"},
		{models.TypePortCheck, "db.internal"},
		{models.TypeSyntheticTest, "checkout-flow"},
	}
	for _, c := range valid {
		assert.NoError(t, validateTarget(c.typ, c.target), "%s %q", c.typ, c.target)
	}

	invalid := []struct {
		typ    models.MonitorType
		target string
	}{
		{models.TypeHTTPRequest, "ftp://example.com"},
		{models.TypeHTTPRequest, "example.com"},
		{models.TypeWebsite, ""},
		{models.TypePingHost, "host; rm -rf /"},
		{models.TypePortCheck, "host|id"},
	}
	for _, c := range invalid {
		assert.Error(t, validateTarget(c.typ, c.target), "%s %q", c.typ, c.target)
	}
}

func TestNormalizeFrequency(t *testing.T) {
	h := &MonitorHandlers{Config: &config.Config{MinCheckIntervalSeconds: 60}}

	freq, err := h.normalizeFrequency(0)
	assert.NoError(t, err)
	assert.Equal(t, 60, freq)

	freq, err = h.normalizeFrequency(300)
	assert.NoError(t, err)
	assert.Equal(t, 300, freq)

	_, err = h.normalizeFrequency(30)
	assert.Error(t, err)
}
