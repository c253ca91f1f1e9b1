package checks

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateURLRejectsLoopback(t *testing.T) {
	v := NewTargetValidator(false)

	for _, target := range []string{
		"http://localhost:8080/health",
		"http://127.0.0.1/",
		"https://0.0.0.0/",
	} {
		err := v.ValidateURL(target)
		require.Error(t, err, "target %q", target)

		var rejection *SecurityRejection
		assert.True(t, errors.As(err, &rejection), "target %q should be a security rejection, got %T", target, err)
	}
}

func TestValidateURLAllowsLoopbackWhenConfigured(t *testing.T) {
	v := NewTargetValidator(true)
	assert.NoError(t, v.ValidateURL("http://127.0.0.1:8080/health"))
}

func TestValidateURLBlocksMetadataEvenWhenPrivateAllowed(t *testing.T) {
	v := NewTargetValidator(true)

	for _, target := range []string{
		"http://169.254.169.254/latest/meta-data/",
		"http://169.254.170.2/v2/credentials",
	} {
		err := v.ValidateURL(target)
		require.Error(t, err, "target %q", target)

		var rejection *SecurityRejection
		assert.True(t, errors.As(err, &rejection), "target %q", target)
	}
}

func TestValidateURLRejectsNonHTTPSchemes(t *testing.T) {
	v := NewTargetValidator(false)

	for _, target := range []string{
		"ftp://example.com/file",
		"file:///etc/passwd",
		"gopher://example.com",
	} {
		err := v.ValidateURL(target)
		require.Error(t, err, "target %q", target)

		var validation *ValidationError
		assert.True(t, errors.As(err, &validation), "target %q", target)
	}
}

func TestValidateHostRejectsShellMetacharacters(t *testing.T) {
	v := NewTargetValidator(true)

	for _, host := range []string{
		"example.com; rm -rf /",
		"host|cat /etc/passwd",
		"$(whoami).example.com",
		"host`id`",
		"host with spaces",
	} {
		err := v.ValidateHost(host)
		require.Error(t, err, "host %q", host)

		var rejection *SecurityRejection
		assert.True(t, errors.As(err, &rejection), "host %q should be a security rejection, got %T", host, err)
	}
}

func TestValidateHostRequiresHost(t *testing.T) {
	v := NewTargetValidator(true)

	err := v.ValidateHost("   ")
	require.Error(t, err)

	var validation *ValidationError
	assert.True(t, errors.As(err, &validation))
}

func TestValidateHostAllowsLoopbackLiteralWhenConfigured(t *testing.T) {
	v := NewTargetValidator(true)
	assert.NoError(t, v.ValidateHost("127.0.0.1"))
}
