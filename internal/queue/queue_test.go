package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDoublesPerAttempt(t *testing.T) {
	assert.Equal(t, 2*time.Second, Backoff(1))
	assert.Equal(t, 4*time.Second, Backoff(2))
	assert.Equal(t, 8*time.Second, Backoff(3))
}

func TestBackoffClampsBelowOne(t *testing.T) {
	assert.Equal(t, 2*time.Second, Backoff(0))
	assert.Equal(t, 2*time.Second, Backoff(-3))
}
