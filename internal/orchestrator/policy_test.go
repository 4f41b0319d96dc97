package orchestrator

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffWaitNeverExceedsMax(t *testing.T) {
	pol := TurnPolicy{Rand: rand.New(rand.NewSource(1))}.normalized()
	for retry := 0; retry <= 12; retry++ {
		for i := 0; i < 50; i++ {
			wait := pol.backoffWait(retry)
			assert.LessOrEqual(t, wait, pol.MaxBackoff, "retry %d", retry)
			assert.Greater(t, wait, time.Duration(0))
		}
	}
}

func TestBackoffWaitGrowsWithRetryCount(t *testing.T) {
	pol := TurnPolicy{
		BaseBackoff: time.Second,
		MaxBackoff:  time.Hour, // uncapped over the sampled range
		Rand:        rand.New(rand.NewSource(42)),
	}.normalized()

	const samples = 200
	var prevMean float64
	for retry := 0; retry <= 6; retry++ {
		var total time.Duration
		for i := 0; i < samples; i++ {
			total += pol.backoffWait(retry)
		}
		mean := float64(total) / samples
		if retry > 0 {
			assert.Greater(t, mean, prevMean, "mean wait should grow at retry %d", retry)
		}
		// The mean should track 2^retry plus ~0.5 units of jitter.
		expected := (math.Pow(2, float64(retry)) + 0.5) * float64(time.Second)
		assert.InEpsilon(t, expected, mean, 0.15, "retry %d", retry)
		prevMean = mean
	}
}

func TestTurnPolicyDefaults(t *testing.T) {
	pol := TurnPolicy{}.normalized()
	assert.Equal(t, 5*time.Minute, pol.MaxWallClock)
	assert.Equal(t, 10, pol.MaxRetries)
	assert.Equal(t, time.Second, pol.BaseBackoff)
	assert.Equal(t, 32*time.Second, pol.MaxBackoff)
	assert.Equal(t, time.Second, pol.PollInterval)
	assert.Equal(t, 2*time.Second, pol.SettleDelay)
}
