package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGateEnforcesMinimumInterval(t *testing.T) {
	g := New(10) // 100ms minimum interval

	start := time.Now()
	require.NoError(t, g.Wait(context.Background(), "bucket"))
	require.NoError(t, g.Wait(context.Background(), "bucket"))
	elapsed := time.Since(start)

	require.GreaterOrEqual(t, elapsed, 90*time.Millisecond)
}

func TestGateBucketsAreIndependent(t *testing.T) {
	g := New(10)

	require.NoError(t, g.Wait(context.Background(), "a"))

	start := time.Now()
	require.NoError(t, g.Wait(context.Background(), "b"))
	elapsed := time.Since(start)

	require.Less(t, elapsed, 50*time.Millisecond)
}

func TestGateSetBucketRateOverridesDefault(t *testing.T) {
	g := New(1000) // near-instant default
	g.SetBucketRate("slow", 20)

	start := time.Now()
	require.NoError(t, g.Wait(context.Background(), "slow"))
	require.NoError(t, g.Wait(context.Background(), "slow"))
	elapsed := time.Since(start)

	require.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
}

func TestGateRespectsContextCancellation(t *testing.T) {
	g := New(1) // 1 second minimum interval
	require.NoError(t, g.Wait(context.Background(), "bucket"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := g.Wait(ctx, "bucket")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGateResetClearsLastCallTime(t *testing.T) {
	g := New(10) // 100ms minimum interval
	require.NoError(t, g.Wait(context.Background(), "bucket"))

	g.Reset()

	start := time.Now()
	require.NoError(t, g.Wait(context.Background(), "bucket"))
	elapsed := time.Since(start)

	require.Less(t, elapsed, 20*time.Millisecond)
}

func TestGateNonPositiveRateDisablesThrottling(t *testing.T) {
	g := New(0)

	start := time.Now()
	require.NoError(t, g.Wait(context.Background(), "bucket"))
	require.NoError(t, g.Wait(context.Background(), "bucket"))
	elapsed := time.Since(start)

	require.Less(t, elapsed, 20*time.Millisecond)
}
