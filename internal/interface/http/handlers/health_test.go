package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompositeHealthChecker_AllPass(t *testing.T) {
	checker := NewCompositeHealthChecker("1.2.3")
	checker.AddCheck("database", func(ctx context.Context) error { return nil })
	checker.AddCheck("cache", func(ctx context.Context) error { return nil })

	status := checker.Check(context.Background())

	assert.True(t, status.Healthy)
	assert.True(t, status.Ready)
	assert.Equal(t, "All checks passed", status.Message)
	assert.Equal(t, "1.2.3", status.Version)

	require.Len(t, status.Checks, 2)
	for name, result := range status.Checks {
		assert.True(t, result.Healthy, name)
		assert.Equal(t, "OK", result.Message)
	}
}

func TestCompositeHealthChecker_OneFailureFailsAll(t *testing.T) {
	checker := NewCompositeHealthChecker("1.2.3")
	checker.AddCheck("database", func(ctx context.Context) error { return nil })
	checker.AddCheck("cache", func(ctx context.Context) error {
		return errors.New("connection refused")
	})

	status := checker.Check(context.Background())

	assert.False(t, status.Healthy)
	assert.False(t, status.Ready)
	assert.Contains(t, status.Message, "cache")

	assert.True(t, status.Checks["database"].Healthy)
	assert.False(t, status.Checks["cache"].Healthy)
	assert.Equal(t, "connection refused", status.Checks["cache"].Message)
}

func TestCompositeHealthChecker_NoChecksRegistered(t *testing.T) {
	status := NewCompositeHealthChecker("").Check(context.Background())

	assert.True(t, status.Healthy)
	assert.Equal(t, "No health checks registered", status.Message)
	assert.Empty(t, status.Checks)
}

func TestCompositeHealthChecker_RemoveCheck(t *testing.T) {
	checker := NewCompositeHealthChecker("")
	checker.AddCheck("flaky", func(ctx context.Context) error {
		return errors.New("down")
	})
	checker.RemoveCheck("flaky")

	status := checker.Check(context.Background())
	assert.True(t, status.Healthy)
}

func TestCompositeHealthChecker_Timeout(t *testing.T) {
	checker := NewCompositeHealthChecker("")
	checker.SetTimeout(10 * time.Millisecond)
	checker.AddCheck("slow", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})

	status := checker.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.False(t, status.Checks["slow"].Healthy)
}

func TestNoopHealthChecker(t *testing.T) {
	checker := NewNoopHealthChecker()
	checker.AddCheck("ignored", func(ctx context.Context) error {
		return errors.New("never runs")
	})

	status := checker.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.True(t, status.Ready)
}
