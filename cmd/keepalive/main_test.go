//go:build !windows

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNotifyContext_CancelledBySignal(t *testing.T) {
	// keeps the test process alive whatever notifyContext does with the handler
	guard := make(chan os.Signal, 2)
	signal.Notify(guard, syscall.SIGUSR1)
	defer signal.Stop(guard)

	ctx, stop := notifyContext(context.Background(), syscall.SIGUSR1)
	defer stop()

	self, err := os.FindProcess(os.Getpid())
	require.NoError(t, err)
	require.NoError(t, self.Signal(syscall.SIGUSR1))

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context not cancelled by signal")
	}
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestNotifyContext_ParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := notifyContext(parent, syscall.SIGUSR2)

	cancel()
	<-ctx.Done()

	// stop already ran from the done hook; calling it again is harmless
	assert.NotPanics(t, assert.PanicTestFunc(stop))
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger("debug")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = newLogger("info")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}
