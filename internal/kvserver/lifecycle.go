package kvserver

import (
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/torua/internal/kverrors"
	"github.com/dreamware/torua/internal/transport"
	"github.com/dreamware/torua/internal/wire"
)

// joinMaxAttempts, joinBaseBackoff and joinBackoffFactor bound the
// startup Join retry loop: persistent failure to join aborts start-up.
// Backoff is capped exponential, generalizing the periodic shape of
// HealthMonitor's retry loop from a fixed interval to a growing one:
// 50ms, 100ms, 200ms, 400ms across 5 attempts.
const (
	joinMaxAttempts   = 5
	joinBaseBackoff   = 50 * time.Millisecond
	joinBackoffFactor = 2
)

// JoinController registers self with the controller at controllerAddr,
// retrying on failure with capped exponential backoff. It returns the
// last error if every attempt fails.
func JoinController(pool *transport.Pool, controllerAddr, self string, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	backoff := joinBaseBackoff
	var lastErr error
	for attempt := 0; attempt < joinMaxAttempts; attempt++ {
		_, err := pool.Call(controllerAddr, wire.JoinRequest{Server: self})
		if err == nil {
			log.Info("joined controller", zap.String("controller", controllerAddr), zap.String("self", self))
			return nil
		}
		lastErr = err
		log.Warn("join attempt failed", zap.Int("attempt", attempt+1), zap.Duration("backoff", backoff), zap.Error(err))
		if attempt < joinMaxAttempts-1 {
			time.Sleep(backoff)
			backoff *= joinBackoffFactor
		}
	}
	return kverrors.New(kverrors.Internal, "failed to join %s after %d attempts: %v", controllerAddr, joinMaxAttempts, lastErr)
}

// LeaveController deregisters self from the controller, best-effort, used
// during shutdown.
func LeaveController(pool *transport.Pool, controllerAddr, self string) error {
	_, err := pool.Call(controllerAddr, wire.LeaveRequest{Server: self})
	return err
}
